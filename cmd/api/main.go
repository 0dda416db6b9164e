package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"credvault.org/internal/audit"
	"credvault.org/internal/credential"
	"credvault.org/internal/directory"
	"credvault.org/internal/httpapi"
	"credvault.org/internal/iam"
	"credvault.org/internal/obs"
	"credvault.org/internal/store/pg"
)

var version = "0.3.0"

func main() {
	obs.Init()

	dsn := os.Getenv("CREDVAULT_PG_DSN")
	if dsn == "" {
		log.Fatal("missing CREDVAULT_PG_DSN")
	}
	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	idp := iam.NewAWSClient(awsCfg)
	fed := iam.NewAWSFederator(awsCfg,
		iam.WithFederationIssuer(envString("CREDVAULT_FEDERATION_ISSUER", "credvault")))

	creds := credential.NewService(store, idp)
	users := directory.NewService(store)
	audits := audit.NewService(store)

	api := httpapi.New(httpapi.Config{
		Users:      users,
		Creds:      creds,
		Audits:     audits,
		Trail:      store,
		Federation: fed,
		IAMAdmin:   idp,
		ReadyProbe: httpapi.ReadyProbe{DB: store.DB()},
		Version:    version,
		TokenTTL:   envDuration("CREDVAULT_TOKEN_TTL", time.Hour),
	})

	sweeper := credential.NewSweeper(creds,
		envDuration("CREDVAULT_SWEEP_INTERVAL", time.Hour),
		envFloat("CREDVAULT_SWEEP_RATE", 2))
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	go sweeper.Run(sweepCtx)

	srv := &http.Server{
		Addr:              envString("CREDVAULT_HTTP_ADDR", ":8080"),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting credvault-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	stopSweeper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("invalid %s=%q, using %s", key, v, fallback)
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Printf("invalid %s=%q, using %g", key, v, fallback)
	}
	return fallback
}
