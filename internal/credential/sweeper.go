package credential

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"credvault.org/internal/obs"
)

// Sweeper periodically deletes console credentials past their expiration
// time, reusing the interactive delete path. Failures on one credential
// never block the rest of the sweep.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	limiter  *rate.Limiter
	now      func() time.Time
}

// NewSweeper builds a sweeper that runs every interval and paces provider
// calls at maxPerSecond deletions.
func NewSweeper(svc *Service, interval time.Duration, maxPerSecond float64) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if maxPerSecond <= 0 {
		maxPerSecond = 2
	}
	return &Sweeper{
		svc:      svc,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Limit(maxPerSecond), 1),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run blocks, sweeping on every tick until ctx is cancelled.
func (sw *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sw.Sweep(ctx)
		}
	}
}

// Sweep runs one pass: every live console credential whose expiration_time
// is in the past is deleted. Errors are logged and counted, never re-raised.
func (sw *Sweeper) Sweep(ctx context.Context) {
	expired, err := sw.svc.store.ListExpiredConsole(ctx, sw.now())
	if err != nil {
		obs.SweepFailed()
		obs.Log(map[string]any{"event": "sweep_list_failed", "error": err.Error()})
		return
	}
	for _, cred := range expired {
		if err := sw.limiter.Wait(ctx); err != nil {
			return
		}
		if err := sw.svc.DeleteConsole(ctx, cred.ID); err != nil {
			obs.SweepFailed()
			obs.Log(map[string]any{
				"event":        "sweep_delete_failed",
				"id":           cred.ID,
				"aws_username": cred.AwsUsername,
				"error":        err.Error(),
			})
			continue
		}
		obs.SweepDeleted()
		obs.Log(map[string]any{
			"event":        "sweep_deleted",
			"id":           cred.ID,
			"aws_username": cred.AwsUsername,
		})
	}
}
