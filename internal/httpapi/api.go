// Package httpapi is the HTTP layer: routing, authentication, the
// authorization guard and the audit capture around every API request.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"credvault.org/internal/audit"
	"credvault.org/internal/authz"
	"credvault.org/internal/credential"
	"credvault.org/internal/directory"
	"credvault.org/internal/iam"
	"credvault.org/internal/obs"
)

// ReadyProbe checks dependencies for the readiness endpoint.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	users      *directory.Service
	creds      *credential.Service
	audits     *audit.Service
	trail      audit.Store
	federation iam.Federator
	iamAdmin   iam.PolicyAdmin
	readyProbe ReadyProbe
	version    string
	tokenTTL   time.Duration
}

// Config carries the API's collaborators. Federation and IAMAdmin are
// optional; their routes answer "Feature Not Accessible" when unset.
type Config struct {
	Users      *directory.Service
	Creds      *credential.Service
	Audits     *audit.Service
	Trail      audit.Store
	Federation iam.Federator
	IAMAdmin   iam.PolicyAdmin
	ReadyProbe ReadyProbe
	Version    string
	TokenTTL   time.Duration
}

func New(cfg Config) *API {
	a := &API{
		mux:        http.NewServeMux(),
		users:      cfg.Users,
		creds:      cfg.Creds,
		audits:     cfg.Audits,
		trail:      cfg.Trail,
		federation: cfg.Federation,
		iamAdmin:   cfg.IAMAdmin,
		readyProbe: cfg.ReadyProbe,
		version:    cfg.Version,
		tokenTTL:   cfg.TokenTTL,
	}
	if a.tokenTTL <= 0 {
		a.tokenTTL = time.Hour
	}

	// health/ready/metrics
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	// Requirement rules merge once here, at route-table build time. A
	// merge defect surfaces on every call to the route, never as a
	// silent admit.
	public := authz.Public()
	none := authz.Require(authz.SetOf(), authz.SetOf())

	a.mux.HandleFunc("/api/v1/auth/login", dispatch(map[string]http.HandlerFunc{
		http.MethodPost: a.guarded(public, public, a.handleLogin),
	}))

	usersCoarse := authz.Require(
		authz.SetOf(directory.RoleAdmin, directory.RoleAccessManager),
		authz.SetOf(),
	)
	a.mux.HandleFunc("/api/v1/users", dispatch(map[string]http.HandlerFunc{
		http.MethodPost: a.guarded(usersCoarse, none, a.handleCreateUser),
		http.MethodGet:  a.guarded(usersCoarse, none, a.handleListUsers),
	}))
	a.mux.HandleFunc("/api/v1/users/", dispatch(map[string]http.HandlerFunc{
		http.MethodGet:   a.guarded(usersCoarse, none, a.handleGetUser),
		http.MethodPatch: a.guarded(usersCoarse, none, a.handleUpdateUser),
	}))

	rolesCoarse := authz.Require(
		authz.SetOf(directory.RoleAdmin),
		authz.SetOf(directory.PermManageRoles),
	)
	a.mux.HandleFunc("/api/v1/roles", dispatch(map[string]http.HandlerFunc{
		http.MethodPost: a.guarded(rolesCoarse, none, a.handleAddRole),
		http.MethodGet:  a.guarded(rolesCoarse, none, a.handleListRoles),
	}))
	a.mux.HandleFunc("/api/v1/permissions", dispatch(map[string]http.HandlerFunc{
		http.MethodGet: a.guarded(rolesCoarse, none, a.handleListPermissions),
	}))

	credsCoarse := authz.Require(
		authz.SetOf(directory.RoleAdmin, directory.RoleTeamLeader, directory.RoleAccessManager),
		authz.SetOf(directory.PermViewAwsCredentials),
	)
	needCreate := authz.Require(authz.SetOf(), authz.SetOf(directory.PermCreateAwsCredentials))
	needUpdate := authz.Require(authz.SetOf(), authz.SetOf(directory.PermUpdateAwsCredentials))
	needDelete := authz.Require(authz.SetOf(), authz.SetOf(directory.PermDeleteAwsCredentials))

	a.mux.HandleFunc("/api/v1/credentials/console", dispatch(map[string]http.HandlerFunc{
		http.MethodPost: a.guarded(credsCoarse, needCreate, a.handleCreateConsole),
		http.MethodGet:  a.guarded(credsCoarse, none, a.handleListConsole),
	}))
	a.mux.HandleFunc("/api/v1/credentials/console/", dispatch(map[string]http.HandlerFunc{
		http.MethodGet:    a.guarded(credsCoarse, none, a.handleGetConsole),
		http.MethodPatch:  a.guarded(credsCoarse, needUpdate, a.handleUpdateConsole),
		http.MethodDelete: a.guarded(credsCoarse, needDelete, a.handleDeleteConsole),
	}))

	a.mux.HandleFunc("/api/v1/credentials/programmatic", dispatch(map[string]http.HandlerFunc{
		http.MethodPost: a.guarded(credsCoarse, needCreate, a.handleCreateProgrammatic),
		http.MethodGet:  a.guarded(credsCoarse, none, a.handleListProgrammatic),
	}))
	a.mux.HandleFunc("/api/v1/credentials/programmatic/", dispatch(map[string]http.HandlerFunc{
		http.MethodPatch:  a.guarded(credsCoarse, needUpdate, a.handleUpdateProgrammatic),
		http.MethodDelete: a.guarded(credsCoarse, needDelete, a.handleDeleteProgrammatic),
	}))

	// Provider administration: managed policies, provider roles and
	// time-boxed console sessions.
	providerCoarse := authz.Require(
		authz.SetOf(directory.RoleAdmin, directory.RoleAccessManager),
		authz.SetOf(),
	)
	a.mux.HandleFunc("/api/v1/iam/console-sessions", dispatch(map[string]http.HandlerFunc{
		http.MethodPost: a.guarded(providerCoarse, needCreate, a.handleConsoleSession),
	}))
	a.mux.HandleFunc("/api/v1/iam/policies", dispatch(map[string]http.HandlerFunc{
		http.MethodPost: a.guarded(providerCoarse, needCreate, a.handleCreatePolicy),
		http.MethodGet:  a.guarded(providerCoarse, none, a.handleListPolicies),
	}))
	a.mux.HandleFunc("/api/v1/iam/policies/generate", dispatch(map[string]http.HandlerFunc{
		http.MethodPost: a.guarded(providerCoarse, none, a.handleGeneratePolicy),
	}))
	a.mux.HandleFunc("/api/v1/iam/policies/attach-user", dispatch(map[string]http.HandlerFunc{
		http.MethodPost: a.guarded(providerCoarse, needUpdate, a.handleAttachUserPolicy),
	}))
	a.mux.HandleFunc("/api/v1/iam/policies/attach-role", dispatch(map[string]http.HandlerFunc{
		http.MethodPost: a.guarded(providerCoarse, needUpdate, a.handleAttachRolePolicy),
	}))
	a.mux.HandleFunc("/api/v1/iam/roles", dispatch(map[string]http.HandlerFunc{
		http.MethodPost: a.guarded(providerCoarse, needCreate, a.handleCreateProviderRole),
		http.MethodGet:  a.guarded(providerCoarse, none, a.handleListProviderRoles),
	}))

	auditCoarse := authz.Require(
		authz.SetOf(directory.RoleAdmin, directory.RoleAuditor),
		authz.SetOf(directory.PermViewAuditLogs),
	)
	a.mux.HandleFunc("/api/v1/audit-logs", dispatch(map[string]http.HandlerFunc{
		http.MethodGet: a.guarded(auditCoarse, none, a.handleSearchAuditLogs),
	}))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "resource not found")
	})

	return a
}

// Handler returns the full middleware chain around the mux. The audit
// capture sits outside authentication and the rate limiter so rejected
// and throttled requests are recorded too.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = RateLimit(h, 20, 10)
	h = a.capture(h)
	h = MaxBodyBytes(h, 1<<20)
	h = SecurityHeaders(h)
	return obs.Instrument(h)
}

// dispatch routes by method; unknown methods get 405.
func dispatch(handlers map[string]http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.Method]; ok {
			h(w, r)
			return
		}
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "credvault-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
