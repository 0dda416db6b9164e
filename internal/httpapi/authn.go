package httpapi

import (
	"net/http"
	"strings"

	"credvault.org/internal/auth"
	"credvault.org/internal/authz"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/api/v1/auth/login",
	"/metrics",
	"/healthz",
	"/readyz",
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

// withAuth resolves the bearer token to a principal. The role and permission
// set come from the database on every request; the token only identifies the
// user.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := extractBearerToken(r.Header.Get(authHeader))
		if !ok {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := auth.ParseAndValidate(token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		user, err := a.users.GetUser(r.Context(), claims.Subject)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		principal := auth.Principal{
			UserID:   user.ID,
			Username: user.Username,
		}
		if user.Role != nil {
			principal.Role = user.Role.Name
			for _, p := range user.Role.Permissions {
				principal.Permissions = append(principal.Permissions, p.Name)
			}
		}
		if info, ok := infoFrom(r.Context()); ok {
			info.userID = user.ID
		}
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
	})
}

// guarded merges the coarse and fine rules once and checks callers against
// the result on every request.
func (a *API) guarded(coarse, fine authz.Rule, h http.HandlerFunc) http.HandlerFunc {
	merged, mergeErr := authz.Merge(coarse, fine)
	return func(w http.ResponseWriter, r *http.Request) {
		if mergeErr != nil {
			respondAppError(w, mergeErr)
			return
		}
		if merged.Public {
			h(w, r)
			return
		}
		principal, ok := auth.PrincipalFrom(r.Context())
		if !ok {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if err := merged.Authorize(principal.Role, principal.Permissions); err != nil {
			respondAppError(w, err)
			return
		}
		h(w, r)
	}
}

func extractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearer):])
	return token, token != ""
}
