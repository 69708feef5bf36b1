package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"agentauth.org/internal/activity"
	"agentauth.org/internal/auth"
	"agentauth.org/internal/obs"
)

const (
	authHeader    = "Authorization"
	bearerPrefix  = "Bearer "
	apiKeyHeader  = "X-Api-Key"
	agentIDHeader = "X-Agent-Id"
)

var publicPaths = []string{
	"/v1/auth/verify",
	"/v1/auth/refresh",
	"/v1/permissions",
	"/v1/info",
	"/metrics",
	"/healthz",
	"/readyz",
	"/",
}

func isPublicRequest(r *http.Request) bool {
	// Registration is the only unauthenticated mutation.
	if r.URL.Path == "/v1/agents" && r.Method == http.MethodPost {
		return true
	}
	for _, p := range publicPaths {
		if r.URL.Path == p {
			return true
		}
	}
	return false
}

// withAuth authenticates every non-public request. Both credential schemes
// are accepted: a bearer access token, or the api key pair in headers. A
// failed credential of either scheme is rejected with the same message so
// the response does not reveal which part was wrong.
func (a *API) withAuth(next http.Handler) http.Handler {
	if a == nil || a.auth == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if isPublicRequest(r) {
			next.ServeHTTP(w, r)
			return
		}

		creds := credentialsFromRequest(r)
		identity, err := a.auth.AuthenticateFlexible(r.Context(), creds)
		if err != nil {
			scheme := "api_key"
			if creds.BearerToken != "" {
				scheme = "bearer"
			}
			obs.CountAuthVerification(scheme, "denied")
			if errors.Is(err, auth.ErrNoCredentials) {
				writeError(w, r, http.StatusUnauthorized, "authentication required")
				return
			}
			if creds.AgentID != "" && a.activity != nil {
				_ = a.activity.Record(r.Context(), creds.AgentID, clientIP(r), activity.StatusFailure, "authentication failed")
			}
			a.audit(r, "auth.request.denied", map[string]any{
				"scheme": scheme,
				"path":   r.URL.Path,
			})
			writeError(w, r, http.StatusUnauthorized, "authentication failed")
			return
		}

		scheme := "bearer"
		if creds.BearerToken == "" {
			scheme = "api_key"
		}
		obs.CountAuthVerification(scheme, "ok")

		ctx := auth.ContextWithIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func credentialsFromRequest(r *http.Request) auth.Credentials {
	return auth.Credentials{
		BearerToken: bearerToken(r.Header.Get(authHeader)),
		AgentID:     strings.TrimSpace(r.Header.Get(agentIDHeader)),
		APIKey:      strings.TrimSpace(r.Header.Get(apiKeyHeader)),
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearerPrefix)) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}

// requireSelfOr allows the agent itself or a caller holding the given
// control-plane grant.
func (a *API) requireSelfOr(w http.ResponseWriter, r *http.Request, targetAgentID, perm string) bool {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return false
	}
	if identity.AgentID == targetAgentID || identity.Authorized(perm) {
		return true
	}
	writeError(w, r, http.StatusForbidden, "insufficient permissions")
	return false
}

// requirePermission allows only callers holding the given grant.
func (a *API) requirePermission(w http.ResponseWriter, r *http.Request, perm string) bool {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return false
	}
	if !identity.Authorized(perm) {
		writeError(w, r, http.StatusForbidden, "insufficient permissions")
		return false
	}
	return true
}
