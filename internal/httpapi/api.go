// Package httpapi is the HTTP control plane: agent registration and
// lifecycle, credential verification, persona management and webhooks.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"agentauth.org/internal/activity"
	"agentauth.org/internal/agent"
	"agentauth.org/internal/auth"
	"agentauth.org/internal/obs"
	"agentauth.org/internal/persona"
	"agentauth.org/internal/stream"
	"agentauth.org/internal/webhook"
)

// ReadyProbe reports readiness; with a nil DB it always succeeds.
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
	readyProbe ReadyProbe
	version    string

	agents   *agent.Registry
	auth     *auth.Service
	personas *persona.Manager
	webhooks *webhook.Service
	activity *activity.Log
	stream   *stream.Stream

	rateBurst  int
	ratePerSec int
}

// Deps carries the services the API serves.
type Deps struct {
	Agents   *agent.Registry
	Auth     *auth.Service
	Personas *persona.Manager
	Webhooks *webhook.Service
	Activity *activity.Log
	Stream   *stream.Stream
}

func New(rp ReadyProbe, version string, deps Deps) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		agents:     deps.Agents,
		auth:       deps.Auth,
		personas:   deps.Personas,
		webhooks:   deps.Webhooks,
		activity:   deps.Activity,
		stream:     deps.Stream,
		rateBurst:  20,
		ratePerSec: 10,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/agents", a.handleAgentsCollection)
	a.mux.HandleFunc("/v1/agents/", a.handleAgentResource)
	a.mux.HandleFunc("/v1/auth/verify", a.handleAuthVerify)
	a.mux.HandleFunc("/v1/auth/refresh", a.handleAuthRefresh)
	a.mux.HandleFunc("/v1/webhooks", a.handleWebhooksCollection)
	a.mux.HandleFunc("/v1/webhooks/", a.handleWebhookResource)
	a.mux.HandleFunc("/v1/permissions", a.handlePermissions)
	a.mux.HandleFunc("/v1/events", a.Events)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler wires the middleware chain around the mux. The context bounds the
// lifetime of the rate limiter's background cleanup.
func (a *API) Handler(ctx context.Context) http.Handler {
	h := a.withAuth(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(ctx, h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- health and info ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "agentauth-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "agentauth-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
