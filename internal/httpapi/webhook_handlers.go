package httpapi

import (
	"net/http"
	"strings"

	"agentauth.org/internal/auth"
	"agentauth.org/internal/permissions"
)

type registerWebhookRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

func (a *API) handleWebhooksCollection(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req registerWebhookRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		wh, err := a.webhooks.Register(r.Context(), identity.AgentID, req.URL, req.Events)
		if err != nil {
			handleWebhookError(w, r, err)
			return
		}
		a.audit(r, "webhook.registered", map[string]any{
			"webhook_id": wh.ID,
			"url":        wh.URL,
		})
		w.Header().Set("Location", "/v1/webhooks/"+wh.ID)
		writeJSON(w, http.StatusCreated, wh)
	case http.MethodGet:
		// Admins may inspect another agent's webhooks via ?agent_id=.
		ownerID := identity.AgentID
		if q := strings.TrimSpace(r.URL.Query().Get("agent_id")); q != "" && q != ownerID {
			if !a.requirePermission(w, r, permissions.ControlWebhooksRead) {
				return
			}
			ownerID = q
		}
		hooks, err := a.webhooks.List(r.Context(), ownerID)
		if err != nil {
			handleWebhookError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": hooks,
			"total": len(hooks),
		})
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleWebhookResource(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/webhooks/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	id := parts[0]

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, r, http.MethodDelete)
			return
		}
		if err := a.webhooks.Delete(r.Context(), identity.AgentID, id); err != nil {
			handleWebhookError(w, r, err)
			return
		}
		a.audit(r, "webhook.deleted", map[string]any{"webhook_id": id})
		w.WriteHeader(http.StatusNoContent)
	case len(parts) == 2 && parts[1] == "rotate":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		wh, err := a.webhooks.RotateSecret(r.Context(), identity.AgentID, id)
		if err != nil {
			handleWebhookError(w, r, err)
			return
		}
		a.audit(r, "webhook.secret.rotated", map[string]any{"webhook_id": id})
		writeJSON(w, http.StatusOK, wh)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}
