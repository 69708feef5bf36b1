package httpapi

import (
	"net/http"
	"strings"

	"agentauth.org/internal/activity"
	"agentauth.org/internal/auth"
	"agentauth.org/internal/obs"
)

type verifyRequest struct {
	AgentID string `json:"agent_id"`
	APIKey  string `json:"api_key"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPairResponse struct {
	auth.TokenPair
	AgentID     string   `json:"agent_id"`
	Permissions []string `json:"permissions"`
}

// handleAuthVerify exchanges an agent id and API key for a token pair.
// Every failure is reported identically so the response does not reveal
// whether the agent exists, is revoked, or the key is wrong.
func (a *API) handleAuthVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	agentID := strings.TrimSpace(req.AgentID)
	apiKey := strings.TrimSpace(req.APIKey)
	if agentID == "" || apiKey == "" {
		writeError(w, r, http.StatusBadRequest, "agent_id and api_key are required")
		return
	}

	identity, err := a.auth.VerifyAPIKey(r.Context(), agentID, apiKey)
	if err != nil {
		obs.CountAuthVerification("api_key", "denied")
		if a.activity != nil {
			_ = a.activity.Record(r.Context(), agentID, clientIP(r), activity.StatusFailure, "api key verification failed")
		}
		a.audit(r, "auth.verify.denied", map[string]any{"agent_id": agentID})
		writeError(w, r, http.StatusUnauthorized, "authentication failed")
		return
	}

	pair, err := a.auth.IssueTokenPair(identity)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	obs.CountAuthVerification("api_key", "ok")
	if a.activity != nil {
		_ = a.activity.Record(r.Context(), agentID, clientIP(r), activity.StatusSuccess, "api key verified")
	}
	a.audit(r, "auth.verify.ok", map[string]any{"agent_id": agentID})

	writeJSON(w, http.StatusOK, tokenPairResponse{
		TokenPair:   pair,
		AgentID:     identity.AgentID,
		Permissions: identity.Permissions,
	})
}

// handleAuthRefresh exchanges a refresh token for a new token pair. The
// agent's current status applies, so a revoked agent cannot refresh.
func (a *API) handleAuthRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	token := strings.TrimSpace(req.RefreshToken)
	if token == "" {
		writeError(w, r, http.StatusBadRequest, "refresh_token is required")
		return
	}

	pair, identity, err := a.auth.RefreshTokenPair(r.Context(), token)
	if err != nil {
		obs.CountAuthVerification("bearer", "denied")
		a.audit(r, "auth.refresh.denied", nil)
		writeError(w, r, http.StatusUnauthorized, "authentication failed")
		return
	}

	obs.CountAuthVerification("bearer", "ok")
	if a.activity != nil {
		_ = a.activity.Record(r.Context(), identity.AgentID, clientIP(r), activity.StatusSuccess, "token refreshed")
	}
	a.audit(r, "auth.refresh.ok", map[string]any{"agent_id": identity.AgentID})

	writeJSON(w, http.StatusOK, tokenPairResponse{
		TokenPair:   pair,
		AgentID:     identity.AgentID,
		Permissions: identity.Permissions,
	})
}
