package httpapi

import (
	"net/http"
	"strings"

	"agentauth.org/internal/agent"
	"agentauth.org/internal/permissions"
	"agentauth.org/internal/stream"
)

type registerAgentRequest struct {
	Name        string   `json:"name"`
	OwnerEmail  string   `json:"owner_email"`
	Permissions []string `json:"permissions"`
}

type registerAgentResponse struct {
	Agent  agent.Agent `json:"agent"`
	APIKey string      `json:"api_key"`
}

type updateTierRequest struct {
	Tier string `json:"tier"`
}

type updatePermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

func (a *API) handleAgentsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.registerAgent(w, r)
	case http.MethodGet:
		a.listAgents(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleAgentResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/agents/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	id := parts[0]

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.getAgent(w, r, id)
	case len(parts) == 2 && parts[1] == "revoke":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.revokeAgent(w, r, id)
	case len(parts) == 2 && parts[1] == "tier":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		a.updateAgentTier(w, r, id)
	case len(parts) == 2 && parts[1] == "permissions":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		a.updateAgentPermissions(w, r, id)
	case len(parts) == 2 && parts[1] == "key":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.rotateAgentKey(w, r, id)
	case len(parts) == 2 && parts[1] == "activity":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.listAgentActivity(w, r, id)
	case parts[1] == "persona":
		a.handlePersonaResource(w, r, id, parts[2:])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) registerAgent(w http.ResponseWriter, r *http.Request) {
	var req registerAgentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	reg, err := a.agents.Register(r.Context(), req.Name, req.OwnerEmail, req.Permissions)
	if err != nil {
		handleAgentError(w, r, err)
		return
	}

	a.audit(r, "agent.registered", map[string]any{
		"agent_id": reg.Agent.ID,
		"name":     reg.Agent.Name,
	})
	a.publish(stream.EventAgentRegistered, reg.Agent.ID, nil)

	w.Header().Set("Location", "/v1/agents/"+reg.Agent.ID)
	writeJSON(w, http.StatusCreated, registerAgentResponse{
		Agent:  reg.Agent,
		APIKey: reg.PlaintextKey,
	})
}

func (a *API) listAgents(w http.ResponseWriter, r *http.Request) {
	if !a.requirePermission(w, r, permissions.ControlAgentsRead) {
		return
	}
	agents, err := a.agents.List(r.Context())
	if err != nil {
		handleAgentError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": agents,
		"total": len(agents),
	})
}

func (a *API) getAgent(w http.ResponseWriter, r *http.Request, id string) {
	if !a.requireSelfOr(w, r, id, permissions.ControlAgentsRead) {
		return
	}
	ag, err := a.agents.Get(r.Context(), id)
	if err != nil {
		handleAgentError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ag)
}

func (a *API) revokeAgent(w http.ResponseWriter, r *http.Request, id string) {
	if !a.requirePermission(w, r, permissions.ControlAgentsWrite) {
		return
	}
	ag, err := a.agents.Revoke(r.Context(), id)
	if err != nil {
		handleAgentError(w, r, err)
		return
	}
	a.audit(r, "agent.revoked", map[string]any{"agent_id": id})
	a.publish(stream.EventAgentRevoked, id, nil)
	writeJSON(w, http.StatusOK, ag)
}

func (a *API) updateAgentTier(w http.ResponseWriter, r *http.Request, id string) {
	if !a.requirePermission(w, r, permissions.ControlAgentsWrite) {
		return
	}
	var req updateTierRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ag, err := a.agents.UpdateTier(r.Context(), id, agent.Tier(strings.ToLower(strings.TrimSpace(req.Tier))))
	if err != nil {
		handleAgentError(w, r, err)
		return
	}
	a.audit(r, "agent.tier.updated", map[string]any{
		"agent_id": id,
		"tier":     string(ag.Tier),
	})
	writeJSON(w, http.StatusOK, ag)
}

func (a *API) updateAgentPermissions(w http.ResponseWriter, r *http.Request, id string) {
	if !a.requirePermission(w, r, permissions.ControlAgentsWrite) {
		return
	}
	var req updatePermissionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ag, err := a.agents.UpdatePermissions(r.Context(), id, req.Permissions)
	if err != nil {
		handleAgentError(w, r, err)
		return
	}
	a.audit(r, "agent.permissions.updated", map[string]any{
		"agent_id":    id,
		"permissions": ag.Permissions.Strings(),
	})
	writeJSON(w, http.StatusOK, ag)
}

func (a *API) rotateAgentKey(w http.ResponseWriter, r *http.Request, id string) {
	if !a.requireSelfOr(w, r, id, permissions.ControlAgentsWrite) {
		return
	}
	reg, err := a.agents.RotateKey(r.Context(), id)
	if err != nil {
		handleAgentError(w, r, err)
		return
	}
	a.audit(r, "agent.key.rotated", map[string]any{"agent_id": id})
	a.publish(stream.EventAgentKeyRotated, id, nil)
	writeJSON(w, http.StatusOK, registerAgentResponse{
		Agent:  reg.Agent,
		APIKey: reg.PlaintextKey,
	})
}

func (a *API) listAgentActivity(w http.ResponseWriter, r *http.Request, id string) {
	if !a.requireSelfOr(w, r, id, permissions.ControlAgentsRead) {
		return
	}
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 50, 1, 500)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 500")
		return
	}
	offset, err := parsePositiveInt(r.URL.Query().Get("offset"), 0, 0, 1<<30)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	entries, page, err := a.activity.List(r.Context(), id, limit, offset)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":      entries,
		"pagination": page,
	})
}

func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"services": permissions.Catalog,
	})
}

func (a *API) publish(eventType, agentID string, fields map[string]any) {
	if a.stream == nil {
		return
	}
	a.stream.Publish(stream.Event{Type: eventType, AgentID: agentID, Fields: fields})
}
