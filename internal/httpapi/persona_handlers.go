package httpapi

import (
	"net/http"

	"agentauth.org/internal/obs"
	"agentauth.org/internal/permissions"
	"agentauth.org/internal/persona"
	"agentauth.org/internal/stream"
)

// handlePersonaResource routes /v1/agents/{id}/persona and its subpaths.
func (a *API) handlePersonaResource(w http.ResponseWriter, r *http.Request, agentID string, rest []string) {
	switch {
	case len(rest) == 0:
		switch r.Method {
		case http.MethodGet:
			a.getPersona(w, r, agentID)
		case http.MethodPost:
			a.createPersona(w, r, agentID)
		case http.MethodPut:
			a.updatePersona(w, r, agentID)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodPut)
		}
	case len(rest) == 1 && rest[0] == "history":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.listPersonaHistory(w, r, agentID)
	case len(rest) == 1 && rest[0] == "verify":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.verifyPersona(w, r, agentID)
	case len(rest) == 1 && rest[0] == "export":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.exportPersona(w, r, agentID)
	case len(rest) == 1 && rest[0] == "import":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.importPersona(w, r, agentID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) getPersona(w http.ResponseWriter, r *http.Request, agentID string) {
	if !a.requireSelfOr(w, r, agentID, permissions.ControlAgentsRead) {
		return
	}
	p, err := a.personas.Get(r.Context(), agentID)
	if err != nil {
		handlePersonaError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) createPersona(w http.ResponseWriter, r *http.Request, agentID string) {
	if !a.requireSelfOr(w, r, agentID, permissions.ControlAgentsWrite) {
		return
	}
	var doc persona.Document
	if err := decodeJSON(w, r, &doc); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.personas.Register(r.Context(), agentID, doc)
	if err != nil {
		obs.CountPersonaOperation("register", "error")
		handlePersonaError(w, r, err)
		return
	}
	obs.CountPersonaOperation("register", "ok")
	a.audit(r, "persona.created", map[string]any{
		"agent_id": agentID,
		"version":  p.Version,
	})
	a.publish(stream.EventPersonaCreated, agentID, map[string]any{"version": p.Version})
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) updatePersona(w http.ResponseWriter, r *http.Request, agentID string) {
	if !a.requireSelfOr(w, r, agentID, permissions.ControlAgentsWrite) {
		return
	}
	var doc persona.Document
	if err := decodeJSON(w, r, &doc); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.personas.Update(r.Context(), agentID, doc)
	if err != nil {
		obs.CountPersonaOperation("update", "error")
		handlePersonaError(w, r, err)
		return
	}
	obs.CountPersonaOperation("update", "ok")
	a.audit(r, "persona.updated", map[string]any{
		"agent_id": agentID,
		"version":  p.Version,
	})
	a.publish(stream.EventPersonaUpdated, agentID, map[string]any{"version": p.Version})
	writeJSON(w, http.StatusOK, p)
}

func (a *API) exportPersona(w http.ResponseWriter, r *http.Request, agentID string) {
	if !a.requireSelfOr(w, r, agentID, permissions.ControlAgentsRead) {
		return
	}
	b, err := a.personas.Export(r.Context(), agentID)
	if err != nil {
		handlePersonaError(w, r, err)
		return
	}
	a.audit(r, "persona.exported", map[string]any{
		"agent_id": agentID,
		"version":  b.Version,
	})
	w.Header().Set("Content-Disposition", `attachment; filename="persona-`+agentID+`.json"`)
	writeJSON(w, http.StatusOK, b)
}

func (a *API) importPersona(w http.ResponseWriter, r *http.Request, agentID string) {
	if !a.requireSelfOr(w, r, agentID, permissions.ControlAgentsWrite) {
		return
	}
	var b persona.Bundle
	if err := decodeJSON(w, r, &b); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.personas.Import(r.Context(), agentID, b)
	if err != nil {
		obs.CountPersonaOperation("import", "error")
		handlePersonaError(w, r, err)
		return
	}
	obs.CountPersonaOperation("import", "ok")
	a.audit(r, "persona.imported", map[string]any{
		"agent_id": agentID,
		"version":  p.Version,
	})
	a.publish(stream.EventPersonaUpdated, agentID, map[string]any{"version": p.Version})
	writeJSON(w, http.StatusOK, p)
}

func (a *API) listPersonaHistory(w http.ResponseWriter, r *http.Request, agentID string) {
	if !a.requireSelfOr(w, r, agentID, permissions.ControlAgentsRead) {
		return
	}
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 20, 1, 200)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 200")
		return
	}
	offset, err := parsePositiveInt(r.URL.Query().Get("offset"), 0, 0, 1<<30)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	entries, total, err := a.personas.GetHistory(r.Context(), agentID, limit, offset)
	if err != nil {
		handlePersonaError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":  entries,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (a *API) verifyPersona(w http.ResponseWriter, r *http.Request, agentID string) {
	if !a.requireSelfOr(w, r, agentID, permissions.ControlAgentsRead) {
		return
	}
	v, err := a.personas.VerifyIntegrity(r.Context(), agentID)
	if err != nil {
		obs.CountPersonaOperation("verify", "error")
		handlePersonaError(w, r, err)
		return
	}
	result := "ok"
	if !v.Valid {
		result = "tampered"
	}
	obs.CountPersonaOperation("verify", result)
	a.audit(r, "persona.verified", map[string]any{
		"agent_id": agentID,
		"valid":    v.Valid,
	})
	writeJSON(w, http.StatusOK, v)
}
