package auth

import (
	"agentauth.org/internal/agent"
	"agentauth.org/internal/permissions"
)

// Identity is a verified agent identity: the materialized result of a
// successful credential check, carrying everything route-level policy
// checks need.
type Identity struct {
	AgentID     string     `json:"agent_id"`
	Tier        agent.Tier `json:"tier"`
	Permissions []string   `json:"permissions"`
}

// Authorized reports whether the identity holds a grant matching the
// required permission.
func (id Identity) Authorized(required string) bool {
	return permissions.Authorized(id.Permissions, required)
}

func identityFromAgent(a *agent.Agent) Identity {
	return Identity{
		AgentID:     a.ID,
		Tier:        a.Tier,
		Permissions: a.Permissions.Strings(),
	}
}
