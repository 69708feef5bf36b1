package agent

import "time"

// Status describes agent usability. Only active agents may authenticate.
// Revoked agents are tombstones: the record survives so audit history keeps
// resolving, but no credential check ever succeeds again.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
	StatusRevoked   Status = "revoked"
)

// ValidStatus reports whether s is a known lifecycle status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended, StatusRevoked:
		return true
	}
	return false
}

// Tier is the subscription class. It influences access token lifetime and
// the rate-limit class applied by the external gateway.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// ValidTier reports whether t is a known tier.
func ValidTier(t Tier) bool {
	switch t {
	case TierFree, TierPro, TierEnterprise:
		return true
	}
	return false
}

// Agent is the root identity entity. SecretHash is the one-way hash of the
// API key; the plaintext is returned to the caller exactly once at
// registration or rotation and never stored.
type Agent struct {
	ID          string        `json:"agent_id"`
	Name        string        `json:"name"`
	OwnerEmail  string        `json:"owner_email"`
	SecretHash  string        `json:"-"`
	Permissions PermissionSet `json:"permissions"`
	Tier        Tier          `json:"tier"`
	Status      Status        `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Clone returns a deep copy so store implementations can hand out records
// without aliasing their internal state.
func (a Agent) Clone() Agent {
	out := a
	out.Permissions = a.Permissions.Clone()
	return out
}
