package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"agentauth.org/internal/ids"
	"agentauth.org/internal/permissions"
)

// Registry provides agent lifecycle operations on top of a Store.
type Registry struct {
	store Store
	now   func() time.Time
}

// RegistryOption configures Registry behavior.
type RegistryOption func(*Registry)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) RegistryOption {
	return func(r *Registry) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRegistry constructs a Registry.
func NewRegistry(store Store, opts ...RegistryOption) *Registry {
	r := &Registry{store: store, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registration is the result of Register. PlaintextKey is the only place
// the API key ever appears in clear; it is not recoverable afterwards.
type Registration struct {
	Agent        Agent
	PlaintextKey string
}

// Register creates a new agent with the given grants and mints its API key.
func (r *Registry) Register(ctx context.Context, name, ownerEmail string, perms []string) (Registration, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Registration{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	ownerEmail = strings.TrimSpace(strings.ToLower(ownerEmail))
	if ownerEmail == "" || !strings.Contains(ownerEmail, "@") {
		return Registration{}, fmt.Errorf("%w: valid owner_email is required", ErrInvalidInput)
	}
	if len(perms) == 0 {
		return Registration{}, fmt.Errorf("%w: at least one permission is required", ErrInvalidInput)
	}
	if err := permissions.ValidateAll(perms); err != nil {
		return Registration{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	plaintext, hash, err := NewAPIKey()
	if err != nil {
		return Registration{}, fmt.Errorf("generate api key: %w", err)
	}

	now := r.now().UTC()
	a := &Agent{
		ID:          ids.NewPrefixed(ids.PrefixAgent),
		Name:        name,
		OwnerEmail:  ownerEmail,
		SecretHash:  hash,
		Permissions: NewPermissionSet(perms),
		Tier:        TierFree,
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.store.CreateAgent(ctx, a); err != nil {
		return Registration{}, err
	}
	return Registration{Agent: a.Clone(), PlaintextKey: plaintext}, nil
}

// Get loads a single agent.
func (r *Registry) Get(ctx context.Context, id string) (Agent, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Agent{}, fmt.Errorf("%w: agent_id is required", ErrInvalidInput)
	}
	a, err := r.store.GetAgent(ctx, id)
	if err != nil {
		return Agent{}, err
	}
	return a.Clone(), nil
}

// List returns all agents.
func (r *Registry) List(ctx context.Context) ([]Agent, error) {
	records, err := r.store.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Agent, 0, len(records))
	for _, a := range records {
		out = append(out, a.Clone())
	}
	return out, nil
}

// Revoke tombstones an agent. The record survives for audit history; it is
// never physically deleted.
func (r *Registry) Revoke(ctx context.Context, id string) (Agent, error) {
	return r.mutate(ctx, id, func(a *Agent) error {
		a.Status = StatusRevoked
		return nil
	})
}

// UpdateTier changes the agent's subscription tier.
func (r *Registry) UpdateTier(ctx context.Context, id string, tier Tier) (Agent, error) {
	if !ValidTier(tier) {
		return Agent{}, fmt.Errorf("%w: unsupported tier %q", ErrInvalidInput, tier)
	}
	return r.mutate(ctx, id, func(a *Agent) error {
		a.Tier = tier
		return nil
	})
}

// UpdateStatus changes lifecycle status. Moving a revoked agent back to any
// other status is refused: revocation is final.
func (r *Registry) UpdateStatus(ctx context.Context, id string, status Status) (Agent, error) {
	if !ValidStatus(status) {
		return Agent{}, fmt.Errorf("%w: unsupported status %q", ErrInvalidInput, status)
	}
	return r.mutate(ctx, id, func(a *Agent) error {
		if a.Status == StatusRevoked {
			return ErrRevoked
		}
		a.Status = status
		return nil
	})
}

// UpdatePermissions replaces the grant set.
func (r *Registry) UpdatePermissions(ctx context.Context, id string, perms []string) (Agent, error) {
	if len(perms) == 0 {
		return Agent{}, fmt.Errorf("%w: at least one permission is required", ErrInvalidInput)
	}
	if err := permissions.ValidateAll(perms); err != nil {
		return Agent{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return r.mutate(ctx, id, func(a *Agent) error {
		a.Permissions = NewPermissionSet(perms)
		return nil
	})
}

// RotateKey mints a replacement API key for an active agent and returns the
// new plaintext once.
func (r *Registry) RotateKey(ctx context.Context, id string) (Registration, error) {
	plaintext, hash, err := NewAPIKey()
	if err != nil {
		return Registration{}, fmt.Errorf("generate api key: %w", err)
	}
	a, err := r.mutate(ctx, id, func(a *Agent) error {
		if a.Status != StatusActive {
			return ErrRevoked
		}
		a.SecretHash = hash
		return nil
	})
	if err != nil {
		return Registration{}, err
	}
	return Registration{Agent: a, PlaintextKey: plaintext}, nil
}

func (r *Registry) mutate(ctx context.Context, id string, fn func(*Agent) error) (Agent, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Agent{}, fmt.Errorf("%w: agent_id is required", ErrInvalidInput)
	}
	a, err := r.store.GetAgent(ctx, id)
	if err != nil {
		return Agent{}, err
	}
	updated := a.Clone()
	if err := fn(&updated); err != nil {
		return Agent{}, err
	}
	updated.UpdatedAt = r.now().UTC()
	if err := r.store.UpdateAgent(ctx, &updated); err != nil {
		return Agent{}, err
	}
	return updated.Clone(), nil
}
