package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// stubStore is a minimal in-package Store for registry tests. The full
// implementations live in internal/store.
type stubStore struct {
	mu     sync.Mutex
	agents map[string]*Agent
}

func newStubStore() *stubStore {
	return &stubStore{agents: make(map[string]*Agent)}
}

func (s *stubStore) CreateAgent(ctx context.Context, a *Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[a.ID]; ok {
		return ErrAlreadyExists
	}
	cp := a.Clone()
	s.agents[a.ID] = &cp
	return nil
}

func (s *stubStore) GetAgent(ctx context.Context, id string) (*Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := a.Clone()
	return &cp, nil
}

func (s *stubStore) UpdateAgent(ctx context.Context, a *Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[a.ID]; !ok {
		return ErrNotFound
	}
	cp := a.Clone()
	s.agents[a.ID] = &cp
	return nil
}

func (s *stubStore) ListAgents(ctx context.Context) ([]*Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Agent, 0, len(s.agents))
	for _, a := range s.agents {
		cp := a.Clone()
		out = append(out, &cp)
	}
	return out, nil
}

func TestRegisterMintsKeyOnce(t *testing.T) {
	reg := NewRegistry(newStubStore())

	res, err := reg.Register(context.Background(), "support-bot", "ops@example.com", []string{
		"zendesk:tickets:read",
		"zendesk:tickets:read", // duplicate collapses
		"slack:messages:write",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !strings.HasPrefix(res.PlaintextKey, "ak_") {
		t.Fatalf("unexpected key format: %q", res.PlaintextKey)
	}
	if !strings.HasPrefix(res.Agent.ID, "agt_") {
		t.Fatalf("unexpected agent id: %q", res.Agent.ID)
	}
	if res.Agent.Status != StatusActive || res.Agent.Tier != TierFree {
		t.Fatalf("unexpected defaults: %s/%s", res.Agent.Status, res.Agent.Tier)
	}
	if got := res.Agent.Permissions.Strings(); len(got) != 2 {
		t.Fatalf("expected deduplicated permissions, got %v", got)
	}
	if !VerifyAPIKeyHash(res.Agent.SecretHash, res.PlaintextKey) {
		t.Fatalf("stored hash does not verify the issued key")
	}
	if VerifyAPIKeyHash(res.Agent.SecretHash, "ak_wrong") {
		t.Fatalf("wrong key must not verify")
	}
}

func TestRegisterValidatesInput(t *testing.T) {
	reg := NewRegistry(newStubStore())
	ctx := context.Background()

	if _, err := reg.Register(ctx, "", "ops@example.com", []string{"*:*:*"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty name: %v", err)
	}
	if _, err := reg.Register(ctx, "bot", "not-an-email", []string{"*:*:*"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad email: %v", err)
	}
	if _, err := reg.Register(ctx, "bot", "ops@example.com", nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("no permissions: %v", err)
	}
	if _, err := reg.Register(ctx, "bot", "ops@example.com", []string{"bad permission"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("malformed permission: %v", err)
	}
}

func TestRevokeIsTombstone(t *testing.T) {
	store := newStubStore()
	reg := NewRegistry(store)
	ctx := context.Background()

	res, err := reg.Register(ctx, "bot", "ops@example.com", []string{"*:*:*"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	revoked, err := reg.Revoke(ctx, res.Agent.ID)
	if err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if revoked.Status != StatusRevoked {
		t.Fatalf("expected revoked status, got %s", revoked.Status)
	}

	// Record survives for audit history.
	got, err := reg.Get(ctx, res.Agent.ID)
	if err != nil {
		t.Fatalf("Get after revoke: %v", err)
	}
	if got.Status != StatusRevoked {
		t.Fatalf("expected tombstone, got %s", got.Status)
	}

	// Revocation is final.
	if _, err := reg.UpdateStatus(ctx, res.Agent.ID, StatusActive); !errors.Is(err, ErrRevoked) {
		t.Fatalf("reactivating a revoked agent: %v", err)
	}
}

func TestUpdateTier(t *testing.T) {
	reg := NewRegistry(newStubStore(), WithClock(func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}))
	ctx := context.Background()

	res, err := reg.Register(ctx, "bot", "ops@example.com", []string{"*:*:*"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	updated, err := reg.UpdateTier(ctx, res.Agent.ID, TierEnterprise)
	if err != nil {
		t.Fatalf("UpdateTier: %v", err)
	}
	if updated.Tier != TierEnterprise {
		t.Fatalf("tier not applied: %s", updated.Tier)
	}
	if _, err := reg.UpdateTier(ctx, res.Agent.ID, Tier("platinum")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown tier: %v", err)
	}
}

func TestRotateKeyInvalidatesOldKey(t *testing.T) {
	reg := NewRegistry(newStubStore())
	ctx := context.Background()

	res, err := reg.Register(ctx, "bot", "ops@example.com", []string{"*:*:*"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	rotated, err := reg.RotateKey(ctx, res.Agent.ID)
	if err != nil {
		t.Fatalf("RotateKey: %v", err)
	}
	if rotated.PlaintextKey == res.PlaintextKey {
		t.Fatalf("rotation must mint a new key")
	}
	if VerifyAPIKeyHash(rotated.Agent.SecretHash, res.PlaintextKey) {
		t.Fatalf("old key still verifies after rotation")
	}
	if !VerifyAPIKeyHash(rotated.Agent.SecretHash, rotated.PlaintextKey) {
		t.Fatalf("new key does not verify")
	}
}

func TestPermissionSetPreservesOrder(t *testing.T) {
	set := NewPermissionSet([]string{
		"slack:messages:write",
		"zendesk:tickets:read",
		"Slack:Messages:Write",
	})
	got := set.Strings()
	want := []string{"slack:messages:write", "zendesk:tickets:read"}
	if len(got) != len(want) {
		t.Fatalf("unexpected set: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("insertion order not preserved: %v", got)
		}
	}
}
