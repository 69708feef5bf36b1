package persona

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agentauth.org/internal/ids"
)

// Manager validates, stores, versions and verifies persona documents. It is
// stateless across requests; all mutable state lives behind the Store.
type Manager struct {
	store     Store
	validator *Validator
	now       func() time.Time
}

// ManagerOption configures Manager behavior.
type ManagerOption func(*Manager)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ManagerOption {
	return func(m *Manager) {
		if fn != nil {
			m.now = fn
		}
	}
}

// WithTraitAllowList replaces the permitted string trait values. The list is
// loaded once and immutable afterwards; changing it requires constructing a
// new Manager.
func WithTraitAllowList(values []string) ManagerOption {
	return func(m *Manager) {
		m.validator = NewValidator(values)
	}
}

// DefaultTraitAllowList contains the string trait values accepted when no
// deployment-specific list is configured.
var DefaultTraitAllowList = []string{
	"formal", "casual", "friendly", "professional",
	"concise", "detailed", "empathetic", "direct",
}

// NewManager constructs a Manager.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:     store,
		validator: NewValidator(DefaultTraitAllowList),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Validate checks a document against the schema without storing anything.
func (m *Manager) Validate(doc Document) error {
	return m.validator.Validate(doc)
}

// Register stores the first persona for an agent. It fails with
// ErrAlreadyExists when a current persona is present; callers should use
// Update instead. The stored version is the one declared in the document.
func (m *Manager) Register(ctx context.Context, agentID string, doc Document) (Persona, error) {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return Persona{}, errors.New("persona: agent_id is required")
	}
	if err := m.validator.Validate(doc); err != nil {
		return Persona{}, err
	}

	version := doc["version"].(string)
	entry, err := m.newEntry(agentID, version, doc)
	if err != nil {
		return Persona{}, err
	}
	if err := m.store.AppendPersonaVersion(ctx, agentID, entry, ""); err != nil {
		return Persona{}, err
	}
	return entry.persona(), nil
}

// Update validates the new document and appends it as the next minor
// version of the stored persona. The version field inside the submitted
// document is informational only; the stored version always advances from
// the current one. A concurrent update for the same agent surfaces as
// ErrVersionConflict, which the caller may recover from by re-reading and
// retrying.
func (m *Manager) Update(ctx context.Context, agentID string, doc Document) (Persona, error) {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return Persona{}, errors.New("persona: agent_id is required")
	}
	if err := m.validator.Validate(doc); err != nil {
		return Persona{}, err
	}

	current, err := m.store.GetCurrentPersona(ctx, agentID)
	if err != nil {
		return Persona{}, err
	}
	currentVersion, err := ParseVersion(current.Version)
	if err != nil {
		return Persona{}, fmt.Errorf("persona: stored version %q is corrupt: %w", current.Version, err)
	}
	next := currentVersion.BumpMinor().String()

	// Keep the stored document self-consistent with its assigned version.
	stored := make(Document, len(doc))
	for k, v := range doc {
		stored[k] = v
	}
	stored["version"] = next

	entry, err := m.newEntry(agentID, next, stored)
	if err != nil {
		return Persona{}, err
	}
	if err := m.store.AppendPersonaVersion(ctx, agentID, entry, current.Version); err != nil {
		return Persona{}, err
	}
	return entry.persona(), nil
}

// Get returns the current persona for an agent.
func (m *Manager) Get(ctx context.Context, agentID string) (Persona, error) {
	current, err := m.store.GetCurrentPersona(ctx, agentID)
	if err != nil {
		return Persona{}, err
	}
	return current.persona(), nil
}

// Export wraps the current persona in a portable bundle stamped with the
// export time.
func (m *Manager) Export(ctx context.Context, agentID string) (Bundle, error) {
	current, err := m.store.GetCurrentPersona(ctx, agentID)
	if err != nil {
		return Bundle{}, err
	}
	return Bundle{
		AgentID:     agentID,
		Version:     current.Version,
		ContentHash: current.ContentHash,
		Document:    current.Document,
		ExportedAt:  m.now().UTC(),
	}, nil
}

// Import stores a bundle's document for the agent. When the bundle carries a
// content hash the document must still hash to it, otherwise the bundle was
// altered in transit and Import fails with ErrBundleMismatch. A bundle for
// an agent without a persona registers it; otherwise the document is
// appended as the next version through Update.
func (m *Manager) Import(ctx context.Context, agentID string, b Bundle) (Persona, error) {
	if b.ContentHash != "" {
		computed, err := ContentHash(b.Document)
		if err != nil {
			return Persona{}, fmt.Errorf("persona: hash bundle document: %w", err)
		}
		if computed != b.ContentHash {
			return Persona{}, ErrBundleMismatch
		}
	}
	p, err := m.Register(ctx, agentID, b.Document)
	if errors.Is(err, ErrAlreadyExists) {
		return m.Update(ctx, agentID, b.Document)
	}
	return p, err
}

// VerifyIntegrity recomputes the canonical hash of the stored document and
// compares it to the stored content hash. A mismatch can only arise from
// out-of-band tampering with the store, since every in-process write goes
// through Register or Update.
func (m *Manager) VerifyIntegrity(ctx context.Context, agentID string) (Verification, error) {
	current, err := m.store.GetCurrentPersona(ctx, agentID)
	if err != nil {
		return Verification{}, err
	}
	computed, err := ContentHash(current.Document)
	if err != nil {
		return Verification{}, fmt.Errorf("persona: hash stored document: %w", err)
	}
	if computed != current.ContentHash {
		return Verification{
			Valid:       false,
			AgentID:     agentID,
			ContentHash: current.ContentHash,
			Reason:      "stored document does not match its content hash",
		}, nil
	}
	return Verification{
		Valid:       true,
		AgentID:     agentID,
		ContentHash: current.ContentHash,
		Reason:      "persona integrity verified",
	}, nil
}

// GetHistory returns history entries newest first. It is a pure projection
// over the immutable log.
func (m *Manager) GetHistory(ctx context.Context, agentID string, limit, offset int) ([]HistoryEntry, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return m.store.ListPersonaHistory(ctx, agentID, limit, offset)
}

func (m *Manager) newEntry(agentID, version string, doc Document) (*HistoryEntry, error) {
	hash, err := ContentHash(doc)
	if err != nil {
		return nil, fmt.Errorf("persona: hash document: %w", err)
	}
	return &HistoryEntry{
		ID:          ids.NewPrefixed(ids.PrefixPersona),
		AgentID:     agentID,
		Version:     version,
		ContentHash: hash,
		Document:    doc,
		ChangedAt:   m.now().UTC(),
	}, nil
}

func (e *HistoryEntry) persona() Persona {
	return Persona{
		AgentID:     e.AgentID,
		Version:     e.Version,
		ContentHash: e.ContentHash,
		Document:    e.Document,
		ChangedAt:   e.ChangedAt,
	}
}
