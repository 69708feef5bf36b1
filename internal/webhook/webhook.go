// Package webhook manages webhook configurations: endpoints, event
// subscriptions and signing secrets. Delivery itself belongs to an external
// collaborator that consumes these records and the event stream.
package webhook

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"agentauth.org/internal/ids"
)

var (
	ErrNotFound     = errors.New("webhook: not found")
	ErrInvalidInput = errors.New("webhook: invalid input")
)

// KnownEvents lists the event types a webhook may subscribe to.
var KnownEvents = []string{
	"agent.registered",
	"agent.revoked",
	"agent.key_rotated",
	"agent.tier_changed",
	"auth.failed",
	"persona.registered",
	"persona.updated",
	"persona.integrity_failed",
}

// Webhook is one endpoint configuration. Secret signs delivered payloads so
// receivers can authenticate them.
type Webhook struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	Secret    string    `json:"secret"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the persistence contract.
type Store interface {
	CreateWebhook(ctx context.Context, w *Webhook) error
	GetWebhook(ctx context.Context, id string) (*Webhook, error)
	ListWebhooks(ctx context.Context, agentID string) ([]*Webhook, error)
	UpdateWebhook(ctx context.Context, w *Webhook) error
	DeleteWebhook(ctx context.Context, id string) error
}

// Service provides webhook configuration operations.
type Service struct {
	store Store
	now   func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a webhook for an agent and mints its signing secret.
func (s *Service) Register(ctx context.Context, agentID, rawURL string, events []string) (Webhook, error) {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return Webhook{}, fmt.Errorf("%w: agent_id is required", ErrInvalidInput)
	}
	if err := validateURL(rawURL); err != nil {
		return Webhook{}, err
	}
	if err := validateEvents(events); err != nil {
		return Webhook{}, err
	}
	secret, err := newSecret()
	if err != nil {
		return Webhook{}, err
	}
	w := &Webhook{
		ID:        ids.NewPrefixed(ids.PrefixWebhook),
		AgentID:   agentID,
		URL:       rawURL,
		Events:    append([]string(nil), events...),
		Secret:    secret,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateWebhook(ctx, w); err != nil {
		return Webhook{}, err
	}
	return *w, nil
}

// List returns an agent's webhooks.
func (s *Service) List(ctx context.Context, agentID string) ([]Webhook, error) {
	records, err := s.store.ListWebhooks(ctx, agentID)
	if err != nil {
		return nil, err
	}
	out := make([]Webhook, 0, len(records))
	for _, w := range records {
		out = append(out, *w)
	}
	return out, nil
}

// Delete removes a webhook owned by the agent.
func (s *Service) Delete(ctx context.Context, agentID, webhookID string) error {
	w, err := s.owned(ctx, agentID, webhookID)
	if err != nil {
		return err
	}
	return s.store.DeleteWebhook(ctx, w.ID)
}

// RotateSecret replaces the signing secret of a webhook owned by the agent
// and returns the updated record, the only moment the new secret is shown.
func (s *Service) RotateSecret(ctx context.Context, agentID, webhookID string) (Webhook, error) {
	w, err := s.owned(ctx, agentID, webhookID)
	if err != nil {
		return Webhook{}, err
	}
	secret, err := newSecret()
	if err != nil {
		return Webhook{}, err
	}
	w.Secret = secret
	if err := s.store.UpdateWebhook(ctx, w); err != nil {
		return Webhook{}, err
	}
	return *w, nil
}

func (s *Service) owned(ctx context.Context, agentID, webhookID string) (*Webhook, error) {
	w, err := s.store.GetWebhook(ctx, webhookID)
	if err != nil {
		return nil, err
	}
	// An agent must not see that another agent's webhook id exists.
	if w.AgentID != agentID {
		return nil, ErrNotFound
	}
	return w, nil
}

func newSecret() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return "whsec_" + hex.EncodeToString(raw), nil
}

func validateURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: url must be an absolute http(s) URL", ErrInvalidInput)
	}
	return nil
}

func validateEvents(events []string) error {
	if len(events) == 0 {
		return fmt.Errorf("%w: at least one event is required", ErrInvalidInput)
	}
	known := make(map[string]bool, len(KnownEvents))
	for _, e := range KnownEvents {
		known[e] = true
	}
	for _, e := range events {
		if !known[e] {
			return fmt.Errorf("%w: unknown event %q", ErrInvalidInput, e)
		}
	}
	return nil
}
