// Package memory implements every store contract in process memory. It
// backs tests and single-node deployments; durable installs use store/pg.
package memory

import (
	"context"
	"sync"

	"agentauth.org/internal/activity"
	"agentauth.org/internal/agent"
	"agentauth.org/internal/persona"
	"agentauth.org/internal/webhook"
)

// Store holds all records behind a single mutex. Operations are short and
// copy on the way in and out, so one lock keeps the conditional persona
// append trivially atomic.
type Store struct {
	mu       sync.RWMutex
	agents   map[string]*agent.Agent
	personas map[string][]persona.HistoryEntry
	activity map[string][]activity.Entry
	webhooks map[string]*webhook.Webhook
}

var (
	_ agent.Store    = (*Store)(nil)
	_ persona.Store  = (*Store)(nil)
	_ activity.Store = (*Store)(nil)
	_ webhook.Store  = (*Store)(nil)
)

// New creates an empty store.
func New() *Store {
	return &Store{
		agents:   make(map[string]*agent.Agent),
		personas: make(map[string][]persona.HistoryEntry),
		activity: make(map[string][]activity.Entry),
		webhooks: make(map[string]*webhook.Webhook),
	}
}

// --- agent.Store ---

func (s *Store) CreateAgent(ctx context.Context, a *agent.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[a.ID]; ok {
		return agent.ErrAlreadyExists
	}
	cp := a.Clone()
	s.agents[a.ID] = &cp
	return nil
}

func (s *Store) GetAgent(ctx context.Context, id string) (*agent.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[id]
	if !ok {
		return nil, agent.ErrNotFound
	}
	cp := a.Clone()
	return &cp, nil
}

func (s *Store) UpdateAgent(ctx context.Context, a *agent.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[a.ID]; !ok {
		return agent.ErrNotFound
	}
	cp := a.Clone()
	s.agents[a.ID] = &cp
	return nil
}

func (s *Store) ListAgents(ctx context.Context) ([]*agent.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*agent.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		cp := a.Clone()
		out = append(out, &cp)
	}
	return out, nil
}

// --- persona.Store ---

func (s *Store) GetCurrentPersona(ctx context.Context, agentID string) (*persona.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.personas[agentID]
	if len(entries) == 0 {
		return nil, persona.ErrNotFound
	}
	entry := cloneEntry(entries[len(entries)-1])
	return &entry, nil
}

// AppendPersonaVersion implements the conditional append: the check of the
// current version against expectedPriorVersion and the append happen under
// one lock, so of two racing updates exactly one succeeds.
func (s *Store) AppendPersonaVersion(ctx context.Context, agentID string, entry *persona.HistoryEntry, expectedPriorVersion string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.personas[agentID]
	switch {
	case expectedPriorVersion == "" && len(entries) > 0:
		return persona.ErrAlreadyExists
	case expectedPriorVersion != "" && len(entries) == 0:
		return persona.ErrNotFound
	case expectedPriorVersion != "" && entries[len(entries)-1].Version != expectedPriorVersion:
		return persona.ErrVersionConflict
	}
	s.personas[agentID] = append(entries, cloneEntry(*entry))
	return nil
}

func (s *Store) ListPersonaHistory(ctx context.Context, agentID string, limit, offset int) ([]persona.HistoryEntry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.personas[agentID]
	total := len(entries)

	out := make([]persona.HistoryEntry, 0, limit)
	// Stored oldest first; serve newest first.
	for i := total - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, cloneEntry(entries[i]))
	}
	return out, total, nil
}

// --- activity.Store ---

func (s *Store) AppendActivity(ctx context.Context, e *activity.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity[e.AgentID] = append(s.activity[e.AgentID], *e)
	return nil
}

func (s *Store) ListActivity(ctx context.Context, agentID string, limit, offset int) ([]activity.Entry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.activity[agentID]
	total := len(entries)

	out := make([]activity.Entry, 0, limit)
	for i := total - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, entries[i])
	}
	return out, total, nil
}

// --- webhook.Store ---

func (s *Store) CreateWebhook(ctx context.Context, w *webhook.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := cloneWebhook(*w)
	s.webhooks[w.ID] = &cp
	return nil
}

func (s *Store) GetWebhook(ctx context.Context, id string) (*webhook.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.webhooks[id]
	if !ok {
		return nil, webhook.ErrNotFound
	}
	cp := cloneWebhook(*w)
	return &cp, nil
}

func (s *Store) ListWebhooks(ctx context.Context, agentID string) ([]*webhook.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*webhook.Webhook, 0)
	for _, w := range s.webhooks {
		if w.AgentID != agentID {
			continue
		}
		cp := cloneWebhook(*w)
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) UpdateWebhook(ctx context.Context, w *webhook.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.webhooks[w.ID]; !ok {
		return webhook.ErrNotFound
	}
	cp := cloneWebhook(*w)
	s.webhooks[w.ID] = &cp
	return nil
}

func (s *Store) DeleteWebhook(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.webhooks[id]; !ok {
		return webhook.ErrNotFound
	}
	delete(s.webhooks, id)
	return nil
}

// cloneEntry deep-copies the document so callers can never reach the stored
// history entry through nested maps or slices.
func cloneEntry(e persona.HistoryEntry) persona.HistoryEntry {
	out := e
	out.Document = make(persona.Document, len(e.Document))
	for k, v := range e.Document {
		out.Document[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

func cloneWebhook(w webhook.Webhook) webhook.Webhook {
	out := w
	out.Events = append([]string(nil), w.Events...)
	return out
}
