package persona

import "context"

// Store describes the persistence contract the manager consumes. The
// conditional-append semantics of AppendPersonaVersion are the only
// concurrency guarantee this package requires of its storage collaborator:
// the append must atomically check the agent's current version against
// expectedPriorVersion (empty string meaning "no persona exists yet") and
// fail with ErrVersionConflict or ErrAlreadyExists without writing when the
// check does not hold.
type Store interface {
	GetCurrentPersona(ctx context.Context, agentID string) (*HistoryEntry, error)
	AppendPersonaVersion(ctx context.Context, agentID string, entry *HistoryEntry, expectedPriorVersion string) error
	ListPersonaHistory(ctx context.Context, agentID string, limit, offset int) ([]HistoryEntry, int, error)
}
