// Package activity records agent authentication attempts in an append-only
// log with paginated reads.
package activity

import (
	"context"
	"errors"
	"strings"
	"time"

	"agentauth.org/internal/ids"
)

// Outcome of a recorded attempt.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

var ErrInvalidInput = errors.New("activity: invalid input")

// Entry is one immutable activity row.
type Entry struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	Timestamp time.Time `json:"timestamp"`
	IPAddress string    `json:"ip_address"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
}

// Pagination describes a page of a larger result set.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// Store is the persistence contract. Append is fire-and-forget from the
// caller's perspective; List returns entries newest first.
type Store interface {
	AppendActivity(ctx context.Context, e *Entry) error
	ListActivity(ctx context.Context, agentID string, limit, offset int) ([]Entry, int, error)
}

// Log records and reads activity entries.
type Log struct {
	store Store
	now   func() time.Time
}

// Option configures Log behavior.
type Option func(*Log)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(l *Log) {
		if fn != nil {
			l.now = fn
		}
	}
}

// NewLog constructs a Log.
func NewLog(store Store, opts ...Option) *Log {
	l := &Log{store: store, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends one attempt. Failures to write the log are returned but
// callers typically only log them; the log must never block authentication.
func (l *Log) Record(ctx context.Context, agentID, ipAddress, status, message string) error {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return errors.New("activity: agent_id is required")
	}
	if status != StatusSuccess && status != StatusFailure {
		return errors.New("activity: status must be success or failure")
	}
	return l.store.AppendActivity(ctx, &Entry{
		ID:        ids.NewPrefixed(ids.PrefixActivity),
		AgentID:   agentID,
		Timestamp: l.now().UTC(),
		IPAddress: ipAddress,
		Status:    status,
		Message:   message,
	})
}

// List returns a page of entries for an agent, newest first.
func (l *Log) List(ctx context.Context, agentID string, limit, offset int) ([]Entry, Pagination, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	entries, total, err := l.store.ListActivity(ctx, agentID, limit, offset)
	if err != nil {
		return nil, Pagination{}, err
	}
	return entries, Pagination{
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+len(entries) < total,
	}, nil
}
