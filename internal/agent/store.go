package agent

import "context"

// Store describes the persistence operations the registry requires. It owns
// no concurrency logic; implementations must make each call atomic.
type Store interface {
	CreateAgent(ctx context.Context, a *Agent) error
	GetAgent(ctx context.Context, id string) (*Agent, error)
	UpdateAgent(ctx context.Context, a *Agent) error
	ListAgents(ctx context.Context) ([]*Agent, error)
}
