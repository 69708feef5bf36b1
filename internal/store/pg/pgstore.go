// Package pg implements the store contracts on PostgreSQL.
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"agentauth.org/internal/activity"
	"agentauth.org/internal/agent"
	"agentauth.org/internal/persona"
	"agentauth.org/internal/webhook"
)

// Store implements every store contract over one connection pool.
type Store struct {
	db *sql.DB
}

var (
	_ agent.Store    = (*Store)(nil)
	_ persona.Store  = (*Store)(nil)
	_ activity.Store = (*Store)(nil)
	_ webhook.Store  = (*Store)(nil)
)

// Open connects to PostgreSQL via the pgx stdlib driver.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing pool (used by tests and cmd wiring).
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// --- agent.Store ---

const agentColumns = `id, name, owner_email, secret_hash, permissions, tier, status, created_at, updated_at`

func (s *Store) CreateAgent(ctx context.Context, a *agent.Agent) error {
	perms, err := json.Marshal(a.Permissions.Strings())
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into agents (`+agentColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, a.ID, a.Name, a.OwnerEmail, a.SecretHash, perms, a.Tier, a.Status, a.CreatedAt, a.UpdatedAt)
	if err != nil && isUniqueViolation(err) {
		return agent.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetAgent(ctx context.Context, id string) (*agent.Agent, error) {
	row := s.db.QueryRowContext(ctx, `select `+agentColumns+` from agents where id=$1`, id)
	return scanAgent(row)
}

func (s *Store) UpdateAgent(ctx context.Context, a *agent.Agent) error {
	perms, err := json.Marshal(a.Permissions.Strings())
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update agents
		set name=$2, owner_email=$3, secret_hash=$4, permissions=$5, tier=$6, status=$7, updated_at=$8
		where id=$1
	`, a.ID, a.Name, a.OwnerEmail, a.SecretHash, perms, a.Tier, a.Status, a.UpdatedAt)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return agent.ErrNotFound
	}
	return nil
}

func (s *Store) ListAgents(ctx context.Context) ([]*agent.Agent, error) {
	rows, err := s.db.QueryContext(ctx, `select `+agentColumns+` from agents order by created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*agent.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (*agent.Agent, error) {
	var (
		a     agent.Agent
		perms []byte
	)
	err := row.Scan(&a.ID, &a.Name, &a.OwnerEmail, &a.SecretHash, &perms, &a.Tier, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, agent.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var grants []string
	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &grants); err != nil {
			return nil, fmt.Errorf("decode permissions for %s: %w", a.ID, err)
		}
	}
	a.Permissions = agent.NewPermissionSet(grants)
	return &a, nil
}

// --- persona.Store ---

func (s *Store) GetCurrentPersona(ctx context.Context, agentID string) (*persona.HistoryEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		select h.id, h.agent_id, h.version, h.content_hash, h.document, h.changed_at
		from persona_current c
		join persona_history h on h.id = c.entry_id
		where c.agent_id = $1
	`, agentID)
	return scanPersonaEntry(row)
}

// AppendPersonaVersion performs the conditional append in one transaction.
// The history row goes in first so that persona_current's entry_id foreign
// key can see it; then a single conditional write against persona_current
// keyed by agent_id and the expected prior version decides the race. On
// conflict the rollback discards the orphan history row. Of two concurrent
// updates for the same agent exactly one sees its expected version; the
// other gets ErrVersionConflict.
func (s *Store) AppendPersonaVersion(ctx context.Context, agentID string, entry *persona.HistoryEntry, expectedPriorVersion string) error {
	doc, err := json.Marshal(entry.Document)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into persona_history (id, agent_id, version, content_hash, document, changed_at)
		values ($1,$2,$3,$4,$5,$6)
	`, entry.ID, agentID, entry.Version, entry.ContentHash, doc, entry.ChangedAt); err != nil {
		return err
	}

	if expectedPriorVersion == "" {
		res, err := tx.ExecContext(ctx, `
			insert into persona_current (agent_id, version, entry_id)
			values ($1, $2, $3)
			on conflict (agent_id) do nothing
		`, agentID, entry.Version, entry.ID)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return persona.ErrAlreadyExists
		}
	} else {
		res, err := tx.ExecContext(ctx, `
			update persona_current
			set version=$3, entry_id=$4
			where agent_id=$1 and version=$2
		`, agentID, expectedPriorVersion, entry.Version, entry.ID)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			// Distinguish a missing persona from a stale read.
			var exists bool
			if err := tx.QueryRowContext(ctx, `select exists(select 1 from persona_current where agent_id=$1)`, agentID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return persona.ErrNotFound
			}
			return persona.ErrVersionConflict
		}
	}

	return tx.Commit()
}

func (s *Store) ListPersonaHistory(ctx context.Context, agentID string, limit, offset int) ([]persona.HistoryEntry, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from persona_history where agent_id=$1`, agentID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		select id, agent_id, version, content_hash, document, changed_at
		from persona_history
		where agent_id=$1
		order by seq desc
		limit $2 offset $3
	`, agentID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []persona.HistoryEntry
	for rows.Next() {
		entry, err := scanPersonaEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *entry)
	}
	return out, total, rows.Err()
}

func scanPersonaEntry(row rowScanner) (*persona.HistoryEntry, error) {
	var (
		entry persona.HistoryEntry
		doc   []byte
	)
	err := row.Scan(&entry.ID, &entry.AgentID, &entry.Version, &entry.ContentHash, &doc, &entry.ChangedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persona.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(doc, &entry.Document); err != nil {
		return nil, fmt.Errorf("decode persona document %s: %w", entry.ID, err)
	}
	return &entry, nil
}

// --- activity.Store ---

func (s *Store) AppendActivity(ctx context.Context, e *activity.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		insert into activity_log (id, agent_id, ts, ip_address, status, message)
		values ($1,$2,$3,$4,$5,$6)
	`, e.ID, e.AgentID, e.Timestamp, e.IPAddress, e.Status, e.Message)
	return err
}

func (s *Store) ListActivity(ctx context.Context, agentID string, limit, offset int) ([]activity.Entry, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from activity_log where agent_id=$1`, agentID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		select id, agent_id, ts, ip_address, status, message
		from activity_log
		where agent_id=$1
		order by seq desc
		limit $2 offset $3
	`, agentID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []activity.Entry
	for rows.Next() {
		var e activity.Entry
		if err := rows.Scan(&e.ID, &e.AgentID, &e.Timestamp, &e.IPAddress, &e.Status, &e.Message); err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// --- webhook.Store ---

func (s *Store) CreateWebhook(ctx context.Context, w *webhook.Webhook) error {
	events, err := json.Marshal(w.Events)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into webhooks (id, agent_id, url, events, secret, created_at)
		values ($1,$2,$3,$4,$5,$6)
	`, w.ID, w.AgentID, w.URL, events, w.Secret, w.CreatedAt)
	return err
}

func (s *Store) GetWebhook(ctx context.Context, id string) (*webhook.Webhook, error) {
	var (
		w      webhook.Webhook
		events []byte
	)
	err := s.db.QueryRowContext(ctx, `
		select id, agent_id, url, events, secret, created_at from webhooks where id=$1
	`, id).Scan(&w.ID, &w.AgentID, &w.URL, &events, &w.Secret, &w.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, webhook.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(events, &w.Events); err != nil {
		return nil, fmt.Errorf("decode webhook events %s: %w", w.ID, err)
	}
	return &w, nil
}

func (s *Store) ListWebhooks(ctx context.Context, agentID string) ([]*webhook.Webhook, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, agent_id, url, events, secret, created_at
		from webhooks
		where agent_id=$1
		order by created_at
	`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*webhook.Webhook
	for rows.Next() {
		var (
			w      webhook.Webhook
			events []byte
		)
		if err := rows.Scan(&w.ID, &w.AgentID, &w.URL, &events, &w.Secret, &w.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(events, &w.Events); err != nil {
			return nil, fmt.Errorf("decode webhook events %s: %w", w.ID, err)
		}
		out = append(out, &w)
	}
	return out, rows.Err()
}

func (s *Store) UpdateWebhook(ctx context.Context, w *webhook.Webhook) error {
	events, err := json.Marshal(w.Events)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update webhooks set url=$2, events=$3, secret=$4 where id=$1
	`, w.ID, w.URL, events, w.Secret)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return webhook.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteWebhook(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from webhooks where id=$1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return webhook.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
