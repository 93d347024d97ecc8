package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/ekaya-askdata/pkg/models"
)

// PgxConn is the subset of pgxpool.Pool used by PostgresSessionStore.
type PgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresSessionStore persists sessions as JSONB rows in ekaya_askdata_sessions.
type PostgresSessionStore struct {
	conn PgxConn
}

// NewPostgresSessionStore creates a store backed by the given pool.
func NewPostgresSessionStore(conn PgxConn) *PostgresSessionStore {
	return &PostgresSessionStore{conn: conn}
}

func (s *PostgresSessionStore) Load(ctx context.Context, threadID string) (*models.SessionState, error) {
	query := `SELECT state FROM ekaya_askdata_sessions WHERE thread_id = $1`

	var raw []byte
	err := s.conn.QueryRow(ctx, query, threadID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var state models.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &state, nil
}

func (s *PostgresSessionStore) Save(ctx context.Context, threadID string, state *models.SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	query := `
		INSERT INTO ekaya_askdata_sessions (thread_id, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (thread_id) DO UPDATE
		SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`

	if _, err := s.conn.Exec(ctx, query, threadID, raw); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *PostgresSessionStore) Delete(ctx context.Context, threadID string) error {
	if _, err := s.conn.Exec(ctx, `DELETE FROM ekaya_askdata_sessions WHERE thread_id = $1`, threadID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

var _ SessionStore = (*PostgresSessionStore)(nil)
