package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/pickpal/pickpal/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS searches (
	request_id  TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL DEFAULT '',
	query       TEXT NOT NULL,
	state       TEXT NOT NULL DEFAULT '',
	degraded    BOOLEAN NOT NULL DEFAULT FALSE,
	result      JSONB,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS session_answers (
	session_id TEXT PRIMARY KEY,
	answers    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_searches_session ON searches(session_id);
CREATE INDEX IF NOT EXISTS idx_searches_state ON searches(state);
CREATE INDEX IF NOT EXISTS idx_searches_created_at ON searches(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateSearch(ctx context.Context, rec *model.SearchRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO searches (request_id, session_id, query, state, degraded, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.RequestID, rec.SessionID, rec.Query, string(rec.State), rec.Degraded, createdAt,
	)
	return eris.Wrap(err, "postgres: create search")
}

func (s *PostgresStore) CompleteSearch(ctx context.Context, requestID string, state model.SearchState, degraded bool, result *model.Result, duration time.Duration) error {
	var resultJSON []byte
	if result != nil {
		var err error
		resultJSON, err = json.Marshal(result)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal result")
		}
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE searches SET state = $1, degraded = $2, result = $3, duration_ms = $4 WHERE request_id = $5`,
		string(state), degraded, resultJSON, duration.Milliseconds(), requestID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: complete search")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetSearch(ctx context.Context, requestID string) (*model.SearchRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT request_id, session_id, query, state, degraded, result, duration_ms, created_at
		 FROM searches WHERE request_id = $1`, requestID)
	return scanPgSearch(row)
}

func (s *PostgresStore) ListSearches(ctx context.Context, filter SearchFilter) ([]model.SearchRecord, error) {
	query := `SELECT request_id, session_id, query, state, degraded, result, duration_ms, created_at
	          FROM searches WHERE 1=1`
	var args []any
	if filter.SessionID != "" {
		args = append(args, filter.SessionID)
		query += fmt.Sprintf(" AND session_id = $%d", len(args))
	}
	if filter.State != "" {
		args = append(args, string(filter.State))
		query += fmt.Sprintf(" AND state = $%d", len(args))
	}
	query += " ORDER BY created_at DESC, request_id ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list searches")
	}
	defer rows.Close()

	var out []model.SearchRecord
	for rows.Next() {
		rec, err := scanPgSearch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate searches")
}

func (s *PostgresStore) GetSessionAnswers(ctx context.Context, sessionID string) (map[string]string, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT answers FROM session_answers WHERE session_id = $1`, sessionID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get session answers")
	}

	answers := make(map[string]string)
	if err := json.Unmarshal(raw, &answers); err != nil {
		return nil, eris.Wrap(err, "postgres: decode session answers")
	}
	return answers, nil
}

func (s *PostgresStore) PutSessionAnswers(ctx context.Context, sessionID string, answers map[string]string) error {
	data, err := json.Marshal(answers)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal session answers")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO session_answers (session_id, answers, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (session_id) DO UPDATE
		 SET answers = session_answers.answers || EXCLUDED.answers, updated_at = EXCLUDED.updated_at`,
		sessionID, data,
	)
	return eris.Wrap(err, "postgres: put session answers")
}

func scanPgSearch(row pgx.Row) (*model.SearchRecord, error) {
	var (
		rec        model.SearchRecord
		state      string
		resultJSON []byte
	)
	err := row.Scan(&rec.RequestID, &rec.SessionID, &rec.Query, &state, &rec.Degraded, &resultJSON, &rec.DurationMs, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan search")
	}

	rec.State = model.SearchState(state)
	if len(resultJSON) > 0 {
		var result model.Result
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, eris.Wrap(err, "postgres: decode result")
		}
		rec.Result = &result
	}
	return &rec, nil
}
