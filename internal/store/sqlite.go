package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/pickpal/pickpal/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS searches (
	request_id  TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL DEFAULT '',
	query       TEXT NOT NULL,
	state       TEXT NOT NULL DEFAULT '',
	degraded    INTEGER NOT NULL DEFAULT 0,
	result      TEXT,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS session_answers (
	session_id TEXT PRIMARY KEY,
	answers    TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_searches_session ON searches(session_id);
CREATE INDEX IF NOT EXISTS idx_searches_state ON searches(state);
CREATE INDEX IF NOT EXISTS idx_searches_created_at ON searches(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateSearch(ctx context.Context, rec *model.SearchRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO searches (request_id, session_id, query, state, degraded, result, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, NULL, 0, ?)`,
		rec.RequestID, rec.SessionID, rec.Query, string(rec.State), boolToInt(rec.Degraded), createdAt,
	)
	return eris.Wrap(err, "sqlite: create search")
}

func (s *SQLiteStore) CompleteSearch(ctx context.Context, requestID string, state model.SearchState, degraded bool, result *model.Result, duration time.Duration) error {
	var resultJSON any
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal result")
		}
		resultJSON = string(data)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE searches SET state = ?, degraded = ?, result = ?, duration_ms = ? WHERE request_id = ?`,
		string(state), boolToInt(degraded), resultJSON, duration.Milliseconds(), requestID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: complete search")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) GetSearch(ctx context.Context, requestID string) (*model.SearchRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT request_id, session_id, query, state, degraded, result, duration_ms, created_at
		 FROM searches WHERE request_id = ?`, requestID)
	return scanSearch(row)
}

func (s *SQLiteStore) ListSearches(ctx context.Context, filter SearchFilter) ([]model.SearchRecord, error) {
	query := `SELECT request_id, session_id, query, state, degraded, result, duration_ms, created_at
	          FROM searches WHERE 1=1`
	var args []any
	if filter.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, filter.SessionID)
	}
	if filter.State != "" {
		query += " AND state = ?"
		args = append(args, string(filter.State))
	}
	query += " ORDER BY created_at DESC, request_id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list searches")
	}
	defer rows.Close()

	var out []model.SearchRecord
	for rows.Next() {
		rec, err := scanSearch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate searches")
}

func (s *SQLiteStore) GetSessionAnswers(ctx context.Context, sessionID string) (map[string]string, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT answers FROM session_answers WHERE session_id = ?`, sessionID).Scan(&raw)
	if err == sql.ErrNoRows {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get session answers")
	}

	answers := make(map[string]string)
	if err := json.Unmarshal([]byte(raw), &answers); err != nil {
		return nil, eris.Wrap(err, "sqlite: decode session answers")
	}
	return answers, nil
}

func (s *SQLiteStore) PutSessionAnswers(ctx context.Context, sessionID string, answers map[string]string) error {
	existing, err := s.GetSessionAnswers(ctx, sessionID)
	if err != nil {
		return err
	}
	for k, v := range answers {
		existing[k] = v
	}
	data, err := json.Marshal(existing)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal session answers")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO session_answers (session_id, answers, updated_at) VALUES (?, ?, datetime('now'))
		 ON CONFLICT(session_id) DO UPDATE SET answers = excluded.answers, updated_at = excluded.updated_at`,
		sessionID, string(data),
	)
	return eris.Wrap(err, "sqlite: put session answers")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSearch(row rowScanner) (*model.SearchRecord, error) {
	var (
		rec        model.SearchRecord
		state      string
		degraded   int
		resultJSON sql.NullString
	)
	err := row.Scan(&rec.RequestID, &rec.SessionID, &rec.Query, &state, &degraded, &resultJSON, &rec.DurationMs, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan search")
	}

	rec.State = model.SearchState(state)
	rec.Degraded = degraded != 0
	if resultJSON.Valid && resultJSON.String != "" {
		var result model.Result
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return nil, eris.Wrap(err, "sqlite: decode result")
		}
		rec.Result = &result
	}
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
