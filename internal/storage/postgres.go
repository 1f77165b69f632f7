package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prepview/interview-ai-platform/internal/evaluation"
	"github.com/prepview/interview-ai-platform/internal/session"
	"github.com/prepview/interview-ai-platform/internal/tokens"
)

// pgxQuerier is the subset of pgxpool.Pool the store uses. Tests substitute
// a pgxmock pool.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ pgxQuerier = (*pgxpool.Pool)(nil)

// PostgresStore persists sessions, turns, token usage, and evaluation
// reports. One store serves all three persistence interfaces so a single
// pool handles the whole pipeline. Database faults surface as
// *session.DataStoreError; missing rows as session.ErrNotFound.
type PostgresStore struct {
	db pgxQuerier
}

// NewPostgresStore builds a Postgres-backed store.
func NewPostgresStore(db pgxQuerier) *PostgresStore {
	if db == nil {
		panic("storage: pgx pool cannot be nil")
	}
	return &PostgresStore{db: db}
}

var _ session.Repository = (*PostgresStore)(nil)
var _ tokens.Store = (*PostgresStore)(nil)
var _ evaluation.Store = (*PostgresStore)(nil)

// SaveSession inserts or updates a session row. Configuration is stored as
// JSONB so mode and background changes never need a schema migration.
func (s *PostgresStore) SaveSession(ctx context.Context, sess *session.Session) error {
	if sess == nil {
		return errors.New("storage: session cannot be nil")
	}
	cfgJSON, err := json.Marshal(sess.Config)
	if err != nil {
		return fmt.Errorf("storage: failed to encode session config: %w", err)
	}

	if _, execErr := s.db.Exec(ctx, `
		INSERT INTO sessions (id, user_id, status, config, created_at, started_at, ended_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    config = EXCLUDED.config,
		    started_at = EXCLUDED.started_at,
		    ended_at = EXCLUDED.ended_at
	`, sess.ID, sess.UserID, string(sess.Status), cfgJSON, sess.CreatedAt, sess.StartedAt, sess.EndedAt); execErr != nil {
		return &session.DataStoreError{Op: "save session", Err: execErr}
	}
	return nil
}

// GetSession loads one session by id.
func (s *PostgresStore) GetSession(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, status, config, created_at, started_at, ended_at
		FROM sessions
		WHERE id = $1
	`, id)
	return scanSession(row)
}

// ListSessions returns sessions newest first, optionally scoped to a user.
func (s *PostgresStore) ListSessions(ctx context.Context, filter session.ListFilter) ([]*session.Session, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var (
		rows pgx.Rows
		err  error
	)
	if filter.UserID != "" {
		rows, err = s.db.Query(ctx, `
			SELECT id, user_id, status, config, created_at, started_at, ended_at
			FROM sessions
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3
		`, filter.UserID, limit, filter.Offset)
	} else {
		rows, err = s.db.Query(ctx, `
			SELECT id, user_id, status, config, created_at, started_at, ended_at
			FROM sessions
			ORDER BY created_at DESC
			LIMIT $1 OFFSET $2
		`, limit, filter.Offset)
	}
	if err != nil {
		return nil, &session.DataStoreError{Op: "list sessions", Err: err}
	}
	defer rows.Close()

	var sessions []*session.Session
	for rows.Next() {
		sess, scanErr := scanSession(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		sessions = append(sessions, sess)
	}
	if rows.Err() != nil {
		return nil, &session.DataStoreError{Op: "list sessions", Err: rows.Err()}
	}
	return sessions, nil
}

// AppendTurn inserts one transcript turn. The (session_id, seq) unique
// constraint rejects duplicate sequence numbers.
func (s *PostgresStore) AppendTurn(ctx context.Context, t *session.Turn) error {
	if t == nil {
		return errors.New("storage: turn cannot be nil")
	}
	if _, execErr := s.db.Exec(ctx, `
		INSERT INTO session_turns (id, session_id, seq, role, content, artifact_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, t.ID, t.SessionID, t.Seq, string(t.Role), t.Content, nullString(t.ArtifactID), t.CreatedAt); execErr != nil {
		return &session.DataStoreError{Op: "append turn", Err: execErr}
	}
	return nil
}

// GetTurns loads a session transcript in sequence order.
func (s *PostgresStore) GetTurns(ctx context.Context, sessionID uuid.UUID) ([]session.Turn, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, session_id, seq, role, content, artifact_id, created_at
		FROM session_turns
		WHERE session_id = $1
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, &session.DataStoreError{Op: "load turns", Err: err}
	}
	defer rows.Close()

	var turns []session.Turn
	for rows.Next() {
		var (
			t          session.Turn
			role       string
			artifactID pgtype.Text
		)
		if scanErr := rows.Scan(&t.ID, &t.SessionID, &t.Seq, &role, &t.Content, &artifactID, &t.CreatedAt); scanErr != nil {
			return nil, &session.DataStoreError{Op: "load turns", Err: scanErr}
		}
		t.Role = session.Role(role)
		if artifactID.Valid {
			t.ArtifactID = artifactID.String
		}
		turns = append(turns, t)
	}
	if rows.Err() != nil {
		return nil, &session.DataStoreError{Op: "load turns", Err: rows.Err()}
	}
	return turns, nil
}

// SaveUsage inserts one immutable token accounting entry.
func (s *PostgresStore) SaveUsage(ctx context.Context, rec *tokens.UsageRecord) error {
	if rec == nil {
		return errors.New("storage: usage record cannot be nil")
	}
	if _, execErr := s.db.Exec(ctx, `
		INSERT INTO token_usage (id, session_id, operation, provider, model,
			input_tokens, output_tokens, total_tokens, cost_usd, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, rec.ID, rec.SessionID, string(rec.Operation), rec.Provider, rec.Model,
		rec.InputTokens, rec.OutputTokens, rec.TotalTokens, rec.CostUSD, rec.CreatedAt); execErr != nil {
		return &session.DataStoreError{Op: "save usage record", Err: execErr}
	}
	return nil
}

// ListUsage loads all usage records for a session, oldest first.
func (s *PostgresStore) ListUsage(ctx context.Context, sessionID uuid.UUID) ([]tokens.UsageRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, session_id, operation, provider, model,
		       input_tokens, output_tokens, total_tokens, cost_usd, created_at
		FROM token_usage
		WHERE session_id = $1
		ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, &session.DataStoreError{Op: "load usage records", Err: err}
	}
	defer rows.Close()

	var records []tokens.UsageRecord
	for rows.Next() {
		var (
			rec tokens.UsageRecord
			op  string
		)
		if scanErr := rows.Scan(&rec.ID, &rec.SessionID, &op, &rec.Provider, &rec.Model,
			&rec.InputTokens, &rec.OutputTokens, &rec.TotalTokens, &rec.CostUSD, &rec.CreatedAt); scanErr != nil {
			return nil, &session.DataStoreError{Op: "load usage records", Err: scanErr}
		}
		rec.Operation = tokens.Operation(op)
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, &session.DataStoreError{Op: "load usage records", Err: rows.Err()}
	}
	return records, nil
}

// SaveReport upserts the evaluation report, one row per session.
// Regeneration overwrites rather than duplicating.
func (s *PostgresStore) SaveReport(ctx context.Context, r *evaluation.Report) error {
	if r == nil {
		return errors.New("storage: report cannot be nil")
	}
	reportJSON, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("storage: failed to encode report: %w", err)
	}
	if _, execErr := s.db.Exec(ctx, `
		INSERT INTO evaluation_reports (session_id, report, generated_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (session_id) DO UPDATE
		SET report = EXCLUDED.report,
		    generated_at = EXCLUDED.generated_at
	`, r.SessionID, reportJSON, r.GeneratedAt); execErr != nil {
		return &session.DataStoreError{Op: "save report", Err: execErr}
	}
	return nil
}

// GetReport loads the evaluation report for a session.
func (s *PostgresStore) GetReport(ctx context.Context, sessionID uuid.UUID) (*evaluation.Report, error) {
	var reportJSON []byte
	row := s.db.QueryRow(ctx, `
		SELECT report FROM evaluation_reports WHERE session_id = $1
	`, sessionID)
	if err := row.Scan(&reportJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, &session.DataStoreError{Op: "fetch report", Err: err}
	}
	var report evaluation.Report
	if err := json.Unmarshal(reportJSON, &report); err != nil {
		return nil, fmt.Errorf("storage: failed to decode report: %w", err)
	}
	return &report, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*session.Session, error) {
	var (
		sess      session.Session
		status    string
		cfgJSON   []byte
		startedAt pgtype.Timestamptz
		endedAt   pgtype.Timestamptz
	)
	if err := row.Scan(&sess.ID, &sess.UserID, &status, &cfgJSON, &sess.CreatedAt, &startedAt, &endedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, &session.DataStoreError{Op: "fetch session", Err: err}
	}
	sess.Status = session.Status(status)
	if err := json.Unmarshal(cfgJSON, &sess.Config); err != nil {
		return nil, fmt.Errorf("storage: failed to decode session config: %w", err)
	}
	if startedAt.Valid {
		t := startedAt.Time
		sess.StartedAt = &t
	}
	if endedAt.Valid {
		t := endedAt.Time
		sess.EndedAt = &t
	}
	return &sess, nil
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
