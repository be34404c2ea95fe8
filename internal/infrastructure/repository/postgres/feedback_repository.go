package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
	"github.com/kirillkom/legal-rag-assistant/internal/infrastructure/resilience"
)

const schemaLockID = int64(2026101901)

type FeedbackRepository struct {
	db       *sql.DB
	executor *resilience.Executor
}

// NewFeedbackRepository wraps writes with executor when it is non-nil.
func NewFeedbackRepository(db *sql.DB, executor *resilience.Executor) *FeedbackRepository {
	return &FeedbackRepository{db: db, executor: executor}
}

func (r *FeedbackRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS chat_feedback (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	query TEXT NOT NULL,
	reply TEXT NOT NULL,
	useful BOOLEAN NOT NULL,
	raw_answer TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_feedback_session ON chat_feedback(session_id, created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// SaveFeedback is idempotent on the feedback id so redelivered events are harmless.
func (r *FeedbackRepository) SaveFeedback(ctx context.Context, fb domain.Feedback) error {
	if strings.TrimSpace(fb.ID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "save feedback", fmt.Errorf("id is required"))
	}

	call := func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, `
INSERT INTO chat_feedback (id, session_id, query, reply, useful, raw_answer, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING
`, fb.ID, fb.SessionID, fb.Query, fb.Reply, fb.Useful, fb.Raw, fb.CreatedAt)
		if err != nil {
			return classifySQLError("save feedback", err)
		}
		return nil
	}

	if r.executor != nil {
		return r.executor.Execute(ctx, "postgres.save_feedback", call, resilience.ClassifyDomainError)
	}
	return call(ctx)
}

// RecordFeedback lets the repository act as a feedback sink.
func (r *FeedbackRepository) RecordFeedback(ctx context.Context, fb domain.Feedback) error {
	return r.SaveFeedback(ctx, fb)
}

// ListFeedback returns the latest records of a session (all sessions when
// sessionID is empty) in chronological order.
func (r *FeedbackRepository) ListFeedback(ctx context.Context, sessionID string, limit int) ([]domain.Feedback, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, session_id, query, reply, useful, raw_answer, created_at
FROM chat_feedback
WHERE ($1 = '' OR session_id = $1)
ORDER BY created_at DESC
LIMIT $2
`, sessionID, limit)
	if err != nil {
		return nil, classifySQLError("list feedback", err)
	}
	defer rows.Close()

	out := make([]domain.Feedback, 0, limit)
	for rows.Next() {
		var fb domain.Feedback
		if err := rows.Scan(&fb.ID, &fb.SessionID, &fb.Query, &fb.Reply, &fb.Useful, &fb.Raw, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		out = append(out, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback: %w", err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func classifySQLError(op string, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone):
		return domain.WrapError(domain.ErrTemporary, op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
