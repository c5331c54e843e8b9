package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/resume-screener/internal/core/domain"
)

// DecisionRepository persists reviewer decisions and the custom shortlist
// ordering.
type DecisionRepository struct {
	db *sql.DB
}

func NewDecisionRepository(db *sql.DB) *DecisionRepository {
	return &DecisionRepository{db: db}
}

func (r *DecisionRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082902)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS decisions (
	candidate_id TEXT NOT NULL,
	decision TEXT NOT NULL,
	decided_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (candidate_id, decision)
);

CREATE TABLE IF NOT EXISTS shortlist_order (
	position INT PRIMARY KEY,
	candidate_id TEXT NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DecisionRepository) Record(ctx context.Context, rec domain.DecisionRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO decisions (candidate_id, decision, decided_at)
VALUES ($1, $2, $3)
ON CONFLICT (candidate_id, decision) DO NOTHING
`, rec.CandidateID, string(rec.Decision), rec.DecidedAt)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

func (r *DecisionRepository) Remove(ctx context.Context, candidateID string, decision domain.Decision) error {
	_, err := r.db.ExecContext(ctx, `
DELETE FROM decisions WHERE candidate_id = $1 AND decision = $2
`, candidateID, string(decision))
	if err != nil {
		return fmt.Errorf("delete decision: %w", err)
	}
	return nil
}

func (r *DecisionRepository) List(ctx context.Context, decision domain.Decision) ([]domain.DecisionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT candidate_id, decision, decided_at
FROM decisions
WHERE decision = $1
ORDER BY decided_at ASC
`, string(decision))
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var records []domain.DecisionRecord
	for rows.Next() {
		var rec domain.DecisionRecord
		var d string
		if err := rows.Scan(&rec.CandidateID, &d, &rec.DecidedAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		rec.Decision = domain.Decision(d)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return records, nil
}

func (r *DecisionRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM decisions`); err != nil {
		return fmt.Errorf("clear decisions: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM shortlist_order`); err != nil {
		return fmt.Errorf("clear shortlist order: %w", err)
	}
	return nil
}

// SetOrder replaces the shortlist ordering atomically.
func (r *DecisionRepository) SetOrder(ctx context.Context, orderedIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin order tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM shortlist_order`); err != nil {
		return fmt.Errorf("clear shortlist order: %w", err)
	}
	for i, id := range orderedIDs {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO shortlist_order (position, candidate_id) VALUES ($1, $2)
`, i, id); err != nil {
			return fmt.Errorf("insert shortlist position: %w", err)
		}
	}
	return tx.Commit()
}

func (r *DecisionRepository) Order(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT candidate_id FROM shortlist_order ORDER BY position ASC
`)
	if err != nil {
		return nil, fmt.Errorf("query shortlist order: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan shortlist position: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shortlist order: %w", err)
	}
	return ids, nil
}
