package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
)

// LedgerRepository stores the commit ledger: one row per pending record
// created by an upload, until finalize succeeds or fails.
type LedgerRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *LedgerRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS upload_ledger (
	document_id TEXT PRIMARY KEY,
	org_id TEXT NOT NULL,
	storage_key TEXT NOT NULL,
	filename TEXT NOT NULL,
	state TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_upload_ledger_state_updated ON upload_ledger(state, updated_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *LedgerRepository) RecordInFlight(ctx context.Context, entry domain.LedgerEntry) error {
	if entry.DocumentID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "record in-flight upload", errors.New("document id is required"))
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO upload_ledger (
	document_id, org_id, storage_key, filename, state, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,'',$6,$6)
ON CONFLICT (document_id) DO UPDATE
SET state = EXCLUDED.state, error_message = '', updated_at = EXCLUDED.updated_at
`,
		entry.DocumentID, entry.OrgID, entry.StorageKey, entry.Filename, string(domain.LedgerInFlight), createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

func (r *LedgerRepository) MarkFinalized(ctx context.Context, documentID string) error {
	return r.updateState(ctx, documentID, domain.LedgerFinalized, "")
}

func (r *LedgerRepository) MarkFinalizeFailed(ctx context.Context, documentID, reason string) error {
	return r.updateState(ctx, documentID, domain.LedgerFinalizeFailed, reason)
}

func (r *LedgerRepository) updateState(ctx context.Context, documentID string, state domain.LedgerState, reason string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE upload_ledger
SET state = $2, error_message = $3, updated_at = $4
WHERE document_id = $1
`, documentID, string(state), reason, r.now())
	if err != nil {
		return fmt.Errorf("update ledger state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ledger rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "update ledger state", fmt.Errorf("ledger entry %s", documentID))
	}
	return nil
}

// ListUnfinalized returns in-flight and finalize-failed rows last touched
// before olderThan, oldest first.
func (r *LedgerRepository) ListUnfinalized(ctx context.Context, olderThan time.Time, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT document_id, org_id, storage_key, filename, state, error_message, created_at, updated_at
FROM upload_ledger
WHERE state IN ($1, $2) AND updated_at < $3
ORDER BY updated_at ASC
LIMIT $4
`, string(domain.LedgerInFlight), string(domain.LedgerFinalizeFailed), olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("query unfinalized ledger: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.LedgerEntry, 0)
	for rows.Next() {
		var entry domain.LedgerEntry
		var state string
		if err := rows.Scan(
			&entry.DocumentID, &entry.OrgID, &entry.StorageKey, &entry.Filename,
			&state, &entry.Error, &entry.CreatedAt, &entry.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entry.State = domain.LedgerState(state)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return entries, nil
}
