package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
	"github.com/kirillkom/doc-lifecycle/internal/core/ports"
)

// LedgerSweeper reports pending records that never reached finalize. It does
// not retry finalize; an operator decides what happens to each candidate.
type LedgerSweeper struct {
	ledger     ports.CommitLedger
	staleAfter time.Duration
	limit      int
	logger     *slog.Logger
	now        func() time.Time
}

func NewLedgerSweeper(ledger ports.CommitLedger, staleAfter time.Duration) *LedgerSweeper {
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	return &LedgerSweeper{
		ledger:     ledger,
		staleAfter: staleAfter,
		limit:      500,
		logger:     slog.Default(),
		now:        time.Now,
	}
}

func (s *LedgerSweeper) WithLogger(logger *slog.Logger) *LedgerSweeper {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Sweep returns the number of orphan candidates per ledger state.
func (s *LedgerSweeper) Sweep(ctx context.Context) (map[domain.LedgerState]int, error) {
	cutoff := s.now().Add(-s.staleAfter)
	entries, err := s.ledger.ListUnfinalized(ctx, cutoff, s.limit)
	if err != nil {
		return nil, fmt.Errorf("list unfinalized uploads: %w", err)
	}

	counts := map[domain.LedgerState]int{
		domain.LedgerInFlight:       0,
		domain.LedgerFinalizeFailed: 0,
	}
	for _, entry := range entries {
		counts[entry.State]++
		s.logger.Warn("ledger_orphan_candidate",
			"document_id", entry.DocumentID,
			"org_id", entry.OrgID,
			"storage_key", entry.StorageKey,
			"state", entry.State,
			"error", entry.Error,
			"age", s.now().Sub(entry.UpdatedAt).Round(time.Second).String(),
		)
	}
	return counts, nil
}
