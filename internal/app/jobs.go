/**
 * @description
 * Scheduled job implementations for the policy-service. The only job is
 * escrow reconciliation: a read-only comparison of the custodial balance the
 * escrow journal implies against the balance the external ledger reports for
 * the escrow account. Drift means a movement happened outside this service
 * (or a journal write was lost) and needs operator attention. The job never
 * mutates state; expiry and triggers stay caller-driven.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/insuralink/policy-service/internal/store"
)

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	repo          store.Repository
	ledger        Ledger
	escrowAccount string
	logger        *slog.Logger
}

// NewJobs creates a new Jobs runner.
func NewJobs(repo store.Repository, ledger Ledger, escrowAccount string, logger *slog.Logger) *Jobs {
	return &Jobs{
		repo:          repo,
		ledger:        ledger,
		escrowAccount: escrowAccount,
		logger:        logger,
	}
}

// ReconcileEscrow runs one reconciliation pass.
func (j *Jobs) ReconcileEscrow() {
	j.logger.Info("starting escrow reconciliation job")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	journalBalance, ledgerBalance, err := j.reconcileEscrow(ctx)
	if err != nil {
		j.logger.Error("escrow reconciliation failed", "error", err)
		return
	}

	if journalBalance != ledgerBalance {
		j.logger.Error("escrow drift detected",
			"journal_balance", journalBalance,
			"ledger_balance", ledgerBalance,
			"drift", ledgerBalance-journalBalance,
		)
		return
	}
	j.logger.Info("escrow reconciliation finished", "balance", journalBalance)
}

// reconcileEscrow fetches both views of the custodial balance.
func (j *Jobs) reconcileEscrow(ctx context.Context) (journalBalance, ledgerBalance int64, err error) {
	journalBalance, err = j.repo.EscrowJournalBalance(ctx)
	if err != nil {
		return 0, 0, err
	}
	ledgerBalance, err = j.ledger.BalanceOf(ctx, j.escrowAccount)
	if err != nil {
		return 0, 0, err
	}
	return journalBalance, ledgerBalance, nil
}
