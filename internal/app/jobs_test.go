package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/insuralink/policy-service/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// errorLedger fails every call.
type errorLedger struct{}

func (errorLedger) BalanceOf(ctx context.Context, account string) (int64, error) {
	return 0, errors.New("ledger unavailable")
}

func (errorLedger) Transfer(ctx context.Context, from, to string, amount int64, memo string) error {
	return errors.New("ledger unavailable")
}

func (errorLedger) TransferFrom(ctx context.Context, owner, to string, amount int64, memo string) error {
	return errors.New("ledger unavailable")
}

func TestReconcileEscrow_BalancesMatch(t *testing.T) {
	repo := newFakeRepo()
	ledger := newFakeLedger()
	ledger.balances[testEscrow] = 50
	repo.journal = append(repo.journal, domain.EscrowEntry{Direction: domain.EscrowDirectionPull, Party: testSeller, Amount: 50})

	jobs := NewJobs(repo, ledger, testEscrow, discardLogger())
	journalBalance, ledgerBalance, err := jobs.reconcileEscrow(context.Background())
	if err != nil {
		t.Fatalf("reconcileEscrow returned error: %v", err)
	}
	if journalBalance != 50 || ledgerBalance != 50 {
		t.Fatalf("expected 50/50, got %d/%d", journalBalance, ledgerBalance)
	}
}

func TestReconcileEscrow_ReportsDrift(t *testing.T) {
	repo := newFakeRepo()
	ledger := newFakeLedger()
	// Journal says custody holds 50, the ledger says 30: something moved
	// outside this service.
	ledger.balances[testEscrow] = 30
	repo.journal = append(repo.journal, domain.EscrowEntry{Direction: domain.EscrowDirectionPull, Party: testSeller, Amount: 50})

	jobs := NewJobs(repo, ledger, testEscrow, discardLogger())
	journalBalance, ledgerBalance, err := jobs.reconcileEscrow(context.Background())
	if err != nil {
		t.Fatalf("reconcileEscrow returned error: %v", err)
	}
	if journalBalance == ledgerBalance {
		t.Fatal("expected drift between journal and ledger balances")
	}
	if journalBalance != 50 || ledgerBalance != 30 {
		t.Fatalf("expected 50/30, got %d/%d", journalBalance, ledgerBalance)
	}
}

func TestReconcileEscrow_LedgerFailure(t *testing.T) {
	repo := newFakeRepo()
	jobs := NewJobs(repo, errorLedger{}, testEscrow, discardLogger())
	if _, _, err := jobs.reconcileEscrow(context.Background()); err == nil {
		t.Fatal("expected error when the ledger is unavailable")
	}

	// The wrapper must swallow the failure rather than panic.
	jobs.ReconcileEscrow()
}

func TestReconcileEscrow_ForwardsAreCustodyNeutral(t *testing.T) {
	repo := newFakeRepo()
	ledger := newFakeLedger()
	repo.journal = append(repo.journal,
		domain.EscrowEntry{Direction: domain.EscrowDirectionPull, Party: testSeller, Amount: 50},
		domain.EscrowEntry{Direction: domain.EscrowDirectionForward, Party: testBuyer, Amount: 5},
		domain.EscrowEntry{Direction: domain.EscrowDirectionPush, Party: testBuyer, Amount: 50},
	)
	ledger.balances[testEscrow] = 0

	jobs := NewJobs(repo, ledger, testEscrow, discardLogger())
	journalBalance, ledgerBalance, err := jobs.reconcileEscrow(context.Background())
	if err != nil {
		t.Fatalf("reconcileEscrow returned error: %v", err)
	}
	if journalBalance != 0 || ledgerBalance != 0 {
		t.Fatalf("expected 0/0, got %d/%d", journalBalance, ledgerBalance)
	}
}
