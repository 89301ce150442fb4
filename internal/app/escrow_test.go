package app

import (
	"context"
	"errors"
	"testing"

	"github.com/insuralink/policy-service/internal/domain"
)

func newTestEscrow(t *testing.T) (*EscrowAdapter, *fakeRepo, *fakeLedger) {
	t.Helper()
	repo := newFakeRepo()
	ledger := newFakeLedger()
	return NewEscrowAdapter(ledger, repo, testEscrow), repo, ledger
}

func TestEscrowAdapter_PullJournalsEntry(t *testing.T) {
	adapter, repo, ledger := newTestEscrow(t)
	fundParty(ledger, testSeller, 50, 50)

	templateID := int64(7)
	if err := adapter.Pull(context.Background(), testSeller, 50, MovementRef{TemplateID: &templateID, Memo: "template funding"}); err != nil {
		t.Fatalf("Pull returned error: %v", err)
	}

	if ledger.balances[testEscrow] != 50 {
		t.Fatalf("expected escrow balance 50, got %d", ledger.balances[testEscrow])
	}
	if len(repo.journal) != 1 {
		t.Fatalf("expected 1 journal entry, got %d", len(repo.journal))
	}
	entry := repo.journal[0]
	if entry.Direction != domain.EscrowDirectionPull || entry.Party != testSeller || entry.Amount != 50 {
		t.Fatalf("unexpected journal entry %+v", entry)
	}
	if entry.TemplateID == nil || *entry.TemplateID != 7 {
		t.Fatalf("expected template reference 7, got %v", entry.TemplateID)
	}

	balance, err := repo.EscrowJournalBalance(context.Background())
	if err != nil {
		t.Fatalf("EscrowJournalBalance returned error: %v", err)
	}
	if balance != 50 {
		t.Fatalf("expected journal balance 50, got %d", balance)
	}
}

func TestEscrowAdapter_PushJournalsEntry(t *testing.T) {
	adapter, repo, ledger := newTestEscrow(t)
	ledger.balances[testEscrow] = 50

	if err := adapter.Push(context.Background(), testBuyer, 50, MovementRef{Memo: "insurance payout"}); err != nil {
		t.Fatalf("Push returned error: %v", err)
	}

	if ledger.balances[testBuyer] != 50 || ledger.balances[testEscrow] != 0 {
		t.Fatalf("expected buyer=50 escrow=0, got buyer=%d escrow=%d", ledger.balances[testBuyer], ledger.balances[testEscrow])
	}
	if len(repo.journal) != 1 || repo.journal[0].Direction != domain.EscrowDirectionPush {
		t.Fatalf("expected a single push journal entry, got %+v", repo.journal)
	}

	balance, err := repo.EscrowJournalBalance(context.Background())
	if err != nil {
		t.Fatalf("EscrowJournalBalance returned error: %v", err)
	}
	if balance != -50 {
		t.Fatalf("expected journal balance -50, got %d", balance)
	}
}

func TestEscrowAdapter_ForwardBypassesCustody(t *testing.T) {
	adapter, repo, ledger := newTestEscrow(t)
	fundParty(ledger, testBuyer, 50, 50)

	if err := adapter.Forward(context.Background(), testBuyer, testSeller, 5, MovementRef{Memo: "premium"}); err != nil {
		t.Fatalf("Forward returned error: %v", err)
	}

	if ledger.balances[testEscrow] != 0 {
		t.Fatalf("expected escrow untouched, got %d", ledger.balances[testEscrow])
	}
	if ledger.balances[testSeller] != 5 || ledger.balances[testBuyer] != 45 {
		t.Fatalf("unexpected balances seller=%d buyer=%d", ledger.balances[testSeller], ledger.balances[testBuyer])
	}

	if len(repo.journal) != 1 {
		t.Fatalf("expected 1 journal entry, got %d", len(repo.journal))
	}
	entry := repo.journal[0]
	if entry.Direction != domain.EscrowDirectionForward {
		t.Fatalf("expected forward entry, got %q", entry.Direction)
	}
	if entry.Counterparty == nil || *entry.Counterparty != testSeller {
		t.Fatalf("expected counterparty %q, got %v", testSeller, entry.Counterparty)
	}

	// Forwards are custody-neutral and must not affect the journal balance.
	balance, err := repo.EscrowJournalBalance(context.Background())
	if err != nil {
		t.Fatalf("EscrowJournalBalance returned error: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected journal balance 0, got %d", balance)
	}
}

func TestEscrowAdapter_MapsLedgerRejections(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*fakeLedger)
		moveFn  func(*EscrowAdapter) error
		wantErr error
	}{
		{
			name:  "pull without allowance",
			setup: func(l *fakeLedger) { fundParty(l, testSeller, 100, 0) },
			moveFn: func(a *EscrowAdapter) error {
				return a.Pull(context.Background(), testSeller, 50, MovementRef{})
			},
			wantErr: ErrInsufficientAllowance,
		},
		{
			name:  "pull without funds",
			setup: func(l *fakeLedger) { fundParty(l, testSeller, 10, 100) },
			moveFn: func(a *EscrowAdapter) error {
				return a.Pull(context.Background(), testSeller, 50, MovementRef{})
			},
			wantErr: ErrInsufficientFunds,
		},
		{
			name:  "push from underfunded custody",
			setup: func(l *fakeLedger) { l.balances[testEscrow] = 10 },
			moveFn: func(a *EscrowAdapter) error {
				return a.Push(context.Background(), testBuyer, 50, MovementRef{})
			},
			wantErr: ErrInsufficientEscrow,
		},
		{
			name:  "forward without allowance",
			setup: func(l *fakeLedger) { fundParty(l, testBuyer, 100, 0) },
			moveFn: func(a *EscrowAdapter) error {
				return a.Forward(context.Background(), testBuyer, testSeller, 5, MovementRef{})
			},
			wantErr: ErrInsufficientAllowance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, repo, ledger := newTestEscrow(t)
			tt.setup(ledger)

			if err := tt.moveFn(adapter); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			// A rejected movement must not be journaled.
			if len(repo.journal) != 0 {
				t.Fatalf("expected empty journal after rejection, got %d entries", len(repo.journal))
			}
		})
	}
}

func TestMapLedgerError_PassesThroughUnknownErrors(t *testing.T) {
	plain := errors.New("connection refused")
	if got := mapLedgerError(plain, false); !errors.Is(got, plain) {
		t.Fatalf("expected the original error back, got %v", got)
	}
}
