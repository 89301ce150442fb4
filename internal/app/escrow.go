/**
 * @description
 * This file implements the escrow ledger adapter: a thin wrapper around the
 * external value-transfer ledger that performs the three movements the
 * policy-service needs and records each one in the escrow journal.
 *
 *   - Pull:    party -> custodial escrow account (allowance-based)
 *   - Push:    custodial escrow account -> party
 *   - Forward: payer -> payee directly (allowance-based; premiums never
 *              transit the custodial account)
 *
 * Ledger rejections are mapped onto the adapter's sentinel errors so the
 * service layer can reason about failure kinds without knowing the wire
 * format of the ledger API.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - pkg/ledgerclient: The HTTP client for the external ledger.
 * - internal/domain, internal/store: Journal models and persistence.
 */

package app

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"

	"github.com/insuralink/policy-service/internal/domain"
	"github.com/insuralink/policy-service/internal/store"
	"github.com/insuralink/policy-service/pkg/ledgerclient"
)

var (
	ErrInsufficientFunds     = errors.New("party holds insufficient funds")
	ErrInsufficientAllowance = errors.New("party has not authorized a sufficient allowance")
	ErrInsufficientEscrow    = errors.New("custodial escrow balance is insufficient")
)

// Ledger is the subset of the external ledger API the adapter depends on.
// *ledgerclient.Client satisfies it; tests substitute an in-memory fake.
type Ledger interface {
	BalanceOf(ctx context.Context, account string) (int64, error)
	Transfer(ctx context.Context, from, to string, amount int64, memo string) error
	TransferFrom(ctx context.Context, owner, to string, amount int64, memo string) error
}

// MovementRef ties a journal entry back to the template or policy that
// caused it.
type MovementRef struct {
	TemplateID *int64
	PolicyID   *int64
	Memo       string
}

// EscrowAdapter wraps the external ledger with custodial-account semantics
// and append-only journal bookkeeping.
type EscrowAdapter struct {
	ledger  Ledger
	repo    store.Repository
	account string // the system-owned custodial escrow account id
}

// NewEscrowAdapter creates an adapter bound to the custodial escrow account.
func NewEscrowAdapter(ledger Ledger, repo store.Repository, escrowAccount string) *EscrowAdapter {
	return &EscrowAdapter{ledger: ledger, repo: repo, account: escrowAccount}
}

// Account returns the custodial escrow account id.
func (a *EscrowAdapter) Account() string {
	return a.account
}

// Pull moves `amount` from `from` into the custodial escrow account, spending
// the allowance `from` pre-authorized to the service.
func (a *EscrowAdapter) Pull(ctx context.Context, from string, amount int64, ref MovementRef) error {
	if err := a.ledger.TransferFrom(ctx, from, a.account, amount, ref.Memo); err != nil {
		return mapLedgerError(err, false)
	}
	a.journal(ctx, domain.EscrowDirectionPull, from, nil, amount, ref)
	return nil
}

// Push moves `amount` from the custodial escrow account to `to`.
func (a *EscrowAdapter) Push(ctx context.Context, to string, amount int64, ref MovementRef) error {
	if err := a.ledger.Transfer(ctx, a.account, to, amount, ref.Memo); err != nil {
		return mapLedgerError(err, true)
	}
	a.journal(ctx, domain.EscrowDirectionPush, to, nil, amount, ref)
	return nil
}

// Forward moves `amount` from `from` directly to `to`, spending `from`'s
// allowance. This is the premium path: buyer pays seller without the funds
// ever entering custody.
func (a *EscrowAdapter) Forward(ctx context.Context, from, to string, amount int64, ref MovementRef) error {
	if err := a.ledger.TransferFrom(ctx, from, to, amount, ref.Memo); err != nil {
		return mapLedgerError(err, false)
	}
	a.journal(ctx, domain.EscrowDirectionForward, from, &to, amount, ref)
	return nil
}

// journal appends a bookkeeping entry for a movement that already succeeded
// on the ledger. A journal failure is logged rather than surfaced: the
// movement is done, and failing the caller here would report a transfer that
// took effect as if it had not.
func (a *EscrowAdapter) journal(ctx context.Context, direction, party string, counterparty *string, amount int64, ref MovementRef) {
	entry := &domain.EscrowEntry{
		ID:           uuid.New(),
		Direction:    direction,
		Party:        party,
		Counterparty: counterparty,
		Amount:       amount,
		TemplateID:   ref.TemplateID,
		PolicyID:     ref.PolicyID,
	}
	if err := a.repo.RecordEscrowEntry(ctx, entry); err != nil {
		log.Printf("level=error component=escrow msg=\"journal write failed after ledger movement\" direction=%s party=%s amount=%d err=%v", direction, party, amount, err)
	}
}

// mapLedgerError turns ledger API error codes into adapter sentinels. On the
// push path an insufficient-funds rejection means the custodial account
// itself is short.
func mapLedgerError(err error, custodial bool) error {
	var apiErr *ledgerclient.ErrorResponse
	if errors.As(err, &apiErr) {
		switch apiErr.Code() {
		case ledgerclient.CodeInsufficientFunds:
			if custodial {
				return ErrInsufficientEscrow
			}
			return ErrInsufficientFunds
		case ledgerclient.CodeInsufficientAllowance:
			return ErrInsufficientAllowance
		}
	}
	return err
}
