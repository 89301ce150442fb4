/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the policy-service. By defining an interface,
 * we decouple the application's business logic from the specific database implementation
 * (e.g., PostgreSQL), making the code more modular and easier to test.
 *
 * @dependencies
 * - context: Standard Go library.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"

	"github.com/insuralink/policy-service/internal/domain"
)

var (
	ErrTemplateNotFound = errors.New("contract template not found")
	ErrPolicyNotFound   = errors.New("policy not found")
	ErrPolicyInactive   = errors.New("policy is no longer active")
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Template registry. Templates are append-only and immutable after
	// creation; CreateTemplate assigns the next sequential id.
	CreateTemplate(ctx context.Context, template *domain.ContractTemplate) error
	GetTemplateByID(ctx context.Context, templateID int64) (*domain.ContractTemplate, error)

	// Policy registry.
	CreatePolicy(ctx context.Context, policy *domain.ActivePolicy) error
	GetPolicyByID(ctx context.Context, policyID int64) (*domain.ActivePolicy, error)
	// IncrementPremiumsPaid bumps the premium counter for an active policy
	// and returns the new count. Fails with ErrPolicyInactive when the
	// policy has already been settled.
	IncrementPremiumsPaid(ctx context.Context, policyID int64) (int, error)
	// SettlePolicy clears the active flag exactly once. Fails with
	// ErrPolicyInactive when the policy was already settled, which is the
	// database-level guard behind the exactly-once payout guarantee.
	SettlePolicy(ctx context.Context, policyID int64) error
	// ReactivatePolicy reverses a settle whose payout transfer was then
	// rejected, restoring the policy so the payout can be retried. Only the
	// settlement path may call this.
	ReactivatePolicy(ctx context.Context, policyID int64) error

	// Escrow journal (append-only bookkeeping of every ledger movement the
	// service initiated).
	RecordEscrowEntry(ctx context.Context, entry *domain.EscrowEntry) error
	// EscrowJournalBalance returns the net custodial balance implied by the
	// journal: pulls minus pushes. Forward entries never transit escrow and
	// are excluded.
	EscrowJournalBalance(ctx context.Context) (int64, error)
}
