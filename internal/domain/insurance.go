/**
 * @description
 * This file defines the core domain models for the policy-service.
 * These structs represent the insurance entities and data transfer objects (DTOs)
 * used throughout the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Amounts are stored as `int64` to represent the value in the smallest ledger
 *   unit, which avoids floating-point inaccuracies with financial data.
 * - Template and policy ids are sequential integers assigned by the database
 *   (BIGSERIAL), mirroring the append-only registries they live in.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// ContractTemplate is a seller-published insurance offer. Templates are
// immutable after creation; policies reference them by id only.
type ContractTemplate struct {
	ID               int64     `json:"id"`
	Seller           string    `json:"seller"`
	PaymentFrequency int64     `json:"payment_frequency"` // seconds between premiums; scheduling hint, not enforced
	PaymentAmount    int64     `json:"payment_amount"`    // premium per payment, smallest ledger unit
	InsuranceAmount  int64     `json:"insurance_amount"`  // payout owed to the buyer if the trigger fires
	NumberOfPayments int       `json:"number_of_payments"`
	Description      string    `json:"description"`
	ValidUntil       time.Time `json:"valid_until"`
	CreatedAt        time.Time `json:"created_at"`
}

// ActivePolicy is a buyer's purchase into a template. It tracks premium
// progress and the terminal settlement flag.
type ActivePolicy struct {
	ID           int64      `json:"id"`
	TemplateID   int64      `json:"template_id"`
	Buyer        string     `json:"buyer"`
	PremiumsPaid int        `json:"premiums_paid"` // purchase counts as the first payment
	Active       bool       `json:"active"`        // cleared exactly once, by payout
	CreatedAt    time.Time  `json:"created_at"`
	SettledAt    *time.Time `json:"settled_at,omitempty"`
}

// Escrow journal entry directions.
const (
	EscrowDirectionPull    = "pull"    // party -> custodial escrow account
	EscrowDirectionPush    = "push"    // custodial escrow account -> party
	EscrowDirectionForward = "forward" // party -> counterparty, allowance-based, never transits escrow
)

// EscrowEntry is one row of the append-only escrow journal. The journal is
// the service's own record of every ledger movement it initiated, auditable
// independently of the external ledger.
type EscrowEntry struct {
	ID           uuid.UUID `json:"id"`
	Direction    string    `json:"direction"`
	Party        string    `json:"party"`
	Counterparty *string   `json:"counterparty,omitempty"`
	Amount       int64     `json:"amount"`
	TemplateID   *int64    `json:"template_id,omitempty"`
	PolicyID     *int64    `json:"policy_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateTemplateRequest is the DTO for incoming template creation API requests.
// Duration is given in minutes and stored as an absolute expiry timestamp.
type CreateTemplateRequest struct {
	PaymentFrequency int64  `json:"payment_frequency"`
	PaymentAmount    int64  `json:"payment_amount"`
	InsuranceAmount  int64  `json:"insurance_amount"`
	DurationMinutes  int64  `json:"duration_minutes"`
	Description      string `json:"description"`
	NumberOfPayments int    `json:"number_of_payments"`
}

// PremiumReceipt summarizes the schedule position after a successful premium
// collection.
type PremiumReceipt struct {
	PolicyID          int64 `json:"policy_id"`
	PremiumsPaid      int   `json:"premiums_paid"`
	PremiumsRemaining int   `json:"premiums_remaining"`
}

// PayoutReceipt confirms a terminal payout settlement.
type PayoutReceipt struct {
	PolicyID int64  `json:"policy_id"`
	Buyer    string `json:"buyer"`
	Amount   int64  `json:"amount"`
}
