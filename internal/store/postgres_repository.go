/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the necessary SQL queries to interact with the database tables
 * for contract templates, active policies, and the escrow journal.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/insuralink/policy-service/internal/domain"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateTemplate inserts a new contract template and populates its sequential
// id and creation timestamp from the database.
func (r *PostgresRepository) CreateTemplate(ctx context.Context, template *domain.ContractTemplate) error {
	query := `
        INSERT INTO contract_templates
            (seller, payment_frequency, payment_amount, insurance_amount, number_of_payments, description, valid_until)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at
    `
	return r.db.QueryRow(ctx, query,
		template.Seller,
		template.PaymentFrequency,
		template.PaymentAmount,
		template.InsuranceAmount,
		template.NumberOfPayments,
		template.Description,
		template.ValidUntil,
	).Scan(&template.ID, &template.CreatedAt)
}

// GetTemplateByID retrieves a contract template by its sequential id.
func (r *PostgresRepository) GetTemplateByID(ctx context.Context, templateID int64) (*domain.ContractTemplate, error) {
	var template domain.ContractTemplate
	query := `
        SELECT id, seller, payment_frequency, payment_amount, insurance_amount, number_of_payments, description, valid_until, created_at
        FROM contract_templates
        WHERE id = $1
    `
	err := r.db.QueryRow(ctx, query, templateID).Scan(
		&template.ID,
		&template.Seller,
		&template.PaymentFrequency,
		&template.PaymentAmount,
		&template.InsuranceAmount,
		&template.NumberOfPayments,
		&template.Description,
		&template.ValidUntil,
		&template.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return &template, nil
}

// CreatePolicy inserts a new active policy and populates its sequential id
// and creation timestamp from the database.
func (r *PostgresRepository) CreatePolicy(ctx context.Context, policy *domain.ActivePolicy) error {
	query := `
        INSERT INTO active_policies (template_id, buyer, premiums_paid, active)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at
    `
	return r.db.QueryRow(ctx, query,
		policy.TemplateID,
		policy.Buyer,
		policy.PremiumsPaid,
		policy.Active,
	).Scan(&policy.ID, &policy.CreatedAt)
}

// GetPolicyByID retrieves an active policy by its sequential id.
func (r *PostgresRepository) GetPolicyByID(ctx context.Context, policyID int64) (*domain.ActivePolicy, error) {
	var policy domain.ActivePolicy
	query := `
        SELECT id, template_id, buyer, premiums_paid, active, created_at, settled_at
        FROM active_policies
        WHERE id = $1
    `
	err := r.db.QueryRow(ctx, query, policyID).Scan(
		&policy.ID,
		&policy.TemplateID,
		&policy.Buyer,
		&policy.PremiumsPaid,
		&policy.Active,
		&policy.CreatedAt,
		&policy.SettledAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPolicyNotFound
		}
		return nil, err
	}
	return &policy, nil
}

// IncrementPremiumsPaid bumps the premium counter for an active policy and
// returns the new count. The `active` predicate keeps the increment from ever
// applying to a settled policy.
func (r *PostgresRepository) IncrementPremiumsPaid(ctx context.Context, policyID int64) (int, error) {
	var premiumsPaid int
	query := `
        UPDATE active_policies
        SET premiums_paid = premiums_paid + 1, updated_at = NOW()
        WHERE id = $1 AND active
        RETURNING premiums_paid
    `
	err := r.db.QueryRow(ctx, query, policyID).Scan(&premiumsPaid)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, r.classifyPolicyMiss(ctx, policyID)
		}
		return 0, err
	}
	return premiumsPaid, nil
}

// SettlePolicy clears the active flag exactly once. The `WHERE active`
// predicate makes the terminal transition idempotent at the database level.
func (r *PostgresRepository) SettlePolicy(ctx context.Context, policyID int64) error {
	query := `
        UPDATE active_policies
        SET active = FALSE, settled_at = NOW(), updated_at = NOW()
        WHERE id = $1 AND active
    `
	tag, err := r.db.Exec(ctx, query, policyID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.classifyPolicyMiss(ctx, policyID)
	}
	return nil
}

// ReactivatePolicy restores the active flag after a settle whose payout
// transfer was rejected. The `NOT active` predicate keeps it from touching a
// policy that was never settled.
func (r *PostgresRepository) ReactivatePolicy(ctx context.Context, policyID int64) error {
	query := `
        UPDATE active_policies
        SET active = TRUE, settled_at = NULL, updated_at = NOW()
        WHERE id = $1 AND NOT active
    `
	tag, err := r.db.Exec(ctx, query, policyID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var active bool
		err := r.db.QueryRow(ctx, `SELECT active FROM active_policies WHERE id = $1`, policyID).Scan(&active)
		if err != nil {
			if err == pgx.ErrNoRows {
				return ErrPolicyNotFound
			}
			return err
		}
		// Already active; the desired state holds.
	}
	return nil
}

// classifyPolicyMiss distinguishes an unknown policy id from one that exists
// but is no longer active, so callers can surface the right error kind.
func (r *PostgresRepository) classifyPolicyMiss(ctx context.Context, policyID int64) error {
	var active bool
	err := r.db.QueryRow(ctx, `SELECT active FROM active_policies WHERE id = $1`, policyID).Scan(&active)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrPolicyNotFound
		}
		return err
	}
	return ErrPolicyInactive
}

// RecordEscrowEntry appends one row to the escrow journal.
func (r *PostgresRepository) RecordEscrowEntry(ctx context.Context, entry *domain.EscrowEntry) error {
	query := `
        INSERT INTO escrow_journal (id, direction, party, counterparty, amount, template_id, policy_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING created_at
    `
	return r.db.QueryRow(ctx, query,
		entry.ID,
		entry.Direction,
		entry.Party,
		entry.Counterparty,
		entry.Amount,
		entry.TemplateID,
		entry.PolicyID,
	).Scan(&entry.CreatedAt)
}

// EscrowJournalBalance computes the net custodial balance implied by the
// journal: pulls minus pushes. Forward entries are buyer-to-seller premium
// movements and never transit the custodial account.
func (r *PostgresRepository) EscrowJournalBalance(ctx context.Context) (int64, error) {
	var balance int64
	query := `
        SELECT COALESCE(SUM(
            CASE direction
                WHEN 'pull' THEN amount
                WHEN 'push' THEN -amount
                ELSE 0
            END
        ), 0)
        FROM escrow_journal
    `
	if err := r.db.QueryRow(ctx, query).Scan(&balance); err != nil {
		return 0, err
	}
	return balance, nil
}
