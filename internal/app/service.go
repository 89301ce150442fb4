/**
 * @description
 * This file contains the core business logic for the policy-service. The `Service`
 * struct implements the template registry, the active-policy state machine, the
 * settlement engine, and the trigger gateway, coordinating between the database
 * repository, the escrow ledger adapter, and the message broker.
 *
 * Key guarantees:
 * - Every state-mutating operation (CreateTemplate, Buy, PayPremium,
 *   InvokeTrigger) serializes under a single writer lock, giving the same
 *   total order a shared ledger would.
 * - Payout happens exactly once per policy; the second invocation fails with
 *   ErrAlreadySettled and moves no funds.
 * - Sellers are pre-funded before a template can be sold: CreateTemplate pulls
 *   the full insurance amount into escrow or records nothing.
 *
 * @dependencies
 * - context, errors, fmt, log, sync, time: Standard Go libraries.
 * - github.com/google/uuid: For event ids.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/rabbitmq: For event publication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/insuralink/policy-service/internal/domain"
	"github.com/insuralink/policy-service/internal/store"
	"github.com/insuralink/policy-service/pkg/rabbitmq"
)

const eventsExchange = "insuralink.events"

var (
	ErrInvalidTemplate          = errors.New("invalid template parameters")
	ErrTemplateExpired          = errors.New("contract template has expired")
	ErrFundingFailed            = errors.New("template funding failed")
	ErrPaymentFailed            = errors.New("premium payment failed")
	ErrPremiumScheduleExhausted = errors.New("no further premiums are owed")
	ErrAlreadySettled           = errors.New("policy has already been settled")
	ErrUnauthorized             = errors.New("caller is not authorized")
	ErrTriggerRateLimited       = errors.New("trigger invocations are rate limited")
)

// Service provides the core business logic for insurance templates and policies.
type Service struct {
	// mu serializes all state mutations. Cross-component work inside one
	// operation (repository writes, ledger movements) happens while the lock
	// is held, so no two mutations ever interleave.
	mu sync.Mutex

	repo          store.Repository
	escrow        *EscrowAdapter
	eventProducer rabbitmq.Publisher
	authorizer    TriggerAuthorizer

	triggerLimiter        RateLimiter
	triggerLimitPerMinute int
}

// NewService creates a new policy service instance.
func NewService(repo store.Repository, escrow *EscrowAdapter, producer rabbitmq.Publisher, authorizer TriggerAuthorizer) *Service {
	return &Service{
		repo:          repo,
		escrow:        escrow,
		eventProducer: producer,
		authorizer:    authorizer,
	}
}

// SetTriggerRateLimiter installs an optional distributed rate limiter for the
// trigger endpoint. Without one, trigger invocations are not rate limited.
func (s *Service) SetTriggerRateLimiter(limiter RateLimiter, perMinute int) {
	s.triggerLimiter = limiter
	s.triggerLimitPerMinute = perMinute
}

// CreateTemplate registers a new immutable insurance offer for `seller`.
// The full insurance amount is pulled from the seller's allowance into the
// custodial escrow account before anything is recorded; a failed pull leaves
// no template behind.
func (s *Service) CreateTemplate(ctx context.Context, seller string, req domain.CreateTemplateRequest) (*domain.ContractTemplate, error) {
	if req.PaymentAmount <= 0 {
		return nil, fmt.Errorf("%w: payment_amount must be positive", ErrInvalidTemplate)
	}
	if req.InsuranceAmount <= 0 {
		return nil, fmt.Errorf("%w: insurance_amount must be positive", ErrInvalidTemplate)
	}
	if req.NumberOfPayments < 1 {
		return nil, fmt.Errorf("%w: number_of_payments must be at least 1", ErrInvalidTemplate)
	}
	if req.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration_minutes must be positive", ErrInvalidTemplate)
	}
	if req.PaymentFrequency < 0 {
		return nil, fmt.Errorf("%w: payment_frequency cannot be negative", ErrInvalidTemplate)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Pre-fund the payout obligation. The template exists only if the pull
	// succeeded.
	if err := s.escrow.Pull(ctx, seller, req.InsuranceAmount, MovementRef{Memo: "template funding"}); err != nil {
		log.Printf("level=warn component=service op=create_template msg=\"funding pull rejected\" seller=%s amount=%d err=%v", seller, req.InsuranceAmount, err)
		return nil, fmt.Errorf("%w: %v", ErrFundingFailed, err)
	}

	template := &domain.ContractTemplate{
		Seller:           seller,
		PaymentFrequency: req.PaymentFrequency,
		PaymentAmount:    req.PaymentAmount,
		InsuranceAmount:  req.InsuranceAmount,
		NumberOfPayments: req.NumberOfPayments,
		Description:      req.Description,
		ValidUntil:       time.Now().Add(time.Duration(req.DurationMinutes) * time.Minute),
	}
	if err := s.repo.CreateTemplate(ctx, template); err != nil {
		// The funding already landed in escrow; return it before failing so
		// the create remains all-or-nothing.
		if refundErr := s.escrow.Push(ctx, seller, req.InsuranceAmount, MovementRef{Memo: "template funding refund"}); refundErr != nil {
			log.Printf("level=error component=service op=create_template msg=\"refund after failed insert also failed; escrow holds unowed funds\" seller=%s amount=%d err=%v", seller, req.InsuranceAmount, refundErr)
		}
		return nil, fmt.Errorf("failed to record template: %w", err)
	}

	s.publishEvent(ctx, domain.EventTemplateCreated, domain.PolicyEvent{
		EventID:    uuid.New(),
		TemplateID: template.ID,
		Seller:     template.Seller,
		Amount:     template.InsuranceAmount,
		Timestamp:  time.Now(),
	})
	log.Printf("level=info component=service op=create_template template_id=%d seller=%s insurance_amount=%d valid_until=%s", template.ID, seller, template.InsuranceAmount, template.ValidUntil.Format(time.RFC3339))
	return template, nil
}

// GetTemplate returns a template snapshot by id.
func (s *Service) GetTemplate(ctx context.Context, templateID int64) (*domain.ContractTemplate, error) {
	return s.repo.GetTemplateByID(ctx, templateID)
}

// Buy purchases a policy against a template for `buyer`. The first premium is
// collected at purchase time and paid directly to the seller; the policy
// starts with premiumsPaid = 1. Multiple buyers can buy into the same
// template independently.
func (s *Service) Buy(ctx context.Context, templateID int64, buyer string) (*domain.ActivePolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	template, err := s.repo.GetTemplateByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if !time.Now().Before(template.ValidUntil) {
		return nil, ErrTemplateExpired
	}

	// First premium, buyer -> seller. Premiums are seller income and never
	// enter the custodial account.
	ref := MovementRef{TemplateID: &template.ID, Memo: "first premium"}
	if err := s.escrow.Forward(ctx, buyer, template.Seller, template.PaymentAmount, ref); err != nil {
		log.Printf("level=warn component=service op=buy msg=\"first premium rejected\" template_id=%d buyer=%s amount=%d err=%v", templateID, buyer, template.PaymentAmount, err)
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}

	policy := &domain.ActivePolicy{
		TemplateID:   template.ID,
		Buyer:        buyer,
		PremiumsPaid: 1,
		Active:       true,
	}
	if err := s.repo.CreatePolicy(ctx, policy); err != nil {
		// The premium has already settled buyer -> seller on the ledger and
		// is journaled; the operator reconciles from the journal.
		log.Printf("level=error component=service op=buy msg=\"policy insert failed after premium settled\" template_id=%d buyer=%s amount=%d err=%v", templateID, buyer, template.PaymentAmount, err)
		return nil, fmt.Errorf("failed to record policy: %w", err)
	}

	s.publishEvent(ctx, domain.EventPolicyPurchased, domain.PolicyEvent{
		EventID:    uuid.New(),
		TemplateID: template.ID,
		PolicyID:   &policy.ID,
		Seller:     template.Seller,
		Buyer:      buyer,
		Amount:     template.PaymentAmount,
		Timestamp:  time.Now(),
	})
	log.Printf("level=info component=service op=buy policy_id=%d template_id=%d buyer=%s", policy.ID, templateID, buyer)
	return policy, nil
}

// GetPolicy returns a policy snapshot by id.
func (s *Service) GetPolicy(ctx context.Context, policyID int64) (*domain.ActivePolicy, error) {
	return s.repo.GetPolicyByID(ctx, policyID)
}

// PayPremium collects one scheduled premium from the policy's buyer and pays
// it to the seller. Once premiumsPaid reaches the template's
// numberOfPayments, further calls fail with ErrPremiumScheduleExhausted and
// change nothing; that is the expected end of the schedule, not a fault.
func (s *Service) PayPremium(ctx context.Context, policyID int64, payer string) (*domain.PremiumReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	policy, err := s.repo.GetPolicyByID(ctx, policyID)
	if err != nil {
		return nil, err
	}
	if !policy.Active {
		return nil, ErrAlreadySettled
	}
	if payer != policy.Buyer {
		return nil, fmt.Errorf("%w: only the policy buyer may pay premiums", ErrUnauthorized)
	}

	template, err := s.repo.GetTemplateByID(ctx, policy.TemplateID)
	if err != nil {
		return nil, err
	}
	if policy.PremiumsPaid >= template.NumberOfPayments {
		return nil, ErrPremiumScheduleExhausted
	}

	ref := MovementRef{TemplateID: &template.ID, PolicyID: &policy.ID, Memo: "premium"}
	if err := s.escrow.Forward(ctx, payer, template.Seller, template.PaymentAmount, ref); err != nil {
		log.Printf("level=warn component=service op=pay_premium msg=\"premium rejected\" policy_id=%d payer=%s amount=%d err=%v", policyID, payer, template.PaymentAmount, err)
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}

	premiumsPaid, err := s.repo.IncrementPremiumsPaid(ctx, policyID)
	if err != nil {
		log.Printf("level=error component=service op=pay_premium msg=\"counter update failed after premium settled\" policy_id=%d err=%v", policyID, err)
		return nil, fmt.Errorf("failed to record premium: %w", err)
	}

	s.publishEvent(ctx, domain.EventPremiumPaid, domain.PolicyEvent{
		EventID:    uuid.New(),
		TemplateID: template.ID,
		PolicyID:   &policy.ID,
		Seller:     template.Seller,
		Buyer:      policy.Buyer,
		Amount:     template.PaymentAmount,
		Timestamp:  time.Now(),
	})
	log.Printf("level=info component=service op=pay_premium policy_id=%d premiums_paid=%d of=%d", policyID, premiumsPaid, template.NumberOfPayments)
	return &domain.PremiumReceipt{
		PolicyID:          policyID,
		PremiumsPaid:      premiumsPaid,
		PremiumsRemaining: template.NumberOfPayments - premiumsPaid,
	}, nil
}

// InvokeTrigger is the gateway for oracle-authorized payout invocations. The
// caller must be a configured trigger source; eligibility and settlement are
// delegated to the payout path. Keeping authorization separate lets the
// trigger mechanism evolve without touching settlement.
func (s *Service) InvokeTrigger(ctx context.Context, policyID int64, caller string) (*domain.PayoutReceipt, error) {
	if err := s.authorizer.Authorize(ctx, caller); err != nil {
		return nil, err
	}

	if s.triggerLimiter != nil && s.triggerLimitPerMinute > 0 {
		count, retryAfter, err := s.triggerLimiter.ConsumeRateLimit(ctx, "trigger", caller, s.triggerLimitPerMinute, time.Minute)
		if err != nil {
			// Rate limiting is protective, not load-bearing. Fail open.
			log.Printf("level=warn component=service op=invoke_trigger msg=\"rate limiter unavailable; continuing\" caller=%s err=%v", caller, err)
		} else if count > s.triggerLimitPerMinute {
			log.Printf("level=warn component=service op=invoke_trigger msg=\"trigger source rate limited\" caller=%s retry_after_s=%d", caller, retryAfter)
			return nil, ErrTriggerRateLimited
		}
	}

	return s.payout(ctx, policyID)
}

// payout executes the terminal lump-sum settlement: the policy goes inactive
// and the template's insurance amount moves from escrow to the buyer, exactly
// once. The settle write runs first so it acts as the idempotency gate: a
// failed settle moves no funds and the caller can safely retry. If the
// escrow push is then rejected, the policy is reactivated; should that
// reversal also fail, the policy stays settled with no funds moved, and the
// missing push entry in the journal points the operator at the recovery.
func (s *Service) payout(ctx context.Context, policyID int64) (*domain.PayoutReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	policy, err := s.repo.GetPolicyByID(ctx, policyID)
	if err != nil {
		return nil, err
	}
	if !policy.Active {
		return nil, ErrAlreadySettled
	}

	template, err := s.repo.GetTemplateByID(ctx, policy.TemplateID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SettlePolicy(ctx, policyID); err != nil {
		if errors.Is(err, store.ErrPolicyInactive) {
			return nil, ErrAlreadySettled
		}
		log.Printf("level=error component=service op=payout msg=\"settle flag update failed; no funds moved\" policy_id=%d err=%v", policyID, err)
		return nil, fmt.Errorf("failed to mark policy settled: %w", err)
	}

	ref := MovementRef{TemplateID: &template.ID, PolicyID: &policy.ID, Memo: "insurance payout"}
	if err := s.escrow.Push(ctx, policy.Buyer, template.InsuranceAmount, ref); err != nil {
		log.Printf("level=error component=service op=payout msg=\"escrow push rejected after settle; reversing settle\" policy_id=%d buyer=%s amount=%d err=%v", policyID, policy.Buyer, template.InsuranceAmount, err)
		if reErr := s.repo.ReactivatePolicy(ctx, policyID); reErr != nil {
			log.Printf("level=error component=service op=payout msg=\"settle reversal failed; policy settled with no payout transfer\" policy_id=%d err=%v", policyID, reErr)
		}
		return nil, err
	}

	s.publishEvent(ctx, domain.EventPolicyPaidOut, domain.PolicyEvent{
		EventID:    uuid.New(),
		TemplateID: template.ID,
		PolicyID:   &policy.ID,
		Seller:     template.Seller,
		Buyer:      policy.Buyer,
		Amount:     template.InsuranceAmount,
		Timestamp:  time.Now(),
	})
	log.Printf("level=info component=service op=payout policy_id=%d buyer=%s amount=%d", policyID, policy.Buyer, template.InsuranceAmount)
	return &domain.PayoutReceipt{
		PolicyID: policyID,
		Buyer:    policy.Buyer,
		Amount:   template.InsuranceAmount,
	}, nil
}

// publishEvent publishes a lifecycle event, tolerating a missing or failing
// broker. Settlement must not depend on the event bus.
func (s *Service) publishEvent(ctx context.Context, routingKey string, event domain.PolicyEvent) {
	if s.eventProducer == nil {
		return
	}
	if err := s.eventProducer.Publish(ctx, eventsExchange, routingKey, event); err != nil {
		log.Printf("level=warn component=service msg=\"event publish failed\" routing_key=%s err=%v", routingKey, err)
	}
}
