/**
 * @description
 * This file defines the event payloads the policy-service publishes to RabbitMQ
 * whenever value moves or a policy changes state. Downstream consumers
 * (notification fan-out, analytics) subscribe to these on the events exchange.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Routing keys for policy lifecycle events.
const (
	EventTemplateCreated = "template.created"
	EventPolicyPurchased = "policy.purchased"
	EventPremiumPaid     = "policy.premium_paid"
	EventPolicyPaidOut   = "policy.paid_out"
)

// PolicyEvent is the common envelope for every event the service publishes.
type PolicyEvent struct {
	EventID    uuid.UUID `json:"event_id"`
	TemplateID int64     `json:"template_id"`
	PolicyID   *int64    `json:"policy_id,omitempty"`
	Seller     string    `json:"seller,omitempty"`
	Buyer      string    `json:"buyer,omitempty"`
	Amount     int64     `json:"amount"`
	Timestamp  time.Time `json:"timestamp"`
}
