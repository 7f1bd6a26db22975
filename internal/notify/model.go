// Package notify implements outbound event notifications: events passed to
// Service.Dispatch fan out to subscriber-configured webhook URLs with
// HMAC-signed payloads and retrying delivery. In cmd/agentcore the only
// dispatcher is the health checker (agent.health_degraded); the escrow,
// revenue and cross-chain services do not call Dispatch, so the four event
// types declared below can be subscribed to but are not emitted.
// Generalised from the teacher's internal/webhooks,
// which notified subscribers of agent lifecycle events
// (registered/activated/revoked/suspended) over the same
// subscribe/dispatch/deliver shape.
package notify

import (
	"time"

	"github.com/google/uuid"
)

// Event types a subscription can name.
const (
	EventEscrowReleased       = "escrow.released"
	EventEscrowRefunded       = "escrow.refunded"
	EventRevenueDistributed   = "revenue.distributed"
	EventCrossChainRegistered = "crosschain.registered"
)

// Subscription represents a subject's (agent owner or requester address)
// subscription to notification events.
type Subscription struct {
	ID        uuid.UUID `json:"id"         db:"id"`
	Subject   string    `json:"subject"    db:"subject"`
	URL       string    `json:"url"        db:"url"`
	Events    []string  `json:"events"     db:"events"`
	Secret    string    `json:"-"          db:"secret"` // never returned in API responses
	Active    bool      `json:"active"     db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Event is dispatched to matching subscriptions.
type Event struct {
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   map[string]string `json:"payload"`
}

// Delivery records the outcome of a single delivery attempt.
type Delivery struct {
	ID             uuid.UUID `json:"id"              db:"id"`
	SubscriptionID uuid.UUID `json:"subscription_id" db:"subscription_id"`
	EventType      string    `json:"event_type"      db:"event_type"`
	StatusCode     int       `json:"status_code"     db:"status_code"`
	Attempt        int       `json:"attempt"         db:"attempt"`
	Success        bool      `json:"success"         db:"success"`
	ErrorMessage   string    `json:"error_message"   db:"error_message"`
	DeliveredAt    time.Time `json:"delivered_at"    db:"delivered_at"`
}

// SubscribeRequest is the payload for creating a subscription.
type SubscribeRequest struct {
	URL    string   `json:"url"    binding:"required,url"`
	Events []string `json:"events" binding:"required"`
}

// DeadLetter is an event that exhausted delivery retries against a
// subscription. It holds the full event body so ReplayDeadLetter can
// resubmit it without reconstructing the original payload.
type DeadLetter struct {
	ID             uuid.UUID `json:"id"              db:"id"`
	SubscriptionID uuid.UUID `json:"subscription_id" db:"subscription_id"`
	EventType      string    `json:"event_type"      db:"event_type"`
	EventBody      []byte    `json:"-"               db:"event_body"`
	Attempts       int       `json:"attempts"        db:"attempts"`
	LastError      string    `json:"last_error"      db:"last_error"`
	FailedAt       time.Time `json:"failed_at"       db:"failed_at"`
	Resolved       bool      `json:"resolved"        db:"resolved"`
}
