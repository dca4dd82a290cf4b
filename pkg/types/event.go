package types

// EventType names a domain event published after a ledger change commits.
type EventType string

const (
	EventPaymentCompleted      EventType = "payment.completed"
	EventPaymentAuthorized     EventType = "payment.authorized"
	EventPaymentFailed         EventType = "payment.failed"
	EventPaymentCancelled      EventType = "payment.cancelled"
	EventRefundProcessed       EventType = "refund.processed"
	EventTokenCreated          EventType = "token.created"
	EventSubscriptionCharged   EventType = "subscription.charged"
	EventSubscriptionCancelled EventType = "subscription.cancelled"
)

var AllEventTypes = []EventType{
	EventPaymentCompleted,
	EventPaymentAuthorized,
	EventPaymentFailed,
	EventPaymentCancelled,
	EventRefundProcessed,
	EventTokenCreated,
	EventSubscriptionCharged,
	EventSubscriptionCancelled,
}
