package types

type TransactionStatus string

const (
	TransactionStatusPending           TransactionStatus = "pending"
	TransactionStatusAuthorized        TransactionStatus = "authorized"
	TransactionStatusCompleted         TransactionStatus = "completed"
	TransactionStatusFailed            TransactionStatus = "failed"
	TransactionStatusCancelled         TransactionStatus = "cancelled"
	TransactionStatusPartiallyRefunded TransactionStatus = "partially_refunded"
	TransactionStatusRefunded          TransactionStatus = "refunded"
	// TransactionStatusActive is only used by subscription agreements.
	TransactionStatusActive TransactionStatus = "active"
)

// IsTerminal reports whether no further transition may leave the status.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TransactionStatusFailed, TransactionStatusCancelled, TransactionStatusRefunded:
		return true
	}
	return false
}

func (s TransactionStatus) IsRefundable() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusPartiallyRefunded
}

type TransactionKind string

const (
	TransactionKindPayment      TransactionKind = "payment"
	TransactionKindSubscription TransactionKind = "subscription"
	TransactionKindRefund       TransactionKind = "refund"
)

type BillingFrequency string

const (
	BillingFrequencyDaily   BillingFrequency = "daily"
	BillingFrequencyWeekly  BillingFrequency = "weekly"
	BillingFrequencyMonthly BillingFrequency = "monthly"
	BillingFrequencyYearly  BillingFrequency = "yearly"
)

func (f BillingFrequency) Valid() bool {
	switch f {
	case BillingFrequencyDaily, BillingFrequencyWeekly, BillingFrequencyMonthly, BillingFrequencyYearly:
		return true
	}
	return false
}

// TransactionChangeReason is recorded on every audit log row.
type TransactionChangeReason string

const (
	TransactionChangeReasonCreate             TransactionChangeReason = "create"
	TransactionChangeReasonGateway            TransactionChangeReason = "gateway_response"
	TransactionChangeReasonWebhook            TransactionChangeReason = "webhook"
	TransactionChangeReasonCapture            TransactionChangeReason = "capture"
	TransactionChangeReasonVoid               TransactionChangeReason = "void"
	TransactionChangeReasonRefund             TransactionChangeReason = "refund"
	TransactionChangeReasonBilling            TransactionChangeReason = "billing"
	TransactionChangeReasonCancelled          TransactionChangeReason = "cancel"
	TransactionChangeReasonSubscriptionUpdate TransactionChangeReason = "subscription_update"
)
