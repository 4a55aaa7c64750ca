package enums

// PaymentStatus is the wire discriminant carried by payment.processed events.
type PaymentStatus string

const (
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailure PaymentStatus = "FAILURE"
)

// IsValid reports whether the value is one of the two recognized outcomes.
// Anything else is treated as "unrecognized" by consumers: logged and skipped,
// never fatal.
func (s PaymentStatus) IsValid() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailure
}

// FailureReason classifies why a payment attempt produced a FAILURE outcome.
// These are valid business outcomes, not processing errors.
type FailureReason string

const (
	FailureReasonAccountNotFound   FailureReason = "ACCOUNT_NOT_FOUND"
	FailureReasonInsufficientFunds FailureReason = "INSUFFICIENT_FUNDS"
	FailureReasonInternalError     FailureReason = "INTERNAL_ERROR"
)
