package events

// Topic constants for events emitted by the storefront.
const (
	TopicCheckoutStarted  = "checkout.started"
	TopicPaymentSucceeded = "payment.succeeded"
	TopicPaymentCancelled = "payment.cancelled"
)

// DefaultTopics returns the canonical list of emitted topics.
func DefaultTopics() []string {
	return []string{
		TopicCheckoutStarted,
		TopicPaymentSucceeded,
		TopicPaymentCancelled,
	}
}
