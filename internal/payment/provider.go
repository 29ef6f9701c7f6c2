package payment

import (
	"context"
	"errors"
	"net/http"
)

var (
	// ErrNotConfigured is returned by Configured when the provider cannot take payments.
	ErrNotConfigured = errors.New("payment: provider not configured")
	// ErrUnknownReference is returned when no open transaction matches a reference.
	ErrUnknownReference = errors.New("payment: unknown transaction reference")
	// ErrDuplicateReference is returned when a reference is reused while still open.
	ErrDuplicateReference = errors.New("payment: duplicate transaction reference")
	// ErrAmountMismatch is returned when a provider reports a different amount than requested.
	ErrAmountMismatch = errors.New("payment: provider amount mismatch")
)

// MetadataItem is one cart line attached to a transaction.
type MetadataItem struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Qty       int    `json:"qty"`
	UnitPrice int64  `json:"unit_price"`
}

// Metadata is forwarded to the provider as-is.
type Metadata struct {
	CartItems []MetadataItem `json:"cart_items"`
}

// Transaction is the request to open a payment. Amount is in minor units.
type Transaction struct {
	Reference string
	Amount    int64
	Currency  string
	Recipient string
	Metadata  Metadata
}

// Receipt describes a successful payment.
type Receipt struct {
	Provider      string `json:"provider"`
	Reference     string `json:"reference"`
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
}

// Callbacks are the two outcomes of a transaction. Exactly one is invoked, once.
type Callbacks struct {
	OnSuccess func(Receipt)
	OnCancel  func()
}

// Handoff tells the display how to continue the payment with the provider.
type Handoff struct {
	Provider         string `json:"provider"`
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorizationUrl,omitempty"`
	AccessCode       string `json:"accessCode,omitempty"`
	PublicKey        string `json:"publicKey,omitempty"`
}

// Provider abstracts the upstream payment collaborator.
type Provider interface {
	Name() string
	// Configured reports ErrNotConfigured (possibly wrapped) when no transaction can be opened.
	Configured() error
	NewTransaction(ctx context.Context, tx Transaction, cb Callbacks) (Handoff, error)
}

// Canceller is implemented by providers whose display can report a dismissed payment.
type Canceller interface {
	Cancel(reference string) error
}

// Status is a provider outcome normalised from a webhook.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusCancelled Status = "cancelled"
	StatusPending   Status = "pending"
)

// WebhookResult contains the normalised data extracted from a webhook notification after signature verification.
type WebhookResult struct {
	Valid         bool
	Reference     string
	Amount        int64
	Status        Status
	TransactionID string
	Message       string
	Err           error
}

// WebhookProvider verifies and settles provider callbacks.
type WebhookProvider interface {
	Name() string
	VerifyWebhook(r *http.Request, body []byte) (WebhookResult, error)
	Settle(ctx context.Context, result WebhookResult) error
}

// Doer executes outbound requests. resilience.HTTPClient satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}
