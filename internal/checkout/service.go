package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/storefront/internal/cart"
	"github.com/noah-isme/storefront/internal/events"
	"github.com/noah-isme/storefront/internal/money"
	"github.com/noah-isme/storefront/internal/obs"
	"github.com/noah-isme/storefront/internal/payment"
)

var (
	// ErrEmptyCart is returned when checkout is attempted with nothing to pay for.
	ErrEmptyCart = errors.New("checkout: cart is empty")
	// ErrPaymentNotConfigured is returned when the provider cannot take payments.
	ErrPaymentNotConfigured = errors.New("checkout: payment provider not configured")
	// ErrRecipientRequired is returned when no payment recipient was supplied.
	ErrRecipientRequired = errors.New("checkout: payment recipient required")
	// ErrProviderUnavailable wraps failures while opening the transaction.
	ErrProviderUnavailable = errors.New("checkout: payment provider unavailable")
)

// Cart is the part of the cart manager checkout depends on.
type Cart interface {
	Totals() cart.Totals
	Lines() []cart.Line
	Clear()
}

// Attempt describes an opened transaction awaiting the provider's outcome.
type Attempt struct {
	Reference string          `json:"reference"`
	Total     int64           `json:"total"`
	Amount    int64           `json:"amount"`
	Currency  string          `json:"currency"`
	Handoff   payment.Handoff `json:"handoff"`
}

// Config wires a Service.
type Config struct {
	Cart       Cart
	Provider   payment.Provider
	Money      money.Convention
	References *ReferenceGenerator
	// Dispatch runs outcome handlers on the goroutine owning the cart. Nil runs them inline.
	Dispatch  func(func())
	Reporters []OutcomeReporter
	Events    *events.Bus
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Service hands the cart to the payment provider and applies its outcome.
type Service struct {
	cfg Config
}

// NewService constructs a Service.
func NewService(cfg Config) *Service {
	if cfg.References == nil {
		cfg.References = &ReferenceGenerator{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{cfg: cfg}
}

// Checkout opens a transaction for the current cart. The cart is not touched
// here: it is cleared only when the provider reports success.
func (s *Service) Checkout(ctx context.Context, recipient string) (Attempt, error) {
	ctx, span := otel.Tracer("storefront/checkout").Start(ctx, "checkout.Checkout")
	defer span.End()

	providerName := "none"
	if s.cfg.Provider != nil {
		providerName = s.cfg.Provider.Name()
	}
	fail := func(result string, err error) (Attempt, error) {
		obs.IncCheckout(providerName, result)
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		s.cfg.Logger.Info().Str("provider", providerName).Str("result", result).Err(err).Msg("checkout_rejected")
		return Attempt{}, err
	}

	if s.cfg.Cart == nil {
		return fail("empty_cart", ErrEmptyCart)
	}
	totals := s.cfg.Cart.Totals()
	if totals.Empty() {
		return fail("empty_cart", ErrEmptyCart)
	}
	if s.cfg.Provider == nil {
		return fail("not_configured", ErrPaymentNotConfigured)
	}
	if err := s.cfg.Provider.Configured(); err != nil {
		return fail("not_configured", fmt.Errorf("%w: %w", ErrPaymentNotConfigured, err))
	}
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return fail("recipient_required", ErrRecipientRequired)
	}
	amount, err := s.cfg.Money.ToMinor(totals.Total)
	if err != nil {
		return fail("invalid_amount", fmt.Errorf("checkout: convert total: %w", err))
	}

	tx := payment.Transaction{
		Reference: s.cfg.References.Next(),
		Amount:    amount,
		Currency:  s.cfg.Money.Code(),
		Recipient: recipient,
		Metadata:  metadataFor(s.cfg.Cart.Lines()),
	}
	span.SetAttributes(
		attribute.String("checkout.reference", tx.Reference),
		attribute.String("checkout.provider", providerName),
		attribute.Int64("checkout.amount_minor", amount),
		attribute.Int("checkout.items", totals.Count),
	)

	handoff, err := s.cfg.Provider.NewTransaction(ctx, tx, s.callbacks(providerName, tx.Reference))
	if err != nil {
		if errors.Is(err, payment.ErrNotConfigured) {
			return fail("not_configured", fmt.Errorf("%w: %w", ErrPaymentNotConfigured, err))
		}
		return fail("provider_error", fmt.Errorf("%w: %w", ErrProviderUnavailable, err))
	}

	obs.IncCheckout(providerName, "started")
	s.cfg.Logger.Info().
		Str("provider", providerName).
		Str("reference", tx.Reference).
		Int64("amount", amount).
		Int("items", totals.Count).
		Msg("checkout_started")
	s.emit(events.TopicCheckoutStarted, tx.Reference, map[string]any{
		"provider":  providerName,
		"amount":    amount,
		"currency":  tx.Currency,
		"cartItems": tx.Metadata.CartItems,
	})
	return Attempt{
		Reference: tx.Reference,
		Total:     totals.Total,
		Amount:    amount,
		Currency:  tx.Currency,
		Handoff:   handoff,
	}, nil
}

func (s *Service) callbacks(providerName, reference string) payment.Callbacks {
	var settled atomic.Bool
	return payment.Callbacks{
		OnSuccess: func(receipt payment.Receipt) {
			if !settled.CompareAndSwap(false, true) {
				return
			}
			s.dispatch(func() { s.succeeded(providerName, reference, receipt) })
		},
		OnCancel: func() {
			if !settled.CompareAndSwap(false, true) {
				return
			}
			s.dispatch(func() { s.cancelled(providerName, reference) })
		},
	}
}

func (s *Service) succeeded(providerName, reference string, receipt payment.Receipt) {
	if s.cfg.Cart != nil {
		s.cfg.Cart.Clear()
	}
	// The message quotes the provider's transaction reference; its numeric id is only logged.
	if receipt.Reference == "" {
		receipt.Reference = reference
	}
	obs.IncCheckout(providerName, "succeeded")
	s.cfg.Logger.Info().
		Str("provider", providerName).
		Str("reference", reference).
		Str("transaction_reference", receipt.Reference).
		Str("transaction_id", receipt.TransactionID).
		Msg("payment_succeeded")
	s.emit(events.TopicPaymentSucceeded, reference, map[string]any{
		"provider":             providerName,
		"transactionReference": receipt.Reference,
		"transactionId":        receipt.TransactionID,
	})
	s.report(Outcome{
		Kind:        Succeeded,
		Reference:   reference,
		Transaction: &receipt,
		Message:     "Payment complete! Reference: " + receipt.Reference,
		At:          s.cfg.Now(),
	})
}

func (s *Service) cancelled(providerName, reference string) {
	obs.IncCheckout(providerName, "cancelled")
	s.cfg.Logger.Info().Str("provider", providerName).Str("reference", reference).Msg("payment_cancelled")
	s.emit(events.TopicPaymentCancelled, reference, map[string]any{"provider": providerName})
	s.report(Outcome{
		Kind:      Cancelled,
		Reference: reference,
		Message:   "Transaction was not completed, window closed.",
		At:        s.cfg.Now(),
	})
}

func (s *Service) dispatch(fn func()) {
	if s.cfg.Dispatch == nil {
		fn()
		return
	}
	s.cfg.Dispatch(fn)
}

func (s *Service) report(o Outcome) {
	for _, r := range s.cfg.Reporters {
		if r != nil {
			r.Report(o)
		}
	}
}

func (s *Service) emit(topic, reference string, payload any) {
	if s.cfg.Events == nil {
		return
	}
	if _, err := s.cfg.Events.Emit(context.Background(), topic, reference, payload); err != nil {
		s.cfg.Logger.Warn().Err(err).Str("topic", topic).Str("reference", reference).Msg("event_emit_failed")
	}
}

func metadataFor(lines []cart.Line) payment.Metadata {
	items := make([]payment.MetadataItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, payment.MetadataItem{
			ID:        l.ID,
			Title:     l.Title,
			Qty:       l.Qty,
			UnitPrice: l.Price,
		})
	}
	return payment.Metadata{CartItems: items}
}
