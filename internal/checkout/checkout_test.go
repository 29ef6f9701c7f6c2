package checkout_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront/internal/cart"
	"github.com/noah-isme/storefront/internal/catalog"
	"github.com/noah-isme/storefront/internal/checkout"
	"github.com/noah-isme/storefront/internal/events"
	"github.com/noah-isme/storefront/internal/money"
	"github.com/noah-isme/storefront/internal/payment"
)

type fakeProvider struct {
	configErr error
	openErr   error
	calls     []payment.Transaction
	callbacks []payment.Callbacks
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Configured() error { return f.configErr }

func (f *fakeProvider) NewTransaction(_ context.Context, tx payment.Transaction, cb payment.Callbacks) (payment.Handoff, error) {
	f.calls = append(f.calls, tx)
	if f.openErr != nil {
		return payment.Handoff{}, f.openErr
	}
	f.callbacks = append(f.callbacks, cb)
	return payment.Handoff{Provider: "fake", Reference: tx.Reference, AuthorizationURL: "https://pay.example/" + tx.Reference}, nil
}

type fixture struct {
	manager  *cart.Manager
	provider *fakeProvider
	recorder *checkout.Recorder
	store    *events.MemoryStore
	svc      *checkout.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	listing, err := catalog.Load(context.Background(), catalog.StaticSource{})
	require.NoError(t, err)
	f := &fixture{
		manager:  cart.NewManager(listing),
		provider: &fakeProvider{},
		recorder: &checkout.Recorder{},
		store:    events.NewMemoryStore(16),
	}
	clock := time.UnixMilli(1760000000000)
	f.svc = checkout.NewService(checkout.Config{
		Cart:       f.manager,
		Provider:   f.provider,
		Money:      money.Default(),
		References: &checkout.ReferenceGenerator{Now: func() time.Time { return clock }},
		Reporters:  []checkout.OutcomeReporter{f.recorder},
		Events:     &events.Bus{Store: f.store},
		Logger:     zerolog.Nop(),
	})
	return f
}

func TestCheckoutEmptyCartDoesNotCallProvider(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Checkout(context.Background(), "buyer@example.com")
	require.ErrorIs(t, err, checkout.ErrEmptyCart)
	require.Empty(t, f.provider.calls)

	f.manager.Add("natural-ways-to-health-shiatsu")
	f.manager.Add("natural-ways-to-health-shiatsu")
	f.manager.UpdateQty("natural-ways-to-health-shiatsu", -2)
	_, err = f.svc.Checkout(context.Background(), "buyer@example.com")
	require.ErrorIs(t, err, checkout.ErrEmptyCart)
	require.Empty(t, f.provider.calls)
	require.Empty(t, f.store.Recent(0))
}

func TestCheckoutRequiresConfiguredProviderThenRecipient(t *testing.T) {
	f := newFixture(t)
	f.manager.Add("alternative-medicine-norman-shealy")
	f.provider.configErr = payment.ErrNotConfigured

	_, err := f.svc.Checkout(context.Background(), "")
	require.ErrorIs(t, err, checkout.ErrPaymentNotConfigured)
	require.ErrorIs(t, err, payment.ErrNotConfigured)

	f.provider.configErr = nil
	_, err = f.svc.Checkout(context.Background(), "   ")
	require.ErrorIs(t, err, checkout.ErrRecipientRequired)
	require.Empty(t, f.provider.calls)
	require.Equal(t, 1, f.manager.Totals().Count)
}

func TestCheckoutWithoutProvider(t *testing.T) {
	listing, err := catalog.New([]catalog.Item{{ID: "a", Price: 10}})
	require.NoError(t, err)
	m := cart.NewManager(listing)
	m.Add("a")
	svc := checkout.NewService(checkout.Config{Cart: m, Money: money.Default()})
	_, err = svc.Checkout(context.Background(), "buyer@example.com")
	require.ErrorIs(t, err, checkout.ErrPaymentNotConfigured)
}

func TestCheckoutOpensTransaction(t *testing.T) {
	f := newFixture(t)
	f.manager.Add("natural-ways-to-health-shiatsu")
	f.manager.Add("natural-ways-to-health-shiatsu")
	f.manager.Add("complete-illustrated-guide-reflexology")

	attempt, err := f.svc.Checkout(context.Background(), " buyer@example.com ")
	require.NoError(t, err)
	require.Equal(t, "BOOKS-1760000000000", attempt.Reference)
	require.Equal(t, int64(49000), attempt.Total)
	require.Equal(t, int64(4900000), attempt.Amount)
	require.Equal(t, "NGN", attempt.Currency)
	require.Equal(t, "https://pay.example/BOOKS-1760000000000", attempt.Handoff.AuthorizationURL)

	require.Len(t, f.provider.calls, 1)
	tx := f.provider.calls[0]
	require.Equal(t, "buyer@example.com", tx.Recipient)
	want := []payment.MetadataItem{
		{ID: "natural-ways-to-health-shiatsu", Title: "Natural Ways to Health: Shiatsu", Qty: 2, UnitPrice: 15000},
		{ID: "complete-illustrated-guide-reflexology", Title: "The Complete Illustrated Guide to Reflexology", Qty: 1, UnitPrice: 19000},
	}
	if diff := cmp.Diff(want, tx.Metadata.CartItems); diff != "" {
		t.Fatalf("metadata mismatch (-want +got):\n%s", diff)
	}

	require.Equal(t, 3, f.manager.Totals().Count, "cart untouched until the provider reports")
	_, ok := f.recorder.Latest()
	require.False(t, ok)

	recent := f.store.Recent(0)
	require.Len(t, recent, 1)
	require.Equal(t, events.TopicCheckoutStarted, recent[0].Topic)
}

func TestCheckoutReferencesAreUnique(t *testing.T) {
	f := newFixture(t)
	f.manager.Add("natural-ways-to-health-shiatsu")
	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		attempt, err := f.svc.Checkout(context.Background(), "buyer@example.com")
		require.NoError(t, err)
		require.False(t, seen[attempt.Reference])
		seen[attempt.Reference] = true
	}
}

func TestPaymentSuccessClearsCart(t *testing.T) {
	f := newFixture(t)
	f.manager.Add("illustrated-encyclopedia-essential-oils")
	f.manager.Add("complete-illustrated-guide-vitamins-minerals")
	attempt, err := f.svc.Checkout(context.Background(), "buyer@example.com")
	require.NoError(t, err)

	cb := f.provider.callbacks[0]
	cb.OnSuccess(payment.Receipt{Provider: "fake", Reference: attempt.Reference, TransactionID: "T-77"})
	cb.OnCancel()
	cb.OnSuccess(payment.Receipt{TransactionID: "T-78"})

	require.Empty(t, f.manager.Lines())
	require.Equal(t, cart.Totals{}, f.manager.Totals())

	outcome, ok := f.recorder.Latest()
	require.True(t, ok)
	require.Equal(t, checkout.Succeeded, outcome.Kind)
	require.Equal(t, attempt.Reference, outcome.Reference)
	require.Equal(t, "T-77", outcome.Transaction.TransactionID)
	require.Equal(t, "Payment complete! Reference: "+attempt.Reference, outcome.Message)
	require.NotContains(t, outcome.Message, "T-77")

	recent := f.store.Recent(0)
	require.Len(t, recent, 2)
	require.Equal(t, events.TopicPaymentSucceeded, recent[0].Topic)
}

func TestSuccessMessageFallsBackToAttemptReference(t *testing.T) {
	f := newFixture(t)
	f.manager.Add("illustrated-encyclopedia-essential-oils")
	attempt, err := f.svc.Checkout(context.Background(), "buyer@example.com")
	require.NoError(t, err)

	f.provider.callbacks[0].OnSuccess(payment.Receipt{TransactionID: "302961"})

	outcome, ok := f.recorder.Latest()
	require.True(t, ok)
	require.Equal(t, "Payment complete! Reference: "+attempt.Reference, outcome.Message)
	require.Equal(t, attempt.Reference, outcome.Transaction.Reference)
}

func TestPaymentCancelLeavesCartUnchanged(t *testing.T) {
	f := newFixture(t)
	f.manager.Add("complete-illustrated-guide-reflexology")
	f.manager.Add("natural-ways-to-health-shiatsu")
	f.manager.Add("complete-illustrated-guide-reflexology")
	before := f.manager.Snapshot()

	_, err := f.svc.Checkout(context.Background(), "buyer@example.com")
	require.NoError(t, err)
	cb := f.provider.callbacks[0]
	cb.OnCancel()
	cb.OnSuccess(payment.Receipt{TransactionID: "late"})

	if diff := cmp.Diff(before, f.manager.Snapshot()); diff != "" {
		t.Fatalf("cart changed after cancel (-before +after):\n%s", diff)
	}
	outcome, ok := f.recorder.Latest()
	require.True(t, ok)
	require.Equal(t, checkout.Cancelled, outcome.Kind)
	require.Nil(t, outcome.Transaction)
}

func TestProviderFailureIsReported(t *testing.T) {
	f := newFixture(t)
	f.manager.Add("natural-ways-to-health-shiatsu")
	boom := errors.New("connection refused")
	f.provider.openErr = boom

	_, err := f.svc.Checkout(context.Background(), "buyer@example.com")
	require.ErrorIs(t, err, checkout.ErrProviderUnavailable)
	require.ErrorIs(t, err, boom)
	require.Len(t, f.provider.calls, 1)
	require.Equal(t, 1, f.manager.Totals().Count)

	f.provider.openErr = payment.ErrNotConfigured
	_, err = f.svc.Checkout(context.Background(), "buyer@example.com")
	require.ErrorIs(t, err, checkout.ErrPaymentNotConfigured)
}

func TestOutcomesRunThroughDispatch(t *testing.T) {
	listing, err := catalog.New([]catalog.Item{{ID: "a", Title: "A", Price: 100}})
	require.NoError(t, err)
	m := cart.NewManager(listing)
	m.Add("a")
	provider := &fakeProvider{}
	var queued []func()
	var reported []checkout.Outcome
	svc := checkout.NewService(checkout.Config{
		Cart:      m,
		Provider:  provider,
		Money:     money.Default(),
		Dispatch:  func(fn func()) { queued = append(queued, fn) },
		Reporters: []checkout.OutcomeReporter{checkout.ReporterFunc(func(o checkout.Outcome) { reported = append(reported, o) }), nil},
	})

	_, err = svc.Checkout(context.Background(), "buyer@example.com")
	require.NoError(t, err)
	provider.callbacks[0].OnSuccess(payment.Receipt{TransactionID: "T1"})
	require.Len(t, queued, 1)
	require.Equal(t, 1, m.Totals().Count, "nothing applied until the owner runs the job")

	queued[0]()
	require.Zero(t, m.Totals().Count)
	require.Len(t, reported, 1)
}

func TestReferenceGeneratorIsStrictlyIncreasing(t *testing.T) {
	stuck := time.UnixMilli(1000)
	g := &checkout.ReferenceGenerator{Prefix: "SHOP", Now: func() time.Time { return stuck }}
	require.Equal(t, "SHOP-1000", g.Next())
	require.Equal(t, "SHOP-1001", g.Next())
	stuck = time.UnixMilli(500)
	require.Equal(t, "SHOP-1002", g.Next())
	stuck = time.UnixMilli(5000)
	require.Equal(t, "SHOP-5000", g.Next())

	require.Regexp(t, `^BOOKS-\d+$`, (&checkout.ReferenceGenerator{}).Next())
}
