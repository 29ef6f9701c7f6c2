package events_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront/internal/events"
)

type captureNotifier struct {
	events []events.Event
	err    error
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return c.err
}

type capturePublisher struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

func (p *capturePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	p.exchange, p.key, p.msg = exchange, key, msg
	return nil
}

func TestEmitStoresAndNotifies(t *testing.T) {
	store := events.NewMemoryStore(4)
	notifier := &captureNotifier{}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	bus := events.Bus{Store: store, Notifiers: []events.Notifier{notifier, nil}, Now: func() time.Time { return fixed }}

	ev, err := bus.Emit(context.Background(), events.TopicCheckoutStarted, "BOOKS-1", map[string]any{"amount": 1500000})
	require.NoError(t, err)
	require.Equal(t, events.TopicCheckoutStarted, ev.Topic)
	require.Equal(t, fixed, ev.OccurredAt)
	require.JSONEq(t, `{"amount":1500000}`, string(ev.Payload))
	require.Len(t, notifier.events, 1)
	require.Equal(t, ev.ID, notifier.events[0].ID)
	require.Equal(t, []events.Event{ev}, store.Recent(10))
}

func TestEmitValidatesInput(t *testing.T) {
	bus := events.Bus{}
	_, err := bus.Emit(context.Background(), " ", "BOOKS-1", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicPaymentSucceeded, "", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicPaymentSucceeded, "BOOKS-1", "not json")
	require.Error(t, err)

	var nilBus *events.Bus
	_, err = nilBus.Emit(context.Background(), events.TopicPaymentSucceeded, "BOOKS-1", nil)
	require.Error(t, err)

	ev, err := bus.Emit(context.Background(), events.TopicPaymentCancelled, "BOOKS-1", nil)
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(ev.Payload))
}

func TestEmitJoinsNotifierErrors(t *testing.T) {
	boom := errors.New("broker down")
	ok := &captureNotifier{}
	bus := events.Bus{Notifiers: []events.Notifier{&captureNotifier{err: boom}, ok}}

	ev, err := bus.Emit(context.Background(), events.TopicPaymentSucceeded, "BOOKS-2", json.RawMessage(`{"transaction":"T1"}`))
	require.ErrorIs(t, err, boom)
	require.Equal(t, "BOOKS-2", ev.Reference)
	require.Len(t, ok.events, 1)
}

func TestMemoryStoreRingKeepsNewest(t *testing.T) {
	store := events.NewMemoryStore(3)
	bus := events.Bus{Store: store}
	for _, ref := range []string{"a", "b", "c", "d"} {
		_, err := bus.Emit(context.Background(), events.TopicCheckoutStarted, ref, nil)
		require.NoError(t, err)
	}
	recent := store.Recent(0)
	require.Len(t, recent, 3)
	require.Equal(t, "d", recent[0].Reference)
	require.Equal(t, "b", recent[2].Reference)
	require.Len(t, store.Recent(1), 1)
}

func TestAMQPNotifierPublishesByTopic(t *testing.T) {
	pub := &capturePublisher{}
	bus := events.Bus{Notifiers: []events.Notifier{events.AMQPNotifier{Publisher: pub, Exchange: "storefront.events"}}}

	ev, err := bus.Emit(context.Background(), events.TopicPaymentSucceeded, "BOOKS-3", nil)
	require.NoError(t, err)
	require.Equal(t, "storefront.events", pub.exchange)
	require.Equal(t, events.TopicPaymentSucceeded, pub.key)
	require.Equal(t, ev.ID.String(), pub.msg.MessageId)
	require.Equal(t, "application/json", pub.msg.ContentType)

	var decoded events.Event
	require.NoError(t, json.Unmarshal(pub.msg.Body, &decoded))
	require.Equal(t, "BOOKS-3", decoded.Reference)

	require.NoError(t, events.AMQPNotifier{}.Notify(context.Background(), ev))
}

func TestLogNotifierWritesPayload(t *testing.T) {
	var buf bytes.Buffer
	bus := events.Bus{Notifiers: []events.Notifier{events.LogNotifier{Logger: zerolog.New(&buf)}}}
	_, err := bus.Emit(context.Background(), events.TopicPaymentCancelled, "BOOKS-4", map[string]string{"reason": "closed"})
	require.NoError(t, err)
	require.Contains(t, buf.String(), `"payload":{"reason":"closed"}`)
	require.Contains(t, buf.String(), `"topic":"payment.cancelled"`)
}

func TestDialAMQPRequiresURL(t *testing.T) {
	_, err := events.DialAMQP("", "x")
	require.Error(t, err)
	var conn *events.AMQPConnection
	require.NoError(t, conn.Close())
}

func TestDefaultTopicsAreUnique(t *testing.T) {
	topics := events.DefaultTopics()
	require.Len(t, topics, 3)
	seen := map[string]bool{}
	for _, topic := range topics {
		require.False(t, seen[topic], topic)
		seen[topic] = true
	}
	require.Contains(t, topics, events.TopicPaymentSucceeded)
}
