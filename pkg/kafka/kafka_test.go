package kafka

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

// fakeReader serves queued messages, then blocks until ctx is canceled.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) committedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func eventMessage(t *testing.T, eventType, aggregateID string) kafka.Message {
	t.Helper()
	ev, err := NewEvent(eventType, aggregateID, "listing", "market-api", map[string]string{"id": aggregateID})
	require.NoError(t, err)
	raw, err := ev.Marshal()
	require.NoError(t, err)
	return kafka.Message{Topic: Topic("listing", "created"), Value: raw}
}

// --- KafkaHeaderCarrier ---

func TestKafkaHeaderCarrier_SetReplacesExisting(t *testing.T) {
	headers := []kafka.Header{{Key: "traceparent", Value: []byte("old")}}
	c := &KafkaHeaderCarrier{headers: &headers}

	c.Set("traceparent", "new")
	c.Set("tracestate", "x=1")

	assert.Equal(t, "new", c.Get("traceparent"))
	assert.Equal(t, "x=1", c.Get("tracestate"))
	assert.Empty(t, c.Get("missing"))
	assert.ElementsMatch(t, []string{"traceparent", "tracestate"}, c.Keys())
}

func TestTracePropagation_RoundTrip(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	var msg kafka.Message
	injectTrace(ctx, &msg)
	got := trace.SpanContextFromContext(extractTrace(context.Background(), &msg))

	assert.Equal(t, traceID, got.TraceID())
	assert.True(t, got.IsRemote())
}

// --- Producer ---

func TestProducer_PublishKeysByAggregate(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, nil, testLogger())

	ev, err := NewEvent("listing.created", "lst-9", "listing", "market-api", map[string]int{"size": 42})
	require.NoError(t, err)
	ev.WithCorrelationID("corr-9").WithActor("seller-3")

	require.NoError(t, p.Publish(context.Background(), Topic("listing", "created"), ev))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "market.listing.created", msg.Topic)
	assert.Equal(t, "lst-9", string(msg.Key))

	carrier := &KafkaHeaderCarrier{headers: &msg.Headers}
	assert.Equal(t, "listing.created", carrier.Get("event_type"))
	assert.Equal(t, "corr-9", carrier.Get("correlation_id"))
	assert.Equal(t, "seller-3", carrier.Get("actor_id"))
}

func TestProducer_PublishError(t *testing.T) {
	p := NewProducerWithWriter(&fakeWriter{err: errors.New("broker down")}, nil, testLogger())
	ev, err := NewEvent("listing.deleted", "lst-1", "listing", "market-api", nil)
	require.NoError(t, err)

	err = p.Publish(context.Background(), "market.listing.deleted", ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	require.Error(t, PingBrokers(context.Background(), nil))
}

// --- Consumer ---

func runConsumer(t *testing.T, r *fakeReader, h Handler, wantCommits int) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	c := NewConsumerWithReader(r, "market.listing.created", "indexer", h, testLogger())
	c.backoff = time.Millisecond

	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return r.committedCount() == wantCommits }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.True(t, r.closed)
}

func TestConsumer_HandlesAndCommits(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{
		eventMessage(t, "listing.created", "a"),
		eventMessage(t, "listing.created", "b"),
	}}

	var mu sync.Mutex
	var seen []string
	runConsumer(t, r, func(_ context.Context, ev *Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, ev.AggregateID)
		return nil
	}, 2)

	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestConsumer_MalformedMessageIsSkipped(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{{Topic: "market.listing.created", Value: []byte("garbage")}}}

	called := false
	runConsumer(t, r, func(context.Context, *Event) error {
		called = true
		return nil
	}, 1)

	assert.False(t, called)
}

func TestConsumer_RetriesThenDrops(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{eventMessage(t, "listing.updated", "x")}}

	var mu sync.Mutex
	attempts := 0
	runConsumer(t, r, func(context.Context, *Event) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		return errors.New("index unavailable")
	}, 1)

	assert.Equal(t, maxHandlerRetries, attempts)
}

func TestConsumer_RetrySucceeds(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{eventMessage(t, "listing.updated", "y")}}

	var mu sync.Mutex
	attempts := 0
	runConsumer(t, r, func(context.Context, *Event) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	}, 1)

	assert.Equal(t, 2, attempts)
}

// --- Idempotency ---

func TestMemoryIdempotencyStore(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	ctx := context.Background()

	ok, err := store.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.MarkSeen(ctx, "evt-1"))
	ok, err = store.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryIdempotencyStore_ExpiryAndSweep(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := newMemoryIdempotencyStore(time.Minute, func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, store.MarkSeen(ctx, "evt-1"))
	now = now.Add(2 * time.Minute)

	ok, err := store.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, store.Len())

	require.NoError(t, store.MarkSeen(ctx, "evt-2"))
	assert.Equal(t, 1, store.Len())
}

func TestRedisIdempotencyStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisIdempotencyStore(client, "indexer:seen:", time.Hour)
	ctx := context.Background()

	ok, err := store.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.MarkSeen(ctx, "evt-1"))
	ok, err = store.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("indexer:seen:evt-1"))

	mr.FastForward(2 * time.Hour)
	ok, err = store.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIdempotentHandler_SkipsDuplicates(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	calls := 0
	h := IdempotentHandler("market-indexer", store, func(context.Context, *Event) error {
		calls++
		return nil
	}, testLogger())

	ev := &Event{EventID: "evt-7"}
	require.NoError(t, h(context.Background(), ev))
	require.NoError(t, h(context.Background(), ev))
	assert.Equal(t, 1, calls)
}

func TestIdempotentHandler_FailureIsNotRecorded(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	calls := 0
	h := IdempotentHandler("market-indexer", store, func(context.Context, *Event) error {
		calls++
		if calls == 1 {
			return errors.New("boom")
		}
		return nil
	}, testLogger())

	ev := &Event{EventID: "evt-8"}
	require.Error(t, h(context.Background(), ev))
	require.NoError(t, h(context.Background(), ev))
	assert.Equal(t, 2, calls)
}

type brokenStore struct{}

func (brokenStore) Seen(context.Context, string) (bool, error) { return false, errors.New("down") }
func (brokenStore) MarkSeen(context.Context, string) error     { return errors.New("down") }

func TestIdempotentHandler_StoreFailureStillProcesses(t *testing.T) {
	calls := 0
	h := IdempotentHandler("market-indexer", brokenStore{}, func(context.Context, *Event) error {
		calls++
		return nil
	}, testLogger())

	require.NoError(t, h(context.Background(), &Event{EventID: "evt-9"}))
	assert.Equal(t, 1, calls)
}
