package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sixthextinction/burn-after-reading-redis-next-notify/internal/idempotency"
	"github.com/sixthextinction/burn-after-reading-redis-next-notify/internal/message"
	"github.com/sixthextinction/burn-after-reading-redis-next-notify/internal/recorder"
)

// ---- Notifier Mock ----

type mockNotifier struct {
	mu     sync.Mutex
	events []ReadEvent
	err    error
	done   chan struct{}
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{done: make(chan struct{}, 16)}
}

func (notifier *mockNotifier) Notify(ctx context.Context, event ReadEvent) error {
	notifier.mu.Lock()
	notifier.events = append(notifier.events, event)
	notifier.mu.Unlock()
	notifier.done <- struct{}{}
	return notifier.err
}

func (notifier *mockNotifier) waitForDelivery(t *testing.T) {
	t.Helper()
	select {
	case <-notifier.done:
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not delivered in time")
	}
}

func (notifier *mockNotifier) deliveredEvents() []ReadEvent {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	return append([]ReadEvent(nil), notifier.events...)
}

// ---- Recorder Mock ----

type mockRecorder struct {
	mu      sync.Mutex
	records []recorder.Record
	err     error
}

func (mock *mockRecorder) Save(ctx context.Context, record recorder.Record) error {
	if mock.err != nil {
		return mock.err
	}
	mock.mu.Lock()
	defer mock.mu.Unlock()
	mock.records = append(mock.records, record)
	return nil
}

// ---- Enqueuer Mock ----

type mockEnqueuer struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

func (mock *mockEnqueuer) Enqueue(ctx context.Context, payload []byte) error {
	if mock.err != nil {
		return mock.err
	}
	mock.mu.Lock()
	defer mock.mu.Unlock()
	mock.payloads = append(mock.payloads, payload)
	return nil
}

func (mock *mockEnqueuer) Close() {}

func TestDispatchReadInlineDelivers(t *testing.T) {
	notifier := newMockNotifier()

	dispatcher := NewDispatcher(DispatcherOptions{
		Notifier:     notifier,
		PreviewLimit: 160,
	})

	record := message.Record{
		ID:      "abc",
		Content: "hello",
		Policy:  message.OneTime(),
	}

	dispatcher.DispatchRead(context.Background(), record)
	notifier.waitForDelivery(t)

	events := notifier.deliveredEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "abc", events[0].MessageID)
	assert.Equal(t, "hello", events[0].Preview)
}

func TestDispatchReadBuildsTruncatedPreview(t *testing.T) {
	notifier := newMockNotifier()

	dispatcher := NewDispatcher(DispatcherOptions{
		Notifier:     notifier,
		PreviewLimit: 4,
	})

	dispatcher.DispatchRead(context.Background(), message.Record{
		ID:      "abc",
		Content: "secret message",
	})
	notifier.waitForDelivery(t)

	events := notifier.deliveredEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "secr...", events[0].Preview)
}

func TestDispatchEventDeduplicates(t *testing.T) {
	notifier := newMockNotifier()
	checker := idempotency.NewMemoryChecker()

	dispatcher := NewDispatcher(DispatcherOptions{
		Notifier: notifier,
		Checker:  checker,
	})

	event := ReadEvent{MessageID: "abc", Preview: "hello", ReadAt: time.Now()}

	dispatcher.DispatchEvent(context.Background(), event)
	notifier.waitForDelivery(t)

	// 重复事件被去重,不会再次投递
	dispatcher.DispatchEvent(context.Background(), event)

	time.Sleep(100 * time.Millisecond)
	assert.Len(t, notifier.deliveredEvents(), 1)
}

func TestDispatchEventEnqueuesWhenQueueConfigured(t *testing.T) {
	notifier := newMockNotifier()
	enqueuer := &mockEnqueuer{}

	dispatcher := NewDispatcher(DispatcherOptions{
		Notifier: notifier,
		Enqueuer: enqueuer,
	})

	event := ReadEvent{MessageID: "abc", Preview: "hello", ReadAt: time.Unix(1700000000, 0)}
	dispatcher.DispatchEvent(context.Background(), event)

	require.Len(t, enqueuer.payloads, 1)

	var decoded ReadEvent
	require.NoError(t, json.Unmarshal(enqueuer.payloads[0], &decoded))
	assert.Equal(t, "abc", decoded.MessageID)

	// 队列模式下不直接投递
	assert.Empty(t, notifier.deliveredEvents())
}

func TestDeliverRecordsOutcome(t *testing.T) {
	notifier := newMockNotifier()
	deliveryRecorder := &mockRecorder{}

	dispatcher := NewDispatcher(DispatcherOptions{
		Notifier: notifier,
		Recorder: deliveryRecorder,
	})

	event := ReadEvent{MessageID: "abc", ReadAt: time.Unix(1700000000, 0)}

	require.NoError(t, dispatcher.Deliver(context.Background(), event, 1))
	require.Len(t, deliveryRecorder.records, 1)
	assert.Equal(t, recorder.StatusSent, deliveryRecorder.records[0].Status)
	assert.Equal(t, 1, deliveryRecorder.records[0].Attempt)

	notifier.err = errors.New("smtp down")

	err := dispatcher.Deliver(context.Background(), event, 2)
	require.Error(t, err)
	require.Len(t, deliveryRecorder.records, 2)
	assert.Equal(t, recorder.StatusFailed, deliveryRecorder.records[1].Status)
	assert.Contains(t, deliveryRecorder.records[1].ErrorDetail, "smtp down")
}

func TestHandleQueuedEventCorruptPayloadIsDropped(t *testing.T) {
	notifier := newMockNotifier()

	dispatcher := NewDispatcher(DispatcherOptions{Notifier: notifier})

	// 损坏载荷不返回错误,避免队列无限重试
	err := dispatcher.HandleQueuedEvent(context.Background(), []byte("{bad"), 1)
	assert.NoError(t, err)
	assert.Empty(t, notifier.deliveredEvents())
}

func TestHandleQueuedEventDelivers(t *testing.T) {
	notifier := newMockNotifier()

	dispatcher := NewDispatcher(DispatcherOptions{Notifier: notifier})

	payload, err := json.Marshal(ReadEvent{MessageID: "abc", Preview: "hello"})
	require.NoError(t, err)

	require.NoError(t, dispatcher.HandleQueuedEvent(context.Background(), payload, 3))

	events := notifier.deliveredEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "abc", events[0].MessageID)
}
