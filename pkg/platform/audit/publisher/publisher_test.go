package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "profilegate/pkg/platform/audit"
	"profilegate/pkg/platform/audit/store/memory"
)

func accepted(subject string) audit.Event {
	return audit.Event{
		Action:   string(audit.EventProfileAccepted),
		Subject:  subject,
		Mode:     "create",
		Decision: "accepted",
	}
}

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	err := pub.Emit(context.Background(), accepted("1"))
	require.NoError(t, err)

	events, err := pub.List(context.Background(), "1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventProfileAccepted), events[0].Action)
	assert.NotEmpty(t, events[0].ID)
}

func TestPublisher_AsyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))
	defer pub.Close()

	err := pub.Emit(context.Background(), accepted("2"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		events, _ := pub.List(context.Background(), "2")
		return len(events) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	for range 10 {
		require.NoError(t, pub.Emit(context.Background(), accepted("3")))
	}

	pub.Close()

	events, err := store.ListBySubject(context.Background(), "3")
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_EmitAfterClose(t *testing.T) {
	pub := NewPublisher(memory.NewInMemoryStore(), WithAsyncBuffer(1))
	pub.Close()
	pub.Close()

	assert.ErrorIs(t, pub.Emit(context.Background(), accepted("4")), ErrClosed)
}

func TestPublisher_BufferFull_DropsEvent(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	pub := NewPublisher(store, WithAsyncBuffer(1))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		dropped int
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if errors.Is(pub.Emit(context.Background(), accepted("5")), ErrBufferFull) {
				mu.Lock()
				dropped++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	close(store.release)
	pub.Close()

	assert.Positive(t, dropped)
}

func TestPublisher_SetsTimestamp(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithClock(func() time.Time { return fixed }))
	defer pub.Close()

	require.NoError(t, pub.Emit(context.Background(), accepted("6")))

	events, err := pub.List(context.Background(), "6")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, fixed, events[0].Timestamp)
}

func TestPublisher_PreservesExistingTimestampAndID(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	custom := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	event := accepted("7")
	event.Timestamp = custom
	event.ID = "evt-1"
	require.NoError(t, pub.Emit(context.Background(), event))

	events, err := pub.List(context.Background(), "7")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, custom, events[0].Timestamp)
	assert.Equal(t, "evt-1", events[0].ID)
}

func TestPublisher_ContextCancellation(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer func() {
		close(store.release)
		pub.Close()
	}()

	// First event is picked up by the worker and blocks; second fills the buffer.
	require.NoError(t, pub.Emit(context.Background(), accepted("8")))
	require.Eventually(t, func() bool { return store.started() }, time.Second, 5*time.Millisecond)
	require.NoError(t, pub.Emit(context.Background(), accepted("8")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pub.Emit(ctx, accepted("8"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPublisher_ListUnsupported(t *testing.T) {
	pub := NewPublisher(&blockingStore{release: make(chan struct{})})
	_, err := pub.List(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotListable)
}

// blockingStore holds every Append until release is closed.
type blockingStore struct {
	release chan struct{}
	mu      sync.Mutex
	calls   int
}

func (s *blockingStore) Append(_ context.Context, _ audit.Event) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	<-s.release
	return nil
}

func (s *blockingStore) started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls > 0
}
