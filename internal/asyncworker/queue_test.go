package asyncworker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// echoWorker answers every request with "echo:" + request. A gate, when set,
// holds Handle open until the gate closes.
type echoWorker struct {
	id        string
	gate      <-chan struct{}
	destroyed chan<- string
}

func (w *echoWorker) Handle(ctx context.Context, request string) string {
	if w.gate != nil {
		select {
		case <-w.gate:
		case <-ctx.Done():
		}
	}
	return "echo:" + request
}

func (w *echoWorker) Destroy(ctx context.Context) {
	if w.destroyed != nil {
		w.destroyed <- w.id
	}
}

type queueConfig struct {
	options   Options
	gate      <-chan struct{}
	destroyed chan<- string
}

func newTestQueue(t *testing.T, config queueConfig) *Queue[string, struct{}, string, string] {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	create := func(ctx context.Context, id string, _ struct{}) Worker[string, string] {
		return &echoWorker{id: id, gate: config.gate, destroyed: config.destroyed}
	}

	return NewQueue(ctx, config.options, struct{}{}, create)
}

// testHandle is a channel-backed streaming consumer.
type testHandle struct {
	requests chan string
	sent     chan string
	drops    chan DropReason
	closed   atomic.Bool
}

func newTestHandle() *testHandle {
	return &testHandle{
		requests: make(chan string, 16),
		sent:     make(chan string, 16),
		drops:    make(chan DropReason, 4),
	}
}

func (h *testHandle) Requests() <-chan string { return h.requests }

func (h *testHandle) Send(ctx context.Context, response string) SendResult {
	if h.closed.Load() {
		return SendClosed
	}
	h.sent <- response
	return Sent
}

func (h *testHandle) WillDrop(ctx context.Context, reason DropReason) {
	h.drops <- reason
}

func recvWithin[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case value := <-ch:
		return value
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

func TestWorkerOrdering(t *testing.T) {
	queue := newTestQueue(t, queueConfig{options: Options{MaxLength: 10}})
	ctx := context.Background()

	requests := []string{"r1", "r2", "r3", "r4", "r5"}
	for _, request := range requests {
		require.NoError(t, queue.Enqueue(ctx, "session", request))
	}

	// Responses preserve handling order no matter how the polls interleave
	// with the worker.
	for _, request := range requests {
		response, err := queue.Poll(ctx, "session")
		require.NoError(t, err)
		assert.Equal(t, "echo:"+request, response)
	}
}

func TestPollManyDrainsInOrder(t *testing.T) {
	queue := newTestQueue(t, queueConfig{options: Options{MaxLength: 10}})
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, "session", "r1"))
	require.NoError(t, queue.Enqueue(ctx, "session", "r2"))
	require.NoError(t, queue.Enqueue(ctx, "session", "r3"))

	var collected []string
	for len(collected) < 3 {
		responses, err := queue.PollMany(ctx, "session")
		require.NoError(t, err)
		collected = append(collected, responses...)
	}

	assert.Equal(t, []string{"echo:r1", "echo:r2", "echo:r3"}, collected)
}

func TestEnqueueBackpressure(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)

	queue := newTestQueue(t, queueConfig{options: Options{MaxLength: 2}, gate: gate})
	ctx := context.Background()

	// The first request is being handled; it never entered the channel.
	require.NoError(t, queue.Enqueue(ctx, "session", "r1"))

	// Give the worker a moment to pick up r1 and block in Handle.
	require.Eventually(t, func() bool {
		if err := queue.Enqueue(ctx, "session", "fill1"); err != nil {
			return false
		}
		return true
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, queue.Enqueue(ctx, "session", "fill2"))

	// The channel now holds MaxLength messages; the next enqueue fails
	// synchronously instead of blocking.
	err := queue.Enqueue(ctx, "session", "overflow")
	assert.ErrorIs(t, err, ErrWorkerAtCapacity)
}

func TestPollUnknownSession(t *testing.T) {
	queue := newTestQueue(t, queueConfig{options: Options{MaxLength: 5}})

	_, err := queue.Poll(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNoWorker)

	err = queue.RegisterHandle("ghost", newTestHandle())
	assert.ErrorIs(t, err, ErrNoWorker)
}

func TestNewerPollCedesOlder(t *testing.T) {
	queue := newTestQueue(t, queueConfig{options: Options{MaxLength: 5}})
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, "session", "r1"))
	_, err := queue.Poll(ctx, "session")
	require.NoError(t, err)

	older := make(chan error, 1)
	go func() {
		_, err := queue.Poll(ctx, "session")
		older <- err
	}()

	// Let the older poll install itself as the waiter.
	time.Sleep(50 * time.Millisecond)

	newer := make(chan string, 1)
	go func() {
		response, err := queue.Poll(ctx, "session")
		require.NoError(t, err)
		newer <- response
	}()

	// The older poll is ceded the moment the newer one arrives.
	assert.ErrorIs(t, recvWithin(t, older, "older poll outcome"), ErrCeded)

	require.NoError(t, queue.Enqueue(ctx, "session", "r2"))
	assert.Equal(t, "echo:r2", recvWithin(t, newer, "newer poll response"))
}

func TestHandleDominatesPolls(t *testing.T) {
	queue := newTestQueue(t, queueConfig{options: Options{MaxLength: 5}})
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, "session", "r1"))
	_, err := queue.Poll(ctx, "session")
	require.NoError(t, err)

	handle := newTestHandle()
	require.NoError(t, queue.RegisterHandle("session", handle))

	// Responses flow to the handle.
	require.NoError(t, queue.Enqueue(ctx, "session", "r2"))
	assert.Equal(t, "echo:r2", recvWithin(t, handle.sent, "handle response"))

	// Any poll is told it lost, without consuming anything.
	_, err = queue.Poll(ctx, "session")
	assert.ErrorIs(t, err, ErrCeded)

	_, err = queue.PollMany(ctx, "session")
	assert.ErrorIs(t, err, ErrCeded)
}

func TestNewerHandleCedesOlder(t *testing.T) {
	queue := newTestQueue(t, queueConfig{options: Options{MaxLength: 5}})
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, "session", "r1"))
	_, err := queue.Poll(ctx, "session")
	require.NoError(t, err)

	first := newTestHandle()
	require.NoError(t, queue.RegisterHandle("session", first))

	second := newTestHandle()
	require.NoError(t, queue.RegisterHandle("session", second))

	assert.Equal(t, DropCeded, recvWithin(t, first.drops, "first handle drop reason"))

	// The new handle owns the response stream now.
	require.NoError(t, queue.Enqueue(ctx, "session", "r2"))
	assert.Equal(t, "echo:r2", recvWithin(t, second.sent, "second handle response"))
}

func TestClosedHandleFallsBackToPending(t *testing.T) {
	queue := newTestQueue(t, queueConfig{options: Options{MaxLength: 5}})
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, "session", "r1"))
	_, err := queue.Poll(ctx, "session")
	require.NoError(t, err)

	// The client behind the first handle goes away mid-flight: the rejected
	// response lands in the pending buffer, and a later handle drains it.
	first := newTestHandle()
	first.closed.Store(true)
	require.NoError(t, queue.RegisterHandle("session", first))

	require.NoError(t, queue.Enqueue(ctx, "session", "r2"))
	assert.Equal(t, DropHandleClosed, recvWithin(t, first.drops, "first handle drop reason"))

	second := newTestHandle()
	require.NoError(t, queue.RegisterHandle("session", second))
	assert.Equal(t, "echo:r2", recvWithin(t, second.sent, "drained response"))
}

func TestRegisterHandleDrainsPending(t *testing.T) {
	queue := newTestQueue(t, queueConfig{options: Options{MaxLength: 5}})
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, "session", "r1"))
	require.NoError(t, queue.Enqueue(ctx, "session", "r2"))

	// Wait for both responses to be buffered.
	require.Eventually(t, func() bool {
		queue.mu.Lock()
		defer queue.mu.Unlock()
		entry := queue.entries["session"]
		return entry != nil && len(entry.inbound) == 0
	}, time.Second, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	handle := newTestHandle()
	require.NoError(t, queue.RegisterHandle("session", handle))

	assert.Equal(t, "echo:r1", recvWithin(t, handle.sent, "first drained response"))
	assert.Equal(t, "echo:r2", recvWithin(t, handle.sent, "second drained response"))
}

func TestHandleRequestsAreEnqueued(t *testing.T) {
	queue := newTestQueue(t, queueConfig{options: Options{MaxLength: 5}})
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, "session", "r1"))
	_, err := queue.Poll(ctx, "session")
	require.NoError(t, err)

	handle := newTestHandle()
	require.NoError(t, queue.RegisterHandle("session", handle))

	// A request arriving on the handle behaves exactly like an enqueue, and
	// its response streams back to the handle.
	handle.requests <- "from-stream"
	assert.Equal(t, "echo:from-stream", recvWithin(t, handle.sent, "streamed response"))
}

func TestHandleCloseDetaches(t *testing.T) {
	queue := newTestQueue(t, queueConfig{options: Options{MaxLength: 5}})
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, "session", "r1"))
	_, err := queue.Poll(ctx, "session")
	require.NoError(t, err)

	handle := newTestHandle()
	require.NoError(t, queue.RegisterHandle("session", handle))
	close(handle.requests)

	assert.Equal(t, DropHandleClosed, recvWithin(t, handle.drops, "drop reason"))

	// With the handle gone, polling works again.
	require.NoError(t, queue.Enqueue(ctx, "session", "r2"))
	response, err := queue.Poll(ctx, "session")
	require.NoError(t, err)
	assert.Equal(t, "echo:r2", response)
}

func TestTerminateReleasesHandleAndDestroys(t *testing.T) {
	destroyed := make(chan string, 1)
	queue := newTestQueue(t, queueConfig{options: Options{MaxLength: 5}, destroyed: destroyed})
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, "session", "r1"))
	_, err := queue.Poll(ctx, "session")
	require.NoError(t, err)

	handle := newTestHandle()
	require.NoError(t, queue.RegisterHandle("session", handle))

	queue.Terminate("session")

	assert.Equal(t, DropWorkerTerminated, recvWithin(t, handle.drops, "drop reason"))
	assert.Equal(t, "session", recvWithin(t, destroyed, "destroy"))
}

func TestTerminateReleasesWaitingPoll(t *testing.T) {
	destroyed := make(chan string, 1)
	queue := newTestQueue(t, queueConfig{options: Options{MaxLength: 5}, destroyed: destroyed})
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, "session", "r1"))
	_, err := queue.Poll(ctx, "session")
	require.NoError(t, err)

	pollErr := make(chan error, 1)
	go func() {
		_, err := queue.Poll(ctx, "session")
		pollErr <- err
	}()
	time.Sleep(50 * time.Millisecond)

	queue.Terminate("session")

	assert.ErrorIs(t, recvWithin(t, pollErr, "poll outcome"), ErrWorkerTerminated)
	assert.Equal(t, "session", recvWithin(t, destroyed, "destroy"))
}

func TestInactivityTimeout(t *testing.T) {
	destroyed := make(chan string, 1)
	queue := newTestQueue(t, queueConfig{
		options:   Options{MaxLength: 5, TerminateWorkerAfter: 80 * time.Millisecond},
		destroyed: destroyed,
	})
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, "session", "r1"))
	response, err := queue.Poll(ctx, "session")
	require.NoError(t, err)
	assert.Equal(t, "echo:r1", response)

	// After the response is consumed and the window passes, the worker winds
	// itself down.
	assert.Equal(t, "session", recvWithin(t, destroyed, "destroy"))

	// The stale entry is reaped on the next access; the access itself
	// reports no worker.
	err = queue.Enqueue(ctx, "session", "r2")
	assert.ErrorIs(t, err, ErrNoWorker)

	// With the entry gone, the same id spawns a fresh worker.
	require.NoError(t, queue.Enqueue(ctx, "session", "r3"))
	response, err = queue.Poll(ctx, "session")
	require.NoError(t, err)
	assert.Equal(t, "echo:r3", response)
}

func TestPollWhileTimeoutDoesNotLoseResponse(t *testing.T) {
	queue := newTestQueue(t, queueConfig{options: Options{MaxLength: 5}})
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, "session", "r1"))
	_, err := queue.Poll(ctx, "session")
	require.NoError(t, err)

	// Nothing is pending, so the poll waits and then times out.
	_, err = queue.PollWhile(ctx, "session", 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)

	// The consumer left; the next response falls through to the pending
	// buffer rather than being dropped.
	require.NoError(t, queue.Enqueue(ctx, "session", "r2"))
	response, err := queue.Poll(ctx, "session")
	require.NoError(t, err)
	assert.Equal(t, "echo:r2", response)
}

func TestPollManyWhileTimeout(t *testing.T) {
	queue := newTestQueue(t, queueConfig{options: Options{MaxLength: 5}})
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, "session", "r1"))
	_, err := queue.Poll(ctx, "session")
	require.NoError(t, err)

	_, err = queue.PollManyWhile(ctx, "session", 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}
