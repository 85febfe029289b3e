package asyncworker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/radical-ui/objection/internal/logging"
)

// Options configures a queue.
type Options struct {
	// MaxLength bounds each worker's inbound channel. If MaxLength
	// operations are queued before the worker gets to them, the next one
	// fails with ErrWorkerAtCapacity. Polls and handle registrations share
	// this budget with enqueues.
	MaxLength int

	// TerminateWorkerAfter is the inactivity window after which a worker is
	// automatically terminated. Polling counts as activity.
	TerminateWorkerAfter time.Duration
}

// DefaultOptions mirrors the queue's historical defaults.
func DefaultOptions() Options {
	return Options{
		MaxLength:            5,
		TerminateWorkerAfter: 20 * time.Minute,
	}
}

// spawnMessage asks the spawner to start a worker task.
type spawnMessage[I comparable, Req, Resp any] struct {
	id             I
	entry          *workerEntry[Req, Resp]
	initialRequest Req
}

// workerEntry is the queue's per-worker channel record. done is closed by the
// worker task on exit so stale entries can be detected and reaped; stop is
// closed by Terminate to request a graceful wind-down.
type workerEntry[Req, Resp any] struct {
	inbound  chan taskMessage[Req, Resp]
	done     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

func (e *workerEntry[Req, Resp]) requestStop() {
	e.stopOnce.Do(func() { close(e.stop) })
}

// Queue owns the id-to-channel map and the spawner task. All operations are
// non-blocking except the polls, which wait for a response.
type Queue[I comparable, C, Req, Resp any] struct {
	options       Options
	workerContext C
	create        CreateFunc[I, C, Req, Resp]

	mu      sync.Mutex
	entries map[I]*workerEntry[Req, Resp]

	spawns chan spawnMessage[I, Req, Resp]
}

// NewQueue builds a queue and starts its spawner. The spawner and every
// worker it starts wind down when ctx is canceled.
func NewQueue[I comparable, C, Req, Resp any](ctx context.Context, options Options, workerContext C, create CreateFunc[I, C, Req, Resp]) *Queue[I, C, Req, Resp] {
	if options.MaxLength <= 0 {
		options.MaxLength = DefaultOptions().MaxLength
	}
	if options.TerminateWorkerAfter <= 0 {
		options.TerminateWorkerAfter = DefaultOptions().TerminateWorkerAfter
	}

	queue := &Queue[I, C, Req, Resp]{
		options:       options,
		workerContext: workerContext,
		create:        create,
		entries:       map[I]*workerEntry[Req, Resp]{},
		spawns:        make(chan spawnMessage[I, Req, Resp], 1000),
	}

	go queue.driveWorkers(ctx)

	return queue
}

// driveWorkers starts a task per spawn message until the queue's context
// ends.
func (q *Queue[I, C, Req, Resp]) driveWorkers(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case message := <-q.spawns:
			go q.runWorker(ctx, message.id, message.entry, message.initialRequest)
		}
	}
}

// Enqueue hands a request to the worker for id, spawning one if none exists.
// The response can be retrieved by polling or through an attached handle.
func (q *Queue[I, C, Req, Resp]) Enqueue(ctx context.Context, id I, request Req) error {
	err := q.trySend(id, taskMessage[Req, Resp]{kind: messageEnqueue, request: request})
	if !errors.Is(err, errNoEntry) {
		return err
	}

	entry := &workerEntry[Req, Resp]{
		inbound: make(chan taskMessage[Req, Resp], q.options.MaxLength),
		done:    make(chan struct{}),
		stop:    make(chan struct{}),
	}

	q.mu.Lock()
	if _, ok := q.entries[id]; ok {
		// A concurrent enqueue spawned this id first; hand the request to
		// that worker instead.
		q.mu.Unlock()
		return q.Enqueue(ctx, id, request)
	}
	q.entries[id] = entry
	q.mu.Unlock()

	select {
	case q.spawns <- spawnMessage[I, Req, Resp]{id: id, entry: entry, initialRequest: request}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RegisterHandle attaches a streaming consumer to the worker for id. Handles
// take precedence over polling: while one is attached, every response is
// piped to it and poll calls are told ErrCeded.
func (q *Queue[I, C, Req, Resp]) RegisterHandle(id I, handle Handle[Req, Resp]) error {
	err := q.trySend(id, taskMessage[Req, Resp]{kind: messageRegisterHandle, handle: handle})
	if errors.Is(err, errNoEntry) {
		return ErrNoWorker
	}
	return err
}

// Poll waits for the worker's next response. A newer poll or an attached
// handle cedes this one; worker termination fails it with
// ErrWorkerTerminated.
func (q *Queue[I, C, Req, Resp]) Poll(ctx context.Context, id I) (Resp, error) {
	var zero Resp

	r := newResponder[Resp]()
	err := q.trySend(id, taskMessage[Req, Resp]{kind: messagePoll, pollResponder: r})
	if errors.Is(err, errNoEntry) {
		return zero, ErrNoWorker
	}
	if err != nil {
		return zero, err
	}

	select {
	case outcome := <-r.ch:
		return outcome.value, outcome.err
	case <-ctx.Done():
		r.abandon()
		return zero, ctx.Err()
	}
}

// PollMany waits for the worker's next responses, draining the whole pending
// buffer at once. Failure modes match Poll.
func (q *Queue[I, C, Req, Resp]) PollMany(ctx context.Context, id I) ([]Resp, error) {
	r := newResponder[[]Resp]()
	err := q.trySend(id, taskMessage[Req, Resp]{kind: messagePollMany, pollManyResponder: r})
	if errors.Is(err, errNoEntry) {
		return nil, ErrNoWorker
	}
	if err != nil {
		return nil, err
	}

	select {
	case outcome := <-r.ch:
		return outcome.value, outcome.err
	case <-ctx.Done():
		r.abandon()
		return nil, ctx.Err()
	}
}

// PollWhile polls, but gives up with ErrTimeout after duration. Timing out
// does not cancel the in-flight Handle call; its response falls through to
// the pending buffer or whichever consumer is current when it completes.
func (q *Queue[I, C, Req, Resp]) PollWhile(ctx context.Context, id I, duration time.Duration) (Resp, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	response, err := q.Poll(timeoutCtx, id)
	if errors.Is(err, context.DeadlineExceeded) {
		return response, ErrTimeout
	}
	return response, err
}

// PollManyWhile is PollMany with a timeout, see PollWhile.
func (q *Queue[I, C, Req, Resp]) PollManyWhile(ctx context.Context, id I, duration time.Duration) ([]Resp, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	responses, err := q.PollMany(timeoutCtx, id)
	if errors.Is(err, context.DeadlineExceeded) {
		return responses, ErrTimeout
	}
	return responses, err
}

// Terminate queues a graceful wind-down of the worker for id: it finishes
// its current Handle call, releases its handle and any waiting poll, and
// runs Destroy.
func (q *Queue[I, C, Req, Resp]) Terminate(id I) {
	q.mu.Lock()
	entry, ok := q.entries[id]
	if ok {
		delete(q.entries, id)
	}
	q.mu.Unlock()

	if ok {
		entry.requestStop()
	}
}

// errNoEntry distinguishes "no map entry" (spawn is possible) from the
// exported ErrNoWorker (stale entry, reaped).
var errNoEntry = errors.New("no entry")

// trySend performs the bounded, non-blocking send that every operation goes
// through. A full channel is ErrWorkerAtCapacity; a dead worker's entry is
// removed and reported as ErrNoWorker.
func (q *Queue[I, C, Req, Resp]) trySend(id I, message taskMessage[Req, Resp]) error {
	q.mu.Lock()
	entry, ok := q.entries[id]
	q.mu.Unlock()

	if !ok {
		return errNoEntry
	}

	select {
	case <-entry.done:
		q.removeEntry(id, entry)
		return ErrNoWorker
	default:
	}

	select {
	case entry.inbound <- message:
		return nil
	case <-entry.done:
		q.removeEntry(id, entry)
		return ErrNoWorker
	default:
		return ErrWorkerAtCapacity
	}
}

// removeEntry drops the entry for id, but only if it is still the same one
// that was observed; a respawned worker under the same id must survive.
func (q *Queue[I, C, Req, Resp]) removeEntry(id I, observed *workerEntry[Req, Resp]) {
	q.mu.Lock()
	if current, ok := q.entries[id]; ok && current == observed {
		delete(q.entries, id)
	}
	q.mu.Unlock()

	logging.Sugar(logging.CategorySession).Debugf("reaped stale worker entry %v", id)
}
