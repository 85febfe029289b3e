package asyncworker

import (
	"context"
	"sync"
	"time"

	"github.com/radical-ui/objection/internal/logging"
)

type messageKind int

const (
	messageEnqueue messageKind = iota
	messagePoll
	messagePollMany
	messageRegisterHandle
)

// taskMessage is one event on a worker's inbound channel.
type taskMessage[Req, Resp any] struct {
	kind              messageKind
	request           Req
	handle            Handle[Req, Resp]
	pollResponder     *responder[Resp]
	pollManyResponder *responder[[]Resp]
}

// pollOutcome is what a responder carries back to a poll call.
type pollOutcome[T any] struct {
	value T
	err   error
}

// responder is a single-use reply slot. A poll that gives up abandons it, in
// which case the worker's send reports failure and the response stays with
// the worker.
type responder[T any] struct {
	ch        chan pollOutcome[T]
	abandoned chan struct{}
	once      sync.Once
}

func newResponder[T any]() *responder[T] {
	return &responder[T]{
		ch:        make(chan pollOutcome[T], 1),
		abandoned: make(chan struct{}),
	}
}

func (r *responder[T]) abandon() {
	r.once.Do(func() { close(r.abandoned) })
}

// send delivers the outcome unless the poller already left.
func (r *responder[T]) send(outcome pollOutcome[T]) bool {
	select {
	case <-r.abandoned:
		return false
	default:
	}

	select {
	case r.ch <- outcome:
		return true
	case <-r.abandoned:
		return false
	}
}

// waiter is the single waiting-poll slot: either a single-response poll or a
// batch poll, never both.
type waiter[Resp any] struct {
	single *responder[Resp]
	many   *responder[[]Resp]
}

// send delivers one response, adapting it for a batch poll. Returns false
// when the poller already left.
func (w *waiter[Resp]) send(response Resp) bool {
	if w.single != nil {
		return w.single.send(pollOutcome[Resp]{value: response})
	}
	return w.many.send(pollOutcome[[]Resp]{value: []Resp{response}})
}

func (w *waiter[Resp]) sendErr(err error) {
	if w.single != nil {
		w.single.send(pollOutcome[Resp]{err: err})
		return
	}
	w.many.send(pollOutcome[[]Resp]{err: err})
}

// runWorker is one session's task. It owns all session state — the pending
// response buffer, the handle slot, the waiter slot — so no synchronization
// is needed beyond the inbound channel.
func (q *Queue[I, C, Req, Resp]) runWorker(ctx context.Context, id I, entry *workerEntry[Req, Resp], initialRequest Req) {
	log := logging.Sugar(logging.CategorySession)

	worker := q.create(ctx, id, q.workerContext)

	var pending []Resp
	var handle Handle[Req, Resp]
	var handleRequests <-chan Req
	var waiting *waiter[Resp]

	pending = append(pending, worker.Handle(ctx, initialRequest))

	timer := time.NewTimer(q.options.TerminateWorkerAfter)
	defer timer.Stop()

loop:
	for {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(q.options.TerminateWorkerAfter)

		var message taskMessage[Req, Resp]

		select {
		case incoming := <-entry.inbound:
			message = incoming

		case request, ok := <-handleRequests:
			if !ok {
				log.Debugf("worker %v just had its handle close", id)
				handle.WillDrop(ctx, DropHandleClosed)
				handle, handleRequests = nil, nil
				continue
			}
			message = taskMessage[Req, Resp]{kind: messageEnqueue, request: request}

		case <-entry.stop:
			log.Debugf("worker %v was manually terminated", id)
			break loop

		case <-timer.C:
			log.Debugf("worker %v was terminated due to an inactivity timeout of %s", id, q.options.TerminateWorkerAfter)
			break loop

		case <-ctx.Done():
			break loop
		}

		switch message.kind {
		case messagePoll:
			if handle != nil {
				// Handles dominate; the poll never touches the buffer.
				message.pollResponder.send(pollOutcome[Resp]{err: ErrCeded})
				continue
			}

			if len(pending) > 0 {
				head := pending[0]
				pending = pending[1:]
				if !message.pollResponder.send(pollOutcome[Resp]{value: head}) {
					pending = append([]Resp{head}, pending...)
				}
				continue
			}

			if waiting != nil {
				waiting.sendErr(ErrCeded)
			}
			waiting = &waiter[Resp]{single: message.pollResponder}

		case messagePollMany:
			if handle != nil {
				message.pollManyResponder.send(pollOutcome[[]Resp]{err: ErrCeded})
				continue
			}

			if len(pending) > 0 {
				drained := pending
				pending = nil
				if !message.pollManyResponder.send(pollOutcome[[]Resp]{value: drained}) {
					pending = drained
				}
				continue
			}

			if waiting != nil {
				waiting.sendErr(ErrCeded)
			}
			waiting = &waiter[Resp]{many: message.pollManyResponder}

		case messageRegisterHandle:
			newHandle := message.handle
			didClose := false

			// Give the new handle everything that queued up before it
			// arrived.
			for len(pending) > 0 {
				head := pending[0]
				pending = pending[1:]

				result := newHandle.Send(ctx, head)
				if result == SendClosed {
					didClose = true
					pending = append([]Resp{head}, pending...)
					break
				}
				if result == SendFailed {
					pending = append([]Resp{head}, pending...)
					continue
				}
			}

			if !didClose {
				if handle != nil {
					handle.WillDrop(ctx, DropCeded)
				}
				handle = newHandle
				handleRequests = newHandle.Requests()
			}

		case messageEnqueue:
			response := worker.Handle(ctx, message.request)

			if handle != nil {
				for {
					result := handle.Send(ctx, response)
					if result == Sent {
						break
					}
					if result == SendClosed {
						handle.WillDrop(ctx, DropHandleClosed)
						handle, handleRequests = nil, nil
						pending = append(pending, response)
						break
					}
					// SendFailed: retry with the same response.
				}
				continue
			}

			if waiting != nil {
				if !waiting.send(response) {
					pending = append(pending, response)
				}
				waiting = nil
				continue
			}

			pending = append(pending, response)
		}
	}

	// Mark the entry dead before the destructors run so no new work slips
	// into a channel nobody will drain.
	close(entry.done)

	log.Debugf("running destructors for worker %v", id)

	if handle != nil {
		handle.WillDrop(ctx, DropWorkerTerminated)
	}

	if waiting != nil {
		waiting.sendErr(ErrWorkerTerminated)
	}

	worker.Destroy(ctx)
}
