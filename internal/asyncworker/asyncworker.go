// Package asyncworker implements the session core: one worker per session id,
// fed by a bounded inbound channel, with responses delivered to a streaming
// handle, a waiting poll, or a pending buffer — in that order. At most one
// handle and at most one waiting poll exist per worker; a newer arrival
// evicts the older with a ceded signal, and handles strictly dominate polls.
package asyncworker

import (
	"context"
	"errors"
)

// ErrWorkerAtCapacity is returned when a worker's inbound channel is full,
// meaning the number of pending operations has reached its configured limit.
// The limit can be adjusted via Options.MaxLength.
var ErrWorkerAtCapacity = errors.New("worker is at capacity")

// ErrNoWorker is returned when no worker exists for the given id.
var ErrNoWorker = errors.New("no worker exists for the given id")

// ErrCeded is returned to a poll or handle that was displaced by a newer
// operation.
var ErrCeded = errors.New("this operation has been ceded in favor of a newer operation")

// ErrWorkerTerminated is returned when the worker terminated while the
// operation was in progress.
var ErrWorkerTerminated = errors.New("the worker was terminated while this operation was in progress")

// ErrTimeout is returned by PollWhile and PollManyWhile when the duration
// elapses before a response arrives.
var ErrTimeout = errors.New("this operation timed out")

// Worker is the application-defined session state machine. Handle produces
// exactly one response per request; calls are strictly serialized in arrival
// order. Destroy runs after the session's final teardown.
type Worker[Req, Resp any] interface {
	Handle(ctx context.Context, request Req) Resp
	Destroy(ctx context.Context)
}

// CreateFunc builds a worker for an id. It receives the queue-wide context
// value given at queue construction.
type CreateFunc[I comparable, C, Req, Resp any] func(ctx context.Context, id I, workerContext C) Worker[Req, Resp]

// SendResult reports the outcome of delivering a response to a handle.
type SendResult int

const (
	// Sent means the response was delivered.
	Sent SendResult = iota
	// SendClosed means the handle is gone; the response was rejected and the
	// handle must be dropped.
	SendClosed
	// SendFailed means delivery failed transiently; the same response should
	// be retried.
	SendFailed
)

// DropReason explains why a handle is about to be dropped.
type DropReason int

const (
	// DropCeded means a newer handle took the slot.
	DropCeded DropReason = iota
	// DropWorkerTerminated means the worker wound down.
	DropWorkerTerminated
	// DropHandleClosed means the handle's own request channel closed.
	DropHandleClosed
)

func (r DropReason) String() string {
	switch r {
	case DropCeded:
		return "ceded"
	case DropWorkerTerminated:
		return "worker terminated"
	default:
		return "handle closed"
	}
}

// Handle is a streaming consumer attached to a worker. Requests arriving on
// its channel are treated as enqueues; closing the channel detaches the
// handle after a WillDrop(DropHandleClosed) call. Every response produced
// while a handle is attached is offered to it.
type Handle[Req, Resp any] interface {
	// Requests is the handle's inbound request stream. Implementations that
	// never produce requests return nil, which blocks forever.
	Requests() <-chan Req

	// Send offers a response to the consumer.
	Send(ctx context.Context, response Resp) SendResult

	// WillDrop is called right before the handle is dropped.
	WillDrop(ctx context.Context, reason DropReason)
}

// NoopHandle is a Handle that produces no requests and rejects every
// response. Useful as a stand-in where a handle is required structurally.
type NoopHandle[Req, Resp any] struct{}

func (NoopHandle[Req, Resp]) Requests() <-chan Req { return nil }

func (NoopHandle[Req, Resp]) Send(context.Context, Resp) SendResult { return SendClosed }

func (NoopHandle[Req, Resp]) WillDrop(context.Context, DropReason) {}
