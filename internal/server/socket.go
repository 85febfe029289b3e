package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/radical-ui/objection/internal/asyncworker"
	"github.com/radical-ui/objection/internal/logging"
)

// engineFailureRetrySeconds is what an acknowledge suggests after a handler
// failure.
const engineFailureRetrySeconds = 5

// socketHandle adapts a client websocket into a worker handle: frames read
// off the socket become session requests, and every session response is
// written back as update frames plus an acknowledge.
type socketHandle struct {
	conn     *websocket.Conn
	requests chan SessionRequest
	done     chan struct{}
	closed   atomic.Bool

	writeMu sync.Mutex
}

func newSocketHandle(conn *websocket.Conn) *socketHandle {
	handle := &socketHandle{
		conn:     conn,
		requests: make(chan SessionRequest),
		done:     make(chan struct{}),
	}

	go handle.readPump()

	return handle
}

// readPump feeds incoming frames to the worker until the socket dies or the
// handle is dropped. Closing the requests channel is what tells the worker
// the handle closed.
func (h *socketHandle) readPump() {
	defer close(h.requests)

	for {
		var message IncomingSocketMessage
		if err := h.conn.ReadJSON(&message); err != nil {
			h.closed.Store(true)
			return
		}

		select {
		case h.requests <- SessionRequest{Socket: &message}:
		case <-h.done:
			return
		}
	}
}

func (h *socketHandle) Requests() <-chan SessionRequest {
	return h.requests
}

func (h *socketHandle) Send(ctx context.Context, response SessionResponse) asyncworker.SendResult {
	if h.closed.Load() {
		return asyncworker.SendClosed
	}

	frames := TranslateUpdates(response.Updates)

	var retryAfter uint32
	if response.Error != "" {
		retryAfter = engineFailureRetrySeconds
	}
	frames = append(frames, Acknowledge(response.RequestID, response.Error, retryAfter))

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	for _, frame := range frames {
		if err := h.conn.WriteJSON(frame); err != nil {
			h.closed.Store(true)
			return asyncworker.SendClosed
		}
	}

	return asyncworker.Sent
}

func (h *socketHandle) WillDrop(ctx context.Context, reason asyncworker.DropReason) {
	logging.Sugar(logging.CategoryServer).Debugf("dropping socket handle: %s", reason)

	select {
	case <-h.done:
	default:
		close(h.done)
	}

	h.writeMu.Lock()
	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason.String())
	_ = h.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
	h.writeMu.Unlock()

	_ = h.conn.Close()
}
