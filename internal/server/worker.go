package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/radical-ui/objection/internal/asyncworker"
	"github.com/radical-ui/objection/internal/logging"
)

// SessionRequest is one unit of session work: the initial render, a client
// action list, or a streaming frame.
type SessionRequest struct {
	// Init asks the engine for the session's first window.
	Init bool

	// Actions is the action list of a client update.
	Actions []Action

	// Socket is a streaming frame.
	Socket *IncomingSocketMessage
}

// SessionResponse is what one request produced.
type SessionResponse struct {
	// Updates are the engine's update actions.
	Updates []UpdateAction

	// RequestID correlates a streaming response with the client frame that
	// caused it.
	RequestID *uuid.UUID

	// Error carries a handler failure to the consumer instead of tearing
	// the session down.
	Error string
}

// sessionContext is the queue-wide context cloned into every worker.
type sessionContext struct {
	engine Engine
}

// sessionWorker mediates one session: every request becomes an engine
// update, and watch bookkeeping stays local.
type sessionWorker struct {
	id      uuid.UUID
	engine  Engine
	watched map[string]bool
}

func newSessionWorker(ctx context.Context, id uuid.UUID, workerContext sessionContext) asyncworker.Worker[SessionRequest, SessionResponse] {
	logging.Sugar(logging.CategorySession).Debugf("creating session worker %s", id)

	return &sessionWorker{
		id:      id,
		engine:  workerContext.engine,
		watched: map[string]bool{},
	}
}

func (w *sessionWorker) Handle(ctx context.Context, request SessionRequest) SessionResponse {
	switch {
	case request.Init:
		return w.update(ctx, nil, nil)

	case request.Socket != nil:
		return w.handleSocket(ctx, request.Socket)

	default:
		return w.update(ctx, request.Actions, nil)
	}
}

func (w *sessionWorker) handleSocket(ctx context.Context, message *IncomingSocketMessage) SessionResponse {
	requestID := message.Def.RequestID

	switch message.Kind {
	case SocketWatch:
		w.watched[message.Def.ID] = true
		return SessionResponse{RequestID: &requestID}

	case SocketUnwatch:
		delete(w.watched, message.Def.ID)
		return SessionResponse{RequestID: &requestID}

	case SocketPerformOperation:
		payload, _ := json.Marshal(map[string]string{"objectId": message.Def.ObjectID})
		action := Action{Key: message.Def.Key, Payload: payload}
		return w.update(ctx, []Action{action}, &requestID)
	}

	return SessionResponse{
		RequestID: &requestID,
		Error:     fmt.Sprintf("unknown socket message kind %q", message.Kind),
	}
}

// update runs one engine round trip. Failures become a response-level error
// so the consumer can acknowledge them; they never kill the worker.
func (w *sessionWorker) update(ctx context.Context, actions []Action, requestID *uuid.UUID) SessionResponse {
	updates, err := w.engine.Update(ctx, w.id, actions)
	if err != nil {
		logging.Sugar(logging.CategorySession).Warnf("engine update failed for session %s: %v", w.id, err)
		return SessionResponse{RequestID: requestID, Error: err.Error()}
	}

	return SessionResponse{Updates: updates, RequestID: requestID}
}

func (w *sessionWorker) Destroy(ctx context.Context) {
	logging.Sugar(logging.CategorySession).Debugf("destroying session worker %s", w.id)
	w.engine.Release(w.id)
}
