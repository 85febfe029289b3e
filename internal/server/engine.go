package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/radical-ui/objection/internal/logging"
)

// SessionIDHeader carries the session id on request/response transports.
const SessionIDHeader = "x-session-id"

// Engine is the application the session surface mediates for. Update hands
// it a session's action list and returns the update actions to apply.
// Release tells it a session is gone.
type Engine interface {
	Update(ctx context.Context, sessionID uuid.UUID, actions []Action) ([]UpdateAction, error)
	Release(sessionID uuid.UUID)
}

// DialEngine picks the engine client for a url: websocket urls get a
// per-session streaming connection, anything else speaks plain http.
func DialEngine(engineURL string) Engine {
	if strings.HasPrefix(engineURL, "ws://") || strings.HasPrefix(engineURL, "wss://") {
		return NewWebsocketEngine(engineURL)
	}
	return NewHTTPEngine(engineURL)
}

// HTTPEngine forwards every update as a PUT carrying the action list, with
// the session id in a header.
type HTTPEngine struct {
	url    string
	client *http.Client
}

// NewHTTPEngine builds an http engine client.
func NewHTTPEngine(url string) *HTTPEngine {
	return &HTTPEngine{
		url:    url,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (e *HTTPEngine) Update(ctx context.Context, sessionID uuid.UUID, actions []Action) ([]UpdateAction, error) {
	if actions == nil {
		actions = []Action{}
	}

	body, err := json.Marshal(actions)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize the action list: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPut, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	request.Header.Set("content-type", "application/json")
	request.Header.Set(SessionIDHeader, sessionID.String())

	response, err := e.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("failed to reach the engine at %s: %w", e.url, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
		return nil, fmt.Errorf("engine at %s answered %d: %s", e.url, response.StatusCode, text)
	}

	var updates []UpdateAction
	if err := json.NewDecoder(response.Body).Decode(&updates); err != nil {
		return nil, fmt.Errorf("failed to decode the engine's update actions: %w", err)
	}

	return updates, nil
}

func (e *HTTPEngine) Release(uuid.UUID) {}

// WebsocketEngine keeps one connection per session and speaks the same
// action-list protocol in lockstep: one frame out, one frame back. Worker
// calls are serialized per session, so lockstep is safe.
type WebsocketEngine struct {
	url string

	mu    sync.Mutex
	conns map[uuid.UUID]*engineConn
}

type engineConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWebsocketEngine builds a websocket engine client.
func NewWebsocketEngine(url string) *WebsocketEngine {
	return &WebsocketEngine{url: url, conns: map[uuid.UUID]*engineConn{}}
}

func (e *WebsocketEngine) connFor(ctx context.Context, sessionID uuid.UUID) (*engineConn, error) {
	e.mu.Lock()
	existing, ok := e.conns[sessionID]
	e.mu.Unlock()
	if ok {
		return existing, nil
	}

	url := e.url
	if strings.Contains(url, "?") {
		url += "&session_id=" + sessionID.String()
	} else {
		url += "?session_id=" + sessionID.String()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial the engine at %s: %w", e.url, err)
	}

	created := &engineConn{conn: conn}

	e.mu.Lock()
	// Lost the race: keep the first connection.
	if existing, ok := e.conns[sessionID]; ok {
		e.mu.Unlock()
		_ = conn.Close()
		return existing, nil
	}
	e.conns[sessionID] = created
	e.mu.Unlock()

	return created, nil
}

func (e *WebsocketEngine) Update(ctx context.Context, sessionID uuid.UUID, actions []Action) ([]UpdateAction, error) {
	if actions == nil {
		actions = []Action{}
	}

	conn, err := e.connFor(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.conn.SetReadDeadline(deadline)
		_ = conn.conn.SetWriteDeadline(deadline)
	}

	if err := conn.conn.WriteJSON(actions); err != nil {
		e.drop(sessionID)
		return nil, fmt.Errorf("failed to send the action list to the engine: %w", err)
	}

	var updates []UpdateAction
	if err := conn.conn.ReadJSON(&updates); err != nil {
		e.drop(sessionID)
		return nil, fmt.Errorf("failed to read the engine's update actions: %w", err)
	}

	return updates, nil
}

func (e *WebsocketEngine) Release(sessionID uuid.UUID) {
	e.drop(sessionID)
}

func (e *WebsocketEngine) drop(sessionID uuid.UUID) {
	e.mu.Lock()
	conn, ok := e.conns[sessionID]
	if ok {
		delete(e.conns, sessionID)
	}
	e.mu.Unlock()

	if ok {
		if err := conn.conn.Close(); err != nil {
			logging.Sugar(logging.CategoryServer).Debugf("closing engine connection for %s: %v", sessionID, err)
		}
	}
}
