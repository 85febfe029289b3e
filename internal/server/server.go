package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/radical-ui/objection/internal/asyncworker"
	"github.com/radical-ui/objection/internal/logging"
)

// Options configures the session server.
type Options struct {
	// Engine receives every session's activity.
	Engine Engine

	// Queue configures the per-session workers.
	Queue asyncworker.Options

	// PollTimeout bounds how long an update request waits for its response.
	PollTimeout time.Duration

	// Bundle is the client script served at /bundle.js.
	Bundle string

	// Title is the bootstrap page title.
	Title string
}

// Server is the session surface: it creates sessions, forwards client
// activity to per-session workers, and exposes the streaming endpoint.
type Server struct {
	options  Options
	queue    *asyncworker.Queue[uuid.UUID, sessionContext, SessionRequest, SessionResponse]
	upgrader websocket.Upgrader

	bundleMu sync.RWMutex
	bundle   string
}

// New builds a server and its session queue. Workers wind down when ctx is
// canceled.
func New(ctx context.Context, options Options) *Server {
	if options.PollTimeout <= 0 {
		options.PollTimeout = 30 * time.Second
	}
	if options.Title == "" {
		options.Title = "objection"
	}

	queue := asyncworker.NewQueue(ctx, options.Queue, sessionContext{engine: options.Engine}, newSessionWorker)

	return &Server{
		options: options,
		queue:   queue,
		bundle:  options.Bundle,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The bootstrap page and the socket share an origin; anything
			// else is the embedder's responsibility.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler builds the http surface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleCreateSession)
	mux.HandleFunc("PUT /{$}", s.handleUpdateSession)
	mux.HandleFunc("GET /bundle.js", s.handleBundle)
	mux.HandleFunc("GET /session", s.handleSocket)
	return mux
}

// Listen serves until ctx is canceled, then drains gracefully.
func (s *Server) Listen(ctx context.Context, port int) error {
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("localhost:%d", port),
		Handler: s.Handler(),
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logging.Sugar(logging.CategoryServer).Infof("listening at http://localhost:%d", port)

		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// handleCreateSession mints a session id, asks the engine for the initial
// window, and answers with the bootstrap page.
func (s *Server) handleCreateSession(writer http.ResponseWriter, request *http.Request) {
	id := uuid.New()

	if err := s.queue.Enqueue(request.Context(), id, SessionRequest{Init: true}); err != nil {
		s.writeError(writer, err)
		return
	}

	response, err := s.queue.PollWhile(request.Context(), id, s.options.PollTimeout)
	if err != nil {
		s.writeError(writer, err)
		return
	}
	if response.Error != "" {
		http.Error(writer, "An internal error has occurred", http.StatusBadGateway)
		return
	}

	initialState, err := json.Marshal(response.Updates)
	if err != nil {
		s.writeError(writer, err)
		return
	}

	writer.Header().Set("content-type", "text/html; charset=utf-8")
	writer.Header().Set(SessionIDHeader, id.String())
	fmt.Fprintf(writer, bootstrapPage, s.options.Title, initialState, id)
}

// handleUpdateSession enqueues a client action list and waits for the
// matching response.
func (s *Server) handleUpdateSession(writer http.ResponseWriter, request *http.Request) {
	id, err := uuid.Parse(request.Header.Get(SessionIDHeader))
	if err != nil {
		http.Error(writer, "missing or malformed "+SessionIDHeader+" header", http.StatusBadRequest)
		return
	}

	var actions []Action
	if err := json.NewDecoder(request.Body).Decode(&actions); err != nil {
		http.Error(writer, "the request body must be a json action list", http.StatusBadRequest)
		return
	}

	if err := s.queue.Enqueue(request.Context(), id, SessionRequest{Actions: actions}); err != nil {
		s.writeError(writer, err)
		return
	}

	response, err := s.queue.PollWhile(request.Context(), id, s.options.PollTimeout)
	if err != nil {
		s.writeError(writer, err)
		return
	}
	if response.Error != "" {
		http.Error(writer, "An internal error has occurred", http.StatusBadGateway)
		return
	}

	writer.Header().Set("content-type", "application/json")
	_ = json.NewEncoder(writer).Encode(response.Updates)
}

// SetBundle swaps the served client script. Used by the dev server when the
// runtime changes.
func (s *Server) SetBundle(bundle string) {
	s.bundleMu.Lock()
	s.bundle = bundle
	s.bundleMu.Unlock()
}

func (s *Server) handleBundle(writer http.ResponseWriter, request *http.Request) {
	s.bundleMu.RLock()
	bundle := s.bundle
	s.bundleMu.RUnlock()

	writer.Header().Set("content-type", "text/javascript; charset=utf-8")
	_, _ = writer.Write([]byte(bundle))
}

// handleSocket upgrades the connection and attaches it to the session as a
// streaming handle.
func (s *Server) handleSocket(writer http.ResponseWriter, request *http.Request) {
	id, err := uuid.Parse(request.URL.Query().Get("session_id"))
	if err != nil {
		http.Error(writer, "missing or malformed session_id query parameter", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		return
	}

	handle := newSocketHandle(conn)

	if err := s.queue.RegisterHandle(id, handle); err != nil {
		message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error())
		_ = conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
		_ = conn.Close()
	}
}

// writeError maps the session error kinds onto the http surface. Producers
// hitting the operation limit are told to retry; everything else is final
// for this request.
func (s *Server) writeError(writer http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, asyncworker.ErrWorkerAtCapacity):
		writer.Header().Set("retry-after", strconv.Itoa(engineFailureRetrySeconds))
		http.Error(writer, "You've been rate-limited", http.StatusTooManyRequests)

	case errors.Is(err, asyncworker.ErrNoWorker):
		http.Error(writer, "No session exists for the given id", http.StatusNotFound)

	case errors.Is(err, asyncworker.ErrCeded):
		http.Error(writer, "A newer consumer took over this session", http.StatusConflict)

	case errors.Is(err, asyncworker.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		http.Error(writer, "Timed out waiting for the engine", http.StatusGatewayTimeout)

	case errors.Is(err, asyncworker.ErrWorkerTerminated):
		http.Error(writer, "The session was terminated", http.StatusGone)

	default:
		logging.Sugar(logging.CategoryServer).Errorf("internal error: %v", err)
		http.Error(writer, "An internal error has occurred", http.StatusInternalServerError)
	}
}

// bootstrapPage is the html shell: the initial update list rides along in a
// script tag the client entry reads before opening its transport.
const bootstrapPage = `<!DOCTYPE html>
<html lang="en">
	<head>
		<meta charset="UTF-8" />
		<meta name="viewport" content="width=device-width, initial-scale=1.0" />

		<title>%s</title>

		<script type="application/json" id="initial-state">%s</script>
		<script defer src="/bundle.js"></script>
	</head>
	<body data-session-id="%s">
		<div id="root" style="display: none"></div>
	</body>
</html>
`
