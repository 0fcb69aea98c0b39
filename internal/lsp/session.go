package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRequestTimeout bounds how long a request waits for its response
// when the caller's context carries no deadline of its own. Large projects
// can keep the analyzer busy for a while, so this errs generous.
const DefaultRequestTimeout = 60 * time.Second

// shutdownRequestTimeout bounds the graceful shutdown request; if the
// server does not answer quickly we escalate rather than wait.
const shutdownRequestTimeout = 5 * time.Second

// exitGracePeriod is how long the session waits for the server to exit on
// its own after the exit notification before forcing termination.
const exitGracePeriod = 500 * time.Millisecond

// SessionState tracks the lifecycle of a Session.
type SessionState int32

const (
	StateNotStarted SessionState = iota
	StateStarting
	StateInitialized
	StateShuttingDown
	StateStopped
)

// String returns a human-readable state name.
func (s SessionState) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateStarting:
		return "starting"
	case StateInitialized:
		return "initialized"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// NotificationHandler receives a server notification's parameters.
type NotificationHandler func(method string, params json.RawMessage)

// ReverseRequestHandler answers a server-to-client request. It returns
// either a result or a response error to send back.
type ReverseRequestHandler func(params json.RawMessage) (any, *ResponseError)

// serverProcess is the slice of the process supervisor the session needs.
type serverProcess interface {
	Stdin() io.WriteCloser
	Stdout() io.Reader
	Stderr() io.Reader
	Exited() <-chan struct{}
	Stop()
}

// Session multiplexes concurrent requests over a single language server
// connection. Request ids are allocated from a per-session monotonic
// counter and never reused while pending. A dedicated goroutine drains the
// server's output and dispatches each message in arrival order; callers of
// Call block independently until their response, a timeout, or session
// teardown.
type Session struct {
	proc   serverProcess
	tr     *transport
	logger *slog.Logger

	timeout     time.Duration
	rootPath    string
	initOptions any

	state  atomic.Int32
	nextID atomic.Int64

	mu      sync.Mutex
	pending map[int64]*pendingRequest
	notif   map[string]NotificationHandler
	reverse map[string]ReverseRequestHandler

	caps       ServerCapabilities
	serverInfo *ServerInfo

	done      chan struct{}
	closeErr  error
	closeOnce sync.Once
}

type pendingRequest struct {
	method string
	ch     chan *Message
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithRequestTimeout overrides the default per-request timeout.
func WithRequestTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger used by the session and its transport.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithRootPath sets the workspace root sent in the initialize request.
func WithRootPath(path string) SessionOption {
	return func(s *Session) {
		s.rootPath = path
	}
}

// WithInitializationOptions sets the server-specific initializationOptions
// payload of the initialize request.
func WithInitializationOptions(opts any) SessionOption {
	return func(s *Session) {
		s.initOptions = opts
	}
}

// NewSession creates a session over a spawned server process. The session
// owns the process from here on; Shutdown terminates it.
func NewSession(proc serverProcess, options ...SessionOption) *Session {
	s := &Session{
		proc:    proc,
		logger:  slog.Default(),
		timeout: DefaultRequestTimeout,
		pending: make(map[int64]*pendingRequest),
		notif:   make(map[string]NotificationHandler),
		reverse: make(map[string]ReverseRequestHandler),
		done:    make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	s.tr = newTransport(proc.Stdin(), s.logger)
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Capabilities returns the capabilities the server advertised during the
// initialize handshake. Valid once the session is initialized.
func (s *Session) Capabilities() ServerCapabilities {
	return s.caps
}

// Start spawns the receive loops and runs the initialize handshake. Any
// failure during the handshake terminates the server process and leaves
// the session stopped; the session must not linger half-initialized.
func (s *Session) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateNotStarted), int32(StateStarting)) {
		return ErrAlreadyStarted
	}

	go s.tr.readLoop(s.proc.Stdout(), s.dispatch, func() {
		s.disconnect(ErrServerExited)
	})
	go s.tr.drainStderr(s.proc.Stderr())
	go s.watchExit()

	if err := s.initialize(ctx); err != nil {
		s.logger.Error("initialize handshake failed", "err", err)
		s.teardown(err)
		return fmt.Errorf("initialize language server: %w", err)
	}

	s.state.Store(int32(StateInitialized))
	if s.serverInfo != nil {
		s.logger.Info("language server initialized",
			"name", s.serverInfo.Name, "version", s.serverInfo.Version)
	}
	return nil
}

func (s *Session) initialize(ctx context.Context) error {
	params := InitializeParams{
		ProcessID:             os.Getpid(),
		RootURI:               FilePathToURI(s.rootPath),
		RootPath:              s.rootPath,
		Capabilities:          defaultClientCapabilities(),
		InitializationOptions: s.initOptions,
	}
	if s.rootPath != "" {
		params.WorkspaceFolders = []WorkspaceFolder{{
			URI:  FilePathToURI(s.rootPath),
			Name: filepath.Base(s.rootPath),
		}}
	}

	var result InitializeResult
	if err := s.call(ctx, "initialize", params, &result); err != nil {
		return err
	}
	s.caps = result.Capabilities
	s.serverInfo = result.ServerInfo

	return s.sendNotification("initialized", struct{}{})
}

func defaultClientCapabilities() ClientCapabilities {
	caps := ClientCapabilities{
		TextDocument: &TextDocumentClientCapabilities{
			PublishDiagnostics: &PublishDiagnosticsCapabilities{VersionSupport: true},
			DocumentSymbol:     &DocumentSymbolCapabilities{HierarchicalDocumentSymbolSupport: true},
			Hover:              &HoverCapabilities{ContentFormat: []string{"markdown", "plaintext"}},
			SemanticTokens: &SemanticTokensCapabilities{
				TokenTypes:     semanticTokenTypes,
				TokenModifiers: semanticTokenModifiers,
				Formats:        []string{"relative"},
			},
		},
		Workspace: &WorkspaceClientCapabilities{
			WorkspaceFolders: true,
			Configuration:    true,
			ApplyEdit:        true,
		},
	}
	caps.TextDocument.SemanticTokens.Requests.Full = true
	return caps
}

// Call issues a request and blocks until its response arrives, the timeout
// elapses, or the session goes away. Concurrent calls are independent;
// responses resolve in wire arrival order regardless of call order.
func (s *Session) Call(ctx context.Context, method string, params, result any) error {
	switch s.State() {
	case StateInitialized:
	case StateNotStarted:
		return ErrNotStarted
	case StateStarting:
		return ErrInitializing
	default:
		return ErrShutdown
	}
	return s.call(ctx, method, params, result)
}

// call is the state-blind request path, also used by the handshake and the
// shutdown sequence.
func (s *Session) call(ctx context.Context, method string, params, result any) error {
	id := s.nextID.Add(1)
	msg, err := newRequest(id, method, params)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}

	pr := &pendingRequest{method: method, ch: make(chan *Message, 1)}
	s.mu.Lock()
	s.pending[id] = pr
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()

	if err := s.tr.send(msg); err != nil {
		return fmt.Errorf("send %s request: %w", method, err)
	}

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s after %s", ErrTimeout, method, time.Since(start).Round(time.Millisecond))
		}
		return ctx.Err()
	case <-s.done:
		return s.closeErr
	case resp := <-pr.ch:
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil && len(resp.Result) > 0 && string(resp.Result) != "null" {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("%w: unmarshal %s result: %v", ErrInvalidResponse, method, err)
			}
		}
		return nil
	}
}

// Notify sends a notification; it does not wait for anything.
func (s *Session) Notify(method string, params any) error {
	switch s.State() {
	case StateInitialized:
	case StateNotStarted:
		return ErrNotStarted
	case StateStarting:
		return ErrInitializing
	default:
		return ErrShutdown
	}
	return s.sendNotification(method, params)
}

func (s *Session) sendNotification(method string, params any) error {
	msg, err := newNotification(method, params)
	if err != nil {
		return fmt.Errorf("encode %s notification: %w", method, err)
	}
	return s.tr.send(msg)
}

// OnNotification registers the handler for a notification method. At most
// one handler per method; re-registration replaces the previous one.
func (s *Session) OnNotification(method string, handler NotificationHandler) {
	s.mu.Lock()
	s.notif[method] = handler
	s.mu.Unlock()
}

// OnReverseRequest registers the handler answering a server-to-client
// request method. Unregistered methods are answered with a method-not-found
// error so the server is never left waiting.
func (s *Session) OnReverseRequest(method string, handler ReverseRequestHandler) {
	s.mu.Lock()
	s.reverse[method] = handler
	s.mu.Unlock()
}

// dispatch receives every decoded message from the receive loop, in wire
// arrival order.
func (s *Session) dispatch(msg *Message) {
	switch msg.Kind() {
	case KindResponse:
		s.handleResponse(msg)
	case KindNotification:
		s.handleNotification(msg)
	case KindRequest:
		go s.handleReverseRequest(msg)
	default:
		s.logger.Debug("dropping message with neither id nor method")
	}
}

func (s *Session) handleResponse(msg *Message) {
	id, ok := msg.IDInt64()
	if !ok {
		s.logger.Warn("response with non-integer id", "id", string(msg.ID))
		return
	}

	s.mu.Lock()
	pr, found := s.pending[id]
	if found {
		delete(s.pending, id)
	}
	s.mu.Unlock()

	if !found {
		// Already timed out or never ours; the caller is gone.
		s.logger.Debug("dropping late response", "id", id)
		return
	}

	select {
	case pr.ch <- msg:
	default:
	}
}

func (s *Session) handleNotification(msg *Message) {
	s.mu.Lock()
	handler, ok := s.notif[msg.Method]
	s.mu.Unlock()

	if !ok {
		s.logger.Debug("no handler for notification", "method", msg.Method)
		return
	}

	// Handlers run on the receive loop so notifications apply in arrival
	// order; two publishDiagnostics for the same document must never race.
	// A panicking handler is contained here.
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("notification handler panicked", "method", msg.Method, "panic", r)
		}
	}()
	handler(msg.Method, msg.Params)
}

// handleReverseRequest answers a server-to-client request. The server is
// itself blocked on this id, so every reverse request gets a response.
func (s *Session) handleReverseRequest(msg *Message) {
	s.mu.Lock()
	handler, ok := s.reverse[msg.Method]
	s.mu.Unlock()

	var resp *Message
	var err error
	if !ok {
		s.logger.Debug("unsupported reverse request", "method", msg.Method)
		resp, err = newResponse(msg.ID, nil, &ResponseError{
			Code:    CodeMethodNotFound,
			Message: "Method not supported: " + msg.Method,
		})
	} else {
		result, rerr := handler(msg.Params)
		resp, err = newResponse(msg.ID, result, rerr)
	}
	if err != nil {
		s.logger.Error("encode reverse request response", "method", msg.Method, "err", err)
		return
	}
	if err := s.tr.send(resp); err != nil {
		s.logger.Error("send reverse request response", "method", msg.Method, "err", err)
	}
}

// watchExit observes the process monitor so an abrupt server death fails
// pending requests immediately instead of letting each time out.
func (s *Session) watchExit() {
	select {
	case <-s.proc.Exited():
		if st := s.State(); st != StateShuttingDown && st != StateStopped {
			s.logger.Warn("language server process exited unexpectedly")
		}
		s.disconnect(ErrServerExited)
	case <-s.done:
	}
}

// disconnect broadcasts channel death to every pending caller, exactly once.
func (s *Session) disconnect(cause error) {
	s.closeOnce.Do(func() {
		if s.State() == StateShuttingDown {
			cause = ErrShutdown
		}
		s.closeErr = cause
		s.state.Store(int32(StateStopped))
		s.tr.close()
		close(s.done)
	})
}

// Shutdown gracefully stops the session and guarantees the server process
// is gone when it returns. It is best-effort end to end: failures along the
// graceful path escalate to forced termination instead of propagating.
func (s *Session) Shutdown(ctx context.Context) error {
	switch s.State() {
	case StateNotStarted:
		return nil
	case StateStopped:
		s.proc.Stop()
		return nil
	}

	// Reject new requests first so none can register mid-teardown.
	s.state.Store(int32(StateShuttingDown))

	sctx, cancel := context.WithTimeout(ctx, shutdownRequestTimeout)
	if err := s.call(sctx, "shutdown", nil, nil); err != nil {
		s.logger.Debug("shutdown request failed", "err", err)
	}
	cancel()

	if err := s.sendNotification("exit", nil); err != nil {
		s.logger.Debug("exit notification failed", "err", err)
	}

	select {
	case <-s.proc.Exited():
	case <-time.After(exitGracePeriod):
		s.logger.Debug("language server did not exit in time, terminating")
	}

	s.teardown(ErrShutdown)
	return nil
}

// teardown forces the process down and finalizes session state.
func (s *Session) teardown(cause error) {
	s.state.Store(int32(StateShuttingDown))
	s.disconnect(cause)
	s.proc.Stop()
}
