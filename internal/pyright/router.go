package pyright

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/jonmmease/jons-pyright-mcp/internal/config"
	"github.com/jonmmease/jons-pyright-mcp/internal/lsp"
	"github.com/jonmmease/jons-pyright-mcp/internal/mcp"
)

// LanguageClient is the slice of lsp.Session the router drives. It exists so
// tests can substitute a fake server.
type LanguageClient interface {
	Start(ctx context.Context) error
	Call(ctx context.Context, method string, params, result any) error
	Notify(method string, params any) error
	OnNotification(method string, handler lsp.NotificationHandler)
	OnReverseRequest(method string, handler lsp.ReverseRequestHandler)
	State() lsp.SessionState
	Capabilities() lsp.ServerCapabilities
	Shutdown(ctx context.Context) error
}

// SessionFactory builds a fresh, unstarted language server session. The
// router registers its handlers on the session and then starts it, so
// nothing the server sends during the handshake is missed. It is called
// once at startup and again on restart_server.
type SessionFactory func(ctx context.Context) (LanguageClient, error)

// Router exposes a pyright session as an MCP tool server. It implements
// mcp.ToolServer.
type Router struct {
	root        string
	cfg         *config.FileConfig
	interpreter string
	matcher     *config.Matcher
	logger      *slog.Logger

	factory  SessionFactory
	handlers map[string]toolHandler

	mu     sync.Mutex
	client LanguageClient
	docs   *documentTracker
	diags  *diagnosticsStore

	// cmdMu serializes edit-producing commands so only one capture window
	// is ever open; editMu guards the window state itself.
	cmdMu     sync.Mutex
	editMu    sync.Mutex
	capturing bool
	captured  []lsp.WorkspaceEdit
}

type toolHandler func(ctx context.Context, args json.RawMessage) (any, error)

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithRouterLogger sets the logger used by the router.
func WithRouterLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger.With(slog.String("component", "pyright-router"))
	}
}

// WithInterpreter records the resolved Python interpreter, reported back to
// the server through workspace/configuration.
func WithInterpreter(interpreter string) RouterOption {
	return func(r *Router) {
		r.interpreter = interpreter
	}
}

// NewRouter creates a router for the workspace rooted at root. cfg may be
// nil when the workspace has no pyrightconfig.json. The first session is
// not created until Start.
func NewRouter(root string, cfg *config.FileConfig, factory SessionFactory, options ...RouterOption) (*Router, error) {
	matcher, err := config.NewMatcher(cfg)
	if err != nil {
		return nil, fmt.Errorf("compile config patterns: %w", err)
	}

	r := &Router{
		root:    root,
		cfg:     cfg,
		matcher: matcher,
		logger:  slog.Default(),
		factory: factory,
		docs:    newDocumentTracker(),
		diags:   newDiagnosticsStore(),
	}
	for _, opt := range options {
		opt(r)
	}
	r.handlers = r.buildHandlers()
	return r, nil
}

// Start creates the initial language server session.
func (r *Router) Start(ctx context.Context) error {
	client, err := r.connect(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.client = client
	r.mu.Unlock()
	return nil
}

// Shutdown stops the current session and its server process.
func (r *Router) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	client := r.client
	r.client = nil
	r.mu.Unlock()
	if client == nil {
		return nil
	}
	return client.Shutdown(ctx)
}

// connect builds a session via the factory, wires the notification and
// reverse request handlers the router depends on, and only then runs the
// handshake. Pyright pulls workspace/configuration and may publish
// diagnostics during initialization, so the handlers must already be in
// place when Start sends the initialize request.
func (r *Router) connect(ctx context.Context) (LanguageClient, error) {
	client, err := r.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("create language server: %w", err)
	}

	client.OnNotification("textDocument/publishDiagnostics", func(_ string, params json.RawMessage) {
		var p lsp.PublishDiagnosticsParams
		if err := json.Unmarshal(params, &p); err != nil {
			r.logger.Error("bad publishDiagnostics payload", "err", err)
			return
		}
		r.diags.set(p.URI, p.Diagnostics)
	})
	client.OnReverseRequest("workspace/configuration", r.handleConfiguration)
	client.OnReverseRequest("workspace/applyEdit", r.handleApplyEdit)

	if err := client.Start(ctx); err != nil {
		return nil, fmt.Errorf("start language server: %w", err)
	}
	return client, nil
}

func (r *Router) currentClient() (LanguageClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil, errors.New("the language server is not running; use restart_server")
	}
	return r.client, nil
}

// ListTools implements mcp.ToolServer. The catalog is static and small, so
// the cursor is ignored and everything fits one page.
func (r *Router) ListTools(
	_ context.Context,
	_ mcp.ListToolsParams,
	_ mcp.ProgressReporter,
	_ mcp.RequestClientFunc,
) (mcp.ListToolsResult, error) {
	return mcp.ListToolsResult{Tools: toolCatalog()}, nil
}

// CallTool implements mcp.ToolServer. Handler errors become IsError tool
// results at the MCP layer, so failures here never break the session.
func (r *Router) CallTool(
	ctx context.Context,
	params mcp.CallToolParams,
	_ mcp.ProgressReporter,
	_ mcp.RequestClientFunc,
) (mcp.CallToolResult, error) {
	handler, ok := r.handlers[params.Name]
	if !ok {
		return mcp.CallToolResult{}, fmt.Errorf("unknown tool: %s", params.Name)
	}

	args := params.Arguments
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	result, err := handler(ctx, args)
	if err != nil {
		return mcp.CallToolResult{}, describeError(err)
	}

	text, ok := result.(string)
	if !ok {
		encoded, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return mcp.CallToolResult{}, fmt.Errorf("encode result: %w", err)
		}
		text = string(encoded)
	}

	return mcp.CallToolResult{
		Content: []mcp.Content{{Type: mcp.ContentTypeText, Text: text}},
	}, nil
}

// describeError rewrites session-level failures into messages that tell the
// caller what to do next. Peer RPC errors and timeouts already read well.
func describeError(err error) error {
	switch {
	case errors.Is(err, lsp.ErrInitializing):
		return errors.New("the language server is still initializing; try again shortly")
	case errors.Is(err, lsp.ErrNotStarted), errors.Is(err, lsp.ErrShutdown), errors.Is(err, lsp.ErrServerExited):
		return fmt.Errorf("%w; use restart_server to recover", err)
	default:
		return err
	}
}

// handleConfiguration answers the workspace/configuration reverse request
// one section at a time. Unknown sections answer null.
func (r *Router) handleConfiguration(params json.RawMessage) (any, *lsp.ResponseError) {
	var p lsp.ConfigurationParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &lsp.ResponseError{Code: lsp.CodeInvalidParams, Message: err.Error()}
	}

	results := make([]any, len(p.Items))
	for i, item := range p.Items {
		switch item.Section {
		case "python":
			python := map[string]any{"analysis": config.AnalysisSettings(r.cfg)}
			if r.interpreter != "" {
				python["pythonPath"] = r.interpreter
			}
			results[i] = python
		case "python.analysis":
			results[i] = config.AnalysisSettings(r.cfg)
		case "pyright":
			results[i] = map[string]any{}
		default:
			results[i] = nil
		}
	}
	return results, nil
}

// handleApplyEdit captures workspace/applyEdit payloads while a command
// that produces edits is in flight. Outside a capture window the edit is
// refused so the server does not believe a change landed.
func (r *Router) handleApplyEdit(params json.RawMessage) (any, *lsp.ResponseError) {
	var p lsp.ApplyWorkspaceEditParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &lsp.ResponseError{Code: lsp.CodeInvalidParams, Message: err.Error()}
	}

	r.editMu.Lock()
	defer r.editMu.Unlock()
	if !r.capturing {
		r.logger.Warn("unsolicited workspace/applyEdit", "label", p.Label)
		return lsp.ApplyWorkspaceEditResult{
			Applied:       false,
			FailureReason: "no command in flight",
		}, nil
	}
	r.captured = append(r.captured, p.Edit)
	return lsp.ApplyWorkspaceEditResult{Applied: true}, nil
}

// beginEditCapture opens a capture window for workspace/applyEdit. A second
// caller blocks until the first window closes, so concurrent commands never
// collect each other's edits. The returned function closes the window and
// yields the collected edits.
func (r *Router) beginEditCapture() func() []lsp.WorkspaceEdit {
	r.cmdMu.Lock()
	r.editMu.Lock()
	r.capturing = true
	r.captured = nil
	r.editMu.Unlock()

	return func() []lsp.WorkspaceEdit {
		r.editMu.Lock()
		r.capturing = false
		edits := r.captured
		r.captured = nil
		r.editMu.Unlock()
		r.cmdMu.Unlock()
		return edits
	}
}

// absPath resolves a workspace-relative tool path. Absolute paths are kept
// as-is so callers can reach outside the root deliberately.
func (r *Router) absPath(rel string) (string, error) {
	if rel == "" {
		return "", errors.New("path is required")
	}
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel), nil
	}
	return filepath.Join(r.root, rel), nil
}

// relPath renders a URI as a workspace-relative path for tool output.
func (r *Router) relPath(uri lsp.DocumentURI) string {
	abs := lsp.URIToFilePath(uri)
	rel, err := filepath.Rel(r.root, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(rel)
}
