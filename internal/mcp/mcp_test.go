package mcp_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonmmease/jons-pyright-mcp/internal/mcp"
)

type mockToolServer struct {
	lock       sync.Mutex
	listParams mcp.ListToolsParams
	callParams mcp.CallToolParams

	failCall      bool
	emitProgress  int
	requestClient bool
}

func (m *mockToolServer) ListTools(
	_ context.Context,
	params mcp.ListToolsParams,
	reporter mcp.ProgressReporter,
	_ mcp.RequestClientFunc,
) (mcp.ListToolsResult, error) {
	m.lock.Lock()
	m.listParams = params
	m.lock.Unlock()

	for i := 0; i < m.emitProgress; i++ {
		reporter(mcp.ProgressParams{
			ProgressToken: params.Meta.ProgressToken,
			Progress:      float64(i),
			Total:         float64(m.emitProgress),
		})
	}

	return mcp.ListToolsResult{
		Tools: []mcp.Tool{
			{Name: "hover", Description: "Get hover info"},
			{Name: "definition", Description: "Go to definition"},
		},
	}, nil
}

func (m *mockToolServer) CallTool(
	_ context.Context,
	params mcp.CallToolParams,
	_ mcp.ProgressReporter,
	requestClient mcp.RequestClientFunc,
) (mcp.CallToolResult, error) {
	m.lock.Lock()
	m.callParams = params
	m.lock.Unlock()

	if m.failCall {
		return mcp.CallToolResult{}, errors.New("tool exploded")
	}

	if m.requestClient {
		res, err := requestClient(mcp.JSONRPCMessage{
			JSONRPC: mcp.JSONRPCVersion,
			Method:  "ping",
		})
		if err != nil {
			return mcp.CallToolResult{}, err
		}
		if res.Error != nil {
			return mcp.CallToolResult{}, res.Error
		}
	}

	return mcp.CallToolResult{
		Content: []mcp.Content{
			{Type: mcp.ContentTypeText, Text: "called " + params.Name},
		},
	}, nil
}

type mockToolListUpdater struct {
	ch chan struct{}
}

func (m mockToolListUpdater) ToolListUpdates() iter.Seq[struct{}] {
	return func(yield func(struct{}) bool) {
		for range m.ch {
			if !yield(struct{}{}) {
				return
			}
		}
	}
}

type mockToolListWatcher struct {
	lock        sync.Mutex
	updateCount int
}

func (m *mockToolListWatcher) OnToolListChanged() {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.updateCount++
}

type mockProgressListener struct {
	lock   sync.Mutex
	params []mcp.ProgressParams
}

func (m *mockProgressListener) OnProgress(params mcp.ProgressParams) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.params = append(m.params, params)
}

func (m *mockProgressListener) count() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.params)
}

type testSuite struct {
	cfg testSuiteConfig

	serverTransport mcp.ServerTransport
	clientTransport mcp.ClientTransport
	httpServer      *httptest.Server

	server           mcp.Server
	mcpClient        *mcp.Client
	clientConnectErr error
}

type testSuiteConfig struct {
	transportName string

	toolServer    mcp.ToolServer
	serverOptions []mcp.ServerOption
	clientOptions []mcp.ClientOption
}

func testSuiteCase(cfg testSuiteConfig, test func(*testing.T, *testSuite)) func(*testing.T) {
	return func(t *testing.T) {
		s := &testSuite{
			cfg: cfg,
		}
		s.setup(t)
		defer s.teardown(t)

		test(t, s)
	}
}

func setupSSE() (mcp.SSEServer, *mcp.SSEClient, *httptest.Server) {
	mux := http.NewServeMux()
	httpSrv := httptest.NewServer(mux)
	connectURL := fmt.Sprintf("%s/sse", httpSrv.URL)
	msgURL := fmt.Sprintf("%s/message", httpSrv.URL)

	srv := mcp.NewSSEServer(msgURL)

	mux.Handle("/sse", srv.HandleSSE())
	mux.Handle("/message", srv.HandleMessage())

	cli := mcp.NewSSEClient(connectURL, httpSrv.Client())

	return srv, cli, httpSrv
}

func setupStdIO() (mcp.StdIO, mcp.StdIO) {
	srvReader, cliWriter := io.Pipe()
	cliReader, srvWriter := io.Pipe()

	// server's output is client's input
	srvIO := mcp.NewStdIO(srvReader, srvWriter)
	// client's output is server's input
	cliIO := mcp.NewStdIO(cliReader, cliWriter)

	return srvIO, cliIO
}

func (s *testSuite) setup(t *testing.T) {
	t.Helper()

	if s.cfg.transportName == "SSE" {
		s.serverTransport, s.clientTransport, s.httpServer = setupSSE()
	} else {
		s.serverTransport, s.clientTransport = setupStdIO()
	}

	s.server = mcp.NewServer(mcp.Info{
		Name:    "test-server",
		Version: "1.0",
	}, s.serverTransport, s.cfg.toolServer, s.cfg.serverOptions...)

	go s.server.Serve()

	s.mcpClient = mcp.NewClient(mcp.Info{
		Name:    "test-client",
		Version: "1.0",
	}, s.clientTransport, s.cfg.clientOptions...)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.clientConnectErr = s.mcpClient.Connect(ctx)
}

func (s *testSuite) teardown(t *testing.T) {
	t.Helper()

	s.mcpClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		t.Errorf("failed to shutdown server: %v", err)
	}

	if s.httpServer != nil {
		s.httpServer.Close()
	}
}

func TestInitialize(t *testing.T) {
	for _, transportName := range []string{"SSE", "StdIO"} {
		cfg := testSuiteConfig{
			transportName: transportName,
			toolServer:    &mockToolServer{},
		}

		t.Run(transportName, testSuiteCase(cfg, func(t *testing.T, s *testSuite) {
			if s.clientConnectErr != nil {
				t.Fatalf("unexpected error: %v", s.clientConnectErr)
			}
			if got := s.mcpClient.ServerInfo().Name; got != "test-server" {
				t.Errorf("expected server name test-server, got %s", got)
			}
			if !s.mcpClient.ToolServerSupported() {
				t.Error("expected tool server to be supported")
			}
		}))
	}
}

func TestListTools(t *testing.T) {
	for _, transportName := range []string{"SSE", "StdIO"} {
		toolServer := &mockToolServer{}

		cfg := testSuiteConfig{
			transportName: transportName,
			toolServer:    toolServer,
		}

		t.Run(transportName, testSuiteCase(cfg, func(t *testing.T, s *testSuite) {
			if s.clientConnectErr != nil {
				t.Fatalf("unexpected error: %v", s.clientConnectErr)
			}

			result, err := s.mcpClient.ListTools(context.Background(), mcp.ListToolsParams{
				Cursor: "cursor",
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(result.Tools) != 2 {
				t.Fatalf("expected 2 tools, got %d", len(result.Tools))
			}
			if result.Tools[0].Name != "hover" {
				t.Errorf("expected tool name hover, got %s", result.Tools[0].Name)
			}

			toolServer.lock.Lock()
			defer toolServer.lock.Unlock()
			if toolServer.listParams.Cursor != "cursor" {
				t.Errorf("expected cursor cursor, got %s", toolServer.listParams.Cursor)
			}
		}))
	}
}

func TestCallTool(t *testing.T) {
	for _, transportName := range []string{"SSE", "StdIO"} {
		toolServer := &mockToolServer{}

		cfg := testSuiteConfig{
			transportName: transportName,
			toolServer:    toolServer,
		}

		t.Run(transportName, testSuiteCase(cfg, func(t *testing.T, s *testSuite) {
			if s.clientConnectErr != nil {
				t.Fatalf("unexpected error: %v", s.clientConnectErr)
			}

			result, err := s.mcpClient.CallTool(context.Background(), mcp.CallToolParams{
				Name:      "hover",
				Arguments: json.RawMessage(`{"path":"main.py","line":1,"column":5}`),
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.IsError {
				t.Fatalf("unexpected tool error: %+v", result.Content)
			}
			if len(result.Content) != 1 || result.Content[0].Text != "called hover" {
				t.Errorf("unexpected content: %+v", result.Content)
			}

			toolServer.lock.Lock()
			defer toolServer.lock.Unlock()
			if toolServer.callParams.Name != "hover" {
				t.Errorf("expected tool name hover, got %s", toolServer.callParams.Name)
			}
		}))
	}
}

func TestCallToolError(t *testing.T) {
	for _, transportName := range []string{"SSE", "StdIO"} {
		toolServer := &mockToolServer{failCall: true}

		cfg := testSuiteConfig{
			transportName: transportName,
			toolServer:    toolServer,
		}

		t.Run(transportName, testSuiteCase(cfg, func(t *testing.T, s *testSuite) {
			if s.clientConnectErr != nil {
				t.Fatalf("unexpected error: %v", s.clientConnectErr)
			}

			// Tool failures surface as IsError results, not protocol errors.
			result, err := s.mcpClient.CallTool(context.Background(), mcp.CallToolParams{
				Name: "hover",
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !result.IsError {
				t.Fatal("expected IsError result")
			}
			if len(result.Content) != 1 || result.Content[0].Text != "tool exploded" {
				t.Errorf("unexpected content: %+v", result.Content)
			}
		}))
	}
}

func TestListToolsProgress(t *testing.T) {
	progressListener := &mockProgressListener{}
	toolServer := &mockToolServer{emitProgress: 10}

	cfg := testSuiteConfig{
		transportName: "StdIO",
		toolServer:    toolServer,
		clientOptions: []mcp.ClientOption{
			mcp.WithProgressListener(progressListener),
		},
	}

	t.Run("StdIO", testSuiteCase(cfg, func(t *testing.T, s *testSuite) {
		if s.clientConnectErr != nil {
			t.Fatalf("unexpected error: %v", s.clientConnectErr)
		}

		_, err := s.mcpClient.ListTools(context.Background(), mcp.ListToolsParams{
			Meta: mcp.ParamsMeta{
				ProgressToken: "progressToken",
			},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		deadline := time.After(time.Second)
		for progressListener.count() < 10 {
			select {
			case <-deadline:
				t.Fatalf("expected 10 progress params, got %d", progressListener.count())
			case <-time.After(10 * time.Millisecond):
			}
		}

		progressListener.lock.Lock()
		defer progressListener.lock.Unlock()
		for _, params := range progressListener.params {
			if params.ProgressToken != "progressToken" {
				t.Errorf("expected progressToken progressToken, got %s", params.ProgressToken)
			}
		}
	}))
}

func TestToolListUpdates(t *testing.T) {
	updater := mockToolListUpdater{ch: make(chan struct{})}
	watcher := &mockToolListWatcher{}

	cfg := testSuiteConfig{
		transportName: "StdIO",
		toolServer:    &mockToolServer{},
		serverOptions: []mcp.ServerOption{
			mcp.WithToolListUpdater(updater),
		},
		clientOptions: []mcp.ClientOption{
			mcp.WithToolListWatcher(watcher),
		},
	}

	t.Run("StdIO", testSuiteCase(cfg, func(t *testing.T, s *testSuite) {
		if s.clientConnectErr != nil {
			t.Fatalf("unexpected error: %v", s.clientConnectErr)
		}

		for i := 0; i < 5; i++ {
			updater.ch <- struct{}{}
		}

		deadline := time.After(time.Second)
		for {
			watcher.lock.Lock()
			count := watcher.updateCount
			watcher.lock.Unlock()
			if count == 5 {
				return
			}
			select {
			case <-deadline:
				t.Fatalf("expected 5 tool list updates, got %d", count)
			case <-time.After(10 * time.Millisecond):
			}
		}
	}))
}

func TestRequestClient(t *testing.T) {
	toolServer := &mockToolServer{requestClient: true}

	cfg := testSuiteConfig{
		transportName: "StdIO",
		toolServer:    toolServer,
	}

	t.Run("StdIO", testSuiteCase(cfg, func(t *testing.T, s *testSuite) {
		if s.clientConnectErr != nil {
			t.Fatalf("unexpected error: %v", s.clientConnectErr)
		}

		// The tool pings the client mid-call through RequestClientFunc; the
		// call only succeeds if the round trip works.
		result, err := s.mcpClient.CallTool(context.Background(), mcp.CallToolParams{
			Name: "hover",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Fatalf("unexpected tool error: %+v", result.Content)
		}
	}))
}
