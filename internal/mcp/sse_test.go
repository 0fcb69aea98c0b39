package mcp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonmmease/jons-pyright-mcp/internal/mcp"
)

type sseTestEnv struct {
	srv      mcp.SSEServer
	cli      *mcp.SSEClient
	httpSrv  *httptest.Server
	sessions chan mcp.Session
}

func newSSETestEnv() *sseTestEnv {
	srv, cli, httpSrv := setupSSE()

	env := &sseTestEnv{
		srv:      srv,
		cli:      cli,
		httpSrv:  httpSrv,
		sessions: make(chan mcp.Session, 1),
	}

	go func() {
		for s := range srv.Sessions() {
			env.sessions <- s
		}
	}()

	return env
}

func (e *sseTestEnv) close(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.srv.Shutdown(ctx); err != nil {
		t.Errorf("failed to shutdown SSE server: %v", err)
	}
	e.httpSrv.Close()
}

func TestSSESessionEstablishment(t *testing.T) {
	env := newSSETestEnv()
	defer env.close(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clientSession, err := env.cli.StartSession(ctx)
	if err != nil {
		t.Fatalf("failed to start session: %v", err)
	}

	var serverSession mcp.Session
	select {
	case serverSession = <-env.sessions:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for server session")
	}

	if serverSession.ID() == "" {
		t.Error("expected non-empty server session ID")
	}
	if clientSession.ID() == "" {
		t.Error("expected non-empty client session ID")
	}

	// Drain the receive loop so Stop can complete.
	go func() {
		for range serverSession.Messages() {
		}
	}()

	serverSession.Stop()
	clientSession.Stop()
}

func TestSSEBidirectionalMessageFlow(t *testing.T) {
	env := newSSETestEnv()
	defer env.close(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clientSession, err := env.cli.StartSession(ctx)
	if err != nil {
		t.Fatalf("failed to start session: %v", err)
	}

	var serverSession mcp.Session
	select {
	case serverSession = <-env.sessions:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for server session")
	}

	serverReceived := make(chan mcp.JSONRPCMessage, 1)
	clientReceived := make(chan mcp.JSONRPCMessage, 1)

	go func() {
		for msg := range serverSession.Messages() {
			serverReceived <- msg
		}
	}()
	go func() {
		for msg := range clientSession.Messages() {
			clientReceived <- msg
		}
	}()

	// Client to server travels over the HTTP POST endpoint.
	if err := clientSession.Send(ctx, mcp.JSONRPCMessage{
		JSONRPC: mcp.JSONRPCVersion,
		Method:  "from-client",
		Params:  json.RawMessage(`{"n":1}`),
	}); err != nil {
		t.Fatalf("failed to send client message: %v", err)
	}

	select {
	case msg := <-serverReceived:
		if msg.Method != "from-client" {
			t.Errorf("expected method from-client, got %s", msg.Method)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for server to receive message")
	}

	// Server to client travels over the SSE stream.
	if err := serverSession.Send(ctx, mcp.JSONRPCMessage{
		JSONRPC: mcp.JSONRPCVersion,
		Method:  "from-server",
		Params:  json.RawMessage(`{"n":2}`),
	}); err != nil {
		t.Fatalf("failed to send server message: %v", err)
	}

	select {
	case msg := <-clientReceived:
		if msg.Method != "from-server" {
			t.Errorf("expected method from-server, got %s", msg.Method)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for client to receive message")
	}

	serverSession.Stop()
	clientSession.Stop()
}

func TestSSEHandleMessageRejectsMissingSessionID(t *testing.T) {
	env := newSSETestEnv()
	defer env.close(t)

	msgURL := fmt.Sprintf("%s/message", env.httpSrv.URL)
	resp, err := http.Post(msgURL, "application/json", bytes.NewReader([]byte(`{"jsonrpc":"2.0"}`)))
	if err != nil {
		t.Fatalf("failed to post message: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", resp.StatusCode)
	}
}

func TestSSEHandleMessageRejectsInvalidJSON(t *testing.T) {
	env := newSSETestEnv()
	defer env.close(t)

	msgURL := fmt.Sprintf("%s/message?sessionID=whatever", env.httpSrv.URL)
	resp, err := http.Post(msgURL, "application/json", bytes.NewReader([]byte(`{invalid`)))
	if err != nil {
		t.Fatalf("failed to post message: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", resp.StatusCode)
	}
}

func TestSSEClientConnectFailure(t *testing.T) {
	cli := mcp.NewSSEClient("http://127.0.0.1:0/sse", nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := cli.StartSession(ctx); err == nil {
		t.Fatal("expected connection error, got nil")
	}
}
