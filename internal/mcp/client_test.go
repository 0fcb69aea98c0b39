package mcp_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jonmmease/jons-pyright-mcp/internal/mcp"
)

// fakeServer answers the handshake over a raw StdIO session with a canned
// initialize result, so the client's validation can be tested in isolation.
func fakeServer(srvIO mcp.StdIO, initializeResult string) {
	go func() {
		for sess := range srvIO.Sessions() {
			go func() {
				for msg := range sess.Messages() {
					if msg.Method != "initialize" {
						continue
					}
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					_ = sess.Send(ctx, mcp.JSONRPCMessage{
						JSONRPC: mcp.JSONRPCVersion,
						ID:      msg.ID,
						Result:  json.RawMessage(initializeResult),
					})
					cancel()
				}
			}()
		}
	}()
}

func TestClientRequiresConnect(t *testing.T) {
	_, cliIO := setupStdIO()
	client := mcp.NewClient(mcp.Info{Name: "test-client", Version: "1.0"}, cliIO)

	if _, err := client.ListTools(context.Background(), mcp.ListToolsParams{}); err == nil {
		t.Error("expected ListTools to fail before Connect")
	} else if !strings.Contains(err.Error(), "not initialized") {
		t.Errorf("unexpected error: %v", err)
	}

	if _, err := client.CallTool(context.Background(), mcp.CallToolParams{Name: "hover"}); err == nil {
		t.Error("expected CallTool to fail before Connect")
	} else if !strings.Contains(err.Error(), "not initialized") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClientConnectRejectsProtocolVersionMismatch(t *testing.T) {
	srvIO, cliIO := setupStdIO()
	fakeServer(srvIO, `{"protocolVersion":"1999-01-01","capabilities":{},"serverInfo":{"name":"fake","version":"1.0"}}`)

	client := mcp.NewClient(mcp.Info{Name: "test-client", Version: "1.0"}, cliIO)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := client.Connect(ctx)
	if err == nil {
		t.Fatal("expected protocol version mismatch error, got nil")
	}
	if !strings.Contains(err.Error(), "protocol version mismatch") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClientRejectsToolCallsWithoutToolsCapability(t *testing.T) {
	srvIO, cliIO := setupStdIO()
	fakeServer(srvIO, `{"protocolVersion":"2024-11-05","capabilities":{},"serverInfo":{"name":"fake","version":"1.0"}}`)

	client := mcp.NewClient(mcp.Info{Name: "test-client", Version: "1.0"}, cliIO)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}

	if client.ToolServerSupported() {
		t.Error("expected tool server to be unsupported")
	}
	if _, err := client.ListTools(context.Background(), mcp.ListToolsParams{}); err == nil {
		t.Error("expected ListTools to fail without tools capability")
	} else if !strings.Contains(err.Error(), "not supported") {
		t.Errorf("unexpected error: %v", err)
	}
}
