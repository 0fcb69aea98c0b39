package lsp

import (
	"errors"
	"fmt"
)

// Standard errors returned by the session and transport.
var (
	// ErrNotStarted indicates the session has not been started.
	ErrNotStarted = errors.New("language server session not started")

	// ErrAlreadyStarted indicates the session is already running.
	ErrAlreadyStarted = errors.New("language server session already started")

	// ErrInitializing indicates the initialize handshake has not completed yet.
	ErrInitializing = errors.New("language server is still initializing")

	// ErrShutdown indicates the session has been shut down.
	ErrShutdown = errors.New("language server session shut down")

	// ErrServerExited indicates the server process terminated or closed its
	// output stream while requests were outstanding.
	ErrServerExited = errors.New("language server connection closed")

	// ErrTimeout indicates a request did not receive a response in time.
	ErrTimeout = errors.New("request timed out")

	// ErrInvalidResponse indicates a response that cannot be interpreted.
	ErrInvalidResponse = errors.New("invalid response from language server")
)

// ResponseError is a JSON-RPC error object returned by the peer. It is
// propagated to the caller of the originating request.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC error codes, plus the LSP-specific range.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeServerNotInitialized = -32002
	CodeRequestCancelled     = -32800
	CodeContentModified      = -32801
	CodeRequestFailed        = -32803
)
