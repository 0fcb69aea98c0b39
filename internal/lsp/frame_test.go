package lsp

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  *Message
	}{
		{
			name: "request",
			msg: &Message{
				JSONRPC: jsonRPCVersion,
				ID:      numericID(7),
				Method:  "textDocument/hover",
				Params:  json.RawMessage(`{"line":3}`),
			},
		},
		{
			name: "response",
			msg: &Message{
				JSONRPC: jsonRPCVersion,
				ID:      numericID(7),
				Result:  json.RawMessage(`{"ok":true}`),
			},
		},
		{
			name: "notification",
			msg: &Message{
				JSONRPC: jsonRPCVersion,
				Method:  "textDocument/publishDiagnostics",
				Params:  json.RawMessage(`{"uri":"file:///a.py"}`),
			},
		},
		{
			name: "multi-byte utf-8 body",
			msg: &Message{
				JSONRPC: jsonRPCVersion,
				ID:      numericID(1),
				Method:  "textDocument/hover",
				Params:  json.RawMessage(`{"text":"héllo wörld 日本語 🐍"}`),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := encodeMessage(tt.msg)
			require.NoError(t, err)

			decoded, consumed, err := tryDecodeOne(frame)
			require.NoError(t, err)
			require.NotNil(t, decoded)
			assert.Equal(t, len(frame), consumed)

			assert.Equal(t, tt.msg.Kind(), decoded.Kind())
			assert.Equal(t, tt.msg.Method, decoded.Method)
			assert.JSONEq(t, orEmpty(tt.msg.Params), orEmpty(decoded.Params))
			if len(tt.msg.ID) > 0 {
				assert.Equal(t, string(tt.msg.ID), string(decoded.ID))
			}
		})
	}
}

func orEmpty(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	return string(raw)
}

func TestContentLengthCountsBytesNotRunes(t *testing.T) {
	body := []byte(`{"jsonrpc":"2.0","method":"m","params":{"s":"日本語"}}`)
	frame := appendFrame(nil, body)

	want := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))
	assert.Equal(t, want, string(frame[:len(frame)-len(body)]))

	msg, consumed, err := tryDecodeOne(frame)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, len(frame), consumed)
}

func TestDecodeIncrementalByteAtATime(t *testing.T) {
	msg := &Message{
		JSONRPC: jsonRPCVersion,
		ID:      numericID(42),
		Method:  "textDocument/definition",
		Params:  json.RawMessage(`{"pos":"日本語 boundary"}`),
	}
	frame, err := encodeMessage(msg)
	require.NoError(t, err)

	var buf []byte
	var decoded *Message
	for i, b := range frame {
		buf = append(buf, b)
		got, consumed, err := tryDecodeOne(buf)
		require.NoError(t, err)
		if i < len(frame)-1 {
			require.Nil(t, got, "decoded early at byte %d", i)
			require.Zero(t, consumed, "consumed bytes before frame complete at byte %d", i)
			continue
		}
		require.NotNil(t, got)
		assert.Equal(t, len(frame), consumed)
		decoded = got
	}

	require.NotNil(t, decoded)
	assert.Equal(t, msg.Method, decoded.Method)
	assert.Equal(t, string(msg.Params), string(decoded.Params))
}

func TestDecodeConcatenatedMessages(t *testing.T) {
	first := &Message{JSONRPC: jsonRPCVersion, ID: numericID(1), Method: "a"}
	second := &Message{JSONRPC: jsonRPCVersion, ID: numericID(2), Method: "b"}

	f1, err := encodeMessage(first)
	require.NoError(t, err)
	f2, err := encodeMessage(second)
	require.NoError(t, err)
	buf := append(append([]byte{}, f1...), f2...)

	msg1, n1, err := tryDecodeOne(buf)
	require.NoError(t, err)
	require.NotNil(t, msg1)
	assert.Equal(t, "a", msg1.Method)
	assert.Equal(t, len(f1), n1)

	msg2, n2, err := tryDecodeOne(buf[n1:])
	require.NoError(t, err)
	require.NotNil(t, msg2)
	assert.Equal(t, "b", msg2.Method)
	assert.Equal(t, len(f2), n2)
	assert.Equal(t, len(buf), n1+n2)
}

func TestDecodeMalformedHeaderResynchronizes(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing content-length", "X-Custom: hello\r\n\r\n"},
		{"non-numeric content-length", "Content-Length: banana\r\n\r\n"},
		{"negative content-length", "Content-Length: -5\r\n\r\n"},
	}

	valid, err := encodeMessage(&Message{JSONRPC: jsonRPCVersion, Method: "ok"})
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := append([]byte(tt.header), valid...)

			msg, consumed, err := tryDecodeOne(buf)
			require.Error(t, err)
			require.Nil(t, msg)
			assert.Equal(t, len(tt.header), consumed)

			msg, consumed, err = tryDecodeOne(buf[consumed:])
			require.NoError(t, err)
			require.NotNil(t, msg)
			assert.Equal(t, "ok", msg.Method)
			assert.Equal(t, len(valid), consumed)
		})
	}
}

func TestDecodeBadJSONBodyConsumesFrame(t *testing.T) {
	bad := appendFrame(nil, []byte(`{not json`))
	valid, err := encodeMessage(&Message{JSONRPC: jsonRPCVersion, Method: "after"})
	require.NoError(t, err)
	buf := append(bad, valid...)

	msg, consumed, err := tryDecodeOne(buf)
	require.Error(t, err)
	require.Nil(t, msg)
	assert.Equal(t, len(bad), consumed)

	msg, _, err = tryDecodeOne(buf[consumed:])
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "after", msg.Method)
}

func TestDecodeIncompleteBodyKeepsHeader(t *testing.T) {
	frame, err := encodeMessage(&Message{JSONRPC: jsonRPCVersion, Method: "partial"})
	require.NoError(t, err)

	// Header plus half the body: nothing must be consumed yet.
	cut := len(frame) - 5
	msg, consumed, err := tryDecodeOne(frame[:cut])
	require.NoError(t, err)
	require.Nil(t, msg)
	assert.Zero(t, consumed)

	msg, consumed, err = tryDecodeOne(frame)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, len(frame), consumed)
}

func TestMessageKindClassification(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want MessageKind
	}{
		{"id and method", Message{ID: numericID(1), Method: "workspace/configuration"}, KindRequest},
		{"id only", Message{ID: numericID(1), Result: json.RawMessage(`{}`)}, KindResponse},
		{"method only", Message{Method: "textDocument/publishDiagnostics"}, KindNotification},
		{"neither", Message{}, KindInvalid},
		{"null id", Message{ID: json.RawMessage("null"), Method: "m"}, KindNotification},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.msg.Kind())
		})
	}
}
