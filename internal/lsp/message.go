package lsp

import (
	"encoding/json"
	"strconv"
)

// jsonRPCVersion is the version string carried by every message.
const jsonRPCVersion = "2.0"

// MessageKind classifies a decoded wire message.
type MessageKind int

const (
	// KindInvalid marks a message with neither an id nor a method.
	KindInvalid MessageKind = iota
	// KindRequest is a server-to-client (reverse) request: id plus method.
	KindRequest
	// KindResponse answers a client-issued request: id without method.
	KindResponse
	// KindNotification carries a method without an id.
	KindNotification
)

// Message is the JSON-RPC envelope exchanged with the language server. A
// single struct covers all three wire shapes; Kind distinguishes them. The
// id is kept raw so a reverse request can be answered with the exact id the
// server chose, whatever its JSON type.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// Kind classifies the message by the presence of its id and method fields.
func (m *Message) Kind() MessageKind {
	hasID := len(m.ID) > 0 && string(m.ID) != "null"
	switch {
	case hasID && m.Method != "":
		return KindRequest
	case hasID:
		return KindResponse
	case m.Method != "":
		return KindNotification
	default:
		return KindInvalid
	}
}

// IDInt64 parses the id as an integer. Client-issued ids are always
// integers, so this is how responses are matched to the pending table.
func (m *Message) IDInt64() (int64, bool) {
	var id int64
	if err := json.Unmarshal(m.ID, &id); err != nil {
		return 0, false
	}
	return id, true
}

// numericID renders an integer id in wire form.
func numericID(id int64) json.RawMessage {
	return json.RawMessage(strconv.FormatInt(id, 10))
}

// newRequest builds an outgoing request envelope. Params are marshaled
// eagerly so an encoding failure surfaces to the caller, not the writer.
func newRequest(id int64, method string, params any) (*Message, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Message{
		JSONRPC: jsonRPCVersion,
		ID:      numericID(id),
		Method:  method,
		Params:  raw,
	}, nil
}

// newNotification builds an outgoing notification envelope.
func newNotification(method string, params any) (*Message, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Message{
		JSONRPC: jsonRPCVersion,
		Method:  method,
		Params:  raw,
	}, nil
}

// newResponse builds an answer to a reverse request, echoing its raw id.
func newResponse(id json.RawMessage, result any, respErr *ResponseError) (*Message, error) {
	msg := &Message{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   respErr,
	}
	if respErr == nil {
		raw, err := json.Marshal(result)
		if err != nil {
			return nil, err
		}
		msg.Result = raw
	}
	return msg, nil
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	if raw, ok := params.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(params)
}
