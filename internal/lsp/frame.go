package lsp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// The LSP base protocol frames each message as an ASCII header block
// terminated by \r\n\r\n, followed by exactly Content-Length bytes of
// UTF-8 JSON. Content-Length counts bytes, not code points.

const headerTerminator = "\r\n\r\n"

// appendFrame appends the framed form of body to dst and returns the
// extended slice.
func appendFrame(dst, body []byte) []byte {
	dst = append(dst, "Content-Length: "...)
	dst = strconv.AppendInt(dst, int64(len(body)), 10)
	dst = append(dst, headerTerminator...)
	return append(dst, body...)
}

// encodeMessage marshals msg and frames it for the wire.
func encodeMessage(msg *Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	return appendFrame(nil, body), nil
}

// tryDecodeOne attempts to decode a single framed message from the front of
// buf. It returns the message, the number of bytes consumed, and an error.
//
// A (nil, 0, nil) return means the buffer does not yet hold a complete
// frame; the caller must accumulate more bytes without discarding any. A
// non-nil error with consumed > 0 means a malformed frame was skipped: a
// header block without a usable Content-Length consumes the header alone,
// and a frame whose body is not valid JSON consumes the whole frame. Either
// way decoding resynchronizes at the next header.
func tryDecodeOne(buf []byte) (*Message, int, error) {
	headerEnd := bytes.Index(buf, []byte(headerTerminator))
	if headerEnd < 0 {
		return nil, 0, nil
	}
	headerLen := headerEnd + len(headerTerminator)

	contentLength, err := parseContentLength(buf[:headerEnd])
	if err != nil {
		return nil, headerLen, fmt.Errorf("malformed frame header: %w", err)
	}

	if len(buf) < headerLen+contentLength {
		// Body not fully arrived; keep the header buffered.
		return nil, 0, nil
	}

	body := buf[headerLen : headerLen+contentLength]
	consumed := headerLen + contentLength

	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, consumed, fmt.Errorf("undecodable frame body: %w", err)
	}
	return &msg, consumed, nil
}

// parseContentLength scans the header block for the mandatory
// Content-Length key. Header names are case-insensitive and unknown
// headers are ignored.
func parseContentLength(header []byte) (int, error) {
	for _, line := range strings.Split(string(header), "\r\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(key), "Content-Length") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return 0, fmt.Errorf("bad Content-Length %q", strings.TrimSpace(value))
		}
		return n, nil
	}
	return 0, fmt.Errorf("missing Content-Length header")
}
