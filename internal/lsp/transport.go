package lsp

import (
	"bufio"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
)

// transport owns the byte streams of the server process. Writes are
// serialized under a mutex so concurrent senders never interleave a header
// with another frame's body. The receive loop is the sole reader of the
// server's output stream and hands every decoded message to the session in
// arrival order.
type transport struct {
	writer io.Writer
	logger *slog.Logger

	mu     sync.Mutex
	closed atomic.Bool
}

func newTransport(w io.Writer, logger *slog.Logger) *transport {
	return &transport{
		writer: w,
		logger: logger,
	}
}

// send frames and writes one message as a logically atomic unit.
func (t *transport) send(msg *Message) error {
	if t.closed.Load() {
		return ErrShutdown
	}

	frame, err := encodeMessage(msg)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	_, err = t.writer.Write(frame)
	return err
}

// close stops accepting writes. The receive loop ends on its own when the
// reader yields EOF.
func (t *transport) close() {
	t.closed.Store(true)
}

// readLoop drains r, feeding an accumulating buffer through the frame
// codec. Decoded messages go to dispatch; malformed frames are logged and
// skipped. When the stream ends, onEOF runs exactly once.
func (t *transport) readLoop(r io.Reader, dispatch func(*Message), onEOF func()) {
	defer onEOF()

	buf := make([]byte, 0, 64*1024)
	chunk := make([]byte, 32*1024)

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			buf = t.drainBuffer(buf, dispatch)
		}
		if err != nil {
			if err != io.EOF && err != io.ErrClosedPipe && !t.closed.Load() {
				t.logger.Error("read from language server failed", "err", err)
			}
			return
		}
	}
}

// drainBuffer decodes every complete frame currently buffered and returns
// the remaining unconsumed bytes shifted to the front.
func (t *transport) drainBuffer(buf []byte, dispatch func(*Message)) []byte {
	offset := 0
	for {
		msg, consumed, err := tryDecodeOne(buf[offset:])
		if err != nil {
			t.logger.Warn("skipping malformed frame", "err", err)
			offset += consumed
			continue
		}
		if consumed == 0 {
			break
		}
		offset += consumed
		dispatch(msg)
	}
	if offset == 0 {
		return buf
	}
	rest := copy(buf, buf[offset:])
	return buf[:rest]
}

// drainStderr forwards the server's diagnostic stream line by line. Lines
// mentioning errors or panics are surfaced at elevated severity. Failures
// here must never disturb the receive loop.
func (t *transport) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		if strings.Contains(lower, "error") || strings.Contains(lower, "panic") {
			t.logger.Error("language server stderr", "line", line)
		} else {
			t.logger.Debug("language server stderr", "line", line)
		}
	}
	if err := scanner.Err(); err != nil && !t.closed.Load() {
		t.logger.Debug("stderr stream ended", "err", err)
	}
}
