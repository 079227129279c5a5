package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// DoneEvent is the terminal marker every stream ends with.
const DoneEvent = "data: [DONE]\n\n"

// EventSink receives re-framed chunks. Finish writes the terminal marker
// and closes the sink; calls after the first are no-ops.
type EventSink interface {
	Write(chunk json.RawMessage) error
	Finish()
}

// SSESink writes server-sent events to an HTTP response and flushes after
// every event.
type SSESink struct {
	ctx     context.Context
	w       io.Writer
	flusher http.Flusher

	mu     sync.Mutex
	once   sync.Once
	closed bool
}

// NewSSESink wraps w. ctx is the request context; once it is done the
// terminal marker is no longer written.
func NewSSESink(ctx context.Context, w http.ResponseWriter) *SSESink {
	f, _ := w.(http.Flusher)
	return &SSESink{ctx: ctx, w: w, flusher: f}
}

// WriteHeaders commits the event-stream response headers.
func WriteHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
}

func (s *SSESink) flush() {
	if s.flusher != nil {
		s.flusher.Flush()
	}
}

// Write frames chunk as "data: <json>\n".
func (s *SSESink) Write(chunk json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n", chunk); err != nil {
		return err
	}
	s.flush()
	return nil
}

// Finish writes the terminal marker unless the client is gone, then closes
// the sink.
func (s *SSESink) Finish() {
	s.once.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed = true
		if s.ctx.Err() != nil {
			return
		}
		if _, err := io.WriteString(s.w, DoneEvent); err == nil {
			s.flush()
		}
	})
}
