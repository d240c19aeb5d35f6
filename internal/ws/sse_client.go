package ws

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// SSEClient streams Server-Sent Events over an HTTP response writer.
type SSEClient struct {
	mu     sync.Mutex
	writer io.Writer
	rc     *http.ResponseController
	log    *slog.Logger
	closed bool
	done   chan struct{}
}

// NewSSEClient builds an SSE client instance. Every frame is written under a
// write deadline.
func NewSSEClient(w http.ResponseWriter, logger *slog.Logger) *SSEClient {
	return &SSEClient{writer: w, rc: http.NewResponseController(w), log: logger, done: make(chan struct{})}
}

// Send emits a data event to the SSE stream.
func (c *SSEClient) Send(payload []byte) error {
	return c.write(func() error {
		_, err := fmt.Fprintf(c.writer, "data: %s\n\n", payload)
		return err
	}, "sse send failed")
}

// Heartbeat emits a comment frame to keep intermediaries from idling out.
func (c *SSEClient) Heartbeat() error {
	return c.write(func() error {
		_, err := fmt.Fprint(c.writer, ": ping\n\n")
		return err
	}, "sse heartbeat failed")
}

func (c *SSEClient) write(fn func() error, failure string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return io.EOF
	}
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeWait)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		c.markClosed()
		return err
	}
	err := fn()
	if err == nil {
		err = c.rc.Flush()
	}
	if err != nil {
		c.markClosed()
		c.log.Warn(failure, "error", err)
		return err
	}
	return nil
}

// Close marks the stream as closed and releases Done waiters.
func (c *SSEClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markClosed()
}

// Done is closed once the client stops accepting events.
func (c *SSEClient) Done() <-chan struct{} {
	return c.done
}

func (c *SSEClient) markClosed() {
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}
