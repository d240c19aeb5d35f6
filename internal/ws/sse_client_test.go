package ws

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
)

func TestSSEClientFrames(t *testing.T) {
	rec := httptest.NewRecorder()
	client := NewSSEClient(rec, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := client.Send([]byte(`{"type":"item.created"}`)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := client.Heartbeat(); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	want := "data: {\"type\":\"item.created\"}\n\n: ping\n\n"
	if rec.Body.String() != want {
		t.Fatalf("unexpected stream %q", rec.Body.String())
	}
	if !rec.Flushed {
		t.Fatalf("expected flush")
	}

	client.Close()
	client.Close()
	select {
	case <-client.Done():
	default:
		t.Fatalf("Done not closed after Close")
	}
	if err := client.Send([]byte("late")); err != io.EOF {
		t.Fatalf("expected io.EOF after close, got %v", err)
	}
}
