package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/scripty-dev/starter-api/internal/service/item"
)

func waitForSubscribers(t *testing.T, env testEnv, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for env.hub.Subscribers(item.Topic) != want {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d subscribers", want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func postItem(t *testing.T, baseURL string) {
	t.Helper()
	resp, err := http.Post(baseURL+"/items", "application/json",
		strings.NewReader(`{"name":"Pen","description":"Blue pen","price":1.5}`))
	if err != nil {
		t.Fatalf("post item: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("post item: status %d", resp.StatusCode)
	}
}

func TestItemsWebsocketFeed(t *testing.T) {
	env := setupRouter(t, nil)
	server := httptest.NewServer(env.router)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/items/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitForSubscribers(t, env, 1)

	postItem(t, server.URL)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var event struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(raw, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.Type != item.EventCreated || event.Data["name"] != "Pen" {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestItemsSSEFeed(t *testing.T) {
	env := setupRouter(t, nil)
	server := httptest.NewServer(env.router)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/items/stream", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("unexpected content type %q", got)
	}
	waitForSubscribers(t, env, 1)

	postItem(t, server.URL)

	lines := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
				lines <- line
				return
			}
		}
	}()
	select {
	case line := <-lines:
		if !strings.Contains(line, `"type":"item.created"`) {
			t.Fatalf("unexpected frame %q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}

	cancel()
	waitForSubscribers(t, env, 0)
}

type stalledSubscriber struct {
	release chan struct{}
}

func (s stalledSubscriber) Send([]byte) error {
	<-s.release
	return nil
}

func (s stalledSubscriber) Close() {}

func TestItemWritesDoNotWaitOnStalledSubscriber(t *testing.T) {
	env := setupRouter(t, nil)
	stalled := stalledSubscriber{release: make(chan struct{})}
	t.Cleanup(func() { close(stalled.release) })
	env.hub.Register(item.Topic, stalled)
	waitForSubscribers(t, env, 1)

	for i := 0; i < 3; i++ {
		status := make(chan int, 1)
		go func() {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/items",
				strings.NewReader(`{"name":"Pen","description":"Blue pen","price":1.5}`))
			req.Header.Set("Content-Type", "application/json")
			env.router.ServeHTTP(rec, req)
			status <- rec.Code
		}()
		select {
		case code := <-status:
			if code != http.StatusCreated {
				t.Fatalf("write %d: status %d", i, code)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("write %d blocked behind a stalled subscriber", i)
		}
	}
}
