package httpx

import (
	"errors"
	"net/http"
	"time"

	"github.com/scripty-dev/starter-api/internal/service/item"
	"github.com/scripty-dev/starter-api/internal/ws"
)

func (r *Router) handleItemsWS(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w, req, http.MethodGet)
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.hub.Register(item.Topic, client)
	r.metrics.streamOpened("websocket")
	go func() {
		defer func() {
			r.hub.Unregister(item.Topic, client)
			client.Close()
			r.metrics.streamClosed("websocket")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (r *Router) handleItemsStream(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w, req, http.MethodGet)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		r.respondError(w, req, errors.New("streaming unsupported"))
		return
	}
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := ws.NewSSEClient(w, r.logger)
	r.hub.Register(item.Topic, client)
	r.metrics.streamOpened("sse")
	defer func() {
		// Close first so an in-flight hub delivery finishes before the
		// response writer goes away.
		client.Close()
		r.hub.Unregister(item.Topic, client)
		r.metrics.streamClosed("sse")
	}()

	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-req.Context().Done():
			return
		case <-client.Done():
			return
		case <-ticker.C:
			if err := client.Heartbeat(); err != nil {
				return
			}
		}
	}
}
