package httpx

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/scripty-dev/starter-api/internal/service/auth"
	"github.com/scripty-dev/starter-api/internal/service/item"
	"github.com/scripty-dev/starter-api/internal/ws"
	"github.com/scripty-dev/starter-api/pkg/config"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux              *http.ServeMux
	logger           *slog.Logger
	auth             auth.Service
	items            item.Service
	hub              *ws.Hub
	upgrader         websocket.Upgrader
	limiter          RateLimiter
	metrics          *routeMetrics
	dbHealth         func(context.Context) error
	development      bool
	itemsRequireAuth bool
	corsOrigins      []string
	heartbeat        time.Duration
}

const (
	rateWindowDefault  = time.Minute
	rateLimitRegister  = 5
	rateLimitLogin     = 12
	healthCheckTimeout = 2 * time.Second
	streamHeartbeat    = 15 * time.Second
)

// NewRouter assembles routes with dependencies. A nil limiter falls back to
// the in-memory one; a nil dbHealth reports the store as always up.
func NewRouter(logger *slog.Logger, cfg config.APIConfig, authSvc auth.Service, itemSvc item.Service, hub *ws.Hub, limiter RateLimiter, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:    http.NewServeMux(),
		logger: logger,
		auth:   authSvc,
		items:  itemSvc,
		hub:    hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		limiter:          limiter,
		dbHealth:         dbHealth,
		development:      cfg.IsDevelopment(),
		itemsRequireAuth: cfg.ItemsRequireAuth,
		corsOrigins:      cfg.CORSAllowedOrigins,
		heartbeat:        streamHeartbeat,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	if cfg.MetricsEnabled {
		r.metrics = newRouteMetrics(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	}
	r.register()
	return r
}

// ServeHTTP applies CORS and security headers, answers preflights, then
// delegates to the mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.applySecurityHeaders(w)
	r.applyCORS(w, req)
	if req.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.route("/api/hello", "hello", r.handleHello)
	// Every resource is served bare and under /api; limiter keys are shared
	// across both mounts.
	for _, base := range []string{"", "/api"} {
		r.route(base+"/health", "health", r.handleHealth)
		r.route(base+"/users/register", "users.register", r.withRateLimit("users.register", rateLimitRegister, rateWindowDefault, rateLimitKeyIP, r.handleRegister))
		r.route(base+"/users/login", "users.login", r.withRateLimit("users.login", rateLimitLogin, rateWindowDefault, rateLimitKeyIP, r.handleLogin))
		r.route(base+"/users/profile", "users.profile", r.requireAuth(r.handleProfile))
	}
	for _, prefix := range []string{"/items", "/api/items"} {
		r.route(prefix, "items", r.itemRoutes(prefix))
		r.route(prefix+"/", "items", r.itemRoutes(prefix))
	}
	if r.metrics != nil {
		r.mux.Handle("/metrics", r.metrics.handler)
	}
	r.route("/", "not_found", r.handleNotFound)
}

func (r *Router) route(pattern, label string, handler http.HandlerFunc) {
	r.mux.HandleFunc(pattern, r.audit(label, r.recoverPanics(handler)))
}

func (r *Router) handleNotFound(w http.ResponseWriter, req *http.Request) {
	r.respondError(w, req, errNotFound("Not found - "+req.URL.Path))
}

func (r *Router) methodNotAllowed(w http.ResponseWriter, req *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	r.respondError(w, req, errMethodNotAllowed())
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w, req, http.MethodGet)
		return
	}
	status, message, code := "ok", "Server is running", http.StatusOK
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			r.logger.Warn("database health check failed", "error", err)
			status, message, code = "degraded", "Database unreachable", http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, map[string]string{
		"status":    status,
		"message":   message,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (r *Router) handleHello(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w, req, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Hello from Go!",
		"info":    "This API was initialized by Scripty",
	})
}

func (r *Router) recoverPanics(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("%v", rec)
				}
				r.respondError(w, req, fmt.Errorf("panic: %w", err))
			}
		}()
		next(w, req)
	}
}

func (r *Router) audit(label string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.metrics.observe(req.Method, label, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if identity, ok := IdentityFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", identity.ID)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		if sr.status == 0 {
			sr.status = http.StatusSwitchingProtocols
		}
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		if ip := strings.TrimSpace(strings.Split(forwarded, ",")[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := max(limit-decision.count, 0)
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

func (r *Router) applySecurityHeaders(w http.ResponseWriter) {
	headers := w.Header()
	headers.Set("X-Content-Type-Options", "nosniff")
	headers.Set("X-Frame-Options", "SAMEORIGIN")
	headers.Set("Referrer-Policy", "no-referrer")
	headers.Set("X-DNS-Prefetch-Control", "off")
}

func (r *Router) applyCORS(w http.ResponseWriter, req *http.Request) {
	origin := req.Header.Get("Origin")
	headers := w.Header()
	switch {
	case slices.Contains(r.corsOrigins, "*"):
		headers.Set("Access-Control-Allow-Origin", "*")
	case origin != "" && slices.Contains(r.corsOrigins, origin):
		headers.Set("Access-Control-Allow-Origin", origin)
		headers.Add("Vary", "Origin")
	default:
		return
	}
	headers.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	headers.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
}
