// Package http exposes the service over HTTP: the chat webhook, the
// dashboard read model, the reminder sweep trigger and the admin CRUD
// endpoints.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"grana/internal/bot"
	"grana/internal/dashboard"
)

// Store combines the storage surfaces the handlers need. The bot and
// dashboard slices overlap; the admin endpoints add the rest.
type Store interface {
	dashboard.Store
	bot.Store

	AddCategory(ctx context.Context, userID, name, keywords string) error
	DeleteCategory(ctx context.Context, userID, name string) error
	DeleteAccount(ctx context.Context, userID, name string) error
	DeleteGoal(ctx context.Context, userID, cat string) error
	SaveCardRules(ctx context.Context, userID string, rules map[string]int) error
	DeleteReminder(ctx context.Context, userID string, timestamp time.Time) error
}

// Sender delivers outbound chat messages.
type Sender interface {
	SendText(ctx context.Context, to, body string) error
}

// Sweeper runs one reminder sweep pass.
type Sweeper interface {
	Run(ctx context.Context, now time.Time) error
}

type Server struct {
	http.Server

	store       Store
	router      *bot.Router
	sender      Sender
	sweeper     Sweeper
	verifyToken string
	logger      *slog.Logger
	rateLimiter *rateLimiter

	shutdownOnce sync.Once
}

// NewServer configures all routes and returns a ready-to-run server.
func NewServer(addr string, store Store, router *bot.Router, sender Sender, sweeper Sweeper, verifyToken string, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		store:       store,
		router:      router,
		sender:      sender,
		sweeper:     sweeper,
		verifyToken: verifyToken,
		logger:      logger,
		rateLimiter: newRateLimiter(),
	}

	mux.HandleFunc("GET /webhook", s.withMiddleware(s.handleWebhookVerify))
	mux.HandleFunc("POST /webhook", s.withMiddleware(s.handleWebhookEvent))
	mux.HandleFunc("GET /dashboard/{user_id}", s.withMiddleware(s.handleDashboard))
	mux.HandleFunc("GET /check_reminders", s.withMiddleware(s.handleCheckReminders))

	mux.HandleFunc("POST /add_category", s.withMiddleware(s.handleAddCategory))
	mux.HandleFunc("POST /delete_category", s.withMiddleware(s.handleDeleteCategory))
	mux.HandleFunc("POST /add_account", s.withMiddleware(s.handleAddAccount))
	mux.HandleFunc("POST /delete_account", s.withMiddleware(s.handleDeleteAccount))
	mux.HandleFunc("POST /add_meta", s.withMiddleware(s.handleAddGoal))
	mux.HandleFunc("POST /delete_meta", s.withMiddleware(s.handleDeleteGoal))
	mux.HandleFunc("POST /save_card_rules", s.withMiddleware(s.handleSaveCardRules))
	mux.HandleFunc("POST /delete_lembrete", s.withMiddleware(s.handleDeleteReminder))

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	return s
}

// Shutdown stops the rate limiter cleanup and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

// withMiddleware adds a request ID, request logging, rate limiting on
// writes and the security headers to every handler.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		s.logger.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			s.logger.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.logger.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds())
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeBody reads a small JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	return dec.Decode(dst)
}
