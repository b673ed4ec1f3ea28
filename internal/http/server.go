// Package http serves the ledger's JSON API: receivables, projections,
// entries and expenses, plus health endpoints.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Fabiobarsil/caixa-claro-financeiro-sub001/internal/cache"
	"github.com/Fabiobarsil/caixa-claro-financeiro-sub001/internal/core"
	applog "github.com/Fabiobarsil/caixa-claro-financeiro-sub001/internal/log"
	"github.com/Fabiobarsil/caixa-claro-financeiro-sub001/internal/services"
)

// ReceivablesComputer derives the open receivables list as of today.
type ReceivablesComputer interface {
	Compute(ctx context.Context, today time.Time) ([]core.Receivable, error)
}

// Projector builds the monthly revenue/expense projection.
type Projector interface {
	Project(ctx context.Context, anchor string, months int) (services.Projection, error)
}

// LedgerWriter is the mutation surface behind the write endpoints.
type LedgerWriter interface {
	CreateEntry(ctx context.Context, e core.LedgerEntry, installments int) (int64, error)
	MarkEntryPaid(ctx context.Context, id int64, today time.Time) error
	MarkInstallmentPaid(ctx context.Context, id int64, today time.Time) (int64, error)
	CreateExpense(ctx context.Context, x core.Expense) (int64, error)
	DeleteEntry(ctx context.Context, id int64) error
}

// EntryLister reads entries for the listing and detail endpoints.
type EntryLister interface {
	ListEntries(ctx context.Context) ([]core.LedgerEntry, error)
	GetEntry(ctx context.Context, id int64) (core.LedgerEntry, error)
}

// ReadyChecker verifies a backing dependency for the readiness probe.
type ReadyChecker interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the server needs.
type Deps struct {
	Receivables ReceivablesComputer
	Projection  Projector
	Ledger      LedgerWriter
	Entries     EntryLister
	Ready       ReadyChecker
}

// Options tune caching and defaults. Zero values fall back to sensible ones.
type Options struct {
	CacheSize        int
	CacheTTL         time.Duration
	ProjectionMonths int
}

type Server struct {
	http.Server
	deps        Deps
	rateLimiter *rateLimiter
	metrics     *securityMetrics
	startTime   time.Time
	baseLog     *applog.Logger

	defaultMonths int

	receivablesCache *cache.LRUCache[[]core.Receivable]
	projectionCache  *cache.LRUCache[services.Projection]
	entriesCache     *cache.LRUCache[[]core.LedgerEntry]
	cacheManager     *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and caches, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.ProjectionMonths <= 0 {
		opts.ProjectionMonths = services.DefaultProjectionWindow
	}

	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		deps:          deps,
		rateLimiter:   newRateLimiter(),
		metrics:       &securityMetrics{},
		startTime:     time.Now(),
		baseLog:       applog.New(applog.Config{Component: applog.ComponentHTTP}),
		defaultMonths: opts.ProjectionMonths,

		receivablesCache: cache.NewLRUCache[[]core.Receivable](opts.CacheSize, opts.CacheTTL),
		projectionCache:  cache.NewLRUCache[services.Projection](opts.CacheSize, opts.CacheTTL),
		entriesCache:     cache.NewLRUCache[[]core.LedgerEntry](opts.CacheSize, opts.CacheTTL),
		cacheManager:     cache.NewManager(),
	}

	s.cacheManager.Register(s.receivablesCache)
	s.cacheManager.Register(s.projectionCache)
	s.cacheManager.Register(s.entriesCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/receivables", s.withSecurityHeaders(s.handleListReceivables))
	mux.HandleFunc("GET /api/projection", s.withSecurityHeaders(s.handleProjection))
	mux.HandleFunc("GET /api/entries", s.withSecurityHeaders(s.handleListEntries))
	mux.HandleFunc("GET /api/entries/{id}", s.withSecurityHeaders(s.handleGetEntry))
	mux.HandleFunc("POST /api/entries", s.withSecurityHeaders(s.handleCreateEntry))
	mux.HandleFunc("POST /api/entries/{id}/pay", s.withSecurityHeaders(s.handlePayEntry))
	mux.HandleFunc("DELETE /api/entries/{id}", s.withSecurityHeaders(s.handleDeleteEntry))
	mux.HandleFunc("POST /api/installments/{id}/pay", s.withSecurityHeaders(s.handlePayInstallment))
	mux.HandleFunc("POST /api/expenses", s.withSecurityHeaders(s.handleCreateExpense))

	return s
}

// InvalidateCaches drops every derived read cache. Called after every write
// handled by this process; changes made elsewhere age out on the cache TTL.
func (s *Server) InvalidateCaches() {
	s.receivablesCache.Clear()
	s.projectionCache.Clear()
	s.entriesCache.Clear()
	slog.Debug("Derived caches invalidated")
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request
// logging to responses.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		reqLog := applog.NewStructuredLogger(s.baseLog.With(applog.FieldRequestID, requestID))

		if detectSuspiciousRequest(r, s.metrics) {
			slog.WarnContext(ctx, "Suspicious request pattern",
				"request_id", requestID,
				"method", r.Method,
				"url", r.URL.Path,
				"client_ip", clientIP)
		}

		reqLog.LogHTTPStart(ctx, r, clientIP)

		// Rate limit mutations only; reads are cached and cheap.
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP, s.metrics) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		reqLog.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
