// Package http serves the finance tracker pages, their htmx partials and the
// JSON-RPC batch endpoint.
package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"tracker/internal/cache"
	"tracker/internal/core"
	"tracker/internal/form"
	"tracker/internal/log"
	"tracker/internal/middleware/ratelimit"
	"tracker/internal/middleware/security"
	"tracker/internal/middleware/trace"
	"tracker/internal/rpc"
	appweb "tracker/web"
)

// MonthReader returns a month's entries grouped per day.
type MonthReader interface {
	Month(ctx context.Context, year, month int) ([]core.DayTotals, error)
}

// Options wires the server to its collaborators.
type Options struct {
	Addr string

	// Sender delivers batches from the web form.
	Sender form.BatchSender
	// RPCBackend serves POST /finance/submit. Nil disables the endpoint.
	RPCBackend form.BatchSender
	Entries    MonthReader
	Ready      func(ctx context.Context) error

	SessionTTL         time.Duration
	MaxSessions        int
	RateLimitPerMinute int
	TrustedProxies     []string

	Logger *log.Logger
}

type Server struct {
	http.Server

	templates *template.Template
	sender    form.BatchSender
	entries   MonthReader
	ready     func(ctx context.Context) error
	logger    *log.Logger
	events    *log.StructuredLogger

	sessions    *sessionStore
	cacheMgr    *cache.Manager
	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and builds the route table and
// middleware chain.
func NewServer(opts Options) (*Server, error) {
	if opts.Sender == nil {
		return nil, errors.New("http server requires a batch sender")
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.Config{Component: log.ComponentHTTP})
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 12 * time.Hour
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 1000
	}

	t, err := template.New("").Funcs(template.FuncMap{
		"money": formatMoney,
	}).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}

	logger := opts.Logger.WithComponent(log.ComponentHTTP)
	s := &Server{
		templates: t,
		sender:    opts.Sender,
		entries:   opts.Entries,
		ready:     opts.Ready,
		logger:    logger,
		events:    log.NewStructuredLogger(logger),
		cacheMgr:  cache.NewManager(logger.Slog()),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
		detector: detector,
		tracer:   trace.NewMiddleware(detector.ExtractClientIP, opts.Logger.WithComponent(log.ComponentTrace)),
	}

	formLogger := opts.Logger.WithComponent(log.ComponentForm).Slog()
	s.sessions = newSessionStore(opts.MaxSessions, opts.SessionTTL, func() *form.Form {
		return form.New(s.sender, form.WithLogger(formLogger))
	})
	s.cacheMgr.Register(s.sessions.forms)
	s.cacheMgr.StartCleanup(10 * time.Minute)

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", handleRoot)
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /my/finance-tracker", s.handleIndex)
	mux.HandleFunc("POST /ui/rows", s.handleAddRow)
	mux.HandleFunc("POST /ui/rows/{ref}/delete", s.handleRemoveRow)
	mux.HandleFunc("POST /ui/submit", s.handleSubmit)
	mux.HandleFunc("GET /entries", s.handleEntries)

	if opts.RPCBackend != nil {
		mux.Handle("POST /finance/submit", withRPCUser(rpc.NewHandler(opts.RPCBackend, opts.Logger.WithComponent(log.ComponentRPC).Slog())))
	}

	var h http.Handler = mux
	h = s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited, http.MethodPost)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	h = log.RequestIDMiddleware(trace.RequestID)(h)
	h = s.tracer.Middleware(h)
	h = log.Middleware(logger)(h)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s, nil
}

// Shutdown stops background cleanup and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheMgr.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	TooManyRequestsError("Too many requests. Please try again later.").Write(w)
}
