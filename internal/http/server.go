package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"orcamento/internal/core"
	"orcamento/internal/entries"
	"orcamento/internal/log"
	"orcamento/internal/middleware/ratelimit"
	"orcamento/internal/middleware/security"
	appweb "orcamento/web"
)

// EntryStore is the part of the entry store the handlers use.
type EntryStore interface {
	MonthView(month core.MonthKey) core.MonthView
	Add(ctx context.Context, d entries.Draft) (core.BudgetEntry, error)
	SetAmount(ctx context.Context, id, raw string) (core.BudgetEntry, error)
	TogglePaid(ctx context.Context, id string) (core.BudgetEntry, error)
	Remove(ctx context.Context, id string) (core.BudgetEntry, error)
}

// Advisor produces advice text; it never fails, failures come back as
// user-facing fallback text.
type Advisor interface {
	Advise(ctx context.Context, entries []core.BudgetEntry, summary core.BudgetSummary) string
}

// Options configures NewServer.
type Options struct {
	Addr    string
	Store   EntryStore
	Advisor Advisor
	Logger  *log.Logger
	// Ready backs /readyz. Nil means always ready.
	Ready func(ctx context.Context) error
	// AdviceRateLimit limits POST /advice per client.
	AdviceRateLimit ratelimit.Config
	// Now defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	http.Server
	store     EntryStore
	advisor   Advisor
	logger    *log.Logger
	templates *template.Template
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	ready     func(ctx context.Context) error
	now       func() time.Time

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and wires routes and middleware,
// returning a ready-to-run server.
func NewServer(opts Options) (*Server, error) {
	if opts.Store == nil || opts.Advisor == nil {
		return nil, errors.New("http server needs a store and an advisor")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		store:     opts.Store,
		advisor:   opts.Advisor,
		logger:    logger,
		templates: templates,
		limiter:   ratelimit.NewLimiter(opts.AdviceRateLimit),
		detector:  security.NewDetector(),
		ready:     opts.Ready,
		now:       opts.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}

	mux := http.NewServeMux()

	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(
		http.StripPrefix("/static/", http.FileServer(http.FS(static)))))

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/months/{month}", s.handleMonthAPI)

	mux.HandleFunc("POST /entries", s.handleCreateEntry)
	mux.HandleFunc("POST /entries/{id}/amount", s.handleSetAmount)
	mux.HandleFunc("POST /entries/{id}/paid", s.handleTogglePaid)
	mux.HandleFunc("DELETE /entries/{id}", s.handleDeleteEntry)
	// Form fallback for browsers without htmx.
	mux.HandleFunc("POST /entries/{id}/delete", s.handleDeleteEntry)

	adviceLimit := s.limiter.Middleware(s.detector.ClientIP, s.handleAdviceLimited)
	mux.Handle("POST /advice", adviceLimit(http.HandlerFunc(s.handleAdvice)))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var handler http.Handler = mux
	handler = headers.Middleware(handler)
	handler = s.detector.Middleware(handler)
	handler = log.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Advice requests wait on the generation endpoint.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
	return s, nil
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(r.Context()).Warn("Readiness check failed", log.FieldError, err.Error())
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
