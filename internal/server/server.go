// Package server exposes the layout pipeline over HTTP.
//
// # Endpoints
//
//	GET  /healthz       liveness and build information
//	POST /v1/layout     compute a layout
//	POST /v1/validate   check a workflow's layering without positioning
//
// Both POST endpoints take the same body:
//
//	{
//	  "nodes": [{"id": "submit", "type": "start", "transitions": [{"on": "done", "to": "review"}]}],
//	  "options": {"optimization_profile": "quality"},
//	  "refresh": false
//	}
//
// Transitions accept the legacy map form as well. Responses are JSON; add
// ?pretty=true for indented output. Failures use one envelope:
//
//	{"error": {"code": "INVALID_CONFIG", "message": "...", "stage": ""}, "request_id": "..."}
//
// Every response carries an X-Request-ID header, taken from the request
// when the client sent a valid UUID and generated otherwise.
package server

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/flowlayout/pkg/pipeline"
)

const (
	// DefaultMaxBodyBytes bounds request bodies.
	DefaultMaxBodyBytes = 4 << 20
	// DefaultRequestTimeout bounds a single layout run.
	DefaultRequestTimeout = 30 * time.Second

	shutdownTimeout = 10 * time.Second
)

// Server serves the HTTP API. Create it with [New].
type Server struct {
	runner  *pipeline.Runner
	logger  *log.Logger
	router  chi.Router
	started time.Time

	// MaxBodyBytes and RequestTimeout may be changed before the first
	// request.
	MaxBodyBytes   int64
	RequestTimeout time.Duration
	// AllowedOrigin is sent as Access-Control-Allow-Origin.
	AllowedOrigin string
}

// New creates a server around runner. A nil logger discards output.
func New(runner *pipeline.Runner, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	s := &Server{
		runner:         runner,
		logger:         logger,
		started:        time.Now(),
		MaxBodyBytes:   DefaultMaxBodyBytes,
		RequestTimeout: DefaultRequestTimeout,
		AllowedOrigin:  "*",
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/layout", s.handleLayout)
		r.Post("/validate", s.handleValidate)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "no route for "+r.URL.Path, "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", r.Method+" not allowed on "+r.URL.Path, "")
	})
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
