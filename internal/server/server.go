// Package server exposes the enrichment pipeline, the classifier and the
// taxonomy store over HTTP.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/diagramir/pkg/buildinfo"
	"github.com/matzehuels/diagramir/pkg/classify"
	"github.com/matzehuels/diagramir/pkg/enrich"
	"github.com/matzehuels/diagramir/pkg/errors"
	"github.com/matzehuels/diagramir/pkg/ir"
	"github.com/matzehuels/diagramir/pkg/taxonomy"
)

const (
	// DefaultMaxBody bounds request bodies.
	DefaultMaxBody = 8 << 20

	headerRequestID   = "X-Request-ID"
	headerEnriched    = "X-Enriched"
	headerFailedStage = "X-Failed-Stage"
	headerCache       = "X-Enrich-Cache"

	shutdownTimeout = 10 * time.Second
)

// Enricher runs the enrichment pipeline. [*enrich.Pipeline] and
// [*enrich.Memo] satisfy it.
type Enricher interface {
	Run(ctx context.Context, g *ir.Graph) *enrich.Result
}

// Taxonomy is the store surface the API needs. [*taxonomy.Store] satisfies it.
type Taxonomy interface {
	Load(ctx context.Context, force bool) *taxonomy.Index
	Current() *taxonomy.Index
}

// Classifier resolves single labels. [*classify.Classifier] satisfies it.
type Classifier interface {
	Classify(ctx context.Context, label string) classify.Result
}

// Server holds the handlers and their dependencies.
type Server struct {
	enricher   Enricher
	classifier Classifier
	store      Taxonomy
	builder    *ir.Builder
	metrics    http.Handler
	logger     *log.Logger
	maxBody    int64
}

// Option configures a [Server].
type Option func(*Server)

// WithLogger sets the request logger. Nil discards.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithBuilder overrides the IR builder used for ?diagram=1 requests.
func WithBuilder(b *ir.Builder) Option {
	return func(s *Server) { s.builder = b }
}

// WithMaxBody overrides [DefaultMaxBody].
func WithMaxBody(n int64) Option {
	return func(s *Server) { s.maxBody = n }
}

// New creates a server.
func New(e Enricher, c Classifier, store Taxonomy, opts ...Option) *Server {
	s := &Server{
		enricher:   e,
		classifier: c,
		store:      store,
		builder:    ir.NewBuilder(),
		maxBody:    DefaultMaxBody,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	return s
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/enrich", s.handleEnrich)
		r.Get("/classify", s.handleClassify)
		r.Post("/taxonomy/reload", s.handleReload)
		r.Get("/taxonomy/stats", s.handleStats)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	}
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.maxBody)
	defer body.Close()

	var (
		g   *ir.Graph
		err error
	)
	if isTrue(r.URL.Query().Get("diagram")) {
		var d *ir.Diagram
		if d, err = ir.ReadDiagram(body); err == nil {
			g, err = s.builder.Build(d, r.URL.Query().Get("dsl"))
		}
	} else {
		g, err = ir.ReadGraph(body)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res := s.enricher.Run(r.Context(), g)
	w.Header().Set(headerEnriched, strconv.FormatBool(res.Enriched))
	if res.Cached {
		w.Header().Set(headerCache, "hit")
	}
	if !res.Enriched {
		w.Header().Set(headerFailedStage, res.FailedStage)
		s.logger.Warn("serving unenriched graph",
			"request_id", requestIDFrom(r.Context()),
			"stage", res.FailedStage,
			"error", res.Err)
	}
	writeJSON(w, http.StatusOK, res.Graph)
}

type classifyResponse struct {
	Label string `json:"label"`
	classify.Result
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	label := strings.TrimSpace(r.URL.Query().Get("label"))
	if label == "" {
		s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "label is required"))
		return
	}
	if err := errors.ValidateLabel(label); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, classifyResponse{Label: label, Result: s.classifier.Classify(r.Context(), label)})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	ix := s.store.Load(r.Context(), true)
	s.logger.Info("taxonomy reloaded", "request_id", requestIDFrom(r.Context()), "rows", ix.Len())
	writeJSON(w, http.StatusOK, ix.Stats())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Current().Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ix := s.store.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"taxonomy_rows": ix.Len(),
		"checksum":      ix.Checksum(),
		"build":         buildinfo.Get(),
	})
}

// =============================================================================
// Responses
// =============================================================================

type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	code := string(errors.GetCode(err))
	if code == "" {
		code = string(errors.ErrCodeInternal)
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "request_id", requestIDFrom(r.Context()), "error", err)
	}
	writeJSON(w, status, errorResponse{
		Error:     code,
		Message:   errors.UserMessage(err),
		RequestID: requestIDFrom(r.Context()),
	})
}

func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case asMaxBytes(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrCodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrCodeTaxonomyUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func isTrue(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
