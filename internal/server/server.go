package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dshills/assessment-recommender/internal/recommend"
	"github.com/dshills/assessment-recommender/internal/render"
)

// maxRequestBody bounds POST bodies
const maxRequestBody = 64 << 10

// Recommender answers a query with parsed recommendations
type Recommender interface {
	Recommend(ctx context.Context, query string) (*recommend.Result, error)
}

// IndexProbe reports whether the knowledge base can serve queries
type IndexProbe func(ctx context.Context) bool

// Options configure the HTTP server
type Options struct {
	Addr            string
	RateLimit       int // Requests per minute per IP, 0 disables
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	Backend         string
	IndexLoaded     IndexProbe
	Logger          *zap.Logger
}

// Server serves the recommendation API and UI
type Server struct {
	recommender Recommender
	opts        Options
	logger      *zap.Logger
	handler     http.Handler
}

// New creates a server around recommender
func New(recommender Recommender, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 120 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	if opts.IndexLoaded == nil {
		opts.IndexLoaded = func(context.Context) bool { return false }
	}

	s := &Server{
		recommender: recommender,
		opts:        opts,
		logger:      opts.Logger,
	}
	s.handler = s.routes()
	return s
}

// Handler returns the routed handler with all middleware applied
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(accessLog(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(corsHandler(s.opts.CORSOrigins))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(s.opts.RateLimit))
		r.Use(chimiddleware.Timeout(s.opts.RequestTimeout))

		r.Post("/recommend", s.handleRecommend)
		r.Get("/", s.handlePage)
		r.Post("/", s.handlePage)
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Generation dominates; leave headroom over the request timeout
		WriteTimeout: s.opts.RequestTimeout + 10*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.opts.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type recommendRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "request body must be a JSON object with a query field", err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		respondError(w, http.StatusBadRequest, "empty_query", "query cannot be empty", nil)
		return
	}

	res, err := s.recommender.Recommend(r.Context(), req.Query)
	if err != nil {
		s.logger.Warn("recommendation failed",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err))
		status, code := errorStatus(err)
		respondError(w, status, code, recommend.UserMessage(err), err)
		return
	}

	s.observe(res)
	respondJSON(w, http.StatusOK, res.Recommendations)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	data := render.PageData{}

	if r.Method == http.MethodPost {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		if err := r.ParseForm(); err != nil {
			data.Error = "Invalid form submission"
			s.writePage(w, http.StatusBadRequest, data)
			return
		}
		data.Query = r.PostFormValue("query")

		res, err := s.recommender.Recommend(r.Context(), data.Query)
		switch {
		case errors.Is(err, recommend.ErrEmptyQuery):
			data.Warning = recommend.UserMessage(err)
		case err != nil:
			s.logger.Warn("recommendation failed",
				zap.String("request_id", RequestIDFromContext(r.Context())),
				zap.Error(err))
			data.Error = recommend.UserMessage(err)
		default:
			s.observe(res)
			data.Raw = res.Raw
			data.Tabs = render.Tabs(res.Sections)
		}
	}

	s.writePage(w, http.StatusOK, data)
}

func (s *Server) writePage(w http.ResponseWriter, status int, data render.PageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := render.Page(w, data); err != nil {
		s.logger.Error("failed to render page", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"index_loaded": s.opts.IndexLoaded(r.Context()),
		"backend":      s.opts.Backend,
	})
}

func (s *Server) observe(res *recommend.Result) {
	n := res.Recommendations.Len()
	RecommendationsReturned.Observe(float64(n))
	if n == 0 {
		ParseEmptyTotal.Inc()
	}
	if res.ScrapeFailures > 0 {
		ScrapeFailuresTotal.Add(float64(res.ScrapeFailures))
	}
}

// errorStatus maps the orchestrator's error taxonomy onto HTTP
func errorStatus(err error) (int, string) {
	var analysisErr *recommend.AnalysisError
	switch {
	case errors.Is(err, recommend.ErrEmptyQuery):
		return http.StatusBadRequest, "empty_query"
	case errors.Is(err, recommend.ErrKnowledgeBaseNotLoaded):
		return http.StatusServiceUnavailable, "knowledge_base_not_loaded"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.As(err, &analysisErr):
		return http.StatusBadGateway, "analysis_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
