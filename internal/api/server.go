// Package api exposes the HTTP interface for the review crawler service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tautaras/review-crawler/internal/classifier"
	"github.com/tautaras/review-crawler/internal/dedup"
	"github.com/tautaras/review-crawler/internal/dispatcher"
	"github.com/tautaras/review-crawler/internal/ingest"
	"github.com/tautaras/review-crawler/internal/reviews"
)

// Config controls HTTP-level behavior.
type Config struct {
	// CallbackURL is the ingest endpoint handed to workers with each task.
	CallbackURL string
	// RequestTimeout bounds handler execution.
	RequestTimeout time.Duration
	// DefaultPageSize and MaxPageSize bound search pagination.
	DefaultPageSize int
	MaxPageSize     int
}

// Server wires HTTP handlers to the dispatcher, dedup cache, ingest service,
// and document store.
type Server struct {
	router     chi.Router
	classifier *classifier.Classifier
	cache      *dedup.Cache
	dispatcher *dispatcher.Dispatcher
	ingest     *ingest.Service
	docs       reviews.DocumentStore
	cfg        Config
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	cls *classifier.Classifier,
	cache *dedup.Cache,
	disp *dispatcher.Dispatcher,
	ing *ingest.Service,
	docs reviews.DocumentStore,
	cfg Config,
	logger *zap.Logger,
) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 10
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 100
	}
	s := &Server{
		classifier: cls,
		cache:      cache,
		dispatcher: disp,
		ingest:     ing,
		docs:       docs,
		cfg:        cfg,
		logger:     logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(cfg.RequestTimeout))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/reviews", func(r chi.Router) {
		r.Post("/extract", s.submitExtraction)
		r.Get("/status/{job_id}", s.jobStatus)
		r.Post("/ingest", s.ingestBatch)
		r.Get("/", s.searchReviews)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// submitExtraction validates the URL, deduplicates against in-flight jobs, and
// dispatches a new extraction job when none is active.
func (s *Server) submitExtraction(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	platform, err := s.classifier.Classify(r.Context(), req.URL)
	if err != nil {
		s.writeError(w, classifyStatusCode(err), err.Error())
		return
	}

	fingerprint, err := reviews.Fingerprint(req.URL)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "url is not parseable")
		return
	}

	// Two-step in-flight check: a cache hit alone is not enough, the cached
	// job must still be live. Stale entries (finished, failed, expired
	// backend rows) fall through to a fresh submission.
	if jobID, ok := s.lookupInflight(r.Context(), fingerprint); ok {
		reviews.TotalDedupHits.Inc()
		s.writeJSON(w, http.StatusOK, extractResponse{
			Status:  "success",
			Message: "Job is already present.",
			JobID:   jobID,
		})
		return
	}

	jobID, err := s.dispatcher.Submit(r.Context(), dispatcher.JobSpec{
		URL:         req.URL,
		Platform:    platform,
		Fingerprint: fingerprint,
		CallbackURL: s.cfg.CallbackURL,
	})
	if err != nil {
		s.logger.Error("job submission failed", zap.String("url", req.URL), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to submit job")
		return
	}

	if err := s.cache.Record(r.Context(), fingerprint, jobID); err != nil {
		// The job is already dispatched; a failed cache write only weakens
		// dedup for this fingerprint.
		s.logger.Warn("dedup record failed", zap.String("job_id", jobID), zap.Error(err))
	}

	s.writeJSON(w, http.StatusOK, extractResponse{
		Status:  "success",
		Message: "Job has been submitted successfully.",
		JobID:   jobID,
	})
}

func (s *Server) lookupInflight(ctx context.Context, fingerprint string) (string, bool) {
	jobID, ok, err := s.cache.LookupInflight(ctx, fingerprint)
	if err != nil {
		s.logger.Warn("dedup lookup failed", zap.Error(err))
		return "", false
	}
	if !ok {
		return "", false
	}
	status := s.dispatcher.Status(ctx, jobID)
	if !status.Status.Active() {
		return "", false
	}
	return jobID, true
}

// jobStatus reports the current state of a job. Lookups never fail at the
// HTTP level; backend problems surface as UNKNOWN with the error in-band.
func (s *Server) jobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	status := s.dispatcher.Status(r.Context(), jobID)
	s.writeJSON(w, http.StatusOK, statusResponse{
		JobID:    jobID,
		Status:   status.Status,
		Progress: status.Progress,
		Error:    status.ErrText,
	})
}

// ingestBatch accepts one extracted batch from a worker callback.
func (s *Server) ingestBatch(w http.ResponseWriter, r *http.Request) {
	var batch []reviews.RawReview
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		// The caller is our own worker; a malformed batch is a server-side
		// defect, not a client error.
		s.logger.Error("malformed ingest batch", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "malformed batch payload")
		return
	}

	report := s.ingest.Ingest(r.Context(), batch)
	s.writeJSON(w, http.StatusOK, ingestResponse{
		Status:  "success",
		Message: "Data received successfully.",
	})
	s.logger.Info("batch ingested",
		zap.Int("accepted", report.Accepted),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
}

// searchReviews answers the query path with validated filters and stable
// pagination.
func (s *Server) searchReviews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters := reviews.SearchFilters{
		ProductName: q.Get("product_name"),
		SiteName:    q.Get("site_name"),
		Reviewer:    q.Get("reviewer"),
		TokenID:     q.Get("token_id"),
	}
	if raw := q.Get("rating"); raw != "" {
		rating, err := parseFloat(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid rating value")
			return
		}
		filters.Rating = &rating
	}
	if err := filters.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page := parseIntOrDefault(q.Get("page"), 1)
	if page < 1 {
		s.writeError(w, http.StatusBadRequest, "page must be >= 1")
		return
	}
	size := parseIntOrDefault(q.Get("size"), s.cfg.DefaultPageSize)
	if size < 1 {
		s.writeError(w, http.StatusBadRequest, "size must be >= 1")
		return
	}
	if size > s.cfg.MaxPageSize {
		size = s.cfg.MaxPageSize
	}

	result, err := s.docs.Search(r.Context(), filters, (page-1)*size, size)
	if err != nil {
		s.logger.Error("review search failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	totalPages := (result.Total + size - 1) / size
	records := result.Reviews
	if records == nil {
		records = []reviews.ReviewRecord{}
	}
	s.writeJSON(w, http.StatusOK, searchResponse{
		Status:       "success",
		Page:         page,
		PageSize:     size,
		TotalResults: result.Total,
		TotalPages:   totalPages,
		Reviews:      records,
	})
}

// classifyStatusCode maps classification failures to HTTP statuses. All of
// them are caller errors.
func classifyStatusCode(err error) int {
	switch {
	case errors.Is(err, reviews.ErrInvalidURL),
		errors.Is(err, reviews.ErrUnsafeScheme),
		errors.Is(err, reviews.ErrUnsafeURL),
		errors.Is(err, reviews.ErrUnsupportedPlatform):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"status": "error", "message": msg})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("panic", rec))
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"status":"error","message":"internal server error"}`))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
