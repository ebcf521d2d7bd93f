// Package dashboard serves the merged evaluation of a report as HTML and JSON.
package dashboard

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	apperrors "github.com/lueurxax/cluster-eval-board/internal/core/errors"
	"github.com/lueurxax/cluster-eval-board/internal/core/evalsource"
	"github.com/lueurxax/cluster-eval-board/internal/process/evaluation"
	db "github.com/lueurxax/cluster-eval-board/internal/storage"
)

// Rate limiting constants.
const (
	defaultRateLimitRPS = 5
	rateLimitBurst      = 20
	maxTrackedClients   = 10000
)

// Route names used as metric labels.
const (
	routeReport     = "report"
	routeEvaluation = "evaluation"
	routeSnapshots  = "snapshots"
	routeRaw        = "raw"
	routeEvaluate   = "evaluate"
)

// Log field constants.
const (
	logFieldSlug  = "slug"
	logFieldRoute = "route"
)

// HTTP header constants.
const (
	headerContentType = "Content-Type"
	headerAPIKey      = "x-api-key"
	contentTypeHTML   = "text/html; charset=utf-8"
	contentTypeJSON   = "application/json; charset=utf-8"
)

// Service is the evaluation backend of the dashboard.
type Service interface {
	Evaluate(ctx context.Context, slug string, level int) (*evaluation.Evaluation, error)
	Documents(ctx context.Context, slug string, level int) ([]evalsource.Document, error)
	Trigger(ctx context.Context, slug string, level int) (*evaluation.RunSummary, error)
	Snapshots(ctx context.Context, slug string, level, limit int) ([]db.Snapshot, error)
}

// Config configures the dashboard.
type Config struct {
	// APIKey, when set, must be sent in the x-api-key header.
	APIKey       string
	DefaultLevel int
	Language     string
	RPS          float64
}

// Handler serves dashboard routes.
type Handler struct {
	cfg      Config
	svc      Service
	renderer *Renderer
	logger   *zerolog.Logger

	// IP-based rate limiting
	limiters   map[string]*rate.Limiter
	limitersMu sync.Mutex
}

// NewHandler creates a new dashboard handler.
func NewHandler(cfg Config, svc Service, logger *zerolog.Logger) (*Handler, error) {
	renderer, err := NewRenderer(cfg.Language)
	if err != nil {
		return nil, err
	}

	if cfg.DefaultLevel < 1 {
		cfg.DefaultLevel = 1
	}

	if cfg.RPS <= 0 {
		cfg.RPS = defaultRateLimitRPS
	}

	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Handler{
		cfg:      cfg,
		svc:      svc,
		renderer: renderer,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}, nil
}

// Routes returns the dashboard routing table.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /reports/{slug}", h.wrap(routeReport, true, h.serveReport))
	mux.Handle("GET /api/reports/{slug}/evaluation", h.wrap(routeEvaluation, false, h.serveEvaluation))
	mux.Handle("GET /api/reports/{slug}/snapshots", h.wrap(routeSnapshots, false, h.serveSnapshots))
	mux.Handle("GET /api/reports/{slug}/raw", h.wrap(routeRaw, false, h.serveRaw))
	mux.Handle("POST /api/reports/{slug}/evaluate", h.wrap(routeEvaluate, false, h.serveEvaluate))

	return mux
}

type routeFunc func(w http.ResponseWriter, r *http.Request) int

// wrap applies security headers, rate limiting, API key checks and metrics.
func (h *Handler) wrap(route string, html bool, fn routeFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		w.Header().Set("X-Robots-Tag", "noindex, nofollow")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "private, no-store")

		status := h.guard(w, r, html)
		if status == 0 {
			status = fn(w, r)
		}

		LatencyHistogram.WithLabelValues(route).Observe(time.Since(start).Seconds())
		HitsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}

// guard returns a non-zero status when the request was rejected.
func (h *Handler) guard(w http.ResponseWriter, r *http.Request, html bool) int {
	if !h.allowRequest(getClientIP(r)) {
		DeniedTotal.WithLabelValues(ReasonRateLimited).Inc()

		return h.fail(w, html, http.StatusTooManyRequests, "Too Many Requests", "Please wait before trying again.")
	}

	if h.cfg.APIKey != "" && !validKey(r.Header.Get(headerAPIKey), h.cfg.APIKey) {
		DeniedTotal.WithLabelValues(ReasonBadKey).Inc()

		return h.fail(w, html, http.StatusUnauthorized, "Unauthorized", "A valid API key is required.")
	}

	return 0
}

func validKey(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func (h *Handler) serveReport(w http.ResponseWriter, r *http.Request) int {
	slug, level, ok := h.params(w, r, true)
	if !ok {
		return http.StatusBadRequest
	}

	eval, err := h.svc.Evaluate(r.Context(), slug, level)
	if err != nil {
		return h.handleError(w, r, true, routeReport, err)
	}

	w.Header().Set(headerContentType, contentTypeHTML)

	if err := h.renderer.RenderReport(w, eval); err != nil {
		h.logger.Error().Err(err).Str(logFieldSlug, slug).Msg("Failed to render report view")
		ErrorsTotal.WithLabelValues(ErrorTypeRender).Inc()

		return http.StatusInternalServerError
	}

	return http.StatusOK
}

func (h *Handler) serveEvaluation(w http.ResponseWriter, r *http.Request) int {
	slug, level, ok := h.params(w, r, false)
	if !ok {
		return http.StatusBadRequest
	}

	eval, err := h.svc.Evaluate(r.Context(), slug, level)
	if err != nil {
		return h.handleError(w, r, false, routeEvaluation, err)
	}

	return h.writeJSON(w, http.StatusOK, eval)
}

func (h *Handler) serveSnapshots(w http.ResponseWriter, r *http.Request) int {
	slug, level, ok := h.params(w, r, false)
	if !ok {
		return http.StatusBadRequest
	}

	limit := db.DefaultSnapshotLimit

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return h.fail(w, false, http.StatusBadRequest, "Bad Request", "limit must be a positive integer.")
		}

		limit = db.ClampSnapshotLimit(n)
	}

	snaps, err := h.svc.Snapshots(r.Context(), slug, level, limit)
	if err != nil {
		return h.handleError(w, r, false, routeSnapshots, err)
	}

	if snaps == nil {
		snaps = []db.Snapshot{}
	}

	return h.writeJSON(w, http.StatusOK, map[string]any{
		"slug":      slug,
		"level":     level,
		"snapshots": snaps,
	})
}

func (h *Handler) serveRaw(w http.ResponseWriter, r *http.Request) int {
	slug, level, ok := h.params(w, r, false)
	if !ok {
		return http.StatusBadRequest
	}

	docs, err := h.svc.Documents(r.Context(), slug, level)
	if err != nil {
		return h.handleError(w, r, false, routeRaw, err)
	}

	return h.writeJSON(w, http.StatusOK, map[string]any{
		"slug":      slug,
		"level":     level,
		"documents": docs,
	})
}

func (h *Handler) serveEvaluate(w http.ResponseWriter, r *http.Request) int {
	slug, level, ok := h.params(w, r, false)
	if !ok {
		return http.StatusBadRequest
	}

	runs, err := h.svc.Trigger(r.Context(), slug, level)
	if err != nil {
		if runs == nil || r.Context().Err() != nil {
			return h.handleError(w, r, false, routeEvaluate, err)
		}

		h.logger.Error().Err(err).Str(logFieldRoute, routeEvaluate).Str(logFieldSlug, slug).Msg("Some evaluation runs failed")
		ErrorsTotal.WithLabelValues(ErrorTypeUpstream).Inc()

		return h.writeJSON(w, http.StatusBadGateway, map[string]any{
			"error": "Some evaluation runs failed.",
			"runs":  runs,
		})
	}

	h.logger.Info().Str(logFieldSlug, slug).Int("level", level).Msg("Evaluation runs triggered from dashboard")

	return h.writeJSON(w, http.StatusAccepted, runs)
}

// params reads the slug path value and the level query parameter.
func (h *Handler) params(w http.ResponseWriter, r *http.Request, html bool) (string, int, bool) {
	slug := strings.TrimSpace(r.PathValue("slug"))
	if slug == "" {
		h.fail(w, html, http.StatusBadRequest, "Bad Request", "Missing report slug.")

		return "", 0, false
	}

	if err := evalsource.ValidateSlug(slug); err != nil {
		h.fail(w, html, http.StatusBadRequest, "Bad Request", "Invalid report slug.")

		return "", 0, false
	}

	level := h.cfg.DefaultLevel

	if raw := r.URL.Query().Get("level"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.fail(w, html, http.StatusBadRequest, "Bad Request", "level must be a positive integer.")

			return "", 0, false
		}

		level = n
	}

	return slug, level, true
}

// handleError maps service errors to HTTP responses.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, html bool, route string, err error) int {
	switch {
	case apperrors.Is(err, apperrors.ErrReportNotFound):
		return h.fail(w, html, http.StatusNotFound, "Not Found", "This report does not exist.")
	case apperrors.Is(err, apperrors.ErrInvalidInput), apperrors.Is(err, apperrors.ErrInvalidLevel):
		return h.fail(w, html, http.StatusBadRequest, "Bad Request", err.Error())
	case apperrors.Is(err, apperrors.ErrSnapshotsDisabled):
		return h.fail(w, html, http.StatusNotImplemented, "Not Available", "Snapshot history requires a database.")
	case r.Context().Err() != nil:
		return h.fail(w, html, http.StatusServiceUnavailable, "Unavailable", "The request was canceled.")
	}

	h.logger.Error().Err(err).Str(logFieldRoute, route).Str(logFieldSlug, r.PathValue("slug")).Msg("Dashboard request failed")
	ErrorsTotal.WithLabelValues(ErrorTypeUpstream).Inc()

	return h.fail(w, html, http.StatusBadGateway, "Upstream Error", "The evaluation service could not be reached.")
}

// fail writes an error page or JSON error body and returns code.
func (h *Handler) fail(w http.ResponseWriter, html bool, code int, title, message string) int {
	if !html {
		return h.writeJSON(w, code, map[string]string{"error": message})
	}

	w.Header().Set(headerContentType, contentTypeHTML)
	w.WriteHeader(code)

	if err := h.renderer.RenderError(w, &ErrorData{Code: code, Title: title, Message: message}); err != nil {
		h.logger.Error().Err(err).Msg("Failed to render error page")
		ErrorsTotal.WithLabelValues(ErrorTypeRender).Inc()
	}

	return code
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v any) int {
	body, err := json.Marshal(v)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
		ErrorsTotal.WithLabelValues(ErrorTypeEncode).Inc()

		w.WriteHeader(http.StatusInternalServerError)

		return http.StatusInternalServerError
	}

	w.Header().Set(headerContentType, contentTypeJSON)
	w.WriteHeader(code)
	_, _ = w.Write(body)

	return code
}

func (h *Handler) allowRequest(ip string) bool {
	h.limitersMu.Lock()

	limiter, ok := h.limiters[ip]
	if !ok {
		if len(h.limiters) >= maxTrackedClients {
			h.limiters = make(map[string]*rate.Limiter)
		}

		limiter = rate.NewLimiter(rate.Limit(h.cfg.RPS), rateLimitBurst)
		h.limiters[ip] = limiter
	}

	h.limitersMu.Unlock()

	return limiter.Allow()
}

func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (common with reverse proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// Fall back to RemoteAddr
	return r.RemoteAddr
}
