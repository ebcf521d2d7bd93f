// Package evalsource fetches a cluster report and its evaluation documents
// from the upstream evaluation API and decodes them into domain values.
package evalsource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/lueurxax/cluster-eval-board/internal/core/domain"
	apperrors "github.com/lueurxax/cluster-eval-board/internal/core/errors"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultRPS       = 5
	limiterBurst     = 6
	maxBodySizeMB    = 64
	maxBodySizeBytes = maxBodySizeMB * 1024 * 1024
	maxErrorBodyLen  = 512

	headerAPIKey      = "x-api-key"
	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json"

	logFieldDocument = "document"
	logFieldSlug     = "slug"
	logFieldPath     = "path"
)

// Upstream names of the cohesion spaces.
const (
	sourceUMAP      = "umap"
	sourceEmbedding = "embedding"
)

// Document names.
const (
	DocReport          = "report"
	DocQualitative     = "qualitative"
	DocClusterReduced  = "cluster_reduced"
	DocClusterRaw      = "cluster_raw"
	DocPointReduced    = "point_reduced"
	DocPointRaw        = "point_raw"
	runKindConsistency = "consistency"
	runKindSilhouette  = "silhouette"
)

// Cache stores raw upstream documents.
type Cache interface {
	// GetDocument returns a body stored within maxAge, or an error wrapping
	// ErrCacheNotFound or ErrCacheExpired.
	GetDocument(ctx context.Context, key string, maxAge time.Duration) ([]byte, error)
	PutDocument(ctx context.Context, key string, body []byte) error
	DeleteDocument(ctx context.Context, key string) error
}

// Config configures the upstream client.
type Config struct {
	BaseURL   string
	AdminKey  string
	PublicKey string
	Timeout   time.Duration
	RPS       float64
	CacheTTL  time.Duration
}

// Client talks to the upstream evaluation API.
type Client struct {
	baseURL   string
	adminKey  string
	publicKey string
	client    *http.Client
	limiter   *rate.Limiter
	cache     Cache
	cacheTTL  time.Duration
	logger    *zerolog.Logger
}

// New creates a client. cache may be nil.
func New(cfg Config, cache Cache, logger *zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	rps := cfg.RPS
	if rps <= 0 {
		rps = defaultRPS
	}

	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		adminKey:  cfg.AdminKey,
		publicKey: cfg.PublicKey,
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Limit(rps), limiterBurst),
		cache:     cache,
		cacheTTL:  cfg.CacheTTL,
		logger:    logger,
	}
}

// SourceName returns the upstream path segment for a cohesion space.
func SourceName(space domain.Space) (string, error) {
	switch space {
	case domain.SpaceReduced:
		return sourceUMAP, nil
	case domain.SpaceRaw:
		return sourceEmbedding, nil
	default:
		return "", fmt.Errorf("%w: %q", apperrors.ErrUnknownSpace, space)
	}
}

// Document is one upstream document as received.
type Document struct {
	Name    string          `json:"name"`
	Path    string          `json:"path"`
	Missing bool            `json:"missing"`
	Body    json.RawMessage `json:"body,omitempty"`
}

// Bundle is a report together with every evaluation source for one level.
type Bundle struct {
	Report    *domain.Report
	Sources   domain.Sources
	Documents []Document
}

// ValidateSlug rejects slugs that could address a different upstream path
// once placed in a URL.
func ValidateSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("%w: empty slug", apperrors.ErrInvalidInput)
	}

	if strings.ContainsAny(slug, `/\?#%`) || strings.Contains(slug, "..") || strings.ContainsFunc(slug, unicode.IsControl) {
		return fmt.Errorf("%w: slug %q contains reserved characters", apperrors.ErrInvalidInput, slug)
	}

	return nil
}

type documentRef struct {
	name     string
	path     string
	admin    bool
	optional bool
}

func reportPath(slug string) string {
	return "/reports/" + url.PathEscape(slug)
}

func qualitativePath(slug string) string {
	return "/admin/evaluation/" + url.PathEscape(slug)
}

func cohesionPath(slug, source string, level int, granularity string) string {
	return fmt.Sprintf("/admin/evaluation/%s/silhouette/%s/level%d/%s", url.PathEscape(slug), source, level, granularity)
}

func documentRefs(slug string, level int) []documentRef {
	return []documentRef{
		{name: DocReport, path: reportPath(slug)},
		{name: DocQualitative, path: qualitativePath(slug), admin: true, optional: true},
		{name: DocClusterReduced, path: cohesionPath(slug, sourceUMAP, level, "clusters"), admin: true, optional: true},
		{name: DocClusterRaw, path: cohesionPath(slug, sourceEmbedding, level, "clusters"), admin: true, optional: true},
		{name: DocPointReduced, path: cohesionPath(slug, sourceUMAP, level, "points"), admin: true, optional: true},
		{name: DocPointRaw, path: cohesionPath(slug, sourceEmbedding, level, "points"), admin: true, optional: true},
	}
}

// FetchAll fetches the report and the five evaluation documents of level
// concurrently. Evaluation documents the upstream has not produced yet are
// treated as empty sources. A missing report is ErrReportNotFound.
func (c *Client) FetchAll(ctx context.Context, slug string, level int) (*Bundle, error) {
	if err := ValidateSlug(slug); err != nil {
		return nil, fmt.Errorf("fetch all: %w", err)
	}

	if level < 1 {
		return nil, fmt.Errorf("fetch all: %w", apperrors.ErrInvalidLevel)
	}

	refs := documentRefs(slug, level)
	docs := make([]Document, len(refs))

	g, gctx := errgroup.WithContext(ctx)

	for i, ref := range refs {
		g.Go(func() error {
			body, err := c.getDocument(gctx, ref)

			switch {
			case err == nil:
				docs[i] = Document{Name: ref.name, Path: ref.path, Body: body}
			case ref.optional && apperrors.Is(err, apperrors.ErrDocumentNotFound):
				c.logger.Warn().Str(logFieldSlug, slug).Str(logFieldDocument, ref.name).Msg("evaluation document not available")

				docs[i] = Document{Name: ref.name, Path: ref.path, Missing: true}
			case apperrors.Is(err, apperrors.ErrDocumentNotFound):
				return fmt.Errorf("fetch %s: %w", ref.name, apperrors.ErrReportNotFound)
			default:
				return fmt.Errorf("fetch %s: %w", ref.name, err)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // already wrapped per document
	}

	return decodeBundle(docs)
}

// decodeBundle decodes documents into named slots, so the result does not
// depend on fetch completion order.
func decodeBundle(docs []Document) (*Bundle, error) {
	b := &Bundle{
		Documents: docs,
		Sources: domain.Sources{
			Qualitative:     map[string]domain.QualitativeEvaluation{},
			ClusterCohesion: map[domain.Space]domain.CohesionMap{},
			PointCohesion:   map[domain.Space]domain.CohesionMap{},
		},
	}

	for _, doc := range docs {
		if doc.Missing {
			continue
		}

		if err := b.decodeDocument(doc); err != nil {
			return nil, err
		}
	}

	if b.Report == nil {
		return nil, fmt.Errorf("decode bundle: %w", apperrors.ErrReportNotFound)
	}

	return b, nil
}

func (b *Bundle) decodeDocument(doc Document) error {
	var err error

	switch doc.Name {
	case DocReport:
		b.Report, err = DecodeReport(doc.Body)
	case DocQualitative:
		b.Sources.Qualitative, err = DecodeQualitative(doc.Body)
	case DocClusterReduced:
		b.Sources.ClusterCohesion[domain.SpaceReduced], err = DecodeCohesion(doc.Body)
	case DocClusterRaw:
		b.Sources.ClusterCohesion[domain.SpaceRaw], err = DecodeCohesion(doc.Body)
	case DocPointReduced:
		b.Sources.PointCohesion[domain.SpaceReduced], err = DecodeCohesion(doc.Body)
	case DocPointRaw:
		b.Sources.PointCohesion[domain.SpaceRaw], err = DecodeCohesion(doc.Body)
	}

	if err != nil {
		return fmt.Errorf("%s: %w", doc.Name, err)
	}

	return nil
}

func (c *Client) getDocument(ctx context.Context, ref documentRef) ([]byte, error) {
	if body, ok := c.cached(ctx, ref); ok {
		FetchTotal.WithLabelValues(ref.name, ResultCacheHit).Inc()

		return body, nil
	}

	start := time.Now()
	body, err := c.do(ctx, http.MethodGet, ref.path, ref.admin, nil)

	FetchDuration.WithLabelValues(ref.name).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		FetchTotal.WithLabelValues(ref.name, ResultOK).Inc()
	case apperrors.Is(err, apperrors.ErrDocumentNotFound):
		FetchTotal.WithLabelValues(ref.name, ResultMissing).Inc()

		return nil, err
	default:
		FetchTotal.WithLabelValues(ref.name, ResultError).Inc()

		return nil, err
	}

	if c.cache != nil && c.cacheTTL > 0 {
		if perr := c.cache.PutDocument(ctx, ref.path, body); perr != nil {
			c.logger.Warn().Err(perr).Str(logFieldPath, ref.path).Msg("failed to cache upstream document")
		}
	}

	return body, nil
}

func (c *Client) cached(ctx context.Context, ref documentRef) ([]byte, bool) {
	if c.cache == nil || c.cacheTTL <= 0 {
		return nil, false
	}

	body, err := c.cache.GetDocument(ctx, ref.path, c.cacheTTL)
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrCacheNotFound) && !apperrors.Is(err, apperrors.ErrCacheExpired) {
			c.logger.Debug().Err(err).Str(logFieldPath, ref.path).Msg("cache lookup failed")
		}

		return nil, false
	}

	return body, true
}

// ConsistencyRequest starts an LLM consistency evaluation upstream.
type ConsistencyRequest struct {
	Dataset      string  `json:"dataset"`
	Level        int     `json:"level"`
	SamplingRate float64 `json:"sampling_rate"`
	Model        string  `json:"model"`
}

// RunResult is the upstream acknowledgement of an evaluation run.
type RunResult struct {
	Status    string          `json:"status"`
	Evaluated json.RawMessage `json:"evaluated"`
	Dataset   string          `json:"dataset,omitempty"`
}

// RunConsistency asks the upstream to judge every cluster of a level with an LLM.
// On success the cached qualitative document of the dataset is dropped.
func (c *Client) RunConsistency(ctx context.Context, req ConsistencyRequest) (*RunResult, error) {
	if err := ValidateSlug(req.Dataset); err != nil {
		return nil, fmt.Errorf("run %s: %w", runKindConsistency, err)
	}

	res, err := c.run(ctx, runKindConsistency, "/admin/evaluate/consistency", req)
	if err != nil {
		return nil, err
	}

	c.invalidate(ctx, qualitativePath(req.Dataset))

	return res, nil
}

// RunSilhouette asks the upstream to compute cohesion statistics in space.
// On success the cached cluster and point documents of that space and level are dropped.
func (c *Client) RunSilhouette(ctx context.Context, slug string, level int, space domain.Space) (*RunResult, error) {
	if err := ValidateSlug(slug); err != nil {
		return nil, fmt.Errorf("run %s: %w", runKindSilhouette, err)
	}

	source, err := SourceName(space)
	if err != nil {
		return nil, err
	}

	payload := struct {
		Dataset string `json:"dataset"`
		Level   int    `json:"level"`
		Source  string `json:"source"`
	}{Dataset: slug, Level: level, Source: source}

	res, err := c.run(ctx, runKindSilhouette, "/admin/evaluate/silhouette", payload)
	if err != nil {
		return nil, err
	}

	c.invalidate(ctx, cohesionPath(slug, source, level, "clusters"), cohesionPath(slug, source, level, "points"))

	return res, nil
}

// invalidate drops cached documents rewritten by an upstream run.
func (c *Client) invalidate(ctx context.Context, keys ...string) {
	if c.cache == nil {
		return
	}

	for _, key := range keys {
		if err := c.cache.DeleteDocument(ctx, key); err != nil {
			c.logger.Warn().Err(err).Str(logFieldPath, key).Msg("failed to invalidate cached document")
		}
	}
}

func (c *Client) run(ctx context.Context, kind, path string, payload any) (*RunResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", kind, err)
	}

	resp, err := c.do(ctx, http.MethodPost, path, true, body)
	if err != nil {
		RunsTriggered.WithLabelValues(kind, ResultError).Inc()

		return nil, fmt.Errorf("run %s: %w", kind, err)
	}

	var result RunResult
	if err := json.Unmarshal(resp, &result); err != nil {
		RunsTriggered.WithLabelValues(kind, ResultError).Inc()

		return nil, fmt.Errorf("decode %s response: %w", kind, err)
	}

	RunsTriggered.WithLabelValues(kind, ResultOK).Inc()

	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, admin bool, payload []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	key := c.publicKey
	if admin {
		key = c.adminKey
	}

	req.Header.Set(headerAPIKey, key)
	req.Header.Set("Accept", contentTypeJSON)

	if payload != nil {
		req.Header.Set(headerContentType, contentTypeJSON)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s %s: %w", method, path, apperrors.ErrDocumentNotFound)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%s %s: %w", method, path, apperrors.ErrUnauthorized)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: %s %s: %d %s", apperrors.ErrHTTPStatusNotOK, method, path, resp.StatusCode, truncate(string(body), maxErrorBodyLen))
	}

	return body, nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}

	return s[:n]
}
