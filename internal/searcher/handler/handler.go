// Package handler exposes the suggestion engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/middleware"
)

const (
	bookURL   = "https://www.gutenberg.org/ebooks/"
	searchURL = "https://www.gutenberg.org/ebooks/search/?query="

	modeRegexp = "regexp"
)

// Rebuilder is satisfied by *indexer.Engine.
type Rebuilder interface {
	Rebuild(ctx context.Context, trigger string) (*indexer.Snapshot, error)
}

type Config struct {
	MaxQueryLength int
}

type Handler struct {
	holder    *indexer.Holder
	executor  *executor.Executor
	rebuilder Rebuilder
	cache     *cache.SuggestCache
	tracker   analytics.Tracker
	metrics   *metrics.Metrics
	maxQuery  int
	logger    *slog.Logger
}

// New wires the routes. queryCache, tracker and m may be nil.
func New(
	holder *indexer.Holder,
	exec *executor.Executor,
	rebuilder Rebuilder,
	queryCache *cache.SuggestCache,
	tracker analytics.Tracker,
	m *metrics.Metrics,
	cfg Config,
) *Handler {
	if tracker == nil {
		tracker = analytics.Discard{}
	}
	return &Handler{
		holder:    holder,
		executor:  exec,
		rebuilder: rebuilder,
		cache:     queryCache,
		tracker:   tracker,
		metrics:   m,
		maxQuery:  cfg.MaxQueryLength,
		logger:    slog.Default().With("component", "suggest-handler"),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/suggest", h.Suggest)
	mux.HandleFunc("GET /api/v1/suggest/explain", h.Explain)
	mux.HandleFunc("GET /api/v1/resolve_title", h.ResolveTitle)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("POST /api/v1/index/rebuild", h.IndexRebuild)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Suggest handles GET /api/v1/suggest. title_query wins over auth_query;
// mode=regexp matches title_query as a regular expression against the exact
// titles. Without a query the answer is an empty list.
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	titleQuery := q.Get("title_query")

	if q.Get("mode") == modeRegexp {
		h.match(w, r, titleQuery)
		return
	}

	kind, raw := indexer.KindTitle, titleQuery
	if raw == "" {
		kind, raw = indexer.KindAuthor, q.Get("auth_query")
	}
	if raw == "" {
		h.writeJSON(w, http.StatusOK, []map[string]string{})
		return
	}

	result, ok := h.suggest(w, r, kind, raw)
	if !ok {
		return
	}
	out := make([]map[string]string, len(result.Suggestions))
	for i, s := range result.Suggestions {
		out[i] = map[string]string{string(kind): s.Text}
	}
	h.writeJSON(w, http.StatusOK, out)
}

// Explain handles GET /api/v1/suggest/explain?kind=title|author&q=... and
// returns the full result with scores and candidate counts.
func (h *Handler) Explain(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kindParam := q.Get("kind")
	if kindParam == "" {
		kindParam = string(indexer.KindTitle)
	}
	kind, err := indexer.ParseKind(kindParam)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, ok := h.suggest(w, r, kind, q.Get("q"))
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// suggest runs a ranked query through the cache. On failure it has already
// written the error response.
func (h *Handler) suggest(w http.ResponseWriter, r *http.Request, kind indexer.Kind, raw string) (*executor.SuggestResult, bool) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if h.maxQuery > 0 && utf8.RuneCountInString(raw) > h.maxQuery {
		h.countQuery(kind, "rejected")
		h.writeError(w, http.StatusBadRequest, "query exceeds "+strconv.Itoa(h.maxQuery)+" characters")
		return nil, false
	}

	snap, err := h.holder.Load()
	if err != nil {
		h.countQuery(kind, "error")
		h.writeAppError(w, err)
		return nil, false
	}
	plan := parser.Parse(raw)
	compute := func() (*executor.SuggestResult, error) {
		return h.executor.SuggestIn(ctx, snap, plan, kind)
	}

	var result *executor.SuggestResult
	cacheHit := false
	if h.cache != nil && !plan.Empty() {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, kind, snap.Version, plan.Normalized, compute)
	} else {
		result, err = compute()
	}
	if err != nil {
		h.countQuery(kind, "error")
		log.Error("suggest failed", "kind", kind, "query", raw, "error", err)
		h.writeAppError(w, err)
		return nil, false
	}
	if result.Query != raw {
		// Cached and shared results carry the raw text of whoever computed
		// them first.
		own := *result
		own.Query = raw
		result = &own
	}

	latency := time.Since(start)
	top := 0.0
	returned := 0
	for _, s := range result.Suggestions {
		if s.Text != "" {
			returned++
		}
	}
	if len(result.Suggestions) > 0 {
		top = result.Suggestions[0].Score
	}
	status := "hit"
	if !cacheHit {
		status = "miss"
	}
	outcome := "ok"
	if returned == 0 {
		outcome = "empty"
	}
	h.countQuery(kind, outcome)
	if h.metrics != nil {
		h.metrics.SuggestLatency.WithLabelValues(string(kind), status).Observe(latency.Seconds())
		h.metrics.SuggestCandidates.WithLabelValues(string(kind)).Observe(float64(result.Candidates))
	}

	log.Info("suggest completed",
		"kind", kind,
		"query", plan.Normalized,
		"candidates", result.Candidates,
		"returned", returned,
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	h.tracker.Track(analytics.SuggestEvent{
		Type:       analytics.EventSuggest,
		Kind:       string(kind),
		Query:      raw,
		Normalized: plan.Normalized,
		Candidates: result.Candidates,
		TopScore:   top,
		Returned:   returned,
		LatencyMs:  latency.Milliseconds(),
		CacheHit:   cacheHit,
		Empty:      returned == 0,
		Timestamp:  time.Now().UTC(),
		RequestID:  middleware.GetRequestID(ctx),
	})
	return result, true
}

func (h *Handler) match(w http.ResponseWriter, r *http.Request, expr string) {
	start := time.Now()
	ctx := r.Context()

	if h.maxQuery > 0 && utf8.RuneCountInString(expr) > h.maxQuery {
		h.countQuery(modeRegexp, "rejected")
		h.writeError(w, http.StatusBadRequest, "query exceeds "+strconv.Itoa(h.maxQuery)+" characters")
		return
	}
	titles, err := h.executor.Match(ctx, expr)
	if err != nil {
		h.countQuery(modeRegexp, "error")
		h.writeAppError(w, err)
		return
	}

	outcome := "ok"
	if len(titles) == 0 {
		outcome = "empty"
	}
	h.countQuery(modeRegexp, outcome)
	latency := time.Since(start)
	if h.metrics != nil {
		h.metrics.SuggestLatency.WithLabelValues(modeRegexp, "none").Observe(latency.Seconds())
	}
	logger.FromContext(ctx).Info("regexp match completed",
		"pattern", expr,
		"returned", len(titles),
		"latency_ms", latency.Milliseconds(),
	)
	h.tracker.Track(analytics.SuggestEvent{
		Type:      analytics.EventRegexp,
		Kind:      string(indexer.KindTitle),
		Query:     expr,
		Returned:  len(titles),
		LatencyMs: latency.Milliseconds(),
		Empty:     len(titles) == 0,
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(ctx),
	})

	out := make([]map[string]string, len(titles))
	for i, t := range titles {
		out[i] = map[string]string{string(indexer.KindTitle): t}
	}
	h.writeJSON(w, http.StatusOK, out)
}

type resolveResponse struct {
	OK      bool   `json:"ok"`
	URL     string `json:"url"`
	Message string `json:"message"`
}

// ResolveTitle handles GET /api/v1/resolve_title. An exact title links to
// the book page; anything else links to a Gutenberg search with 404.
func (h *Handler) ResolveTitle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	title := strings.TrimSpace(r.URL.Query().Get("title_query"))

	id, err := h.executor.ResolveTitle(ctx, title)
	found := err == nil
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		h.writeAppError(w, err)
		return
	}
	h.tracker.Track(analytics.SuggestEvent{
		Type:      analytics.EventResolve,
		Kind:      string(indexer.KindTitle),
		Query:     title,
		Returned:  boolToInt(found),
		LatencyMs: time.Since(start).Milliseconds(),
		Empty:     !found,
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(ctx),
	})

	if found {
		h.writeJSON(w, http.StatusOK, resolveResponse{
			OK:      true,
			URL:     bookURL + strconv.Itoa(id),
			Message: "Happy reading!",
		})
		return
	}
	h.writeJSON(w, http.StatusNotFound, resolveResponse{
		OK:      false,
		URL:     searchURL + url.QueryEscape(title),
		Message: "No Project Gutenberg book has this title. Check the spelling.",
	})
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.holder.Load()
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap.Stats())
}

// IndexRebuild reloads the catalog synchronously and reports the new
// snapshot.
func (h *Handler) IndexRebuild(w http.ResponseWriter, r *http.Request) {
	if h.rebuilder == nil {
		h.writeError(w, http.StatusServiceUnavailable, "rebuilds are disabled")
		return
	}
	snap, err := h.rebuilder.Rebuild(r.Context(), indexer.TriggerAdmin)
	if err != nil {
		logger.FromContext(r.Context()).Error("index rebuild failed", "error", err)
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap.Stats())
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) countQuery(kind indexer.Kind, result string) {
	if h.metrics != nil {
		h.metrics.SuggestQueriesTotal.WithLabelValues(string(kind), result).Inc()
	}
}

func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	h.writeError(w, status, message)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
