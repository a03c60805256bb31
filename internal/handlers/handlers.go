package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"storagemarket/internal/market"
	"storagemarket/internal/rankcache"
)

// maxBodySize caps request bodies to avoid oversized payloads.
const maxBodySize = 1048576

// Handler wraps the market engine for HTTP access.
type Handler struct {
	Engine *market.Engine
	Cache  *rankcache.Cache
	Log    *zap.SugaredLogger
}

// NewHandler creates a new Handler. Cache may be nil when Redis is not
// configured.
func NewHandler(engine *market.Engine, cache *rankcache.Cache, log *zap.SugaredLogger) *Handler {
	return &Handler{Engine: engine, Cache: cache, Log: log}
}

// PingHandler answers "ok" for liveness checks.
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// actorFromRequest builds the acting identity from the gateway headers.
// Authentication happens upstream; these headers arrive already verified.
func actorFromRequest(r *http.Request) (market.Actor, error) {
	actor := market.Actor{
		OrgID:   r.Header.Get("X-Org-ID"),
		OrgName: r.Header.Get("X-Org-Name"),
		UserID:  r.Header.Get("X-User-ID"),
		Type:    r.Header.Get("X-User-Type"),
	}
	if actor.OrgID == "" {
		return actor, errors.New("missing X-Org-ID header")
	}
	return actor, nil
}

// readBody decodes a size-capped JSON request body into dest.
func readBody(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return errors.New("failed to read request body")
	}
	defer r.Body.Close()
	if err := json.Unmarshal(body, dest); err != nil {
		return errors.New("invalid JSON format")
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.Errorw("failed to encode response", "error", err)
	}
}

// writeError maps engine errors onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound  *market.NotFoundError
		invalid   *market.ValidationError
		forbidden *market.ForbiddenError
		state     *market.InvalidStateError
		quota     *market.QuotaExceededError
		duplicate *market.DuplicateActionError
		deadline  *market.DeadlinePassedError
	)
	switch {
	case errors.As(err, &notFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &invalid), errors.As(err, &deadline):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &forbidden), errors.As(err, &quota):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.As(err, &state), errors.As(err, &duplicate):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.Log.Errorw("internal error", "method", r.Method, "path", r.URL.Path, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// pagination reads limit/offset query parameters with sane bounds.
func pagination(r *http.Request) (limit, offset int) {
	limit = 20
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > 100 {
		limit = 100
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

// invalidateRanking drops the cached ranking after an offer transition.
func (h *Handler) invalidateRanking(r *http.Request, needID string) {
	if err := h.Cache.Invalidate(r.Context(), needID); err != nil {
		h.Log.Warnw("failed to invalidate ranking cache", "needId", needID, "error", err)
	}
}
