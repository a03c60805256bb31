package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"storagemarket/internal/scoring"
)

// rankingResponse is the cached shape of a ranking run.
type rankingResponse struct {
	Ranking []scoring.RankedOffer `json:"ranking"`
	Summary scoring.Summary       `json:"summary"`
}

// ScoreOfferHandler handles POST /api/ai/score/{offerId}. The body may
// carry custom weights; an empty body scores with the defaults.
func (h *Handler) ScoreOfferHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var weights scoring.Weights
	readBody(w, r, &weights)
	card, err := h.Engine.ScoreOffer(r.Context(), actor, chi.URLParam(r, "offerId"), weights)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, card)
}

// RankOffersHandler handles POST /api/ai/rank/{needId}. Results are
// cached per need; any offer mutation invalidates the entry.
func (h *Handler) RankOffersHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var weights scoring.Weights
	readBody(w, r, &weights)
	needID := chi.URLParam(r, "needId")

	if weights == (scoring.Weights{}) {
		var cached rankingResponse
		if h.Cache.Get(r.Context(), needID, &cached) {
			h.writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	ranking, summary, err := h.Engine.RankOffers(r.Context(), actor, needID, weights)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := rankingResponse{Ranking: ranking, Summary: summary}
	if weights == (scoring.Weights{}) {
		if err := h.Cache.Set(r.Context(), needID, resp); err != nil {
			h.Log.Warnw("failed to cache ranking", "needId", needID, "error", err)
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// RecommendSitesHandler handles GET /api/ai/recommend-sites/{needId}.
func (h *Handler) RecommendSitesHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	limit := 10
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	matches, err := h.Engine.RecommendSites(r.Context(), actor, chi.URLParam(r, "needId"), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, matches)
}
