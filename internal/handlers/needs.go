package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"storagemarket/db"
)

// CreateNeedHandler handles POST /api/needs/new.
func (h *Handler) CreateNeedHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var need db.Need
	if err := readBody(w, r, &need); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	created, err := h.Engine.CreateNeed(r.Context(), actor, &need)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

// GetPublishedNeedsHandler handles GET /api/needs: needs open for offers,
// filtered by the caller's visibility.
func (h *Handler) GetPublishedNeedsHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	limit, offset := pagination(r)
	needs, err := h.Engine.ListPublishedNeeds(r.Context(), actor,
		r.URL.Query().Get("storageType"), limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, needs)
}

// GetMyNeedsHandler handles GET /api/needs/my.
func (h *Handler) GetMyNeedsHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	limit, offset := pagination(r)
	needs, err := h.Engine.ListMyNeeds(r.Context(), actor, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, needs)
}

// GetNeedHandler handles GET /api/needs/{needId}.
func (h *Handler) GetNeedHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	need, err := h.Engine.GetNeed(r.Context(), actor, chi.URLParam(r, "needId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, need)
}

// EditNeedHandler handles PATCH /api/needs/{needId}/edit.
func (h *Handler) EditNeedHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var need db.Need
	if err := readBody(w, r, &need); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	need.ID = chi.URLParam(r, "needId")
	updated, err := h.Engine.UpdateNeed(r.Context(), actor, &need)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

// PublishNeedHandler handles PUT /api/needs/{needId}/publish.
func (h *Handler) PublishNeedHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	need, err := h.Engine.PublishNeed(r.Context(), actor, chi.URLParam(r, "needId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, need)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// CloseNeedHandler handles PUT /api/needs/{needId}/close.
func (h *Handler) CloseNeedHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var req reasonRequest
	readBody(w, r, &req) // reason is optional
	needID := chi.URLParam(r, "needId")
	need, err := h.Engine.CloseNeed(r.Context(), actor, needID, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.invalidateRanking(r, needID)
	h.writeJSON(w, http.StatusOK, need)
}

// CancelNeedHandler handles PUT /api/needs/{needId}/cancel.
func (h *Handler) CancelNeedHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var req reasonRequest
	readBody(w, r, &req)
	needID := chi.URLParam(r, "needId")
	need, err := h.Engine.CancelNeed(r.Context(), actor, needID, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.invalidateRanking(r, needID)
	h.writeJSON(w, http.StatusOK, need)
}

// DeleteNeedHandler handles DELETE /api/needs/{needId}.
func (h *Handler) DeleteNeedHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	if err := h.Engine.DeleteNeed(r.Context(), actor, chi.URLParam(r, "needId")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
