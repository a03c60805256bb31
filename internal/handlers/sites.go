package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"storagemarket/db"
)

// CreateSiteHandler handles POST /api/sites/new.
func (h *Handler) CreateSiteHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var site db.Site
	if err := readBody(w, r, &site); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	created, err := h.Engine.CreateSite(r.Context(), actor, &site)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

// GetMySitesHandler handles GET /api/sites/my.
func (h *Handler) GetMySitesHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	sites, err := h.Engine.ListMySites(r.Context(), actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sites)
}

// SearchSitesHandler handles GET /api/sites.
func (h *Handler) SearchSitesHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := actorFromRequest(r); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	q := r.URL.Query()
	minCapacity, _ := strconv.ParseFloat(q.Get("minCapacity"), 64)
	limit, offset := pagination(r)
	sites, err := h.Engine.SearchSites(r.Context(), q.Get("country"), q.Get("region"),
		q.Get("storageType"), minCapacity, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sites)
}

// GetSiteHandler handles GET /api/sites/{siteId}.
func (h *Handler) GetSiteHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := actorFromRequest(r); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	site, err := h.Engine.GetSite(r.Context(), chi.URLParam(r, "siteId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, site)
}

// EditSiteHandler handles PATCH /api/sites/{siteId}/edit.
func (h *Handler) EditSiteHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var site db.Site
	if err := readBody(w, r, &site); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	site.ID = chi.URLParam(r, "siteId")
	updated, err := h.Engine.UpdateSite(r.Context(), actor, &site)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

// UpdateSiteCapacityHandler handles PUT /api/sites/{siteId}/capacity.
func (h *Handler) UpdateSiteCapacityHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var req struct {
		Available db.Volume `json:"available"`
	}
	if err := readBody(w, r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	site, err := h.Engine.UpdateSiteCapacity(r.Context(), actor, chi.URLParam(r, "siteId"), req.Available)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, site)
}

// DeactivateSiteHandler handles PUT /api/sites/{siteId}/deactivate.
func (h *Handler) DeactivateSiteHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	site, err := h.Engine.DeactivateSite(r.Context(), actor, chi.URLParam(r, "siteId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, site)
}
