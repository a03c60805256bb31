package handlers

import (
	"net/http"

	"storagemarket/internal/market"
)

// GetPlansHandler handles GET /api/subscriptions/plans. Public plan
// listing; no actor required.
func (h *Handler) GetPlansHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, market.Plans())
}

// RegisterSubscriptionHandler handles POST /api/subscriptions/new.
func (h *Handler) RegisterSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var req struct {
		Tier string `json:"tier"`
	}
	readBody(w, r, &req) // empty body defaults to the guest tier
	sub, err := h.Engine.RegisterSubscription(r.Context(), actor, req.Tier)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, sub)
}

// GetMySubscriptionHandler handles GET /api/subscriptions/my.
func (h *Handler) GetMySubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	sub, err := h.Engine.GetMySubscription(r.Context(), actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sub)
}

// ChangeTierHandler handles PUT /api/subscriptions/my/tier.
func (h *Handler) ChangeTierHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var req struct {
		Tier   string `json:"tier"`
		Reason string `json:"reason"`
	}
	if err := readBody(w, r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sub, err := h.Engine.ChangeTier(r.Context(), actor, req.Tier, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sub)
}

// StartTrialHandler handles POST /api/subscriptions/my/trial.
func (h *Handler) StartTrialHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	sub, err := h.Engine.StartTrial(r.Context(), actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sub)
}

// CancelSubscriptionHandler handles PUT /api/subscriptions/my/cancel.
func (h *Handler) CancelSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var req reasonRequest
	readBody(w, r, &req)
	if err := h.Engine.CancelSubscription(r.Context(), actor, req.Reason); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UsageHandler handles GET /api/subscriptions/my/usage.
func (h *Handler) UsageHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	report, err := h.Engine.UsageReport(r.Context(), actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}
