package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"storagemarket/db"
)

// CreateOfferHandler handles POST /api/offers/new.
func (h *Handler) CreateOfferHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var offer db.Offer
	if err := readBody(w, r, &offer); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	created, err := h.Engine.SubmitOffer(r.Context(), actor, &offer)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.invalidateRanking(r, created.NeedID)
	h.writeJSON(w, http.StatusCreated, created)
}

// GetMyOffersHandler handles GET /api/offers/my.
func (h *Handler) GetMyOffersHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	limit, offset := pagination(r)
	offers, err := h.Engine.ListMyOffers(r.Context(), actor, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, offers)
}

// GetOffersForNeedHandler handles GET /api/needs/{needId}/offers.
func (h *Handler) GetOffersForNeedHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	offers, err := h.Engine.ListOffersForNeed(r.Context(), actor, chi.URLParam(r, "needId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, offers)
}

// GetOfferHandler handles GET /api/offers/{offerId}.
func (h *Handler) GetOfferHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	offer, err := h.Engine.GetOffer(r.Context(), actor, chi.URLParam(r, "offerId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, offer)
}

// EditOfferHandler handles PATCH /api/offers/{offerId}/edit.
func (h *Handler) EditOfferHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var offer db.Offer
	if err := readBody(w, r, &offer); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	offer.ID = chi.URLParam(r, "offerId")
	updated, err := h.Engine.UpdateOffer(r.Context(), actor, &offer)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.invalidateRanking(r, updated.NeedID)
	h.writeJSON(w, http.StatusOK, updated)
}

// WithdrawOfferHandler handles PUT /api/offers/{offerId}/withdraw.
func (h *Handler) WithdrawOfferHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var req reasonRequest
	readBody(w, r, &req)
	offer, err := h.Engine.WithdrawOffer(r.Context(), actor, chi.URLParam(r, "offerId"), req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.invalidateRanking(r, offer.NeedID)
	h.writeJSON(w, http.StatusOK, offer)
}

// ReviewOfferHandler handles PUT /api/offers/{offerId}/review.
func (h *Handler) ReviewOfferHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	offer, err := h.Engine.ReviewOffer(r.Context(), actor, chi.URLParam(r, "offerId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.invalidateRanking(r, offer.NeedID)
	h.writeJSON(w, http.StatusOK, offer)
}

// ShortlistOfferHandler handles PUT /api/offers/{offerId}/shortlist.
func (h *Handler) ShortlistOfferHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	offer, err := h.Engine.ShortlistOffer(r.Context(), actor, chi.URLParam(r, "offerId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.invalidateRanking(r, offer.NeedID)
	h.writeJSON(w, http.StatusOK, offer)
}

// RejectOfferHandler handles PUT /api/offers/{offerId}/reject.
func (h *Handler) RejectOfferHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var req reasonRequest
	readBody(w, r, &req)
	offer, err := h.Engine.RejectOffer(r.Context(), actor, chi.URLParam(r, "offerId"), req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.invalidateRanking(r, offer.NeedID)
	h.writeJSON(w, http.StatusOK, offer)
}

// AcceptOfferHandler handles PUT /api/offers/{offerId}/accept.
func (h *Handler) AcceptOfferHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	offer, err := h.Engine.AcceptOffer(r.Context(), actor, chi.URLParam(r, "offerId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.invalidateRanking(r, offer.NeedID)
	h.writeJSON(w, http.StatusOK, offer)
}

// CounterOfferHandler handles POST /api/offers/{offerId}/counter.
func (h *Handler) CounterOfferHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var co db.CounterOffer
	if err := readBody(w, r, &co); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	offer, err := h.Engine.CounterOffer(r.Context(), actor, chi.URLParam(r, "offerId"), co)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.invalidateRanking(r, offer.NeedID)
	h.writeJSON(w, http.StatusOK, offer)
}

// RespondCounterOfferHandler handles PUT /api/offers/{offerId}/counter/respond.
func (h *Handler) RespondCounterOfferHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var req struct {
		Accept bool `json:"accept"`
	}
	if err := readBody(w, r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	offer, err := h.Engine.RespondCounterOffer(r.Context(), actor, chi.URLParam(r, "offerId"), req.Accept)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.invalidateRanking(r, offer.NeedID)
	h.writeJSON(w, http.StatusOK, offer)
}
