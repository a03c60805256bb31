package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"storagemarket/db"
	"storagemarket/internal/market"
)

// CreateContractHandler handles POST /api/contracts/from-offer/{offerId}.
func (h *Handler) CreateContractHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var terms market.ContractTerms
	readBody(w, r, &terms) // terms are optional at creation
	contract, err := h.Engine.CreateContractFromOffer(r.Context(), actor,
		chi.URLParam(r, "offerId"), terms)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, contract)
}

// GetMyContractsHandler handles GET /api/contracts/my.
func (h *Handler) GetMyContractsHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	limit, offset := pagination(r)
	contracts, err := h.Engine.ListMyContracts(r.Context(), actor,
		r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, contracts)
}

// GetContractHandler handles GET /api/contracts/{contractId}.
func (h *Handler) GetContractHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	contract, err := h.Engine.GetContract(r.Context(), actor, chi.URLParam(r, "contractId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, contract)
}

// EditContractHandler handles PATCH /api/contracts/{contractId}/edit.
func (h *Handler) EditContractHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var contract db.Contract
	if err := readBody(w, r, &contract); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	contract.ID = chi.URLParam(r, "contractId")
	updated, err := h.Engine.UpdateContractDraft(r.Context(), actor, &contract)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

// SendForSignatureHandler handles PUT /api/contracts/{contractId}/send.
func (h *Handler) SendForSignatureHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	contract, err := h.Engine.SendForSignature(r.Context(), actor, chi.URLParam(r, "contractId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, contract)
}

// SignContractHandler handles PUT /api/contracts/{contractId}/sign.
func (h *Handler) SignContractHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var req struct {
		Method string `json:"method"`
	}
	readBody(w, r, &req)
	contract, err := h.Engine.Sign(r.Context(), actor, chi.URLParam(r, "contractId"), req.Method)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, contract)
}

// SuspendContractHandler handles PUT /api/contracts/{contractId}/suspend.
func (h *Handler) SuspendContractHandler(w http.ResponseWriter, r *http.Request) {
	h.contractTransition(w, r, h.Engine.Suspend)
}

// TerminateContractHandler handles PUT /api/contracts/{contractId}/terminate.
func (h *Handler) TerminateContractHandler(w http.ResponseWriter, r *http.Request) {
	h.contractTransition(w, r, h.Engine.Terminate)
}

// DisputeContractHandler handles PUT /api/contracts/{contractId}/dispute.
func (h *Handler) DisputeContractHandler(w http.ResponseWriter, r *http.Request) {
	h.contractTransition(w, r, h.Engine.Dispute)
}

func (h *Handler) contractTransition(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, actor market.Actor, id, reason string) (*db.Contract, error)) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var req reasonRequest
	readBody(w, r, &req)
	contract, err := fn(r.Context(), actor, chi.URLParam(r, "contractId"), req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, contract)
}

// ResumeContractHandler handles PUT /api/contracts/{contractId}/resume.
func (h *Handler) ResumeContractHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	contract, err := h.Engine.Resume(r.Context(), actor, chi.URLParam(r, "contractId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, contract)
}

// CompleteContractHandler handles PUT /api/contracts/{contractId}/complete.
func (h *Handler) CompleteContractHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	contract, err := h.Engine.Complete(r.Context(), actor, chi.URLParam(r, "contractId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, contract)
}

// AddAmendmentHandler handles POST /api/contracts/{contractId}/amendments.
func (h *Handler) AddAmendmentHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var amendment db.Amendment
	if err := readBody(w, r, &amendment); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	contract, err := h.Engine.AddAmendment(r.Context(), actor, chi.URLParam(r, "contractId"), amendment)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, contract)
}

// ReportIncidentHandler handles POST /api/contracts/{contractId}/incidents.
func (h *Handler) ReportIncidentHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var incident db.Incident
	if err := readBody(w, r, &incident); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	contract, err := h.Engine.ReportIncident(r.Context(), actor, chi.URLParam(r, "contractId"), incident)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, contract)
}

// UpdateOccupancyHandler handles PUT /api/contracts/{contractId}/occupancy.
func (h *Handler) UpdateOccupancyHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var req struct {
		Occupancy db.Volume `json:"occupancy"`
		Movements int       `json:"movements"`
	}
	if err := readBody(w, r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	contract, err := h.Engine.UpdateOccupancy(r.Context(), actor,
		chi.URLParam(r, "contractId"), req.Occupancy, req.Movements)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, contract)
}
