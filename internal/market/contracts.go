package market

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"storagemarket/db"
)

// ContractTerms are the legal terms supplied at contract creation on top
// of the commercial snapshot taken from the accepted offer.
type ContractTerms struct {
	PaymentTerms       string `json:"paymentTerms"`
	CancellationPolicy string `json:"cancellationPolicy"`
}

// CreateContractFromOffer instantiates a draft contract from an accepted
// offer, snapshotting its commercial terms. Only one contract may exist
// per offer.
func (e *Engine) CreateContractFromOffer(ctx context.Context, actor Actor, offerID string, terms ContractTerms) (*db.Contract, error) {
	o, err := e.store.GetOffer(ctx, offerID)
	if err != nil {
		return nil, mapStoreErr(err, "offer", offerID)
	}
	n, err := e.store.GetNeed(ctx, o.NeedID)
	if err != nil {
		return nil, mapStoreErr(err, "need", o.NeedID)
	}
	if n.OwnerOrgID != actor.OrgID {
		return nil, &ForbiddenError{Msg: "offer " + offerID + " answers another organization's need"}
	}
	if o.Status != db.OfferAccepted {
		return nil, &InvalidStateError{Entity: "offer", ID: offerID, Status: o.Status, Action: "contract"}
	}

	c := &db.Contract{
		ID:                 uuid.NewString(),
		NeedID:             n.ID,
		NeedReference:      n.Reference,
		OfferID:            o.ID,
		ClientOrgID:        n.OwnerOrgID,
		ClientName:         n.OwnerOrgName,
		LogisticianID:      o.LogisticianID,
		LogisticianName:    o.LogisticianName,
		SiteID:             o.SiteID,
		SiteName:           o.SiteName,
		StorageType:        n.StorageType,
		Capacity:           o.ProposedCapacity,
		Pricing:            o.Pricing,
		StartDate:          o.ProposedStartDate,
		EndDate:            o.ProposedEndDate,
		Services:           o.IncludedServices,
		PaymentTerms:       terms.PaymentTerms,
		CancellationPolicy: terms.CancellationPolicy,
		Status:             db.ContractDraft,
		StatusHistory: db.StatusHistory{{
			Status: db.ContractDraft, ChangedAt: e.now(), ChangedBy: actor.UserID,
		}},
	}
	if err := e.store.CreateContract(ctx, c); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, &DuplicateActionError{Msg: "a contract for offer " + offerID + " already exists"}
		}
		return nil, err
	}
	return c, nil
}

// GetContract returns a contract to one of its parties.
func (e *Engine) GetContract(ctx context.Context, actor Actor, id string) (*db.Contract, error) {
	c, err := e.store.GetContract(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err, "contract", id)
	}
	if c.ClientOrgID != actor.OrgID && c.LogisticianID != actor.OrgID {
		return nil, &NotFoundError{Entity: "contract", ID: id}
	}
	return c, nil
}

// ListMyContracts lists contracts where the actor's organization is a party.
func (e *Engine) ListMyContracts(ctx context.Context, actor Actor, status string, limit, offset int) ([]db.Contract, error) {
	return e.store.GetContractsByParty(ctx, actor.OrgID, status, limit, offset)
}

// UpdateContractDraft revises a draft contract's terms. Either party may
// propose revisions while the contract is unsigned.
func (e *Engine) UpdateContractDraft(ctx context.Context, actor Actor, c *db.Contract) (*db.Contract, error) {
	current, err := e.GetContract(ctx, actor, c.ID)
	if err != nil {
		return nil, err
	}
	if current.Status != db.ContractDraft {
		return nil, &InvalidStateError{Entity: "contract", ID: c.ID, Status: current.Status, Action: "update"}
	}
	updated := *current
	updated.Capacity = c.Capacity
	updated.Pricing = c.Pricing
	updated.StartDate = c.StartDate
	updated.EndDate = c.EndDate
	updated.Services = c.Services
	updated.PaymentTerms = c.PaymentTerms
	updated.CancellationPolicy = c.CancellationPolicy
	if err := e.store.UpdateContractDraft(ctx, &updated); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, &InvalidStateError{Entity: "contract", ID: c.ID, Status: current.Status, Action: "update"}
		}
		return nil, err
	}
	return e.store.GetContract(ctx, c.ID)
}

// SendForSignature moves a draft contract to pending signature.
func (e *Engine) SendForSignature(ctx context.Context, actor Actor, id string) (*db.Contract, error) {
	c, err := e.GetContract(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if c.Status != db.ContractDraft {
		return nil, &InvalidStateError{Entity: "contract", ID: id, Status: c.Status, Action: "send for signature"}
	}
	return e.transitionContract(ctx, actor, c, []string{db.ContractDraft}, db.ContractPendingSignature, "")
}

// Sign records the actor's party signature. Signing twice for the same
// party is an idempotent no-op. When the second party signs, the contract
// activates and its billing schedule is initialized; with capacity
// reservation enabled, the contracted volume is also subtracted from the
// site's availability.
func (e *Engine) Sign(ctx context.Context, actor Actor, id, method string) (*db.Contract, error) {
	c, err := e.GetContract(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	party := db.PartyClient
	if actor.OrgID == c.LogisticianID {
		party = db.PartyLogistician
	}
	for _, sig := range c.Signatures {
		if sig.Party == party {
			return c, nil
		}
	}
	if c.Status != db.ContractPendingSignature {
		return nil, &InvalidStateError{Entity: "contract", ID: id, Status: c.Status, Action: "sign"}
	}
	if method == "" {
		method = "electronic"
	}
	sig := db.Signature{Party: party, SignedBy: actor.UserID, Method: method}
	billing := db.Billing{
		Cycle:           "monthly",
		NextBillingDate: initialBillingDate(c.StartDate),
	}
	activated, err := e.store.SignContract(ctx, id, sig, billing)
	if err != nil {
		return nil, err
	}
	if activated && e.policy.ReserveCapacity {
		err := e.store.ReserveSiteCapacity(ctx, c.SiteID, c.Capacity.Quantity)
		if err != nil && !errors.Is(err, db.ErrConflict) {
			return nil, err
		}
	}
	return e.store.GetContract(ctx, id)
}

// Suspend pauses an active contract.
func (e *Engine) Suspend(ctx context.Context, actor Actor, id, reason string) (*db.Contract, error) {
	c, err := e.GetContract(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if c.Status != db.ContractActive {
		return nil, &InvalidStateError{Entity: "contract", ID: id, Status: c.Status, Action: "suspend"}
	}
	return e.transitionContract(ctx, actor, c, []string{db.ContractActive}, db.ContractSuspended, reason)
}

// Resume reactivates a suspended contract.
func (e *Engine) Resume(ctx context.Context, actor Actor, id string) (*db.Contract, error) {
	c, err := e.GetContract(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if c.Status != db.ContractSuspended {
		return nil, &InvalidStateError{Entity: "contract", ID: id, Status: c.Status, Action: "resume"}
	}
	return e.transitionContract(ctx, actor, c, []string{db.ContractSuspended}, db.ContractActive, "")
}

// Terminate ends a contract before its term.
func (e *Engine) Terminate(ctx context.Context, actor Actor, id, reason string) (*db.Contract, error) {
	c, err := e.GetContract(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	from := []string{db.ContractActive, db.ContractSuspended, db.ContractDisputed}
	if !contains(from, c.Status) {
		return nil, &InvalidStateError{Entity: "contract", ID: id, Status: c.Status, Action: "terminate"}
	}
	if reason == "" {
		return nil, &ValidationError{Msg: "termination reason is required"}
	}
	return e.transitionContract(ctx, actor, c, from, db.ContractTerminated, reason)
}

// Complete closes a contract that ran its full term.
func (e *Engine) Complete(ctx context.Context, actor Actor, id string) (*db.Contract, error) {
	c, err := e.GetContract(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if c.Status != db.ContractActive {
		return nil, &InvalidStateError{Entity: "contract", ID: id, Status: c.Status, Action: "complete"}
	}
	return e.transitionContract(ctx, actor, c, []string{db.ContractActive}, db.ContractCompleted, "")
}

// Dispute flags a contract as contested by one of its parties.
func (e *Engine) Dispute(ctx context.Context, actor Actor, id, reason string) (*db.Contract, error) {
	c, err := e.GetContract(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	from := []string{db.ContractActive, db.ContractSuspended}
	if !contains(from, c.Status) {
		return nil, &InvalidStateError{Entity: "contract", ID: id, Status: c.Status, Action: "dispute"}
	}
	if reason == "" {
		return nil, &ValidationError{Msg: "dispute reason is required"}
	}
	return e.transitionContract(ctx, actor, c, from, db.ContractDisputed, reason)
}

// AddAmendment appends a versioned amendment to an active contract. The
// amendment reference extends the contract's with an AV sequence number.
func (e *Engine) AddAmendment(ctx context.Context, actor Actor, id string, a db.Amendment) (*db.Contract, error) {
	c, err := e.GetContract(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if c.Status != db.ContractActive {
		return nil, &InvalidStateError{Entity: "contract", ID: id, Status: c.Status, Action: "amend"}
	}
	if a.Description == "" {
		return nil, &ValidationError{Msg: "amendment description is required"}
	}
	a.Reference = fmt.Sprintf("%s-AV%d", c.Reference, len(c.Amendments)+1)
	a.Status = "pending"
	a.CreatedAt = e.now()
	amendments := append(append(db.Amendments{}, c.Amendments...), a)
	if err := e.store.UpdateContractAmendments(ctx, id, amendments, len(c.Amendments)); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, &InvalidStateError{Entity: "contract", ID: id, Status: c.Status, Action: "amend"}
		}
		return nil, err
	}
	return e.store.GetContract(ctx, id)
}

// ReportIncident logs an execution incident on an active contract.
func (e *Engine) ReportIncident(ctx context.Context, actor Actor, id string, incident db.Incident) (*db.Contract, error) {
	c, err := e.GetContract(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if c.Status != db.ContractActive && c.Status != db.ContractSuspended {
		return nil, &InvalidStateError{Entity: "contract", ID: id, Status: c.Status, Action: "report an incident on"}
	}
	if incident.Description == "" {
		return nil, &ValidationError{Msg: "incident description is required"}
	}
	if incident.Date.IsZero() {
		incident.Date = e.now()
	}
	exec := c.Execution
	exec.Incidents = append(exec.Incidents, incident)
	if exec.OccupancyUpdatedAt.IsZero() {
		exec.OccupancyUpdatedAt = e.now()
	}
	if err := e.updateExecution(ctx, c, exec); err != nil {
		return nil, err
	}
	return e.store.GetContract(ctx, id)
}

// UpdateOccupancy records the site's current occupancy under the
// contract. Only the logistician operates the site and may report it.
func (e *Engine) UpdateOccupancy(ctx context.Context, actor Actor, id string, occupancy db.Volume, movements int) (*db.Contract, error) {
	c, err := e.GetContract(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if c.LogisticianID != actor.OrgID {
		return nil, &ForbiddenError{Msg: "only the logistician reports occupancy"}
	}
	if c.Status != db.ContractActive {
		return nil, &InvalidStateError{Entity: "contract", ID: id, Status: c.Status, Action: "update occupancy on"}
	}
	if occupancy.Quantity < 0 {
		return nil, &ValidationError{Msg: "occupancy cannot be negative"}
	}
	now := e.now()
	exec := c.Execution
	exec.CurrentOccupancy = occupancy
	exec.OccupancyUpdatedAt = now
	if movements > 0 {
		exec.TotalMovements += movements
		exec.LastMovementAt = &now
	}
	if err := e.updateExecution(ctx, c, exec); err != nil {
		return nil, err
	}
	return e.store.GetContract(ctx, id)
}

func (e *Engine) updateExecution(ctx context.Context, c *db.Contract, exec db.Execution) error {
	if err := e.store.UpdateContractExecution(ctx, c.ID, exec); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return &InvalidStateError{Entity: "contract", ID: c.ID, Status: c.Status, Action: "update execution on"}
		}
		return err
	}
	return nil
}

func (e *Engine) transitionContract(ctx context.Context, actor Actor, c *db.Contract, from []string, to, reason string) (*db.Contract, error) {
	change := db.StatusChange{Status: to, ChangedBy: actor.UserID, Reason: reason}
	if err := e.store.TransitionContract(ctx, c.ID, from, to, change); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, &InvalidStateError{Entity: "contract", ID: c.ID, Status: c.Status, Action: "move to " + to}
		}
		return nil, err
	}
	return e.store.GetContract(ctx, c.ID)
}
