package market

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"storagemarket/db"
	"storagemarket/internal/entitlement"
	"storagemarket/internal/geo"
	"storagemarket/internal/scoring"
)

// SubmitOffer validates and stores a logistician's offer against a
// published need, consuming the logistician's quota. The storage layer
// re-verifies the need is still open and the quota still available inside
// its transaction, so two racing submissions cannot both slip through.
func (e *Engine) SubmitOffer(ctx context.Context, actor Actor, o *db.Offer) (*db.Offer, error) {
	n, err := e.store.GetNeed(ctx, o.NeedID)
	if err != nil {
		return nil, mapStoreErr(err, "need", o.NeedID)
	}
	if n.OwnerOrgID == actor.OrgID {
		return nil, &ValidationError{Msg: "cannot submit an offer on your own need"}
	}
	if n.Status != db.NeedPublished {
		return nil, &InvalidStateError{Entity: "need", ID: n.ID, Status: n.Status, Action: "submit an offer on"}
	}
	now := e.now()
	if !n.Deadline.After(now) {
		return nil, &DeadlinePassedError{NeedID: n.ID}
	}
	if n.PublicationType == db.PublicationReferredOnly && !contains(n.ReferredLogisticians, actor.OrgID) {
		return nil, &ForbiddenError{Msg: "need " + n.ID + " is restricted to referred logisticians"}
	}

	sub, err := e.store.GetSubscriptionByLogistician(ctx, actor.OrgID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, &ForbiddenError{Msg: "logistician has no subscription; register one first"}
		}
		return nil, err
	}
	if d := entitlement.CanPerform(sub, entitlement.ActionSubmitOffer, now); !d.Allowed {
		return nil, &QuotaExceededError{Reason: d.Reason}
	}

	site, err := e.store.GetSite(ctx, o.SiteID)
	if err != nil {
		return nil, mapStoreErr(err, "site", o.SiteID)
	}
	if site.LogisticianID != actor.OrgID {
		return nil, &ForbiddenError{Msg: "site " + site.ID + " belongs to another logistician"}
	}
	if !site.Active {
		return nil, &ValidationError{Msg: "site " + site.ID + " is deactivated"}
	}
	if err := validateOffer(o); err != nil {
		return nil, err
	}

	o.ID = uuid.NewString()
	o.NeedReference = n.Reference
	o.LogisticianID = actor.OrgID
	o.LogisticianName = actor.OrgName
	o.SiteName = site.Name
	o.Status = db.OfferSubmitted
	o.StatusHistory = db.StatusHistory{{
		Status: db.OfferSubmitted, ChangedAt: now, ChangedBy: actor.UserID,
	}}

	if err := e.store.CreateOffer(ctx, o); err != nil {
		switch {
		case errors.Is(err, db.ErrConflict):
			return nil, &InvalidStateError{Entity: "need", ID: n.ID, Status: n.Status, Action: "submit an offer on"}
		case errors.Is(err, db.ErrQuotaExceeded):
			return nil, &QuotaExceededError{Reason: "offer quota exhausted for tier " + sub.Tier}
		case errors.Is(err, db.ErrDuplicate):
			return nil, &DuplicateActionError{Msg: "a live offer on this need already exists"}
		}
		return nil, err
	}
	return o, nil
}

func validateOffer(o *db.Offer) error {
	if o.ProposedCapacity.Quantity <= 0 {
		return &ValidationError{Msg: "proposed capacity must be positive"}
	}
	if o.Pricing.PricePerUnit <= 0 {
		return &ValidationError{Msg: "price per unit must be positive"}
	}
	if o.Pricing.Currency == "" {
		return &ValidationError{Msg: "pricing currency is required"}
	}
	if o.ProposedStartDate.IsZero() {
		return &ValidationError{Msg: "proposed start date is required"}
	}
	if o.ProposedEndDate != nil && !o.ProposedEndDate.After(o.ProposedStartDate) {
		return &ValidationError{Msg: "proposed end date must be after the start date"}
	}
	return nil
}

// GetOffer returns an offer visible to the actor: the submitting
// logistician or the need's owner.
func (e *Engine) GetOffer(ctx context.Context, actor Actor, id string) (*db.Offer, error) {
	o, err := e.store.GetOffer(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err, "offer", id)
	}
	if o.LogisticianID == actor.OrgID {
		return o, nil
	}
	n, err := e.store.GetNeed(ctx, o.NeedID)
	if err != nil {
		return nil, mapStoreErr(err, "need", o.NeedID)
	}
	if n.OwnerOrgID != actor.OrgID {
		return nil, &NotFoundError{Entity: "offer", ID: id}
	}
	return o, nil
}

// UpdateOffer lets the logistician revise an offer still open for edits.
func (e *Engine) UpdateOffer(ctx context.Context, actor Actor, o *db.Offer) (*db.Offer, error) {
	current, err := e.store.GetOffer(ctx, o.ID)
	if err != nil {
		return nil, mapStoreErr(err, "offer", o.ID)
	}
	if current.LogisticianID != actor.OrgID {
		return nil, &ForbiddenError{Msg: "offer " + o.ID + " belongs to another logistician"}
	}
	editable := []string{db.OfferSubmitted, db.OfferUnderReview}
	if current.Status != db.OfferSubmitted && current.Status != db.OfferUnderReview {
		return nil, &InvalidStateError{Entity: "offer", ID: o.ID, Status: current.Status, Action: "update"}
	}
	if err := validateOffer(o); err != nil {
		return nil, err
	}
	updated := *current
	updated.ProposedCapacity = o.ProposedCapacity
	updated.ProposedStartDate = o.ProposedStartDate
	updated.ProposedEndDate = o.ProposedEndDate
	updated.Pricing = o.Pricing
	updated.IncludedServices = o.IncludedServices
	updated.Message = o.Message
	if err := e.store.UpdateOfferTerms(ctx, &updated, editable); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, &InvalidStateError{Entity: "offer", ID: o.ID, Status: current.Status, Action: "update"}
		}
		return nil, err
	}
	return e.store.GetOffer(ctx, o.ID)
}

// WithdrawOffer takes the logistician's own offer out of play, freeing
// their duplicate-offer slot on the need.
func (e *Engine) WithdrawOffer(ctx context.Context, actor Actor, id, reason string) (*db.Offer, error) {
	o, err := e.store.GetOffer(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err, "offer", id)
	}
	if o.LogisticianID != actor.OrgID {
		return nil, &ForbiddenError{Msg: "offer " + id + " belongs to another logistician"}
	}
	if db.OfferTerminal(o.Status) {
		return nil, &InvalidStateError{Entity: "offer", ID: id, Status: o.Status, Action: "withdraw"}
	}
	return e.transition(ctx, actor, o, db.NonTerminalOfferStatuses, db.OfferWithdrawn, reason)
}

// ReviewOffer marks an offer as being reviewed by the need's owner.
func (e *Engine) ReviewOffer(ctx context.Context, actor Actor, id string) (*db.Offer, error) {
	o, err := e.buyerOffer(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if o.Status != db.OfferSubmitted {
		return nil, &InvalidStateError{Entity: "offer", ID: id, Status: o.Status, Action: "review"}
	}
	return e.transition(ctx, actor, o, []string{db.OfferSubmitted}, db.OfferUnderReview, "")
}

// ShortlistOffer shortlists an offer during review.
func (e *Engine) ShortlistOffer(ctx context.Context, actor Actor, id string) (*db.Offer, error) {
	o, err := e.buyerOffer(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	from := []string{db.OfferSubmitted, db.OfferUnderReview}
	if o.Status != db.OfferSubmitted && o.Status != db.OfferUnderReview {
		return nil, &InvalidStateError{Entity: "offer", ID: id, Status: o.Status, Action: "shortlist"}
	}
	return e.transition(ctx, actor, o, from, db.OfferShortlisted, "")
}

// RejectOffer rejects an offer still in play.
func (e *Engine) RejectOffer(ctx context.Context, actor Actor, id, reason string) (*db.Offer, error) {
	o, err := e.buyerOffer(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if db.OfferTerminal(o.Status) {
		return nil, &InvalidStateError{Entity: "offer", ID: id, Status: o.Status, Action: "reject"}
	}
	return e.transition(ctx, actor, o, db.NonTerminalOfferStatuses, db.OfferRejected, reason)
}

// AcceptOffer attributes the need to this offer. Every rival offer still
// in play is rejected with an explanatory reason, the need moves to
// ATTRIBUTED, and the whole cascade commits or fails together.
func (e *Engine) AcceptOffer(ctx context.Context, actor Actor, id string) (*db.Offer, error) {
	o, err := e.buyerOffer(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if db.OfferTerminal(o.Status) {
		return nil, &InvalidStateError{Entity: "offer", ID: id, Status: o.Status, Action: "accept"}
	}
	if err := e.store.AcceptOffer(ctx, o.NeedID, o.ID, actor.UserID); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, &InvalidStateError{Entity: "need", ID: o.NeedID, Status: "", Action: "attribute"}
		}
		return nil, err
	}
	// metrics are advisory; a failed update does not undo the attribution
	if sub, err := e.store.GetSubscriptionByLogistician(ctx, o.LogisticianID); err == nil {
		m := sub.Metrics
		m.TotalContractsWon++
		_ = e.store.UpdateSubscriptionMetrics(ctx, o.LogisticianID, m)
	}
	return e.store.GetOffer(ctx, id)
}

// CounterOffer sends the logistician a revision request on their offer.
func (e *Engine) CounterOffer(ctx context.Context, actor Actor, id string, co db.CounterOffer) (*db.Offer, error) {
	o, err := e.buyerOffer(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	negotiable := []string{db.OfferSubmitted, db.OfferUnderReview, db.OfferShortlisted}
	if !contains(negotiable, o.Status) {
		return nil, &InvalidStateError{Entity: "offer", ID: id, Status: o.Status, Action: "counter"}
	}
	if co.RequestedChanges == "" {
		return nil, &ValidationError{Msg: "requested changes are required"}
	}
	now := e.now()
	updated := *o
	co.Status = db.CounterPending
	co.CreatedAt = now
	co.RespondedAt = nil
	updated.CounterOffer = co
	updated.Status = db.OfferCounterOffer
	updated.StatusHistory = append(updated.StatusHistory, db.StatusChange{
		Status: db.OfferCounterOffer, ChangedAt: now, ChangedBy: actor.UserID,
	})
	if err := e.store.UpdateOfferTerms(ctx, &updated, negotiable); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, &InvalidStateError{Entity: "offer", ID: id, Status: o.Status, Action: "counter"}
		}
		return nil, err
	}
	return e.store.GetOffer(ctx, id)
}

// RespondCounterOffer resolves a pending counter-offer. Accepting applies
// the buyer's terms and returns the offer to submitted; declining
// withdraws the offer.
func (e *Engine) RespondCounterOffer(ctx context.Context, actor Actor, id string, accept bool) (*db.Offer, error) {
	o, err := e.store.GetOffer(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err, "offer", id)
	}
	if o.LogisticianID != actor.OrgID {
		return nil, &ForbiddenError{Msg: "offer " + id + " belongs to another logistician"}
	}
	if o.Status != db.OfferCounterOffer || o.CounterOffer.Status != db.CounterPending {
		return nil, &InvalidStateError{Entity: "offer", ID: id, Status: o.Status, Action: "respond to counter-offer on"}
	}

	now := e.now()
	updated := *o
	updated.CounterOffer.RespondedAt = &now
	if accept {
		updated.CounterOffer.Status = db.CounterAccepted
		if co := o.CounterOffer; co.NewPricing != nil {
			updated.Pricing = *co.NewPricing
		}
		if co := o.CounterOffer; co.NewStartDate != nil {
			updated.ProposedStartDate = *co.NewStartDate
		}
		if co := o.CounterOffer; co.NewEndDate != nil {
			updated.ProposedEndDate = co.NewEndDate
		}
		updated.Status = db.OfferSubmitted
		updated.StatusHistory = append(updated.StatusHistory, db.StatusChange{
			Status: db.OfferSubmitted, ChangedAt: now, ChangedBy: actor.UserID,
			Reason: "counter-offer accepted",
		})
		if err := e.store.UpdateOfferTerms(ctx, &updated, []string{db.OfferCounterOffer}); err != nil {
			if errors.Is(err, db.ErrConflict) {
				return nil, &InvalidStateError{Entity: "offer", ID: id, Status: o.Status, Action: "respond to counter-offer on"}
			}
			return nil, err
		}
		return e.store.GetOffer(ctx, id)
	}

	updated.CounterOffer.Status = db.CounterRejected
	if err := e.store.UpdateOfferTerms(ctx, &updated, []string{db.OfferCounterOffer}); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, &InvalidStateError{Entity: "offer", ID: id, Status: o.Status, Action: "respond to counter-offer on"}
		}
		return nil, err
	}
	return e.transition(ctx, actor, o, []string{db.OfferCounterOffer}, db.OfferWithdrawn, "counter-offer declined")
}

// ListOffersForNeed lists a need's offers for its owner.
func (e *Engine) ListOffersForNeed(ctx context.Context, actor Actor, needID string) ([]db.Offer, error) {
	if _, err := e.ownNeed(ctx, actor, needID); err != nil {
		return nil, err
	}
	return e.store.GetOffersByNeed(ctx, needID)
}

// ListMyOffers lists the acting logistician's offers.
func (e *Engine) ListMyOffers(ctx context.Context, actor Actor, limit, offset int) ([]db.Offer, error) {
	return e.store.GetOffersByLogistician(ctx, actor.OrgID, limit, offset)
}

// ScoreOffer computes and persists the score card for one offer.
func (e *Engine) ScoreOffer(ctx context.Context, actor Actor, id string, w scoring.Weights) (*db.ScoreCard, error) {
	o, err := e.GetOffer(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	n, err := e.store.GetNeed(ctx, o.NeedID)
	if err != nil {
		return nil, mapStoreErr(err, "need", o.NeedID)
	}
	in, err := e.scoringInput(ctx, o)
	if err != nil {
		return nil, err
	}
	rivals, err := e.store.GetOffersByNeed(ctx, o.NeedID)
	if err != nil {
		return nil, err
	}
	card := scoring.ScoreOffer(n, in, livePrices(rivals), w, e.now())
	if err := e.store.SetOfferScoring(ctx, o.ID, card); err != nil {
		return nil, err
	}
	return &card, nil
}

// RankOffers scores and ranks every live offer on the need, persisting
// the score cards as a side effect.
func (e *Engine) RankOffers(ctx context.Context, actor Actor, needID string, w scoring.Weights) ([]scoring.RankedOffer, scoring.Summary, error) {
	n, err := e.ownNeed(ctx, actor, needID)
	if err != nil {
		return nil, scoring.Summary{}, err
	}
	offers, err := e.store.GetOffersByNeed(ctx, needID)
	if err != nil {
		return nil, scoring.Summary{}, err
	}
	inputs := make([]scoring.Input, 0, len(offers))
	for i := range offers {
		if db.OfferTerminal(offers[i].Status) {
			continue
		}
		in, err := e.scoringInput(ctx, &offers[i])
		if err != nil {
			return nil, scoring.Summary{}, err
		}
		inputs = append(inputs, in)
	}
	ranked, err := scoring.Rank(ctx, n, inputs, w, e.now())
	if err != nil {
		return nil, scoring.Summary{}, err
	}
	for _, r := range ranked {
		if err := e.store.SetOfferScoring(ctx, r.Offer.ID, r.Scoring); err != nil {
			return nil, scoring.Summary{}, err
		}
	}
	return ranked, scoring.Summarize(ranked), nil
}

// RecommendSites suggests compatible sites for a need that has no winner
// yet, using the need's coordinates and search radius.
func (e *Engine) RecommendSites(ctx context.Context, actor Actor, needID string, limit int) ([]scoring.SiteMatch, error) {
	n, err := e.ownNeed(ctx, actor, needID)
	if err != nil {
		return nil, err
	}
	if n.Location.Coordinates == nil {
		return nil, &ValidationError{Msg: "need has no coordinates to search around"}
	}
	radius := n.Location.MaxRadius
	if radius <= 0 {
		radius = scoring.DefaultMaxRadiusKm
	}
	center := geo.Point{
		Latitude:  n.Location.Coordinates.Latitude,
		Longitude: n.Location.Coordinates.Longitude,
	}
	minLat, maxLat, minLon, maxLon := geo.BoundingBox(center, radius)
	sites, err := e.store.GetSitesInBox(ctx, minLat, maxLat, minLon, maxLon)
	if err != nil {
		return nil, err
	}

	inRange := sites[:0]
	metrics := make(map[string]*db.Metrics)
	for i := range sites {
		coords := sites[i].Coordinates()
		if coords == nil {
			continue
		}
		d := geo.Distance(center, geo.Point{Latitude: coords.Latitude, Longitude: coords.Longitude})
		if d > radius {
			continue
		}
		inRange = append(inRange, sites[i])
		if _, ok := metrics[sites[i].LogisticianID]; !ok {
			sub, err := e.store.GetSubscriptionByLogistician(ctx, sites[i].LogisticianID)
			if err == nil {
				m := sub.Metrics
				metrics[sites[i].LogisticianID] = &m
			} else if !errors.Is(err, db.ErrNotFound) {
				return nil, err
			}
		}
	}
	matches := scoring.RankSites(n, inRange, metrics, scoring.DefaultWeights)
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (e *Engine) scoringInput(ctx context.Context, o *db.Offer) (scoring.Input, error) {
	site, err := e.store.GetSite(ctx, o.SiteID)
	if err != nil {
		return scoring.Input{}, mapStoreErr(err, "site", o.SiteID)
	}
	in := scoring.Input{Offer: o, Site: site}
	sub, err := e.store.GetSubscriptionByLogistician(ctx, o.LogisticianID)
	if err == nil {
		m := sub.Metrics
		in.Metrics = &m
	} else if !errors.Is(err, db.ErrNotFound) {
		return scoring.Input{}, err
	}
	return in, nil
}

func livePrices(offers []db.Offer) []float64 {
	prices := make([]float64, 0, len(offers))
	for _, o := range offers {
		if db.OfferTerminal(o.Status) {
			continue
		}
		prices = append(prices, o.Pricing.PricePerUnit)
	}
	return prices
}

// buyerOffer loads an offer and checks the actor owns the parent need.
func (e *Engine) buyerOffer(ctx context.Context, actor Actor, id string) (*db.Offer, error) {
	o, err := e.store.GetOffer(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err, "offer", id)
	}
	n, err := e.store.GetNeed(ctx, o.NeedID)
	if err != nil {
		return nil, mapStoreErr(err, "need", o.NeedID)
	}
	if n.OwnerOrgID != actor.OrgID {
		return nil, &ForbiddenError{Msg: "offer " + id + " answers another organization's need"}
	}
	return o, nil
}

func (e *Engine) transition(ctx context.Context, actor Actor, o *db.Offer, from []string, to, reason string) (*db.Offer, error) {
	change := db.StatusChange{Status: to, ChangedBy: actor.UserID, Reason: reason}
	if err := e.store.TransitionOffer(ctx, o.ID, from, to, change); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, &InvalidStateError{Entity: "offer", ID: o.ID, Status: o.Status, Action: "move to " + to}
		}
		return nil, err
	}
	return e.store.GetOffer(ctx, o.ID)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
