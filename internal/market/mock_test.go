package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"storagemarket/db"
)

// fakeStore is an in-memory Store honoring the same conditional-update
// guarantees as the Postgres implementation: guarded transitions return
// db.ErrConflict, duplicates db.ErrDuplicate, spent quotas
// db.ErrQuotaExceeded.
type fakeStore struct {
	mu        sync.Mutex
	now       func() time.Time
	needs     map[string]*db.Need
	offers    map[string]*db.Offer
	contracts map[string]*db.Contract
	sites     map[string]*db.Site
	subs      map[string]*db.Subscription
	refSeq    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		now:       time.Now,
		needs:     map[string]*db.Need{},
		offers:    map[string]*db.Offer{},
		contracts: map[string]*db.Contract{},
		sites:     map[string]*db.Site{},
		subs:      map[string]*db.Subscription{},
	}
}

func (f *fakeStore) nextRef(kind string) string {
	f.refSeq++
	return fmt.Sprintf("%s-%d-%05d", kind, f.now().Year(), f.refSeq)
}

func (f *fakeStore) CreateNeed(_ context.Context, n *db.Need) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.Reference = f.nextRef("STK")
	n.CreatedAt = f.now()
	n.UpdatedAt = n.CreatedAt
	cp := *n
	f.needs[n.ID] = &cp
	return nil
}

func (f *fakeStore) GetNeed(_ context.Context, id string) (*db.Need, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.needs[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (f *fakeStore) UpdateNeedDraft(_ context.Context, n *db.Need) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.needs[n.ID]
	if !ok || cur.Status != db.NeedDraft {
		return db.ErrConflict
	}
	cp := *n
	cp.Status = cur.Status
	cp.Reference = cur.Reference
	f.needs[n.ID] = &cp
	return nil
}

func (f *fakeStore) TransitionNeed(_ context.Context, id, from, to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.needs[id]
	if !ok || n.Status != from {
		return db.ErrConflict
	}
	n.Status = to
	now := f.now()
	switch to {
	case db.NeedPublished:
		n.PublishedAt = &now
	case db.NeedClosed, db.NeedCancelled:
		n.ClosedAt = &now
	}
	return nil
}

func (f *fakeStore) CloseNeed(_ context.Context, id, changedBy, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.needs[id]
	if !ok || n.Status != db.NeedPublished {
		return db.ErrConflict
	}
	n.Status = db.NeedClosed
	now := f.now()
	n.ClosedAt = &now
	f.expireOffersLocked(id, changedBy, reason)
	return nil
}

func (f *fakeStore) CancelNeed(_ context.Context, id, from, changedBy, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.needs[id]
	if !ok || n.Status != from {
		return db.ErrConflict
	}
	n.Status = db.NeedCancelled
	now := f.now()
	n.ClosedAt = &now
	if from == db.NeedPublished {
		f.expireOffersLocked(id, changedBy, reason)
	}
	return nil
}

func (f *fakeStore) expireOffersLocked(needID, changedBy, reason string) {
	for _, o := range f.offers {
		if o.NeedID == needID && !db.OfferTerminal(o.Status) {
			f.releaseSlotLocked(o.LogisticianID)
			o.Status = db.OfferExpired
			o.StatusHistory = append(o.StatusHistory, db.StatusChange{
				Status: db.OfferExpired, ChangedAt: f.now(), ChangedBy: changedBy, Reason: reason,
			})
		}
	}
}

func (f *fakeStore) DeleteNeedDraft(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.needs[id]
	if !ok || n.Status != db.NeedDraft {
		return db.ErrConflict
	}
	delete(f.needs, id)
	return nil
}

func (f *fakeStore) GetNeedsByOwner(_ context.Context, orgID string, _, _ int) ([]db.Need, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []db.Need{}
	for _, n := range f.needs {
		if n.OwnerOrgID == orgID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (f *fakeStore) GetPublishedNeeds(_ context.Context, logisticianID, storageType string, _, _ int) ([]db.Need, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []db.Need{}
	for _, n := range f.needs {
		if n.Status != db.NeedPublished || !n.Deadline.After(f.now()) {
			continue
		}
		if n.PublicationType == db.PublicationReferredOnly && !contains(n.ReferredLogisticians, logisticianID) {
			continue
		}
		if storageType != "" && n.StorageType != storageType {
			continue
		}
		out = append(out, *n)
	}
	return out, nil
}

func (f *fakeStore) CreateOffer(_ context.Context, o *db.Offer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.needs[o.NeedID]
	if !ok || n.Status != db.NeedPublished || !n.Deadline.After(f.now()) {
		return db.ErrConflict
	}
	sub, ok := f.subs[o.LogisticianID]
	if ok {
		if sub.LastResetDate.Before(f.now().Add(-30 * 24 * time.Hour)) {
			sub.MonthlyResponses = 0
			sub.LastResetDate = f.now()
		}
		if limited(sub.MonthlyResponses, sub.Limits.MaxMonthlyResponses) ||
			limited(sub.ActiveOffers, sub.Limits.MaxActiveOffers) {
			return db.ErrQuotaExceeded
		}
	}
	for _, other := range f.offers {
		if other.NeedID == o.NeedID && other.LogisticianID == o.LogisticianID && !db.OfferTerminal(other.Status) {
			return db.ErrDuplicate
		}
	}
	if sub != nil {
		sub.MonthlyResponses++
		sub.ActiveOffers++
	}
	n.OffersCount++
	o.SubmittedAt = f.now()
	o.CreatedAt = o.SubmittedAt
	o.UpdatedAt = o.SubmittedAt
	cp := *o
	f.offers[o.ID] = &cp
	return nil
}

func limited(current, max int) bool {
	return max != -1 && current >= max
}

func (f *fakeStore) GetOffer(_ context.Context, id string) (*db.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.offers[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) GetOffersByNeed(_ context.Context, needID string) ([]db.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []db.Offer{}
	for _, o := range f.offers {
		if o.NeedID == needID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeStore) GetOffersByLogistician(_ context.Context, logisticianID string, _, _ int) ([]db.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []db.Offer{}
	for _, o := range f.offers {
		if o.LogisticianID == logisticianID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeStore) TransitionOffer(_ context.Context, id string, from []string, to string, change db.StatusChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transitionOfferLocked(id, from, to, change)
}

func (f *fakeStore) transitionOfferLocked(id string, from []string, to string, change db.StatusChange) error {
	o, ok := f.offers[id]
	if !ok || !contains(from, o.Status) {
		return db.ErrConflict
	}
	o.Status = to
	change.Status = to
	change.ChangedAt = f.now()
	o.StatusHistory = append(o.StatusHistory, change)
	now := f.now()
	switch to {
	case db.OfferUnderReview:
		o.ReviewedAt = &now
	case db.OfferAccepted, db.OfferRejected, db.OfferWithdrawn:
		o.DecidedAt = &now
	}
	if db.OfferTerminal(to) {
		f.releaseSlotLocked(o.LogisticianID)
	}
	return nil
}

func (f *fakeStore) releaseSlotLocked(logisticianID string) {
	if sub, ok := f.subs[logisticianID]; ok && sub.ActiveOffers > 0 {
		sub.ActiveOffers--
	}
}

func (f *fakeStore) UpdateOfferTerms(_ context.Context, o *db.Offer, from []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.offers[o.ID]
	if !ok || !contains(from, cur.Status) {
		return db.ErrConflict
	}
	cur.ProposedCapacity = o.ProposedCapacity
	cur.ProposedStartDate = o.ProposedStartDate
	cur.ProposedEndDate = o.ProposedEndDate
	cur.Pricing = o.Pricing
	cur.IncludedServices = o.IncludedServices
	cur.Message = o.Message
	cur.CounterOffer = o.CounterOffer
	cur.Status = o.Status
	cur.StatusHistory = o.StatusHistory
	return nil
}

func (f *fakeStore) SetOfferScoring(_ context.Context, id string, sc db.ScoreCard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.offers[id]
	if !ok {
		return db.ErrNotFound
	}
	o.Scoring = sc
	return nil
}

func (f *fakeStore) AcceptOffer(_ context.Context, needID, offerID, changedBy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.needs[needID]
	if !ok || n.Status != db.NeedPublished {
		return db.ErrConflict
	}
	if err := f.transitionOfferLocked(offerID, db.NonTerminalOfferStatuses,
		db.OfferAccepted, db.StatusChange{ChangedBy: changedBy}); err != nil {
		return err
	}
	n.Status = db.NeedAttributed
	now := f.now()
	n.AttributedAt = &now
	n.AttributedOfferID = offerID
	for id, o := range f.offers {
		if o.NeedID == needID && id != offerID && !db.OfferTerminal(o.Status) {
			f.transitionOfferLocked(id, db.NonTerminalOfferStatuses, db.OfferRejected,
				db.StatusChange{ChangedBy: changedBy, Reason: "another offer accepted"})
		}
	}
	return nil
}

func (f *fakeStore) CreateContract(_ context.Context, c *db.Contract) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, other := range f.contracts {
		if other.OfferID == c.OfferID {
			return db.ErrDuplicate
		}
	}
	c.Reference = f.nextRef("CTR")
	c.CreatedAt = f.now()
	c.UpdatedAt = c.CreatedAt
	c.Signatures = []db.Signature{}
	cp := *c
	f.contracts[c.ID] = &cp
	return nil
}

func (f *fakeStore) GetContract(_ context.Context, id string) (*db.Contract, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contracts[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *c
	cp.Signatures = append([]db.Signature{}, c.Signatures...)
	return &cp, nil
}

func (f *fakeStore) GetContractsByParty(_ context.Context, orgID, status string, _, _ int) ([]db.Contract, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []db.Contract{}
	for _, c := range f.contracts {
		if (c.ClientOrgID == orgID || c.LogisticianID == orgID) &&
			(status == "" || c.Status == status) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeStore) TransitionContract(_ context.Context, id string, from []string, to string, change db.StatusChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contracts[id]
	if !ok || !contains(from, c.Status) {
		return db.ErrConflict
	}
	c.Status = to
	change.Status = to
	change.ChangedAt = f.now()
	c.StatusHistory = append(c.StatusHistory, change)
	return nil
}

func (f *fakeStore) SignContract(_ context.Context, contractID string, sig db.Signature, billing db.Billing) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contracts[contractID]
	if !ok {
		return false, db.ErrNotFound
	}
	present := false
	for _, s := range c.Signatures {
		if s.Party == sig.Party {
			present = true
		}
	}
	if !present {
		sig.ContractID = contractID
		sig.SignedAt = f.now()
		c.Signatures = append(c.Signatures, sig)
	}
	if len(c.Signatures) == 2 && c.Status == db.ContractPendingSignature {
		c.Status = db.ContractActive
		c.Billing = billing
		c.StatusHistory = append(c.StatusHistory, db.StatusChange{
			Status: db.ContractActive, ChangedAt: f.now(), Reason: "both parties signed",
		})
		return true, nil
	}
	return false, nil
}

func (f *fakeStore) UpdateContractDraft(_ context.Context, c *db.Contract) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.contracts[c.ID]
	if !ok || cur.Status != db.ContractDraft {
		return db.ErrConflict
	}
	cur.Capacity = c.Capacity
	cur.Pricing = c.Pricing
	cur.StartDate = c.StartDate
	cur.EndDate = c.EndDate
	cur.Services = c.Services
	cur.PaymentTerms = c.PaymentTerms
	cur.CancellationPolicy = c.CancellationPolicy
	return nil
}

func (f *fakeStore) UpdateContractAmendments(_ context.Context, id string, amendments db.Amendments, priorCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contracts[id]
	if !ok || c.Status != db.ContractActive || len(c.Amendments) != priorCount {
		return db.ErrConflict
	}
	c.Amendments = amendments
	return nil
}

func (f *fakeStore) UpdateContractExecution(_ context.Context, id string, exec db.Execution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contracts[id]
	if !ok || (c.Status != db.ContractActive && c.Status != db.ContractSuspended) {
		return db.ErrConflict
	}
	c.Execution = exec
	return nil
}

func (f *fakeStore) CreateSite(_ context.Context, site *db.Site) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sub, ok := f.subs[site.LogisticianID]; ok {
		if limited(sub.ActiveSites, sub.Limits.MaxSites) {
			return db.ErrQuotaExceeded
		}
		sub.ActiveSites++
	}
	site.LastCapacityUpdate = f.now()
	site.CreatedAt = f.now()
	site.UpdatedAt = f.now()
	cp := *site
	f.sites[site.ID] = &cp
	return nil
}

func (f *fakeStore) GetSite(_ context.Context, id string) (*db.Site, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sites[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) GetSitesByLogistician(_ context.Context, logisticianID string) ([]db.Site, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []db.Site{}
	for _, s := range f.sites {
		if s.LogisticianID == logisticianID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateSite(_ context.Context, site *db.Site) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.sites[site.ID]
	if !ok || !cur.Active {
		return db.ErrConflict
	}
	cp := *site
	cp.Active = true
	cp.LogisticianID = cur.LogisticianID
	f.sites[site.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateSiteCapacity(_ context.Context, id string, available db.Volume) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sites[id]
	if !ok || !s.Active {
		return db.ErrConflict
	}
	s.AvailableCapacity = available
	s.LastCapacityUpdate = f.now()
	return nil
}

func (f *fakeStore) ReserveSiteCapacity(_ context.Context, id string, quantity float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sites[id]
	if !ok || !s.Active || s.AvailableCapacity.Quantity < quantity {
		return db.ErrConflict
	}
	s.AvailableCapacity.Quantity -= quantity
	s.ReservedCapacity.Quantity += quantity
	s.ReservedCapacity.Unit = s.AvailableCapacity.Unit
	return nil
}

func (f *fakeStore) DeactivateSite(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sites[id]
	if !ok || !s.Active {
		return db.ErrConflict
	}
	s.Active = false
	if sub, ok := f.subs[s.LogisticianID]; ok && sub.ActiveSites > 0 {
		sub.ActiveSites--
	}
	return nil
}

func (f *fakeStore) SearchSites(_ context.Context, country, region, storageType string, minCapacity float64, _, _ int) ([]db.Site, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []db.Site{}
	for _, s := range f.sites {
		if !s.Active {
			continue
		}
		if country != "" && s.Country != country {
			continue
		}
		if region != "" && s.Region != region {
			continue
		}
		if storageType != "" && !contains(s.StorageTypes, storageType) {
			continue
		}
		if s.AvailableCapacity.Quantity < minCapacity {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeStore) GetSitesInBox(_ context.Context, minLat, maxLat, minLon, maxLon float64) ([]db.Site, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []db.Site{}
	for _, s := range f.sites {
		if !s.Active || s.Latitude == nil || s.Longitude == nil {
			continue
		}
		if *s.Latitude < minLat || *s.Latitude > maxLat ||
			*s.Longitude < minLon || *s.Longitude > maxLon {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeStore) CreateSubscription(_ context.Context, sub *db.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[sub.LogisticianID]; ok {
		return db.ErrDuplicate
	}
	sub.LastResetDate = f.now()
	sub.CreatedAt = f.now()
	sub.UpdatedAt = f.now()
	cp := *sub
	f.subs[sub.LogisticianID] = &cp
	return nil
}

func (f *fakeStore) GetSubscriptionByLogistician(_ context.Context, logisticianID string) (*db.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[logisticianID]
	if !ok {
		return nil, db.ErrNotFound
	}
	if sub.LastResetDate.Before(f.now().Add(-30 * 24 * time.Hour)) {
		sub.MonthlyResponses = 0
		sub.LastResetDate = f.now()
	}
	cp := *sub
	return &cp, nil
}

func (f *fakeStore) ChangeSubscriptionTier(_ context.Context, sub *db.Subscription, fromTier string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.subs[sub.LogisticianID]
	if !ok || cur.Tier != fromTier {
		return db.ErrConflict
	}
	cur.Tier = sub.Tier
	cur.Pricing = sub.Pricing
	cur.Limits = sub.Limits
	cur.Features = sub.Features
	cur.TrialEndDate = sub.TrialEndDate
	cur.TierHistory = sub.TierHistory
	cur.Status = sub.Status
	cur.StatusReason = sub.StatusReason
	return nil
}

func (f *fakeStore) CancelSubscription(_ context.Context, logisticianID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[logisticianID]
	if !ok || sub.Status == "cancelled" {
		return db.ErrConflict
	}
	sub.Status = "cancelled"
	sub.StatusReason = reason
	sub.AutoRenew = false
	return nil
}

func (f *fakeStore) UpdateSubscriptionMetrics(_ context.Context, logisticianID string, m db.Metrics) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[logisticianID]
	if !ok {
		return db.ErrNotFound
	}
	sub.Metrics = m
	return nil
}

func (f *fakeStore) GetSubscriptionsByTier(_ context.Context, tier string, _, _ int) ([]db.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []db.Subscription{}
	for _, sub := range f.subs {
		if sub.Tier == tier && sub.Status == "active" {
			out = append(out, *sub)
		}
	}
	return out, nil
}
