package market

import (
	"context"
	"time"

	"storagemarket/db"
)

// Store is the persistence surface the engine runs on. *db.Storage
// implements it; tests substitute a mock.
type Store interface {
	CreateNeed(ctx context.Context, n *db.Need) error
	GetNeed(ctx context.Context, id string) (*db.Need, error)
	UpdateNeedDraft(ctx context.Context, n *db.Need) error
	TransitionNeed(ctx context.Context, id, from, to string) error
	CloseNeed(ctx context.Context, id, changedBy, reason string) error
	CancelNeed(ctx context.Context, id, from, changedBy, reason string) error
	DeleteNeedDraft(ctx context.Context, id string) error
	GetNeedsByOwner(ctx context.Context, orgID string, limit, offset int) ([]db.Need, error)
	GetPublishedNeeds(ctx context.Context, logisticianID, storageType string, limit, offset int) ([]db.Need, error)

	CreateOffer(ctx context.Context, o *db.Offer) error
	GetOffer(ctx context.Context, id string) (*db.Offer, error)
	GetOffersByNeed(ctx context.Context, needID string) ([]db.Offer, error)
	GetOffersByLogistician(ctx context.Context, logisticianID string, limit, offset int) ([]db.Offer, error)
	TransitionOffer(ctx context.Context, id string, from []string, to string, change db.StatusChange) error
	UpdateOfferTerms(ctx context.Context, o *db.Offer, from []string) error
	SetOfferScoring(ctx context.Context, id string, sc db.ScoreCard) error
	AcceptOffer(ctx context.Context, needID, offerID, changedBy string) error

	CreateContract(ctx context.Context, c *db.Contract) error
	GetContract(ctx context.Context, id string) (*db.Contract, error)
	GetContractsByParty(ctx context.Context, orgID, status string, limit, offset int) ([]db.Contract, error)
	TransitionContract(ctx context.Context, id string, from []string, to string, change db.StatusChange) error
	SignContract(ctx context.Context, contractID string, sig db.Signature, billing db.Billing) (bool, error)
	UpdateContractDraft(ctx context.Context, c *db.Contract) error
	UpdateContractAmendments(ctx context.Context, id string, amendments db.Amendments, priorCount int) error
	UpdateContractExecution(ctx context.Context, id string, exec db.Execution) error

	CreateSite(ctx context.Context, site *db.Site) error
	GetSite(ctx context.Context, id string) (*db.Site, error)
	GetSitesByLogistician(ctx context.Context, logisticianID string) ([]db.Site, error)
	UpdateSite(ctx context.Context, site *db.Site) error
	UpdateSiteCapacity(ctx context.Context, id string, available db.Volume) error
	ReserveSiteCapacity(ctx context.Context, id string, quantity float64) error
	DeactivateSite(ctx context.Context, id string) error
	SearchSites(ctx context.Context, country, region, storageType string, minCapacity float64, limit, offset int) ([]db.Site, error)
	GetSitesInBox(ctx context.Context, minLat, maxLat, minLon, maxLon float64) ([]db.Site, error)

	CreateSubscription(ctx context.Context, sub *db.Subscription) error
	GetSubscriptionByLogistician(ctx context.Context, logisticianID string) (*db.Subscription, error)
	ChangeSubscriptionTier(ctx context.Context, sub *db.Subscription, fromTier string) error
	CancelSubscription(ctx context.Context, logisticianID, reason string) error
	UpdateSubscriptionMetrics(ctx context.Context, logisticianID string, m db.Metrics) error
	GetSubscriptionsByTier(ctx context.Context, tier string, limit, offset int) ([]db.Subscription, error)
}

// Actor identifies the caller on every engine operation. It arrives
// pre-authenticated; the engine only uses it for ownership checks and
// audit fields.
type Actor struct {
	OrgID   string
	OrgName string
	UserID  string
	Type    string
}

// Actor types.
const (
	ActorIndustrial  = "industrial"
	ActorLogistician = "logistician"
)

// Policy carries the deployment-level behavior switches.
type Policy struct {
	// ReserveCapacity subtracts a contract's volume from its site's
	// available capacity when the contract activates.
	ReserveCapacity bool
}

// Engine implements the marketplace operations over a Store. It holds no
// entity state of its own; every operation re-reads and conditionally
// updates through the store.
type Engine struct {
	store  Store
	policy Policy
	now    func() time.Time
}

// NewEngine creates an Engine with the given policy.
func NewEngine(store Store, policy Policy) *Engine {
	return &Engine{store: store, policy: policy, now: time.Now}
}

// initialBillingDate is the first billing date of an activated contract.
func initialBillingDate(start time.Time) time.Time {
	return start.AddDate(0, 0, 30)
}
