package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Need statuses
const (
	NeedDraft      = "DRAFT"
	NeedPublished  = "PUBLISHED"
	NeedClosed     = "CLOSED"
	NeedAttributed = "ATTRIBUTED"
	NeedCancelled  = "CANCELLED"
)

// Publication modes
const (
	PublicationGlobal       = "GLOBAL"
	PublicationReferredOnly = "REFERRED_ONLY"
	PublicationMixed        = "MIXED"
)

// Offer statuses
const (
	OfferSubmitted    = "submitted"
	OfferUnderReview  = "under_review"
	OfferShortlisted  = "shortlisted"
	OfferAccepted     = "accepted"
	OfferRejected     = "rejected"
	OfferWithdrawn    = "withdrawn"
	OfferExpired      = "expired"
	OfferCounterOffer = "counter_offer"
)

// Counter-offer sub-statuses
const (
	CounterPending  = "pending"
	CounterAccepted = "accepted"
	CounterRejected = "rejected"
)

// Contract statuses
const (
	ContractDraft            = "draft"
	ContractPendingSignature = "pending_signature"
	ContractActive           = "active"
	ContractSuspended        = "suspended"
	ContractTerminated       = "terminated"
	ContractCompleted        = "completed"
	ContractDisputed         = "disputed"
)

// Signature parties
const (
	PartyClient      = "client"
	PartyLogistician = "logistician"
)

// Subscription tiers
const (
	TierGuest      = "guest"
	TierSubscriber = "subscriber"
	TierPremium    = "premium"
)

// OfferTerminal reports whether an offer status permits no further transitions.
func OfferTerminal(status string) bool {
	switch status {
	case OfferAccepted, OfferRejected, OfferWithdrawn, OfferExpired:
		return true
	}
	return false
}

// NonTerminalOfferStatuses lists statuses of offers still in play for a need.
var NonTerminalOfferStatuses = []string{
	OfferSubmitted, OfferUnderReview, OfferShortlisted, OfferCounterOffer,
}

func scanJSON(src interface{}, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("db: cannot scan %T into %T", src, dest)
	}
}

// Coordinates is a WGS84 point.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Volume is a storage quantity with its unit (sqm, pallets, linear_meters, cbm).
type Volume struct {
	Unit       string  `json:"unit"`
	Quantity   float64 `json:"quantity"`
	PalletType string  `json:"palletType,omitempty"`
}

func (v Volume) Value() (driver.Value, error) { return json.Marshal(v) }
func (v *Volume) Scan(src interface{}) error  { return scanJSON(src, v) }

// Location is where a need wants storage; MaxRadius is in kilometers.
type Location struct {
	Country     string       `json:"country"`
	Region      string       `json:"region,omitempty"`
	City        string       `json:"city,omitempty"`
	PostalCode  string       `json:"postalCode,omitempty"`
	Address     string       `json:"address,omitempty"`
	MaxRadius   float64      `json:"maxRadius,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

func (l Location) Value() (driver.Value, error) { return json.Marshal(l) }
func (l *Location) Scan(src interface{}) error  { return scanJSON(src, l) }

// DateWindow is the requested storage period.
type DateWindow struct {
	StartDate      time.Time  `json:"startDate"`
	EndDate        *time.Time `json:"endDate,omitempty"`
	DurationMonths int        `json:"durationMonths,omitempty"`
	Flexible       bool       `json:"flexible"`
	Renewable      bool       `json:"renewable"`
}

func (w DateWindow) Value() (driver.Value, error) { return json.Marshal(w) }
func (w *DateWindow) Scan(src interface{}) error  { return scanJSON(src, w) }

// TemperatureRange in degrees Celsius.
type TemperatureRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Constraints carries the need's storage requirements.
type Constraints struct {
	Temperature      string            `json:"temperature,omitempty"`
	TemperatureRange *TemperatureRange `json:"temperatureRange,omitempty"`
	ADRRequired      bool              `json:"adrRequired"`
	ADRClasses       []string          `json:"adrClasses,omitempty"`
	CustomsRequired  bool              `json:"customsRequired"`
	SecurityLevel    string            `json:"securityLevel,omitempty"`
	Certifications   []string          `json:"certifications,omitempty"`
}

func (c Constraints) Value() (driver.Value, error) { return json.Marshal(c) }
func (c *Constraints) Scan(src interface{}) error  { return scanJSON(src, c) }

// Budget is the need's indicative budget; zero Currency means no budget given.
type Budget struct {
	Indicative float64 `json:"indicative,omitempty"`
	MaxBudget  float64 `json:"maxBudget,omitempty"`
	Currency   string  `json:"currency"`
	Period     string  `json:"period,omitempty"`
	Negotiable bool    `json:"negotiable"`
}

func (b Budget) Value() (driver.Value, error) {
	if b.Currency == "" {
		return nil, nil
	}
	return json.Marshal(b)
}
func (b *Budget) Scan(src interface{}) error { return scanJSON(src, b) }

// StringList is a JSONB-stored list of strings.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(l)
}
func (l *StringList) Scan(src interface{}) error { return scanJSON(src, l) }

// Need is a published storage requirement from an industrial organization.
type Need struct {
	ID                   string      `db:"id" json:"id"`
	Reference            string      `db:"reference" json:"reference"`
	OwnerOrgID           string      `db:"owner_org_id" json:"ownerOrgId"`
	OwnerOrgName         string      `db:"owner_org_name" json:"ownerOrgName"`
	StorageType          string      `db:"storage_type" json:"storageType"`
	Volume               Volume      `db:"volume" json:"volume"`
	Window               DateWindow  `db:"date_window" json:"window"`
	Location             Location    `db:"location" json:"location"`
	Constraints          Constraints `db:"constraints" json:"constraints"`
	RequestedServices    StringList  `db:"requested_services" json:"requestedServices"`
	Budget               Budget      `db:"budget" json:"budget,omitempty"`
	PublicationType      string      `db:"publication_type" json:"publicationType"`
	ReferredLogisticians StringList  `db:"referred_logisticians" json:"referredLogisticians,omitempty"`
	Deadline             time.Time   `db:"deadline" json:"deadline"`
	Status               string      `db:"status" json:"status"`
	PublishedAt          *time.Time  `db:"published_at" json:"publishedAt,omitempty"`
	ClosedAt             *time.Time  `db:"closed_at" json:"closedAt,omitempty"`
	AttributedAt         *time.Time  `db:"attributed_at" json:"attributedAt,omitempty"`
	AttributedOfferID    string      `db:"attributed_offer_id" json:"attributedOfferId,omitempty"`
	OffersCount          int         `db:"offers_count" json:"offersCount"`
	CreatedAt            time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time   `db:"updated_at" json:"updatedAt"`
}

// Pricing is an offer's (and later a contract's) commercial terms.
type Pricing struct {
	PricePerUnit     float64    `json:"pricePerUnit"`
	Unit             string     `json:"unit"`
	Currency         string     `json:"currency"`
	SetupFees        float64    `json:"setupFees,omitempty"`
	HandlingFees     float64    `json:"handlingFees,omitempty"`
	MovementPriceIn  float64    `json:"movementPriceIn,omitempty"`
	MovementPriceOut float64    `json:"movementPriceOut,omitempty"`
	MinimumBilling   float64    `json:"minimumBilling,omitempty"`
	ValidUntil       *time.Time `json:"validUntil,omitempty"`
}

func (p Pricing) Value() (driver.Value, error) { return json.Marshal(p) }
func (p *Pricing) Scan(src interface{}) error  { return scanJSON(src, p) }

// ScoreCard is the scoring snapshot persisted on an offer.
// Zero ComputedAt means the offer has not been scored yet.
type ScoreCard struct {
	GlobalScore        int       `json:"globalScore"`
	PriceScore         int       `json:"priceScore"`
	LocationScore      int       `json:"locationScore"`
	CapacityScore      int       `json:"capacityScore"`
	ServiceScore       int       `json:"serviceScore"`
	ReliabilityScore   int       `json:"reliabilityScore"`
	CertificationScore int       `json:"certificationScore"`
	ComputedAt         time.Time `json:"computedAt"`
}

func (s ScoreCard) Value() (driver.Value, error) {
	if s.ComputedAt.IsZero() {
		return nil, nil
	}
	return json.Marshal(s)
}
func (s *ScoreCard) Scan(src interface{}) error { return scanJSON(src, s) }

// CounterOffer is the buyer's revision request embedded in an offer,
// replaced wholesale on every transition. Zero Status means none.
type CounterOffer struct {
	RequestedChanges string     `json:"requestedChanges"`
	NewPricing       *Pricing   `json:"newPricing,omitempty"`
	NewStartDate     *time.Time `json:"newStartDate,omitempty"`
	NewEndDate       *time.Time `json:"newEndDate,omitempty"`
	Message          string     `json:"message,omitempty"`
	Status           string     `json:"status"`
	CreatedAt        time.Time  `json:"createdAt"`
	RespondedAt      *time.Time `json:"respondedAt,omitempty"`
}

func (c CounterOffer) Value() (driver.Value, error) {
	if c.Status == "" {
		return nil, nil
	}
	return json.Marshal(c)
}
func (c *CounterOffer) Scan(src interface{}) error { return scanJSON(src, c) }

// StatusChange is one entry of an entity's append-only status history.
type StatusChange struct {
	Status    string    `json:"status"`
	ChangedAt time.Time `json:"changedAt"`
	ChangedBy string    `json:"changedBy,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// StatusHistory is an append-only log replaced wholesale on each transition.
type StatusHistory []StatusChange

func (h StatusHistory) Value() (driver.Value, error) {
	if h == nil {
		return json.Marshal([]StatusChange{})
	}
	return json.Marshal(h)
}
func (h *StatusHistory) Scan(src interface{}) error { return scanJSON(src, h) }

// Offer is a logistician's proposal against a need, bound to one site.
type Offer struct {
	ID                string        `db:"id" json:"id"`
	NeedID            string        `db:"need_id" json:"needId"`
	NeedReference     string        `db:"need_reference" json:"needReference"`
	LogisticianID     string        `db:"logistician_id" json:"logisticianId"`
	LogisticianName   string        `db:"logistician_name" json:"logisticianName"`
	SiteID            string        `db:"site_id" json:"siteId"`
	SiteName          string        `db:"site_name" json:"siteName"`
	ProposedCapacity  Volume        `db:"proposed_capacity" json:"proposedCapacity"`
	ProposedStartDate time.Time     `db:"proposed_start_date" json:"proposedStartDate"`
	ProposedEndDate   *time.Time    `db:"proposed_end_date" json:"proposedEndDate,omitempty"`
	Pricing           Pricing       `db:"pricing" json:"pricing"`
	IncludedServices  StringList    `db:"included_services" json:"includedServices"`
	Message           string        `db:"message" json:"message,omitempty"`
	Scoring           ScoreCard     `db:"scoring" json:"scoring,omitempty"`
	CounterOffer      CounterOffer  `db:"counter_offer" json:"counterOffer,omitempty"`
	Status            string        `db:"status" json:"status"`
	SubmittedAt       time.Time     `db:"submitted_at" json:"submittedAt"`
	ReviewedAt        *time.Time    `db:"reviewed_at" json:"reviewedAt,omitempty"`
	DecidedAt         *time.Time    `db:"decided_at" json:"decidedAt,omitempty"`
	StatusHistory     StatusHistory `db:"status_history" json:"statusHistory"`
	CreatedAt         time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updatedAt"`
}

// Signature is one party's signature on a contract, stored as a child row
// so that append-if-absent is enforced by a unique index.
type Signature struct {
	ContractID string    `db:"contract_id" json:"-"`
	Party      string    `db:"party" json:"party"`
	SignedBy   string    `db:"signed_by" json:"signedBy"`
	SignedAt   time.Time `db:"signed_at" json:"signedAt"`
	Method     string    `db:"method" json:"method"`
}

// Amendment is an additive, versioned change to contractual terms.
type Amendment struct {
	Reference     string                 `json:"reference"`
	Description   string                 `json:"description"`
	Changes       map[string]interface{} `json:"changes,omitempty"`
	EffectiveDate time.Time              `json:"effectiveDate"`
	Status        string                 `json:"status"`
	CreatedAt     time.Time              `json:"createdAt"`
}

// Amendments is the contract's amendment log.
type Amendments []Amendment

func (a Amendments) Value() (driver.Value, error) {
	if a == nil {
		return json.Marshal([]Amendment{})
	}
	return json.Marshal(a)
}
func (a *Amendments) Scan(src interface{}) error { return scanJSON(src, a) }

// Incident is an execution incident reported against an active contract.
type Incident struct {
	Date        time.Time  `json:"date"`
	Type        string     `json:"type"`
	Description string     `json:"description"`
	Resolved    bool       `json:"resolved"`
	ResolvedAt  *time.Time `json:"resolvedAt,omitempty"`
}

// Execution tracks occupancy and incidents for an active contract.
// Zero OccupancyUpdatedAt means execution tracking has not started.
type Execution struct {
	CurrentOccupancy   Volume     `json:"currentOccupancy"`
	OccupancyUpdatedAt time.Time  `json:"occupancyUpdatedAt"`
	TotalMovements     int        `json:"totalMovements"`
	LastMovementAt     *time.Time `json:"lastMovementAt,omitempty"`
	Incidents          []Incident `json:"incidents"`
}

func (e Execution) Value() (driver.Value, error) {
	if e.OccupancyUpdatedAt.IsZero() && e.TotalMovements == 0 && len(e.Incidents) == 0 {
		return nil, nil
	}
	return json.Marshal(e)
}
func (e *Execution) Scan(src interface{}) error { return scanJSON(src, e) }

// Billing is the contract's billing schedule, initialized on activation.
type Billing struct {
	Cycle           string    `json:"cycle"`
	NextBillingDate time.Time `json:"nextBillingDate"`
	TotalBilled     float64   `json:"totalBilled"`
	TotalPaid       float64   `json:"totalPaid"`
}

func (b Billing) Value() (driver.Value, error) {
	if b.Cycle == "" {
		return nil, nil
	}
	return json.Marshal(b)
}
func (b *Billing) Scan(src interface{}) error { return scanJSON(src, b) }

// Contract is the binding agreement instantiated from an accepted offer.
// Commercial terms are snapshots taken at creation time, never references.
type Contract struct {
	ID                 string        `db:"id" json:"id"`
	Reference          string        `db:"reference" json:"reference"`
	NeedID             string        `db:"need_id" json:"needId"`
	NeedReference      string        `db:"need_reference" json:"needReference"`
	OfferID            string        `db:"offer_id" json:"offerId"`
	ClientOrgID        string        `db:"client_org_id" json:"clientOrgId"`
	ClientName         string        `db:"client_name" json:"clientName"`
	LogisticianID      string        `db:"logistician_id" json:"logisticianId"`
	LogisticianName    string        `db:"logistician_name" json:"logisticianName"`
	SiteID             string        `db:"site_id" json:"siteId"`
	SiteName           string        `db:"site_name" json:"siteName"`
	StorageType        string        `db:"storage_type" json:"storageType"`
	Capacity           Volume        `db:"capacity" json:"capacity"`
	Pricing            Pricing       `db:"pricing" json:"pricing"`
	StartDate          time.Time     `db:"start_date" json:"startDate"`
	EndDate            *time.Time    `db:"end_date" json:"endDate,omitempty"`
	Services           StringList    `db:"services" json:"services"`
	PaymentTerms       string        `db:"payment_terms" json:"paymentTerms"`
	CancellationPolicy string        `db:"cancellation_policy" json:"cancellationPolicy"`
	Status             string        `db:"status" json:"status"`
	StatusHistory      StatusHistory `db:"status_history" json:"statusHistory"`
	Amendments         Amendments    `db:"amendments" json:"amendments,omitempty"`
	Execution          Execution     `db:"execution" json:"execution,omitempty"`
	Billing            Billing       `db:"billing" json:"billing,omitempty"`
	Signatures         []Signature   `db:"-" json:"signatures"`
	CreatedAt          time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updatedAt"`
}

// SiteRates is a site's indicative price list.
type SiteRates struct {
	PricePerSqmMonth    float64 `json:"pricePerSqmMonth,omitempty"`
	PricePerPalletMonth float64 `json:"pricePerPalletMonth,omitempty"`
	PricePerMovement    float64 `json:"pricePerMovement,omitempty"`
	SetupFees           float64 `json:"setupFees,omitempty"`
	Currency            string  `json:"currency"`
}

func (r SiteRates) Value() (driver.Value, error) { return json.Marshal(r) }
func (r *SiteRates) Scan(src interface{}) error  { return scanJSON(src, r) }

// Site is a logistician's physical capacity unit. Sites are deactivated,
// never deleted, so offers and contracts keep valid references.
type Site struct {
	ID                    string       `db:"id" json:"id"`
	LogisticianID         string       `db:"logistician_id" json:"logisticianId"`
	LogisticianName       string       `db:"logistician_name" json:"logisticianName"`
	Name                  string       `db:"name" json:"name"`
	Address               string       `db:"address" json:"address"`
	City                  string       `db:"city" json:"city"`
	PostalCode            string       `db:"postal_code" json:"postalCode"`
	Region                string       `db:"region" json:"region"`
	Country               string       `db:"country" json:"country"`
	Latitude              *float64     `db:"latitude" json:"latitude,omitempty"`
	Longitude             *float64     `db:"longitude" json:"longitude,omitempty"`
	TotalCapacity         Volume       `db:"total_capacity" json:"totalCapacity"`
	AvailableCapacity     Volume       `db:"available_capacity" json:"availableCapacity"`
	ReservedCapacity      Volume       `db:"reserved_capacity" json:"reservedCapacity,omitempty"`
	StorageTypes          StringList   `db:"storage_types" json:"storageTypes"`
	TemperatureConditions StringList   `db:"temperature_conditions" json:"temperatureConditions"`
	CeilingHeight         float64      `db:"ceiling_height" json:"ceilingHeight"`
	DocksCount            int          `db:"docks_count" json:"docksCount"`
	HandlingEquipment     StringList   `db:"handling_equipment" json:"handlingEquipment"`
	SecurityFeatures      StringList   `db:"security_features" json:"securityFeatures"`
	Certifications        StringList   `db:"certifications" json:"certifications"`
	ADRAuthorized         bool         `db:"adr_authorized" json:"adrAuthorized"`
	ADRClasses            StringList   `db:"adr_classes" json:"adrClasses,omitempty"`
	CustomsAuthorized     bool         `db:"customs_authorized" json:"customsAuthorized"`
	WMSSystem             string       `db:"wms_system" json:"wmsSystem,omitempty"`
	APIAvailable          bool         `db:"api_available" json:"apiAvailable"`
	RealTimeTracking      bool         `db:"real_time_tracking" json:"realTimeTracking"`
	Rates                 SiteRates    `db:"rates" json:"rates"`
	Active                bool         `db:"active" json:"active"`
	Verified              bool         `db:"verified" json:"verified"`
	LastCapacityUpdate    time.Time    `db:"last_capacity_update" json:"lastCapacityUpdate"`
	CreatedAt             time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt             time.Time    `db:"updated_at" json:"updatedAt"`
}

// Coordinates returns the site's position, or nil when not geocoded.
func (s *Site) Coordinates() *Coordinates {
	if s.Latitude == nil || s.Longitude == nil {
		return nil
	}
	return &Coordinates{Latitude: *s.Latitude, Longitude: *s.Longitude}
}

// Limits is the tier-derived entitlement record; -1 means unlimited.
// Limits are always derived whole from the tier, never patched.
type Limits struct {
	MaxSites            int    `json:"maxSites"`
	MaxActiveOffers     int    `json:"maxActiveOffers"`
	MaxMonthlyResponses int    `json:"maxMonthlyResponses"`
	APIAccess           bool   `json:"apiAccess"`
	PrioritySupport     bool   `json:"prioritySupport"`
	FeaturedListing     bool   `json:"featuredListing"`
	AnalyticsAccess     string `json:"analyticsAccess"`
}

func (l Limits) Value() (driver.Value, error) { return json.Marshal(l) }
func (l *Limits) Scan(src interface{}) error  { return scanJSON(src, l) }

// Features is the tier-derived feature-flag set.
type Features struct {
	RealTimeNotifications bool `json:"realTimeNotifications"`
	AIRecommendations     bool `json:"aiRecommendations"`
	CustomBranding        bool `json:"customBranding"`
	DedicatedAccount      bool `json:"dedicatedAccount"`
	WMSIntegration        bool `json:"wmsIntegration"`
	BulkOperations        bool `json:"bulkOperations"`
	ExportReports         bool `json:"exportReports"`
}

func (f Features) Value() (driver.Value, error) { return json.Marshal(f) }
func (f *Features) Scan(src interface{}) error  { return scanJSON(src, f) }

// TierPricing is the tier-derived fee schedule.
type TierPricing struct {
	MonthlyFee     float64 `json:"monthlyFee"`
	AnnualFee      float64 `json:"annualFee,omitempty"`
	Currency       string  `json:"currency"`
	BillingCycle   string  `json:"billingCycle"`
	CommissionRate float64 `json:"commissionRate"`
}

func (p TierPricing) Value() (driver.Value, error) { return json.Marshal(p) }
func (p *TierPricing) Scan(src interface{}) error  { return scanJSON(src, p) }

// Metrics is the logistician's track record, fed into reliability scoring.
type Metrics struct {
	TotalContractsWon    int     `json:"totalContractsWon"`
	TotalRevenue         float64 `json:"totalRevenue"`
	AvgResponseTimeHours float64 `json:"avgResponseTimeHours"`
	SuccessRate          float64 `json:"successRate"`
	Rating               float64 `json:"rating"`
	ReviewCount          int     `json:"reviewCount"`
}

func (m Metrics) Value() (driver.Value, error) { return json.Marshal(m) }
func (m *Metrics) Scan(src interface{}) error  { return scanJSON(src, m) }

// TierChange is one entry of the subscription's tier history.
type TierChange struct {
	FromTier  string    `json:"fromTier"`
	ToTier    string    `json:"toTier"`
	ChangedAt time.Time `json:"changedAt"`
	Reason    string    `json:"reason,omitempty"`
}

// TierHistory is the subscription's tier-change log.
type TierHistory []TierChange

func (h TierHistory) Value() (driver.Value, error) {
	if h == nil {
		return json.Marshal([]TierChange{})
	}
	return json.Marshal(h)
}
func (h *TierHistory) Scan(src interface{}) error { return scanJSON(src, h) }

// Subscription is a logistician's tier-based entitlement record.
// Usage counters live in dedicated columns so they can be consumed with
// conditional updates under concurrency.
type Subscription struct {
	ID               string      `db:"id" json:"id"`
	LogisticianID    string      `db:"logistician_id" json:"logisticianId"`
	LogisticianName  string      `db:"logistician_name" json:"logisticianName"`
	Tier             string      `db:"tier" json:"tier"`
	StartDate        time.Time   `db:"start_date" json:"startDate"`
	EndDate          *time.Time  `db:"end_date" json:"endDate,omitempty"`
	TrialEndDate     *time.Time  `db:"trial_end_date" json:"trialEndDate,omitempty"`
	Pricing          TierPricing `db:"pricing" json:"pricing"`
	Limits           Limits      `db:"limits" json:"limits"`
	Features         Features    `db:"features" json:"features"`
	ActiveSites      int         `db:"active_sites" json:"-"`
	ActiveOffers     int         `db:"active_offers" json:"-"`
	MonthlyResponses int         `db:"monthly_responses" json:"-"`
	LastResetDate    time.Time   `db:"last_reset_date" json:"-"`
	Metrics          Metrics     `db:"metrics" json:"metrics"`
	Status           string      `db:"status" json:"status"`
	StatusReason     string      `db:"status_reason" json:"statusReason,omitempty"`
	AutoRenew        bool        `db:"auto_renew" json:"autoRenew"`
	TierHistory      TierHistory `db:"tier_history" json:"tierHistory,omitempty"`
	CreatedAt        time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updatedAt"`
}

// Usage is the subscription's current consumption snapshot.
type Usage struct {
	ActiveSites      int       `json:"activeSites"`
	ActiveOffers     int       `json:"activeOffers"`
	MonthlyResponses int       `json:"monthlyResponses"`
	LastResetDate    time.Time `json:"lastResetDate"`
}

// Usage returns the counters as one snapshot value.
func (s *Subscription) Usage() Usage {
	return Usage{
		ActiveSites:      s.ActiveSites,
		ActiveOffers:     s.ActiveOffers,
		MonthlyResponses: s.MonthlyResponses,
		LastResetDate:    s.LastResetDate,
	}
}
