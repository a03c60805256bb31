// Package scoring computes multi-factor match scores for offers and sites.
// All scores live in [0, 100]. The package is pure: it never touches
// storage, never logs, and takes every input explicitly.
package scoring

import (
	"math"
	"time"

	"storagemarket/db"
	"storagemarket/internal/geo"
)

// DefaultMaxRadiusKm bounds the location score when the need does not set
// its own search radius.
const DefaultMaxRadiusKm = 100.0

// neutralScore is used when an input is missing and no judgement can be
// made either way.
const neutralScore = 50

// Weights distributes the global score across the six factors. Weights
// are renormalized before use, so any positive set is acceptable.
type Weights struct {
	Price         float64 `json:"price"`
	Location      float64 `json:"location"`
	Capacity      float64 `json:"capacity"`
	Service       float64 `json:"service"`
	Reliability   float64 `json:"reliability"`
	Certification float64 `json:"certification"`
}

// DefaultWeights is the standard factor distribution.
var DefaultWeights = Weights{
	Price:         0.25,
	Location:      0.15,
	Capacity:      0.20,
	Service:       0.15,
	Reliability:   0.15,
	Certification: 0.10,
}

func (w Weights) sum() float64 {
	return w.Price + w.Location + w.Capacity + w.Service + w.Reliability + w.Certification
}

func (w Weights) normalized() Weights {
	s := w.sum()
	if s <= 0 {
		return DefaultWeights
	}
	return Weights{
		Price:         w.Price / s,
		Location:      w.Location / s,
		Capacity:      w.Capacity / s,
		Service:       w.Service / s,
		Reliability:   w.Reliability / s,
		Certification: w.Certification / s,
	}
}

// Input bundles everything needed to score one offer: the offer itself,
// the site it is bound to and the logistician's track record. Metrics is
// nil when the logistician has none yet.
type Input struct {
	Offer   *db.Offer
	Site    *db.Site
	Metrics *db.Metrics
}

// ScoreOffer computes the full score card for one offer against its need.
// rivalPrices carries the unit prices of every offer competing on the same
// need (this offer's included); price is normalized against them, falling
// back to the need's indicative budget when the offer stands alone.
func ScoreOffer(need *db.Need, in Input, rivalPrices []float64, w Weights, now time.Time) db.ScoreCard {
	nw := w.normalized()
	card := db.ScoreCard{
		PriceScore:         priceScore(in.Offer.Pricing.PricePerUnit, rivalPrices, need.Budget),
		LocationScore:      locationScore(need.Location, in.Site),
		CapacityScore:      capacityScore(need.Volume, in.Offer.ProposedCapacity),
		ServiceScore:       serviceScore(need.RequestedServices, in.Offer.IncludedServices),
		ReliabilityScore:   reliabilityScore(in.Metrics),
		CertificationScore: certificationScore(need.Constraints, in.Site),
		ComputedAt:         now,
	}
	card.GlobalScore = round(
		nw.Price*float64(card.PriceScore) +
			nw.Location*float64(card.LocationScore) +
			nw.Capacity*float64(card.CapacityScore) +
			nw.Service*float64(card.ServiceScore) +
			nw.Reliability*float64(card.ReliabilityScore) +
			nw.Certification*float64(card.CertificationScore))
	return card
}

// priceScore normalizes the offer's unit price against the competing
// range: the cheapest offer scores 100, the most expensive 0. A lone
// offer is measured against the need's indicative budget instead, and
// scores neutral when no budget was given either.
func priceScore(price float64, rivalPrices []float64, budget db.Budget) int {
	if price <= 0 {
		return neutralScore
	}
	min, max := price, price
	for _, p := range rivalPrices {
		if p <= 0 {
			continue
		}
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
	}
	if max > min {
		return round(100 * (max - price) / (max - min))
	}
	ref := budget.Indicative
	if ref <= 0 {
		ref = budget.MaxBudget
	}
	if ref <= 0 {
		return neutralScore
	}
	if price <= ref {
		return 100
	}
	return clamp(round(100 * ref / price))
}

// locationScore decays linearly with the haversine distance between the
// site and the need's location, reaching 0 at the need's search radius.
func locationScore(loc db.Location, site *db.Site) int {
	coords := site.Coordinates()
	if loc.Coordinates == nil || coords == nil {
		return neutralScore
	}
	maxRadius := loc.MaxRadius
	if maxRadius <= 0 {
		maxRadius = DefaultMaxRadiusKm
	}
	d := geo.Distance(
		geo.Point{Latitude: loc.Coordinates.Latitude, Longitude: loc.Coordinates.Longitude},
		geo.Point{Latitude: coords.Latitude, Longitude: coords.Longitude},
	)
	if d >= maxRadius {
		return 0
	}
	return round(100 * (1 - d/maxRadius))
}

// capacityScore is full when the proposed volume covers the need without
// gross oversizing (ratio in [1.0, 1.3]), proportional below coverage,
// and gently penalized above the band.
func capacityScore(needed, proposed db.Volume) int {
	if needed.Quantity <= 0 || proposed.Quantity <= 0 {
		return neutralScore
	}
	ratio := proposed.Quantity / needed.Quantity
	switch {
	case ratio < 1.0:
		return round(100 * ratio)
	case ratio <= 1.3:
		return 100
	default:
		return clamp(round(100 - (ratio-1.3)*50))
	}
}

// serviceScore is the covered fraction of the requested services.
func serviceScore(requested db.StringList, included db.StringList) int {
	if len(requested) == 0 {
		return 100
	}
	have := make(map[string]bool, len(included))
	for _, s := range included {
		have[s] = true
	}
	matched := 0
	for _, s := range requested {
		if have[s] {
			matched++
		}
	}
	return round(100 * float64(matched) / float64(len(requested)))
}

// reliabilityScore blends the logistician's success rate and rating.
// Logisticians without a track record get a neutral baseline rather than
// a penalty, so newcomers are not shut out of rankings.
func reliabilityScore(m *db.Metrics) int {
	if m == nil || (m.ReviewCount == 0 && m.TotalContractsWon == 0) {
		return neutralScore
	}
	rating := m.Rating / 5 * 100
	return clamp(round(0.6*m.SuccessRate + 0.4*rating))
}

// certificationScore is the covered fraction of the required
// certifications. Hard requirements the site cannot meet (ADR, customs)
// zero the score outright.
func certificationScore(c db.Constraints, site *db.Site) int {
	if c.ADRRequired && !site.ADRAuthorized {
		return 0
	}
	if c.CustomsRequired && !site.CustomsAuthorized {
		return 0
	}
	if len(c.Certifications) == 0 {
		return 100
	}
	have := make(map[string]bool, len(site.Certifications))
	for _, s := range site.Certifications {
		have[s] = true
	}
	matched := 0
	for _, s := range c.Certifications {
		if have[s] {
			matched++
		}
	}
	return round(100 * float64(matched) / float64(len(c.Certifications)))
}

func round(f float64) int {
	return int(math.Round(f))
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
