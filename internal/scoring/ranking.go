package scoring

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"storagemarket/db"
	"storagemarket/internal/geo"
)

// Recommendation labels attached to ranked offers.
const (
	BestMatch   = "BEST_MATCH"
	Recommended = "RECOMMENDED"
	Standard    = "STANDARD"
)

// rankWorkers bounds the scoring fan-out.
const rankWorkers = 8

// RankedOffer is one ranking entry: the scored offer, its 1-based rank
// and its recommendation label.
type RankedOffer struct {
	Offer          db.Offer     `json:"offer"`
	Scoring        db.ScoreCard `json:"scoring"`
	Rank           int          `json:"rank"`
	Recommendation string       `json:"recommendation"`
}

// Rank scores every offer in parallel and orders them by global score,
// breaking ties in favor of the earliest submission. Rank 1 is labeled
// BEST_MATCH, ranks 2 and 3 RECOMMENDED, the rest STANDARD.
func Rank(ctx context.Context, need *db.Need, inputs []Input, w Weights, now time.Time) ([]RankedOffer, error) {
	rivalPrices := make([]float64, 0, len(inputs))
	for _, in := range inputs {
		rivalPrices = append(rivalPrices, in.Offer.Pricing.PricePerUnit)
	}

	ranked := make([]RankedOffer, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(rankWorkers)
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			card := ScoreOffer(need, in, rivalPrices, w, now)
			ranked[i] = RankedOffer{Offer: *in.Offer, Scoring: card}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Scoring.GlobalScore != ranked[j].Scoring.GlobalScore {
			return ranked[i].Scoring.GlobalScore > ranked[j].Scoring.GlobalScore
		}
		return ranked[i].Offer.SubmittedAt.Before(ranked[j].Offer.SubmittedAt)
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
		ranked[i].Recommendation = label(i + 1)
	}
	return ranked, nil
}

func label(rank int) string {
	switch {
	case rank == 1:
		return BestMatch
	case rank <= 3:
		return Recommended
	default:
		return Standard
	}
}

// Summary aggregates a ranking for display next to the list.
type Summary struct {
	Count        int     `json:"count"`
	AverageScore float64 `json:"averageScore"`
	MinPrice     float64 `json:"minPrice"`
	MaxPrice     float64 `json:"maxPrice"`
}

// Summarize computes the ranking summary.
func Summarize(ranked []RankedOffer) Summary {
	s := Summary{Count: len(ranked)}
	if s.Count == 0 {
		return s
	}
	total := 0
	for i, r := range ranked {
		total += r.Scoring.GlobalScore
		p := r.Offer.Pricing.PricePerUnit
		if i == 0 || p < s.MinPrice {
			s.MinPrice = p
		}
		if p > s.MaxPrice {
			s.MaxPrice = p
		}
	}
	s.AverageScore = float64(total) / float64(s.Count)
	return s
}

// SiteMatch is one site-recommendation entry for a need that has no
// offers yet. Price plays no part before an offer exists, so the weights
// are renormalized over the remaining factors.
type SiteMatch struct {
	Site               db.Site `json:"site"`
	Score              int     `json:"score"`
	DistanceKm         float64 `json:"distanceKm,omitempty"`
	CapacityScore      int     `json:"capacityScore"`
	CertificationScore int     `json:"certificationScore"`
	LocationScore      int     `json:"locationScore"`
	ReliabilityScore   int     `json:"reliabilityScore"`
}

// ScoreSite rates a site's fit for a need before any offer exists.
func ScoreSite(need *db.Need, site *db.Site, m *db.Metrics, w Weights) SiteMatch {
	nw := w.normalized()
	match := SiteMatch{
		Site:               *site,
		LocationScore:      locationScore(need.Location, site),
		CapacityScore:      capacityScore(need.Volume, site.AvailableCapacity),
		CertificationScore: certificationScore(need.Constraints, site),
		ReliabilityScore:   reliabilityScore(m),
	}
	if need.Location.Coordinates != nil && site.Coordinates() != nil {
		match.DistanceKm = geo.Distance(
			geo.Point{Latitude: need.Location.Coordinates.Latitude, Longitude: need.Location.Coordinates.Longitude},
			geo.Point{Latitude: *site.Latitude, Longitude: *site.Longitude},
		)
	}
	weightSum := nw.Location + nw.Capacity + nw.Certification + nw.Reliability
	match.Score = round((nw.Location*float64(match.LocationScore) +
		nw.Capacity*float64(match.CapacityScore) +
		nw.Certification*float64(match.CertificationScore) +
		nw.Reliability*float64(match.ReliabilityScore)) / weightSum)
	return match
}

// RankSites orders site matches by score, then by distance.
func RankSites(need *db.Need, sites []db.Site, metrics map[string]*db.Metrics, w Weights) []SiteMatch {
	matches := make([]SiteMatch, 0, len(sites))
	for i := range sites {
		matches = append(matches, ScoreSite(need, &sites[i], metrics[sites[i].LogisticianID], w))
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].DistanceKm < matches[j].DistanceKm
	})
	return matches
}
