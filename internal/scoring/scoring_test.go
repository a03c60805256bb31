package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"storagemarket/db"
)

func floatPtr(f float64) *float64 { return &f }

func testNeed() *db.Need {
	return &db.Need{
		ID:          "need-1",
		StorageType: "ambient",
		Volume:      db.Volume{Unit: "pallets", Quantity: 100},
		Location: db.Location{
			Country:     "FR",
			MaxRadius:   100,
			Coordinates: &db.Coordinates{Latitude: 48.8566, Longitude: 2.3522},
		},
		RequestedServices: db.StringList{"picking", "co-packing"},
	}
}

func testSite() *db.Site {
	return &db.Site{
		ID:             "site-1",
		LogisticianID:  "log-1",
		Latitude:       floatPtr(48.8566),
		Longitude:      floatPtr(2.3522),
		Certifications: db.StringList{"ISO9001"},
		AvailableCapacity: db.Volume{
			Unit: "pallets", Quantity: 120,
		},
	}
}

func testOffer(price, capacity float64) *db.Offer {
	return &db.Offer{
		ID:               "offer-1",
		NeedID:           "need-1",
		LogisticianID:    "log-1",
		SiteID:           "site-1",
		ProposedCapacity: db.Volume{Unit: "pallets", Quantity: capacity},
		Pricing:          db.Pricing{PricePerUnit: price, Unit: "pallet/month", Currency: "EUR"},
		IncludedServices: db.StringList{"picking", "co-packing"},
	}
}

func TestPriceScoreAgainstRivals(t *testing.T) {
	rivals := []float64{10, 15, 20}

	require.Equal(t, 100, priceScore(10, rivals, db.Budget{}))
	require.Equal(t, 0, priceScore(20, rivals, db.Budget{}))
	require.Equal(t, 50, priceScore(15, rivals, db.Budget{}))
}

func TestPriceScoreMonotonicity(t *testing.T) {
	rivals := []float64{10, 12, 14, 20}
	prev := 101
	for _, p := range rivals {
		s := priceScore(p, rivals, db.Budget{})
		require.Less(t, s, prev, "cheaper offers must never score lower")
		prev = s
	}
}

func TestPriceScoreBudgetFallback(t *testing.T) {
	budget := db.Budget{Indicative: 12, Currency: "EUR"}

	// Lone offer within budget scores full.
	require.Equal(t, 100, priceScore(10, []float64{10}, budget))
	// Over budget, the score decays with the overshoot.
	require.Equal(t, 50, priceScore(24, []float64{24}, budget))
	// No rivals, no budget: neutral.
	require.Equal(t, 50, priceScore(10, []float64{10}, db.Budget{}))
}

func TestLocationScoreDecay(t *testing.T) {
	need := testNeed()
	site := testSite()

	// Same point scores full.
	require.Equal(t, 100, locationScore(need.Location, site))

	// Lyon is ~392 km from Paris, far past the 100 km radius.
	site.Latitude = floatPtr(45.7640)
	site.Longitude = floatPtr(4.8357)
	require.Equal(t, 0, locationScore(need.Location, site))

	// Ungeocoded site scores neutral.
	site.Latitude = nil
	require.Equal(t, 50, locationScore(need.Location, site))
}

func TestCapacityScoreBand(t *testing.T) {
	needed := db.Volume{Unit: "pallets", Quantity: 100}

	require.Equal(t, 100, capacityScore(needed, db.Volume{Quantity: 100}))
	require.Equal(t, 100, capacityScore(needed, db.Volume{Quantity: 130}))
	require.Equal(t, 80, capacityScore(needed, db.Volume{Quantity: 80}))
	// Gross oversizing is penalized, undercoverage more so.
	over := capacityScore(needed, db.Volume{Quantity: 200})
	require.Less(t, over, 100)
	require.Greater(t, over, capacityScore(needed, db.Volume{Quantity: 40}))
}

func TestServiceScoreFraction(t *testing.T) {
	req := db.StringList{"picking", "co-packing", "labeling"}

	require.Equal(t, 100, serviceScore(nil, nil))
	require.Equal(t, 67, serviceScore(req, db.StringList{"picking", "labeling"}))
	require.Equal(t, 0, serviceScore(req, db.StringList{"transport"}))
}

func TestReliabilityNeutralBaseline(t *testing.T) {
	require.Equal(t, 50, reliabilityScore(nil))
	require.Equal(t, 50, reliabilityScore(&db.Metrics{}))

	strong := &db.Metrics{SuccessRate: 90, Rating: 4.5, ReviewCount: 12, TotalContractsWon: 8}
	require.Equal(t, 90, reliabilityScore(strong))
}

func TestCertificationHardRequirements(t *testing.T) {
	site := testSite()

	require.Equal(t, 0, certificationScore(db.Constraints{ADRRequired: true}, site))
	require.Equal(t, 0, certificationScore(db.Constraints{CustomsRequired: true}, site))
	require.Equal(t, 100, certificationScore(db.Constraints{}, site))
	require.Equal(t, 50, certificationScore(
		db.Constraints{Certifications: []string{"ISO9001", "IFS"}}, site))
}

func TestScoreOfferDefaultWeights(t *testing.T) {
	need := testNeed()
	in := Input{
		Offer:   testOffer(10, 100),
		Site:    testSite(),
		Metrics: &db.Metrics{SuccessRate: 100, Rating: 5, ReviewCount: 10},
	}

	card := ScoreOffer(need, in, []float64{10, 20}, DefaultWeights, time.Now())
	require.Equal(t, 100, card.PriceScore)
	require.Equal(t, 100, card.LocationScore)
	require.Equal(t, 100, card.CapacityScore)
	require.Equal(t, 100, card.ServiceScore)
	require.Equal(t, 100, card.ReliabilityScore)
	require.Equal(t, 100, card.CertificationScore)
	require.Equal(t, 100, card.GlobalScore)
	require.False(t, card.ComputedAt.IsZero())
}

func TestWeightsRenormalized(t *testing.T) {
	// All weight on price: the global score tracks the price score exactly.
	w := Weights{Price: 10}
	need := testNeed()
	in := Input{Offer: testOffer(20, 100), Site: testSite()}

	card := ScoreOffer(need, in, []float64{10, 20}, w, time.Now())
	require.Equal(t, card.PriceScore, card.GlobalScore)
}
