package market

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"storagemarket/db"
)

func secondSite(name string) *db.Site {
	return &db.Site{
		Name:          name,
		Address:       "2 quai du Port",
		City:          "Lille",
		Country:       "FR",
		TotalCapacity: db.Volume{Unit: "pallets", Quantity: 300},
	}
}

func TestGuestSecondSiteDeniedUntilDeactivation(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	first := registerLogistician(t, e, log1, db.TierGuest)

	_, err := e.CreateSite(ctx, log1, secondSite("overflow"))
	var qerr *QuotaExceededError
	require.ErrorAs(t, err, &qerr)

	deactivated, err := e.DeactivateSite(ctx, log1, first.ID)
	require.NoError(t, err)
	require.False(t, deactivated.Active)

	_, err = e.CreateSite(ctx, log1, secondSite("overflow"))
	require.NoError(t, err)
}

func TestDeactivatedSiteStaysReadableButFrozen(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	site := registerLogistician(t, e, log1, db.TierGuest)

	_, err := e.DeactivateSite(ctx, log1, site.ID)
	require.NoError(t, err)

	got, err := e.GetSite(ctx, site.ID)
	require.NoError(t, err)
	require.False(t, got.Active)

	var serr *InvalidStateError
	_, err = e.UpdateSite(ctx, log1, site)
	require.ErrorAs(t, err, &serr)
	_, err = e.UpdateSiteCapacity(ctx, log1, site.ID, db.Volume{Unit: "pallets", Quantity: 10})
	require.ErrorAs(t, err, &serr)
	_, err = e.DeactivateSite(ctx, log1, site.ID)
	require.ErrorAs(t, err, &serr)
}

func TestOfferOnDeactivatedSiteDenied(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	n := publishedNeed(t, e)
	site := registerLogistician(t, e, log1, db.TierGuest)

	_, err := e.DeactivateSite(ctx, log1, site.ID)
	require.NoError(t, err)

	_, err = e.SubmitOffer(ctx, log1, offerFor(n.ID, site.ID, 12))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestUpdateSiteCapacityBounds(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	site := registerLogistician(t, e, log1, db.TierGuest)

	updated, err := e.UpdateSiteCapacity(ctx, log1, site.ID, db.Volume{Unit: "pallets", Quantity: 120})
	require.NoError(t, err)
	require.Equal(t, 120.0, updated.AvailableCapacity.Quantity)

	var verr *ValidationError
	_, err = e.UpdateSiteCapacity(ctx, log1, site.ID, db.Volume{Unit: "pallets", Quantity: 600})
	require.ErrorAs(t, err, &verr)
	_, err = e.UpdateSiteCapacity(ctx, log1, site.ID, db.Volume{Unit: "pallets", Quantity: -1})
	require.ErrorAs(t, err, &verr)
}

func TestSiteOwnershipEnforced(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	site := registerLogistician(t, e, log1, db.TierGuest)
	_, err := e.RegisterSubscription(ctx, log2, db.TierGuest)
	require.NoError(t, err)

	var ferr *ForbiddenError
	_, err = e.DeactivateSite(ctx, log2, site.ID)
	require.ErrorAs(t, err, &ferr)
	_, err = e.UpdateSiteCapacity(ctx, log2, site.ID, db.Volume{Unit: "pallets", Quantity: 1})
	require.ErrorAs(t, err, &ferr)
}
