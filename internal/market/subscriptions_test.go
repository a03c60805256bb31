package market

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"storagemarket/db"
)

func TestRegisterSubscription(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	sub, err := e.RegisterSubscription(ctx, log1, db.TierGuest)
	require.NoError(t, err)
	require.Equal(t, db.TierGuest, sub.Tier)
	require.Equal(t, 5, sub.Limits.MaxActiveOffers)
	require.Equal(t, 0.0, sub.Pricing.MonthlyFee)
	require.False(t, sub.AutoRenew)

	_, err = e.RegisterSubscription(ctx, log1, db.TierPremium)
	var derr *DuplicateActionError
	require.ErrorAs(t, err, &derr)
}

func TestChangeTierRederivesEverything(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	_, err := e.RegisterSubscription(ctx, log1, db.TierGuest)
	require.NoError(t, err)

	up, err := e.ChangeTier(ctx, log1, db.TierPremium, "growth")
	require.NoError(t, err)
	require.Equal(t, db.TierPremium, up.Tier)
	require.Equal(t, -1, up.Limits.MaxActiveOffers)
	require.Equal(t, 499.0, up.Pricing.MonthlyFee)
	require.True(t, up.Features.DedicatedAccount)
	require.Len(t, up.TierHistory, 1)
	require.Equal(t, db.TierGuest, up.TierHistory[0].FromTier)

	down, err := e.ChangeTier(ctx, log1, db.TierGuest, "cost cutting")
	require.NoError(t, err)
	require.Equal(t, 5, down.Limits.MaxActiveOffers)
	require.False(t, down.Features.DedicatedAccount)
	require.Len(t, down.TierHistory, 2)

	_, err = e.ChangeTier(ctx, log1, db.TierGuest, "")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestDowngradeKeepsUsageCounters(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	site := registerLogistician(t, e, log1, db.TierSubscriber)

	n1, n2 := publishedNeed(t, e), publishedNeed(t, e)
	submitOffer(t, e, log1, n1.ID, site.ID, 10)
	submitOffer(t, e, log1, n2.ID, site.ID, 10)

	down, err := e.ChangeTier(ctx, log1, db.TierGuest, "")
	require.NoError(t, err)
	require.Equal(t, 2, down.ActiveOffers)
	require.Equal(t, 2, down.MonthlyResponses)

	sub, err := store.GetSubscriptionByLogistician(ctx, log1.OrgID)
	require.NoError(t, err)
	require.Equal(t, 1, sub.ActiveSites)
}

func TestTrialLifecycle(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	_, err := e.RegisterSubscription(ctx, log1, db.TierGuest)
	require.NoError(t, err)

	trial, err := e.StartTrial(ctx, log1)
	require.NoError(t, err)
	require.Equal(t, db.TierSubscriber, trial.Tier)
	require.NotNil(t, trial.TrialEndDate)

	// Before the trial end, EndTrial is a no-op.
	same, err := e.EndTrial(ctx, log1)
	require.NoError(t, err)
	require.Equal(t, db.TierSubscriber, same.Tier)

	e.now = func() time.Time { return trial.TrialEndDate.Add(time.Hour) }
	ended, err := e.EndTrial(ctx, log1)
	require.NoError(t, err)
	require.Equal(t, db.TierGuest, ended.Tier)

	// The trial is one-time.
	_, err = e.StartTrial(ctx, log1)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestSweepExpiredTrials(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	_, err := e.RegisterSubscription(ctx, log1, db.TierGuest)
	require.NoError(t, err)
	_, err = e.RegisterSubscription(ctx, log2, db.TierSubscriber)
	require.NoError(t, err)

	trial, err := e.StartTrial(ctx, log1)
	require.NoError(t, err)

	// Nothing expires while the trial is running.
	ended, err := e.SweepExpiredTrials(ctx)
	require.NoError(t, err)
	require.Zero(t, ended)

	e.now = func() time.Time { return trial.TrialEndDate.Add(time.Hour) }
	ended, err = e.SweepExpiredTrials(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, ended)

	sub, err := e.GetMySubscription(ctx, log1)
	require.NoError(t, err)
	require.Equal(t, db.TierGuest, sub.Tier)

	// The paying subscriber is untouched.
	paying, err := e.GetMySubscription(ctx, log2)
	require.NoError(t, err)
	require.Equal(t, db.TierSubscriber, paying.Tier)
}

func TestCancelSubscription(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	_, err := e.RegisterSubscription(ctx, log1, db.TierSubscriber)
	require.NoError(t, err)

	require.NoError(t, e.CancelSubscription(ctx, log1, "switching providers"))
	sub, err := store.GetSubscriptionByLogistician(ctx, log1.OrgID)
	require.NoError(t, err)
	require.Equal(t, "cancelled", sub.Status)
	require.False(t, sub.AutoRenew)

	var serr *InvalidStateError
	require.ErrorAs(t, e.CancelSubscription(ctx, log1, "again"), &serr)
}

func TestUsageReportThroughEngine(t *testing.T) {
	e, _ := newTestEngine()
	site := registerLogistician(t, e, log1, db.TierGuest)
	n := publishedNeed(t, e)
	submitOffer(t, e, log1, n.ID, site.ID, 10)

	rep, err := e.UsageReport(context.Background(), log1)
	require.NoError(t, err)
	require.Equal(t, db.TierGuest, rep.Tier)
	require.Equal(t, 1, rep.Sites.Used)
	require.Equal(t, 1, rep.ActiveOffers.Used)
	require.Equal(t, 10.0, rep.MonthlyResponses.Percent)
}

func TestPlansListing(t *testing.T) {
	plans := Plans()
	require.Len(t, plans, 3)
	require.Equal(t, db.TierGuest, plans[0].Tier)
	require.Equal(t, db.TierPremium, plans[2].Tier)
	require.Equal(t, -1, plans[2].Limits.MaxSites)
}
