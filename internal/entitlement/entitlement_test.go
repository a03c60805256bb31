package entitlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"storagemarket/db"
)

func TestDeriveLimitsPerTier(t *testing.T) {
	guest := DeriveLimits(db.TierGuest)
	require.Equal(t, 1, guest.MaxSites)
	require.Equal(t, 5, guest.MaxActiveOffers)
	require.Equal(t, 10, guest.MaxMonthlyResponses)
	require.False(t, guest.APIAccess)

	sub := DeriveLimits(db.TierSubscriber)
	require.Equal(t, 10, sub.MaxSites)
	require.Equal(t, 50, sub.MaxActiveOffers)
	require.Equal(t, 100, sub.MaxMonthlyResponses)
	require.True(t, sub.APIAccess)

	prem := DeriveLimits(db.TierPremium)
	require.Equal(t, Unlimited, prem.MaxSites)
	require.Equal(t, Unlimited, prem.MaxActiveOffers)
	require.Equal(t, Unlimited, prem.MaxMonthlyResponses)
	require.True(t, prem.FeaturedListing)
}

func TestDeriveLimitsReplacesWholesale(t *testing.T) {
	// A downgrade must produce exactly the guest limit set, regardless of
	// what the subscription carried before.
	require.Equal(t, DeriveLimits(db.TierGuest), DeriveLimits("unknown-tier"))
}

func TestDerivePricing(t *testing.T) {
	require.Equal(t, 0.0, DerivePricing(db.TierGuest).MonthlyFee)
	require.Equal(t, 5.0, DerivePricing(db.TierGuest).CommissionRate)
	require.Equal(t, 199.0, DerivePricing(db.TierSubscriber).MonthlyFee)
	require.Equal(t, 2.0, DerivePricing(db.TierSubscriber).CommissionRate)
	require.Equal(t, 499.0, DerivePricing(db.TierPremium).MonthlyFee)
	require.Equal(t, 0.0, DerivePricing(db.TierPremium).CommissionRate)
}

func guestSub(responses, offers int, lastReset time.Time) *db.Subscription {
	return &db.Subscription{
		Tier:             db.TierGuest,
		Limits:           DeriveLimits(db.TierGuest),
		MonthlyResponses: responses,
		ActiveOffers:     offers,
		LastResetDate:    lastReset,
	}
}

func TestGuestSixthOfferDenied(t *testing.T) {
	now := time.Now()
	sub := guestSub(5, 5, now)

	d := CanPerform(sub, ActionSubmitOffer, now)
	require.False(t, d.Allowed)
	require.Contains(t, d.Reason, "active offer limit")
}

func TestGuestMonthlyResponsesDenied(t *testing.T) {
	now := time.Now()
	sub := guestSub(10, 2, now)

	d := CanPerform(sub, ActionSubmitOffer, now)
	require.False(t, d.Allowed)
	require.Contains(t, d.Reason, "monthly response limit")
}

func TestRollingWindowResetsMonthlyCounter(t *testing.T) {
	now := time.Now()
	sub := guestSub(10, 2, now.Add(-31*24*time.Hour))

	d := CanPerform(sub, ActionSubmitOffer, now)
	require.True(t, d.Allowed)
}

func TestRollingWindowDoesNotResetActiveOffers(t *testing.T) {
	now := time.Now()
	sub := guestSub(0, 5, now.Add(-31*24*time.Hour))

	d := CanPerform(sub, ActionSubmitOffer, now)
	require.False(t, d.Allowed)
}

func TestPremiumUnlimited(t *testing.T) {
	now := time.Now()
	sub := &db.Subscription{
		Tier:             db.TierPremium,
		Limits:           DeriveLimits(db.TierPremium),
		MonthlyResponses: 100000,
		ActiveOffers:     100000,
		ActiveSites:      100000,
		LastResetDate:    now,
	}
	require.True(t, CanPerform(sub, ActionSubmitOffer, now).Allowed)
	require.True(t, CanPerform(sub, ActionCreateSite, now).Allowed)
}

func TestGuestSecondSiteDenied(t *testing.T) {
	now := time.Now()
	sub := guestSub(0, 0, now)
	sub.ActiveSites = 1

	d := CanPerform(sub, ActionCreateSite, now)
	require.False(t, d.Allowed)
	require.Contains(t, d.Reason, "site limit")
}

func TestTrialEligibility(t *testing.T) {
	sub := &db.Subscription{Tier: db.TierGuest}
	require.True(t, TrialEligible(sub))

	end := time.Now()
	require.False(t, TrialEligible(&db.Subscription{Tier: db.TierGuest, TrialEndDate: &end}))
	require.False(t, TrialEligible(&db.Subscription{Tier: db.TierPremium}))
	require.False(t, TrialEligible(&db.Subscription{
		Tier:        db.TierGuest,
		TierHistory: db.TierHistory{{FromTier: db.TierSubscriber, ToTier: db.TierGuest, Reason: "trial started"}},
	}))
}

func TestUsageReport(t *testing.T) {
	now := time.Now()
	sub := guestSub(5, 2, now.Add(-24*time.Hour))
	sub.ActiveSites = 1

	rep := Report(sub, now)
	require.Equal(t, db.TierGuest, rep.Tier)
	require.Equal(t, 50.0, rep.MonthlyResponses.Percent)
	require.Equal(t, 100.0, rep.Sites.Percent)
	require.True(t, rep.ResetsAt.After(now))
}
