// Package entitlement derives tier-based limits, features and pricing, and
// answers whether a subscription may perform quota-gated actions. All
// functions are pure; counters are consumed by the storage layer.
package entitlement

import (
	"time"

	"storagemarket/db"
)

// Unlimited marks a limit with no ceiling.
const Unlimited = -1

// Actions gated by tier limits.
const (
	ActionCreateSite  = "createSite"
	ActionSubmitOffer = "submitOffer"
	ActionPublishNeed = "publishNeed"
)

// TrialDuration is how long the one-time subscriber trial lasts.
const TrialDuration = 14 * 24 * time.Hour

// usageWindow is the rolling period after which monthly counters reset.
const usageWindow = 30 * 24 * time.Hour

// Decision is the outcome of an entitlement check.
type Decision struct {
	Allowed bool
	Reason  string
}

// DeriveLimits returns the full limit set for a tier. The result always
// replaces the subscription's limits wholesale; limits are never patched
// field by field, so a tier change can only widen or narrow them together.
func DeriveLimits(tier string) db.Limits {
	switch tier {
	case db.TierSubscriber:
		return db.Limits{
			MaxSites:            10,
			MaxActiveOffers:     50,
			MaxMonthlyResponses: 100,
			APIAccess:           true,
			PrioritySupport:     false,
			FeaturedListing:     false,
			AnalyticsAccess:     "standard",
		}
	case db.TierPremium:
		return db.Limits{
			MaxSites:            Unlimited,
			MaxActiveOffers:     Unlimited,
			MaxMonthlyResponses: Unlimited,
			APIAccess:           true,
			PrioritySupport:     true,
			FeaturedListing:     true,
			AnalyticsAccess:     "advanced",
		}
	default:
		return db.Limits{
			MaxSites:            1,
			MaxActiveOffers:     5,
			MaxMonthlyResponses: 10,
			AnalyticsAccess:     "none",
		}
	}
}

// DeriveFeatures returns the feature flags for a tier.
func DeriveFeatures(tier string) db.Features {
	switch tier {
	case db.TierSubscriber:
		return db.Features{
			RealTimeNotifications: true,
			AIRecommendations:     true,
			BulkOperations:        true,
			ExportReports:         true,
		}
	case db.TierPremium:
		return db.Features{
			RealTimeNotifications: true,
			AIRecommendations:     true,
			CustomBranding:        true,
			DedicatedAccount:      true,
			WMSIntegration:        true,
			BulkOperations:        true,
			ExportReports:         true,
		}
	default:
		return db.Features{}
	}
}

// DerivePricing returns the fee schedule for a tier.
func DerivePricing(tier string) db.TierPricing {
	switch tier {
	case db.TierSubscriber:
		return db.TierPricing{
			MonthlyFee:     199,
			Currency:       "EUR",
			BillingCycle:   "monthly",
			CommissionRate: 2,
		}
	case db.TierPremium:
		return db.TierPricing{
			MonthlyFee:     499,
			Currency:       "EUR",
			BillingCycle:   "monthly",
			CommissionRate: 0,
		}
	default:
		return db.TierPricing{
			MonthlyFee:     0,
			Currency:       "EUR",
			BillingCycle:   "monthly",
			CommissionRate: 5,
		}
	}
}

// ValidTier reports whether tier is a known subscription tier.
func ValidTier(tier string) bool {
	switch tier {
	case db.TierGuest, db.TierSubscriber, db.TierPremium:
		return true
	}
	return false
}

// EffectiveUsage returns usage with the monthly counter zeroed when the
// rolling window elapsed at instant now.
func EffectiveUsage(u db.Usage, now time.Time) db.Usage {
	if now.Sub(u.LastResetDate) >= usageWindow {
		u.MonthlyResponses = 0
		u.LastResetDate = now
	}
	return u
}

// NextReset returns when the monthly counters will next reset.
func NextReset(u db.Usage, now time.Time) time.Time {
	next := u.LastResetDate.Add(usageWindow)
	if !next.After(now) {
		return now.Add(usageWindow)
	}
	return next
}

// CanPerform checks one action against the subscription's limits and the
// current usage window. The storage layer re-verifies the same conditions
// under its transaction; this check exists to give callers a precise reason.
func CanPerform(sub *db.Subscription, action string, now time.Time) Decision {
	usage := EffectiveUsage(sub.Usage(), now)
	switch action {
	case ActionCreateSite:
		if exceeded(usage.ActiveSites, sub.Limits.MaxSites) {
			return Decision{Reason: "site limit reached for tier " + sub.Tier}
		}
	case ActionSubmitOffer:
		if exceeded(usage.MonthlyResponses, sub.Limits.MaxMonthlyResponses) {
			return Decision{Reason: "monthly response limit reached for tier " + sub.Tier}
		}
		if exceeded(usage.ActiveOffers, sub.Limits.MaxActiveOffers) {
			return Decision{Reason: "active offer limit reached for tier " + sub.Tier}
		}
	case ActionPublishNeed:
		// Publishing needs is not tier-limited.
	default:
		return Decision{Reason: "unknown action " + action}
	}
	return Decision{Allowed: true}
}

func exceeded(current, max int) bool {
	return max != Unlimited && current >= max
}

// TrialEligible reports whether the subscription may start the one-time
// subscriber trial: guests only, and only if no trial was taken before.
func TrialEligible(sub *db.Subscription) bool {
	if sub.Tier != db.TierGuest || sub.TrialEndDate != nil {
		return false
	}
	for _, change := range sub.TierHistory {
		if change.Reason == "trial started" {
			return false
		}
	}
	return true
}

// UsageLine is one row of a usage report.
type UsageLine struct {
	Used      int     `json:"used"`
	Limit     int     `json:"limit"`
	Percent   float64 `json:"percent"`
	Unlimited bool    `json:"unlimited"`
}

// UsageReport summarizes consumption against the tier's limits.
type UsageReport struct {
	Tier             string    `json:"tier"`
	Sites            UsageLine `json:"sites"`
	ActiveOffers     UsageLine `json:"activeOffers"`
	MonthlyResponses UsageLine `json:"monthlyResponses"`
	ResetsAt         time.Time `json:"resetsAt"`
}

// Report builds the usage report for a subscription at instant now.
func Report(sub *db.Subscription, now time.Time) UsageReport {
	usage := EffectiveUsage(sub.Usage(), now)
	return UsageReport{
		Tier:             sub.Tier,
		Sites:            line(usage.ActiveSites, sub.Limits.MaxSites),
		ActiveOffers:     line(usage.ActiveOffers, sub.Limits.MaxActiveOffers),
		MonthlyResponses: line(usage.MonthlyResponses, sub.Limits.MaxMonthlyResponses),
		ResetsAt:         NextReset(usage, now),
	}
}

func line(used, max int) UsageLine {
	l := UsageLine{Used: used, Limit: max}
	if max == Unlimited {
		l.Unlimited = true
		return l
	}
	if max > 0 {
		l.Percent = float64(used) / float64(max) * 100
	}
	return l
}
