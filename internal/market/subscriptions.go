package market

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"storagemarket/db"
	"storagemarket/internal/entitlement"
)

// RegisterSubscription creates the logistician's subscription on the
// chosen tier. Every logistician holds exactly one.
func (e *Engine) RegisterSubscription(ctx context.Context, actor Actor, tier string) (*db.Subscription, error) {
	if tier == "" {
		tier = db.TierGuest
	}
	if !entitlement.ValidTier(tier) {
		return nil, &ValidationError{Msg: "unknown tier " + tier}
	}
	sub := &db.Subscription{
		ID:              uuid.NewString(),
		LogisticianID:   actor.OrgID,
		LogisticianName: actor.OrgName,
		Tier:            tier,
		StartDate:       e.now(),
		Pricing:         entitlement.DerivePricing(tier),
		Limits:          entitlement.DeriveLimits(tier),
		Features:        entitlement.DeriveFeatures(tier),
		Status:          "active",
		AutoRenew:       tier != db.TierGuest,
	}
	if err := e.store.CreateSubscription(ctx, sub); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, &DuplicateActionError{Msg: "logistician already has a subscription"}
		}
		return nil, err
	}
	return sub, nil
}

// GetMySubscription returns the actor's subscription.
func (e *Engine) GetMySubscription(ctx context.Context, actor Actor) (*db.Subscription, error) {
	sub, err := e.store.GetSubscriptionByLogistician(ctx, actor.OrgID)
	if err != nil {
		return nil, mapStoreErr(err, "subscription", actor.OrgID)
	}
	return sub, nil
}

// ChangeTier moves the subscription to another tier. Limits, features and
// pricing are rederived wholesale from the target tier; usage counters
// survive the change, so a downgrade can leave a logistician temporarily
// over their new limits without invalidating existing entities.
func (e *Engine) ChangeTier(ctx context.Context, actor Actor, tier, reason string) (*db.Subscription, error) {
	if !entitlement.ValidTier(tier) {
		return nil, &ValidationError{Msg: "unknown tier " + tier}
	}
	sub, err := e.GetMySubscription(ctx, actor)
	if err != nil {
		return nil, err
	}
	if sub.Tier == tier {
		return nil, &ValidationError{Msg: "subscription is already on tier " + tier}
	}
	return e.applyTierChange(ctx, sub, tier, reason, nil)
}

// StartTrial grants a guest the one-time 14-day subscriber trial.
func (e *Engine) StartTrial(ctx context.Context, actor Actor) (*db.Subscription, error) {
	sub, err := e.GetMySubscription(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !entitlement.TrialEligible(sub) {
		return nil, &ValidationError{Msg: "subscription is not eligible for a trial"}
	}
	trialEnd := e.now().Add(entitlement.TrialDuration)
	return e.applyTierChange(ctx, sub, db.TierSubscriber, "trial started", &trialEnd)
}

// EndTrial drops an expired trial back to guest. Meant to be called by a
// periodic sweep; a no-op before the trial end.
func (e *Engine) EndTrial(ctx context.Context, actor Actor) (*db.Subscription, error) {
	sub, err := e.GetMySubscription(ctx, actor)
	if err != nil {
		return nil, err
	}
	if sub.TrialEndDate == nil || sub.TrialEndDate.After(e.now()) {
		return sub, nil
	}
	return e.applyTierChange(ctx, sub, db.TierGuest, "trial ended", sub.TrialEndDate)
}

func (e *Engine) applyTierChange(ctx context.Context, sub *db.Subscription, tier, reason string, trialEnd *time.Time) (*db.Subscription, error) {
	fromTier := sub.Tier
	updated := *sub
	updated.Tier = tier
	updated.Pricing = entitlement.DerivePricing(tier)
	updated.Limits = entitlement.DeriveLimits(tier)
	updated.Features = entitlement.DeriveFeatures(tier)
	updated.TrialEndDate = trialEnd
	updated.Status = "active"
	updated.StatusReason = reason
	updated.TierHistory = append(append(db.TierHistory{}, sub.TierHistory...), db.TierChange{
		FromTier: fromTier, ToTier: tier, ChangedAt: e.now(), Reason: reason,
	})
	if err := e.store.ChangeSubscriptionTier(ctx, &updated, fromTier); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, &InvalidStateError{Entity: "subscription", ID: sub.ID, Status: sub.Tier, Action: "change tier of"}
		}
		return nil, err
	}
	return e.store.GetSubscriptionByLogistician(ctx, sub.LogisticianID)
}

// SweepExpiredTrials drops every subscriber trial past its end date back
// to guest. Called periodically by the server process.
func (e *Engine) SweepExpiredTrials(ctx context.Context) (int, error) {
	now := e.now()
	subs, err := e.store.GetSubscriptionsByTier(ctx, db.TierSubscriber, 500, 0)
	if err != nil {
		return 0, err
	}
	ended := 0
	for i := range subs {
		sub := subs[i]
		if sub.TrialEndDate == nil || sub.TrialEndDate.After(now) {
			continue
		}
		if _, err := e.applyTierChange(ctx, &sub, db.TierGuest, "trial ended", sub.TrialEndDate); err != nil {
			return ended, err
		}
		ended++
	}
	return ended, nil
}

// CancelSubscription cancels the actor's paid subscription.
func (e *Engine) CancelSubscription(ctx context.Context, actor Actor, reason string) error {
	if err := e.store.CancelSubscription(ctx, actor.OrgID, reason); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return &InvalidStateError{Entity: "subscription", ID: actor.OrgID, Status: "cancelled", Action: "cancel"}
		}
		return err
	}
	return nil
}

// UsageReport summarizes the actor's consumption against their limits.
func (e *Engine) UsageReport(ctx context.Context, actor Actor) (*entitlement.UsageReport, error) {
	sub, err := e.GetMySubscription(ctx, actor)
	if err != nil {
		return nil, err
	}
	rep := entitlement.Report(sub, e.now())
	return &rep, nil
}

// Plan describes one subscription tier for the public plan listing.
type Plan struct {
	Tier     string         `json:"tier"`
	Pricing  db.TierPricing `json:"pricing"`
	Limits   db.Limits      `json:"limits"`
	Features db.Features    `json:"features"`
}

// Plans lists the available tiers with their derived entitlements.
func Plans() []Plan {
	tiers := []string{db.TierGuest, db.TierSubscriber, db.TierPremium}
	plans := make([]Plan, 0, len(tiers))
	for _, t := range tiers {
		plans = append(plans, Plan{
			Tier:     t,
			Pricing:  entitlement.DerivePricing(t),
			Limits:   entitlement.DeriveLimits(t),
			Features: entitlement.DeriveFeatures(t),
		})
	}
	return plans
}
