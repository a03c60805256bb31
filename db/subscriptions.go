package db

import (
	"context"
)

const subscriptionColumns = `id, logistician_id, logistician_name, tier,
    start_date, end_date, trial_end_date, pricing, limits, features,
    active_sites, active_offers, monthly_responses, last_reset_date,
    metrics, status, status_reason, auto_renew, tier_history,
    created_at, updated_at`

// CreateSubscription registers a logistician's subscription. Each
// logistician holds exactly one; a second registration returns ErrDuplicate.
func (s *Storage) CreateSubscription(ctx context.Context, sub *Subscription) error {
	query := `
        INSERT INTO subscription
            (id, logistician_id, logistician_name, tier, start_date,
             trial_end_date, pricing, limits, features, last_reset_date,
             metrics, status, auto_renew, tier_history)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), $10, $11, $12, $13)
        RETURNING last_reset_date, created_at, updated_at`
	err := s.db.QueryRowContext(ctx, query,
		sub.ID, sub.LogisticianID, sub.LogisticianName, sub.Tier,
		sub.StartDate, sub.TrialEndDate, sub.Pricing, sub.Limits,
		sub.Features, sub.Metrics, sub.Status, sub.AutoRenew,
		sub.TierHistory).
		Scan(&sub.LastResetDate, &sub.CreatedAt, &sub.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetSubscriptionByLogistician returns the logistician's subscription with
// its rolling usage window refreshed when a month has passed.
func (s *Storage) GetSubscriptionByLogistician(ctx context.Context, logisticianID string) (*Subscription, error) {
	if _, err := s.db.ExecContext(ctx, `
        UPDATE subscription
        SET monthly_responses = 0, last_reset_date = NOW()
        WHERE logistician_id=$1 AND last_reset_date < NOW() - interval '1 month'`,
		logisticianID); err != nil {
		return nil, err
	}
	sub := &Subscription{}
	query := `SELECT ` + subscriptionColumns + ` FROM subscription WHERE logistician_id=$1`
	err := s.db.GetContext(ctx, sub, query, logisticianID)
	return sub, mapGetErr(err)
}

// ChangeSubscriptionTier replaces the tier and every tier-derived block
// wholesale, guarded by the tier the caller read. Returns ErrConflict when
// the tier changed underneath.
func (s *Storage) ChangeSubscriptionTier(ctx context.Context, sub *Subscription, fromTier string) error {
	res, err := s.db.ExecContext(ctx, `
        UPDATE subscription
        SET tier=$1, pricing=$2, limits=$3, features=$4, trial_end_date=$5,
            tier_history=$6, status=$7, status_reason=$8, updated_at=NOW()
        WHERE logistician_id=$9 AND tier=$10`,
		sub.Tier, sub.Pricing, sub.Limits, sub.Features, sub.TrialEndDate,
		sub.TierHistory, sub.Status, sub.StatusReason,
		sub.LogisticianID, fromTier)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// CancelSubscription marks the subscription cancelled at the given reason.
// Cancelling drops the logistician back to guest entitlements on the next
// tier change; existing counters are kept.
func (s *Storage) CancelSubscription(ctx context.Context, logisticianID, reason string) error {
	res, err := s.db.ExecContext(ctx, `
        UPDATE subscription
        SET status='cancelled', status_reason=$1, auto_renew=FALSE,
            end_date=NOW(), updated_at=NOW()
        WHERE logistician_id=$2 AND status <> 'cancelled'`,
		reason, logisticianID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// UpdateSubscriptionMetrics replaces the logistician's track record.
func (s *Storage) UpdateSubscriptionMetrics(ctx context.Context, logisticianID string, m Metrics) error {
	res, err := s.db.ExecContext(ctx, `
        UPDATE subscription SET metrics=$1, updated_at=NOW()
        WHERE logistician_id=$2`, m, logisticianID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSubscriptionsByTier lists active subscriptions on a tier.
func (s *Storage) GetSubscriptionsByTier(ctx context.Context, tier string, limit, offset int) ([]Subscription, error) {
	query := `
        SELECT ` + subscriptionColumns + ` FROM subscription
        WHERE tier = $1 AND status = 'active'
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3`
	subs := []Subscription{}
	err := s.db.SelectContext(ctx, &subs, query, tier, limit, offset)
	return subs, err
}
