package db

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const offerColumns = `id, need_id, need_reference, logistician_id,
    logistician_name, site_id, site_name, proposed_capacity,
    proposed_start_date, proposed_end_date, pricing, included_services,
    message, scoring, counter_offer, status, submitted_at, reviewed_at,
    decided_at, status_history, created_at, updated_at`

// historyEntry appends one status change to a JSONB status_history column.
const historyEntry = `status_history || jsonb_build_array(jsonb_build_object(
    'status', $1::text, 'changedAt', NOW(), 'changedBy', $2::text, 'reason', $3::text))`

// CreateOffer inserts an offer against a published need, consuming the
// logistician's monthly-response and active-offer quota in the same
// transaction. The rolling usage window is reset first when a month has
// passed since the last reset. Returns ErrConflict when the need is no
// longer open, ErrQuotaExceeded when the tier quota is spent, and
// ErrDuplicate when the logistician already has a live offer on the need.
func (s *Storage) CreateOffer(ctx context.Context, o *Offer) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
            UPDATE need SET offers_count = offers_count + 1, updated_at = NOW()
            WHERE id=$1 AND status=$2 AND deadline > NOW()`,
			o.NeedID, NeedPublished)
		if err != nil {
			return err
		}
		if err := checkAffected(res); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
            UPDATE subscription
            SET monthly_responses = 0, last_reset_date = NOW()
            WHERE logistician_id=$1 AND last_reset_date < NOW() - interval '1 month'`,
			o.LogisticianID); err != nil {
			return err
		}

		res, err = tx.ExecContext(ctx, `
            UPDATE subscription
            SET monthly_responses = monthly_responses + 1,
                active_offers = active_offers + 1,
                updated_at = NOW()
            WHERE logistician_id=$1
              AND ((limits->>'maxMonthlyResponses')::int = -1
                   OR monthly_responses < (limits->>'maxMonthlyResponses')::int)
              AND ((limits->>'maxActiveOffers')::int = -1
                   OR active_offers < (limits->>'maxActiveOffers')::int)`,
			o.LogisticianID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrQuotaExceeded
		}

		query := `
        INSERT INTO offer
            (id, need_id, need_reference, logistician_id, logistician_name,
             site_id, site_name, proposed_capacity, proposed_start_date,
             proposed_end_date, pricing, included_services, message,
             status, submitted_at, status_history)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), $15)
        RETURNING submitted_at, created_at, updated_at`
		err = tx.QueryRowContext(ctx, query,
			o.ID, o.NeedID, o.NeedReference, o.LogisticianID, o.LogisticianName,
			o.SiteID, o.SiteName, o.ProposedCapacity, o.ProposedStartDate,
			o.ProposedEndDate, o.Pricing, o.IncludedServices, o.Message,
			o.Status, o.StatusHistory).
			Scan(&o.SubmittedAt, &o.CreatedAt, &o.UpdatedAt)
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	})
}

func (s *Storage) GetOffer(ctx context.Context, id string) (*Offer, error) {
	o := &Offer{}
	query := `SELECT ` + offerColumns + ` FROM offer WHERE id=$1`
	err := s.db.GetContext(ctx, o, query, id)
	return o, mapGetErr(err)
}

// GetOffersByNeed lists all offers submitted against a need.
func (s *Storage) GetOffersByNeed(ctx context.Context, needID string) ([]Offer, error) {
	query := `
        SELECT ` + offerColumns + ` FROM offer
        WHERE need_id = $1
        ORDER BY submitted_at ASC`
	offers := []Offer{}
	err := s.db.SelectContext(ctx, &offers, query, needID)
	return offers, err
}

// GetOffersByLogistician lists a logistician's offers, newest first.
func (s *Storage) GetOffersByLogistician(ctx context.Context, logisticianID string, limit, offset int) ([]Offer, error) {
	query := `
        SELECT ` + offerColumns + ` FROM offer
        WHERE logistician_id = $1
        ORDER BY submitted_at DESC
        LIMIT $2 OFFSET $3`
	offers := []Offer{}
	err := s.db.SelectContext(ctx, &offers, query, logisticianID, limit, offset)
	return offers, err
}

// TransitionOffer moves an offer between statuses, guarded by the set of
// statuses the transition is legal from, and appends to its history.
// Terminal transitions release the logistician's active-offer slot.
func (s *Storage) TransitionOffer(ctx context.Context, id string, from []string, to string, change StatusChange) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		return transitionOffer(ctx, tx, id, from, to, change)
	})
}

func transitionOffer(ctx context.Context, tx *sqlx.Tx, id string, from []string, to string, change StatusChange) error {
	var extra string
	switch to {
	case OfferUnderReview:
		extra = ", reviewed_at = NOW()"
	case OfferAccepted, OfferRejected, OfferWithdrawn:
		extra = ", decided_at = NOW()"
	}
	res, err := tx.ExecContext(ctx, `
        UPDATE offer
        SET status = $1, status_history = `+historyEntry+`,
            updated_at = NOW()`+extra+`
        WHERE id = $4 AND status = ANY($5)`,
		to, change.ChangedBy, change.Reason, id, pq.Array(from))
	if err != nil {
		return err
	}
	if err := checkAffected(res); err != nil {
		return err
	}
	if OfferTerminal(to) {
		return releaseOfferSlot(ctx, tx, id)
	}
	return nil
}

func releaseOfferSlot(ctx context.Context, tx *sqlx.Tx, offerID string) error {
	_, err := tx.ExecContext(ctx, `
        UPDATE subscription
        SET active_offers = GREATEST(active_offers - 1, 0), updated_at = NOW()
        WHERE logistician_id = (SELECT logistician_id FROM offer WHERE id=$1)`,
		offerID)
	return err
}

// UpdateOfferTerms rewrites an offer's negotiable fields, its counter-offer
// block, status and history in one guarded update. Used both for edits
// while the offer is open and for counter-offer resolution.
func (s *Storage) UpdateOfferTerms(ctx context.Context, o *Offer, from []string) error {
	res, err := s.db.ExecContext(ctx, `
        UPDATE offer
        SET proposed_capacity=$1, proposed_start_date=$2, proposed_end_date=$3,
            pricing=$4, included_services=$5, message=$6, counter_offer=$7,
            status=$8, status_history=$9, updated_at=NOW()
        WHERE id=$10 AND status = ANY($11)`,
		o.ProposedCapacity, o.ProposedStartDate, o.ProposedEndDate,
		o.Pricing, o.IncludedServices, o.Message, o.CounterOffer,
		o.Status, o.StatusHistory, o.ID, pq.Array(from))
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// SetOfferScoring persists a computed score card on an offer.
func (s *Storage) SetOfferScoring(ctx context.Context, id string, sc ScoreCard) error {
	res, err := s.db.ExecContext(ctx, `
        UPDATE offer SET scoring=$1, updated_at=NOW() WHERE id=$2`, sc, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AcceptOffer attributes a need to one offer: the need is conditionally
// moved to ATTRIBUTED, the winning offer to accepted, and every rival
// offer still in play is rejected, all in one transaction. Returns
// ErrConflict when the need was already attributed or closed.
func (s *Storage) AcceptOffer(ctx context.Context, needID, offerID, changedBy string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
            UPDATE need
            SET status=$1, attributed_at=NOW(), attributed_offer_id=$2,
                updated_at=NOW()
            WHERE id=$3 AND status=$4`,
			NeedAttributed, offerID, needID, NeedPublished)
		if err != nil {
			return err
		}
		if err := checkAffected(res); err != nil {
			return err
		}

		err = transitionOffer(ctx, tx, offerID, NonTerminalOfferStatuses,
			OfferAccepted, StatusChange{Status: OfferAccepted, ChangedBy: changedBy})
		if err != nil {
			return err
		}

		// Release rivals' active-offer slots before their rows change.
		if _, err := tx.ExecContext(ctx, `
            UPDATE subscription s
            SET active_offers = GREATEST(active_offers - 1, 0), updated_at = NOW()
            FROM offer o
            WHERE o.need_id=$1 AND o.id<>$2 AND o.status = ANY($3)
              AND s.logistician_id = o.logistician_id`,
			needID, offerID, pq.Array(NonTerminalOfferStatuses)); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
            UPDATE offer
            SET status = $1, status_history = `+historyEntry+`,
                decided_at = NOW(), updated_at = NOW()
            WHERE need_id = $4 AND id <> $5 AND status = ANY($6)`,
			OfferRejected, changedBy, "another offer accepted",
			needID, offerID, pq.Array(NonTerminalOfferStatuses))
		return err
	})
}

func expireOffersForNeed(ctx context.Context, tx *sqlx.Tx, needID, changedBy, reason string) error {
	if _, err := tx.ExecContext(ctx, `
        UPDATE subscription s
        SET active_offers = GREATEST(active_offers - 1, 0), updated_at = NOW()
        FROM offer o
        WHERE o.need_id=$1 AND o.status = ANY($2)
          AND s.logistician_id = o.logistician_id`,
		needID, pq.Array(NonTerminalOfferStatuses)); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `
        UPDATE offer
        SET status = $1, status_history = `+historyEntry+`,
            updated_at = NOW()
        WHERE need_id = $4 AND status = ANY($5)`,
		OfferExpired, changedBy, reason, needID, pq.Array(NonTerminalOfferStatuses))
	return err
}

// ExpireStaleOffers expires every live offer on needs whose deadline has
// passed. Meant to be run periodically; returns the number of offers touched.
func (s *Storage) ExpireStaleOffers(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
        UPDATE offer o
        SET status = $1, status_history = o.status_history || jsonb_build_array(
                jsonb_build_object('status', $1::text, 'changedAt', NOW(),
                                   'reason', 'response deadline passed')),
            updated_at = NOW()
        FROM need n
        WHERE o.need_id = n.id AND n.deadline <= $2
          AND o.status = ANY($3)`,
		OfferExpired, now, pq.Array(NonTerminalOfferStatuses))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
