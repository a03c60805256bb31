package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const needColumns = `id, reference, owner_org_id, owner_org_name, storage_type,
    volume, date_window, location, constraints, requested_services, budget,
    publication_type, referred_logisticians, deadline, status, published_at,
    closed_at, attributed_at, attributed_offer_id, offers_count,
    created_at, updated_at`

// CreateNeed inserts a draft need, issuing its STK reference atomically.
func (s *Storage) CreateNeed(ctx context.Context, n *Need) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		ref, err := nextReference(ctx, tx, "STK", time.Now().UTC().Year())
		if err != nil {
			return err
		}
		n.Reference = ref
		query := `
        INSERT INTO need
            (id, reference, owner_org_id, owner_org_name, storage_type,
             volume, date_window, location, constraints, requested_services,
             budget, publication_type, referred_logisticians, deadline, status)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
        RETURNING created_at, updated_at`
		return tx.QueryRowContext(ctx, query,
			n.ID, n.Reference, n.OwnerOrgID, n.OwnerOrgName, n.StorageType,
			n.Volume, n.Window, n.Location, n.Constraints, n.RequestedServices,
			n.Budget, n.PublicationType, n.ReferredLogisticians, n.Deadline, n.Status).
			Scan(&n.CreatedAt, &n.UpdatedAt)
	})
}

func (s *Storage) GetNeed(ctx context.Context, id string) (*Need, error) {
	n := &Need{}
	query := `SELECT ` + needColumns + ` FROM need WHERE id=$1`
	err := s.db.GetContext(ctx, n, query, id)
	return n, mapGetErr(err)
}

// UpdateNeedDraft replaces the editable fields of a need still in DRAFT.
// Returns ErrConflict when the need has left DRAFT since it was read.
func (s *Storage) UpdateNeedDraft(ctx context.Context, n *Need) error {
	query := `
        UPDATE need
        SET storage_type=$1, volume=$2, date_window=$3, location=$4,
            constraints=$5, requested_services=$6, budget=$7,
            publication_type=$8, referred_logisticians=$9, deadline=$10,
            updated_at=NOW()
        WHERE id=$11 AND status=$12`
	res, err := s.db.ExecContext(ctx, query,
		n.StorageType, n.Volume, n.Window, n.Location, n.Constraints,
		n.RequestedServices, n.Budget, n.PublicationType,
		n.ReferredLogisticians, n.Deadline, n.ID, NeedDraft)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// TransitionNeed moves a need from one status to another, guarded by the
// expected current status. Returns ErrConflict on a lost race.
func (s *Storage) TransitionNeed(ctx context.Context, id, from, to string) error {
	var extra string
	switch to {
	case NeedPublished:
		extra = ", published_at=NOW()"
	case NeedClosed, NeedCancelled:
		extra = ", closed_at=NOW()"
	}
	query := fmt.Sprintf(`
        UPDATE need SET status=$1, updated_at=NOW()%s
        WHERE id=$2 AND status=$3`, extra)
	res, err := s.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// CloseNeed closes a published need and expires every offer still in play,
// all in one transaction.
func (s *Storage) CloseNeed(ctx context.Context, id, changedBy, reason string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
            UPDATE need SET status=$1, closed_at=NOW(), updated_at=NOW()
            WHERE id=$2 AND status=$3`, NeedClosed, id, NeedPublished)
		if err != nil {
			return err
		}
		if err := checkAffected(res); err != nil {
			return err
		}
		return expireOffersForNeed(ctx, tx, id, changedBy, reason)
	})
}

// CancelNeed cancels a need from the given status and expires any offers
// still in play, all in one transaction.
func (s *Storage) CancelNeed(ctx context.Context, id, from, changedBy, reason string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
            UPDATE need SET status=$1, closed_at=NOW(), updated_at=NOW()
            WHERE id=$2 AND status=$3`, NeedCancelled, id, from)
		if err != nil {
			return err
		}
		if err := checkAffected(res); err != nil {
			return err
		}
		if from != NeedPublished {
			return nil
		}
		return expireOffersForNeed(ctx, tx, id, changedBy, reason)
	})
}

// DeleteNeedDraft removes a need that never left DRAFT.
func (s *Storage) DeleteNeedDraft(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM need WHERE id=$1 AND status=$2`, id, NeedDraft)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// GetNeedsByOwner lists an organization's needs, newest first.
func (s *Storage) GetNeedsByOwner(ctx context.Context, orgID string, limit, offset int) ([]Need, error) {
	query := `
        SELECT ` + needColumns + ` FROM need
        WHERE owner_org_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3`
	needs := []Need{}
	err := s.db.SelectContext(ctx, &needs, query, orgID, limit, offset)
	return needs, err
}

// GetPublishedNeeds lists needs open for offers and visible to the given
// logistician: GLOBAL and MIXED needs are visible to everyone, REFERRED_ONLY
// needs only to logisticians on the referral list. Needs past their
// deadline are excluded.
func (s *Storage) GetPublishedNeeds(ctx context.Context, logisticianID, storageType string, limit, offset int) ([]Need, error) {
	query := `
        SELECT ` + needColumns + ` FROM need
        WHERE status = $1
          AND deadline > NOW()
          AND (publication_type <> $2 OR referred_logisticians @> to_jsonb(ARRAY[$3]::text[]))
          AND ($4 = '' OR storage_type = $4)
        ORDER BY published_at DESC
        LIMIT $5 OFFSET $6`
	needs := []Need{}
	err := s.db.SelectContext(ctx, &needs, query,
		NeedPublished, PublicationReferredOnly, logisticianID, storageType, limit, offset)
	return needs, err
}

func checkAffected(res interface{ RowsAffected() (int64, error) }) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}
