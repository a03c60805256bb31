package db

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const contractColumns = `id, reference, need_id, need_reference, offer_id,
    client_org_id, client_name, logistician_id, logistician_name, site_id,
    site_name, storage_type, capacity, pricing, start_date, end_date,
    services, payment_terms, cancellation_policy, status, status_history,
    amendments, execution, billing, created_at, updated_at`

// CreateContract inserts a contract with commercial terms already
// snapshotted by the caller, issuing its CTR reference atomically.
func (s *Storage) CreateContract(ctx context.Context, c *Contract) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		ref, err := nextReference(ctx, tx, "CTR", time.Now().UTC().Year())
		if err != nil {
			return err
		}
		c.Reference = ref
		query := `
        INSERT INTO contract
            (id, reference, need_id, need_reference, offer_id, client_org_id,
             client_name, logistician_id, logistician_name, site_id, site_name,
             storage_type, capacity, pricing, start_date, end_date, services,
             payment_terms, cancellation_policy, status, status_history)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
             $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
        RETURNING created_at, updated_at`
		err = tx.QueryRowContext(ctx, query,
			c.ID, c.Reference, c.NeedID, c.NeedReference, c.OfferID,
			c.ClientOrgID, c.ClientName, c.LogisticianID, c.LogisticianName,
			c.SiteID, c.SiteName, c.StorageType, c.Capacity, c.Pricing,
			c.StartDate, c.EndDate, c.Services, c.PaymentTerms,
			c.CancellationPolicy, c.Status, c.StatusHistory).
			Scan(&c.CreatedAt, &c.UpdatedAt)
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	})
}

func (s *Storage) GetContract(ctx context.Context, id string) (*Contract, error) {
	c := &Contract{}
	query := `SELECT ` + contractColumns + ` FROM contract WHERE id=$1`
	if err := s.db.GetContext(ctx, c, query, id); err != nil {
		return nil, mapGetErr(err)
	}
	sigs, err := s.getSignatures(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	c.Signatures = sigs[id]
	if c.Signatures == nil {
		c.Signatures = []Signature{}
	}
	return c, nil
}

// GetContractsByParty lists contracts where the given organization is
// either the client or the logistician, newest first.
func (s *Storage) GetContractsByParty(ctx context.Context, orgID, status string, limit, offset int) ([]Contract, error) {
	query := `
        SELECT ` + contractColumns + ` FROM contract
        WHERE (client_org_id = $1 OR logistician_id = $1)
          AND ($2 = '' OR status = $2)
        ORDER BY created_at DESC
        LIMIT $3 OFFSET $4`
	contracts := []Contract{}
	if err := s.db.SelectContext(ctx, &contracts, query, orgID, status, limit, offset); err != nil {
		return nil, err
	}
	return s.attachSignatures(ctx, contracts)
}

func (s *Storage) attachSignatures(ctx context.Context, contracts []Contract) ([]Contract, error) {
	if len(contracts) == 0 {
		return contracts, nil
	}
	ids := make([]string, len(contracts))
	for i := range contracts {
		ids[i] = contracts[i].ID
	}
	sigs, err := s.getSignatures(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range contracts {
		contracts[i].Signatures = sigs[contracts[i].ID]
		if contracts[i].Signatures == nil {
			contracts[i].Signatures = []Signature{}
		}
	}
	return contracts, nil
}

func (s *Storage) getSignatures(ctx context.Context, contractIDs []string) (map[string][]Signature, error) {
	rows := []Signature{}
	query := `
        SELECT contract_id, party, signed_by, signed_at, method
        FROM contract_signature
        WHERE contract_id = ANY($1)
        ORDER BY signed_at ASC`
	if err := s.db.SelectContext(ctx, &rows, query, pq.Array(contractIDs)); err != nil {
		return nil, err
	}
	out := make(map[string][]Signature, len(contractIDs))
	for _, sig := range rows {
		out[sig.ContractID] = append(out[sig.ContractID], sig)
	}
	return out, nil
}

// TransitionContract moves a contract between statuses, guarded by the
// statuses the transition is legal from, and appends to its history.
func (s *Storage) TransitionContract(ctx context.Context, id string, from []string, to string, change StatusChange) error {
	res, err := s.db.ExecContext(ctx, `
        UPDATE contract
        SET status = $1, status_history = `+historyEntry+`,
            updated_at = NOW()
        WHERE id = $4 AND status = ANY($5)`,
		to, change.ChangedBy, change.Reason, id, pq.Array(from))
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// SignContract records one party's signature. A repeated signature by the
// same party is a no-op. When the second party signs while the contract is
// pending signature, the contract is activated and its billing schedule
// initialized with the given value. Reports whether this call activated
// the contract.
func (s *Storage) SignContract(ctx context.Context, contractID string, sig Signature, billing Billing) (bool, error) {
	activated := false
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO contract_signature (contract_id, party, signed_by, signed_at, method)
            VALUES ($1, $2, $3, NOW(), $4)
            ON CONFLICT (contract_id, party) DO NOTHING`,
			contractID, sig.Party, sig.SignedBy, sig.Method); err != nil {
			return err
		}
		var count int
		if err := tx.GetContext(ctx, &count,
			`SELECT COUNT(1) FROM contract_signature WHERE contract_id=$1`,
			contractID); err != nil {
			return err
		}
		if count < 2 {
			return nil
		}
		res, err := tx.ExecContext(ctx, `
            UPDATE contract
            SET status = $1, billing = $2, status_history = status_history ||
                jsonb_build_array(jsonb_build_object(
                    'status', $1::text, 'changedAt', NOW(),
                    'reason', 'both parties signed')),
                updated_at = NOW()
            WHERE id = $3 AND status = $4`,
			ContractActive, billing, contractID, ContractPendingSignature)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		activated = n > 0
		return nil
	})
	return activated, err
}

// UpdateContractDraft replaces the editable terms of a contract still in draft.
func (s *Storage) UpdateContractDraft(ctx context.Context, c *Contract) error {
	res, err := s.db.ExecContext(ctx, `
        UPDATE contract
        SET capacity=$1, pricing=$2, start_date=$3, end_date=$4, services=$5,
            payment_terms=$6, cancellation_policy=$7, updated_at=NOW()
        WHERE id=$8 AND status=$9`,
		c.Capacity, c.Pricing, c.StartDate, c.EndDate, c.Services,
		c.PaymentTerms, c.CancellationPolicy, c.ID, ContractDraft)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// UpdateContractAmendments replaces the contract's amendment log, guarded
// by the amendment count read by the caller so two concurrent amendments
// cannot both take the same version number.
func (s *Storage) UpdateContractAmendments(ctx context.Context, id string, amendments Amendments, priorCount int) error {
	res, err := s.db.ExecContext(ctx, `
        UPDATE contract
        SET amendments=$1, updated_at=NOW()
        WHERE id=$2 AND status=$3 AND jsonb_array_length(amendments)=$4`,
		amendments, id, ContractActive, priorCount)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// UpdateContractExecution replaces the execution block of a running
// contract. Incidents may still be reported while suspended.
func (s *Storage) UpdateContractExecution(ctx context.Context, id string, exec Execution) error {
	res, err := s.db.ExecContext(ctx, `
        UPDATE contract SET execution=$1, updated_at=NOW()
        WHERE id=$2 AND status = ANY($3)`,
		exec, id, pq.Array([]string{ContractActive, ContractSuspended}))
	if err != nil {
		return err
	}
	return checkAffected(res)
}
