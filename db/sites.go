package db

import (
	"context"

	"github.com/jmoiron/sqlx"
)

const siteColumns = `id, logistician_id, logistician_name, name, address,
    city, postal_code, region, country, latitude, longitude, total_capacity,
    available_capacity, reserved_capacity, storage_types,
    temperature_conditions, ceiling_height, docks_count, handling_equipment,
    security_features, certifications, adr_authorized, adr_classes,
    customs_authorized, wms_system, api_available, real_time_tracking,
    rates, active, verified, last_capacity_update, created_at, updated_at`

// CreateSite inserts a site, consuming one of the logistician's site slots
// in the same transaction. Returns ErrQuotaExceeded when the tier's site
// limit is reached.
func (s *Storage) CreateSite(ctx context.Context, site *Site) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
            UPDATE subscription
            SET active_sites = active_sites + 1, updated_at = NOW()
            WHERE logistician_id=$1
              AND ((limits->>'maxSites')::int = -1
                   OR active_sites < (limits->>'maxSites')::int)`,
			site.LogisticianID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrQuotaExceeded
		}

		query := `
        INSERT INTO site
            (id, logistician_id, logistician_name, name, address, city,
             postal_code, region, country, latitude, longitude,
             total_capacity, available_capacity, storage_types,
             temperature_conditions, ceiling_height, docks_count,
             handling_equipment, security_features, certifications,
             adr_authorized, adr_classes, customs_authorized, wms_system,
             api_available, real_time_tracking, rates, active,
             last_capacity_update)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
             $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26,
             $27, TRUE, NOW())
        RETURNING last_capacity_update, created_at, updated_at`
		return tx.QueryRowContext(ctx, query,
			site.ID, site.LogisticianID, site.LogisticianName, site.Name,
			site.Address, site.City, site.PostalCode, site.Region, site.Country,
			site.Latitude, site.Longitude, site.TotalCapacity,
			site.AvailableCapacity, site.StorageTypes,
			site.TemperatureConditions, site.CeilingHeight, site.DocksCount,
			site.HandlingEquipment, site.SecurityFeatures, site.Certifications,
			site.ADRAuthorized, site.ADRClasses, site.CustomsAuthorized,
			site.WMSSystem, site.APIAvailable, site.RealTimeTracking,
			site.Rates).
			Scan(&site.LastCapacityUpdate, &site.CreatedAt, &site.UpdatedAt)
	})
}

func (s *Storage) GetSite(ctx context.Context, id string) (*Site, error) {
	site := &Site{}
	query := `SELECT ` + siteColumns + ` FROM site WHERE id=$1`
	err := s.db.GetContext(ctx, site, query, id)
	return site, mapGetErr(err)
}

// GetSitesByLogistician lists a logistician's sites, active ones first.
func (s *Storage) GetSitesByLogistician(ctx context.Context, logisticianID string) ([]Site, error) {
	query := `
        SELECT ` + siteColumns + ` FROM site
        WHERE logistician_id = $1
        ORDER BY active DESC, created_at DESC`
	sites := []Site{}
	err := s.db.SelectContext(ctx, &sites, query, logisticianID)
	return sites, err
}

// UpdateSite replaces a site's descriptive attributes.
func (s *Storage) UpdateSite(ctx context.Context, site *Site) error {
	res, err := s.db.ExecContext(ctx, `
        UPDATE site
        SET name=$1, address=$2, city=$3, postal_code=$4, region=$5,
            country=$6, latitude=$7, longitude=$8, total_capacity=$9,
            storage_types=$10, temperature_conditions=$11, ceiling_height=$12,
            docks_count=$13, handling_equipment=$14, security_features=$15,
            certifications=$16, adr_authorized=$17, adr_classes=$18,
            customs_authorized=$19, wms_system=$20, api_available=$21,
            real_time_tracking=$22, rates=$23, updated_at=NOW()
        WHERE id=$24 AND active`,
		site.Name, site.Address, site.City, site.PostalCode, site.Region,
		site.Country, site.Latitude, site.Longitude, site.TotalCapacity,
		site.StorageTypes, site.TemperatureConditions, site.CeilingHeight,
		site.DocksCount, site.HandlingEquipment, site.SecurityFeatures,
		site.Certifications, site.ADRAuthorized, site.ADRClasses,
		site.CustomsAuthorized, site.WMSSystem, site.APIAvailable,
		site.RealTimeTracking, site.Rates, site.ID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// UpdateSiteCapacity replaces the available-capacity snapshot.
func (s *Storage) UpdateSiteCapacity(ctx context.Context, id string, available Volume) error {
	res, err := s.db.ExecContext(ctx, `
        UPDATE site
        SET available_capacity=$1, last_capacity_update=NOW(), updated_at=NOW()
        WHERE id=$2 AND active`, available, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// ReserveSiteCapacity subtracts a confirmed contract's volume from the
// site's available capacity, refusing to go negative.
func (s *Storage) ReserveSiteCapacity(ctx context.Context, id string, quantity float64) error {
	res, err := s.db.ExecContext(ctx, `
        UPDATE site
        SET available_capacity = jsonb_set(available_capacity, '{quantity}',
                to_jsonb((available_capacity->>'quantity')::numeric - $1)),
            reserved_capacity = jsonb_set(
                COALESCE(reserved_capacity, jsonb_set(available_capacity, '{quantity}', '0'::jsonb)),
                '{quantity}',
                to_jsonb(COALESCE((reserved_capacity->>'quantity')::numeric, 0) + $1)),
            last_capacity_update = NOW(), updated_at = NOW()
        WHERE id=$2 AND active
          AND (available_capacity->>'quantity')::numeric >= $1`,
		quantity, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// DeactivateSite soft-deactivates a site and releases the logistician's
// site slot. Sites are never deleted so offers and contracts keep valid
// references.
func (s *Storage) DeactivateSite(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
            UPDATE site SET active=FALSE, updated_at=NOW()
            WHERE id=$1 AND active`, id)
		if err != nil {
			return err
		}
		if err := checkAffected(res); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
            UPDATE subscription
            SET active_sites = GREATEST(active_sites - 1, 0), updated_at = NOW()
            WHERE logistician_id = (SELECT logistician_id FROM site WHERE id=$1)`,
			id)
		return err
	})
}

// SearchSites lists active sites matching the given filters; empty filter
// values match everything.
func (s *Storage) SearchSites(ctx context.Context, country, region, storageType string, minCapacity float64, limit, offset int) ([]Site, error) {
	query := `
        SELECT ` + siteColumns + ` FROM site
        WHERE active
          AND ($1 = '' OR country = $1)
          AND ($2 = '' OR region = $2)
          AND ($3 = '' OR storage_types @> to_jsonb(ARRAY[$3]::text[]))
          AND (available_capacity->>'quantity')::numeric >= $4
        ORDER BY verified DESC, created_at DESC
        LIMIT $5 OFFSET $6`
	sites := []Site{}
	err := s.db.SelectContext(ctx, &sites, query,
		country, region, storageType, minCapacity, limit, offset)
	return sites, err
}

// GetSitesInBox lists active geocoded sites inside a latitude/longitude
// bounding box. Callers apply the exact distance filter.
func (s *Storage) GetSitesInBox(ctx context.Context, minLat, maxLat, minLon, maxLon float64) ([]Site, error) {
	query := `
        SELECT ` + siteColumns + ` FROM site
        WHERE active
          AND latitude IS NOT NULL AND longitude IS NOT NULL
          AND latitude BETWEEN $1 AND $2
          AND longitude BETWEEN $3 AND $4`
	sites := []Site{}
	err := s.db.SelectContext(ctx, &sites, query, minLat, maxLat, minLon, maxLon)
	return sites, err
}
