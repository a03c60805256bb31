package market

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"storagemarket/db"
	"storagemarket/internal/entitlement"
)

// CreateSite registers a new site for the acting logistician, consuming
// one of their tier's site slots.
func (e *Engine) CreateSite(ctx context.Context, actor Actor, site *db.Site) (*db.Site, error) {
	sub, err := e.store.GetSubscriptionByLogistician(ctx, actor.OrgID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, &ForbiddenError{Msg: "logistician has no subscription; register one first"}
		}
		return nil, err
	}
	if d := entitlement.CanPerform(sub, entitlement.ActionCreateSite, e.now()); !d.Allowed {
		return nil, &QuotaExceededError{Reason: d.Reason}
	}
	if err := validateSite(site); err != nil {
		return nil, err
	}
	site.ID = uuid.NewString()
	site.LogisticianID = actor.OrgID
	site.LogisticianName = actor.OrgName
	site.Active = true
	if site.AvailableCapacity.Quantity == 0 {
		site.AvailableCapacity = site.TotalCapacity
	}
	if err := e.store.CreateSite(ctx, site); err != nil {
		if errors.Is(err, db.ErrQuotaExceeded) {
			return nil, &QuotaExceededError{Reason: "site limit reached for tier " + sub.Tier}
		}
		return nil, err
	}
	return site, nil
}

func validateSite(site *db.Site) error {
	if site.Name == "" {
		return &ValidationError{Msg: "site name is required"}
	}
	if site.Country == "" || site.City == "" {
		return &ValidationError{Msg: "site country and city are required"}
	}
	if site.TotalCapacity.Quantity <= 0 {
		return &ValidationError{Msg: "total capacity must be positive"}
	}
	if !volumeUnits[site.TotalCapacity.Unit] {
		return &ValidationError{Msg: "unknown capacity unit " + site.TotalCapacity.Unit}
	}
	if (site.Latitude == nil) != (site.Longitude == nil) {
		return &ValidationError{Msg: "latitude and longitude must be set together"}
	}
	return nil
}

// GetSite returns a site. Deactivated sites stay readable so existing
// offers and contracts resolve.
func (e *Engine) GetSite(ctx context.Context, id string) (*db.Site, error) {
	site, err := e.store.GetSite(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err, "site", id)
	}
	return site, nil
}

// ListMySites lists the acting logistician's sites.
func (e *Engine) ListMySites(ctx context.Context, actor Actor) ([]db.Site, error) {
	return e.store.GetSitesByLogistician(ctx, actor.OrgID)
}

// SearchSites lists active sites matching the filters.
func (e *Engine) SearchSites(ctx context.Context, country, region, storageType string, minCapacity float64, limit, offset int) ([]db.Site, error) {
	return e.store.SearchSites(ctx, country, region, storageType, minCapacity, limit, offset)
}

// UpdateSite revises the actor's own active site.
func (e *Engine) UpdateSite(ctx context.Context, actor Actor, site *db.Site) (*db.Site, error) {
	current, err := e.ownSite(ctx, actor, site.ID)
	if err != nil {
		return nil, err
	}
	if !current.Active {
		return nil, &InvalidStateError{Entity: "site", ID: site.ID, Status: "deactivated", Action: "update"}
	}
	if err := validateSite(site); err != nil {
		return nil, err
	}
	if err := e.store.UpdateSite(ctx, site); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, &InvalidStateError{Entity: "site", ID: site.ID, Status: "deactivated", Action: "update"}
		}
		return nil, err
	}
	return e.store.GetSite(ctx, site.ID)
}

// UpdateSiteCapacity refreshes the actor's site availability snapshot.
func (e *Engine) UpdateSiteCapacity(ctx context.Context, actor Actor, id string, available db.Volume) (*db.Site, error) {
	site, err := e.ownSite(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if available.Quantity < 0 {
		return nil, &ValidationError{Msg: "available capacity cannot be negative"}
	}
	if available.Quantity > site.TotalCapacity.Quantity {
		return nil, &ValidationError{Msg: "available capacity cannot exceed total capacity"}
	}
	if err := e.store.UpdateSiteCapacity(ctx, id, available); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, &InvalidStateError{Entity: "site", ID: id, Status: "deactivated", Action: "update capacity of"}
		}
		return nil, err
	}
	return e.store.GetSite(ctx, id)
}

// DeactivateSite soft-deactivates the actor's site, releasing their site
// slot. The site record remains for existing offers and contracts.
func (e *Engine) DeactivateSite(ctx context.Context, actor Actor, id string) (*db.Site, error) {
	if _, err := e.ownSite(ctx, actor, id); err != nil {
		return nil, err
	}
	if err := e.store.DeactivateSite(ctx, id); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, &InvalidStateError{Entity: "site", ID: id, Status: "deactivated", Action: "deactivate"}
		}
		return nil, err
	}
	return e.store.GetSite(ctx, id)
}

func (e *Engine) ownSite(ctx context.Context, actor Actor, id string) (*db.Site, error) {
	site, err := e.store.GetSite(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err, "site", id)
	}
	if site.LogisticianID != actor.OrgID {
		return nil, &ForbiddenError{Msg: "site " + id + " belongs to another logistician"}
	}
	return site, nil
}
