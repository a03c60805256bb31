package market

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"storagemarket/db"
)

var storageTypes = map[string]bool{
	"ambient":                true,
	"temperature_controlled": true,
	"refrigerated":           true,
	"frozen":                 true,
	"hazardous":              true,
	"bonded":                 true,
	"outdoor":                true,
}

var volumeUnits = map[string]bool{
	"sqm":           true,
	"pallets":       true,
	"linear_meters": true,
	"cbm":           true,
}

// CreateNeed validates and stores a new draft need owned by the actor.
func (e *Engine) CreateNeed(ctx context.Context, actor Actor, n *db.Need) (*db.Need, error) {
	if err := e.validateNeed(n); err != nil {
		return nil, err
	}
	n.ID = uuid.NewString()
	n.OwnerOrgID = actor.OrgID
	n.OwnerOrgName = actor.OrgName
	n.Status = db.NeedDraft
	if err := e.store.CreateNeed(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (e *Engine) validateNeed(n *db.Need) error {
	if !storageTypes[n.StorageType] {
		return &ValidationError{Msg: "unknown storage type " + n.StorageType}
	}
	if !volumeUnits[n.Volume.Unit] {
		return &ValidationError{Msg: "unknown volume unit " + n.Volume.Unit}
	}
	if n.Volume.Quantity <= 0 {
		return &ValidationError{Msg: "volume quantity must be positive"}
	}
	if n.Location.Country == "" {
		return &ValidationError{Msg: "location country is required"}
	}
	if n.Window.StartDate.IsZero() {
		return &ValidationError{Msg: "start date is required"}
	}
	if n.Window.EndDate != nil && !n.Window.EndDate.After(n.Window.StartDate) {
		return &ValidationError{Msg: "end date must be after start date"}
	}
	if n.Deadline.IsZero() || !n.Deadline.After(e.now()) {
		return &ValidationError{Msg: "response deadline must be in the future"}
	}
	switch n.PublicationType {
	case db.PublicationGlobal, db.PublicationMixed:
	case db.PublicationReferredOnly:
		if len(n.ReferredLogisticians) == 0 {
			return &ValidationError{Msg: "referred-only publication requires at least one referred logistician"}
		}
	case "":
		n.PublicationType = db.PublicationGlobal
	default:
		return &ValidationError{Msg: "unknown publication type " + n.PublicationType}
	}
	return nil
}

// GetNeed returns a need visible to the actor: the owner always, others
// only once published.
func (e *Engine) GetNeed(ctx context.Context, actor Actor, id string) (*db.Need, error) {
	n, err := e.store.GetNeed(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err, "need", id)
	}
	if n.OwnerOrgID != actor.OrgID && n.Status == db.NeedDraft {
		return nil, &NotFoundError{Entity: "need", ID: id}
	}
	return n, nil
}

// UpdateNeed replaces a draft need's editable fields.
func (e *Engine) UpdateNeed(ctx context.Context, actor Actor, n *db.Need) (*db.Need, error) {
	current, err := e.ownNeed(ctx, actor, n.ID)
	if err != nil {
		return nil, err
	}
	if current.Status != db.NeedDraft {
		return nil, &InvalidStateError{Entity: "need", ID: n.ID, Status: current.Status, Action: "update"}
	}
	if err := e.validateNeed(n); err != nil {
		return nil, err
	}
	if err := e.store.UpdateNeedDraft(ctx, n); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, &InvalidStateError{Entity: "need", ID: n.ID, Status: current.Status, Action: "update"}
		}
		return nil, err
	}
	return e.store.GetNeed(ctx, n.ID)
}

// PublishNeed opens a draft need for offers.
func (e *Engine) PublishNeed(ctx context.Context, actor Actor, id string) (*db.Need, error) {
	n, err := e.ownNeed(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if n.Status != db.NeedDraft {
		return nil, &InvalidStateError{Entity: "need", ID: id, Status: n.Status, Action: "publish"}
	}
	if !n.Deadline.After(e.now()) {
		return nil, &ValidationError{Msg: "cannot publish a need whose deadline has passed"}
	}
	if err := e.store.TransitionNeed(ctx, id, db.NeedDraft, db.NeedPublished); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, &InvalidStateError{Entity: "need", ID: id, Status: n.Status, Action: "publish"}
		}
		return nil, err
	}
	return e.store.GetNeed(ctx, id)
}

// CloseNeed closes a published need without attribution; offers still in
// play expire.
func (e *Engine) CloseNeed(ctx context.Context, actor Actor, id, reason string) (*db.Need, error) {
	n, err := e.ownNeed(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if n.Status != db.NeedPublished {
		return nil, &InvalidStateError{Entity: "need", ID: id, Status: n.Status, Action: "close"}
	}
	if reason == "" {
		reason = "need closed without attribution"
	}
	if err := e.store.CloseNeed(ctx, id, actor.UserID, reason); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, &InvalidStateError{Entity: "need", ID: id, Status: n.Status, Action: "close"}
		}
		return nil, err
	}
	return e.store.GetNeed(ctx, id)
}

// CancelNeed cancels a need from DRAFT or PUBLISHED.
func (e *Engine) CancelNeed(ctx context.Context, actor Actor, id, reason string) (*db.Need, error) {
	n, err := e.ownNeed(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if n.Status != db.NeedDraft && n.Status != db.NeedPublished {
		return nil, &InvalidStateError{Entity: "need", ID: id, Status: n.Status, Action: "cancel"}
	}
	if reason == "" {
		reason = "need cancelled"
	}
	if err := e.store.CancelNeed(ctx, id, n.Status, actor.UserID, reason); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, &InvalidStateError{Entity: "need", ID: id, Status: n.Status, Action: "cancel"}
		}
		return nil, err
	}
	return e.store.GetNeed(ctx, id)
}

// DeleteNeed removes a need that never left DRAFT.
func (e *Engine) DeleteNeed(ctx context.Context, actor Actor, id string) error {
	n, err := e.ownNeed(ctx, actor, id)
	if err != nil {
		return err
	}
	if n.Status != db.NeedDraft {
		return &InvalidStateError{Entity: "need", ID: id, Status: n.Status, Action: "delete"}
	}
	if err := e.store.DeleteNeedDraft(ctx, id); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return &InvalidStateError{Entity: "need", ID: id, Status: n.Status, Action: "delete"}
		}
		return err
	}
	return nil
}

// ListMyNeeds lists the actor's organization's needs.
func (e *Engine) ListMyNeeds(ctx context.Context, actor Actor, limit, offset int) ([]db.Need, error) {
	return e.store.GetNeedsByOwner(ctx, actor.OrgID, limit, offset)
}

// ListPublishedNeeds lists open needs visible to the acting logistician.
func (e *Engine) ListPublishedNeeds(ctx context.Context, actor Actor, storageType string, limit, offset int) ([]db.Need, error) {
	return e.store.GetPublishedNeeds(ctx, actor.OrgID, storageType, limit, offset)
}

func (e *Engine) ownNeed(ctx context.Context, actor Actor, id string) (*db.Need, error) {
	n, err := e.store.GetNeed(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err, "need", id)
	}
	if n.OwnerOrgID != actor.OrgID {
		return nil, &ForbiddenError{Msg: "need " + id + " belongs to another organization"}
	}
	return n, nil
}

func mapStoreErr(err error, entity, id string) error {
	if errors.Is(err, db.ErrNotFound) {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return err
}
