package market

import "fmt"

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ValidationError reports rejected input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// ForbiddenError reports an actor acting outside their ownership.
type ForbiddenError struct {
	Msg string
}

func (e *ForbiddenError) Error() string { return e.Msg }

// InvalidStateError reports an action illegal in the entity's current status.
type InvalidStateError struct {
	Entity string
	ID     string
	Status string
	Action string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s %s %s in status %s", e.Action, e.Entity, e.ID, e.Status)
}

// QuotaExceededError reports a tier limit preventing the action.
type QuotaExceededError struct {
	Reason string
}

func (e *QuotaExceededError) Error() string { return e.Reason }

// DuplicateActionError reports an action that would create a forbidden
// duplicate, such as a second live offer on the same need.
type DuplicateActionError struct {
	Msg string
}

func (e *DuplicateActionError) Error() string { return e.Msg }

// DeadlinePassedError reports an offer submitted after the need's deadline.
type DeadlinePassedError struct {
	NeedID string
}

func (e *DeadlinePassedError) Error() string {
	return fmt.Sprintf("response deadline for need %s has passed", e.NeedID)
}
