package mandate

import "fmt"

// ValidationError reports malformed input to mandate creation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid mandate %s: %s", e.Field, e.Reason)
}

// InvalidStateError reports an operation the mandate's current type and
// status do not permit.
type InvalidStateError struct {
	MandateID string
	Op        Op
	Type      Type
	Status    Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s mandate %s in state (%s, %s)", e.Op, e.MandateID, e.Type, e.Status)
}

// NotFoundError reports a mandate id absent from the store.
type NotFoundError struct {
	MandateID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("mandate %s not found", e.MandateID)
}

// DuplicateIDError is returned when inserting an id the store already holds.
type DuplicateIDError struct {
	MandateID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("mandate id %s already in use", e.MandateID)
}
