package expense

import "fmt"

// ValidationError reports malformed input: a non-positive amount, an empty
// required field, an inverted period, or a reference to an unknown receipt
// at report-creation time.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an operation addressed to a receipt or report ID
// that does not exist.
type NotFoundError struct {
	Kind string // "receipt" or "report"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// InvalidStateError reports a status transition that violates the
// draft -> submitted -> approved/rejected ordering.
type InvalidStateError struct {
	ID     string
	Status Status
	Action string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s report %s in status %q", e.Action, e.ID, e.Status)
}

// PersistenceError reports a failed write-through to the store. The
// in-memory mutation that triggered the save is not rolled back; callers
// are told so they can retry the flush or accept the divergence.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
