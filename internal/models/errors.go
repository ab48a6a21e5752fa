package models

import "fmt"

// ValidationError represents a data validation error on an input field.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent.
func (e *ValidationError) IsTransient() bool {
	return false
}

// DataIntegrityError represents a physically impossible reading set, such as
// a transformer whose metered output exceeds its input. It is always
// surfaced and never silently corrected: hiding it would mask meter or
// pipeline bugs upstream.
type DataIntegrityError struct {
	EntityKind string
	EntityID   string
	Detail     string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity violation on %s %s: %s", e.EntityKind, e.EntityID, e.Detail)
}

func (e *DataIntegrityError) IsTransient() bool {
	return false
}

// InsufficientDataError reports that an entity lacks the readings required
// for an analysis period. Callers exclude the entity rather than mis-score
// it.
type InsufficientDataError struct {
	EntityKind string
	EntityID   string
	Period     string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s %s in period %s", e.EntityKind, e.EntityID, e.Period)
}

func (e *InsufficientDataError) IsTransient() bool {
	return false
}
