package domain

import (
	"errors"
	"fmt"
)

// ErrDuplicateCode is returned by stores when a human-readable code is already
// taken by another record of the same kind.
var ErrDuplicateCode = errors.New("duplicate record code")

// ValidationError reports a missing or malformed field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// InsufficientQuantityError reports a request that would drive a seed batch's
// available quantity below zero.
type InsufficientQuantityError struct {
	BatchID   string
	Requested int
	Available int
}

func (e InsufficientQuantityError) Error() string {
	return fmt.Sprintf("seed batch %s has %d available, %d requested", e.BatchID, e.Available, e.Requested)
}

// NotFoundError reports a reference to a record that does not exist.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// ProvenanceConflictError reports an origin reference set that violates the
// single-provenance rule.
type ProvenanceConflictError struct {
	Entity EntityType
	Reason string
}

func (e ProvenanceConflictError) Error() string {
	return fmt.Sprintf("%s provenance conflict: %s", e.Entity, e.Reason)
}

// StateError reports an operation against a record in a terminal state.
type StateError struct {
	Entity EntityType
	ID     string
	Reason string
}

func (e StateError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Entity, e.ID, e.Reason)
}
