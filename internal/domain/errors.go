package domain

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
)

// ValidationError rejects malformed input before any store access.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConflictError names the first date/room pair that failed an availability
// check and the status that claimed it, so callers can tell the user exactly
// what went wrong.
type ConflictError struct {
	Date   Date
	RoomID string
	Status Status
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("room %s is %s on %s", e.RoomID, e.Status, e.Date)
}

func IsConflictError(err error) *ConflictError {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce
	}
	return nil
}

// CapacityError reports a party that does not fit the requested rooms.
type CapacityError struct {
	RoomID string
	Beds   int
	Guests int
}

func (e *CapacityError) Error() string {
	if e.RoomID == "" {
		return fmt.Sprintf("party of %d exceeds total capacity of %d beds", e.Guests, e.Beds)
	}
	return fmt.Sprintf("room %s has %d beds, %d guests requested", e.RoomID, e.Beds, e.Guests)
}

func IsCapacityError(err error) bool {
	var ce *CapacityError
	return errors.As(err, &ce)
}

// ChristmasRestrictionError signals the pre-cutoff access rules for a
// Christmas period.
type ChristmasRestrictionError struct {
	Period ChristmasPeriod
	Reason string
}

func (e *ChristmasRestrictionError) Error() string {
	return fmt.Sprintf("christmas period %s..%s: %s", e.Period.Start, e.Period.End, e.Reason)
}

func IsChristmasRestrictionError(err error) bool {
	var ce *ChristmasRestrictionError
	return errors.As(err, &ce)
}

// ExpiredHoldError marks an operation that referenced a hold which has since
// expired; treated as a conflict, not a crash.
type ExpiredHoldError struct {
	ProposalID uuid.UUID
}

func (e *ExpiredHoldError) Error() string {
	return fmt.Sprintf("hold %s has expired", e.ProposalID)
}

func IsExpiredHoldError(err error) bool {
	var ee *ExpiredHoldError
	return errors.As(err, &ee)
}
