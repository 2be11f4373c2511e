/*
errors.go - Centralized error types for the career engine

PURPOSE:
  All engine and archive errors in one place. The engine fails loudly only
  on structural problems with its input (missing id, rank outside the
  hierarchy, duplicate ids, threshold out of range). Data-quality problems
  that the rules tolerate (missing dates, ranks without quota) never error.

ERROR CATEGORIES:
  1. Input errors - malformed roster or parameters (client errors)
  2. Rule errors - inconsistent configuration
  3. Archive errors - run or roster lookups that found nothing

SEE ALSO:
  - generic/errors.go: date and calendar errors
  - api/handlers.go: maps these to HTTP status codes
*/
package career

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMissingID is returned for a record without an id.
	ErrMissingID = errors.New("record has no id")

	// ErrUnknownRank is returned for a record whose rank is outside the hierarchy.
	ErrUnknownRank = errors.New("rank outside the hierarchy")

	// ErrDuplicateID is returned when two records share an id.
	ErrDuplicateID = errors.New("duplicate record id")

	// ErrInvalidRetirementThreshold is returned for a service-length threshold
	// outside the configured range.
	ErrInvalidRetirementThreshold = errors.New("retirement threshold out of range")

	// ErrInvalidRules is returned when a rule configuration is inconsistent.
	ErrInvalidRules = errors.New("invalid rules")

	// ErrRunExists is returned when archiving a run id twice.
	ErrRunExists = errors.New("run already archived")

	// ErrRunNotFound is returned when an archived run doesn't exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrTrackNotFound is returned when a referenced track doesn't exist.
	ErrTrackNotFound = errors.New("track not found")

	// ErrRosterNotFound is returned when no roster is stored for a track.
	ErrRosterNotFound = errors.New("roster not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RecordError locates an input error within the roster.
type RecordError struct {
	Index int   // position in the input roster
	ID    int64 // zero when the id itself is missing
	Err   error
}

func (e *RecordError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("record %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("record %d (id %d): %v", e.Index, e.ID, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.IsAny(err,
		ErrMissingID,
		ErrUnknownRank,
		ErrDuplicateID,
		ErrInvalidRetirementThreshold,
	)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.IsAny(err, ErrRunNotFound, ErrTrackNotFound, ErrRosterNotFound)
}
