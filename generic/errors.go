/*
errors.go - Sentinel errors for the generic primitives

PURPOSE:
  Errors shared by every package that parses dates or calendars. Domain
  packages wrap these with record or field context.

USAGE:
  if errors.Is(err, generic.ErrInvalidDate) {
      // report the offending cell
  }

SEE ALSO:
  - career/errors.go: engine errors built on the same library
*/
package generic

import "github.com/cockroachdb/errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidDate is returned when a date string matches no accepted layout.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidMonthDay is returned for an annual checkpoint that does not
	// exist every year.
	ErrInvalidMonthDay = errors.New("invalid month/day")
)
