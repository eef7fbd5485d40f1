package circulation

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultLoanPeriod is how long a book may be kept when staff do not pick a
// return date.
const DefaultLoanPeriod = 14 * 24 * time.Hour

var (
	// DefaultFinePerDay is charged for every whole day past the expected
	// return date.
	DefaultFinePerDay = decimal.RequireFromString("1.00")

	// MaxFine is the largest amount the fine_amount column (NUMERIC(6,2)) holds.
	MaxFine = decimal.RequireFromString("9999.99")
)

// ExpectedReturnDate returns supplied when given, otherwise issuedAt plus
// the loan period.
func ExpectedReturnDate(issuedAt time.Time, supplied *time.Time, period time.Duration) time.Time {
	if supplied != nil {
		return *supplied
	}
	return issuedAt.Add(period)
}

// OverdueDays is the number of whole days returnedAt lies past expected.
// Partial days are dropped; an on-time or early return is zero days.
func OverdueDays(expected, returnedAt time.Time) int64 {
	if !returnedAt.After(expected) {
		return 0
	}
	return int64(returnedAt.Sub(expected) / (24 * time.Hour))
}

// Fine is the amount owed for returning a book at returnedAt, capped at MaxFine.
func Fine(expected, returnedAt time.Time, perDay decimal.Decimal) decimal.Decimal {
	fine := perDay.Mul(decimal.NewFromInt(OverdueDays(expected, returnedAt))).Round(2)
	if fine.GreaterThan(MaxFine) {
		return MaxFine
	}
	return fine
}

// CanIssue reports whether a book with this many available copies can be lent.
func CanIssue(available int) bool { return available >= 1 }

// NewMembershipID returns an 8-character uppercase identifier taken from a
// random v4 UUID. It is not guaranteed unique; SignUp retries on collision.
func NewMembershipID() string {
	return strings.ToUpper(uuid.NewString()[:8])
}
