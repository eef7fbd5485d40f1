// Package circulation holds the library's use cases: issuing and returning
// books, searching and maintaining the catalog, member signup and sessions,
// and the dashboards. Persistence is delegated to data.Models.
package circulation

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aoideee/libmgs/internal/data"
)

// Config holds the circulation policy knobs.
type Config struct {
	LoanPeriod time.Duration
	FinePerDay decimal.Decimal
	SessionTTL time.Duration
}

// DefaultConfig returns a 14 day loan, a fine of 1.00 per day and two week
// sessions.
func DefaultConfig() Config {
	return Config{
		LoanPeriod: DefaultLoanPeriod,
		FinePerDay: DefaultFinePerDay,
		SessionTTL: 14 * 24 * time.Hour,
	}
}

// maxMembershipAttempts bounds the retry loop in SignUp.
const maxMembershipAttempts = 5

type Service struct {
	models data.Models
	logger *slog.Logger
	config Config

	now             func() time.Time
	newMembershipID func() string
}

func New(models data.Models, logger *slog.Logger, config Config) *Service {
	return &Service{
		models:          models,
		logger:          logger,
		config:          config,
		now:             time.Now,
		newMembershipID: NewMembershipID,
	}
}
