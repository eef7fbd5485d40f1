package circulation

import (
	"context"
	"errors"

	"github.com/aoideee/libmgs/internal/data"
)

const recentTransactions = 5

// MemberDashboard is a member's own loan history, newest first.
type MemberDashboard struct {
	Member       *data.Member        `json:"member"`
	Transactions []*data.Transaction `json:"transactions"`
}

// StaffSummary holds the counters shown on the staff dashboard.
type StaffSummary struct {
	TotalBooks         int                 `json:"total_books"`
	IssuedBooks        int                 `json:"issued_books"`
	AvailableBooks     int                 `json:"available_books"`
	TotalMembers       int                 `json:"total_members"`
	OverdueBooks       int                 `json:"overdue_books"`
	RecentTransactions []*data.Transaction `json:"recent_transactions"`
}

func (s *Service) MemberDashboard(ctx context.Context, user *data.User) (*MemberDashboard, error) {
	member, err := s.models.Members.GetForUser(ctx, user.ID)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return nil, ErrNoMemberProfile
		}
		return nil, err
	}

	txns, err := s.models.Transactions.ListForMember(ctx, member.ID)
	if err != nil {
		return nil, err
	}
	return &MemberDashboard{Member: member, Transactions: txns}, nil
}

// StaffDashboard recomputes the summary from the stores on every call.
// AvailableBooks is total copies minus loans out, not the sum of the
// per-book available counts.
func (s *Service) StaffDashboard(ctx context.Context, staff Staff) (*StaffSummary, error) {
	if err := staff.check(); err != nil {
		return nil, err
	}

	var (
		summary StaffSummary
		err     error
	)

	if summary.TotalBooks, err = s.models.Books.TotalCopies(ctx); err != nil {
		return nil, err
	}
	if summary.IssuedBooks, err = s.models.Transactions.CountIssued(ctx); err != nil {
		return nil, err
	}
	if summary.TotalMembers, err = s.models.Members.Count(ctx); err != nil {
		return nil, err
	}
	if summary.OverdueBooks, err = s.models.Transactions.CountOverdue(ctx, s.now()); err != nil {
		return nil, err
	}
	if summary.RecentTransactions, err = s.models.Transactions.Recent(ctx, recentTransactions); err != nil {
		return nil, err
	}

	summary.AvailableBooks = summary.TotalBooks - summary.IssuedBooks
	return &summary, nil
}
