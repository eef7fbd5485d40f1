package circulation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aoideee/libmgs/internal/data"
	"github.com/aoideee/libmgs/internal/validator"
)

// IssueRequest is what staff submit on the issue form. A nil
// ExpectedReturnDate means the default loan period.
type IssueRequest struct {
	ISBN               string     `json:"isbn"`
	MembershipID       string     `json:"membership_id"`
	ExpectedReturnDate *time.Time `json:"expected_return_date,omitempty"`
}

// ValidateIssue resolves the book and member an issue would link. The book
// is looked up and checked for a free copy before the member is looked up.
func (s *Service) ValidateIssue(ctx context.Context, isbn, membershipID string) (*data.Book, *data.Member, error) {
	book, err := s.models.Books.GetByISBN(ctx, isbn)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("book with this ISBN: %w", ErrNotFound)
		}
		return nil, nil, err
	}

	if !CanIssue(book.AvailableCopies) {
		return nil, nil, fmt.Errorf("%w: %q has no copies left", ErrUnavailable, book.Title)
	}

	member, err := s.models.Members.GetByMembershipID(ctx, membershipID)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("member ID: %w", ErrNotFound)
		}
		return nil, nil, err
	}

	return book, member, nil
}

func (s *Service) IssueBook(ctx context.Context, staff Staff, req IssueRequest) (*data.Transaction, error) {
	if err := staff.check(); err != nil {
		return nil, err
	}

	req.ISBN = strings.TrimSpace(req.ISBN)
	req.MembershipID = strings.ToUpper(strings.TrimSpace(req.MembershipID))
	now := s.now()

	v := validator.New()
	v.Check(validator.NotBlank(req.ISBN), "isbn", "must be provided")
	v.Check(len(req.ISBN) <= 13, "isbn", "must not be more than 13 characters long")
	v.Check(validator.NotBlank(req.MembershipID), "membership_id", "must be provided")
	if req.ExpectedReturnDate != nil {
		v.Check(req.ExpectedReturnDate.After(now), "expected_return_date", "must be in the future")
	}
	if !v.Valid() {
		return nil, failed(v.Errors)
	}

	book, member, err := s.ValidateIssue(ctx, req.ISBN, req.MembershipID)
	if err != nil {
		return nil, err
	}

	txn := &data.Transaction{
		BookID:             book.ID,
		MemberID:           member.ID,
		IssueDate:          now,
		ExpectedReturnDate: ExpectedReturnDate(now, req.ExpectedReturnDate, s.config.LoanPeriod),
		Status:             data.StatusIssued,
		FineAmount:         decimal.Zero,
		BookTitle:          book.Title,
		BookISBN:           book.ISBN,
		MembershipID:       member.MembershipID,
	}

	err = s.models.Transactions.Issue(ctx, txn)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrNoCopiesAvailable):
			return nil, fmt.Errorf("%w: %q has no copies left", ErrUnavailable, book.Title)
		case errors.Is(err, data.ErrRecordNotFound):
			return nil, fmt.Errorf("book or member: %w", ErrNotFound)
		default:
			return nil, err
		}
	}

	s.logger.Info("book issued",
		"transaction_id", txn.ID,
		"isbn", book.ISBN,
		"membership_id", member.MembershipID,
		"due", txn.ExpectedReturnDate.Format(time.DateOnly),
		"staff", staff.User().Username,
	)
	return txn, nil
}

// ReturnBook closes a loan and computes its fine. A loan that is already
// closed is returned unchanged together with ErrAlreadyReturned.
func (s *Service) ReturnBook(ctx context.Context, staff Staff, id int64) (*data.Transaction, error) {
	if err := staff.check(); err != nil {
		return nil, err
	}

	txn, err := s.getTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if txn.Status == data.StatusReturned {
		return txn, ErrAlreadyReturned
	}

	now := s.now()
	txn.ActualReturnDate = &now
	txn.FineAmount = Fine(txn.ExpectedReturnDate, now, s.config.FinePerDay)

	err = s.models.Transactions.Return(ctx, txn)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrAlreadyReturned):
			// Lost a race with another return of the same loan.
			stored, getErr := s.getTransaction(ctx, id)
			if getErr != nil {
				return nil, getErr
			}
			return stored, ErrAlreadyReturned
		case errors.Is(err, data.ErrRecordNotFound):
			return nil, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
		default:
			return nil, err
		}
	}

	s.logger.Info("book returned",
		"transaction_id", txn.ID,
		"fine", txn.FineAmount.StringFixed(2),
		"staff", staff.User().Username,
	)
	return txn, nil
}

// ActiveLoans lists every loan still out, newest first.
func (s *Service) ActiveLoans(ctx context.Context, staff Staff) ([]*data.Transaction, error) {
	if err := staff.check(); err != nil {
		return nil, err
	}
	return s.models.Transactions.ListActive(ctx)
}

func (s *Service) getTransaction(ctx context.Context, id int64) (*data.Transaction, error) {
	txn, err := s.models.Transactions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return nil, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return txn, nil
}
