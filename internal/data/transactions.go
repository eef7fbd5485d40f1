package data

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a loan. A loan moves from Issued to
// Returned exactly once.
type Status string

const (
	StatusIssued   Status = "Issued"
	StatusReturned Status = "Returned"
)

// Transaction records one copy of a book lent to one member.
// ActualReturnDate is nil while Status is Issued.
type Transaction struct {
	ID                 int64           `json:"transaction_id"`
	BookID             int64           `json:"book_id"`
	MemberID           int64           `json:"member_id"`
	IssueDate          time.Time       `json:"issue_date"`
	ExpectedReturnDate time.Time       `json:"expected_return_date"`
	ActualReturnDate   *time.Time      `json:"actual_return_date"`
	Status             Status          `json:"status"`
	FineAmount         decimal.Decimal `json:"fine_amount"`

	// Filled in by listing queries.
	BookTitle    string `json:"book_title,omitempty"`
	BookISBN     string `json:"book_isbn,omitempty"`
	MembershipID string `json:"membership_id,omitempty"`
}

// Overdue reports whether the loan is still out past its expected return date.
func (t *Transaction) Overdue(now time.Time) bool {
	return t.Status == StatusIssued && t.ExpectedReturnDate.Before(now)
}

// TransactionModel wraps a *sql.DB connection for the transactions table.
type TransactionModel struct {
	DB *sql.DB
}

// Issue takes a copy and records the loan in one SQL transaction. The
// conditional decrement keeps two concurrent issues of the last copy from
// both succeeding.
func (m TransactionModel) Issue(ctx context.Context, txn *Transaction) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE books SET available_copies = available_copies - 1
		WHERE id = $1 AND available_copies > 0`, txn.BookID)
	if err != nil {
		return err
	}
	if err := requireRow(result); err != nil {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM books WHERE id = $1)`, txn.BookID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrRecordNotFound
		}
		return ErrNoCopiesAvailable
	}

	query := `
		INSERT INTO transactions (book_id, member_id, issue_date, expected_return_date, status, fine_amount)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err = tx.QueryRowContext(ctx, query,
		txn.BookID,
		txn.MemberID,
		txn.IssueDate,
		txn.ExpectedReturnDate,
		txn.Status,
		txn.FineAmount,
	).Scan(&txn.ID)
	if err != nil {
		return translateError(err)
	}

	return tx.Commit()
}

// Return closes the loan and gives the copy back in one SQL transaction.
func (m TransactionModel) Return(ctx context.Context, txn *Transaction) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1, actual_return_date = $2, fine_amount = $3
		WHERE id = $4 AND status = $5`,
		StatusReturned, txn.ActualReturnDate, txn.FineAmount, txn.ID, StatusIssued)
	if err != nil {
		return err
	}
	if err := requireRow(result); err != nil {
		return ErrAlreadyReturned
	}

	_, err = tx.ExecContext(ctx, `UPDATE books SET available_copies = available_copies + 1 WHERE id = $1`, txn.BookID)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	txn.Status = StatusReturned
	return nil
}

const transactionColumns = `
	t.id, t.book_id, t.member_id, t.issue_date, t.expected_return_date,
	t.actual_return_date, t.status, t.fine_amount, b.title, b.isbn, m.membership_id`

const transactionFrom = `
	FROM transactions t
	INNER JOIN books b ON b.id = t.book_id
	INNER JOIN members m ON m.id = t.member_id`

type scanner interface{ Scan(...any) error }

func scanTransaction(row scanner) (*Transaction, error) {
	var txn Transaction
	err := row.Scan(
		&txn.ID,
		&txn.BookID,
		&txn.MemberID,
		&txn.IssueDate,
		&txn.ExpectedReturnDate,
		&txn.ActualReturnDate,
		&txn.Status,
		&txn.FineAmount,
		&txn.BookTitle,
		&txn.BookISBN,
		&txn.MembershipID,
	)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (m TransactionModel) Get(ctx context.Context, id int64) (*Transaction, error) {
	if id < 1 {
		return nil, ErrRecordNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	query := `SELECT ` + transactionColumns + transactionFrom + ` WHERE t.id = $1`
	txn, err := scanTransaction(m.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translateError(err)
	}
	return txn, nil
}

func (m TransactionModel) list(ctx context.Context, where string, args ...any) ([]*Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	query := `SELECT ` + transactionColumns + transactionFrom + ` ` + where
	rows, err := m.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txns := []*Transaction{}
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

// ListForMember returns every loan of memberID, newest first.
func (m TransactionModel) ListForMember(ctx context.Context, memberID int64) ([]*Transaction, error) {
	return m.list(ctx, `WHERE t.member_id = $1 ORDER BY t.issue_date DESC, t.id DESC`, memberID)
}

// ListActive returns every loan still out, newest first.
func (m TransactionModel) ListActive(ctx context.Context) ([]*Transaction, error) {
	return m.list(ctx, `WHERE t.status = $1 ORDER BY t.issue_date DESC, t.id DESC`, StatusIssued)
}

// Recent returns the limit most recently issued loans.
func (m TransactionModel) Recent(ctx context.Context, limit int) ([]*Transaction, error) {
	return m.list(ctx, `ORDER BY t.issue_date DESC, t.id DESC LIMIT $1`, limit)
}

func (m TransactionModel) count(ctx context.Context, where string, args ...any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var n int
	err := m.DB.QueryRowContext(ctx, `SELECT count(*) FROM transactions WHERE `+where, args...).Scan(&n)
	return n, err
}

func (m TransactionModel) CountIssued(ctx context.Context) (int, error) {
	return m.count(ctx, `status = $1`, StatusIssued)
}

func (m TransactionModel) CountOverdue(ctx context.Context, now time.Time) (int, error) {
	return m.count(ctx, `status = $1 AND expected_return_date < $2`, StatusIssued, now)
}
