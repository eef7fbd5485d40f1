// internal/data/models.go
package data

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Models is a top-level container that groups every storage type together.
// It is passed around the application so the circulation service and the
// operator CLI never import database/sql directly. NewModels wires it to
// PostgreSQL, NewMemoryModels to an in-process store.
type Models struct {
	Books        BookStore
	Members      MemberStore
	Users        UserStore
	Tokens       TokenStore
	Transactions TransactionStore
}

// NewModels constructs a Models value backed by the given PostgreSQL pool.
// Call this once during application startup.
func NewModels(db *sql.DB) Models {
	return Models{
		Books:        BookModel{DB: db},
		Members:      MemberModel{DB: db},
		Users:        UserModel{DB: db},
		Tokens:       TokenModel{DB: db},
		Transactions: TransactionModel{DB: db},
	}
}

// BookStore persists catalog entries.
type BookStore interface {
	Insert(ctx context.Context, book *Book) error
	Get(ctx context.Context, id int64) (*Book, error)
	GetByISBN(ctx context.Context, isbn string) (*Book, error)
	Update(ctx context.Context, book *Book) error
	Delete(ctx context.Context, id int64) error
	// Search returns books whose title, author or genre contains query,
	// ignoring case, ordered by title. A blank query returns every book.
	Search(ctx context.Context, query string) ([]*Book, error)
	GetAll(ctx context.Context, filters Filters) ([]*Book, Metadata, error)
	TotalCopies(ctx context.Context) (int, error)
}

// MemberStore persists member profiles.
type MemberStore interface {
	// InsertWithUser creates the account and its member profile as one unit.
	// Either both rows exist afterwards or neither does.
	InsertWithUser(ctx context.Context, user *User, member *Member) error
	GetByMembershipID(ctx context.Context, membershipID string) (*Member, error)
	GetForUser(ctx context.Context, userID int64) (*Member, error)
	Count(ctx context.Context) (int, error)
}

// UserStore persists accounts.
type UserStore interface {
	Insert(ctx context.Context, user *User) error
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetForToken(ctx context.Context, tokenPlaintext string) (*User, error)
	Delete(ctx context.Context, id int64) error
}

// TokenStore persists session tokens.
type TokenStore interface {
	New(ctx context.Context, userID int64, ttl time.Duration) (*Token, error)
	DeleteAllForUser(ctx context.Context, userID int64) error
}

// TransactionStore persists loans. Issue and Return each change two rows
// (the loan and the book's available copy count) atomically.
type TransactionStore interface {
	// Issue inserts txn and takes one available copy of txn.BookID.
	// Returns ErrNoCopiesAvailable if the book has none left.
	Issue(ctx context.Context, txn *Transaction) error
	Get(ctx context.Context, id int64) (*Transaction, error)
	// Return marks txn returned with its ActualReturnDate and FineAmount and
	// gives the copy back. Returns ErrAlreadyReturned if the stored row is
	// no longer Issued.
	Return(ctx context.Context, txn *Transaction) error
	ListForMember(ctx context.Context, memberID int64) ([]*Transaction, error)
	ListActive(ctx context.Context) ([]*Transaction, error)
	Recent(ctx context.Context, limit int) ([]*Transaction, error)
	CountIssued(ctx context.Context) (int, error)
	CountOverdue(ctx context.Context, now time.Time) (int, error)
}

var (
	// ErrRecordNotFound is returned when a query finds no matching row.
	ErrRecordNotFound = errors.New("record not found")

	ErrDuplicateISBN         = errors.New("duplicate isbn")
	ErrDuplicateUsername     = errors.New("duplicate username")
	ErrDuplicateEmail        = errors.New("duplicate email")
	ErrDuplicateMembershipID = errors.New("duplicate membership id")
	ErrDuplicateMember       = errors.New("account already has a member profile")

	ErrNoCopiesAvailable = errors.New("no copies available")
	ErrAlreadyReturned   = errors.New("transaction already returned")

	// ErrRestricted is returned when a Restrict policy blocks a delete.
	ErrRestricted = errors.New("row is still referenced")
)

// uniqueViolations maps unique constraint names to the sentinel reported
// for them.
var uniqueViolations = map[string]error{
	"books_isbn_key":            ErrDuplicateISBN,
	"users_username_key":        ErrDuplicateUsername,
	"users_email_key":           ErrDuplicateEmail,
	"members_membership_id_key": ErrDuplicateMembershipID,
	"members_user_id_key":       ErrDuplicateMember,
}

// translateError turns PostgreSQL constraint violations into package
// sentinels and sql.ErrNoRows into ErrRecordNotFound. On insert or update a
// foreign key violation means the referenced row is gone. Anything else
// passes through.
func translateError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrRecordNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			if sentinel, ok := uniqueViolations[pqErr.Constraint]; ok {
				return sentinel
			}
		case "23503":
			return ErrRecordNotFound
		}
	}
	return err
}

// translateDeleteError reports a foreign key violation on DELETE as
// ErrRestricted.
func translateDeleteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" {
		return ErrRestricted
	}
	return err
}

// Filters holds pagination and sorting parameters extracted from URL query strings.
type Filters struct {
	Page         int      // Current page number (1-indexed)
	PageSize     int      // Number of records per page
	Sort         string   // Column name to sort by (prefix with "-" for DESC)
	SortSafeList []string // Allowed sort columns to prevent SQL injection
}

// sortColumn returns the validated column name for ORDER BY, defaulting to title.
func (f Filters) sortColumn() string {
	for _, safe := range f.SortSafeList {
		if f.Sort == safe {
			return strings.TrimPrefix(f.Sort, "-")
		}
	}
	return "title"
}

// sortDirection returns "ASC" or "DESC" based on the Sort prefix.
func (f Filters) sortDirection() string {
	if strings.HasPrefix(f.Sort, "-") {
		return "DESC"
	}
	return "ASC"
}

func (f Filters) limit() int { return f.PageSize }

func (f Filters) offset() int { return (f.Page - 1) * f.PageSize }

// Metadata contains pagination information returned alongside list responses.
type Metadata struct {
	CurrentPage  int `json:"current_page,omitempty"`
	PageSize     int `json:"page_size,omitempty"`
	FirstPage    int `json:"first_page,omitempty"`
	LastPage     int `json:"last_page,omitempty"`
	TotalRecords int `json:"total_records,omitempty"`
}

// calculateMetadata computes page metadata from total record count and filter values.
func calculateMetadata(totalRecords, page, pageSize int) Metadata {
	if totalRecords == 0 {
		return Metadata{}
	}
	return Metadata{
		CurrentPage:  page,
		PageSize:     pageSize,
		FirstPage:    1,
		LastPage:     int(math.Ceil(float64(totalRecords) / float64(pageSize))),
		TotalRecords: totalRecords,
	}
}
