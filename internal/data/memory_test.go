package data

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func seedBook(t *testing.T, m Models, title, author, isbn, genre string, copies int) *Book {
	t.Helper()
	book := &Book{Title: title, Author: author, ISBN: isbn, Genre: genre, TotalCopies: copies, AvailableCopies: copies}
	require.NoError(t, m.Books.Insert(context.Background(), book))
	return book
}

func seedMember(t *testing.T, m Models, username, membershipID string) (*User, *Member) {
	t.Helper()
	user := &User{Username: username, Email: username + "@example.com"}
	require.NoError(t, user.Password.Set("pa55word!"))
	member := &Member{MembershipID: membershipID, PhoneNumber: "5551234", Address: "1 Main St"}
	require.NoError(t, m.Members.InsertWithUser(context.Background(), user, member))
	return user, member
}

func issue(t *testing.T, m Models, book *Book, member *Member) *Transaction {
	t.Helper()
	now := time.Now()
	txn := &Transaction{
		BookID:             book.ID,
		MemberID:           member.ID,
		IssueDate:          now,
		ExpectedReturnDate: now.Add(14 * 24 * time.Hour),
		Status:             StatusIssued,
	}
	require.NoError(t, m.Transactions.Issue(context.Background(), txn))
	return txn
}

func TestMemoryBooksUniqueISBN(t *testing.T) {
	m := NewMemoryModels()
	ctx := context.Background()

	seedBook(t, m, "Dune", "Frank Herbert", "9780441172719", "Sci-Fi", 2)

	dup := &Book{Title: "Dune Messiah", Author: "Frank Herbert", ISBN: "9780441172719", Genre: "Sci-Fi"}
	assert.ErrorIs(t, m.Books.Insert(ctx, dup), ErrDuplicateISBN)

	got, err := m.Books.GetByISBN(ctx, "9780441172719")
	require.NoError(t, err)
	assert.Equal(t, "Dune", got.Title)

	_, err = m.Books.GetByISBN(ctx, "0000000000000")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestMemoryBooksSearch(t *testing.T) {
	m := NewMemoryModels()
	ctx := context.Background()

	seedBook(t, m, "The Two Towers", "J.R.R. Tolkien", "9780261102361", "Fantasy", 1)
	seedBook(t, m, "Dune", "Frank Herbert", "9780441172719", "Sci-Fi", 1)
	seedBook(t, m, "The Hobbit", "J.R.R. Tolkien", "9780261102217", "Fantasy", 1)

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"Dune", "The Hobbit", "The Two Towers"}},
		{"tolkien", []string{"The Hobbit", "The Two Towers"}},
		{"SCI", []string{"Dune"}},
		{"hobbit", []string{"The Hobbit"}},
		{"100%", nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			books, err := m.Books.Search(ctx, tt.query)
			require.NoError(t, err)

			var titles []string
			for _, b := range books {
				titles = append(titles, b.Title)
			}
			assert.Equal(t, tt.want, titles)
		})
	}
}

func TestMemoryBooksGetAllPaginates(t *testing.T) {
	m := NewMemoryModels()

	seedBook(t, m, "C", "Author C", "3000000000000", "Genre", 1)
	seedBook(t, m, "A", "Author A", "1000000000000", "Genre", 3)
	seedBook(t, m, "B", "Author B", "2000000000000", "Genre", 2)

	books, meta, err := m.Books.GetAll(context.Background(), Filters{
		Page: 1, PageSize: 2, Sort: "-available_copies", SortSafeList: BookSortSafeList,
	})
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "A", books[0].Title)
	assert.Equal(t, "B", books[1].Title)
	assert.Equal(t, Metadata{CurrentPage: 1, PageSize: 2, FirstPage: 1, LastPage: 2, TotalRecords: 3}, meta)

	total, err := m.Books.TotalCopies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, total)
}

func TestMemoryIssueAndReturn(t *testing.T) {
	m := NewMemoryModels()
	ctx := context.Background()

	book := seedBook(t, m, "Dune", "Frank Herbert", "9780441172719", "Sci-Fi", 1)
	_, member := seedMember(t, m, "reader", "ABCD1234")

	txn := issue(t, m, book, member)

	stored, err := m.Books.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.AvailableCopies)

	second := &Transaction{BookID: book.ID, MemberID: member.ID, Status: StatusIssued}
	assert.ErrorIs(t, m.Transactions.Issue(ctx, second), ErrNoCopiesAvailable)

	now := time.Now()
	txn.ActualReturnDate = &now
	txn.FineAmount = decimal.Zero
	require.NoError(t, m.Transactions.Return(ctx, txn))
	assert.Equal(t, StatusReturned, txn.Status)

	assert.ErrorIs(t, m.Transactions.Return(ctx, txn), ErrAlreadyReturned)

	stored, err = m.Books.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.AvailableCopies)

	loaded, err := m.Transactions.Get(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune", loaded.BookTitle)
	assert.Equal(t, "ABCD1234", loaded.MembershipID)
}

func TestMemoryDuplicateMembershipIDLeavesNoAccount(t *testing.T) {
	m := NewMemoryModels()
	ctx := context.Background()

	seedMember(t, m, "first", "SAME0001")

	user := &User{Username: "second", Email: "second@example.com"}
	member := &Member{MembershipID: "SAME0001", PhoneNumber: "1", Address: "x"}
	assert.ErrorIs(t, m.Members.InsertWithUser(ctx, user, member), ErrDuplicateMembershipID)

	_, err := m.Users.GetByUsername(ctx, "second")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestMemoryDeleteCascades(t *testing.T) {
	m := NewMemoryModels()
	ctx := context.Background()

	dune := seedBook(t, m, "Dune", "Frank Herbert", "9780441172719", "Sci-Fi", 2)
	hobbit := seedBook(t, m, "The Hobbit", "J.R.R. Tolkien", "9780261102217", "Fantasy", 2)
	user, member := seedMember(t, m, "reader", "ABCD1234")

	token, err := m.Tokens.New(ctx, user.ID, time.Hour)
	require.NoError(t, err)

	duneLoan := issue(t, m, dune, member)
	issue(t, m, hobbit, member)

	require.NoError(t, m.Books.Delete(ctx, dune.ID))
	_, err = m.Transactions.Get(ctx, duneLoan.ID)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	loans, err := m.Transactions.ListForMember(ctx, member.ID)
	require.NoError(t, err)
	assert.Len(t, loans, 1)

	require.NoError(t, m.Users.Delete(ctx, user.ID))

	_, err = m.Members.GetForUser(ctx, user.ID)
	assert.ErrorIs(t, err, ErrRecordNotFound)
	_, err = m.Users.GetForToken(ctx, token.Plaintext)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	active, err := m.Transactions.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestMemoryTokens(t *testing.T) {
	m := NewMemoryModels()
	ctx := context.Background()

	user, _ := seedMember(t, m, "reader", "ABCD1234")

	token, err := m.Tokens.New(ctx, user.ID, time.Hour)
	require.NoError(t, err)
	assert.Len(t, token.Hash, 32)

	got, err := m.Users.GetForToken(ctx, token.Plaintext)
	require.NoError(t, err)
	assert.Equal(t, "reader", got.Username)

	expired, err := m.Tokens.New(ctx, user.ID, -time.Minute)
	require.NoError(t, err)
	_, err = m.Users.GetForToken(ctx, expired.Plaintext)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	require.NoError(t, m.Tokens.DeleteAllForUser(ctx, user.ID))
	_, err = m.Users.GetForToken(ctx, token.Plaintext)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestMemoryCounters(t *testing.T) {
	m := NewMemoryModels()
	ctx := context.Background()

	book := seedBook(t, m, "Dune", "Frank Herbert", "9780441172719", "Sci-Fi", 3)
	_, member := seedMember(t, m, "reader", "ABCD1234")

	late := &Transaction{
		BookID:             book.ID,
		MemberID:           member.ID,
		IssueDate:          time.Now().Add(-30 * 24 * time.Hour),
		ExpectedReturnDate: time.Now().Add(-16 * 24 * time.Hour),
		Status:             StatusIssued,
	}
	require.NoError(t, m.Transactions.Issue(ctx, late))
	issue(t, m, book, member)

	issued, err := m.Transactions.CountIssued(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, issued)

	overdue, err := m.Transactions.CountOverdue(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, overdue)

	recent, err := m.Transactions.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.NotEqual(t, late.ID, recent[0].ID)

	members, err := m.Members.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, members)
}

func TestBookInputDefaults(t *testing.T) {
	var book Book
	BookInput{Title: "Dune"}.Apply(&book)
	assert.Equal(t, 1, book.TotalCopies)
	assert.Equal(t, 1, book.AvailableCopies)

	BookInput{Title: "Dune", TotalCopies: intPtr(4), AvailableCopies: intPtr(2)}.Apply(&book)
	assert.Equal(t, 4, book.TotalCopies)
	assert.Equal(t, 2, book.AvailableCopies)
}
