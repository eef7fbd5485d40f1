package data

import (
	"cmp"
	"context"
	"crypto/sha256"
	"slices"
	"strings"
	"sync"
	"time"
)

// memoryDB holds every table in maps guarded by one lock. Each exported
// operation takes the lock once, so multi-row changes are atomic.
type memoryDB struct {
	mu sync.RWMutex

	users        map[int64]User
	members      map[int64]Member
	books        map[int64]Book
	transactions map[int64]Transaction
	tokens       map[string]Token // keyed by string(hash)

	nextID map[string]int64
}

// NewMemoryModels returns Models backed by process memory. It is used for
// local development with -storage=memory and by the test suites. Deletes
// follow the same Policies as the PostgreSQL schema.
func NewMemoryModels() Models {
	db := &memoryDB{
		users:        make(map[int64]User),
		members:      make(map[int64]Member),
		books:        make(map[int64]Book),
		transactions: make(map[int64]Transaction),
		tokens:       make(map[string]Token),
		nextID:       make(map[string]int64),
	}
	return Models{
		Books:        memoryBooks{db},
		Members:      memoryMembers{db},
		Users:        memoryUsers{db},
		Tokens:       memoryTokens{db},
		Transactions: memoryTransactions{db},
	}
}

func (db *memoryDB) id(table string) int64 {
	db.nextID[table]++
	return db.nextID[table]
}

// deleteLocked removes the row table/id and then applies every policy that
// names table as a parent.
func (db *memoryDB) deleteLocked(table string, id int64) {
	switch table {
	case "users":
		delete(db.users, id)
	case "members":
		delete(db.members, id)
	case "books":
		delete(db.books, id)
	case "transactions":
		delete(db.transactions, id)
	}

	for _, fk := range Policies {
		if fk.Parent != table || fk.OnDelete != Cascade {
			continue
		}
		for _, childID := range db.childrenLocked(fk, id) {
			db.deleteLocked(fk.Table, childID)
		}
		if fk.Table == "tokens" {
			for key, token := range db.tokens {
				if token.UserID == id {
					delete(db.tokens, key)
				}
			}
		}
	}
}

// restrictedLocked reports whether a Restrict policy blocks deleting table/id.
func (db *memoryDB) restrictedLocked(table string, id int64) bool {
	for _, fk := range Policies {
		if fk.Parent == table && fk.OnDelete == Restrict && len(db.childrenLocked(fk, id)) > 0 {
			return true
		}
	}
	return false
}

func (db *memoryDB) childrenLocked(fk ForeignKey, parentID int64) []int64 {
	var ids []int64
	switch fk.Table {
	case "members":
		for _, m := range db.members {
			if m.UserID == parentID {
				ids = append(ids, m.ID)
			}
		}
	case "transactions":
		for _, t := range db.transactions {
			if (fk.Column == "book_id" && t.BookID == parentID) || (fk.Column == "member_id" && t.MemberID == parentID) {
				ids = append(ids, t.ID)
			}
		}
	}
	return ids
}

type memoryBooks struct{ db *memoryDB }

func (s memoryBooks) isbnTakenLocked(isbn string, except int64) bool {
	for _, b := range s.db.books {
		if b.ISBN == isbn && b.ID != except {
			return true
		}
	}
	return false
}

func (s memoryBooks) Insert(_ context.Context, book *Book) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if s.isbnTakenLocked(book.ISBN, 0) {
		return ErrDuplicateISBN
	}
	book.ID = s.db.id("books")
	s.db.books[book.ID] = *book
	return nil
}

func (s memoryBooks) Get(_ context.Context, id int64) (*Book, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	book, ok := s.db.books[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &book, nil
}

func (s memoryBooks) GetByISBN(_ context.Context, isbn string) (*Book, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	for _, book := range s.db.books {
		if book.ISBN == isbn {
			return &book, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (s memoryBooks) Update(_ context.Context, book *Book) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.books[book.ID]; !ok {
		return ErrRecordNotFound
	}
	if s.isbnTakenLocked(book.ISBN, book.ID) {
		return ErrDuplicateISBN
	}
	s.db.books[book.ID] = *book
	return nil
}

func (s memoryBooks) Delete(_ context.Context, id int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.books[id]; !ok {
		return ErrRecordNotFound
	}
	if s.db.restrictedLocked("books", id) {
		return ErrRestricted
	}
	s.db.deleteLocked("books", id)
	return nil
}

func (s memoryBooks) Search(_ context.Context, query string) ([]*Book, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	q := strings.ToLower(query)
	books := []*Book{}
	for _, b := range s.db.books {
		if q == "" ||
			strings.Contains(strings.ToLower(b.Title), q) ||
			strings.Contains(strings.ToLower(b.Author), q) ||
			strings.Contains(strings.ToLower(b.Genre), q) {
			book := b
			books = append(books, &book)
		}
	}
	slices.SortFunc(books, func(a, b *Book) int {
		return cmp.Or(cmp.Compare(a.Title, b.Title), cmp.Compare(a.ID, b.ID))
	})
	return books, nil
}

func (s memoryBooks) GetAll(_ context.Context, filters Filters) ([]*Book, Metadata, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	books := make([]*Book, 0, len(s.db.books))
	for _, b := range s.db.books {
		book := b
		books = append(books, &book)
	}

	column, desc := filters.sortColumn(), filters.sortDirection() == "DESC"
	slices.SortFunc(books, func(a, b *Book) int {
		var c int
		switch column {
		case "author":
			c = cmp.Compare(a.Author, b.Author)
		case "genre":
			c = cmp.Compare(a.Genre, b.Genre)
		case "available_copies":
			c = cmp.Compare(a.AvailableCopies, b.AvailableCopies)
		default:
			c = cmp.Compare(a.Title, b.Title)
		}
		if desc {
			c = -c
		}
		return cmp.Or(c, cmp.Compare(a.ID, b.ID))
	})

	total := len(books)
	start := min(filters.offset(), total)
	end := min(start+filters.limit(), total)
	return books[start:end], calculateMetadata(total, filters.Page, filters.PageSize), nil
}

func (s memoryBooks) TotalCopies(_ context.Context) (int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	total := 0
	for _, b := range s.db.books {
		total += b.TotalCopies
	}
	return total, nil
}

type memoryUsers struct{ db *memoryDB }

func (s memoryUsers) insertLocked(user *User) error {
	for _, u := range s.db.users {
		if u.Username == user.Username {
			return ErrDuplicateUsername
		}
		if u.Email == user.Email {
			return ErrDuplicateEmail
		}
	}
	user.ID = s.db.id("users")
	user.CreatedAt = time.Now()
	s.db.users[user.ID] = *user
	return nil
}

func (s memoryUsers) Insert(_ context.Context, user *User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.insertLocked(user)
}

func (s memoryUsers) GetByUsername(_ context.Context, username string) (*User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	for _, u := range s.db.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (s memoryUsers) GetForToken(_ context.Context, tokenPlaintext string) (*User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	hash := sha256.Sum256([]byte(tokenPlaintext))
	token, ok := s.db.tokens[string(hash[:])]
	if !ok || !token.Expiry.After(time.Now()) {
		return nil, ErrRecordNotFound
	}
	user, ok := s.db.users[token.UserID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &user, nil
}

func (s memoryUsers) Delete(_ context.Context, id int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.users[id]; !ok {
		return ErrRecordNotFound
	}
	if s.db.restrictedLocked("users", id) {
		return ErrRestricted
	}
	s.db.deleteLocked("users", id)
	return nil
}

type memoryMembers struct{ db *memoryDB }

func (s memoryMembers) InsertWithUser(_ context.Context, user *User, member *Member) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, m := range s.db.members {
		if m.MembershipID == member.MembershipID {
			return ErrDuplicateMembershipID
		}
	}
	if err := (memoryUsers{s.db}).insertLocked(user); err != nil {
		return err
	}
	member.ID = s.db.id("members")
	member.UserID = user.ID
	member.JoinedAt = time.Now()
	s.db.members[member.ID] = *member
	return nil
}

func (s memoryMembers) find(match func(Member) bool) (*Member, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	for _, m := range s.db.members {
		if match(m) {
			return &m, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (s memoryMembers) GetByMembershipID(_ context.Context, membershipID string) (*Member, error) {
	return s.find(func(m Member) bool { return m.MembershipID == membershipID })
}

func (s memoryMembers) GetForUser(_ context.Context, userID int64) (*Member, error) {
	return s.find(func(m Member) bool { return m.UserID == userID })
}

func (s memoryMembers) Count(_ context.Context) (int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return len(s.db.members), nil
}

type memoryTokens struct{ db *memoryDB }

func (s memoryTokens) New(_ context.Context, userID int64, ttl time.Duration) (*Token, error) {
	token := generateToken(userID, ttl)

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	s.db.tokens[string(token.Hash)] = *token
	return token, nil
}

func (s memoryTokens) DeleteAllForUser(_ context.Context, userID int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for key, token := range s.db.tokens {
		if token.UserID == userID {
			delete(s.db.tokens, key)
		}
	}
	return nil
}

type memoryTransactions struct{ db *memoryDB }

func (s memoryTransactions) Issue(_ context.Context, txn *Transaction) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	book, ok := s.db.books[txn.BookID]
	if !ok {
		return ErrRecordNotFound
	}
	if _, ok := s.db.members[txn.MemberID]; !ok {
		return ErrRecordNotFound
	}
	if book.AvailableCopies <= 0 {
		return ErrNoCopiesAvailable
	}

	book.AvailableCopies--
	s.db.books[book.ID] = book

	txn.ID = s.db.id("transactions")
	s.db.transactions[txn.ID] = *txn
	return nil
}

// joinLocked fills the listing fields the SQL queries get from their joins.
func (s memoryTransactions) joinLocked(t Transaction) *Transaction {
	t.BookTitle = s.db.books[t.BookID].Title
	t.BookISBN = s.db.books[t.BookID].ISBN
	t.MembershipID = s.db.members[t.MemberID].MembershipID
	return &t
}

func (s memoryTransactions) Get(_ context.Context, id int64) (*Transaction, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	t, ok := s.db.transactions[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return s.joinLocked(t), nil
}

func (s memoryTransactions) Return(_ context.Context, txn *Transaction) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	stored, ok := s.db.transactions[txn.ID]
	if !ok {
		return ErrRecordNotFound
	}
	if stored.Status != StatusIssued {
		return ErrAlreadyReturned
	}

	stored.Status = StatusReturned
	stored.ActualReturnDate = txn.ActualReturnDate
	stored.FineAmount = txn.FineAmount
	s.db.transactions[stored.ID] = stored

	if book, ok := s.db.books[stored.BookID]; ok {
		book.AvailableCopies++
		s.db.books[book.ID] = book
	}

	txn.Status = StatusReturned
	return nil
}

// filter returns the matching loans newest first.
func (s memoryTransactions) filter(match func(Transaction) bool) []*Transaction {
	txns := []*Transaction{}
	for _, t := range s.db.transactions {
		if match(t) {
			txns = append(txns, s.joinLocked(t))
		}
	}
	slices.SortFunc(txns, func(a, b *Transaction) int {
		return cmp.Or(b.IssueDate.Compare(a.IssueDate), cmp.Compare(b.ID, a.ID))
	})
	return txns
}

func (s memoryTransactions) ListForMember(_ context.Context, memberID int64) ([]*Transaction, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return s.filter(func(t Transaction) bool { return t.MemberID == memberID }), nil
}

func (s memoryTransactions) ListActive(_ context.Context) ([]*Transaction, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return s.filter(func(t Transaction) bool { return t.Status == StatusIssued }), nil
}

func (s memoryTransactions) Recent(_ context.Context, limit int) ([]*Transaction, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	txns := s.filter(func(Transaction) bool { return true })
	return txns[:min(limit, len(txns))], nil
}

func (s memoryTransactions) CountIssued(_ context.Context) (int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return len(s.filter(func(t Transaction) bool { return t.Status == StatusIssued })), nil
}

func (s memoryTransactions) CountOverdue(_ context.Context, now time.Time) (int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return len(s.filter(func(t Transaction) bool { return t.Overdue(now) })), nil
}
