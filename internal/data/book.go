// Package data provides the data models and database interaction logic
// for the library management system.
package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aoideee/libmgs/internal/validator"
)

// Book represents a single catalog entry. It maps directly to a row in the
// "books" table.
type Book struct {
	ID              int64  `json:"book_id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	ISBN            string `json:"isbn"` // 13 characters, unique
	Genre           string `json:"genre"`
	TotalCopies     int    `json:"total_copies"`
	AvailableCopies int    `json:"available_copies"`
	CoverImageURL   string `json:"cover_image_url,omitempty"`
}

// BookInput holds the fields staff submit on the add and edit forms.
type BookInput struct {
	Title           string `json:"title"`
	Author          string `json:"author"`
	ISBN            string `json:"isbn"`
	Genre           string `json:"genre"`
	TotalCopies     *int   `json:"total_copies"`
	AvailableCopies *int   `json:"available_copies"`
	CoverImageURL   string `json:"cover_image_url"`
}

// ValidateBook checks a submitted book form. Both copy counts default to 1
// when omitted, matching the column defaults.
func ValidateBook(v *validator.Validator, input BookInput) {
	v.Check(validator.NotBlank(input.Title), "title", "must be provided")
	v.Check(validator.MaxChars(input.Title, 255), "title", "must not be more than 255 characters long")
	v.Check(validator.NotBlank(input.Author), "author", "must be provided")
	v.Check(validator.MaxChars(input.Author, 255), "author", "must not be more than 255 characters long")
	v.Check(validator.NotBlank(input.ISBN), "isbn", "must be provided")
	v.Check(len(input.ISBN) == 13, "isbn", "must be exactly 13 characters long")
	v.Check(validator.NotBlank(input.Genre), "genre", "must be provided")
	v.Check(validator.MaxChars(input.Genre, 100), "genre", "must not be more than 100 characters long")

	total, available := input.copies()
	v.Check(total >= 0, "total_copies", "must not be negative")
	v.Check(available >= 0, "available_copies", "must not be negative")
	v.Check(available <= total, "available_copies", "must not exceed total copies")

	if input.CoverImageURL != "" {
		v.Check(validator.WebURL(input.CoverImageURL), "cover_image_url", "must be a valid http or https URL")
	}
}

func (in BookInput) copies() (total, available int) {
	total, available = 1, 1
	if in.TotalCopies != nil {
		total = *in.TotalCopies
	}
	if in.AvailableCopies != nil {
		available = *in.AvailableCopies
	}
	return total, available
}

// Apply copies the validated form values onto book.
func (in BookInput) Apply(book *Book) {
	book.Title = in.Title
	book.Author = in.Author
	book.ISBN = in.ISBN
	book.Genre = in.Genre
	book.TotalCopies, book.AvailableCopies = in.copies()
	book.CoverImageURL = in.CoverImageURL
}

// BookSortSafeList is the set of sort values accepted by the management list.
var BookSortSafeList = []string{
	"title", "author", "genre", "available_copies",
	"-title", "-author", "-genre", "-available_copies",
}

// ValidateFilters checks the pagination and sort parameters of a list request.
func ValidateFilters(v *validator.Validator, f Filters) {
	v.Check(f.Page > 0, "page", "must be greater than zero")
	v.Check(f.Page <= 10_000_000, "page", "must be a maximum of 10 million")
	v.Check(f.PageSize > 0, "page_size", "must be greater than zero")
	v.Check(f.PageSize <= 100, "page_size", "must be a maximum of 100")
	v.Check(validator.In(f.Sort, f.SortSafeList...), "sort", "invalid sort value")
}

// BookModel wraps a *sql.DB connection and provides methods for
// creating, reading, updating, and deleting book records.
type BookModel struct {
	DB *sql.DB
}

const bookColumns = `id, title, author, isbn, genre, total_copies, available_copies, COALESCE(cover_image_url, '')`

func scanBook(row scanner, book *Book) error {
	return row.Scan(
		&book.ID,
		&book.Title,
		&book.Author,
		&book.ISBN,
		&book.Genre,
		&book.TotalCopies,
		&book.AvailableCopies,
		&book.CoverImageURL,
	)
}

// Insert adds a new book record. The database-assigned id is written back
// into book. Returns ErrDuplicateISBN if the ISBN is taken.
func (m BookModel) Insert(ctx context.Context, book *Book) error {
	query := `
		INSERT INTO books (title, author, isbn, genre, total_copies, available_copies, cover_image_url)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
		RETURNING id`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	err := m.DB.QueryRowContext(ctx, query,
		book.Title,
		book.Author,
		book.ISBN,
		book.Genre,
		book.TotalCopies,
		book.AvailableCopies,
		book.CoverImageURL,
	).Scan(&book.ID)
	return translateError(err)
}

// Get retrieves a single book by its primary key.
// Returns ErrRecordNotFound if no book with the given id exists.
func (m BookModel) Get(ctx context.Context, id int64) (*Book, error) {
	if id < 1 {
		return nil, ErrRecordNotFound
	}

	query := `SELECT ` + bookColumns + ` FROM books WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var book Book
	if err := scanBook(m.DB.QueryRowContext(ctx, query, id), &book); err != nil {
		return nil, translateError(err)
	}
	return &book, nil
}

// GetByISBN retrieves a single book by its catalog identifier.
func (m BookModel) GetByISBN(ctx context.Context, isbn string) (*Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE isbn = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var book Book
	if err := scanBook(m.DB.QueryRowContext(ctx, query, isbn), &book); err != nil {
		return nil, translateError(err)
	}
	return &book, nil
}

// Update saves every editable field of book.
func (m BookModel) Update(ctx context.Context, book *Book) error {
	query := `
		UPDATE books
		SET title = $1, author = $2, isbn = $3, genre = $4,
		    total_copies = $5, available_copies = $6, cover_image_url = NULLIF($7, '')
		WHERE id = $8`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := m.DB.ExecContext(ctx, query,
		book.Title,
		book.Author,
		book.ISBN,
		book.Genre,
		book.TotalCopies,
		book.AvailableCopies,
		book.CoverImageURL,
		book.ID,
	)
	if err != nil {
		return translateError(err)
	}
	return requireRow(result)
}

// Delete removes the book with the given id. Loans of the book go with it
// (see Policies). Returns ErrRecordNotFound if no matching record exists.
func (m BookModel) Delete(ctx context.Context, id int64) error {
	if id < 1 {
		return ErrRecordNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := m.DB.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return translateDeleteError(err)
	}
	return requireRow(result)
}

// Search implements the public catalog lookup. strpos is used instead of
// ILIKE so that % and _ in the query are matched literally.
func (m BookModel) Search(ctx context.Context, query string) ([]*Book, error) {
	stmt := `
		SELECT ` + bookColumns + `
		FROM books
		WHERE $1 = ''
		   OR strpos(lower(title), lower($1)) > 0
		   OR strpos(lower(author), lower($1)) > 0
		   OR strpos(lower(genre), lower($1)) > 0
		ORDER BY title ASC, id ASC`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, stmt, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := []*Book{}
	for rows.Next() {
		var book Book
		if err := scanBook(rows, &book); err != nil {
			return nil, err
		}
		books = append(books, &book)
	}
	return books, rows.Err()
}

// GetAll retrieves a paginated, sorted list of books.
// It uses a COUNT(*) OVER() window function so only one round-trip is needed.
func (m BookModel) GetAll(ctx context.Context, filters Filters) ([]*Book, Metadata, error) {
	query := fmt.Sprintf(`
		SELECT count(*) OVER(), %s
		FROM books
		ORDER BY %s %s, id ASC
		LIMIT $1 OFFSET $2`, bookColumns, filters.sortColumn(), filters.sortDirection())

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, query, filters.limit(), filters.offset())
	if err != nil {
		return nil, Metadata{}, err
	}
	defer rows.Close()

	totalRecords := 0
	books := []*Book{}

	for rows.Next() {
		var book Book
		err := rows.Scan(
			&totalRecords, // same value on every row
			&book.ID,
			&book.Title,
			&book.Author,
			&book.ISBN,
			&book.Genre,
			&book.TotalCopies,
			&book.AvailableCopies,
			&book.CoverImageURL,
		)
		if err != nil {
			return nil, Metadata{}, err
		}
		books = append(books, &book)
	}
	if err = rows.Err(); err != nil {
		return nil, Metadata{}, err
	}

	metadata := calculateMetadata(totalRecords, filters.Page, filters.PageSize)
	return books, metadata, nil
}

// TotalCopies sums total_copies over the whole catalog.
func (m BookModel) TotalCopies(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var total int
	err := m.DB.QueryRowContext(ctx, `SELECT COALESCE(SUM(total_copies), 0) FROM books`).Scan(&total)
	return total, err
}

// requireRow reports ErrRecordNotFound when an UPDATE or DELETE matched nothing.
func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
