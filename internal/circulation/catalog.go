package circulation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aoideee/libmgs/internal/data"
	"github.com/aoideee/libmgs/internal/validator"
)

// Search returns the catalog filtered by query, ordered by title. It needs
// no session.
func (s *Service) Search(ctx context.Context, query string) ([]*data.Book, error) {
	return s.models.Books.Search(ctx, strings.TrimSpace(query))
}

func (s *Service) ListBooks(ctx context.Context, staff Staff, filters data.Filters) ([]*data.Book, data.Metadata, error) {
	if err := staff.check(); err != nil {
		return nil, data.Metadata{}, err
	}

	v := validator.New()
	if data.ValidateFilters(v, filters); !v.Valid() {
		return nil, data.Metadata{}, failed(v.Errors)
	}
	return s.models.Books.GetAll(ctx, filters)
}

func (s *Service) GetBook(ctx context.Context, staff Staff, id int64) (*data.Book, error) {
	if err := staff.check(); err != nil {
		return nil, err
	}
	book, err := s.models.Books.Get(ctx, id)
	if err != nil {
		return nil, bookError(err, id)
	}
	return book, nil
}

func (s *Service) AddBook(ctx context.Context, staff Staff, input data.BookInput) (*data.Book, error) {
	if err := staff.check(); err != nil {
		return nil, err
	}

	input = trimBookInput(input)
	v := validator.New()
	if data.ValidateBook(v, input); !v.Valid() {
		return nil, failed(v.Errors)
	}

	book := &data.Book{}
	input.Apply(book)
	if err := s.models.Books.Insert(ctx, book); err != nil {
		return nil, bookError(err, 0)
	}

	s.logger.Info("book added", "book_id", book.ID, "isbn", book.ISBN, "staff", staff.User().Username)
	return book, nil
}

// EditBook applies a full update. Copy counts left out of input keep their
// stored values so an edit never resets the stock of a book on loan.
func (s *Service) EditBook(ctx context.Context, staff Staff, id int64, input data.BookInput) (*data.Book, error) {
	if err := staff.check(); err != nil {
		return nil, err
	}

	book, err := s.models.Books.Get(ctx, id)
	if err != nil {
		return nil, bookError(err, id)
	}

	input = trimBookInput(input)
	if input.TotalCopies == nil {
		total := book.TotalCopies
		input.TotalCopies = &total
	}
	if input.AvailableCopies == nil {
		available := book.AvailableCopies
		input.AvailableCopies = &available
	}

	v := validator.New()
	if data.ValidateBook(v, input); !v.Valid() {
		return nil, failed(v.Errors)
	}

	input.Apply(book)
	if err := s.models.Books.Update(ctx, book); err != nil {
		return nil, bookError(err, id)
	}

	s.logger.Info("book updated", "book_id", book.ID, "staff", staff.User().Username)
	return book, nil
}

// DeleteBook removes the book. Its transactions go with it.
func (s *Service) DeleteBook(ctx context.Context, staff Staff, id int64) error {
	if err := staff.check(); err != nil {
		return err
	}
	if err := s.models.Books.Delete(ctx, id); err != nil {
		return bookError(err, id)
	}

	s.logger.Info("book deleted", "book_id", id, "staff", staff.User().Username)
	return nil
}

func trimBookInput(in data.BookInput) data.BookInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.ISBN = strings.TrimSpace(in.ISBN)
	in.Genre = strings.TrimSpace(in.Genre)
	in.CoverImageURL = strings.TrimSpace(in.CoverImageURL)
	return in
}

func bookError(err error, id int64) error {
	switch {
	case errors.Is(err, data.ErrRecordNotFound):
		return fmt.Errorf("book %d: %w", id, ErrNotFound)
	case errors.Is(err, data.ErrDuplicateISBN):
		return fmt.Errorf("%w: a book with this ISBN already exists", ErrIntegrity)
	case errors.Is(err, data.ErrRestricted):
		return fmt.Errorf("%w: book is still referenced", ErrIntegrity)
	default:
		return err
	}
}
