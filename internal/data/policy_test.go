package data

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aoideee/libmgs/internal/validator"
)

func TestPolicyReferences(t *testing.T) {
	fk := Policy("transactions", "book_id")
	assert.Equal(t, "REFERENCES books(id) ON DELETE CASCADE", fk.References())

	assert.Panics(t, func() { Policy("books", "author_id") })
}

func TestSchemaUsesPolicies(t *testing.T) {
	ddl := strings.Join(schemaStatements(), "\n")
	for _, fk := range Policies {
		assert.Contains(t, ddl, fk.Column+" bigint NOT NULL "+fk.References())
	}
	for constraint := range uniqueViolations {
		assert.Contains(t, ddl, "CONSTRAINT "+constraint+" UNIQUE")
	}
}

func TestValidateBook(t *testing.T) {
	valid := BookInput{Title: "Dune", Author: "Frank Herbert", ISBN: "9780441172719", Genre: "Sci-Fi"}

	tests := []struct {
		name   string
		modify func(*BookInput)
		field  string
	}{
		{"short isbn", func(in *BookInput) { in.ISBN = "123" }, "isbn"},
		{"blank title", func(in *BookInput) { in.Title = "  " }, "title"},
		{"available above total", func(in *BookInput) { in.TotalCopies, in.AvailableCopies = intPtr(1), intPtr(2) }, "available_copies"},
		{"negative total", func(in *BookInput) { in.TotalCopies, in.AvailableCopies = intPtr(-1), intPtr(0) }, "total_copies"},
		{"bad cover url", func(in *BookInput) { in.CoverImageURL = "ftp://x" }, "cover_image_url"},
	}

	v := validator.New()
	ValidateBook(v, valid)
	assert.True(t, v.Valid())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.modify(&in)

			v := validator.New()
			ValidateBook(v, in)
			assert.Contains(t, v.Errors, tt.field)
		})
	}
}

func TestCalculateMetadata(t *testing.T) {
	assert.Equal(t, Metadata{}, calculateMetadata(0, 1, 20))
	assert.Equal(t, Metadata{CurrentPage: 2, PageSize: 20, FirstPage: 1, LastPage: 3, TotalRecords: 41}, calculateMetadata(41, 2, 20))
}
