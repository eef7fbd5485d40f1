package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckKeepsFirstError(t *testing.T) {
	v := New()
	assert.True(t, v.Valid())

	v.Check(false, "isbn", "must be provided")
	v.Check(false, "isbn", "must be exactly 13 characters long")
	v.Check(true, "title", "must be provided")

	assert.False(t, v.Valid())
	assert.Equal(t, map[string]string{"isbn": "must be provided"}, v.Errors)
}

func TestHelpers(t *testing.T) {
	assert.False(t, NotBlank("   "))
	assert.True(t, NotBlank(" a "))

	assert.True(t, MaxChars("ñandú", 5))
	assert.False(t, MaxChars("ñandú", 4))

	assert.True(t, In("title", "title", "author"))
	assert.False(t, In("isbn", "title", "author"))

	assert.True(t, Matches("reader@example.com", EmailRX))
	assert.False(t, Matches("reader@", EmailRX))
	assert.True(t, Matches("j.doe+lib_1@x", UsernameRX))
	assert.False(t, Matches("j doe", UsernameRX))
}

func TestWebURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://example.com/cover.jpg", true},
		{"http://covers.example.org/1.png", true},
		{"ftp://example.com/cover.jpg", false},
		{"/cover.jpg", false},
		{"not a url", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WebURL(tt.in), tt.in)
	}
}
