package data

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/aoideee/libmgs/internal/validator"
)

// AnonymousUser represents a request that carried no valid session.
var AnonymousUser = &User{}

// User is an account. Staff accounts carry IsStaff; member accounts have a
// Member profile linked one-to-one.
type User struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Password  password  `json:"-"`
	IsStaff   bool      `json:"is_staff"`
}

// IsAnonymous reports whether u is the AnonymousUser sentinel.
func (u *User) IsAnonymous() bool {
	return u == AnonymousUser
}

type password struct {
	hash []byte
}

// Set hashes plaintext with bcrypt. Callers validate the plaintext first;
// bcrypt rejects anything over 72 bytes.
func (p *password) Set(plaintext string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), 12)
	if err != nil {
		return err
	}
	p.hash = hash
	return nil
}

// Matches reports whether plaintext hashes to the stored hash.
func (p *password) Matches(plaintext string) (bool, error) {
	err := bcrypt.CompareHashAndPassword(p.hash, []byte(plaintext))
	if err != nil {
		switch {
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, err
		}
	}
	return true, nil
}

func ValidateEmail(v *validator.Validator, email string) {
	v.Check(validator.NotBlank(email), "email", "must be provided")
	v.Check(validator.Matches(email, validator.EmailRX), "email", "must be a valid email address")
}

func ValidatePasswordPlaintext(v *validator.Validator, password string) {
	v.Check(password != "", "password", "must be provided")
	v.Check(len(password) >= 8, "password", "must be at least 8 bytes long")
	v.Check(len(password) <= 72, "password", "must not be more than 72 bytes long")
}

// ValidateUser checks the account fields of a signup or create-staff request.
// The password is checked separately, before it is hashed.
func ValidateUser(v *validator.Validator, user *User) {
	v.Check(validator.NotBlank(user.Username), "username", "must be provided")
	v.Check(validator.MaxChars(user.Username, 150), "username", "must not be more than 150 characters long")
	v.Check(validator.Matches(user.Username, validator.UsernameRX), "username", "may contain only letters, digits and @/./+/-/_")
	v.Check(validator.MaxChars(user.FirstName, 150), "first_name", "must not be more than 150 characters long")
	v.Check(validator.MaxChars(user.LastName, 150), "last_name", "must not be more than 150 characters long")

	ValidateEmail(v, user.Email)
}

// UserModel wraps a *sql.DB connection for the users table.
type UserModel struct {
	DB *sql.DB
}

// Insert adds an account on its own, as the operator CLI does for staff.
func (m UserModel) Insert(ctx context.Context, user *User) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return insertUser(ctx, m.DB, user)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertUser(ctx context.Context, q queryRower, user *User) error {
	query := `
		INSERT INTO users (username, email, first_name, last_name, password_hash, is_staff)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	args := []any{user.Username, user.Email, user.FirstName, user.LastName, user.Password.hash, user.IsStaff}
	return translateError(q.QueryRowContext(ctx, query, args...).Scan(&user.ID, &user.CreatedAt))
}

const userColumns = `users.id, users.created_at, users.username, users.email, users.first_name, users.last_name, users.password_hash, users.is_staff`

func scanUser(row *sql.Row) (*User, error) {
	var user User
	err := row.Scan(
		&user.ID,
		&user.CreatedAt,
		&user.Username,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.Password.hash,
		&user.IsStaff,
	)
	if err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (m UserModel) GetByUsername(ctx context.Context, username string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanUser(m.DB.QueryRowContext(ctx, query, username))
}

// GetForToken resolves an unexpired session token to its account.
func (m UserModel) GetForToken(ctx context.Context, tokenPlaintext string) (*User, error) {
	tokenHash := sha256.Sum256([]byte(tokenPlaintext))

	query := `
		SELECT ` + userColumns + `
		FROM users
		INNER JOIN tokens ON users.id = tokens.user_id
		WHERE tokens.hash = $1
		AND tokens.expiry > $2`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanUser(m.DB.QueryRowContext(ctx, query, tokenHash[:], time.Now()))
}

// Delete removes the account. Its member profile, loans and tokens cascade.
func (m UserModel) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := m.DB.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return translateDeleteError(err)
	}
	return requireRow(result)
}
