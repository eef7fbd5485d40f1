package data

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Token is a session credential. Only its SHA-256 hash is stored.
type Token struct {
	Plaintext string    `json:"token"`
	Hash      []byte    `json:"-"`
	UserID    int64     `json:"-"`
	Expiry    time.Time `json:"expiry"`
}

func generateToken(userID int64, ttl time.Duration) *Token {
	plaintext := uuid.NewString()
	hash := sha256.Sum256([]byte(plaintext))
	return &Token{
		Plaintext: plaintext,
		Hash:      hash[:],
		UserID:    userID,
		Expiry:    time.Now().Add(ttl),
	}
}

// TokenModel wraps a *sql.DB connection for the tokens table.
type TokenModel struct {
	DB *sql.DB
}

// New generates a token for userID and stores its hash.
func (m TokenModel) New(ctx context.Context, userID int64, ttl time.Duration) (*Token, error) {
	token := generateToken(userID, ttl)

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	query := `INSERT INTO tokens (hash, user_id, expiry) VALUES ($1, $2, $3)`
	_, err := m.DB.ExecContext(ctx, query, token.Hash, token.UserID, token.Expiry)
	if err != nil {
		return nil, err
	}
	return token, nil
}

// DeleteAllForUser ends every session of userID.
func (m TokenModel) DeleteAllForUser(ctx context.Context, userID int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := m.DB.ExecContext(ctx, `DELETE FROM tokens WHERE user_id = $1`, userID)
	return err
}
