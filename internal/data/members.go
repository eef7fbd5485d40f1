package data

import (
	"context"
	"database/sql"
	"time"
)

// Member is the library profile of an account.
type Member struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	MembershipID string    `json:"membership_id"`
	PhoneNumber  string    `json:"phone_number"`
	Address      string    `json:"address"`
	JoinedAt     time.Time `json:"joined_at"`
}

// MemberModel wraps a *sql.DB connection for the members table.
type MemberModel struct {
	DB *sql.DB
}

// InsertWithUser inserts user and then member (linked to the new user id)
// inside one SQL transaction.
func (m MemberModel) InsertWithUser(ctx context.Context, user *User, member *Member) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertUser(ctx, tx, user); err != nil {
		return err
	}

	query := `
		INSERT INTO members (user_id, membership_id, phone_number, address)
		VALUES ($1, $2, $3, $4)
		RETURNING id, joined_at`

	member.UserID = user.ID
	err = tx.QueryRowContext(ctx, query, member.UserID, member.MembershipID, member.PhoneNumber, member.Address).
		Scan(&member.ID, &member.JoinedAt)
	if err != nil {
		return translateError(err)
	}

	return tx.Commit()
}

const memberColumns = `id, user_id, membership_id, phone_number, address, joined_at`

func (m MemberModel) get(ctx context.Context, where string, arg any) (*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE ` + where + ` = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var member Member
	err := m.DB.QueryRowContext(ctx, query, arg).Scan(
		&member.ID,
		&member.UserID,
		&member.MembershipID,
		&member.PhoneNumber,
		&member.Address,
		&member.JoinedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}
	return &member, nil
}

func (m MemberModel) GetByMembershipID(ctx context.Context, membershipID string) (*Member, error) {
	return m.get(ctx, "membership_id", membershipID)
}

func (m MemberModel) GetForUser(ctx context.Context, userID int64) (*Member, error) {
	return m.get(ctx, "user_id", userID)
}

func (m MemberModel) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var n int
	err := m.DB.QueryRowContext(ctx, `SELECT count(*) FROM members`).Scan(&n)
	return n, err
}
