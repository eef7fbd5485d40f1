package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const schemaVersion = 1

func schemaStatements() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id bigserial PRIMARY KEY,
			created_at timestamptz NOT NULL DEFAULT NOW(),
			username varchar(150) NOT NULL,
			email text NOT NULL,
			first_name varchar(150) NOT NULL DEFAULT '',
			last_name varchar(150) NOT NULL DEFAULT '',
			password_hash bytea NOT NULL,
			is_staff boolean NOT NULL DEFAULT false,
			CONSTRAINT users_username_key UNIQUE (username),
			CONSTRAINT users_email_key UNIQUE (email)
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS members (
			id bigserial PRIMARY KEY,
			user_id bigint NOT NULL %s,
			membership_id varchar(20) NOT NULL,
			phone_number varchar(15) NOT NULL,
			address text NOT NULL,
			joined_at timestamptz NOT NULL DEFAULT NOW(),
			CONSTRAINT members_user_id_key UNIQUE (user_id),
			CONSTRAINT members_membership_id_key UNIQUE (membership_id)
		)`, Policy("members", "user_id").References()),
		`CREATE TABLE IF NOT EXISTS books (
			id bigserial PRIMARY KEY,
			title varchar(255) NOT NULL,
			author varchar(255) NOT NULL,
			isbn varchar(13) NOT NULL,
			genre varchar(100) NOT NULL,
			total_copies integer NOT NULL DEFAULT 1 CHECK (total_copies >= 0),
			available_copies integer NOT NULL DEFAULT 1 CHECK (available_copies >= 0),
			cover_image_url text,
			CONSTRAINT books_isbn_key UNIQUE (isbn)
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS transactions (
			id bigserial PRIMARY KEY,
			book_id bigint NOT NULL %s,
			member_id bigint NOT NULL %s,
			issue_date timestamptz NOT NULL DEFAULT NOW(),
			expected_return_date timestamptz NOT NULL,
			actual_return_date timestamptz,
			status varchar(10) NOT NULL DEFAULT 'Issued' CHECK (status IN ('Issued', 'Returned')),
			fine_amount numeric(6,2) NOT NULL DEFAULT 0 CHECK (fine_amount >= 0),
			CHECK ((status = 'Returned') = (actual_return_date IS NOT NULL))
		)`, Policy("transactions", "book_id").References(), Policy("transactions", "member_id").References()),
		`CREATE INDEX IF NOT EXISTS transactions_member_id_idx ON transactions (member_id)`,
		`CREATE INDEX IF NOT EXISTS transactions_status_idx ON transactions (status)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS tokens (
			hash bytea PRIMARY KEY,
			user_id bigint NOT NULL %s,
			expiry timestamptz NOT NULL
		)`, Policy("tokens", "user_id").References()),
	}
}

// Migrate brings the schema up to schemaVersion. It is safe to run on every
// start; an up-to-date database is left untouched.
func Migrate(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_meta (key text PRIMARY KEY, value integer NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_meta: %w", err)
	}

	var current int
	err := db.QueryRowContext(ctx, `SELECT value FROM schema_meta WHERE key = 'schema_version'`).Scan(&current)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("read schema version: %w", err)
	}
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range schemaStatements() {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO schema_meta (key, value) VALUES ('schema_version', $1)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`, schemaVersion)
	if err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	return tx.Commit()
}
