package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertUser inserts a new auth user row
func (db *DB) InsertUser(ctx context.Context, u *UserRecord) error {
	query := `
		INSERT INTO users (id, email, password_hash, full_name, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	u.CreatedAt = time.Now()
	_, err := db.conn.ExecContext(ctx, query, u.ID, u.Email, u.PasswordHash, u.FullName, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UserByEmail retrieves a user by email. Returns (nil, nil) when no such
// user exists.
func (db *DB) UserByEmail(ctx context.Context, email string) (*UserRecord, error) {
	query := `
		SELECT id, email, password_hash, full_name, created_at
		FROM users
		WHERE email = $1
	`
	var u UserRecord
	err := db.conn.QueryRowContext(ctx, query, email).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// InsertProfile inserts the public profile row mirroring an auth user
func (db *DB) InsertProfile(ctx context.Context, p *ProfileRecord) error {
	query := `
		INSERT INTO profiles (id, email, full_name, risk_tolerance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.RiskTolerance == "" {
		p.RiskTolerance = "MODERATE"
	}
	_, err := db.conn.ExecContext(ctx, query, p.ID, p.Email, p.FullName, p.RiskTolerance, now)
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}
