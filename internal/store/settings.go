package store

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"fmt"
)

// Setting keys.
const (
	settingJWTSecret        = "jwt_secret"
	settingRegistrationCode = "registration_code"
)

// GetJWTSecret retrieves the JWT secret, generating and storing one on first use.
func GetJWTSecret(ctx context.Context, db *sql.DB) (string, error) {
	return ensureSetting(ctx, db, settingJWTSecret, 32)
}

// GetRegistrationCode returns the code new accounts must present to sign up,
// generating one on first use.
func GetRegistrationCode(ctx context.Context, db *sql.DB) (string, error) {
	return ensureSetting(ctx, db, settingRegistrationCode, 8)
}

// SetRegistrationCode replaces the registration code.
func SetRegistrationCode(ctx context.Context, db *sql.DB, code string) error {
	if len(code) < 6 {
		return fmt.Errorf("%w: registration code must be at least 6 characters", ErrValidation)
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		settingRegistrationCode, code,
	)
	if err != nil {
		return fmt.Errorf("storing %s: %w", settingRegistrationCode, err)
	}
	return nil
}

// CheckRegistrationCode reports whether code matches the stored registration code.
func CheckRegistrationCode(ctx context.Context, db *sql.DB, code string) (bool, error) {
	stored, err := GetRegistrationCode(ctx, db)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(code)) == 1, nil
}

// ensureSetting returns the value stored under key, first storing a random
// hex value of n bytes if the key is unset.
// Uses INSERT OR IGNORE + re-SELECT to avoid TOCTOU race on concurrent startup.
func ensureSetting(ctx context.Context, db *sql.DB, key string, n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating %s: %w", key, err)
	}
	candidate := hex.EncodeToString(buf)

	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`,
		key, candidate,
	)
	if err != nil {
		return "", fmt.Errorf("storing %s: %w", key, err)
	}

	var value string
	err = db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key,
	).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("querying %s: %w", key, err)
	}

	return value, nil
}
