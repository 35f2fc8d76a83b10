package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/zadolzitve/internal/model"
)

const userColumns = `id, personal_id, first_name, last_name, email, password_hash, role, palga, team, created_at`

func scanUser(s rowScanner) (*model.User, error) {
	u := &model.User{}
	if err := s.Scan(&u.ID, &u.PersonalID, &u.FirstName, &u.LastName, &u.Email,
		&u.PasswordHash, &u.Role, &u.Palga, &u.Team, &u.CreatedAt); err != nil {
		return nil, err
	}
	return u, nil
}

// CreateUser creates a new master or client account. PasswordHash must
// already be hashed.
func CreateUser(ctx context.Context, db *sql.DB, u *model.User) (*model.User, error) {
	if err := model.ValidatePersonalID(u.PersonalID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !model.ValidRole(u.Role) {
		return nil, fmt.Errorf("%w: invalid role %q", ErrValidation, u.Role)
	}
	if strings.TrimSpace(u.FirstName) == "" || strings.TrimSpace(u.LastName) == "" {
		return nil, fmt.Errorf("%w: first and last name required", ErrValidation)
	}
	if u.Role == model.RoleClient && (u.Palga == "" || u.Team == "") {
		return nil, fmt.Errorf("%w: palga and team required for clients", ErrValidation)
	}

	existing, err := getUserByPersonalID(ctx, db, u.PersonalID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: this personal id is already used: %d", ErrValidation, u.PersonalID)
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO users (personal_id, first_name, last_name, email, password_hash, role, palga, team)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.PersonalID, u.FirstName, u.LastName, u.Email, u.PasswordHash, u.Role, u.Palga, u.Team,
	)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting user id: %w", err)
	}

	return GetUser(ctx, db, id)
}

// GetUser returns a user by row ID.
func GetUser(ctx context.Context, db *sql.DB, id int64) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByPersonalID returns a user by personal id.
func GetUserByPersonalID(ctx context.Context, db *sql.DB, pid int64) (*model.User, error) {
	return getUserByPersonalID(ctx, db, pid)
}

func getUserByPersonalID(ctx context.Context, q querier, pid int64) (*model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE personal_id = ?`, pid,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by personal id: %w", err)
	}
	return u, nil
}

// GetIdentity resolves a personal id to a Master or Client identity.
// Returns nil if no such user exists.
func GetIdentity(ctx context.Context, db *sql.DB, pid int64) (model.Identity, error) {
	u, err := getUserByPersonalID(ctx, db, pid)
	if err != nil || u == nil {
		return nil, err
	}
	return model.IdentityFromUser(u)
}

// requireClient returns the client with the given personal id or a
// validation error if there is none.
func requireClient(ctx context.Context, q querier, pid int64) (*model.User, error) {
	u, err := getUserByPersonalID(ctx, q, pid)
	if err != nil {
		return nil, err
	}
	if u == nil || u.Role != model.RoleClient {
		return nil, fmt.Errorf("%w: a client with the given personal id doesn't exist: %d", ErrValidation, pid)
	}
	return u, nil
}

// describeUser renders a personal id for log descriptions.
func describeUser(ctx context.Context, q querier, pid int64) (string, error) {
	u, err := getUserByPersonalID(ctx, q, pid)
	if err != nil {
		return "", err
	}
	if u == nil {
		return fmt.Sprintf("unknown (%d)", pid), nil
	}
	return u.Presentation(), nil
}

// ListUsers returns all users, optionally filtered by role.
func ListUsers(ctx context.Context, db *sql.DB, role string) ([]model.User, error) {
	var rows *sql.Rows
	var err error

	if role != "" {
		rows, err = db.QueryContext(ctx,
			`SELECT `+userColumns+` FROM users WHERE role = ? ORDER BY last_name, first_name`, role,
		)
	} else {
		rows, err = db.QueryContext(ctx,
			`SELECT `+userColumns+` FROM users ORDER BY last_name, first_name`,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateUserProfile updates a user's descriptive fields.
func UpdateUserProfile(ctx context.Context, db *sql.DB, id int64, firstName, lastName, email, palga, team string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE users SET first_name = ?, last_name = ?, email = ?, palga = ?, team = ? WHERE id = ?`,
		firstName, lastName, email, palga, team, id,
	)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	return nil
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, db *sql.DB, id int64, passwordHash string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ?`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	return nil
}

// DeleteClient removes a client account. Fails while the client holds
// signings, has pending signings, or is a party to a switch request.
func DeleteClient(ctx context.Context, db *sql.DB, id int64) error {
	return withTx(ctx, db, func(tx *sql.Tx) error {
		u, err := scanUser(tx.QueryRowContext(ctx,
			`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
		))
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: user %d", ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("getting user: %w", err)
		}
		if u.Role != model.RoleClient {
			return fmt.Errorf("%w: only client users can be deleted", ErrValidation)
		}

		checks := []struct {
			what  string
			query string
			args  []any
		}{
			{"signings", `SELECT COUNT(*) FROM signings WHERE client_pid = ?`, []any{u.PersonalID}},
			{"pending signings", `SELECT COUNT(*) FROM pending_signings WHERE client_pid = ?`, []any{u.PersonalID}},
			{"switch requests", `SELECT COUNT(*) FROM switch_requests WHERE old_pid = ? OR new_pid = ?`, []any{u.PersonalID, u.PersonalID}},
		}
		for _, c := range checks {
			n, err := countRows(ctx, tx, c.query, c.args...)
			if err != nil {
				return fmt.Errorf("checking client %s: %w", c.what, err)
			}
			if n > 0 {
				return fmt.Errorf("%w: cannot delete client: still has %d %s", ErrInvariant, n, c.what)
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting user: %w", err)
		}
		return nil
	})
}
