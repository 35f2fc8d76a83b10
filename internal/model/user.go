package model

import (
	"fmt"
	"strconv"
	"time"
)

// Roles.
const (
	RoleMaster = "master"
	RoleClient = "client"
)

// MinPersonalIDDigits is the minimum number of digits in a personal id.
const MinPersonalIDDigits = 7

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

// User is a stored account row. Role decides which Identity it becomes.
type User struct {
	ID           int64     `json:"id"`
	PersonalID   int64     `json:"personal_id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Palga        string    `json:"palga,omitempty"`
	Team         string    `json:"team,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// FullName returns "First Last".
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// Presentation renders a user the way custody records and logs name people.
func (u *User) Presentation() string {
	return fmt.Sprintf("%s (%d)", u.FullName(), u.PersonalID)
}

// Identity is an authenticated actor: either a *Master or a *Client.
type Identity interface {
	Account() *User
	identity()
}

// Master is a quartermaster who issues and credits equipment.
type Master struct {
	User
}

// Client is a signer who holds equipment.
type Client struct {
	User
}

func (m *Master) Account() *User { return &m.User }
func (c *Client) Account() *User { return &c.User }

func (*Master) identity() {}
func (*Client) identity() {}

// IdentityFromUser wraps a user row in the identity type matching its role.
func IdentityFromUser(u *User) (Identity, error) {
	switch u.Role {
	case RoleMaster:
		return &Master{User: *u}, nil
	case RoleClient:
		return &Client{User: *u}, nil
	default:
		return nil, fmt.Errorf("unknown role %q", u.Role)
	}
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	return role == RoleMaster || role == RoleClient
}

// ValidatePassword checks the password policy.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// ValidatePersonalID checks that a personal id is positive and long enough.
func ValidatePersonalID(pid int64) error {
	if pid <= 0 {
		return fmt.Errorf("personal id must be positive")
	}
	if len(strconv.FormatInt(pid, 10)) < MinPersonalIDDigits {
		return fmt.Errorf("personal id must include at least %d digits", MinPersonalIDDigits)
	}
	return nil
}
