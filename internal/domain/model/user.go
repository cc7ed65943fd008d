//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/target/seclab-api/internal/domain/auth"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 32
	minPasswordLen = 8
	// bcrypt ignores input past 72 bytes.
	maxPasswordLen = 72
	maxEmailLen    = 254
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

// User is an account shared by every lab.
type User struct {
	ID           int64     `json:"id"                   db:"id"`
	Username     string    `json:"username"             db:"username"`
	PasswordHash string    `json:"-"                    db:"password_hash"`
	Role         auth.Role `json:"role"                 db:"role"`
	Department   string    `json:"department,omitempty" db:"department"`
	Email        string    `json:"email"                db:"email"`
	Balance      float64   `json:"balance"              db:"balance"`
	CreatedAt    time.Time `json:"created_at"           db:"created_at"`
}

// Principal returns the authorization identity of the user.
func (u *User) Principal() *auth.Principal {
	return &auth.Principal{
		ID:         u.ID,
		Username:   u.Username,
		Role:       u.Role,
		Department: u.Department,
	}
}

// CreateUserRequest carries the already-hashed fields for inserting a user.
type CreateUserRequest struct {
	Username     string
	PasswordHash string
	Role         auth.Role
	Department   string
	Email        string
	Balance      float64
}

// LoginRequest is the body of a password login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate checks presence only; credential errors must not reveal which field was wrong.
func (r *LoginRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	if r.Username == "" || r.Password == "" {
		return errors.New("username and password are required")
	}
	return nil
}

// RegisterRequest is the body of a self-service registration.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// Validate validates and normalizes RegisterRequest.
func (r *RegisterRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	if err := ValidateUsername(r.Username); err != nil {
		return err
	}
	if n := len(r.Password); n < minPasswordLen || n > maxPasswordLen {
		return errors.New("password must be between 8 and 72 bytes")
	}
	if r.Email != "" {
		email, err := NormalizeEmail(r.Email)
		if err != nil {
			return err
		}
		r.Email = email
	}
	return nil
}

// ChangeEmailRequest is the body of an email update.
type ChangeEmailRequest struct {
	Email string `json:"email"`
}

// Validate validates and normalizes ChangeEmailRequest.
func (r *ChangeEmailRequest) Validate() error {
	email, err := NormalizeEmail(r.Email)
	if err != nil {
		return err
	}
	r.Email = email
	return nil
}

// ValidateUsername enforces the username charset and length.
func ValidateUsername(name string) error {
	n := utf8.RuneCountInString(name)
	if n < minUsernameLen || n > maxUsernameLen {
		return errors.New("username must be between 3 and 32 characters")
	}
	if !usernamePattern.MatchString(name) {
		return errors.New("username may only contain letters, digits, '.', '_' and '-'")
	}
	return nil
}

// NormalizeEmail trims and lowercases an email after a basic shape check.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", errors.New("email is required")
	}
	if len(email) > maxEmailLen {
		return "", errors.New("email is too long")
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t\r\n<>") {
		return "", errors.New("invalid email")
	}
	return email, nil
}
