package auth

// Package auth contains domain-level types for principals and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"errors"
	"strings"
	"time"
)

// Role represents an application's authorization role.
// Keep string form for easy persistence and cookies.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleSupport  Role = "support"
	RoleAdmin    Role = "admin"
	RoleUser     Role = "user"
)

// ErrSessionNotFound is returned by session stores when a token is unknown.
var ErrSessionNotFound = errors.New("session not found")

// ParseRole converts a stored role string into a Role.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleCustomer, RoleSupport, RoleAdmin, RoleUser:
		return r, true
	default:
		return "", false
	}
}

// RegionScoped reports whether the role is granted access by region rather than ownership alone.
func (r Role) RegionScoped() bool { return r == RoleSupport }

// Principal is the authenticated identity making a request.
type Principal struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	Role       Role   `json:"role"`
	Department string `json:"department,omitempty"`
}

// Identity represents the authenticated principal returned by an IdP.
type Identity struct {
	Subject   string
	Email     string
	ExpiresAt time.Time
}

// Session is the server-side record bound to an opaque token.
// A zero ExpiresAt means the session never expires.
type Session struct {
	Token      string    `json:"token"`
	UserID     int64     `json:"user_id"`
	Username   string    `json:"username"`
	Role       Role      `json:"role"`
	Department string    `json:"department,omitempty"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at,omitzero"`
}

// ExpiredAt reports whether the session is past its expiry at now. The expiry instant itself is still valid.
func (s Session) ExpiredAt(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Principal returns the identity bound to the session.
func (s Session) Principal() *Principal {
	return &Principal{
		ID:         s.UserID,
		Username:   s.Username,
		Role:       s.Role,
		Department: s.Department,
	}
}
