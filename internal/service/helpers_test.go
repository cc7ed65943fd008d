package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/target/seclab-api/internal/adapters/memory"
	domainauth "github.com/target/seclab-api/internal/domain/auth"
	"github.com/target/seclab-api/internal/domain/model"
)

// fakeClock is a settable clock shared by services under test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// seedLabUsers creates alice (1), bob (2) and charlie (3) with password "password123".
func seedLabUsers(t *testing.T, users *memory.UserRepo) (alice, bob, charlie *model.User) {
	t.Helper()
	ctx := context.Background()
	mk := func(name string, role domainauth.Role, dept string) *model.User {
		u, err := users.Create(ctx, &model.CreateUserRequest{
			Username:     name,
			PasswordHash: "plain:password123",
			Role:         role,
			Department:   dept,
			Email:        name + "@example.com",
		})
		require.NoError(t, err)
		return u
	}
	return mk("alice", domainauth.RoleCustomer, "north"),
		mk("bob", domainauth.RoleCustomer, "south"),
		mk("charlie", domainauth.RoleSupport, "north")
}
