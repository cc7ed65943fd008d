// Package devseed loads the lab fixtures: five users, four orders, two
// transactions and three stations. Seeding is skipped when the first user exists.
package devseed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/seclab-api/internal/adapters/memory"
	"github.com/target/seclab-api/internal/core"
	"github.com/target/seclab-api/internal/data"
	domainauth "github.com/target/seclab-api/internal/domain/auth"
	"github.com/target/seclab-api/internal/domain/model"
	apperrors "github.com/target/seclab-api/internal/errors"
	"github.com/target/seclab-api/internal/ports"
)

// DefaultPassword is the password of every seeded user.
const DefaultPassword = "password123"

// OrderCreator inserts orders.
type OrderCreator interface {
	Create(ctx context.Context, o model.Order) (*model.Order, error)
}

// TransactionCreator inserts transactions.
type TransactionCreator interface {
	Create(ctx context.Context, tx model.Transaction) error
}

// StationCreator inserts stations.
type StationCreator interface {
	Create(ctx context.Context, s model.Station) error
}

// Stores bundles the repositories written by Run.
type Stores struct {
	Users        core.UserRepository
	Orders       OrderCreator
	Transactions TransactionCreator
	Stations     StationCreator
}

// NewPostgresStores constructs Stores backed by db.
func NewPostgresStores(db *sql.DB) Stores {
	return Stores{
		Users:        data.NewUserRepo(db),
		Orders:       data.NewOrderRepo(db),
		Transactions: data.NewTransactionRepo(db),
		Stations:     data.NewStationRepo(db),
	}
}

// MemoryStores groups the in-memory repositories so they can be both seeded and served.
type MemoryStores struct {
	Users        *memory.UserRepo
	Orders       *memory.OrderRepo
	Transactions *memory.TransactionRepo
	Feedback     *memory.FeedbackRepo
	Stations     *memory.StationRepo
}

// NewMemoryStores returns empty in-memory repositories.
func NewMemoryStores() MemoryStores {
	return MemoryStores{
		Users:        memory.NewUserRepo(),
		Orders:       memory.NewOrderRepo(),
		Transactions: memory.NewTransactionRepo(),
		Feedback:     memory.NewFeedbackRepo(),
		Stations:     memory.NewStationRepo(),
	}
}

// Seedable returns the Stores view of m.
func (m MemoryStores) Seedable() Stores {
	return Stores{Users: m.Users, Orders: m.Orders, Transactions: m.Transactions, Stations: m.Stations}
}

type userSeed struct {
	username   string
	role       domainauth.Role
	department string
	balance    float64
}

// Creation order fixes the ids: alice=1, bob=2, charlie=3, student=4, admin=5.
//
//nolint:gochecknoglobals // static fixture data
var userSeeds = []userSeed{
	{username: "alice", role: domainauth.RoleCustomer, department: "north", balance: 10},
	{username: "bob", role: domainauth.RoleCustomer, department: "south", balance: 50},
	{username: "charlie", role: domainauth.RoleSupport, department: "north"},
	{username: "student", role: domainauth.RoleUser},
	{username: "admin", role: domainauth.RoleAdmin},
}

type orderSeed struct {
	owner string
	item  string
	total float64
}

//nolint:gochecknoglobals // static fixture data
var orderSeeds = []orderSeed{
	{owner: "alice", item: "Laptop", total: 2000},
	{owner: "alice", item: "Mouse", total: 40},
	{owner: "bob", item: "Monitor", total: 300},
	{owner: "bob", item: "Keyboard", total: 60},
}

//nolint:gochecknoglobals // static fixture data
var stationSeeds = []model.Station{
	{Name: "Downtown Hub", Location: "Main St", Status: model.StationAvailable},
	{Name: "Campus North", Location: "GMU North Gate", Status: model.StationCharging},
	{Name: "Mall Center", Location: "City Mall", Status: model.StationAvailable},
}

// Run seeds every store. It is a no-op when the first seeded user already exists.
func Run(ctx context.Context, stores Stores, hasher ports.PasswordHasher, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if stores.Users == nil || hasher == nil {
		return errors.New("devseed: user store and hasher are required")
	}

	_, err := stores.Users.GetByUsername(ctx, userSeeds[0].username)
	switch {
	case err == nil:
		logger.InfoContext(ctx, "seed data already present; skipping")
		return nil
	case !apperrors.IsNotFound(err):
		return fmt.Errorf("check existing seed: %w", err)
	}

	hash, err := hasher.Hash(DefaultPassword)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}

	users, err := seedUsers(ctx, stores.Users, hash)
	if err != nil {
		return err
	}
	if err := seedOrders(ctx, stores.Orders, users); err != nil {
		return err
	}
	if err := seedTransactions(ctx, stores.Transactions, users["alice"]); err != nil {
		return err
	}
	if err := seedStations(ctx, stores.Stations); err != nil {
		return err
	}

	logger.InfoContext(ctx, "seed data loaded",
		"users", len(userSeeds),
		"orders", len(orderSeeds),
		"stations", len(stationSeeds),
	)
	return nil
}

func seedUsers(ctx context.Context, repo core.UserRepository, hash string) (map[string]*model.User, error) {
	out := make(map[string]*model.User, len(userSeeds))
	for _, s := range userSeeds {
		u, err := repo.Create(ctx, &model.CreateUserRequest{
			Username:     s.username,
			PasswordHash: hash,
			Role:         s.role,
			Department:   s.department,
			Email:        s.username + "@example.com",
			Balance:      s.balance,
		})
		if err != nil {
			return nil, fmt.Errorf("seed user %s: %w", s.username, err)
		}
		out[s.username] = u
	}
	return out, nil
}

func seedOrders(ctx context.Context, repo OrderCreator, users map[string]*model.User) error {
	if repo == nil {
		return nil
	}
	for _, s := range orderSeeds {
		owner := users[s.owner]
		if _, err := repo.Create(ctx, model.Order{
			UserID: owner.ID,
			Item:   s.item,
			Region: owner.Department,
			Total:  s.total,
		}); err != nil {
			return fmt.Errorf("seed order %s: %w", s.item, err)
		}
	}
	return nil
}

func seedTransactions(ctx context.Context, repo TransactionCreator, alice *model.User) error {
	if repo == nil {
		return nil
	}
	for _, tx := range []model.Transaction{
		{UserID: alice.ID, Amount: 25.50, Description: "Coffee shop"},
		{UserID: alice.ID, Amount: 100, Description: "Groceries"},
	} {
		if err := repo.Create(ctx, tx); err != nil {
			return fmt.Errorf("seed transaction %s: %w", tx.Description, err)
		}
	}
	return nil
}

func seedStations(ctx context.Context, repo StationCreator) error {
	if repo == nil {
		return nil
	}
	for _, s := range stationSeeds {
		if err := repo.Create(ctx, s); err != nil {
			return fmt.Errorf("seed station %s: %w", s.Name, err)
		}
	}
	return nil
}
