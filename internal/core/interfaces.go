package core

import (
	"context"

	"github.com/target/seclab-api/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.
//
// Lookups by id return an error satisfying errors.IsNotFound when the row is absent.

// UserRepository defines the interface for user account operations.
type UserRepository interface {
	Create(ctx context.Context, req *model.CreateUserRequest) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateEmail(ctx context.Context, id int64, email string) error
	List(ctx context.Context) ([]*model.User, error)
}

// OrderRepository defines the interface for order lookups.
type OrderRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Order, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*model.Order, error)
	ListByRegion(ctx context.Context, region string) ([]*model.Order, error)
}

// TransactionRepository defines the interface for bank transaction lookups.
type TransactionRepository interface {
	ListByOwner(ctx context.Context, opts model.TransactionListOptions) ([]*model.Transaction, error)
}

// FeedbackRepository defines the interface for stored comments.
type FeedbackRepository interface {
	Create(ctx context.Context, username, comment string) (*model.Feedback, error)
	List(ctx context.Context, limit int) ([]*model.Feedback, error)
}

// StationRepository defines the interface for charging station lookups.
type StationRepository interface {
	// Search matches q as a substring of name or location; an empty q lists everything.
	Search(ctx context.Context, q string) ([]*model.Station, error)
}
