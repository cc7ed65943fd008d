package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/target/seclab-api/internal/data/pgxutil"
	"github.com/target/seclab-api/internal/domain/model"
	apperrors "github.com/target/seclab-api/internal/errors"
)

const orderColumns = `id, user_id, item, region, total`

// OrderRepo provides database operations for orders.
type OrderRepo struct {
	DB *sql.DB
}

// NewOrderRepo creates a new OrderRepo.
func NewOrderRepo(db *sql.DB) *OrderRepo {
	return &OrderRepo{DB: db}
}

// GetByID retrieves an order by ID.
func (r *OrderRepo) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	o, err := pgxutil.QueryOne[model.Order](ctx, r.DB, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	if err != nil {
		mapped := apperrors.MapDBError(err)
		if apperrors.IsNotFound(mapped) {
			return nil, apperrors.NotFound("order not found")
		}
		return nil, fmt.Errorf("get order: %w", mapped)
	}
	return o, nil
}

// ListByOwner returns orders placed by ownerID.
func (r *OrderRepo) ListByOwner(ctx context.Context, ownerID int64) ([]*model.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY id`, ownerID)
}

// ListByRegion returns orders tagged with region. An empty region matches nothing.
func (r *OrderRepo) ListByRegion(ctx context.Context, region string) ([]*model.Order, error) {
	if region == "" {
		return []*model.Order{}, nil
	}
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE region = $1 ORDER BY id`, region)
}

// Create inserts an order; used by seeding.
func (r *OrderRepo) Create(ctx context.Context, o model.Order) (*model.Order, error) {
	out, err := pgxutil.QueryOne[model.Order](ctx, r.DB, `
		INSERT INTO orders (user_id, item, region, total) VALUES ($1, $2, $3, $4)
		RETURNING `+orderColumns, o.UserID, o.Item, o.Region, o.Total)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

func (r *OrderRepo) list(ctx context.Context, query string, arg any) ([]*model.Order, error) {
	orders, err := pgxutil.QueryAll[model.Order](ctx, r.DB, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", apperrors.MapDBError(err))
	}
	return orders, nil
}
