package service

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/target/seclab-api/internal/core"
	"github.com/target/seclab-api/internal/domain/access"
	domainauth "github.com/target/seclab-api/internal/domain/auth"
	"github.com/target/seclab-api/internal/domain/model"
	apperrors "github.com/target/seclab-api/internal/errors"
	"github.com/target/seclab-api/internal/observability/metrics"
	"github.com/target/seclab-api/internal/observability/statsd"
)

// OrderServiceOptions groups dependencies for OrderService.
type OrderServiceOptions struct {
	Repo    core.OrderRepository // Required
	Logger  *slog.Logger         // Optional
	Metrics statsd.Sink          // Optional
}

// OrderService serves orders through the access decision engine.
type OrderService struct {
	repo    core.OrderRepository
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewOrderService constructs a new OrderService.
func NewOrderService(opts OrderServiceOptions) *OrderService {
	if opts.Repo == nil {
		panic("OrderRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderService{repo: opts.Repo, logger: logger.With("component", "order_service"), metrics: opts.Metrics}
}

// Get returns order id if p may see it. Absent and denied orders both yield NotFound.
func (s *OrderService) Get(ctx context.Context, p *domainauth.Principal, id int64) (*model.Order, error) {
	res := access.Resource{Kind: access.KindOrder, ID: id}
	found := false

	order, err := s.repo.GetByID(ctx, id)
	switch {
	case err == nil:
		res = order.Resource()
		found = true
	case !apperrors.IsNotFound(err):
		return nil, fmt.Errorf("get order: %w", err)
	}

	decision := access.Deny
	if found {
		decision = access.Decide(p, res)
	}
	metrics.EmitDecision(s.metrics, metrics.DecisionMetric{Kind: string(access.KindOrder), Decision: decision.String()})

	if authErr := access.Authorize(p, res, found); authErr != nil {
		if found {
			s.logger.DebugContext(ctx, "order access denied", "order_id", id, "principal_id", principalID(p))
		}
		return nil, authErr
	}
	return order, nil
}

// List returns the orders within p's scope ordered by id.
func (s *OrderService) List(ctx context.Context, p *domainauth.Principal) ([]*model.Order, error) {
	scope := access.Scope(p)
	if scope.Empty() {
		return []*model.Order{}, nil
	}

	owned, err := s.repo.ListByOwner(ctx, scope.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("list owned orders: %w", err)
	}
	all := owned
	if scope.Region != "" {
		regional, regionErr := s.repo.ListByRegion(ctx, scope.Region)
		if regionErr != nil {
			return nil, fmt.Errorf("list regional orders: %w", regionErr)
		}
		all = append(all, regional...)
	}

	seen := make(map[int64]struct{}, len(all))
	out := make([]*model.Order, 0, len(all))
	for _, o := range all {
		if _, dup := seen[o.ID]; dup {
			continue
		}
		seen[o.ID] = struct{}{}
		if access.Decide(p, o.Resource()) == access.Allow {
			out = append(out, o)
		}
	}
	slices.SortFunc(out, func(a, b *model.Order) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func principalID(p *domainauth.Principal) int64 {
	if p == nil {
		return 0
	}
	return p.ID
}
