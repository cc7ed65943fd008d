package memory

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/target/seclab-api/internal/core"
	"github.com/target/seclab-api/internal/domain/model"
	apperrors "github.com/target/seclab-api/internal/errors"
)

var (
	_ core.UserRepository        = (*UserRepo)(nil)
	_ core.OrderRepository       = (*OrderRepo)(nil)
	_ core.TransactionRepository = (*TransactionRepo)(nil)
	_ core.FeedbackRepository    = (*FeedbackRepo)(nil)
	_ core.StationRepository     = (*StationRepo)(nil)
)

// UserRepo is an in-memory core.UserRepository.
type UserRepo struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]model.User
	now    func() time.Time
}

// NewUserRepo creates an empty user repository.
func NewUserRepo() *UserRepo {
	return &UserRepo{nextID: 1, users: make(map[int64]model.User), now: time.Now}
}

func (r *UserRepo) Create(_ context.Context, req *model.CreateUserRequest) (*model.User, error) {
	if req == nil {
		return nil, errors.New("create user request is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Username, req.Username) {
			return nil, &apperrors.AppError{Code: apperrors.ErrCodeConflict, Message: "value already exists", Field: "username"}
		}
	}
	if r.emailTakenLocked(req.Email, 0) {
		return nil, &apperrors.AppError{Code: apperrors.ErrCodeConflict, Message: "value already exists", Field: "email"}
	}

	u := model.User{
		ID:           r.nextID,
		Username:     req.Username,
		PasswordHash: req.PasswordHash,
		Role:         req.Role,
		Department:   req.Department,
		Email:        req.Email,
		Balance:      req.Balance,
		CreatedAt:    r.now().UTC(),
	}
	r.users[u.ID] = u
	r.nextID++
	return &u, nil
}

func (r *UserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.NotFound("user not found")
	}
	return &u, nil
}

func (r *UserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return r.find(func(u model.User) bool { return strings.EqualFold(u.Username, username) })
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if email == "" {
		return nil, apperrors.NotFound("user not found")
	}
	return r.find(func(u model.User) bool { return strings.EqualFold(u.Email, email) })
}

// find returns the lowest-id user satisfying match.
func (r *UserRepo) find(match func(model.User) bool) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *model.User
	for _, u := range r.users {
		if match(u) && (found == nil || u.ID < found.ID) {
			found = &u
		}
	}
	if found == nil {
		return nil, apperrors.NotFound("user not found")
	}
	return found, nil
}

// emailTakenLocked reports whether a user other than exceptID holds email.
// Empty emails never collide.
func (r *UserRepo) emailTakenLocked(email string, exceptID int64) bool {
	if email == "" {
		return false
	}
	for _, u := range r.users {
		if u.ID != exceptID && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (r *UserRepo) UpdateEmail(_ context.Context, id int64, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return apperrors.NotFound("user not found")
	}
	if r.emailTakenLocked(email, id) {
		return &apperrors.AppError{Code: apperrors.ErrCodeConflict, Message: "value already exists", Field: "email"}
	}
	u.Email = email
	r.users[id] = u
	return nil
}

func (r *UserRepo) List(_ context.Context) ([]*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, &u)
	}
	slices.SortFunc(out, func(a, b *model.User) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// OrderRepo is an in-memory core.OrderRepository.
type OrderRepo struct {
	mu     sync.RWMutex
	orders []model.Order
}

// NewOrderRepo creates an order repository holding orders.
func NewOrderRepo(orders ...model.Order) *OrderRepo {
	return &OrderRepo{orders: slices.Clone(orders)}
}

// Create appends an order, assigning the next id when o.ID is zero.
func (r *OrderRepo) Create(_ context.Context, o model.Order) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o.ID == 0 {
		o.ID = 1
		for _, existing := range r.orders {
			o.ID = max(o.ID, existing.ID+1)
		}
	}
	r.orders = append(r.orders, o)
	return &o, nil
}

func (r *OrderRepo) GetByID(_ context.Context, id int64) (*model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, o := range r.orders {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, apperrors.NotFound("order not found")
}

func (r *OrderRepo) ListByOwner(_ context.Context, ownerID int64) ([]*model.Order, error) {
	return r.filter(func(o model.Order) bool { return o.UserID == ownerID }), nil
}

func (r *OrderRepo) ListByRegion(_ context.Context, region string) ([]*model.Order, error) {
	if region == "" {
		return []*model.Order{}, nil
	}
	return r.filter(func(o model.Order) bool { return o.Region == region }), nil
}

func (r *OrderRepo) filter(keep func(model.Order) bool) []*model.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*model.Order{}
	for _, o := range r.orders {
		if keep(o) {
			out = append(out, &o)
		}
	}
	return out
}

// TransactionRepo is an in-memory core.TransactionRepository.
type TransactionRepo struct {
	mu  sync.RWMutex
	txs []model.Transaction
}

// NewTransactionRepo creates a transaction repository holding txs.
func NewTransactionRepo(txs ...model.Transaction) *TransactionRepo {
	return &TransactionRepo{txs: slices.Clone(txs)}
}

// Create appends a transaction, assigning the next id when tx.ID is zero.
func (r *TransactionRepo) Create(_ context.Context, tx model.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tx.ID == 0 {
		tx.ID = 1
		for _, existing := range r.txs {
			tx.ID = max(tx.ID, existing.ID+1)
		}
	}
	r.txs = append(r.txs, tx)
	return nil
}

// ListByOwner returns the newest-first transactions of opts.UserID whose description contains opts.Q.
func (r *TransactionRepo) ListByOwner(_ context.Context, opts model.TransactionListOptions) ([]*model.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q := strings.ToLower(opts.Q)
	out := []*model.Transaction{}
	for _, tx := range r.txs {
		if tx.UserID != opts.UserID {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(tx.Description), q) {
			continue
		}
		out = append(out, &tx)
	}
	slices.SortFunc(out, func(a, b *model.Transaction) int { return cmp.Compare(b.ID, a.ID) })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// FeedbackRepo is an in-memory core.FeedbackRepository.
type FeedbackRepo struct {
	mu     sync.RWMutex
	nextID int64
	items  []model.Feedback
	now    func() time.Time
}

// NewFeedbackRepo creates an empty feedback repository.
func NewFeedbackRepo() *FeedbackRepo {
	return &FeedbackRepo{nextID: 1, now: time.Now}
}

func (r *FeedbackRepo) Create(_ context.Context, username, comment string) (*model.Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fb := model.Feedback{ID: r.nextID, Username: username, Comment: comment, CreatedAt: r.now().UTC()}
	r.items = append(r.items, fb)
	r.nextID++
	return &fb, nil
}

// List returns up to limit entries, newest first.
func (r *FeedbackRepo) List(_ context.Context, limit int) ([]*model.Feedback, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*model.Feedback{}
	for i := len(r.items) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		fb := r.items[i]
		out = append(out, &fb)
	}
	return out, nil
}

// StationRepo is an in-memory core.StationRepository.
type StationRepo struct {
	mu       sync.RWMutex
	stations []model.Station
}

// NewStationRepo creates a station repository holding stations.
func NewStationRepo(stations ...model.Station) *StationRepo {
	return &StationRepo{stations: slices.Clone(stations)}
}

// Create appends a station, assigning the next id when s.ID is zero.
func (r *StationRepo) Create(_ context.Context, s model.Station) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == 0 {
		s.ID = 1
		for _, existing := range r.stations {
			s.ID = max(s.ID, existing.ID+1)
		}
	}
	if s.Status == "" {
		s.Status = model.StationAvailable
	}
	r.stations = append(r.stations, s)
	return nil
}

func (r *StationRepo) Search(_ context.Context, q string) ([]*model.Station, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q = strings.ToLower(q)
	out := []*model.Station{}
	for _, s := range r.stations {
		if q == "" || strings.Contains(strings.ToLower(s.Name), q) || strings.Contains(strings.ToLower(s.Location), q) {
			out = append(out, &s)
		}
	}
	return out, nil
}
