package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/target/seclab-api/internal/data/pgxutil"
	"github.com/target/seclab-api/internal/domain/model"
	apperrors "github.com/target/seclab-api/internal/errors"
)

const userColumns = `id, username, password_hash, role, department, email, balance, created_at`

// UserRepo provides database operations for users.
type UserRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewUserRepo creates a new UserRepo with real time provider.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db, timeProvider: systemTime{}}
}

// NewUserRepoWithTimeProvider creates a new UserRepo with a custom time provider (useful for tests).
func NewUserRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *UserRepo {
	return &UserRepo{DB: db, timeProvider: tp}
}

// Create inserts a new user. A duplicate username or email yields a Conflict
// on field "username" or "email".
func (r *UserRepo) Create(ctx context.Context, req *model.CreateUserRequest) (*model.User, error) {
	if req == nil {
		return nil, errors.New("create user request is required")
	}

	u, err := pgxutil.QueryOne[model.User](ctx, r.DB, `
		INSERT INTO users (username, password_hash, role, department, email, balance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+userColumns,
		strings.TrimSpace(req.Username),
		req.PasswordHash,
		string(req.Role),
		req.Department,
		req.Email,
		req.Balance,
		r.timeProvider.Now().UTC(),
	)
	if err != nil {
		mapped := apperrors.MapDBError(err)
		if apperrors.IsConflict(mapped) {
			return nil, userConflict(mapped, err)
		}
		return nil, fmt.Errorf("create user: %w", mapped)
	}
	return u, nil
}

// userConflict names the field of a users unique violation. Both unique
// indexes are on lower(...) expressions, so the field comes from the
// constraint name rather than a column.
func userConflict(mapped, cause error) *apperrors.AppError {
	if apperrors.GetField(mapped) == "email" {
		return &apperrors.AppError{Code: apperrors.ErrCodeConflict, Message: "email already in use", Field: "email", Cause: cause}
	}
	return &apperrors.AppError{Code: apperrors.ErrCodeConflict, Message: "username already exists", Field: "username", Cause: cause}
}

// GetByID retrieves a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByUsername retrieves a user by case-insensitive username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)`, username)
}

// GetByEmail retrieves the user holding email. Emails are unique, the ORDER BY
// only pins the result for rows written before users_email_key existed.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	if email == "" {
		return nil, apperrors.NotFound("user not found")
	}
	return r.getOne(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE email <> '' AND lower(email) = lower($1)
		ORDER BY id
		LIMIT 1`, email)
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg any) (*model.User, error) {
	u, err := pgxutil.QueryOne[model.User](ctx, r.DB, query, arg)
	if err != nil {
		mapped := apperrors.MapDBError(err)
		if apperrors.IsNotFound(mapped) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, fmt.Errorf("get user: %w", mapped)
	}
	return u, nil
}

// UpdateEmail sets the email of user id. An email held by another user is a Conflict.
func (r *UserRepo) UpdateEmail(ctx context.Context, id int64, email string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET email = $1 WHERE id = $2`, email, id)
	if err != nil {
		mapped := apperrors.MapDBError(err)
		if apperrors.IsConflict(mapped) {
			return userConflict(mapped, err)
		}
		return fmt.Errorf("update email: %w", mapped)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update email rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("user not found")
	}
	return nil
}

// List returns every user ordered by id.
func (r *UserRepo) List(ctx context.Context) ([]*model.User, error) {
	users, err := pgxutil.QueryAll[model.User](ctx, r.DB, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", apperrors.MapDBError(err))
	}
	return users, nil
}
