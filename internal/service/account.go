package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/seclab-api/internal/core"
	domainauth "github.com/target/seclab-api/internal/domain/auth"
	"github.com/target/seclab-api/internal/domain/model"
	apperrors "github.com/target/seclab-api/internal/errors"
	"github.com/target/seclab-api/internal/ports"
)

// AccountServiceOptions groups dependencies for AccountService.
type AccountServiceOptions struct {
	Users  core.UserRepository  // Required
	Hasher ports.PasswordHasher // Required
	Logger *slog.Logger         // Optional
}

// AccountService covers self-service account operations and the admin user listing.
type AccountService struct {
	users  core.UserRepository
	hasher ports.PasswordHasher
	logger *slog.Logger
}

// NewAccountService constructs a new AccountService.
func NewAccountService(opts AccountServiceOptions) (*AccountService, error) {
	if opts.Users == nil {
		return nil, errors.New("UserRepository is required")
	}
	if opts.Hasher == nil {
		return nil, errors.New("PasswordHasher is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{users: opts.Users, hasher: opts.Hasher, logger: logger.With("component", "account_service")}, nil
}

// Register creates a user with the default role. A duplicate username or
// email is a Conflict naming the field.
func (s *AccountService) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, &model.CreateUserRequest{
		Username:     req.Username,
		PasswordHash: hash,
		Role:         domainauth.RoleUser,
		Email:        req.Email,
	})
	if err != nil {
		if apperrors.IsConflict(err) {
			return nil, fieldConflict(err)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// Me returns the account behind p. A principal whose user is gone is Unauthenticated.
func (s *AccountService) Me(ctx context.Context, p *domainauth.Principal) (*model.User, error) {
	if p == nil {
		return nil, apperrors.Unauthenticated("authentication required")
	}
	user, err := s.users.GetByID(ctx, p.ID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.Unauthenticated("account no longer exists")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// ChangeEmail updates p's own email and returns the normalized value.
// An email already held by another account is a Conflict.
func (s *AccountService) ChangeEmail(ctx context.Context, p *domainauth.Principal, req model.ChangeEmailRequest) (string, error) {
	if p == nil {
		return "", apperrors.Unauthenticated("authentication required")
	}
	if err := req.Validate(); err != nil {
		return "", apperrors.ValidationField("email", err.Error())
	}
	if err := s.users.UpdateEmail(ctx, p.ID, req.Email); err != nil {
		if apperrors.IsNotFound(err) {
			return "", apperrors.Unauthenticated("account no longer exists")
		}
		if apperrors.IsConflict(err) {
			return "", fieldConflict(err)
		}
		return "", fmt.Errorf("update email: %w", err)
	}
	return req.Email, nil
}

func fieldConflict(err error) *apperrors.AppError {
	if apperrors.GetField(err) == "email" {
		e := apperrors.Conflict("email already in use")
		e.Field = "email"
		return e
	}
	e := apperrors.Conflict("username already exists")
	e.Field = "username"
	return e
}

// ListUsers returns every account. Only admins may call it.
func (s *AccountService) ListUsers(ctx context.Context, p *domainauth.Principal) ([]*model.User, error) {
	if p == nil {
		return nil, apperrors.Unauthenticated("authentication required")
	}
	if p.Role != domainauth.RoleAdmin {
		return nil, apperrors.Forbidden("admin role required")
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}
