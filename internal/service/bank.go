package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/target/seclab-api/internal/core"
	"github.com/target/seclab-api/internal/domain/access"
	domainauth "github.com/target/seclab-api/internal/domain/auth"
	"github.com/target/seclab-api/internal/domain/model"
	apperrors "github.com/target/seclab-api/internal/errors"
)

const (
	maxSearchLen         = 100
	defaultFeedbackLimit = 50
	// MaxFeedbackLimit caps a single feedback listing.
	MaxFeedbackLimit = 200
)

// TransactionService lists a principal's own bank transactions.
type TransactionService struct {
	repo core.TransactionRepository
}

// NewTransactionService constructs a new TransactionService.
func NewTransactionService(repo core.TransactionRepository) *TransactionService {
	if repo == nil {
		panic("TransactionRepository is required")
	}
	return &TransactionService{repo: repo}
}

// List returns p's transactions whose description contains q, newest first.
func (s *TransactionService) List(ctx context.Context, p *domainauth.Principal, q string) ([]*model.Transaction, error) {
	scope := access.Scope(p)
	if scope.OwnerID == 0 {
		return nil, apperrors.Unauthenticated("authentication required")
	}
	q = strings.TrimSpace(q)
	if utf8.RuneCountInString(q) > maxSearchLen {
		return nil, apperrors.ValidationField("q", "search term is too long")
	}

	txs, err := s.repo.ListByOwner(ctx, model.TransactionListOptions{UserID: scope.OwnerID, Q: q})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	out := txs[:0]
	for _, tx := range txs {
		if access.Decide(p, tx.Resource()) == access.Allow {
			out = append(out, tx)
		}
	}
	return out, nil
}

// FeedbackService stores and lists public comments.
type FeedbackService struct {
	repo core.FeedbackRepository
}

// NewFeedbackService constructs a new FeedbackService.
func NewFeedbackService(repo core.FeedbackRepository) *FeedbackService {
	if repo == nil {
		panic("FeedbackRepository is required")
	}
	return &FeedbackService{repo: repo}
}

// Submit stores the comment HTML-escaped under p's username.
func (s *FeedbackService) Submit(ctx context.Context, p *domainauth.Principal, req model.FeedbackRequest) (*model.Feedback, error) {
	if p == nil {
		return nil, apperrors.Unauthenticated("authentication required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.ValidationField("comment", err.Error())
	}
	fb, err := s.repo.Create(ctx, p.Username, html.EscapeString(req.Comment))
	if err != nil {
		return nil, fmt.Errorf("create feedback: %w", err)
	}
	return fb, nil
}

// List returns up to limit of the most recent comments. A non-positive limit uses the default.
func (s *FeedbackService) List(ctx context.Context, limit int) ([]*model.Feedback, error) {
	if limit <= 0 {
		limit = defaultFeedbackLimit
	}
	limit = min(limit, MaxFeedbackLimit)
	items, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	return items, nil
}
