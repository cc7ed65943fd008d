package data

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/target/seclab-api/internal/data/pgxutil"
	"github.com/target/seclab-api/internal/domain/model"
	apperrors "github.com/target/seclab-api/internal/errors"
)

const defaultListLimit = 100

// likeEscaper escapes LIKE metacharacters so user input only ever matches literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a parameter value for `ILIKE $n ESCAPE '\'`.
func containsPattern(q string) string {
	return "%" + likeEscaper.Replace(q) + "%"
}

// TransactionRepo provides database operations for bank transactions.
type TransactionRepo struct {
	DB *sql.DB
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(db *sql.DB) *TransactionRepo {
	return &TransactionRepo{DB: db}
}

// ListByOwner returns the user's transactions newest first, optionally filtered by description.
func (r *TransactionRepo) ListByOwner(ctx context.Context, opts model.TransactionListOptions) ([]*model.Transaction, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	txs, err := pgxutil.QueryAll[model.Transaction](ctx, r.DB, `
		SELECT id, user_id, amount, description
		FROM transactions
		WHERE user_id = $1
		  AND description ILIKE $2 ESCAPE '\'
		ORDER BY id DESC
		LIMIT $3`,
		opts.UserID, containsPattern(opts.Q), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", apperrors.MapDBError(err))
	}
	return txs, nil
}

// Create inserts a transaction; used by seeding.
func (r *TransactionRepo) Create(ctx context.Context, tx model.Transaction) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO transactions (user_id, amount, description) VALUES ($1, $2, $3)`,
		tx.UserID, tx.Amount, tx.Description,
	)
	if err != nil {
		return fmt.Errorf("create transaction: %w", apperrors.MapDBError(err))
	}
	return nil
}

// FeedbackRepo provides database operations for feedback comments.
type FeedbackRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewFeedbackRepo creates a new FeedbackRepo with real time provider.
func NewFeedbackRepo(db *sql.DB) *FeedbackRepo {
	return &FeedbackRepo{DB: db, timeProvider: systemTime{}}
}

// Create stores a comment. The comment must already be escaped for HTML.
func (r *FeedbackRepo) Create(ctx context.Context, username, comment string) (*model.Feedback, error) {
	fb, err := pgxutil.QueryOne[model.Feedback](ctx, r.DB, `
		INSERT INTO feedback (username, comment, created_at) VALUES ($1, $2, $3)
		RETURNING id, username, comment, created_at`,
		username, comment, r.timeProvider.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("create feedback: %w", apperrors.MapDBError(err))
	}
	return fb, nil
}

// List returns up to limit comments newest first.
func (r *FeedbackRepo) List(ctx context.Context, limit int) ([]*model.Feedback, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	items, err := pgxutil.QueryAll[model.Feedback](ctx, r.DB, `
		SELECT id, username, comment, created_at
		FROM feedback
		ORDER BY id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", apperrors.MapDBError(err))
	}
	return items, nil
}
