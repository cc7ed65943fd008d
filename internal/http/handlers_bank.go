package httpx

import (
	"net/http"
	"strconv"

	"github.com/target/seclab-api/internal/domain/model"
	"github.com/target/seclab-api/internal/service"
)

const defaultFeedbackPage = 50

// BankHandlers serves the banking endpoints: transactions, feedback and email changes.
type BankHandlers struct {
	Transactions *service.TransactionService
	Feedback     *service.FeedbackService
	Accounts     *service.AccountService
}

// ListTransactions lists the caller's transactions filtered by ?q=.
// GET /api/transactions.
func (h *BankHandlers) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.Transactions.List(r.Context(), PrincipalFromContext(r.Context()), r.URL.Query().Get("q"))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, txs)
}

// SubmitFeedback stores an escaped comment.
// POST /api/feedback.
func (h *BankHandlers) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req model.FeedbackRequest
	if !DecodeBody(w, r, &req) {
		return
	}
	fb, err := h.Feedback.Submit(r.Context(), PrincipalFromContext(r.Context()), req)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "id": fb.ID})
}

// ListFeedback returns recent comments, newest first.
// GET /api/feedback?limit=N.
func (h *BankHandlers) ListFeedback(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, defaultFeedbackPage, service.MaxFeedbackLimit)
	items, err := h.Feedback.List(r.Context(), limit)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

// ChangeEmail updates the caller's own email.
// POST /api/change-email and POST /api/account/email.
func (h *BankHandlers) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	var req model.ChangeEmailRequest
	if !DecodeBody(w, r, &req) {
		return
	}
	email, err := h.Accounts.ChangeEmail(r.Context(), PrincipalFromContext(r.Context()), req)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "email": email})
}

// parseLimit reads ?limit= and clamps it to [1, maxLimit]; unparsable values fall back to def.
func parseLimit(r *http.Request, def, maxLimit int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		n = def
	}
	return min(max(n, 1), max(maxLimit, 1))
}
