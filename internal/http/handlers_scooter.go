package httpx

import (
	"net/http"

	"github.com/target/seclab-api/internal/domain/model"
	"github.com/target/seclab-api/internal/service"
)

// AccountHandlers serves registration, the caller's account and the admin user list.
type AccountHandlers struct {
	Svc *service.AccountService
}

// Register creates an account with the default role.
// POST /api/register.
func (h *AccountHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if !DecodeBody(w, r, &req) {
		return
	}
	user, err := h.Svc.Register(r.Context(), req)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{"success": true, "id": user.ID})
}

// Account returns the caller's own account.
// GET /api/account.
func (h *AccountHandlers) Account(w http.ResponseWriter, r *http.Request) {
	user, err := h.Svc.Me(r.Context(), PrincipalFromContext(r.Context()))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

// ListUsers returns every account.
// GET /api/admin/users (admin only).
func (h *AccountHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Svc.ListUsers(r.Context(), PrincipalFromContext(r.Context()))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, users)
}

// StationHandlers serves the public station search.
type StationHandlers struct {
	Svc *service.StationService
}

// Search matches ?q= against station names and locations.
// GET /api/stations.
func (h *StationHandlers) Search(w http.ResponseWriter, r *http.Request) {
	stations, err := h.Svc.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, stations)
}

// RegexSearch matches ?pattern= against station names.
// GET /api/stations/regex-search.
func (h *StationHandlers) RegexSearch(w http.ResponseWriter, r *http.Request) {
	stations, err := h.Svc.RegexSearch(r.Context(), r.URL.Query().Get("pattern"))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, stations)
}
