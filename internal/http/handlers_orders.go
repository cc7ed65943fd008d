package httpx

import (
	"net/http"
	"strconv"

	apperrors "github.com/target/seclab-api/internal/errors"
	"github.com/target/seclab-api/internal/service"
)

// OrderHandlers serves the order endpoints. Every lookup goes through the
// access engine, so other users' orders are indistinguishable from missing ones.
type OrderHandlers struct {
	Svc *service.OrderService
}

// Get returns one order.
// GET /api/orders/{id}.
func (h *OrderHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		WriteAppError(w, r, apperrors.ValidationField("id", "invalid order id"))
		return
	}

	order, err := h.Svc.Get(r.Context(), PrincipalFromContext(r.Context()), id)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, order)
}

// List returns the orders visible to the caller.
// GET /api/orders.
func (h *OrderHandlers) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Svc.List(r.Context(), PrincipalFromContext(r.Context()))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, orders)
}

// whoamiHandler echoes the resolved principal.
// GET /api/whoami.
func whoamiHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"currentUser": PrincipalFromContext(r.Context())})
}
