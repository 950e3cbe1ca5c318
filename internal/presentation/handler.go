package presentation

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/greenbasket/checkout-service/internal/application"
	"github.com/greenbasket/checkout-service/internal/domain"
	"github.com/greenbasket/checkout-service/internal/events"
	"github.com/greenbasket/checkout-service/internal/logger"
	"github.com/greenbasket/checkout-service/internal/presentation/helpers"
)

type Handler struct {
	cart     *application.CartService
	checkout *application.CheckoutService
	bus      *events.Bus
}

func NewHandler(cart *application.CartService, checkout *application.CheckoutService, bus *events.Bus) *Handler {
	return &Handler{cart: cart, checkout: checkout, bus: bus}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(Identity)

		r.Route("/cart", func(r chi.Router) {
			r.Use(RequireRole(domain.RoleBuyer))
			r.Get("/", h.GetCart)
			r.Get("/count", h.CartCount)
			r.Post("/add", h.AddToCart)
			r.Put("/update", h.UpdateCart)
			r.Delete("/remove/{productID}", h.RemoveFromCart)
			r.Delete("/clear", h.ClearCart)
			r.Post("/validate", h.ValidateCart)
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(RequireRole(domain.RoleBuyer)).Post("/", h.PlaceOrder)
			r.Get("/", h.ListOrders)
			r.Get("/stats/summary", h.OrderStats)
			r.Get("/{orderID}", h.GetOrder)
			r.Put("/{orderID}/status", h.UpdateOrderStatus)
			r.With(RequireRole(domain.RoleBuyer)).Post("/{orderID}/cancel", h.CancelOrder)
		})
	})

	// The stream stays out of the timeout group: it is held open until the
	// client disconnects.
	r.Group(func(r chi.Router) {
		r.Use(Identity)
		r.Get("/orders/{orderID}/stream", h.StreamOrder)
	})
}

// writeError maps the domain error taxonomy to HTTP statuses in one place.
// Unexpected errors degrade to a generic 500 without leaking internals.
func writeError(w http.ResponseWriter, err error) {
	var rejected *application.CheckoutRejectedError
	if errors.As(err, &rejected) {
		helpers.HttpErrorWithData(w, http.StatusConflict,
			"some items in cart are not available",
			map[string]any{"validationResults": rejected.Report})
		return
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		helpers.HttpError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrEmptyCart):
		helpers.HttpError(w, http.StatusBadRequest, "cart is empty")
	case errors.Is(err, domain.ErrNotFound):
		helpers.HttpError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		helpers.HttpError(w, http.StatusForbidden, "access denied")
	case errors.Is(err, domain.ErrInvalidState):
		helpers.HttpError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrStockConflict):
		helpers.HttpError(w, http.StatusConflict, err.Error())
	default:
		logger.Error("request failed", "err", err)
		helpers.HttpError(w, http.StatusInternalServerError, "internal error")
	}
}

// -------- Cart --------

type cartItemInput struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (in cartItemInput) productID() (uuid.UUID, error) {
	id, err := uuid.Parse(in.ProductID)
	if err != nil {
		return uuid.Nil, domain.ErrValidation
	}
	return id, nil
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.cart.GetCart(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) CartCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.cart.Count(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var in cartItemInput
	if err := helpers.DecodeJSON(r.Body, &in); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	productID, err := in.productID()
	if err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	view, err := h.cart.AddItem(r.Context(), userFrom(r), productID, in.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) UpdateCart(w http.ResponseWriter, r *http.Request) {
	var in cartItemInput
	if err := helpers.DecodeJSON(r.Body, &in); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	productID, err := in.productID()
	if err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	view, err := h.cart.UpdateQuantity(r.Context(), userFrom(r), productID, in.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	view, err := h.cart.RemoveItem(r.Context(), userFrom(r), productID)
	if err != nil {
		writeError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.cart.Clear(r.Context(), userFrom(r)); err != nil {
		writeError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"message": "cart cleared"})
}

func (h *Handler) ValidateCart(w http.ResponseWriter, r *http.Request) {
	report, valid, err := h.cart.Validate(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{
		"isValid":           valid,
		"validationResults": report,
	})
}

// -------- Orders --------

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var in application.CheckoutInput
	if err := helpers.DecodeJSON(r.Body, &in); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	order, err := h.checkout.Checkout(r.Context(), userFrom(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, map[string]any{"order": order})
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	params := application.ListParams{}
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			params.Page = n
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			params.Limit = n
		}
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status, err := domain.ParseOrderStatus(v)
		if err != nil {
			writeError(w, err)
			return
		}
		params.Status = status
	}

	orders, pagination, err := h.checkout.ListOrders(r.Context(), userFrom(r), roleFrom(r), params)
	if err != nil {
		writeError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{
		"orders":     orders,
		"pagination": pagination,
	})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		helpers.HttpError(w, http.StatusNotFound, "order not found")
		return
	}

	order, err := h.checkout.GetOrder(r.Context(), orderID, userFrom(r), roleFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (h *Handler) OrderStats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.checkout.Stats(r.Context(), userFrom(r), roleFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{"summary": summary})
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		helpers.HttpError(w, http.StatusNotFound, "order not found")
		return
	}

	var in struct {
		Status string `json:"status"`
	}
	if err := helpers.DecodeJSON(r.Body, &in); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	status, err := domain.ParseOrderStatus(in.Status)
	if err != nil {
		writeError(w, err)
		return
	}

	order, err := h.checkout.UpdateOrderStatus(r.Context(), orderID, userFrom(r), roleFrom(r), status)
	if err != nil {
		writeError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		helpers.HttpError(w, http.StatusNotFound, "order not found")
		return
	}

	if err := h.checkout.CancelOrder(r.Context(), orderID, userFrom(r)); err != nil {
		writeError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"message": "order cancelled successfully"})
}
