package presentation

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/greenbasket/checkout-service/internal/domain"
	"github.com/greenbasket/checkout-service/internal/presentation/helpers"
)

// heartbeatInterval keeps idle streams from being reaped by proxies.
const heartbeatInterval = 25 * time.Second

// StreamOrder holds the connection open and pushes newline-delimited JSON
// status events for one order. The current status is sent first, then every
// bus event matching the order id. The subscription is torn down when the
// client disconnects.
func (h *Handler) StreamOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		helpers.HttpError(w, http.StatusNotFound, "order not found")
		return
	}

	// Same authorization as the detail endpoint: buyer, seller-on-order
	// or admin.
	order, err := h.checkout.GetOrder(r.Context(), orderID, userFrom(r), roleFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		helpers.HttpError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	// Subscribe before sending the snapshot so updates racing with the
	// snapshot are not lost.
	sub := h.bus.Subscribe(orderID)
	defer sub.Close()

	enc := json.NewEncoder(w)
	ps := order.PaymentStatus
	if err := enc.Encode(domain.OrderEvent{OrderID: order.ID, Status: order.Status, PaymentStatus: &ps}); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, open := <-sub.Events():
			if !open {
				return
			}
			if err := enc.Encode(evt); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := w.Write([]byte("\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
