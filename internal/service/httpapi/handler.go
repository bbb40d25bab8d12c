package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
	"github.com/vladislavdragonenkov/foodorder/internal/service/saga"
)

const maxRequestBody = 1 << 20

// OrderService — операции саги, доступные клиентам.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd saga.CreateOrderCommand) (saga.CreateOrderResult, error)
	TrackOrder(ctx context.Context, trackingID domain.TrackingID) (saga.TrackOrderResult, error)
}

// Handler обслуживает REST API заказов.
type Handler struct {
	orders OrderService
	logger *log.Entry
	mux    *http.ServeMux
}

// NewHandler регистрирует маршруты API заказов.
func NewHandler(orders OrderService, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	h := &Handler{orders: orders, logger: logger, mux: http.NewServeMux()}
	h.mux.HandleFunc("POST /api/v1/orders", h.createOrder)
	h.mux.HandleFunc("GET /api/v1/orders/{trackingID}", h.trackOrder)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var cmd saga.CreateOrderCommand
	if err := decodeJSON(r, &cmd); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}

	result, err := h.orders.CreateOrder(r.Context(), cmd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.WithFields(log.Fields{
		"order_id":    result.OrderID.String(),
		"tracking_id": result.TrackingID.String(),
	}).Info("order accepted")
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) trackOrder(w http.ResponseWriter, r *http.Request) {
	trackingID, err := domain.ParseTrackingID(r.PathValue("trackingID"))
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}

	result, err := h.orders.TrackOrder(r.Context(), trackingID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
