package reservation_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ms-reservation/internal/auth"
	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"
	"ms-reservation/internal/reservation"
	"ms-reservation/internal/sse"
	"ms-reservation/internal/utils"
)

const defaultQRSize = 256

type Handler struct {
	Service *reservation.Service
	// Events serves the live seat stream; the route is off when nil.
	Events *sse.SeatEventEmitter
	Logger *logger.Logger
}

func NewHandler(service *reservation.Service, events *sse.SeatEventEmitter, log *logger.Logger) *Handler {
	return &Handler{Service: service, Events: events, Logger: log}
}

// RegisterRoutes mounts the reservation endpoints. Every route except the
// health check requires a resolved session; /api/admin also requires admin.
func (h *Handler) RegisterRoutes(r chi.Router, resolver auth.SessionResolver) {
	r.Get("/healthz", h.Health)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(resolver, h.Logger))

		// legacy cancel endpoint kept for existing clients
		r.Post("/cancel_order", h.CancelOrderLegacy)

		r.Route("/api", func(r chi.Router) {
			r.Post("/reserve", h.Reserve)
			r.Get("/events/{eventId}/seats", h.GetSeats)
			if h.Events != nil {
				r.Get("/events/{eventId}/seats/stream", h.StreamSeats)
			}
			r.Get("/orders", h.ListOrders)
			r.Get("/orders/{orderId}", h.GetOrder)
			r.Get("/orders/{orderId}/qr", h.GetOrderQR)
			r.Post("/orders/{orderId}/cancel", h.CancelOrder)

			r.Route("/admin", func(r chi.Router) {
				r.Use(auth.RequireAdmin(h.Logger))
				r.Put("/orders/{orderId}/status", h.UpdateOrderStatus)
				r.Post("/events", h.CreateEvent)
				r.Get("/events/{eventId}/inventory", h.GetInventory)
			})
		})
	})
}

// LogRequests writes one LogAPI line per request.
func LogRequests(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.LogAPI(r.Method, r.URL.Path, ww.Status(), time.Since(start))
		})
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccess(w, http.StatusOK, "ok", nil)
}

func (h *Handler) Reserve(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.PrincipalFrom(r.Context())

	var req models.ReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("Invalid reserve body: %v", err))
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Service.Reserve(r.Context(), caller, req)
	if err != nil {
		h.writeServiceError(w, "Reservation failed", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Seats reserved", result)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := int64Param(r, "orderId")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid order id", err)
		return
	}
	h.cancel(w, r, orderID)
}

func (h *Handler) CancelOrderLegacy(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid order id", err)
		return
	}
	h.cancel(w, r, orderID)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request, orderID int64) {
	caller, _ := auth.PrincipalFrom(r.Context())

	result, err := h.Service.Cancel(r.Context(), caller, orderID)
	if err != nil {
		h.writeServiceError(w, "Cancel failed", err)
		return
	}
	msg := "Order cancelled"
	if !result.Changed {
		msg = "Order already cancelled or unknown"
	}
	utils.WriteSuccess(w, http.StatusOK, msg, result)
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := int64Param(r, "orderId")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid order id", err)
		return
	}

	var req models.StatusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Service.UpdateOrderStatus(r.Context(), orderID, req.Status)
	if err != nil {
		h.writeServiceError(w, "Status update failed", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Order status updated", result)
}

func (h *Handler) GetSeats(w http.ResponseWriter, r *http.Request) {
	eventID, err := int64Param(r, "eventId")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid event id", err)
		return
	}

	seats, err := h.Service.GetAvailability(r.Context(), eventID)
	if err != nil {
		h.writeServiceError(w, "Seat lookup failed", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Seat availability", seats)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.PrincipalFrom(r.Context())

	status := models.StatusFilterAll
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			utils.WriteError(w, http.StatusBadRequest, "Invalid status filter", models.ErrInvalidStatusFilter)
			return
		}
		status = parsed
	}

	orders, err := h.Service.ListOrders(r.Context(), caller, status)
	if err != nil {
		h.writeServiceError(w, "Order listing failed", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, fmt.Sprintf("%d orders", len(orders)), orders)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.PrincipalFrom(r.Context())
	orderID, err := int64Param(r, "orderId")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid order id", err)
		return
	}

	order, err := h.Service.GetOrder(r.Context(), caller, orderID)
	if err != nil {
		h.writeServiceError(w, "Order lookup failed", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Order found", order)
}

func (h *Handler) GetOrderQR(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.PrincipalFrom(r.Context())
	orderID, err := int64Param(r, "orderId")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid order id", err)
		return
	}

	size := defaultQRSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 64 && n <= 1024 {
			size = n
		}
	}

	png, err := h.Service.OrderQR(r.Context(), caller, orderID, size)
	if err != nil {
		h.writeServiceError(w, "QR generation failed", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req models.CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	event, err := h.Service.CreateEvent(r.Context(), req)
	if err != nil {
		if errors.Is(err, models.ErrIntegrityViolation) {
			// unique event name
			utils.WriteError(w, http.StatusConflict, "Event already exists", err)
			return
		}
		h.writeServiceError(w, "Event creation failed", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Event created", event)
}

func (h *Handler) GetInventory(w http.ResponseWriter, r *http.Request) {
	eventID, err := int64Param(r, "eventId")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid event id", err)
		return
	}

	audit, err := h.Service.AuditEvent(r.Context(), eventID)
	if err != nil {
		h.writeServiceError(w, "Inventory audit failed", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Inventory audit", audit)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, message string, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", message, err))
		utils.WriteError(w, status, message, errors.New("internal error"))
		return
	}
	utils.WriteError(w, status, message, err)
}

// StatusFor maps service errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrSeatNotFound),
		errors.Is(err, models.ErrTooManySeats),
		errors.Is(err, models.ErrNoSeats),
		errors.Is(err, models.ErrDuplicateSeat),
		errors.Is(err, models.ErrInvalidEvent),
		errors.Is(err, models.ErrInvalidStatusFilter):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrSeatAlreadyReserved),
		errors.Is(err, models.ErrInvalidStatusTransition):
		return http.StatusConflict
	case errors.Is(err, models.ErrEventNotFound),
		errors.Is(err, models.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrSessionInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func int64Param(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}
