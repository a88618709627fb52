package reservation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ms-reservation/internal/inventory/db"
	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"
	"ms-reservation/internal/tickets/qr"

	"github.com/google/uuid"
)

type Store interface {
	EventExists(ctx context.Context, eventID int64) (bool, error)
	GetSeatsByEvent(ctx context.Context, eventID int64) ([]models.SeatAvailability, error)
	ReserveSeats(ctx context.Context, eventID, userID int64, seatIDs []int64) (*models.ReserveResult, error)
	SetOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) (*models.CancelResult, error)
	GetOrderByID(ctx context.Context, orderID int64) (*models.Order, error)
	GetOrderWithLines(ctx context.Context, orderID int64) (*models.OrderWithLines, error)
	ListOrders(ctx context.Context, filter db.OrderFilter) ([]models.OrderSummary, error)
	CreateEvent(ctx context.Context, req models.CreateEventRequest) (*models.Event, error)
	AuditEvent(ctx context.Context, eventID int64) (*db.InventoryAudit, error)
}

type SeatCache interface {
	GetAvailabilityJSON(ctx context.Context, eventID int64) (json.RawMessage, error)
	MarkSeats(ctx context.Context, eventID int64, seatIDs []int64, reserved bool) error
	Invalidate(ctx context.Context, eventID int64) error
}

type Publisher interface {
	PublishOrderCreated(ctx context.Context, evt models.OrderEvent) error
	PublishOrderCancelled(ctx context.Context, evt models.OrderEvent) error
	PublishSeatStatus(ctx context.Context, evt models.SeatStatusChangeEvent) error
}

// SeatNotifier pushes seat changes to clients connected to this instance.
type SeatNotifier interface {
	Emit(evt models.SeatStatusChangeEvent)
}

type Options struct {
	MaxSeatsPerOrder int
	// CancelRequiresOwnership limits cancellation to the order owner and
	// admins. Off by default: any authenticated caller may cancel any order.
	CancelRequiresOwnership bool
	// InstanceID tags published seat changes so the consumer can skip its own.
	InstanceID string
}

const publishTimeout = 5 * time.Second

type Service struct {
	Store     Store
	Cache     SeatCache
	Publisher Publisher
	Notifier  SeatNotifier
	QR        *qr.QRGenerator
	Options   Options
	Logger    *logger.Logger
}

// NewService wires the engine. publisher may be nil when Kafka is disabled.
func NewService(store Store, cache SeatCache, publisher Publisher, qrGen *qr.QRGenerator, opts Options, log *logger.Logger) *Service {
	if opts.MaxSeatsPerOrder <= 0 {
		opts.MaxSeatsPerOrder = 4
	}
	return &Service{
		Store:     store,
		Cache:     cache,
		Publisher: publisher,
		QR:        qrGen,
		Options:   opts,
		Logger:    log,
	}
}

// SeatLoader is the cache loader. Unknown events fail with ErrEventNotFound
// instead of caching an empty seat list.
func SeatLoader(store Store) func(ctx context.Context, eventID int64) ([]models.SeatAvailability, error) {
	return func(ctx context.Context, eventID int64) ([]models.SeatAvailability, error) {
		exists, err := store.EventExists(ctx, eventID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, models.ErrEventNotFound
		}
		return store.GetSeatsByEvent(ctx, eventID)
	}
}

// ---------------- RESERVATIONS ----------------

func (s *Service) validateSeats(req models.ReserveRequest) error {
	if req.EventID <= 0 {
		return fmt.Errorf("%w: id %d", models.ErrEventNotFound, req.EventID)
	}
	if len(req.SeatIDs) == 0 {
		return models.ErrNoSeats
	}
	if len(req.SeatIDs) > s.Options.MaxSeatsPerOrder {
		return fmt.Errorf("%w: at most %d seats per order", models.ErrTooManySeats, s.Options.MaxSeatsPerOrder)
	}
	seen := make(map[int64]struct{}, len(req.SeatIDs))
	for _, id := range req.SeatIDs {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: seat %d requested twice", models.ErrDuplicateSeat, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Reserve books the requested seats for the caller. The cache update and the
// published events after commit are best effort.
func (s *Service) Reserve(ctx context.Context, caller models.Principal, req models.ReserveRequest) (*models.ReserveResult, error) {
	if err := s.validateSeats(req); err != nil {
		return nil, err
	}

	result, err := s.Store.ReserveSeats(ctx, req.EventID, caller.UserID, req.SeatIDs)
	if err != nil {
		if models.IsBusinessError(err) {
			s.Logger.Info("RESERVE", fmt.Sprintf("event=%d user=%d seats=%v rejected: %v", req.EventID, caller.UserID, req.SeatIDs, err))
		} else {
			s.Logger.Error("RESERVE", fmt.Sprintf("event=%d user=%d failed: %v", req.EventID, caller.UserID, err))
		}
		return nil, err
	}
	s.Logger.LogOrder("CREATED", result.OrderID, fmt.Sprintf("event=%d user=%d seats=%v total=%d", req.EventID, caller.UserID, result.SeatIDs, result.TotalPrice))

	s.afterSeatChange(ctx, req.EventID, result.OrderID, result.SeatIDs, true)
	s.publishOrder(ctx, models.OrderEvent{
		OrderID:    result.OrderID,
		EventID:    req.EventID,
		UserID:     caller.UserID,
		TotalPrice: result.TotalPrice,
		Status:     models.OrderActive,
		SeatIDs:    result.SeatIDs,
	})
	return result, nil
}

// Cancel moves an order to cancelled. Unknown and already cancelled orders
// succeed without changes.
func (s *Service) Cancel(ctx context.Context, caller models.Principal, orderID int64) (*models.CancelResult, error) {
	if s.Options.CancelRequiresOwnership && !caller.IsAdmin {
		order, err := s.Store.GetOrderByID(ctx, orderID)
		switch {
		case err == nil:
			if order.UserID != caller.UserID {
				s.Logger.LogSecurity("CANCEL_DENIED", fmt.Sprintf("user %d on order %d", caller.UserID, orderID))
				return nil, models.ErrForbidden
			}
		case errors.Is(err, models.ErrOrderNotFound):
			return &models.CancelResult{OrderID: orderID}, nil
		default:
			return nil, err
		}
	}
	return s.setStatus(ctx, orderID, models.OrderCancelled)
}

// UpdateOrderStatus is the administrative status override. It goes through
// the same release path as Cancel.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) (*models.CancelResult, error) {
	return s.setStatus(ctx, orderID, status)
}

func (s *Service) setStatus(ctx context.Context, orderID int64, status models.OrderStatus) (*models.CancelResult, error) {
	result, err := s.Store.SetOrderStatus(ctx, orderID, status)
	if err != nil {
		return nil, err
	}
	if !result.Changed {
		s.Logger.LogOrder("UNCHANGED", orderID, fmt.Sprintf("status already %s or order unknown", status))
		return result, nil
	}
	s.Logger.LogOrder("CANCELLED", orderID, fmt.Sprintf("released seats %v", result.Released))

	s.afterSeatChange(ctx, result.EventID, orderID, result.Released, false)
	s.publishOrder(ctx, models.OrderEvent{
		OrderID: orderID,
		EventID: result.EventID,
		Status:  models.OrderCancelled,
		SeatIDs: result.Released,
	})
	return result, nil
}

func (s *Service) afterSeatChange(ctx context.Context, eventID, orderID int64, seatIDs []int64, reserved bool) {
	if len(seatIDs) == 0 {
		return
	}
	if err := s.Cache.MarkSeats(ctx, eventID, seatIDs, reserved); err != nil {
		s.Logger.Warn("CACHE", fmt.Sprintf("Incremental update for event %d dropped: %v", eventID, err))
	}
	evt := models.NewSeatStatusChangeEvent(s.Options.InstanceID, eventID, orderID, seatIDs, reserved)
	s.Logger.LogSeatChange(eventID, orderID, seatIDs, reserved, evt.Origin)
	if s.Notifier != nil {
		s.Notifier.Emit(evt)
	}
	if s.Publisher == nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.Publisher.PublishSeatStatus(pubCtx, evt); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("Seat status for event %d not published: %v", eventID, err))
	}
}

func (s *Service) publishOrder(ctx context.Context, evt models.OrderEvent) {
	if s.Publisher == nil {
		return
	}
	evt.MessageID = uuid.New()
	evt.OccurredAt = time.Now().UTC()

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	var err error
	if evt.Status == models.OrderActive {
		err = s.Publisher.PublishOrderCreated(pubCtx, evt)
	} else {
		err = s.Publisher.PublishOrderCancelled(pubCtx, evt)
	}
	if err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("Order %d event not published: %v", evt.OrderID, err))
	}
}

// ApplyRemoteSeatStatus patches the local cache with a change committed by
// another instance.
func (s *Service) ApplyRemoteSeatStatus(ctx context.Context, evt models.SeatStatusChangeEvent) error {
	if evt.Origin == s.Options.InstanceID {
		return nil
	}
	s.Logger.LogSeatChange(evt.EventID, evt.OrderID, evt.SeatIDs, evt.Reserved, evt.Origin)
	if s.Notifier != nil {
		s.Notifier.Emit(evt)
	}
	return s.Cache.MarkSeats(ctx, evt.EventID, evt.SeatIDs, evt.Reserved)
}

// ---------------- READS ----------------

// GetAvailability returns the JSON seat list of an event from the cache.
func (s *Service) GetAvailability(ctx context.Context, eventID int64) (json.RawMessage, error) {
	return s.Cache.GetAvailabilityJSON(ctx, eventID)
}

// ListOrders lists the caller's orders, or every order for an admin.
func (s *Service) ListOrders(ctx context.Context, caller models.Principal, status int) ([]models.OrderSummary, error) {
	if status != int(models.OrderCancelled) && status != int(models.OrderActive) && status != models.StatusFilterAll {
		return nil, models.ErrInvalidStatusFilter
	}
	filter := db.OrderFilter{Status: status}
	if !caller.IsAdmin {
		filter.UserID = caller.UserID
	}
	return s.Store.ListOrders(ctx, filter)
}

func (s *Service) GetOrder(ctx context.Context, caller models.Principal, orderID int64) (*models.OrderWithLines, error) {
	order, err := s.Store.GetOrderWithLines(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin && order.UserID != caller.UserID {
		return nil, models.ErrForbidden
	}
	return order, nil
}

// OrderQR renders the confirmation QR code of an active order.
func (s *Service) OrderQR(ctx context.Context, caller models.Principal, orderID int64, size int) ([]byte, error) {
	order, err := s.GetOrder(ctx, caller, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderActive {
		return nil, fmt.Errorf("%w: order %d is cancelled", models.ErrOrderNotFound, orderID)
	}
	return s.QR.GenerateOrderQR(*order, size)
}

// ---------------- ADMIN ----------------

func (s *Service) CreateEvent(ctx context.Context, req models.CreateEventRequest) (*models.Event, error) {
	event, err := s.Store.CreateEvent(ctx, req)
	if err != nil {
		return nil, err
	}
	s.Logger.Info("EVENT", fmt.Sprintf("Created event %d %q", event.ID, event.Name))

	if err := s.Cache.Invalidate(ctx, event.ID); err != nil {
		s.Logger.Warn("CACHE", fmt.Sprintf("Invalidate event %d: %v", event.ID, err))
	}
	return event, nil
}

func (s *Service) AuditEvent(ctx context.Context, eventID int64) (*db.InventoryAudit, error) {
	audit, err := s.Store.AuditEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !audit.Consistent {
		s.Logger.Error("AUDIT", fmt.Sprintf("Inventory of event %d is inconsistent", eventID))
	}
	return audit, nil
}
