package reservation_test

import (
	"context"
	"encoding/json"

	"ms-reservation/internal/inventory/db"
	"ms-reservation/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) EventExists(ctx context.Context, eventID int64) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) GetSeatsByEvent(ctx context.Context, eventID int64) ([]models.SeatAvailability, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SeatAvailability), args.Error(1)
}

func (m *MockStore) ReserveSeats(ctx context.Context, eventID, userID int64, seatIDs []int64) (*models.ReserveResult, error) {
	args := m.Called(ctx, eventID, userID, seatIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReserveResult), args.Error(1)
}

func (m *MockStore) SetOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) (*models.CancelResult, error) {
	args := m.Called(ctx, orderID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CancelResult), args.Error(1)
}

func (m *MockStore) GetOrderByID(ctx context.Context, orderID int64) (*models.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockStore) GetOrderWithLines(ctx context.Context, orderID int64) (*models.OrderWithLines, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OrderWithLines), args.Error(1)
}

func (m *MockStore) ListOrders(ctx context.Context, filter db.OrderFilter) ([]models.OrderSummary, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.OrderSummary), args.Error(1)
}

func (m *MockStore) CreateEvent(ctx context.Context, req models.CreateEventRequest) (*models.Event, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockStore) AuditEvent(ctx context.Context, eventID int64) (*db.InventoryAudit, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.InventoryAudit), args.Error(1)
}

type MockSeatCache struct {
	mock.Mock
}

func (m *MockSeatCache) GetAvailabilityJSON(ctx context.Context, eventID int64) (json.RawMessage, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockSeatCache) MarkSeats(ctx context.Context, eventID int64, seatIDs []int64, reserved bool) error {
	return m.Called(ctx, eventID, seatIDs, reserved).Error(0)
}

func (m *MockSeatCache) Invalidate(ctx context.Context, eventID int64) error {
	return m.Called(ctx, eventID).Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishOrderCreated(ctx context.Context, evt models.OrderEvent) error {
	return m.Called(ctx, evt).Error(0)
}

func (m *MockPublisher) PublishOrderCancelled(ctx context.Context, evt models.OrderEvent) error {
	return m.Called(ctx, evt).Error(0)
}

func (m *MockPublisher) PublishSeatStatus(ctx context.Context, evt models.SeatStatusChangeEvent) error {
	return m.Called(ctx, evt).Error(0)
}
