package reservation_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"ms-reservation/internal/inventory/db"
	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"
	"ms-reservation/internal/reservation"
	"ms-reservation/internal/tickets/qr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	alice = models.Principal{UserID: 1}
	bob   = models.Principal{UserID: 2}
	admin = models.Principal{UserID: 99, IsAdmin: true}
)

func newTestService(opts reservation.Options) (*reservation.Service, *MockStore, *MockSeatCache, *MockPublisher) {
	store := new(MockStore)
	cache := new(MockSeatCache)
	pub := new(MockPublisher)
	if opts.InstanceID == "" {
		opts.InstanceID = "node-a"
	}
	svc := reservation.NewService(store, cache, pub, qr.NewQRGenerator("test"), opts, logger.New(io.Discard))
	return svc, store, cache, pub
}

func TestReserveValidation(t *testing.T) {
	svc, store, _, _ := newTestService(reservation.Options{MaxSeatsPerOrder: 4})
	ctx := context.Background()

	cases := []struct {
		name string
		req  models.ReserveRequest
		want error
	}{
		{"no seats", models.ReserveRequest{EventID: 1}, models.ErrNoSeats},
		{"no event", models.ReserveRequest{SeatIDs: []int64{1}}, models.ErrEventNotFound},
		{"negative event", models.ReserveRequest{EventID: -4, SeatIDs: []int64{1}}, models.ErrEventNotFound},
		{"five seats", models.ReserveRequest{EventID: 1, SeatIDs: []int64{1, 2, 3, 4, 5}}, models.ErrTooManySeats},
		{"duplicate", models.ReserveRequest{EventID: 1, SeatIDs: []int64{3, 3}}, models.ErrDuplicateSeat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Reserve(ctx, alice, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	store.AssertNotCalled(t, "ReserveSeats", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReserveSuccessUpdatesCacheAndPublishes(t *testing.T) {
	svc, store, cache, pub := newTestService(reservation.Options{})
	ctx := context.Background()

	result := &models.ReserveResult{OrderID: 10, TotalPrice: 160, SeatIDs: []int64{4, 5}}
	store.On("ReserveSeats", mock.Anything, int64(3), alice.UserID, []int64{5, 4}).Return(result, nil)
	cache.On("MarkSeats", mock.Anything, int64(3), []int64{4, 5}, true).Return(nil)
	pub.On("PublishSeatStatus", mock.Anything, mock.MatchedBy(func(e models.SeatStatusChangeEvent) bool {
		return e.Origin == "node-a" && e.EventID == 3 && e.OrderID == 10 && e.Reserved
	})).Return(nil)
	pub.On("PublishOrderCreated", mock.Anything, mock.MatchedBy(func(e models.OrderEvent) bool {
		return e.OrderID == 10 && e.UserID == alice.UserID && e.Status == models.OrderActive
	})).Return(nil)

	got, err := svc.Reserve(ctx, alice, models.ReserveRequest{EventID: 3, SeatIDs: []int64{5, 4}})
	require.NoError(t, err)
	assert.Equal(t, result, got)

	store.AssertExpectations(t)
	cache.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestReserveSideEffectFailuresDoNotFailReservation(t *testing.T) {
	svc, store, cache, pub := newTestService(reservation.Options{})
	ctx := context.Background()

	result := &models.ReserveResult{OrderID: 11, TotalPrice: 30, SeatIDs: []int64{8}}
	store.On("ReserveSeats", mock.Anything, int64(3), bob.UserID, []int64{8}).Return(result, nil)
	cache.On("MarkSeats", mock.Anything, int64(3), []int64{8}, true).Return(errors.New("redis down"))
	pub.On("PublishSeatStatus", mock.Anything, mock.Anything).Return(errors.New("broker down"))
	pub.On("PublishOrderCreated", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	got, err := svc.Reserve(ctx, bob, models.ReserveRequest{EventID: 3, SeatIDs: []int64{8}})
	require.NoError(t, err)
	assert.Equal(t, int64(11), got.OrderID)
}

func TestReserveConflictSkipsSideEffects(t *testing.T) {
	svc, store, cache, pub := newTestService(reservation.Options{})

	store.On("ReserveSeats", mock.Anything, int64(3), bob.UserID, []int64{8}).Return(nil, models.ErrSeatAlreadyReserved)

	_, err := svc.Reserve(context.Background(), bob, models.ReserveRequest{EventID: 3, SeatIDs: []int64{8}})
	assert.ErrorIs(t, err, models.ErrSeatAlreadyReserved)
	cache.AssertNotCalled(t, "MarkSeats", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	pub.AssertNotCalled(t, "PublishOrderCreated", mock.Anything, mock.Anything)
}

func TestReserveWithoutPublisher(t *testing.T) {
	store := new(MockStore)
	cache := new(MockSeatCache)
	svc := reservation.NewService(store, cache, nil, nil, reservation.Options{}, logger.New(io.Discard))

	store.On("ReserveSeats", mock.Anything, int64(1), alice.UserID, []int64{1}).
		Return(&models.ReserveResult{OrderID: 1, SeatIDs: []int64{1}}, nil)
	cache.On("MarkSeats", mock.Anything, int64(1), []int64{1}, true).Return(nil)

	_, err := svc.Reserve(context.Background(), alice, models.ReserveRequest{EventID: 1, SeatIDs: []int64{1}})
	assert.NoError(t, err)
	assert.Equal(t, 4, svc.Options.MaxSeatsPerOrder)
}

func TestCancelAnyAuthenticatedCaller(t *testing.T) {
	svc, store, cache, pub := newTestService(reservation.Options{})
	ctx := context.Background()

	store.On("SetOrderStatus", mock.Anything, int64(10), models.OrderCancelled).
		Return(&models.CancelResult{OrderID: 10, EventID: 3, Changed: true, Released: []int64{4, 5}}, nil)
	cache.On("MarkSeats", mock.Anything, int64(3), []int64{4, 5}, false).Return(nil)
	pub.On("PublishSeatStatus", mock.Anything, mock.MatchedBy(func(e models.SeatStatusChangeEvent) bool {
		return !e.Reserved
	})).Return(nil)
	pub.On("PublishOrderCancelled", mock.Anything, mock.MatchedBy(func(e models.OrderEvent) bool {
		return e.OrderID == 10 && e.Status == models.OrderCancelled
	})).Return(nil)

	// bob cancels an order he does not own
	got, err := svc.Cancel(ctx, bob, 10)
	require.NoError(t, err)
	assert.True(t, got.Changed)

	store.AssertNotCalled(t, "GetOrderByID", mock.Anything, mock.Anything)
	cache.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestCancelNoChangeSkipsSideEffects(t *testing.T) {
	svc, store, cache, pub := newTestService(reservation.Options{})

	store.On("SetOrderStatus", mock.Anything, int64(10), models.OrderCancelled).
		Return(&models.CancelResult{OrderID: 10, EventID: 3}, nil)

	got, err := svc.Cancel(context.Background(), alice, 10)
	require.NoError(t, err)
	assert.False(t, got.Changed)
	cache.AssertNotCalled(t, "MarkSeats", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	pub.AssertNotCalled(t, "PublishOrderCancelled", mock.Anything, mock.Anything)
}

func TestCancelRequiresOwnership(t *testing.T) {
	svc, store, cache, pub := newTestService(reservation.Options{CancelRequiresOwnership: true})
	ctx := context.Background()

	store.On("GetOrderByID", mock.Anything, int64(10)).Return(&models.Order{ID: 10, EventID: 3, UserID: alice.UserID}, nil)
	store.On("GetOrderByID", mock.Anything, int64(404)).Return(nil, models.ErrOrderNotFound)
	store.On("SetOrderStatus", mock.Anything, int64(10), models.OrderCancelled).
		Return(&models.CancelResult{OrderID: 10, EventID: 3, Changed: true, Released: []int64{4}}, nil)
	cache.On("MarkSeats", mock.Anything, int64(3), []int64{4}, false).Return(nil)
	pub.On("PublishSeatStatus", mock.Anything, mock.Anything).Return(nil)
	pub.On("PublishOrderCancelled", mock.Anything, mock.Anything).Return(nil)

	_, err := svc.Cancel(ctx, bob, 10)
	assert.ErrorIs(t, err, models.ErrForbidden)

	got, err := svc.Cancel(ctx, bob, 404)
	require.NoError(t, err)
	assert.False(t, got.Changed)

	got, err = svc.Cancel(ctx, alice, 10)
	require.NoError(t, err)
	assert.True(t, got.Changed)

	store.AssertNumberOfCalls(t, "SetOrderStatus", 1)
}

func TestUpdateOrderStatusRejectsReactivation(t *testing.T) {
	svc, store, _, _ := newTestService(reservation.Options{})

	store.On("SetOrderStatus", mock.Anything, int64(10), models.OrderActive).Return(nil, models.ErrInvalidStatusTransition)

	_, err := svc.UpdateOrderStatus(context.Background(), 10, models.OrderActive)
	assert.ErrorIs(t, err, models.ErrInvalidStatusTransition)
}

func TestApplyRemoteSeatStatus(t *testing.T) {
	svc, _, cache, _ := newTestService(reservation.Options{})
	ctx := context.Background()

	own := models.NewSeatStatusChangeEvent("node-a", 3, 10, []int64{1}, true)
	require.NoError(t, svc.ApplyRemoteSeatStatus(ctx, own))
	cache.AssertNotCalled(t, "MarkSeats", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	remote := models.NewSeatStatusChangeEvent("node-b", 3, 11, []int64{2, 3}, false)
	cache.On("MarkSeats", mock.Anything, int64(3), []int64{2, 3}, false).Return(nil)
	require.NoError(t, svc.ApplyRemoteSeatStatus(ctx, remote))
	cache.AssertExpectations(t)
}

func TestListOrdersScopesToCaller(t *testing.T) {
	svc, store, _, _ := newTestService(reservation.Options{})
	ctx := context.Background()

	store.On("ListOrders", mock.Anything, db.OrderFilter{UserID: alice.UserID, Status: 1}).
		Return([]models.OrderSummary{{OrderID: 1}}, nil)
	store.On("ListOrders", mock.Anything, db.OrderFilter{Status: models.StatusFilterAll}).
		Return([]models.OrderSummary{{OrderID: 1}, {OrderID: 2}}, nil)

	mine, err := svc.ListOrders(ctx, alice, 1)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	all, err := svc.ListOrders(ctx, admin, models.StatusFilterAll)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.ListOrders(ctx, alice, 5)
	assert.ErrorIs(t, err, models.ErrInvalidStatusFilter)
}

func TestGetOrderAndQR(t *testing.T) {
	svc, store, _, _ := newTestService(reservation.Options{})
	ctx := context.Background()

	order := &models.OrderWithLines{
		Order: models.Order{ID: 10, EventID: 3, UserID: alice.UserID, TotalPrice: 100, Status: models.OrderActive},
		Lines: []models.OrderLine{{OrderID: 10, SeatID: 4, TypeCode: 1, UnitPrice: 100}},
	}
	store.On("GetOrderWithLines", mock.Anything, int64(10)).Return(order, nil)

	got, err := svc.GetOrder(ctx, alice, 10)
	require.NoError(t, err)
	assert.Equal(t, order, got)

	_, err = svc.GetOrder(ctx, bob, 10)
	assert.ErrorIs(t, err, models.ErrForbidden)

	png, err := svc.OrderQR(ctx, admin, 10, 128)
	require.NoError(t, err)
	assert.NotEmpty(t, png)
}

func TestSeatLoader(t *testing.T) {
	store := new(MockStore)
	load := reservation.SeatLoader(store)
	ctx := context.Background()

	store.On("EventExists", mock.Anything, int64(1)).Return(true, nil)
	store.On("EventExists", mock.Anything, int64(2)).Return(false, nil)
	store.On("GetSeatsByEvent", mock.Anything, int64(1)).Return([]models.SeatAvailability{{ID: 1}}, nil)

	seats, err := load(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, seats, 1)

	_, err = load(ctx, 2)
	assert.ErrorIs(t, err, models.ErrEventNotFound)
	store.AssertNumberOfCalls(t, "GetSeatsByEvent", 1)
}

func TestCreateEventInvalidatesCache(t *testing.T) {
	svc, store, cache, _ := newTestService(reservation.Options{})
	req := models.CreateEventRequest{Name: "Show", EventDate: "2026-12-01", StartTime: "20:00"}

	store.On("CreateEvent", mock.Anything, req).Return(&models.Event{ID: 5, Name: "Show"}, nil)
	cache.On("Invalidate", mock.Anything, int64(5)).Return(errors.New("redis down"))

	event, err := svc.CreateEvent(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(5), event.ID)
	cache.AssertExpectations(t)
}

func TestGetAvailabilityDelegatesToCache(t *testing.T) {
	svc, _, cache, _ := newTestService(reservation.Options{})
	raw := json.RawMessage(`[{"id":1,"row":1,"col":1,"type":1,"is_reserved":false}]`)
	cache.On("GetAvailabilityJSON", mock.Anything, int64(3)).Return(raw, nil)

	got, err := svc.GetAvailability(context.Background(), 3)
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(got))
}
