package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"orderflow/internal/domain"
)

type MockOrders struct {
	mock.Mock
}

func (m *MockOrders) CreateOrder(ctx context.Context, itemName string) (int64, error) {
	args := m.Called(ctx, itemName)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOrders) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Order), args.Error(1)
}

func (m *MockOrders) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishNewOrder(ctx context.Context, orderID int64) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func newTestService() (*MockOrders, *MockPublisher, OrderServiceInterface) {
	db := new(MockOrders)
	pub := new(MockPublisher)
	return db, pub, NewOrderService(db, pub, zap.NewNop())
}

func TestCreateOrder_Success(t *testing.T) {
	db, pub, svc := newTestService()
	db.On("CreateOrder", mock.Anything, "Widget").Return(int64(17), nil).Once()
	pub.On("PublishNewOrder", mock.Anything, int64(17)).Return(nil).Once()

	resp, err := svc.CreateOrder(context.Background(), domain.CreateOrderRequest{ItemName: "Widget"})

	require.NoError(t, err)
	assert.Equal(t, domain.CreateOrderResponse{OrderID: 17, Status: domain.StatusCreated}, resp)
	db.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestCreateOrder_EmptyItemHasNoSideEffects(t *testing.T) {
	db, pub, svc := newTestService()

	_, err := svc.CreateOrder(context.Background(), domain.CreateOrderRequest{ItemName: ""})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))
	db.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
	pub.AssertNotCalled(t, "PublishNewOrder", mock.Anything, mock.Anything)
}

func TestCreateOrder_StoreFailureSkipsPublish(t *testing.T) {
	db, pub, svc := newTestService()
	db.On("CreateOrder", mock.Anything, "Widget").
		Return(int64(0), errors.New("connection reset")).Once()

	_, err := svc.CreateOrder(context.Background(), domain.CreateOrderRequest{ItemName: "Widget"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPersistence))
	pub.AssertNotCalled(t, "PublishNewOrder", mock.Anything, mock.Anything)
}

func TestCreateOrder_PublishFailure(t *testing.T) {
	db, pub, svc := newTestService()
	db.On("CreateOrder", mock.Anything, "Widget").Return(int64(5), nil).Once()
	pub.On("PublishNewOrder", mock.Anything, int64(5)).
		Return(domain.ErrConnectionFailure).Once()

	_, err := svc.CreateOrder(context.Background(), domain.CreateOrderRequest{ItemName: "Widget"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPersistence))
	assert.True(t, errors.Is(err, domain.ErrConnectionFailure))
	db.AssertExpectations(t)
}

func TestGetOrder(t *testing.T) {
	db, _, svc := newTestService()
	db.On("GetOrder", mock.Anything, int64(3)).
		Return(domain.Order{ID: 3, ItemName: "Widget", Status: domain.StatusProcessed}, nil).Once()

	resp, err := svc.GetOrder(context.Background(), 3)

	require.NoError(t, err)
	assert.Equal(t, domain.OrderResponse{OrderID: 3, ItemName: "Widget", Status: domain.StatusProcessed}, resp)
}

func TestGetOrder_NotFound(t *testing.T) {
	db, _, svc := newTestService()
	db.On("GetOrder", mock.Anything, int64(404)).
		Return(domain.Order{}, domain.ErrNotFound).Once()

	_, err := svc.GetOrder(context.Background(), 404)

	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
