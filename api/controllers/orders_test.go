package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	internalorders "github.com/angelmondragon/ordersync-backend/internal/orders"
	"github.com/angelmondragon/ordersync-backend/pkg/db/models"
	"github.com/angelmondragon/ordersync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordersync-backend/pkg/errors"
	"github.com/angelmondragon/ordersync-backend/pkg/pagination"
)

type stubOrdersService struct {
	create  func(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error)
	get     func(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	status  func(ctx context.Context, orderID uuid.UUID) (enums.OrderStatus, error)
	list    func(ctx context.Context, params pagination.Params, filters internalorders.OrderFilters) (*internalorders.OrderList, error)
	outcome func(ctx context.Context, tx *gorm.DB, input internalorders.PaymentOutcomeInput) error
}

func (s *stubOrdersService) CreateOrder(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error) {
	if s.create != nil {
		return s.create(ctx, input)
	}
	return nil, nil
}

func (s *stubOrdersService) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.get != nil {
		return s.get(ctx, orderID)
	}
	return nil, nil
}

func (s *stubOrdersService) GetOrderStatus(ctx context.Context, orderID uuid.UUID) (enums.OrderStatus, error) {
	if s.status != nil {
		return s.status(ctx, orderID)
	}
	return enums.OrderStatusNew, nil
}

func (s *stubOrdersService) ListOrders(ctx context.Context, params pagination.Params, filters internalorders.OrderFilters) (*internalorders.OrderList, error) {
	if s.list != nil {
		return s.list(ctx, params, filters)
	}
	return &internalorders.OrderList{}, nil
}

func (s *stubOrdersService) ApplyPaymentOutcome(ctx context.Context, tx *gorm.DB, input internalorders.PaymentOutcomeInput) error {
	if s.outcome != nil {
		return s.outcome(ctx, tx, input)
	}
	return nil
}

func ordersTestRouter(svc internalorders.Service) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/orders", CreateOrder(svc, nil))
	r.Get("/api/orders", ListOrders(svc, nil))
	r.Get("/api/orders/user/{userId}", ListUserOrders(svc, nil))
	r.Get("/api/orders/{id}", GetOrder(svc, nil))
	r.Get("/api/orders/{id}/status", GetOrderStatus(svc, nil))
	return r
}

func TestCreateOrderReturnsCreated(t *testing.T) {
	userID := uuid.New()
	svc := &stubOrdersService{
		create: func(_ context.Context, input internalorders.CreateOrderInput) (*models.Order, error) {
			if input.UserID != userID {
				t.Fatalf("unexpected user id %s", input.UserID)
			}
			if !input.Amount.Equal(decimal.RequireFromString("99.90")) {
				t.Fatalf("unexpected amount %s", input.Amount)
			}
			return &models.Order{
				ID:     uuid.New(),
				UserID: input.UserID,
				Amount: input.Amount,
				Status: enums.OrderStatusNew,
			}, nil
		},
	}

	body := `{"user_id":"` + userID.String() + `","amount":"99.90","description":"beans"}`
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	resp := httptest.NewRecorder()
	ordersTestRouter(svc).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data internalorders.OrderSummary `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Status != enums.OrderStatusNew {
		t.Fatalf("expected NEW status, got %s", envelope.Data.Status)
	}
}

func TestCreateOrderRejectsBadBody(t *testing.T) {
	svc := &stubOrdersService{
		create: func(context.Context, internalorders.CreateOrderInput) (*models.Order, error) {
			t.Fatalf("service must not be called for an invalid body")
			return nil, nil
		},
	}

	cases := map[string]string{
		"missing user": `{"amount":"10.00"}`,
		"bad amount":   `{"user_id":"` + uuid.NewString() + `","amount":"ten"}`,
		"not json":     `not json`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
			resp := httptest.NewRecorder()
			ordersTestRouter(svc).ServeHTTP(resp, req)
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d", resp.Code)
			}
		})
	}
}

func TestListUserOrdersScopesFilter(t *testing.T) {
	userID := uuid.New()
	svc := &stubOrdersService{
		list: func(_ context.Context, params pagination.Params, filters internalorders.OrderFilters) (*internalorders.OrderList, error) {
			if filters.UserID == nil || *filters.UserID != userID {
				t.Fatalf("user filter not applied")
			}
			if params.Limit != 5 {
				t.Fatalf("unexpected limit %d", params.Limit)
			}
			if filters.Status == nil || *filters.Status != enums.OrderStatusFinished {
				t.Fatalf("status filter not parsed")
			}
			return &internalorders.OrderList{}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/orders/user/"+userID.String()+"?limit=5&status=FINISHED", nil)
	resp := httptest.NewRecorder()
	ordersTestRouter(svc).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestListOrdersRejectsUnknownStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/orders?status=REFUNDED", nil)
	resp := httptest.NewRecorder()
	ordersTestRouter(&stubOrdersService{}).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestGetOrderStatusHappyPath(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{
		status: func(_ context.Context, id uuid.UUID) (enums.OrderStatus, error) {
			if id != orderID {
				t.Fatalf("unexpected order id %s", id)
			}
			return enums.OrderStatusCancelled, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/orders/"+orderID.String()+"/status", nil)
	resp := httptest.NewRecorder()
	ordersTestRouter(svc).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), string(enums.OrderStatusCancelled)) {
		t.Fatalf("status missing from body: %s", resp.Body.String())
	}
}

func TestGetOrderNotFoundMapsTo404(t *testing.T) {
	svc := &stubOrdersService{
		get: func(context.Context, uuid.UUID) (*models.Order, error) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/orders/"+uuid.NewString(), nil)
	resp := httptest.NewRecorder()
	ordersTestRouter(svc).ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestGetOrderRejectsBadID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/orders/not-a-uuid", nil)
	resp := httptest.NewRecorder()
	ordersTestRouter(&stubOrdersService{}).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
