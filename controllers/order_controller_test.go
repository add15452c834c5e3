package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"order-payment-service/controllers"
	"order-payment-service/middleware"
	"order-payment-service/models"
	"order-payment-service/repository"
	"order-payment-service/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// memOrderRepo is an in-memory OrderRepository good enough to drive the full
// order lifecycle through the HTTP layer.
type memOrderRepo struct {
	mu      sync.Mutex
	orders  map[uuid.UUID]*models.Order
	byToken map[string]uuid.UUID
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{
		orders:  make(map[uuid.UUID]*models.Order),
		byToken: make(map[string]uuid.UUID),
	}
}

func tokenKey(userID uuid.UUID, token string) string {
	return userID.String() + "/" + token
}

func (m *memOrderRepo) Create(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tokenKey(order.UserID, order.ClientToken)
	if _, exists := m.byToken[key]; exists {
		return gorm.ErrDuplicatedKey
	}
	order.ID = uuid.New()
	for i := range order.Items {
		order.Items[i].ID = uuid.New()
		order.Items[i].OrderID = order.ID
	}
	m.orders[order.ID] = order
	m.byToken[key] = order.ID
	return nil
}

func (m *memOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	return &copied, nil
}

func (m *memOrderRepo) FindByUserAndToken(_ context.Context, userID uuid.UUID, clientToken string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byToken[tokenKey(userID, clientToken)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *m.orders[id]
	return &copied, nil
}

func (m *memOrderRepo) UpdateStatusChecked(_ context.Context, id uuid.UUID, status string, expectedVersion int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok || order.Version != expectedVersion {
		return 0, nil
	}
	order.Status = status
	order.Version = expectedVersion + 1
	return 1, nil
}

func (m *memOrderRepo) List(_ context.Context, _ repository.OrderFilter) ([]models.Order, int64, error) {
	return nil, 0, nil
}

func setCaller(userID uuid.UUID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserContextKey, userID.String())
		c.Set(middleware.RoleContextKey, role)
		c.Next()
	}
}

func newOrderRouter(repo repository.OrderRepository, userID uuid.UUID, role string) *gin.Engine {
	svc := services.NewOrderService(repo, nil, zap.NewNop())
	oc := controllers.NewOrderController(svc)

	r := gin.New()
	r.POST("/orders", setCaller(userID, role), oc.CreateOrder)
	r.GET("/orders/:id", setCaller(userID, role), oc.GetOrderByID)
	r.PATCH("/orders/:id/status", setCaller(userID, role), oc.UpdateStatus)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		assert.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreateOrder_NewReturns201(t *testing.T) {
	r := newOrderRouter(newMemOrderRepo(), uuid.New(), models.RoleUser)

	rec := doJSON(t, r, http.MethodPost, "/orders", gin.H{
		"items":        []gin.H{{"sku": "A", "qty": 2}},
		"client_token": "t1",
	})

	assert.Equal(t, http.StatusCreated, rec.Code)

	var order models.Order
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, 1, order.Version)
}

func TestCreateOrder_MissingItemsRejected(t *testing.T) {
	r := newOrderRouter(newMemOrderRepo(), uuid.New(), models.RoleUser)

	rec := doJSON(t, r, http.MethodPost, "/orders", gin.H{"client_token": "t1"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}

// Mirrors the full lifecycle: idempotent creation, optimistic update, stale
// update rejected, replay returns the original order.
func TestOrderLifecycleScenario(t *testing.T) {
	userID := uuid.New()
	repo := newMemOrderRepo()
	r := newOrderRouter(repo, userID, models.RoleAdmin)

	// Create with token t1.
	rec := doJSON(t, r, http.MethodPost, "/orders", gin.H{
		"items":        []gin.H{{"sku": "A", "qty": 2}},
		"client_token": "t1",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)

	var order models.Order
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Equal(t, 1, order.Version)
	assert.Equal(t, models.OrderStatusPending, order.Status)

	// Update to PAID at version 1.
	rec = doJSON(t, r, http.MethodPatch, fmt.Sprintf("/orders/%s/status", order.ID), gin.H{
		"status":  models.OrderStatusPaid,
		"version": 1,
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	var updated models.Order
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, models.OrderStatusPaid, updated.Status)

	// Stale update at version 1 conflicts and changes nothing.
	rec = doJSON(t, r, http.MethodPatch, fmt.Sprintf("/orders/%s/status", order.ID), gin.H{
		"status":  models.OrderStatusCancelled,
		"version": 1,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "CONFLICT")

	rec = doJSON(t, r, http.MethodGet, fmt.Sprintf("/orders/%s", order.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var current models.Order
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &current))
	assert.Equal(t, 2, current.Version)
	assert.Equal(t, models.OrderStatusPaid, current.Status)

	// Replay token t1 with different items: original order, original items.
	rec = doJSON(t, r, http.MethodPost, "/orders", gin.H{
		"items":        []gin.H{{"sku": "B", "qty": 9}},
		"client_token": "t1",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	var replayed models.Order
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &replayed))
	assert.Equal(t, order.ID, replayed.ID)
	assert.Equal(t, models.OrderStatusPaid, replayed.Status)
	assert.Equal(t, 2, replayed.Version)
	assert.Len(t, replayed.Items, 1)
	assert.Equal(t, "A", replayed.Items[0].SKU)
	assert.Equal(t, 2, replayed.Items[0].Qty)
}

func TestUpdateStatus_UnknownOrderReturns404(t *testing.T) {
	r := newOrderRouter(newMemOrderRepo(), uuid.New(), models.RoleAdmin)

	rec := doJSON(t, r, http.MethodPatch, fmt.Sprintf("/orders/%s/status", uuid.New()), gin.H{
		"status":  models.OrderStatusPaid,
		"version": 1,
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}
