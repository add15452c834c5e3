package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"order-payment-service/controllers"
	"order-payment-service/models"
	"order-payment-service/retry"
	"order-payment-service/services"
	"order-payment-service/signature"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const webhookTestSecret = "controller-webhook-secret"

// memPaymentRepo keeps payments and ledger rows in maps so the webhook
// endpoint can be exercised end to end, redelivery included.
type memPaymentRepo struct {
	payments   map[uuid.UUID]*models.Payment
	ledger     map[string]*models.WebhookEvent
	applyCalls int
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{
		payments: make(map[uuid.UUID]*models.Payment),
		ledger:   make(map[string]*models.WebhookEvent),
	}
}

func (m *memPaymentRepo) Create(_ context.Context, payment *models.Payment) error {
	payment.ID = uuid.New()
	m.payments[payment.ID] = payment
	return nil
}

func (m *memPaymentRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Payment, error) {
	payment, ok := m.payments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *payment
	return &copied, nil
}

func (m *memPaymentRepo) FindWebhookEvent(_ context.Context, eventID string) (*models.WebhookEvent, error) {
	event, ok := m.ledger[eventID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *event
	return &copied, nil
}

func (m *memPaymentRepo) ApplyCallback(_ context.Context, eventID string, paymentID uuid.UUID, status string) (*models.Payment, error) {
	m.applyCalls++
	payment, ok := m.payments[paymentID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	payment.Status = status
	m.ledger[eventID] = &models.WebhookEvent{
		EventID:     eventID,
		PaymentID:   paymentID,
		Status:      status,
		ProcessedAt: time.Now(),
	}
	copied := *payment
	return &copied, nil
}

func newWebhookRouter(repo *memPaymentRepo) *gin.Engine {
	svc := services.NewPaymentService(
		repo, newMemOrderRepo(), nil, nil,
		retry.Config{MaxAttempts: 3, InitialBackoff: time.Millisecond, IsRetryable: retry.IsTransient},
		webhookTestSecret, 100, "https://payments.example.com", zap.NewNop(),
	)
	pc := controllers.NewPaymentController(svc)

	r := gin.New()
	r.POST("/payments/webhook", pc.Webhook)
	return r
}

func postWebhook(r *gin.Engine, body []byte, sig string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sig != "" {
		req.Header.Set(controllers.SignatureHeader, sig)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func webhookBody(t *testing.T, eventID string, paymentID uuid.UUID, status string) []byte {
	t.Helper()
	body, err := json.Marshal(services.WebhookPayload{
		EventID:   eventID,
		PaymentID: paymentID.String(),
		OrderID:   uuid.New().String(),
		Status:    status,
	})
	assert.NoError(t, err)
	return body
}

func TestWebhook_InvalidSignatureRejected(t *testing.T) {
	repo := newMemPaymentRepo()
	r := newWebhookRouter(repo)

	body := webhookBody(t, "evt-1", uuid.New(), models.PaymentStatusSuccess)

	rec := postWebhook(r, body, "deadbeef")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "AUTH_ERROR")
	assert.Equal(t, 0, repo.applyCalls)

	// Missing header is the same failure.
	rec = postWebhook(r, body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, repo.applyCalls)
}

func TestWebhook_SignedDeliveryProcessed(t *testing.T) {
	repo := newMemPaymentRepo()
	payment := &models.Payment{OrderID: uuid.New(), Amount: 200, Status: models.PaymentStatusInitiated}
	assert.NoError(t, repo.Create(context.Background(), payment))
	r := newWebhookRouter(repo)

	body := webhookBody(t, "evt-1", payment.ID, models.PaymentStatusSuccess)

	rec := postWebhook(r, body, signature.Sign(webhookTestSecret, body))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, repo.applyCalls)

	var result services.CallbackResult
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, models.PaymentStatusSuccess, result.PaymentStatus)
}

func TestWebhook_RedeliveryAcknowledgedWithoutReapply(t *testing.T) {
	repo := newMemPaymentRepo()
	payment := &models.Payment{OrderID: uuid.New(), Amount: 200, Status: models.PaymentStatusInitiated}
	assert.NoError(t, repo.Create(context.Background(), payment))
	r := newWebhookRouter(repo)

	body := webhookBody(t, "evt-1", payment.ID, models.PaymentStatusSuccess)
	sig := signature.Sign(webhookTestSecret, body)

	first := postWebhook(r, body, sig)
	assert.Equal(t, http.StatusOK, first.Code)

	second := postWebhook(r, body, sig)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, 1, repo.applyCalls)

	var result services.CallbackResult
	assert.NoError(t, json.Unmarshal(second.Body.Bytes(), &result))
	assert.Equal(t, models.PaymentStatusSuccess, result.PaymentStatus)
}

func TestWebhook_UnknownPaymentReturns404(t *testing.T) {
	repo := newMemPaymentRepo()
	r := newWebhookRouter(repo)

	body := webhookBody(t, "evt-404", uuid.New(), models.PaymentStatusFailed)

	rec := postWebhook(r, body, signature.Sign(webhookTestSecret, body))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 1, repo.applyCalls)
}
