package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"order-payment-service/cache"
	"order-payment-service/kafka"
	"order-payment-service/metrics"
	"order-payment-service/models"
	"order-payment-service/repository"
	"order-payment-service/retry"
	"order-payment-service/signature"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WebhookPayload is the provider callback body. The signature is computed
// over the raw bytes, not this decoded form.
type WebhookPayload struct {
	EventID   string `json:"event_id"`
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
}

type PaymentIntentResponse struct {
	PaymentID   uuid.UUID `json:"payment_id"`
	OrderID     uuid.UUID `json:"order_id"`
	Amount      int       `json:"amount"`
	RedirectURL string    `json:"redirect_url"`
}

type CallbackResult struct {
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
}

type PaymentService struct {
	paymentRepo   repository.PaymentRepository
	orderRepo     repository.OrderRepository
	cache         *cache.Cache
	publisher     kafka.EventPublisher
	retryCfg      retry.Config
	webhookSecret string
	unitPrice     int
	redirectBase  string
	logger        *zap.Logger
}

func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	orderRepo repository.OrderRepository,
	orderCache *cache.Cache,
	publisher kafka.EventPublisher,
	retryCfg retry.Config,
	webhookSecret string,
	unitPrice int,
	redirectBase string,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		paymentRepo:   paymentRepo,
		orderRepo:     orderRepo,
		cache:         orderCache,
		publisher:     publisher,
		retryCfg:      retryCfg,
		webhookSecret: webhookSecret,
		unitPrice:     unitPrice,
		redirectBase:  redirectBase,
		logger:        logger,
	}
}

// InitiatePayment creates a payment intent for a PENDING order owned by the
// requester (admins may initiate for any order). The amount is derived
// deterministically from the order's items. Not idempotent: calling it twice
// for the same order creates two payment records.
func (s *PaymentService) InitiatePayment(ctx context.Context, requesterID uuid.UUID, role string, orderID uuid.UUID) (*PaymentIntentResponse, *ServiceError) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound("Order not found")
		}
		s.logger.Error("Failed to load order", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, ErrInternal("Failed to initiate payment", err)
	}

	if role != models.RoleAdmin && order.UserID != requesterID {
		return nil, ErrForbidden("Access to this order is denied")
	}

	if order.Status != models.OrderStatusPending {
		return nil, ErrInvalidState("Only pending orders can be paid")
	}

	amount := 0
	for _, item := range order.Items {
		amount += item.Qty * s.unitPrice
	}

	payment := &models.Payment{
		OrderID: order.ID,
		Amount:  amount,
		Status:  models.PaymentStatusInitiated,
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		s.logger.Error("Failed to create payment", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, ErrInternal("Failed to initiate payment", err)
	}

	s.logger.Info("Payment initiated",
		zap.String("payment_id", payment.ID.String()),
		zap.String("order_id", order.ID.String()),
		zap.Int("amount", amount),
	)
	return &PaymentIntentResponse{
		PaymentID:   payment.ID,
		OrderID:     order.ID,
		Amount:      amount,
		RedirectURL: fmt.Sprintf("%s/pay/%s", s.redirectBase, payment.ID),
	}, nil
}

// HandleCallback applies a provider callback to payment and order state
// exactly once per distinct event id. Signature verification happens before
// any state read; redelivered events return the recorded result untouched.
func (s *PaymentService) HandleCallback(ctx context.Context, rawBody []byte, providedSignature string) (*CallbackResult, *ServiceError) {
	if !signature.Verify(s.webhookSecret, rawBody, providedSignature) {
		metrics.PaymentWebhooks.WithLabelValues("invalid_signature").Inc()
		return nil, ErrAuthentication("Invalid webhook signature")
	}

	var payload WebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		metrics.PaymentWebhooks.WithLabelValues("error").Inc()
		return nil, ErrValidation("Malformed webhook payload")
	}
	if payload.EventID == "" {
		metrics.PaymentWebhooks.WithLabelValues("error").Inc()
		return nil, ErrValidation("Event ID is required")
	}
	paymentID, err := uuid.Parse(payload.PaymentID)
	if err != nil {
		metrics.PaymentWebhooks.WithLabelValues("error").Inc()
		return nil, ErrValidation("Payment ID must be a UUID")
	}
	if !models.ValidPaymentStatus(payload.Status) {
		metrics.PaymentWebhooks.WithLabelValues("error").Inc()
		return nil, ErrValidation("Invalid payment status")
	}

	// Dedupe ledger: a previously recorded event id means the transition was
	// already applied; redelivery (expected and frequent) gets the stored
	// result and no state change.
	if event, err := s.paymentRepo.FindWebhookEvent(ctx, payload.EventID); err == nil {
		metrics.PaymentWebhooks.WithLabelValues("duplicate").Inc()
		s.logger.Info("Duplicate webhook event, returning recorded result",
			zap.String("event_id", payload.EventID),
			zap.String("payment_id", event.PaymentID.String()),
		)
		return &CallbackResult{Status: "processed", PaymentStatus: event.Status}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.PaymentWebhooks.WithLabelValues("error").Inc()
		s.logger.Error("Failed to consult webhook ledger", zap.String("event_id", payload.EventID), zap.Error(err))
		return nil, ErrInternal("Failed to process webhook", err)
	}

	var payment *models.Payment
	err = retry.WithRetry(ctx, s.retryCfg, func() error {
		var applyErr error
		payment, applyErr = s.paymentRepo.ApplyCallback(ctx, payload.EventID, paymentID, payload.Status)
		return applyErr
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.PaymentWebhooks.WithLabelValues("error").Inc()
			return nil, ErrNotFound("Payment not found")
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Concurrent delivery of the same event committed first; its
			// ledger row now holds the result.
			if event, ferr := s.paymentRepo.FindWebhookEvent(ctx, payload.EventID); ferr == nil {
				metrics.PaymentWebhooks.WithLabelValues("duplicate").Inc()
				return &CallbackResult{Status: "processed", PaymentStatus: event.Status}, nil
			}
		}
		metrics.PaymentWebhooks.WithLabelValues("error").Inc()
		s.logger.Error("Webhook apply failed",
			zap.String("event_id", payload.EventID),
			zap.String("payment_id", payload.PaymentID),
			zap.Error(err),
		)
		return nil, ErrInternal("Failed to process webhook", err)
	}

	// Post-commit side effects are best-effort: the transaction is durable
	// and must not be rolled back if either of these fails.
	s.cache.Invalidate(ctx, cache.OrderKey(payment.OrderID.String()))
	s.publishEvent(ctx, payment, payload.Status)

	metrics.PaymentWebhooks.WithLabelValues("success").Inc()
	s.logger.Info("Webhook processed",
		zap.String("event_id", payload.EventID),
		zap.String("payment_id", payment.ID.String()),
		zap.String("status", payload.Status),
	)
	return &CallbackResult{Status: "processed", PaymentStatus: payload.Status}, nil
}

func (s *PaymentService) publishEvent(ctx context.Context, payment *models.Payment, status string) {
	if s.publisher == nil {
		return
	}
	eventType := "payment_failed"
	if status == models.PaymentStatusSuccess {
		eventType = "payment_succeeded"
	}
	event := models.PaymentEvent{
		Type:      eventType,
		OrderID:   payment.OrderID.String(),
		PaymentID: payment.ID.String(),
		Amount:    payment.Amount,
		Timestamp: time.Now().UTC(),
	}
	if err := s.publisher.SendPaymentEvent(ctx, event); err != nil {
		s.logger.Warn("Payment event publish failed",
			zap.String("payment_id", payment.ID.String()),
			zap.Error(err),
		)
	}
}
