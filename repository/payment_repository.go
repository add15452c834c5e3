package repository

import (
	"context"

	"order-payment-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindWebhookEvent(ctx context.Context, eventID string) (*models.WebhookEvent, error)
	// ApplyCallback runs the full callback transaction: update the payment,
	// move the order to PAID (version+1) on SUCCESS, and record the dedupe
	// ledger row as the final statement. A crash before commit leaves no
	// trace; a commit makes the ledger row durable with the state change.
	ApplyCallback(ctx context.Context, eventID string, paymentID uuid.UUID, status string) (*models.Payment, error)
}

type GormPaymentRepository struct {
	db *gorm.DB
}

func NewGormPaymentRepository(db *gorm.DB) PaymentRepository {
	return &GormPaymentRepository{db: db}
}

func (r *GormPaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *GormPaymentRepository) FindWebhookEvent(ctx context.Context, eventID string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := r.db.WithContext(ctx).First(&event, "event_id = ?", eventID).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *GormPaymentRepository) ApplyCallback(ctx context.Context, eventID string, paymentID uuid.UUID, status string) (*models.Payment, error) {
	var payment models.Payment

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&payment, "id = ?", paymentID).Error; err != nil {
			return err
		}

		if err := tx.Model(&payment).Update("status", status).Error; err != nil {
			return err
		}

		if status == models.PaymentStatusSuccess {
			// System-driven transition: not conditioned on the order's
			// version, but atomic with the payment update.
			if err := tx.Model(&models.Order{}).
				Where("id = ?", payment.OrderID).
				Updates(map[string]interface{}{
					"status":  models.OrderStatusPaid,
					"version": gorm.Expr("version + 1"),
				}).Error; err != nil {
				return err
			}
		}

		return tx.Create(&models.WebhookEvent{
			EventID:   eventID,
			PaymentID: payment.ID,
			Status:    status,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	return &payment, nil
}
