package repository

import (
	"context"

	"order-payment-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderFilter narrows List results. A nil UserID means all users (admin view).
type OrderFilter struct {
	UserID *uuid.UUID
	Status string
	SKU    string
	Page   int
	Limit  int
}

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByUserAndToken(ctx context.Context, userID uuid.UUID, clientToken string) (*models.Order, error)
	// UpdateStatusChecked applies the status change only if the row still
	// holds expectedVersion, bumping version by 1. Returns the number of rows
	// matched; zero means another writer won the race.
	UpdateStatusChecked(ctx context.Context, id uuid.UUID, status string, expectedVersion int) (int64, error)
	List(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error)
}

type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: db}
}

// Create inserts the order and its items in one transaction. A duplicate
// (user_id, client_token) pair surfaces as gorm.ErrDuplicatedKey.
func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormOrderRepository) FindByUserAndToken(ctx context.Context, userID uuid.UUID, clientToken string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ? AND client_token = ?", userID, clientToken).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormOrderRepository) UpdateStatusChecked(ctx context.Context, id uuid.UUID, status string, expectedVersion int) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"status":  status,
			"version": expectedVersion + 1,
		})
	return res.RowsAffected, res.Error
}

func (r *GormOrderRepository) List(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Order{})
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.SKU != "" {
		query = query.Where(
			"EXISTS (SELECT 1 FROM order_items WHERE order_items.order_id = orders.id AND order_items.sku ILIKE ?)",
			"%"+filter.SKU+"%",
		)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := query.
		Preload("Items").
		Offset(offset).
		Limit(filter.Limit).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}
