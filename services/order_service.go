package services

import (
	"context"
	"errors"
	"strings"

	"order-payment-service/cache"
	"order-payment-service/metrics"
	"order-payment-service/models"
	"order-payment-service/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CreateOrderItem struct {
	SKU string `json:"sku" binding:"required"`
	Qty int    `json:"qty" binding:"required,min=1"`
}

type CreateOrderRequest struct {
	Items       []CreateOrderItem `json:"items" binding:"required,min=1,dive"`
	ClientToken string            `json:"client_token" binding:"required"`
}

type OrderListResponse struct {
	Data       []models.Order `json:"data"`
	Pagination Pagination     `json:"pagination"`
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

type OrderService struct {
	orderRepo repository.OrderRepository
	cache     *cache.Cache
	logger    *zap.Logger
}

func NewOrderService(orderRepo repository.OrderRepository, orderCache *cache.Cache, logger *zap.Logger) *OrderService {
	return &OrderService{
		orderRepo: orderRepo,
		cache:     orderCache,
		logger:    logger,
	}
}

// CreateOrder creates an order exactly once per (user, client token) pair.
// A replay returns the original order verbatim, ignoring the new request's
// items. The bool reports whether a new order was created.
func (s *OrderService) CreateOrder(ctx context.Context, userID uuid.UUID, req *CreateOrderRequest) (*models.Order, bool, *ServiceError) {
	if len(req.Items) == 0 {
		return nil, false, ErrValidation("At least one item is required")
	}
	if strings.TrimSpace(req.ClientToken) == "" {
		return nil, false, ErrValidation("Client token is required")
	}
	items := make([]models.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		sku := strings.TrimSpace(item.SKU)
		if sku == "" {
			return nil, false, ErrValidation("SKU is required")
		}
		if item.Qty < 1 {
			return nil, false, ErrValidation("Quantity must be at least 1")
		}
		items = append(items, models.OrderItem{SKU: sku, Qty: item.Qty})
	}

	// Idempotency pre-check. A concurrent duplicate can still slip past this
	// read, so the insert path below handles the unique violation as well.
	existing, err := s.orderRepo.FindByUserAndToken(ctx, userID, req.ClientToken)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("Failed to check for existing order", zap.Error(err))
		return nil, false, ErrInternal("Failed to create order", err)
	}

	order := &models.Order{
		UserID:      userID,
		ClientToken: req.ClientToken,
		Status:      models.OrderStatusPending,
		Version:     1,
		Items:       items,
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the race; the winner's order is the canonical one.
			existing, ferr := s.orderRepo.FindByUserAndToken(ctx, userID, req.ClientToken)
			if ferr != nil {
				s.logger.Error("Failed to load order after duplicate insert", zap.Error(ferr))
				return nil, false, ErrInternal("Failed to create order", ferr)
			}
			return existing, false, nil
		}
		s.logger.Error("Failed to create order", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, false, ErrInternal("Failed to create order", err)
	}

	metrics.OrdersCreated.WithLabelValues(order.Status).Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", userID.String()),
	)
	return order, true, nil
}

// UpdateStatus transitions an order under optimistic concurrency control. The
// caller supplies the version it read; any intervening writer turns the call
// into a Conflict with no state change. Any status may move to any other.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus string, expectedVersion int) (*models.Order, *ServiceError) {
	if !models.ValidOrderStatus(newStatus) {
		return nil, ErrValidation("Invalid status")
	}
	if expectedVersion < 1 {
		return nil, ErrValidation("Version must be a positive integer")
	}

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound("Order not found")
		}
		s.logger.Error("Failed to load order", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, ErrInternal("Failed to update order", err)
	}

	if order.Version != expectedVersion {
		return nil, ErrConflict("Order has been modified by another process")
	}

	// Conditional write closes the race between the read above and this
	// update; zero rows matched means another writer got there first.
	rows, err := s.orderRepo.UpdateStatusChecked(ctx, orderID, newStatus, expectedVersion)
	if err != nil {
		s.logger.Error("Failed to update order status", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, ErrInternal("Failed to update order", err)
	}
	if rows == 0 {
		return nil, ErrConflict("Order has been modified by another process")
	}

	updated, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		s.logger.Error("Failed to reload order after update", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, ErrInternal("Failed to update order", err)
	}

	s.logger.Info("Order status updated",
		zap.String("order_id", orderID.String()),
		zap.String("status", newStatus),
		zap.Int("version", updated.Version),
	)
	return updated, nil
}

// GetOrder returns one order, enforcing ownership unless the caller is admin.
// Reads populate the order cache; only committed state transitions evict it.
func (s *OrderService) GetOrder(ctx context.Context, userID uuid.UUID, role string, orderID uuid.UUID) (*models.Order, *ServiceError) {
	var cached models.Order
	if s.cache.Get(ctx, cache.OrderKey(orderID.String()), &cached) {
		if role != models.RoleAdmin && cached.UserID != userID {
			return nil, ErrForbidden("Access to this order is denied")
		}
		return &cached, nil
	}

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound("Order not found")
		}
		s.logger.Error("Failed to load order", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, ErrInternal("Failed to fetch order", err)
	}

	if role != models.RoleAdmin && order.UserID != userID {
		return nil, ErrForbidden("Access to this order is denied")
	}

	s.cache.Set(ctx, cache.OrderKey(orderID.String()), order)
	return order, nil
}

// ListOrders returns a paginated listing; admins see all users' orders.
func (s *OrderService) ListOrders(ctx context.Context, userID uuid.UUID, role string, status, sku string, page, limit int) (*OrderListResponse, *ServiceError) {
	if status != "" && !models.ValidOrderStatus(status) {
		return nil, ErrValidation("Invalid status")
	}

	filter := repository.OrderFilter{
		Status: status,
		SKU:    sku,
		Page:   page,
		Limit:  limit,
	}
	if role != models.RoleAdmin {
		filter.UserID = &userID
	}

	orders, total, err := s.orderRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list orders", zap.Error(err))
		return nil, ErrInternal("Failed to fetch orders", err)
	}

	return &OrderListResponse{
		Data: orders,
		Pagination: Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: totalPages(total, limit),
		},
	}, nil
}

func totalPages(total int64, limit int) int64 {
	if limit == 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}
