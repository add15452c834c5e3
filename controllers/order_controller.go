package controllers

import (
	"net/http"
	"strconv"

	"order-payment-service/middleware"
	"order-payment-service/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type OrderController struct {
	orderService *services.OrderService
}

func NewOrderController(orderService *services.OrderService) *OrderController {
	return &OrderController{orderService: orderService}
}

func abortWithServiceError(c *gin.Context, err *services.ServiceError) {
	c.JSON(err.StatusCode, gin.H{"error": err.Code, "message": err.Message})
}

// CreateOrder handles POST /orders. Replays of the same client token return
// the original order with 200 instead of 201.
func (oc *OrderController) CreateOrder(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "AUTH_ERROR", "message": "Unauthorized"})
		return
	}

	var req services.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": "Invalid input data", "details": err.Error()})
		return
	}

	order, created, serviceErr := oc.orderService.CreateOrder(c.Request.Context(), userID, &req)
	if serviceErr != nil {
		abortWithServiceError(c, serviceErr)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, order)
}

// ListOrders handles GET /orders with pagination, status filter and SKU search.
func (oc *OrderController) ListOrders(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "AUTH_ERROR", "message": "Unauthorized"})
		return
	}

	page, limit := parsePaginationParams(c)
	status := c.Query("status")
	sku := c.Query("q")

	result, serviceErr := oc.orderService.ListOrders(c.Request.Context(), userID, middleware.GetRole(c), status, sku, page, limit)
	if serviceErr != nil {
		abortWithServiceError(c, serviceErr)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetOrderByID handles GET /orders/:id.
func (oc *OrderController) GetOrderByID(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "AUTH_ERROR", "message": "Unauthorized"})
		return
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": "Invalid order ID format"})
		return
	}

	order, serviceErr := oc.orderService.GetOrder(c.Request.Context(), userID, middleware.GetRole(c), orderID)
	if serviceErr != nil {
		abortWithServiceError(c, serviceErr)
		return
	}
	c.JSON(http.StatusOK, order)
}

type updateStatusRequest struct {
	Status  string `json:"status" binding:"required"`
	Version int    `json:"version" binding:"required,min=1"`
}

// UpdateStatus handles PATCH /orders/:id/status (admin only). A stale version
// yields 409 and no state change.
func (oc *OrderController) UpdateStatus(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": "Invalid order ID format"})
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": "Invalid input data", "details": err.Error()})
		return
	}

	order, serviceErr := oc.orderService.UpdateStatus(c.Request.Context(), orderID, req.Status, req.Version)
	if serviceErr != nil {
		abortWithServiceError(c, serviceErr)
		return
	}
	c.JSON(http.StatusOK, order)
}

func parsePaginationParams(c *gin.Context) (int, int) {
	const maxLimit = 100

	page := 1
	limit := 10
	if p, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(c.DefaultQuery("limit", "10")); err == nil && l > 0 {
		limit = l
		if limit > maxLimit {
			limit = maxLimit
		}
	}
	return page, limit
}
