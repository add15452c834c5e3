package controllers

import (
	"io"
	"net/http"

	"order-payment-service/middleware"
	"order-payment-service/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SignatureHeader carries the provider's HMAC over the raw request body.
const SignatureHeader = "X-Signature"

type PaymentController struct {
	paymentService *services.PaymentService
}

func NewPaymentController(paymentService *services.PaymentService) *PaymentController {
	return &PaymentController{paymentService: paymentService}
}

type initiatePaymentRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

// InitiatePayment handles POST /payments/initiate.
func (pc *PaymentController) InitiatePayment(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "AUTH_ERROR", "message": "Unauthorized"})
		return
	}

	var req initiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": "Invalid input data", "details": err.Error()})
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": "Invalid order ID format"})
		return
	}

	intent, serviceErr := pc.paymentService.InitiatePayment(c.Request.Context(), userID, middleware.GetRole(c), orderID)
	if serviceErr != nil {
		abortWithServiceError(c, serviceErr)
		return
	}
	c.JSON(http.StatusOK, intent)
}

// Webhook handles POST /payments/webhook. The body is read raw because the
// signature covers the exact bytes the provider sent.
func (pc *PaymentController) Webhook(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": "Failed to read request body"})
		return
	}

	result, serviceErr := pc.paymentService.HandleCallback(c.Request.Context(), rawBody, c.GetHeader(SignatureHeader))
	if serviceErr != nil {
		abortWithServiceError(c, serviceErr)
		return
	}
	c.JSON(http.StatusOK, result)
}
