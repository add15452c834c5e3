package routes

import (
	"net/http"
	"time"

	"order-payment-service/controllers"
	"order-payment-service/metrics"
	"order-payment-service/middleware"

	"github.com/gin-gonic/gin"
)

// Register wires all routes. The webhook endpoint carries no bearer auth; the
// HMAC signature is its authentication.
func Register(
	r *gin.Engine,
	jwtSecret string,
	ac *controllers.AuthController,
	oc *controllers.OrderController,
	pc *controllers.PaymentController,
) {
	general := middleware.NewRateLimiter(100, 100)
	authLimit := middleware.NewRateLimiter(1, 5)
	createLimit := middleware.NewRateLimiter(10, 10)

	r.Use(general.Middleware())

	authRoutes := r.Group("/auth")
	authRoutes.Use(authLimit.Middleware())
	authRoutes.POST("/signup", ac.Signup)
	authRoutes.POST("/login", ac.Login)

	orderRoutes := r.Group("/orders")
	orderRoutes.Use(middleware.AuthMiddleware(jwtSecret))
	orderRoutes.POST("", createLimit.Middleware(), oc.CreateOrder)
	orderRoutes.GET("", oc.ListOrders)
	orderRoutes.GET("/:id", oc.GetOrderByID)
	orderRoutes.PATCH("/:id/status", middleware.AdminOnly(), oc.UpdateStatus)

	paymentRoutes := r.Group("/payments")
	paymentRoutes.POST("/initiate", middleware.AuthMiddleware(jwtSecret), pc.InitiatePayment)
	paymentRoutes.POST("/webhook", pc.Webhook)

	r.GET("/metrics", metrics.Handler())
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "timestamp": time.Now().UTC().Format(time.RFC3339)})
	})
}
