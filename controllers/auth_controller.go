package controllers

import (
	"net/http"

	"order-payment-service/services"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	authService *services.AuthService
}

func NewAuthController(authService *services.AuthService) *AuthController {
	return &AuthController{authService: authService}
}

// Signup handles POST /auth/signup.
func (ac *AuthController) Signup(c *gin.Context) {
	var req services.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": "Invalid input data", "details": err.Error()})
		return
	}

	user, serviceErr := ac.authService.Signup(c.Request.Context(), &req)
	if serviceErr != nil {
		abortWithServiceError(c, serviceErr)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// Login handles POST /auth/login.
func (ac *AuthController) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": "Invalid input data", "details": err.Error()})
		return
	}

	resp, serviceErr := ac.authService.Login(c.Request.Context(), &req)
	if serviceErr != nil {
		abortWithServiceError(c, serviceErr)
		return
	}
	c.JSON(http.StatusOK, resp)
}
