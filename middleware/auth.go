package middleware

import (
	"errors"
	"net/http"
	"strings"

	"order-payment-service/metrics"
	"order-payment-service/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	UserContextKey = "userID"
	RoleContextKey = "role"
)

// AuthMiddleware validates the bearer token and stores the caller's id and
// role in the request context.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	secret := []byte(jwtSecret)
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			metrics.AuthAttempts.WithLabelValues("token", "missing").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "AUTH_ERROR", "message": "Authentication token required"})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return secret, nil
		})
		if err != nil || token == nil || !token.Valid {
			metrics.AuthAttempts.WithLabelValues("token", "invalid").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "AUTH_ERROR", "message": "Invalid or expired authentication token"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			metrics.AuthAttempts.WithLabelValues("token", "invalid").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "AUTH_ERROR", "message": "Invalid token claims"})
			return
		}

		id, _ := claims["id"].(string)
		role, _ := claims["role"].(string)
		if _, err := uuid.Parse(id); err != nil {
			metrics.AuthAttempts.WithLabelValues("token", "invalid").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "AUTH_ERROR", "message": "Invalid token claims"})
			return
		}

		metrics.AuthAttempts.WithLabelValues("token", "success").Inc()
		c.Set(UserContextKey, id)
		c.Set(RoleContextKey, role)
		c.Next()
	}
}

// AdminOnly rejects callers without the ADMIN role. Must run after
// AuthMiddleware.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get(RoleContextKey)
		if roleStr, ok := role.(string); !ok || roleStr != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "FORBIDDEN", "message": "Administrator privileges required"})
			return
		}
		c.Next()
	}
}

// GetUserID returns the authenticated caller's id from the context.
func GetUserID(c *gin.Context) (uuid.UUID, error) {
	if val, ok := c.Get(UserContextKey); ok {
		if id, ok := val.(string); ok {
			return uuid.Parse(id)
		}
	}
	return uuid.Nil, errors.New("user ID not found in context")
}

// GetRole returns the authenticated caller's role from the context.
func GetRole(c *gin.Context) string {
	if val, ok := c.Get(RoleContextKey); ok {
		if role, ok := val.(string); ok {
			return role
		}
	}
	return ""
}
