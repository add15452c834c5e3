package services

import (
	"context"
	"errors"
	"time"

	"order-payment-service/metrics"
	"order-payment-service/models"
	"order-payment-service/repository"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const tokenTTL = 2 * time.Hour

type SignupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"omitempty,oneof=USER ADMIN"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type AuthService struct {
	userRepo  repository.UserRepository
	jwtSecret []byte
	logger    *zap.Logger
}

func NewAuthService(userRepo repository.UserRepository, jwtSecret string, logger *zap.Logger) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecret),
		logger:    logger,
	}
}

func (s *AuthService) Signup(ctx context.Context, req *SignupRequest) (*models.User, *ServiceError) {
	role := models.RoleUser
	if req.Role == models.RoleAdmin {
		role = models.RoleAdmin
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
	if err != nil {
		return nil, ErrInternal("Failed to create user", err)
	}

	user := &models.User{
		Email:    req.Email,
		Password: string(hashed),
		Role:     role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			metrics.AuthAttempts.WithLabelValues("signup", "error").Inc()
			return nil, ErrValidation("Email already registered")
		}
		s.logger.Error("Failed to create user", zap.Error(err))
		metrics.AuthAttempts.WithLabelValues("signup", "error").Inc()
		return nil, ErrInternal("Failed to create user", err)
	}

	metrics.AuthAttempts.WithLabelValues("signup", "success").Inc()
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, *ServiceError) {
	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("login", "invalid_credentials").Inc()
		return nil, ErrAuthentication("Invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		metrics.AuthAttempts.WithLabelValues("login", "invalid_credentials").Inc()
		return nil, ErrAuthentication("Invalid email or password")
	}

	claims := jwt.MapClaims{
		"id":   user.ID.String(),
		"role": user.Role,
		"exp":  time.Now().Add(tokenTTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		s.logger.Error("Failed to sign token", zap.Error(err))
		return nil, ErrInternal("Failed to log in", err)
	}

	metrics.AuthAttempts.WithLabelValues("login", "success").Inc()
	return &LoginResponse{Token: token, User: user}, nil
}
