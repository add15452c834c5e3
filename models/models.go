package models

import (
	"time"

	"github.com/google/uuid"
)

// Order statuses
const (
	OrderStatusPending   = "PENDING"
	OrderStatusPaid      = "PAID"
	OrderStatusCancelled = "CANCELLED"
)

// Payment statuses
const (
	PaymentStatusInitiated = "INITIATED"
	PaymentStatusSuccess   = "SUCCESS"
	PaymentStatusFailed    = "FAILED"
)

// User roles
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

func ValidOrderStatus(s string) bool {
	return s == OrderStatusPending || s == OrderStatusPaid || s == OrderStatusCancelled
}

func ValidPaymentStatus(s string) bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed
}

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"not null" json:"-"`
	Role      string    `gorm:"type:varchar(10);not null;default:'USER'" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Order is only ever mutated through the version-checked status update; Version
// goes up by exactly 1 on every successful transition.
type Order struct {
	ID          uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID      uuid.UUID   `gorm:"type:uuid;not null;index;uniqueIndex:idx_user_client_token" json:"user_id"`
	ClientToken string      `gorm:"not null;uniqueIndex:idx_user_client_token" json:"client_token"`
	Status      string      `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	Version     int         `gorm:"not null;default:1" json:"version"`
	Items       []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

type OrderItem struct {
	ID      uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	SKU     string    `gorm:"not null" json:"sku"`
	Qty     int       `gorm:"not null" json:"qty"`
}

type Payment struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	Amount    int       `gorm:"not null" json:"amount"` // minor currency units
	Status    string    `gorm:"type:varchar(20);not null" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// WebhookEvent is the dedupe ledger: one row per provider event id, inserted in
// the same transaction as the Payment/Order update and never updated afterwards.
type WebhookEvent struct {
	EventID     string    `gorm:"primaryKey" json:"event_id"`
	PaymentID   uuid.UUID `gorm:"type:uuid;not null" json:"payment_id"`
	Status      string    `gorm:"type:varchar(20);not null" json:"status"`
	ProcessedAt time.Time `gorm:"autoCreateTime" json:"processed_at"`
}

// PaymentEvent is published to Kafka after a callback commits (best-effort).
type PaymentEvent struct {
	Type      string    `json:"type"` // "payment_succeeded" | "payment_failed"
	OrderID   string    `json:"order_id"`
	PaymentID string    `json:"payment_id"`
	Amount    int       `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}
