package types

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any

type TransactionStatus string

const (
	TRANSACTION_PENDING_PAYMENT      TransactionStatus = "pending_payment"
	TRANSACTION_WAITING_CONFIRMATION TransactionStatus = "waiting_for_admin_confirmation"
	TRANSACTION_CONFIRMED            TransactionStatus = "confirmed"
	TRANSACTION_REJECTED             TransactionStatus = "rejected"
	TRANSACTION_EXPIRED              TransactionStatus = "expired"
	TRANSACTION_CANCELED             TransactionStatus = "canceled"
)

func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TRANSACTION_CONFIRMED, TRANSACTION_REJECTED, TRANSACTION_EXPIRED, TRANSACTION_CANCELED:
		return true
	}
	return false
}

func (s TransactionStatus) Valid() bool {
	switch s {
	case TRANSACTION_PENDING_PAYMENT, TRANSACTION_WAITING_CONFIRMATION:
		return true
	}
	return s.IsTerminal()
}

type OrganizerAction string

const (
	ACTION_CONFIRM OrganizerAction = "confirm"
	ACTION_REJECT  OrganizerAction = "reject"
)

type Role string

const (
	ROLE_CUSTOMER  Role = "customer"
	ROLE_ORGANIZER Role = "organizer"
	ROLE_ADMIN     Role = "admin"
)

type PaymentMethod string

const (
	PAYMENT_BANK_TRANSFER PaymentMethod = "bank_transfer"
	PAYMENT_E_WALLET      PaymentMethod = "e_wallet"
	PAYMENT_CASH          PaymentMethod = "cash"
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PAYMENT_BANK_TRANSFER, PAYMENT_E_WALLET, PAYMENT_CASH:
		return true
	}
	return false
}

// Principal is the authenticated caller attached by the auth middleware.
type Principal struct {
	ID   uuid.UUID
	Role Role
}

type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type CreateTransactionRequestBody struct {
	EventID       string  `json:"event_id" binding:"required,uuid"`
	Quantity      int     `json:"quantity" binding:"required,min=1,max=3"`
	AttendDate    string  `json:"attend_date" binding:"required,attenddate"`
	PaymentMethod string  `json:"payment_method" binding:"required,paymentmethod"`
	CouponID      *string `json:"coupon_id,omitempty" binding:"omitempty,uuid"`
	VoucherID     *string `json:"voucher_id,omitempty" binding:"omitempty,uuid"`
	PointsUsed    int64   `json:"points_used,omitempty" binding:"omitempty,min=0"`
}

type OrganizerActionRequestBody struct {
	Action string `json:"action" binding:"required,oneof=confirm reject"`
}

type TransactionURIParams struct {
	ID string `uri:"id" binding:"required,uuid"`
}

type TicketURIParams struct {
	Code string `uri:"code" binding:"required"`
}

type TransactionQueryFilters struct {
	Status  string `form:"status" binding:"omitempty,oneof=pending_payment waiting_for_admin_confirmation confirmed rejected expired canceled"`
	EventID string `form:"event_id" binding:"omitempty,uuid"`
}

// Handler processes one queued message. A nil return acknowledges it.
type Handler func(ctx context.Context, payload string) error
