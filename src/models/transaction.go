package models

import (
	"eventix/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Transaction struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`

	UserID         uuid.UUID               `gorm:"type:uuid;index" json:"user_id"`
	EventID        uuid.UUID               `gorm:"type:uuid;index" json:"event_id"`
	Quantity       int                     `gorm:"check:chk_transactions_quantity,quantity BETWEEN 1 AND 3" json:"quantity"`
	UnitPrice      decimal.Decimal         `gorm:"type:numeric(14,2)" json:"unit_price"`
	TotalPayAmount decimal.Decimal         `gorm:"type:numeric(14,2)" json:"total_pay_amount"`
	Status         types.TransactionStatus `gorm:"index;default:'pending_payment'" json:"status"`
	ExpiresAt      *time.Time              `gorm:"index" json:"expires_at,omitempty"`
	AttendDate     time.Time               `json:"attend_date"`
	PaymentMethod  types.PaymentMethod     `json:"payment_method"`
	CouponID       *uuid.UUID              `gorm:"type:uuid;check:chk_transactions_single_discount,NOT (coupon_id IS NOT NULL AND voucher_id IS NOT NULL)" json:"coupon_id,omitempty"`
	VoucherID      *uuid.UUID              `gorm:"type:uuid" json:"voucher_id,omitempty"`
	PointsUsed     int64                   `json:"points_used"`
	PaymentProof   *string                 `json:"payment_proof,omitempty"`

	User    User     `gorm:"foreignKey:user_id" json:"-"`
	Event   Event    `gorm:"foreignKey:event_id" json:"-"`
	Points  []Point  `gorm:"many2many:transaction_points;" json:"-"`
	Tickets []Ticket `gorm:"foreignKey:transaction_id" json:"tickets,omitempty"`

	types.Timestamps
}

// TransactionPoint links a transaction to the points grants it consumed.
type TransactionPoint struct {
	TransactionID uuid.UUID `gorm:"primaryKey;type:uuid"`
	PointID       uuid.UUID `gorm:"primaryKey;type:uuid"`
}

func (t *Transaction) IsFree() bool {
	return t.TotalPayAmount.IsZero()
}

func (t *Transaction) Subtotal() decimal.Decimal {
	return t.UnitPrice.Mul(decimal.NewFromInt(int64(t.Quantity)))
}
