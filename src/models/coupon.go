package models

import (
	"eventix/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Coupon struct {
	ID             uuid.UUID       `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID         uuid.UUID       `gorm:"type:uuid;index" json:"user_id"`
	Code           string          `gorm:"uniqueIndex" json:"code"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric(14,2)" json:"discount_amount"`
	StartDate      time.Time       `json:"start_date"`
	EndDate        time.Time       `json:"end_date"`
	MaxUsage       int             `json:"max_usage"`
	UseCount       int             `gorm:"check:chk_coupons_use_count,use_count >= 0 AND use_count <= max_usage" json:"use_count"`

	types.Timestamps
}

func (c *Coupon) ActiveAt(now time.Time) bool {
	return !now.Before(c.StartDate) && now.Before(c.EndDate)
}
