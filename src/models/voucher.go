package models

import (
	"eventix/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Voucher struct {
	ID             uuid.UUID       `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	EventID        uuid.UUID       `gorm:"type:uuid;index" json:"event_id"`
	Code           string          `gorm:"uniqueIndex" json:"code"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric(14,2)" json:"discount_amount"`
	StartDate      time.Time       `json:"start_date"`
	EndDate        time.Time       `json:"end_date"`
	MaxUsage       int             `json:"max_usage"`
	UsageAmount    int             `gorm:"check:chk_vouchers_usage_amount,usage_amount >= 0 AND usage_amount <= max_usage" json:"usage_amount"`

	types.Timestamps
}

func (v *Voucher) ActiveAt(now time.Time) bool {
	return !now.Before(v.StartDate) && now.Before(v.EndDate)
}
