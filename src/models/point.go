package models

import (
	"eventix/src/types"
	"time"

	"github.com/google/uuid"
)

// Point is a single loyalty grant. Grants are spent whole.
type Point struct {
	ID           uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID       uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	PointsAmount int64     `json:"points_amount"`
	CreditedAt   time.Time `json:"credited_at"`
	ExpiresAt    time.Time `gorm:"index" json:"expires_at"`
	IsUsed       bool      `gorm:"default:false" json:"is_used"`
	IsExpired    bool      `gorm:"default:false" json:"is_expired"`

	types.Timestamps
}

func (p *Point) SpendableAt(now time.Time) bool {
	return !p.IsUsed && !p.IsExpired && p.ExpiresAt.After(now)
}
