package scopes

import (
	"eventix/src/types"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func WithID(id uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", id)
	}
}

func WithIDs(ids ...uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("id IN (?)", ids)
	}
}

func WithStatus(status types.TransactionStatus) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("status = ?", status)
	}
}

func WithPendingPaymentStatus(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", types.TRANSACTION_PENDING_PAYMENT)
}

func ExpiredBefore(t time.Time) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("expires_at < ?", t)
	}
}

func UpdatedBefore(t time.Time) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("updated_at < ?", t)
	}
}

// Spendable selects points grants that can still back a discount.
func Spendable(userID uuid.UUID, now time.Time) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.
			Where("user_id = ?", userID).
			Where("is_used = ?", false).
			Where("is_expired = ?", false).
			Where("expires_at > ?", now).
			Order("expires_at asc").
			Order("id asc")
	}
}
