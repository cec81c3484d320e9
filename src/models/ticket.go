package models

import (
	"eventix/src/types"

	"github.com/google/uuid"
)

type Ticket struct {
	ID            uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	TicketCode    string    `gorm:"uniqueIndex;not null" json:"ticket_code"`
	EventID       uuid.UUID `gorm:"type:uuid;index" json:"event_id"`
	UserID        uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	TransactionID uuid.UUID `gorm:"type:uuid;index" json:"transaction_id"`

	types.Timestamps
}
