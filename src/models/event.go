package models

import (
	"eventix/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Event struct {
	ID             uuid.UUID       `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	OrganizerID    uuid.UUID       `gorm:"type:uuid;index" json:"organizer_id"`
	Title          string          `json:"title,omitempty"`
	Price          decimal.Decimal `gorm:"type:numeric(14,2)" json:"price"`
	TotalSeats     int             `gorm:"check:chk_events_total_seats,total_seats >= 0" json:"total_seats"`
	RemainingSeats int             `gorm:"check:chk_events_remaining_seats,remaining_seats >= 0 AND remaining_seats <= total_seats" json:"remaining_seats"`
	StartDate      time.Time       `json:"start_date"`
	EndDate        time.Time       `json:"end_date"`

	Organizer User `gorm:"foreignKey:organizer_id" json:"-"`

	types.Timestamps
}

// Covers reports whether the calendar day of t falls within the event's run.
// Each side keeps the calendar day of its own location, so an attend date
// parsed as UTC matches event dates loaded in the database time zone.
func (e *Event) Covers(t time.Time) bool {
	day := civilDay(t)
	return !day.Before(civilDay(e.StartDate)) && !day.After(civilDay(e.EndDate))
}

func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
