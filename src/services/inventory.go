package services

import (
	"eventix/src/models"
	"eventix/src/store"
	"eventix/src/types"

	"github.com/google/uuid"
)

func CheckSeats(event *models.Event, quantity int) error {
	if event.RemainingSeats < quantity {
		return types.NewError(types.ERR_INSUFFICIENT_SEATS, "only %d seats left for event %s", event.RemainingSeats, event.ID)
	}
	return nil
}

// HoldSeats decrements the counter only if enough seats remain at write time.
func HoldSeats(tx store.Tx, eventID uuid.UUID, quantity int) error {
	return tx.AdjustSeats(eventID, -quantity)
}

// ReleaseSeats restores seats, never past the event's capacity.
func ReleaseSeats(tx store.Tx, eventID uuid.UUID, quantity int) error {
	return tx.AdjustSeats(eventID, quantity)
}

func releaseHold(tx store.Tx, txn *models.Transaction) error {
	if err := ReleaseSeats(tx, txn.EventID, txn.Quantity); err != nil {
		return err
	}
	return releaseDiscount(tx, txn)
}
