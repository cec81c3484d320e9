package store

import (
	"context"
	"database/sql"
	"eventix/src/models"
	"eventix/src/types"
	"time"

	"github.com/google/uuid"
)

type AtomicOptions struct {
	Isolation sql.IsolationLevel
	Timeout   time.Duration
}

// StatusChange is applied only while the row still holds From.
type StatusChange struct {
	From         types.TransactionStatus
	To           types.TransactionStatus
	At           time.Time
	PaymentProof *string
}

// check rejects changes that leave a terminal status or target an unknown one.
func (c StatusChange) check(id uuid.UUID) error {
	if c.From.IsTerminal() || !c.To.Valid() || c.From == c.To {
		return types.NewError(types.ERR_INVALID_STATE, "transaction %s cannot move from %s to %s", id, c.From, c.To)
	}
	return nil
}

type TransactionFilter struct {
	UserID  *uuid.UUID
	EventID *uuid.UUID
	Status  types.TransactionStatus
	Limit   int
}

// Tx is the set of reads and guarded writes available inside a unit of work.
// Writes never read-modify-write counters; every counter change is a
// conditional update evaluated by the store.
type Tx interface {
	FindUser(id uuid.UUID) (*models.User, error)
	FindEvent(id uuid.UUID, forUpdate bool) (*models.Event, error)
	FindCoupon(id uuid.UUID) (*models.Coupon, error)
	FindVoucher(id uuid.UUID) (*models.Voucher, error)
	FindTransaction(id uuid.UUID, forUpdate bool) (*models.Transaction, error)
	FindTicketByCode(code string) (*models.Ticket, error)

	ListTransactions(filter TransactionFilter) ([]models.Transaction, error)
	ListSpendablePoints(userID uuid.UUID, now time.Time) ([]models.Point, error)
	ListLinkedPoints(transactionID uuid.UUID) ([]models.Point, error)
	ListTickets(transactionID uuid.UUID) ([]models.Ticket, error)
	ListExpiredIDs(before time.Time) ([]uuid.UUID, error)
	ListStaleIDs(updatedBefore time.Time) ([]uuid.UUID, error)

	CreateTransaction(txn *models.Transaction) error
	TransitionStatus(id uuid.UUID, change StatusChange) error
	ExpirePending(before time.Time, at time.Time) (int64, error)
	AdjustSeats(eventID uuid.UUID, delta int) error
	AdjustCouponUsage(id uuid.UUID, delta int) error
	AdjustVoucherUsage(id uuid.UUID, delta int) error
	SetPointsUsed(ids []uuid.UUID, used bool) error
	LinkPoints(transactionID uuid.UUID, pointIDs []uuid.UUID) error
	CreateTicket(ticket *models.Ticket) error
}

type Store interface {
	// RunAtomic commits every write made through tx, or none of them.
	RunAtomic(ctx context.Context, opts AtomicOptions, fn func(tx Tx) error) error
	// View runs fn outside of an explicit transaction.
	View(ctx context.Context, fn func(tx Tx) error) error
}

func notFound(entity string, id any) error {
	return types.NewError(types.ERR_NOT_FOUND, "%s %v not found", entity, id)
}
