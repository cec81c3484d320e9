package store

import (
	"context"
	"database/sql"
	"errors"
	"eventix/src/models"
	"eventix/src/models/scopes"
	"eventix/src/types"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

const maxAtomicAttempts = 3

// SQLSTATE codes of conflicts postgres resolves by aborting one side.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// isRetryable reports whether postgres aborted the unit of work only because
// it conflicted with a concurrent one.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
}

// RunAtomic re-runs fn from scratch when postgres reports a serialization
// failure or deadlock, up to maxAtomicAttempts times.
func (s *Gorm) RunAtomic(ctx context.Context, opts AtomicOptions, fn func(tx Tx) error) error {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	var err error
	for attempt := 1; attempt <= maxAtomicAttempts; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(&gormTx{db: tx})
		}, &sql.TxOptions{Isolation: opts.Isolation})
		if err == nil || !isRetryable(err) || ctx.Err() != nil {
			return err
		}
	}
	return fmt.Errorf("giving up after %d conflicting attempts: %w", maxAtomicAttempts, err)
}

func (s *Gorm) View(ctx context.Context, fn func(tx Tx) error) error {
	return fn(&gormTx{db: s.db.WithContext(ctx)})
}

type gormTx struct {
	db *gorm.DB
}

func lookupError(err error, entity string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(entity, id)
	}
	return fmt.Errorf("error retrieving %s %v: %w", entity, id, err)
}

func (t *gormTx) locking(q *gorm.DB, forUpdate bool) *gorm.DB {
	if forUpdate {
		return q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func (t *gormTx) FindUser(id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := t.db.Model(&models.User{}).Scopes(scopes.WithID(id)).First(&user).Error; err != nil {
		return nil, lookupError(err, "user", id)
	}
	return &user, nil
}

func (t *gormTx) FindEvent(id uuid.UUID, forUpdate bool) (*models.Event, error) {
	var event models.Event
	q := t.locking(t.db.Model(&models.Event{}), forUpdate)
	if err := q.Scopes(scopes.WithID(id)).First(&event).Error; err != nil {
		return nil, lookupError(err, "event", id)
	}
	return &event, nil
}

func (t *gormTx) FindCoupon(id uuid.UUID) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := t.db.Model(&models.Coupon{}).Scopes(scopes.WithID(id)).First(&coupon).Error; err != nil {
		return nil, lookupError(err, "coupon", id)
	}
	return &coupon, nil
}

func (t *gormTx) FindVoucher(id uuid.UUID) (*models.Voucher, error) {
	var voucher models.Voucher
	if err := t.db.Model(&models.Voucher{}).Scopes(scopes.WithID(id)).First(&voucher).Error; err != nil {
		return nil, lookupError(err, "voucher", id)
	}
	return &voucher, nil
}

func (t *gormTx) FindTransaction(id uuid.UUID, forUpdate bool) (*models.Transaction, error) {
	var txn models.Transaction
	q := t.locking(t.db.Model(&models.Transaction{}), forUpdate)
	if err := q.Scopes(scopes.WithID(id)).First(&txn).Error; err != nil {
		return nil, lookupError(err, "transaction", id)
	}
	return &txn, nil
}

func (t *gormTx) FindTicketByCode(code string) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := t.db.Model(&models.Ticket{}).Where("ticket_code = ?", code).First(&ticket).Error; err != nil {
		return nil, lookupError(err, "ticket", code)
	}
	return &ticket, nil
}

func (t *gormTx) ListTransactions(filter TransactionFilter) ([]models.Transaction, error) {
	var txns []models.Transaction
	q := t.db.Model(&models.Transaction{})
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.EventID != nil {
		q = q.Where("event_id = ?", *filter.EventID)
	}
	if filter.Status != "" {
		q = q.Scopes(scopes.WithStatus(filter.Status))
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Order("created_at desc").Find(&txns).Error; err != nil {
		return nil, fmt.Errorf("error listing transactions: %w", err)
	}
	return txns, nil
}

func (t *gormTx) ListSpendablePoints(userID uuid.UUID, now time.Time) ([]models.Point, error) {
	var points []models.Point
	if err := t.db.Model(&models.Point{}).Scopes(scopes.Spendable(userID, now)).Find(&points).Error; err != nil {
		return nil, fmt.Errorf("error listing points: %w", err)
	}
	return points, nil
}

func (t *gormTx) ListLinkedPoints(transactionID uuid.UUID) ([]models.Point, error) {
	var points []models.Point
	err := t.db.
		Model(&models.Point{}).
		Joins("JOIN transaction_points ON transaction_points.point_id = points.id").
		Where("transaction_points.transaction_id = ?", transactionID).
		Order("points.expires_at asc").
		Find(&points).
		Error
	if err != nil {
		return nil, fmt.Errorf("error listing points of transaction %s: %w", transactionID, err)
	}
	return points, nil
}

func (t *gormTx) ListTickets(transactionID uuid.UUID) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := t.db.
		Model(&models.Ticket{}).
		Where("transaction_id = ?", transactionID).
		Order("created_at asc").
		Order("ticket_code asc").
		Find(&tickets).
		Error
	if err != nil {
		return nil, fmt.Errorf("error listing tickets of transaction %s: %w", transactionID, err)
	}
	return tickets, nil
}

func (t *gormTx) listIDs(q *gorm.DB) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := q.Order("id asc").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("error listing transaction ids: %w", err)
	}
	return ids, nil
}

func (t *gormTx) ListExpiredIDs(before time.Time) ([]uuid.UUID, error) {
	return t.listIDs(t.db.Model(&models.Transaction{}).
		Scopes(scopes.WithPendingPaymentStatus, scopes.ExpiredBefore(before)))
}

func (t *gormTx) ListStaleIDs(updatedBefore time.Time) ([]uuid.UUID, error) {
	return t.listIDs(t.db.Model(&models.Transaction{}).
		Scopes(scopes.WithStatus(types.TRANSACTION_WAITING_CONFIRMATION), scopes.UpdatedBefore(updatedBefore)))
}

func (t *gormTx) CreateTransaction(txn *models.Transaction) error {
	if err := t.db.Omit(clause.Associations).Create(txn).Error; err != nil {
		return fmt.Errorf("error creating transaction: %w", err)
	}
	return nil
}

func (t *gormTx) TransitionStatus(id uuid.UUID, change StatusChange) error {
	if err := change.check(id); err != nil {
		return err
	}
	updates := map[string]any{
		"status":     change.To,
		"updated_at": change.At,
	}
	if change.PaymentProof != nil {
		updates["payment_proof"] = *change.PaymentProof
	}
	res := t.db.
		Model(&models.Transaction{}).
		Scopes(scopes.WithID(id), scopes.WithStatus(change.From)).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("error updating transaction %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return types.NewError(types.ERR_INVALID_STATE, "transaction %s is no longer %s", id, change.From)
	}
	return nil
}

func (t *gormTx) ExpirePending(before time.Time, at time.Time) (int64, error) {
	res := t.db.
		Model(&models.Transaction{}).
		Scopes(scopes.WithPendingPaymentStatus, scopes.ExpiredBefore(before)).
		Updates(map[string]any{
			"status":     types.TRANSACTION_EXPIRED,
			"updated_at": at,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("error expiring transactions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (t *gormTx) AdjustSeats(eventID uuid.UUID, delta int) error {
	q := t.db.Model(&models.Event{}).Scopes(scopes.WithID(eventID))
	if delta < 0 {
		res := q.
			Where("remaining_seats >= ?", -delta).
			Update("remaining_seats", gorm.Expr("remaining_seats - ?", -delta))
		if res.Error != nil {
			return fmt.Errorf("error holding seats of event %s: %w", eventID, res.Error)
		}
		if res.RowsAffected == 0 {
			return types.NewError(types.ERR_INSUFFICIENT_SEATS, "not enough seats left for event %s", eventID)
		}
		return nil
	}
	res := q.Update("remaining_seats", gorm.Expr("LEAST(remaining_seats + ?, total_seats)", delta))
	if res.Error != nil {
		return fmt.Errorf("error releasing seats of event %s: %w", eventID, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("event", eventID)
	}
	return nil
}

func (t *gormTx) adjustUsage(model any, column string, id uuid.UUID, delta int, exhausted error) error {
	q := t.db.Model(model).Scopes(scopes.WithID(id))
	if delta > 0 {
		q = q.Where(fmt.Sprintf("%s + ? <= max_usage", column), delta)
	} else {
		q = q.Where(fmt.Sprintf("%s >= ?", column), -delta)
	}
	res := q.Update(column, gorm.Expr(fmt.Sprintf("%s + ?", column), delta))
	if res.Error != nil {
		return fmt.Errorf("error updating %s of %s: %w", column, id, res.Error)
	}
	if res.RowsAffected == 0 && delta > 0 {
		return exhausted
	}
	return nil
}

func (t *gormTx) AdjustCouponUsage(id uuid.UUID, delta int) error {
	return t.adjustUsage(&models.Coupon{}, "use_count", id, delta,
		types.NewError(types.ERR_INVALID_OR_EXPIRED_COUPON, "coupon %s has reached its usage limit", id))
}

func (t *gormTx) AdjustVoucherUsage(id uuid.UUID, delta int) error {
	return t.adjustUsage(&models.Voucher{}, "usage_amount", id, delta,
		types.NewError(types.ERR_INVALID_OR_EXPIRED_VOUCHER, "voucher %s has reached its usage limit", id))
}

func (t *gormTx) SetPointsUsed(ids []uuid.UUID, used bool) error {
	if len(ids) == 0 {
		return nil
	}
	res := t.db.
		Model(&models.Point{}).
		Scopes(scopes.WithIDs(ids...)).
		Where("is_used = ?", !used).
		Update("is_used", used)
	if res.Error != nil {
		return fmt.Errorf("error updating points: %w", res.Error)
	}
	if used && res.RowsAffected != int64(len(ids)) {
		return types.NewError(types.ERR_INSUFFICIENT_POINTS, "points were spent by another transaction")
	}
	return nil
}

func (t *gormTx) LinkPoints(transactionID uuid.UUID, pointIDs []uuid.UUID) error {
	if len(pointIDs) == 0 {
		return nil
	}
	links := make([]models.TransactionPoint, 0, len(pointIDs))
	for _, pid := range pointIDs {
		links = append(links, models.TransactionPoint{TransactionID: transactionID, PointID: pid})
	}
	if err := t.db.Create(&links).Error; err != nil {
		return fmt.Errorf("error linking points to transaction %s: %w", transactionID, err)
	}
	return nil
}

func (t *gormTx) CreateTicket(ticket *models.Ticket) error {
	if err := t.db.Create(ticket).Error; err != nil {
		return fmt.Errorf("error creating ticket: %w", err)
	}
	return nil
}
