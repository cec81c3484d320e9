package services

import (
	"context"
	"database/sql"
	"eventix/src/lib/metrics"
	"eventix/src/models"
	"eventix/src/store"
	"eventix/src/types"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CreateInput struct {
	EventID       uuid.UUID
	Quantity      int
	AttendDate    time.Time
	PaymentMethod types.PaymentMethod
	CouponID      *uuid.UUID
	VoucherID     *uuid.UUID
	PointsUsed    int64
}

type PaymentProof struct {
	Filename    string
	ContentType string
	Body        []byte
}

func (s *TransactionService) atomic(isolation sql.IsolationLevel) store.AtomicOptions {
	return store.AtomicOptions{Isolation: isolation, Timeout: s.opts.AtomicTimeout}
}

func (s *TransactionService) fail(operation string, err error) error {
	metrics.ObserveFailure(operation, string(types.KindOf(err)))
	return err
}

func validateCreate(in CreateInput) error {
	if in.Quantity < 1 || in.Quantity > 3 {
		return types.NewError(types.ERR_VALIDATION, "quantity must be between 1 and 3")
	}
	if !in.PaymentMethod.Valid() {
		return types.NewError(types.ERR_VALIDATION, "unsupported payment method %q", in.PaymentMethod)
	}
	if in.PointsUsed < 0 {
		return types.NewError(types.ERR_VALIDATION, "points_used must not be negative")
	}
	if in.CouponID != nil && in.VoucherID != nil {
		return types.NewError(types.ERR_INVALID_DISCOUNT_COMBINATION, "a coupon and a voucher cannot be used together")
	}
	return nil
}

// Create reserves seats and discounts for a purchase. A purchase whose
// discounts cover the full price is confirmed immediately.
func (s *TransactionService) Create(ctx context.Context, p types.Principal, in CreateInput) (*models.Transaction, error) {
	if err := validateCreate(in); err != nil {
		return nil, s.fail("create", err)
	}
	now := s.clock.Now()
	var txn models.Transaction
	var user *models.User
	// Purchases of one event queue on its row lock and see the committed seat count.
	err := s.store.RunAtomic(ctx, s.atomic(sql.LevelReadCommitted), func(tx store.Tx) error {
		var err error
		user, err = tx.FindUser(p.ID)
		if err != nil {
			return err
		}
		event, err := tx.FindEvent(in.EventID, true)
		if err != nil {
			return err
		}
		if !event.Covers(in.AttendDate) {
			return types.NewError(types.ERR_VALIDATION, "attend_date must fall between %s and %s",
				event.StartDate.Format("2006-01-02"), event.EndDate.Format("2006-01-02"))
		}
		if err := CheckSeats(event, in.Quantity); err != nil {
			return err
		}
		discount, err := ResolveDiscount(tx, DiscountRequest{
			UserID:     p.ID,
			EventID:    event.ID,
			CouponID:   in.CouponID,
			VoucherID:  in.VoucherID,
			PointsUsed: in.PointsUsed,
		}, now)
		if err != nil {
			return err
		}

		subtotal := event.Price.Mul(decimal.NewFromInt(int64(in.Quantity)))
		payable := discount.Payable(subtotal)
		status := types.TRANSACTION_PENDING_PAYMENT
		expiresAt := now.Add(s.opts.PaymentWindow)
		if payable.IsZero() {
			status = types.TRANSACTION_CONFIRMED
			expiresAt = now
		}
		txn = models.Transaction{
			ID:             uuid.New(),
			UserID:         p.ID,
			EventID:        event.ID,
			Quantity:       in.Quantity,
			UnitPrice:      event.Price,
			TotalPayAmount: payable,
			Status:         status,
			ExpiresAt:      &expiresAt,
			AttendDate:     in.AttendDate,
			PaymentMethod:  in.PaymentMethod,
			CouponID:       in.CouponID,
			VoucherID:      in.VoucherID,
			PointsUsed:     in.PointsUsed,
		}
		txn.CreatedAt = now
		txn.UpdatedAt = now

		if err := HoldSeats(tx, event.ID, in.Quantity); err != nil {
			return err
		}
		if err := tx.CreateTransaction(&txn); err != nil {
			return err
		}
		return discount.Commit(tx, txn.ID)
	})
	if err != nil {
		return nil, s.fail("create", err)
	}
	s.afterCommit(user, txn, nil)
	return &txn, nil
}

// SubmitPayment attaches an uploaded payment proof to a pending transaction.
func (s *TransactionService) SubmitPayment(ctx context.Context, p types.Principal, id uuid.UUID, proof PaymentProof) (*models.Transaction, error) {
	if len(proof.Body) == 0 {
		return nil, s.fail("submit_payment", types.NewError(types.ERR_VALIDATION, "payment proof is empty"))
	}
	if s.uploader == nil {
		return nil, s.fail("submit_payment", fmt.Errorf("no uploader configured"))
	}
	var current *models.Transaction
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		current, err = tx.FindTransaction(id, false)
		return err
	})
	if err != nil {
		return nil, s.fail("submit_payment", err)
	}
	if current.UserID != p.ID {
		return nil, s.fail("submit_payment", types.NewError(types.ERR_UNAUTHORIZED, "transaction %s does not belong to you", id))
	}
	if current.Status != types.TRANSACTION_PENDING_PAYMENT {
		return nil, s.fail("submit_payment", types.NewError(types.ERR_INVALID_STATE, "transaction %s is %s", id, current.Status))
	}
	now := s.clock.Now()
	if isPastDeadline(current, now) {
		return nil, s.fail("submit_payment", s.forceExpire(ctx, id, now))
	}

	name := fmt.Sprintf("payment-proofs/%s/%s%s", id, uuid.New(), filepath.Ext(proof.Filename))
	url, err := s.uploader.Upload(ctx, name, proof.ContentType, proof.Body)
	if err != nil {
		return nil, s.fail("submit_payment", fmt.Errorf("error uploading payment proof: %w", err))
	}

	var txn models.Transaction
	var user *models.User
	now = s.clock.Now()
	err = s.store.RunAtomic(ctx, s.atomic(sql.LevelReadCommitted), func(tx store.Tx) error {
		locked, err := tx.FindTransaction(id, true)
		if err != nil {
			return err
		}
		if locked.Status != types.TRANSACTION_PENDING_PAYMENT {
			return types.NewError(types.ERR_INVALID_STATE, "transaction %s is %s", id, locked.Status)
		}
		if isPastDeadline(locked, now) {
			return types.NewError(types.ERR_TRANSACTION_EXPIRED, "transaction %s has expired", id)
		}
		err = tx.TransitionStatus(id, store.StatusChange{
			From:         types.TRANSACTION_PENDING_PAYMENT,
			To:           types.TRANSACTION_WAITING_CONFIRMATION,
			At:           now,
			PaymentProof: &url,
		})
		if err != nil {
			return err
		}
		txn = *locked
		txn.Status = types.TRANSACTION_WAITING_CONFIRMATION
		txn.PaymentProof = &url
		txn.UpdatedAt = now
		user, err = tx.FindUser(txn.UserID)
		return err
	})
	if err != nil {
		if rmErr := s.uploader.Remove(ctx, url); rmErr != nil {
			s.logger.Error("error removing orphaned payment proof", zap.String("url", url), zap.Error(rmErr))
		}
		if types.IsKind(err, types.ERR_TRANSACTION_EXPIRED) {
			err = s.forceExpire(ctx, id, now)
		}
		return nil, s.fail("submit_payment", err)
	}
	s.afterCommit(user, txn, nil)
	return &txn, nil
}

func isPastDeadline(txn *models.Transaction, now time.Time) bool {
	return txn.ExpiresAt != nil && !now.Before(*txn.ExpiresAt)
}

// forceExpire expires a lapsed transaction and returns the error reported to
// the caller that discovered it.
func (s *TransactionService) forceExpire(ctx context.Context, id uuid.UUID, now time.Time) error {
	if err := s.expireOne(ctx, id, now); err != nil && !types.IsKind(err, types.ERR_INVALID_STATE) {
		s.logger.Error("error expiring transaction", zap.String("id", id.String()), zap.Error(err))
	}
	return types.NewError(types.ERR_TRANSACTION_EXPIRED, "transaction %s has expired", id)
}

// OrganizerAction confirms or rejects a transaction awaiting review.
func (s *TransactionService) OrganizerAction(ctx context.Context, p types.Principal, id uuid.UUID, action types.OrganizerAction) (*models.Transaction, []models.Ticket, error) {
	switch action {
	case types.ACTION_CONFIRM, types.ACTION_REJECT:
	default:
		return nil, nil, s.fail("organizer_action", types.NewError(types.ERR_VALIDATION, "unknown action %q", action))
	}
	now := s.clock.Now()
	var txn models.Transaction
	var tickets []models.Ticket
	var customer *models.User
	err := s.store.RunAtomic(ctx, s.atomic(sql.LevelReadCommitted), func(tx store.Tx) error {
		locked, err := tx.FindTransaction(id, true)
		if err != nil {
			return err
		}
		event, err := tx.FindEvent(locked.EventID, false)
		if err != nil {
			return err
		}
		if event.OrganizerID != p.ID {
			return types.NewError(types.ERR_UNAUTHORIZED, "only the organizer of event %s can review its transactions", event.ID)
		}
		if locked.Status != types.TRANSACTION_WAITING_CONFIRMATION {
			return types.NewError(types.ERR_INVALID_STATE, "transaction %s is %s", id, locked.Status)
		}
		txn = *locked
		change := store.StatusChange{From: types.TRANSACTION_WAITING_CONFIRMATION, At: now}
		switch action {
		case types.ACTION_REJECT:
			if err := releaseHold(tx, &txn); err != nil {
				return err
			}
			change.To = types.TRANSACTION_REJECTED
			if err := tx.TransitionStatus(id, change); err != nil {
				return err
			}
		case types.ACTION_CONFIRM:
			change.To = types.TRANSACTION_CONFIRMED
			if err := tx.TransitionStatus(id, change); err != nil {
				return err
			}
			tickets, err = s.issuer.Issue(tx, &txn)
			if err != nil {
				return err
			}
		}
		txn.Status = change.To
		txn.UpdatedAt = now
		customer, err = tx.FindUser(txn.UserID)
		return err
	})
	if err != nil {
		return nil, nil, s.fail("organizer_action", err)
	}
	s.afterCommit(customer, txn, tickets)
	return &txn, tickets, nil
}

// GenerateFreeTicket issues tickets for a confirmed zero-amount transaction.
// Repeated calls return the tickets issued by the first one.
func (s *TransactionService) GenerateFreeTicket(ctx context.Context, p types.Principal, id uuid.UUID) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := s.store.RunAtomic(ctx, s.atomic(sql.LevelReadCommitted), func(tx store.Tx) error {
		txn, err := tx.FindTransaction(id, true)
		if err != nil {
			return err
		}
		if txn.UserID != p.ID {
			return types.NewError(types.ERR_UNAUTHORIZED, "transaction %s does not belong to you", id)
		}
		if !txn.IsFree() {
			return types.NewError(types.ERR_INVALID_STATE, "transaction %s is not free", id)
		}
		if txn.Status != types.TRANSACTION_CONFIRMED {
			return types.NewError(types.ERR_INVALID_STATE, "transaction %s is %s", id, txn.Status)
		}
		tickets, err = s.issuer.Issue(tx, txn)
		return err
	})
	if err != nil {
		return nil, s.fail("generate_free_ticket", err)
	}
	return tickets, nil
}

func canView(p types.Principal, txn *models.Transaction, event *models.Event) bool {
	return txn.UserID == p.ID || event.OrganizerID == p.ID || p.Role == types.ROLE_ADMIN
}

// Get returns a transaction with its tickets to its owner or the event organizer.
func (s *TransactionService) Get(ctx context.Context, p types.Principal, id uuid.UUID) (*models.Transaction, error) {
	var txn *models.Transaction
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		txn, err = tx.FindTransaction(id, false)
		if err != nil {
			return err
		}
		event, err := tx.FindEvent(txn.EventID, false)
		if err != nil {
			return err
		}
		if !canView(p, txn, event) {
			return types.NewError(types.ERR_UNAUTHORIZED, "transaction %s is not visible to you", id)
		}
		txn.Tickets, err = tx.ListTickets(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// List returns the caller's transactions, or an event's transactions when
// the caller organizes that event.
func (s *TransactionService) List(ctx context.Context, p types.Principal, filter store.TransactionFilter) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := s.store.View(ctx, func(tx store.Tx) error {
		if filter.EventID != nil {
			event, err := tx.FindEvent(*filter.EventID, false)
			if err != nil {
				return err
			}
			if event.OrganizerID != p.ID && p.Role != types.ROLE_ADMIN {
				return types.NewError(types.ERR_UNAUTHORIZED, "only the organizer of event %s can list its transactions", event.ID)
			}
			filter.UserID = nil
		} else {
			filter.UserID = &p.ID
		}
		var err error
		txns, err = tx.ListTransactions(filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txns, nil
}

// TicketByCode returns a ticket to its holder.
func (s *TransactionService) TicketByCode(ctx context.Context, p types.Principal, code string) (*models.Ticket, error) {
	var ticket *models.Ticket
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		ticket, err = tx.FindTicketByCode(code)
		if err != nil {
			return err
		}
		if ticket.UserID != p.ID {
			return types.NewError(types.ERR_UNAUTHORIZED, "ticket %s does not belong to you", code)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}
