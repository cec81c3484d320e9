package services

import (
	"eventix/src/models"
	"eventix/src/store"
	"eventix/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DiscountRequest struct {
	UserID     uuid.UUID
	EventID    uuid.UUID
	CouponID   *uuid.UUID
	VoucherID  *uuid.UUID
	PointsUsed int64
}

// Discount is the outcome of an eligibility pass. Nothing is written until
// Commit is called inside the same unit of work.
type Discount struct {
	Coupon     *models.Coupon
	Voucher    *models.Voucher
	Points     []models.Point
	PointsUsed int64
}

func (d *Discount) CouponAmount() decimal.Decimal {
	if d.Coupon == nil {
		return decimal.Zero
	}
	return d.Coupon.DiscountAmount
}

func (d *Discount) VoucherAmount() decimal.Decimal {
	if d.Voucher == nil {
		return decimal.Zero
	}
	return d.Voucher.DiscountAmount
}

func (d *Discount) Total() decimal.Decimal {
	return d.CouponAmount().Add(d.VoucherAmount()).Add(decimal.NewFromInt(d.PointsUsed))
}

func (d *Discount) Payable(subtotal decimal.Decimal) decimal.Decimal {
	payable := subtotal.Sub(d.Total())
	if payable.IsNegative() {
		return decimal.Zero
	}
	return payable
}

func (d *Discount) PointIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(d.Points))
	for _, p := range d.Points {
		ids = append(ids, p.ID)
	}
	return ids
}

func ResolveDiscount(tx store.Tx, req DiscountRequest, now time.Time) (*Discount, error) {
	if req.CouponID != nil && req.VoucherID != nil {
		return nil, types.NewError(types.ERR_INVALID_DISCOUNT_COMBINATION, "a coupon and a voucher cannot be used together")
	}
	if req.PointsUsed < 0 {
		return nil, types.NewError(types.ERR_VALIDATION, "points_used must not be negative")
	}
	d := &Discount{PointsUsed: req.PointsUsed}

	if req.CouponID != nil {
		coupon, err := tx.FindCoupon(*req.CouponID)
		if err != nil {
			if types.IsKind(err, types.ERR_NOT_FOUND) {
				return nil, types.NewError(types.ERR_INVALID_OR_EXPIRED_COUPON, "coupon %s is invalid or expired", *req.CouponID)
			}
			return nil, err
		}
		if coupon.UserID != req.UserID || !coupon.ActiveAt(now) || coupon.UseCount >= coupon.MaxUsage {
			return nil, types.NewError(types.ERR_INVALID_OR_EXPIRED_COUPON, "coupon %s is invalid or expired", coupon.ID)
		}
		d.Coupon = coupon
	}

	if req.VoucherID != nil {
		voucher, err := tx.FindVoucher(*req.VoucherID)
		if err != nil {
			if types.IsKind(err, types.ERR_NOT_FOUND) {
				return nil, types.NewError(types.ERR_INVALID_OR_EXPIRED_VOUCHER, "voucher %s is invalid or expired", *req.VoucherID)
			}
			return nil, err
		}
		if voucher.EventID != req.EventID || !voucher.ActiveAt(now) || voucher.UsageAmount >= voucher.MaxUsage {
			return nil, types.NewError(types.ERR_INVALID_OR_EXPIRED_VOUCHER, "voucher %s is invalid or expired", voucher.ID)
		}
		d.Voucher = voucher
	}

	if req.PointsUsed > 0 {
		pool, err := tx.ListSpendablePoints(req.UserID, now)
		if err != nil {
			return nil, err
		}
		var covered int64
		for _, p := range pool {
			if covered >= req.PointsUsed {
				break
			}
			d.Points = append(d.Points, p)
			covered += p.PointsAmount
		}
		if covered < req.PointsUsed {
			return nil, types.NewError(types.ERR_INSUFFICIENT_POINTS, "requested %d points but only %d are available", req.PointsUsed, covered)
		}
	}
	return d, nil
}

// Commit records the usage of every instrument in d against transactionID.
func (d *Discount) Commit(tx store.Tx, transactionID uuid.UUID) error {
	if d.Coupon != nil {
		if err := tx.AdjustCouponUsage(d.Coupon.ID, 1); err != nil {
			return err
		}
	}
	if d.Voucher != nil {
		if err := tx.AdjustVoucherUsage(d.Voucher.ID, 1); err != nil {
			return err
		}
	}
	if len(d.Points) > 0 {
		ids := d.PointIDs()
		if err := tx.SetPointsUsed(ids, true); err != nil {
			return err
		}
		if err := tx.LinkPoints(transactionID, ids); err != nil {
			return err
		}
	}
	return nil
}

// releaseDiscount reverses Commit for a transaction that will never settle.
func releaseDiscount(tx store.Tx, txn *models.Transaction) error {
	if txn.CouponID != nil {
		if err := tx.AdjustCouponUsage(*txn.CouponID, -1); err != nil {
			return err
		}
	}
	if txn.VoucherID != nil {
		if err := tx.AdjustVoucherUsage(*txn.VoucherID, -1); err != nil {
			return err
		}
	}
	points, err := tx.ListLinkedPoints(txn.ID)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(points))
	for _, p := range points {
		ids = append(ids, p.ID)
	}
	return tx.SetPointsUsed(ids, false)
}
