package services

import (
	"context"
	"errors"
	"eventix/src/models"
	"eventix/src/store"
	"eventix/src/types"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateHoldsSeatsPendingPayment(t *testing.T) {
	f := newFixture(t)

	txn := f.create(t, 2)

	assert.Equal(t, types.TRANSACTION_PENDING_PAYMENT, txn.Status)
	assert.True(t, txn.TotalPayAmount.Equal(decimal.NewFromInt(200000)))
	require.NotNil(t, txn.ExpiresAt)
	assert.Equal(t, testNow.Add(2*time.Hour), *txn.ExpiresAt)
	assert.Equal(t, 8, f.remainingSeats(t))

	f.svc.Wait()
	assert.Equal(t, []string{"Complete your payment"}, f.mailer.subjects())
	assert.Equal(t, []string{"transactions.pending_payment"}, f.publisher.topics)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := f.input(4)
	_, err := f.svc.Create(ctx, f.customerPrincipal(), in)
	assert.True(t, types.IsKind(err, types.ERR_VALIDATION))

	in = f.input(1)
	in.AttendDate = time.Date(2026, 11, 13, 0, 0, 0, 0, time.UTC)
	_, err = f.svc.Create(ctx, f.customerPrincipal(), in)
	assert.True(t, types.IsKind(err, types.ERR_VALIDATION))

	in = f.input(1)
	in.EventID = uuid.New()
	_, err = f.svc.Create(ctx, f.customerPrincipal(), in)
	assert.True(t, types.IsKind(err, types.ERR_NOT_FOUND))

	assert.Equal(t, 10, f.remainingSeats(t))
}

func TestCreateInsufficientSeats(t *testing.T) {
	f := newFixture(t)
	event := f.store.AddEvent(models.Event{
		OrganizerID:    f.organizer.ID,
		Price:          decimal.NewFromInt(50000),
		TotalSeats:     2,
		RemainingSeats: 1,
		StartDate:      f.event.StartDate,
		EndDate:        f.event.EndDate,
	})
	in := f.input(2)
	in.EventID = event.ID

	_, err := f.svc.Create(context.Background(), f.customerPrincipal(), in)
	assert.True(t, types.IsKind(err, types.ERR_INSUFFICIENT_SEATS))
}

func TestCreateFullyDiscountedIsConfirmed(t *testing.T) {
	f := newFixture(t)
	coupon := f.store.AddCoupon(models.Coupon{
		UserID:         f.customer.ID,
		Code:           "WELCOME",
		DiscountAmount: decimal.NewFromInt(300000),
		StartDate:      testNow.Add(-time.Hour),
		EndDate:        testNow.Add(30 * 24 * time.Hour),
		MaxUsage:       1,
	})
	in := f.input(2)
	in.CouponID = &coupon.ID

	txn, err := f.svc.Create(context.Background(), f.customerPrincipal(), in)
	require.NoError(t, err)

	assert.Equal(t, types.TRANSACTION_CONFIRMED, txn.Status)
	assert.True(t, txn.TotalPayAmount.IsZero())
	assert.Empty(t, f.tickets(t, txn.ID))
	assert.Equal(t, 8, f.remainingSeats(t))

	_, err = f.svc.Create(context.Background(), f.customerPrincipal(), in)
	assert.True(t, types.IsKind(err, types.ERR_INVALID_OR_EXPIRED_COUPON))
}

func TestCreateWithCouponAndVoucher(t *testing.T) {
	f := newFixture(t)
	coupon := f.store.AddCoupon(models.Coupon{UserID: f.customer.ID, DiscountAmount: decimal.NewFromInt(10000), MaxUsage: 1,
		StartDate: testNow.Add(-time.Hour), EndDate: testNow.Add(time.Hour)})
	voucher := f.store.AddVoucher(models.Voucher{EventID: f.event.ID, DiscountAmount: decimal.NewFromInt(10000), MaxUsage: 5,
		StartDate: testNow.Add(-time.Hour), EndDate: testNow.Add(time.Hour)})
	in := f.input(1)
	in.CouponID = &coupon.ID
	in.VoucherID = &voucher.ID

	_, err := f.svc.Create(context.Background(), f.customerPrincipal(), in)
	assert.True(t, types.IsKind(err, types.ERR_INVALID_DISCOUNT_COMBINATION))
	assert.Equal(t, 10, f.remainingSeats(t))
}

func TestRejectRestoresSeatsAndDiscounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	voucher := f.store.AddVoucher(models.Voucher{EventID: f.event.ID, DiscountAmount: decimal.NewFromInt(20000), MaxUsage: 5,
		StartDate: testNow.Add(-time.Hour), EndDate: testNow.Add(time.Hour)})
	first := f.store.AddPoint(models.Point{UserID: f.customer.ID, PointsAmount: 5000, ExpiresAt: testNow.Add(24 * time.Hour)})
	second := f.store.AddPoint(models.Point{UserID: f.customer.ID, PointsAmount: 7000, ExpiresAt: testNow.Add(48 * time.Hour)})

	in := f.input(2)
	in.VoucherID = &voucher.ID
	in.PointsUsed = 10000
	txn, err := f.svc.Create(ctx, f.customerPrincipal(), in)
	require.NoError(t, err)
	assert.True(t, txn.TotalPayAmount.Equal(decimal.NewFromInt(170000)))
	for _, id := range []uuid.UUID{first.ID, second.ID} {
		p, _ := f.store.FindPoint(id)
		assert.True(t, p.IsUsed)
	}

	f.submit(t, txn.ID)
	rejected, tickets, err := f.svc.OrganizerAction(ctx, f.organizerPrincipal(), txn.ID, types.ACTION_REJECT)
	require.NoError(t, err)
	assert.Empty(t, tickets)
	assert.Equal(t, types.TRANSACTION_REJECTED, rejected.Status)

	assert.Equal(t, 10, f.remainingSeats(t))
	for _, id := range []uuid.UUID{first.ID, second.ID} {
		p, _ := f.store.FindPoint(id)
		assert.False(t, p.IsUsed)
	}
	require.NoError(t, f.store.View(ctx, func(tx store.Tx) error {
		v, err := tx.FindVoucher(voucher.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, v.UsageAmount)
		return nil
	}))

	_, _, err = f.svc.OrganizerAction(ctx, f.organizerPrincipal(), txn.ID, types.ACTION_REJECT)
	assert.True(t, types.IsKind(err, types.ERR_INVALID_STATE))
}

func TestConfirmIssuesOneTicketPerSeat(t *testing.T) {
	f := newFixture(t, WithCodeGenerator(sequentialCodes(0)))
	ctx := context.Background()
	txn := f.create(t, 3)
	f.submit(t, txn.ID)

	confirmed, tickets, err := f.svc.OrganizerAction(ctx, f.organizerPrincipal(), txn.ID, types.ACTION_CONFIRM)
	require.NoError(t, err)
	assert.Equal(t, types.TRANSACTION_CONFIRMED, confirmed.Status)
	require.Len(t, tickets, 3)
	codes := map[string]bool{}
	for _, ticket := range tickets {
		assert.Equal(t, f.customer.ID, ticket.UserID)
		assert.Equal(t, f.event.ID, ticket.EventID)
		codes[ticket.TicketCode] = true
	}
	assert.Len(t, codes, 3)
	assert.Equal(t, 7, f.remainingSeats(t))

	f.svc.Wait()
	var confirmation *sentMail
	for i := range f.mailer.sent {
		if f.mailer.sent[i].Subject == "Your tickets are confirmed" {
			confirmation = &f.mailer.sent[i]
		}
	}
	require.NotNil(t, confirmation)
	assert.Contains(t, confirmation.HTML, "TIX-000000000001")
}

func TestConfirmIsAllOrNothing(t *testing.T) {
	f := newFixture(t, WithCodeGenerator(sequentialCodes(2)))
	ctx := context.Background()
	txn := f.create(t, 2)
	f.submit(t, txn.ID)

	_, _, err := f.svc.OrganizerAction(ctx, f.organizerPrincipal(), txn.ID, types.ACTION_CONFIRM)
	require.Error(t, err)
	assert.Equal(t, types.ERR_INTERNAL, types.KindOf(err))

	assert.Equal(t, types.TRANSACTION_WAITING_CONFIRMATION, f.transaction(t, txn.ID).Status)
	assert.Empty(t, f.tickets(t, txn.ID))
}

func TestOrganizerActionRequiresEventOrganizer(t *testing.T) {
	f := newFixture(t)
	txn := f.create(t, 1)
	f.submit(t, txn.ID)

	_, _, err := f.svc.OrganizerAction(context.Background(), f.customerPrincipal(), txn.ID, types.ACTION_CONFIRM)
	assert.True(t, types.IsKind(err, types.ERR_UNAUTHORIZED))
	assert.Equal(t, types.TRANSACTION_WAITING_CONFIRMATION, f.transaction(t, txn.ID).Status)

	_, _, err = f.svc.OrganizerAction(context.Background(), f.organizerPrincipal(), uuid.New(), types.ACTION_CONFIRM)
	assert.True(t, types.IsKind(err, types.ERR_NOT_FOUND))
}

func TestGenerateFreeTicketIsIdempotent(t *testing.T) {
	f := newFixture(t, WithCodeGenerator(sequentialCodes(0)))
	ctx := context.Background()
	coupon := f.store.AddCoupon(models.Coupon{UserID: f.customer.ID, DiscountAmount: decimal.NewFromInt(500000), MaxUsage: 1,
		StartDate: testNow.Add(-time.Hour), EndDate: testNow.Add(time.Hour)})
	in := f.input(2)
	in.CouponID = &coupon.ID
	txn, err := f.svc.Create(ctx, f.customerPrincipal(), in)
	require.NoError(t, err)

	first, err := f.svc.GenerateFreeTicket(ctx, f.customerPrincipal(), txn.ID)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := f.svc.GenerateFreeTicket(ctx, f.customerPrincipal(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, f.tickets(t, txn.ID), 2)

	_, err = f.svc.GenerateFreeTicket(ctx, types.Principal{ID: uuid.New()}, txn.ID)
	assert.True(t, types.IsKind(err, types.ERR_UNAUTHORIZED))
}

func TestGenerateFreeTicketRejectsPaidTransactions(t *testing.T) {
	f := newFixture(t)
	txn := f.create(t, 1)

	_, err := f.svc.GenerateFreeTicket(context.Background(), f.customerPrincipal(), txn.ID)
	assert.True(t, types.IsKind(err, types.ERR_INVALID_STATE))
}

func TestConcurrentCreateForLastSeat(t *testing.T) {
	f := newFixture(t)
	event := f.store.AddEvent(models.Event{
		OrganizerID:    f.organizer.ID,
		Price:          decimal.NewFromInt(75000),
		TotalSeats:     1,
		RemainingSeats: 1,
		StartDate:      f.event.StartDate,
		EndDate:        f.event.EndDate,
	})
	in := f.input(1)
	in.EventID = event.ID

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Create(context.Background(), f.customerPrincipal(), in)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, types.IsKind(err, types.ERR_INSUFFICIENT_SEATS))
	}
	assert.Equal(t, 1, succeeded)
}

func TestSubmitPaymentMovesToWaiting(t *testing.T) {
	f := newFixture(t)
	txn := f.create(t, 1)
	f.clock.Advance(30 * time.Minute)

	waiting := f.submit(t, txn.ID)

	assert.Equal(t, types.TRANSACTION_WAITING_CONFIRMATION, waiting.Status)
	require.NotNil(t, waiting.PaymentProof)
	assert.Contains(t, f.uploader.uploads, *waiting.PaymentProof)
	assert.Equal(t, testNow.Add(30*time.Minute), f.transaction(t, txn.ID).UpdatedAt)
}

func TestSubmitPaymentChecksOwnerAndState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	txn := f.create(t, 1)
	proof := PaymentProof{Filename: "r.jpg", ContentType: "image/jpeg", Body: []byte("x")}

	_, err := f.svc.SubmitPayment(ctx, types.Principal{ID: uuid.New()}, txn.ID, proof)
	assert.True(t, types.IsKind(err, types.ERR_UNAUTHORIZED))

	_, err = f.svc.SubmitPayment(ctx, f.customerPrincipal(), txn.ID, PaymentProof{})
	assert.True(t, types.IsKind(err, types.ERR_VALIDATION))

	f.submit(t, txn.ID)
	_, err = f.svc.SubmitPayment(ctx, f.customerPrincipal(), txn.ID, proof)
	assert.True(t, types.IsKind(err, types.ERR_INVALID_STATE))
}

func TestSubmitPaymentAfterDeadlineExpires(t *testing.T) {
	f := newFixture(t)
	txn := f.create(t, 2)
	f.clock.Advance(2 * time.Hour)

	_, err := f.svc.SubmitPayment(context.Background(), f.customerPrincipal(), txn.ID, PaymentProof{
		Filename: "late.png", ContentType: "image/png", Body: []byte("late"),
	})
	assert.True(t, types.IsKind(err, types.ERR_TRANSACTION_EXPIRED))
	assert.Empty(t, f.uploader.uploads)
	assert.Equal(t, types.TRANSACTION_EXPIRED, f.transaction(t, txn.ID).Status)
	assert.Equal(t, 10, f.remainingSeats(t))
}

func TestSubmitPaymentDeadlinePassingDuringUploadExpires(t *testing.T) {
	f := newFixture(t)
	txn := f.create(t, 2)
	f.clock.Advance(2*time.Hour - time.Second)
	f.uploader.onUpload = func() { f.clock.Advance(time.Minute) }

	_, err := f.svc.SubmitPayment(context.Background(), f.customerPrincipal(), txn.ID, PaymentProof{
		Filename: "slow.png", ContentType: "image/png", Body: []byte("slow"),
	})
	assert.True(t, types.IsKind(err, types.ERR_TRANSACTION_EXPIRED))
	assert.Len(t, f.uploader.removed, 1)
	assert.Empty(t, f.uploader.uploads)
	assert.Equal(t, types.TRANSACTION_EXPIRED, f.transaction(t, txn.ID).Status)
	assert.Equal(t, 10, f.remainingSeats(t))
}

func TestSubmitPaymentRemovesUploadWhenTransitionFails(t *testing.T) {
	f := newFixture(t)
	txn := f.create(t, 1)
	f.uploader.onUpload = func() {
		_ = f.store.RunAtomic(context.Background(), store.AtomicOptions{}, func(tx store.Tx) error {
			return tx.TransitionStatus(txn.ID, store.StatusChange{
				From: types.TRANSACTION_PENDING_PAYMENT,
				To:   types.TRANSACTION_CANCELED,
				At:   testNow,
			})
		})
	}

	_, err := f.svc.SubmitPayment(context.Background(), f.customerPrincipal(), txn.ID, PaymentProof{
		Filename: "r.png", ContentType: "image/png", Body: []byte("x"),
	})
	assert.True(t, types.IsKind(err, types.ERR_INVALID_STATE))
	assert.Len(t, f.uploader.removed, 1)
	assert.Empty(t, f.uploader.uploads)
}

func TestSubmitPaymentUploadFailure(t *testing.T) {
	f := newFixture(t)
	txn := f.create(t, 1)
	f.uploader.err = errors.New("bucket unavailable")

	_, err := f.svc.SubmitPayment(context.Background(), f.customerPrincipal(), txn.ID, PaymentProof{
		Filename: "r.png", ContentType: "image/png", Body: []byte("x"),
	})
	assert.Equal(t, types.ERR_INTERNAL, types.KindOf(err))
	assert.Equal(t, types.TRANSACTION_PENDING_PAYMENT, f.transaction(t, txn.ID).Status)
}

func TestNotificationFailuresDoNotFailTransitions(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	txn := f.create(t, 1)
	f.svc.Wait()

	assert.Equal(t, types.TRANSACTION_PENDING_PAYMENT, txn.Status)
	assert.Len(t, f.mailer.subjects(), 1)
}

func TestGetAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	txn := f.create(t, 1)
	f.clock.Advance(time.Minute)
	f.create(t, 2)

	got, err := f.svc.Get(ctx, f.organizerPrincipal(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, txn.ID, got.ID)

	_, err = f.svc.Get(ctx, types.Principal{ID: uuid.New(), Role: types.ROLE_CUSTOMER}, txn.ID)
	assert.True(t, types.IsKind(err, types.ERR_UNAUTHORIZED))

	mine, err := f.svc.List(ctx, f.customerPrincipal(), store.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, 2, mine[0].Quantity)

	eventID := f.event.ID
	_, err = f.svc.List(ctx, f.customerPrincipal(), store.TransactionFilter{EventID: &eventID})
	assert.True(t, types.IsKind(err, types.ERR_UNAUTHORIZED))

	byEvent, err := f.svc.List(ctx, f.organizerPrincipal(), store.TransactionFilter{EventID: &eventID, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, byEvent, 1)
}

func TestTicketByCode(t *testing.T) {
	f := newFixture(t, WithCodeGenerator(sequentialCodes(0)))
	ctx := context.Background()
	txn := f.create(t, 1)
	f.submit(t, txn.ID)
	_, tickets, err := f.svc.OrganizerAction(ctx, f.organizerPrincipal(), txn.ID, types.ACTION_CONFIRM)
	require.NoError(t, err)

	ticket, err := f.svc.TicketByCode(ctx, f.customerPrincipal(), tickets[0].TicketCode)
	require.NoError(t, err)
	assert.Equal(t, txn.ID, ticket.TransactionID)

	_, err = f.svc.TicketByCode(ctx, f.organizerPrincipal(), tickets[0].TicketCode)
	assert.True(t, types.IsKind(err, types.ERR_UNAUTHORIZED))

	_, err = f.svc.TicketByCode(ctx, f.customerPrincipal(), "TIX-MISSING")
	assert.True(t, types.IsKind(err, types.ERR_NOT_FOUND))
}

func TestGenerateTicketCodeFormat(t *testing.T) {
	code, err := GenerateTicketCode()
	require.NoError(t, err)
	assert.Regexp(t, `^TIX-[0-9A-F]{12}$`, code)
}
