package services

import (
	"context"
	"eventix/src/store"
	"eventix/src/types"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newGormService(t *testing.T) (*TransactionService, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	svc := NewTransactionService(store.NewGorm(gormDB), WithClock(clockwork.NewFakeClockAt(testNow)))
	t.Cleanup(svc.Wait)
	return svc, mock
}

func userRows(id uuid.UUID) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "email", "role"}).
		AddRow(id.String(), "Dina", "dina@example.com", "customer")
}

func eventRows(id uuid.UUID, remaining int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "organizer_id", "title", "price", "total_seats", "remaining_seats", "start_date", "end_date"}).
		AddRow(id.String(), uuid.NewString(), "Jazz Night", "100000", 10, remaining,
			time.Date(2026, 11, 10, 19, 0, 0, 0, time.UTC), time.Date(2026, 11, 12, 23, 0, 0, 0, time.UTC))
}

func gormInput(eventID uuid.UUID, quantity int) CreateInput {
	return CreateInput{
		EventID:       eventID,
		Quantity:      quantity,
		AttendDate:    attendDate,
		PaymentMethod: types.PAYMENT_BANK_TRANSFER,
	}
}

// The second buyer queues on the event row lock and reads the seat count the
// first buyer committed.
func TestGormCreateLosingBuyerGetsInsufficientSeats(t *testing.T) {
	svc, mock := newGormService(t)
	userID, eventID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "users"`).WillReturnRows(userRows(userID))
	mock.ExpectQuery(`SELECT \* FROM "events" .* FOR UPDATE`).WillReturnRows(eventRows(eventID, 0))
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), types.Principal{ID: userID, Role: types.ROLE_CUSTOMER}, gormInput(eventID, 1))

	assert.Equal(t, types.ERR_INSUFFICIENT_SEATS, types.KindOf(err), "err=%v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormCreateRerunsAfterSerializationFailure(t *testing.T) {
	svc, mock := newGormService(t)
	userID, eventID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "users"`).WillReturnRows(userRows(userID))
	mock.ExpectQuery(`SELECT \* FROM "events" .* FOR UPDATE`).
		WillReturnError(&pgconn.PgError{Code: "40001", Message: "could not serialize access due to concurrent update"})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "users"`).WillReturnRows(userRows(userID))
	mock.ExpectQuery(`SELECT \* FROM "events" .* FOR UPDATE`).WillReturnRows(eventRows(eventID, 1))
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), types.Principal{ID: userID, Role: types.ROLE_CUSTOMER}, gormInput(eventID, 2))

	assert.Equal(t, types.ERR_INSUFFICIENT_SEATS, types.KindOf(err), "err=%v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
