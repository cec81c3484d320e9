package services

import (
	"context"
	"errors"
	"eventix/src/models"
	"eventix/src/store"
	"eventix/src/types"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	testNow    = time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC)
	attendDate = time.Date(2026, 11, 10, 0, 0, 0, 0, time.UTC)
)

type fakeUploader struct {
	mu       sync.Mutex
	uploads  map[string][]byte
	removed  []string
	onUpload func()
	err      error
}

func (u *fakeUploader) Upload(ctx context.Context, name string, contentType string, body []byte) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	if u.onUpload != nil {
		u.onUpload()
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.uploads == nil {
		u.uploads = map[string][]byte{}
	}
	url := "https://assets.test/" + name
	u.uploads[url] = body
	return url, nil
}

func (u *fakeUploader) Remove(ctx context.Context, url string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.uploads, url)
	u.removed = append(u.removed, url)
	return nil
}

type sentMail struct {
	To      string
	Subject string
	HTML    string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) Send(ctx context.Context, to string, subject string, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, HTML: html})
	return nil
}

func (m *fakeMailer) subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.sent {
		out = append(out, s.Subject)
	}
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	topics []string
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, topic string, payload types.JSONB) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return p.err
}

type fixture struct {
	store     *store.Memory
	clock     *clockwork.FakeClock
	uploader  *fakeUploader
	mailer    *fakeMailer
	publisher *fakePublisher
	svc       *TransactionService
	customer  models.User
	organizer models.User
	event     models.Event
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:     store.NewMemory(),
		clock:     clockwork.NewFakeClockAt(testNow),
		uploader:  &fakeUploader{},
		mailer:    &fakeMailer{},
		publisher: &fakePublisher{},
	}
	f.customer = f.store.AddUser(models.User{Name: "Dina", Email: "dina@example.com", Role: types.ROLE_CUSTOMER})
	f.organizer = f.store.AddUser(models.User{Name: "Organizer", Email: "org@example.com", Role: types.ROLE_ORGANIZER})
	f.event = f.store.AddEvent(models.Event{
		OrganizerID:    f.organizer.ID,
		Title:          "Jazz Night",
		Price:          decimal.NewFromInt(100000),
		TotalSeats:     10,
		RemainingSeats: 10,
		StartDate:      time.Date(2026, 11, 10, 19, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2026, 11, 12, 23, 0, 0, 0, time.UTC),
	})
	base := []Option{
		WithClock(f.clock),
		WithLogger(zaptest.NewLogger(t)),
		WithUploader(f.uploader),
		WithMailer(f.mailer),
		WithPublisher(f.publisher),
	}
	f.svc = NewTransactionService(f.store, append(base, opts...)...)
	t.Cleanup(f.svc.Wait)
	return f
}

func (f *fixture) customerPrincipal() types.Principal {
	return types.Principal{ID: f.customer.ID, Role: types.ROLE_CUSTOMER}
}

func (f *fixture) organizerPrincipal() types.Principal {
	return types.Principal{ID: f.organizer.ID, Role: types.ROLE_ORGANIZER}
}

func (f *fixture) input(quantity int) CreateInput {
	return CreateInput{
		EventID:       f.event.ID,
		Quantity:      quantity,
		AttendDate:    attendDate,
		PaymentMethod: types.PAYMENT_BANK_TRANSFER,
	}
}

func (f *fixture) create(t *testing.T, quantity int) *models.Transaction {
	t.Helper()
	txn, err := f.svc.Create(context.Background(), f.customerPrincipal(), f.input(quantity))
	require.NoError(t, err)
	return txn
}

func (f *fixture) submit(t *testing.T, id uuid.UUID) *models.Transaction {
	t.Helper()
	txn, err := f.svc.SubmitPayment(context.Background(), f.customerPrincipal(), id, PaymentProof{
		Filename:    "receipt.png",
		ContentType: "image/png",
		Body:        []byte("proof"),
	})
	require.NoError(t, err)
	return txn
}

func (f *fixture) transaction(t *testing.T, id uuid.UUID) models.Transaction {
	t.Helper()
	var txn *models.Transaction
	require.NoError(t, f.store.View(context.Background(), func(tx store.Tx) error {
		var err error
		txn, err = tx.FindTransaction(id, false)
		return err
	}))
	return *txn
}

func (f *fixture) remainingSeats(t *testing.T) int {
	t.Helper()
	var event *models.Event
	require.NoError(t, f.store.View(context.Background(), func(tx store.Tx) error {
		var err error
		event, err = tx.FindEvent(f.event.ID, false)
		return err
	}))
	return event.RemainingSeats
}

func (f *fixture) tickets(t *testing.T, id uuid.UUID) []models.Ticket {
	t.Helper()
	var tickets []models.Ticket
	require.NoError(t, f.store.View(context.Background(), func(tx store.Tx) error {
		var err error
		tickets, err = tx.ListTickets(id)
		return err
	}))
	return tickets
}

// sequentialCodes yields deterministic ticket codes and fails on the call
// numbered failOn, if any.
func sequentialCodes(failOn int) CodeGenerator {
	var mu sync.Mutex
	n := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		if n == failOn {
			return "", errors.New("entropy exhausted")
		}
		return fmt.Sprintf("TIX-%012d", n), nil
	}
}

// failingStore fails every status write on one transaction.
type failingStore struct {
	*store.Memory
	failID uuid.UUID
}

type failingTx struct {
	store.Tx
	failID uuid.UUID
}

func (t failingTx) TransitionStatus(id uuid.UUID, change store.StatusChange) error {
	if id == t.failID {
		return errors.New("connection reset by peer")
	}
	return t.Tx.TransitionStatus(id, change)
}

func (s *failingStore) RunAtomic(ctx context.Context, opts store.AtomicOptions, fn func(tx store.Tx) error) error {
	return s.Memory.RunAtomic(ctx, opts, func(tx store.Tx) error {
		return fn(failingTx{Tx: tx, failID: s.failID})
	})
}

func (s *failingStore) View(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.RunAtomic(ctx, store.AtomicOptions{}, fn)
}
