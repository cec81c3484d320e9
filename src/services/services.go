package services

import (
	"context"
	"eventix/src/store"
	"eventix/src/types"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type Uploader interface {
	Upload(ctx context.Context, name string, contentType string, body []byte) (string, error)
	Remove(ctx context.Context, url string) error
}

type Mailer interface {
	Send(ctx context.Context, to string, subject string, html string) error
}

type Publisher interface {
	Publish(ctx context.Context, topic string, payload types.JSONB) error
}

type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

type Options struct {
	PaymentWindow       time.Duration
	StaleAfter          time.Duration
	AtomicTimeout       time.Duration
	ReleaseHoldOnExpiry bool
}

func DefaultOptions() Options {
	return Options{
		PaymentWindow:       2 * time.Hour,
		StaleAfter:          72 * time.Hour,
		AtomicTimeout:       10 * time.Second,
		ReleaseHoldOnExpiry: true,
	}
}

type Option func(s *TransactionService)

func WithClock(c clockwork.Clock) Option {
	return func(s *TransactionService) { s.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *TransactionService) { s.logger = l }
}

func WithUploader(u Uploader) Option {
	return func(s *TransactionService) { s.uploader = u }
}

func WithMailer(m Mailer) Option {
	return func(s *TransactionService) { s.mailer = m }
}

func WithPublisher(p Publisher) Option {
	return func(s *TransactionService) { s.publisher = p }
}

func WithCodeGenerator(g CodeGenerator) Option {
	return func(s *TransactionService) { s.issuer = NewTicketIssuer(g) }
}

func WithOptions(o Options) Option {
	return func(s *TransactionService) { s.opts = o }
}

// TransactionService drives every transaction through its lifecycle. Each
// transition runs in a single unit of work on the injected store.
type TransactionService struct {
	store     store.Store
	clock     clockwork.Clock
	logger    *zap.Logger
	uploader  Uploader
	mailer    Mailer
	publisher Publisher
	issuer    *TicketIssuer
	opts      Options

	pending sync.WaitGroup
}

func NewTransactionService(st store.Store, opts ...Option) *TransactionService {
	s := &TransactionService{
		store:  st,
		clock:  clockwork.NewRealClock(),
		logger: zap.NewNop(),
		issuer: NewTicketIssuer(GenerateTicketCode),
		opts:   DefaultOptions(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TransactionService) Options() Options {
	return s.opts
}

// Wait blocks until all post-commit notifications have been dispatched.
func (s *TransactionService) Wait() {
	s.pending.Wait()
}
