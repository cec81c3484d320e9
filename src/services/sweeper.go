package services

import (
	"context"
	"database/sql"
	"eventix/src/lib/metrics"
	"eventix/src/models"
	"eventix/src/store"
	"eventix/src/types"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	SweepExpired = "expired"
	SweepStale   = "stale"
)

type SweepResult struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

func (r *SweepResult) record(err error) {
	switch {
	case err == nil:
		r.Processed++
	case types.IsKind(err, types.ERR_INVALID_STATE):
		r.Skipped++
	default:
		r.Failed++
	}
}

type Sweeper struct {
	svc      *TransactionService
	locker   Locker
	lockTTL  time.Duration
	lockTTLs map[string]time.Duration
}

type SweeperOption func(s *Sweeper)

// WithLocker keeps a sweep single-flight across replicas. ttl is the lease
// of sweeps without their own WithLockTTL.
func WithLocker(l Locker, ttl time.Duration) SweeperOption {
	return func(s *Sweeper) {
		s.locker = l
		s.lockTTL = ttl
	}
}

// WithLockTTL sets the lease of one sweep. It should outlast the sweep's run timeout.
func WithLockTTL(name string, ttl time.Duration) SweeperOption {
	return func(s *Sweeper) {
		s.lockTTLs[name] = ttl
	}
}

func NewSweeper(svc *TransactionService, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{svc: svc, lockTTL: 10 * time.Minute, lockTTLs: map[string]time.Duration{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sweeper) leaseFor(name string) time.Duration {
	if ttl, ok := s.lockTTLs[name]; ok {
		return ttl
	}
	return s.lockTTL
}

func (s *Sweeper) run(ctx context.Context, name string, sweep func(ctx context.Context) (SweepResult, error)) (SweepResult, error) {
	logger := s.svc.logger.With(zap.String("sweep", name))
	if s.locker != nil {
		release, acquired, err := s.locker.Acquire(ctx, "eventix:sweep:"+name, s.leaseFor(name))
		if err != nil {
			logger.Error("error acquiring sweep lock", zap.Error(err))
			return SweepResult{}, err
		}
		if !acquired {
			logger.Debug("sweep already running elsewhere")
			return SweepResult{}, nil
		}
		defer release()
	}
	done := metrics.TimeSweep(name)
	defer done()

	result, err := sweep(ctx)
	metrics.ObserveSweep(name, "processed", result.Processed)
	metrics.ObserveSweep(name, "skipped", result.Skipped)
	metrics.ObserveSweep(name, "failed", result.Failed)
	if err != nil {
		logger.Error("sweep aborted", zap.Error(err))
		return result, err
	}
	logger.Info("sweep finished",
		zap.Int("processed", result.Processed),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))
	return result, nil
}

// SweepExpired moves pending transactions past their payment deadline to
// expired.
func (s *Sweeper) SweepExpired(ctx context.Context) (SweepResult, error) {
	return s.run(ctx, SweepExpired, s.svc.sweepExpired)
}

// SweepStale cancels transactions that waited too long for organizer review.
func (s *Sweeper) SweepStale(ctx context.Context) (SweepResult, error) {
	return s.run(ctx, SweepStale, s.svc.sweepStale)
}

func (s *TransactionService) sweepExpired(ctx context.Context) (SweepResult, error) {
	now := s.clock.Now()
	var result SweepResult
	if !s.opts.ReleaseHoldOnExpiry {
		err := s.store.RunAtomic(ctx, s.atomic(sql.LevelReadCommitted), func(tx store.Tx) error {
			n, err := tx.ExpirePending(now, now)
			result.Processed = int(n)
			return err
		})
		if err == nil && result.Processed > 0 {
			metrics.ObserveTransition(string(types.TRANSACTION_EXPIRED))
		}
		return result, err
	}

	var ids []uuid.UUID
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		ids, err = tx.ListExpiredIDs(now)
		return err
	})
	if err != nil {
		return result, err
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		err := s.expireOne(ctx, id, now)
		if err != nil && !types.IsKind(err, types.ERR_INVALID_STATE) {
			s.logger.Error("error expiring transaction", zap.String("id", id.String()), zap.Error(err))
		}
		result.record(err)
	}
	return result, nil
}

func (s *TransactionService) sweepStale(ctx context.Context) (SweepResult, error) {
	now := s.clock.Now()
	cutoff := now.Add(-s.opts.StaleAfter)
	var result SweepResult
	var ids []uuid.UUID
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		ids, err = tx.ListStaleIDs(cutoff)
		return err
	})
	if err != nil {
		return result, err
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		err := s.cancelStale(ctx, id, cutoff, now)
		if err != nil && !types.IsKind(err, types.ERR_INVALID_STATE) {
			s.logger.Error("error canceling stale transaction", zap.String("id", id.String()), zap.Error(err))
		}
		result.record(err)
	}
	return result, nil
}

// expireOne expires a single lapsed pending transaction in its own unit of
// work, releasing its hold unless configured otherwise.
func (s *TransactionService) expireOne(ctx context.Context, id uuid.UUID, now time.Time) error {
	return s.settle(ctx, id, now, func(txn *models.Transaction) bool {
		return txn.Status == types.TRANSACTION_PENDING_PAYMENT && isPastDeadline(txn, now)
	}, types.TRANSACTION_EXPIRED, s.opts.ReleaseHoldOnExpiry)
}

func (s *TransactionService) cancelStale(ctx context.Context, id uuid.UUID, cutoff time.Time, now time.Time) error {
	return s.settle(ctx, id, now, func(txn *models.Transaction) bool {
		return txn.Status == types.TRANSACTION_WAITING_CONFIRMATION && txn.UpdatedAt.Before(cutoff)
	}, types.TRANSACTION_CANCELED, true)
}

func (s *TransactionService) settle(ctx context.Context, id uuid.UUID, now time.Time, eligible func(*models.Transaction) bool, to types.TransactionStatus, release bool) error {
	var txn models.Transaction
	var user *models.User
	err := s.store.RunAtomic(ctx, s.atomic(sql.LevelReadCommitted), func(tx store.Tx) error {
		locked, err := tx.FindTransaction(id, true)
		if err != nil {
			return err
		}
		if !eligible(locked) {
			return types.NewError(types.ERR_INVALID_STATE, "transaction %s is no longer eligible for %s", id, to)
		}
		txn = *locked
		if release {
			if err := releaseHold(tx, &txn); err != nil {
				return err
			}
		}
		err = tx.TransitionStatus(id, store.StatusChange{From: txn.Status, To: to, At: now})
		if err != nil {
			return err
		}
		txn.Status = to
		txn.UpdatedAt = now
		user, err = tx.FindUser(txn.UserID)
		if types.IsKind(err, types.ERR_NOT_FOUND) {
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}
	s.afterCommit(user, txn, nil)
	return nil
}
