package lib

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

var scheduler gocron.Scheduler

func NewScheduler(s gocron.Scheduler) {
	scheduler = s
}

func GetScheduler() (gocron.Scheduler, error) {
	if scheduler != nil {
		return scheduler, nil
	}
	sched, err := CreateScheduler(clockwork.NewRealClock())
	if err != nil {
		zap.L().Error("error initializing scheduler", zap.Error(err))
		return nil, err
	}
	scheduler = sched
	return sched, nil
}

func CreateScheduler(clock clockwork.Clock) (gocron.Scheduler, error) {
	return gocron.NewScheduler(
		gocron.WithClock(clock),
		gocron.WithLocation(time.UTC),
		gocron.WithStopTimeout(30*time.Second),
	)
}

// ScheduleSweep runs task every interval. A run still in progress when the
// next one is due causes that next run to be skipped.
func ScheduleSweep(s gocron.Scheduler, name string, every time.Duration, timeout time.Duration, task func(ctx context.Context)) (gocron.Job, error) {
	j, err := s.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			task(ctx)
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		zap.L().Error("error scheduling sweep", zap.String("sweep", name), zap.Error(err))
		return nil, err
	}
	zap.L().Info("sweep scheduled", zap.String("sweep", name), zap.Duration("every", every), zap.String("job", j.ID().String()))
	return j, nil
}
