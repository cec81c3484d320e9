package boot

import (
	"context"
	"eventix/src/config"
	"eventix/src/db"
	"eventix/src/lib"
	awslib "eventix/src/lib/aws"
	"eventix/src/lib/mailer"
	"eventix/src/services"
	"eventix/src/store"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

func InitDb() (*gorm.DB, error) {
	d, err := db.GetDb()
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(d); err != nil {
		return nil, fmt.Errorf("error migration: %w", err)
	}
	return d, nil
}

// InitStore opens the transactional store named by STORE_DRIVER.
func InitStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		zap.L().Warn("using in-memory store; data is lost on restart")
		return store.NewMemory(), nil
	case "postgres", "":
		d, err := InitDb()
		if err != nil {
			return nil, err
		}
		return store.NewGorm(d), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func InitUploader(ctx context.Context, cfg *config.Config) (services.Uploader, error) {
	switch cfg.StorageDriver {
	case "local", "":
		return lib.NewLocalUploader(cfg.UploadDir, cfg.UploadsBaseURL), nil
	case "s3":
		awsCfg, err := awslib.LoadConfig(ctx, cfg.AWSRoleArn)
		if err != nil {
			return nil, err
		}
		return awslib.NewS3UploaderFromConfig(awsCfg, cfg.AssetsBucket, cfg.PublicBaseURL), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}

// InitPublisher returns the lifecycle publisher and a func that flushes it.
func InitPublisher(ctx context.Context, cfg *config.Config, logger *zap.Logger) (services.Publisher, func(), error) {
	noop := func() {}
	switch cfg.EventsDriver {
	case "log", "":
		return lib.NewLogPublisher(logger), noop, nil
	case "kafka":
		p, err := lib.NewKafkaPublisher(cfg.KafkaBroker, "eventix-api")
		if err != nil {
			return nil, noop, err
		}
		return p, p.Close, nil
	case "sqs":
		awsCfg, err := awslib.LoadConfig(ctx, cfg.AWSRoleArn)
		if err != nil {
			return nil, noop, err
		}
		return awslib.NewSQSPublisher(awslib.NewSQSClient(awsCfg), cfg.EventsQueue), noop, nil
	case "sns":
		awsCfg, err := awslib.LoadConfig(ctx, cfg.AWSRoleArn)
		if err != nil {
			return nil, noop, err
		}
		return awslib.NewSNSPublisherFromConfig(awsCfg, cfg.SNSTopicArn), noop, nil
	}
	return nil, noop, fmt.Errorf("unknown events driver %q", cfg.EventsDriver)
}

// InitLocker returns a Redis-backed sweep lock, or nil when Redis is not
// configured and sweeps run unguarded.
func InitLocker(cfg *config.Config) services.Locker {
	if cfg.RedisHost == "" {
		return nil
	}
	rd := lib.GetRedisClient(cfg.RedisHost)
	if rd == nil {
		return nil
	}
	return lib.NewRedisLocker(rd)
}

// InitMailWorker drains the email queue through SMTP when mail is queued.
func InitMailWorker(ctx context.Context, cfg *config.Config) error {
	if cfg.MailDriver != "queue" || cfg.SMTPHost == "" {
		return nil
	}
	smtp, err := lib.NewSMTPMailer(cfg)
	if err != nil {
		return err
	}
	awsCfg, err := awslib.LoadConfig(ctx, cfg.AWSRoleArn)
	if err != nil {
		return err
	}
	consumer := awslib.NewSQSConsumer(awslib.NewSQSClient(awsCfg), cfg.EmailQueue, mailer.Worker(smtp))
	go consumer.Listen(ctx)
	return nil
}

// SweepTimeout bounds one run of a sweep scheduled every interval.
func SweepTimeout(every time.Duration) time.Duration {
	return max(every-time.Second, time.Minute)
}

// InitSweeper builds the sweeper. With a locker, each sweep holds its lock
// for a minute past its run timeout.
func InitSweeper(cfg *config.Config, svc *services.TransactionService, locker services.Locker) *services.Sweeper {
	if locker == nil {
		return services.NewSweeper(svc)
	}
	return services.NewSweeper(svc,
		services.WithLocker(locker, SweepTimeout(cfg.ExpirySweepInterval)+time.Minute),
		services.WithLockTTL(services.SweepExpired, SweepTimeout(cfg.ExpirySweepInterval)+time.Minute),
		services.WithLockTTL(services.SweepStale, SweepTimeout(cfg.StaleSweepInterval)+time.Minute),
	)
}

func InitScheduler(cfg *config.Config, sweeper *services.Sweeper) error {
	sched, err := lib.GetScheduler()
	if err != nil {
		return err
	}
	_, err = lib.ScheduleSweep(sched, services.SweepExpired, cfg.ExpirySweepInterval, SweepTimeout(cfg.ExpirySweepInterval), func(ctx context.Context) {
		_, _ = sweeper.SweepExpired(ctx)
	})
	if err != nil {
		return err
	}
	_, err = lib.ScheduleSweep(sched, services.SweepStale, cfg.StaleSweepInterval, SweepTimeout(cfg.StaleSweepInterval), func(ctx context.Context) {
		_, _ = sweeper.SweepStale(ctx)
	})
	if err != nil {
		return err
	}
	zap.L().Info("jobs in queue", zap.Int("count", len(sched.Jobs())))
	sched.Start()
	return nil
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		zap.L().Error("error retrieving scheduler", zap.Error(err))
		return
	}
	if err := sched.Shutdown(); err != nil {
		zap.L().Error("error stopping scheduler", zap.Error(err))
	}
}
