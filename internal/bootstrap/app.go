package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"contextinsight/internal/app"
	"contextinsight/internal/cache"
	"contextinsight/internal/config"
	"contextinsight/internal/model"
	"contextinsight/internal/pkg/logger"
	"contextinsight/internal/platform/database"
	rabbitmqClient "contextinsight/internal/platform/rabbitmq"
	redisClient "contextinsight/internal/platform/redis"
	"contextinsight/internal/repository"
	"contextinsight/internal/tracer"
	"contextinsight/internal/worker"
)

const logModule = "bootstrap"

type App struct {
	Config         *config.Config
	Logger         *logger.ZapLogger
	DB             *gorm.DB
	Redis          *redis.Client
	MQConn         *amqp.Connection
	InsightService *app.ContextInsightService
	PersistWorker  *worker.InsightPersistWorker

	TracerShutdown func(context.Context) error
	StartedAt      time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	a := &App{
		Config: cfg,
		Logger: logger.NewZapLogger(logger.Options{
			FilePath:   cfg.Log.FilePath,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Production: cfg.IsProduction(),
		}),
		StartedAt: time.Now(),
	}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	shutdown, err := tracer.Init(ctx, tracer.Options{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		ServiceName: cfg.App.Name,
	})
	if err != nil {
		return fmt.Errorf("init tracer failed: %w", err)
	}
	a.TracerShutdown = shutdown

	a.DB, err = database.New(ctx, database.Options{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetimeSec) * time.Second,
		SlowThreshold:   time.Duration(cfg.Database.SlowQueryThresholdMS) * time.Millisecond,
	})
	if err != nil {
		return err
	}
	if cfg.Database.AutoMigrate {
		if err := a.DB.AutoMigrate(&model.ContextInsight{}); err != nil {
			return fmt.Errorf("auto migrate tables failed: %w", err)
		}
	}

	var insightCache app.InsightCache
	if cfg.Redis.Enabled {
		a.Redis, err = redisClient.New(ctx, redisClient.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		insightCache = cache.NewInsightCache(a.Redis, cfg.InsightTTL())
	}

	var publisher app.InsightEventPublisher
	if cfg.RabbitMQ.Enabled {
		a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			return err
		}
		publisher = rabbitmqClient.NewInsightEventPublisher(a.MQConn, cfg.RabbitMQ.EventQueue)
	}

	repo := repository.NewContextInsightRepository(a.DB)
	a.InsightService = app.NewContextInsightService(repo, insightCache, publisher, a.Logger)

	if a.MQConn != nil {
		a.PersistWorker = worker.NewInsightPersistWorker(a.MQConn, a.InsightService, cfg.RabbitMQ.PersistQueue, a.Logger)
		if err := a.PersistWorker.Start(ctx); err != nil {
			return fmt.Errorf("start persist worker failed: %w", err)
		}
	}

	a.Logger.Info(logModule, "application initialised", map[string]interface{}{
		"db_driver":        cfg.Database.Driver,
		"redis_enabled":    cfg.Redis.Enabled,
		"rabbitmq_enabled": cfg.RabbitMQ.Enabled,
		"tracing_enabled":  cfg.Tracing.Enabled,
	})
	return nil
}

func (a *App) Close() error {
	var closeErr error
	if a.PersistWorker != nil {
		a.PersistWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil && !a.MQConn.IsClosed() {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	if a.TracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.TracerShutdown(ctx); err != nil {
			closeErr = err
		}
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return closeErr
}
