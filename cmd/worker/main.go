package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/fekuna/omnipos-inventory-service/config"
	stockListener "github.com/fekuna/omnipos-inventory-service/internal/stock/listener"
	stockNotifier "github.com/fekuna/omnipos-inventory-service/internal/stock/notifier"
	stockRepo "github.com/fekuna/omnipos-inventory-service/internal/stock/repository"
	stockUC "github.com/fekuna/omnipos-inventory-service/internal/stock/usecase"
	"github.com/fekuna/omnipos-inventory-service/pkg/broker"
	"github.com/fekuna/omnipos-inventory-service/pkg/cache"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
	"github.com/fekuna/omnipos-inventory-service/pkg/postgres"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load() // Load .env file if it exists
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          "json",
		Level:             "info",
		DisableCaller:     false,
		DisableStacktrace: false,
	}
	if cfg.Server.AppEnv == "development" || cfg.Server.AppEnv == "dev" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = cfg.Logger.Encoding
		logConfig.Level = cfg.Logger.Level
	}

	appLogger := logger.NewZapLogger(logConfig)
	defer appLogger.Sync()

	// 3. Connect to Database
	db, err := postgres.NewPostgres(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to database", zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

	// 4. Initialize Redis
	redisClient, err := cache.NewRedisClient(&cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))

	// 5. Initialize Kafka
	salesConsumer := broker.NewConsumer(&broker.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.SalesTopic,
		GroupID: cfg.Kafka.GroupID,
	})
	defer salesConsumer.Close()
	notificationsProducer := broker.NewProducer(&broker.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.NotificationsTopic,
	})
	defer notificationsProducer.Close()
	appLogger.Info("Connected to Kafka",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("sales_topic", cfg.Kafka.SalesTopic),
		zap.String("notifications_topic", cfg.Kafka.NotificationsTopic),
	)

	// 6. Wire the stock domain
	repo := stockRepo.NewPGRepository(db)
	txm := stockRepo.NewTxManager(db)
	lowStockPublisher := stockNotifier.NewLowStockPublisher(notificationsProducer)
	uc := stockUC.NewStockUseCase(repo, txm, redisClient, lowStockPublisher, appLogger, &stockUC.Options{
		LockTTL:        cfg.Stock.LockTTL,
		LockRetries:    cfg.Stock.LockRetries,
		LockRetryDelay: cfg.Stock.LockRetryDelay,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 7. Start the sales event listener
	salesListener := stockListener.NewSalesListener(salesConsumer, uc, txm, lowStockPublisher, appLogger)
	go salesListener.Start(ctx)

	// 8. Periodic reconcile sweep heals any drift in the derived totals
	go func() {
		ticker := time.NewTicker(cfg.Stock.ReconcileInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := uc.ReconcileAll(ctx); err != nil && ctx.Err() == nil {
					appLogger.Error("Reconcile sweep failed", zap.Error(err))
				}
			}
		}
	}()

	appLogger.Info("Inventory worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down worker...")
	cancel()
	appLogger.Info("Worker stopped")
}
