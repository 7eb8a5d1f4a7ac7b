package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/Freeeeeet/tutor_market/internal/app"
	"github.com/Freeeeeet/tutor_market/internal/config"
	"github.com/Freeeeeet/tutor_market/internal/controller"
	"github.com/Freeeeeet/tutor_market/internal/notify"
	"github.com/Freeeeeet/tutor_market/internal/repository"
	"github.com/Freeeeeet/tutor_market/internal/service"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.GetDBDSN())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	migrator, err := app.NewMigrator(pool, cfg.MigrationsPath)
	if err != nil {
		logger.Fatal("Failed to create migrator", zap.Error(err))
	}
	if err := migrator.Run(ctx); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}
	migrator.Close()

	runner := service.NewTxRunner(pool)
	stores := service.NewStores(pool)

	bookingService := service.NewBookingService(runner, stores, logger)
	capacityService := service.NewCapacityService(runner, stores, logger)
	usageService := service.NewUsageLogService(stores, logger)

	scheduler := app.NewScheduler(capacityService, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logger.Info("Tutor market backend started", zap.String("environment", cfg.Environment))

	if cfg.TelegramToken == "" {
		logger.Warn("TELEGRAM_TOKEN is not set, notification bot disabled")
		<-ctx.Done()
		return
	}

	botInstance, err := bot.New(cfg.TelegramToken)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	users := repository.NewUserRepository(pool)
	notifier := notify.NewTelegramNotifier(botInstance, users, logger)

	botController := controller.NewBotController(botInstance, bookingService, usageService, users, notifier, logger)
	if err := botController.RegisterHandlers(ctx); err != nil {
		logger.Fatal("Failed to register bot handlers", zap.Error(err))
	}

	botController.Start(ctx)
}
