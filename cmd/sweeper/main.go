// Command sweeper publishes overdue and due-soon reminders for unpaid
// invoices, once or on a fixed interval.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/ledger/internal/calendar"
	"github.com/MrJamesThe3rd/ledger/internal/config"
	cardStore "github.com/MrJamesThe3rd/ledger/internal/creditcard/store"
	"github.com/MrJamesThe3rd/ledger/internal/database"
	"github.com/MrJamesThe3rd/ledger/internal/events"
	"github.com/MrJamesThe3rd/ledger/internal/notify"
	"github.com/MrJamesThe3rd/ledger/internal/observability"
	"github.com/MrJamesThe3rd/ledger/internal/resilience"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Log.Level)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.Tracing.ServiceName+"-sweeper", cfg.Tracing.OTLPEndpoint)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	db, err := database.New(cfg.ConnectionString(), cfg.DB.MaxOpenConns)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	var sender events.Sender = events.LogSender{Logger: logger}

	if cfg.RabbitMQ.URL != "" {
		amqpSender, err := events.NewAMQPSender(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.RoutingKey, resilience.Config{
			MaxRetries:     cfg.Events.MaxRetries,
			InitialBackoff: cfg.Events.InitialBackoff,
		})
		if err != nil {
			logger.Fatal("failed to connect to rabbitmq", zap.Error(err))
		}
		defer amqpSender.Close()

		sender = amqpSender
	}

	sweeper := notify.NewSweeper(cardStore.New(db), sender, notify.Config{
		DueSoonDays: cfg.Sweep.DueSoonDays,
		Concurrency: cfg.Sweep.Concurrency,
	}, logger, observability.NewMetrics())

	sweep := func() {
		report, err := sweeper.Run(ctx, calendar.Date(time.Now()))
		if err != nil {
			logger.Error("sweep failed", zap.Error(err))
			return
		}

		logger.Info("sweep finished",
			zap.Int("overdue", report.Overdue),
			zap.Int("due_soon", report.DueSoon),
			zap.Int("failed", report.Failed),
		)
	}

	sweep()

	if cfg.Sweep.Interval <= 0 {
		return
	}

	ticker := time.NewTicker(cfg.Sweep.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			sweep()
		}
	}
}
