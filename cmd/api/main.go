package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/ledger/internal/bankaccount/store"
	categoryStore "github.com/MrJamesThe3rd/ledger/internal/category/store"
	"github.com/MrJamesThe3rd/ledger/internal/config"
	"github.com/MrJamesThe3rd/ledger/internal/creditcard"
	cardStore "github.com/MrJamesThe3rd/ledger/internal/creditcard/store"
	"github.com/MrJamesThe3rd/ledger/internal/database"
	"github.com/MrJamesThe3rd/ledger/internal/events"
	"github.com/MrJamesThe3rd/ledger/internal/export"
	ledgerHttp "github.com/MrJamesThe3rd/ledger/internal/http"
	"github.com/MrJamesThe3rd/ledger/internal/http/auth"
	cardHandler "github.com/MrJamesThe3rd/ledger/internal/http/creditcard"
	importHandler "github.com/MrJamesThe3rd/ledger/internal/http/importcsv"
	invoiceHandler "github.com/MrJamesThe3rd/ledger/internal/http/invoice"
	matchingHandler "github.com/MrJamesThe3rd/ledger/internal/http/matching"
	txHandler "github.com/MrJamesThe3rd/ledger/internal/http/transaction"
	"github.com/MrJamesThe3rd/ledger/internal/importer"
	"github.com/MrJamesThe3rd/ledger/internal/matching"
	matchingStore "github.com/MrJamesThe3rd/ledger/internal/matching/store"
	"github.com/MrJamesThe3rd/ledger/internal/observability"
	"github.com/MrJamesThe3rd/ledger/internal/resilience"
	"github.com/MrJamesThe3rd/ledger/internal/transaction"
	txStore "github.com/MrJamesThe3rd/ledger/internal/transaction/store"
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

	if cfg.Auth.JWTSecret == "" {
		logger.Fatal("JWT_SECRET must be set")
	}

	shutdownTracer, err := observability.InitTracer(context.Background(), cfg.Tracing.ServiceName, cfg.Tracing.OTLPEndpoint)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	metrics := observability.NewMetrics()

	db, err := database.New(cfg.ConnectionString(), cfg.DB.MaxOpenConns)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if cfg.DB.MigrateOnStart {
		if err := database.Migrate(db); err != nil {
			logger.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	retry := resilience.Config{
		MaxRetries:     cfg.Events.MaxRetries,
		InitialBackoff: cfg.Events.InitialBackoff,
	}

	var sender events.Sender = events.LogSender{Logger: logger}

	if cfg.RabbitMQ.URL != "" {
		amqpSender, err := events.NewAMQPSender(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.RoutingKey, retry)
		if err != nil {
			logger.Fatal("failed to connect to rabbitmq", zap.Error(err))
		}
		defer amqpSender.Close()

		sender = amqpSender
	}

	dispatcher := events.NewDispatcher(sender, events.TriggerUserAction, cfg.Events.Timeout, logger, metrics)

	var (
		accounts   = store.New(db)
		categories = categoryStore.New(db)
		cards      = cardStore.New(db)
	)

	var (
		cardService        = creditcard.NewService(cards, accounts, dispatcher, logger, metrics)
		transactionService = transaction.NewService(txStore.New(db), transaction.Dependencies{
			Cards:        cards,
			BankAccounts: accounts,
			Categories:   categories,
		}, dispatcher, logger, metrics)
		matchingService = matching.NewService(matchingStore.New(db))
		importService   = importer.NewService(matchingService, logger)
		exportService   = export.NewService(cardService, transactionService, cfg.Attachments.Token, retry, logger)
	)

	router := ledgerHttp.New(ledgerHttp.Handlers{
		Cards:        cardHandler.NewHandler(cardService, logger),
		Invoices:     invoiceHandler.NewHandler(cardService, transactionService, exportService, logger),
		Transactions: txHandler.NewHandler(transactionService, logger),
		Import:       importHandler.NewHandler(importService, transactionService, logger),
		Matching:     matchingHandler.NewHandler(matchingService, logger),
	}, ledgerHttp.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Authenticator:  auth.New(cfg.Auth.JWTSecret, logger),
		Metrics:        metrics,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.Int("port", cfg.App.Port))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}

	if err := dispatcher.Wait(ctx); err != nil {
		logger.Warn("pending events dropped", zap.Error(err))
	}

	logger.Info("server stopped")
}
