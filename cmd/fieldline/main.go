package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/fieldline/fieldline/internal/app"
	"github.com/fieldline/fieldline/internal/invoices"
	"github.com/fieldline/fieldline/internal/jobcosting"
	"github.com/fieldline/fieldline/internal/observability"
	"github.com/fieldline/fieldline/internal/platform/cache"
	"github.com/fieldline/fieldline/internal/platform/db"
	"github.com/fieldline/fieldline/internal/servicejobs"
	"github.com/fieldline/fieldline/internal/shared"
	"github.com/fieldline/fieldline/jobs"
	"github.com/fieldline/fieldline/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	var summaries, overviews *cache.Versioned
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, summaries are not cached", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		summaries = cache.NewVersioned(redisClient, "invoices", cfg.CacheTTL)
		overviews = cache.NewVersioned(redisClient, "jobcosting", cfg.CacheTTL)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	queue := jobs.NewClient(redisOpts)
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	jobService := servicejobs.NewService(servicejobs.NewRepository(dbpool), auditLogger, logger)

	invoiceService := invoices.NewService(invoices.NewRepository(dbpool), jobService, auditLogger, idempotencyStore, invoices.ServiceConfig{
		DefaultTaxRate:   decimal.NewNullDecimal(cfg.DefaultTaxRate),
		PaymentTermsDays: cfg.PaymentTermsDays,
		Summaries:        summaries,
		Email:            queue,
		Logger:           logger,
	})

	costService := jobcosting.NewService(jobcosting.NewRepository(dbpool), jobService, invoiceService, auditLogger, overviews, logger)

	pdfClient := report.NewClient(cfg.GotenbergURL)
	if err := pdfClient.Ping(ctx); err != nil {
		logger.Warn("gotenberg unreachable, invoice PDFs will fail", slog.Any("error", err))
	}
	renderer := report.NewInvoiceRenderer(pdfClient, cfg.CurrencyCode)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Metrics:           metrics,
		InvoiceHandler:    invoices.NewHandler(logger, invoiceService, renderer),
		PaymentsHandler:   invoices.NewPaymentsHandler(logger, invoiceService),
		JobCostingHandler: jobcosting.NewHandler(logger, costService),
		ServiceJobHandler: servicejobs.NewHandler(logger, jobService),
		QueueHandler:      jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
