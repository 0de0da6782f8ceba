package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	_ "modernc.org/sqlite"

	emailPkg "postpilot/internal/adapters/email"
	web "postpilot/internal/adapters/http"
	"postpilot/internal/adapters/publisher"
	"postpilot/internal/adapters/storage"
	calendarStorePkg "postpilot/internal/adapters/storage/calendar"
	outboxStorePkg "postpilot/internal/adapters/storage/outbox"
	postlogStorePkg "postpilot/internal/adapters/storage/postlog"
	webhookStorePkg "postpilot/internal/adapters/storage/webhook"
	"postpilot/internal/adapters/telemetry"
	webhookAdapter "postpilot/internal/adapters/webhook"
	"postpilot/internal/application/orchestrators"
	"postpilot/internal/config"
	"postpilot/internal/domain/outbox"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg := config.Load()
	if !cfg.IsProduction() {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		Endpoint:    cfg.OTLP,
		Insecure:    !cfg.IsProduction(),
		ServiceName: "postpilot",
		Version:     version,
		Environment: cfg.Env,
	})
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Error("tracing_shutdown_failed", "error", err.Error())
		}
	}()

	// WAL mode, foreign keys and a busy timeout on every pooled connection
	dsn := cfg.DBPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}
	if err := storage.InitDB(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}
	schema, _ := storage.SchemaVersion(db)

	timedDB := storage.NewTimedDB(db, cfg.SlowQuery, otel.GetTracerProvider())
	postLogStore := postlogStorePkg.NewSQLiteStore(timedDB)
	calendarStore := calendarStorePkg.NewSQLiteStore(timedDB)
	deliveryStore := webhookStorePkg.NewSQLiteStore(timedDB)
	outboxStore := outboxStorePkg.NewSQLiteStore(timedDB)

	// Alert email sender
	var sender emailPkg.Sender
	if cfg.Email.ResendKey != "" {
		sender = emailPkg.NewResendSender(cfg.Email.ResendKey, cfg.Email.From)
		slog.Info("email_sender_configured", "provider", "resend")
	} else {
		sender = emailPkg.NewNoopSender()
		if cfg.IsProduction() {
			slog.Warn("email_sender_disabled", "reason", "POSTPILOT_RESEND_KEY is not set")
		}
	}

	// Refused alert emails are replayed from the outbox
	outboxProcessor := orchestrators.NewOutboxProcessor(outboxStore, map[string]orchestrators.ActionExecutor{
		outbox.ActionTypeAlertEmail: &orchestrators.EmailExecutor{Sender: sender},
	}, uuid.NewString, time.Now)
	workerDone := orchestrators.StartBackgroundWorker(ctx, outboxProcessor, cfg.OutboxEvery)

	webhookClient := webhookAdapter.NewClient(webhookAdapter.Config{
		Timeout:            cfg.Webhook.Timeout,
		InsecureSkipVerify: cfg.Webhook.InsecureTLS,
	})

	deps := web.Deps{
		PostLogs:     orchestrators.NewPostLogManager(postLogStore, uuid.NewString, time.Now),
		Bulk:         orchestrators.NewBulkMutationEngine(calendarStore, time.Now),
		Webhooks:     orchestrators.NewWebhookDispatcher(webhookClient, deliveryStore, uuid.NewString, time.Now),
		StatsStore:   postLogStore,
		Deliveries:   deliveryStore,
		Now:          time.Now,
		AlertSender:  sender,
		AlertQueue:   outboxProcessor,
		FailedAlerts: outboxStore,
	}
	if gateway := publisher.NewGateway(webhookClient, cfg.Publisher); gateway.Configured() {
		deps.Publisher = gateway
	} else {
		slog.Warn("publishing_disabled", "reason", "POSTPILOT_PUBLISHER_URL is not set")
	}

	csrfKey, err := web.LoadCSRFKey(cfg.CSRFKey, cfg.IsProduction())
	if err != nil {
		log.Fatalf("invalid CSRF configuration: %v", err)
	}

	handler := web.NewMux(deps, web.Options{
		CSRFKey:       csrfKey,
		SecureCookies: cfg.IsProduction(),
		RatePerMin:    cfg.RatePerMin,
		MaxBulkItems:  cfg.MaxBulk,
		MinLeadTime:   cfg.MinLeadTime,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("server_starting", "version", version, "addr", cfg.Addr, "env", cfg.Env, "schema", schema)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("server_stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server_shutdown_failed", "error", err.Error())
	}
	<-workerDone
}
