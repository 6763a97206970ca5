package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/turnohq/turnoline/libs/config"
	"github.com/turnohq/turnoline/libs/db"
	"github.com/turnohq/turnoline/libs/httpx"
	"github.com/turnohq/turnoline/libs/inbox"
	"github.com/turnohq/turnoline/libs/kafkax"
	otelx "github.com/turnohq/turnoline/libs/otel"
	"github.com/turnohq/turnoline/libs/runtime"
	"github.com/turnohq/turnoline/services/notification-service/internal/dispatch"
	"github.com/turnohq/turnoline/services/notification-service/internal/email"
	"github.com/turnohq/turnoline/services/notification-service/internal/push"
	"github.com/turnohq/turnoline/services/notification-service/internal/storage"
	"github.com/turnohq/turnoline/services/notification-service/internal/trigger"
	"github.com/turnohq/turnoline/services/notification-service/internal/watcher"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	databaseURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		logger.Error("missing configuration", "err", err)
		return
	}
	pool, err := db.Open(ctx, databaseURL)
	if err != nil {
		logger.Error("db open failed", "err", err)
		return
	}
	defer pool.Close()

	repo := storage.NewRepository(pool)
	inboxRepo := inbox.NewRepository(pool)

	var pushSender push.Sender
	switch strings.ToLower(config.String("PUSH_PROVIDER", "noop")) {
	case "webhook":
		pushSender = push.NewWebPushSender(
			config.String("PUSH_URL", ""),
			config.String("PUSH_APP_ID", ""),
			config.String("PUSH_API_KEY", ""),
		)
	default:
		pushSender = push.NewNoopSender()
	}
	emailSender := email.NewSMTPSender(
		config.String("SMTP_HOST", "mailpit"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", "no-reply@turnoline.local"),
	)
	adminEmail := config.String("ADMIN_EMAIL", "admin@turnoline.local")

	dispatcher := dispatch.New(pushSender, emailSender, adminEmail, repo, logger)

	horizon, err := config.Minutes("APPOINTMENT_HORIZON_MINUTES", 30*24*60)
	if err != nil {
		logger.Error("bad configuration", "err", err)
		return
	}
	pass := func(ctx context.Context) {
		now := time.Now()
		turns, err := repo.TurnStates(ctx, now.Format("2006-01-02"))
		if err != nil {
			logger.Error("turn state read failed", "err", err)
			return
		}
		appts, err := repo.AppointmentStates(ctx, now.Add(-time.Hour), now.Add(horizon))
		if err != nil {
			logger.Error("appointment state read failed", "err", err)
			return
		}
		events := trigger.Evaluate(now, turns, appts)
		if len(events) > 0 {
			dispatcher.Dispatch(ctx, events)
		}
	}

	recompute := watcher.New(pass, watcher.DefaultDebounce)
	go recompute.Run(ctx)

	startConsumer := func(topic string) {
		if strings.TrimSpace(topic) == "" {
			return
		}
		eventConsumer := kafkax.NewConsumer(logger, inboxRepo, kafkax.ConsumerConfig{
			Brokers: config.String("KAFKA_BROKERS", ""),
			GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
			Topic:   topic,
		}, func(ctx context.Context, msg kafka.Message) error {
			recompute.Request()
			return nil
		})
		go eventConsumer.Run(ctx)
	}
	startConsumer(config.String("KAFKA_TURN_TOPIC", "queue.turn.changed.v1"))
	startConsumer(config.String("KAFKA_APPOINTMENT_TOPIC", "booking.appointment.changed.v1"))

	// Time-based milestones (reminders) have no change event; a steady
	// poll keeps them firing and retries failed sends.
	pollEvery, err := config.Minutes("POLL_INTERVAL_MINUTES", 1)
	if err != nil {
		logger.Error("bad configuration", "err", err)
		return
	}
	go func() {
		ticker := time.NewTicker(pollEvery)
		defer ticker.Stop()
		recompute.Request()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				recompute.Request()
			}
		}
	}()

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
