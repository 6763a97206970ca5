package main

import (
	"context"
	"net/http"
	"time"

	"github.com/turnohq/turnoline/libs/bizconfig"
	"github.com/turnohq/turnoline/libs/config"
	"github.com/turnohq/turnoline/libs/db"
	"github.com/turnohq/turnoline/libs/httpx"
	"github.com/turnohq/turnoline/libs/kafkax"
	otelx "github.com/turnohq/turnoline/libs/otel"
	"github.com/turnohq/turnoline/libs/outbox"
	"github.com/turnohq/turnoline/libs/runtime"
	"github.com/turnohq/turnoline/services/booking-service/internal/blockage"
	"github.com/turnohq/turnoline/services/booking-service/internal/handlers"
	"github.com/turnohq/turnoline/services/booking-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
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

	repo := storage.NewBookingRepository(pool)
	configRepo := bizconfig.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	blockageProvider := blockage.NewQueueProvider(logger, pool, func(ctx context.Context) bizconfig.Config {
		return configRepo.LoadOrDefault(ctx, logger)
	}, config.String("QUEUE_GRPC_ADDR", ""))

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers: config.String("KAFKA_BROKERS", ""),
	})
	go outboxPublisher.Run(ctx)

	bookingHandler := handlers.NewBookingHandler(repo, configRepo, blockageProvider, outboxRepo, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/public/slots", bookingHandler.Slots)
	mux.HandleFunc("/api/v1/public/book", bookingHandler.Book)
	mux.HandleFunc("/api/v1/appointments", bookingHandler.List)
	mux.HandleFunc("/api/v1/appointments/cancel", bookingHandler.Cancel)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
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
