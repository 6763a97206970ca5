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
	"github.com/turnohq/turnoline/services/queue-service/internal/handlers"
	"github.com/turnohq/turnoline/services/queue-service/internal/queueorder"
	"github.com/turnohq/turnoline/services/queue-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "queue-service")
	port, err := config.Port("PORT", "8082")
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

	repo := storage.NewTurnRepository(pool)
	configRepo := bizconfig.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	ordering := queueorder.New(repo, logger)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers: config.String("KAFKA_BROKERS", ""),
	})
	go outboxPublisher.Run(ctx)

	queueHandler := handlers.NewQueueHandler(repo, configRepo, outboxRepo, ordering, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/public/turns", queueHandler.TakeTurn)
	mux.HandleFunc("/api/v1/public/turns/cancel", queueHandler.Cancel)
	mux.HandleFunc("/api/v1/public/queue", queueHandler.GetQueue)
	mux.HandleFunc("/api/v1/public/wait-estimate", queueHandler.WaitEstimate)
	mux.HandleFunc("/api/v1/queue/next", queueHandler.CallNext)
	mux.HandleFunc("/api/v1/queue/reorder", queueHandler.Reorder)
	mux.HandleFunc("/api/v1/queue/finish", queueHandler.Finish)
	mux.HandleFunc("/api/v1/queue/no-show", queueHandler.NoShow)
	mux.HandleFunc("/api/v1/queue/return", queueHandler.Return)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "queue")
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

	if err := startGrpcServer(ctx, logger, pool, configRepo); err != nil {
		logger.Error("grpc server failed to start", "err", err)
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
