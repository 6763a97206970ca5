package main

import (
	"context"
	"net/http"
	"time"

	"github.com/turnohq/turnoline/libs/bizconfig"
	"github.com/turnohq/turnoline/libs/config"
	"github.com/turnohq/turnoline/libs/db"
	"github.com/turnohq/turnoline/libs/httpx"
	otelx "github.com/turnohq/turnoline/libs/otel"
	"github.com/turnohq/turnoline/libs/runtime"
	"github.com/turnohq/turnoline/services/business-service/internal/handlers"
	"github.com/turnohq/turnoline/services/business-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "business-service")
	port, err := config.Port("PORT", "8084")
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
	configRepo := bizconfig.NewRepository(pool)
	httpHandler := handlers.New(repo, configRepo, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
	)
	mux.HandleFunc("/api/v1/business/config", httpHandler.Config)
	mux.HandleFunc("/api/v1/business/barbers", httpHandler.Barbers)
	mux.HandleFunc("/api/v1/business/barbers/status", httpHandler.BarberStatus)
	mux.HandleFunc("/api/v1/business/breaks", httpHandler.Breaks)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "business")
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
