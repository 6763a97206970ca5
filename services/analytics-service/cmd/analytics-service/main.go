package main

import (
	"context"
	"encoding/json"
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
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "analytics-service")
	port, err := config.Port("PORT", "8086")
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

	inboxRepo := inbox.NewRepository(pool)
	brokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "analytics-service")

	turnConsumer := kafkax.NewConsumer(logger, inboxRepo, kafkax.ConsumerConfig{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   "queue.turn.changed.v1",
	}, func(ctx context.Context, msg kafka.Message) error {
		var payload struct {
			TurnID      string `json:"turn_id"`
			Code        string `json:"code"`
			BusinessDay string `json:"business_day"`
			Status      string `json:"status"`
			Change      string `json:"change"`
		}
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid turn payload", "err", err)
			return nil
		}
		if payload.BusinessDay == "" || payload.Change == "" {
			logger.Error("missing turn fields")
			return nil
		}
		if _, err := time.Parse("2006-01-02", payload.BusinessDay); err != nil {
			logger.Error("invalid business_day", "err", err)
			return nil
		}

		column := turnMetricColumn(payload.Change)
		if column == "" {
			return nil
		}
		if _, err := pool.Exec(ctx, `
			INSERT INTO daily_queue_metrics (day, `+column+`)
			VALUES ($1::date, 1)
			ON CONFLICT (day)
			DO UPDATE SET `+column+` = daily_queue_metrics.`+column+` + 1,
			              updated_at = now()
		`, payload.BusinessDay); err != nil {
			logger.Error("failed to update queue metrics", "err", err)
			return err
		}

		logger.Info("queue metric recorded", "day", payload.BusinessDay, "change", payload.Change, "code", payload.Code)
		return nil
	})
	go turnConsumer.Run(ctx)

	apptConsumer := kafkax.NewConsumer(logger, inboxRepo, kafkax.ConsumerConfig{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   "booking.appointment.changed.v1",
	}, func(ctx context.Context, msg kafka.Message) error {
		var payload struct {
			AppointmentID string `json:"appointment_id"`
			BarberID      string `json:"barber_id"`
			ServiceName   string `json:"service_name"`
			StartAt       string `json:"start_at"`
			Change        string `json:"change"`
		}
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid appointment payload", "err", err)
			return nil
		}
		if payload.AppointmentID == "" || payload.StartAt == "" || payload.Change == "" {
			logger.Error("missing appointment fields")
			return nil
		}
		startAt, err := time.Parse(time.RFC3339, payload.StartAt)
		if err != nil {
			logger.Error("invalid start_at", "err", err)
			return nil
		}

		bookedInc := 0
		cancelledInc := 0
		switch payload.Change {
		case "created":
			bookedInc = 1
		case "cancelled":
			cancelledInc = 1
		default:
			return nil
		}

		if _, err := pool.Exec(ctx, `
			INSERT INTO daily_appointment_metrics (day, booked_count, cancelled_count)
			VALUES ($1::date, $2, $3)
			ON CONFLICT (day)
			DO UPDATE SET booked_count = daily_appointment_metrics.booked_count + EXCLUDED.booked_count,
			              cancelled_count = daily_appointment_metrics.cancelled_count + EXCLUDED.cancelled_count,
			              updated_at = now()
		`, startAt.UTC(), bookedInc, cancelledInc); err != nil {
			logger.Error("failed to update appointment metrics", "err", err)
			return err
		}

		logger.Info("appointment metric recorded", "appointment_id", payload.AppointmentID, "change", payload.Change)
		return nil
	})
	go apptConsumer.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	mux.HandleFunc("/api/v1/stats/daily", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		day := strings.TrimSpace(r.URL.Query().Get("date"))
		if day == "" {
			day = time.Now().Format("2006-01-02")
		}
		if _, err := time.Parse("2006-01-02", day); err != nil {
			http.Error(w, "invalid date", http.StatusBadRequest)
			return
		}

		stats := map[string]any{"day": day}
		var taken, served, cancelled, noShow int
		err := pool.QueryRow(r.Context(), `
			SELECT taken_count, served_count, cancelled_count, no_show_count
			FROM daily_queue_metrics
			WHERE day = $1::date
		`, day).Scan(&taken, &served, &cancelled, &noShow)
		if err == nil {
			stats["turns"] = map[string]int{
				"taken":     taken,
				"served":    served,
				"cancelled": cancelled,
				"no_show":   noShow,
			}
		}
		var booked, apptCancelled int
		err = pool.QueryRow(r.Context(), `
			SELECT booked_count, cancelled_count
			FROM daily_appointment_metrics
			WHERE day = $1::date
		`, day).Scan(&booked, &apptCancelled)
		if err == nil {
			stats["appointments"] = map[string]int{
				"booked":    booked,
				"cancelled": apptCancelled,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(stats)
	})

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "analytics")
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

// turnMetricColumn maps a turn change to its counter. Reorders and
// returns do not move daily totals.
func turnMetricColumn(change string) string {
	switch change {
	case "created":
		return "taken_count"
	case "served":
		return "served_count"
	case "cancelled":
		return "cancelled_count"
	case "no_show":
		return "no_show_count"
	default:
		return ""
	}
}
