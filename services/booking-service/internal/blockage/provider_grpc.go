//go:build protogen

package blockage

import (
	"context"
	"log/slog"
	"time"

	"github.com/turnohq/turnoline/libs/bizconfig"
	"github.com/turnohq/turnoline/libs/db"
	"github.com/turnohq/turnoline/libs/grpcx"
	queuev1 "github.com/turnohq/turnoline/protos/gen/queue/v1"
	"github.com/turnohq/turnoline/services/booking-service/internal/conflict"
)

type grpcProvider struct {
	client   queuev1.QueueServiceClient
	fallback Provider
}

// NewQueueProvider asks the queue service for live in-service activity.
// When the address is empty or the dial fails it degrades to reading the
// shared database directly.
func NewQueueProvider(logger *slog.Logger, pool *db.Pool, cfg func(ctx context.Context) bizconfig.Config, addr string) Provider {
	sql := NewSQLProvider(pool, cfg)
	if addr == "" {
		return sql
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := grpcx.Dial(ctx, addr, grpcx.DialOptions{Timeout: 5 * time.Second})
	if err != nil {
		logger.Warn("queue grpc provider unavailable, reading database directly", "err", err)
		return sql
	}

	logger.Info("queue grpc provider enabled", "addr", addr)
	return &grpcProvider{client: queuev1.NewQueueServiceClient(conn), fallback: sql}
}

func (p *grpcProvider) Blockages(ctx context.Context, barberID string, dayStart, dayEnd time.Time) ([]conflict.Interval, error) {
	resp, err := p.client.GetActiveService(ctx, &queuev1.ActiveServiceRequest{BarberId: barberID})
	if err != nil {
		return p.fallback.Blockages(ctx, barberID, dayStart, dayEnd)
	}
	var intervals []conflict.Interval
	for _, b := range resp.GetBlockages() {
		if b.GetStartUtc() == nil || b.GetEndUtc() == nil {
			continue
		}
		start := b.GetStartUtc().AsTime()
		end := b.GetEndUtc().AsTime()
		if end.After(start) {
			intervals = append(intervals, conflict.Interval{Start: start, End: end})
		}
	}
	breaks, err := p.fallback.Blockages(ctx, barberID, dayStart, dayEnd)
	if err != nil {
		return intervals, nil
	}
	return append(intervals, breaks...), nil
}
