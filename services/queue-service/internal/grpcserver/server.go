//go:build protogen

package grpcserver

import (
	"context"
	"time"

	"github.com/turnohq/turnoline/libs/bizconfig"
	"github.com/turnohq/turnoline/libs/db"
	queuev1 "github.com/turnohq/turnoline/protos/gen/queue/v1"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/timestamppb"
)

type server struct {
	queuev1.UnimplementedQueueServiceServer
	pool    *db.Pool
	cfgRepo *bizconfig.Repository
}

func Register(grpcServer *grpc.Server, pool *db.Pool, cfgRepo *bizconfig.Repository) {
	queuev1.RegisterQueueServiceServer(grpcServer, &server{pool: pool, cfgRepo: cfgRepo})
}

// GetActiveService reports the intervals currently blocked by walk-in turns
// in service. A turn blocks from its start until the configured service
// duration plus buffer elapses.
func (s *server) GetActiveService(ctx context.Context, req *queuev1.ActiveServiceRequest) (*queuev1.ActiveServiceResponse, error) {
	cfg, err := s.cfgRepo.Load(ctx)
	if err != nil {
		cfg = bizconfig.Default()
	}

	query := `
		SELECT service_name, started_at
		FROM turns
		WHERE status = 'in_service' AND started_at IS NOT NULL`
	args := []any{}
	if req.GetBarberId() != "" {
		query += ` AND barber_id = $1`
		args = append(args, req.GetBarberId())
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resp := &queuev1.ActiveServiceResponse{}
	for rows.Next() {
		var serviceName string
		var startedAt time.Time
		if err := rows.Scan(&serviceName, &startedAt); err != nil {
			return nil, err
		}
		mins := cfg.ServiceMinutes(serviceName) + cfg.BufferMinutes
		resp.Blockages = append(resp.Blockages, &queuev1.Blockage{
			StartUtc: timestamppb.New(startedAt),
			EndUtc:   timestamppb.New(startedAt.Add(time.Duration(mins) * time.Minute)),
		})
	}
	return resp, rows.Err()
}
