//go:build !protogen

package blockage

import (
	"context"
	"log/slog"

	"github.com/turnohq/turnoline/libs/bizconfig"
	"github.com/turnohq/turnoline/libs/db"
)

func NewQueueProvider(_ *slog.Logger, pool *db.Pool, cfg func(ctx context.Context) bizconfig.Config, _ string) Provider {
	return NewSQLProvider(pool, cfg)
}
