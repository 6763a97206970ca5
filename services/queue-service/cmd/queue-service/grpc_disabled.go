//go:build !protogen

package main

import (
	"context"
	"log/slog"

	"github.com/turnohq/turnoline/libs/bizconfig"
	"github.com/turnohq/turnoline/libs/db"
)

func startGrpcServer(_ context.Context, _ *slog.Logger, _ *db.Pool, _ *bizconfig.Repository) error {
	return nil
}
