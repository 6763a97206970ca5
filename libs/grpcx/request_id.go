package grpcx

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

type ctxKey struct{}

// RequestIDMetadataKey carries the request id over gRPC metadata.
// Metadata keys are lowercased by convention.
const RequestIDMetadataKey = "x-request-id"

func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKey{}).(string)
	return v
}

func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, id)
}

func NewRequestID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
