package ingest

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// LoggingInterceptor returns a gRPC UnaryServerInterceptor that logs every
// call with its method, status code and duration. Failed calls are logged at
// warn level, successful ones at debug.
func LoggingInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		attrs := []any{
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration", time.Since(start),
		}
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			attrs = append(attrs, "peer", p.Addr.String())
		}

		if err != nil {
			slog.Warn("ingest: call failed", append(attrs, "err", err)...)
		} else {
			slog.Debug("ingest: call", attrs...)
		}
		return resp, err
	}
}
