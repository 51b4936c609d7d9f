package interceptors

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"portal-auth/backend/internal/audit"
	"portal-auth/backend/internal/logger"
)

const requestIDMetadataKey = "x-request-id"

// RequestUnary returns a unary server interceptor that assigns a request id (from
// x-request-id metadata or a fresh UUID), records the client IP for audit entries,
// and writes one access log line per RPC. skipMethods suppresses the log line only
// (e.g. high-frequency health checks).
func RequestUnary(log *zap.Logger, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		reqID := incomingRequestID(ctx)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ip := ClientIP(ctx)
		ctx = logger.WithRequestID(ctx, reqID)
		ctx = audit.WithClientIP(ctx, ip)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDMetadataKey, reqID))

		resp, err := handler(ctx, req)
		if skipMethods[info.FullMethod] {
			return resp, err
		}
		fields := []zap.Field{
			zap.String("request_id", reqID),
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", logger.MaskIP(ip)),
		}
		if err != nil {
			log.Warn("rpc failed", append(fields, zap.Error(err))...)
			return resp, err
		}
		log.Info("rpc completed", fields...)
		return resp, err
	}
}

func incomingRequestID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if vals := md.Get(requestIDMetadataKey); len(vals) > 0 {
		return vals[0]
	}
	return ""
}
