package handler

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"portal-auth/backend/internal/health"
	"portal-auth/backend/internal/logger"
)

// ServiceName is the gRPC health service name reported for the auth backend.
const ServiceName = "portal.auth"

// Server implements grpc.health.v1.Health on top of a health.Checker so load
// balancers and Kubernetes health checks see the same readiness as GET /readyz.
type Server struct {
	healthpb.UnimplementedHealthServer
	checker *health.Checker
	log     *zap.Logger
}

// NewServer returns a new Health gRPC server. A nil checker always reports SERVING.
func NewServer(checker *health.Checker, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{checker: checker, log: log}
}

// Register attaches the health service to s.
func (s *Server) Register(r grpc.ServiceRegistrar) {
	healthpb.RegisterHealthServer(r, s)
}

// Check reports SERVING when every dependency answers its ping.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if svc := req.GetService(); svc != "" && svc != ServiceName {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", svc)
	}
	if _, err := s.checker.Check(ctx); err != nil {
		logger.FromContext(ctx, s.log).Warn("health check failed", zap.Error(err))
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
