package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"portal-auth/backend/internal/health"
	healthhandler "portal-auth/backend/internal/health/handler"
	"portal-auth/backend/internal/security"
	"portal-auth/backend/internal/server/interceptors"
)

// GRPCDeps holds dependencies for the gRPC listener.
type GRPCDeps struct {
	// Checker backs grpc.health.v1.Health. If nil, Check always reports SERVING.
	Checker *health.Checker
	// Tokens verifies bearer tokens on non-public RPCs. If nil, every non-public RPC is Unauthenticated.
	Tokens *security.TokenIssuer
	Logger *zap.Logger
}

// healthMethods are public and not access-logged.
var healthMethods = map[string]bool{
	healthpb.Health_Check_FullMethodName: true,
	healthpb.Health_Watch_FullMethodName: true,
	healthpb.Health_List_FullMethodName:  true,
}

// NewGRPCServer returns a gRPC server instrumented with otelgrpc that serves the
// standard health protocol. The interceptor chain is request id/access log, then auth.
func NewGRPCServer(deps GRPCDeps, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.RequestUnary(deps.Logger, healthMethods),
			interceptors.AuthUnary(deps.Tokens, healthMethods),
		),
	}, opts...)
	s := grpc.NewServer(opts...)
	RegisterServices(s, deps)
	return s
}

// RegisterServices registers all gRPC services with the given registrar.
//
// Service → handler mapping:
//   - grpc.health.v1.Health → internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, deps GRPCDeps) {
	healthhandler.NewServer(deps.Checker, deps.Logger).Register(s)
}
