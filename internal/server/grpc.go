package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"anomalyguard/backend/internal/health"
	healthhandler "anomalyguard/backend/internal/health/handler"
)

// NewGRPCServer returns the side-channel gRPC server. It carries only the standard health
// service so probes can use grpc_health_probe; login traffic stays on HTTP.
func NewGRPCServer(checker *health.Checker, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}, opts...)
	s := grpc.NewServer(opts...)
	RegisterServices(s, checker)
	return s
}

// RegisterServices registers the gRPC services on s.
func RegisterServices(s grpc.ServiceRegistrar, checker *health.Checker) {
	healthpb.RegisterHealthServer(s, healthhandler.NewServer(checker))
}
