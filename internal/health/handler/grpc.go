package handler

import (
	"context"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"anomalyguard/backend/internal/health"
)

// Server implements grpc.health.v1.Health for Kubernetes probes and load balancers.
// Check runs the readiness checks on every call; Watch is not supported.
type Server struct {
	healthpb.UnimplementedHealthServer
	checker *health.Checker
}

// NewServer returns a health server backed by checker.
func NewServer(checker *health.Checker) *Server {
	return &Server{checker: checker}
}

// Check never returns an error for a failing dependency; it reports NOT_SERVING instead.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	status := healthpb.HealthCheckResponse_SERVING
	if s.checker != nil && !s.checker.Check(ctx).Serving() {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	return &healthpb.HealthCheckResponse{Status: status}, nil
}
