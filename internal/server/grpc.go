package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	healthhandler "parkncharge/registration/internal/health/handler"
)

// NewGRPCServer returns the gRPC server for load balancer health checks.
// It serves grpc.health.v1 backed by health and server reflection.
func NewGRPCServer(health *healthhandler.Server, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}, opts...)
	s := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s, health)
	reflection.Register(s)
	return s
}
