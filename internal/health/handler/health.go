// Package handler serves liveness and readiness for the registration service
// over both HTTP and the standard grpc.health.v1 protocol.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// ServiceName is the gRPC health service name that reports registration readiness.
const ServiceName = "parkncharge.registration"

const defaultPingTimeout = 2 * time.Second

// Pinger checks connectivity to a backing store. *sql.DB implements it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server implements grpc.health.v1.Health and the HTTP probes.
// Readiness is the store ping; liveness is always SERVING.
type Server struct {
	healthpb.UnimplementedHealthServer
	pinger  Pinger
	timeout time.Duration
}

// NewServer returns a health server. pinger may be nil, in which case readiness always passes.
func NewServer(pinger Pinger) *Server {
	return &Server{pinger: pinger, timeout: defaultPingTimeout}
}

// Ready pings the store with a short timeout.
func (s *Server) Ready(ctx context.Context) error {
	if s.pinger == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.pinger.PingContext(ctx)
}

// Check answers grpc.health.v1 checks. The empty service name is overall server health.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	switch req.GetService() {
	case "", ServiceName:
	default:
		return nil, status.Errorf(codes.NotFound, "unknown service %q", req.GetService())
	}
	if err := s.Ready(ctx); err != nil {
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}

// Liveness always answers 200 while the process can serve HTTP.
func (s *Server) Liveness(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, http.StatusOK, "ok")
}

// Readiness answers 200 when the store is reachable and 503 otherwise.
func (s *Server) Readiness(w http.ResponseWriter, r *http.Request) {
	if err := s.Ready(r.Context()); err != nil {
		writeStatus(w, http.StatusServiceUnavailable, "unavailable")
		return
	}
	writeStatus(w, http.StatusOK, "ready")
}

func writeStatus(w http.ResponseWriter, code int, state string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": state})
}
