// Package control implements the engine's control plane: a standard gRPC
// health service and an HTTP admin surface for live stats and whitelist
// reload.
package control

import (
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer wraps the standard grpc.health.v1.Health service. It
// reports NOT_SERVING until every component has initialized, flips to
// SERVING once Ready is called, and flips back to NOT_SERVING during
// graceful shutdown so a load balancer stops routing before the listener
// closes.
type HealthServer struct {
	grpcServer  *grpc.Server
	health      *health.Server
	serviceName string
}

// NewHealthServer returns a HealthServer reporting NOT_SERVING for
// serviceName until Ready is called.
func NewHealthServer(serviceName string) *HealthServer {
	h := health.NewServer()
	h.SetServingStatus(serviceName, healthpb.HealthCheckResponse_NOT_SERVING)

	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, h)

	return &HealthServer{grpcServer: grpcServer, health: h, serviceName: serviceName}
}

// Ready flips the service's reported status to SERVING.
func (s *HealthServer) Ready() {
	s.health.SetServingStatus(s.serviceName, healthpb.HealthCheckResponse_SERVING)
}

// NotServing flips the service's reported status back to NOT_SERVING, for
// use at the start of graceful shutdown.
func (s *HealthServer) NotServing() {
	s.health.SetServingStatus(s.serviceName, healthpb.HealthCheckResponse_NOT_SERVING)
}

// Serve blocks accepting gRPC health-check connections on lis.
func (s *HealthServer) Serve(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// Stop gracefully stops the underlying gRPC server.
func (s *HealthServer) Stop() {
	s.grpcServer.GracefulStop()
}
