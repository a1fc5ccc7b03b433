package server

import (
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// RFVServiceName is the health service name reported next to the overall status.
const RFVServiceName = "rfv.v1.Segmentation"

// NewGRPCServer builds a gRPC server carrying the standard health service.
// Both the overall and the named status start as NOT_SERVING.
func NewGRPCServer(logger *slog.Logger) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(RFVServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	// Reflection for grpcurl
	reflection.Register(grpcServer)
	logger.Debug("grpc.health.registered", "service", RFVServiceName)
	return grpcServer, hs
}

// SetServing flips every health status at once.
func SetServing(hs *health.Server, serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	hs.SetServingStatus("", st)
	hs.SetServingStatus(RFVServiceName, st)
}
