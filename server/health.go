package server

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/aras-services/svccore/pool"
)

// healthService implements grpc.health.v1.Health backed by a
// pool.HealthAggregator. Check answers SERVING iff every non-optional
// pool is healthy; an optional pool's failure never flips this to
// NOT_SERVING. Watch streams the current status once and returns, a
// placeholder for real-time updates.
type healthService struct {
	grpc_health_v1.UnimplementedHealthServer
	aggregator *pool.HealthAggregator
}

func newHealthService(aggregator *pool.HealthAggregator) *healthService {
	return &healthService{aggregator: aggregator}
}

func (h *healthService) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	if h.aggregator == nil {
		return &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVING}, nil
	}
	if h.aggregator.GetAggregatedHealth().OverallHealthy {
		return &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVING}, nil
	}
	return &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_NOT_SERVING}, nil
}

func (h *healthService) Watch(req *grpc_health_v1.HealthCheckRequest, stream grpc_health_v1.Health_WatchServer) error {
	resp, err := h.Check(stream.Context(), req)
	if err != nil {
		return err
	}
	if err := stream.Send(resp); err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	return nil
}
