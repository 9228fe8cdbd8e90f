package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported alongside the overall "" entry.
const ServiceName = "cvextract.v1.Extract"

// Pinger is satisfied by every ledger store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReporter keeps the gRPC health status in step with the ledger store.
type HealthReporter struct {
	hs       *health.Server
	store    Pinger
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

// NewGRPCServer builds a gRPC server carrying only the standard health service
// and reflection.
func NewGRPCServer(store Pinger, interval time.Duration, logger *slog.Logger) (*grpc.Server, *HealthReporter) {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	hr := &HealthReporter{hs: hs, store: store, interval: interval, timeout: 3 * time.Second, logger: logger}
	return srv, hr
}

// Check pings the store once and publishes the result.
func (h *HealthReporter) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("grpc.health.store_unavailable", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.hs.SetServingStatus("", status)
	h.hs.SetServingStatus(ServiceName, status)
	return status
}

// Run checks immediately, then on every interval until ctx is done.
func (h *HealthReporter) Run(ctx context.Context) {
	h.Check(ctx)
	t := time.NewTicker(h.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			h.Check(ctx)
		}
	}
}

// Shutdown flips every service to NOT_SERVING.
func (h *HealthReporter) Shutdown() {
	h.hs.Shutdown()
}
