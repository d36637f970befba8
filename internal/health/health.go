// Package health exposes the standard gRPC health service for inferd.
// The status follows the manager: SERVING while it accepts work,
// NOT_SERVING once shutdown has begun.
package health

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the service reported alongside the overall ("") status.
const ServiceName = "inferd"

const defaultPollInterval = time.Second

// Reporter is satisfied by *manager.Manager.
type Reporter interface {
	Ready() bool
}

// Server wraps a grpc.Server carrying only the health service.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	src    Reporter
	log    zerolog.Logger
}

// New builds a health server. Call Watch to keep the status in sync with r.
func New(r Reporter, log zerolog.Logger, opts ...grpc.ServerOption) *Server {
	s := &Server{
		grpc:   grpc.NewServer(opts...),
		health: health.NewServer(),
		src:    r,
		log:    log,
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.sync()
	return s
}

func (s *Server) sync() {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if s.src.Ready() {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Watch polls the reporter until ctx is done. Non-positive intervals use 1s.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.sync()
		}
	}
}

// Refresh re-reads the reporter immediately.
func (s *Server) Refresh() { s.sync() }

// Serve blocks serving lis.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info().Str("addr", lis.Addr().String()).Msg("grpc health listening")
	return s.grpc.Serve(lis)
}

// Stop flips every service to NOT_SERVING and drains open streams.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
