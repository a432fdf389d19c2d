package grpc

import (
	"context"
	"log"
	"net"
	"time"

	core "docnotary/ingestion/service/core"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// NotaryService is the service name reported through the health protocol
const NotaryService = "docnotary.Notary"

// Server exposes the standard gRPC health service for the notary.
// NotaryService is SERVING while a registry connection is available.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	svc        *core.Service
	logger     *log.Logger
	done       chan struct{}
}

// NewServer creates a new gRPC Server instance
func NewServer(s *core.Service, l *log.Logger, opts ...grpc.ServerOption) *Server {
	srv := &Server{
		grpcServer: grpc.NewServer(opts...),
		health:     health.NewServer(),
		svc:        s,
		logger:     l,
		done:       make(chan struct{}),
	}
	healthpb.RegisterHealthServer(srv.grpcServer, srv.health)
	reflection.Register(srv.grpcServer)
	srv.Refresh()
	return srv
}

// Refresh re-evaluates the serving status
func (s *Server) Refresh() {
	status := healthpb.HealthCheckResponse_SERVING
	if s.svc.Transactions().Chain() == nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(NotaryService, status)
}

// Serve accepts connections on lis until Stop is called.
// The serving status is refreshed every interval when interval is positive.
func (s *Server) Serve(lis net.Listener, interval time.Duration) error {
	if interval > 0 {
		go s.refreshLoop(interval)
	}
	s.logger.Printf("gRPC Server: health service listening on %s", lis.Addr())
	return s.grpcServer.Serve(lis)
}

func (s *Server) refreshLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Refresh()
		case <-s.done:
			return
		}
	}
}

// Stop marks every service NOT_SERVING and drains in-flight RPCs until ctx expires
func (s *Server) Stop(ctx context.Context) {
	close(s.done)
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		s.logger.Println("gRPC Server: graceful stop timed out, forcing shutdown")
		s.grpcServer.Stop()
	}
}
