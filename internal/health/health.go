// Package health exposes the standard gRPC health service so supervisors
// can tell whether the plotter's controller link is up.
package health

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/banshee-data/pointillist/internal/serialmux"
)

// Service is the name reported alongside the overall ("") status.
const Service = "pointillist.Plotter"

// Server runs a gRPC server with only the health service registered.
type Server struct {
	grpc   *grpc.Server
	health *health.Server

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer starts in NOT_SERVING until SetServing or Track says otherwise.
func NewServer() *Server {
	s := &Server{
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.SetServing(false)
	return s
}

// SetServing updates both the overall and the named service status.
func (s *Server) SetServing(ok bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(Service, status)
}

// Listen binds addr and serves in the background.
func (s *Server) Listen(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.Serve(lis)
	log.Printf("gRPC health service listening on %s", lis.Addr())
	return nil
}

// Serve accepts connections on lis in the background.
func (s *Server) Serve(lis net.Listener) {
	s.mu.Lock()
	s.listener = lis
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.grpc.Serve(lis); err != nil {
			log.Printf("gRPC health server stopped: %v", err)
		}
	}()
}

// Track reports SERVING while m is open. It returns when m is closed or
// ctx is done, leaving the status NOT_SERVING.
func (s *Server) Track(ctx context.Context, m serialmux.SerialMuxInterface) {
	id, ch := m.Subscribe()
	defer m.Unsubscribe(id)

	s.SetServing(true)
	defer s.SetServing(false)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
		}
	}
}

// Stop marks every service NOT_SERVING and stops the server gracefully.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
	s.wg.Wait()
}
