// Package health exposes liveness and readiness for the web front-end.
//
// Docker and Kubernetes poll /healthz (the process is up) and /readyz (the
// chat backend and store are wired and requests can be served). When a gRPC
// port is configured the same readiness is published through the standard
// grpc.health.v1.Health service.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/nadzzz/solace/internal/config"
)

// Service is the gRPC service name reported alongside the overall status.
const Service = "solace.Chat"

// Server serves /healthz and /readyz, plus the gRPC health service when enabled.
type Server struct {
	port     int
	grpcPort int
	ready    atomic.Bool
	grpc     *grpchealth.Server
}

// New creates a health server. It starts not ready.
func New(cfg config.ServerConfig) *Server {
	s := &Server{
		port:     cfg.HealthPort,
		grpcPort: cfg.GRPCHealthPort,
		grpc:     grpchealth.NewServer(),
	}
	s.SetReady(false)
	return s
}

// SetReady marks the service as ready to accept traffic.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ready {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.grpc.SetServingStatus("", status)
	s.grpc.SetServingStatus(Service, status)
}

// Handler returns the HTTP handler for /healthz and /readyz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			writeStatus(w, http.StatusServiceUnavailable, "not_ready")
			return
		}
		writeStatus(w, http.StatusOK, "ok")
	})
	return mux
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// ListenAndServe starts the HTTP health server and, when configured, the
// gRPC health service. It blocks until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errc := make(chan error, 2)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("health server listening", "port", s.port)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("health server: %w", err)
		}
	}()

	if s.grpcPort != 0 {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.grpcPort))
		if err != nil {
			_ = httpServer.Close()
			return fmt.Errorf("grpc health listen: %w", err)
		}
		go func() {
			if err := s.ServeGRPC(ctx, lis); err != nil {
				errc <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errc:
		_ = httpServer.Close()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	return nil
}

// ServeGRPC serves the gRPC health service on lis until ctx is cancelled.
func (s *Server) ServeGRPC(ctx context.Context, lis net.Listener) error {
	server := grpc.NewServer()
	healthpb.RegisterHealthServer(server, s.grpc)

	slog.Info("grpc health service listening", "addr", lis.Addr().String())

	go func() {
		<-ctx.Done()
		s.grpc.Shutdown()
		server.GracefulStop()
	}()

	if err := server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc health serve: %w", err)
	}
	return nil
}
