package health

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/yourusername/totals-edge/internal/logger"
)

// GRPCServer exposes the standard grpc.health.v1 service
type GRPCServer struct {
	service string
	port    int
	server  *grpc.Server
	health  *grpchealth.Server
	logger  *logrus.Logger
}

// NewGRPCServer creates a health server reporting NOT_SERVING until SetServing(true)
func NewGRPCServer(port int, service string, log *logrus.Logger) *GRPCServer {
	hs := grpchealth.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	g := &GRPCServer{
		service: service,
		port:    port,
		server:  srv,
		health:  hs,
		logger:  logger.OrDiscard(log),
	}
	g.SetServing(false)
	return g
}

// SetServing updates the overall and per-service status
func (g *GRPCServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	g.health.SetServingStatus("", status)
	g.health.SetServingStatus(g.service, status)
}

// Serve blocks serving on lis
func (g *GRPCServer) Serve(lis net.Listener) error {
	return g.server.Serve(lis)
}

// Start listens on the configured port and stops when ctx is cancelled
func (g *GRPCServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", ":"+strconv.Itoa(g.port))
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port %d: %w", g.port, err)
	}

	go func() {
		g.logger.WithField("port", g.port).Info("gRPC health server starting")
		if err := g.Serve(lis); err != nil {
			g.logger.WithError(err).Error("gRPC health server error")
		}
	}()
	go func() {
		<-ctx.Done()
		g.Stop()
	}()
	return nil
}

// Stop marks the service as shutting down and drains connections
func (g *GRPCServer) Stop() {
	g.health.Shutdown()
	g.server.GracefulStop()
}
