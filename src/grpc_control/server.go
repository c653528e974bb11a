package grpc_control

import (
	"fmt"
	"net"

	"options-observer/src/logger"
	"options-observer/src/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCServer hosts the control service and the standard health service.
type GRPCServer struct {
	Host   string
	Port   int
	Server *grpc.Server
	Health *health.Server
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewGRPCServer(cfg *models.MConfig, svc ControlServer, log *logger.Logger) *GRPCServer {
	srv := grpc.NewServer()
	srv.RegisterService(&ServiceDesc, svc)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	return &GRPCServer{
		Host:   cfg.GrpcHost,
		Port:   cfg.GrpcPort,
		Server: srv,
		Health: hs,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

// Start listens on the configured address and serves in the background.
func (g *GRPCServer) Start() error {
	addr := fmt.Sprintf("%s:%d", g.Host, g.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", addr, err)
	}
	g.Logger.Info("gRPC control listening on %s", addr)
	go g.Serve(lis)
	return nil
}

// -----------------------------------------------------------------------------

func (g *GRPCServer) Serve(lis net.Listener) {
	if err := g.Server.Serve(lis); err != nil {
		g.Logger.Error("gRPC server stopped: %v", err)
	}
}

// -----------------------------------------------------------------------------

func (g *GRPCServer) Stop() {
	g.Health.Shutdown()
	g.Server.GracefulStop()
}
