// Package grpc is the internal RPC surface: token introspection for other
// services of the platform, plus the standard health service.
package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmitrijs2005/saasgate/internal/logging"
	"github.com/dmitrijs2005/saasgate/internal/server/services"
	"github.com/dmitrijs2005/saasgate/internal/server/tenancy"
)

type GRPCServer struct {
	address  string
	tokens   *services.TokenService
	resolver *tenancy.Resolver
	logger   logging.Logger
	health   *health.Server
}

func NewGRPCServer(a string, l logging.Logger, tokens *services.TokenService, resolver *tenancy.Resolver) *GRPCServer {
	return &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		tokens:   tokens,
		resolver: resolver,
		health:   health.NewServer(),
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.tenantInterceptor, s.accessTokenInterceptor))
	RegisterSessionsServer(srv, s)
	healthpb.RegisterHealthServer(srv, s.health)
	s.health.SetServingStatus(sessionsServiceName, healthpb.HealthCheckResponse_SERVING)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
