package server

import (
	"context"
	"net"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	"opendut-carl/internal/application/services"
	"opendut-carl/internal/config"
)

// HealthSource reports whether the resource store is usable
type HealthSource interface {
	Healthy() bool
}

// Services are the application services the server exposes
type Services struct {
	Peers    *services.PeerService
	Clusters *services.ClusterService
}

// Server is the gRPC endpoint of CARL
type Server struct {
	grpc     *grpc.Server
	health   *health.Server
	source   HealthSource
	services Services
	interval time.Duration
	logger   logr.Logger
}

const healthPollInterval = 5 * time.Second

// SetupServer sets up the gRPC server with health reporting and rate limiting
func SetupServer(cfg *config.Config, source HealthSource, svc Services, logger logr.Logger) (*Server, error) {
	if svc.Peers == nil || svc.Clusters == nil {
		return nil, errors.New("peer and cluster services are required")
	}
	creds, err := cfg.GetTransportCredentials()
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create transport credentials")
	}

	limiter := newLimiter(cfg.Settings.RateLimit, cfg.Settings.RateBurst)
	grpcServer := grpc.NewServer(
		grpc.Creds(creds),
		grpc.ChainUnaryInterceptor(unaryRateLimit(limiter)),
		grpc.ChainStreamInterceptor(streamRateLimit(limiter)),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle: 5 * time.Minute,
			Time:              time.Minute,
			Timeout:           20 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             10 * time.Second,
			PermitWithoutStream: true,
		}),
	)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	return &Server{
		grpc:     grpcServer,
		health:   healthServer,
		source:   source,
		services: svc,
		interval: healthPollInterval,
		logger:   logger.WithName("server"),
	}, nil
}

// GRPC returns the underlying gRPC server for registering services
func (s *Server) GRPC() *grpc.Server {
	return s.grpc
}

// Services returns the application services behind the server
func (s *Server) Services() Services {
	return s.services
}

// Serve serves on lis until ctx is done, then stops gracefully.
// Peers left online by an earlier run are marked offline first.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	if err := s.resetPeerConnections(ctx); err != nil {
		return err
	}
	s.updateHealth()
	go s.followHealth(ctx)

	go func() {
		<-ctx.Done()
		s.logger.Info("stopping gRPC server")
		s.health.Shutdown()
		s.grpc.GracefulStop()
	}()

	s.logger.Info("serving gRPC", "address", lis.Addr().String())
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return errors.Wrap(err, "gRPC server failed")
	}
	return nil
}

// resetPeerConnections marks every known peer offline, no peer is connected before Serve
func (s *Server) resetPeerConnections(ctx context.Context) error {
	peers, err := s.services.Peers.ListPeerDescriptors(ctx)
	if err != nil {
		return errors.WithMessage(err, "failed to list peers")
	}
	for _, peer := range peers {
		if err := s.services.Peers.MarkOffline(ctx, peer.ID); err != nil {
			return errors.WithMessagef(err, "failed to reset connection of peer %s", peer.ID)
		}
	}
	s.logger.V(1).Info("reset peer connections", "peers", len(peers))
	return nil
}

func (s *Server) followHealth(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.updateHealth()
		}
	}
}

func (s *Server) updateHealth() {
	st := healthpb.HealthCheckResponse_SERVING
	if !s.source.Healthy() {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", st)
}

func newLimiter(limit float64, burst int) *rate.Limiter {
	if limit <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(limit), burst)
}

func unaryRateLimit(limiter *rate.Limiter) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !limiter.Allow() {
			return nil, status.Errorf(codes.ResourceExhausted, "%s is rate limited", info.FullMethod)
		}
		return handler(ctx, req)
	}
}

func streamRateLimit(limiter *rate.Limiter) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if !limiter.Allow() {
			return status.Errorf(codes.ResourceExhausted, "%s is rate limited", info.FullMethod)
		}
		return handler(srv, ss)
	}
}
