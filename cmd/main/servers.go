package main

import (
	"context"

	"options-observer/src/grpc_control"
	"options-observer/src/interfaces"
	"options-observer/src/logger"
	"options-observer/src/publish"
	"options-observer/src/scheduler"
	"options-observer/src/server"

	"go.uber.org/fx"
)

// -----------------------------------------------------------------------------

// registerServers starts the HTTP, gRPC and NATS endpoints, then the
// broadcaster. Stop runs in reverse.
func registerServers(
	lc fx.Lifecycle,
	srv *server.FastAPIServer,
	grpcSrv *grpc_control.GRPCServer,
	broadcaster *scheduler.Broadcaster,
	pub interfaces.IPublisher,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := srv.Start(); err != nil {
				return err
			}
			if grpcSrv.Port > 0 {
				if err := grpcSrv.Start(); err != nil {
					return err
				}
			}
			if np, ok := pub.(*publish.NATSPublisher); ok {
				if err := np.Connect(); err != nil {
					log.Warning("NATS unavailable, snapshots will not be published: %v", err)
				}
			}
			broadcaster.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			broadcaster.Stop()
			if pub != nil {
				if err := pub.Close(); err != nil {
					log.Warning("NATS close: %v", err)
				}
			}
			if grpcSrv.Port > 0 {
				grpcSrv.Stop()
			}
			return srv.Stop(ctx)
		},
	})
}
