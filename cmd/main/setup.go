package main

import (
	"context"
	"time"

	"options-observer/src/analysis"
	"options-observer/src/cache"
	"options-observer/src/config"
	datasource "options-observer/src/data_source"
	"options-observer/src/data_source/angel"
	"options-observer/src/grpc_control"
	"options-observer/src/helpers"
	"options-observer/src/interfaces"
	"options-observer/src/logger"
	"options-observer/src/models"
	"options-observer/src/network"
	"options-observer/src/publish"
	"options-observer/src/resolver"
	"options-observer/src/scheduler"
	"options-observer/src/server"
	"options-observer/src/session"
	"options-observer/src/storage"
	"options-observer/src/utils"

	"go.uber.org/fx"
)

// -----------------------------------------------------------------------------

func provideLogger(conf *config.Config) *logger.Logger {
	return logger.NewLogger(conf.LogLevel, conf.Name)
}

// -----------------------------------------------------------------------------

func provideModelConfig(conf *config.Config) *models.MConfig {
	return conf.MConfig
}

// -----------------------------------------------------------------------------

func provideCache(lc fx.Lifecycle, cfg *models.MConfig) *cache.TTLCache {
	c := cache.NewTTLCache(
		time.Duration(cfg.Cache.DefaultTTLSeconds)*time.Second,
		time.Duration(cfg.Cache.CheckPeriodSeconds)*time.Second,
	)
	lc.Append(fx.StopHook(c.Close))
	return c
}

// -----------------------------------------------------------------------------

func provideInstrumentStore(cfg *models.MConfig, log *logger.Logger) (interfaces.IInstrumentStore, error) {
	switch cfg.Storage.DBType {
	case "postgres":
		return storage.NewPostgresDB(cfg.Storage.DBConnectionString, log.Named("postgres"))
	default:
		return storage.NewAsyncSQLiteDB(cfg.Storage.DBPath, log.Named("sqlite")), nil
	}
}

// -----------------------------------------------------------------------------

func provideTokenStore(lc fx.Lifecycle, cfg *models.MConfig, c *cache.TTLCache, log *logger.Logger) (interfaces.ITokenStore, error) {
	if cfg.TokenStore.Type != "redis" {
		return storage.NewMemoryTokenStore(c, cfg.TokenStore.Key), nil
	}

	store, err := storage.NewRedisTokenStore(cfg.TokenStore.RedisURL, cfg.TokenStore.Key)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// tokens just will not survive a restart while redis is down
			if err := store.Ping(ctx); err != nil {
				log.Warning("Token store unavailable: %v", err)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return store.Close()
		},
	})
	return store, nil
}

// -----------------------------------------------------------------------------

func provideNetwork(cfg *models.MConfig, log *logger.Logger) interfaces.INetworkManager {
	return network.NewAsyncNetworkManager(cfg.Network.UserAgent, cfg.ScripMaster.Retries, log.Named("network"))
}

// -----------------------------------------------------------------------------

func provideBroker(cfg *models.MConfig, netMgr interfaces.INetworkManager, log *logger.Logger) interfaces.IBrokerAPI {
	identity := helpers.DetectClientIdentity(cfg.Broker.LocalIP, cfg.Broker.PublicIP, cfg.Broker.MACAddress)
	return angel.NewClient(cfg.Broker, identity, netMgr, log.Named("angel"))
}

// -----------------------------------------------------------------------------

func provideSession(api interfaces.IBrokerAPI, store interfaces.ITokenStore, cfg *models.MConfig, log *logger.Logger) *session.Manager {
	return session.NewManager(api, store, cfg.Broker, log.Named("session"))
}

// -----------------------------------------------------------------------------

func provideScripMaster(cfg *models.MConfig, netMgr interfaces.INetworkManager, log *logger.Logger) *datasource.ScripMasterCache {
	source := datasource.NewHTTPScripSource(cfg.ScripMaster.URL, netMgr)
	return datasource.NewScripMasterCache(
		source,
		time.Duration(cfg.ScripMaster.TTLHours)*time.Hour,
		time.Duration(cfg.ScripMaster.Timeout)*time.Second,
		log.Named("scrip-master"),
	)
}

// -----------------------------------------------------------------------------

func provideResolver(cfg *models.MConfig, scrips *datasource.ScripMasterCache, store interfaces.IInstrumentStore, log *logger.Logger) *resolver.CachedResolver {
	return resolver.NewCachedResolver(cfg.Chain.Underlying, scrips, store, log.Named("resolver"))
}

// -----------------------------------------------------------------------------

func provideAssembler(cfg *models.MConfig, sess *session.Manager, res *resolver.CachedResolver, log *logger.Logger) *analysis.ChainAssembler {
	return analysis.NewChainAssembler(cfg.Chain, cfg.Broker.MaxTokensPerQuote, sess, res, log.Named("chain"))
}

// -----------------------------------------------------------------------------

func provideFacade(
	cfg *models.MConfig,
	sess *session.Manager,
	assembler *analysis.ChainAssembler,
	scrips *datasource.ScripMasterCache,
	c *cache.TTLCache,
	log *logger.Logger,
) interfaces.IMarketService {
	return analysis.NewAnalysisFacade(cfg, sess, sess, assembler, scrips, c, log.Named("analysis"))
}

// -----------------------------------------------------------------------------

func provideCalendar(cfg *models.MConfig, log *logger.Logger) (interfaces.IMarketCalendar, error) {
	weekday, err := config.ParseWeekday(cfg.Chain.ExpiryWeekday)
	if err != nil {
		return nil, err
	}
	return utils.NewMarketScheduler(utils.GetCalendar(utils.MICNSE), weekday, cfg.Chain.ExpiryCount, log.Named("calendar")), nil
}

// -----------------------------------------------------------------------------

func provideMetrics(cfg *models.MConfig) *utils.MetricsManager {
	return utils.NewMetricsManager(cfg.Broadcast.MetricsHistory)
}

// -----------------------------------------------------------------------------

// providePublisher returns a nil interface when NATS is disabled.
func providePublisher(cfg *models.MConfig, log *logger.Logger) interfaces.IPublisher {
	if !cfg.NATS.Enabled {
		return nil
	}
	return publish.NewNATSPublisher(cfg.NATS, log.Named("nats"))
}

// -----------------------------------------------------------------------------

func provideServer(
	cfg *models.MConfig,
	market interfaces.IMarketService,
	sess *session.Manager,
	cal interfaces.IMarketCalendar,
	metrics *utils.MetricsManager,
	log *logger.Logger,
) *server.FastAPIServer {
	return server.NewFastAPIServer(cfg, market, sess, cal, metrics, log.Named("server"))
}

// -----------------------------------------------------------------------------

func provideBroadcaster(
	cfg *models.MConfig,
	market interfaces.IMarketService,
	srv *server.FastAPIServer,
	pub interfaces.IPublisher,
	metrics *utils.MetricsManager,
	log *logger.Logger,
) *scheduler.Broadcaster {
	return scheduler.NewBroadcaster(cfg, market, srv, pub, metrics, log.Named("broadcaster"))
}

// -----------------------------------------------------------------------------

func provideControl(
	sess *session.Manager,
	scrips *datasource.ScripMasterCache,
	srv *server.FastAPIServer,
	metrics *utils.MetricsManager,
	log *logger.Logger,
) *grpc_control.ControlService {
	return grpc_control.NewControlService(sess, scrips, srv, metrics, log.Named("control"))
}

// -----------------------------------------------------------------------------

func provideGRPC(cfg *models.MConfig, svc *grpc_control.ControlService, log *logger.Logger) *grpc_control.GRPCServer {
	return grpc_control.NewGRPCServer(cfg, svc, log.Named("grpc"))
}
