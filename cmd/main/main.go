package main

import (
	"flag"
	"fmt"
	"os"

	"options-observer/src/config"
	"options-observer/src/logger"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

// -----------------------------------------------------------------------------

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file, .env and the environment
	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	fx.New(appOptions(conf)).Run()
}

// -----------------------------------------------------------------------------

// appOptions is the whole dependency graph of the service.
func appOptions(conf *config.Config) fx.Option {
	return fx.Options(
		fx.Supply(conf),
		fx.Provide(
			provideLogger,
			provideModelConfig,
			provideCache,
			provideInstrumentStore,
			provideTokenStore,
			provideNetwork,
			provideBroker,
			provideSession,
			provideScripMaster,
			provideResolver,
			provideAssembler,
			provideFacade,
			provideCalendar,
			provideMetrics,
			providePublisher,
			provideServer,
			provideBroadcaster,
			provideControl,
			provideGRPC,
		),
		fx.WithLogger(func(log *logger.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx").Zap()}
		}),
		fx.Invoke(registerBootstrap, registerServers),
	)
}
