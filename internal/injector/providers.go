package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/kinesim/internal/config"
	"github.com/zeusync/kinesim/internal/core/events/bus"
	"github.com/zeusync/kinesim/internal/core/observability/log"
	"github.com/zeusync/kinesim/internal/core/world"
	"github.com/zeusync/kinesim/internal/runner"
	"github.com/zeusync/kinesim/internal/stream"
)

// App holds the long-lived components shared by the CLI commands.
type App struct {
	Config config.Config
	Logger log.Log
	World  *world.Map
	Bus    bus.EventBus
	Runner *runner.Runner
	Hub    *stream.Hub
}

var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideWorld,
	ProvideBus,
	ProvideRunner,
	ProvideHub,
	NewApp,
)

func ProvideLogger(cfg config.Config) log.Log {
	return cfg.Logger()
}

func ProvideWorld(cfg config.Config) (*world.Map, error) {
	return cfg.BuildWorld()
}

func ProvideBus() bus.EventBus {
	return bus.New()
}

func ProvideRunner(cfg config.Config, w *world.Map, logger log.Log, b bus.EventBus) (*runner.Runner, error) {
	return runner.New(w, cfg.AgentConfig(), cfg.Simulation, cfg.Score, cfg.Runner,
		runner.WithLogger(logger),
		runner.WithBus(b),
	)
}

func ProvideHub(cfg config.Config, logger log.Log) (*stream.Hub, error) {
	return stream.NewHub(cfg.Stream, logger)
}

func NewApp(cfg config.Config, logger log.Log, w *world.Map, b bus.EventBus, r *runner.Runner, h *stream.Hub) *App {
	return &App{Config: cfg, Logger: logger, World: w, Bus: b, Runner: r, Hub: h}
}
