package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/zeusync/kinesim/internal/config"
	"github.com/zeusync/kinesim/internal/injector"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := makeapp(ctx).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "kinesim:", err)
		stop()
		os.Exit(1)
	}
}

func makeapp(ctx context.Context) *cli.App {
	app := cli.NewApp()
	app.Name = "kinesim"
	app.Usage = "Differential-drive robot simulator"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config, c", Value: "", Usage: "YAML configuration file"},
		cli.StringFlag{Name: "log-level", Value: "", Usage: "Override the log level (debug, info, warn, error)"},
	}

	app.Commands = []cli.Command{
		{
			Name:  "run",
			Usage: "Run a single episode and print its score",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "controller", Value: "", Usage: "constant, avoid or scripted"},
				cli.Float64Flag{Name: "left", Usage: "Left wheel speed for the constant controller"},
				cli.Float64Flag{Name: "right", Usage: "Right wheel speed for the constant controller"},
				cli.IntFlag{Name: "ticks", Usage: "Number of ticks"},
				cli.IntFlag{Name: "start", Value: 0, Usage: "Index of the map start point"},
				cli.Float64Flag{Name: "heading", Usage: "Initial heading in radians"},
				cli.StringFlag{Name: "plot", Value: "", Usage: "Write the trajectory to this image file"},
				cli.StringFlag{Name: "stream", Value: "", Usage: "Serve live frames over websocket on this address"},
				cli.BoolFlag{Name: "realtime", Usage: "Pace the episode with the configured tick rate"},
			},
			Action: func(c *cli.Context) error {
				return runAction(ctx, c)
			},
		},
		{
			Name:  "sweep",
			Usage: "Evaluate a grid of constant wheel speeds in parallel",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "workers", Usage: "Number of parallel workers"},
				cli.DurationFlag{Name: "timeout", Usage: "Per-episode timeout"},
				cli.Float64Flag{Name: "min", Usage: "Lowest wheel speed"},
				cli.Float64Flag{Name: "max", Usage: "Highest wheel speed"},
				cli.Float64Flag{Name: "step", Usage: "Wheel speed increment"},
				cli.IntFlag{Name: "ticks", Usage: "Number of ticks per episode"},
				cli.IntFlag{Name: "top", Value: 5, Usage: "Number of best episodes to print"},
				cli.StringFlag{Name: "plot", Value: "", Usage: "Write the best trajectory to this image file"},
				cli.BoolFlag{Name: "quiet, q", Usage: "Hide the progress bar"},
			},
			Action: func(c *cli.Context) error {
				return sweepAction(ctx, c)
			},
		},
	}
	return app
}

// loadConfig reads the configuration file, if any, and applies the flags that
// were explicitly set.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.GlobalString("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}
	if lvl := c.GlobalString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}

	if c.IsSet("ticks") {
		cfg.Simulation.Ticks = c.Int("ticks")
	}
	if c.IsSet("realtime") {
		cfg.Simulation.Realtime = c.Bool("realtime")
	}
	if c.IsSet("controller") {
		cfg.Controller.Kind = c.String("controller")
	}
	if c.IsSet("left") {
		cfg.Controller.Left = c.Float64("left")
	}
	if c.IsSet("right") {
		cfg.Controller.Right = c.Float64("right")
	}
	if c.IsSet("heading") {
		cfg.World.Heading = c.Float64("heading")
	}
	if c.IsSet("stream") {
		cfg.Stream.Addr = c.String("stream")
	}
	if c.IsSet("workers") {
		cfg.Runner.Workers = c.Int("workers")
	}
	if c.IsSet("timeout") {
		cfg.Runner.Timeout = c.Duration("timeout")
	}
	if c.IsSet("min") {
		cfg.Sweep.Min = c.Float64("min")
	}
	if c.IsSet("max") {
		cfg.Sweep.Max = c.Float64("max")
	}
	if c.IsSet("step") {
		cfg.Sweep.Step = c.Float64("step")
	}

	return cfg, cfg.Validate()
}

func setup(c *cli.Context) (*injector.App, func(), error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	app, err := injector.InitializeApp(cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.Hub.Stop(shutdown)
		_ = app.Logger.Sync()
	}
	return app, cleanup, nil
}
