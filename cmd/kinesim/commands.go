package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/cheggaaa/pb"
	"github.com/urfave/cli"

	"github.com/zeusync/kinesim/internal/core/agent"
	"github.com/zeusync/kinesim/internal/core/observability/log"
	"github.com/zeusync/kinesim/internal/core/simulation"
	"github.com/zeusync/kinesim/internal/report"
	"github.com/zeusync/kinesim/internal/runner"
)

func runAction(ctx context.Context, c *cli.Context) error {
	app, cleanup, err := setup(c)
	if err != nil {
		return err
	}
	defer cleanup()

	start, err := app.World.StartPoint(c.Int("start"))
	if err != nil {
		return err
	}
	a, err := agent.New(app.Config.AgentConfig(), app.World, start, app.Config.World.Heading)
	if err != nil {
		return err
	}
	ctrl, err := app.Config.NewController()
	if err != nil {
		return err
	}

	if c.IsSet("stream") {
		addr, err := app.Hub.Start()
		if err != nil {
			return err
		}
		subs, err := app.Hub.Attach(app.Bus)
		if err != nil {
			return err
		}
		defer func() {
			for _, s := range subs {
				_ = s.Cancel()
			}
		}()
		fmt.Printf("streaming on ws://%s%s\n", addr, app.Config.Stream.Path)
	}

	res, err := simulation.Run(ctx, a, ctrl, app.Config.Simulation,
		simulation.WithBus(app.Bus),
		simulation.WithLogger(app.Logger),
	)
	if err != nil && !errors.Is(err, simulation.ErrInterrupted) {
		return err
	}

	score := simulation.Evaluate(res, app.Config.Score)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "episode\t%s\n", res.Episode)
	fmt.Fprintf(w, "controller\t%s\n", res.Controller)
	fmt.Fprintf(w, "ticks\t%d\n", res.Ticks)
	fmt.Fprintf(w, "distance\t%.2f\n", res.Distance)
	fmt.Fprintf(w, "collisions\t%d\n", score.Collisions)
	fmt.Fprintf(w, "cells\t%d\n", score.Cells)
	fmt.Fprintf(w, "area\t%.2f\n", score.Area)
	fmt.Fprintf(w, "clearance\t%.3f\n", score.Clearance)
	fmt.Fprintf(w, "score\t%.3f\n", score.Total)
	if err := w.Flush(); err != nil {
		return err
	}

	if file := c.String("plot"); file != "" {
		if perr := report.SaveTrajectory(file, app.World, res); perr != nil {
			return perr
		}
		app.Logger.Info("trajectory saved", log.String("file", file))
	}
	return err
}

func sweepAction(ctx context.Context, c *cli.Context) error {
	app, cleanup, err := setup(c)
	if err != nil {
		return err
	}
	defer cleanup()

	jobs, err := runner.Sweep(app.World, app.Config.Sweep)
	if err != nil {
		return err
	}

	r := app.Runner
	var bar *pb.ProgressBar
	if !c.Bool("quiet") {
		bar = pb.StartNew(len(jobs))
		r = r.Observe(func(runner.Outcome) { bar.Increment() })
	}
	rep, err := r.Run(ctx, jobs)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}

	top := c.Int("top")
	ranked := rep.Ranked()
	if top > 0 && top < len(ranked) {
		ranked = ranked[:top]
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "rank\tjob\tstart\tscore\tcells\tcollisions")
	for i, o := range ranked {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.3f\t%d\t%d\n",
			i+1, o.Job.Label, o.Job.Start, o.Score.Total, o.Score.Cells, o.Score.Collisions)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%s\n", rep.Summary())
	for _, o := range rep.Failed() {
		fmt.Fprintf(os.Stderr, "failed %s: %v\n", o.Job.Label, o.Err)
	}

	best, ok := rep.Best()
	if !ok {
		return errors.New("no episode finished")
	}
	if file := c.String("plot"); file != "" {
		if err := report.SaveTrajectory(file, app.World, best.Result); err != nil {
			return err
		}
		app.Logger.Info("trajectory saved", log.String("file", file), log.String("job", best.Job.Label))
	}
	return nil
}
