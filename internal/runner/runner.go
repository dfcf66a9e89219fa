package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/kinesim/internal/core/agent"
	"github.com/zeusync/kinesim/internal/core/events/bus"
	"github.com/zeusync/kinesim/internal/core/observability/log"
	"github.com/zeusync/kinesim/internal/core/simulation"
	"github.com/zeusync/kinesim/internal/core/world"
	"github.com/zeusync/kinesim/internal/report"
	"github.com/zeusync/kinesim/pkg/concurrent"
)

var ErrInvalidConfig = errors.New("invalid runner configuration")

// Config sizes the worker pool. Zero Workers means one per CPU; zero Timeout
// disables the per-episode deadline.
type Config struct {
	Workers int           `yaml:"workers"`
	Timeout time.Duration `yaml:"timeout"`
}

func DefaultConfig() Config {
	return Config{Workers: runtime.NumCPU(), Timeout: 30 * time.Second}
}

func (c Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidConfig, c.Workers)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative, got %v", ErrInvalidConfig, c.Timeout)
	}
	return nil
}

// Outcome is the result of one job. Err is set when the episode could not
// start or did not finish; Result may then hold a partial trace.
type Outcome struct {
	Job    Job
	Worker int
	Result *simulation.Result
	Score  simulation.Score
	Err    error
}

func (o Outcome) Failed() bool { return o.Err != nil }

// Report gathers the outcomes of a batch, ordered by job index.
type Report struct {
	RunID    string
	World    uint64
	Outcomes []Outcome
	Elapsed  time.Duration
}

// Best returns the successful outcome with the highest total score.
func (r *Report) Best() (Outcome, bool) {
	var best Outcome
	found := false
	for _, o := range r.Outcomes {
		if o.Failed() {
			continue
		}
		if !found || o.Score.Total > best.Score.Total {
			best, found = o, true
		}
	}
	return best, found
}

// Failed returns the outcomes that carry an error.
func (r *Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Failed() {
			out = append(out, o)
		}
	}
	return out
}

// Summary describes the scores of the successful outcomes.
func (r *Report) Summary() report.Summary {
	scores := make([]float64, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if !o.Failed() {
			scores = append(scores, o.Score.Total)
		}
	}
	return report.Summarize(scores)
}

// Ranked returns the successful outcomes, best first.
func (r *Report) Ranked() []Outcome {
	out := make([]Outcome, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if !o.Failed() {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score.Total > out[j].Score.Total })
	return out
}

type Option func(*Runner)

func WithLogger(l log.Log) Option {
	return func(r *Runner) { r.logger = l }
}

// WithBus forwards every episode's events to b.
func WithBus(b bus.EventBus) Option {
	return func(r *Runner) { r.bus = b }
}

// WithProgress calls fn from a single goroutine for every finished job.
func WithProgress(fn func(Outcome)) Option {
	return func(r *Runner) { r.progress = fn }
}

// Runner evaluates jobs in parallel, one agent and one episode per job.
type Runner struct {
	cfg      Config
	world    *world.Map
	agent    agent.Config
	sim      simulation.Config
	weights  simulation.Weights
	logger   log.Log
	bus      bus.EventBus
	progress func(Outcome)
}

func New(
	w *world.Map,
	agentCfg agent.Config,
	simCfg simulation.Config,
	weights simulation.Weights,
	cfg Config,
	opts ...Option,
) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := agentCfg.Validate(); err != nil {
		return nil, err
	}
	if err := simCfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}

	r := &Runner{
		cfg:     cfg,
		world:   w,
		agent:   agentCfg,
		sim:     simCfg,
		weights: weights,
		logger:  log.Provide(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(log.Component("runner"))
	return r, nil
}

func (r *Runner) Config() Config { return r.cfg }

// Observe returns a copy of r that reports every finished job to fn.
func (r *Runner) Observe(fn func(Outcome)) *Runner {
	cp := *r
	cp.progress = fn
	return &cp
}

// Run evaluates every job. Failures of single episodes are recorded in the
// report; only the cancellation of ctx aborts the batch.
func (r *Runner) Run(ctx context.Context, jobs []Job) (*Report, error) {
	if len(jobs) == 0 {
		return nil, ErrNoJobs
	}
	rep := &Report{RunID: uuid.NewString(), World: r.world.Fingerprint()}
	logger := r.logger.With(log.String("run", rep.RunID))
	logger.Info("batch started", log.Int("jobs", len(jobs)), log.Int("workers", r.cfg.Workers))
	start := time.Now()

	workers := r.cfg.Workers
	if workers > len(jobs) {
		workers = len(jobs)
	}
	feeds := make([]chan Outcome, workers)
	inputs := make([]<-chan Outcome, workers)
	for i := range feeds {
		feeds[i] = make(chan Outcome, 1)
		inputs[i] = feeds[i]
	}

	var drained sync.WaitGroup
	drained.Add(1)
	go func() {
		defer drained.Done()
		for o := range concurrent.Merge(inputs...) {
			if r.progress != nil {
				r.progress(o)
			}
		}
	}()

	outcomes, err := concurrent.WorkerMap(ctx, jobs, workers, func(ctx context.Context, worker int, job Job) (Outcome, error) {
		o := r.episode(ctx, worker, job)
		if ctx.Err() != nil {
			return o, ctx.Err()
		}
		feeds[worker] <- o
		return o, nil
	})
	for _, f := range feeds {
		close(f)
	}
	drained.Wait()

	rep.Elapsed = time.Since(start)
	if err != nil {
		logger.Warn("batch aborted", log.Error(err), log.Duration("elapsed", rep.Elapsed))
		return nil, fmt.Errorf("run %s: %w", rep.RunID, err)
	}

	rep.Outcomes = outcomes
	sum := rep.Summary()
	logger.Info("batch finished",
		log.Int("succeeded", sum.Count),
		log.Int("failed", len(jobs)-sum.Count),
		log.Float64("mean", sum.Mean),
		log.Float64("max", sum.Max),
		log.Duration("elapsed", rep.Elapsed),
	)
	return rep, nil
}

func (r *Runner) episode(ctx context.Context, worker int, job Job) (o Outcome) {
	o = Outcome{Job: job, Worker: worker}
	defer func() {
		if p := recover(); p != nil {
			o.Err = fmt.Errorf("episode %s panicked: %v", job.ID, p)
		}
	}()

	if job.NewController == nil {
		o.Err = fmt.Errorf("job %s: no controller", job.ID)
		return o
	}
	a, err := agent.New(r.agent, r.world, job.Start, job.Heading)
	if err != nil {
		o.Err = fmt.Errorf("job %s: %w", job.ID, err)
		return o
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	opts := []simulation.Option{
		simulation.WithEpisode(job.ID),
		simulation.WithLogger(r.logger.With(log.Int("worker", worker))),
	}
	if r.bus != nil {
		opts = append(opts, simulation.WithBus(r.bus))
	}

	res, err := simulation.Run(ctx, a, job.NewController(), r.sim, opts...)
	o.Result = res
	if err != nil {
		o.Err = err
		return o
	}
	o.Score = simulation.Evaluate(res, r.weights)
	return o
}
