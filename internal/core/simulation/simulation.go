package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeusync/kinesim/internal/core/agent"
	"github.com/zeusync/kinesim/internal/core/events/bus"
	"github.com/zeusync/kinesim/internal/core/geometry"
	"github.com/zeusync/kinesim/internal/core/observability/log"
)

var (
	ErrInvalidConfig = errors.New("invalid simulation configuration")
	ErrInterrupted   = errors.New("episode interrupted")
)

// Config controls the episode loop.
type Config struct {
	Ticks int `yaml:"ticks"`
	// ControlEvery asks the controller for a command every N ticks.
	ControlEvery int `yaml:"control_every"`
	// TickRate paces the loop in wall-clock time when Realtime is set.
	TickRate time.Duration `yaml:"tick_rate"`
	Realtime bool          `yaml:"realtime"`
}

func DefaultConfig() Config {
	return Config{
		Ticks:        1000,
		ControlEvery: 1,
		TickRate:     20 * time.Millisecond,
	}
}

func (c Config) Validate() error {
	if c.Ticks <= 0 {
		return fmt.Errorf("%w: ticks must be positive, got %d", ErrInvalidConfig, c.Ticks)
	}
	if c.ControlEvery <= 0 {
		return fmt.Errorf("%w: control_every must be positive, got %d", ErrInvalidConfig, c.ControlEvery)
	}
	if c.Realtime && c.TickRate <= 0 {
		return fmt.Errorf("%w: tick_rate must be positive in realtime mode", ErrInvalidConfig)
	}
	return nil
}

// Sample is one point of the recorded trace.
type Sample struct {
	Tick     int            `json:"tick"`
	Position geometry.Point `json:"position"`
	Heading  float64        `json:"heading"`
	Collided bool           `json:"collided"`
}

// Result summarizes one episode. A partial result is returned together with
// ErrInterrupted when the context ends the episode early.
type Result struct {
	Episode    string        `json:"episode"`
	Controller string        `json:"controller"`
	Ticks      int           `json:"ticks"`
	Radius     float64       `json:"radius"`
	Trace      []Sample      `json:"trace"`
	Collisions int           `json:"collisions"`
	Distance   float64       `json:"distance"`
	// Clearance is the mean normalized sensor distance over the episode, 1 when
	// nothing was ever in range.
	Clearance float64       `json:"clearance"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Path returns the traced positions.
func (r *Result) Path() []geometry.Point {
	out := make([]geometry.Point, len(r.Trace))
	for i, s := range r.Trace {
		out[i] = s.Position
	}
	return out
}

type options struct {
	bus     bus.EventBus
	logger  log.Log
	episode string
}

type Option func(*options)

// WithBus publishes tick, collision and episode events on b.
func WithBus(b bus.EventBus) Option {
	return func(o *options) { o.bus = b }
}

func WithLogger(l log.Log) Option {
	return func(o *options) { o.logger = l }
}

// WithEpisode names the episode in events, logs and the result.
func WithEpisode(id string) Option {
	return func(o *options) { o.episode = id }
}

// Run drives a with ctrl for cfg.Ticks updates.
func Run(ctx context.Context, a *agent.Agent, ctrl Controller, cfg Config, opts ...Option) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{logger: log.Provide(), episode: "episode"}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.With(log.Component("simulation"), log.String("episode", o.episode))

	start := time.Now()
	res := &Result{
		Episode:    o.episode,
		Controller: ctrl.Name(),
		Radius:     a.Config().Radius,
		Trace:      make([]Sample, 0, cfg.Ticks+1),
	}
	st := a.State()
	res.Trace = append(res.Trace, Sample{Tick: a.Tick(), Position: st.Position, Heading: st.Heading})

	var ticker *time.Ticker
	if cfg.Realtime {
		ticker = time.NewTicker(cfg.TickRate)
		defer ticker.Stop()
	}

	maxVision := a.Sensors().MaxVision()
	var clearance float64
	var runErr error

loop:
	for i := 0; i < cfg.Ticks; i++ {
		if ticker != nil {
			select {
			case <-ctx.Done():
				runErr = ctx.Err()
				break loop
			case <-ticker.C:
			}
		} else if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		if i%cfg.ControlEvery == 0 {
			cmd := ctrl.Control(a.Observe())
			a.Command(cmd.Left, cmd.Right)
		}

		step := a.Update()
		res.Ticks++
		prev := res.Trace[len(res.Trace)-1].Position
		res.Distance += geometry.Distance(prev, step.State.Position)
		res.Trace = append(res.Trace, Sample{
			Tick:     step.Tick,
			Position: step.State.Position,
			Heading:  step.State.Heading,
			Collided: len(step.Contacts) > 0,
		})

		var seen float64
		for _, r := range step.Readings {
			seen += r.Or(maxVision) / maxVision
		}
		if len(step.Readings) > 0 {
			clearance += seen / float64(len(step.Readings))
		}

		frame := TickFrame{
			Episode:  o.episode,
			Tick:     step.Tick,
			State:    step.State,
			Mode:     step.Mode.String(),
			Readings: step.Readings,
			Contacts: step.Contacts,
		}
		if err := publish(o.bus, o.episode, EventTick, frame); err != nil {
			logger.Warn("tick handler failed", log.Int("tick", step.Tick), log.Error(err))
		}
		if len(step.Contacts) > 0 {
			logger.Debug("collision",
				log.Int("tick", step.Tick),
				log.String("mode", step.Mode.String()),
				log.Int("contacts", len(step.Contacts)),
			)
			cf := CollisionFrame{Episode: o.episode, Tick: step.Tick, Mode: frame.Mode, Contacts: step.Contacts}
			if err := publish(o.bus, o.episode, EventCollision, cf); err != nil {
				logger.Warn("collision handler failed", log.Int("tick", step.Tick), log.Error(err))
			}
		}
	}

	res.Collisions = a.Collisions()
	res.Clearance = 1
	if res.Ticks > 0 {
		res.Clearance = clearance / float64(res.Ticks)
	}
	res.Elapsed = time.Since(start)

	if err := publish(o.bus, o.episode, EventEpisodeFinished, res); err != nil {
		logger.Warn("episode handler failed", log.Error(err))
	}

	if runErr != nil {
		logger.Info("episode interrupted", log.Int("ticks", res.Ticks), log.Error(runErr))
		return res, fmt.Errorf("%w after %d ticks: %w", ErrInterrupted, res.Ticks, runErr)
	}
	logger.Debug("episode finished",
		log.Int("ticks", res.Ticks),
		log.Int("collisions", res.Collisions),
		log.Float64("distance", res.Distance),
		log.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}
