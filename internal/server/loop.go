package server

import (
	"context"
	"time"

	"skirmish/internal/net/udp"
	"skirmish/internal/proto"
	"skirmish/internal/telemetry"
	"skirmish/internal/world"
	"skirmish/logging"
)

// DefaultTickPeriod is the simulation period (about 60 Hz).
const DefaultTickPeriod = 16 * time.Millisecond

// Pusher delivers a tick's datagrams. *udp.Listener satisfies it.
type Pusher interface {
	Send(batch []udp.Outgoing)
}

type LoopConfig struct {
	Period time.Duration
	Clock  logging.Clock
	Logger telemetry.Logger
}

// StepResult describes one executed tick.
type StepResult struct {
	Tick     uint64
	Now      time.Time
	Delta    time.Duration
	Duration time.Duration
	Budget   time.Duration
	Overrun  bool
	State    proto.MatchState
	Players  int
	Pushed   int
}

type LoopHooks struct {
	AfterStep func(StepResult)
}

// Loop drives world ticks on a fixed period and pushes each tick's datagrams
// after the world lock has been released.
type Loop struct {
	world  *world.World
	pusher Pusher
	config LoopConfig
	hooks  LoopHooks
	logger telemetry.Logger
	clock  logging.Clock

	last     time.Time
	overruns uint64
}

func NewLoop(w *world.World, pusher Pusher, cfg LoopConfig, hooks LoopHooks) *Loop {
	if cfg.Period <= 0 {
		cfg.Period = DefaultTickPeriod
	}
	clock := cfg.Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	return &Loop{world: w, pusher: pusher, config: cfg, hooks: hooks, logger: logger, clock: clock}
}

// Run ticks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.config.Period)
	defer ticker.Stop()

	l.last = l.clock.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Step()
		}
	}
}

// Step executes one tick immediately.
func (l *Loop) Step() StepResult {
	now := l.clock.Now()
	delta := l.config.Period
	if !l.last.IsZero() {
		if elapsed := now.Sub(l.last); elapsed > 0 {
			delta = elapsed
		}
	}
	l.last = now

	start := time.Now()
	res := l.world.Tick(now)
	if l.pusher != nil && len(res.Pushes) > 0 {
		l.pusher.Send(res.Pushes)
	}
	duration := time.Since(start)

	result := StepResult{
		Tick:     res.Tick,
		Now:      now,
		Delta:    delta,
		Duration: duration,
		Budget:   l.config.Period,
		Overrun:  duration > l.config.Period,
		State:    res.State,
		Players:  res.Players,
		Pushed:   len(res.Pushes),
	}
	if result.Overrun {
		l.overruns++
		if l.overruns&(l.overruns-1) == 0 {
			l.logger.Printf("[tick] step %d took %v over budget %v (overruns=%d)", result.Tick, duration, result.Budget, l.overruns)
		}
	}
	if l.hooks.AfterStep != nil {
		l.hooks.AfterStep(result)
	}
	return result
}
