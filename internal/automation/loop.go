package automation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"vidforge/internal/store"
	"vidforge/internal/tzclock"
	logx "vidforge/pkg/logx"
)

// Config is the scheduler loop's runtime configuration. DueWindow must be
// strictly greater than Interval or a slot can fall between two ticks and
// never fire.
type Config struct {
	Enabled         bool
	Interval        time.Duration
	DueWindow       time.Duration
	DefaultTimezone string

	// StaleLockAge bounds how long a run lock may survive its process.
	// Default: 1h.
	StaleLockAge time.Duration
}

func (c *Config) normalize() error {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	if c.DueWindow <= 0 {
		c.DueWindow = c.Interval + time.Minute
	}
	if c.StaleLockAge <= 0 {
		c.StaleLockAge = time.Hour
	}
	if c.DueWindow <= c.Interval {
		return fmt.Errorf("due window %s must exceed tick interval %s", c.DueWindow, c.Interval)
	}
	return nil
}

// Service drives periodic automation ticks. Each tick sweeps stale run locks,
// lists enabled channels, and runs every channel whose schedule is due. A
// failing or panicking channel never blocks the rest of the batch.
type Service struct {
	mu    sync.Mutex
	cfg   Config
	coord *Coordinator
	log   logx.Logger

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

func NewService(cfg Config, coord *Coordinator, log logx.Logger) (*Service, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, coord: coord, log: log}, nil
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled {
		s.log.Info("automation disabled, scheduler not started")
		return nil
	}
	if s.cron != nil {
		return nil
	}

	loc, err := tzclock.Load(s.cfg.DefaultTimezone)
	if err != nil {
		s.log.Warn("unknown default timezone, falling back",
			logx.String("tz", s.cfg.DefaultTimezone), logx.Err(err))
		loc = tzclock.MustDefault()
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.cfg.Interval), s.tickFromCron); err != nil {
		s.cancel()
		s.ctx, s.cancel = nil, nil
		return fmt.Errorf("schedule tick: %w", err)
	}
	s.cron = c
	c.Start()
	s.log.Info("scheduler started",
		logx.Duration("interval", s.cfg.Interval),
		logx.Duration("due_window", s.cfg.DueWindow),
		logx.String("tz", loc.String()),
	)
	return nil
}

// Stop halts the cron driver and waits for an in-flight tick to drain, bounded
// by ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.cron
	cancel := s.cancel
	s.cron = nil
	s.ctx, s.cancel = nil, nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	if cancel != nil {
		cancel()
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("scheduler stopped")
}

// Apply restarts the loop when interval, window, or zone changed. Invalid new
// settings are rejected and the running configuration stays in effect.
func (s *Service) Apply(ctx context.Context, cfg Config) error {
	if err := cfg.normalize(); err != nil {
		return err
	}
	s.mu.Lock()
	same := cfg == s.cfg
	running := s.cron != nil
	s.mu.Unlock()
	if same {
		return nil
	}

	if running {
		s.Stop(ctx)
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return s.Start(ctx)
}

func (s *Service) tickFromCron() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	s.Tick(ctx)
}

// Tick runs one scheduler pass and reports what happened. Also the backing
// implementation of the manual tick endpoint.
func (s *Service) Tick(ctx context.Context) TickSummary {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	start := s.coord.now()
	var sum TickSummary

	if _, err := s.coord.Channels.ReleaseStaleLocks(ctx, cfg.StaleLockAge, s.log); err != nil {
		s.log.Error("stale lock sweep failed", logx.Err(err))
	}

	channels, err := s.coord.Channels.ListEnabledChannels(ctx)
	if err != nil {
		s.log.Error("tick aborted, channel listing failed", logx.Err(err))
		sum.Errors++
		sum.Duration = s.coord.now().Sub(start)
		return sum
	}

	now := s.coord.now()
	for _, ch := range channels {
		if !s.coord.Eval.IsDue(specFor(ch, time.Time{}), now, cfg.DueWindow) {
			continue
		}
		sum.Processed++
		res := s.runOne(ctx, ch)
		if res.Error != "" {
			sum.Errors++
		}
		if res.JobID != "" {
			sum.JobsCreated++
		}
		sum.Results = append(sum.Results, res)
	}

	sum.Duration = s.coord.now().Sub(start)
	if sum.Processed > 0 || sum.Errors > 0 {
		s.log.Info("tick finished",
			logx.Int("processed", sum.Processed),
			logx.Int("jobs_created", sum.JobsCreated),
			logx.Int("errors", sum.Errors),
			logx.Duration("took", sum.Duration),
		)
	}
	return sum
}

// runOne isolates a single channel run, turning panics into per-channel
// errors so one misbehaving channel cannot take down the batch.
func (s *Service) runOne(ctx context.Context, ch store.Channel) (res RunResult) {
	res = RunResult{ChannelID: ch.ID, ChannelName: ch.Name}
	defer func() {
		if r := recover(); r != nil {
			res.Error = fmt.Sprintf("panic: %v", r)
			s.log.Error("run panicked",
				logx.String("channel_id", ch.ID), logx.Any("panic", r))
		}
	}()

	job, err := s.coord.Run(ctx, ch)
	switch {
	case err != nil:
		res.Error = err.Error()
	case job == nil:
		res.Skipped = true
	default:
		res.JobID = job.ID
	}
	return res
}
