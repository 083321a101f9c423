package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/m3rciful/schoolbot/core/logger"
)

const (
	DefaultIdleTimeout = 30 * time.Minute
	DefaultSweepSpec   = "@every 1m"
)

// ExpireFunc is invoked once per evicted session.
type ExpireFunc func(ctx context.Context, sess *Session)

// Sweeper periodically evicts idle sessions on a cron schedule.
type Sweeper struct {
	store    *Store
	idle     time.Duration
	spec     string
	onExpire ExpireFunc
	cron     *cron.Cron
}

// NewSweeper validates spec and prepares the schedule. A zero idle disables eviction.
func NewSweeper(store *Store, idle time.Duration, spec string, onExpire ExpireFunc) (*Sweeper, error) {
	if spec == "" {
		spec = DefaultSweepSpec
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("session: invalid sweep schedule %q: %w", spec, err)
	}
	return &Sweeper{
		store:    store,
		idle:     idle,
		spec:     spec,
		onExpire: onExpire,
		cron:     cron.New(cron.WithLocation(time.Local)),
	}, nil
}

// Start registers the sweep job and starts the scheduler.
func (s *Sweeper) Start() error {
	if s.idle <= 0 {
		logger.Info(context.Background(), "session.sweeper", "sweeper_disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		s.Sweep(ctx)
	}); err != nil {
		return fmt.Errorf("session: add sweep job: %w", err)
	}
	s.cron.Start()
	logger.Info(context.Background(), "session.sweeper", "sweeper_started",
		slog.String("schedule", s.spec),
		slog.Duration("idle_timeout", s.idle),
	)
	return nil
}

// Stop halts the scheduler and waits for a running sweep.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep runs one eviction pass and returns the number of evicted sessions.
func (s *Sweeper) Sweep(ctx context.Context) int {
	evicted := s.store.EvictIdle(s.idle)
	for _, sess := range evicted {
		logger.Info(ctx, "session.sweeper", "session_expired",
			slog.Int64("chat_id", sess.ChatID),
			slog.String("kind", string(sess.Kind)),
			slog.String("step", string(sess.Step)),
		)
		if s.onExpire != nil {
			s.onExpire(ctx, sess)
		}
	}
	return len(evicted)
}
