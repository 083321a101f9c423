// Package sender runs outbound Telegram calls on a small worker pool so
// handlers and notification fan-out never block on the network.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/schoolbot/core/logger"
	"github.com/m3rciful/schoolbot/core/telegram/netutil"
)

const component = "tg.sender"

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned when the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options controls the dispatcher. Zero values take defaults.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent on one job, retries and flood waits included.
	MaxDuration time.Duration
}

// Job is one outbound call. Run must be safe to repeat.
type Job struct {
	// Action names the call in logs, e.g. "send.notify" or "edit.text".
	Action string
	// ChatID is the recipient; it overrides the context's chat in logs.
	ChatID int64
	Run    func() error
}

// Stats counts finished jobs.
type Stats struct {
	Sent    uint64
	Failed  uint64
	Retried uint64
}

type queued struct {
	ctx context.Context
	Job
}

// Dispatcher executes jobs asynchronously, retrying transient failures and
// honoring Telegram's flood-wait hints.
type Dispatcher struct {
	opts Options
	jobs chan queued
	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup

	sent, failed, retried atomic.Uint64
}

// NewDispatcher starts opts.Workers workers.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}
	d := &Dispatcher{
		opts: opts,
		jobs: make(chan queued, opts.QueueSize),
		stop: make(chan struct{}),
	}
	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.worker()
	}
	return d
}

// Enqueue schedules j. It never blocks: a saturated queue yields ErrQueueFull.
func (d *Dispatcher) Enqueue(ctx context.Context, j Job) error {
	if j.Run == nil {
		return errors.New("telegram sender: nil run function")
	}
	select {
	case <-d.stop:
		return ErrQueueClosed
	default:
	}
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.jobs <- queued{ctx: ctx, Job: j}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stats returns the counters so far.
func (d *Dispatcher) Stats() Stats {
	return Stats{Sent: d.sent.Load(), Failed: d.failed.Load(), Retried: d.retried.Load()}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.stop)
		close(d.jobs)
		d.wg.Wait()
		st := d.Stats()
		logger.Info(context.Background(), component, "sender.closed",
			slog.Uint64("sent", st.Sent),
			slog.Uint64("failed", st.Failed),
			slog.Uint64("retried", st.Retried),
		)
	})
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for q := range d.jobs {
		d.run(q)
	}
}

func (d *Dispatcher) run(q queued) {
	ctx, cancel := context.WithTimeout(q.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	var err error
retry:
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = q.Run(); err == nil {
			if attempt > 1 {
				d.retried.Add(1)
			}
			d.sent.Add(1)
			logger.Debug(q.ctx, component, "send.success",
				append(jobAttrs(q),
					slog.Int("attempt", attempt),
					slog.Duration("elapsed", logger.RoundMS(time.Since(start))),
				)...,
			)
			return
		}
		f := netutil.Classify(err)
		if !f.Retry || attempt == attempts {
			break
		}
		delay := d.opts.RetryBackoff * time.Duration(attempt)
		if f.Wait > delay {
			delay = f.Wait
		}
		logger.Debug(q.ctx, component, "send.retry",
			append(jobAttrs(q),
				slog.Int("attempt", attempt),
				slog.String("error_kind", f.Kind),
				slog.Duration("delay", delay),
			)...,
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			err = ctx.Err()
			break retry
		case <-timer.C:
		}
	}

	d.failed.Add(1)
	logger.Error(q.ctx, component, "send.fail",
		append(jobAttrs(q),
			slog.String("error", redact(err)),
			slog.String("error_kind", netutil.Classify(err).Kind),
			slog.Int("attempts", attempts),
			slog.Duration("elapsed", logger.RoundMS(time.Since(start))),
		)...,
	)
}

func jobAttrs(q queued) []slog.Attr {
	attrs := []slog.Attr{slog.String("action", q.Action)}
	if q.ChatID != 0 {
		attrs = append(attrs, slog.Int64("chat_id", q.ChatID))
	}
	return attrs
}

// redact keeps bot tokens embedded in request URLs out of logs.
func redact(err error) string {
	if err == nil {
		return ""
	}
	return logger.RedactToken(err.Error())
}
