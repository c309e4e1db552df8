// Package reaper deletes events whose validity window has closed and asks
// the chat transport to remove the side-effect channels they own.
package reaper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"eventbot/internal/clock"
	"eventbot/internal/observability/metrics"
	"eventbot/internal/storage"
	logx "eventbot/pkg/logx"

	"github.com/google/uuid"
)

const taskName = "reaper"

// Store is the slice of storage the reaper needs.
type Store interface {
	FetchExpiredEvents(ctx context.Context, now time.Time) ([]storage.Event, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ResourceCleaner removes a named side-effect channel. found=false means the
// channel was already gone.
type ResourceCleaner interface {
	DeleteByName(ctx context.Context, scopeID int64, name string) (found bool, err error)
}

type Config struct {
	Interval time.Duration
	// Protected channel names are never deleted, even when an expired event
	// claims them.
	Protected []string
	// CleanupTimeout bounds each DeleteByName call.
	CleanupTimeout time.Duration
}

// Result summarizes one tick.
type Result struct {
	Expired       int
	Cleaned       int
	CleanupFailed int
	Deleted       int64
}

type Reaper struct {
	store     Store
	cleaner   ResourceCleaner
	clock     clock.Clock
	log       logx.Logger
	metrics   *metrics.Metrics
	interval  time.Duration
	timeout   time.Duration
	protected map[string]struct{}
}

type Option func(*Reaper)

func WithLogger(log logx.Logger) Option { return func(r *Reaper) { r.log = log } }
func WithMetrics(m *metrics.Metrics) Option { return func(r *Reaper) { r.metrics = m } }

// New builds a reaper. cleaner may be nil, in which case rows are deleted
// without touching any channel.
func New(store Store, cleaner ResourceCleaner, clk clock.Clock, cfg Config, opts ...Option) *Reaper {
	r := &Reaper{
		store:     store,
		cleaner:   cleaner,
		clock:     clk,
		interval:  cfg.Interval,
		timeout:   cfg.CleanupTimeout,
		protected: map[string]struct{}{},
	}
	if r.interval <= 0 {
		r.interval = time.Minute
	}
	if r.timeout <= 0 {
		r.timeout = 15 * time.Second
	}
	for _, name := range cfg.Protected {
		if name = strings.TrimSpace(name); name != "" {
			r.protected[name] = struct{}{}
		}
	}
	for _, o := range opts {
		if o != nil {
			o(r)
		}
	}
	if r.log.IsZero() {
		r.log = logx.Nop()
	}
	if r.clock == nil {
		r.clock = clock.System{}
	}
	return r
}

func (r *Reaper) Interval() time.Duration { return r.interval }

// TickTimeout bounds a single tick started by Run.
func (r *Reaper) TickTimeout() time.Duration { return max(2*r.interval, 30*time.Second) }

// Run ticks immediately and then every interval until ctx is canceled.
// Tick failures are logged and never end the loop.
func (r *Reaper) Run(ctx context.Context) error {
	r.log.Info("reaper started", logx.Duration("interval", r.interval), logx.Int("protected", len(r.protected)))
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.safeTick(ctx)
		select {
		case <-ctx.Done():
			r.log.Info("reaper stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (r *Reaper) safeTick(ctx context.Context) {
	tickID := uuid.NewString()
	start := time.Now()

	// A started tick runs to completion; shutdown only stops the loop between ticks.
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.TickTimeout())
	defer cancel()

	res, err := func() (res Result, err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		return r.Tick(tctx)
	}()
	r.metrics.ObserveTick(taskName, time.Since(start), err)

	log := r.log.With(logx.String("tick", tickID))
	if err != nil {
		log.Error("reaper tick failed", logx.Err(err))
		return
	}
	if res.Expired > 0 {
		log.Info("reaped expired events",
			logx.Int("expired", res.Expired),
			logx.Int("cleaned", res.Cleaned),
			logx.Int("cleanup_failed", res.CleanupFailed),
			logx.Int64("deleted", res.Deleted),
		)
	}
}

// Tick runs one reaping pass: fetch expired events, clean up their channels,
// then delete every row expired at the captured instant.
func (r *Reaper) Tick(ctx context.Context) (Result, error) {
	now := r.clock.Now()

	expired, err := r.store.FetchExpiredEvents(ctx, now)
	if err != nil {
		return Result{}, fmt.Errorf("fetch expired: %w", err)
	}
	res := Result{Expired: len(expired)}

	for _, ev := range expired {
		name := strings.TrimSpace(ev.ChannelName)
		if name == "" || r.cleaner == nil {
			continue
		}
		if _, skip := r.protected[name]; skip {
			r.log.Debug("skip protected channel", logx.Int64("event_id", ev.ID), logx.String("channel", name))
			continue
		}
		if r.cleanup(ctx, ev, name) {
			res.Cleaned++
		} else {
			res.CleanupFailed++
		}
	}

	// Row deletion does not depend on cleanup outcome.
	n, err := r.store.DeleteExpired(ctx, now)
	if err != nil {
		return res, fmt.Errorf("delete expired: %w", err)
	}
	res.Deleted = n
	r.metrics.EventsReaped(n)
	return res, nil
}

func (r *Reaper) cleanup(ctx context.Context, ev storage.Event, name string) (ok bool) {
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("channel cleanup panicked", logx.Int64("event_id", ev.ID), logx.Any("panic", p))
			ok = false
		}
		r.metrics.ResourceCleanup(ok)
	}()

	found, err := r.cleaner.DeleteByName(cctx, ev.ScopeID, name)
	if err != nil {
		r.log.Warn("channel cleanup failed",
			logx.Int64("event_id", ev.ID),
			logx.Int64("scope_id", ev.ScopeID),
			logx.String("channel", name),
			logx.Err(err),
		)
		return false
	}
	if !found {
		r.log.Debug("channel already gone", logx.Int64("event_id", ev.ID), logx.String("channel", name))
	}
	return true
}
