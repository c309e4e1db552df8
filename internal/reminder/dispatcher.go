// Package reminder delivers due event and memo reminders.
//
// Each tick fetches due rows oldest first, tries a direct message to the
// owner and, for events that allow it, falls back to a mention in the event
// channel. Only a successful delivery marks a reminder sent; failures leave it
// pending for the next tick.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eventbot/internal/clock"
	"eventbot/internal/observability/metrics"
	"eventbot/internal/storage"
	logx "eventbot/pkg/logx"
)

const (
	kindEvent = "event"
	kindMemo  = "memo"

	routeDirect  = "direct"
	routeChannel = "channel"
)

// Notifier delivers reminder text. A nil error means delivered.
type Notifier interface {
	SendDirect(ctx context.Context, userID int64, text string) error
	SendToChannel(ctx context.Context, scopeID, channelID int64, text string) error
}

// partialDelivery is implemented by notifier errors raised after part of a
// split text already reached the recipient.
type partialDelivery interface {
	PartiallyDelivered() bool
}

// delivered reports whether the recipient got the text, fully or in part.
// A partial delivery is recorded as sent so the next tick does not repeat the
// chunks already received.
func delivered(log logx.Logger, err error) bool {
	if err == nil {
		return true
	}
	var p partialDelivery
	if errors.As(err, &p) && p.PartiallyDelivered() {
		log.Warn("reminder only partially delivered", logx.Err(err))
		return true
	}
	return false
}

type EventStore interface {
	FetchDueReminders(ctx context.Context, now time.Time, limit int) ([]storage.Event, error)
	MarkEventReminded(ctx context.Context, eventID int64) (int64, error)
	ClaimEventReminder(ctx context.Context, eventID int64, now time.Time) (bool, error)
	ReleaseEventReminder(ctx context.Context, eventID int64) (int64, error)
	RecoverEventClaims(ctx context.Context, cutoff time.Time) (int64, error)
}

type Config struct {
	Interval  time.Duration
	BatchSize int
	// ClaimBeforeSend flips the reminded flag with a conditional update
	// before sending, so concurrent dispatchers never deliver the same
	// reminder twice. The claim is released when delivery fails.
	ClaimBeforeSend bool
	// ClaimLease is how long a claim may stay unsettled before it is treated
	// as abandoned by a stopped dispatcher and returned to pending. It must
	// outlast the longest tick.
	ClaimLease  time.Duration
	SendTimeout time.Duration
	// Location renders times in reminder text.
	Location *time.Location
}

func (c Config) withDefaults(interval time.Duration, batch int) Config {
	if c.Interval <= 0 {
		c.Interval = interval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = batch
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 15 * time.Second
	}
	if c.ClaimLease <= 0 {
		c.ClaimLease = max(10*time.Minute, 4*tickTimeout(c.Interval))
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	return c
}

// Result summarizes one tick.
type Result struct {
	Due     int
	Sent    int
	Pending int
	Skipped int
}

type Option func(*options)

type options struct {
	log     logx.Logger
	metrics *metrics.Metrics
}

func WithLogger(log logx.Logger) Option { return func(o *options) { o.log = log } }
func WithMetrics(m *metrics.Metrics) Option { return func(o *options) { o.metrics = m } }

func buildOptions(opts []Option) options {
	var o options
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	if o.log.IsZero() {
		o.log = logx.Nop()
	}
	return o
}

// Dispatcher delivers event reminders.
type Dispatcher struct {
	store    EventStore
	notifier Notifier
	clock    clock.Clock
	cfg      Config
	log      logx.Logger
	metrics  *metrics.Metrics
}

func NewDispatcher(store EventStore, notifier Notifier, clk clock.Clock, cfg Config, opts ...Option) *Dispatcher {
	o := buildOptions(opts)
	if clk == nil {
		clk = clock.System{}
	}
	return &Dispatcher{
		store:    store,
		notifier: notifier,
		clock:    clk,
		cfg:      cfg.withDefaults(15*time.Second, 50),
		log:      o.log,
		metrics:  o.metrics,
	}
}

func (d *Dispatcher) Interval() time.Duration { return d.cfg.Interval }

// TickTimeout bounds a single tick started by Run.
func (d *Dispatcher) TickTimeout() time.Duration { return tickTimeout(d.cfg.Interval) }

func (d *Dispatcher) Run(ctx context.Context) error {
	return runEvery(ctx, "dispatcher", d.cfg.Interval, d.log, d.metrics, func(tctx context.Context) (Result, error) {
		return d.Tick(tctx)
	})
}

// Tick runs one dispatch pass over due event reminders.
func (d *Dispatcher) Tick(ctx context.Context) (Result, error) {
	now := d.clock.Now()
	if d.cfg.ClaimBeforeSend {
		n, err := d.store.RecoverEventClaims(ctx, now.Add(-d.cfg.ClaimLease))
		if err != nil {
			return Result{}, fmt.Errorf("recover stale claims: %w", err)
		}
		if n > 0 {
			d.log.Warn("stale reminder claims returned to pending", logx.Int64("count", n))
		}
	}
	due, err := d.store.FetchDueReminders(ctx, now, d.cfg.BatchSize)
	if err != nil {
		return Result{}, fmt.Errorf("fetch due reminders: %w", err)
	}

	res := Result{Due: len(due)}
	for _, ev := range due {
		log := d.log.With(logx.Int64("event_id", ev.ID), logx.Int64("scope_id", ev.ScopeID))

		if d.cfg.ClaimBeforeSend {
			won, err := d.store.ClaimEventReminder(ctx, ev.ID, now)
			if err != nil {
				log.Warn("claim reminder failed", logx.Err(err))
				res.Pending++
				continue
			}
			if !won {
				d.metrics.ClaimLost(kindEvent)
				res.Skipped++
				continue
			}
		}

		if route, ok := d.deliver(ctx, log, ev); ok {
			n, err := d.store.MarkEventReminded(ctx, ev.ID)
			switch {
			case err != nil && d.cfg.ClaimBeforeSend:
				// The reminder stays claimed and is offered again once the lease runs out.
				log.Error("settle claim failed", logx.Err(err), logx.Duration("lease", d.cfg.ClaimLease))
			case err != nil:
				// Delivered but not recorded: the next tick may send it again.
				log.Error("mark reminded failed", logx.Err(err))
				res.Pending++
				continue
			case n == 0:
				log.Debug("event deleted before it could be marked")
			}
			d.metrics.ReminderSent(kindEvent)
			log.Info("event reminder sent", logx.String("route", route))
			res.Sent++
			continue
		}

		if d.cfg.ClaimBeforeSend {
			if _, err := d.store.ReleaseEventReminder(ctx, ev.ID); err != nil {
				log.Error("release claim failed", logx.Err(err))
			}
		}
		res.Pending++
	}
	return res, nil
}

// deliver tries the direct message first and the channel second.
func (d *Dispatcher) deliver(ctx context.Context, log logx.Logger, ev storage.Event) (string, bool) {
	text := EventReminderText(ev, d.cfg.Location)
	err := d.attempt(ctx, func(sctx context.Context) error {
		return d.notifier.SendDirect(sctx, ev.CreatedBy, text)
	})
	ok := delivered(log, err)
	d.metrics.Delivery(kindEvent, routeDirect, ok)
	if ok {
		return routeDirect, true
	}
	log.Debug("direct reminder failed", logx.Err(err))

	if !ev.RemindInChannel {
		log.Warn("reminder left pending", logx.String("reason", "direct failed, channel fallback disabled"))
		return "", false
	}

	text = ChannelReminderText(ev, d.cfg.Location)
	err = d.attempt(ctx, func(sctx context.Context) error {
		return d.notifier.SendToChannel(sctx, ev.ScopeID, ev.ChannelID, text)
	})
	ok = delivered(log, err)
	d.metrics.Delivery(kindEvent, routeChannel, ok)
	if ok {
		return routeChannel, true
	}
	log.Warn("reminder left pending", logx.String("reason", "direct and channel failed"), logx.Err(err))
	return "", false
}

func (d *Dispatcher) attempt(ctx context.Context, send func(context.Context) error) error {
	return attempt(ctx, d.cfg.SendTimeout, send)
}

// attempt bounds one external call and turns a panic into an error.
func attempt(ctx context.Context, timeout time.Duration, send func(context.Context) error) (err error) {
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return send(sctx)
}
