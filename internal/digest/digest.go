// Package digest posts a daily list of each scope's events for today.
package digest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"eventbot/internal/clock"
	"eventbot/internal/observability/metrics"
	"eventbot/internal/storage"
	logx "eventbot/pkg/logx"
	"eventbot/pkg/tgui"

	"github.com/robfig/cron/v3"
)

const DefaultSchedule = "0 9 * * *"

type Store interface {
	ListEventsForDay(ctx context.Context, scopeID int64, dayStart, dayEnd, now time.Time) ([]storage.Event, error)
}

type Sender interface {
	SendToChannel(ctx context.Context, scopeID, channelID int64, text string) error
}

// Target is a group topic that receives the digest for its group.
type Target struct {
	ScopeID  int64
	ThreadID int64
}

type Config struct {
	Schedule    string
	Location    *time.Location
	Targets     []Target
	Blessing    string
	SendTimeout time.Duration
}

type Option func(*Digest)

func WithLogger(log logx.Logger) Option { return func(d *Digest) { d.log = log } }
func WithMetrics(m *metrics.Metrics) Option { return func(d *Digest) { d.metrics = m } }

type Digest struct {
	store   Store
	sender  Sender
	clock   clock.Clock
	cfg     Config
	sched   cron.Schedule
	log     logx.Logger
	metrics *metrics.Metrics
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func New(store Store, sender Sender, clk clock.Clock, cfg Config, opts ...Option) (*Digest, error) {
	if clk == nil {
		clk = clock.System{}
	}
	cfg.Schedule = strings.TrimSpace(cfg.Schedule)
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	sched, err := parser.Parse(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("digest schedule %q: %w", cfg.Schedule, err)
	}
	d := &Digest{store: store, sender: sender, clock: clk, cfg: cfg, sched: sched}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	if d.log.IsZero() {
		d.log = logx.Nop()
	}
	return d, nil
}

// Next returns the next fire time after t.
func (d *Digest) Next(t time.Time) time.Time { return d.sched.Next(t.In(d.cfg.Location)) }

// Run fires Send on the schedule until ctx is canceled.
func (d *Digest) Run(ctx context.Context) error {
	c := cron.New(cron.WithParser(parser), cron.WithLocation(d.cfg.Location))
	c.Schedule(d.sched, cron.FuncJob(func() {
		if _, err := d.Send(context.WithoutCancel(ctx)); err != nil {
			d.log.Warn("digest incomplete", logx.Err(err))
		}
	}))
	c.Start()
	d.log.Info("digest scheduled",
		logx.String("schedule", d.cfg.Schedule),
		logx.String("tz", d.cfg.Location.String()),
		logx.Int("targets", len(d.cfg.Targets)),
	)
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// Send posts today's digest to every target. Failed targets are skipped and
// reported together.
func (d *Digest) Send(ctx context.Context) (int, error) {
	now := d.clock.Now()
	local := now.In(d.cfg.Location)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, d.cfg.Location)
	dayEnd := dayStart.AddDate(0, 0, 1)

	sent := 0
	var errs []error
	for _, t := range d.cfg.Targets {
		log := d.log.With(logx.Int64("scope_id", t.ScopeID), logx.Int64("thread_id", t.ThreadID))
		events, err := d.store.ListEventsForDay(ctx, t.ScopeID, dayStart, dayEnd, now)
		if err != nil {
			log.Warn("digest query failed", logx.Err(err))
			errs = append(errs, fmt.Errorf("scope %d: %w", t.ScopeID, err))
			continue
		}
		text := Text(local, events, d.cfg.Location, d.cfg.Blessing)

		sctx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
		err = d.sender.SendToChannel(sctx, t.ScopeID, t.ThreadID, text)
		cancel()
		d.metrics.DigestSend(err == nil)
		if err != nil {
			log.Warn("digest send failed", logx.Err(err))
			errs = append(errs, fmt.Errorf("scope %d: %w", t.ScopeID, err))
			continue
		}
		log.Info("digest sent", logx.Int("events", len(events)))
		sent++
	}
	return sent, errors.Join(errs...)
}

// Text renders the digest in Telegram HTML.
func Text(day time.Time, events []storage.Event, loc *time.Location, blessing string) string {
	var d tgui.Doc
	d.Line(tgui.Esc("📣 "), tgui.B("Events today, "+day.Format("2006-01-02")))
	if len(events) == 0 {
		d.Line(tgui.Esc("- No events scheduled today 🤖"))
	}
	for _, e := range events {
		line := tgui.Esc("- ") + tgui.B(e.Title) + tgui.Esc(" • "+e.StartAt.In(loc).Format("15:04"))
		var extras []string
		if e.ChannelName != "" {
			extras = append(extras, "topic: "+e.ChannelName)
		}
		if e.MemberLimit != nil {
			extras = append(extras, fmt.Sprintf("max %d", *e.MemberLimit))
		}
		if len(extras) > 0 {
			line += tgui.Esc(" (" + strings.Join(extras, ", ") + ")")
		}
		d.Line(line)
	}
	if s := strings.TrimSpace(blessing); s != "" {
		d.Blank().Line(tgui.Esc("✨ " + s))
	}
	return d.String()
}
