package reminder

import (
	"context"
	"fmt"
	"time"

	"eventbot/internal/clock"
	"eventbot/internal/observability/metrics"
	"eventbot/internal/storage"
	logx "eventbot/pkg/logx"
)

type MemoStore interface {
	FetchDueMemoReminders(ctx context.Context, now time.Time, limit int) ([]storage.MemoItem, error)
	MarkMemoReminded(ctx context.Context, memoID int64) (int64, error)
	ClaimMemoReminder(ctx context.Context, memoID int64, now time.Time) (bool, error)
	ReleaseMemoReminder(ctx context.Context, memoID int64) (int64, error)
	RecoverMemoClaims(ctx context.Context, cutoff time.Time) (int64, error)
}

// MemoDispatcher delivers memo reminders. Memo reminders are direct-only.
type MemoDispatcher struct {
	store    MemoStore
	notifier Notifier
	clock    clock.Clock
	cfg      Config
	log      logx.Logger
	metrics  *metrics.Metrics
}

func NewMemoDispatcher(store MemoStore, notifier Notifier, clk clock.Clock, cfg Config, opts ...Option) *MemoDispatcher {
	o := buildOptions(opts)
	if clk == nil {
		clk = clock.System{}
	}
	return &MemoDispatcher{
		store:    store,
		notifier: notifier,
		clock:    clk,
		cfg:      cfg.withDefaults(30*time.Second, 25),
		log:      o.log,
		metrics:  o.metrics,
	}
}

func (d *MemoDispatcher) Interval() time.Duration { return d.cfg.Interval }

// TickTimeout bounds a single tick started by Run.
func (d *MemoDispatcher) TickTimeout() time.Duration { return tickTimeout(d.cfg.Interval) }

func (d *MemoDispatcher) Run(ctx context.Context) error {
	return runEvery(ctx, "memo_dispatcher", d.cfg.Interval, d.log, d.metrics, func(tctx context.Context) (Result, error) {
		return d.Tick(tctx)
	})
}

func (d *MemoDispatcher) Tick(ctx context.Context) (Result, error) {
	now := d.clock.Now()
	if d.cfg.ClaimBeforeSend {
		n, err := d.store.RecoverMemoClaims(ctx, now.Add(-d.cfg.ClaimLease))
		if err != nil {
			return Result{}, fmt.Errorf("recover stale memo claims: %w", err)
		}
		if n > 0 {
			d.log.Warn("stale memo claims returned to pending", logx.Int64("count", n))
		}
	}
	due, err := d.store.FetchDueMemoReminders(ctx, now, d.cfg.BatchSize)
	if err != nil {
		return Result{}, fmt.Errorf("fetch due memo reminders: %w", err)
	}

	res := Result{Due: len(due)}
	for _, m := range due {
		log := d.log.With(logx.Int64("memo_id", m.ID), logx.Int64("owner_id", m.OwnerID))

		if d.cfg.ClaimBeforeSend {
			won, err := d.store.ClaimMemoReminder(ctx, m.ID, now)
			if err != nil {
				log.Warn("claim memo reminder failed", logx.Err(err))
				res.Pending++
				continue
			}
			if !won {
				d.metrics.ClaimLost(kindMemo)
				res.Skipped++
				continue
			}
		}

		text := MemoReminderText(m, d.cfg.Location)
		err := attempt(ctx, d.cfg.SendTimeout, func(sctx context.Context) error {
			return d.notifier.SendDirect(sctx, m.OwnerID, text)
		})
		ok := delivered(log, err)
		d.metrics.Delivery(kindMemo, routeDirect, ok)
		if !ok {
			log.Warn("memo reminder left pending", logx.Err(err))
			if d.cfg.ClaimBeforeSend {
				if _, rerr := d.store.ReleaseMemoReminder(ctx, m.ID); rerr != nil {
					log.Error("release memo claim failed", logx.Err(rerr))
				}
			}
			res.Pending++
			continue
		}

		if _, err := d.store.MarkMemoReminded(ctx, m.ID); err != nil {
			if !d.cfg.ClaimBeforeSend {
				log.Error("mark memo reminded failed", logx.Err(err))
				res.Pending++
				continue
			}
			log.Error("settle memo claim failed", logx.Err(err), logx.Duration("lease", d.cfg.ClaimLease))
		}
		d.metrics.ReminderSent(kindMemo)
		log.Info("memo reminder sent")
		res.Sent++
	}
	return res, nil
}
