// Package app wires the store, the Telegram transport and the periodic loops
// into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"eventbot/internal/clock"
	"eventbot/internal/config"
	"eventbot/internal/digest"
	"eventbot/internal/observability/metrics"
	"eventbot/internal/observability/ops"
	"eventbot/internal/planner"
	"eventbot/internal/reaper"
	"eventbot/internal/reminder"
	"eventbot/internal/runtime/supervisor"
	"eventbot/internal/storage"
	"eventbot/internal/transport/telegram"
	logx "eventbot/pkg/logx"
	"eventbot/pkg/systemd"
)

const (
	minShutdownTimeout = 15 * time.Second
	shutdownGrace      = 5 * time.Second
)

type App struct {
	cfgm *config.Manager
	cfg  *config.Config
	rt   config.Runtime

	log     logx.Logger
	logs    *logx.Service
	metrics *metrics.Metrics

	store     *storage.SQLite
	client    *telegram.Client
	resources *telegram.Resources

	planner    *planner.Planner
	reaper     *reaper.Reaper
	dispatcher *reminder.Dispatcher
	memos      *reminder.MemoDispatcher // nil when memo.disabled
	digest     *digest.Digest           // nil when digest.enabled is false

	sup   *supervisor.Supervisor
	ready chan struct{}
}

// New loads the config and builds every component. Nothing runs until Run.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	rt, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}
	return build(ctx, cfgm, cfg, rt, clock.System{})
}

func build(ctx context.Context, cfgm *config.Manager, cfg *config.Config, rt config.Runtime, clk clock.Clock) (*App, error) {
	// The ops-chat sink needs the Telegram client, which needs a logger.
	// Start with the sink off and apply the full logging config once the
	// sender is attached.
	bootCfg := logConfig(cfg)
	bootCfg.Ops.Enabled = false
	logs, root := logx.New(bootCfg)
	log := root.With(logx.String("comp", "app"))
	comp := func(name string) logx.Logger { return root.With(logx.String("comp", name)) }

	m := metrics.New()

	client, err := telegram.New(telegramConfig(cfg, rt), telegram.WithLogger(comp("telegram")), telegram.WithMetrics(m))
	if err != nil {
		_ = logs.Close()
		return nil, err
	}
	logs.SetSender(client)
	logs.Apply(logConfig(cfg))

	store, err := storage.Open(ctx, storageConfig(cfg, rt), comp("storage"))
	if err != nil {
		_ = logs.Close()
		return nil, err
	}
	resources := telegram.NewResources(client, store)

	a := &App{
		cfgm:      cfgm,
		cfg:       cfg,
		rt:        rt,
		log:       log,
		logs:      logs,
		metrics:   m,
		store:     store,
		client:    client,
		resources: resources,
		ready:     make(chan struct{}),
		planner:   planner.New(store, resources, clk, plannerConfig(rt), planner.WithLogger(comp("planner"))),
		reaper: reaper.New(store, resources, clk, reaperConfig(cfg, rt),
			reaper.WithLogger(comp("reaper")), reaper.WithMetrics(m)),
		dispatcher: reminder.NewDispatcher(store, client, clk, dispatcherConfig(cfg, rt),
			reminder.WithLogger(comp("dispatcher")), reminder.WithMetrics(m)),
	}
	if !cfg.Memo.Disabled {
		a.memos = reminder.NewMemoDispatcher(store, client, clk, memoConfig(cfg, rt),
			reminder.WithLogger(comp("memo_dispatcher")), reminder.WithMetrics(m))
	}
	if cfg.Digest.Enabled {
		d, err := digest.New(store, client, clk, digestConfig(cfg, rt),
			digest.WithLogger(comp("digest")), digest.WithMetrics(m))
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.digest = d
	}

	log.Info("app configured",
		logx.String("mode", string(rt.Mode)),
		logx.String("timezone", rt.Location.String()),
		logx.Duration("event_window", rt.EventWindow),
		logx.Duration("reaper_interval", rt.ReaperInterval),
		logx.Duration("dispatch_interval", rt.DispatchInterval),
		logx.Bool("claim_before_send", cfg.Dispatcher.ClaimBeforeSend),
		logx.Bool("memo_reminders", a.memos != nil),
		logx.Bool("digest", a.digest != nil),
	)
	return a, nil
}

func (a *App) Logger() logx.Logger       { return a.log }
func (a *App) Planner() *planner.Planner { return a.planner }

// Ready is closed once Run has started every task.
func (a *App) Ready() <-chan struct{} { return a.ready }

// Run starts every loop and blocks until ctx is canceled or a task fails
// fatally. In-flight ticks finish before Run returns.
func (a *App) Run(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)
	restart := supervisor.WithRestartBackoff(time.Second, time.Minute)

	a.sup.GoRestart("reaper", a.reaper.Run, restart)
	a.sup.GoRestart("dispatcher", a.dispatcher.Run, restart)
	if a.memos != nil {
		a.sup.GoRestart("memo_dispatcher", a.memos.Run, restart)
	}
	if a.digest != nil {
		a.sup.GoRestart("digest", a.digest.Run, restart)
	}
	if a.cfg.Ops.Enabled {
		srv := ops.New(opsConfig(a.cfg, a.rt), a.log.With(logx.String("comp", "ops")), a.metrics.Handler(), a.sup, a.store)
		a.sup.Go("ops", srv.Run)
	}

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	reloads := a.cfgm.Subscribe(4)
	a.sup.Go("config.watch", a.cfgm.Watch)
	a.sup.Go("config.apply", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(reloads)
		a.applyReloads(c, reloads)
		return nil
	})
	a.sup.Go("systemd.watchdog", func(c context.Context) error {
		if err := systemd.Watchdog(c, a.log, func() bool { return a.sup.Err() == nil }); err != nil {
			a.log.Warn("systemd watchdog unavailable", logx.Err(err))
		}
		return nil
	})

	systemd.Ready(a.log)
	close(a.ready)
	a.log.Info("app started")

	<-a.sup.Context().Done()
	reason := StopSignal
	if a.sup.Err() != nil {
		reason = StopFatalError
	}
	return a.shutdown(reason)
}

func (a *App) shutdown(reason StopReason) error {
	systemd.Stopping(a.log)
	a.log.Info("stopping", logx.String("reason", string(reason)))

	timeout := a.shutdownTimeout()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a.sup.Cancel()
	waitErr := a.sup.Wait(ctx)
	if waitErr != nil {
		a.log.Error("closing store with ticks still in flight; their writes will fail",
			logx.Duration("waited", timeout), logx.Err(waitErr))
	}
	runErr := a.sup.Err()

	a.log.Info("stopped")
	closeErr := a.Close()
	if runErr != nil {
		return runErr
	}
	return errors.Join(waitErr, closeErr)
}

// shutdownTimeout outlasts the longest tick bound, so a tick started before
// shutdown finishes before the store closes.
func (a *App) shutdownTimeout() time.Duration {
	d := max(minShutdownTimeout, a.reaper.TickTimeout(), a.dispatcher.TickTimeout())
	if a.memos != nil {
		d = max(d, a.memos.TickTimeout())
	}
	return d + shutdownGrace
}

// Close releases the store and flushes log sinks.
func (a *App) Close() error {
	var err error
	if a.store != nil {
		err = a.store.Close()
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return err
}

// ReapOnce runs a single reaper pass.
func (a *App) ReapOnce(ctx context.Context) (reaper.Result, error) {
	return a.reaper.Tick(ctx)
}

// DispatchOnce runs a single pass of the event dispatcher and, when enabled,
// the memo dispatcher.
func (a *App) DispatchOnce(ctx context.Context) (events, memos reminder.Result, err error) {
	events, err = a.dispatcher.Tick(ctx)
	if err != nil || a.memos == nil {
		return events, memos, err
	}
	memos, err = a.memos.Tick(ctx)
	return events, memos, err
}

// applyReloads applies hot-reloadable sections and reports the rest.
func (a *App) applyReloads(ctx context.Context, reloads <-chan *config.Config) {
	last := a.cfg
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-reloads:
			if !ok {
				return
			}
			changed, attrs := config.SummarizeChange(last, next)
			last = next
			if len(changed) == 0 {
				a.log.Debug("config reload had no effective changes")
				continue
			}
			a.logs.Apply(logConfig(next))
			fields := append([]logx.Field{logx.String("changed", strings.Join(changed, ","))}, attrs...)
			a.log.Info("config reloaded", fields...)
			if pending := config.RestartRequired(changed); len(pending) > 0 {
				a.log.Warn("restart required for config changes", logx.String("sections", strings.Join(pending, ",")))
			}
		}
	}
}

// Migrate opens the configured database, applies the schema and closes it.
func Migrate(ctx context.Context, cfgPath string) error {
	cfg, err := config.NewManager(cfgPath).Load()
	if err != nil {
		return fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	rt, err := cfg.Resolve()
	if err != nil {
		return err
	}
	log := logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "migrate"))
	st, err := storage.Open(ctx, storageConfig(cfg, rt), log)
	if err != nil {
		return err
	}
	log.Info("schema applied", logx.String("path", cfg.Storage.Path))
	return st.Close()
}
