package app

import (
	"strings"
	"time"

	"eventbot/internal/config"
	"eventbot/internal/digest"
	"eventbot/internal/observability/ops"
	"eventbot/internal/planner"
	"eventbot/internal/reaper"
	"eventbot/internal/reminder"
	"eventbot/internal/storage"
	"eventbot/internal/transport/telegram"
	logx "eventbot/pkg/logx"
)

// Mapping from the file config to component configs. Durations come from the
// resolved Runtime so defaults live in one place.

func logConfig(cfg *config.Config) logx.Config {
	l := cfg.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
		Ops: logx.OpsConfig{
			Enabled:    l.Telegram.Enabled,
			ChatID:     l.Telegram.ChatID,
			ThreadID:   l.Telegram.ThreadID,
			MinLevel:   l.Telegram.MinLevel,
			RatePerSec: l.Telegram.RatePerSec,
		},
	}
}

func storageConfig(cfg *config.Config, rt config.Runtime) storage.Config {
	return storage.Config{
		Path:        strings.TrimSpace(cfg.Storage.Path),
		BusyTimeout: rt.StorageBusyTimeout,
	}
}

func telegramConfig(cfg *config.Config, rt config.Runtime) telegram.Config {
	return telegram.Config{
		Token:       strings.TrimSpace(cfg.Telegram.Token),
		APIURL:      strings.TrimSpace(cfg.Telegram.APIURL),
		HTTPTimeout: rt.TelegramHTTPTimeout,
		RatePerSec:  cfg.Telegram.RatePerSec,
		MaxRetries:  cfg.Telegram.MaxRetries,
	}
}

func plannerConfig(rt config.Runtime) planner.Config {
	return planner.Config{Location: rt.Location, EventWindow: rt.EventWindow}
}

func reaperConfig(cfg *config.Config, rt config.Runtime) reaper.Config {
	return reaper.Config{
		Interval:       rt.ReaperInterval,
		Protected:      cfg.Reaper.ProtectedChannels,
		CleanupTimeout: rt.CleanupTimeout,
	}
}

func dispatcherConfig(cfg *config.Config, rt config.Runtime) reminder.Config {
	return reminder.Config{
		Interval:        rt.DispatchInterval,
		BatchSize:       cfg.Dispatcher.BatchSize,
		ClaimBeforeSend: cfg.Dispatcher.ClaimBeforeSend,
		SendTimeout:     rt.SendTimeout,
		Location:        rt.Location,
	}
}

func memoConfig(cfg *config.Config, rt config.Runtime) reminder.Config {
	c := dispatcherConfig(cfg, rt)
	c.Interval = rt.MemoInterval
	c.BatchSize = cfg.Memo.BatchSize
	return c
}

func digestConfig(cfg *config.Config, rt config.Runtime) digest.Config {
	targets := make([]digest.Target, 0, len(cfg.Digest.Targets))
	for _, t := range cfg.Digest.Targets {
		targets = append(targets, digest.Target{ScopeID: t.ChatID, ThreadID: t.ThreadID})
	}
	return digest.Config{
		Schedule:    cfg.DigestSchedule(),
		Location:    rt.Location,
		Targets:     targets,
		Blessing:    cfg.Digest.Blessing,
		SendTimeout: rt.SendTimeout,
	}
}

func opsConfig(cfg *config.Config, rt config.Runtime) ops.Config {
	addr := strings.TrimSpace(cfg.Ops.Addr)
	if addr == "" {
		addr = ops.DefaultAddr
	}
	return ops.Config{
		Addr:          addr,
		Token:         strings.TrimSpace(cfg.Ops.Token),
		AllowInsecure: cfg.Ops.AllowInsecure,
		ReadTimeout:   rt.OpsReadTimeout,
		WriteTimeout:  rt.OpsWriteTimeout,
		IdleTimeout:   60 * time.Second,
	}
}
