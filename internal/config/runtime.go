package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
)

// Mode defaults. Test mode shortens the event window and the reaper
// interval so expiry can be observed within minutes.
var modeDefaults = map[Mode]struct {
	EventWindow    time.Duration
	ReaperInterval time.Duration
}{
	ModeTest:       {EventWindow: 10 * time.Minute, ReaperInterval: 10 * time.Second},
	ModeProduction: {EventWindow: 7 * 24 * time.Hour, ReaperInterval: time.Minute},
}

const (
	DefaultDispatchInterval = 15 * time.Second
	DefaultMemoInterval     = 30 * time.Second
	DefaultSendTimeout      = 15 * time.Second
	DefaultCleanupTimeout   = 30 * time.Second
	DefaultDigestSchedule   = "0 9 * * *"
)

// Runtime is the validated, typed view of Config.
type Runtime struct {
	Mode     Mode
	Location *time.Location

	EventWindow time.Duration

	TelegramHTTPTimeout time.Duration
	StorageBusyTimeout  time.Duration

	ReaperInterval time.Duration
	CleanupTimeout time.Duration

	DispatchInterval time.Duration
	SendTimeout      time.Duration
	MemoInterval     time.Duration

	OpsReadTimeout  time.Duration
	OpsWriteTimeout time.Duration
}

// Validate reports every problem in cfg at once.
func (c *Config) Validate() error {
	_, err := c.Resolve()
	return err
}

// Resolve applies mode defaults and parses every duration and name.
func (c *Config) Resolve() (Runtime, error) {
	var (
		rt   Runtime
		errs []error
	)
	check := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	dur := func(path, raw string, def time.Duration) time.Duration {
		d, err := parseDuration(path, raw, def)
		check(err)
		return d
	}

	rt.Mode = Mode(strings.ToLower(strings.TrimSpace(string(c.App.Mode))))
	if rt.Mode == "" {
		rt.Mode = ModeProduction
	}
	defs, ok := modeDefaults[rt.Mode]
	if !ok {
		check(fmt.Errorf("app.mode: must be %q or %q, got %q", ModeTest, ModeProduction, c.App.Mode))
		defs = modeDefaults[ModeProduction]
	}

	rt.Location = time.UTC
	if tz := strings.TrimSpace(c.App.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			check(fmt.Errorf("app.timezone: %w", err))
		} else {
			rt.Location = loc
		}
	}

	rt.EventWindow = dur("app.event_window", c.App.EventWindow, defs.EventWindow)
	rt.TelegramHTTPTimeout = dur("telegram.http_timeout", c.Telegram.HTTPTimeout, 0)
	rt.StorageBusyTimeout = dur("storage.busy_timeout", c.Storage.BusyTimeout, 0)
	rt.ReaperInterval = dur("reaper.interval", c.Reaper.Interval, defs.ReaperInterval)
	rt.CleanupTimeout = dur("reaper.cleanup_timeout", c.Reaper.CleanupTimeout, DefaultCleanupTimeout)
	rt.DispatchInterval = dur("dispatcher.interval", c.Dispatcher.Interval, DefaultDispatchInterval)
	rt.SendTimeout = dur("dispatcher.send_timeout", c.Dispatcher.SendTimeout, DefaultSendTimeout)
	rt.MemoInterval = dur("memo.interval", c.Memo.Interval, DefaultMemoInterval)
	rt.OpsReadTimeout = dur("ops.read_timeout", c.Ops.ReadTimeout, 0)
	rt.OpsWriteTimeout = dur("ops.write_timeout", c.Ops.WriteTimeout, 0)

	if strings.TrimSpace(c.Telegram.Token) == "" {
		check(errors.New("telegram.token: required (or set EVENTBOT_TELEGRAM_TOKEN)"))
	}
	if c.Telegram.RatePerSec < 0 || c.Telegram.MaxRetries < 0 {
		check(errors.New("telegram: rate_per_sec and max_retries must be >= 0"))
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		check(errors.New("storage.path: required"))
	}
	if c.Dispatcher.BatchSize < 0 || c.Memo.BatchSize < 0 {
		check(errors.New("batch_size must be >= 0"))
	}
	if c.Logging.Telegram.Enabled && c.Logging.Telegram.ChatID == 0 {
		check(errors.New("logging.telegram.chat_id: required when enabled"))
	}
	if c.Digest.Enabled {
		if _, err := cron.ParseStandard(c.DigestSchedule()); err != nil {
			check(fmt.Errorf("digest.schedule: %w", err))
		}
		if len(c.Digest.Targets) == 0 {
			check(errors.New("digest.targets: at least one target required when enabled"))
		}
		for i, t := range c.Digest.Targets {
			if t.ChatID == 0 {
				check(fmt.Errorf("digest.targets[%d].chat_id: required", i))
			}
		}
	}
	return rt, errors.Join(errs...)
}

func (c *Config) DigestSchedule() string {
	if s := strings.TrimSpace(c.Digest.Schedule); s != "" {
		return s
	}
	return DefaultDigestSchedule
}

// parseDuration parses a Go duration string. Empty or zero yields def.
func parseDuration(path, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}
