package config

import (
	"reflect"
	"sort"
	"strings"

	logx "eventbot/pkg/logx"
)

// hotSections are applied without a restart.
var hotSections = map[string]bool{"logging": true}

// SummarizeChange returns the changed top-level sections and attrs that are
// safe to log. Tokens are reported only as set/unset.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var (
		changed []string
		attrs   []logx.Field
	)
	section := func(name string, differ bool, fields ...logx.Field) {
		if differ {
			changed = append(changed, name)
			attrs = append(attrs, fields...)
		}
	}

	section("app", oldCfg.App != newCfg.App,
		logx.String("app.mode", string(newCfg.App.Mode)),
		logx.String("app.timezone", newCfg.App.Timezone),
	)
	ot, nt := oldCfg.Telegram, newCfg.Telegram
	section("telegram", ot.APIURL != nt.APIURL || ot.HTTPTimeout != nt.HTTPTimeout ||
		ot.RatePerSec != nt.RatePerSec || ot.MaxRetries != nt.MaxRetries || ot.Token != nt.Token,
		logx.Bool("telegram.token_set", strings.TrimSpace(nt.Token) != ""),
		logx.Bool("telegram.token_changed", ot.Token != nt.Token),
	)
	section("storage", oldCfg.Storage != newCfg.Storage,
		logx.String("storage.busy_timeout", newCfg.Storage.BusyTimeout),
	)
	ol, nl := oldCfg.Logging, newCfg.Logging
	section("logging", ol != nl,
		logx.String("logging.level", nl.Level),
		logx.Bool("logging.console", nl.Console),
		logx.Bool("logging.file_enabled", nl.File.Enabled),
		logx.Bool("logging.telegram_enabled", nl.Telegram.Enabled),
	)
	section("reaper", !reflect.DeepEqual(oldCfg.Reaper, newCfg.Reaper),
		logx.String("reaper.interval", newCfg.Reaper.Interval),
		logx.Int("reaper.protected_count", len(newCfg.Reaper.ProtectedChannels)),
	)
	section("dispatcher", oldCfg.Dispatcher != newCfg.Dispatcher,
		logx.String("dispatcher.interval", newCfg.Dispatcher.Interval),
		logx.Bool("dispatcher.claim_before_send", newCfg.Dispatcher.ClaimBeforeSend),
	)
	section("memo", oldCfg.Memo != newCfg.Memo,
		logx.Bool("memo.disabled", newCfg.Memo.Disabled),
	)
	section("digest", !reflect.DeepEqual(oldCfg.Digest, newCfg.Digest),
		logx.Bool("digest.enabled", newCfg.Digest.Enabled),
		logx.String("digest.schedule", newCfg.Digest.Schedule),
		logx.Int("digest.target_count", len(newCfg.Digest.Targets)),
	)
	oo, no := oldCfg.Ops, newCfg.Ops
	section("ops", oo != no,
		logx.Bool("ops.enabled", no.Enabled),
		logx.String("ops.addr", no.Addr),
		logx.Bool("ops.token_set", strings.TrimSpace(no.Token) != ""),
		logx.Bool("ops.allow_insecure", no.AllowInsecure),
	)

	sort.Strings(changed)
	return changed, attrs
}

// RestartRequired lists changed sections that only take effect after a restart.
func RestartRequired(changed []string) []string {
	var out []string
	for _, s := range changed {
		if !hotSections[s] {
			out = append(out, s)
		}
	}
	return out
}
