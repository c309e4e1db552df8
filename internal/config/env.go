package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment override, e.g. EVENTBOT_TELEGRAM_TOKEN.
const EnvPrefix = "eventbot"

// Env holds secrets and deployment-specific values that override the file.
type Env struct {
	Mode          string `envconfig:"MODE"`
	TelegramToken string `envconfig:"TELEGRAM_TOKEN"`
	DatabasePath  string `envconfig:"DATABASE_PATH"`
	OpsChatID     int64  `envconfig:"OPS_CHAT_ID"`
	OpsToken      string `envconfig:"OPS_TOKEN"`
	OpsAddr       string `envconfig:"OPS_ADDR"`
	LogLevel      string `envconfig:"LOG_LEVEL"`
}

func LoadEnv() (Env, error) {
	var e Env
	if err := envconfig.Process(EnvPrefix, &e); err != nil {
		return Env{}, fmt.Errorf("env: %w", err)
	}
	return e, nil
}

// Overlay copies every non-empty value onto cfg.
func (e Env) Overlay(cfg *Config) {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	if m := strings.TrimSpace(e.Mode); m != "" {
		cfg.App.Mode = Mode(strings.ToLower(m))
	}
	set(&cfg.Telegram.Token, e.TelegramToken)
	set(&cfg.Storage.Path, e.DatabasePath)
	set(&cfg.Ops.Token, e.OpsToken)
	set(&cfg.Ops.Addr, e.OpsAddr)
	set(&cfg.Logging.Level, e.LogLevel)
	if e.OpsChatID != 0 {
		cfg.Logging.Telegram.ChatID = e.OpsChatID
	}
}
