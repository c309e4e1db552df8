// Package telegram is the chat transport: it delivers reminder text, posts
// ops log lines, and creates or deletes the forum topics that back event
// channels.
package telegram

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"eventbot/internal/observability/metrics"
	logx "eventbot/pkg/logx"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"
)

type Config struct {
	Token string
	// APIURL overrides the Bot API endpoint (tests, local bot API server).
	APIURL      string
	HTTPTimeout time.Duration

	// RatePerSec and Burst throttle every outgoing call.
	RatePerSec float64
	Burst      int

	// MaxRetries bounds retries of flood-wait and network failures.
	MaxRetries   int
	MaxFloodWait time.Duration
	RetryMin     time.Duration
	RetryMax     time.Duration
}

func (c Config) withDefaults() Config {
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 15 * time.Second
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 25
	}
	if c.Burst <= 0 {
		c.Burst = 5
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.MaxFloodWait <= 0 {
		c.MaxFloodWait = 30 * time.Second
	}
	if c.RetryMin <= 0 {
		c.RetryMin = 500 * time.Millisecond
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 5 * time.Second
	}
	return c
}

type Option func(*Client)

func WithLogger(log logx.Logger) Option { return func(c *Client) { c.log = log } }
func WithMetrics(m *metrics.Metrics) Option { return func(c *Client) { c.metrics = m } }

// Client wraps a telebot bot that is used for outgoing calls only.
type Client struct {
	cfg     Config
	bot     *tele.Bot
	limiter *rate.Limiter
	log     logx.Logger
	metrics *metrics.Metrics
}

func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	cfg = cfg.withDefaults()

	settings := tele.Settings{
		Token:   strings.TrimSpace(cfg.Token),
		Client:  &http.Client{Timeout: cfg.HTTPTimeout},
		Offline: true,
	}
	if u := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/"); u != "" {
		settings.URL = u
	}
	b, err := tele.NewBot(settings)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:     cfg,
		bot:     b,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.log.IsZero() {
		c.log = logx.Nop()
	}
	return c, nil
}

// Ping checks the token against getMe.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, "getMe", func() error {
		_, err := c.bot.Raw("getMe", nil)
		return err
	})
}

// call runs one Bot API call under the limiter with bounded retries.
// Flood waits longer than MaxFloodWait and non-network errors are not retried.
func (c *Client) call(ctx context.Context, method string, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.RetryMin
	bo.MaxInterval = c.cfg.RetryMax
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.cfg.MaxRetries)), ctx)

	attempt := 0
	op := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		err := fn()
		if err == nil {
			return nil
		}
		if wait, ok := floodWait(err); ok {
			if wait > c.cfg.MaxFloodWait {
				return backoff.Permanent(err)
			}
			c.log.Warn("telegram flood wait",
				logx.String("method", method),
				logx.Duration("retry_after", wait),
				logx.Int("attempt", attempt),
			)
			if serr := sleepCtx(ctx, wait); serr != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		if isTransient(err) {
			c.log.Debug("telegram call failed, retrying", logx.String("method", method), logx.Err(err))
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.Retry(op, policy)
	c.metrics.TelegramCall(method, err == nil)
	return err
}

func floodWait(err error) (time.Duration, bool) {
	var fe tele.FloodError
	if errors.As(err, &fe) {
		return time.Duration(fe.RetryAfter) * time.Second, true
	}
	var pfe *tele.FloodError
	if errors.As(err, &pfe) && pfe != nil {
		return time.Duration(pfe.RetryAfter) * time.Second, true
	}
	return 0, false
}

func isTransient(err error) bool {
	var ne net.Error
	return errors.As(err, &ne)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
