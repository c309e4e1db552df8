// Package planner validates user input for events, reminders, memos,
// categories and the multimedia catalog before it reaches the store.
package planner

import (
	"context"
	"time"

	"eventbot/internal/clock"
	"eventbot/internal/storage"
	logx "eventbot/pkg/logx"
)

// Channels creates and removes the side-effect channels owned by events.
type Channels interface {
	CreateChannel(ctx context.Context, scopeID int64, name string) (int64, error)
	DeleteByName(ctx context.Context, scopeID int64, name string) (bool, error)
}

type Config struct {
	// Location is used for event and reminder input and display.
	Location *time.Location
	// EventWindow is added to the start time when an event has no end.
	EventWindow time.Duration
}

type Option func(*Planner)

func WithLogger(log logx.Logger) Option { return func(p *Planner) { p.log = log } }

type Planner struct {
	store    storage.Store
	channels Channels
	clock    clock.Clock
	loc      *time.Location
	window   time.Duration
	log      logx.Logger
}

func New(store storage.Store, channels Channels, clk clock.Clock, cfg Config, opts ...Option) *Planner {
	if clk == nil {
		clk = clock.System{}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.EventWindow <= 0 {
		cfg.EventWindow = 7 * 24 * time.Hour
	}
	p := &Planner{
		store:    store,
		channels: channels,
		clock:    clk,
		loc:      cfg.Location,
		window:   cfg.EventWindow,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.log.IsZero() {
		p.log = logx.Nop()
	}
	return p
}

func (p *Planner) Location() *time.Location { return p.loc }

func (p *Planner) ScopeDashboard(ctx context.Context, scopeID int64) (storage.ScopeDashboard, error) {
	return p.store.ScopeDashboard(ctx, scopeID, p.clock.Now())
}

func (p *Planner) UserDashboard(ctx context.Context, scopeID, userID int64) (storage.UserDashboard, error) {
	return p.store.UserDashboard(ctx, scopeID, userID, p.clock.Now())
}
