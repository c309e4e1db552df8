package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"eventbot/internal/storage"
	logx "eventbot/pkg/logx"
	"eventbot/pkg/tgui"

	tele "gopkg.in/telebot.v4"
)

// topicNameLimit is the Bot API limit for forum topic names.
const topicNameLimit = 128

// Registry is the subset of the store that remembers topic thread ids.
type Registry interface {
	RecordChannelResource(ctx context.Context, scopeID int64, name string, threadID int64) (bool, error)
	LookupChannelResource(ctx context.Context, scopeID int64, name string) (storage.ChannelResource, bool, error)
	ForgetChannelResource(ctx context.Context, scopeID int64, name string) (int64, error)
}

// Resources creates and deletes the forum topics backing event channels.
type Resources struct {
	client   *Client
	registry Registry
	log      logx.Logger
}

func NewResources(client *Client, registry Registry) *Resources {
	return &Resources{
		client:   client,
		registry: registry,
		log:      client.log.With(logx.String("comp", "telegram.resources")),
	}
}

// CreateChannel opens a forum topic named name in the scope and returns its
// thread id. A name already registered in the scope is refused with
// storage.ErrChannelNameTaken.
func (r *Resources) CreateChannel(ctx context.Context, scopeID int64, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, errors.New("create channel: empty name")
	}
	if _, taken, err := r.registry.LookupChannelResource(ctx, scopeID, name); err != nil {
		return 0, err
	} else if taken {
		return 0, fmt.Errorf("create topic %q: %w", name, storage.ErrChannelNameTaken)
	}

	var topic *tele.Topic
	err := r.client.call(ctx, "createForumTopic", func() error {
		var err error
		topic, err = r.client.bot.CreateTopic(&tele.Chat{ID: scopeID}, &tele.Topic{Name: tgui.TruncRunes(name, topicNameLimit)})
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("create topic %q: %w", name, err)
	}
	threadID := int64(topic.ThreadID)

	recorded, err := r.registry.RecordChannelResource(ctx, scopeID, name, threadID)
	if err == nil && !recorded {
		// Lost a race for the name.
		err = storage.ErrChannelNameTaken
	}
	if err != nil {
		// The topic is unreachable by name; remove it.
		if derr := r.deleteTopic(ctx, scopeID, threadID); derr != nil {
			r.log.Warn("orphan topic left behind",
				logx.Int64("scope_id", scopeID),
				logx.Int64("thread_id", threadID),
				logx.Err(derr),
			)
		}
		return 0, fmt.Errorf("record topic %q: %w", name, err)
	}
	r.log.Info("topic created", logx.Int64("scope_id", scopeID), logx.String("name", name), logx.Int64("thread_id", threadID))
	return threadID, nil
}

// DeleteByName deletes the topic recorded under name. It reports false when
// no such topic is known.
func (r *Resources) DeleteByName(ctx context.Context, scopeID int64, name string) (bool, error) {
	res, ok, err := r.registry.LookupChannelResource(ctx, scopeID, name)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := r.deleteTopic(ctx, scopeID, res.ThreadID); err != nil {
		if !isTopicGone(err) {
			return false, fmt.Errorf("delete topic %q: %w", name, err)
		}
		r.log.Debug("topic already deleted upstream", logx.String("name", name))
	}
	if _, err := r.registry.ForgetChannelResource(ctx, scopeID, name); err != nil {
		return true, fmt.Errorf("forget topic %q: %w", name, err)
	}
	return true, nil
}

func (r *Resources) deleteTopic(ctx context.Context, scopeID, threadID int64) error {
	return r.client.call(ctx, "deleteForumTopic", func() error {
		return r.client.bot.DeleteTopic(&tele.Chat{ID: scopeID}, &tele.Topic{ThreadID: int(threadID)})
	})
}

func isTopicGone(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "topic_id_invalid")
}
