package telegram

import (
	"context"
	"errors"
	"fmt"

	tele "gopkg.in/telebot.v4"
)

// SendDirect sends HTML text to a user's private chat with the bot.
func (c *Client) SendDirect(ctx context.Context, userID int64, text string) error {
	return c.send(ctx, userID, 0, text, tele.ModeHTML)
}

// SendToChannel posts HTML text into a forum topic of a group. Thread 0 is
// the general topic.
func (c *Client) SendToChannel(ctx context.Context, scopeID, channelID int64, text string) error {
	return c.send(ctx, scopeID, int(channelID), text, tele.ModeHTML)
}

// SendText posts plain text; it backs the ops log sink.
func (c *Client) SendText(ctx context.Context, chatID int64, threadID int, text string) error {
	return c.send(ctx, chatID, threadID, text, tele.ModeDefault)
}

// PartialSendError reports a split message whose leading chunks were
// delivered before a later chunk failed.
type PartialSendError struct {
	Sent  int
	Total int
	Err   error
}

func (e *PartialSendError) Error() string {
	return fmt.Sprintf("send part %d/%d: %v", e.Sent+1, e.Total, e.Err)
}

func (e *PartialSendError) Unwrap() error { return e.Err }

// PartiallyDelivered reports whether the recipient already got some of the text.
func (e *PartialSendError) PartiallyDelivered() bool { return e.Sent > 0 }

func (c *Client) send(ctx context.Context, chatID int64, threadID int, text string, mode tele.ParseMode) error {
	if chatID == 0 {
		return errors.New("send: empty chat id")
	}
	chat := &tele.Chat{ID: chatID}
	chunks := splitText(text, textLimit, mode == tele.ModeHTML)
	for i, chunk := range chunks {
		opts := &tele.SendOptions{
			ParseMode:             mode,
			ThreadID:              threadID,
			DisableWebPagePreview: true,
		}
		err := c.call(ctx, "sendMessage", func() error {
			_, err := c.bot.Send(chat, chunk, opts)
			return err
		})
		if err != nil {
			if i > 0 {
				return &PartialSendError{Sent: i, Total: len(chunks), Err: err}
			}
			return err
		}
	}
	return nil
}
