package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func TestNewRejectsEmptyToken(t *testing.T) {
	t.Parallel()
	_, err := New(Config{Token: "  "})
	require.Error(t, err)
}

func TestSendDirectUsesUserChatAndHTML(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	c := api.client(t)

	require.NoError(t, c.SendDirect(context.Background(), 42, "<b>hi</b>"))

	calls := api.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "sendMessage", calls[0].Method)
	assert.Equal(t, "42", fmt.Sprint(calls[0].Params["chat_id"]))
	assert.Equal(t, "<b>hi</b>", calls[0].Params["text"])
	assert.Equal(t, "HTML", calls[0].Params["parse_mode"])
}

func TestSendToChannelSetsThread(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	c := api.client(t)

	require.NoError(t, c.SendToChannel(context.Background(), -100123, 9, "ping"))

	calls := api.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "-100123", fmt.Sprint(calls[0].Params["chat_id"]))
	assert.Equal(t, "9", fmt.Sprint(calls[0].Params["message_thread_id"]))
}

func TestSendSplitsLongText(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	c := api.client(t)

	line := strings.Repeat("x", 99) + "\n"
	require.NoError(t, c.SendText(context.Background(), 1, 0, strings.Repeat(line, 90)))
	assert.Len(t, api.calls(), 3)
}

func TestSendReportsPartialDelivery(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	c := api.client(t)
	api.queue("sendMessage", func(w http.ResponseWriter, _ *http.Request) {
		writeOK(w, map[string]any{"message_id": 1, "date": 0, "chat": map[string]any{"id": 42}})
	})
	api.queue("sendMessage", writeErr(400, "Bad Request: can't parse entities"))

	line := strings.Repeat("x", 99) + "\n"
	err := c.SendDirect(context.Background(), 42, strings.Repeat(line, 90))
	var partial *PartialSendError
	require.ErrorAs(t, err, &partial)
	assert.True(t, partial.PartiallyDelivered())
	assert.Equal(t, 1, partial.Sent)
	assert.Equal(t, 3, partial.Total)
	assert.Len(t, api.calls(), 2, "stops at the failing chunk")

	api.queue("sendMessage", writeErr(400, "Bad Request: chat not found"))
	err = c.SendDirect(context.Background(), 42, "x")
	require.Error(t, err)
	assert.False(t, errors.As(err, &partial))
}

func TestSendDoesNotRetryAPIErrors(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	c := api.client(t)
	api.queue("sendMessage", writeErr(400, "Bad Request: chat not found"))

	err := c.SendDirect(context.Background(), 42, "x")
	require.Error(t, err)
	assert.Len(t, api.calls(), 1)
}

func TestSendRetriesDroppedConnections(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	c := api.client(t)
	api.queue("sendMessage", dropConn)

	require.NoError(t, c.SendDirect(context.Background(), 42, "x"))
	assert.Len(t, api.calls(), 2)
}

func TestSendGivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	c := api.client(t)
	for range 5 {
		api.queue("sendMessage", dropConn)
	}

	require.Error(t, c.SendDirect(context.Background(), 42, "x"))
	assert.Len(t, api.calls(), 3, "one attempt plus two retries")
}

func TestSendHonorsContext(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	c := api.client(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, c.SendDirect(ctx, 42, "x"))
}

func TestFloodWait(t *testing.T) {
	t.Parallel()
	d, ok := floodWait(tele.FloodError{RetryAfter: 3})
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, d)

	_, ok = floodWait(fmt.Errorf("boom"))
	assert.False(t, ok)
}

func TestSplitText(t *testing.T) {
	t.Parallel()

	t.Run("short text is one chunk", func(t *testing.T) {
		assert.Equal(t, []string{"abc"}, splitText("abc", 10, false))
	})

	t.Run("prefers newline", func(t *testing.T) {
		got := splitText("aaaa\nbbbbbbb", 8, false)
		assert.Equal(t, []string{"aaaa", "bbbbbbb"}, got)
	})

	t.Run("hard cut without newline", func(t *testing.T) {
		got := splitText(strings.Repeat("é", 25), 10, false)
		require.Len(t, got, 3)
		assert.Equal(t, strings.Repeat("é", 10), got[0])
	})

	t.Run("html tags stay whole", func(t *testing.T) {
		got := splitText("abcdefg<b>x</b>", 9, true)
		require.Len(t, got, 2)
		assert.Equal(t, "abcdefg", got[0])
		assert.True(t, strings.HasPrefix(got[1], "<b>"))
	})

	t.Run("open element is closed and reopened at a cut", func(t *testing.T) {
		got := splitText("<b>"+strings.Repeat("a", 5000)+"</b>", 4000, true)
		require.Len(t, got, 2)
		for i, chunk := range got {
			assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 4000, "chunk %d", i)
			assert.True(t, strings.HasPrefix(chunk, "<b>"), "chunk %d", i)
			assert.True(t, strings.HasSuffix(chunk, "</b>"), "chunk %d", i)
		}
		assert.Equal(t, 5000, strings.Count(strings.Join(got, ""), "a"))
	})

	t.Run("nested elements with attributes", func(t *testing.T) {
		s := `<a href="tg://user?id=1"><b>` + strings.Repeat("x", 50) + `</b></a>`
		got := splitText(s, 40, true)
		require.Greater(t, len(got), 1)
		for i, chunk := range got {
			assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 40, "chunk %d", i)
			assert.Equal(t, 1, strings.Count(chunk, `<a href="tg://user?id=1">`), "chunk %d", i)
			assert.Equal(t, 1, strings.Count(chunk, "</a>"), "chunk %d", i)
			assert.Equal(t, strings.Count(chunk, "<b>"), strings.Count(chunk, "</b>"), "chunk %d", i)
		}
		assert.Equal(t, 50, strings.Count(strings.Join(got, ""), "x"))
	})

	t.Run("entities stay whole", func(t *testing.T) {
		got := splitText("aaaaaaa&amp;b", 9, true)
		assert.Equal(t, []string{"aaaaaaa", "&amp;b"}, got)
	})
}
