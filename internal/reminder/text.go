package reminder

import (
	"fmt"
	"time"

	"eventbot/internal/storage"
	"eventbot/pkg/tgui"
)

// Reminder texts use Telegram HTML parse mode.

const displayLayout = "2006-01-02 15:04 MST"

func formatWhen(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(displayLayout)
}

func EventReminderText(ev storage.Event, loc *time.Location) string {
	var d tgui.Doc
	d.Line(tgui.Esc("⏰ Event reminder: "), tgui.B(ev.Title))
	d.Line(tgui.Esc("Starts: "), tgui.Code(formatWhen(ev.StartAt, loc)))
	if ev.EndAt != nil {
		d.Line(tgui.Esc("Ends: "), tgui.Code(formatWhen(*ev.EndAt, loc)))
	}
	if ev.ChannelName != "" {
		d.Linef("Topic: %s", ev.ChannelName)
	}
	return d.String()
}

// ChannelReminderText prefixes the event text with a mention of the creator.
func ChannelReminderText(ev storage.Event, loc *time.Location) string {
	return string(tgui.Mention("🔔", ev.CreatedBy)) + " " + EventReminderText(ev, loc)
}

func MemoReminderText(m storage.MemoItem, loc *time.Location) string {
	var d tgui.Doc
	d.Line(tgui.Esc("⏰ Memo reminder"))
	d.Linef("%s %s %s", tgui.Code(fmt.Sprintf("#%d", m.ID)), tgui.B("["+m.Kind+"]"), m.Title)
	if m.DueAt != nil {
		d.Line(tgui.Esc("Due: "), tgui.Code(formatWhen(*m.DueAt, loc)))
	}
	d.Linef("Use /memo_show %d to view or /memo_done %d to complete.", m.ID, m.ID)
	return d.String()
}
