package tgui

import (
	"fmt"
	"html"
	"strings"
)

// H is HTML that is safe to send with ParseMode=HTML.
type H string

func (h H) String() string { return string(h) }

func Esc(s string) H { return H(html.EscapeString(s)) }

func wrap(tag string, inner H) H { return H("<" + tag + ">" + string(inner) + "</" + tag + ">") }

func B(s string) H    { return wrap("b", Esc(s)) }
func I(s string) H    { return wrap("i", Esc(s)) }
func Code(s string) H { return wrap("code", Esc(s)) }

func Link(text, url string) H {
	return H(fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(url), html.EscapeString(text)))
}

// Mention links to a Telegram user by id. It notifies the user in groups.
func Mention(label string, userID int64) H {
	return Link(label, fmt.Sprintf("tg://user?id=%d", userID))
}

// Doc accumulates lines of safe HTML.
type Doc struct {
	b strings.Builder
}

// Line appends parts joined without a separator, starting a new line when
// the document is not empty.
func (d *Doc) Line(parts ...H) *Doc {
	if d.b.Len() > 0 {
		d.b.WriteByte('\n')
	}
	for _, p := range parts {
		d.b.WriteString(string(p))
	}
	return d
}

// Linef appends a formatted line. Arguments are escaped unless they are H.
func (d *Doc) Linef(format string, args ...any) *Doc {
	esc := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case H:
			esc[i] = string(v)
		case string:
			esc[i] = html.EscapeString(v)
		default:
			esc[i] = a
		}
	}
	return d.Line(H(fmt.Sprintf(format, esc...)))
}

// Blank appends an empty line.
func (d *Doc) Blank() *Doc {
	d.b.WriteByte('\n')
	return d
}

func (d *Doc) H() H           { return H(d.b.String()) }
func (d *Doc) String() string { return d.b.String() }
