package telegram

import "strings"

const textLimit = 4000

// splitText cuts s into chunks of at most limit runes. It prefers newline
// boundaries. In HTML mode it never cuts inside a tag or an entity, and an
// element open at a cut is closed at the end of the chunk and reopened at the
// start of the next one, so every chunk parses on its own.
func splitText(s string, limit int, html bool) []string {
	if limit <= 0 {
		limit = textLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	var open []htmlTag
	start := 0
	for start < len(rs) {
		prefix := openTags(open)
		budget := max(limit-runeLen(prefix), limit/4)
		end := cutPoint(rs, start, budget, html)

		var closers string
		next := open
		if html {
			for {
				next = trackTags(open, rs[start:end])
				closers = ""
				if end < len(rs) {
					closers = closeTags(next)
				}
				over := runeLen(prefix) + (end - start) + runeLen(closers) - limit
				if over <= 0 || end-start <= over {
					break
				}
				shorter := cutPoint(rs, start, end-start-over, html)
				if shorter >= end {
					break
				}
				end = shorter
			}
		}

		out = append(out, prefix+strings.TrimRight(string(rs[start:end]), "\n")+closers)
		open = next

		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}

// cutPoint returns the end of a chunk starting at start holding at most
// budget runes. The result is always past start.
func cutPoint(rs []rune, start, budget int, html bool) int {
	end := min(start+max(budget, 1), len(rs))
	if end == len(rs) {
		return end
	}

	for i := end - 1; i > start; i-- {
		// Chunks shorter than a third of the budget are not worth a newline cut.
		if rs[i] == '\n' && i-start >= budget/3 {
			end = i + 1
			break
		}
	}
	if !html {
		return end
	}

	lastOpen, lastClose := -1, -1
	for i := start; i < end; i++ {
		switch rs[i] {
		case '<':
			lastOpen = i
		case '>':
			lastClose = i
		}
	}
	if lastOpen > lastClose {
		if lastOpen > start {
			return lastOpen
		}
		// A single tag longer than the budget stays whole.
		for i := end; i < len(rs); i++ {
			if rs[i] == '>' {
				return i + 1
			}
		}
		return len(rs)
	}

	// Entities are at most a few runes long ("&quot;", "&#39;").
	for i := end - 1; i > start && i >= end-8; i-- {
		if rs[i] == ';' || rs[i] == '>' {
			break
		}
		if rs[i] == '&' {
			return i
		}
	}
	return end
}

type htmlTag struct {
	name string
	raw  string
}

// trackTags returns the elements still open after seg, given those open
// before it.
func trackTags(open []htmlTag, seg []rune) []htmlTag {
	stack := append([]htmlTag(nil), open...)
	for i := 0; i < len(seg); i++ {
		if seg[i] != '<' {
			continue
		}
		j := i + 1
		for j < len(seg) && seg[j] != '>' {
			j++
		}
		if j == len(seg) {
			break
		}
		raw := string(seg[i : j+1])
		i = j

		closing := strings.HasPrefix(raw, "</")
		name := tagName(raw)
		switch {
		case name == "" || strings.HasSuffix(raw, "/>"):
		case closing:
			for k := len(stack) - 1; k >= 0; k-- {
				if stack[k].name == name {
					stack = append(stack[:k], stack[k+1:]...)
					break
				}
			}
		default:
			stack = append(stack, htmlTag{name: name, raw: raw})
		}
	}
	return stack
}

func tagName(raw string) string {
	s := strings.TrimPrefix(strings.TrimPrefix(raw, "<"), "/")
	end := strings.IndexAny(s, " \t\n/>")
	if end < 0 {
		return ""
	}
	return strings.ToLower(s[:end])
}

func openTags(stack []htmlTag) string {
	var b strings.Builder
	for _, t := range stack {
		b.WriteString(t.raw)
	}
	return b.String()
}

func closeTags(stack []htmlTag) string {
	var b strings.Builder
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteString("</")
		b.WriteString(stack[i].name)
		b.WriteString(">")
	}
	return b.String()
}

func runeLen(s string) int { return len([]rune(s)) }
