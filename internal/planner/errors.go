package planner

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Length caps keep every reminder and digest line well inside one Telegram
// message. Topic names follow the Bot API limit.
const (
	maxTitleRunes       = 128
	maxChannelNameRunes = 128
	maxDescriptionRunes = 1024
	maxMemoKindRunes    = 32
	maxMemoTitleRunes   = 256
	maxMemoNoteRunes    = 2048
)

// ErrValidation marks input rejected before it reaches the store.
var ErrValidation = errors.New("invalid input")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func tooLong(field, s string, limit int) error {
	if n := utf8.RuneCountInString(s); n > limit {
		return invalid("%s is %d characters, the limit is %d", field, n, limit)
	}
	return nil
}
