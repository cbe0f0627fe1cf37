package command

import (
	"strconv"
	"strings"
)

// Kind names a turret command.
type Kind string

// Recognised commands.
const (
	KindFire   Kind = "abfire"
	KindReload Kind = "abreload"
)

// Command is a parsed operator command.
type Command struct {
	Kind Kind

	// Count is the number of balls for KindFire, always >= 1.
	Count int

	// Params are the raw tokens after the command word.
	Params []string
}

// Parse splits text on single spaces. The first token, minus prefix and
// lower-cased, selects the command; the rest are parameters.
//
// For abfire the first parameter is read as a leading integer ("3", "3x",
// "+3"); only values above 1 replace the default count of 1.
func Parse(text, prefix string) (Command, error) {
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return Command{}, ErrNotCommand
	}

	tokens := strings.Split(text, " ")
	word := strings.ToLower(strings.TrimPrefix(tokens[0], prefix))
	cmd := Command{Kind: Kind(word), Params: tokens[1:]}

	switch cmd.Kind {
	case KindFire:
		cmd.Count = 1
		if len(cmd.Params) > 0 {
			if n, ok := leadingInt(cmd.Params[0]); ok && n > 1 {
				cmd.Count = n
			}
		}
	case KindReload:
	default:
		return Command{}, ErrUnknownCommand
	}
	return cmd, nil
}

// leadingInt parses an optional sign followed by the longest run of decimal
// digits at the start of s.
func leadingInt(s string) (int, bool) {
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		// Out of range for int.
		return 0, false
	}
	return n, true
}
