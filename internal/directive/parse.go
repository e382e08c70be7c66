package directive

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const recurringPrefix = "*/"

// oneTimeFields is minute, hour, day, month, year.
const oneTimeFields = 5

// maxEveryMinutes is the largest interval that fits in a time.Duration.
const maxEveryMinutes = math.MaxInt64 / int64(time.Minute)

// Parse converts a single directive line into an Entry.
//
// One-time wall-clock times are interpreted in time.Local.
func Parse(line string) (Entry, error) {
	return ParseIn(line, time.Local)
}

// ParseIn is Parse with an explicit location for one-time directives.
func ParseIn(line string, loc *time.Location) (Entry, error) {
	s := strings.TrimSpace(line)
	if s == "" {
		return Entry{}, malformed("empty line")
	}
	if loc == nil {
		loc = time.Local
	}
	if strings.HasPrefix(s, recurringPrefix) {
		return parseRecurring(s)
	}
	return parseOneTime(s, loc)
}

func parseRecurring(s string) (Entry, error) {
	rest := s[len(recurringPrefix):]
	sp := strings.IndexAny(rest, " \t")
	if sp < 0 {
		return Entry{}, malformed("recurring directive %q has no command", s)
	}
	raw := rest[:sp]
	command := strings.TrimSpace(rest[sp+1:])
	if command == "" {
		return Entry{}, malformed("recurring directive %q has no command", s)
	}
	n, err := parseDigits(raw)
	if err != nil {
		return Entry{}, malformed("interval %q: %v", raw, err)
	}
	if n < 1 {
		return Entry{}, malformed("interval must be >= 1 minute, got %d", n)
	}
	if int64(n) > maxEveryMinutes {
		return Entry{}, malformed("interval %d minutes is too large (max %d)", n, maxEveryMinutes)
	}
	return Entry{Kind: KindRecurring, Every: time.Duration(n) * time.Minute, Command: command}, nil
}

func parseOneTime(s string, loc *time.Location) (Entry, error) {
	var vals [oneTimeFields]int
	rest := s
	for i := 0; i < oneTimeFields; i++ {
		rest = strings.TrimLeft(rest, " \t")
		end := strings.IndexAny(rest, " \t")
		if end < 0 {
			// The fifth field must still be followed by a command.
			return Entry{}, malformed("expected 5 time fields and a command in %q", s)
		}
		n, err := parseDigits(rest[:end])
		if err != nil {
			return Entry{}, malformed("field %d %q: %v", i+1, rest[:end], err)
		}
		vals[i] = n
		rest = rest[end:]
	}
	command := strings.TrimSpace(rest)
	if command == "" {
		return Entry{}, malformed("one-time directive %q has no command", s)
	}

	minute, hour, day, month, year := vals[0], vals[1], vals[2], vals[3], vals[4]
	if minute > 59 || hour > 23 || month < 1 || month > 12 || day < 1 {
		return Entry{}, malformed("invalid date/time %02d:%02d %04d-%02d-%02d", hour, minute, year, month, day)
	}
	at := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
	// time.Date normalises overflow (Feb 30 -> Mar 2); reject that.
	if at.Day() != day || int(at.Month()) != month || at.Year() != year {
		return Entry{}, malformed("invalid date %04d-%02d-%02d", year, month, day)
	}
	return Entry{Kind: KindOneTime, At: at, Command: command}, nil
}

// parseDigits accepts ASCII digits only (no sign, no spaces).
func parseDigits(raw string) (int, error) {
	if raw == "" {
		return 0, strconv.ErrSyntax
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.Atoi(raw)
}
