package analytics

import (
	"errors"
	"fmt"
	"time"

	"github.com/oshilog/chatview/internal/timeutil"
)

// ErrUnknownWindow is returned when a window selector cannot be
// parsed.
var ErrUnknownWindow = errors.New("unknown window")

// Window is a relative time range selector.
type Window int

const (
	WindowAll Window = iota
	WindowLast24h
	WindowLastWeek
	WindowLastMonth
)

var windowNames = map[Window]string{
	WindowAll:       "all",
	WindowLast24h:   "last24h",
	WindowLastWeek:  "lastWeek",
	WindowLastMonth: "lastMonth",
}

var windowAliases = map[string]Window{
	"":          WindowAll,
	"all":       WindowAll,
	"last24h":   WindowLast24h,
	"24h":       WindowLast24h,
	"lastWeek":  WindowLastWeek,
	"week":      WindowLastWeek,
	"lastMonth": WindowLastMonth,
	"month":     WindowLastMonth,
}

// ParseWindow parses a selector name. The empty string means all.
func ParseWindow(s string) (Window, error) {
	w, ok := windowAliases[s]
	if !ok {
		return WindowAll, fmt.Errorf("%w: %q", ErrUnknownWindow, s)
	}
	return w, nil
}

func (w Window) String() string {
	if name, ok := windowNames[w]; ok {
		return name
	}
	return fmt.Sprintf("Window(%d)", int(w))
}

// Duration is the length of the window; zero means unbounded.
func (w Window) Duration() time.Duration {
	switch w {
	case WindowLast24h:
		return 24 * time.Hour
	case WindowLastWeek:
		return 7 * 24 * time.Hour
	case WindowLastMonth:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

// Cutoff returns the inclusive lower bound in epoch seconds for
// messages in the window ending at now. Unbounded windows return 0.
func (w Window) Cutoff(now time.Time) float64 {
	d := w.Duration()
	if d <= 0 {
		return 0
	}
	return timeutil.Epoch(now) - d.Seconds()
}

// MarshalText implements encoding.TextMarshaler.
func (w Window) MarshalText() ([]byte, error) {
	name, ok := windowNames[w]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownWindow, int(w))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (w *Window) UnmarshalText(b []byte) error {
	parsed, err := ParseWindow(string(b))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}
