package config

import (
	"fmt"
	"strings"
	"time"
)

// Window is a daily local-time maintenance window. Windows may wrap past
// midnight ("23:00-01:00").
type Window struct {
	start int // minutes since midnight
	end   int
}

// ParseWindow parses "HH:MM-HH:MM".
func ParseWindow(s string) (*Window, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid maintenance window %q, want HH:MM-HH:MM", s)
	}

	start, err := parseClock(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid maintenance window %q: %w", s, err)
	}
	end, err := parseClock(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid maintenance window %q: %w", s, err)
	}
	if start == end {
		return nil, fmt.Errorf("invalid maintenance window %q: zero-length window", s)
	}

	return &Window{start: start, end: end}, nil
}

// Contains reports whether t falls inside the window.
func (w *Window) Contains(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	if w.start < w.end {
		return m >= w.start && m < w.end
	}
	// Wraps past midnight
	return m >= w.start || m < w.end
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("bad time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
