// Package analytics narrows and orders an asset's event history for the
// analytics view and exports.
package analytics

import (
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/oprema/internal/model"
)

// Preset is a named look-back window.
type Preset string

// Window presets. Custom means the bounds were set by hand.
const (
	PresetDay    Preset = "day"
	PresetWeek   Preset = "week"
	Preset2W     Preset = "2w"
	PresetMonth  Preset = "month"
	Preset3M     Preset = "3m"
	Preset6M     Preset = "6m"
	PresetCustom Preset = "custom"
)

// DefaultPreset is selected when nothing else is asked for.
const DefaultPreset = Preset2W

// Presets lists the look-back presets in display order.
var Presets = []Preset{PresetDay, PresetWeek, Preset2W, PresetMonth, Preset3M, Preset6M}

// Days returns the preset length in days, or 0 for custom and unknown presets.
func (p Preset) Days() int {
	switch p {
	case PresetDay:
		return 1
	case PresetWeek:
		return 7
	case Preset2W:
		return 14
	case PresetMonth:
		return 30
	case Preset3M:
		return 90
	case Preset6M:
		return 180
	}
	return 0
}

// Label is the Russian caption shown on preset buttons.
func (p Preset) Label() string {
	switch p {
	case PresetDay:
		return "День"
	case PresetWeek:
		return "Неделя"
	case Preset2W:
		return "2 недели"
	case PresetMonth:
		return "Месяц"
	case Preset3M:
		return "3 месяца"
	case Preset6M:
		return "6 месяцев"
	}
	return "Период"
}

// ParsePreset validates a preset name. Custom is accepted.
func ParsePreset(s string) (Preset, error) {
	p := Preset(strings.TrimSpace(s))
	if p == PresetCustom || p.Days() > 0 {
		return p, nil
	}
	return "", fmt.Errorf("unknown preset %q", s)
}

// LocalLayout is the datetime-local input format.
const LocalLayout = "2006-01-02T15:04"

// labelLayout is the range label format.
const labelLayout = "02.01.2006 15:04"

// ParseLocal parses a datetime-local value in loc. Empty or invalid input
// yields the zero time, which means "no bound".
func ParseLocal(s string, loc *time.Location) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(LocalLayout, s, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// FormatLocal formats t as a datetime-local value in loc, or "" for the zero
// time.
func FormatLocal(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(LocalLayout)
}

// Window is a preset with its resolved bounds. A zero bound is open.
type Window struct {
	Preset Preset
	From   time.Time
	To     time.Time
}

// PresetWindow returns [now - N days, now] in loc.
func PresetWindow(p Preset, now time.Time, loc *time.Location) Window {
	now = now.In(loc)
	return Window{
		Preset: p,
		From:   now.AddDate(0, 0, -p.Days()),
		To:     now,
	}
}

// CustomWindow returns a window with hand-set bounds.
func CustomWindow(from, to time.Time) Window {
	return Window{Preset: PresetCustom, From: from, To: to}
}

// WithFrom replaces the lower bound and switches to custom.
func (w Window) WithFrom(t time.Time) Window {
	w.From = t
	w.Preset = PresetCustom
	return w
}

// WithTo replaces the upper bound and switches to custom.
func (w Window) WithTo(t time.Time) Window {
	w.To = t
	w.Preset = PresetCustom
	return w
}

// RangeLabel renders the window as "dd.mm.yyyy HH:MM — dd.mm.yyyy HH:MM",
// with "—" for an open bound.
func (w Window) RangeLabel(loc *time.Location) string {
	return RangeLabel(w.From, w.To, loc)
}

// RangeLabel formats two bounds like Window.RangeLabel.
func RangeLabel(from, to time.Time, loc *time.Location) string {
	return labelPart(from, loc) + " — " + labelPart(to, loc)
}

func labelPart(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "—"
	}
	return t.In(loc).Format(labelLayout)
}

// Contains reports whether t lies within the inclusive bounds.
func (w Window) Contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && t.After(w.To) {
		return false
	}
	return true
}

// eventTime returns the parsed timestamp of e, or the zero time.
func eventTime(e model.Event) time.Time {
	t, ok := e.Time()
	if !ok {
		return time.Time{}
	}
	return t
}
