package analytics

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/erazemk/oprema/internal/model"
)

// Direction is the timestamp sort order.
type Direction string

// Sort directions.
const (
	Desc Direction = "desc"
	Asc  Direction = "asc"
)

// Toggle returns the opposite direction.
func (d Direction) Toggle() Direction {
	if d == Asc {
		return Desc
	}
	return Asc
}

// ParseDirection validates a sort direction. Empty means descending.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case "", Desc:
		return Desc, nil
	case Asc:
		return Asc, nil
	}
	return "", fmt.Errorf("unknown sort %q", s)
}

// Filter narrows an event list. Empty fields do not filter.
type Filter struct {
	Window   Window
	WorkType string
	User     string
	Query    string
	Sort     Direction
}

// Match reports whether e passes every filter.
func (f Filter) Match(e model.Event) bool {
	if !f.Window.Contains(eventTime(e)) {
		return false
	}
	if f.WorkType != "" && e.Type != f.WorkType {
		return false
	}
	if f.User != "" && e.UserLogin != f.User {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(e.Result), q) {
			return false
		}
	}
	return true
}

// Apply filters events and sorts the survivors by timestamp. The input
// slice is not modified.
func Apply(events []model.Event, f Filter) []model.Event {
	out := []model.Event{}
	for _, e := range events {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	Sort(out, f.Sort)
	return out
}

// Sort orders events by timestamp in place. Equal timestamps keep their
// relative order.
func Sort(events []model.Event, dir Direction) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := eventTime(events[i]), eventTime(events[j])
		if dir == Asc {
			return a.Before(b)
		}
		return a.After(b)
	})
}

// Query parameter names shared by the analytics and export endpoints.
const (
	ParamPreset   = "preset"
	ParamFrom     = "from"
	ParamTo       = "to"
	ParamWorkType = "workType"
	ParamUser     = "user"
	ParamQuery    = "q"
	ParamSort     = "sort"
)

// FromValues builds a filter from query parameters. A from or to value
// switches the window to custom; otherwise the preset (or def) applies.
// Invalid preset or sort values are rejected with ErrInvalid; invalid
// datetime values are ignored.
func FromValues(v url.Values, now time.Time, loc *time.Location, def Preset) (Filter, error) {
	f := Filter{
		WorkType: v.Get(ParamWorkType),
		User:     v.Get(ParamUser),
		Query:    v.Get(ParamQuery),
	}

	dir, err := ParseDirection(v.Get(ParamSort))
	if err != nil {
		return Filter{}, model.NewError(model.ErrInvalid, "invalid sort value")
	}
	f.Sort = dir

	preset := def
	if raw := v.Get(ParamPreset); raw != "" {
		p, err := ParsePreset(raw)
		if err != nil {
			return Filter{}, model.NewError(model.ErrInvalid, "invalid preset value")
		}
		preset = p
	}

	fromRaw, toRaw := v.Get(ParamFrom), v.Get(ParamTo)
	switch {
	case fromRaw != "" || toRaw != "" || preset == PresetCustom:
		f.Window = CustomWindow(ParseLocal(fromRaw, loc), ParseLocal(toRaw, loc))
	default:
		f.Window = PresetWindow(preset, now, loc)
	}
	return f, nil
}

// Values renders the filter back into query parameters.
func (f Filter) Values(loc *time.Location) url.Values {
	v := url.Values{}
	if f.Window.Preset == PresetCustom {
		v.Set(ParamPreset, string(PresetCustom))
		if from := FormatLocal(f.Window.From, loc); from != "" {
			v.Set(ParamFrom, from)
		}
		if to := FormatLocal(f.Window.To, loc); to != "" {
			v.Set(ParamTo, to)
		}
	} else if f.Window.Preset != "" {
		v.Set(ParamPreset, string(f.Window.Preset))
	}
	if f.WorkType != "" {
		v.Set(ParamWorkType, f.WorkType)
	}
	if f.User != "" {
		v.Set(ParamUser, f.User)
	}
	if f.Query != "" {
		v.Set(ParamQuery, f.Query)
	}
	if f.Sort != "" && f.Sort != Desc {
		v.Set(ParamSort, string(f.Sort))
	}
	return v
}

// Result is the analytics response body.
type Result struct {
	Preset     Preset        `json:"preset"`
	From       string        `json:"from"`
	To         string        `json:"to"`
	RangeLabel string        `json:"rangeLabel"`
	Sort       Direction     `json:"sort"`
	Total      int           `json:"total"`
	Events     []model.Event `json:"events"`
}

// Run applies f to events and packages the outcome.
func Run(events []model.Event, f Filter, loc *time.Location) Result {
	out := Apply(events, f)
	return Result{
		Preset:     f.Window.Preset,
		From:       FormatLocal(f.Window.From, loc),
		To:         FormatLocal(f.Window.To, loc),
		RangeLabel: f.Window.RangeLabel(loc),
		Sort:       f.Sort,
		Total:      len(out),
		Events:     out,
	}
}
