package analytics

import (
	"net/url"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/oprema/internal/model"
)

var msk = time.FixedZone("MSK", 3*60*60)

func ev(id int64, ts, typ, result, login string) model.Event {
	return model.Event{ID: id, AssetID: model.StringID("5"), TS: ts, Type: typ, Result: result, UserLogin: login}
}

func history() []model.Event {
	return []model.Event{
		ev(1, "2026-01-10T07:00:00.000Z", model.ClaimWorkType, model.ClaimResult, "ivanova"),
		ev(2, "2026-01-10T09:30:00.000Z", "Калибровка", "Проблем не обнаружено • ok", "ivanova"),
		ev(3, "2026-01-12T06:00:00.000Z", model.ClaimWorkType, model.ClaimResult, "petrov"),
		ev(4, "2026-01-12T08:15:00.000Z", "Ремонт", "Проблема: alarm • Сломан насос", "petrov"),
		ev(5, "2026-01-14T10:00:00.000Z", model.ClaimWorkType, model.ClaimResult, "ivanova"),
	}
}

func ids(events []model.Event) []int64 {
	out := make([]int64, 0, len(events))
	for _, e := range events {
		out = append(out, e.ID)
	}
	return out
}

func TestPresetDays(t *testing.T) {
	want := map[Preset]int{
		PresetDay: 1, PresetWeek: 7, Preset2W: 14, PresetMonth: 30,
		Preset3M: 90, Preset6M: 180, PresetCustom: 0,
	}
	for p, days := range want {
		assert.Equal(t, days, p.Days(), p)
	}
	assert.Equal(t, Preset2W, DefaultPreset)
}

func TestParsePreset(t *testing.T) {
	for _, s := range []string{"day", "week", "2w", "month", "3m", "6m", "custom"} {
		_, err := ParsePreset(s)
		assert.NoError(t, err, s)
	}
	_, err := ParsePreset("year")
	assert.Error(t, err)
}

func TestPresetWindowSpansDays(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, msk)
	w := PresetWindow(PresetWeek, now, msk)

	assert.Equal(t, PresetWeek, w.Preset)
	assert.True(t, w.To.Equal(now))
	assert.True(t, w.From.Equal(now.AddDate(0, 0, -7)))
}

func TestCustomBoundSwitchesPreset(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, msk)
	w := PresetWindow(Preset2W, now, msk).WithFrom(time.Date(2026, 1, 11, 0, 0, 0, 0, msk))
	assert.Equal(t, PresetCustom, w.Preset)
	w = PresetWindow(Preset2W, now, msk).WithTo(time.Time{})
	assert.Equal(t, PresetCustom, w.Preset)
}

func TestParseLocal(t *testing.T) {
	got := ParseLocal("2026-01-12T09:15", msk)
	assert.True(t, got.Equal(time.Date(2026, 1, 12, 6, 15, 0, 0, time.UTC)))

	assert.True(t, ParseLocal("", msk).IsZero())
	assert.True(t, ParseLocal("12.01.2026", msk).IsZero())
	assert.Equal(t, "2026-01-12T09:15", FormatLocal(got, msk))
	assert.Equal(t, "", FormatLocal(time.Time{}, msk))
}

func TestRangeLabel(t *testing.T) {
	from := time.Date(2026, 1, 1, 8, 5, 0, 0, msk)
	to := time.Date(2026, 1, 15, 18, 30, 0, 0, msk)

	assert.Equal(t, "01.01.2026 08:05 — 15.01.2026 18:30", RangeLabel(from, to, msk))
	assert.Equal(t, "— — 15.01.2026 18:30", RangeLabel(time.Time{}, to, msk))
	assert.Equal(t, "— — —", CustomWindow(time.Time{}, time.Time{}).RangeLabel(msk))
}

func TestApplyDefaultsToNewestFirst(t *testing.T) {
	got := Apply(history(), Filter{})
	if diff := cmp.Diff([]int64{5, 4, 3, 2, 1}, ids(got)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyFilters(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []int64
	}{
		{"work type", Filter{WorkType: "Ремонт"}, []int64{4}},
		{"user", Filter{User: "ivanova", Sort: Asc}, []int64{1, 2, 5}},
		{"query is trimmed and case-insensitive", Filter{Query: "  ПРОБЛЕМА: ", Sort: Asc}, []int64{4}},
		{"query latin", Filter{Query: " ALARM", Sort: Asc}, []int64{4}},
		{"query without match", Filter{Query: "калибровка"}, nil},
		{"query cyrillic", Filter{Query: "насос"}, []int64{4}},
		{"inclusive bounds", Filter{
			Window: CustomWindow(
				ParseLocal("2026-01-10T12:30", msk),
				ParseLocal("2026-01-12T11:15", msk),
			),
			Sort: Asc,
		}, []int64{2, 3, 4}},
		{"open lower bound", Filter{
			Window: CustomWindow(time.Time{}, ParseLocal("2026-01-10T12:30", msk)),
			Sort:   Asc,
		}, []int64{1, 2}},
		{"combined", Filter{
			Window:   CustomWindow(ParseLocal("2026-01-11T00:00", msk), time.Time{}),
			WorkType: model.ClaimWorkType,
			User:     "ivanova",
		}, []int64{5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Apply(history(), tt.filter))
			want := tt.want
			if want == nil {
				want = []int64{}
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	f := Filter{User: "petrov", Query: "alarm"}
	once := Apply(history(), f)
	twice := Apply(once, f)
	if diff := cmp.Diff(once, twice, cmp.AllowUnexported(model.AssetID{})); diff != "" {
		t.Errorf("second pass changed the result:\n%s", diff)
	}
}

func TestToggleTwiceRestoresOrder(t *testing.T) {
	events := history()
	Sort(events, Desc)
	before := ids(events)

	dir := Desc.Toggle()
	Sort(events, dir)
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids(events))
	Sort(events, dir.Toggle())
	assert.Equal(t, before, ids(events))
}

func TestApplyLeavesInputAlone(t *testing.T) {
	events := history()
	Apply(events, Filter{Sort: Desc})
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids(events))
}

func TestUnparsableTimestampsFailBoundedWindows(t *testing.T) {
	events := []model.Event{ev(1, "garbage", "x", "y", "z")}
	assert.Len(t, Apply(events, Filter{}), 1)
	assert.Empty(t, Apply(events, Filter{Window: CustomWindow(ParseLocal("2026-01-01T00:00", msk), time.Time{})}))
}

func TestFromValues(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, msk)

	f, err := FromValues(url.Values{}, now, msk, DefaultPreset)
	require.NoError(t, err)
	assert.Equal(t, Preset2W, f.Window.Preset)
	assert.Equal(t, Desc, f.Sort)

	f, err = FromValues(url.Values{"preset": {"2w"}, "from": {"2026-01-11T00:00"}}, now, msk, DefaultPreset)
	require.NoError(t, err)
	assert.Equal(t, PresetCustom, f.Window.Preset)
	assert.True(t, f.Window.To.IsZero())

	_, err = FromValues(url.Values{"sort": {"sideways"}}, now, msk, DefaultPreset)
	assert.ErrorIs(t, err, model.ErrInvalid)

	_, err = FromValues(url.Values{"preset": {"year"}}, now, msk, DefaultPreset)
	assert.ErrorIs(t, err, model.ErrInvalid)
}

func TestValuesRoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, msk)
	in := url.Values{
		"preset":   {"custom"},
		"from":     {"2026-01-11T00:00"},
		"workType": {"Ремонт"},
		"user":     {"petrov"},
		"q":        {"насос"},
		"sort":     {"asc"},
	}
	f, err := FromValues(in, now, msk, DefaultPreset)
	require.NoError(t, err)
	if diff := cmp.Diff(in, f.Values(msk)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestRun(t *testing.T) {
	w := CustomWindow(ParseLocal("2026-01-12T00:00", msk), time.Time{})
	res := Run(history(), Filter{Window: w, Sort: Desc}, msk)

	assert.Equal(t, PresetCustom, res.Preset)
	assert.Equal(t, "2026-01-12T00:00", res.From)
	assert.Equal(t, "", res.To)
	assert.Equal(t, "12.01.2026 00:00 — —", res.RangeLabel)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, []int64{5, 4, 3}, ids(res.Events))
}
