package export

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/erazemk/oprema/internal/model"
)

var msk = time.FixedZone("MSK", 3*60*60)

func decode(t *testing.T, b []byte) string {
	t.Helper()
	s, err := charmap.Windows1251.NewDecoder().Bytes(b)
	require.NoError(t, err)
	return string(s)
}

func TestCSVCell(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"=SUM(A1)", "'=SUM(A1)"},
		{"+7 999", "'+7 999"},
		{"-1", "'-1"},
		{"@cmd", "'@cmd"},
		{"a;b", `"a;b"`},
		{`say "hi"`, `"say ""hi"""`},
		{"line1\r\nline2\nline3", "line1 line2 line3"},
		{"=a;b", `"'=a;b"`},
		{" leading space", " leading space"},
	}
	for _, tt := range tests {
		if got := csvCell(tt.in); got != tt.want {
			t.Errorf("csvCell(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEncodeCP1251(t *testing.T) {
	got := EncodeCP1251("Aя Ёё №«»–—…•° ✓")
	want := []byte{'A', 0xff, ' ', 0xa8, 0xb8, ' ', 0xb9, 0xab, 0xbb, 0x96, 0x97, 0x85, 0x95, 0xb0, ' ', '?'}
	assert.Equal(t, want, got)

	// Cyrillic outside А..я and the kept extras is replaced.
	assert.Equal(t, []byte{'?'}, EncodeCP1251("Ў"))
	assert.Equal(t, []byte{0xc0}, EncodeCP1251("А"))
}

func TestCSVLayout(t *testing.T) {
	now := time.Date(2026, 1, 15, 9, 5, 0, 0, msk)
	p := Params{
		AssetID:    "5",
		RangeLabel: "01.01.2026 00:00 — 15.01.2026 09:05",
		Location:   msk,
		Events: []model.Event{
			{ID: 2, TS: "2026-01-14T10:00:00.000Z", Type: "Ремонт", Result: "Проблема: alarm • Насос; фильтр", UserLogin: "ivanova"},
			{ID: 1, TS: "2026-01-14T07:30:00.000Z", Type: model.ClaimWorkType, Result: model.ClaimResult, UserLogin: "ivanova"},
		},
	}

	text := decode(t, CSV(p, now))
	lines := strings.Split(text, "\r\n")
	want := []string{
		"sep=;",
		"Ассет;5",
		"Период;01.01.2026 00:00 — 15.01.2026 09:05",
		"Записей;2",
		"Экспортировано;15.01.2026 09:05",
		"",
		"Дата и время;Вид работ;Дополнительно;Пользователь",
		`14.01.26 / 13:00;Ремонт;"Проблема: alarm • Насос; фильтр";ivanova`,
		"14.01.26 / 10:30;Занятие;Устройство занято;ivanova",
	}
	assert.Equal(t, want, lines)
	assert.False(t, strings.HasSuffix(text, "\r\n"))
}

func TestCSVEmptyHasPlaceholder(t *testing.T) {
	text := decode(t, CSV(Params{Location: msk}, time.Now()))
	lines := strings.Split(text, "\r\n")
	assert.Equal(t, "Ассет;—", lines[1])
	assert.Equal(t, "Записей;0", lines[3])
	assert.Equal(t, EmptyPlaceholder+";;;", lines[len(lines)-1])
}

func TestFileName(t *testing.T) {
	now := time.Date(2026, 3, 7, 14, 2, 0, 0, time.Local)
	assert.Equal(t, "analytics_5_20260307_1402.csv", FileName("5", FormatCSV, now))
	assert.Equal(t, "analytics_asset_20260307_1402.pdf", FileName("", FormatPDF, now))
	assert.Equal(t, "analytics_ab_c_d.e-f_20260307_1402.csv", FileName("ab / c№d.e-f", FormatCSV, now))
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "02.03.26 / 09:07", FormatTimestamp("2026-03-02T06:07:00.000Z", msk))
	assert.Equal(t, "garbage", FormatTimestamp("garbage", msk))
}

func TestPDF(t *testing.T) {
	out, err := PDF(Params{AssetID: "5", RangeLabel: "— — —", Location: msk}, time.Now())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestPDFBreaksLongTablesAcrossPages(t *testing.T) {
	var events []model.Event
	for i := 0; i < 120; i++ {
		events = append(events, model.Event{
			ID:        int64(i + 1),
			TS:        "2026-01-14T10:00:00.000Z",
			Type:      "Калибровка",
			Result:    fmt.Sprintf("Проблема: предупреждение • запись %d", i),
			UserLogin: "petrov",
		})
	}
	doc := renderPDF(Params{AssetID: "5", Events: events, Location: msk}, time.Now())
	require.NoError(t, doc.Error())
	assert.Greater(t, doc.PageCount(), 1)

	single := renderPDF(Params{AssetID: "5", Location: msk}, time.Now())
	assert.Equal(t, 1, single.PageCount())
}

func TestRender(t *testing.T) {
	_, err := Render("xlsx", Params{}, time.Now())
	assert.ErrorIs(t, err, model.ErrInvalid)

	out, err := Render(FormatCSV, Params{Location: msk}, time.Now())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("sep=;\r\n")))
}
