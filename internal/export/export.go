// Package export renders filtered event lists as CSV (windows-1251, for
// Excel) and PDF documents.
package export

import (
	"fmt"
	"regexp"
	"time"

	"github.com/erazemk/oprema/internal/model"
)

// Formats.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

// Content types per format.
var ContentTypes = map[string]string{
	FormatCSV: "text/csv; charset=windows-1251",
	FormatPDF: "application/pdf",
}

// EmptyPlaceholder fills the first column when there is nothing to export.
const EmptyPlaceholder = "Нет данных по выбранному периоду/фильтрам"

var headers = []string{"Дата и время", "Вид работ", "Дополнительно", "Пользователь"}

// Params describes one export.
type Params struct {
	AssetID    string
	RangeLabel string
	Events     []model.Event
	// Location renders timestamps; nil means time.Local.
	Location *time.Location
}

func (p Params) loc() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}

func (p Params) assetLabel() string {
	if p.AssetID == "" {
		return "—"
	}
	return p.AssetID
}

// rows returns the table body, or a single placeholder row.
func (p Params) rows() [][]string {
	if len(p.Events) == 0 {
		return [][]string{{EmptyPlaceholder, "", "", ""}}
	}
	out := make([][]string, 0, len(p.Events))
	for _, e := range p.Events {
		out = append(out, []string{FormatTimestamp(e.TS, p.loc()), e.Type, e.Result, e.UserLogin})
	}
	return out
}

// FormatTimestamp renders an event timestamp as "dd.mm.yy / HH:MM" in loc.
// Unparsable timestamps are returned unchanged.
func FormatTimestamp(ts string, loc *time.Location) string {
	e := model.Event{TS: ts}
	t, ok := e.Time()
	if !ok {
		return ts
	}
	return t.In(loc).Format("02.01.06 / 15:04")
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// FileName returns "analytics_<asset>_<YYYYMMDD_HHMM>.<ext>".
func FileName(assetID, ext string, now time.Time) string {
	if assetID == "" {
		assetID = "asset"
	}
	asset := unsafeFileChars.ReplaceAllString(assetID, "_")
	return fmt.Sprintf("analytics_%s_%s.%s", asset, now.Format("20060102_1504"), ext)
}

// Render produces the document for format.
func Render(format string, p Params, now time.Time) ([]byte, error) {
	switch format {
	case FormatCSV:
		return CSV(p, now), nil
	case FormatPDF:
		return PDF(p, now)
	}
	return nil, model.NewError(model.ErrInvalid, "invalid export format")
}
