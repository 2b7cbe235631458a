package export

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	lineBreaks   = regexp.MustCompile(`\r?\n`)
	formulaStart = regexp.MustCompile(`^[=+\-@]`)
)

// CSV renders an Excel-friendly, semicolon separated, windows-1251 encoded
// document.
func CSV(p Params, now time.Time) []byte {
	meta := [][2]string{
		{"Ассет", p.assetLabel()},
		{"Период", p.RangeLabel},
		{"Записей", strconv.Itoa(len(p.Events))},
		{"Экспортировано", now.In(p.loc()).Format("02.01.2006 15:04")},
	}

	lines := []string{"sep=;"}
	for _, kv := range meta {
		lines = append(lines, csvCell(kv[0])+";"+csvCell(kv[1]))
	}
	lines = append(lines, "", csvRow(headers))
	for _, row := range p.rows() {
		lines = append(lines, csvRow(row))
	}

	return EncodeCP1251(strings.Join(lines, "\r\n"))
}

func csvRow(cells []string) string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = csvCell(c)
	}
	return strings.Join(out, ";")
}

// csvCell flattens line breaks, defuses formula prefixes and quotes cells
// that contain the separator or a quote.
func csvCell(s string) string {
	s = lineBreaks.ReplaceAllString(s, " ")
	if formulaStart.MatchString(s) {
		s = "'" + s
	}
	if strings.ContainsAny(s, ";\"\n") {
		s = `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
