package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	fontFamily = "Go"
	pageMargin = 20.0
	fontSize   = 9.0
	lineHeight = 11.0
	cellPadX   = 4.0
	cellPadY   = 2.0
)

// Fixed column widths in points; the third column takes the remainder.
var fixedWidths = [4]float64{110, 130, 0, 120}

// PDF renders a landscape A4 report with a title block and an event table.
func PDF(p Params, now time.Time) ([]byte, error) {
	doc := renderPDF(p, now)
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func renderPDF(p Params, now time.Time) *fpdf.Fpdf {
	doc := fpdf.New("L", "pt", "A4", "")
	doc.SetCreationDate(now)
	doc.SetTitle("Аналитика ассета: "+p.assetLabel(), true)
	doc.SetMargins(pageMargin, pageMargin, pageMargin)
	doc.SetAutoPageBreak(false, pageMargin)
	doc.AddUTF8FontFromBytes(fontFamily, "", goregular.TTF)
	doc.AddUTF8FontFromBytes(fontFamily, "B", gobold.TTF)
	doc.AddPage()

	doc.SetFont(fontFamily, "B", 12)
	doc.CellFormat(0, 14, "Аналитика ассета: "+p.assetLabel(), "", 1, "L", false, 0, "")
	doc.Ln(4)

	doc.SetFont(fontFamily, "", fontSize)
	doc.SetTextColor(0x66, 0x66, 0x66)
	doc.CellFormat(0, lineHeight, "Период: "+p.RangeLabel, "", 1, "L", false, 0, "")
	doc.Ln(4)
	doc.CellFormat(0, lineHeight, "Записей: "+strconv.Itoa(len(p.Events)), "", 1, "L", false, 0, "")
	doc.Ln(8)
	doc.SetTextColor(0, 0, 0)

	widths := columnWidths(doc)
	tableRow(doc, widths, headers, true)
	for _, row := range p.rows() {
		tableRow(doc, widths, row, false)
	}
	return doc
}

func columnWidths(doc *fpdf.Fpdf) [4]float64 {
	pageW, _ := doc.GetPageSize()
	w := fixedWidths
	w[2] = pageW - 2*pageMargin - w[0] - w[1] - w[3]
	return w
}

// tableRow draws one row, breaking the page first (and repeating the
// header) when the row does not fit.
func tableRow(doc *fpdf.Fpdf, widths [4]float64, cells []string, header bool) {
	style := ""
	if header {
		style = "B"
	}
	doc.SetFont(fontFamily, style, fontSize)

	wrapped := make([][]string, len(cells))
	lines := 1
	for i, c := range cells {
		wrapped[i] = wrap(doc, c, widths[i]-2*cellPadX)
		lines = max(lines, len(wrapped[i]))
	}
	height := float64(lines)*lineHeight + 2*cellPadY

	_, pageH := doc.GetPageSize()
	if !header && doc.GetY()+height > pageH-pageMargin {
		doc.AddPage()
		tableRow(doc, widths, headers, true)
		doc.SetFont(fontFamily, style, fontSize)
	}

	y := doc.GetY()
	x := pageMargin
	for i, w := range widths {
		doc.SetXY(x+cellPadX, y+cellPadY)
		doc.MultiCell(w-2*cellPadX, lineHeight, strings.Join(wrapped[i], "\n"), "", "L", false)
		x += w
	}

	// Light horizontal rules, heavier under the header.
	if header {
		doc.SetLineWidth(1)
		doc.SetDrawColor(0, 0, 0)
	} else {
		doc.SetLineWidth(0.5)
		doc.SetDrawColor(0xaa, 0xaa, 0xaa)
	}
	doc.Line(pageMargin, y+height, x, y+height)
	doc.SetXY(pageMargin, y+height)
}

func wrap(doc *fpdf.Fpdf, s string, width float64) []string {
	if s == "" {
		return []string{""}
	}
	out := doc.SplitText(s, width)
	if len(out) == 0 {
		return []string{""}
	}
	return out
}
