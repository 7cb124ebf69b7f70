package reports

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/KevinKickass/EquipTrack/internal/types"
	"github.com/go-pdf/fpdf"
)

const (
	pdfFont        = "Helvetica"
	pdfLineHeight  = 4.5
	pdfCellPadding = 1.25
	pdfLogoHeight  = 12.0
)

// compressPDF is switched off by tests that read the content streams back.
var compressPDF = true

var (
	bandColor = [3]int{242, 242, 242}
	gridColor = [3]int{160, 160, 160}
)

// renderPDF writes a titled document with a generation metadata line and a
// grid table whose header band uses the layout colour.
func renderPDF(t *Table, layout *types.PDFLayout, meta renderMeta) ([]byte, error) {
	if layout == nil {
		layout = &types.PDFLayout{}
	}

	orientation := "P"
	if layout.Orientation == "landscape" || (layout.Orientation == "" && len(t.Labels) > 6) {
		orientation = "L"
	}

	pdf := fpdf.New(orientation, "mm", "A4", "")
	pdf.SetCompression(compressPDF)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(meta.Title, true)
	pdf.SetAuthor(meta.GeneratedBy, true)
	pdf.SetCreationDate(meta.GeneratedAt)

	if layout.Header != "" || layout.LogoPath != "" {
		pdf.SetHeaderFunc(func() {
			if layout.LogoPath != "" {
				if _, err := os.Stat(layout.LogoPath); err == nil {
					pdf.ImageOptions(layout.LogoPath, 10, 6, 0, pdfLogoHeight, false,
						fpdf.ImageOptions{ReadDpi: true}, 0, "")
				}
			}
			if layout.Header != "" {
				pdf.SetFont(pdfFont, "I", 9)
				pdf.SetTextColor(90, 90, 90)
				pdf.CellFormat(0, 8, tr(layout.Header), "", 1, "R", false, 0, "")
			}
			pdf.Ln(6)
		})
	}
	if layout.Footer != "" || layout.PageNumbers {
		pdf.AliasNbPages("")
		pdf.SetFooterFunc(func() {
			pdf.SetY(-15)
			pdf.SetFont(pdfFont, "I", 8)
			pdf.SetTextColor(90, 90, 90)
			if layout.Footer != "" {
				pdf.CellFormat(0, 10, tr(layout.Footer), "", 0, "L", false, 0, "")
			}
			if layout.PageNumbers {
				left, _, _, _ := pdf.GetMargins()
				pdf.SetX(left)
				pdf.CellFormat(0, 10, tr(fmt.Sprintf("Página %d/{nb}", pdf.PageNo())), "", 0, "R", false, 0, "")
			}
		})
	}

	pdf.AddPage()

	pdf.SetFont(pdfFont, "B", 16)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 10, tr(meta.Title), "", 1, "C", false, 0, "")

	pdf.SetFont(pdfFont, "", 9)
	pdf.SetTextColor(90, 90, 90)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Gerado por %s em %s",
		meta.GeneratedBy, meta.GeneratedAt.Format("02/01/2006 15:04:05"))), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pageWidth, pageHeight := pdf.GetPageSize()
	left, _, right, bottom := pdf.GetMargins()
	colWidth := (pageWidth - left - right) / float64(len(t.Labels))

	header := hexToRGB(layout.HeaderColor, defaultHeaderColor)
	drawHeader := func() {
		pdf.SetFont(pdfFont, "B", 9)
		pdf.SetFillColor(header[0], header[1], header[2])
		pdf.SetTextColor(255, 255, 255)
		pdf.SetDrawColor(gridColor[0], gridColor[1], gridColor[2])
		drawRow(pdf, wrapCells(pdf, translateAll(tr, t.Labels), colWidth), colWidth, true, "C")
	}
	drawHeader()

	pdf.SetFont(pdfFont, "", 8)
	for i, values := range t.Rows {
		cells := translateAll(tr, values)
		wrapped := wrapCells(pdf, cells, colWidth)
		if pdf.GetY()+rowHeight(wrapped) > pageHeight-bottom-15 {
			pdf.AddPage()
			drawHeader()
			pdf.SetFont(pdfFont, "", 8)
		}
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFillColor(bandColor[0], bandColor[1], bandColor[2])
		drawRow(pdf, wrapped, colWidth, i%2 == 1, "L")
	}

	if pdf.Err() {
		return nil, pdf.Error()
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func translateAll(tr func(string) string, values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = tr(v)
	}
	return out
}

func wrapCells(pdf *fpdf.Fpdf, cells []string, colWidth float64) [][][]byte {
	wrapped := make([][][]byte, len(cells))
	for i, c := range cells {
		wrapped[i] = pdf.SplitLines([]byte(c), colWidth)
	}
	return wrapped
}

// rowHeight is the height of the tallest cell once every value is wrapped to
// the column width. Values are never shortened.
func rowHeight(wrapped [][][]byte) float64 {
	lines := 1
	for _, w := range wrapped {
		lines = max(lines, len(w))
	}
	return float64(lines)*pdfLineHeight + 2*pdfCellPadding
}

// drawRow draws one grid row: a bordered box per column sized to the tallest
// cell, with the wrapped lines stacked inside.
func drawRow(pdf *fpdf.Fpdf, wrapped [][][]byte, colWidth float64, fill bool, align string) {
	h := rowHeight(wrapped)
	x, y := pdf.GetXY()
	style := "D"
	if fill {
		style = "FD"
	}
	for i, lines := range wrapped {
		cx := x + float64(i)*colWidth
		pdf.Rect(cx, y, colWidth, h, style)
		for j, line := range lines {
			pdf.SetXY(cx, y+pdfCellPadding+float64(j)*pdfLineHeight)
			pdf.CellFormat(colWidth, pdfLineHeight, string(line), "", 0, align, false, 0, "")
		}
	}
	pdf.SetXY(x, y+h)
}

func hexToRGB(c, fallback string) [3]int {
	if c == "" {
		c = fallback
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(c, "#"), 16, 32)
	if err != nil {
		v, _ = strconv.ParseUint(strings.TrimPrefix(fallback, "#"), 16, 32)
	}
	return [3]int{int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)}
}
