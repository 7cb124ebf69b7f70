package reports

import (
	"fmt"
	"strings"

	"github.com/KevinKickass/EquipTrack/internal/types"
	"github.com/xuri/excelize/v2"
)

const (
	sheetName              = "Relatório"
	defaultHeaderColor     = "#4472C4"
	defaultHeaderFontColor = "#FFFFFF"
	excelColumnWidth       = 22
)

// renderExcel writes a single-sheet workbook: optional layout rows, then the
// header row of labels, then one row per record.
func renderExcel(t *Table, layout *types.ExcelLayout, meta renderMeta) ([]byte, error) {
	if layout == nil {
		layout = &types.ExcelLayout{}
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	lastCol, err := excelize.ColumnNumberToName(len(t.Labels))
	if err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheetName, "A", lastCol, excelColumnWidth); err != nil {
		return nil, err
	}

	row := 1
	var banner []string
	if layout.Title != "" {
		banner = append(banner, layout.Title)
	}
	if layout.Subtitle != "" {
		banner = append(banner, layout.Subtitle)
	}
	if layout.ShowGeneratedAt {
		banner = append(banner, fmt.Sprintf("Gerado por %s em %s",
			meta.GeneratedBy, meta.GeneratedAt.Format("02/01/2006 15:04:05")))
	}
	if len(banner) > 0 {
		titleStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
		if err != nil {
			return nil, err
		}
		for i, text := range banner {
			cell := fmt.Sprintf("A%d", row)
			if err := f.SetCellValue(sheetName, cell, text); err != nil {
				return nil, err
			}
			if err := f.MergeCell(sheetName, cell, fmt.Sprintf("%s%d", lastCol, row)); err != nil {
				return nil, err
			}
			if i == 0 && layout.Title != "" {
				if err := f.SetCellStyle(sheetName, cell, cell, titleStyle); err != nil {
					return nil, err
				}
			}
			row++
		}
		row++
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: excelColor(layout.HeaderFontColor, defaultHeaderFontColor)},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{excelColor(layout.HeaderColor, defaultHeaderColor)},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    gridBorder(),
	})
	if err != nil {
		return nil, err
	}
	bodyStyle, err := f.NewStyle(&excelize.Style{Border: gridBorder()})
	if err != nil {
		return nil, err
	}

	headerRow := row
	if err := writeRow(f, row, t.Labels); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("%s%d", lastCol, row), headerStyle); err != nil {
		return nil, err
	}
	row++

	for _, values := range t.Rows {
		if err := writeRow(f, row, values); err != nil {
			return nil, err
		}
		row++
	}
	if row > headerRow+1 {
		if err := f.SetCellStyle(sheetName, fmt.Sprintf("A%d", headerRow+1), fmt.Sprintf("%s%d", lastCol, row-1), bodyStyle); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return f.SetSheetRow(sheetName, cell, &cells)
}

func gridBorder() []excelize.Border {
	var out []excelize.Border
	for _, side := range []string{"left", "top", "right", "bottom"} {
		out = append(out, excelize.Border{Type: side, Color: "000000", Style: 1})
	}
	return out
}

// excelColor returns an RRGGBB value for excelize.
func excelColor(c, fallback string) string {
	if c == "" {
		c = fallback
	}
	return strings.ToUpper(strings.TrimPrefix(c, "#"))
}
