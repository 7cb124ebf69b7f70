package types

import (
	"fmt"
	"time"
)

type Format string

const (
	FormatExcel Format = "excel"
	FormatPDF   Format = "pdf"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatExcel, FormatPDF:
		return f, nil
	}
	return "", fmt.Errorf("format %q: %w", s, ErrUnsupportedFormat)
}

// Filter descriptors a report definition may expose.
const (
	FilterDateRange = "date_range"
	FilterEquipment = "equipment"
)

type ReportDefinition struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	RecordKind    string    `json:"record_kind"`
	Fields        []string  `json:"fields"`
	Filters       []string  `json:"filters"`
	Formats       []Format  `json:"formats"`
	ExcelLayoutID *int64    `json:"excel_layout_id,omitempty"`
	PDFLayoutID   *int64    `json:"pdf_layout_id,omitempty"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (d *ReportDefinition) Supports(f Format) bool {
	for _, s := range d.Formats {
		if s == f {
			return true
		}
	}
	return false
}

// References reports whether the definition points at the given layout.
func (d *ReportDefinition) References(layoutID int64) bool {
	return (d.ExcelLayoutID != nil && *d.ExcelLayoutID == layoutID) ||
		(d.PDFLayoutID != nil && *d.PDFLayoutID == layoutID)
}

func (d *ReportDefinition) Clone() *ReportDefinition {
	if d == nil {
		return nil
	}
	c := *d
	c.Fields = append([]string(nil), d.Fields...)
	c.Filters = append([]string(nil), d.Filters...)
	c.Formats = append([]Format(nil), d.Formats...)
	if d.ExcelLayoutID != nil {
		id := *d.ExcelLayoutID
		c.ExcelLayoutID = &id
	}
	if d.PDFLayoutID != nil {
		id := *d.PDFLayoutID
		c.PDFLayoutID = &id
	}
	return &c
}

type ExcelLayout struct {
	Title           string `json:"title,omitempty"`
	Subtitle        string `json:"subtitle,omitempty"`
	HeaderColor     string `json:"header_color,omitempty"`
	HeaderFontColor string `json:"header_font_color,omitempty"`
	ShowGeneratedAt bool   `json:"show_generated_at,omitempty"`
}

type PDFLayout struct {
	Header      string `json:"header,omitempty"`
	Footer      string `json:"footer,omitempty"`
	LogoPath    string `json:"logo_path,omitempty"`
	PageNumbers bool   `json:"page_numbers,omitempty"`
	Orientation string `json:"orientation,omitempty"` // portrait | landscape
	HeaderColor string `json:"header_color,omitempty"`
}

type Layout struct {
	ID        int64        `json:"id"`
	Name      string       `json:"name"`
	Format    Format       `json:"format"`
	Excel     *ExcelLayout `json:"excel,omitempty"`
	PDF       *PDFLayout   `json:"pdf,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (l *Layout) Clone() *Layout {
	if l == nil {
		return nil
	}
	c := *l
	if l.Excel != nil {
		e := *l.Excel
		c.Excel = &e
	}
	if l.PDF != nil {
		p := *l.PDF
		c.PDF = &p
	}
	return &c
}
