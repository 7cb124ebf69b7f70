package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/KevinKickass/EquipTrack/internal/history"
	"github.com/KevinKickass/EquipTrack/internal/storage"
	"github.com/KevinKickass/EquipTrack/internal/types"
	"go.uber.org/zap"
)

// Record kinds a definition can target.
const (
	RecordKindAll      = "processes"
	RecordKindProcess  = "process"
	RecordKindCleaning = "cleaning"
)

func recordKindFilter(kind string) (types.RecordKind, error) {
	switch kind {
	case "", RecordKindAll:
		return "", nil
	case RecordKindProcess:
		return types.RecordProcess, nil
	case RecordKindCleaning:
		return types.RecordCleaning, nil
	}
	return "", fmt.Errorf("unknown record kind %q: %w", kind, types.ErrValidation)
}

// Filters narrow the history rows of a report. Zero values do not filter.
type Filters struct {
	Start       string `json:"start" form:"data_inicio"`
	End         string `json:"end" form:"data_fim"`
	EquipmentID *int64 `json:"equipment_id" form:"equipamento_id"`
}

type Document struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
	ArchiveKey  string
}

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypePDF  = "application/pdf"
)

// Archiver keeps a copy of generated documents.
type Archiver interface {
	Archive(ctx context.Context, doc *Document) (string, error)
}

type Engine struct {
	store    *storage.MemoryStore
	history  *history.Store
	archiver Archiver
	logger   *zap.Logger
	now      func() time.Time
}

// NewEngine creates a report engine. archiver may be nil.
func NewEngine(store *storage.MemoryStore, hist *history.Store, archiver Archiver, logger *zap.Logger) *Engine {
	return &Engine{
		store:    store,
		history:  hist,
		archiver: archiver,
		logger:   logger,
		now:      time.Now,
	}
}

// Generate renders one report definition over the filtered history.
func (e *Engine) Generate(ctx context.Context, reportID int64, format string, filters Filters, actor *types.Actor) (*Document, error) {
	if actor == nil {
		return nil, fmt.Errorf("no actor: %w", types.ErrUnauthorized)
	}

	var (
		def    *types.ReportDefinition
		layout *types.Layout
	)
	err := e.store.View(func(tx *storage.Tx) error {
		var err error
		if def, err = tx.Report(reportID); err != nil {
			return err
		}
		f, err := types.ParseFormat(format)
		if err != nil {
			return err
		}
		if !def.Supports(f) {
			return fmt.Errorf("report %q does not offer %s: %w", def.Name, f, types.ErrUnsupportedFormat)
		}
		ref := def.ExcelLayoutID
		if f == types.FormatPDF {
			ref = def.PDFLayoutID
		}
		if ref != nil {
			// A dangling reference renders with defaults.
			layout, _ = tx.Layout(*ref)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !def.Active {
		return nil, fmt.Errorf("report %q is inactive: %w", def.Name, types.ErrConflict)
	}

	kind, err := recordKindFilter(def.RecordKind)
	if err != nil {
		return nil, err
	}
	records, err := e.history.List(ctx, history.Filter{
		Start:       filters.Start,
		End:         filters.End,
		EquipmentID: filters.EquipmentID,
		Kind:        kind,
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("report %q: %w", def.Name, types.ErrNoData)
	}

	table, err := Project(def.Fields, records)
	if err != nil {
		return nil, err
	}

	meta := renderMeta{
		Title:       def.Name,
		GeneratedBy: actorName(actor),
		GeneratedAt: e.now(),
	}

	doc := &Document{Rows: len(table.Rows)}
	stamp := meta.GeneratedAt.Format("20060102_150405")
	switch types.Format(format) {
	case types.FormatExcel:
		var l *types.ExcelLayout
		if layout != nil {
			l = layout.Excel
		}
		doc.Data, err = renderExcel(table, l, meta)
		doc.Filename = fmt.Sprintf("%s_%s.xlsx", def.Name, stamp)
		doc.ContentType = contentTypeXLSX
	case types.FormatPDF:
		var l *types.PDFLayout
		if layout != nil {
			l = layout.PDF
		}
		doc.Data, err = renderPDF(table, l, meta)
		doc.Filename = fmt.Sprintf("%s_%s.pdf", def.Name, stamp)
		doc.ContentType = contentTypePDF
	}
	if err != nil {
		return nil, fmt.Errorf("render %s report: %w", format, err)
	}

	e.logger.Info("report generated",
		zap.Int64("report_id", def.ID),
		zap.String("format", format),
		zap.Int("rows", doc.Rows),
		zap.Int("bytes", len(doc.Data)),
		zap.String("by", actor.Username))

	if e.archiver != nil {
		key, err := e.archiver.Archive(ctx, doc)
		if err != nil {
			e.logger.Warn("failed to archive report", zap.String("filename", doc.Filename), zap.Error(err))
		} else {
			doc.ArchiveKey = key
		}
	}
	return doc, nil
}

type renderMeta struct {
	Title       string
	GeneratedBy string
	GeneratedAt time.Time
}

func actorName(a *types.Actor) string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Username
}
