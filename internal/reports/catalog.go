// Package reports turns process history into exportable documents. The
// Catalog owns report definitions and layouts; the Engine filters, projects
// and renders them.
package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/KevinKickass/EquipTrack/internal/auth"
	"github.com/KevinKickass/EquipTrack/internal/storage"
	"github.com/KevinKickass/EquipTrack/internal/types"
	"go.uber.org/zap"
)

// DefinitionInput replaces every field of a definition except Active, which is kept when nil.
type DefinitionInput struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	RecordKind    string   `json:"record_kind"`
	Fields        []string `json:"fields"`
	Filters       []string `json:"filters"`
	Formats       []string `json:"formats"`
	ExcelLayoutID *int64   `json:"excel_layout_id"`
	PDFLayoutID   *int64   `json:"pdf_layout_id"`
	Active        *bool    `json:"active"`
}

type LayoutInput struct {
	Name   string          `json:"name"`
	Format string          `json:"format"`
	Config json.RawMessage `json:"config"`
}

type Catalog struct {
	store     *storage.MemoryStore
	validator *LayoutValidator
	logger    *zap.Logger
	now       func() time.Time
}

func NewCatalog(store *storage.MemoryStore, logger *zap.Logger) (*Catalog, error) {
	v, err := NewLayoutValidator()
	if err != nil {
		return nil, err
	}
	return &Catalog{store: store, validator: v, logger: logger, now: time.Now}, nil
}

// ---- report definitions ----

func (c *Catalog) CreateReport(ctx context.Context, actor *types.Actor, in DefinitionInput) (*types.ReportDefinition, error) {
	if err := auth.Require(actor); err != nil {
		return nil, err
	}

	now := c.now()
	d := &types.ReportDefinition{Active: true, CreatedAt: now}
	err := c.store.Update(func(tx *storage.Tx) error {
		if err := applyDefinition(tx, d, in, now); err != nil {
			return err
		}
		tx.PutReport(d)
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("report definition created",
		zap.Int64("report_id", d.ID),
		zap.String("name", d.Name),
		zap.String("by", actor.Username))
	return d.Clone(), nil
}

func (c *Catalog) UpdateReport(ctx context.Context, actor *types.Actor, id int64, in DefinitionInput) (*types.ReportDefinition, error) {
	if err := auth.Require(actor); err != nil {
		return nil, err
	}

	var d *types.ReportDefinition
	err := c.store.Update(func(tx *storage.Tx) error {
		var err error
		if d, err = tx.Report(id); err != nil {
			return err
		}
		if err := applyDefinition(tx, d, in, c.now()); err != nil {
			return err
		}
		tx.PutReport(d)
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("report definition updated", zap.Int64("report_id", id), zap.String("by", actor.Username))
	return d.Clone(), nil
}

func (c *Catalog) DeleteReport(ctx context.Context, actor *types.Actor, id int64) error {
	if err := auth.Require(actor); err != nil {
		return err
	}
	err := c.store.Update(func(tx *storage.Tx) error {
		return tx.DeleteReport(id)
	})
	if err != nil {
		return err
	}
	c.logger.Info("report definition deleted", zap.Int64("report_id", id), zap.String("by", actor.Username))
	return nil
}

func (c *Catalog) GetReport(ctx context.Context, id int64) (*types.ReportDefinition, error) {
	var d *types.ReportDefinition
	err := c.store.View(func(tx *storage.Tx) error {
		var err error
		d, err = tx.Report(id)
		return err
	})
	return d, err
}

func (c *Catalog) ListReports(ctx context.Context) []*types.ReportDefinition {
	var out []*types.ReportDefinition
	_ = c.store.View(func(tx *storage.Tx) error {
		out = tx.ListReports()
		return nil
	})
	return out
}

func applyDefinition(tx *storage.Tx, d *types.ReportDefinition, in DefinitionInput, now time.Time) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return fmt.Errorf("report name is required: %w", types.ErrValidation)
	}
	if err := validateFields(in.Fields); err != nil {
		return err
	}
	for _, f := range in.Filters {
		if f != types.FilterDateRange && f != types.FilterEquipment {
			return fmt.Errorf("unknown filter %q: %w", f, types.ErrValidation)
		}
	}
	if len(in.Formats) == 0 {
		return fmt.Errorf("at least one format is required: %w", types.ErrValidation)
	}
	formats := make([]types.Format, 0, len(in.Formats))
	for _, s := range in.Formats {
		f, err := types.ParseFormat(s)
		if err != nil {
			return err
		}
		formats = append(formats, f)
	}
	if _, err := recordKindFilter(in.RecordKind); err != nil {
		return err
	}
	if err := checkLayoutRef(tx, in.ExcelLayoutID, types.FormatExcel); err != nil {
		return err
	}
	if err := checkLayoutRef(tx, in.PDFLayoutID, types.FormatPDF); err != nil {
		return err
	}

	d.Name = name
	d.Description = in.Description
	d.RecordKind = in.RecordKind
	if d.RecordKind == "" {
		d.RecordKind = RecordKindAll
	}
	d.Fields = append([]string(nil), in.Fields...)
	d.Filters = append([]string(nil), in.Filters...)
	d.Formats = formats
	d.ExcelLayoutID = in.ExcelLayoutID
	d.PDFLayoutID = in.PDFLayoutID
	if in.Active != nil {
		d.Active = *in.Active
	}
	d.UpdatedAt = now
	return nil
}

func checkLayoutRef(tx *storage.Tx, id *int64, want types.Format) error {
	if id == nil {
		return nil
	}
	l, err := tx.Layout(*id)
	if err != nil {
		return err
	}
	if l.Format != want {
		return fmt.Errorf("layout %d is a %s layout, not %s: %w", l.ID, l.Format, want, types.ErrValidation)
	}
	return nil
}

// ---- layouts ----

func (c *Catalog) CreateLayout(ctx context.Context, actor *types.Actor, in LayoutInput) (*types.Layout, error) {
	if err := auth.Require(actor); err != nil {
		return nil, err
	}

	now := c.now()
	l := &types.Layout{CreatedAt: now}
	if err := c.applyLayout(l, in, now); err != nil {
		return nil, err
	}
	_ = c.store.Update(func(tx *storage.Tx) error {
		tx.PutLayout(l)
		return nil
	})

	c.logger.Info("layout created",
		zap.Int64("layout_id", l.ID),
		zap.String("format", string(l.Format)),
		zap.String("by", actor.Username))
	return l.Clone(), nil
}

// UpdateLayout replaces a layout. Its format may only change while no definition references it.
func (c *Catalog) UpdateLayout(ctx context.Context, actor *types.Actor, id int64, in LayoutInput) (*types.Layout, error) {
	if err := auth.Require(actor); err != nil {
		return nil, err
	}

	var l *types.Layout
	err := c.store.Update(func(tx *storage.Tx) error {
		var err error
		if l, err = tx.Layout(id); err != nil {
			return err
		}
		previous := l.Format
		if err := c.applyLayout(l, in, c.now()); err != nil {
			return err
		}
		if l.Format != previous {
			if d := referencingReport(tx, id); d != nil {
				return fmt.Errorf("layout %d is used by report %q: %w", id, d.Name, types.ErrConflict)
			}
		}
		tx.PutLayout(l)
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("layout updated", zap.Int64("layout_id", id), zap.String("by", actor.Username))
	return l.Clone(), nil
}

func (c *Catalog) DeleteLayout(ctx context.Context, actor *types.Actor, id int64) error {
	if err := auth.Require(actor); err != nil {
		return err
	}
	err := c.store.Update(func(tx *storage.Tx) error {
		if _, err := tx.Layout(id); err != nil {
			return err
		}
		if d := referencingReport(tx, id); d != nil {
			return fmt.Errorf("layout %d is used by report %q: %w", id, d.Name, types.ErrConflict)
		}
		return tx.DeleteLayout(id)
	})
	if err != nil {
		return err
	}
	c.logger.Info("layout deleted", zap.Int64("layout_id", id), zap.String("by", actor.Username))
	return nil
}

func (c *Catalog) GetLayout(ctx context.Context, id int64) (*types.Layout, error) {
	var l *types.Layout
	err := c.store.View(func(tx *storage.Tx) error {
		var err error
		l, err = tx.Layout(id)
		return err
	})
	return l, err
}

func (c *Catalog) ListLayouts(ctx context.Context) []*types.Layout {
	var out []*types.Layout
	_ = c.store.View(func(tx *storage.Tx) error {
		out = tx.ListLayouts()
		return nil
	})
	return out
}

func (c *Catalog) applyLayout(l *types.Layout, in LayoutInput, now time.Time) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return fmt.Errorf("layout name is required: %w", types.ErrValidation)
	}
	format, err := types.ParseFormat(in.Format)
	if err != nil {
		return err
	}

	raw := []byte(in.Config)
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if err := c.validator.Validate(format, raw); err != nil {
		return err
	}

	l.Name = name
	l.Format = format
	l.Excel, l.PDF = nil, nil
	switch format {
	case types.FormatExcel:
		l.Excel = &types.ExcelLayout{}
		err = json.Unmarshal(raw, l.Excel)
	case types.FormatPDF:
		l.PDF = &types.PDFLayout{}
		err = json.Unmarshal(raw, l.PDF)
	}
	if err != nil {
		return fmt.Errorf("decode layout: %v: %w", err, types.ErrValidation)
	}
	l.UpdatedAt = now
	return nil
}

func referencingReport(tx *storage.Tx, layoutID int64) *types.ReportDefinition {
	for _, d := range tx.ListReports() {
		if d.References(layoutID) {
			return d
		}
	}
	return nil
}
