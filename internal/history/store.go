// Package history is the append-only log of finalized process and cleaning
// runs. Records are created pending and disposed exactly once.
package history

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/KevinKickass/EquipTrack/internal/storage"
	"github.com/KevinKickass/EquipTrack/internal/types"
)

const dateLayout = "2006-01-02"

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Filter is conjunctive; zero fields do not filter.
// Start and End are inclusive YYYY-MM-DD bounds compared against the date
// part of FinalizedAt.
type Filter struct {
	Start       string
	End         string
	EquipmentID *int64
	Quality     types.QualityStatus
	Kind        types.RecordKind
}

// Validate rejects malformed date bounds.
func (f Filter) Validate() error {
	for _, d := range []string{f.Start, f.End} {
		if d == "" {
			continue
		}
		if !datePattern.MatchString(d) {
			return fmt.Errorf("date %q is not YYYY-MM-DD: %w", d, types.ErrValidation)
		}
		if _, err := time.Parse(dateLayout, d); err != nil {
			return fmt.Errorf("date %q: %w", d, types.ErrValidation)
		}
	}
	return nil
}

func (f Filter) Match(r *types.ProcessRecord) bool {
	day := r.FinalizedAt.Format(dateLayout)
	if f.Start != "" && day < f.Start {
		return false
	}
	if f.End != "" && day > f.End {
		return false
	}
	if f.EquipmentID != nil && r.EquipmentID != *f.EquipmentID {
		return false
	}
	if f.Quality != "" && r.Quality != f.Quality {
		return false
	}
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	return true
}

type Store struct {
	store *storage.MemoryStore
}

func NewStore(store *storage.MemoryStore) *Store {
	return &Store{store: store}
}

// Append records a finalized run inside tx. The record always starts pending.
func (s *Store) Append(tx *storage.Tx, r *types.ProcessRecord) *types.ProcessRecord {
	r.Quality = types.QualityPending
	r.AnalyzedAt = nil
	r.AnalyzedBy = ""
	return tx.AppendRecord(r)
}

// Dispose stamps the verdict on a pending record belonging to equipmentID.
func (s *Store) Dispose(tx *storage.Tx, recordID, equipmentID int64, verdict types.QualityStatus, by string, at time.Time) (*types.ProcessRecord, error) {
	r, err := tx.Record(recordID)
	if err != nil {
		return nil, err
	}
	if r.EquipmentID != equipmentID {
		return nil, fmt.Errorf("record %d belongs to equipment %d, not %d: %w",
			recordID, r.EquipmentID, equipmentID, types.ErrConflict)
	}
	if r.Quality != types.QualityPending {
		return nil, fmt.Errorf("record %d already %s: %w", recordID, r.Quality, types.ErrConflict)
	}

	r.Quality = verdict
	r.AnalyzedAt = &at
	r.AnalyzedBy = by
	if err := tx.ReplaceRecord(r); err != nil {
		return nil, err
	}
	return r, nil
}

// PendingFor returns the oldest pending record of an equipment.
func (s *Store) PendingFor(tx *storage.Tx, equipmentID int64) (*types.ProcessRecord, bool) {
	for _, r := range tx.ListRecords() {
		if r.EquipmentID == equipmentID && r.Quality == types.QualityPending {
			return r, true
		}
	}
	return nil, false
}

func (s *Store) Get(ctx context.Context, id int64) (*types.ProcessRecord, error) {
	var r *types.ProcessRecord
	err := s.store.View(func(tx *storage.Tx) error {
		var err error
		r, err = tx.Record(id)
		return err
	})
	return r, err
}

// List returns matching records in finalization order.
func (s *Store) List(ctx context.Context, f Filter) ([]*types.ProcessRecord, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	var out []*types.ProcessRecord
	_ = s.store.View(func(tx *storage.Tx) error {
		for _, r := range tx.ListRecords() {
			if f.Match(r) {
				out = append(out, r)
			}
		}
		return nil
	})
	return out, nil
}

// Pending lists the records waiting for a quality verdict.
func (s *Store) Pending(ctx context.Context) []*types.ProcessRecord {
	out, _ := s.List(ctx, Filter{Quality: types.QualityPending})
	return out
}
