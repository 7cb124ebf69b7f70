package history

import (
	"context"
	"testing"
	"time"

	"github.com/KevinKickass/EquipTrack/internal/storage"
	"github.com/KevinKickass/EquipTrack/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

func seed(t *testing.T, h *Store, mem *storage.MemoryStore, recs ...*types.ProcessRecord) {
	t.Helper()
	require.NoError(t, mem.Update(func(tx *storage.Tx) error {
		for _, r := range recs {
			h.Append(tx, r)
		}
		return nil
	}))
}

func TestList_DateRangeIsConjunctive(t *testing.T) {
	mem := storage.NewMemoryStore()
	h := NewStore(mem)
	seed(t, h, mem,
		&types.ProcessRecord{EquipmentID: 1, Product: "A", FinalizedAt: day("2024-01-01 08:00")},
		&types.ProcessRecord{EquipmentID: 2, Product: "B", FinalizedAt: day("2024-01-15 23:59")},
		&types.ProcessRecord{EquipmentID: 1, Product: "C", FinalizedAt: day("2024-02-01 00:00")},
	)
	ctx := context.Background()

	got, err := h.List(ctx, Filter{Start: "2024-01-01", End: "2024-01-31"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Product)
	assert.Equal(t, "B", got[1].Product)

	one := int64(1)
	got, err = h.List(ctx, Filter{Start: "2024-01-01", End: "2024-01-31", EquipmentID: &one})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Product)

	got, err = h.List(ctx, Filter{Start: "2024-01-15"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = h.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	_, err = h.List(ctx, Filter{Start: "01/02/2024"})
	assert.ErrorIs(t, err, types.ErrValidation)
	_, err = h.List(ctx, Filter{End: "2024-13-40"})
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestAppendAndDispose(t *testing.T) {
	mem := storage.NewMemoryStore()
	h := NewStore(mem)
	ctx := context.Background()

	seed(t, h, mem,
		&types.ProcessRecord{EquipmentID: 7, Product: "X", Quality: types.QualityApproved},
		&types.ProcessRecord{EquipmentID: 8, Product: "Y"},
	)

	r, err := h.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, types.QualityPending, r.Quality, "append always starts pending")
	assert.Len(t, h.Pending(ctx), 2)

	at := time.Date(2024, 10, 30, 15, 0, 0, 0, time.UTC)
	err = mem.Update(func(tx *storage.Tx) error {
		_, err := h.Dispose(tx, 1, 8, types.QualityApproved, "qualidade", at)
		return err
	})
	assert.ErrorIs(t, err, types.ErrConflict, "record of another equipment")

	require.NoError(t, mem.Update(func(tx *storage.Tx) error {
		pending, ok := h.PendingFor(tx, 7)
		require.True(t, ok)
		_, err := h.Dispose(tx, pending.ID, 7, types.QualityRejected, "qualidade", at)
		return err
	}))

	r, err = h.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, types.QualityRejected, r.Quality)
	assert.Equal(t, "qualidade", r.AnalyzedBy)
	require.NotNil(t, r.AnalyzedAt)
	assert.True(t, at.Equal(*r.AnalyzedAt))

	err = mem.Update(func(tx *storage.Tx) error {
		_, err := h.Dispose(tx, 1, 7, types.QualityApproved, "qualidade", at)
		return err
	})
	assert.ErrorIs(t, err, types.ErrConflict, "disposed exactly once")

	err = mem.Update(func(tx *storage.Tx) error {
		_, err := h.Dispose(tx, 99, 7, types.QualityApproved, "qualidade", at)
		return err
	})
	assert.ErrorIs(t, err, types.ErrNotFound)

	assert.Len(t, h.Pending(ctx), 1)
}
