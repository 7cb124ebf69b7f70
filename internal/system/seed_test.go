package system

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KevinKickass/EquipTrack/internal/auth"
	"github.com/KevinKickass/EquipTrack/internal/config"
	"github.com/KevinKickass/EquipTrack/internal/storage"
	"github.com/KevinKickass/EquipTrack/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSeedTarget() (*storage.MemoryStore, *auth.AuthService) {
	store := storage.NewMemoryStore()
	svc := auth.NewAuthService(store, config.AuthConfig{
		AccessTokenTTL:  time.Hour,
		Argon2MemoryKiB: 8 * 1024,
		Argon2Time:      1,
	}, zap.NewNop())
	return store, svc
}

func TestDefaultSeedApplies(t *testing.T) {
	seed, err := LoadSeed("")
	require.NoError(t, err)

	store, svc := newSeedTarget()
	now := time.Date(2024, 10, 30, 8, 0, 0, 0, time.UTC)
	require.NoError(t, seed.Apply(context.Background(), store, svc, now))

	snap := store.Snapshot()
	assert.Len(t, snap.Users, 5)
	assert.Len(t, snap.Groups, 2)
	assert.Len(t, snap.Sensors, 2)
	require.Len(t, snap.Equipment, 3)
	require.Len(t, snap.Reports, 1)

	oven := snap.Equipment[1]
	assert.Equal(t, "Estufa 02", oven.Name)
	assert.Equal(t, types.StatusInUse, oven.Status)
	require.NotNil(t, oven.Process)
	assert.Equal(t, "OP-001", oven.Process.WorkOrder)
	require.NotNil(t, oven.SensorID)
	assert.Equal(t, snap.Sensors[1].ID, *oven.SensorID)

	autoclave := snap.Equipment[2]
	assert.Equal(t, types.KindAutoclave, autoclave.Kind)
	assert.Nil(t, autoclave.SensorID)
	assert.Equal(t, now, autoclave.CreatedAt)

	assert.Equal(t, []types.Format{types.FormatExcel, types.FormatPDF}, snap.Reports[0].Formats)
}

func TestSeedRejectsUnknownSensorReference(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
equipment:
  - name: Estufa X
    kind: oven
    sensor: Nope
`), 0o600))

	seed, err := LoadSeed(path)
	require.NoError(t, err)

	store, svc := newSeedTarget()
	err = seed.Apply(context.Background(), store, svc, time.Now())
	require.ErrorIs(t, err, types.ErrNotFound)
	assert.Empty(t, store.Snapshot().Equipment)
}

func TestSeedRejectsInconsistentOccupancy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
equipment:
  - name: Estufa X
    kind: oven
    status: in_use
`), 0o600))

	seed, err := LoadSeed(path)
	require.NoError(t, err)

	store, svc := newSeedTarget()
	err = seed.Apply(context.Background(), store, svc, time.Now())
	require.ErrorIs(t, err, types.ErrValidation)
}
