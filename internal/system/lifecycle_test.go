package system

import (
	"context"
	"testing"
	"time"

	"github.com/KevinKickass/EquipTrack/internal/config"
	"github.com/KevinKickass/EquipTrack/internal/sensors"
	"github.com/KevinKickass/EquipTrack/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Auth.Argon2MemoryKiB = 8 * 1024
	cfg.Auth.Argon2Time = 1
	cfg.Server.ShutdownTimeout = time.Second
	return cfg
}

func TestNewLifecycleManagerSeedsMemoryStore(t *testing.T) {
	ctx := context.Background()
	lm, err := NewLifecycleManager(ctx, testConfig(t), zap.NewNop())
	require.NoError(t, err)

	status := lm.GetCurrentStatus()
	assert.Equal(t, StateInitializing.String(), status.State)
	assert.Equal(t, 3, status.EquipmentCount)
	assert.Equal(t, 2, status.ByStatus[types.StatusFree])
	assert.Equal(t, 1, status.ByStatus[types.StatusInUse])
	assert.Equal(t, 0, status.PendingQuality)
	assert.Equal(t, "memory", status.Persistence)

	session, err := lm.Auth().Authenticate(ctx, "operador", "123")
	require.NoError(t, err)
	assert.Equal(t, types.RoleOperator, session.Actor.Role)

	reports := lm.ReportCatalog().ListReports(ctx)
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Active)

	require.NoError(t, lm.Shutdown(ctx))
	assert.Equal(t, StateStopped, lm.State())
	// second call is a no-op
	require.NoError(t, lm.Shutdown(ctx))
}

func TestNewLifecycleManagerWithoutSeed(t *testing.T) {
	cfg := testConfig(t)
	cfg.Seed.Enabled = false

	lm, err := NewLifecycleManager(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Zero(t, lm.GetCurrentStatus().EquipmentCount)
	assert.Empty(t, lm.Auth().ListUsers(context.Background()))
}

func TestNewLifecycleManagerMissingSeedFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Seed.Path = "does-not-exist.yaml"

	_, err := NewLifecycleManager(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Seed.Enabled = false
	cfg.Server.HTTPPort = 0
	cfg.Server.GRPCPort = 0

	lm, err := NewLifecycleManager(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- lm.Run(ctx) }()

	require.Eventually(t, func() bool { return lm.State() == StateRunning }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, StateStopped, lm.State())
}

func TestNewProberSelectsDriver(t *testing.T) {
	cfg := testConfig(t)
	assert.IsType(t, &sensors.Simulated{}, newProber(cfg.Sensors))

	cfg.Sensors.Driver = "modbus"
	router, ok := newProber(cfg.Sensors).(*sensors.Router)
	require.True(t, ok)
	assert.IsType(t, &sensors.ModbusProber{}, router.ByKind[types.CommNetwork])
	assert.IsType(t, &sensors.ModbusProber{}, router.ByKind[types.CommModbus])
	assert.IsType(t, &sensors.Simulated{}, router.Default)
}
