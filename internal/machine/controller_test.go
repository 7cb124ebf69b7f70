package machine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/KevinKickass/EquipTrack/internal/api/websocket"
	"github.com/KevinKickass/EquipTrack/internal/history"
	"github.com/KevinKickass/EquipTrack/internal/storage"
	"github.com/KevinKickass/EquipTrack/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	operator    = &types.Actor{Username: "operador", DisplayName: "João Operador", Role: types.RoleOperator}
	maintenance = &types.Actor{Username: "manutencao", Role: types.RoleMaintenance}
	cleaning    = &types.Actor{Username: "higienizacao", Role: types.RoleCleaning}
	quality     = &types.Actor{Username: "qualidade", DisplayName: "Pedro Qualidade", Role: types.RoleQuality}
	it          = &types.Actor{Username: "ti", Role: types.RoleIT}
)

type recordingHub struct {
	mu   sync.Mutex
	msgs []websocket.Message
}

func (h *recordingHub) Broadcast(msg websocket.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msg)
}

func (h *recordingHub) kinds() []websocket.MessageType {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []websocket.MessageType
	for _, m := range h.msgs {
		out = append(out, m.Type)
	}
	return out
}

type fixture struct {
	ctrl  *Controller
	store *storage.MemoryStore
	hist  *history.Store
	hub   *recordingHub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewMemoryStore()
	hist := history.NewStore(store)
	hub := &recordingHub{}
	ctrl := NewController(store, hist, hub, zap.NewNop())
	ctrl.now = func() time.Time { return time.Date(2024, 10, 30, 14, 30, 0, 0, time.UTC) }
	return &fixture{ctrl: ctrl, store: store, hist: hist, hub: hub}
}

func (f *fixture) addEquipment(t *testing.T, name string, status types.EquipmentStatus) int64 {
	t.Helper()
	e := &types.Equipment{Name: name, Kind: types.KindOven, Status: status, Active: status != types.StatusOffline}
	switch status {
	case types.StatusInUse:
		e.Process = &types.ProcessInfo{Product: "Tomates", WorkOrder: "OP-001", Responsible: "João"}
	case types.StatusMaintenance:
		e.Maintenance = &types.MaintenanceInfo{Reason: "Belt"}
	case types.StatusCleaning:
		e.Cleaning = &types.CleaningInfo{}
	}
	require.NoError(t, f.store.Update(func(tx *storage.Tx) error {
		tx.PutEquipment(e)
		return nil
	}))
	return e.ID
}

func (f *fixture) equipment(t *testing.T, id int64) *types.Equipment {
	t.Helper()
	var e *types.Equipment
	require.NoError(t, f.store.View(func(tx *storage.Tx) error {
		var err error
		e, err = tx.Equipment(id)
		return err
	}))
	require.NoError(t, e.CheckOccupancy())
	return e
}

func (f *fixture) records(t *testing.T) []*types.ProcessRecord {
	t.Helper()
	recs, err := f.hist.List(context.Background(), history.Filter{})
	require.NoError(t, err)
	return recs
}

func TestProcessCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.addEquipment(t, "Oven-9", types.StatusFree)

	res, err := f.ctrl.ExecuteCommand(ctx, operator, id, CommandStartProcess, Params{Product: "X", WorkOrder: "OP-9"})
	require.NoError(t, err)
	assert.Equal(t, types.StatusFree, res.Previous)

	e := f.equipment(t, id)
	assert.Equal(t, types.StatusInUse, e.Status)
	require.NotNil(t, e.Process)
	assert.Equal(t, "X", e.Process.Product)
	assert.Equal(t, "OP-9", e.Process.WorkOrder)
	assert.Equal(t, "João Operador", e.Process.Responsible)
	assert.Equal(t, "2024-10-30", e.Process.StartedOn)

	res, err = f.ctrl.ExecuteCommand(ctx, operator, id, CommandFinishProcess, Params{})
	require.NoError(t, err)
	require.NotNil(t, res.Record)

	e = f.equipment(t, id)
	assert.Equal(t, types.StatusAwaitingQuality, e.Status)
	assert.Nil(t, e.Process)

	recs := f.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, types.QualityPending, recs[0].Quality)
	assert.Equal(t, "Oven-9", recs[0].EquipmentName)
	assert.Equal(t, "X", recs[0].Product)
	assert.Equal(t, "OP-9", recs[0].WorkOrder)
	assert.Equal(t, types.RecordProcess, recs[0].Kind)

	_, err = f.ctrl.ExecuteCommand(ctx, quality, id, CommandQualityDisposition, Params{Verdict: "approved"})
	require.NoError(t, err)

	e = f.equipment(t, id)
	assert.Equal(t, types.StatusFree, e.Status)
	recs = f.records(t)
	assert.Equal(t, types.QualityApproved, recs[0].Quality)
	assert.Equal(t, "Pedro Qualidade", recs[0].AnalyzedBy)
	require.NotNil(t, recs[0].AnalyzedAt)

	assert.Equal(t, []websocket.MessageType{
		websocket.MessageTypeEquipmentState,
		websocket.MessageTypeEquipmentState, websocket.MessageTypeProcessFinalized,
		websocket.MessageTypeEquipmentState, websocket.MessageTypeQualityDisposed,
	}, f.hub.kinds())
}

func TestRejectedVerdictStillFreesEquipment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.addEquipment(t, "Estufa 02", types.StatusInUse)

	_, err := f.ctrl.ExecuteCommand(ctx, operator, id, CommandFinishProcess, Params{})
	require.NoError(t, err)
	rec := f.records(t)[0]

	res, err := f.ctrl.Dispose(ctx, quality, rec.ID, "rejected")
	require.NoError(t, err)
	assert.Equal(t, types.StatusFree, res.Equipment.Status)
	assert.Equal(t, types.QualityRejected, res.Record.Quality)
	assert.Equal(t, types.StatusFree, f.equipment(t, id).Status)
}

func TestCleaningCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.addEquipment(t, "Autoclave 01", types.StatusFree)

	_, err := f.ctrl.ExecuteCommand(ctx, cleaning, id, CommandStartCleaning, Params{PlannedReturn: "2024-10-31"})
	require.NoError(t, err)
	e := f.equipment(t, id)
	assert.Equal(t, types.StatusCleaning, e.Status)
	require.NotNil(t, e.Cleaning)
	assert.Equal(t, "higienizacao", e.Cleaning.Responsible)

	_, err = f.ctrl.ExecuteCommand(ctx, cleaning, id, CommandFinishCleaning, Params{})
	require.NoError(t, err)
	e = f.equipment(t, id)
	assert.Equal(t, types.StatusAwaitingQuality, e.Status)
	assert.Nil(t, e.Cleaning)

	recs := f.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, types.CleaningProduct, recs[0].Product)
	assert.Equal(t, types.RecordCleaning, recs[0].Kind)
	assert.Equal(t, types.QualityPending, recs[0].Quality)
}

func TestMaintenanceCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.addEquipment(t, "Estufa 01", types.StatusFree)

	_, err := f.ctrl.ExecuteCommand(ctx, maintenance, id, CommandStartMaintenance, Params{})
	assert.ErrorIs(t, err, types.ErrValidation, "reason is required")

	_, err = f.ctrl.ExecuteCommand(ctx, maintenance, id, CommandStartMaintenance, Params{Reason: "Resistência queimada", PlannedReturn: "2024-11-02"})
	require.NoError(t, err)
	e := f.equipment(t, id)
	assert.Equal(t, types.StatusMaintenance, e.Status)
	require.NotNil(t, e.Maintenance)
	assert.Equal(t, "Resistência queimada", e.Maintenance.Reason)

	_, err = f.ctrl.ExecuteCommand(ctx, maintenance, id, CommandFinishMaintenance, Params{})
	require.NoError(t, err)
	e = f.equipment(t, id)
	assert.Equal(t, types.StatusFree, e.Status)
	assert.Nil(t, e.Maintenance)
	assert.Empty(t, f.records(t), "maintenance produces no history")
}

func TestQualityLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.addEquipment(t, "Estufa 02", types.StatusAwaitingQuality)

	for _, actor := range []*types.Actor{operator, maintenance, cleaning} {
		for cmd := range transitions {
			_, err := f.ctrl.ExecuteCommand(ctx, actor, id, cmd, Params{Verdict: "approved"})
			assert.ErrorIs(t, err, types.ErrForbidden, "%s/%s", actor.Role, cmd)
		}
		_, err := f.ctrl.View(ctx, actor, id)
		assert.ErrorIs(t, err, types.ErrForbidden)
	}
	assert.Equal(t, types.StatusAwaitingQuality, f.equipment(t, id).Status)
	assert.Empty(t, f.hub.kinds())

	_, err := f.ctrl.View(ctx, quality, id)
	assert.NoError(t, err)
	_, err = f.ctrl.View(ctx, it, id)
	assert.NoError(t, err)
}

func TestRoleChecks(t *testing.T) {
	tests := []struct {
		cmd     Command
		from    types.EquipmentStatus
		allowed *types.Actor
		denied  *types.Actor
		params  Params
	}{
		{CommandStartProcess, types.StatusFree, operator, maintenance, Params{Product: "X"}},
		{CommandFinishProcess, types.StatusInUse, operator, cleaning, Params{}},
		{CommandStartMaintenance, types.StatusFree, maintenance, operator, Params{Reason: "r"}},
		{CommandFinishMaintenance, types.StatusMaintenance, maintenance, cleaning, Params{}},
		{CommandStartCleaning, types.StatusFree, cleaning, quality, Params{}},
		{CommandFinishCleaning, types.StatusCleaning, cleaning, operator, Params{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.cmd), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			id := f.addEquipment(t, "E", tt.from)
			_, err := f.ctrl.ExecuteCommand(ctx, tt.denied, id, tt.cmd, tt.params)
			assert.ErrorIs(t, err, types.ErrForbidden)
			assert.Equal(t, tt.from, f.equipment(t, id).Status)

			_, err = f.ctrl.ExecuteCommand(ctx, tt.allowed, id, tt.cmd, tt.params)
			assert.NoError(t, err)

			id = f.addEquipment(t, "E2", tt.from)
			_, err = f.ctrl.ExecuteCommand(ctx, it, id, tt.cmd, tt.params)
			assert.NoError(t, err, "IT bypasses role checks")
		})
	}
}

func TestInvalidTransitionsAreRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	free := f.addEquipment(t, "Free", types.StatusFree)
	_, err := f.ctrl.ExecuteCommand(ctx, operator, free, CommandFinishProcess, Params{})
	assert.ErrorIs(t, err, types.ErrInvalidTransition)
	assert.ErrorIs(t, err, types.ErrConflict)

	busy := f.addEquipment(t, "Busy", types.StatusInUse)
	_, err = f.ctrl.ExecuteCommand(ctx, it, busy, CommandStartMaintenance, Params{Reason: "r"})
	assert.ErrorIs(t, err, types.ErrInvalidTransition)
	assert.Equal(t, types.StatusInUse, f.equipment(t, busy).Status)

	offline := f.addEquipment(t, "Off", types.StatusOffline)
	for cmd := range transitions {
		_, err := f.ctrl.ExecuteCommand(ctx, it, offline, cmd, Params{Product: "X", Reason: "r"})
		assert.ErrorIs(t, err, types.ErrInvalidTransition, string(cmd))
	}

	_, err = f.ctrl.ExecuteCommand(ctx, operator, 404, CommandStartProcess, Params{Product: "X"})
	assert.ErrorIs(t, err, types.ErrNotFound)

	assert.Empty(t, f.records(t))
}

func TestQualityDispositionErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.addEquipment(t, "A", types.StatusInUse)
	b := f.addEquipment(t, "B", types.StatusInUse)
	_, err := f.ctrl.ExecuteCommand(ctx, operator, a, CommandFinishProcess, Params{})
	require.NoError(t, err)
	_, err = f.ctrl.ExecuteCommand(ctx, operator, b, CommandFinishProcess, Params{})
	require.NoError(t, err)
	recs := f.records(t)
	require.Len(t, recs, 2)

	_, err = f.ctrl.ExecuteCommand(ctx, quality, a, CommandQualityDisposition, Params{RecordID: 99, Verdict: "approved"})
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = f.ctrl.ExecuteCommand(ctx, quality, a, CommandQualityDisposition, Params{RecordID: recs[1].ID, Verdict: "approved"})
	assert.ErrorIs(t, err, types.ErrConflict, "record of another equipment")

	_, err = f.ctrl.ExecuteCommand(ctx, quality, a, CommandQualityDisposition, Params{Verdict: "maybe"})
	assert.ErrorIs(t, err, types.ErrValidation)

	assert.Equal(t, types.StatusAwaitingQuality, f.equipment(t, a).Status)
	assert.Equal(t, types.QualityPending, f.records(t)[0].Quality)

	_, err = f.ctrl.Dispose(ctx, quality, 404, "approved")
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = f.ctrl.Dispose(ctx, quality, recs[0].ID, "approved")
	require.NoError(t, err)
	_, err = f.ctrl.Dispose(ctx, quality, recs[0].ID, "approved")
	assert.ErrorIs(t, err, types.ErrConflict, "second disposition")
}

func TestConcurrentFinishProducesOneRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.addEquipment(t, "Estufa 02", types.StatusInUse)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ctrl.ExecuteCommand(ctx, operator, id, CommandFinishProcess, Params{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, types.ErrForbidden, "later attempts hit the quality lock")
		}
	}
	assert.Equal(t, 1, ok)
	assert.Len(t, f.records(t), 1)
}

func TestParseCommandAndAvailable(t *testing.T) {
	c, err := ParseCommand("iniciar")
	require.NoError(t, err)
	assert.Equal(t, CommandStartProcess, c)

	c, err = ParseCommand("finish_cleaning")
	require.NoError(t, err)
	assert.Equal(t, CommandFinishCleaning, c)

	_, err = ParseCommand("explode")
	assert.ErrorIs(t, err, types.ErrValidation)

	assert.Equal(t, []Command{CommandStartProcess}, AvailableCommands(types.StatusFree, types.RoleOperator))
	assert.Equal(t, []Command{CommandStartProcess, CommandStartMaintenance, CommandStartCleaning},
		AvailableCommands(types.StatusFree, types.RoleIT))
	assert.Empty(t, AvailableCommands(types.StatusOffline, types.RoleIT))
}
