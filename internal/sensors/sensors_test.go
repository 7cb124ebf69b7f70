package sensors

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/KevinKickass/EquipTrack/internal/api/websocket"
	"github.com/KevinKickass/EquipTrack/internal/storage"
	"github.com/KevinKickass/EquipTrack/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var itActor = &types.Actor{Username: "ti", Role: types.RoleIT}

type fixedProber struct {
	reading float64
	err     error
	calls   int
}

func (f *fixedProber) Probe(ctx context.Context, s *types.Sensor) (float64, error) {
	f.calls++
	return f.reading, f.err
}

type recordingHub struct{ msgs []websocket.Message }

func (h *recordingHub) Broadcast(msg websocket.Message) { h.msgs = append(h.msgs, msg) }

func newTestRegistry(t *testing.T, p Prober) (*Registry, *storage.MemoryStore, *recordingHub) {
	t.Helper()
	store := storage.NewMemoryStore()
	hub := &recordingHub{}
	return NewRegistry(store, p, hub, time.Second, zap.NewNop()), store, hub
}

func TestBuildConfig(t *testing.T) {
	tests := []struct {
		name   string
		kind   types.CommKind
		params map[string]string
		check  func(t *testing.T, c types.SensorConfig)
	}{
		{
			name:   "network",
			kind:   types.CommNetwork,
			params: map[string]string{"ip": "192.168.1.254", "port": "80", "channel": "2"},
			check: func(t *testing.T, c types.SensorConfig) {
				require.NotNil(t, c.Network)
				assert.Equal(t, types.NetworkConfig{IP: "192.168.1.254", Port: 80, Channel: 2}, *c.Network)
			},
		},
		{
			name:   "rs232 defaults",
			kind:   types.CommRS232,
			params: map[string]string{"port": "COM3", "parity": "e"},
			check: func(t *testing.T, c types.SensorConfig) {
				require.NotNil(t, c.RS232)
				assert.Equal(t, types.RS232Config{Port: "COM3", BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "E"}, *c.RS232)
			},
		},
		{
			name:   "i2c hex address",
			kind:   types.CommI2C,
			params: map[string]string{"address": "0x4A"},
			check: func(t *testing.T, c types.SensorConfig) {
				require.NotNil(t, c.I2C)
				assert.Equal(t, 0x4A, c.I2C.Address)
				assert.Equal(t, 1, c.I2C.Bus)
			},
		},
		{
			name:   "unknown kind yields empty config",
			kind:   "bluetooth",
			params: map[string]string{"ip": "10.0.0.1"},
			check: func(t *testing.T, c types.SensorConfig) {
				assert.True(t, c.IsEmpty())
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := BuildConfig(tt.kind, tt.params)
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}

	_, err := BuildConfig(types.CommModbus, map[string]string{"port": "five"})
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestSimulated(t *testing.T) {
	sim := NewSimulated(0.75, 20, 30, 42)
	ctx := context.Background()

	ok := 0
	const n = 2000
	for i := 0; i < n; i++ {
		v, err := sim.Probe(ctx, &types.Sensor{})
		if err != nil {
			assert.ErrorIs(t, err, ErrNoResponse)
			continue
		}
		ok++
		assert.GreaterOrEqual(t, v, 20.0)
		assert.LessOrEqual(t, v, 30.0)
	}
	assert.InDelta(t, 0.75, float64(ok)/n, 0.05)

	always := NewSimulated(1, 20, 30, 1)
	_, err := always.Probe(ctx, &types.Sensor{})
	assert.NoError(t, err)
	never := NewSimulated(0, 20, 30, 1)
	_, err = never.Probe(ctx, &types.Sensor{})
	assert.ErrorIs(t, err, ErrNoResponse)
}

func TestRouter(t *testing.T) {
	mb := &fixedProber{reading: 1}
	def := &fixedProber{reading: 2}
	r := &Router{ByKind: map[types.CommKind]Prober{types.CommModbus: mb}, Default: def}

	v, err := r.Probe(context.Background(), &types.Sensor{Kind: types.CommModbus})
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	v, err = r.Probe(context.Background(), &types.Sensor{Kind: types.CommI2C})
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)

	_, err = (&Router{}).Probe(context.Background(), &types.Sensor{Kind: types.CommI2C})
	assert.Error(t, err)
}

func TestRegistry_CreateUpdate(t *testing.T) {
	reg, _, _ := newTestRegistry(t, &fixedProber{})
	ctx := context.Background()

	s, err := reg.Create(ctx, itActor, Input{Name: "Sensor A", Kind: "network", Params: map[string]string{"ip": "10.0.0.5"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.ID)
	assert.True(t, s.Active)
	assert.Equal(t, 20.0, s.TempMin)
	assert.Equal(t, 80.0, s.TempMax)
	require.NotNil(t, s.Config.Network)

	s, err = reg.Update(ctx, itActor, s.ID, Input{Kind: "usb_serial", Params: map[string]string{"port": "/dev/ttyUSB1"}})
	require.NoError(t, err)
	assert.Nil(t, s.Config.Network)
	require.NotNil(t, s.Config.USBSerial)
	assert.Equal(t, "/dev/ttyUSB1", s.Config.USBSerial.Port)
	assert.Equal(t, "Sensor A", s.Name)

	lo := 90.0
	_, err = reg.Update(ctx, itActor, s.ID, Input{TempMin: &lo})
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = reg.Create(ctx, &types.Actor{Role: types.RoleOperator}, Input{Name: "x"})
	assert.ErrorIs(t, err, types.ErrForbidden)

	_, err = reg.Update(ctx, itActor, 99, Input{Name: "x"})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestRegistry_CreateCommitsBeforeReturning(t *testing.T) {
	reg, store, _ := newTestRegistry(t, &fixedProber{})
	commits := 0
	store.OnChange(func() { commits++ })

	s, err := reg.Create(context.Background(), itActor, Input{Name: "Sensor B", Kind: "modbus"})
	require.NoError(t, err)
	assert.Equal(t, 1, commits)

	require.NoError(t, store.View(func(tx *storage.Tx) error {
		stored, err := tx.Sensor(s.ID)
		require.NoError(t, err)
		assert.Equal(t, s, stored)
		return nil
	}))

	// rejected input never reaches the store
	lo := 90.0
	_, err = reg.Create(context.Background(), itActor, Input{Name: "Sensor C", Kind: "network", TempMin: &lo})
	assert.ErrorIs(t, err, types.ErrValidation)
	assert.Equal(t, 1, commits)
}

func TestRegistry_DeleteReferenced(t *testing.T) {
	reg, store, _ := newTestRegistry(t, &fixedProber{})
	ctx := context.Background()

	s, err := reg.Create(ctx, itActor, Input{Name: "S", Kind: "network"})
	require.NoError(t, err)

	require.NoError(t, store.Update(func(tx *storage.Tx) error {
		sid := s.ID
		tx.PutEquipment(&types.Equipment{Name: "Estufa 01", Status: types.StatusFree, SensorID: &sid})
		return nil
	}))

	assert.ErrorIs(t, reg.Delete(ctx, itActor, s.ID), types.ErrConflict)

	require.NoError(t, store.Update(func(tx *storage.Tx) error {
		e, err := tx.Equipment(1)
		if err != nil {
			return err
		}
		e.SensorID = nil
		tx.PutEquipment(e)
		return nil
	}))
	require.NoError(t, reg.Delete(ctx, itActor, s.ID))
	assert.ErrorIs(t, reg.Delete(ctx, itActor, s.ID), types.ErrNotFound)
}

func TestRegistry_TestCommunication(t *testing.T) {
	prober := &fixedProber{reading: 24.5}
	reg, _, hub := newTestRegistry(t, prober)
	ctx := context.Background()

	s, err := reg.Create(ctx, itActor, Input{Name: "S", Kind: "network"})
	require.NoError(t, err)

	res, err := reg.TestCommunication(ctx, &types.Actor{Role: types.RoleMaintenance}, s.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TestOK, res.Status)
	require.NotNil(t, res.Reading)
	assert.Equal(t, 24.5, *res.Reading)

	stored, err := reg.Get(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastTest)
	assert.Equal(t, types.TestOK, stored.LastTest.Status)
	require.Len(t, hub.msgs, 1)
	assert.Equal(t, websocket.MessageTypeSensorTested, hub.msgs[0].Type)

	prober.err = errors.New("timeout")
	res, err = reg.TestCommunication(ctx, itActor, s.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TestFailed, res.Status)
	assert.Nil(t, res.Reading)

	inactive := false
	_, err = reg.Update(ctx, itActor, s.ID, Input{Active: &inactive})
	require.NoError(t, err)
	calls := prober.calls
	res, err = reg.TestCommunication(ctx, itActor, s.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TestFailed, res.Status)
	assert.Equal(t, calls, prober.calls, "inactive sensors are not probed")

	_, err = reg.TestCommunication(ctx, &types.Actor{Role: types.RoleOperator}, s.ID)
	assert.ErrorIs(t, err, types.ErrForbidden)
	_, err = reg.TestCommunication(ctx, itActor, 404)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestModbusProber(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		req := make([]byte, 12)
		if _, err := io.ReadFull(conn, req); err != nil {
			return
		}
		// register value 253 -> 25.3 with scale 0.1
		resp := []byte{req[0], req[1], 0, 0, 0, 5, req[6], req[7], 2, 0x00, 0xFD}
		conn.Write(resp)
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	p := &ModbusProber{Timeout: time.Second, Scale: 0.1}
	v, err := p.Probe(context.Background(), &types.Sensor{
		Kind:   types.CommModbus,
		Config: types.SensorConfig{Modbus: &types.ModbusConfig{IP: host, Port: port, UnitID: 1}},
	})
	require.NoError(t, err)
	assert.InDelta(t, 25.3, v, 1e-9)

	_, err = p.Probe(context.Background(), &types.Sensor{Kind: types.CommI2C, Config: types.SensorConfig{I2C: &types.I2CConfig{}}})
	assert.ErrorIs(t, err, types.ErrValidation)
}
