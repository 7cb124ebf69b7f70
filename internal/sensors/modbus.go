package sensors

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/KevinKickass/EquipTrack/internal/modbus"
	"github.com/KevinKickass/EquipTrack/internal/types"
)

// ModbusProber reads one holding register over Modbus TCP and scales it.
// Network sensors are read as unit 1, register = channel-1.
type ModbusProber struct {
	Timeout time.Duration
	Scale   float64
}

func (m *ModbusProber) Probe(ctx context.Context, s *types.Sensor) (float64, error) {
	host, port, unit, register, err := modbusTarget(s)
	if err != nil {
		return 0, err
	}

	client := modbus.NewClient(net.JoinHostPort(host, strconv.Itoa(port)), m.Timeout)
	if err := client.Connect(ctx); err != nil {
		return 0, err
	}
	defer client.Close()

	regs, err := client.ReadHoldingRegisters(ctx, unit, register, 1)
	if err != nil {
		return 0, err
	}

	scale := m.Scale
	if scale == 0 {
		scale = 1
	}
	// signed 16 bit, e.g. 253 with scale 0.1 is 25.3 °C
	return float64(int16(regs[0])) * scale, nil
}

func modbusTarget(s *types.Sensor) (host string, port int, unit uint8, register uint16, err error) {
	switch {
	case s.Config.Modbus != nil:
		c := s.Config.Modbus
		return c.IP, c.Port, uint8(c.UnitID), uint16(c.Register), requireHost(c.IP)
	case s.Config.Network != nil:
		c := s.Config.Network
		reg := c.Channel - 1
		if reg < 0 {
			reg = 0
		}
		return c.IP, c.Port, 1, uint16(reg), requireHost(c.IP)
	}
	return "", 0, 0, 0, fmt.Errorf("sensor %d has no network address: %w", s.ID, types.ErrValidation)
}

func requireHost(ip string) error {
	if ip == "" {
		return fmt.Errorf("sensor has no IP configured: %w", types.ErrValidation)
	}
	return nil
}
