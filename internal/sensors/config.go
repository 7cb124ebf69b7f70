package sensors

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/KevinKickass/EquipTrack/internal/types"
)

// BuildConfig reads the parameters relevant for kind into the config variant.
// An unrecognised kind yields an empty config and no error.
func BuildConfig(kind types.CommKind, params map[string]string) (types.SensorConfig, error) {
	p := paramReader{params: params}
	var cfg types.SensorConfig

	switch kind {
	case types.CommNetwork:
		cfg.Network = &types.NetworkConfig{
			IP:      p.str("ip", ""),
			Port:    p.int("port", 80),
			Channel: p.int("channel", 1),
		}
	case types.CommUSBSerial:
		cfg.USBSerial = &types.SerialConfig{
			Port:     p.str("port", "/dev/ttyUSB0"),
			BaudRate: p.int("baud_rate", 9600),
		}
	case types.CommSerial:
		cfg.Serial = &types.SerialConfig{
			Port:     p.str("port", "/dev/ttyS0"),
			BaudRate: p.int("baud_rate", 9600),
		}
	case types.CommI2C:
		cfg.I2C = &types.I2CConfig{
			Bus:     p.int("bus", 1),
			Address: p.int("address", 0x48),
		}
	case types.CommRS232:
		cfg.RS232 = &types.RS232Config{
			Port:     p.str("port", "/dev/ttyS0"),
			BaudRate: p.int("baud_rate", 9600),
			DataBits: p.int("data_bits", 8),
			StopBits: p.int("stop_bits", 1),
			Parity:   strings.ToUpper(p.str("parity", "N")),
		}
	case types.CommModbus:
		cfg.Modbus = &types.ModbusConfig{
			IP:       p.str("ip", ""),
			Port:     p.int("port", 502),
			UnitID:   p.int("unit_id", 1),
			Register: p.int("register", 0),
		}
	default:
		return cfg, nil
	}

	if p.err != nil {
		return types.SensorConfig{}, p.err
	}
	return cfg, nil
}

// paramReader keeps the first conversion error so BuildConfig can read all fields in one go.
type paramReader struct {
	params map[string]string
	err    error
}

func (p *paramReader) str(key, def string) string {
	if v, ok := p.params[key]; ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (p *paramReader) int(key string, def int) int {
	raw := p.str(key, "")
	if raw == "" {
		return def
	}
	// base 0 accepts hex I2C addresses such as 0x48
	v, err := strconv.ParseInt(raw, 0, 64)
	if err != nil {
		if p.err == nil {
			p.err = fmt.Errorf("parameter %s=%q is not a number: %w", key, raw, types.ErrValidation)
		}
		return def
	}
	return int(v)
}
