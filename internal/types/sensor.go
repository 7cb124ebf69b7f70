package types

import "time"

type CommKind string

const (
	CommNetwork   CommKind = "network"
	CommUSBSerial CommKind = "usb_serial"
	CommI2C       CommKind = "i2c"
	CommSerial    CommKind = "serial"
	CommRS232     CommKind = "rs232"
	CommModbus    CommKind = "modbus"
)

type NetworkConfig struct {
	IP      string `json:"ip"`
	Port    int    `json:"port"`
	Channel int    `json:"channel"`
}

type SerialConfig struct {
	Port     string `json:"port"`
	BaudRate int    `json:"baud_rate"`
}

type I2CConfig struct {
	Bus     int `json:"bus"`
	Address int `json:"address"`
}

type RS232Config struct {
	Port     string `json:"port"`
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

type ModbusConfig struct {
	IP       string `json:"ip"`
	Port     int    `json:"port"`
	UnitID   int    `json:"unit_id"`
	Register int    `json:"register"`
}

// SensorConfig is a variant: only the member matching the sensor's CommKind is set.
// Serial and USB serial share the SerialConfig shape.
type SensorConfig struct {
	Network   *NetworkConfig `json:"network,omitempty"`
	USBSerial *SerialConfig  `json:"usb_serial,omitempty"`
	I2C       *I2CConfig     `json:"i2c,omitempty"`
	Serial    *SerialConfig  `json:"serial,omitempty"`
	RS232     *RS232Config   `json:"rs232,omitempty"`
	Modbus    *ModbusConfig  `json:"modbus,omitempty"`
}

func (c SensorConfig) IsEmpty() bool {
	return c.Network == nil && c.USBSerial == nil && c.I2C == nil &&
		c.Serial == nil && c.RS232 == nil && c.Modbus == nil
}

type TestStatus string

const (
	TestOK     TestStatus = "ok"
	TestFailed TestStatus = "failed"
)

type TestResult struct {
	Status   TestStatus `json:"status"`
	Message  string     `json:"message"`
	Reading  *float64   `json:"reading,omitempty"`
	TestedAt time.Time  `json:"tested_at"`
}

type Sensor struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	Kind         CommKind     `json:"kind"`
	Config       SensorConfig `json:"config"`
	TempMin      float64      `json:"temp_min"`
	TempMax      float64      `json:"temp_max"`
	AlertEnabled bool         `json:"alert_enabled"`
	Active       bool         `json:"active"`
	LastTest     *TestResult  `json:"last_test,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (s *Sensor) Clone() *Sensor {
	if s == nil {
		return nil
	}
	c := *s
	cfg := s.Config
	if cfg.Network != nil {
		v := *cfg.Network
		cfg.Network = &v
	}
	if cfg.USBSerial != nil {
		v := *cfg.USBSerial
		cfg.USBSerial = &v
	}
	if cfg.I2C != nil {
		v := *cfg.I2C
		cfg.I2C = &v
	}
	if cfg.Serial != nil {
		v := *cfg.Serial
		cfg.Serial = &v
	}
	if cfg.RS232 != nil {
		v := *cfg.RS232
		cfg.RS232 = &v
	}
	if cfg.Modbus != nil {
		v := *cfg.Modbus
		cfg.Modbus = &v
	}
	c.Config = cfg
	if s.LastTest != nil {
		t := *s.LastTest
		if t.Reading != nil {
			r := *t.Reading
			t.Reading = &r
		}
		c.LastTest = &t
	}
	return &c
}
