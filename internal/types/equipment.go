package types

import (
	"fmt"
	"time"
)

type EquipmentKind string

const (
	KindOven      EquipmentKind = "oven"
	KindAutoclave EquipmentKind = "autoclave"
	KindReactor   EquipmentKind = "reactor"
	KindOther     EquipmentKind = "other"
)

func ParseEquipmentKind(s string) (EquipmentKind, error) {
	switch k := EquipmentKind(s); k {
	case KindOven, KindAutoclave, KindReactor, KindOther:
		return k, nil
	}
	return "", fmt.Errorf("unknown equipment kind %q: %w", s, ErrValidation)
}

// IconCatalogue lists the icons offered per equipment kind. The first entry is the default.
var IconCatalogue = map[EquipmentKind][]string{
	KindOven:      {"🌡️", "🔥", "♨️"},
	KindAutoclave: {"⚗️", "🧪", "🔬"},
	KindReactor:   {"🏭", "⚙️"},
	KindOther:     {"📦", "🔧"},
}

type EquipmentStatus string

const (
	StatusFree            EquipmentStatus = "free"
	StatusInUse           EquipmentStatus = "in_use"
	StatusAwaitingQuality EquipmentStatus = "awaiting_quality"
	StatusMaintenance     EquipmentStatus = "maintenance"
	StatusCleaning        EquipmentStatus = "cleaning"
	StatusOffline         EquipmentStatus = "offline"
)

// AllStatuses in display order.
var AllStatuses = []EquipmentStatus{
	StatusFree, StatusInUse, StatusAwaitingQuality, StatusMaintenance, StatusCleaning, StatusOffline,
}

// Color returns the presentation colour hint for a status.
func (s EquipmentStatus) Color() string {
	switch s {
	case StatusFree:
		return "success"
	case StatusInUse:
		return "danger"
	case StatusAwaitingQuality:
		return "primary"
	case StatusMaintenance:
		return "warning"
	case StatusCleaning:
		return "info"
	default:
		return "secondary"
	}
}

type ProcessInfo struct {
	Product     string `json:"product" yaml:"product"`
	WorkOrder   string `json:"work_order" yaml:"work_order"`
	Duration    string `json:"duration" yaml:"duration"`
	LoadedAt    string `json:"loaded_at" yaml:"loaded_at"`
	Responsible string `json:"responsible" yaml:"responsible"`
	StartedOn   string `json:"started_on" yaml:"started_on"` // YYYY-MM-DD
}

type MaintenanceInfo struct {
	Reason        string    `json:"reason"`
	PlannedReturn string    `json:"planned_return"`
	Responsible   string    `json:"responsible"`
	StartedAt     time.Time `json:"started_at"`
}

type CleaningInfo struct {
	PlannedReturn string    `json:"planned_return"`
	Responsible   string    `json:"responsible"`
	StartedAt     time.Time `json:"started_at"`
}

type Equipment struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Kind        EquipmentKind    `json:"kind"`
	Icon        string           `json:"icon"`
	Status      EquipmentStatus  `json:"status"`
	Active      bool             `json:"active"`
	SensorID    *int64           `json:"sensor_id,omitempty"`
	Location    string           `json:"location"`
	Description string           `json:"description"`
	Process     *ProcessInfo     `json:"process,omitempty"`
	Maintenance *MaintenanceInfo `json:"maintenance,omitempty"`
	Cleaning    *CleaningInfo    `json:"cleaning,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Clone returns a deep copy so callers never share sub-records with the store.
func (e *Equipment) Clone() *Equipment {
	if e == nil {
		return nil
	}
	c := *e
	if e.SensorID != nil {
		id := *e.SensorID
		c.SensorID = &id
	}
	if e.Process != nil {
		p := *e.Process
		c.Process = &p
	}
	if e.Maintenance != nil {
		m := *e.Maintenance
		c.Maintenance = &m
	}
	if e.Cleaning != nil {
		cl := *e.Cleaning
		c.Cleaning = &cl
	}
	return &c
}

// CheckOccupancy verifies that exactly the sub-record matching Status is set.
func (e *Equipment) CheckOccupancy() error {
	set := 0
	for _, present := range []bool{e.Process != nil, e.Maintenance != nil, e.Cleaning != nil} {
		if present {
			set++
		}
	}
	if set > 1 {
		return fmt.Errorf("equipment %d has %d occupancy records", e.ID, set)
	}

	switch e.Status {
	case StatusInUse:
		if e.Process == nil {
			return fmt.Errorf("equipment %d is in use without a process", e.ID)
		}
	case StatusMaintenance:
		if e.Maintenance == nil {
			return fmt.Errorf("equipment %d is in maintenance without a record", e.ID)
		}
	case StatusCleaning:
		if e.Cleaning == nil {
			return fmt.Errorf("equipment %d is cleaning without a record", e.ID)
		}
	default:
		if set != 0 {
			return fmt.Errorf("equipment %d is %s but has an occupancy record", e.ID, e.Status)
		}
	}
	return nil
}
