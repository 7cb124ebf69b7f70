package interfaces

import (
	"context"

	"github.com/KevinKickass/EquipTrack/internal/api/websocket"
	"github.com/KevinKickass/EquipTrack/internal/auth"
	"github.com/KevinKickass/EquipTrack/internal/config"
	"github.com/KevinKickass/EquipTrack/internal/equipment"
	"github.com/KevinKickass/EquipTrack/internal/history"
	"github.com/KevinKickass/EquipTrack/internal/machine"
	"github.com/KevinKickass/EquipTrack/internal/reports"
	"github.com/KevinKickass/EquipTrack/internal/sensors"
	"github.com/KevinKickass/EquipTrack/internal/types"
)

// SystemStatus represents the current system state
type SystemStatus struct {
	State            string                        `json:"state"`
	EquipmentCount   int                           `json:"equipment_count"`
	ByStatus         map[types.EquipmentStatus]int `json:"by_status"`
	PendingQuality   int                           `json:"pending_quality"`
	ConnectedClients int                           `json:"connected_clients"`
	Persistence      string                        `json:"persistence"`
}

// LifecycleManager is the view of the running system the API layer works against.
type LifecycleManager interface {
	Config() *config.Config
	Auth() *auth.AuthService
	Equipment() *equipment.Registry
	MachineController() *machine.Controller
	Sensors() *sensors.Registry
	History() *history.Store
	ReportCatalog() *reports.Catalog
	ReportEngine() *reports.Engine
	Hub() *websocket.Hub
	GetCurrentStatus() SystemStatus
	Shutdown(ctx context.Context) error
}
