package websocket

import (
	"time"

	"github.com/KevinKickass/EquipTrack/internal/types"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MessageTypeEquipmentState   MessageType = "equipment_state"
	MessageTypeProcessFinalized MessageType = "process_finalized"
	MessageTypeQualityDisposed  MessageType = "quality_disposed"
	MessageTypeSensorTested     MessageType = "sensor_tested"

	MessageTypeAuthSuccess MessageType = "auth_success"
	MessageTypeAuthFailed  MessageType = "auth_failed"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

type EquipmentStateData struct {
	EquipmentID int64                 `json:"equipment_id"`
	Name        string                `json:"name"`
	State       types.EquipmentStatus `json:"state"`
	Previous    types.EquipmentStatus `json:"previous_state"`
	Color       string                `json:"color"`
	Action      string                `json:"action"`
	Actor       string                `json:"actor"`
}

type SensorTestData struct {
	SensorID int64            `json:"sensor_id"`
	Result   types.TestResult `json:"result"`
}

func NewMessage(msgType MessageType, data interface{}) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

func NewEquipmentStateMessage(e *types.Equipment, previous types.EquipmentStatus, action, actor string) Message {
	return NewMessage(MessageTypeEquipmentState, EquipmentStateData{
		EquipmentID: e.ID,
		Name:        e.Name,
		State:       e.Status,
		Previous:    previous,
		Color:       e.Status.Color(),
		Action:      action,
		Actor:       actor,
	})
}

func NewProcessFinalizedMessage(r *types.ProcessRecord) Message {
	return NewMessage(MessageTypeProcessFinalized, r)
}

func NewQualityDisposedMessage(r *types.ProcessRecord) Message {
	return NewMessage(MessageTypeQualityDisposed, r)
}

func NewSensorTestedMessage(sensorID int64, result types.TestResult) Message {
	return NewMessage(MessageTypeSensorTested, SensorTestData{SensorID: sensorID, Result: result})
}
