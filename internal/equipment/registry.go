// Package equipment manages equipment master data. Status changes are owned
// by the lifecycle controller in internal/machine; the registry only touches
// status for the soft active/offline toggle.
package equipment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/KevinKickass/EquipTrack/internal/auth"
	"github.com/KevinKickass/EquipTrack/internal/storage"
	"github.com/KevinKickass/EquipTrack/internal/types"
	"go.uber.org/zap"
)

type CreateInput struct {
	Name        string `json:"name" form:"nome"`
	Kind        string `json:"kind" form:"tipo"`
	Icon        string `json:"icon" form:"icone"`
	Location    string `json:"location" form:"localizacao"`
	Description string `json:"description" form:"descricao"`
	SensorID    *int64 `json:"sensor_id" form:"sensor_id"`
}

// UpdateInput changes master data only. A SensorID pointing at 0 detaches the sensor.
type UpdateInput struct {
	Name        *string `json:"name"`
	Kind        *string `json:"kind"`
	Icon        *string `json:"icon"`
	Location    *string `json:"location"`
	Description *string `json:"description"`
	SensorID    *int64  `json:"sensor_id"`
}

type Registry struct {
	store  *storage.MemoryStore
	logger *zap.Logger
	now    func() time.Time
}

func NewRegistry(store *storage.MemoryStore, logger *zap.Logger) *Registry {
	return &Registry{store: store, logger: logger, now: time.Now}
}

func (r *Registry) Create(ctx context.Context, actor *types.Actor, in CreateInput) (*types.Equipment, error) {
	if err := auth.Require(actor); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("equipment name is required: %w", types.ErrValidation)
	}
	kind, err := types.ParseEquipmentKind(in.Kind)
	if err != nil {
		return nil, err
	}

	now := r.now()
	e := &types.Equipment{
		Name:        name,
		Kind:        kind,
		Icon:        iconFor(kind, in.Icon),
		Status:      types.StatusFree,
		Active:      true,
		Location:    in.Location,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = r.store.Update(func(tx *storage.Tx) error {
		if in.SensorID != nil && *in.SensorID != 0 {
			if err := checkSensorFree(tx, *in.SensorID, 0); err != nil {
				return err
			}
			id := *in.SensorID
			e.SensorID = &id
		}
		tx.PutEquipment(e)
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("equipment created",
		zap.Int64("equipment_id", e.ID),
		zap.String("name", e.Name),
		zap.String("by", actor.Username),
	)
	return e.Clone(), nil
}

func (r *Registry) Update(ctx context.Context, actor *types.Actor, id int64, in UpdateInput) (*types.Equipment, error) {
	if err := auth.Require(actor); err != nil {
		return nil, err
	}

	var saved *types.Equipment
	err := r.store.Update(func(tx *storage.Tx) error {
		e, err := tx.Equipment(id)
		if err != nil {
			return err
		}
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return fmt.Errorf("equipment name is required: %w", types.ErrValidation)
			}
			e.Name = name
		}
		if in.Kind != nil {
			kind, err := types.ParseEquipmentKind(*in.Kind)
			if err != nil {
				return err
			}
			if kind != e.Kind && in.Icon == nil {
				e.Icon = iconFor(kind, "")
			}
			e.Kind = kind
		}
		if in.Icon != nil {
			e.Icon = iconFor(e.Kind, *in.Icon)
		}
		if in.Location != nil {
			e.Location = *in.Location
		}
		if in.Description != nil {
			e.Description = *in.Description
		}
		if in.SensorID != nil {
			if *in.SensorID == 0 {
				e.SensorID = nil
			} else {
				if err := checkSensorFree(tx, *in.SensorID, e.ID); err != nil {
					return err
				}
				sid := *in.SensorID
				e.SensorID = &sid
			}
		}
		e.UpdatedAt = r.now()
		tx.PutEquipment(e)
		saved = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("equipment updated", zap.Int64("equipment_id", id), zap.String("by", actor.Username))
	return saved, nil
}

// SetActive is the soft enable/disable toggle. Only free equipment can be
// taken offline, and only offline equipment can be brought back (as free).
func (r *Registry) SetActive(ctx context.Context, actor *types.Actor, id int64, active bool) (*types.Equipment, error) {
	if err := auth.Require(actor); err != nil {
		return nil, err
	}

	var saved *types.Equipment
	err := r.store.Update(func(tx *storage.Tx) error {
		e, err := tx.Equipment(id)
		if err != nil {
			return err
		}
		if e.Active == active {
			saved = e
			return nil
		}
		if active {
			e.Status = types.StatusFree
		} else {
			if e.Status != types.StatusFree {
				return fmt.Errorf("cannot deactivate equipment %d while %s: %w", id, e.Status, types.ErrConflict)
			}
			e.Status = types.StatusOffline
		}
		e.Active = active
		e.UpdatedAt = r.now()
		tx.PutEquipment(e)
		saved = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("equipment toggled",
		zap.Int64("equipment_id", id),
		zap.Bool("active", active),
		zap.String("by", actor.Username),
	)
	return saved, nil
}

// Delete removes equipment that is currently free.
func (r *Registry) Delete(ctx context.Context, actor *types.Actor, id int64) error {
	if err := auth.Require(actor); err != nil {
		return err
	}

	err := r.store.Update(func(tx *storage.Tx) error {
		e, err := tx.Equipment(id)
		if err != nil {
			return err
		}
		if e.Status != types.StatusFree {
			return fmt.Errorf("cannot delete equipment %d while %s: %w", id, e.Status, types.ErrConflict)
		}
		return tx.DeleteEquipment(id)
	})
	if err != nil {
		return err
	}

	r.logger.Info("equipment deleted", zap.Int64("equipment_id", id), zap.String("by", actor.Username))
	return nil
}

func (r *Registry) Get(ctx context.Context, id int64) (*types.Equipment, error) {
	var e *types.Equipment
	err := r.store.View(func(tx *storage.Tx) error {
		var err error
		e, err = tx.Equipment(id)
		return err
	})
	return e, err
}

func (r *Registry) List(ctx context.Context) []*types.Equipment {
	var list []*types.Equipment
	_ = r.store.View(func(tx *storage.Tx) error {
		list = tx.ListEquipment()
		return nil
	})
	return list
}

// Summary counts equipment per status for the dashboard.
func (r *Registry) Summary(ctx context.Context) map[types.EquipmentStatus]int {
	counts := make(map[types.EquipmentStatus]int, len(types.AllStatuses))
	for _, s := range types.AllStatuses {
		counts[s] = 0
	}
	for _, e := range r.List(ctx) {
		counts[e.Status]++
	}
	return counts
}

// checkSensorFree verifies that sensorID exists and is not attached to any
// equipment other than owner.
func checkSensorFree(tx *storage.Tx, sensorID, owner int64) error {
	if _, err := tx.Sensor(sensorID); err != nil {
		return err
	}
	if other, ok := tx.EquipmentBySensor(sensorID); ok && other.ID != owner {
		return fmt.Errorf("sensor %d is attached to %q: %w", sensorID, other.Name, types.ErrConflict)
	}
	return nil
}

func iconFor(kind types.EquipmentKind, icon string) string {
	if icon = strings.TrimSpace(icon); icon != "" {
		return icon
	}
	if icons := types.IconCatalogue[kind]; len(icons) > 0 {
		return icons[0]
	}
	return "📦"
}
