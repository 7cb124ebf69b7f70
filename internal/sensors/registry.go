// Package sensors keeps the sensor catalogue and runs communication tests
// through a pluggable Prober.
package sensors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/KevinKickass/EquipTrack/internal/api/websocket"
	"github.com/KevinKickass/EquipTrack/internal/auth"
	"github.com/KevinKickass/EquipTrack/internal/storage"
	"github.com/KevinKickass/EquipTrack/internal/types"
	"go.uber.org/zap"
)

const (
	defaultTempMin = 20.0
	defaultTempMax = 80.0
)

type Broadcaster interface {
	Broadcast(msg websocket.Message)
}

// Input is used for create and update. On update, empty or nil fields keep
// their current value; Kind or Params rebuild the whole config.
type Input struct {
	Name         string            `json:"name"`
	Kind         string            `json:"kind"`
	Params       map[string]string `json:"params"`
	TempMin      *float64          `json:"temp_min"`
	TempMax      *float64          `json:"temp_max"`
	AlertEnabled *bool             `json:"alert_enabled"`
	Active       *bool             `json:"active"`
}

type Registry struct {
	store   *storage.MemoryStore
	prober  Prober
	hub     Broadcaster
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time
}

func NewRegistry(store *storage.MemoryStore, prober Prober, hub Broadcaster, timeout time.Duration, logger *zap.Logger) *Registry {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &Registry{
		store:   store,
		prober:  prober,
		hub:     hub,
		logger:  logger,
		timeout: timeout,
		now:     time.Now,
	}
}

func (r *Registry) Create(ctx context.Context, actor *types.Actor, in Input) (*types.Sensor, error) {
	if err := auth.Require(actor); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("sensor name is required: %w", types.ErrValidation)
	}
	kind := types.CommKind(strings.TrimSpace(in.Kind))
	cfg, err := BuildConfig(kind, in.Params)
	if err != nil {
		return nil, err
	}

	now := r.now()
	s := &types.Sensor{
		Name:         name,
		Kind:         kind,
		Config:       cfg,
		TempMin:      defaultTempMin,
		TempMax:      defaultTempMax,
		AlertEnabled: in.AlertEnabled != nil && *in.AlertEnabled,
		Active:       in.Active == nil || *in.Active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.TempMin != nil {
		s.TempMin = *in.TempMin
	}
	if in.TempMax != nil {
		s.TempMax = *in.TempMax
	}
	if err := checkRange(s); err != nil {
		return nil, err
	}

	if err := r.store.Update(func(tx *storage.Tx) error {
		tx.PutSensor(s)
		return nil
	}); err != nil {
		return nil, err
	}

	r.logger.Info("sensor created",
		zap.Int64("sensor_id", s.ID),
		zap.String("kind", string(kind)),
		zap.Bool("config_empty", cfg.IsEmpty()),
		zap.String("by", actor.Username),
	)
	return s.Clone(), nil
}

func (r *Registry) Update(ctx context.Context, actor *types.Actor, id int64, in Input) (*types.Sensor, error) {
	if err := auth.Require(actor); err != nil {
		return nil, err
	}

	var saved *types.Sensor
	err := r.store.Update(func(tx *storage.Tx) error {
		s, err := tx.Sensor(id)
		if err != nil {
			return err
		}
		if name := strings.TrimSpace(in.Name); name != "" {
			s.Name = name
		}
		if kind := strings.TrimSpace(in.Kind); kind != "" || in.Params != nil {
			if kind != "" {
				s.Kind = types.CommKind(kind)
			}
			cfg, err := BuildConfig(s.Kind, in.Params)
			if err != nil {
				return err
			}
			s.Config = cfg
		}
		if in.TempMin != nil {
			s.TempMin = *in.TempMin
		}
		if in.TempMax != nil {
			s.TempMax = *in.TempMax
		}
		if in.AlertEnabled != nil {
			s.AlertEnabled = *in.AlertEnabled
		}
		if in.Active != nil {
			s.Active = *in.Active
		}
		if err := checkRange(s); err != nil {
			return err
		}
		s.UpdatedAt = r.now()
		tx.PutSensor(s)
		saved = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("sensor updated", zap.Int64("sensor_id", id), zap.String("by", actor.Username))
	return saved, nil
}

// Delete fails with ErrConflict while any equipment references the sensor.
func (r *Registry) Delete(ctx context.Context, actor *types.Actor, id int64) error {
	if err := auth.Require(actor); err != nil {
		return err
	}

	err := r.store.Update(func(tx *storage.Tx) error {
		if _, err := tx.Sensor(id); err != nil {
			return err
		}
		if e, ok := tx.EquipmentBySensor(id); ok {
			return fmt.Errorf("sensor %d is attached to %q: %w", id, e.Name, types.ErrConflict)
		}
		return tx.DeleteSensor(id)
	})
	if err != nil {
		return err
	}

	r.logger.Info("sensor deleted", zap.Int64("sensor_id", id), zap.String("by", actor.Username))
	return nil
}

func (r *Registry) Get(ctx context.Context, id int64) (*types.Sensor, error) {
	var s *types.Sensor
	err := r.store.View(func(tx *storage.Tx) error {
		var err error
		s, err = tx.Sensor(id)
		return err
	})
	return s, err
}

func (r *Registry) List(ctx context.Context) []*types.Sensor {
	var list []*types.Sensor
	_ = r.store.View(func(tx *storage.Tx) error {
		list = tx.ListSensors()
		return nil
	})
	return list
}

// TestCommunication probes the sensor, stores the outcome as its last test
// result and returns it. A failed probe is a result, not an error.
func (r *Registry) TestCommunication(ctx context.Context, actor *types.Actor, id int64) (*types.TestResult, error) {
	if err := auth.Require(actor, types.RoleMaintenance); err != nil {
		return nil, err
	}

	sensor, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	result := types.TestResult{Status: types.TestFailed}
	if !sensor.Active {
		result.Message = "sensor is inactive"
	} else {
		probeCtx, cancel := context.WithTimeout(ctx, r.timeout)
		reading, err := r.prober.Probe(probeCtx, sensor)
		cancel()
		if err != nil {
			result.Message = fmt.Sprintf("communication failed: %v", err)
		} else {
			result.Status = types.TestOK
			result.Message = fmt.Sprintf("communication ok: %.1f °C", reading)
			result.Reading = &reading
		}
	}
	result.TestedAt = r.now()

	err = r.store.Update(func(tx *storage.Tx) error {
		s, err := tx.Sensor(id)
		if err != nil {
			return err
		}
		res := result
		s.LastTest = &res
		tx.PutSensor(s)
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("sensor tested",
		zap.Int64("sensor_id", id),
		zap.String("status", string(result.Status)),
		zap.String("by", actor.Username),
	)
	if r.hub != nil {
		r.hub.Broadcast(websocket.NewSensorTestedMessage(id, result))
	}
	return &result, nil
}

func checkRange(s *types.Sensor) error {
	if s.TempMin > s.TempMax {
		return fmt.Errorf("temp_min %.1f exceeds temp_max %.1f: %w", s.TempMin, s.TempMax, types.ErrValidation)
	}
	return nil
}
