package system

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/KevinKickass/EquipTrack/internal/auth"
	"github.com/KevinKickass/EquipTrack/internal/sensors"
	"github.com/KevinKickass/EquipTrack/internal/storage"
	"github.com/KevinKickass/EquipTrack/internal/types"
	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var defaultSeed []byte

type SeedData struct {
	Groups    []SeedGroup     `yaml:"groups"`
	Users     []SeedUser      `yaml:"users"`
	Sensors   []SeedSensor    `yaml:"sensors"`
	Equipment []SeedEquipment `yaml:"equipment"`
	Reports   []SeedReport    `yaml:"reports"`
}

type SeedGroup struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Color       string          `yaml:"color"`
	Permissions map[string]bool `yaml:"permissions"`
}

type SeedUser struct {
	Username    string          `yaml:"username"`
	Password    string          `yaml:"password"`
	DisplayName string          `yaml:"display_name"`
	Email       string          `yaml:"email"`
	Role        string          `yaml:"role"`
	Group       string          `yaml:"group"`
	Grants      map[string]bool `yaml:"grants"`
}

type SeedSensor struct {
	Name         string            `yaml:"name"`
	Kind         string            `yaml:"kind"`
	Params       map[string]string `yaml:"params"`
	TempMin      float64           `yaml:"temp_min"`
	TempMax      float64           `yaml:"temp_max"`
	AlertEnabled bool              `yaml:"alert_enabled"`
}

type SeedEquipment struct {
	Name        string             `yaml:"name"`
	Kind        string             `yaml:"kind"`
	Status      string             `yaml:"status"`
	Icon        string             `yaml:"icon"`
	Description string             `yaml:"description"`
	Location    string             `yaml:"location"`
	Sensor      string             `yaml:"sensor"`
	Process     *types.ProcessInfo `yaml:"process"`
}

type SeedReport struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	RecordKind  string   `yaml:"record_kind"`
	Fields      []string `yaml:"fields"`
	Filters     []string `yaml:"filters"`
	Formats     []string `yaml:"formats"`
	Active      bool     `yaml:"active"`
}

// LoadSeed reads fixtures from path, or the built-in set when path is empty.
func LoadSeed(path string) (*SeedData, error) {
	data := defaultSeed
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("failed to read seed file: %w", err)
		}
	}

	var seed SeedData
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}
	return &seed, nil
}

// Apply writes the fixtures into store. Users and groups go through the auth
// service so passwords are hashed and permissions resolved.
func (s *SeedData) Apply(ctx context.Context, store *storage.MemoryStore, authService *auth.AuthService, now time.Time) error {
	for _, g := range s.Groups {
		if _, err := authService.CreateGroup(ctx, auth.GroupInput{
			Name:        g.Name,
			Description: g.Description,
			Color:       g.Color,
			Permissions: g.Permissions,
		}); err != nil {
			return fmt.Errorf("seed group %q: %w", g.Name, err)
		}
	}

	for _, u := range s.Users {
		in := auth.UserInput{
			Username:    u.Username,
			Password:    u.Password,
			DisplayName: u.DisplayName,
			Email:       u.Email,
			Role:        u.Role,
			Grants:      u.Grants,
		}
		if u.Group != "" {
			group := u.Group
			in.Group = &group
		}
		if _, err := authService.CreateUser(ctx, in); err != nil {
			return fmt.Errorf("seed user %q: %w", u.Username, err)
		}
	}

	return store.Update(func(tx *storage.Tx) error {
		sensorIDs := make(map[string]int64, len(s.Sensors))
		for _, ss := range s.Sensors {
			kind := types.CommKind(ss.Kind)
			cfg, err := sensors.BuildConfig(kind, ss.Params)
			if err != nil {
				return fmt.Errorf("seed sensor %q: %w", ss.Name, err)
			}
			sensor := tx.PutSensor(&types.Sensor{
				Name:         ss.Name,
				Kind:         kind,
				Config:       cfg,
				TempMin:      ss.TempMin,
				TempMax:      ss.TempMax,
				AlertEnabled: ss.AlertEnabled,
				Active:       true,
				CreatedAt:    now,
				UpdatedAt:    now,
			})
			sensorIDs[ss.Name] = sensor.ID
		}

		for _, se := range s.Equipment {
			kind, err := types.ParseEquipmentKind(se.Kind)
			if err != nil {
				return fmt.Errorf("seed equipment %q: %w", se.Name, err)
			}
			e := &types.Equipment{
				Name:        se.Name,
				Kind:        kind,
				Icon:        se.Icon,
				Status:      types.EquipmentStatus(se.Status),
				Active:      se.Status != string(types.StatusOffline),
				Description: se.Description,
				Location:    se.Location,
				Process:     se.Process,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if e.Status == "" {
				e.Status = types.StatusFree
			}
			if se.Sensor != "" {
				id, ok := sensorIDs[se.Sensor]
				if !ok {
					return fmt.Errorf("seed equipment %q: sensor %q: %w", se.Name, se.Sensor, types.ErrNotFound)
				}
				e.SensorID = &id
			}
			if err := e.CheckOccupancy(); err != nil {
				return fmt.Errorf("seed equipment %q: %v: %w", se.Name, err, types.ErrValidation)
			}
			tx.PutEquipment(e)
		}

		for _, sr := range s.Reports {
			formats := make([]types.Format, 0, len(sr.Formats))
			for _, f := range sr.Formats {
				format, err := types.ParseFormat(f)
				if err != nil {
					return fmt.Errorf("seed report %q: %w", sr.Name, err)
				}
				formats = append(formats, format)
			}
			tx.PutReport(&types.ReportDefinition{
				Name:        sr.Name,
				Description: sr.Description,
				RecordKind:  sr.RecordKind,
				Fields:      sr.Fields,
				Filters:     sr.Filters,
				Formats:     formats,
				Active:      sr.Active,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}
		return nil
	})
}
