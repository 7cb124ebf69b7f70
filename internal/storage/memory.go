package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/KevinKickass/EquipTrack/internal/types"
)

// MemoryStore is the process-lifetime state of the service. It is created by
// the entry point (or a test) and handed to every component; there is no
// package-level state. All reads and writes go through View/Update which run
// under a single RWMutex and exchange deep copies with the caller.
type MemoryStore struct {
	mu    sync.RWMutex
	state state

	listenersMu sync.RWMutex
	listeners   []func()
}

type sequences struct {
	Equipment int64 `json:"equipment"`
	Sensor    int64 `json:"sensor"`
	Record    int64 `json:"record"`
	Report    int64 `json:"report"`
	Layout    int64 `json:"layout"`
}

type state struct {
	equipment map[int64]*types.Equipment
	sensors   map[int64]*types.Sensor
	users     map[string]*types.User
	groups    map[string]*types.Group
	records   map[int64]*types.ProcessRecord
	reports   map[int64]*types.ReportDefinition
	layouts   map[int64]*types.Layout
	seq       sequences
}

func newState() state {
	return state{
		equipment: map[int64]*types.Equipment{},
		sensors:   map[int64]*types.Sensor{},
		users:     map[string]*types.User{},
		groups:    map[string]*types.Group{},
		records:   map[int64]*types.ProcessRecord{},
		reports:   map[int64]*types.ReportDefinition{},
		layouts:   map[int64]*types.Layout{},
	}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newState()}
}

// OnChange registers a callback invoked after every successful Update.
func (s *MemoryStore) OnChange(fn func()) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// View runs fn with read access.
func (s *MemoryStore) View(fn func(tx *Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&Tx{st: &s.state})
}

// Update runs fn with write access. If fn returns an error every change it
// made is discarded.
func (s *MemoryStore) Update(fn func(tx *Tx) error) error {
	s.mu.Lock()
	backup := snapshotFromState(&s.state)
	tx := &Tx{st: &s.state, writable: true}
	if err := fn(tx); err != nil {
		s.state = stateFromSnapshot(backup)
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.listenersMu.RLock()
	listeners := append([]func(){}, s.listeners...)
	s.listenersMu.RUnlock()
	for _, l := range listeners {
		l()
	}
	return nil
}

// Tx is the handle passed to View/Update callbacks. It must not escape the callback.
type Tx struct {
	st       *state
	writable bool
}

func (tx *Tx) mustWrite() {
	if !tx.writable {
		panic("storage: write inside View")
	}
}

// ---- equipment ----

func (tx *Tx) Equipment(id int64) (*types.Equipment, error) {
	e, ok := tx.st.equipment[id]
	if !ok {
		return nil, fmt.Errorf("equipment %d: %w", id, types.ErrNotFound)
	}
	return e.Clone(), nil
}

func (tx *Tx) ListEquipment() []*types.Equipment {
	out := make([]*types.Equipment, 0, len(tx.st.equipment))
	for _, e := range tx.st.equipment {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PutEquipment stores e. A zero ID allocates the next id from the equipment sequence.
func (tx *Tx) PutEquipment(e *types.Equipment) *types.Equipment {
	tx.mustWrite()
	if e.ID == 0 {
		tx.st.seq.Equipment++
		e.ID = tx.st.seq.Equipment
	} else if e.ID > tx.st.seq.Equipment {
		tx.st.seq.Equipment = e.ID
	}
	tx.st.equipment[e.ID] = e.Clone()
	return e
}

func (tx *Tx) DeleteEquipment(id int64) error {
	tx.mustWrite()
	if _, ok := tx.st.equipment[id]; !ok {
		return fmt.Errorf("equipment %d: %w", id, types.ErrNotFound)
	}
	delete(tx.st.equipment, id)
	return nil
}

// EquipmentBySensor returns the equipment referencing sensorID, if any.
func (tx *Tx) EquipmentBySensor(sensorID int64) (*types.Equipment, bool) {
	for _, e := range tx.st.equipment {
		if e.SensorID != nil && *e.SensorID == sensorID {
			return e.Clone(), true
		}
	}
	return nil, false
}

// ---- sensors ----

func (tx *Tx) Sensor(id int64) (*types.Sensor, error) {
	s, ok := tx.st.sensors[id]
	if !ok {
		return nil, fmt.Errorf("sensor %d: %w", id, types.ErrNotFound)
	}
	return s.Clone(), nil
}

func (tx *Tx) ListSensors() []*types.Sensor {
	out := make([]*types.Sensor, 0, len(tx.st.sensors))
	for _, s := range tx.st.sensors {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (tx *Tx) PutSensor(s *types.Sensor) *types.Sensor {
	tx.mustWrite()
	if s.ID == 0 {
		tx.st.seq.Sensor++
		s.ID = tx.st.seq.Sensor
	} else if s.ID > tx.st.seq.Sensor {
		tx.st.seq.Sensor = s.ID
	}
	tx.st.sensors[s.ID] = s.Clone()
	return s
}

func (tx *Tx) DeleteSensor(id int64) error {
	tx.mustWrite()
	if _, ok := tx.st.sensors[id]; !ok {
		return fmt.Errorf("sensor %d: %w", id, types.ErrNotFound)
	}
	delete(tx.st.sensors, id)
	return nil
}

// ---- users & groups ----

func (tx *Tx) User(username string) (*types.User, error) {
	u, ok := tx.st.users[username]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", username, types.ErrNotFound)
	}
	return u.Clone(), nil
}

func (tx *Tx) ListUsers() []*types.User {
	out := make([]*types.User, 0, len(tx.st.users))
	for _, u := range tx.st.users {
		out = append(out, u.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

func (tx *Tx) PutUser(u *types.User) {
	tx.mustWrite()
	tx.st.users[u.Username] = u.Clone()
}

func (tx *Tx) DeleteUser(username string) error {
	tx.mustWrite()
	if _, ok := tx.st.users[username]; !ok {
		return fmt.Errorf("user %q: %w", username, types.ErrNotFound)
	}
	delete(tx.st.users, username)
	return nil
}

func (tx *Tx) Group(name string) (*types.Group, error) {
	g, ok := tx.st.groups[name]
	if !ok {
		return nil, fmt.Errorf("group %q: %w", name, types.ErrNotFound)
	}
	return g.Clone(), nil
}

func (tx *Tx) ListGroups() []*types.Group {
	out := make([]*types.Group, 0, len(tx.st.groups))
	for _, g := range tx.st.groups {
		out = append(out, g.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (tx *Tx) PutGroup(g *types.Group) {
	tx.mustWrite()
	tx.st.groups[g.Name] = g.Clone()
}

func (tx *Tx) DeleteGroup(name string) error {
	tx.mustWrite()
	if _, ok := tx.st.groups[name]; !ok {
		return fmt.Errorf("group %q: %w", name, types.ErrNotFound)
	}
	delete(tx.st.groups, name)
	return nil
}

// ---- process history ----

func (tx *Tx) Record(id int64) (*types.ProcessRecord, error) {
	r, ok := tx.st.records[id]
	if !ok {
		return nil, fmt.Errorf("process record %d: %w", id, types.ErrNotFound)
	}
	return r.Clone(), nil
}

// ListRecords returns the history in append order.
func (tx *Tx) ListRecords() []*types.ProcessRecord {
	out := make([]*types.ProcessRecord, 0, len(tx.st.records))
	for _, r := range tx.st.records {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AppendRecord assigns the next record id and stores r.
func (tx *Tx) AppendRecord(r *types.ProcessRecord) *types.ProcessRecord {
	tx.mustWrite()
	tx.st.seq.Record++
	r.ID = tx.st.seq.Record
	tx.st.records[r.ID] = r.Clone()
	return r
}

// ReplaceRecord overwrites an existing record; history entries are never removed.
func (tx *Tx) ReplaceRecord(r *types.ProcessRecord) error {
	tx.mustWrite()
	if _, ok := tx.st.records[r.ID]; !ok {
		return fmt.Errorf("process record %d: %w", r.ID, types.ErrNotFound)
	}
	tx.st.records[r.ID] = r.Clone()
	return nil
}

// ---- report definitions & layouts ----

func (tx *Tx) Report(id int64) (*types.ReportDefinition, error) {
	d, ok := tx.st.reports[id]
	if !ok {
		return nil, fmt.Errorf("report %d: %w", id, types.ErrNotFound)
	}
	return d.Clone(), nil
}

func (tx *Tx) ListReports() []*types.ReportDefinition {
	out := make([]*types.ReportDefinition, 0, len(tx.st.reports))
	for _, d := range tx.st.reports {
		out = append(out, d.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (tx *Tx) PutReport(d *types.ReportDefinition) *types.ReportDefinition {
	tx.mustWrite()
	if d.ID == 0 {
		tx.st.seq.Report++
		d.ID = tx.st.seq.Report
	} else if d.ID > tx.st.seq.Report {
		tx.st.seq.Report = d.ID
	}
	tx.st.reports[d.ID] = d.Clone()
	return d
}

func (tx *Tx) DeleteReport(id int64) error {
	tx.mustWrite()
	if _, ok := tx.st.reports[id]; !ok {
		return fmt.Errorf("report %d: %w", id, types.ErrNotFound)
	}
	delete(tx.st.reports, id)
	return nil
}

func (tx *Tx) Layout(id int64) (*types.Layout, error) {
	l, ok := tx.st.layouts[id]
	if !ok {
		return nil, fmt.Errorf("layout %d: %w", id, types.ErrNotFound)
	}
	return l.Clone(), nil
}

func (tx *Tx) ListLayouts() []*types.Layout {
	out := make([]*types.Layout, 0, len(tx.st.layouts))
	for _, l := range tx.st.layouts {
		out = append(out, l.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (tx *Tx) PutLayout(l *types.Layout) *types.Layout {
	tx.mustWrite()
	if l.ID == 0 {
		tx.st.seq.Layout++
		l.ID = tx.st.seq.Layout
	} else if l.ID > tx.st.seq.Layout {
		tx.st.seq.Layout = l.ID
	}
	tx.st.layouts[l.ID] = l.Clone()
	return l
}

func (tx *Tx) DeleteLayout(id int64) error {
	tx.mustWrite()
	if _, ok := tx.st.layouts[id]; !ok {
		return fmt.Errorf("layout %d: %w", id, types.ErrNotFound)
	}
	delete(tx.st.layouts, id)
	return nil
}
