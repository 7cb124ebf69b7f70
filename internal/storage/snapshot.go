package storage

import "github.com/KevinKickass/EquipTrack/internal/types"

// SnapshotUser carries the password hash, which types.User hides from JSON.
type SnapshotUser struct {
	types.User
	PasswordHash string `json:"password_hash"`
}

// Snapshot is the serialisable representation of the in-memory state.
type Snapshot struct {
	Equipment []*types.Equipment        `json:"equipment"`
	Sensors   []*types.Sensor           `json:"sensors"`
	Users     []SnapshotUser            `json:"users"`
	Groups    []*types.Group            `json:"groups"`
	Records   []*types.ProcessRecord    `json:"records"`
	Reports   []*types.ReportDefinition `json:"reports"`
	Layouts   []*types.Layout           `json:"layouts"`
	Sequences sequences                 `json:"sequences"`
}

func snapshotFromState(st *state) Snapshot {
	tx := &Tx{st: st}
	snap := Snapshot{
		Equipment: tx.ListEquipment(),
		Sensors:   tx.ListSensors(),
		Groups:    tx.ListGroups(),
		Records:   tx.ListRecords(),
		Reports:   tx.ListReports(),
		Layouts:   tx.ListLayouts(),
		Sequences: st.seq,
	}
	for _, u := range tx.ListUsers() {
		snap.Users = append(snap.Users, SnapshotUser{User: *u, PasswordHash: u.PasswordHash})
	}
	return snap
}

func stateFromSnapshot(snap Snapshot) state {
	st := newState()
	for _, e := range snap.Equipment {
		st.equipment[e.ID] = e.Clone()
		st.seq.Equipment = max(st.seq.Equipment, e.ID)
	}
	for _, s := range snap.Sensors {
		st.sensors[s.ID] = s.Clone()
		st.seq.Sensor = max(st.seq.Sensor, s.ID)
	}
	for _, su := range snap.Users {
		u := su.User.Clone()
		u.PasswordHash = su.PasswordHash
		st.users[u.Username] = u
	}
	for _, g := range snap.Groups {
		st.groups[g.Name] = g.Clone()
	}
	for _, r := range snap.Records {
		st.records[r.ID] = r.Clone()
		st.seq.Record = max(st.seq.Record, r.ID)
	}
	for _, d := range snap.Reports {
		st.reports[d.ID] = d.Clone()
		st.seq.Report = max(st.seq.Report, d.ID)
	}
	for _, l := range snap.Layouts {
		st.layouts[l.ID] = l.Clone()
		st.seq.Layout = max(st.seq.Layout, l.ID)
	}

	// Counters never go backwards, even if the highest ids were deleted before the snapshot.
	st.seq.Equipment = max(st.seq.Equipment, snap.Sequences.Equipment)
	st.seq.Sensor = max(st.seq.Sensor, snap.Sequences.Sensor)
	st.seq.Record = max(st.seq.Record, snap.Sequences.Record)
	st.seq.Report = max(st.seq.Report, snap.Sequences.Report)
	st.seq.Layout = max(st.seq.Layout, snap.Sequences.Layout)
	return st
}

// Snapshot returns a consistent copy of the whole store.
func (s *MemoryStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromState(&s.state)
}

// Restore replaces the store contents with snap.
func (s *MemoryStore) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = stateFromSnapshot(snap)
}
