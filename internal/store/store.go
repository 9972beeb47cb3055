// Package store holds the cross-call state tool handlers share: device
// snapshots, macro controllers, parameter maps, and effect-chain
// templates. Each store guards its map with its own mutex and hands out
// copies, never views. Templates additionally write through to disk.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/haasonsaas/livebridge/internal/daw"
)

// DeviceRef addresses one device in the session.
type DeviceRef struct {
	TrackIndex  int `json:"track_index"`
	DeviceIndex int `json:"device_index"`
}

// ParameterValue is one captured name/value pair.
type ParameterValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Snapshot is a captured set of parameter values, restorable as a
// group. Immutable once created.
type Snapshot struct {
	ID         string           `json:"id"`
	CreatedAt  time.Time        `json:"created_at"`
	Device     DeviceRef        `json:"device"`
	Parameters []ParameterValue `json:"parameters"`
}

// Snapshots is the process-lifetime snapshot store.
type Snapshots struct {
	mu sync.Mutex
	m  map[string]Snapshot
}

func NewSnapshots() *Snapshots {
	return &Snapshots{m: map[string]Snapshot{}}
}

// Save stores a snapshot under its id. An existing id is rejected:
// snapshots are immutable, delete first to reuse the name.
func (s *Snapshots) Save(snap Snapshot) error {
	if snap.ID == "" {
		return daw.E(daw.KindInvalidInput, "snapshot id must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.m[snap.ID]; exists {
		return daw.E(daw.KindInvalidInput, "snapshot %q already exists", snap.ID)
	}
	s.m[snap.ID] = cloneSnapshot(snap)
	return nil
}

func (s *Snapshots) Get(id string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.m[id]
	if !ok {
		return Snapshot{}, false
	}
	return cloneSnapshot(snap), true
}

func (s *Snapshots) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[id]; !ok {
		return false
	}
	delete(s.m, id)
	return true
}

// List returns copies of all snapshots, id-sorted.
func (s *Snapshots) List() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Snapshot, 0, len(s.m))
	for _, snap := range s.m {
		out = append(out, cloneSnapshot(snap))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func cloneSnapshot(snap Snapshot) Snapshot {
	params := make([]ParameterValue, len(snap.Parameters))
	copy(params, snap.Parameters)
	snap.Parameters = params
	return snap
}

// Curve names how a macro input maps onto a binding's output range.
type Curve string

const (
	CurveLinear      Curve = "linear"
	CurveExponential Curve = "exponential"
	CurveLogarithmic Curve = "logarithmic"
)

// MacroBinding targets one parameter with an output range and curve.
type MacroBinding struct {
	Device        DeviceRef `json:"device"`
	ParameterName string    `json:"parameter_name"`
	MinOut        float64   `json:"min_out"`
	MaxOut        float64   `json:"max_out"`
	Curve         Curve     `json:"curve"`
}

// Apply maps a 0..1 input through the curve into [MinOut, MaxOut].
func (b MacroBinding) Apply(input float64) float64 {
	if input < 0 {
		input = 0
	} else if input > 1 {
		input = 1
	}
	switch b.Curve {
	case CurveExponential:
		input = input * input
	case CurveLogarithmic:
		input = 1 - (1-input)*(1-input)
	}
	return b.MinOut + input*(b.MaxOut-b.MinOut)
}

// Macro is one controller: a 0..1 input fanned out to bindings.
type Macro struct {
	ID       string         `json:"id"`
	Bindings []MacroBinding `json:"bindings"`
}

// Macros is the process-lifetime macro store. Unlike snapshots, macros
// are mutable: Put replaces.
type Macros struct {
	mu sync.Mutex
	m  map[string]Macro
}

func NewMacros() *Macros {
	return &Macros{m: map[string]Macro{}}
}

func (s *Macros) Put(macro Macro) error {
	if macro.ID == "" {
		return daw.E(daw.KindInvalidInput, "macro id must not be empty")
	}
	if len(macro.Bindings) == 0 {
		return daw.E(daw.KindInvalidInput, "macro %q needs at least one binding", macro.ID)
	}
	for _, b := range macro.Bindings {
		switch b.Curve {
		case CurveLinear, CurveExponential, CurveLogarithmic:
		case "":
			return daw.E(daw.KindInvalidInput, "macro %q binding %q has no curve", macro.ID, b.ParameterName)
		default:
			return daw.E(daw.KindInvalidInput, "macro %q binding %q has unknown curve %q", macro.ID, b.ParameterName, b.Curve)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[macro.ID] = cloneMacro(macro)
	return nil
}

func (s *Macros) Get(id string) (Macro, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	macro, ok := s.m[id]
	if !ok {
		return Macro{}, false
	}
	return cloneMacro(macro), true
}

func (s *Macros) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[id]; !ok {
		return false
	}
	delete(s.m, id)
	return true
}

func (s *Macros) List() []Macro {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Macro, 0, len(s.m))
	for _, macro := range s.m {
		out = append(out, cloneMacro(macro))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func cloneMacro(macro Macro) Macro {
	bindings := make([]MacroBinding, len(macro.Bindings))
	copy(bindings, macro.Bindings)
	macro.Bindings = bindings
	return macro
}

// ParameterMapping gives one raw parameter a friendly name and category.
type ParameterMapping struct {
	OriginalName string `json:"original_name"`
	FriendlyName string `json:"friendly_name"`
	Category     string `json:"category"`
}

// ParameterMap is a read-only naming table for one device kind.
type ParameterMap struct {
	ID         string             `json:"id"`
	DeviceKind string             `json:"device_kind"`
	Mappings   []ParameterMapping `json:"mappings"`
}

// ParameterMaps is seeded once at startup and read-only after. The
// mutex stays because the seeding path and dashboard reads overlap.
type ParameterMaps struct {
	mu sync.Mutex
	m  map[string]ParameterMap
}

func NewParameterMaps() *ParameterMaps {
	return &ParameterMaps{m: map[string]ParameterMap{}}
}

// Seed installs a map; duplicate ids are rejected to keep the table
// read-only in spirit.
func (s *ParameterMaps) Seed(pm ParameterMap) error {
	if pm.ID == "" {
		return daw.E(daw.KindInvalidInput, "parameter map id must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.m[pm.ID]; exists {
		return daw.E(daw.KindInvalidInput, "parameter map %q already seeded", pm.ID)
	}
	mappings := make([]ParameterMapping, len(pm.Mappings))
	copy(mappings, pm.Mappings)
	pm.Mappings = mappings
	s.m[pm.ID] = pm
	return nil
}

func (s *ParameterMaps) Get(id string) (ParameterMap, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pm, ok := s.m[id]
	if !ok {
		return ParameterMap{}, false
	}
	mappings := make([]ParameterMapping, len(pm.Mappings))
	copy(mappings, pm.Mappings)
	pm.Mappings = mappings
	return pm, true
}

// FriendlyName translates a raw parameter name through one map; the
// raw name passes through when unmapped.
func (s *ParameterMaps) FriendlyName(id, originalName string) string {
	pm, ok := s.Get(id)
	if !ok {
		return originalName
	}
	for _, m := range pm.Mappings {
		if m.OriginalName == originalName {
			return m.FriendlyName
		}
	}
	return originalName
}

func (s *ParameterMaps) List() []ParameterMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ParameterMap, 0, len(s.m))
	for _, pm := range s.m {
		mappings := make([]ParameterMapping, len(pm.Mappings))
		copy(mappings, pm.Mappings)
		pm.Mappings = mappings
		out = append(out, pm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
