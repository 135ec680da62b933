// Package store persists the canvassing state as a single JSON snapshot.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/evcraddock/canvasser/internal/geo"
	"github.com/evcraddock/canvasser/internal/property"
	"github.com/evcraddock/canvasser/internal/route"
	"github.com/evcraddock/canvasser/internal/territory"
)

// SchemaVersion is written into every snapshot.
const SchemaVersion = 1

// DefaultKey is the key the snapshot is stored under.
const DefaultKey = "canvasser:state"

// ErrNoSnapshot is returned by Load when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no snapshot saved")

// Analytics are running counters kept alongside the data.
type Analytics struct {
	PropertiesCreated  int     `json:"propertiesCreated"`
	StatusChanges      int     `json:"statusChanges"`
	NotesAdded         int     `json:"notesAdded"`
	TerritoriesCreated int     `json:"territoriesCreated"`
	RoutesSaved        int     `json:"routesSaved"`
	MetersTraveled     float64 `json:"metersTraveled"`
}

// MapView is the last map position the rep used.
type MapView struct {
	Center geo.Point `json:"center"`
	Zoom   int       `json:"zoom"`
}

// Snapshot is the full persisted state.
type Snapshot struct {
	Version     int                    `json:"version"`
	Territories []*territory.Territory `json:"territories"`
	Properties  []*property.Property   `json:"properties"`
	Routes      []*route.Route         `json:"routes"`
	Analytics   Analytics              `json:"analytics"`
	MapView     MapView                `json:"mapView"`
	SavedAt     time.Time              `json:"savedAt"`
}

// Store loads and saves snapshots.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, s *Snapshot) error
}

// Historian is a Store that keeps a bounded list of recent saves. History
// returns up to limit of them, newest first; limit <= 0 means all kept.
type Historian interface {
	History(ctx context.Context, limit int) ([]*Snapshot, error)
}

func encode(s *Snapshot) ([]byte, error) {
	if s.Version == 0 {
		s.Version = SchemaVersion
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if s.Version > SchemaVersion {
		return nil, fmt.Errorf("snapshot version %d is newer than supported version %d", s.Version, SchemaVersion)
	}
	return &s, nil
}

// MemoryStore keeps the encoded snapshot in memory.
type MemoryStore struct {
	mu      sync.Mutex
	data    []byte
	history [][]byte // newest first
	saves   int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(ctx context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, ErrNoSnapshot
	}
	return decode(m.data)
}

func (m *MemoryStore) Save(ctx context.Context, s *Snapshot) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data = data
	m.history = append([][]byte{data}, m.history...)
	if len(m.history) > DefaultHistory {
		m.history = m.history[:DefaultHistory]
	}
	m.saves++
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) History(ctx context.Context, limit int) ([]*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.history) {
		limit = len(m.history)
	}
	out := make([]*Snapshot, 0, limit)
	for _, data := range m.history[:limit] {
		snap, err := decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// Saves returns how many times Save succeeded.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
