package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"liquidityZap/internal/model"
)

// Snapshot is the persisted registry image.
type Snapshot struct {
	Entities  []model.EntityRecord `json:"entities"`
	UpdatedAt string               `json:"updated_at"`
}

// SnapshotStore persists registry snapshots to disk.
type SnapshotStore struct {
	path    string
	enabled bool
}

func NewSnapshotStore(path string, enabled bool) *SnapshotStore {
	return &SnapshotStore{path: path, enabled: enabled}
}

func (s *SnapshotStore) Load() (Snapshot, bool, error) {
	if !s.enabled {
		return Snapshot{}, false, nil
	}

	stat, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("stat snapshot: %w", err)
	}
	if stat.IsDir() {
		return Snapshot{}, false, fmt.Errorf("snapshot path is a directory")
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("parse snapshot: %w", err)
	}

	return snap, true, nil
}

func (s *SnapshotStore) Save(entities []Entity) error {
	if !s.enabled {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	snap := Snapshot{
		Entities:  make([]model.EntityRecord, 0, len(entities)),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	for _, ent := range entities {
		snap.Entities = append(snap.Entities, ent.Record())
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot tmp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}

	return nil
}

// Restore loads a snapshot's entities into the registry, replacing any
// in-memory state for the ids it carries.
func (r *Registry) Restore(snap Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range snap.Entities {
		if rec.Health > MaxHealth {
			return fmt.Errorf("%w: entity %d carries health %d", ErrHealthRange, rec.ID, rec.Health)
		}
		ent := &Entity{
			ID:           EntityID(rec.ID),
			Owner:        common.HexToAddress(rec.Owner),
			Health:       rec.Health,
			CreatedBlock: rec.CreatedBlock,
			UpdatedAt:    time.Unix(rec.UpdatedAt, 0),
			ChainID:      rec.ChainID,
			PoolID:       common.HexToHash(rec.PoolID),
			PositionRef:  common.HexToHash(rec.PositionRef),
		}
		r.entities[ent.ID] = ent
		r.byOwner[ent.Owner] = ent.ID
	}
	return nil
}
