package registry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"liquidityZap/internal/model"
	"liquidityZap/internal/observability"
	"liquidityZap/internal/storage"
)

const (
	// MaxHealth bounds the health attribute; new entities start here.
	MaxHealth uint8 = 100
)

var (
	ErrNotUpdater     = errors.New("caller is not the health updater")
	ErrHealthRange    = errors.New("health out of range")
	ErrUnknownEntity  = errors.New("unknown entity")
	ErrZeroOwner      = errors.New("owner is the zero address")
	ErrUpdaterUnbound = errors.New("health updater not configured")
	ErrHintOwner      = errors.New("hint targets another owner's entity")
)

// EntityID identifies one tracked entity. Derived from the owner, so an owner
// has at most one entity.
type EntityID uint64

var entityDomain = []byte("zap.pet.v1")

// DeriveID maps an owner to its entity id: the first 8 bytes of a
// domain-separated hash. Deterministic; repeated hatches never mint twice.
func DeriveID(owner common.Address) EntityID {
	h := crypto.Keccak256(append(append([]byte{}, entityDomain...), owner.Bytes()...))
	return EntityID(binary.BigEndian.Uint64(h[:8]))
}

// Entity is the owner-keyed tracked record.
type Entity struct {
	ID           EntityID
	Owner        common.Address
	Health       uint8
	CreatedBlock uint64
	UpdatedAt    time.Time
	ChainID      uint64
	PoolID       common.Hash
	PositionRef  common.Hash
}

func (e Entity) Record() model.EntityRecord {
	return model.EntityRecord{
		ID:           uint64(e.ID),
		Owner:        e.Owner.Hex(),
		Health:       e.Health,
		CreatedBlock: e.CreatedBlock,
		UpdatedAt:    e.UpdatedAt.Unix(),
		ChainID:      e.ChainID,
		PoolID:       e.PoolID.Hex(),
		PositionRef:  e.PositionRef.Hex(),
	}
}

// Config wires the registry's collaborators. Height and Now default to unix
// time when nil.
type Config struct {
	// Updater is the only address allowed to mutate health.
	Updater common.Address
	Height  func() uint64
	Now     func() time.Time
	Sink    storage.Sink
	Metrics *observability.Metrics
}

// Registry is the keyed store of tracked entities: one per owner, created or
// overwritten idempotently on each notification.
type Registry struct {
	mu       sync.RWMutex
	entities map[EntityID]*Entity
	byOwner  map[common.Address]EntityID

	updater common.Address
	height  func() uint64
	now     func() time.Time
	sink    storage.Sink
	metrics *observability.Metrics
	log     *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	height := cfg.Height
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if height == nil {
		height = func() uint64 { return uint64(now().Unix()) }
	}
	return &Registry{
		entities: make(map[EntityID]*Entity),
		byOwner:  make(map[common.Address]EntityID),
		updater:  cfg.Updater,
		height:   height,
		now:      now,
		sink:     cfg.Sink,
		metrics:  cfg.Metrics,
		log:      log,
	}
}

// Hatch describes one consumed notification.
type Hatch struct {
	Owner       common.Address
	Hint        EntityID
	PositionRef common.Hash
	TickLower   int32
	TickUpper   int32
	ChainID     uint64
	PoolID      common.Hash
}

// Validate checks a hatch against current registry state without mutating it.
// The hook adapter calls it in-session so a doomed hatch fails the liquidity
// add before any irreversible effect.
func (r *Registry) Validate(h Hatch) error {
	if h.Owner == (common.Address{}) {
		return ErrZeroOwner
	}
	if h.Hint != 0 {
		r.mu.RLock()
		defer r.mu.RUnlock()
		ent, ok := r.entities[h.Hint]
		if !ok {
			return fmt.Errorf("%w: hint %d", ErrUnknownEntity, h.Hint)
		}
		if ent.Owner != h.Owner {
			return fmt.Errorf("%w: entity %d belongs to %s", ErrHintOwner, h.Hint, ent.Owner.Hex())
		}
	}
	return nil
}

// HatchOrUpdate creates the owner's entity or overwrites its position, chain
// and pool fields. Health is only set at creation. A nonzero hint targets an
// existing entity instead of deriving one (migration flows); the hint must
// resolve to an entity the notification's owner already holds.
func (r *Registry) HatchOrUpdate(h Hatch) (Entity, bool, error) {
	if h.Owner == (common.Address{}) {
		return Entity{}, false, ErrZeroOwner
	}

	r.mu.Lock()
	id := h.Hint
	if id == 0 {
		id = DeriveID(h.Owner)
	}

	ent, ok := r.entities[id]
	if ok && ent.Owner != h.Owner {
		r.mu.Unlock()
		return Entity{}, false, fmt.Errorf("%w: entity %d belongs to %s", ErrHintOwner, id, ent.Owner.Hex())
	}
	created := false
	if !ok {
		if h.Hint != 0 {
			r.mu.Unlock()
			return Entity{}, false, fmt.Errorf("%w: hint %d", ErrUnknownEntity, h.Hint)
		}
		ent = &Entity{
			ID:           id,
			Owner:        h.Owner,
			Health:       MaxHealth,
			CreatedBlock: r.height(),
		}
		r.entities[id] = ent
		r.byOwner[h.Owner] = id
		created = true
	}

	ent.ChainID = h.ChainID
	ent.PoolID = h.PoolID
	ent.PositionRef = h.PositionRef
	ent.UpdatedAt = r.now()
	out := *ent
	r.mu.Unlock()

	if created {
		r.log.Info("entity hatched",
			zap.Uint64("entity", uint64(id)),
			zap.String("owner", h.Owner.Hex()),
			zap.String("position_ref", h.PositionRef.Hex()),
		)
	} else {
		r.log.Debug("entity updated",
			zap.Uint64("entity", uint64(id)),
			zap.String("position_ref", h.PositionRef.Hex()),
		)
	}

	if r.metrics != nil {
		if created {
			r.metrics.HatchCreated.Inc()
			r.metrics.EntitiesLive.Inc()
		} else {
			r.metrics.HatchUpdated.Inc()
		}
	}

	if r.sink != nil {
		evt := model.HatchEvent{
			EntityID:    uint64(id),
			Owner:       h.Owner.Hex(),
			PositionRef: h.PositionRef.Hex(),
			TickLower:   h.TickLower,
			TickUpper:   h.TickUpper,
			ChainID:     h.ChainID,
			PoolID:      h.PoolID.Hex(),
			Created:     created,
			Timestamp:   out.UpdatedAt.Unix(),
		}
		if err := r.sink.PutHatchEvents([]model.HatchEvent{evt}); err != nil {
			// The registry state is authoritative; sink failures are logged,
			// not propagated into the session.
			r.log.Warn("hatch sink write failed", zap.Error(err))
		}
	}

	return out, created, nil
}

// SetHealth mutates the bounded health attribute. Only the configured updater
// may call it; values above MaxHealth are rejected.
func (r *Registry) SetHealth(caller common.Address, id EntityID, health uint8) error {
	if r.updater == (common.Address{}) {
		return ErrUpdaterUnbound
	}
	if caller != r.updater {
		return fmt.Errorf("%w: %s", ErrNotUpdater, caller.Hex())
	}
	if health > MaxHealth {
		return fmt.Errorf("%w: %d > %d", ErrHealthRange, health, MaxHealth)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	ent, ok := r.entities[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownEntity, id)
	}
	ent.Health = health
	ent.UpdatedAt = r.now()

	if r.metrics != nil {
		r.metrics.HealthUpdates.Inc()
	}
	return nil
}

// Get returns an entity by id.
func (r *Registry) Get(id EntityID) (Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ent, ok := r.entities[id]; ok {
		return *ent, true
	}
	return Entity{}, false
}

// GetByOwner returns an owner's entity.
func (r *Registry) GetByOwner(owner common.Address) (Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.byOwner[owner]; ok {
		if ent, ok := r.entities[id]; ok {
			return *ent, true
		}
	}
	return Entity{}, false
}

// List returns a snapshot of all live entities in unspecified order.
func (r *Registry) List() []Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entity, 0, len(r.entities))
	for _, ent := range r.entities {
		out = append(out, *ent)
	}
	return out
}

// Len returns the number of live entities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}
