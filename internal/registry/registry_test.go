package registry

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	owner   = common.HexToAddress("0x00000000000000000000000000000000000b0002")
	updater = common.HexToAddress("0x00000000000000000000000000000000000b0003")
	poolID  = common.HexToHash("0x01")
	refA    = common.HexToHash("0xaa")
	refB    = common.HexToHash("0xbb")
)

func testRegistry() *Registry {
	return New(Config{Updater: updater}, nil)
}

func TestDeriveIDDeterministic(t *testing.T) {
	a := DeriveID(owner)
	b := DeriveID(owner)
	if a != b {
		t.Fatalf("DeriveID not deterministic: %d != %d", a, b)
	}
	other := DeriveID(updater)
	if a == other {
		t.Fatalf("distinct owners derived the same id %d", a)
	}
}

func TestHatchCreatesWithDefaultHealth(t *testing.T) {
	r := testRegistry()
	ent, created, err := r.HatchOrUpdate(Hatch{Owner: owner, PositionRef: refA, ChainID: 1, PoolID: poolID})
	if err != nil {
		t.Fatalf("hatch: %v", err)
	}
	if !created {
		t.Fatalf("expected creation")
	}
	if ent.ID != DeriveID(owner) {
		t.Fatalf("entity id %d does not match derived id", ent.ID)
	}
	if ent.Health != MaxHealth {
		t.Fatalf("new entity health %d, want %d", ent.Health, MaxHealth)
	}
	if ent.PositionRef != refA {
		t.Fatalf("position ref %s, want %s", ent.PositionRef.Hex(), refA.Hex())
	}
}

func TestHatchIsIdempotent(t *testing.T) {
	r := testRegistry()
	if _, _, err := r.HatchOrUpdate(Hatch{Owner: owner, PositionRef: refA, ChainID: 1, PoolID: poolID}); err != nil {
		t.Fatalf("first hatch: %v", err)
	}
	if err := r.SetHealth(updater, DeriveID(owner), 40); err != nil {
		t.Fatalf("set health: %v", err)
	}

	ent, created, err := r.HatchOrUpdate(Hatch{Owner: owner, PositionRef: refB, ChainID: 2, PoolID: poolID})
	if err != nil {
		t.Fatalf("second hatch: %v", err)
	}
	if created {
		t.Fatalf("second hatch minted a new entity")
	}
	if r.Len() != 1 {
		t.Fatalf("expected one entity, have %d", r.Len())
	}
	if ent.PositionRef != refB || ent.ChainID != 2 {
		t.Fatalf("second hatch did not overwrite position fields: %+v", ent)
	}
	if ent.Health != 40 {
		t.Fatalf("hatch reset health to %d", ent.Health)
	}
}

func TestHatchRejectsZeroOwner(t *testing.T) {
	r := testRegistry()
	if _, _, err := r.HatchOrUpdate(Hatch{PositionRef: refA}); !errors.Is(err, ErrZeroOwner) {
		t.Fatalf("expected ErrZeroOwner, got %v", err)
	}
}

func TestHatchHintTargetsExisting(t *testing.T) {
	r := testRegistry()
	ent, _, err := r.HatchOrUpdate(Hatch{Owner: owner, PositionRef: refA, ChainID: 1, PoolID: poolID})
	if err != nil {
		t.Fatalf("hatch: %v", err)
	}

	got, created, err := r.HatchOrUpdate(Hatch{Owner: owner, Hint: ent.ID, PositionRef: refB, ChainID: 7, PoolID: poolID})
	if err != nil {
		t.Fatalf("hinted hatch: %v", err)
	}
	if created || got.ID != ent.ID || got.ChainID != 7 {
		t.Fatalf("hinted hatch mismatch: created=%v %+v", created, got)
	}

	if _, _, err := r.HatchOrUpdate(Hatch{Owner: owner, Hint: ent.ID + 1, PositionRef: refB}); !errors.Is(err, ErrUnknownEntity) {
		t.Fatalf("expected ErrUnknownEntity for unknown hint, got %v", err)
	}
}

func TestHatchHintRequiresMatchingOwner(t *testing.T) {
	r := testRegistry()
	ent, _, err := r.HatchOrUpdate(Hatch{Owner: owner, PositionRef: refA, ChainID: 1, PoolID: poolID})
	if err != nil {
		t.Fatalf("hatch: %v", err)
	}

	// A hint naming someone else's entity must not overwrite it.
	if _, _, err := r.HatchOrUpdate(Hatch{Owner: updater, Hint: ent.ID, PositionRef: refB}); !errors.Is(err, ErrHintOwner) {
		t.Fatalf("expected ErrHintOwner, got %v", err)
	}
	got, _ := r.Get(ent.ID)
	if got.PositionRef != refA || got.Owner != owner {
		t.Fatalf("cross-owner hint mutated the entity: %+v", got)
	}
}

func TestValidateMatchesHatchRules(t *testing.T) {
	r := testRegistry()
	if err := r.Validate(Hatch{PositionRef: refA}); !errors.Is(err, ErrZeroOwner) {
		t.Fatalf("expected ErrZeroOwner, got %v", err)
	}
	if err := r.Validate(Hatch{Owner: owner, Hint: 99}); !errors.Is(err, ErrUnknownEntity) {
		t.Fatalf("expected ErrUnknownEntity, got %v", err)
	}

	ent, _, err := r.HatchOrUpdate(Hatch{Owner: owner, PositionRef: refA})
	if err != nil {
		t.Fatalf("hatch: %v", err)
	}
	if err := r.Validate(Hatch{Owner: updater, Hint: ent.ID}); !errors.Is(err, ErrHintOwner) {
		t.Fatalf("expected ErrHintOwner, got %v", err)
	}
	if err := r.Validate(Hatch{Owner: owner, Hint: ent.ID, PositionRef: refB}); err != nil {
		t.Fatalf("valid hatch rejected: %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("Validate mutated the registry")
	}
}

func TestSetHealthGating(t *testing.T) {
	r := testRegistry()
	ent, _, err := r.HatchOrUpdate(Hatch{Owner: owner, PositionRef: refA})
	if err != nil {
		t.Fatalf("hatch: %v", err)
	}

	if err := r.SetHealth(owner, ent.ID, 50); !errors.Is(err, ErrNotUpdater) {
		t.Fatalf("expected ErrNotUpdater, got %v", err)
	}
	if err := r.SetHealth(updater, ent.ID, MaxHealth+1); !errors.Is(err, ErrHealthRange) {
		t.Fatalf("expected ErrHealthRange, got %v", err)
	}
	if err := r.SetHealth(updater, ent.ID+1, 50); !errors.Is(err, ErrUnknownEntity) {
		t.Fatalf("expected ErrUnknownEntity, got %v", err)
	}

	if err := r.SetHealth(updater, ent.ID, 0); err != nil {
		t.Fatalf("set health: %v", err)
	}
	got, ok := r.Get(ent.ID)
	if !ok || got.Health != 0 {
		t.Fatalf("health not applied: %+v", got)
	}
}

func TestSetHealthRequiresConfiguredUpdater(t *testing.T) {
	r := New(Config{}, nil)
	if err := r.SetHealth(updater, 1, 10); !errors.Is(err, ErrUpdaterUnbound) {
		t.Fatalf("expected ErrUpdaterUnbound, got %v", err)
	}
}

func TestGetByOwner(t *testing.T) {
	r := testRegistry()
	if _, ok := r.GetByOwner(owner); ok {
		t.Fatalf("unexpected entity before hatch")
	}
	if _, _, err := r.HatchOrUpdate(Hatch{Owner: owner, PositionRef: refA}); err != nil {
		t.Fatalf("hatch: %v", err)
	}
	ent, ok := r.GetByOwner(owner)
	if !ok || ent.Owner != owner {
		t.Fatalf("lookup by owner failed: %+v ok=%v", ent, ok)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	r := testRegistry()
	now := time.Now()
	r.now = func() time.Time { return now }

	if _, _, err := r.HatchOrUpdate(Hatch{Owner: owner, PositionRef: refA, ChainID: 3, PoolID: poolID}); err != nil {
		t.Fatalf("hatch: %v", err)
	}

	store := NewSnapshotStore(filepath.Join(t.TempDir(), "registry.json"), true)
	if err := store.Save(r.List()); err != nil {
		t.Fatalf("save: %v", err)
	}

	snap, found, err := store.Load()
	if err != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, err)
	}

	restored := testRegistry()
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	ent, ok := restored.Get(DeriveID(owner))
	if !ok {
		t.Fatalf("entity missing after restore")
	}
	if ent.PositionRef != refA || ent.ChainID != 3 || ent.Health != MaxHealth {
		t.Fatalf("restored entity mismatch: %+v", ent)
	}
}

func TestSnapshotDisabled(t *testing.T) {
	store := NewSnapshotStore("", false)
	if err := store.Save(nil); err != nil {
		t.Fatalf("disabled save: %v", err)
	}
	if _, found, err := store.Load(); found || err != nil {
		t.Fatalf("disabled load: found=%v err=%v", found, err)
	}
}
