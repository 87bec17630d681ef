package hook

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"liquidityZap/internal/ledger"
	"liquidityZap/internal/registry"
)

var (
	ledgerAddr = common.HexToAddress("0x00000000000000000000000000000000005a4101")
	owner      = common.HexToAddress("0x00000000000000000000000000000000000b0002")
	updater    = common.HexToAddress("0x00000000000000000000000000000000000b0003")
)

func testKey() ledger.PoolKey {
	return ledger.PoolKey{
		Currency0:   ledger.Currency{Address: common.HexToAddress("0x00000000000000000000000000000000000a0001")},
		Currency1:   ledger.Currency{Address: common.HexToAddress("0x00000000000000000000000000000000000a0002")},
		Fee:         500,
		TickSpacing: 10,
	}
}

func TestAdapterRejectsNonLedger(t *testing.T) {
	reg := registry.New(registry.Config{Updater: updater}, nil)
	a := NewAdapter(ledgerAddr, reg, 1, nil)

	err := a.AfterLiquidityAdded(owner, testKey(), -600, 600, big.NewInt(1), []byte("{}"))
	if !errors.Is(err, ErrNotLedger) {
		t.Fatalf("expected ErrNotLedger, got %v", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("rejected call reached the registry")
	}
}

func TestAdapterHatchesFromNotification(t *testing.T) {
	reg := registry.New(registry.Config{Updater: updater}, nil)
	a := NewAdapter(ledgerAddr, reg, 56, nil)

	ref := common.HexToHash("0xaa")
	data, err := Notification{Owner: owner, PositionRef: ref}.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if err := a.AfterLiquidityAdded(ledgerAddr, testKey(), -600, 600, big.NewInt(1), data); err != nil {
		t.Fatalf("hook: %v", err)
	}

	ent, ok := reg.GetByOwner(owner)
	if !ok {
		t.Fatalf("entity not hatched")
	}
	if ent.PositionRef != ref || ent.ChainID != 56 {
		t.Fatalf("entity fields mismatch: %+v", ent)
	}
	if ent.PoolID != testKey().ID() {
		t.Fatalf("pool id mismatch")
	}
}

func TestAdapterIgnoresEmptyPayload(t *testing.T) {
	reg := registry.New(registry.Config{Updater: updater}, nil)
	a := NewAdapter(ledgerAddr, reg, 1, nil)

	if err := a.AfterLiquidityAdded(ledgerAddr, testKey(), -600, 600, big.NewInt(1), nil); err != nil {
		t.Fatalf("empty payload: %v", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("empty payload hatched an entity")
	}
}

func TestAdapterRejectsMalformedPayload(t *testing.T) {
	reg := registry.New(registry.Config{Updater: updater}, nil)
	a := NewAdapter(ledgerAddr, reg, 1, nil)

	if err := a.AfterLiquidityAdded(ledgerAddr, testKey(), -600, 600, big.NewInt(1), []byte("not json")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestAdapterValidateRejectsDoomedHatch(t *testing.T) {
	reg := registry.New(registry.Config{Updater: updater}, nil)
	a := NewAdapter(ledgerAddr, reg, 1, nil)

	if err := a.ValidateLiquidityAdded(owner, testKey(), -600, 600, big.NewInt(1), []byte("{}")); !errors.Is(err, ErrNotLedger) {
		t.Fatalf("expected ErrNotLedger, got %v", err)
	}

	// A hint with no matching entity is refused before anything is committed.
	data, err := Notification{Owner: owner, EntityHint: 42, PositionRef: common.HexToHash("0xaa")}.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := a.ValidateLiquidityAdded(ledgerAddr, testKey(), -600, 600, big.NewInt(1), data); !errors.Is(err, registry.ErrUnknownEntity) {
		t.Fatalf("expected ErrUnknownEntity, got %v", err)
	}

	// A hint naming another owner's entity is refused as well.
	ent, _, err := reg.HatchOrUpdate(registry.Hatch{Owner: owner, PositionRef: common.HexToHash("0xaa")})
	if err != nil {
		t.Fatalf("hatch: %v", err)
	}
	data, err = Notification{Owner: updater, EntityHint: uint64(ent.ID), PositionRef: common.HexToHash("0xbb")}.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := a.ValidateLiquidityAdded(ledgerAddr, testKey(), -600, 600, big.NewInt(1), data); !errors.Is(err, registry.ErrHintOwner) {
		t.Fatalf("expected ErrHintOwner, got %v", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("validation mutated the registry")
	}
}

func TestAdapterValidateAcceptsWithoutMutating(t *testing.T) {
	reg := registry.New(registry.Config{Updater: updater}, nil)
	a := NewAdapter(ledgerAddr, reg, 1, nil)

	data, err := Notification{Owner: owner, PositionRef: common.HexToHash("0xaa")}.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := a.ValidateLiquidityAdded(ledgerAddr, testKey(), -600, 600, big.NewInt(1), data); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("validation hatched an entity")
	}
	if err := a.ValidateLiquidityAdded(ledgerAddr, testKey(), -600, 600, big.NewInt(1), nil); err != nil {
		t.Fatalf("empty payload: %v", err)
	}
}

func TestNotificationIgnoresUnknownFields(t *testing.T) {
	raw := []byte(`{"owner":"0x00000000000000000000000000000000000b0002","entity_hint":0,"position_ref":"0x00000000000000000000000000000000000000000000000000000000000000aa","tick_lower":-10,"tick_upper":10,"future_field":true}`)
	n, err := DecodeNotification(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n.Owner != owner || n.TickLower != -10 || n.TickUpper != 10 {
		t.Fatalf("decoded notification mismatch: %+v", n)
	}
}
