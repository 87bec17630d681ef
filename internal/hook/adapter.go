package hook

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityZap/internal/ledger"
	"liquidityZap/internal/registry"
)

// ErrNotLedger rejects hook invocations that did not originate at the ledger.
var ErrNotLedger = errors.New("hook caller is not the ledger")

// Adapter bridges the ledger's position hook to the entity registry. The
// validation half runs in-session and can fail the mint; the hatch itself is
// delivered by the ledger only after the session commits, so a rolled-back
// session never leaves an entity or a sink event behind.
type Adapter struct {
	ledgerAddr common.Address
	registry   *registry.Registry
	chainID    uint64
	log        *zap.Logger
}

func NewAdapter(ledgerAddr common.Address, reg *registry.Registry, chainID uint64, log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{ledgerAddr: ledgerAddr, registry: reg, chainID: chainID, log: log}
}

// ValidateLiquidityAdded runs inside the session. It rejects calls that did
// not originate at the ledger and payloads the registry would refuse, so a
// doomed notification fails the mint instead of the post-commit delivery.
func (a *Adapter) ValidateLiquidityAdded(sender common.Address, key ledger.PoolKey, tickLower, tickUpper int32, _ *big.Int, hookData []byte) error {
	if sender != a.ledgerAddr {
		return fmt.Errorf("%w: %s", ErrNotLedger, sender.Hex())
	}
	if len(hookData) == 0 {
		return nil
	}
	n, err := DecodeNotification(hookData)
	if err != nil {
		return err
	}
	return a.registry.Validate(a.hatch(n, key, tickLower, tickUpper))
}

// AfterLiquidityAdded decodes the payload and hatches or updates the owner's
// entity. The ledger delivers it after the session commits. An empty payload
// is a plain liquidity add with no entity attached.
func (a *Adapter) AfterLiquidityAdded(sender common.Address, key ledger.PoolKey, tickLower, tickUpper int32, liquidity *big.Int, hookData []byte) error {
	if sender != a.ledgerAddr {
		return fmt.Errorf("%w: %s", ErrNotLedger, sender.Hex())
	}
	if len(hookData) == 0 {
		return nil
	}

	n, err := DecodeNotification(hookData)
	if err != nil {
		return err
	}

	ent, created, err := a.registry.HatchOrUpdate(a.hatch(n, key, tickLower, tickUpper))
	if err != nil {
		return fmt.Errorf("hatch entity: %w", err)
	}

	a.log.Debug("hook consumed",
		zap.Uint64("entity", uint64(ent.ID)),
		zap.Bool("created", created),
		zap.String("liquidity", liquidity.String()),
	)
	return nil
}

func (a *Adapter) hatch(n Notification, key ledger.PoolKey, tickLower, tickUpper int32) registry.Hatch {
	return registry.Hatch{
		Owner:       n.Owner,
		Hint:        registry.EntityID(n.EntityHint),
		PositionRef: n.PositionRef,
		TickLower:   tickLower,
		TickUpper:   tickUpper,
		ChainID:     a.chainID,
		PoolID:      key.ID(),
	}
}
