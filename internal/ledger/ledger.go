package ledger

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrPoolExists            = errors.New("pool already initialized")
	ErrPoolNotInitialized    = errors.New("pool not initialized")
	ErrCurrencyOrder         = errors.New("currencies not sorted")
	ErrInvalidFee            = errors.New("fee exceeds maximum")
	ErrInvalidSqrtPrice      = errors.New("sqrt price out of bounds")
	ErrInvalidTickRange      = errors.New("invalid tick range")
	ErrUnalignedTick         = errors.New("tick not a multiple of spacing")
	ErrNonZeroDelta          = errors.New("session closed with unsettled delta")
	ErrNoActiveSession       = errors.New("no active session")
	ErrSessionActive         = errors.New("session already active")
	ErrNotSynced             = errors.New("settle without prior sync")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientLiquidity = errors.New("insufficient pool liquidity")
	ErrUnknownHook           = errors.New("pool hook not registered")
)

// Session is the mutating surface available inside an Unlock callback. Every
// delta a session opens must be driven to zero before the callback returns.
type Session interface {
	// Swap converts an exact input amount in the given pool. zeroForOne sells
	// currency0 for currency1.
	Swap(key PoolKey, zeroForOne bool, amountIn *big.Int) (BalanceDelta, error)

	// ModifyLiquidity applies a liquidity delta to the position identified by
	// (session owner, tickLower, tickUpper, salt). hookData is validated by
	// the pool's hook in-session and delivered to it after the session
	// commits.
	ModifyLiquidity(key PoolKey, tickLower, tickUpper int32, liquidityDelta *big.Int, salt common.Hash, hookData []byte) (BalanceDelta, error)

	// Sync records the ledger's current reserve of a currency. A payment into
	// the ledger must be bracketed by Sync and Settle or it is not credited.
	Sync(c Currency)

	// Pay moves amount of c from the payer's balance into the ledger reserve.
	// Requires a prior Sync for c.
	Pay(c Currency, from common.Address, amount *big.Int) error

	// Settle credits the session's delta with everything paid in since the
	// last Sync of c and returns the credited amount.
	Settle(c Currency) (*big.Int, error)

	// Take withdraws amount of c from the ledger to the recipient, debiting
	// the session's delta. The ledger is the source of truth for entitlement.
	Take(c Currency, to common.Address, amount *big.Int) error

	// Delta returns the session's current net obligation for c.
	Delta(c Currency) *big.Int
}

// SessionCallback is the single deferred re-entry point a locker exposes. The
// ledger invokes it with its own address so the callee can verify origin.
type SessionCallback interface {
	UnlockCallback(sender common.Address, s Session, payload []byte) ([]byte, error)
}

// PositionHook observes liquidity adds on pools that name it. Validation runs
// inside the session; delivery happens only after the session's deltas settle,
// so a rolled-back session produces no hook side effects.
type PositionHook interface {
	// ValidateLiquidityAdded is called in-session, right after the add is
	// applied. An error fails the add and unwinds the session.
	ValidateLiquidityAdded(sender common.Address, key PoolKey, tickLower, tickUpper int32, liquidity *big.Int, hookData []byte) error

	// AfterLiquidityAdded is delivered once per validated add after the
	// session commits. The session cannot be unwound at this point; a
	// delivery error is logged by the ledger and dropped.
	AfterLiquidityAdded(sender common.Address, key PoolKey, tickLower, tickUpper int32, liquidity *big.Int, hookData []byte) error
}

// Ledger is the singleton accounting system the engine operates against.
type Ledger interface {
	// Address identifies the ledger; callbacks check invocation origin
	// against it.
	Address() common.Address

	// ReadPrice returns the current price snapshot for a pool.
	ReadPrice(key PoolKey) (PriceState, error)

	// Unlock opens the single global session for locker, invokes the
	// callback, and verifies every delta nets to zero. Any error unwinds
	// all effects.
	Unlock(locker common.Address, cb SessionCallback, payload []byte) ([]byte, error)
}
