package engine

import (
	"errors"
	"fmt"
	"math/big"

	"liquidityZap/internal/ledger"
)

var (
	ErrZeroAmount           = errors.New("amount must be positive")
	ErrZeroRecipient        = errors.New("recipient is the zero address")
	ErrUnauthorizedCallback = errors.New("callback sender is not the ledger")
	ErrReentrantCallback    = errors.New("callback re-entered")
	ErrBadPayload           = errors.New("malformed session payload")
	ErrZeroLiquidity        = errors.New("computed liquidity is zero")
	ErrEmptyRange           = errors.New("tick range empty after snapping")

	// ErrDeltaInvariant marks a settlement routine observing a delta sign the
	// operation it just performed cannot produce. Not a caller error; the
	// session aborts.
	ErrDeltaInvariant = errors.New("delta sign violates operation invariant")
)

// ShortfallError reports a realized conversion output below the caller's
// floor. Carries both sides so the caller can re-quote and resubmit.
type ShortfallError struct {
	Currency ledger.Currency
	Floor    *big.Int
	Actual   *big.Int
}

func (e *ShortfallError) Error() string {
	return fmt.Sprintf("output shortfall for %s: floor %v, realized %v", e.Currency, e.Floor, e.Actual)
}

// IsShortfall reports whether err is a shortfall and returns it.
func IsShortfall(err error) (*ShortfallError, bool) {
	var se *ShortfallError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
