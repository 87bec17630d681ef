package ledger

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// FeeMax caps pool fees at 10% (fees are expressed in parts per million).
const FeeMax uint32 = 100_000

// Currency identifies an asset by address. The zero address is the native asset.
type Currency struct {
	Address common.Address
}

// Native is the chain's native asset.
var Native = Currency{}

func (c Currency) IsNative() bool {
	return c.Address == (common.Address{})
}

func (c Currency) String() string {
	if c.IsNative() {
		return "native"
	}
	return c.Address.Hex()
}

// Less orders currencies by address bytes.
func (c Currency) Less(other Currency) bool {
	return c.Address.Cmp(other.Address) < 0
}

// PoolKey identifies a pool: ordered currency pair, fee, tick granularity, and
// an optional hook address invoked after position mutations. Immutable.
type PoolKey struct {
	Currency0   Currency
	Currency1   Currency
	Fee         uint32
	TickSpacing int32
	Hook        common.Address
}

var poolDomain = []byte("zap.pool.v1")

// ID derives the pool identity with a domain-separated hash over all fields.
func (k PoolKey) ID() common.Hash {
	buf := make([]byte, 0, len(poolDomain)+20+20+4+4+20)
	buf = append(buf, poolDomain...)
	buf = append(buf, k.Currency0.Address.Bytes()...)
	buf = append(buf, k.Currency1.Address.Bytes()...)
	buf = binary.BigEndian.AppendUint32(buf, k.Fee)
	buf = binary.BigEndian.AppendUint32(buf, uint32(k.TickSpacing))
	buf = append(buf, k.Hook.Bytes()...)
	return crypto.Keccak256Hash(buf)
}

// PriceState is a point-in-time snapshot of a pool's price. It is not stable
// across calls within a session; re-read after any conversion.
type PriceState struct {
	SqrtPriceX96 *big.Int
	Tick         int32
}

// BalanceDelta is the signed per-currency obligation produced by one ledger
// operation. Positive means the ledger owes the caller; negative means the
// caller owes the ledger.
type BalanceDelta struct {
	Amount0 *big.Int
	Amount1 *big.Int
}

func NewBalanceDelta(amount0, amount1 *big.Int) BalanceDelta {
	return BalanceDelta{
		Amount0: new(big.Int).Set(amount0),
		Amount1: new(big.Int).Set(amount1),
	}
}

func ZeroBalanceDelta() BalanceDelta {
	return BalanceDelta{Amount0: big.NewInt(0), Amount1: big.NewInt(0)}
}

func (d BalanceDelta) Add(other BalanceDelta) BalanceDelta {
	return BalanceDelta{
		Amount0: new(big.Int).Add(d.Amount0, other.Amount0),
		Amount1: new(big.Int).Add(d.Amount1, other.Amount1),
	}
}

func (d BalanceDelta) IsZero() bool {
	return d.Amount0.Sign() == 0 && d.Amount1.Sign() == 0
}
