package engine

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Operation discriminators carried in the session payload. The ledger hands
// the payload back opaque; the router dispatches on Kind.
const (
	kindZapNative     = "zap_native"
	kindProvidePair   = "provide_pair"
	kindProvideSingle = "provide_single"
)

// sessionPayload is the discriminated union for the three operation variants.
// Amounts travel as decimal strings; only the fields the Kind needs are set.
type sessionPayload struct {
	Kind string `json:"kind"`

	AmountIn string `json:"amount_in,omitempty"`
	Amount0  string `json:"amount0,omitempty"`
	Amount1  string `json:"amount1,omitempty"`
	MinOut0  string `json:"min_out0,omitempty"`
	MinOut1  string `json:"min_out1,omitempty"`

	TickLower    int32 `json:"tick_lower,omitempty"`
	TickUpper    int32 `json:"tick_upper,omitempty"`
	UseCurrency0 bool  `json:"use_currency0,omitempty"`

	Payer      common.Address `json:"payer"`
	Recipient  common.Address `json:"recipient"`
	EntityHint uint64         `json:"entity_hint,omitempty"`
	Salt       common.Hash    `json:"salt"`
}

func (p sessionPayload) encode() ([]byte, error) {
	return json.Marshal(p)
}

func decodePayload(data []byte) (sessionPayload, error) {
	var p sessionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return sessionPayload{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	switch p.Kind {
	case kindZapNative, kindProvidePair, kindProvideSingle:
	default:
		return sessionPayload{}, fmt.Errorf("%w: unknown kind %q", ErrBadPayload, p.Kind)
	}
	return p, nil
}

func parseAmount(s, field string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %s %q", ErrBadPayload, field, s)
	}
	return v, nil
}

// sessionResult is the encoded callback return value.
type sessionResult struct {
	Liquidity   string      `json:"liquidity"`
	PositionRef common.Hash `json:"position_ref"`
}

// Result is what each operation hands back to its caller.
type Result struct {
	Liquidity   *big.Int
	PositionRef common.Hash
}

func encodeResult(liquidity *big.Int, ref common.Hash) ([]byte, error) {
	return json.Marshal(sessionResult{Liquidity: liquidity.String(), PositionRef: ref})
}

func decodeResult(data []byte) (Result, error) {
	var r sessionResult
	if err := json.Unmarshal(data, &r); err != nil {
		return Result{}, fmt.Errorf("decode session result: %w", err)
	}
	liq, ok := new(big.Int).SetString(r.Liquidity, 10)
	if !ok {
		return Result{}, fmt.Errorf("decode session result: bad liquidity %q", r.Liquidity)
	}
	return Result{Liquidity: liq, PositionRef: r.PositionRef}, nil
}
