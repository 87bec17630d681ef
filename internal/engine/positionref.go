package engine

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var positionRefDomain = []byte("zap.position.ref.v1")

// PositionRef derives the stable reference for a minted position. It doubles
// as the ledger position salt, so positions minted for different recipients
// or with different salts never collide even on identical ranges.
func PositionRef(recipient common.Address, tickLower, tickUpper int32, salt common.Hash) common.Hash {
	buf := make([]byte, 0, len(positionRefDomain)+20+4+4+32)
	buf = append(buf, positionRefDomain...)
	buf = append(buf, recipient.Bytes()...)
	buf = appendInt32(buf, tickLower)
	buf = appendInt32(buf, tickUpper)
	buf = append(buf, salt.Bytes()...)
	return crypto.Keccak256Hash(buf)
}

func appendInt32(buf []byte, v int32) []byte {
	return append(buf, byte(uint32(v)>>24), byte(uint32(v)>>16), byte(uint32(v)>>8), byte(uint32(v)))
}
