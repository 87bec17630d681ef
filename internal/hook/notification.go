package hook

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Notification is the side-channel payload carried through a liquidity add.
// Unknown fields in the encoded form are ignored so old readers tolerate
// newer payloads.
type Notification struct {
	Owner       common.Address `json:"owner"`
	EntityHint  uint64         `json:"entity_hint"`
	PositionRef common.Hash    `json:"position_ref"`
	TickLower   int32          `json:"tick_lower"`
	TickUpper   int32          `json:"tick_upper"`
}

func (n Notification) Encode() ([]byte, error) {
	return json.Marshal(n)
}

func DecodeNotification(data []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return Notification{}, fmt.Errorf("decode notification: %w", err)
	}
	return n, nil
}
