package model

// EntityRecord is the persisted form of a tracked entity ("pet").
type EntityRecord struct {
	ID           uint64 `json:"id"`
	Owner        string `json:"owner"`
	Health       uint8  `json:"health"`
	CreatedBlock uint64 `json:"created_block"`
	UpdatedAt    int64  `json:"updated_at"`
	ChainID      uint64 `json:"chain_id"`
	PoolID       string `json:"pool_id"`
	PositionRef  string `json:"position_ref"`
}

// HatchEvent records one notification consumed by the registry.
type HatchEvent struct {
	EntityID    uint64 `json:"entity_id"`
	Owner       string `json:"owner"`
	PositionRef string `json:"position_ref"`
	TickLower   int32  `json:"tick_lower"`
	TickUpper   int32  `json:"tick_upper"`
	ChainID     uint64 `json:"chain_id"`
	PoolID      string `json:"pool_id"`
	Created     bool   `json:"created"`
	Timestamp   int64  `json:"timestamp"`
}
