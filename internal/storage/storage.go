package storage

import "liquidityZap/internal/model"

// Sink defines a destination for registry hatch events.
type Sink interface {
	PutHatchEvents(events []model.HatchEvent) error
}
