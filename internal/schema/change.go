package schema

import "time"

// EntityKind identifies which collection a change notification refers to.
type EntityKind string

const (
	EntityAlert    EntityKind = "alert"
	EntityPosition EntityKind = "position"
	EntityTradeLog EntityKind = "tradeLog"
)

// ChangeType identifies the mutation kind. Observers treat notifications
// as re-fetch triggers, not deltas.
type ChangeType string

const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
)

// ChangeEvent is the unit fanned out to external observers.
type ChangeEvent struct {
	Kind     EntityKind `json:"entity_kind"`
	EntityID string     `json:"entity_id"`
	Change   ChangeType `json:"change_type"`
	At       time.Time  `json:"at"`
}

// Tick is a single price observation from the market-data collaborator.
type Tick struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	At     time.Time `json:"timestamp"`
}
