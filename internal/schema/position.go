package schema

import "time"

// PositionSide is the direction a position is held.
type PositionSide string

const (
	SideLong  PositionSide = "long"
	SideShort PositionSide = "short"
)

// Sign returns +1 for long and -1 for short.
func (s PositionSide) Sign() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

// PositionState tracks the lifecycle of a position.
type PositionState string

const (
	PositionStatePendingEntry PositionState = "pending_entry"
	PositionStateActive       PositionState = "active"
	PositionStateTP1Hit       PositionState = "tp1_hit"
	PositionStateTP2Hit       PositionState = "tp2_hit"
	PositionStateTP3Hit       PositionState = "tp3_hit"
	PositionStateClosed       PositionState = "closed"
	PositionStateCancelled    PositionState = "cancelled"
)

// Terminal reports whether no further transition is permitted.
func (s PositionState) Terminal() bool {
	return s == PositionStateClosed || s == PositionStateCancelled
}

// TPLevel returns 1..3 for take-profit states, 0 otherwise.
func (s PositionState) TPLevel() int {
	switch s {
	case PositionStateTP1Hit:
		return 1
	case PositionStateTP2Hit:
		return 2
	case PositionStateTP3Hit:
		return 3
	default:
		return 0
	}
}

// TPState returns the state for a ladder level 1..3.
func TPState(level int) PositionState {
	switch level {
	case 1:
		return PositionStateTP1Hit
	case 2:
		return PositionStateTP2Hit
	case 3:
		return PositionStateTP3Hit
	default:
		return ""
	}
}

// ExitReason records why a position reached a terminal state.
type ExitReason string

const (
	ExitReasonTakeProfit  ExitReason = "take_profit"
	ExitReasonStopLoss    ExitReason = "stop_loss"
	ExitReasonManualClose ExitReason = "manual_close"
	ExitReasonCancelled   ExitReason = "cancelled"
)

// PositionRecord is the engine's view of a per-symbol position.
// At most one non-terminal record exists per symbol.
type PositionRecord struct {
	ID       string        `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Symbol   string        `gorm:"index;type:varchar(32)" json:"symbol"`
	Side     PositionSide  `gorm:"type:varchar(8)" json:"side"`
	State    PositionState `gorm:"type:varchar(16);index" json:"state"`
	Quantity float64       `json:"quantity"`

	EntryPrice  float64 `json:"entry_price"`
	CurrentStop float64 `json:"current_stop"`
	TP1Price    float64 `json:"tp1_price"`
	TP2Price    float64 `json:"tp2_price"`
	TP3Price    float64 `json:"tp3_price"`

	// HighestTP is the highest tpK_hit level reached so far (0 = none).
	HighestTP int `json:"highest_tp"`

	// LastPrice and UnrealizedPnL are live projections, not authoritative.
	LastPrice     float64 `json:"last_price"`
	UnrealizedPnL float64 `gorm:"column:unrealized_pnl" json:"unrealized_pnl"`

	ExitPrice  float64    `json:"exit_price,omitempty"`
	ExitReason ExitReason `gorm:"type:varchar(16)" json:"exit_reason,omitempty"`

	// Advisory annotation for display/audit. Never read back into
	// transition decisions; absent when the external process failed.
	AdvisoryReasoning  string   `gorm:"type:text" json:"advisory_reasoning,omitempty"`
	AdvisoryConfidence *float64 `json:"advisory_confidence,omitempty"`

	AlertID   string `gorm:"type:varchar(36)" json:"alert_id,omitempty"`
	AccountID string `gorm:"type:varchar(36)" json:"account_id,omitempty"`

	OpenedAt  time.Time  `json:"opened_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (PositionRecord) TableName() string {
	return "positions"
}

// RecomputePnL refreshes the live projection from the latest price.
func (p *PositionRecord) RecomputePnL(last float64) {
	p.LastPrice = last
	p.UnrealizedPnL = (last - p.EntryPrice) * p.Quantity * p.Side.Sign()
}

// TPPrice returns the ladder price for level 1..3, 0 when unset.
func (p *PositionRecord) TPPrice(level int) float64 {
	switch level {
	case 1:
		return p.TP1Price
	case 2:
		return p.TP2Price
	case 3:
		return p.TP3Price
	default:
		return 0
	}
}
