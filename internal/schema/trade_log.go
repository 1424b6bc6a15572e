package schema

import "time"

// TradeLogRecord is an immutable record of a completed trade.
// Created exactly once when a position reaches a terminal state; never mutated.
type TradeLogRecord struct {
	ID         string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PositionID string       `gorm:"uniqueIndex;type:varchar(36)" json:"position_id"`
	Symbol     string       `gorm:"index;type:varchar(32)" json:"symbol"`
	Side       PositionSide `gorm:"type:varchar(8)" json:"side"`

	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	Quantity   float64 `json:"quantity"`
	NetPnL     float64 `gorm:"column:net_pnl" json:"net_pnl"`

	ExitReason ExitReason `gorm:"type:varchar(16);index" json:"exit_reason"`

	// HighestTPHit is "tp1".."tp3", empty when no ladder level was reached.
	HighestTPHit string `gorm:"type:varchar(8)" json:"highest_tp_hit,omitempty"`

	ExitTime  time.Time `gorm:"index" json:"exit_time"`
	AccountID string    `gorm:"type:varchar(36)" json:"account_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (TradeLogRecord) TableName() string {
	return "trade_log"
}
