package schema

import "time"

// AlertAction is the intent carried by an inbound strategy alert.
type AlertAction string

const (
	ActionBuy        AlertAction = "buy"
	ActionSell       AlertAction = "sell"
	ActionClose      AlertAction = "close"
	ActionCloseLong  AlertAction = "close_long"
	ActionCloseShort AlertAction = "close_short"
)

// IsAvailable reports whether the action is a known value.
func (a AlertAction) IsAvailable() bool {
	switch a {
	case ActionBuy, ActionSell, ActionClose, ActionCloseLong, ActionCloseShort:
		return true
	default:
		return false
	}
}

// IsEntry reports whether the action opens a new position.
func (a AlertAction) IsEntry() bool {
	return a == ActionBuy || a == ActionSell
}

// IsClose reports whether the action closes an existing position.
func (a AlertAction) IsClose() bool {
	return a == ActionClose || a == ActionCloseLong || a == ActionCloseShort
}

// Side returns the position side an entry action opens.
func (a AlertAction) Side() PositionSide {
	switch a {
	case ActionBuy:
		return SideLong
	case ActionSell:
		return SideShort
	default:
		return ""
	}
}

// AlertStatus tracks the lifecycle of an alert record.
type AlertStatus string

const (
	AlertStatusReceived   AlertStatus = "received"
	AlertStatusProcessing AlertStatus = "processing"
	AlertStatusExecuted   AlertStatus = "executed"
	AlertStatusFailed     AlertStatus = "failed"
	AlertStatusCancelled  AlertStatus = "cancelled"
)

// CanAdvanceTo reports whether next is a legal forward transition.
// Alert statuses only move forward: received -> processing -> terminal.
func (s AlertStatus) CanAdvanceTo(next AlertStatus) bool {
	switch s {
	case AlertStatusReceived:
		return next == AlertStatusProcessing || next == AlertStatusExecuted ||
			next == AlertStatusFailed || next == AlertStatusCancelled
	case AlertStatusProcessing:
		return next == AlertStatusExecuted || next == AlertStatusFailed || next == AlertStatusCancelled
	default:
		return false
	}
}

// AlertRecord is a validated, durably stored strategy alert.
type AlertRecord struct {
	ID         string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ReceivedAt time.Time   `gorm:"index" json:"received_at"`
	Symbol     string      `gorm:"index;type:varchar(32)" json:"symbol"`
	Action     AlertAction `gorm:"type:varchar(16)" json:"action"`
	Quantity   float64     `json:"quantity"`
	OrderType  string      `gorm:"type:varchar(16)" json:"order_type"`
	Price      float64     `json:"price"`
	StopLoss   float64     `json:"stop_loss"`
	TP1        float64     `json:"tp1"`
	TP2        float64     `json:"tp2"`
	TP3        float64     `json:"tp3"`
	Comment    string      `gorm:"type:text" json:"comment"`

	// Normalized bar fields from the originating candle, when supplied.
	BarOpen   float64 `json:"bar_open"`
	BarHigh   float64 `json:"bar_high"`
	BarLow    float64 `json:"bar_low"`
	BarClose  float64 `json:"bar_close"`
	BarVolume float64 `json:"bar_volume"`

	AccountID string `gorm:"type:varchar(36)" json:"account_id,omitempty"`

	Status        AlertStatus `gorm:"type:varchar(16);index" json:"status"`
	ErrorMessage  string      `gorm:"type:text" json:"error_message,omitempty"`
	LinkedOrderID string      `gorm:"type:varchar(36)" json:"linked_order_id,omitempty"`
	RawPayload    string      `gorm:"type:text" json:"raw_payload"`
	DedupKey      string      `gorm:"uniqueIndex;type:varchar(64)" json:"dedup_key"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AlertRecord) TableName() string {
	return "alerts"
}

// TakeProfits returns the non-zero levels of the ladder in order.
func (a AlertRecord) TakeProfits() []float64 {
	tps := make([]float64, 0, 3)
	for _, tp := range [3]float64{a.TP1, a.TP2, a.TP3} {
		if tp > 0 {
			tps = append(tps, tp)
		}
	}
	return tps
}
