package ingest

import (
	"encoding/json"
	"strconv"

	"github.com/yanun0323/decimal"
)

// RawAlert mirrors the inbound webhook payload. Numeric fields arrive
// as JSON numbers or quoted strings depending on the upstream strategy
// template, so they decode through decimal first.
type RawAlert struct {
	Symbol     string          `json:"symbol"`
	Action     string          `json:"action"`
	Quantity   decimal.Decimal `json:"quantity"`
	OrderType  string          `json:"order_type"`
	Price      decimal.Decimal `json:"price"`
	StopLoss   decimal.Decimal `json:"stop_loss"`
	TakeProfit TPLadder        `json:"take_profit"`
	Comment    string          `json:"comment"`
	AccountID  string          `json:"account_id"`
	Nonce      string          `json:"nonce"`
	Timestamp  string          `json:"timestamp"`

	Bar RawBar `json:"bar"`
}

// RawBar carries the optional originating candle.
type RawBar struct {
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

// TPLadder decodes a take-profit field that may be a single level or a
// ladder of up to three levels.
type TPLadder []float64

func (l *TPLadder) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*l = nil
		return nil
	}

	if data[0] == '[' {
		var levels []decimal.Decimal
		if err := json.Unmarshal(data, &levels); err != nil {
			return err
		}
		out := make(TPLadder, 0, len(levels))
		for _, level := range levels {
			out = append(out, toFloat(level))
		}
		*l = out
		return nil
	}

	var single decimal.Decimal
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	if v := toFloat(single); v > 0 {
		*l = TPLadder{v}
	}
	return nil
}

// Level returns ladder level i (0-based), 0 when absent.
func (l TPLadder) Level(i int) float64 {
	if i < 0 || i >= len(l) {
		return 0
	}
	return l[i]
}

func toFloat(d decimal.Decimal) float64 {
	v, err := strconv.ParseFloat(d.String(), 64)
	if err != nil {
		return 0
	}
	return v
}
