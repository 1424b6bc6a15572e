package tradelog

import (
	"context"
	"fmt"
	"time"

	"main/internal/notify"
	"main/internal/obs"
	"main/internal/schema"
	"main/internal/store"
	"main/pkg/exception"

	"github.com/google/uuid"
	"github.com/yanun0323/logs"
)

// Writer turns terminal position transitions into immutable trade
// records. It creates, never mutates; replaying the same terminal
// transition is rejected by the storage layer's uniqueness constraint.
type Writer struct {
	repo     store.TradeLogRepository
	notifier *notify.Notifier
	metrics  *obs.Metrics
}

// NewWriter creates a trade log writer.
func NewWriter(repo store.TradeLogRepository, notifier *notify.Notifier, metrics *obs.Metrics) *Writer {
	return &Writer{repo: repo, notifier: notifier, metrics: metrics}
}

// OnTerminal records the completed trade for a position that just
// reached closed or cancelled. A cancelled position never executed an
// entry, so it yields no record: trade logs represent executed trades only.
func (w *Writer) OnTerminal(ctx context.Context, pos *schema.PositionRecord) (*schema.TradeLogRecord, error) {
	if w == nil {
		return nil, exception.ErrNilStore
	}
	if pos == nil || !pos.State.Terminal() {
		return nil, fmt.Errorf("trade log: position %v is not terminal", pos)
	}
	if pos.State == schema.PositionStateCancelled {
		return nil, nil
	}

	exitTime := time.Now().UTC()
	if pos.ClosedAt != nil {
		exitTime = *pos.ClosedAt
	}

	rec := &schema.TradeLogRecord{
		ID:           uuid.NewString(),
		PositionID:   pos.ID,
		Symbol:       pos.Symbol,
		Side:         pos.Side,
		EntryPrice:   pos.EntryPrice,
		ExitPrice:    pos.ExitPrice,
		Quantity:     pos.Quantity,
		NetPnL:       (pos.ExitPrice - pos.EntryPrice) * pos.Quantity * pos.Side.Sign(),
		ExitReason:   pos.ExitReason,
		HighestTPHit: TPLabel(pos.HighestTP),
		ExitTime:     exitTime,
		AccountID:    pos.AccountID,
	}

	if err := w.repo.Create(ctx, rec); err != nil {
		return nil, err
	}

	w.metrics.IncTradeLogWritten()
	w.notifier.Publish(schema.EntityTradeLog, rec.ID, schema.ChangeCreated)
	logs.Infof("trade logged: %s %s %s pnl=%.2f reason=%s", rec.Symbol, rec.Side, rec.ID, rec.NetPnL, rec.ExitReason)
	return rec, nil
}

// TPLabel renders a ladder level as "tp1".."tp3", empty for none.
func TPLabel(level int) string {
	if level <= 0 || level > 3 {
		return ""
	}
	return fmt.Sprintf("tp%d", level)
}
