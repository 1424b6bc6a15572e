package engine

import (
	"context"
	"sync"
	"time"

	"main/internal/advisory"
	"main/internal/notify"
	"main/internal/obs"
	"main/internal/schema"
	"main/internal/store"
	"main/internal/tradelog"
	"main/pkg/exception"

	"github.com/google/uuid"
	"github.com/yanun0323/logs"
)

// Config wires the engine's collaborators.
type Config struct {
	Positions store.PositionRepository
	TradeLog  *tradelog.Writer
	Advisor   *advisory.Client
	Notifier  *notify.Notifier
	Metrics   *obs.Metrics

	PendingEntryTimeout time.Duration
}

// Engine owns the per-symbol position state machine and live PnL.
//
// All mutation for a symbol is serialized through that symbol's shard
// lock; distinct symbols process fully in parallel. The advisory call
// is the only blocking collaborator and is never issued while a shard
// lock is held.
type Engine struct {
	cfg Config

	mu     sync.RWMutex
	shards map[string]*shard
}

type shard struct {
	mu  sync.Mutex
	pos *schema.PositionRecord
}

// New creates an engine.
func New(cfg Config) *Engine {
	return &Engine{
		cfg:    cfg,
		shards: make(map[string]*shard),
	}
}

// Recover seeds shards from open positions left by a previous run.
func (e *Engine) Recover(ctx context.Context) error {
	open, err := e.cfg.Positions.ListOpen(ctx)
	if err != nil {
		return err
	}
	for _, pos := range open {
		s := e.shard(pos.Symbol)
		s.mu.Lock()
		if s.pos != nil && !s.pos.State.Terminal() {
			logs.Warnf("recover: second open position for %s, keeping %s", pos.Symbol, s.pos.ID)
			s.mu.Unlock()
			continue
		}
		s.pos = pos
		s.mu.Unlock()
	}
	if len(open) > 0 {
		logs.Infof("recovered %d open positions", len(open))
	}
	return nil
}

// OnAlert applies an accepted alert to the symbol's state machine.
func (e *Engine) OnAlert(ctx context.Context, alert *schema.AlertRecord) (*schema.PositionRecord, error) {
	if e == nil {
		return nil, exception.ErrNilEngine
	}

	s := e.shard(alert.Symbol)
	s.mu.Lock()

	var (
		pos *schema.PositionRecord
		err error
	)
	switch {
	case alert.Action.IsEntry():
		pos, err = e.openLocked(ctx, s, alert)
	case alert.Action.IsClose():
		pos, err = e.closeLocked(ctx, s, alert)
	default:
		err = exception.ErrAlertUnknownAction
	}

	// Snapshot while still holding the shard lock: once released, ticks
	// may mutate the record concurrently.
	var cp *schema.PositionRecord
	if err == nil {
		cp = copyOf(pos)
	}
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}

	// Advisory context runs out-of-band: the shard lock is released and
	// the transition above is already committed.
	if alert.Action.IsEntry() && e.cfg.Advisor != nil {
		go e.consult(cp.ID, alert)
	}

	return cp, nil
}

// OnTick applies a price observation to the symbol's position, if any.
// Ticks for symbols without an open position are a no-op.
func (e *Engine) OnTick(ctx context.Context, tick schema.Tick) (*schema.PositionRecord, error) {
	if e == nil {
		return nil, exception.ErrNilEngine
	}

	s := e.shardIfExists(tick.Symbol)
	if s == nil {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.pos
	if pos == nil || pos.State.Terminal() {
		return nil, nil
	}
	started := time.Now()

	pos.RecomputePnL(tick.Price)

	if pos.State == schema.PositionStatePendingEntry {
		if !entryTouched(pos, tick.Price) {
			return copyOf(pos), nil
		}
		pos.State = schema.PositionStateActive
		if err := e.persistLocked(ctx, pos); err != nil {
			return nil, err
		}
	}

	// Adverse stop crossing closes the position. A touch fills at the
	// stop; a tick that gapped through it fills at the observed price.
	if pos.CurrentStop > 0 && stopCrossed(pos, tick.Price) {
		if err := e.terminateLocked(ctx, pos, schema.PositionStateClosed, schema.ExitReasonStopLoss, stopFill(pos, tick.Price)); err != nil {
			return nil, err
		}
		e.cfg.Metrics.ObserveTick(time.Since(started))
		return copyOf(pos), nil
	}

	advanced := false
	for next := pos.HighestTP + 1; next <= 3; next++ {
		tp := pos.TPPrice(next)
		if tp <= 0 || !tpCrossed(pos, tp, tick.Price) {
			break
		}
		pos.HighestTP = next
		pos.State = schema.TPState(next)
		e.cfg.Metrics.IncTPHit()
		advanced = true
	}

	if advanced {
		// Clearing the final ladder level exits the whole position.
		if pos.TPPrice(pos.HighestTP+1) <= 0 || pos.HighestTP == 3 {
			if err := e.terminateLocked(ctx, pos, schema.PositionStateClosed, schema.ExitReasonTakeProfit, pos.TPPrice(pos.HighestTP)); err != nil {
				return nil, err
			}
		} else if err := e.persistLocked(ctx, pos); err != nil {
			return nil, err
		}
	}

	e.cfg.Metrics.ObserveTick(time.Since(started))
	return copyOf(pos), nil
}

// MoveStop ratchets the protective stop. The new value is an explicit
// transition input; moves against the holder are rejected.
func (e *Engine) MoveStop(ctx context.Context, symbol string, stop float64) error {
	if e == nil {
		return exception.ErrNilEngine
	}
	s := e.shardIfExists(symbol)
	if s == nil {
		return exception.ErrPositionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.pos
	if pos == nil {
		return exception.ErrPositionNotFound
	}
	if pos.State.Terminal() {
		e.cfg.Metrics.IncTerminalReject()
		return exception.ErrTerminalState
	}
	if pos.CurrentStop > 0 {
		favorable := (pos.Side == schema.SideLong && stop > pos.CurrentStop) ||
			(pos.Side == schema.SideShort && stop < pos.CurrentStop)
		if !favorable {
			return exception.ErrStopNotFavorable
		}
	}
	pos.CurrentStop = stop
	return e.persistLocked(ctx, pos)
}

// ExpirePending cancels pending-entry positions older than the cutoff.
func (e *Engine) ExpirePending(ctx context.Context, olderThan time.Duration) (int, error) {
	if e == nil {
		return 0, exception.ErrNilEngine
	}
	cutoff := time.Now().UTC().Add(-olderThan)

	e.mu.RLock()
	shards := make([]*shard, 0, len(e.shards))
	for _, s := range e.shards {
		shards = append(shards, s)
	}
	e.mu.RUnlock()

	expired := 0
	for _, s := range shards {
		s.mu.Lock()
		pos := s.pos
		if pos != nil && pos.State == schema.PositionStatePendingEntry && pos.OpenedAt.Before(cutoff) {
			if err := e.terminateLocked(ctx, pos, schema.PositionStateCancelled, schema.ExitReasonCancelled, 0); err != nil {
				s.mu.Unlock()
				return expired, err
			}
			expired++
		}
		s.mu.Unlock()
	}
	return expired, nil
}

// Position returns a copy of the symbol's current position record.
func (e *Engine) Position(symbol string) (*schema.PositionRecord, bool) {
	s := e.shardIfExists(symbol)
	if s == nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos == nil {
		return nil, false
	}
	return copyOf(s.pos), true
}

// OpenPositions returns copies of every non-terminal position.
func (e *Engine) OpenPositions() []schema.PositionRecord {
	e.mu.RLock()
	shards := make([]*shard, 0, len(e.shards))
	for _, s := range e.shards {
		shards = append(shards, s)
	}
	e.mu.RUnlock()

	var open []schema.PositionRecord
	for _, s := range shards {
		s.mu.Lock()
		if s.pos != nil && !s.pos.State.Terminal() {
			open = append(open, *s.pos)
		}
		s.mu.Unlock()
	}
	return open
}

func (e *Engine) openLocked(ctx context.Context, s *shard, alert *schema.AlertRecord) (*schema.PositionRecord, error) {
	if s.pos != nil && !s.pos.State.Terminal() {
		// A resting entry is superseded by a fresh entry alert; an
		// executed position is not.
		if s.pos.State != schema.PositionStatePendingEntry {
			return nil, exception.ErrPositionExists
		}
		if err := e.terminateLocked(ctx, s.pos, schema.PositionStateCancelled, schema.ExitReasonCancelled, 0); err != nil {
			return nil, err
		}
	}

	state := schema.PositionStateActive
	if isResting(alert.OrderType) {
		state = schema.PositionStatePendingEntry
	}

	now := time.Now().UTC()
	pos := &schema.PositionRecord{
		ID:          uuid.NewString(),
		Symbol:      alert.Symbol,
		Side:        alert.Action.Side(),
		State:       state,
		Quantity:    alert.Quantity,
		EntryPrice:  alert.Price,
		CurrentStop: alert.StopLoss,
		TP1Price:    alert.TP1,
		TP2Price:    alert.TP2,
		TP3Price:    alert.TP3,
		LastPrice:   alert.Price,
		AlertID:     alert.ID,
		AccountID:   alert.AccountID,
		OpenedAt:    now,
	}

	if err := e.cfg.Positions.Create(ctx, pos); err != nil {
		return nil, err
	}
	s.pos = pos

	e.cfg.Metrics.IncPositionOpened()
	e.cfg.Notifier.Publish(schema.EntityPosition, pos.ID, schema.ChangeCreated)
	logs.Infof("position opened: %s %s %s @%.4f", pos.Symbol, pos.Side, pos.State, pos.EntryPrice)
	return pos, nil
}

func (e *Engine) closeLocked(ctx context.Context, s *shard, alert *schema.AlertRecord) (*schema.PositionRecord, error) {
	pos := s.pos
	if pos == nil {
		return nil, exception.ErrPositionNotFound
	}
	if pos.State.Terminal() {
		e.cfg.Metrics.IncTerminalReject()
		return nil, exception.ErrTerminalState
	}
	if alert.Action == schema.ActionCloseLong && pos.Side != schema.SideLong {
		return nil, exception.ErrPositionSideClose
	}
	if alert.Action == schema.ActionCloseShort && pos.Side != schema.SideShort {
		return nil, exception.ErrPositionSideClose
	}

	if pos.State == schema.PositionStatePendingEntry {
		if err := e.terminateLocked(ctx, pos, schema.PositionStateCancelled, schema.ExitReasonCancelled, 0); err != nil {
			return nil, err
		}
		return pos, nil
	}

	exitPrice := alert.Price
	if exitPrice <= 0 {
		exitPrice = pos.LastPrice
	}
	if err := e.terminateLocked(ctx, pos, schema.PositionStateClosed, schema.ExitReasonManualClose, exitPrice); err != nil {
		return nil, err
	}
	return pos, nil
}

// terminateLocked commits a terminal transition and hands the position
// to the trade log writer exactly once. Caller holds the shard lock.
func (e *Engine) terminateLocked(ctx context.Context, pos *schema.PositionRecord, state schema.PositionState, reason schema.ExitReason, exitPrice float64) error {
	now := time.Now().UTC()
	pos.State = state
	pos.ExitReason = reason
	pos.ExitPrice = exitPrice
	pos.ClosedAt = &now
	if exitPrice > 0 {
		pos.RecomputePnL(exitPrice)
	}

	if err := e.cfg.Positions.Update(ctx, pos); err != nil {
		return err
	}

	e.cfg.Metrics.IncPositionClosed()
	e.cfg.Notifier.Publish(schema.EntityPosition, pos.ID, schema.ChangeUpdated)

	if _, err := e.cfg.TradeLog.OnTerminal(ctx, pos); err != nil {
		return err
	}
	return nil
}

func (e *Engine) persistLocked(ctx context.Context, pos *schema.PositionRecord) error {
	if err := e.cfg.Positions.Update(ctx, pos); err != nil {
		return err
	}
	e.cfg.Notifier.Publish(schema.EntityPosition, pos.ID, schema.ChangeUpdated)
	return nil
}

// consult runs the advisory call out-of-band and attaches the result as
// an annotation. It never touches state transitions.
func (e *Engine) consult(posID string, alert *schema.AlertRecord) {
	advCtx := schema.AdvisoryContext{
		Symbol:      alert.Symbol,
		Action:      alert.Action,
		TargetEntry: alert.Price,
		TP1:         alert.TP1,
		TP2:         alert.TP2,
		TP3:         alert.TP3,
		InitialStop: alert.StopLoss,
	}

	started := time.Now()
	result := e.cfg.Advisor.Assess(context.Background(), advCtx)
	e.cfg.Metrics.ObserveAdvisory(time.Since(started))

	if result == nil {
		e.cfg.Metrics.IncAdvisoryAbsent()
		return
	}
	e.cfg.Metrics.IncAdvisoryPresent()

	s := e.shardIfExists(alert.Symbol)
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.pos
	if pos == nil || pos.ID != posID || pos.State.Terminal() {
		return
	}
	confidence := result.Confidence
	pos.AdvisoryReasoning = result.Reasoning
	pos.AdvisoryConfidence = &confidence
	if err := e.persistLocked(context.Background(), pos); err != nil {
		logs.Errorf("persist advisory annotation for %s, err: %v", pos.Symbol, err)
	}
}

func (e *Engine) shard(symbol string) *shard {
	e.mu.RLock()
	s, ok := e.shards[symbol]
	e.mu.RUnlock()
	if ok {
		return s
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.shards[symbol]; ok {
		return s
	}
	s = &shard{}
	e.shards[symbol] = s
	return s
}

func (e *Engine) shardIfExists(symbol string) *shard {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.shards[symbol]
}

func copyOf(pos *schema.PositionRecord) *schema.PositionRecord {
	cp := *pos
	return &cp
}

func isResting(orderType string) bool {
	switch orderType {
	case "limit", "stop", "stop_limit":
		return true
	default:
		return false
	}
}

// entryTouched reports whether a tick fills a resting entry.
func entryTouched(pos *schema.PositionRecord, price float64) bool {
	if pos.Side == schema.SideLong {
		return price <= pos.EntryPrice
	}
	return price >= pos.EntryPrice
}

// stopCrossed reports an adverse crossing of the protective stop.
func stopCrossed(pos *schema.PositionRecord, price float64) bool {
	if pos.Side == schema.SideLong {
		return price <= pos.CurrentStop
	}
	return price >= pos.CurrentStop
}

// stopFill is the exit price for a stop crossing: the stop itself on a
// touch, the tick when the market gapped through the level.
func stopFill(pos *schema.PositionRecord, price float64) float64 {
	if pos.Side == schema.SideLong && price < pos.CurrentStop {
		return price
	}
	if pos.Side == schema.SideShort && price > pos.CurrentStop {
		return price
	}
	return pos.CurrentStop
}

// tpCrossed reports a favorable crossing of a take-profit level.
func tpCrossed(pos *schema.PositionRecord, tp, price float64) bool {
	if pos.Side == schema.SideLong {
		return price >= tp
	}
	return price <= tp
}
