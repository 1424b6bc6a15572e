package obs

import (
	"sync/atomic"
	"time"
)

// Metrics collects lightweight counters and latency stats for the
// alert→position→trade-log pipeline.
type Metrics struct {
	alertsAccepted  uint64
	alertsDuplicate uint64
	alertsRejected  uint64

	positionsOpened uint64
	tpHits          uint64
	positionsClosed uint64
	terminalRejects uint64

	advisoryPresent uint64
	advisoryAbsent  uint64

	tradeLogsWritten uint64

	ingestLatency   LatencyStats
	tickLatency     LatencyStats
	advisoryLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64        `json:"count"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Avg   time.Duration `json:"avg"`
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	AlertsAccepted  uint64 `json:"alerts_accepted"`
	AlertsDuplicate uint64 `json:"alerts_duplicate"`
	AlertsRejected  uint64 `json:"alerts_rejected"`

	PositionsOpened uint64 `json:"positions_opened"`
	TPHits          uint64 `json:"tp_hits"`
	PositionsClosed uint64 `json:"positions_closed"`
	TerminalRejects uint64 `json:"terminal_rejects"`

	AdvisoryPresent uint64 `json:"advisory_present"`
	AdvisoryAbsent  uint64 `json:"advisory_absent"`

	TradeLogsWritten uint64 `json:"trade_logs_written"`

	IngestLatency   LatencySnapshot `json:"ingest_latency"`
	TickLatency     LatencySnapshot `json:"tick_latency"`
	AdvisoryLatency LatencySnapshot `json:"advisory_latency"`
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncAlertAccepted counts a durably recorded alert.
func (m *Metrics) IncAlertAccepted() { m.inc(&m.alertsAccepted) }

// IncAlertDuplicate counts an acknowledged redelivery.
func (m *Metrics) IncAlertDuplicate() { m.inc(&m.alertsDuplicate) }

// IncAlertRejected counts a validation rejection.
func (m *Metrics) IncAlertRejected() { m.inc(&m.alertsRejected) }

// IncPositionOpened counts a created position.
func (m *Metrics) IncPositionOpened() { m.inc(&m.positionsOpened) }

// IncTPHit counts a take-profit level transition.
func (m *Metrics) IncTPHit() { m.inc(&m.tpHits) }

// IncPositionClosed counts a terminal transition.
func (m *Metrics) IncPositionClosed() { m.inc(&m.positionsClosed) }

// IncTerminalReject counts a mutation attempt on a terminal position.
func (m *Metrics) IncTerminalReject() { m.inc(&m.terminalRejects) }

// IncAdvisoryPresent counts an advisory call that produced a result.
func (m *Metrics) IncAdvisoryPresent() { m.inc(&m.advisoryPresent) }

// IncAdvisoryAbsent counts an absorbed advisory failure or timeout.
func (m *Metrics) IncAdvisoryAbsent() { m.inc(&m.advisoryAbsent) }

// IncTradeLogWritten counts a created trade log record.
func (m *Metrics) IncTradeLogWritten() { m.inc(&m.tradeLogsWritten) }

// ObserveIngest measures alert ingestion latency.
func (m *Metrics) ObserveIngest(d time.Duration) {
	if m == nil {
		return
	}
	m.ingestLatency.Observe(d)
}

// ObserveTick measures per-tick engine latency.
func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.tickLatency.Observe(d)
}

// ObserveAdvisory measures external advisory round-trip latency.
func (m *Metrics) ObserveAdvisory(d time.Duration) {
	if m == nil {
		return
	}
	m.advisoryLatency.Observe(d)
}

func (m *Metrics) inc(counter *uint64) {
	if m == nil {
		return
	}
	atomic.AddUint64(counter, 1)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		AlertsAccepted:   atomic.LoadUint64(&m.alertsAccepted),
		AlertsDuplicate:  atomic.LoadUint64(&m.alertsDuplicate),
		AlertsRejected:   atomic.LoadUint64(&m.alertsRejected),
		PositionsOpened:  atomic.LoadUint64(&m.positionsOpened),
		TPHits:           atomic.LoadUint64(&m.tpHits),
		PositionsClosed:  atomic.LoadUint64(&m.positionsClosed),
		TerminalRejects:  atomic.LoadUint64(&m.terminalRejects),
		AdvisoryPresent:  atomic.LoadUint64(&m.advisoryPresent),
		AdvisoryAbsent:   atomic.LoadUint64(&m.advisoryAbsent),
		TradeLogsWritten: atomic.LoadUint64(&m.tradeLogsWritten),
		IngestLatency:    m.ingestLatency.Snapshot(),
		TickLatency:      m.tickLatency.Snapshot(),
		AdvisoryLatency:  m.advisoryLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
