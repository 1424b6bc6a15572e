package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"main/internal/audit"
	"main/internal/engine"
	"main/internal/ingest"
	"main/internal/notify"
	"main/internal/obs"
	"main/internal/schema"
	"main/internal/store"
	"main/internal/tradelog"
	"main/pkg/exception"

	"github.com/joho/godotenv"
	"github.com/yanun0323/logs"
)

// Replays a recorded audit stream through a fresh in-memory pipeline
// and prints the trade log it produces. Useful for verifying that a
// live session's alerts and ticks reduce to the same trades.
func main() {
	auditPath := flag.String("audit", "", "Path to an events.jsonl audit stream")
	secretEnv := flag.String("secret-env", "ALERT_WEBHOOK_SECRET", "Env var holding the dedup secret")
	flag.Parse()

	_ = godotenv.Load()

	if *auditPath == "" {
		logs.Fatalf("missing -audit path")
	}
	secret := os.Getenv(*secretEnv)
	if secret == "" {
		logs.Fatalf("dedup secret env %s is empty", *secretEnv)
	}

	entries, err := audit.ReadAll(*auditPath)
	if err != nil {
		logs.Fatalf("read audit stream, err: %v", err)
	}

	ctx := context.Background()
	metrics := obs.NewMetrics()
	notifier := notify.NewNotifier(64)
	defer notifier.Close()

	stores := store.NewMemory()
	tradeLog := tradelog.NewWriter(stores.TradeLogs, notifier, metrics)
	eng := engine.New(engine.Config{
		Positions: stores.Positions,
		TradeLog:  tradeLog,
		Notifier:  notifier,
		Metrics:   metrics,
	})
	ingestor := ingest.NewIngestor(secret, stores.Alerts, notifier, metrics, nil)

	applied, skipped := 0, 0
	for _, entry := range entries {
		switch entry.Kind {
		case audit.EntryAlert:
			if replayAlert(ctx, ingestor, eng, entry.Payload) {
				applied++
			} else {
				skipped++
			}
		case audit.EntryTick:
			var tick schema.Tick
			if err := json.Unmarshal(entry.Payload, &tick); err != nil {
				skipped++
				continue
			}
			if _, err := eng.OnTick(ctx, tick); err != nil {
				logs.Warnf("replay tick %s, err: %v", tick.Symbol, err)
				skipped++
				continue
			}
			applied++
		default:
			skipped++
		}
	}

	memLog, ok := stores.TradeLogs.(*store.MemoryTradeLogStore)
	if !ok {
		logs.Fatalf("unexpected trade log store type")
	}
	records := memLog.Records()

	fmt.Printf("replayed %d events (%d skipped), %d trades\n\n", applied, skipped, len(records))
	for _, rec := range records {
		tpHit := rec.HighestTPHit
		if tpHit == "" {
			tpHit = "-"
		}
		fmt.Printf("%s  %-10s %-5s entry=%.4f exit=%.4f qty=%.4f pnl=%+.2f reason=%s tp=%s\n",
			rec.ExitTime.Format("2006-01-02 15:04:05"),
			rec.Symbol, rec.Side, rec.EntryPrice, rec.ExitPrice, rec.Quantity,
			rec.NetPnL, rec.ExitReason, tpHit)
	}

	snap := metrics.Snapshot()
	fmt.Printf("\naccepted=%d duplicate=%d rejected=%d opened=%d tp_hits=%d closed=%d\n",
		snap.AlertsAccepted, snap.AlertsDuplicate, snap.AlertsRejected,
		snap.PositionsOpened, snap.TPHits, snap.PositionsClosed)
}

func replayAlert(ctx context.Context, ingestor *ingest.Ingestor, eng *engine.Engine, payload []byte) bool {
	record, err := ingestor.Ingest(ctx, payload)
	if err != nil {
		if !errors.Is(err, exception.ErrDuplicateAlert) {
			logs.Warnf("replay alert, err: %v", err)
		}
		return false
	}
	if err := ingestor.MarkProcessing(ctx, record.ID); err != nil {
		logs.Warnf("replay alert %s, err: %v", record.ID, err)
		return false
	}
	if _, err := eng.OnAlert(ctx, record); err != nil {
		_ = ingestor.MarkFailed(ctx, record.ID, err.Error())
		logs.Warnf("replay alert %s %s, err: %v", record.Symbol, record.Action, err)
		return false
	}
	_ = ingestor.MarkExecuted(ctx, record.ID)
	return true
}
