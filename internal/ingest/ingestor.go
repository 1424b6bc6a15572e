package ingest

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"main/internal/audit"
	"main/internal/notify"
	"main/internal/obs"
	"main/internal/schema"
	"main/internal/store"
	"main/pkg/exception"

	"github.com/google/uuid"
	"github.com/yanun0323/logs"
)

// Ingestor validates and durably records inbound alert events. It is
// the sole writer of alert records; other components read them through
// the store.
type Ingestor struct {
	secret   []byte
	alerts   store.AlertRepository
	notifier *notify.Notifier
	metrics  *obs.Metrics
	audit    *audit.Writer
}

// NewIngestor creates an ingestor with the per-deployment dedup secret.
// The secret participates only in the one-way dedup hash and is never
// persisted.
func NewIngestor(secret string, alerts store.AlertRepository, notifier *notify.Notifier, metrics *obs.Metrics, auditW *audit.Writer) *Ingestor {
	return &Ingestor{
		secret:   []byte(secret),
		alerts:   alerts,
		notifier: notifier,
		metrics:  metrics,
		audit:    auditW,
	}
}

// Ingest validates a raw webhook payload and persists it with status
// "received". A redelivered event (same dedup key) is acknowledged with
// ErrDuplicateAlert without creating a second record or re-emitting the
// creation event.
func (ing *Ingestor) Ingest(ctx context.Context, payload []byte) (*schema.AlertRecord, error) {
	if ing == nil {
		return nil, exception.ErrAlertNilIngestor
	}
	started := time.Now()

	var raw RawAlert
	if err := json.Unmarshal(payload, &raw); err != nil {
		ing.metrics.IncAlertRejected()
		return nil, exception.ErrAlertMalformed
	}

	if err := validate(raw); err != nil {
		ing.metrics.IncAlertRejected()
		return nil, err
	}

	record := &schema.AlertRecord{
		ID:         uuid.NewString(),
		ReceivedAt: time.Now().UTC(),
		Symbol:     strings.ToUpper(strings.TrimSpace(raw.Symbol)),
		Action:     schema.AlertAction(raw.Action),
		Quantity:   toFloat(raw.Quantity),
		OrderType:  raw.OrderType,
		Price:      toFloat(raw.Price),
		StopLoss:   toFloat(raw.StopLoss),
		TP1:        raw.TakeProfit.Level(0),
		TP2:        raw.TakeProfit.Level(1),
		TP3:        raw.TakeProfit.Level(2),
		Comment:    raw.Comment,
		BarOpen:    toFloat(raw.Bar.Open),
		BarHigh:    toFloat(raw.Bar.High),
		BarLow:     toFloat(raw.Bar.Low),
		BarClose:   toFloat(raw.Bar.Close),
		BarVolume:  toFloat(raw.Bar.Volume),
		AccountID:  raw.AccountID,
		Status:     schema.AlertStatusReceived,
		RawPayload: string(payload),
		DedupKey:   ing.dedupKey(raw),
	}

	if err := ing.alerts.Create(ctx, record); err != nil {
		if errors.Is(err, exception.ErrDuplicateAlert) {
			ing.metrics.IncAlertDuplicate()
			logs.Infof("duplicate alert acknowledged: %s %s", record.Symbol, record.DedupKey[:12])
			return nil, exception.ErrDuplicateAlert
		}
		return nil, err
	}

	if ing.audit != nil {
		if err := ing.audit.TryAppend(audit.EntryAlert, payload); err != nil {
			logs.Warnf("audit append alert, err: %v", err)
		}
	}

	ing.metrics.IncAlertAccepted()
	ing.metrics.ObserveIngest(time.Since(started))
	ing.notifier.Publish(schema.EntityAlert, record.ID, schema.ChangeCreated)
	return record, nil
}

// MarkProcessing advances an alert to processing.
func (ing *Ingestor) MarkProcessing(ctx context.Context, id string) error {
	return ing.advance(ctx, id, schema.AlertStatusProcessing, "")
}

// MarkExecuted advances an alert to its executed terminal status.
func (ing *Ingestor) MarkExecuted(ctx context.Context, id string) error {
	return ing.advance(ctx, id, schema.AlertStatusExecuted, "")
}

// MarkFailed advances an alert to failed with a user-visible message.
func (ing *Ingestor) MarkFailed(ctx context.Context, id string, reason string) error {
	return ing.advance(ctx, id, schema.AlertStatusFailed, reason)
}

// MarkCancelled advances an alert to cancelled.
func (ing *Ingestor) MarkCancelled(ctx context.Context, id string) error {
	return ing.advance(ctx, id, schema.AlertStatusCancelled, "")
}

func (ing *Ingestor) advance(ctx context.Context, id string, next schema.AlertStatus, msg string) error {
	if err := ing.alerts.AdvanceStatus(ctx, id, next, msg); err != nil {
		return err
	}
	ing.notifier.Publish(schema.EntityAlert, id, schema.ChangeUpdated)
	return nil
}

// dedupKey derives a deterministic one-way hash of the event content
// keyed by the deployment secret. Identical redeliveries map to the
// same key; the secret itself is never stored.
func (ing *Ingestor) dedupKey(raw RawAlert) string {
	mac := hmac.New(sha256.New, ing.secret)
	parts := []string{
		strings.ToUpper(strings.TrimSpace(raw.Symbol)),
		raw.Action,
		raw.Quantity.String(),
		raw.OrderType,
		raw.Price.String(),
		raw.StopLoss.String(),
		raw.Comment,
		raw.Nonce,
		raw.Timestamp,
	}
	for _, level := range raw.TakeProfit {
		parts = append(parts, strconv.FormatFloat(level, 'f', -1, 64))
	}
	for _, part := range parts {
		mac.Write([]byte(part))
		mac.Write([]byte{0})
	}
	return hex.EncodeToString(mac.Sum(nil))
}

func validate(raw RawAlert) error {
	if strings.TrimSpace(raw.Symbol) == "" {
		return exception.ErrAlertMissingSymbol
	}
	if !schema.AlertAction(raw.Action).IsAvailable() {
		return exception.ErrAlertUnknownAction
	}
	if toFloat(raw.Quantity) <= 0 {
		return exception.ErrAlertInvalidQuantity
	}
	return nil
}
