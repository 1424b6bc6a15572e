package store

import (
	"context"

	"main/internal/schema"
	"main/pkg/conn"
)

// AlertRepository persists alert records. Create enforces dedup_key
// uniqueness at the storage layer; a collision surfaces as
// exception.ErrDuplicateAlert.
type AlertRepository interface {
	Create(ctx context.Context, alert *schema.AlertRecord) error
	AdvanceStatus(ctx context.Context, id string, next schema.AlertStatus, errMsg string) error
	FindByDedupKey(ctx context.Context, key string) (*schema.AlertRecord, error)
}

// PositionRepository persists position records.
type PositionRepository interface {
	Create(ctx context.Context, pos *schema.PositionRecord) error
	Update(ctx context.Context, pos *schema.PositionRecord) error
	FindOpenBySymbol(ctx context.Context, symbol string) (*schema.PositionRecord, error)
	ListOpen(ctx context.Context) ([]*schema.PositionRecord, error)
}

// TradeLogRepository creates immutable trade records. There is no update
// method on purpose.
type TradeLogRepository interface {
	Create(ctx context.Context, rec *schema.TradeLogRecord) error
}

// Stores bundles the three collections backing the pipeline.
type Stores struct {
	Alerts    AlertRepository
	Positions PositionRepository
	TradeLogs TradeLogRepository
}

// NewPostgres builds gorm-backed stores and migrates the schema.
func NewPostgres(client *conn.Client) (Stores, error) {
	db := client.DB()
	if err := db.AutoMigrate(
		&schema.AlertRecord{},
		&schema.PositionRecord{},
		&schema.TradeLogRecord{},
	); err != nil {
		return Stores{}, err
	}
	return Stores{
		Alerts:    &alertStore{db: db},
		Positions: &positionStore{db: db},
		TradeLogs: &tradeLogStore{db: db},
	}, nil
}

// NewMemory builds in-memory stores for tests and offline replay.
func NewMemory() Stores {
	return Stores{
		Alerts:    newMemoryAlertStore(),
		Positions: newMemoryPositionStore(),
		TradeLogs: newMemoryTradeLogStore(),
	}
}
