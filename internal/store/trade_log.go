package store

import (
	"context"

	"main/internal/schema"
	"main/pkg/exception"

	"gorm.io/gorm"
)

var _ TradeLogRepository = (*tradeLogStore)(nil)

type tradeLogStore struct {
	db *gorm.DB
}

func (s *tradeLogStore) Create(ctx context.Context, rec *schema.TradeLogRecord) error {
	err := retryWrite(ctx, "create trade log", func() error {
		return s.db.WithContext(ctx).Create(rec).Error
	})
	// PositionID carries a unique index so a replayed terminal transition
	// cannot produce a second record.
	if isDuplicate(err) {
		return exception.ErrTradeLogImmutable
	}
	return err
}
