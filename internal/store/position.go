package store

import (
	"context"
	"errors"

	"main/internal/schema"

	"gorm.io/gorm"
)

type positionStore struct {
	db *gorm.DB
}

func (s *positionStore) Create(ctx context.Context, pos *schema.PositionRecord) error {
	return retryWrite(ctx, "create position", func() error {
		return s.db.WithContext(ctx).Create(pos).Error
	})
}

func (s *positionStore) Update(ctx context.Context, pos *schema.PositionRecord) error {
	return retryWrite(ctx, "update position", func() error {
		return s.db.WithContext(ctx).Save(pos).Error
	})
}

func (s *positionStore) FindOpenBySymbol(ctx context.Context, symbol string) (*schema.PositionRecord, error) {
	var pos schema.PositionRecord
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND state NOT IN ?", symbol, terminalStates()).
		First(&pos).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pos, nil
}

func (s *positionStore) ListOpen(ctx context.Context) ([]*schema.PositionRecord, error) {
	var positions []*schema.PositionRecord
	err := s.db.WithContext(ctx).
		Where("state NOT IN ?", terminalStates()).
		Order("opened_at").
		Find(&positions).Error
	if err != nil {
		return nil, err
	}
	return positions, nil
}

func terminalStates() []schema.PositionState {
	return []schema.PositionState{schema.PositionStateClosed, schema.PositionStateCancelled}
}
