package store

import (
	"context"
	"errors"

	"main/internal/schema"
	"main/pkg/exception"

	"gorm.io/gorm"
)

type alertStore struct {
	db *gorm.DB
}

func (s *alertStore) Create(ctx context.Context, alert *schema.AlertRecord) error {
	err := retryWrite(ctx, "create alert", func() error {
		return s.db.WithContext(ctx).Create(alert).Error
	})
	if isDuplicate(err) {
		return exception.ErrDuplicateAlert
	}
	return err
}

// AdvanceStatus moves an alert status forward. Backward transitions are
// rejected before touching storage.
func (s *alertStore) AdvanceStatus(ctx context.Context, id string, next schema.AlertStatus, errMsg string) error {
	return retryWrite(ctx, "advance alert status", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var current schema.AlertRecord
			if err := tx.Where("id = ?", id).First(&current).Error; err != nil {
				return err
			}
			if !current.Status.CanAdvanceTo(next) {
				return exception.ErrAlertStatusBackward
			}
			updates := map[string]any{"status": next}
			if errMsg != "" {
				updates["error_message"] = errMsg
			}
			return tx.Model(&schema.AlertRecord{}).Where("id = ?", id).Updates(updates).Error
		})
	})
}

func (s *alertStore) FindByDedupKey(ctx context.Context, key string) (*schema.AlertRecord, error) {
	var alert schema.AlertRecord
	err := s.db.WithContext(ctx).Where("dedup_key = ?", key).First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &alert, nil
}
