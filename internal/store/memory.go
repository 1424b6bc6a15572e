package store

import (
	"context"
	"sync"

	"main/internal/schema"
	"main/pkg/exception"
)

// In-memory repositories back tests and offline replay. They enforce the
// same storage-layer constraints as the postgres stores: dedup_key and
// position_id uniqueness, forward-only alert statuses.

type MemoryAlertStore struct {
	mu      sync.Mutex
	byID    map[string]*schema.AlertRecord
	byDedup map[string]string
}

func newMemoryAlertStore() *MemoryAlertStore {
	return &MemoryAlertStore{
		byID:    make(map[string]*schema.AlertRecord),
		byDedup: make(map[string]string),
	}
}

func (s *MemoryAlertStore) Create(_ context.Context, alert *schema.AlertRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byDedup[alert.DedupKey]; ok {
		return exception.ErrDuplicateAlert
	}
	cp := *alert
	s.byID[alert.ID] = &cp
	s.byDedup[alert.DedupKey] = alert.ID
	return nil
}

func (s *MemoryAlertStore) AdvanceStatus(_ context.Context, id string, next schema.AlertStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert, ok := s.byID[id]
	if !ok {
		return exception.ErrPersistence
	}
	if !alert.Status.CanAdvanceTo(next) {
		return exception.ErrAlertStatusBackward
	}
	alert.Status = next
	if errMsg != "" {
		alert.ErrorMessage = errMsg
	}
	return nil
}

// DedupKeys returns every stored dedup key, unordered.
func (s *MemoryAlertStore) DedupKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.byDedup))
	for key := range s.byDedup {
		keys = append(keys, key)
	}
	return keys
}

func (s *MemoryAlertStore) FindByDedupKey(_ context.Context, key string) (*schema.AlertRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byDedup[key]
	if !ok {
		return nil, nil
	}
	cp := *s.byID[id]
	return &cp, nil
}

type MemoryPositionStore struct {
	mu   sync.Mutex
	byID map[string]*schema.PositionRecord
}

func newMemoryPositionStore() *MemoryPositionStore {
	return &MemoryPositionStore{byID: make(map[string]*schema.PositionRecord)}
}

func (s *MemoryPositionStore) Create(_ context.Context, pos *schema.PositionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *pos
	s.byID[pos.ID] = &cp
	return nil
}

func (s *MemoryPositionStore) Update(_ context.Context, pos *schema.PositionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *pos
	s.byID[pos.ID] = &cp
	return nil
}

func (s *MemoryPositionStore) FindOpenBySymbol(_ context.Context, symbol string) (*schema.PositionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pos := range s.byID {
		if pos.Symbol == symbol && !pos.State.Terminal() {
			cp := *pos
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryPositionStore) ListOpen(_ context.Context) ([]*schema.PositionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var open []*schema.PositionRecord
	for _, pos := range s.byID {
		if !pos.State.Terminal() {
			cp := *pos
			open = append(open, &cp)
		}
	}
	return open, nil
}

type MemoryTradeLogStore struct {
	mu         sync.Mutex
	records    []*schema.TradeLogRecord
	byPosition map[string]struct{}
}

func newMemoryTradeLogStore() *MemoryTradeLogStore {
	return &MemoryTradeLogStore{byPosition: make(map[string]struct{})}
}

func (s *MemoryTradeLogStore) Create(_ context.Context, rec *schema.TradeLogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byPosition[rec.PositionID]; ok {
		return exception.ErrTradeLogImmutable
	}
	cp := *rec
	s.records = append(s.records, &cp)
	s.byPosition[rec.PositionID] = struct{}{}
	return nil
}

// Records returns a copy of all trade log records, in creation order.
func (s *MemoryTradeLogStore) Records() []schema.TradeLogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schema.TradeLogRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, *rec)
	}
	return out
}
