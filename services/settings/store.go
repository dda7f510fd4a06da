package settings

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"casino/apperrors"
	"casino/logger"
	"casino/models"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store loads platform_settings rows over the defaults and caches the result
// for ttl. Concurrent misses share one load.
type Store struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	cached  *Snapshot
	expires time.Time
	group   singleflight.Group
}

func NewStore(db *gorm.DB, ttl time.Duration) *Store {
	return &Store{db: db, ttl: ttl, now: time.Now}
}

func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	snap, expires := s.cached, s.expires
	s.mu.RUnlock()
	if snap != nil && s.now().Before(expires) {
		return snap, nil
	}

	v, err, _ := s.group.Do("snapshot", func() (any, error) {
		fresh, err := s.load(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cached = fresh
		s.expires = s.now().Add(s.ttl)
		s.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		if snap != nil {
			logger.Warn("settings: refresh failed, serving stale snapshot", zap.Error(err))
			return snap, nil
		}
		return nil, err
	}
	return v.(*Snapshot), nil
}

// Invalidate drops the cached snapshot; the next call reloads.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.expires = time.Time{}
	s.mu.Unlock()
}

// Put upserts one settings key and invalidates the cache.
func (s *Store) Put(ctx context.Context, key string, value json.RawMessage) error {
	if !KnownKey(key) {
		return apperrors.Validation("UNKNOWN_SETTING", "unknown settings key "+key)
	}
	if !json.Valid(value) {
		return apperrors.Validation("INVALID_SETTING_VALUE", "settings value must be JSON")
	}
	// decode against the defaults to reject values of the wrong shape early
	if err := apply(Defaults(), key, value); err != nil {
		return apperrors.Validation("INVALID_SETTING_VALUE", err.Error())
	}

	row := models.PlatformSetting{Key: key, Value: datatypes.JSON(value), UpdatedAt: s.now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "setting_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return apperrors.Infra(err, "save setting")
	}
	s.Invalidate()
	return nil
}

func (s *Store) load(ctx context.Context) (*Snapshot, error) {
	var rows []models.PlatformSetting
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, apperrors.Infra(err, "load settings")
	}

	snap := Defaults()
	for _, row := range rows {
		if err := apply(snap, row.Key, json.RawMessage(row.Value)); err != nil {
			logger.Warn("settings: ignoring malformed value", zap.String("key", row.Key), zap.Error(err))
		}
	}
	snap.LoadedAt = s.now().UTC()
	return snap, nil
}

func apply(snap *Snapshot, key string, raw json.RawMessage) error {
	switch key {
	case KeyPayouts:
		return json.Unmarshal(raw, &snap.Payouts)
	case KeyHouse:
		return json.Unmarshal(raw, &snap.House)
	case KeyCommission:
		return json.Unmarshal(raw, &snap.Commission)
	case KeyAntiFraud:
		return json.Unmarshal(raw, &snap.AntiFraud)
	case KeyTransparency:
		return json.Unmarshal(raw, &snap.Transparency)
	case KeyBatch:
		return json.Unmarshal(raw, &snap.Batch)
	}
	return nil
}
