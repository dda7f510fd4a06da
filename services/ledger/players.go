package ledger

import (
	"context"
	"errors"
	"strings"

	"casino/apperrors"
	"casino/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// lockExistingTx locks a known player. Admin actions never create players.
func (s *Service) lockExistingTx(tx *gorm.DB, key string) (*models.Player, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, apperrors.Validation("PLAYER_REQUIRED", "player key is required")
	}
	var p models.Player
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("player_key = ?", key).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("PLAYER_NOT_FOUND", "player not found")
		}
		return nil, apperrors.Infra(err, "lock player")
	}
	return &p, nil
}

// SetStatus is an explicit status transition; balances are never touched.
func (s *Service) SetStatus(ctx context.Context, key, status, note string) (*models.Player, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !models.ValidPlayerStatus(status) {
		return nil, apperrors.Validation("INVALID_STATUS", "unknown player status "+status)
	}
	var out *models.Player
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.lockExistingTx(tx, key)
		if err != nil {
			return err
		}
		if err := tx.Model(p).Updates(map[string]any{"status": status, "status_note": note}).Error; err != nil {
			return apperrors.Infra(err, "update player status")
		}
		p.Status, p.StatusNote = status, note
		out = p
		return nil
	})
	if err != nil {
		return nil, apperrors.Infra(err, "set status")
	}
	return out, nil
}

func (s *Service) SetTrusted(ctx context.Context, key string, trusted bool) (*models.Player, error) {
	var out *models.Player
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.lockExistingTx(tx, key)
		if err != nil {
			return err
		}
		if err := tx.Model(p).Update("is_trusted", trusted).Error; err != nil {
			return apperrors.Infra(err, "update trusted flag")
		}
		p.IsTrusted = trusted
		out = p
		return nil
	})
	if err != nil {
		return nil, apperrors.Infra(err, "set trusted")
	}
	return out, nil
}
