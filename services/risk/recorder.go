package risk

import (
	"encoding/json"

	"casino/apperrors"
	"casino/metrics"
	"casino/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Event struct {
	PlayerID  uint
	PlayerKey string
	Type      string
	Severity  string
	Payload   map[string]any
	DedupKey  string
}

// Record appends ev inside tx. With a DedupKey a second call for the same key
// is a no-op and reports false.
func Record(tx *gorm.DB, ev Event) (bool, error) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return false, apperrors.Infra(err, "encode risk payload")
	}
	row := models.RiskEvent{
		PlayerID:  ev.PlayerID,
		PlayerKey: ev.PlayerKey,
		EventType: ev.Type,
		Severity:  ev.Severity,
		Payload:   datatypes.JSON(payload),
	}
	if ev.DedupKey != "" {
		key := ev.DedupKey
		row.DedupKey = &key
	}
	res := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "dedup_key"}}, DoNothing: true}).Create(&row)
	if res.Error != nil {
		return false, apperrors.Infra(res.Error, "insert risk event")
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	metrics.RecordRiskEvent(ev.Type)
	return true, nil
}
