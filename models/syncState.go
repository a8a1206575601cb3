package models

import (
	"time"

	"gorm.io/gorm"
)

// SyncStateDefaultID is the fixed primary key of the singleton cursor row.
const SyncStateDefaultID = "default"

// WarrantySyncState persists the incremental sync cursor: the last external
// modified_at timestamp (and audit id) that a fully committed batch has
// processed. A mid-batch crash resumes from the prior cursor; redelivery is
// safe because canonicalization and reconciliation are idempotent.
type WarrantySyncState struct {
	ID             string     `gorm:"primaryKey;size:32;column:id" json:"id"`
	LastModifiedAt *time.Time `gorm:"index;column:last_modified_at" json:"last_modified_at"`
	LastAuditID    string     `gorm:"size:64;column:last_audit_id" json:"last_audit_id"`
	Updated        time.Time  `gorm:"autoUpdateTime;column:updated" json:"updated"`
}

// GetSyncState fetches (creating if needed) the singleton cursor row.
func GetSyncState(db *gorm.DB) (*WarrantySyncState, error) {
	state := WarrantySyncState{ID: SyncStateDefaultID}
	if err := db.FirstOrCreate(&state, WarrantySyncState{ID: SyncStateDefaultID}).Error; err != nil {
		return nil, err
	}
	return &state, nil
}

// AdvanceSyncCursor moves the watermark forward. Advancing must be the last
// step of a fully successful batch; a cursor that is already at or beyond
// modifiedAt is left untouched.
func AdvanceSyncCursor(db *gorm.DB, modifiedAt time.Time, auditID string) error {
	state, err := GetSyncState(db)
	if err != nil {
		return err
	}
	if state.LastModifiedAt != nil && !state.LastModifiedAt.Before(modifiedAt) {
		return nil
	}
	return db.Model(state).Updates(map[string]interface{}{
		"last_modified_at": modifiedAt,
		"last_audit_id":    auditID,
	}).Error
}
