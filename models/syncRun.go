package models

import "time"

const (
	SyncRunStatusQueued  = "queued"
	SyncRunStatusRunning = "running"
	SyncRunStatusSuccess = "success"
	SyncRunStatusFailed  = "failed"
	SyncRunStatusPartial = "partial"
)

const (
	SyncTriggeredManual = "manual"
	SyncTriggeredRetry  = "retry"
	SyncTriggeredSystem = "system"
)

// WarrantySyncRun is one invocation of the sync engine, kept for operator
// visibility into what each run did.
type WarrantySyncRun struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Status        string     `gorm:"size:20;not null;index" json:"status"`
	TriggeredBy   string     `gorm:"size:20" json:"triggered_by"`
	CorrelationID string     `gorm:"size:64;column:correlation_id" json:"correlation_id"`
	DryRun        bool       `gorm:"column:dry_run" json:"dry_run"`
	StatsJSON     []byte     `gorm:"type:json;column:stats_json" json:"stats"`
	RecordsSynced int        `json:"records_synced"`
	ErrorCount    int        `json:"error_count"`
	StartedAt     *time.Time `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
	DurationMs    int64      `json:"duration_ms"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// WarrantySyncError captures one record-scoped failure inside a run. The
// batch keeps going; these rows are the audit trail of what was skipped.
type WarrantySyncError struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SyncRunID   uint      `gorm:"index;not null;column:sync_run_id" json:"sync_run_id"`
	UnitSN      string    `gorm:"size:64;column:unit_sn" json:"unit_sn"`
	AuditID     string    `gorm:"size:64;column:audit_id" json:"audit_id"`
	ErrorCode   string    `gorm:"size:64" json:"error_code"`
	Message     string    `gorm:"type:text" json:"message"`
	PayloadJSON []byte    `gorm:"type:json;column:payload_json" json:"payload"`
	Retryable   bool      `gorm:"default:false" json:"retryable"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
