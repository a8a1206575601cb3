package warrantysync

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultCategory is the part category used when the caller does not name
// one.
const DefaultCategory = "SafetyCulture Units"

// RawRecord is one audit-derived record as supplied by the caller (the
// external scheduler or CLI owns transport and pagination).
type RawRecord struct {
	UnitSN         string          `json:"unit_sn" validate:"required,unit_sn"`
	AuditID        string          `json:"audit_id" validate:"omitempty,max=64"`
	SCModifiedAt   *time.Time      `json:"sc_modified_at"`
	AuditDate      time.Time       `json:"audit_date" validate:"required"`
	WarrantyExpiry *time.Time      `json:"warranty_expiry"`
	UMSSN          string          `json:"ums_sn"`
	TMDeviceID     string          `json:"tm_device_id"`
	ModelNumber    string          `json:"model_number"` // always re-derived, never trusted
	Payload        json.RawMessage `json:"payload"`
}

// Options are the invocation parameters of one engine run.
type Options struct {
	// Limit bounds how many unit records one invocation reconciles
	// (0 = all). Operational throttling only.
	Limit int
	// DryRun simulates every mutating branch, producing identical
	// counters without committing downstream.
	DryRun bool
	// Category is the target part category name, created if absent.
	Category string
	// TriggeredBy tags the run history row (manual/retry/system).
	TriggeredBy string
}

func (o Options) withDefaults() Options {
	if o.Category == "" {
		o.Category = DefaultCategory
	}
	if o.TriggeredBy == "" {
		o.TriggeredBy = "manual"
	}
	return o
}

// Summary is the run outcome handed back to the caller.
type Summary struct {
	PartsCreated  int  `json:"parts_created"`
	BuildsCreated int  `json:"builds_created"`
	BuildsUpdated int  `json:"builds_updated"`
	Skipped       int  `json:"skipped"`
	DryRun        bool `json:"dry_run"`
}

func (s Summary) String() string {
	return fmt.Sprintf("parts_created=%d builds_created=%d builds_updated=%d skipped=%d dry_run=%v",
		s.PartsCreated, s.BuildsCreated, s.BuildsUpdated, s.Skipped, s.DryRun)
}

// ValidationError marks a record-scoped normalization failure: an identity
// pattern mismatch or an audit_id uniqueness violation. It aborts only the
// offending record, never the batch.
type ValidationError struct {
	UnitSN string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record %q: %s", e.UnitSN, e.Reason)
}

// ResolutionError reports that the downstream schema has neither a title
// nor a notes-equivalent field, so previously created orders cannot be
// recognized. The run degrades to possible duplicate creation; it is not
// aborted.
type ResolutionError struct {
	Reason string
}

func (e *ResolutionError) Error() string {
	return "schema resolution degraded: " + e.Reason
}

// ConfigurationError is fatal: the target category or the downstream order
// type cannot be resolved at all, so the invocation aborts before any
// record is processed.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
	}
	return "configuration error: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
