package warrantysync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/warranty_backend/models"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Identity pattern for the primary serial lives on the model; the raw
	// record check reuses it so violations fail before any write.
	_ = v.RegisterValidation("unit_sn", func(fl validator.FieldLevel) bool {
		return models.UnitSNPattern.MatchString(fl.Field().String())
	})
	return v
}

// Canonicalize validates one raw record and upserts the canonical Unit
// Record. Base and derived fields persist atomically in one statement;
// derivation itself runs in the model's BeforeSave hook so it applies to
// every write path. Identity-pattern and audit_id uniqueness violations
// come back as *ValidationError, scoped to this record.
func Canonicalize(ctx context.Context, db *gorm.DB, raw RawRecord) (*models.UnitRecord, error) {
	raw.UnitSN = strings.TrimSpace(raw.UnitSN)

	if err := validate.Struct(raw); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, &ValidationError{
				UnitSN: raw.UnitSN,
				Reason: fmt.Sprintf("field %s failed %q", verrs[0].Field(), verrs[0].Tag()),
			}
		}
		return nil, err
	}

	rec := &models.UnitRecord{
		UnitSN:         raw.UnitSN,
		AuditID:        optional(raw.AuditID),
		SCModifiedAt:   raw.SCModifiedAt,
		AuditDate:      raw.AuditDate,
		WarrantyExpiry: raw.WarrantyExpiry,
		UMSSN:          optional(raw.UMSSN),
		TMDeviceID:     optional(raw.TMDeviceID),
		Payload:        raw.Payload,
	}

	tx := db.WithContext(ctx)

	// audit_id is globally unique across units. A clash with a different
	// unit_sn is a validation failure, not a derivation bug.
	if rec.AuditID != nil {
		var count int64
		err := tx.Model(&models.UnitRecord{}).
			Where("audit_id = ? AND unit_sn <> ?", *rec.AuditID, rec.UnitSN).
			Count(&count).Error
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, &ValidationError{
				UnitSN: rec.UnitSN,
				Reason: fmt.Sprintf("audit_id %q already belongs to another unit", *rec.AuditID),
			}
		}
	}

	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "unit_sn"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"audit_id", "sc_modified_at", "model_number", "ums_sn",
			"audit_date", "warranty_expiry", "tm_device_id", "payload", "updated",
		}),
	}).Create(rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &ValidationError{UnitSN: rec.UnitSN, Reason: "uniqueness violation: " + err.Error()}
		}
		return nil, err
	}
	return rec, nil
}

// CanonicalizeBatch processes raw records one by one. A failing record is
// logged, captured as a WarrantySyncError row (when runID is set), and
// skipped; the batch continues. It returns how many records persisted, how
// many failed, and the highest external watermark seen so the orchestrator
// can advance the cursor once the batch has fully committed.
func CanonicalizeBatch(ctx context.Context, db *gorm.DB, raws []RawRecord, logger *logrus.Logger, runID uint) (ok int, failed int, watermark *time.Time, lastAuditID string) {
	for _, raw := range raws {
		rec, err := Canonicalize(ctx, db, raw)
		if err != nil {
			failed++
			code := "persist_failed"
			retryable := true
			var verr *ValidationError
			if errors.As(err, &verr) {
				code = "validation_failed"
				retryable = false
			}
			if logger != nil {
				logger.WithFields(logrus.Fields{
					"module":   "warrantysync",
					"unit_sn":  raw.UnitSN,
					"audit_id": raw.AuditID,
					"code":     code,
				}).Warn(err.Error())
			}
			if runID > 0 {
				_ = db.WithContext(ctx).Create(&models.WarrantySyncError{
					SyncRunID:   runID,
					UnitSN:      raw.UnitSN,
					AuditID:     raw.AuditID,
					ErrorCode:   code,
					Message:     err.Error(),
					PayloadJSON: raw.Payload,
					Retryable:   retryable,
				}).Error
			}
			continue
		}
		ok++
		if rec.SCModifiedAt != nil && (watermark == nil || rec.SCModifiedAt.After(*watermark)) {
			w := *rec.SCModifiedAt
			watermark = &w
			if rec.AuditID != nil {
				lastAuditID = *rec.AuditID
			} else {
				lastAuditID = ""
			}
		}
	}
	return ok, failed, watermark, lastAuditID
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
