package warrantysync

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/warranty_backend/config"
	"bitbucket.org/mmdatafocus/warranty_backend/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Deps are the collaborators one engine run needs: the canonical record
// store, the downstream order store (may be the same handle), and the
// deployment's concrete downstream model types.
type Deps struct {
	Records    *gorm.DB
	Downstream *gorm.DB
	BuildModel interface{}
	PartModel  interface{}
	Logger     *logrus.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Downstream == nil {
		d.Downstream = d.Records
	}
	if d.BuildModel == nil {
		d.BuildModel = &models.BuildOrder{}
	}
	if d.PartModel == nil {
		d.PartModel = &models.Part{}
	}
	if d.Logger == nil {
		d.Logger = config.GetLogger()
	}
	return d
}

// RunSync is one engine invocation: canonicalize the supplied raw records,
// reconcile the canonical store into the downstream store, then advance the
// sync cursor as the last step of a fully successful batch. Every run
// leaves a WarrantySyncRun history row. A dry run ingests nothing and
// leaves the cursor untouched; only the reconciliation preview executes.
func RunSync(ctx context.Context, deps Deps, raws []RawRecord, opts Options) (Summary, error) {
	deps = deps.withDefaults()
	opts = opts.withDefaults()
	logger := deps.Logger

	run := models.WarrantySyncRun{
		Status:        models.SyncRunStatusQueued,
		TriggeredBy:   opts.TriggeredBy,
		CorrelationID: uuid.NewString(),
		DryRun:        opts.DryRun,
	}
	if err := deps.Records.WithContext(ctx).Create(&run).Error; err != nil {
		return Summary{DryRun: opts.DryRun}, err
	}

	started := time.Now()
	if err := deps.Records.WithContext(ctx).Model(&run).Updates(map[string]interface{}{
		"status":     models.SyncRunStatusRunning,
		"started_at": started,
	}).Error; err != nil {
		return Summary{DryRun: opts.DryRun}, err
	}

	caps, err := ResolveSchema(deps.Downstream, deps.BuildModel, deps.PartModel)
	if err != nil {
		finalizeRun(ctx, deps.Records, &run, models.SyncRunStatusFailed, started, Summary{DryRun: opts.DryRun}, 0, 0)
		return Summary{DryRun: opts.DryRun}, err
	}

	var canonicalized, failed int
	var watermark *time.Time
	var lastAuditID string
	if opts.DryRun {
		if len(raws) > 0 {
			logger.WithFields(logrus.Fields{
				"module": "warrantysync",
				"count":  len(raws),
			}).Info("dry run: raw records are not ingested")
		}
	} else {
		canonicalized, failed, watermark, lastAuditID = CanonicalizeBatch(ctx, deps.Records, raws, logger, run.ID)
	}

	rec := NewReconciler(deps.Records, deps.Downstream, caps, deps.BuildModel, deps.PartModel, opts, logger)
	sum, err := rec.Run(ctx)
	if err != nil {
		finalizeRun(ctx, deps.Records, &run, models.SyncRunStatusFailed, started, sum, canonicalized, failed)
		return sum, err
	}

	// The cursor advance is the last step, and only after a batch with no
	// failures: a crash or a bad record means the next run resumes from the
	// prior watermark and redelivers (safe, everything is idempotent).
	if !opts.DryRun && failed == 0 && watermark != nil {
		if err := models.AdvanceSyncCursor(deps.Records.WithContext(ctx), *watermark, lastAuditID); err != nil {
			config.LogError(logger, "warrantysync", "RunSync", "advance sync cursor", nil, err)
		}
	}

	status := models.SyncRunStatusSuccess
	if failed > 0 && canonicalized == 0 && len(raws) > 0 {
		status = models.SyncRunStatusFailed
	} else if failed > 0 || sum.Skipped > 0 {
		status = models.SyncRunStatusPartial
	}
	finalizeRun(ctx, deps.Records, &run, status, started, sum, canonicalized, failed)

	return sum, nil
}

func finalizeRun(ctx context.Context, db *gorm.DB, run *models.WarrantySyncRun, status string, started time.Time, sum Summary, canonicalized int, failed int) {
	finished := time.Now()
	stats := map[string]interface{}{
		"canonicalized":       canonicalized,
		"canonicalize_failed": failed,
		"parts_created":       sum.PartsCreated,
		"builds_created":      sum.BuildsCreated,
		"builds_updated":      sum.BuildsUpdated,
		"skipped":             sum.Skipped,
		"dry_run":             sum.DryRun,
	}
	statsJSON, _ := json.Marshal(stats)
	_ = db.WithContext(ctx).Model(run).Updates(map[string]interface{}{
		"status":         status,
		"finished_at":    finished,
		"duration_ms":    finished.Sub(started).Milliseconds(),
		"records_synced": canonicalized,
		"error_count":    failed,
		"stats_json":     statsJSON,
	}).Error
}
