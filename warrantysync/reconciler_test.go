package warrantysync_test

import (
	"context"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/warranty_backend/models"
	"bitbucket.org/mmdatafocus/warranty_backend/warrantysync"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedUnitRecord(t *testing.T, db *gorm.DB, unitSN, auditID string, auditDate time.Time) {
	t.Helper()
	_, err := warrantysync.Canonicalize(context.Background(), db, warrantysync.RawRecord{
		UnitSN:    unitSN,
		AuditID:   auditID,
		AuditDate: auditDate,
	})
	require.NoError(t, err)
}

func newTestReconciler(t *testing.T, db *gorm.DB, opts warrantysync.Options) *warrantysync.Reconciler {
	t.Helper()
	caps, err := warrantysync.ResolveSchema(db, &models.BuildOrder{}, &models.Part{})
	require.NoError(t, err)
	return warrantysync.NewReconciler(db, db, caps, &models.BuildOrder{}, &models.Part{}, opts, nil)
}

func TestReconcilerCreatesPartsAndBuilds(t *testing.T) {
	db := setupSyncTestDB(t)
	seedUnitRecord(t, db, "IG1AAA001", "a1", date(2024, time.January, 15))
	seedUnitRecord(t, db, "IG1BBB002", "a2", date(2024, time.February, 1))

	sum, err := newTestReconciler(t, db, warrantysync.Options{}).Run(context.Background())
	require.NoError(t, err)

	// Both units share the IG1 model prefix, so one part serves both builds.
	assert.Equal(t, 1, sum.PartsCreated)
	assert.Equal(t, 2, sum.BuildsCreated)
	assert.Equal(t, 0, sum.BuildsUpdated)
	assert.Equal(t, 0, sum.Skipped)

	var cat models.PartCategory
	require.NoError(t, db.First(&cat, "name = ?", warrantysync.DefaultCategory).Error)

	var part models.Part
	require.NoError(t, db.First(&part, "ipn = ?", "IG1").Error)
	assert.Equal(t, "Unit IG1", part.Name)
	assert.Equal(t, cat.ID, part.CategoryID)

	var builds []models.BuildOrder
	require.NoError(t, db.Order("title ASC").Find(&builds).Error)
	require.Len(t, builds, 2)
	assert.Equal(t, "IG1AAA001", builds[0].Title)
	assert.Equal(t, part.ID, builds[0].PartID)
	assert.True(t, builds[0].Quantity.Equal(decimal.NewFromInt(1)))
	assert.Contains(t, builds[0].Notes, warrantysync.Marker("IG1AAA001"))
	assert.Contains(t, builds[0].Notes, "warranty_expiry=2027-01-15")
	assert.NotEmpty(t, builds[0].Reference)
}

func TestReconcilerSecondRunIsNoop(t *testing.T) {
	db := setupSyncTestDB(t)
	seedUnitRecord(t, db, "IG1AAA001", "a1", date(2024, time.January, 15))
	seedUnitRecord(t, db, "IG1BBB002", "a2", date(2024, time.February, 1))

	_, err := newTestReconciler(t, db, warrantysync.Options{}).Run(context.Background())
	require.NoError(t, err)

	sum, err := newTestReconciler(t, db, warrantysync.Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, warrantysync.Summary{}, sum)

	var builds, parts int64
	require.NoError(t, db.Model(&models.BuildOrder{}).Count(&builds).Error)
	require.NoError(t, db.Model(&models.Part{}).Count(&parts).Error)
	assert.Equal(t, int64(2), builds)
	assert.Equal(t, int64(1), parts)
}

func TestReconcilerUpdatesWhenWarrantyChanges(t *testing.T) {
	db := setupSyncTestDB(t)
	ctx := context.Background()
	seedUnitRecord(t, db, "IG1AAA001", "a1", date(2024, time.January, 15))

	_, err := newTestReconciler(t, db, warrantysync.Options{}).Run(ctx)
	require.NoError(t, err)

	// The audit is re-presented with an explicit later expiry.
	newExpiry := date(2030, time.June, 1)
	_, err = warrantysync.Canonicalize(ctx, db, warrantysync.RawRecord{
		UnitSN:         "IG1AAA001",
		AuditID:        "a1",
		AuditDate:      date(2024, time.January, 15),
		WarrantyExpiry: &newExpiry,
	})
	require.NoError(t, err)

	sum, err := newTestReconciler(t, db, warrantysync.Options{}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.BuildsCreated)
	assert.Equal(t, 1, sum.BuildsUpdated)

	var build models.BuildOrder
	require.NoError(t, db.First(&build, "title = ?", "IG1AAA001").Error)
	assert.Contains(t, build.Notes, "warranty_expiry=2030-06-01")
}

func TestReconcilerMatchesPartByIPN(t *testing.T) {
	db := setupSyncTestDB(t)
	existing := models.Part{Name: "Legacy inspection unit", IPN: "IG1"}
	require.NoError(t, db.Create(&existing).Error)
	seedUnitRecord(t, db, "IG1AAA001", "a1", date(2024, time.January, 15))

	sum, err := newTestReconciler(t, db, warrantysync.Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sum.PartsCreated)

	var build models.BuildOrder
	require.NoError(t, db.First(&build, "title = ?", "IG1AAA001").Error)
	assert.Equal(t, existing.ID, build.PartID)
}

func TestReconcilerMatchesPartNameCaseInsensitively(t *testing.T) {
	db := setupSyncTestDB(t)
	existing := models.Part{Name: "uNiT ig1"}
	require.NoError(t, db.Create(&existing).Error)
	seedUnitRecord(t, db, "IG1AAA001", "a1", date(2024, time.January, 15))

	sum, err := newTestReconciler(t, db, warrantysync.Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sum.PartsCreated)

	var build models.BuildOrder
	require.NoError(t, db.First(&build, "title = ?", "IG1AAA001").Error)
	assert.Equal(t, existing.ID, build.PartID)
}

func TestReconcilerForcesQuantityBackToOne(t *testing.T) {
	db := setupSyncTestDB(t)
	ctx := context.Background()
	seedUnitRecord(t, db, "IG1AAA001", "a1", date(2024, time.January, 15))

	_, err := newTestReconciler(t, db, warrantysync.Options{}).Run(ctx)
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.BuildOrder{}).
		Where("title = ?", "IG1AAA001").
		Update("quantity", 5).Error)

	sum, err := newTestReconciler(t, db, warrantysync.Options{}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.BuildsUpdated)

	var build models.BuildOrder
	require.NoError(t, db.First(&build, "title = ?", "IG1AAA001").Error)
	assert.True(t, build.Quantity.Equal(decimal.NewFromInt(1)))
}

func TestReconcilerNotesOnlySchemaStaysIdempotent(t *testing.T) {
	db := setupSyncTestDB(t)
	require.NoError(t, db.AutoMigrate(&notesOnlyBuild{}))
	ctx := context.Background()
	seedUnitRecord(t, db, "IG1AAA001", "a1", date(2024, time.January, 15))

	caps, err := warrantysync.ResolveSchema(db, &notesOnlyBuild{}, &models.Part{})
	require.NoError(t, err)

	run := func() warrantysync.Summary {
		r := warrantysync.NewReconciler(db, db, caps, &notesOnlyBuild{}, &models.Part{}, warrantysync.Options{}, nil)
		sum, err := r.Run(ctx)
		require.NoError(t, err)
		return sum
	}

	first := run()
	assert.Equal(t, 1, first.BuildsCreated)

	// Without a title field the marker in the notes is the only handle.
	second := run()
	assert.Equal(t, 0, second.BuildsCreated)
	assert.Equal(t, 0, second.BuildsUpdated)

	var count int64
	require.NoError(t, db.Model(&notesOnlyBuild{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestReconcilerBareSchemaCreatesDuplicates(t *testing.T) {
	db := setupSyncTestDB(t)
	require.NoError(t, db.AutoMigrate(&bareBuild{}))
	ctx := context.Background()
	seedUnitRecord(t, db, "IG1AAA001", "a1", date(2024, time.January, 15))

	caps, err := warrantysync.ResolveSchema(db, &bareBuild{}, &models.Part{})
	require.NoError(t, err)
	require.False(t, caps.CanMatch())

	for i := 0; i < 2; i++ {
		r := warrantysync.NewReconciler(db, db, caps, &bareBuild{}, &models.Part{}, warrantysync.Options{}, nil)
		sum, err := r.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, sum.BuildsCreated)
	}

	// Existing orders are unfindable, so reruns duplicate. Degraded but
	// accepted; the run only warns.
	var count int64
	require.NoError(t, db.Model(&bareBuild{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestReconcilerHonorsLimit(t *testing.T) {
	db := setupSyncTestDB(t)
	seedUnitRecord(t, db, "IG1AAA001", "a1", date(2024, time.January, 15))
	seedUnitRecord(t, db, "IG1BBB002", "a2", date(2024, time.February, 1))
	seedUnitRecord(t, db, "IG1CCC003", "a3", date(2024, time.March, 1))

	sum, err := newTestReconciler(t, db, warrantysync.Options{Limit: 2}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.BuildsCreated)
}

func TestReconcilerSkipsBlankUnitSN(t *testing.T) {
	db := setupSyncTestDB(t)
	// Bypass validation and hooks; legacy rows may carry a blank serial.
	now := time.Now().UTC()
	require.NoError(t, db.Exec(
		"INSERT INTO unit_records (unit_sn, model_number, audit_date, created, updated) VALUES (?, ?, ?, ?, ?)",
		"", "", date(2024, time.January, 15), now, now,
	).Error)

	sum, err := newTestReconciler(t, db, warrantysync.Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 0, sum.BuildsCreated)
}

func TestReconcilerFallsBackToUnknownPart(t *testing.T) {
	db := setupSyncTestDB(t)
	now := time.Now().UTC()
	require.NoError(t, db.Exec(
		"INSERT INTO unit_records (unit_sn, model_number, audit_date, created, updated) VALUES (?, ?, ?, ?, ?)",
		"IG1ZZZ999", "", date(2024, time.January, 15), now, now,
	).Error)

	sum, err := newTestReconciler(t, db, warrantysync.Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.PartsCreated)
	assert.Equal(t, 1, sum.BuildsCreated)

	var part models.Part
	require.NoError(t, db.First(&part, "ipn = ?", "UNKNOWN").Error)
	assert.Equal(t, "Unit UNKNOWN", part.Name)
}
