package warrantysync

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"bitbucket.org/mmdatafocus/warranty_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Marker is the versioned tag embedded in an order's free-text field so a
// previously created order can be recognized when the schema offers no
// reliable business key.
func Marker(unitSN string) string {
	return "SC_UNIT_SN=" + unitSN
}

func composeNote(unitSN string, rec models.UnitRecord) string {
	auditID := ""
	if rec.AuditID != nil {
		auditID = *rec.AuditID
	}
	expiry := ""
	if rec.WarrantyExpiry != nil {
		expiry = rec.WarrantyExpiry.Format("2006-01-02")
	}
	return fmt.Sprintf("%s | audit_id=%s | audit_date=%s | warranty_expiry=%s",
		Marker(unitSN), auditID, rec.AuditDate.Format("2006-01-02"), expiry)
}

// mutator is the write seam between the reconciler and the downstream
// store. The committing implementation performs the GORM writes; the
// dry-run implementation returns without touching the store so identical
// lookup and matching logic still executes.
type mutator interface {
	ensureCategory(tx *gorm.DB, name string) (int, error)
	createPart(tx *gorm.DB, part interface{}) error
	createBuild(tx *gorm.DB, build interface{}) error
	updateBuild(tx *gorm.DB, build interface{}, updates map[string]interface{}) error
}

type commitMutator struct{}

func (commitMutator) ensureCategory(tx *gorm.DB, name string) (int, error) {
	cat := models.PartCategory{Name: name}
	if err := tx.Where("name = ?", name).FirstOrCreate(&cat).Error; err != nil {
		return 0, err
	}
	return cat.ID, nil
}

func (commitMutator) createPart(tx *gorm.DB, part interface{}) error {
	return tx.Create(part).Error
}

func (commitMutator) createBuild(tx *gorm.DB, build interface{}) error {
	return tx.Create(build).Error
}

func (commitMutator) updateBuild(tx *gorm.DB, build interface{}, updates map[string]interface{}) error {
	return tx.Model(build).Updates(updates).Error
}

// Reconciler projects canonical Unit Records into downstream Part and Build
// Order entities, idempotently, guided by the probed schema capabilities.
type Reconciler struct {
	records    *gorm.DB
	downstream *gorm.DB
	caps       *Capabilities
	buildType  reflect.Type
	partType   reflect.Type
	opts       Options
	logger     *logrus.Logger
	mut        mutator

	categoryID int
	partCache  map[string]interface{}
}

// NewReconciler builds a reconciler over the canonical record store and the
// downstream store. buildModel and partModel are the deployment's concrete
// downstream types; caps must come from ResolveSchema over the same types.
func NewReconciler(records *gorm.DB, downstream *gorm.DB, caps *Capabilities, buildModel interface{}, partModel interface{}, opts Options, logger *logrus.Logger) *Reconciler {
	r := &Reconciler{
		records:    records,
		downstream: downstream,
		caps:       caps,
		buildType:  baseType(buildModel),
		partType:   baseType(partModel),
		opts:       opts.withDefaults(),
		logger:     logger,
		mut:        commitMutator{},
		partCache:  map[string]interface{}{},
	}
	if r.opts.DryRun {
		return WrapDryRun(r)
	}
	return r
}

type reconcileOutcome int

const (
	outcomeUnchanged reconcileOutcome = iota
	outcomeCreated
	outcomeUpdated
	outcomeSkipped
)

type reconcileResult struct {
	outcome      reconcileOutcome
	partsCreated int
	part         interface{}
	cacheKey     string
}

// Run processes canonical records in ascending unit_sn order. Each record's
// downstream writes happen in one all-or-nothing transaction; a failed
// record is counted as skipped and the batch continues. A missing target
// category or order type aborts before any record processes.
func (r *Reconciler) Run(ctx context.Context) (Summary, error) {
	sum := Summary{DryRun: r.opts.DryRun}

	catID, err := r.mut.ensureCategory(r.downstream.WithContext(ctx), r.opts.Category)
	if err != nil {
		return sum, &ConfigurationError{Reason: fmt.Sprintf("target category %q unresolvable", r.opts.Category), Err: err}
	}
	r.categoryID = catID

	if !r.caps.CanMatch() && r.logger != nil {
		resErr := &ResolutionError{Reason: "build order schema has neither title nor notes field; existing orders are not findable and duplicates may be created"}
		r.logger.WithFields(logrus.Fields{
			"module":   "warrantysync",
			"funcName": "Reconciler.Run",
		}).Warn(resErr.Error())
	}

	var unitRecords []models.UnitRecord
	q := r.records.WithContext(ctx).Order("unit_sn ASC")
	if r.opts.Limit > 0 {
		q = q.Limit(r.opts.Limit)
	}
	if err := q.Find(&unitRecords).Error; err != nil {
		return sum, err
	}

	for _, rec := range unitRecords {
		unitSN := strings.ToUpper(strings.TrimSpace(rec.UnitSN))
		if unitSN == "" {
			sum.Skipped++
			continue
		}

		res, err := r.reconcileRecord(ctx, rec, unitSN)
		if err != nil {
			sum.Skipped++
			if r.logger != nil {
				r.logger.WithFields(logrus.Fields{
					"module":   "warrantysync",
					"funcName": "Reconciler.Run",
					"unit_sn":  unitSN,
				}).Error(err.Error())
			}
			continue
		}

		sum.PartsCreated += res.partsCreated
		switch res.outcome {
		case outcomeCreated:
			sum.BuildsCreated++
		case outcomeUpdated:
			sum.BuildsUpdated++
		case outcomeSkipped:
			sum.Skipped++
		}
		// The part cache is only populated once the record's transaction
		// has committed, so a rollback never leaks a phantom part.
		if res.cacheKey != "" && res.part != nil {
			r.partCache[res.cacheKey] = res.part
		}
	}

	return sum, nil
}

func (r *Reconciler) reconcileRecord(ctx context.Context, rec models.UnitRecord, unitSN string) (reconcileResult, error) {
	var res reconcileResult
	if r.opts.DryRun {
		// The dry mutator never writes, so no transaction is needed and
		// none must be opened: nothing may commit.
		var err error
		res, err = r.reconcileIn(r.downstream.WithContext(ctx), rec, unitSN)
		return res, err
	}
	err := r.downstream.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = r.reconcileIn(tx, rec, unitSN)
		return err
	})
	return res, err
}

func (r *Reconciler) reconcileIn(tx *gorm.DB, rec models.UnitRecord, unitSN string) (reconcileResult, error) {
	res := reconcileResult{outcome: outcomeUnchanged}

	part, created, key, err := r.resolvePart(tx, rec.ModelNumber)
	if err != nil {
		return res, err
	}
	if part == nil {
		// Dry run only: no part could be hypothetically resolved.
		res.outcome = outcomeSkipped
		return res, nil
	}
	if created {
		res.partsCreated = 1
	}
	res.part = part
	res.cacheKey = key
	partID := getFieldInt(part, "ID")

	marker := Marker(unitSN)
	note := composeNote(unitSN, rec)

	existing, err := r.findExisting(tx, unitSN, marker)
	if err != nil {
		return res, err
	}

	if existing != nil {
		updates := map[string]interface{}{}
		if getFieldInt(existing, r.caps.PartID.Name) != partID {
			updates[r.caps.PartID.DBName] = partID
		}
		if r.caps.Quantity != nil {
			if qty := fieldValue(existing, r.caps.Quantity.Name); qty.IsValid() && !quantityIsOne(qty) {
				updates[r.caps.Quantity.DBName] = quantityOneFor(qty)
			}
		}
		if r.caps.Title != nil && getFieldString(existing, r.caps.Title.Name) != unitSN {
			updates[r.caps.Title.DBName] = unitSN
		}
		if r.caps.Notes != nil {
			cur := getFieldString(existing, r.caps.Notes.Name)
			if !strings.Contains(cur, marker) {
				updates[r.caps.Notes.DBName] = note
			} else if cur != note {
				// Marker present but content drifted (e.g. warranty_expiry
				// changed): the whole field is rewritten.
				updates[r.caps.Notes.DBName] = note
			}
		}

		if len(updates) == 0 {
			return res, nil
		}
		if err := r.mut.updateBuild(tx, existing, updates); err != nil {
			return res, err
		}
		res.outcome = outcomeUpdated
		return res, nil
	}

	build := newModel(r.buildType)
	setFieldInt(build, r.caps.PartID.Name, partID)
	if r.caps.Quantity != nil {
		setQuantityOne(build, r.caps.Quantity.Name)
	}
	if r.caps.Title != nil {
		setFieldString(build, r.caps.Title.Name, unitSN)
	}
	if r.caps.Notes != nil {
		setFieldString(build, r.caps.Notes.Name, note)
	}
	// The order reference/number is never supplied; the downstream side
	// auto-generates it to avoid numbering collisions.
	if err := r.mut.createBuild(tx, build); err != nil {
		return res, err
	}
	res.outcome = outcomeCreated
	return res, nil
}

// resolvePart returns the part for a model number key: exact inventory
// number match when the part type declares one, else case-insensitive name
// match on "Unit <key>", else a newly created part. Resolved parts are
// cached per run by the caller.
func (r *Reconciler) resolvePart(tx *gorm.DB, modelNumber string) (part interface{}, created bool, key string, err error) {
	key = strings.ToUpper(strings.TrimSpace(modelNumber))
	if key == "" {
		key = "UNKNOWN"
	}
	if cached, ok := r.partCache[key]; ok {
		return cached, false, key, nil
	}

	if r.caps.PartIPN != nil {
		dest := newModel(r.partType)
		err := tx.Where(r.caps.PartIPN.DBName+" = ?", key).First(dest).Error
		if err == nil {
			return dest, false, key, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, key, err
		}
	}

	name := "Unit " + key
	dest := newModel(r.partType)
	err = tx.Where("LOWER("+r.caps.PartName.DBName+") = ?", strings.ToLower(name)).First(dest).Error
	if err == nil {
		return dest, false, key, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, key, err
	}

	created = true
	part = newModel(r.partType)
	setFieldString(part, r.caps.PartName.Name, name)
	if r.caps.PartCategoryID != nil {
		setFieldInt(part, r.caps.PartCategoryID.Name, r.categoryID)
	}
	if r.caps.PartDescription != nil {
		setFieldString(part, r.caps.PartDescription.Name, "Auto-created from SafetyCulture warranty sync")
	}
	if r.caps.PartIPN != nil {
		setFieldString(part, r.caps.PartIPN.Name, key)
	}
	if err := r.mut.createPart(tx, part); err != nil {
		return nil, false, key, err
	}
	return part, created, key, nil
}

// findExisting locates the build order previously created for this unit.
// A title field wins: the title is the unit serial itself. Without one the
// marker is searched in the notes-equivalent field. With neither, no lookup
// is possible and the caller creates a new order (accepted duplicate risk).
func (r *Reconciler) findExisting(tx *gorm.DB, unitSN string, marker string) (interface{}, error) {
	if r.caps.Title != nil {
		dest := newModel(r.buildType)
		err := tx.Where(r.caps.Title.DBName+" = ?", unitSN).First(dest).Error
		if err == nil {
			return dest, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, nil
	}
	if r.caps.Notes != nil {
		dest := newModel(r.buildType)
		err := tx.Where(r.caps.Notes.DBName+" LIKE ?", "%"+marker+"%").First(dest).Error
		if err == nil {
			return dest, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, nil
	}
	return nil, nil
}
