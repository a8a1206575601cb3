package warrantysync

import (
	"errors"

	"bitbucket.org/mmdatafocus/warranty_backend/models"
	"gorm.io/gorm"
)

// WrapDryRun returns a reconciler whose mutating branches update counters
// only and return without committing. Lookups and matching run unchanged,
// so dry-run counters reliably preview what a committing run would do to
// the same snapshot.
func WrapDryRun(r *Reconciler) *Reconciler {
	dry := *r
	dry.opts.DryRun = true
	dry.mut = dryMutator{}
	dry.partCache = map[string]interface{}{}
	return &dry
}

// dryMutator executes no writes. Created entities keep their zero IDs;
// they are hypothetical.
type dryMutator struct{}

func (dryMutator) ensureCategory(tx *gorm.DB, name string) (int, error) {
	var cat models.PartCategory
	err := tx.Where("name = ?", name).Take(&cat).Error
	if err == nil {
		return cat.ID, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Would be created by a committing run.
		return 0, nil
	}
	return 0, err
}

func (dryMutator) createPart(tx *gorm.DB, part interface{}) error {
	return nil
}

func (dryMutator) createBuild(tx *gorm.DB, build interface{}) error {
	return nil
}

func (dryMutator) updateBuild(tx *gorm.DB, build interface{}, updates map[string]interface{}) error {
	return nil
}
