package models

import (
	"log"

	"bitbucket.org/mmdatafocus/warranty_backend/config"
	"gorm.io/gorm"
)

// MigrateAll runs AutoMigrate for every table this module owns, plus the
// default downstream models used by the standard deployment.
func MigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&UnitRecord{}, &WarrantySyncState{}, &WarrantySetting{},
		&WarrantySyncRun{}, &WarrantySyncError{},
		&PartCategory{}, &Part{}, &BuildOrder{},
	)
}

func MigrateTable() {
	db := config.GetDB()

	if err := MigrateAll(db); err != nil {
		log.Fatal(err)
	}
}
