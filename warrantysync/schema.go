package warrantysync

import (
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// FieldRef points at one declared field of a downstream model: the Go field
// name for reflection and the DB column for queries.
type FieldRef struct {
	Name   string
	DBName string
}

// Capabilities is the descriptor the Schema Resolver hands to the
// Reconciler: which optional fields the downstream Build Order and Part
// types actually declare in this deployment. Resolved once per run, never
// re-probed per record.
type Capabilities struct {
	// Build Order fields. Title and Notes are nil when the deployment's
	// schema lacks them; Notes prefers a notes-style field and falls back
	// to a description-style one.
	Title    *FieldRef
	Notes    *FieldRef
	Quantity *FieldRef
	PartID   FieldRef

	// Part fields. PartIPN is nil when the part type has no stable
	// inventory number.
	PartName        FieldRef
	PartIPN         *FieldRef
	PartCategoryID  *FieldRef
	PartDescription *FieldRef
}

// CanMatch reports whether existing build orders are findable at all. With
// neither a title nor a notes-equivalent field the engine cannot recognize
// its own records and reruns will create duplicates.
func (c *Capabilities) CanMatch() bool {
	return c.Title != nil || c.Notes != nil
}

// ResolveSchema probes the downstream Build Order and Part types. It never
// assumes a field exists; anything optional that is missing comes back nil.
// An order type without a part reference, or a part type without a name,
// cannot be reconciled against at all and fails the whole invocation.
func ResolveSchema(db *gorm.DB, buildModel interface{}, partModel interface{}) (*Capabilities, error) {
	namer := db.NamingStrategy

	buildSchema, err := schema.Parse(buildModel, &sync.Map{}, namer)
	if err != nil {
		return nil, &ConfigurationError{Reason: "downstream build order type unresolvable", Err: err}
	}
	partSchema, err := schema.Parse(partModel, &sync.Map{}, namer)
	if err != nil {
		return nil, &ConfigurationError{Reason: "downstream part type unresolvable", Err: err}
	}

	caps := &Capabilities{
		Title:    fieldRef(buildSchema, "Title"),
		Quantity: fieldRef(buildSchema, "Quantity"),
	}

	caps.Notes = fieldRef(buildSchema, "Notes")
	if caps.Notes == nil {
		caps.Notes = fieldRef(buildSchema, "Description")
	}

	partID := fieldRef(buildSchema, "PartID")
	if partID == nil {
		return nil, &ConfigurationError{Reason: "build order type has no part reference field"}
	}
	caps.PartID = *partID

	partName := fieldRef(partSchema, "Name")
	if partName == nil {
		return nil, &ConfigurationError{Reason: "part type has no name field"}
	}
	caps.PartName = *partName
	caps.PartIPN = fieldRef(partSchema, "IPN")
	caps.PartCategoryID = fieldRef(partSchema, "CategoryID")
	caps.PartDescription = fieldRef(partSchema, "Description")

	return caps, nil
}

func fieldRef(s *schema.Schema, name string) *FieldRef {
	f := s.LookUpField(name)
	if f == nil || f.DBName == "" {
		return nil
	}
	// LookUpField also matches column names; only accept the declared Go
	// field so probing stays by field identity.
	if f.Name != name {
		return nil
	}
	return &FieldRef{Name: f.Name, DBName: f.DBName}
}
