package models

import "time"

// PartCategory groups the parts this engine creates. The target category is
// an invocation parameter and is created when absent.
type PartCategory struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Part is the default downstream part model. Deployments may substitute
// their own type; the reconciler only relies on Name and, when declared,
// IPN, CategoryID and Description (all probed at run start).
type Part struct {
	ID          int       `gorm:"primaryKey" json:"id"`
	CategoryID  int       `gorm:"index;column:category_id" json:"category_id"`
	Name        string    `gorm:"size:255;index;not null" json:"name"`
	IPN         string    `gorm:"size:100;index;column:ipn" json:"ipn"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
