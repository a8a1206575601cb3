package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BuildOrder is the default downstream manufacturing order model. Which of
// the optional columns exist varies by deployment; the sync engine probes
// the concrete type at run start instead of assuming this shape.
type BuildOrder struct {
	ID        int             `gorm:"primaryKey" json:"id"`
	Reference string          `gorm:"size:64;index" json:"reference"`
	PartID    int             `gorm:"index;not null;column:part_id" json:"part_id"`
	Quantity  decimal.Decimal `gorm:"type:decimal(20,4)" json:"quantity"`
	Title     string          `gorm:"size:255;index" json:"title"`
	Notes     string          `gorm:"type:text" json:"notes"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns the order reference. The sync engine never supplies
// one; numbering stays owned by this side to avoid collisions.
func (b *BuildOrder) BeforeCreate(tx *gorm.DB) error {
	if strings.TrimSpace(b.Reference) == "" {
		b.Reference = "BO-" + strings.ToUpper(uuid.NewString()[:8])
	}
	return nil
}
