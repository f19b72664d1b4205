package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/tbraams/barkeep-backend/pkg/errors"
	"github.com/tbraams/barkeep-backend/pkg/money"
)

// Product is the stable identity row of a revisioned product. Its fields live
// in revisions; the base only tracks ownership and the current revision
// pointer, which is nil until the first approval.
type Product struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID         uuid.UUID `gorm:"column:owner_id;type:uuid;not null"`
	CurrentRevision *int      `gorm:"column:current_revision"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ProductUpdate is the single pending draft for a product. At most one row
// per product; replaced wholesale when a new draft is proposed.
type ProductUpdate struct {
	ProductID uuid.UUID   `gorm:"column:product_id;type:uuid;primaryKey"`
	Name      string      `gorm:"column:name;not null"`
	Category  string      `gorm:"column:category;not null"`
	Price     money.Money `gorm:"embedded;embeddedPrefix:price_"`
	CreatedAt time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}

func (ProductUpdate) TableName() string { return "product_updates" }

// ProductRevision is an immutable, numbered snapshot of a product's fields.
// Revisions are append-only: numbering starts at 1 and increments by exactly
// one per approval.
type ProductRevision struct {
	ProductID uuid.UUID   `gorm:"column:product_id;type:uuid;primaryKey"`
	Revision  int         `gorm:"column:revision;primaryKey"`
	Name      string      `gorm:"column:name;not null"`
	Category  string      `gorm:"column:category;not null"`
	Price     money.Money `gorm:"embedded;embeddedPrefix:price_"`
	CreatedAt time.Time   `gorm:"column:created_at;autoCreateTime"`
}

func (ProductRevision) TableName() string { return "product_revisions" }

func (ProductRevision) BeforeUpdate(*gorm.DB) error {
	return pkgerrors.New(pkgerrors.CodeImmutable, "product revisions cannot be updated")
}

func (ProductRevision) BeforeDelete(*gorm.DB) error {
	return pkgerrors.New(pkgerrors.CodeImmutable, "product revisions cannot be deleted")
}
