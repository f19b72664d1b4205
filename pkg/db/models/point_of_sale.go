package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/tbraams/barkeep-backend/pkg/errors"
)

// PointOfSale is the stable identity row of a revisioned point of sale.
type PointOfSale struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID         uuid.UUID `gorm:"column:owner_id;type:uuid;not null"`
	CurrentRevision *int      `gorm:"column:current_revision"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (PointOfSale) TableName() string { return "points_of_sale" }

func (p *PointOfSale) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PointOfSaleUpdate is the single pending draft for a point of sale. Listed
// containers must already carry an approved revision by approval time; POS
// approval never cascades into container approval.
type PointOfSaleUpdate struct {
	PointOfSaleID     uuid.UUID                    `gorm:"column:point_of_sale_id;type:uuid;primaryKey"`
	Name              string                       `gorm:"column:name;not null"`
	UseAuthentication bool                         `gorm:"column:use_authentication;not null;default:false"`
	Containers        []PointOfSaleUpdateContainer `gorm:"foreignKey:PointOfSaleID;references:PointOfSaleID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time                    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                    `gorm:"column:updated_at;autoUpdateTime"`
}

func (PointOfSaleUpdate) TableName() string { return "point_of_sale_updates" }

// PointOfSaleUpdateContainer is one proposed container membership in a draft.
type PointOfSaleUpdateContainer struct {
	PointOfSaleID uuid.UUID `gorm:"column:point_of_sale_id;type:uuid;primaryKey"`
	ContainerID   uuid.UUID `gorm:"column:container_id;type:uuid;primaryKey"`
}

func (PointOfSaleUpdateContainer) TableName() string { return "point_of_sale_update_containers" }

// PointOfSaleRevision is an immutable, numbered snapshot of a point of sale.
type PointOfSaleRevision struct {
	PointOfSaleID     uuid.UUID                      `gorm:"column:point_of_sale_id;type:uuid;primaryKey"`
	Revision          int                            `gorm:"column:revision;primaryKey"`
	Name              string                         `gorm:"column:name;not null"`
	UseAuthentication bool                           `gorm:"column:use_authentication;not null;default:false"`
	Containers        []PointOfSaleRevisionContainer `gorm:"foreignKey:PointOfSaleID,Revision;references:PointOfSaleID,Revision"`
	CreatedAt         time.Time                      `gorm:"column:created_at;autoCreateTime"`
}

func (PointOfSaleRevision) TableName() string { return "point_of_sale_revisions" }

func (PointOfSaleRevision) BeforeUpdate(*gorm.DB) error {
	return pkgerrors.New(pkgerrors.CodeImmutable, "point of sale revisions cannot be updated")
}

func (PointOfSaleRevision) BeforeDelete(*gorm.DB) error {
	return pkgerrors.New(pkgerrors.CodeImmutable, "point of sale revisions cannot be deleted")
}

// PointOfSaleRevisionContainer pins one container revision into a POS
// revision.
type PointOfSaleRevisionContainer struct {
	PointOfSaleID     uuid.UUID `gorm:"column:point_of_sale_id;type:uuid;primaryKey"`
	Revision          int       `gorm:"column:revision;primaryKey"`
	ContainerID       uuid.UUID `gorm:"column:container_id;type:uuid;primaryKey"`
	ContainerRevision int       `gorm:"column:container_revision;not null"`
}

func (PointOfSaleRevisionContainer) TableName() string { return "point_of_sale_revision_containers" }

func (PointOfSaleRevisionContainer) BeforeUpdate(*gorm.DB) error {
	return pkgerrors.New(pkgerrors.CodeImmutable, "point of sale revision pins cannot be updated")
}
