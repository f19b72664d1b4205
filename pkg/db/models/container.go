package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/tbraams/barkeep-backend/pkg/errors"
)

// Container is the stable identity row of a revisioned product container.
type Container struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID         uuid.UUID `gorm:"column:owner_id;type:uuid;not null"`
	IsPublic        bool      `gorm:"column:is_public;not null;default:false"`
	CurrentRevision *int      `gorm:"column:current_revision"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Container) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// ContainerUpdate is the single pending draft for a container. The proposed
// product list references base products; revisions are resolved at approval.
type ContainerUpdate struct {
	ContainerID uuid.UUID                `gorm:"column:container_id;type:uuid;primaryKey"`
	Name        string                   `gorm:"column:name;not null"`
	Products    []ContainerUpdateProduct `gorm:"foreignKey:ContainerID;references:ContainerID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (ContainerUpdate) TableName() string { return "container_updates" }

// ContainerUpdateProduct is one proposed product membership in a draft.
type ContainerUpdateProduct struct {
	ContainerID uuid.UUID `gorm:"column:container_id;type:uuid;primaryKey"`
	ProductID   uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
}

func (ContainerUpdateProduct) TableName() string { return "container_update_products" }

// ContainerRevision is an immutable, numbered snapshot of a container.
type ContainerRevision struct {
	ContainerID uuid.UUID                  `gorm:"column:container_id;type:uuid;primaryKey"`
	Revision    int                        `gorm:"column:revision;primaryKey"`
	Name        string                     `gorm:"column:name;not null"`
	Products    []ContainerRevisionProduct `gorm:"foreignKey:ContainerID,Revision;references:ContainerID,Revision"`
	CreatedAt   time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

func (ContainerRevision) TableName() string { return "container_revisions" }

func (ContainerRevision) BeforeUpdate(*gorm.DB) error {
	return pkgerrors.New(pkgerrors.CodeImmutable, "container revisions cannot be updated")
}

func (ContainerRevision) BeforeDelete(*gorm.DB) error {
	return pkgerrors.New(pkgerrors.CodeImmutable, "container revisions cannot be deleted")
}

// ContainerRevisionProduct pins one product revision into a container
// revision. The pin never moves, even when the product is re-revised later.
type ContainerRevisionProduct struct {
	ContainerID     uuid.UUID `gorm:"column:container_id;type:uuid;primaryKey"`
	Revision        int       `gorm:"column:revision;primaryKey"`
	ProductID       uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	ProductRevision int       `gorm:"column:product_revision;not null"`
}

func (ContainerRevisionProduct) TableName() string { return "container_revision_products" }

func (ContainerRevisionProduct) BeforeUpdate(*gorm.DB) error {
	return pkgerrors.New(pkgerrors.CodeImmutable, "container revision pins cannot be updated")
}
