package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/tbraams/barkeep-backend/pkg/errors"
	"github.com/tbraams/barkeep-backend/pkg/money"
)

// Transaction is a purchase event against a pinned point-of-sale revision.
// It debits the payer; each sub-transaction credits the owner of the pinned
// container. Not a Transfer: both are distinct ledger inputs to balance
// computation.
type Transaction struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	FromID      uuid.UUID  `gorm:"column:from_id;type:uuid;not null;index"`
	CreatedByID *uuid.UUID `gorm:"column:created_by_id;type:uuid"`

	PointOfSaleID       uuid.UUID `gorm:"column:point_of_sale_id;type:uuid;not null"`
	PointOfSaleRevision int       `gorm:"column:point_of_sale_revision;not null"`

	SubTransactions []SubTransaction `gorm:"foreignKey:TransactionID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index"`
}

func (t *Transaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

func (Transaction) BeforeUpdate(*gorm.DB) error {
	return pkgerrors.New(pkgerrors.CodeImmutable, "transactions cannot be updated")
}

// SubTransaction groups the rows bought from one pinned container and names
// the account receiving that revenue.
type SubTransaction struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	TransactionID uuid.UUID `gorm:"column:transaction_id;type:uuid;not null;index"`
	ToID          uuid.UUID `gorm:"column:to_id;type:uuid;not null;index"`

	ContainerID       uuid.UUID `gorm:"column:container_id;type:uuid;not null"`
	ContainerRevision int       `gorm:"column:container_revision;not null"`

	Rows []SubTransactionRow `gorm:"foreignKey:SubTransactionID;constraint:OnDelete:CASCADE"`
}

func (s *SubTransaction) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (SubTransaction) BeforeUpdate(*gorm.DB) error {
	return pkgerrors.New(pkgerrors.CodeImmutable, "sub-transactions cannot be updated")
}

// SubTransactionRow is one (product revision, quantity) line item. UnitPrice
// snapshots the pinned product-revision price at purchase time.
type SubTransactionRow struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SubTransactionID uuid.UUID `gorm:"column:sub_transaction_id;type:uuid;not null;index"`

	ProductID       uuid.UUID   `gorm:"column:product_id;type:uuid;not null"`
	ProductRevision int         `gorm:"column:product_revision;not null"`
	Quantity        int         `gorm:"column:quantity;not null"`
	UnitPrice       money.Money `gorm:"embedded;embeddedPrefix:unit_price_"`
}

func (r *SubTransactionRow) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (SubTransactionRow) BeforeUpdate(*gorm.DB) error {
	return pkgerrors.New(pkgerrors.CodeImmutable, "transaction rows cannot be updated")
}
