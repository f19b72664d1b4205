package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbraams/barkeep-backend/pkg/enums"
	"github.com/tbraams/barkeep-backend/pkg/money"
)

// Invoice settles a user's outstanding purchases out-of-band. Creation
// produces a crediting Transfer that zeroes the invoiced amount.
type Invoice struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ToID        uuid.UUID          `gorm:"column:to_id;type:uuid;not null;index"`
	Reference   string             `gorm:"column:reference;not null"`
	Description string             `gorm:"column:description"`
	Amount      money.Money        `gorm:"embedded;embeddedPrefix:amount_"`
	State       enums.InvoiceState `gorm:"column:state;not null"`
	TransferID  *uuid.UUID         `gorm:"column:transfer_id;type:uuid"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *Invoice) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
