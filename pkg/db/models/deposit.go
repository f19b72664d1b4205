package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbraams/barkeep-backend/pkg/enums"
	"github.com/tbraams/barkeep-backend/pkg/money"
)

// Deposit is an external top-up moving through its provider lifecycle. The
// crediting Transfer is only created when the deposit completes.
type Deposit struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ToID       uuid.UUID          `gorm:"column:to_id;type:uuid;not null;index"`
	Amount     money.Money        `gorm:"embedded;embeddedPrefix:amount_"`
	State      enums.DepositState `gorm:"column:state;not null"`
	TransferID *uuid.UUID         `gorm:"column:transfer_id;type:uuid"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *Deposit) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
