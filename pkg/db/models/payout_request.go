package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbraams/barkeep-backend/pkg/enums"
	"github.com/tbraams/barkeep-backend/pkg/money"
)

// PayoutRequest asks for internal balance to be paid out to a bank account.
// Approval creates the debiting Transfer.
type PayoutRequest struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	RequestedByID uuid.UUID         `gorm:"column:requested_by_id;type:uuid;not null;index"`
	ApprovedByID  *uuid.UUID        `gorm:"column:approved_by_id;type:uuid"`
	Amount        money.Money       `gorm:"embedded;embeddedPrefix:amount_"`
	BankAccount   string            `gorm:"column:bank_account;not null"`
	State         enums.PayoutState `gorm:"column:state;not null"`
	TransferID    *uuid.UUID        `gorm:"column:transfer_id;type:uuid"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *PayoutRequest) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
