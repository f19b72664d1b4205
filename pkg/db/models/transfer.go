package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/tbraams/barkeep-backend/pkg/errors"
	"github.com/tbraams/barkeep-backend/pkg/money"
)

// Transfer is an immutable ledger entry moving an amount between at most two
// accounts. A nil FromID means funds were created (deposit); a nil ToID means
// funds were destroyed (payout, fine). At most one of the reason links is
// set.
type Transfer struct {
	ID          uuid.UUID   `gorm:"column:id;type:uuid;primaryKey"`
	FromID      *uuid.UUID  `gorm:"column:from_id;type:uuid;index"`
	ToID        *uuid.UUID  `gorm:"column:to_id;type:uuid;index"`
	Amount      money.Money `gorm:"embedded;embeddedPrefix:amount_"`
	Description string      `gorm:"column:description"`

	PayoutRequestID   *uuid.UUID `gorm:"column:payout_request_id;type:uuid"`
	DepositID         *uuid.UUID `gorm:"column:deposit_id;type:uuid"`
	InvoiceID         *uuid.UUID `gorm:"column:invoice_id;type:uuid"`
	FineID            *uuid.UUID `gorm:"column:fine_id;type:uuid"`
	WaivedFineGroupID *uuid.UUID `gorm:"column:waived_fine_group_id;type:uuid"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index"`
}

func (t *Transfer) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

func (Transfer) BeforeUpdate(*gorm.DB) error {
	return pkgerrors.New(pkgerrors.CodeImmutable, "transfers cannot be updated")
}

// ReasonCount returns how many of the mutually exclusive reason links are set.
func (t Transfer) ReasonCount() int {
	count := 0
	for _, link := range []*uuid.UUID{
		t.PayoutRequestID, t.DepositID, t.InvoiceID, t.FineID, t.WaivedFineGroupID,
	} {
		if link != nil {
			count++
		}
	}
	return count
}
