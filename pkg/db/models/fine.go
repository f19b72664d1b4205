package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/tbraams/barkeep-backend/pkg/errors"
	"github.com/tbraams/barkeep-backend/pkg/money"
)

// FineHandoutEvent groups all fines issued in one batch on a reference date.
type FineHandoutEvent struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ReferenceDate time.Time `gorm:"column:reference_date;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (FineHandoutEvent) TableName() string { return "fine_handout_events" }

func (e *FineHandoutEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// UserFineGroup collects a user's not-yet-resolved fines. A user has at most
// one active group at a time, tracked via users.current_fine_group_id.
type UserFineGroup struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID           uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index"`
	WaivedTransferID *uuid.UUID `gorm:"column:waived_transfer_id;type:uuid"`
	Fines            []Fine     `gorm:"foreignKey:UserFineGroupID"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (UserFineGroup) TableName() string { return "user_fine_groups" }

func (g *UserFineGroup) BeforeCreate(*gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// Fine is one scheduled penalty debit. PreviousFineID chains it to the fine
// from the prior handout event for the same user, if any.
type Fine struct {
	ID              uuid.UUID   `gorm:"column:id;type:uuid;primaryKey"`
	HandoutEventID  uuid.UUID   `gorm:"column:handout_event_id;type:uuid;not null;index"`
	UserFineGroupID uuid.UUID   `gorm:"column:user_fine_group_id;type:uuid;not null;index"`
	TransferID      uuid.UUID   `gorm:"column:transfer_id;type:uuid;not null"`
	Amount          money.Money `gorm:"embedded;embeddedPrefix:amount_"`
	PreviousFineID  *uuid.UUID  `gorm:"column:previous_fine_id;type:uuid"`
	CreatedAt       time.Time   `gorm:"column:created_at;autoCreateTime"`
}

func (f *Fine) BeforeCreate(*gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

func (Fine) BeforeUpdate(*gorm.DB) error {
	return pkgerrors.New(pkgerrors.CodeImmutable, "fines cannot be updated")
}
