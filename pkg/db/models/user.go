package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbraams/barkeep-backend/pkg/enums"
)

// User is any account that can hold a balance: members, organs, vouchers.
type User struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	FirstName string         `gorm:"column:first_name;not null"`
	LastName  string         `gorm:"column:last_name;not null"`
	Email     string         `gorm:"column:email;type:text;not null;uniqueIndex"`
	Type      enums.UserType `gorm:"column:type;not null"`
	IsActive  bool           `gorm:"column:is_active;not null;default:true"`

	// CurrentFineGroupID marks the active (unresolved) fine group. Cleared
	// when the fines are paid off or waived; the group rows themselves stay.
	CurrentFineGroupID *uuid.UUID `gorm:"column:current_fine_group_id;type:uuid"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
