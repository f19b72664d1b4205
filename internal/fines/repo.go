package fines

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbraams/barkeep-backend/pkg/db/models"
	pkgerrors "github.com/tbraams/barkeep-backend/pkg/errors"
)

// Repository provides persistence for fines, fine groups, and handout
// events.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// CreateHandoutEvent records one fine batch.
func (r *Repository) CreateHandoutEvent(ctx context.Context, event *models.FineHandoutEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// LatestHandoutEvent returns the most recent handout event, or nil when no
// fines were ever handed out.
func (r *Repository) LatestHandoutEvent(ctx context.Context) (*models.FineHandoutEvent, error) {
	var event models.FineHandoutEvent
	err := r.db.WithContext(ctx).Order("reference_date DESC").First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// FindFineByID loads one fine.
func (r *Repository) FindFineByID(ctx context.Context, id uuid.UUID) (*models.Fine, error) {
	var fine models.Fine
	if err := r.db.WithContext(ctx).First(&fine, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "fine not found")
		}
		return nil, err
	}
	return &fine, nil
}

// CreateFine appends one fine row.
func (r *Repository) CreateFine(ctx context.Context, fine *models.Fine) error {
	return r.db.WithContext(ctx).Create(fine).Error
}

// DeleteFine removes one fine row and repairs the previous-fine chain of any
// fine that pointed at it.
func (r *Repository) DeleteFine(ctx context.Context, fine *models.Fine) error {
	tx := r.db.WithContext(ctx)
	// Raw SQL on purpose: fines reject model-level updates, but re-linking
	// the chain around a removed fine is part of its administration.
	if err := tx.Exec(
		"UPDATE fines SET previous_fine_id = ? WHERE previous_fine_id = ?",
		fine.PreviousFineID, fine.ID,
	).Error; err != nil {
		return err
	}
	return tx.Where("id = ?", fine.ID).Delete(&models.Fine{}).Error
}

// DeleteTransfer removes the ledger entry behind a deleted fine.
func (r *Repository) DeleteTransfer(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Transfer{}).Error
}

// FindGroupByID loads one fine group with its fines.
func (r *Repository) FindGroupByID(ctx context.Context, id uuid.UUID) (*models.UserFineGroup, error) {
	var group models.UserFineGroup
	if err := r.db.WithContext(ctx).
		Preload("Fines").
		First(&group, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "fine group not found")
		}
		return nil, err
	}
	return &group, nil
}

// CreateGroup opens a new fine group for a user.
func (r *Repository) CreateGroup(ctx context.Context, group *models.UserFineGroup) error {
	return r.db.WithContext(ctx).Create(group).Error
}

// DeleteGroup removes an emptied fine group.
func (r *Repository) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.UserFineGroup{}).Error
}

// SetGroupWaivedTransfer marks the group as waived by the given transfer.
func (r *Repository) SetGroupWaivedTransfer(ctx context.Context, groupID, transferID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.UserFineGroup{}).
		Where("id = ?", groupID).
		Update("waived_transfer_id", transferID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "fine group not found")
	}
	return nil
}

// LatestFineInGroup returns the newest fine in the group, or nil when the
// group is empty.
func (r *Repository) LatestFineInGroup(ctx context.Context, groupID uuid.UUID) (*models.Fine, error) {
	var fine models.Fine
	err := r.db.WithContext(ctx).
		Where("user_fine_group_id = ?", groupID).
		Order("created_at DESC").
		First(&fine).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &fine, nil
}

// CountFinesInGroup returns how many fines remain in the group.
func (r *Repository) CountFinesInGroup(ctx context.Context, groupID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Fine{}).
		Where("user_fine_group_id = ?", groupID).
		Count(&count).Error
	return count, err
}
