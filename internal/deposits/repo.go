package deposits

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbraams/barkeep-backend/pkg/db/models"
	"github.com/tbraams/barkeep-backend/pkg/enums"
	pkgerrors "github.com/tbraams/barkeep-backend/pkg/errors"
	"github.com/tbraams/barkeep-backend/pkg/pagination"
)

// Repository provides persistence for deposits.
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

// Create persists a new deposit.
func (r *Repository) Create(ctx context.Context, deposit *models.Deposit) error {
	return r.db.WithContext(ctx).Create(deposit).Error
}

// FindByID loads one deposit.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Deposit, error) {
	var deposit models.Deposit
	if err := r.db.WithContext(ctx).First(&deposit, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "deposit not found")
		}
		return nil, err
	}
	return &deposit, nil
}

// UpdateState moves the deposit between states, guarding against concurrent
// transitions by requiring the current state to match.
func (r *Repository) UpdateState(ctx context.Context, id uuid.UUID, from, to enums.DepositState) error {
	res := r.db.WithContext(ctx).
		Model(&models.Deposit{}).
		Where("id = ? AND state = ?", id, from).
		Update("state", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "deposit state changed concurrently")
	}
	return nil
}

// SetTransfer links the deposit to the transfer that credited it.
func (r *Repository) SetTransfer(ctx context.Context, id, transferID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Deposit{}).
		Where("id = ?", id).
		Update("transfer_id", transferID).Error
}

// List returns a page of deposits plus the total count, newest first. A nil
// userID lists everyone's.
func (r *Repository) List(ctx context.Context, userID *uuid.UUID, params pagination.Params) ([]models.Deposit, int64, error) {
	params = params.Normalize()

	base := r.db.WithContext(ctx).Model(&models.Deposit{})
	if userID != nil {
		base = base.Where("to_id = ?", *userID)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var found []models.Deposit
	if err := base.
		Order("created_at DESC").
		Limit(params.Take).
		Offset(params.Skip).
		Find(&found).Error; err != nil {
		return nil, 0, err
	}
	return found, total, nil
}
