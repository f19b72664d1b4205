package payouts

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

// Repository provides persistence for payout requests.
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

// Create persists a new payout request.
func (r *Repository) Create(ctx context.Context, payout *models.PayoutRequest) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

// FindByID loads one payout request.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error) {
	var payout models.PayoutRequest
	if err := r.db.WithContext(ctx).First(&payout, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout request not found")
		}
		return nil, err
	}
	return &payout, nil
}

// Decide records the decision on a still-pending request. The state guard
// makes concurrent decisions lose with a conflict instead of double-paying.
func (r *Repository) Decide(ctx context.Context, id uuid.UUID, to enums.PayoutState, decidedBy uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.PayoutRequest{}).
		Where("id = ? AND state = ?", id, enums.PayoutStateRequested).
		Updates(map[string]any{
			"state":          to,
			"approved_by_id": decidedBy,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "payout request already decided")
	}
	return nil
}

// SetTransfer links the payout request to the transfer that debited it.
func (r *Repository) SetTransfer(ctx context.Context, id, transferID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.PayoutRequest{}).
		Where("id = ?", id).
		Update("transfer_id", transferID).Error
}

// List returns a page of payout requests plus the total count, newest first.
// A nil userID lists everyone's.
func (r *Repository) List(ctx context.Context, userID *uuid.UUID, params pagination.Params) ([]models.PayoutRequest, int64, error) {
	params = params.Normalize()

	base := r.db.WithContext(ctx).Model(&models.PayoutRequest{})
	if userID != nil {
		base = base.Where("requested_by_id = ?", *userID)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var found []models.PayoutRequest
	if err := base.
		Order("created_at DESC").
		Limit(params.Take).
		Offset(params.Skip).
		Find(&found).Error; err != nil {
		return nil, 0, err
	}
	return found, total, nil
}
