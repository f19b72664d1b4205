package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbraams/barkeep-backend/pkg/db/models"
	pkgerrors "github.com/tbraams/barkeep-backend/pkg/errors"
	"github.com/tbraams/barkeep-backend/pkg/pagination"
)

// Repository provides persistence for user accounts.
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

// FindByID loads a single user.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, err
	}
	return &user, nil
}

// FindManyByIDs loads the given users in one query. Missing IDs are simply
// absent from the result; callers check completeness when they care.
func (r *Repository) FindManyByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []models.User
	if err := r.db.WithContext(ctx).Find(&found, "id IN ?", ids).Error; err != nil {
		return nil, err
	}
	return found, nil
}

// Create persists a new user.
func (r *Repository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// List returns a page of users plus the total count.
func (r *Repository) List(ctx context.Context, params pagination.Params) ([]models.User, int64, error) {
	params = params.Normalize()

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var found []models.User
	if err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Limit(params.Take).
		Offset(params.Skip).
		Find(&found).Error; err != nil {
		return nil, 0, err
	}
	return found, total, nil
}

// ListActiveIDsByType returns the IDs of all active users of the given types.
func (r *Repository) ListActiveIDsByType(ctx context.Context, types ...string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	q := r.db.WithContext(ctx).Model(&models.User{}).Where("is_active = ?", true)
	if len(types) > 0 {
		q = q.Where("type IN ?", types)
	}
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// SetCurrentFineGroup points the user's active fine-group marker at the given
// group, or clears it when groupID is nil.
func (r *Repository) SetCurrentFineGroup(ctx context.Context, userID uuid.UUID, groupID *uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("current_fine_group_id", groupID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return nil
}
