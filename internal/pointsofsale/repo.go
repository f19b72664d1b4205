package pointsofsale

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbraams/barkeep-backend/pkg/db/models"
	pkgerrors "github.com/tbraams/barkeep-backend/pkg/errors"
	"github.com/tbraams/barkeep-backend/pkg/pagination"
)

const listedPointOfSaleQuery = `
SELECT p.id,
       p.owner_id,
       p.current_revision AS revision,
       r.name,
       r.use_authentication
FROM points_of_sale p
JOIN point_of_sale_revisions r
  ON r.point_of_sale_id = p.id AND r.revision = p.current_revision
`

// ListedPointOfSale is the typed projection scanned from
// listedPointOfSaleQuery.
type ListedPointOfSale struct {
	ID                uuid.UUID `gorm:"column:id"`
	OwnerID           uuid.UUID `gorm:"column:owner_id"`
	Revision          int       `gorm:"column:revision"`
	Name              string    `gorm:"column:name"`
	UseAuthentication bool      `gorm:"column:use_authentication"`
}

// Repository provides persistence for points of sale, their pending drafts,
// and their immutable revisions.
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

// FindByID loads the base point-of-sale row.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PointOfSale, error) {
	var pos models.PointOfSale
	if err := r.db.WithContext(ctx).First(&pos, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "point of sale not found")
		}
		return nil, err
	}
	return &pos, nil
}

// FindRevision loads one numbered revision with its container pins.
func (r *Repository) FindRevision(ctx context.Context, id uuid.UUID, revision int) (*models.PointOfSaleRevision, error) {
	var rev models.PointOfSaleRevision
	if err := r.db.WithContext(ctx).
		Preload("Containers").
		First(&rev, "point_of_sale_id = ? AND revision = ?", id, revision).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "point of sale revision not found")
		}
		return nil, err
	}
	return &rev, nil
}

// FindUpdate loads the pending draft with its proposed container list.
func (r *Repository) FindUpdate(ctx context.Context, id uuid.UUID) (*models.PointOfSaleUpdate, error) {
	var update models.PointOfSaleUpdate
	if err := r.db.WithContext(ctx).
		Preload("Containers").
		First(&update, "point_of_sale_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "point of sale has no pending draft")
		}
		return nil, err
	}
	return &update, nil
}

// CreateBase persists a new base point-of-sale row.
func (r *Repository) CreateBase(ctx context.Context, pos *models.PointOfSale) (*models.PointOfSale, error) {
	if err := r.db.WithContext(ctx).Create(pos).Error; err != nil {
		return nil, err
	}
	return pos, nil
}

// ReplaceUpdate inserts or replaces the single pending draft, proposed
// container list included.
func (r *Repository) ReplaceUpdate(ctx context.Context, update *models.PointOfSaleUpdate) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("point_of_sale_id = ?", update.PointOfSaleID).
		Delete(&models.PointOfSaleUpdateContainer{}).Error; err != nil {
		return err
	}
	containers := update.Containers
	update.Containers = nil
	if err := tx.Save(update).Error; err != nil {
		return err
	}
	update.Containers = containers
	if len(containers) == 0 {
		return nil
	}
	return tx.Create(&containers).Error
}

// DeleteUpdate removes the pending draft and its container list, if any.
func (r *Repository) DeleteUpdate(ctx context.Context, id uuid.UUID) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("point_of_sale_id = ?", id).
		Delete(&models.PointOfSaleUpdateContainer{}).Error; err != nil {
		return err
	}
	return tx.Where("point_of_sale_id = ?", id).Delete(&models.PointOfSaleUpdate{}).Error
}

// CreateRevision appends an immutable revision row with its pins.
func (r *Repository) CreateRevision(ctx context.Context, rev *models.PointOfSaleRevision) error {
	tx := r.db.WithContext(ctx)
	pins := rev.Containers
	rev.Containers = nil
	if err := tx.Create(rev).Error; err != nil {
		return err
	}
	rev.Containers = pins
	if len(pins) == 0 {
		return nil
	}
	return tx.Create(&pins).Error
}

// SetCurrentRevision moves the base row's current revision pointer.
func (r *Repository) SetCurrentRevision(ctx context.Context, id uuid.UUID, revision int) error {
	res := r.db.WithContext(ctx).
		Model(&models.PointOfSale{}).
		Where("id = ?", id).
		Update("current_revision", revision)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "point of sale not found")
	}
	return nil
}

// List returns a page of approved points of sale at their current revision
// plus the total count.
func (r *Repository) List(ctx context.Context, params pagination.Params) ([]ListedPointOfSale, int64, error) {
	params = params.Normalize()

	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.PointOfSale{}).
		Where("current_revision IS NOT NULL").
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []ListedPointOfSale
	if err := r.db.WithContext(ctx).
		Raw(listedPointOfSaleQuery+" ORDER BY p.created_at ASC LIMIT ? OFFSET ?", params.Take, params.Skip).
		Scan(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
