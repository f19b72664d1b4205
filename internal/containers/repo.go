package containers

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbraams/barkeep-backend/pkg/db/models"
	pkgerrors "github.com/tbraams/barkeep-backend/pkg/errors"
	"github.com/tbraams/barkeep-backend/pkg/pagination"
)

// listedContainerQuery joins each approved container with its current
// revision name.
const listedContainerQuery = `
SELECT c.id,
       c.owner_id,
       c.is_public,
       c.current_revision AS revision,
       r.name
FROM containers c
JOIN container_revisions r
  ON r.container_id = c.id AND r.revision = c.current_revision
`

// ListedContainer is the typed projection scanned from listedContainerQuery.
type ListedContainer struct {
	ID       uuid.UUID `gorm:"column:id"`
	OwnerID  uuid.UUID `gorm:"column:owner_id"`
	IsPublic bool      `gorm:"column:is_public"`
	Revision int       `gorm:"column:revision"`
	Name     string    `gorm:"column:name"`
}

// Repository provides persistence for containers, their pending drafts, and
// their immutable revisions.
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

// FindByID loads the base container row.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Container, error) {
	var container models.Container
	if err := r.db.WithContext(ctx).First(&container, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "container not found")
		}
		return nil, err
	}
	return &container, nil
}

// FindManyByIDs loads the given base containers in one query. Missing IDs are
// absent from the result.
func (r *Repository) FindManyByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Container, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []models.Container
	if err := r.db.WithContext(ctx).Find(&found, "id IN ?", ids).Error; err != nil {
		return nil, err
	}
	return found, nil
}

// FindRevision loads one numbered revision with its product pins.
func (r *Repository) FindRevision(ctx context.Context, id uuid.UUID, revision int) (*models.ContainerRevision, error) {
	var rev models.ContainerRevision
	if err := r.db.WithContext(ctx).
		Preload("Products").
		First(&rev, "container_id = ? AND revision = ?", id, revision).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "container revision not found")
		}
		return nil, err
	}
	return &rev, nil
}

// FindUpdate loads the pending draft with its proposed product list.
func (r *Repository) FindUpdate(ctx context.Context, id uuid.UUID) (*models.ContainerUpdate, error) {
	var update models.ContainerUpdate
	if err := r.db.WithContext(ctx).
		Preload("Products").
		First(&update, "container_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "container has no pending draft")
		}
		return nil, err
	}
	return &update, nil
}

// CreateBase persists a new base container row.
func (r *Repository) CreateBase(ctx context.Context, container *models.Container) (*models.Container, error) {
	if err := r.db.WithContext(ctx).Create(container).Error; err != nil {
		return nil, err
	}
	return container, nil
}

// ReplaceUpdate inserts or replaces the single pending draft, proposed
// product list included.
func (r *Repository) ReplaceUpdate(ctx context.Context, update *models.ContainerUpdate) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("container_id = ?", update.ContainerID).
		Delete(&models.ContainerUpdateProduct{}).Error; err != nil {
		return err
	}
	products := update.Products
	update.Products = nil
	if err := tx.Save(update).Error; err != nil {
		return err
	}
	update.Products = products
	if len(products) == 0 {
		return nil
	}
	return tx.Create(&products).Error
}

// DeleteUpdate removes the pending draft and its product list, if any.
func (r *Repository) DeleteUpdate(ctx context.Context, id uuid.UUID) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("container_id = ?", id).
		Delete(&models.ContainerUpdateProduct{}).Error; err != nil {
		return err
	}
	return tx.Where("container_id = ?", id).Delete(&models.ContainerUpdate{}).Error
}

// CreateRevision appends an immutable revision row with its pins.
func (r *Repository) CreateRevision(ctx context.Context, rev *models.ContainerRevision) error {
	tx := r.db.WithContext(ctx)
	pins := rev.Products
	rev.Products = nil
	if err := tx.Create(rev).Error; err != nil {
		return err
	}
	rev.Products = pins
	if len(pins) == 0 {
		return nil
	}
	return tx.Create(&pins).Error
}

// SetCurrentRevision moves the base row's current revision pointer.
func (r *Repository) SetCurrentRevision(ctx context.Context, id uuid.UUID, revision int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Container{}).
		Where("id = ?", id).
		Update("current_revision", revision)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "container not found")
	}
	return nil
}

// List returns a page of approved containers at their current revision plus
// the total count. When publicOnly is set, private containers are filtered
// out.
func (r *Repository) List(ctx context.Context, params pagination.Params, publicOnly bool) ([]ListedContainer, int64, error) {
	params = params.Normalize()

	countQ := r.db.WithContext(ctx).
		Model(&models.Container{}).
		Where("current_revision IS NOT NULL")
	query := listedContainerQuery
	if publicOnly {
		countQ = countQ.Where("is_public = ?", true)
		query += " WHERE c.is_public = true"
	}

	var total int64
	if err := countQ.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []ListedContainer
	if err := r.db.WithContext(ctx).
		Raw(query+" ORDER BY c.created_at ASC LIMIT ? OFFSET ?", params.Take, params.Skip).
		Scan(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
