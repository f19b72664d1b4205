package products

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbraams/barkeep-backend/pkg/db/models"
	pkgerrors "github.com/tbraams/barkeep-backend/pkg/errors"
	"github.com/tbraams/barkeep-backend/pkg/pagination"
)

// listedProductQuery joins each approved product with its current revision.
// Products that were never approved have no current revision and are not
// part of the public listing.
const listedProductQuery = `
SELECT p.id,
       p.owner_id,
       p.current_revision AS revision,
       r.name,
       r.category,
       r.price_amount,
       r.price_currency,
       r.price_precision,
       p.created_at,
       p.updated_at
FROM products p
JOIN product_revisions r
  ON r.product_id = p.id AND r.revision = p.current_revision
`

// ListedProduct is the typed projection scanned from listedProductQuery.
type ListedProduct struct {
	ID             uuid.UUID `gorm:"column:id"`
	OwnerID        uuid.UUID `gorm:"column:owner_id"`
	Revision       int       `gorm:"column:revision"`
	Name           string    `gorm:"column:name"`
	Category       string    `gorm:"column:category"`
	PriceAmount    int64     `gorm:"column:price_amount"`
	PriceCurrency  string    `gorm:"column:price_currency"`
	PricePrecision int       `gorm:"column:price_precision"`
}

// Repository provides persistence for products, their pending drafts, and
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

// FindByID loads the base product row.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, err
	}
	return &product, nil
}

// FindManyByIDs loads the given base products in one query. Missing IDs are
// absent from the result.
func (r *Repository) FindManyByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []models.Product
	if err := r.db.WithContext(ctx).Find(&found, "id IN ?", ids).Error; err != nil {
		return nil, err
	}
	return found, nil
}

// FindRevision loads one numbered revision of a product.
func (r *Repository) FindRevision(ctx context.Context, id uuid.UUID, revision int) (*models.ProductRevision, error) {
	var rev models.ProductRevision
	if err := r.db.WithContext(ctx).
		First(&rev, "product_id = ? AND revision = ?", id, revision).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product revision not found")
		}
		return nil, err
	}
	return &rev, nil
}

// FindRevisions loads multiple product revisions in one query, keyed by
// (product_id, revision).
func (r *Repository) FindRevisions(ctx context.Context, keys []models.ProductRevision) ([]models.ProductRevision, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	q := r.db.WithContext(ctx)
	for i, key := range keys {
		cond := r.db.Session(&gorm.Session{NewDB: true}).
			Where("product_id = ? AND revision = ?", key.ProductID, key.Revision)
		if i == 0 {
			q = q.Where(cond)
		} else {
			q = q.Or(cond)
		}
	}
	var found []models.ProductRevision
	if err := q.Find(&found).Error; err != nil {
		return nil, err
	}
	return found, nil
}

// FindUpdate loads the pending draft for a product.
func (r *Repository) FindUpdate(ctx context.Context, id uuid.UUID) (*models.ProductUpdate, error) {
	var update models.ProductUpdate
	if err := r.db.WithContext(ctx).First(&update, "product_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product has no pending draft")
		}
		return nil, err
	}
	return &update, nil
}

// CreateBase persists a new base product row.
func (r *Repository) CreateBase(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// SaveUpdate inserts or replaces the single pending draft for a product.
func (r *Repository) SaveUpdate(ctx context.Context, update *models.ProductUpdate) error {
	return r.db.WithContext(ctx).Save(update).Error
}

// DeleteUpdate removes the pending draft, if any.
func (r *Repository) DeleteUpdate(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("product_id = ?", id).
		Delete(&models.ProductUpdate{}).Error
}

// CreateRevision appends an immutable revision row.
func (r *Repository) CreateRevision(ctx context.Context, rev *models.ProductRevision) error {
	return r.db.WithContext(ctx).Create(rev).Error
}

// SetCurrentRevision moves the base row's current revision pointer.
func (r *Repository) SetCurrentRevision(ctx context.Context, id uuid.UUID, revision int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Update("current_revision", revision)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

// List returns a page of approved products at their current revision plus
// the total count.
func (r *Repository) List(ctx context.Context, params pagination.Params) ([]ListedProduct, int64, error) {
	params = params.Normalize()

	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("current_revision IS NOT NULL").
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []ListedProduct
	if err := r.db.WithContext(ctx).
		Raw(listedProductQuery+" ORDER BY p.created_at ASC LIMIT ? OFFSET ?", params.Take, params.Skip).
		Scan(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
