package invoices

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

// Repository provides persistence for invoices.
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

// Create persists a new invoice.
func (r *Repository) Create(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

// FindByID loads one invoice.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).First(&invoice, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		return nil, err
	}
	return &invoice, nil
}

// UpdateState moves the invoice between states, requiring the current state
// to match.
func (r *Repository) UpdateState(ctx context.Context, id uuid.UUID, from, to enums.InvoiceState) error {
	res := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ? AND state = ?", id, from).
		Update("state", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "invoice state changed concurrently")
	}
	return nil
}

// SetTransfer links the invoice to the transfer that credited it.
func (r *Repository) SetTransfer(ctx context.Context, id, transferID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ?", id).
		Update("transfer_id", transferID).Error
}

// List returns a page of invoices plus the total count, newest first. A nil
// userID lists everyone's.
func (r *Repository) List(ctx context.Context, userID *uuid.UUID, params pagination.Params) ([]models.Invoice, int64, error) {
	params = params.Normalize()

	base := r.db.WithContext(ctx).Model(&models.Invoice{})
	if userID != nil {
		base = base.Where("to_id = ?", *userID)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var found []models.Invoice
	if err := base.
		Order("created_at DESC").
		Limit(params.Take).
		Offset(params.Skip).
		Find(&found).Error; err != nil {
		return nil, 0, err
	}
	return found, total, nil
}
