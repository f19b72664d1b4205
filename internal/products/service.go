package products

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbraams/barkeep-backend/pkg/db"
	"github.com/tbraams/barkeep-backend/pkg/db/models"
	pkgerrors "github.com/tbraams/barkeep-backend/pkg/errors"
	"github.com/tbraams/barkeep-backend/pkg/money"
	"github.com/tbraams/barkeep-backend/pkg/pagination"
)

// View selects which side of a revisioned product a read returns.
type View string

const (
	// ViewCurrent reads the approved current revision.
	ViewCurrent View = "current"
	// ViewDraft reads the pending draft.
	ViewDraft View = "draft"
)

// Service exposes the product draft/approve lifecycle and reads.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*ProductDTO, error)
	SaveDraft(ctx context.Context, productID uuid.UUID, input DraftInput) (*ProductDTO, error)
	Approve(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	DiscardDraft(ctx context.Context, productID uuid.UUID) error
	Get(ctx context.Context, productID uuid.UUID, view View) (*ProductDTO, error)
	GetRevision(ctx context.Context, productID uuid.UUID, revision int) (*ProductDTO, error)
	List(ctx context.Context, params pagination.Params) (*ProductListResult, error)
}

// CreateInput holds the payload to create a product with its first draft.
type CreateInput struct {
	OwnerID uuid.UUID
	Draft   DraftInput
}

// DraftInput holds the proposed product fields.
type DraftInput struct {
	Name     string
	Category string
	Price    money.Money
}

func (in DraftInput) validate() error {
	if in.Name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if in.Category == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "category is required")
	}
	if in.Price.Currency == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "price currency is required")
	}
	if in.Price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	return nil
}

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type service struct {
	repo     *Repository
	dbClient *db.Client
	users    userLoader
}

// NewService constructs a product service instance.
func NewService(repo *Repository, dbClient *db.Client, users userLoader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if users == nil {
		return nil, fmt.Errorf("user repository required")
	}
	return &service{repo: repo, dbClient: dbClient, users: users}, nil
}

// Create registers a new product with its first pending draft. The product
// stays invisible to listings until that draft is approved.
func (s *service) Create(ctx context.Context, input CreateInput) (*ProductDTO, error) {
	if err := input.Draft.validate(); err != nil {
		return nil, err
	}
	owner, err := s.users.FindByID(ctx, input.OwnerID)
	if err != nil {
		return nil, err
	}

	base := &models.Product{OwnerID: owner.ID}
	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.CreateBase(ctx, base); err != nil {
			return err
		}
		return repo.SaveUpdate(ctx, &models.ProductUpdate{
			ProductID: base.ID,
			Name:      input.Draft.Name,
			Category:  input.Draft.Category,
			Price:     input.Draft.Price,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, base.ID, ViewDraft)
}

// SaveDraft proposes new fields for an existing product, replacing any
// earlier pending draft wholesale.
func (s *service) SaveDraft(ctx context.Context, productID uuid.UUID, input DraftInput) (*ProductDTO, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	base, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	update := &models.ProductUpdate{
		ProductID: base.ID,
		Name:      input.Name,
		Category:  input.Category,
		Price:     input.Price,
	}
	if err := s.repo.SaveUpdate(ctx, update); err != nil {
		return nil, err
	}
	return dtoFromUpdate(base, update), nil
}

// Approve turns the pending draft into the next numbered revision and makes
// it current. Fails when no draft is pending.
func (s *service) Approve(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	var approved *models.ProductRevision
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		rev, err := ApproveDraftTx(ctx, tx, productID)
		if err != nil {
			return err
		}
		approved = rev
		return nil
	})
	if err != nil {
		return nil, err
	}

	base, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	return dtoFromRevision(base, approved), nil
}

// DiscardDraft drops the pending draft without touching revisions.
func (s *service) DiscardDraft(ctx context.Context, productID uuid.UUID) error {
	if _, err := s.repo.FindUpdate(ctx, productID); err != nil {
		return err
	}
	return s.repo.DeleteUpdate(ctx, productID)
}

// Get reads the product through the requested view.
func (s *service) Get(ctx context.Context, productID uuid.UUID, view View) (*ProductDTO, error) {
	base, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	switch view {
	case ViewDraft:
		update, err := s.repo.FindUpdate(ctx, productID)
		if err != nil {
			return nil, err
		}
		return dtoFromUpdate(base, update), nil
	case ViewCurrent, "":
		if base.CurrentRevision == nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product has no approved revision")
		}
		rev, err := s.repo.FindRevision(ctx, productID, *base.CurrentRevision)
		if err != nil {
			return nil, err
		}
		return dtoFromRevision(base, rev), nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown view").WithDetails(map[string]any{"view": view})
	}
}

// GetRevision reads one historical revision.
func (s *service) GetRevision(ctx context.Context, productID uuid.UUID, revision int) (*ProductDTO, error) {
	base, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	rev, err := s.repo.FindRevision(ctx, productID, revision)
	if err != nil {
		return nil, err
	}
	return dtoFromRevision(base, rev), nil
}

// List returns a page of approved products.
func (s *service) List(ctx context.Context, params pagination.Params) (*ProductListResult, error) {
	rows, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, err
	}
	dtos := make([]ProductDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, dtoFromListed(row))
	}
	return &ProductListResult{
		Products: dtos,
		Page:     pagination.NewPage(params, total),
	}, nil
}

// ApproveDraftTx approves the pending draft of a product inside an existing
// transaction and returns the new revision. Container approval reuses this
// to fold nested product drafts into the same atomic step.
func ApproveDraftTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*models.ProductRevision, error) {
	repo := NewRepository(tx)

	base, err := repo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	update, err := repo.FindUpdate(ctx, productID)
	if err != nil {
		return nil, err
	}

	next := 1
	if base.CurrentRevision != nil {
		next = *base.CurrentRevision + 1
	}

	rev := &models.ProductRevision{
		ProductID: base.ID,
		Revision:  next,
		Name:      update.Name,
		Category:  update.Category,
		Price:     update.Price,
	}
	if err := repo.CreateRevision(ctx, rev); err != nil {
		return nil, err
	}
	if err := repo.SetCurrentRevision(ctx, base.ID, next); err != nil {
		return nil, err
	}
	if err := repo.DeleteUpdate(ctx, base.ID); err != nil {
		return nil, err
	}
	return rev, nil
}

// EnsureApprovedRevisionTx resolves the revision a parent snapshot should pin
// for the product: a pending draft is approved first, otherwise the current
// revision is used. A product with neither cannot be pinned.
func EnsureApprovedRevisionTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (int, error) {
	repo := NewRepository(tx)

	base, err := repo.FindByID(ctx, productID)
	if err != nil {
		return 0, err
	}

	_, err = repo.FindUpdate(ctx, productID)
	switch {
	case err == nil:
		rev, err := ApproveDraftTx(ctx, tx, productID)
		if err != nil {
			return 0, err
		}
		return rev.Revision, nil
	case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		if base.CurrentRevision == nil {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "product has no approved revision and no pending draft").
				WithDetails(map[string]any{"productId": productID})
		}
		return *base.CurrentRevision, nil
	default:
		return 0, err
	}
}
