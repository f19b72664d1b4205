package containers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbraams/barkeep-backend/internal/products"
	"github.com/tbraams/barkeep-backend/pkg/db"
	"github.com/tbraams/barkeep-backend/pkg/db/models"
	pkgerrors "github.com/tbraams/barkeep-backend/pkg/errors"
	"github.com/tbraams/barkeep-backend/pkg/pagination"
)

// View selects which side of a revisioned container a read returns.
type View string

const (
	ViewCurrent View = "current"
	ViewDraft   View = "draft"
)

// Service exposes the container draft/approve lifecycle and reads.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*ContainerDTO, error)
	SaveDraft(ctx context.Context, containerID uuid.UUID, input DraftInput) (*ContainerDTO, error)
	Approve(ctx context.Context, containerID uuid.UUID) (*ContainerDTO, error)
	DiscardDraft(ctx context.Context, containerID uuid.UUID) error
	Get(ctx context.Context, containerID uuid.UUID, view View) (*ContainerDTO, error)
	GetRevision(ctx context.Context, containerID uuid.UUID, revision int) (*ContainerDTO, error)
	List(ctx context.Context, params pagination.Params, publicOnly bool) (*ContainerListResult, error)
}

// CreateInput holds the payload to create a container with its first draft.
type CreateInput struct {
	OwnerID  uuid.UUID
	IsPublic bool
	Draft    DraftInput
}

// DraftInput holds the proposed container fields. ProductIDs reference base
// products; the revision each pin gets is resolved at approval time.
type DraftInput struct {
	Name       string
	ProductIDs []uuid.UUID
}

func (in DraftInput) validate() error {
	if in.Name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	seen := make(map[uuid.UUID]struct{}, len(in.ProductIDs))
	for _, id := range in.ProductIDs {
		if _, dup := seen[id]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, "duplicate product in container draft").
				WithDetails(map[string]any{"productId": id})
		}
		seen[id] = struct{}{}
	}
	return nil
}

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type productReader interface {
	FindManyByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type service struct {
	repo        *Repository
	dbClient    *db.Client
	users       userLoader
	productRepo productReader
}

// NewService constructs a container service instance.
func NewService(repo *Repository, dbClient *db.Client, users userLoader, productRepo productReader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("container repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if users == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo, dbClient: dbClient, users: users, productRepo: productRepo}, nil
}

// Create registers a new container with its first pending draft.
func (s *service) Create(ctx context.Context, input CreateInput) (*ContainerDTO, error) {
	if err := input.Draft.validate(); err != nil {
		return nil, err
	}
	owner, err := s.users.FindByID(ctx, input.OwnerID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureProductsExist(ctx, input.Draft.ProductIDs); err != nil {
		return nil, err
	}

	base := &models.Container{OwnerID: owner.ID, IsPublic: input.IsPublic}
	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.CreateBase(ctx, base); err != nil {
			return err
		}
		return repo.ReplaceUpdate(ctx, draftToUpdate(base.ID, input.Draft))
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, base.ID, ViewDraft)
}

// SaveDraft proposes new fields for an existing container, replacing any
// earlier pending draft wholesale.
func (s *service) SaveDraft(ctx context.Context, containerID uuid.UUID, input DraftInput) (*ContainerDTO, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	base, err := s.repo.FindByID(ctx, containerID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureProductsExist(ctx, input.ProductIDs); err != nil {
		return nil, err
	}

	update := draftToUpdate(base.ID, input)
	if err := s.repo.ReplaceUpdate(ctx, update); err != nil {
		return nil, err
	}
	return dtoFromUpdate(base, update), nil
}

// Approve turns the pending draft into the next numbered revision. Listed
// products that still carry a pending draft of their own are approved inside
// the same transaction; their fresh revision is what gets pinned. Products
// with neither a draft nor an approved revision fail the whole approval.
func (s *service) Approve(ctx context.Context, containerID uuid.UUID) (*ContainerDTO, error) {
	var approved *models.ContainerRevision
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		rev, err := ApproveDraftTx(ctx, tx, containerID)
		if err != nil {
			return err
		}
		approved = rev
		return nil
	})
	if err != nil {
		return nil, err
	}

	base, err := s.repo.FindByID(ctx, containerID)
	if err != nil {
		return nil, err
	}
	return dtoFromRevision(base, approved), nil
}

// DiscardDraft drops the pending draft without touching revisions. Nested
// product drafts are left alone; they belong to the products, not to the
// container.
func (s *service) DiscardDraft(ctx context.Context, containerID uuid.UUID) error {
	if _, err := s.repo.FindUpdate(ctx, containerID); err != nil {
		return err
	}
	return s.repo.DeleteUpdate(ctx, containerID)
}

// Get reads the container through the requested view.
func (s *service) Get(ctx context.Context, containerID uuid.UUID, view View) (*ContainerDTO, error) {
	base, err := s.repo.FindByID(ctx, containerID)
	if err != nil {
		return nil, err
	}

	switch view {
	case ViewDraft:
		update, err := s.repo.FindUpdate(ctx, containerID)
		if err != nil {
			return nil, err
		}
		return dtoFromUpdate(base, update), nil
	case ViewCurrent, "":
		if base.CurrentRevision == nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "container has no approved revision")
		}
		rev, err := s.repo.FindRevision(ctx, containerID, *base.CurrentRevision)
		if err != nil {
			return nil, err
		}
		return dtoFromRevision(base, rev), nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown view").WithDetails(map[string]any{"view": view})
	}
}

// GetRevision reads one historical revision with its pins.
func (s *service) GetRevision(ctx context.Context, containerID uuid.UUID, revision int) (*ContainerDTO, error) {
	base, err := s.repo.FindByID(ctx, containerID)
	if err != nil {
		return nil, err
	}
	rev, err := s.repo.FindRevision(ctx, containerID, revision)
	if err != nil {
		return nil, err
	}
	return dtoFromRevision(base, rev), nil
}

// List returns a page of approved containers.
func (s *service) List(ctx context.Context, params pagination.Params, publicOnly bool) (*ContainerListResult, error) {
	rows, total, err := s.repo.List(ctx, params, publicOnly)
	if err != nil {
		return nil, err
	}
	dtos := make([]ContainerDTO, 0, len(rows))
	for _, row := range rows {
		revision := row.Revision
		dtos = append(dtos, ContainerDTO{
			ID:       row.ID,
			OwnerID:  row.OwnerID,
			IsPublic: row.IsPublic,
			Revision: &revision,
			Name:     row.Name,
		})
	}
	return &ContainerListResult{
		Containers: dtos,
		Page:       pagination.NewPage(params, total),
	}, nil
}

func (s *service) ensureProductsExist(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := s.productRepo.FindManyByIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(found) == len(ids) {
		return nil
	}
	known := make(map[uuid.UUID]struct{}, len(found))
	for _, p := range found {
		known[p.ID] = struct{}{}
	}
	var missing []uuid.UUID
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "unknown products in container draft").
		WithDetails(map[string]any{"productIds": missing})
}

func draftToUpdate(containerID uuid.UUID, draft DraftInput) *models.ContainerUpdate {
	update := &models.ContainerUpdate{
		ContainerID: containerID,
		Name:        draft.Name,
	}
	for _, id := range draft.ProductIDs {
		update.Products = append(update.Products, models.ContainerUpdateProduct{
			ContainerID: containerID,
			ProductID:   id,
		})
	}
	return update
}

// ApproveDraftTx approves the pending draft of a container inside an
// existing transaction and returns the new revision with its pins.
func ApproveDraftTx(ctx context.Context, tx *gorm.DB, containerID uuid.UUID) (*models.ContainerRevision, error) {
	repo := NewRepository(tx)

	base, err := repo.FindByID(ctx, containerID)
	if err != nil {
		return nil, err
	}
	update, err := repo.FindUpdate(ctx, containerID)
	if err != nil {
		return nil, err
	}

	next := 1
	if base.CurrentRevision != nil {
		next = *base.CurrentRevision + 1
	}

	rev := &models.ContainerRevision{
		ContainerID: base.ID,
		Revision:    next,
		Name:        update.Name,
	}
	for _, proposed := range update.Products {
		pinned, err := products.EnsureApprovedRevisionTx(ctx, tx, proposed.ProductID)
		if err != nil {
			return nil, err
		}
		rev.Products = append(rev.Products, models.ContainerRevisionProduct{
			ContainerID:     base.ID,
			Revision:        next,
			ProductID:       proposed.ProductID,
			ProductRevision: pinned,
		})
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
