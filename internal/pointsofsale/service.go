package pointsofsale

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbraams/barkeep-backend/pkg/db"
	"github.com/tbraams/barkeep-backend/pkg/db/models"
	pkgerrors "github.com/tbraams/barkeep-backend/pkg/errors"
	"github.com/tbraams/barkeep-backend/pkg/pagination"
)

// View selects which side of a revisioned point of sale a read returns.
type View string

const (
	ViewCurrent View = "current"
	ViewDraft   View = "draft"
)

// Service exposes the point-of-sale draft/approve lifecycle and reads.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*PointOfSaleDTO, error)
	SaveDraft(ctx context.Context, posID uuid.UUID, input DraftInput) (*PointOfSaleDTO, error)
	Approve(ctx context.Context, posID uuid.UUID) (*PointOfSaleDTO, error)
	DiscardDraft(ctx context.Context, posID uuid.UUID) error
	Get(ctx context.Context, posID uuid.UUID, view View) (*PointOfSaleDTO, error)
	GetRevision(ctx context.Context, posID uuid.UUID, revision int) (*PointOfSaleDTO, error)
	List(ctx context.Context, params pagination.Params) (*PointOfSaleListResult, error)
}

// CreateInput holds the payload to create a point of sale with its first
// draft.
type CreateInput struct {
	OwnerID uuid.UUID
	Draft   DraftInput
}

// DraftInput holds the proposed point-of-sale fields. ContainerIDs reference
// base containers; each must carry an approved revision by approval time.
type DraftInput struct {
	Name              string
	UseAuthentication bool
	ContainerIDs      []uuid.UUID
}

func (in DraftInput) validate() error {
	if in.Name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	seen := make(map[uuid.UUID]struct{}, len(in.ContainerIDs))
	for _, id := range in.ContainerIDs {
		if _, dup := seen[id]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, "duplicate container in point of sale draft").
				WithDetails(map[string]any{"containerId": id})
		}
		seen[id] = struct{}{}
	}
	return nil
}

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type containerReader interface {
	FindManyByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Container, error)
}

type service struct {
	repo          *Repository
	dbClient      *db.Client
	users         userLoader
	containerRepo containerReader
}

// NewService constructs a point-of-sale service instance.
func NewService(repo *Repository, dbClient *db.Client, users userLoader, containerRepo containerReader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("point of sale repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if users == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if containerRepo == nil {
		return nil, fmt.Errorf("container repository required")
	}
	return &service{repo: repo, dbClient: dbClient, users: users, containerRepo: containerRepo}, nil
}

// Create registers a new point of sale with its first pending draft.
func (s *service) Create(ctx context.Context, input CreateInput) (*PointOfSaleDTO, error) {
	if err := input.Draft.validate(); err != nil {
		return nil, err
	}
	owner, err := s.users.FindByID(ctx, input.OwnerID)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadContainers(ctx, input.Draft.ContainerIDs); err != nil {
		return nil, err
	}

	base := &models.PointOfSale{OwnerID: owner.ID}
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

// SaveDraft proposes new fields for an existing point of sale, replacing any
// earlier pending draft wholesale.
func (s *service) SaveDraft(ctx context.Context, posID uuid.UUID, input DraftInput) (*PointOfSaleDTO, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	base, err := s.repo.FindByID(ctx, posID)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadContainers(ctx, input.ContainerIDs); err != nil {
		return nil, err
	}

	update := draftToUpdate(base.ID, input)
	if err := s.repo.ReplaceUpdate(ctx, update); err != nil {
		return nil, err
	}
	return dtoFromUpdate(base, update), nil
}

// Approve turns the pending draft into the next numbered revision, pinning
// each listed container at its current revision. Unlike container approval
// this never cascades: a listed container without an approved revision fails
// the approval.
func (s *service) Approve(ctx context.Context, posID uuid.UUID) (*PointOfSaleDTO, error) {
	var approved *models.PointOfSaleRevision
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		base, err := repo.FindByID(ctx, posID)
		if err != nil {
			return err
		}
		update, err := repo.FindUpdate(ctx, posID)
		if err != nil {
			return err
		}

		ids := make([]uuid.UUID, 0, len(update.Containers))
		for _, c := range update.Containers {
			ids = append(ids, c.ContainerID)
		}
		var found []models.Container
		if len(ids) > 0 {
			if err := tx.WithContext(ctx).Find(&found, "id IN ?", ids).Error; err != nil {
				return err
			}
		}
		pinned := make(map[uuid.UUID]int, len(found))
		for _, c := range found {
			if c.CurrentRevision == nil {
				return pkgerrors.New(pkgerrors.CodeValidation, "container has no approved revision").
					WithDetails(map[string]any{"containerId": c.ID})
			}
			pinned[c.ID] = *c.CurrentRevision
		}
		for _, id := range ids {
			if _, ok := pinned[id]; !ok {
				return pkgerrors.New(pkgerrors.CodeValidation, "unknown container in point of sale draft").
					WithDetails(map[string]any{"containerId": id})
			}
		}

		next := 1
		if base.CurrentRevision != nil {
			next = *base.CurrentRevision + 1
		}
		rev := &models.PointOfSaleRevision{
			PointOfSaleID:     base.ID,
			Revision:          next,
			Name:              update.Name,
			UseAuthentication: update.UseAuthentication,
		}
		for _, id := range ids {
			rev.Containers = append(rev.Containers, models.PointOfSaleRevisionContainer{
				PointOfSaleID:     base.ID,
				Revision:          next,
				ContainerID:       id,
				ContainerRevision: pinned[id],
			})
		}

		if err := repo.CreateRevision(ctx, rev); err != nil {
			return err
		}
		if err := repo.SetCurrentRevision(ctx, base.ID, next); err != nil {
			return err
		}
		if err := repo.DeleteUpdate(ctx, base.ID); err != nil {
			return err
		}
		approved = rev
		return nil
	})
	if err != nil {
		return nil, err
	}

	base, err := s.repo.FindByID(ctx, posID)
	if err != nil {
		return nil, err
	}
	return dtoFromRevision(base, approved), nil
}

// DiscardDraft drops the pending draft without touching revisions.
func (s *service) DiscardDraft(ctx context.Context, posID uuid.UUID) error {
	if _, err := s.repo.FindUpdate(ctx, posID); err != nil {
		return err
	}
	return s.repo.DeleteUpdate(ctx, posID)
}

// Get reads the point of sale through the requested view.
func (s *service) Get(ctx context.Context, posID uuid.UUID, view View) (*PointOfSaleDTO, error) {
	base, err := s.repo.FindByID(ctx, posID)
	if err != nil {
		return nil, err
	}

	switch view {
	case ViewDraft:
		update, err := s.repo.FindUpdate(ctx, posID)
		if err != nil {
			return nil, err
		}
		return dtoFromUpdate(base, update), nil
	case ViewCurrent, "":
		if base.CurrentRevision == nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "point of sale has no approved revision")
		}
		rev, err := s.repo.FindRevision(ctx, posID, *base.CurrentRevision)
		if err != nil {
			return nil, err
		}
		return dtoFromRevision(base, rev), nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown view").WithDetails(map[string]any{"view": view})
	}
}

// GetRevision reads one historical revision with its pins.
func (s *service) GetRevision(ctx context.Context, posID uuid.UUID, revision int) (*PointOfSaleDTO, error) {
	base, err := s.repo.FindByID(ctx, posID)
	if err != nil {
		return nil, err
	}
	rev, err := s.repo.FindRevision(ctx, posID, revision)
	if err != nil {
		return nil, err
	}
	return dtoFromRevision(base, rev), nil
}

// List returns a page of approved points of sale.
func (s *service) List(ctx context.Context, params pagination.Params) (*PointOfSaleListResult, error) {
	rows, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, err
	}
	dtos := make([]PointOfSaleDTO, 0, len(rows))
	for _, row := range rows {
		revision := row.Revision
		dtos = append(dtos, PointOfSaleDTO{
			ID:                row.ID,
			OwnerID:           row.OwnerID,
			Revision:          &revision,
			Name:              row.Name,
			UseAuthentication: row.UseAuthentication,
		})
	}
	return &PointOfSaleListResult{
		PointsOfSale: dtos,
		Page:         pagination.NewPage(params, total),
	}, nil
}

func (s *service) loadContainers(ctx context.Context, ids []uuid.UUID) ([]models.Container, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	found, err := s.containerRepo.FindManyByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(found) != len(ids) {
		known := make(map[uuid.UUID]struct{}, len(found))
		for _, c := range found {
			known[c.ID] = struct{}{}
		}
		var missing []uuid.UUID
		for _, id := range ids {
			if _, ok := known[id]; !ok {
				missing = append(missing, id)
			}
		}
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown containers in point of sale draft").
			WithDetails(map[string]any{"containerIds": missing})
	}
	return found, nil
}

func draftToUpdate(posID uuid.UUID, draft DraftInput) *models.PointOfSaleUpdate {
	update := &models.PointOfSaleUpdate{
		PointOfSaleID:     posID,
		Name:              draft.Name,
		UseAuthentication: draft.UseAuthentication,
	}
	for _, id := range draft.ContainerIDs {
		update.Containers = append(update.Containers, models.PointOfSaleUpdateContainer{
			PointOfSaleID: posID,
			ContainerID:   id,
		})
	}
	return update
}
