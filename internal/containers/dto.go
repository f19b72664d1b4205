package containers

import (
	"github.com/google/uuid"

	"github.com/tbraams/barkeep-backend/pkg/db/models"
	"github.com/tbraams/barkeep-backend/pkg/pagination"
)

// ProductRef names one product inside a container view. Revision is set only
// on approved views; drafts reference base products without a pin.
type ProductRef struct {
	ProductID uuid.UUID `json:"productId"`
	Revision  *int      `json:"revision,omitempty"`
}

// ContainerDTO is the read model for one container at a specific revision or
// at its pending draft.
type ContainerDTO struct {
	ID       uuid.UUID    `json:"id"`
	OwnerID  uuid.UUID    `json:"ownerId"`
	IsPublic bool         `json:"isPublic"`
	Revision *int         `json:"revision,omitempty"`
	Draft    bool         `json:"draft"`
	Name     string       `json:"name"`
	Products []ProductRef `json:"products"`
}

// ContainerListResult bundles a container page with pagination info.
type ContainerListResult struct {
	Containers []ContainerDTO  `json:"containers"`
	Page       pagination.Page `json:"page"`
}

func dtoFromRevision(base *models.Container, rev *models.ContainerRevision) *ContainerDTO {
	revision := rev.Revision
	refs := make([]ProductRef, 0, len(rev.Products))
	for _, pin := range rev.Products {
		pinned := pin.ProductRevision
		refs = append(refs, ProductRef{ProductID: pin.ProductID, Revision: &pinned})
	}
	return &ContainerDTO{
		ID:       base.ID,
		OwnerID:  base.OwnerID,
		IsPublic: base.IsPublic,
		Revision: &revision,
		Name:     rev.Name,
		Products: refs,
	}
}

func dtoFromUpdate(base *models.Container, update *models.ContainerUpdate) *ContainerDTO {
	refs := make([]ProductRef, 0, len(update.Products))
	for _, p := range update.Products {
		refs = append(refs, ProductRef{ProductID: p.ProductID})
	}
	return &ContainerDTO{
		ID:       base.ID,
		OwnerID:  base.OwnerID,
		IsPublic: base.IsPublic,
		Draft:    true,
		Name:     update.Name,
		Products: refs,
	}
}
