package pointsofsale

import (
	"github.com/google/uuid"

	"github.com/tbraams/barkeep-backend/pkg/db/models"
	"github.com/tbraams/barkeep-backend/pkg/pagination"
)

// ContainerRef names one container inside a point-of-sale view. Revision is
// set only on approved views.
type ContainerRef struct {
	ContainerID uuid.UUID `json:"containerId"`
	Revision    *int      `json:"revision,omitempty"`
}

// PointOfSaleDTO is the read model for one point of sale at a specific
// revision or at its pending draft.
type PointOfSaleDTO struct {
	ID                uuid.UUID      `json:"id"`
	OwnerID           uuid.UUID      `json:"ownerId"`
	Revision          *int           `json:"revision,omitempty"`
	Draft             bool           `json:"draft"`
	Name              string         `json:"name"`
	UseAuthentication bool           `json:"useAuthentication"`
	Containers        []ContainerRef `json:"containers"`
}

// PointOfSaleListResult bundles a point-of-sale page with pagination info.
type PointOfSaleListResult struct {
	PointsOfSale []PointOfSaleDTO `json:"pointsOfSale"`
	Page         pagination.Page  `json:"page"`
}

func dtoFromRevision(base *models.PointOfSale, rev *models.PointOfSaleRevision) *PointOfSaleDTO {
	revision := rev.Revision
	refs := make([]ContainerRef, 0, len(rev.Containers))
	for _, pin := range rev.Containers {
		pinned := pin.ContainerRevision
		refs = append(refs, ContainerRef{ContainerID: pin.ContainerID, Revision: &pinned})
	}
	return &PointOfSaleDTO{
		ID:                base.ID,
		OwnerID:           base.OwnerID,
		Revision:          &revision,
		Name:              rev.Name,
		UseAuthentication: rev.UseAuthentication,
		Containers:        refs,
	}
}

func dtoFromUpdate(base *models.PointOfSale, update *models.PointOfSaleUpdate) *PointOfSaleDTO {
	refs := make([]ContainerRef, 0, len(update.Containers))
	for _, c := range update.Containers {
		refs = append(refs, ContainerRef{ContainerID: c.ContainerID})
	}
	return &PointOfSaleDTO{
		ID:                base.ID,
		OwnerID:           base.OwnerID,
		Draft:             true,
		Name:              update.Name,
		UseAuthentication: update.UseAuthentication,
		Containers:        refs,
	}
}
