package products

import (
	"time"

	"github.com/google/uuid"

	"github.com/tbraams/barkeep-backend/pkg/db/models"
	"github.com/tbraams/barkeep-backend/pkg/money"
	"github.com/tbraams/barkeep-backend/pkg/pagination"
)

// ProductDTO is the read model for one product at a specific revision or at
// its pending draft.
type ProductDTO struct {
	ID        uuid.UUID   `json:"id"`
	OwnerID   uuid.UUID   `json:"ownerId"`
	Revision  *int        `json:"revision,omitempty"`
	Draft     bool        `json:"draft"`
	Name      string      `json:"name"`
	Category  string      `json:"category"`
	Price     money.Money `json:"price"`
	CreatedAt time.Time   `json:"createdAt"`
}

// ProductListResult bundles a product page with pagination info.
type ProductListResult struct {
	Products []ProductDTO    `json:"products"`
	Page     pagination.Page `json:"page"`
}

func dtoFromRevision(base *models.Product, rev *models.ProductRevision) *ProductDTO {
	revision := rev.Revision
	return &ProductDTO{
		ID:        base.ID,
		OwnerID:   base.OwnerID,
		Revision:  &revision,
		Name:      rev.Name,
		Category:  rev.Category,
		Price:     rev.Price,
		CreatedAt: base.CreatedAt,
	}
}

func dtoFromUpdate(base *models.Product, update *models.ProductUpdate) *ProductDTO {
	return &ProductDTO{
		ID:        base.ID,
		OwnerID:   base.OwnerID,
		Draft:     true,
		Name:      update.Name,
		Category:  update.Category,
		Price:     update.Price,
		CreatedAt: base.CreatedAt,
	}
}

func dtoFromListed(row ListedProduct) ProductDTO {
	revision := row.Revision
	return ProductDTO{
		ID:       row.ID,
		OwnerID:  row.OwnerID,
		Revision: &revision,
		Name:     row.Name,
		Category: row.Category,
		Price: money.Money{
			Amount:    row.PriceAmount,
			Currency:  row.PriceCurrency,
			Precision: row.PricePrecision,
		},
	}
}
