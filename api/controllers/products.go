package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tbraams/barkeep-backend/api/middleware"
	"github.com/tbraams/barkeep-backend/api/responses"
	"github.com/tbraams/barkeep-backend/api/validators"
	"github.com/tbraams/barkeep-backend/internal/authz"
	productsvc "github.com/tbraams/barkeep-backend/internal/products"
	"github.com/tbraams/barkeep-backend/pkg/config"
	pkgerrors "github.com/tbraams/barkeep-backend/pkg/errors"
	"github.com/tbraams/barkeep-backend/pkg/logger"
)

type productDraftRequest struct {
	Name     string       `json:"name" validate:"required"`
	Category string       `json:"category" validate:"required"`
	Price    moneyRequest `json:"price" validate:"required"`
}

func (p productDraftRequest) toDraftInput(cfg config.LedgerConfig) (productsvc.DraftInput, error) {
	price, err := p.Price.toMoney(cfg)
	if err != nil {
		return productsvc.DraftInput{}, err
	}
	return productsvc.DraftInput{
		Name:     strings.TrimSpace(p.Name),
		Category: strings.TrimSpace(p.Category),
		Price:    price,
	}, nil
}

type createProductRequest struct {
	// OwnerID may only be set by admins; everyone else creates for themselves.
	OwnerID *uuid.UUID          `json:"ownerId,omitempty"`
	Draft   productDraftRequest `json:"draft" validate:"required"`
}

// CreateProduct registers a product with its first draft.
func CreateProduct(svc productsvc.Service, auth authz.Authorizer, cfg config.LedgerConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ownerID := middleware.ActorIDFromContext(r.Context())
		if payload.OwnerID != nil {
			ownerID = *payload.OwnerID
		}
		if err := authorize(auth, actorRequest(r, authz.ActionCreate, authz.ScopeAny, authz.ResourceProduct, &ownerID)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		draft, err := payload.Draft.toDraftInput(cfg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Create(r.Context(), productsvc.CreateInput{OwnerID: ownerID, Draft: draft})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

// SaveProductDraft creates or overwrites the product's pending draft.
func SaveProductDraft(svc productsvc.Service, auth authz.Authorizer, cfg config.LedgerConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorizeProductWrite(r, svc, auth, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload productDraftRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		draft, err := payload.toDraftInput(cfg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.SaveDraft(r.Context(), id, draft)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// ApproveProduct promotes the pending draft to the next revision. Admin
// only, enforced by the router.
func ApproveProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Approve(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// DiscardProductDraft drops the pending draft without touching revisions.
func DiscardProductDraft(svc productsvc.Service, auth authz.Authorizer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorizeProductWrite(r, svc, auth, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DiscardDraft(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "discarded"})
	}
}

// GetProduct reads the current revision, or the pending draft with ?view=draft.
func GetProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view := productsvc.ViewCurrent
		switch r.URL.Query().Get("view") {
		case "", "current":
		case "draft":
			view = productsvc.ViewDraft
		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "view must be current or draft"))
			return
		}
		product, err := svc.Get(r.Context(), id, view)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// GetProductRevision reads one historical revision.
func GetProductRevision(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		revision, err := parseRevision(chi.URLParam(r, "revision"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.GetRevision(r.Context(), id, revision)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// ListProducts pages through products at their current revision.
func ListProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func authorizeProductWrite(r *http.Request, svc productsvc.Service, auth authz.Authorizer, id uuid.UUID) error {
	product, err := svc.Get(r.Context(), id, productsvc.ViewCurrent)
	if err != nil {
		if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return err
		}
		// Base exists but has no approved revision yet; fall back to the draft.
		product, err = svc.Get(r.Context(), id, productsvc.ViewDraft)
		if err != nil {
			return err
		}
	}
	return authorize(auth, actorRequest(r, authz.ActionUpdate, authz.ScopeAny, authz.ResourceProduct, &product.OwnerID))
}
