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
	possvc "github.com/tbraams/barkeep-backend/internal/pointsofsale"
	pkgerrors "github.com/tbraams/barkeep-backend/pkg/errors"
	"github.com/tbraams/barkeep-backend/pkg/logger"
)

type posDraftRequest struct {
	Name              string   `json:"name" validate:"required"`
	UseAuthentication bool     `json:"useAuthentication,omitempty"`
	ContainerIDs      []string `json:"containerIds,omitempty"`
}

func (p posDraftRequest) toDraftInput() (possvc.DraftInput, error) {
	ids, err := parseUUIDList(p.ContainerIDs, "containerIds")
	if err != nil {
		return possvc.DraftInput{}, err
	}
	return possvc.DraftInput{
		Name:              strings.TrimSpace(p.Name),
		UseAuthentication: p.UseAuthentication,
		ContainerIDs:      ids,
	}, nil
}

type createPointOfSaleRequest struct {
	OwnerID *uuid.UUID      `json:"ownerId,omitempty"`
	Draft   posDraftRequest `json:"draft" validate:"required"`
}

// CreatePointOfSale registers a point of sale with its first draft.
func CreatePointOfSale(svc possvc.Service, auth authz.Authorizer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createPointOfSaleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ownerID := middleware.ActorIDFromContext(r.Context())
		if payload.OwnerID != nil {
			ownerID = *payload.OwnerID
		}
		if err := authorize(auth, actorRequest(r, authz.ActionCreate, authz.ScopeAny, authz.ResourcePointOfSale, &ownerID)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		draft, err := payload.Draft.toDraftInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pos, err := svc.Create(r.Context(), possvc.CreateInput{OwnerID: ownerID, Draft: draft})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, pos)
	}
}

// SavePointOfSaleDraft creates or overwrites the pending draft.
func SavePointOfSaleDraft(svc possvc.Service, auth authz.Authorizer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "posId"), "posId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorizePointOfSaleWrite(r, svc, auth, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload posDraftRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		draft, err := payload.toDraftInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pos, err := svc.SaveDraft(r.Context(), id, draft)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pos)
	}
}

// ApprovePointOfSale promotes the draft. Every referenced container must
// already carry an approved revision; approval never cascades. Admin only,
// enforced by the router.
func ApprovePointOfSale(svc possvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "posId"), "posId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pos, err := svc.Approve(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pos)
	}
}

// DiscardPointOfSaleDraft drops the pending draft.
func DiscardPointOfSaleDraft(svc possvc.Service, auth authz.Authorizer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "posId"), "posId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorizePointOfSaleWrite(r, svc, auth, id); err != nil {
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

// GetPointOfSale reads the current revision, or the pending draft with
// ?view=draft.
func GetPointOfSale(svc possvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "posId"), "posId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view := possvc.ViewCurrent
		switch r.URL.Query().Get("view") {
		case "", "current":
		case "draft":
			view = possvc.ViewDraft
		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "view must be current or draft"))
			return
		}
		pos, err := svc.Get(r.Context(), id, view)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pos)
	}
}

// GetPointOfSaleRevision reads one historical revision with its container pins.
func GetPointOfSaleRevision(svc possvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "posId"), "posId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		revision, err := parseRevision(chi.URLParam(r, "revision"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pos, err := svc.GetRevision(r.Context(), id, revision)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pos)
	}
}

// ListPointsOfSale pages through points of sale at their current revision.
func ListPointsOfSale(svc possvc.Service, logg *logger.Logger) http.HandlerFunc {
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

func authorizePointOfSaleWrite(r *http.Request, svc possvc.Service, auth authz.Authorizer, id uuid.UUID) error {
	pos, err := svc.Get(r.Context(), id, possvc.ViewCurrent)
	if err != nil {
		if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return err
		}
		pos, err = svc.Get(r.Context(), id, possvc.ViewDraft)
		if err != nil {
			return err
		}
	}
	return authorize(auth, actorRequest(r, authz.ActionUpdate, authz.ScopeAny, authz.ResourcePointOfSale, &pos.OwnerID))
}
