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
	containersvc "github.com/tbraams/barkeep-backend/internal/containers"
	"github.com/tbraams/barkeep-backend/pkg/enums"
	pkgerrors "github.com/tbraams/barkeep-backend/pkg/errors"
	"github.com/tbraams/barkeep-backend/pkg/logger"
)

type containerDraftRequest struct {
	Name       string   `json:"name" validate:"required"`
	ProductIDs []string `json:"productIds,omitempty"`
}

func (c containerDraftRequest) toDraftInput() (containersvc.DraftInput, error) {
	ids, err := parseUUIDList(c.ProductIDs, "productIds")
	if err != nil {
		return containersvc.DraftInput{}, err
	}
	return containersvc.DraftInput{
		Name:       strings.TrimSpace(c.Name),
		ProductIDs: ids,
	}, nil
}

type createContainerRequest struct {
	OwnerID  *uuid.UUID            `json:"ownerId,omitempty"`
	IsPublic bool                  `json:"isPublic,omitempty"`
	Draft    containerDraftRequest `json:"draft" validate:"required"`
}

// CreateContainer registers a container with its first draft.
func CreateContainer(svc containersvc.Service, auth authz.Authorizer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createContainerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ownerID := middleware.ActorIDFromContext(r.Context())
		if payload.OwnerID != nil {
			ownerID = *payload.OwnerID
		}
		if err := authorize(auth, actorRequest(r, authz.ActionCreate, authz.ScopeAny, authz.ResourceContainer, &ownerID)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		draft, err := payload.Draft.toDraftInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		container, err := svc.Create(r.Context(), containersvc.CreateInput{
			OwnerID:  ownerID,
			IsPublic: payload.IsPublic,
			Draft:    draft,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, container)
	}
}

// SaveContainerDraft creates or overwrites the container's pending draft.
func SaveContainerDraft(svc containersvc.Service, auth authz.Authorizer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "containerId"), "containerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorizeContainerWrite(r, svc, auth, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload containerDraftRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		draft, err := payload.toDraftInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		container, err := svc.SaveDraft(r.Context(), id, draft)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, container)
	}
}

// ApproveContainer promotes the draft, approving any nested product drafts.
// Admin only, enforced by the router.
func ApproveContainer(svc containersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "containerId"), "containerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		container, err := svc.Approve(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, container)
	}
}

// DiscardContainerDraft drops the pending draft.
func DiscardContainerDraft(svc containersvc.Service, auth authz.Authorizer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "containerId"), "containerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorizeContainerWrite(r, svc, auth, id); err != nil {
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

// GetContainer reads the current revision, or the pending draft with ?view=draft.
func GetContainer(svc containersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "containerId"), "containerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view := containersvc.ViewCurrent
		switch r.URL.Query().Get("view") {
		case "", "current":
		case "draft":
			view = containersvc.ViewDraft
		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "view must be current or draft"))
			return
		}
		container, err := svc.Get(r.Context(), id, view)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, container)
	}
}

// GetContainerRevision reads one historical revision with its product pins.
func GetContainerRevision(svc containersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "containerId"), "containerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		revision, err := parseRevision(chi.URLParam(r, "revision"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		container, err := svc.GetRevision(r.Context(), id, revision)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, container)
	}
}

// ListContainers pages through containers at their current revision.
// Non-admin actors only see public ones.
func ListContainers(svc containersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		publicOnly := middleware.ActorTypeFromContext(r.Context()) != enums.UserTypeAdmin
		result, err := svc.List(r.Context(), params, publicOnly)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func authorizeContainerWrite(r *http.Request, svc containersvc.Service, auth authz.Authorizer, id uuid.UUID) error {
	container, err := svc.Get(r.Context(), id, containersvc.ViewCurrent)
	if err != nil {
		if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return err
		}
		container, err = svc.Get(r.Context(), id, containersvc.ViewDraft)
		if err != nil {
			return err
		}
	}
	return authorize(auth, actorRequest(r, authz.ActionUpdate, authz.ScopeAny, authz.ResourceContainer, &container.OwnerID))
}

func parseUUIDList(values []string, field string) ([]uuid.UUID, error) {
	result := make([]uuid.UUID, 0, len(values))
	for _, raw := range values {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid uuid list entry").
				WithDetails(map[string]any{"field": field})
		}
		result = append(result, parsed)
	}
	return result, nil
}
