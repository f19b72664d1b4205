package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tbraams/barkeep-backend/api/responses"
	"github.com/tbraams/barkeep-backend/api/validators"
	"github.com/tbraams/barkeep-backend/internal/authz"
	"github.com/tbraams/barkeep-backend/pkg/db/models"
	"github.com/tbraams/barkeep-backend/pkg/enums"
	pkgerrors "github.com/tbraams/barkeep-backend/pkg/errors"
	"github.com/tbraams/barkeep-backend/pkg/logger"
	"github.com/tbraams/barkeep-backend/pkg/pagination"
)

// UserDirectory is the slice of the user repository the controllers need.
type UserDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	List(ctx context.Context, params pagination.Params) ([]models.User, int64, error)
}

type userResponse struct {
	ID        uuid.UUID      `json:"id"`
	FirstName string         `json:"firstName"`
	LastName  string         `json:"lastName"`
	Email     string         `json:"email"`
	Type      enums.UserType `json:"type"`
	IsActive  bool           `json:"isActive"`
	Fined     bool           `json:"fined"`
	CreatedAt time.Time      `json:"createdAt"`
}

func userToResponse(u *models.User) userResponse {
	return userResponse{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Type:      u.Type,
		IsActive:  u.IsActive,
		Fined:     u.CurrentFineGroupID != nil,
		CreatedAt: u.CreatedAt,
	}
}

type createUserRequest struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Type      string `json:"type" validate:"required"`
}

// CreateUser registers a new account. Admin only, enforced by the router.
func CreateUser(users UserDirectory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createUserRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userType, err := enums.ParseUserType(strings.TrimSpace(payload.Type))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user type"))
			return
		}

		user, err := users.Create(r.Context(), &models.User{
			FirstName: strings.TrimSpace(payload.FirstName),
			LastName:  strings.TrimSpace(payload.LastName),
			Email:     strings.TrimSpace(payload.Email),
			Type:      userType,
			IsActive:  true,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, userToResponse(user))
	}
}

// GetUser returns one account. Members can only read themselves.
func GetUser(users UserDirectory, auth authz.Authorizer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "userId"), "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorize(auth, actorRequest(r, authz.ActionRead, authz.ScopeAny, authz.ResourceUser, &id)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		user, err := users.FindByID(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, userToResponse(user))
	}
}

// ListUsers pages through all accounts. Admin only, enforced by the router.
func ListUsers(users UserDirectory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		found, total, err := users.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := make([]userResponse, 0, len(found))
		for i := range found {
			items = append(items, userToResponse(&found[i]))
		}
		responses.WriteSuccess(w, map[string]any{
			"users": items,
			"page":  pagination.NewPage(params, total),
		})
	}
}
