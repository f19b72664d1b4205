package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/tbraams/barkeep-backend/api/responses"
	"github.com/tbraams/barkeep-backend/pkg/db/models"
	pkgerrors "github.com/tbraams/barkeep-backend/pkg/errors"
	"github.com/tbraams/barkeep-backend/pkg/logger"
)

// Authentication happens at the gateway; it forwards the verified account id
// in this header. The middleware resolves it to a live account so downstream
// handlers can trust the actor's type.
const actorIDHeader = "X-Actor-Id"

type actorLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

func Actor(users actorLoader, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw := r.Header.Get(actorIDHeader)
			if raw == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor header missing"))
				return
			}
			actorID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor header malformed"))
				return
			}

			user, err := users.FindByID(ctx, actorID)
			if err != nil {
				if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
					err = pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown actor")
				}
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if !user.IsActive {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "account is deactivated"))
				return
			}

			ctx = WithActor(ctx, user.ID, user.Type)
			if logg != nil {
				ctx = logg.WithActorID(ctx, user.ID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
