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
	depositsvc "github.com/tbraams/barkeep-backend/internal/deposits"
	"github.com/tbraams/barkeep-backend/pkg/config"
	"github.com/tbraams/barkeep-backend/pkg/enums"
	pkgerrors "github.com/tbraams/barkeep-backend/pkg/errors"
	"github.com/tbraams/barkeep-backend/pkg/logger"
)

type createDepositRequest struct {
	// ToID may only differ from the actor for admins.
	ToID   *uuid.UUID   `json:"toId,omitempty"`
	Amount moneyRequest `json:"amount" validate:"required"`
}

// CreateDeposit registers an external top-up in the created state.
func CreateDeposit(svc depositsvc.Service, auth authz.Authorizer, cfg config.LedgerConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createDepositRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		toID := middleware.ActorIDFromContext(r.Context())
		if payload.ToID != nil {
			toID = *payload.ToID
		}
		if err := authorize(auth, actorRequest(r, authz.ActionCreate, authz.ScopeAny, authz.ResourceDeposit, &toID)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		amount, err := payload.Amount.toMoney(cfg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		deposit, err := svc.Create(r.Context(), depositsvc.CreateInput{ToID: toID, Amount: amount})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, deposit)
	}
}

type advanceDepositRequest struct {
	State string `json:"state" validate:"required"`
}

// AdvanceDeposit moves a deposit along its provider lifecycle. Admin only,
// enforced by the router; in production the payment provider callback is the
// real driver.
func AdvanceDeposit(svc depositsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "depositId"), "depositId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload advanceDepositRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		next, err := enums.ParseDepositState(strings.TrimSpace(payload.State))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid deposit state"))
			return
		}
		deposit, err := svc.AdvanceState(r.Context(), id, next)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, deposit)
	}
}

// GetDeposit reads one deposit. Members only see their own.
func GetDeposit(svc depositsvc.Service, auth authz.Authorizer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "depositId"), "depositId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		deposit, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorize(auth, actorRequest(r, authz.ActionRead, authz.ScopeAny, authz.ResourceDeposit, &deposit.ToID)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, deposit)
	}
}

// ListDeposits pages through deposits. Non-admin actors are forced onto
// their own account filter.
func ListDeposits(svc depositsvc.Service, auth authz.Authorizer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := validators.ParseQueryUUID(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err = scopeAccountFilter(r, auth, authz.ResourceDeposit, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.List(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
