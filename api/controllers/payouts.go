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
	payoutsvc "github.com/tbraams/barkeep-backend/internal/payouts"
	"github.com/tbraams/barkeep-backend/pkg/config"
	"github.com/tbraams/barkeep-backend/pkg/logger"
)

type createPayoutRequest struct {
	// RequestedByID may only differ from the actor for admins.
	RequestedByID *uuid.UUID   `json:"requestedById,omitempty"`
	Amount        moneyRequest `json:"amount" validate:"required"`
	BankAccount   string       `json:"bankAccount" validate:"required"`
}

// CreatePayout requests a payout of internal balance to a bank account.
func CreatePayout(svc payoutsvc.Service, auth authz.Authorizer, cfg config.LedgerConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createPayoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		requestedBy := middleware.ActorIDFromContext(r.Context())
		if payload.RequestedByID != nil {
			requestedBy = *payload.RequestedByID
		}
		if err := authorize(auth, actorRequest(r, authz.ActionCreate, authz.ScopeAny, authz.ResourcePayout, &requestedBy)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		amount, err := payload.Amount.toMoney(cfg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payout, err := svc.Create(r.Context(), payoutsvc.CreateInput{
			RequestedByID: requestedBy,
			Amount:        amount,
			BankAccount:   strings.TrimSpace(payload.BankAccount),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, payout)
	}
}

// ApprovePayout approves a pending request and debits the amount. Admin
// only, enforced by the router.
func ApprovePayout(svc payoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "payoutId"), "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payout, err := svc.Approve(r.Context(), id, middleware.ActorIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payout)
	}
}

// DenyPayout rejects a pending request. Admin only, enforced by the router.
func DenyPayout(svc payoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "payoutId"), "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payout, err := svc.Deny(r.Context(), id, middleware.ActorIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payout)
	}
}

// GetPayout reads one payout request. Members only see their own.
func GetPayout(svc payoutsvc.Service, auth authz.Authorizer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "payoutId"), "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payout, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorize(auth, actorRequest(r, authz.ActionRead, authz.ScopeAny, authz.ResourcePayout, &payout.RequestedByID)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payout)
	}
}

// ListPayouts pages through payout requests. Non-admin actors are forced
// onto their own account filter.
func ListPayouts(svc payoutsvc.Service, auth authz.Authorizer, logg *logger.Logger) http.HandlerFunc {
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
		userID, err = scopeAccountFilter(r, auth, authz.ResourcePayout, userID)
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
