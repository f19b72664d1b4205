package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tbraams/barkeep-backend/api/responses"
	"github.com/tbraams/barkeep-backend/api/validators"
	"github.com/tbraams/barkeep-backend/internal/authz"
	invoicesvc "github.com/tbraams/barkeep-backend/internal/invoices"
	"github.com/tbraams/barkeep-backend/pkg/config"
	"github.com/tbraams/barkeep-backend/pkg/enums"
	pkgerrors "github.com/tbraams/barkeep-backend/pkg/errors"
	"github.com/tbraams/barkeep-backend/pkg/logger"
)

type createInvoiceRequest struct {
	ToID        uuid.UUID    `json:"toId" validate:"required"`
	Reference   string       `json:"reference" validate:"required"`
	Description string       `json:"description,omitempty"`
	Amount      moneyRequest `json:"amount" validate:"required"`
}

// CreateInvoice issues an invoice and credits the amount immediately. Admin
// only, enforced by the router.
func CreateInvoice(svc invoicesvc.Service, cfg config.LedgerConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createInvoiceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := payload.Amount.toMoney(cfg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoice, err := svc.Create(r.Context(), invoicesvc.CreateInput{
			ToID:        payload.ToID,
			Reference:   strings.TrimSpace(payload.Reference),
			Description: strings.TrimSpace(payload.Description),
			Amount:      amount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, invoice)
	}
}

type advanceInvoiceRequest struct {
	State string `json:"state" validate:"required"`
}

// AdvanceInvoice moves an invoice along its billing lifecycle. Admin only,
// enforced by the router.
func AdvanceInvoice(svc invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "invoiceId"), "invoiceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload advanceInvoiceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		next, err := enums.ParseInvoiceState(strings.TrimSpace(payload.State))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid invoice state"))
			return
		}
		invoice, err := svc.AdvanceState(r.Context(), id, next)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoice)
	}
}

// DeleteInvoice cancels an unpaid invoice, debiting the earlier credit back.
// Admin only, enforced by the router.
func DeleteInvoice(svc invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "invoiceId"), "invoiceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoice, err := svc.Delete(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoice)
	}
}

// GetInvoice reads one invoice. Members only see their own.
func GetInvoice(svc invoicesvc.Service, auth authz.Authorizer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "invoiceId"), "invoiceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoice, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorize(auth, actorRequest(r, authz.ActionRead, authz.ScopeAny, authz.ResourceInvoice, &invoice.ToID)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoice)
	}
}

// ListInvoices pages through invoices. Non-admin actors are forced onto
// their own account filter.
func ListInvoices(svc invoicesvc.Service, auth authz.Authorizer, logg *logger.Logger) http.HandlerFunc {
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
		userID, err = scopeAccountFilter(r, auth, authz.ResourceInvoice, userID)
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
