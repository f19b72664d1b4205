package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tbraams/barkeep-backend/api/middleware"
	"github.com/tbraams/barkeep-backend/api/responses"
	"github.com/tbraams/barkeep-backend/api/validators"
	"github.com/tbraams/barkeep-backend/internal/authz"
	ledgersvc "github.com/tbraams/barkeep-backend/internal/ledger"
	"github.com/tbraams/barkeep-backend/pkg/config"
	"github.com/tbraams/barkeep-backend/pkg/logger"
)

type createTransferRequest struct {
	FromID      *uuid.UUID   `json:"fromId,omitempty"`
	ToID        *uuid.UUID   `json:"toId,omitempty"`
	Amount      moneyRequest `json:"amount" validate:"required"`
	Description string       `json:"description,omitempty"`
}

// CreateTransfer books a manual transfer between accounts. Admin only,
// enforced by the router; reason-linked transfers are created by their own
// flows, never through this endpoint.
func CreateTransfer(svc ledgersvc.Service, cfg config.LedgerConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createTransferRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := payload.Amount.toMoney(cfg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		transfer, err := svc.CreateTransfer(r.Context(), ledgersvc.CreateTransferInput{
			FromID:      payload.FromID,
			ToID:        payload.ToID,
			Amount:      amount,
			Description: payload.Description,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, transfer)
	}
}

// GetTransfer reads one transfer. Members only see transfers touching their
// own account.
func GetTransfer(svc ledgersvc.Service, auth authz.Authorizer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "transferId"), "transferId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		transfer, err := svc.GetTransfer(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		owner := transferParty(transfer, middleware.ActorIDFromContext(r.Context()))
		if err := authorize(auth, actorRequest(r, authz.ActionRead, authz.ScopeAny, authz.ResourceTransfer, owner)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transfer)
	}
}

// ListTransfers pages through transfers. Non-admin actors are forced onto
// their own account filter.
func ListTransfers(svc ledgersvc.Service, auth authz.Authorizer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		accountID, err := validators.ParseQueryUUID(r, "accountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		accountID, err = scopeAccountFilter(r, auth, authz.ResourceTransfer, accountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ListTransfers(r.Context(), ledgersvc.ListTransfersInput{
			AccountID: accountID,
			Params:    params,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type transactionRowRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type subTransactionRequest struct {
	ContainerID string                  `json:"containerId" validate:"required,uuid"`
	Rows        []transactionRowRequest `json:"rows" validate:"required,min=1,dive"`
}

type recordTransactionRequest struct {
	// FromID may only differ from the actor for admins (e.g. voucher sales).
	FromID              *uuid.UUID              `json:"fromId,omitempty"`
	PointOfSaleID       string                  `json:"pointOfSaleId" validate:"required,uuid"`
	PointOfSaleRevision *int                    `json:"pointOfSaleRevision,omitempty" validate:"omitempty,min=1"`
	SubTransactions     []subTransactionRequest `json:"subTransactions" validate:"required,min=1,dive"`
}

// RecordTransaction books a purchase at a point of sale, priced from the
// pinned revisions.
func RecordTransaction(svc ledgersvc.Service, auth authz.Authorizer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload recordTransactionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actorID := middleware.ActorIDFromContext(r.Context())
		fromID := actorID
		if payload.FromID != nil {
			fromID = *payload.FromID
		}
		if err := authorize(auth, actorRequest(r, authz.ActionCreate, authz.ScopeAny, authz.ResourceTransaction, &fromID)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		posID, err := validators.PathUUID(payload.PointOfSaleID, "pointOfSaleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		subs := make([]ledgersvc.SubTransactionInput, 0, len(payload.SubTransactions))
		for _, sub := range payload.SubTransactions {
			containerID, err := validators.PathUUID(sub.ContainerID, "containerId")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			rows := make([]ledgersvc.RowInput, 0, len(sub.Rows))
			for _, row := range sub.Rows {
				productID, err := validators.PathUUID(row.ProductID, "productId")
				if err != nil {
					responses.WriteError(r.Context(), logg, w, err)
					return
				}
				rows = append(rows, ledgersvc.RowInput{ProductID: productID, Quantity: row.Quantity})
			}
			subs = append(subs, ledgersvc.SubTransactionInput{ContainerID: containerID, Rows: rows})
		}

		txn, err := svc.RecordTransaction(r.Context(), ledgersvc.RecordTransactionInput{
			FromID:              fromID,
			CreatedByID:         &actorID,
			PointOfSaleID:       posID,
			PointOfSaleRevision: payload.PointOfSaleRevision,
			SubTransactions:     subs,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, txn)
	}
}

// GetTransaction reads one purchase with its sub-transactions and rows.
func GetTransaction(svc ledgersvc.Service, auth authz.Authorizer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "transactionId"), "transactionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txn, err := svc.GetTransaction(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorize(auth, actorRequest(r, authz.ActionRead, authz.ScopeAny, authz.ResourceTransaction, &txn.FromID)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, txn)
	}
}

// ListTransactions pages through purchase summaries. Non-admin actors are
// forced onto their own account filter.
func ListTransactions(svc ledgersvc.Service, auth authz.Authorizer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		fromID, err := validators.ParseQueryUUID(r, "fromId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		fromID, err = scopeAccountFilter(r, auth, authz.ResourceTransaction, fromID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ListTransactions(r.Context(), ledgersvc.ListTransactionsInput{
			FromID: fromID,
			Params: params,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// GetBalance derives an account balance by ledger replay, optionally at a
// historical instant with ?asOf=RFC3339.
func GetBalance(svc ledgersvc.Service, auth authz.Authorizer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, err := validators.PathUUID(chi.URLParam(r, "userId"), "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorize(auth, actorRequest(r, authz.ActionRead, authz.ScopeAny, authz.ResourceBalance, &accountID)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		asOf, err := validators.ParseQueryTime(r, "asOf")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		balance, err := svc.GetBalance(r.Context(), accountID, asOf)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balance)
	}
}

// transferParty returns the endpoint of the transfer the actor matches, or
// an arbitrary endpoint when they match neither; the authorizer settles it.
func transferParty(transfer *ledgersvc.TransferDTO, actorID uuid.UUID) *uuid.UUID {
	if transfer.FromID != nil && *transfer.FromID == actorID {
		return transfer.FromID
	}
	if transfer.ToID != nil && *transfer.ToID == actorID {
		return transfer.ToID
	}
	if transfer.FromID != nil {
		return transfer.FromID
	}
	return transfer.ToID
}

// scopeAccountFilter forces non-privileged actors onto their own account and
// verifies explicit filters against the authorizer.
func scopeAccountFilter(r *http.Request, auth authz.Authorizer, resource string, filter *uuid.UUID) (*uuid.UUID, error) {
	actorID := middleware.ActorIDFromContext(r.Context())
	if filter == nil {
		if err := authorize(auth, actorRequest(r, authz.ActionRead, authz.ScopeAny, resource, nil)); err != nil {
			// Not allowed to read everyone; fall back to own records.
			own := actorID
			if ownErr := authorize(auth, actorRequest(r, authz.ActionRead, authz.ScopeOwn, resource, &own)); ownErr != nil {
				return nil, ownErr
			}
			return &own, nil
		}
		return nil, nil
	}
	if err := authorize(auth, actorRequest(r, authz.ActionRead, authz.ScopeAny, resource, filter)); err != nil {
		return nil, err
	}
	return filter, nil
}
