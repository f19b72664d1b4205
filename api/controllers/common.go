package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/tbraams/barkeep-backend/api/middleware"
	"github.com/tbraams/barkeep-backend/internal/authz"
	"github.com/tbraams/barkeep-backend/pkg/config"
	pkgerrors "github.com/tbraams/barkeep-backend/pkg/errors"
	"github.com/tbraams/barkeep-backend/pkg/money"
)

// actorRequest builds an authorization question for the request's actor.
func actorRequest(r *http.Request, action authz.Action, scope authz.Scope, resource string, targetOwner *uuid.UUID) authz.Request {
	ctx := r.Context()
	return authz.Request{
		ActorID:       middleware.ActorIDFromContext(ctx),
		ActorType:     middleware.ActorTypeFromContext(ctx),
		Action:        action,
		Scope:         scope,
		Resource:      resource,
		TargetOwnerID: targetOwner,
	}
}

// authorize turns a denied decision into a Forbidden error.
func authorize(auth authz.Authorizer, req authz.Request) error {
	if auth == nil || !auth.Allowed(req) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed")
	}
	return nil
}

// moneyRequest is the wire shape for an amount. Currency may be omitted; it
// then defaults to the ledger currency.
type moneyRequest struct {
	Amount   int64  `json:"amount" validate:"required"`
	Currency string `json:"currency,omitempty"`
}

// parseRevision parses a revision number path segment.
func parseRevision(raw string) (int, error) {
	revision, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || revision < 1 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "revision must be a positive integer")
	}
	return revision, nil
}

func (m moneyRequest) toMoney(cfg config.LedgerConfig) (money.Money, error) {
	currency := m.Currency
	if currency == "" {
		currency = cfg.Currency
	}
	value, err := money.New(m.Amount, currency, cfg.Precision)
	if err != nil {
		return money.Money{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount")
	}
	return value, nil
}
