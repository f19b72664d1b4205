// Package authz answers yes/no authorization questions for the API layer.
// Core services never consult it; handlers gate operations before calling in.
package authz

import (
	"github.com/google/uuid"

	"github.com/tbraams/barkeep-backend/pkg/enums"
)

// Action names something an actor wants to do.
type Action string

const (
	ActionRead    Action = "read"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionApprove Action = "approve"
	ActionDelete  Action = "delete"
)

// Scope bounds which records the action touches.
type Scope string

const (
	// ScopeOwn covers records belonging to the actor.
	ScopeOwn Scope = "own"
	// ScopeAny covers everyone's records.
	ScopeAny Scope = "any"
)

// Request describes one authorization question.
type Request struct {
	ActorID   uuid.UUID
	ActorType enums.UserType
	Action    Action
	Scope     Scope
	Resource  string
	// TargetOwnerID is the owner of the record being touched, when known.
	// It lets a role that only holds own-scope permissions pass an any-scope
	// check on its own records.
	TargetOwnerID *uuid.UUID
}

// Authorizer decides whether a request is allowed.
type Authorizer interface {
	Allowed(req Request) bool
}

// Resource names for the decision table.
const (
	ResourceUser        = "user"
	ResourceProduct     = "product"
	ResourceContainer   = "container"
	ResourcePointOfSale = "point_of_sale"
	ResourceTransfer    = "transfer"
	ResourceTransaction = "transaction"
	ResourceBalance     = "balance"
	ResourceFine        = "fine"
	ResourceDeposit     = "deposit"
	ResourceInvoice     = "invoice"
	ResourcePayout      = "payout"
)

// RoleAuthorizer is the default implementation, keyed on user type. Admins
// can do everything; members and organs manage their own records and read
// the public catalog; vouchers can only be spent, not act.
type RoleAuthorizer struct{}

// NewRoleAuthorizer builds the default role-based authorizer.
func NewRoleAuthorizer() *RoleAuthorizer {
	return &RoleAuthorizer{}
}

// Allowed implements Authorizer.
func (a *RoleAuthorizer) Allowed(req Request) bool {
	if req.ActorType == enums.UserTypeAdmin {
		return true
	}
	if req.ActorType == enums.UserTypeVoucher {
		return false
	}

	// Members and organs share the self-service permission set. An any-scope
	// request on a record the actor owns degrades to an own-scope check.
	scope := req.Scope
	if scope == ScopeAny && req.TargetOwnerID != nil && *req.TargetOwnerID == req.ActorID {
		scope = ScopeOwn
	}

	switch req.Resource {
	case ResourceProduct, ResourceContainer, ResourcePointOfSale:
		switch req.Action {
		case ActionRead:
			return true
		case ActionCreate, ActionUpdate:
			return scope == ScopeOwn
		default:
			// Approval publishes into the shared catalog.
			return false
		}
	case ResourceTransfer, ResourceTransaction, ResourceBalance, ResourceDeposit, ResourceInvoice, ResourcePayout:
		switch req.Action {
		case ActionRead:
			return scope == ScopeOwn
		case ActionCreate:
			// Purchases, top-ups and payout requests against the actor's own
			// account. Manual transfers and invoices stay admin-only.
			return scope == ScopeOwn &&
				(req.Resource == ResourceTransaction || req.Resource == ResourceDeposit || req.Resource == ResourcePayout)
		default:
			return false
		}
	case ResourceFine:
		return req.Action == ActionRead && scope == ScopeOwn
	case ResourceUser:
		return req.Action == ActionRead && scope == ScopeOwn
	default:
		return false
	}
}
