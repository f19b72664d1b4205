package authz

import (
	"testing"

	"github.com/google/uuid"

	"github.com/tbraams/barkeep-backend/pkg/enums"
)

func TestRoleAuthorizer(t *testing.T) {
	actor := uuid.New()
	other := uuid.New()
	a := NewRoleAuthorizer()

	cases := []struct {
		name string
		req  Request
		want bool
	}{
		{"admin does anything", Request{ActorType: enums.UserTypeAdmin, Action: ActionDelete, Scope: ScopeAny, Resource: ResourceFine}, true},
		{"voucher does nothing", Request{ActorType: enums.UserTypeVoucher, Action: ActionRead, Scope: ScopeOwn, Resource: ResourceBalance}, false},
		{"member reads catalog", Request{ActorType: enums.UserTypeMember, Action: ActionRead, Scope: ScopeAny, Resource: ResourceProduct}, true},
		{"member edits own product", Request{ActorID: actor, ActorType: enums.UserTypeMember, Action: ActionUpdate, Scope: ScopeOwn, Resource: ResourceProduct}, true},
		{"member cannot approve", Request{ActorID: actor, ActorType: enums.UserTypeMember, Action: ActionApprove, Scope: ScopeOwn, Resource: ResourceContainer}, false},
		{"member reads own balance", Request{ActorID: actor, ActorType: enums.UserTypeMember, Action: ActionRead, Scope: ScopeOwn, Resource: ResourceBalance}, true},
		{"member cannot read other balances", Request{ActorID: actor, ActorType: enums.UserTypeMember, Action: ActionRead, Scope: ScopeAny, Resource: ResourceBalance, TargetOwnerID: &other}, false},
		{"any-scope on own record degrades", Request{ActorID: actor, ActorType: enums.UserTypeOrgan, Action: ActionRead, Scope: ScopeAny, Resource: ResourceTransfer, TargetOwnerID: &actor}, true},
		{"member records own purchase", Request{ActorID: actor, ActorType: enums.UserTypeMember, Action: ActionCreate, Scope: ScopeOwn, Resource: ResourceTransaction}, true},
		{"member cannot create transfers", Request{ActorID: actor, ActorType: enums.UserTypeMember, Action: ActionCreate, Scope: ScopeOwn, Resource: ResourceTransfer}, false},
		{"member cannot hand out fines", Request{ActorID: actor, ActorType: enums.UserTypeMember, Action: ActionCreate, Scope: ScopeAny, Resource: ResourceFine}, false},
		{"member requests own payout", Request{ActorID: actor, ActorType: enums.UserTypeMember, Action: ActionCreate, Scope: ScopeOwn, Resource: ResourcePayout}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := a.Allowed(tc.req); got != tc.want {
				t.Fatalf("Allowed = %v, want %v", got, tc.want)
			}
		})
	}
}
