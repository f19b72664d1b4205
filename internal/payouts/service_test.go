package payouts

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbraams/barkeep-backend/internal/containers"
	"github.com/tbraams/barkeep-backend/internal/ledger"
	"github.com/tbraams/barkeep-backend/internal/pointsofsale"
	"github.com/tbraams/barkeep-backend/internal/products"
	"github.com/tbraams/barkeep-backend/internal/users"
	"github.com/tbraams/barkeep-backend/pkg/config"
	"github.com/tbraams/barkeep-backend/pkg/db"
	"github.com/tbraams/barkeep-backend/pkg/db/dbtest"
	"github.com/tbraams/barkeep-backend/pkg/db/models"
	"github.com/tbraams/barkeep-backend/pkg/enums"
	pkgerrors "github.com/tbraams/barkeep-backend/pkg/errors"
	"github.com/tbraams/barkeep-backend/pkg/money"
	"github.com/tbraams/barkeep-backend/pkg/pagination"
)

var testLedgerConfig = config.LedgerConfig{Currency: "EUR", Precision: 2, DefaultPageSize: 25}

type testEnv struct {
	conn    *gorm.DB
	payouts Service
	ledger  ledger.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.NewWithConn(conn)
	userRepo := users.NewRepository(conn)
	ledgerRepo := ledger.NewRepository(conn)

	ledgerSvc, err := ledger.NewService(
		ledgerRepo, client, userRepo,
		pointsofsale.NewRepository(conn), containers.NewRepository(conn), products.NewRepository(conn),
		testLedgerConfig, nil, nil,
	)
	if err != nil {
		t.Fatalf("build ledger service: %v", err)
	}
	svc, err := NewService(NewRepository(conn), client, userRepo, ledgerRepo, testLedgerConfig, nil)
	if err != nil {
		t.Fatalf("build payout service: %v", err)
	}
	return &testEnv{conn: conn, payouts: svc, ledger: ledgerSvc}
}

func (e *testEnv) mustCreateUser(t *testing.T, name string) *models.User {
	t.Helper()
	user := &models.User{
		ID:        uuid.New(),
		FirstName: name,
		LastName:  "Tester",
		Email:     fmt.Sprintf("bk_test_%s@example.com", uuid.NewString()),
		Type:      enums.UserTypeMember,
		IsActive:  true,
	}
	if err := e.conn.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return user
}

// mustFund credits the user directly through the ledger.
func (e *testEnv) mustFund(t *testing.T, userID uuid.UUID, minor int64) {
	t.Helper()
	_, err := e.ledger.CreateTransfer(context.Background(), ledger.CreateTransferInput{
		ToID:        &userID,
		Amount:      eur(minor),
		Description: "test funding",
	})
	if err != nil {
		t.Fatalf("fund user: %v", err)
	}
}

func (e *testEnv) mustBalance(t *testing.T, userID uuid.UUID) int64 {
	t.Helper()
	balance, err := e.ledger.GetBalance(context.Background(), userID, nil)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return balance.Balance.Amount
}

func eur(minor int64) money.Money {
	return money.MustNew(minor, "EUR", 2)
}

func TestPayoutApproveDebitsBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	member := env.mustCreateUser(t, "Member")
	admin := env.mustCreateUser(t, "Admin")
	env.mustFund(t, member.ID, 4000)

	payout, err := env.payouts.Create(ctx, CreateInput{
		RequestedByID: member.ID,
		Amount:        eur(2500),
		BankAccount:   "NL02ABNA0123456789",
	})
	if err != nil {
		t.Fatalf("create payout: %v", err)
	}
	if payout.State != enums.PayoutStateRequested {
		t.Fatalf("new payout state = %s, want requested", payout.State)
	}
	// Requesting reserves nothing.
	if got := env.mustBalance(t, member.ID); got != 4000 {
		t.Fatalf("balance after request = %d, want 4000", got)
	}

	payout, err = env.payouts.Approve(ctx, payout.ID, admin.ID)
	if err != nil {
		t.Fatalf("approve payout: %v", err)
	}
	if payout.State != enums.PayoutStateApproved {
		t.Fatalf("state = %s, want approved", payout.State)
	}
	if payout.ApprovedByID == nil || *payout.ApprovedByID != admin.ID {
		t.Fatalf("approvedBy = %v, want %s", payout.ApprovedByID, admin.ID)
	}
	if payout.TransferID == nil {
		t.Fatalf("approved payout has no transfer")
	}
	if got := env.mustBalance(t, member.ID); got != 1500 {
		t.Fatalf("balance after approval = %d, want 1500", got)
	}

	// Decisions are final.
	if _, err := env.payouts.Approve(ctx, payout.ID, admin.ID); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("second approve: err = %v, want conflict", err)
	}
}

func TestPayoutDenyLeavesBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	member := env.mustCreateUser(t, "Member")
	admin := env.mustCreateUser(t, "Admin")
	env.mustFund(t, member.ID, 1000)

	payout, err := env.payouts.Create(ctx, CreateInput{
		RequestedByID: member.ID,
		Amount:        eur(1000),
		BankAccount:   "NL02ABNA0123456789",
	})
	if err != nil {
		t.Fatalf("create payout: %v", err)
	}

	payout, err = env.payouts.Deny(ctx, payout.ID, admin.ID)
	if err != nil {
		t.Fatalf("deny payout: %v", err)
	}
	if payout.State != enums.PayoutStateDenied {
		t.Fatalf("state = %s, want denied", payout.State)
	}
	if payout.TransferID != nil {
		t.Fatalf("denied payout has a transfer")
	}
	if got := env.mustBalance(t, member.ID); got != 1000 {
		t.Fatalf("balance after denial = %d, want 1000", got)
	}

	if _, err := env.payouts.Approve(ctx, payout.ID, admin.ID); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("approving denied payout: err = %v, want conflict", err)
	}
}

func TestPayoutRejectsInsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	member := env.mustCreateUser(t, "Member")
	admin := env.mustCreateUser(t, "Admin")
	env.mustFund(t, member.ID, 500)

	// Cannot request more than the current balance.
	_, err := env.payouts.Create(ctx, CreateInput{
		RequestedByID: member.ID,
		Amount:        eur(600),
		BankAccount:   "NL02ABNA0123456789",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("over-balance request: err = %v, want validation", err)
	}

	// A valid request can still fail approval if the balance dropped since.
	payout, err := env.payouts.Create(ctx, CreateInput{
		RequestedByID: member.ID,
		Amount:        eur(500),
		BankAccount:   "NL02ABNA0123456789",
	})
	if err != nil {
		t.Fatalf("create payout: %v", err)
	}
	if _, err := env.ledger.CreateTransfer(ctx, ledger.CreateTransferInput{
		FromID:      &member.ID,
		Amount:      eur(200),
		Description: "spent in the meantime",
	}); err != nil {
		t.Fatalf("debit member: %v", err)
	}
	if _, err := env.payouts.Approve(ctx, payout.ID, admin.ID); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("approve with dropped balance: err = %v, want validation", err)
	}

	// Still pending, so it can be approved once the balance recovers.
	env.mustFund(t, member.ID, 200)
	if _, err := env.payouts.Approve(ctx, payout.ID, admin.ID); err != nil {
		t.Fatalf("approve after recovery: %v", err)
	}
	if got := env.mustBalance(t, member.ID); got != 0 {
		t.Fatalf("final balance = %d, want 0", got)
	}
}

func TestPayoutValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	member := env.mustCreateUser(t, "Member")
	env.mustFund(t, member.ID, 1000)

	cases := []struct {
		name  string
		input CreateInput
		code  pkgerrors.Code
	}{
		{"missing bank account", CreateInput{RequestedByID: member.ID, Amount: eur(100)}, pkgerrors.CodeValidation},
		{"zero amount", CreateInput{RequestedByID: member.ID, Amount: eur(0), BankAccount: "NL02"}, pkgerrors.CodeValidation},
		{"wrong currency", CreateInput{RequestedByID: member.ID, Amount: money.MustNew(100, "USD", 2), BankAccount: "NL02"}, pkgerrors.CodeValidation},
		{"unknown user", CreateInput{RequestedByID: uuid.New(), Amount: eur(100), BankAccount: "NL02"}, pkgerrors.CodeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.payouts.Create(ctx, tc.input); !pkgerrors.IsCode(err, tc.code) {
				t.Fatalf("err = %v, want code %s", err, tc.code)
			}
		})
	}
}

func TestPayoutList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.mustCreateUser(t, "Alice")
	bob := env.mustCreateUser(t, "Bob")
	env.mustFund(t, alice.ID, 1000)
	env.mustFund(t, bob.ID, 1000)

	for i := 0; i < 2; i++ {
		if _, err := env.payouts.Create(ctx, CreateInput{
			RequestedByID: alice.ID,
			Amount:        eur(100),
			BankAccount:   "NL02ABNA0123456789",
		}); err != nil {
			t.Fatalf("create payout: %v", err)
		}
		time.Sleep(time.Millisecond)
	}
	if _, err := env.payouts.Create(ctx, CreateInput{
		RequestedByID: bob.ID,
		Amount:        eur(100),
		BankAccount:   "NL91ABNA0417164300",
	}); err != nil {
		t.Fatalf("create payout: %v", err)
	}

	mine, err := env.payouts.List(ctx, &alice.ID, pagination.Params{})
	if err != nil {
		t.Fatalf("list alice: %v", err)
	}
	if mine.Page.Total != 2 {
		t.Fatalf("alice total = %d, want 2", mine.Page.Total)
	}
	for _, p := range mine.Payouts {
		if p.RequestedByID != alice.ID {
			t.Fatalf("foreign payout in filtered list: %s", p.ID)
		}
	}
}
