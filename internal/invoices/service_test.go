package invoices

import (
	"context"
	"fmt"
	"testing"

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
	conn     *gorm.DB
	invoices Service
	ledger   ledger.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.NewWithConn(conn)
	userRepo := users.NewRepository(conn)

	ledgerSvc, err := ledger.NewService(
		ledger.NewRepository(conn), client, userRepo,
		pointsofsale.NewRepository(conn), containers.NewRepository(conn), products.NewRepository(conn),
		testLedgerConfig, nil, nil,
	)
	if err != nil {
		t.Fatalf("build ledger service: %v", err)
	}
	svc, err := NewService(NewRepository(conn), client, userRepo, ledgerSvc, testLedgerConfig, nil)
	if err != nil {
		t.Fatalf("build invoice service: %v", err)
	}
	return &testEnv{conn: conn, invoices: svc, ledger: ledgerSvc}
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

func TestInvoiceCreditsImmediately(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.mustCreateUser(t, "Invoicee")

	invoice, err := env.invoices.Create(ctx, CreateInput{
		ToID:      user.ID,
		Reference: "2026-001",
		Amount:    eur(5000),
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if invoice.State != enums.InvoiceStateCreated {
		t.Fatalf("new invoice state = %s, want created", invoice.State)
	}
	if invoice.TransferID == nil {
		t.Fatalf("new invoice has no crediting transfer")
	}
	if got := env.mustBalance(t, user.ID); got != 5000 {
		t.Fatalf("balance after invoice = %d, want 5000", got)
	}

	// sent and paid are bookkeeping; the ledger does not move again.
	invoice, err = env.invoices.AdvanceState(ctx, invoice.ID, enums.InvoiceStateSent)
	if err != nil {
		t.Fatalf("advance to sent: %v", err)
	}
	invoice, err = env.invoices.AdvanceState(ctx, invoice.ID, enums.InvoiceStatePaid)
	if err != nil {
		t.Fatalf("advance to paid: %v", err)
	}
	if got := env.mustBalance(t, user.ID); got != 5000 {
		t.Fatalf("balance after paid = %d, want 5000", got)
	}
}

func TestInvoiceDeleteReversesCredit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.mustCreateUser(t, "Invoicee")

	invoice, err := env.invoices.Create(ctx, CreateInput{
		ToID:      user.ID,
		Reference: "2026-002",
		Amount:    eur(3000),
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	invoice, err = env.invoices.Delete(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("delete invoice: %v", err)
	}
	if invoice.State != enums.InvoiceStateDeleted {
		t.Fatalf("state = %s, want deleted", invoice.State)
	}
	if got := env.mustBalance(t, user.ID); got != 0 {
		t.Fatalf("balance after delete = %d, want 0", got)
	}

	// Deletion is terminal.
	if _, err := env.invoices.Delete(ctx, invoice.ID); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("second delete: err = %v, want conflict", err)
	}
}

func TestInvoicePaidCannotBeDeleted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.mustCreateUser(t, "Invoicee")

	invoice, err := env.invoices.Create(ctx, CreateInput{
		ToID:      user.ID,
		Reference: "2026-003",
		Amount:    eur(1500),
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if _, err := env.invoices.AdvanceState(ctx, invoice.ID, enums.InvoiceStateSent); err != nil {
		t.Fatalf("advance to sent: %v", err)
	}
	if _, err := env.invoices.AdvanceState(ctx, invoice.ID, enums.InvoiceStatePaid); err != nil {
		t.Fatalf("advance to paid: %v", err)
	}

	if _, err := env.invoices.Delete(ctx, invoice.ID); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("deleting paid invoice: err = %v, want conflict", err)
	}
	if got := env.mustBalance(t, user.ID); got != 1500 {
		t.Fatalf("balance = %d, want 1500", got)
	}
}

func TestInvoiceValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.mustCreateUser(t, "Invoicee")

	cases := []struct {
		name  string
		input CreateInput
		code  pkgerrors.Code
	}{
		{"missing reference", CreateInput{ToID: user.ID, Amount: eur(100)}, pkgerrors.CodeValidation},
		{"zero amount", CreateInput{ToID: user.ID, Reference: "x", Amount: eur(0)}, pkgerrors.CodeValidation},
		{"wrong currency", CreateInput{ToID: user.ID, Reference: "x", Amount: money.MustNew(100, "USD", 2)}, pkgerrors.CodeValidation},
		{"unknown user", CreateInput{ToID: uuid.New(), Reference: "x", Amount: eur(100)}, pkgerrors.CodeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.invoices.Create(ctx, tc.input); !pkgerrors.IsCode(err, tc.code) {
				t.Fatalf("err = %v, want code %s", err, tc.code)
			}
		})
	}
}

func TestInvoiceList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.mustCreateUser(t, "Alice")
	bob := env.mustCreateUser(t, "Bob")

	for i := 0; i < 2; i++ {
		if _, err := env.invoices.Create(ctx, CreateInput{
			ToID:      alice.ID,
			Reference: fmt.Sprintf("A-%d", i),
			Amount:    eur(100),
		}); err != nil {
			t.Fatalf("create invoice: %v", err)
		}
	}
	if _, err := env.invoices.Create(ctx, CreateInput{ToID: bob.ID, Reference: "B-0", Amount: eur(100)}); err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	mine, err := env.invoices.List(ctx, &alice.ID, pagination.Params{})
	if err != nil {
		t.Fatalf("list alice: %v", err)
	}
	if mine.Page.Total != 2 {
		t.Fatalf("alice total = %d, want 2", mine.Page.Total)
	}
	for _, inv := range mine.Invoices {
		if inv.ToID != alice.ID {
			t.Fatalf("foreign invoice in filtered list: %s", inv.ID)
		}
	}
}
