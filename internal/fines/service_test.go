package fines

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbraams/barkeep-backend/internal/containers"
	"github.com/tbraams/barkeep-backend/internal/ledger"
	"github.com/tbraams/barkeep-backend/internal/notifier"
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
)

var testLedgerConfig = config.LedgerConfig{Currency: "EUR", Precision: 2, DefaultPageSize: 25}

type fakeNotifier struct {
	notices  []notifier.FineNotice
	warnings []notifier.FineWarning
	fail     bool
}

func (f *fakeNotifier) SendFineNotice(_ context.Context, notice notifier.FineNotice) error {
	if f.fail {
		return fmt.Errorf("smtp down")
	}
	f.notices = append(f.notices, notice)
	return nil
}

func (f *fakeNotifier) SendFineWarning(_ context.Context, warning notifier.FineWarning) error {
	if f.fail {
		return fmt.Errorf("smtp down")
	}
	f.warnings = append(f.warnings, warning)
	return nil
}

type testEnv struct {
	conn     *gorm.DB
	fines    Service
	ledger   ledger.Service
	users    *users.Repository
	notified *fakeNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.NewWithConn(conn)
	userRepo := users.NewRepository(conn)
	ledgerRepo := ledger.NewRepository(conn)
	notified := &fakeNotifier{}

	ledgerSvc, err := ledger.NewService(
		ledgerRepo, client, userRepo,
		pointsofsale.NewRepository(conn),
		containers.NewRepository(conn),
		products.NewRepository(conn),
		testLedgerConfig, nil, nil,
	)
	if err != nil {
		t.Fatalf("build ledger service: %v", err)
	}

	svc, err := NewService(
		NewRepository(conn), client, userRepo, ledgerRepo,
		notified, testLedgerConfig, nil, nil,
	)
	if err != nil {
		t.Fatalf("build fine service: %v", err)
	}
	return &testEnv{conn: conn, fines: svc, ledger: ledgerSvc, users: userRepo, notified: notified}
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

// mustSetBalance pushes the user's balance to the given amount with a single
// unbounded transfer.
func (e *testEnv) mustSetBalance(t *testing.T, userID uuid.UUID, amount int64) {
	t.Helper()
	transfer := &models.Transfer{Amount: money.MustNew(amount, "EUR", 2)}
	if amount >= 0 {
		transfer.ToID = &userID
	} else {
		transfer.Amount = money.MustNew(-amount, "EUR", 2)
		transfer.FromID = &userID
	}
	if err := e.conn.Create(transfer).Error; err != nil {
		t.Fatalf("set balance: %v", err)
	}
}

func (e *testEnv) mustBalance(t *testing.T, userID uuid.UUID) int64 {
	t.Helper()
	balance, err := ledger.NewRepository(e.conn).Balance(context.Background(), userID, time.Now())
	if err != nil {
		t.Fatalf("read balance: %v", err)
	}
	return balance
}

func (e *testEnv) mustReloadUser(t *testing.T, userID uuid.UUID) *models.User {
	t.Helper()
	user, err := e.users.FindByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	return user
}

func TestCalculateFineBanding(t *testing.T) {
	cases := []struct {
		balance int64
		want    int64
	}{
		{0, 0},
		{100, 0},
		{-499, 0},
		{-500, 100},
		{-999, 100},
		{-1000, 200},
		{-2499, 400},
		{-2500, 500},
		{-10000, 500},
	}
	for _, tc := range cases {
		if got := calculateFine(tc.balance); got != tc.want {
			t.Errorf("calculateFine(%d) = %d, want %d", tc.balance, got, tc.want)
		}
	}
}

func TestHandOutFines(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	debtor := env.mustCreateUser(t, "Debtor")
	solvent := env.mustCreateUser(t, "Solvent")
	env.mustSetBalance(t, debtor.ID, -600)
	env.mustSetBalance(t, solvent.ID, 1000)

	now := time.Now()
	result, err := env.fines.HandOutFines(ctx, HandOutInput{ReferenceDate: &now})
	if err != nil {
		t.Fatalf("hand out fines: %v", err)
	}
	if result.EventID == nil || len(result.Fines) != 1 {
		t.Fatalf("expected one fine in the batch, got %+v", result)
	}
	if result.Fines[0].UserID != debtor.ID || result.Fines[0].Fine.Amount != 100 {
		t.Fatalf("expected 100 fine for debtor, got %+v", result.Fines[0])
	}

	// The fine debits the debtor and opens an active fine group.
	if got := env.mustBalance(t, debtor.ID); got != -700 {
		t.Fatalf("expected balance -700 after fine, got %d", got)
	}
	fined := env.mustReloadUser(t, debtor.ID)
	if fined.CurrentFineGroupID == nil {
		t.Fatal("expected an active fine group on the debtor")
	}
	if len(env.notified.notices) != 1 || env.notified.notices[0].UserID != debtor.ID {
		t.Fatalf("expected one fine notice for the debtor, got %+v", env.notified.notices)
	}

	// A second handout chains onto the previous fine in the same group.
	later := time.Now()
	second, err := env.fines.HandOutFines(ctx, HandOutInput{ReferenceDate: &later})
	if err != nil {
		t.Fatalf("second handout: %v", err)
	}
	if len(second.Fines) != 1 {
		t.Fatalf("expected the debtor fined again, got %+v", second.Fines)
	}
	var chained []models.Fine
	if err := env.conn.Where("user_fine_group_id = ?", *fined.CurrentFineGroupID).
		Order("created_at ASC").Find(&chained).Error; err != nil {
		t.Fatalf("load fines: %v", err)
	}
	if len(chained) != 2 {
		t.Fatalf("expected two fines in group, got %d", len(chained))
	}
	if chained[0].PreviousFineID != nil {
		t.Fatalf("first fine should start the chain, got %v", chained[0].PreviousFineID)
	}
	if chained[1].PreviousFineID == nil || *chained[1].PreviousFineID != chained[0].ID {
		t.Fatalf("second fine should chain to the first, got %v", chained[1].PreviousFineID)
	}
}

func TestHandOutSkipsRecoveredDebtor(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	debtor := env.mustCreateUser(t, "Recovered")
	env.mustSetBalance(t, debtor.ID, -600)
	wasDebtor := time.Now()

	// The debtor tops up before the handout runs.
	env.mustSetBalance(t, debtor.ID, 600)

	result, err := env.fines.HandOutFines(ctx, HandOutInput{ReferenceDate: &wasDebtor})
	if err != nil {
		t.Fatalf("hand out fines: %v", err)
	}
	if result.EventID != nil || len(result.Fines) != 0 {
		t.Fatalf("expected no fines for recovered debtor, got %+v", result)
	}
	if len(env.notified.notices) != 0 {
		t.Fatalf("expected no notices, got %+v", env.notified.notices)
	}
}

func TestHandOutFinesBatchesAllDebtors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	shallow := env.mustCreateUser(t, "Shallow")
	deep := env.mustCreateUser(t, "Deep")
	solvent := env.mustCreateUser(t, "Solvent")
	env.mustSetBalance(t, shallow.ID, -600)
	env.mustSetBalance(t, deep.ID, -1200)
	env.mustSetBalance(t, solvent.ID, 1000)

	now := time.Now()
	result, err := env.fines.HandOutFines(ctx, HandOutInput{ReferenceDate: &now})
	if err != nil {
		t.Fatalf("hand out fines: %v", err)
	}
	if result.EventID == nil || len(result.Fines) != 2 {
		t.Fatalf("expected two fines in the batch, got %+v", result)
	}

	var events int64
	if err := env.conn.Model(&models.FineHandoutEvent{}).Count(&events).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if events != 1 {
		t.Fatalf("expected exactly one handout event, got %d", events)
	}

	for _, debtor := range []struct {
		id   uuid.UUID
		fine int64
	}{
		{shallow.ID, 100},
		{deep.ID, 200},
	} {
		user := env.mustReloadUser(t, debtor.id)
		if user.CurrentFineGroupID == nil {
			t.Fatalf("expected an active fine group for %s", debtor.id)
		}
		var fined []models.Fine
		if err := env.conn.Where("user_fine_group_id = ?", *user.CurrentFineGroupID).Find(&fined).Error; err != nil {
			t.Fatalf("load fines: %v", err)
		}
		if len(fined) != 1 {
			t.Fatalf("expected one fine for %s, got %d", debtor.id, len(fined))
		}
		if fined[0].Amount.Amount != debtor.fine {
			t.Fatalf("expected fine %d for %s, got %d", debtor.fine, debtor.id, fined[0].Amount.Amount)
		}
		var debits int64
		if err := env.conn.Model(&models.Transfer{}).
			Where("from_id = ? AND fine_id IS NOT NULL", debtor.id).
			Count(&debits).Error; err != nil {
			t.Fatalf("count fine transfers: %v", err)
		}
		if debits != 1 {
			t.Fatalf("expected one debiting transfer for %s, got %d", debtor.id, debits)
		}
	}
	if got := env.mustBalance(t, solvent.ID); got != 1000 {
		t.Fatalf("solvent account should be untouched, got %d", got)
	}
}

func TestHandOutRollsBackOnMidBatchFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	first := env.mustCreateUser(t, "First")
	second := env.mustCreateUser(t, "Second")
	env.mustSetBalance(t, first.ID, -600)
	env.mustSetBalance(t, second.ID, -600)

	var transfersBefore int64
	if err := env.conn.Model(&models.Transfer{}).Count(&transfersBefore).Error; err != nil {
		t.Fatalf("count transfers: %v", err)
	}

	// Fail the second fine's transfer insert mid-batch.
	attempts := 0
	err := env.conn.Callback().Create().Before("gorm:create").
		Register("fines_test_fail_second_transfer", func(tx *gorm.DB) {
			if _, ok := tx.Statement.Dest.(*models.Transfer); !ok {
				return
			}
			attempts++
			if attempts == 2 {
				tx.AddError(fmt.Errorf("transfer insert failed"))
			}
		})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}
	defer func() {
		if err := env.conn.Callback().Create().Remove("fines_test_fail_second_transfer"); err != nil {
			t.Fatalf("remove callback: %v", err)
		}
	}()

	now := time.Now()
	if _, err := env.fines.HandOutFines(ctx, HandOutInput{ReferenceDate: &now}); err == nil {
		t.Fatal("expected the handout to fail")
	}
	if attempts != 2 {
		t.Fatalf("expected the failure on the second transfer, got %d attempts", attempts)
	}

	// Nothing from the batch survived the rollback.
	var fines, events, transfers int64
	if err := env.conn.Model(&models.Fine{}).Count(&fines).Error; err != nil {
		t.Fatalf("count fines: %v", err)
	}
	if err := env.conn.Model(&models.FineHandoutEvent{}).Count(&events).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if err := env.conn.Model(&models.Transfer{}).Count(&transfers).Error; err != nil {
		t.Fatalf("count transfers: %v", err)
	}
	if fines != 0 || events != 0 || transfers != transfersBefore {
		t.Fatalf("expected ledger untouched, got fines=%d events=%d transfers=%d (was %d)",
			fines, events, transfers, transfersBefore)
	}
	for _, id := range []uuid.UUID{first.ID, second.ID} {
		if user := env.mustReloadUser(t, id); user.CurrentFineGroupID != nil {
			t.Fatalf("expected no fine group on %s after rollback", id)
		}
		if got := env.mustBalance(t, id); got != -600 {
			t.Fatalf("expected balance -600 on %s after rollback, got %d", id, got)
		}
	}
	if len(env.notified.notices) != 0 {
		t.Fatalf("expected no notices after rollback, got %+v", env.notified.notices)
	}
}

func TestFineNoticesCarryOutstandingTotals(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	debtor := env.mustCreateUser(t, "Repeat")
	env.mustSetBalance(t, debtor.ID, -600)

	now := time.Now()
	if _, err := env.fines.HandOutFines(ctx, HandOutInput{ReferenceDate: &now}); err != nil {
		t.Fatalf("first handout: %v", err)
	}
	if len(env.notified.notices) != 1 {
		t.Fatalf("expected one notice, got %+v", env.notified.notices)
	}
	first := env.notified.notices[0]
	if first.Outstanding.Amount != 100 {
		t.Fatalf("first notice outstanding = %d, want 100", first.Outstanding.Amount)
	}
	if first.Balance.Amount != -700 {
		t.Fatalf("first notice balance = %d, want -700", first.Balance.Amount)
	}

	// The second notice reports the accumulated group total and the balance
	// after the second debit, not just this batch's fine.
	later := time.Now()
	if _, err := env.fines.HandOutFines(ctx, HandOutInput{ReferenceDate: &later}); err != nil {
		t.Fatalf("second handout: %v", err)
	}
	if len(env.notified.notices) != 2 {
		t.Fatalf("expected two notices, got %+v", env.notified.notices)
	}
	second := env.notified.notices[1]
	if second.Outstanding.Amount != 200 {
		t.Fatalf("second notice outstanding = %d, want 200", second.Outstanding.Amount)
	}
	if second.Balance.Amount != -800 {
		t.Fatalf("second notice balance = %d, want -800", second.Balance.Amount)
	}
}

func TestWaiveFines(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	debtor := env.mustCreateUser(t, "Waived")
	env.mustSetBalance(t, debtor.ID, -600)

	now := time.Now()
	if _, err := env.fines.HandOutFines(ctx, HandOutInput{ReferenceDate: &now}); err != nil {
		t.Fatalf("hand out fines: %v", err)
	}
	fined := env.mustReloadUser(t, debtor.ID)
	groupID := *fined.CurrentFineGroupID

	if err := env.fines.WaiveFines(ctx, debtor.ID); err != nil {
		t.Fatalf("waive fines: %v", err)
	}

	// The waive credits the full fine total and clears the marker.
	if got := env.mustBalance(t, debtor.ID); got != -600 {
		t.Fatalf("expected balance back at -600 after waive, got %d", got)
	}
	waived := env.mustReloadUser(t, debtor.ID)
	if waived.CurrentFineGroupID != nil {
		t.Fatal("expected fine group marker to be cleared")
	}
	var group models.UserFineGroup
	if err := env.conn.First(&group, "id = ?", groupID).Error; err != nil {
		t.Fatalf("load group: %v", err)
	}
	if group.WaivedTransferID == nil {
		t.Fatal("expected group to record its waiving transfer")
	}

	// Waiving without an active group is a no-op.
	if err := env.fines.WaiveFines(ctx, debtor.ID); err != nil {
		t.Fatalf("expected waive no-op, got %v", err)
	}
}

func TestDeleteFine(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	debtor := env.mustCreateUser(t, "Pardoned")
	env.mustSetBalance(t, debtor.ID, -600)

	now := time.Now()
	if _, err := env.fines.HandOutFines(ctx, HandOutInput{ReferenceDate: &now}); err != nil {
		t.Fatalf("hand out fines: %v", err)
	}
	fined := env.mustReloadUser(t, debtor.ID)
	groupID := *fined.CurrentFineGroupID

	var fine models.Fine
	if err := env.conn.First(&fine, "user_fine_group_id = ?", groupID).Error; err != nil {
		t.Fatalf("load fine: %v", err)
	}

	if err := env.fines.DeleteFine(ctx, fine.ID); err != nil {
		t.Fatalf("delete fine: %v", err)
	}

	// Fine and transfer are gone, the group is dropped, the marker cleared.
	if got := env.mustBalance(t, debtor.ID); got != -600 {
		t.Fatalf("expected balance restored to -600, got %d", got)
	}
	cleared := env.mustReloadUser(t, debtor.ID)
	if cleared.CurrentFineGroupID != nil {
		t.Fatal("expected fine group marker cleared after last fine deletion")
	}
	var count int64
	if err := env.conn.Model(&models.UserFineGroup{}).Where("id = ?", groupID).Count(&count).Error; err != nil {
		t.Fatalf("count groups: %v", err)
	}
	if count != 0 {
		t.Fatal("expected emptied group to be deleted")
	}

	if err := env.fines.DeleteFine(ctx, fine.ID); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found deleting twice, got %v", err)
	}
}

func TestSendFineWarnings(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	debtor := env.mustCreateUser(t, "Warned")
	solvent := env.mustCreateUser(t, "Fine")
	env.mustSetBalance(t, debtor.ID, -1200)
	env.mustSetBalance(t, solvent.ID, 500)

	sent, err := env.fines.SendFineWarnings(ctx, nil, time.Now())
	if err != nil {
		t.Fatalf("send warnings: %v", err)
	}
	if sent != 1 || len(env.notified.warnings) != 1 {
		t.Fatalf("expected one warning, got sent=%d %+v", sent, env.notified.warnings)
	}
	if got := env.notified.warnings[0]; got.UserID != debtor.ID || got.Fine.Amount != 200 {
		t.Fatalf("expected 200 warning for debtor, got %+v", got)
	}

	// Warnings never write to the ledger.
	if got := env.mustBalance(t, debtor.ID); got != -1200 {
		t.Fatalf("expected balance untouched, got %d", got)
	}
}

func TestFinesResolveAfterRepayment(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	debtor := env.mustCreateUser(t, "Repaid")
	env.mustSetBalance(t, debtor.ID, -600)

	now := time.Now()
	if _, err := env.fines.HandOutFines(ctx, HandOutInput{ReferenceDate: &now}); err != nil {
		t.Fatalf("hand out fines: %v", err)
	}

	// A deposit-style transfer through the ledger service brings the balance
	// back above zero and resolves the outstanding fine group.
	if _, err := env.ledger.CreateTransfer(ctx, ledger.CreateTransferInput{
		ToID:   &debtor.ID,
		Amount: money.MustNew(1000, "EUR", 2),
	}); err != nil {
		t.Fatalf("repay: %v", err)
	}

	repaid := env.mustReloadUser(t, debtor.ID)
	if repaid.CurrentFineGroupID != nil {
		t.Fatal("expected fine group resolved after repayment")
	}
}
