package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbraams/barkeep-backend/api/controllers"
	"github.com/tbraams/barkeep-backend/internal/authz"
	"github.com/tbraams/barkeep-backend/internal/containers"
	"github.com/tbraams/barkeep-backend/internal/deposits"
	"github.com/tbraams/barkeep-backend/internal/fines"
	"github.com/tbraams/barkeep-backend/internal/invoices"
	"github.com/tbraams/barkeep-backend/internal/ledger"
	"github.com/tbraams/barkeep-backend/internal/notifier"
	"github.com/tbraams/barkeep-backend/internal/payouts"
	"github.com/tbraams/barkeep-backend/internal/pointsofsale"
	"github.com/tbraams/barkeep-backend/internal/products"
	"github.com/tbraams/barkeep-backend/internal/users"
	"github.com/tbraams/barkeep-backend/pkg/config"
	"github.com/tbraams/barkeep-backend/pkg/db"
	"github.com/tbraams/barkeep-backend/pkg/db/dbtest"
	"github.com/tbraams/barkeep-backend/pkg/db/models"
	"github.com/tbraams/barkeep-backend/pkg/enums"
	"github.com/tbraams/barkeep-backend/pkg/logger"
)

type noopNotifier struct{}

func (noopNotifier) SendFineNotice(context.Context, notifier.FineNotice) error   { return nil }
func (noopNotifier) SendFineWarning(context.Context, notifier.FineWarning) error { return nil }

type routerEnv struct {
	conn    *gorm.DB
	handler http.Handler
}

func newRouterEnv(t *testing.T) *routerEnv {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.NewWithConn(conn)
	logg := logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard})

	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.Ledger = config.LedgerConfig{Currency: "EUR", Precision: 2, DefaultPageSize: 25}

	userRepo := users.NewRepository(conn)
	ledgerRepo := ledger.NewRepository(conn)
	productRepo := products.NewRepository(conn)
	containerRepo := containers.NewRepository(conn)
	posRepo := pointsofsale.NewRepository(conn)

	ledgerSvc, err := ledger.NewService(ledgerRepo, client, userRepo, posRepo, containerRepo, productRepo, cfg.Ledger, nil, logg)
	if err != nil {
		t.Fatalf("build ledger service: %v", err)
	}
	productSvc, err := products.NewService(productRepo, client, userRepo)
	if err != nil {
		t.Fatalf("build product service: %v", err)
	}
	containerSvc, err := containers.NewService(containerRepo, client, userRepo, productRepo)
	if err != nil {
		t.Fatalf("build container service: %v", err)
	}
	posSvc, err := pointsofsale.NewService(posRepo, client, userRepo, containerRepo)
	if err != nil {
		t.Fatalf("build point of sale service: %v", err)
	}
	fineSvc, err := fines.NewService(fines.NewRepository(conn), client, userRepo, ledgerRepo, noopNotifier{}, cfg.Ledger, nil, logg)
	if err != nil {
		t.Fatalf("build fine service: %v", err)
	}
	depositSvc, err := deposits.NewService(deposits.NewRepository(conn), client, userRepo, ledgerSvc, cfg.Ledger, logg)
	if err != nil {
		t.Fatalf("build deposit service: %v", err)
	}
	invoiceSvc, err := invoices.NewService(invoices.NewRepository(conn), client, userRepo, ledgerSvc, cfg.Ledger, logg)
	if err != nil {
		t.Fatalf("build invoice service: %v", err)
	}
	payoutSvc, err := payouts.NewService(payouts.NewRepository(conn), client, userRepo, ledgerRepo, cfg.Ledger, logg)
	if err != nil {
		t.Fatalf("build payout service: %v", err)
	}

	handler := NewRouter(
		cfg, logg,
		map[string]controllers.Pinger{},
		authz.NewRoleAuthorizer(),
		userRepo,
		productSvc, containerSvc, posSvc,
		ledgerSvc, fineSvc, depositSvc, invoiceSvc, payoutSvc,
	)
	return &routerEnv{conn: conn, handler: handler}
}

func (e *routerEnv) mustCreateUser(t *testing.T, userType enums.UserType) *models.User {
	t.Helper()
	user := &models.User{
		ID:        uuid.New(),
		FirstName: "Router",
		LastName:  "Tester",
		Email:     fmt.Sprintf("bk_router_%s@example.com", uuid.NewString()),
		Type:      userType,
		IsActive:  true,
	}
	if err := e.conn.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func (e *routerEnv) do(t *testing.T, method, path, actor, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != "" {
		req.Header.Set("X-Actor-Id", actor)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthLive(t *testing.T) {
	env := newRouterEnv(t)
	rec := env.do(t, http.MethodGet, "/health/live", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("live = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("X-Barkeep-Env"); got != "test" {
		t.Fatalf("env header = %q, want test", got)
	}
}

func TestActorHeaderRequired(t *testing.T) {
	env := newRouterEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/products", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing header = %d, want 401", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/products", "not-a-uuid", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("malformed header = %d, want 401", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/products", uuid.NewString(), "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown actor = %d, want 401", rec.Code)
	}
}

func TestAdminRoutesRejectMembers(t *testing.T) {
	env := newRouterEnv(t)
	member := env.mustCreateUser(t, enums.UserTypeMember)

	rec := env.do(t, http.MethodGet, "/api/admin/v1/users", member.ID.String(), "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("member on admin route = %d, want 403", rec.Code)
	}
}

func TestAdminCreatesAndListsUsers(t *testing.T) {
	env := newRouterEnv(t)
	admin := env.mustCreateUser(t, enums.UserTypeAdmin)

	body := `{"firstName":"New","lastName":"Member","email":"new.member@example.com","type":"member"}`
	rec := env.do(t, http.MethodPost, "/api/admin/v1/users", admin.ID.String(), body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create user = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/admin/v1/users", admin.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list users = %d, want 200", rec.Code)
	}
}

func TestBalanceScopedToOwnAccount(t *testing.T) {
	env := newRouterEnv(t)
	member := env.mustCreateUser(t, enums.UserTypeMember)
	other := env.mustCreateUser(t, enums.UserTypeMember)
	admin := env.mustCreateUser(t, enums.UserTypeAdmin)

	rec := env.do(t, http.MethodGet, "/api/v1/users/"+member.ID.String()+"/balance", member.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("own balance = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/v1/users/"+other.ID.String()+"/balance", member.ID.String(), "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign balance = %d, want 403", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/users/"+other.ID.String()+"/balance", admin.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("admin reading balance = %d, want 200", rec.Code)
	}
}

func TestVoucherAccountsCannotAct(t *testing.T) {
	env := newRouterEnv(t)
	voucher := env.mustCreateUser(t, enums.UserTypeVoucher)

	rec := env.do(t, http.MethodPost, "/api/v1/deposits", voucher.ID.String(), `{"amount":{"amount":1000}}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("voucher deposit = %d, want 403", rec.Code)
	}
}
