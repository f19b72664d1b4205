package ledger

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbraams/barkeep-backend/internal/containers"
	"github.com/tbraams/barkeep-backend/internal/pointsofsale"
	"github.com/tbraams/barkeep-backend/internal/products"
	"github.com/tbraams/barkeep-backend/internal/users"
	"github.com/tbraams/barkeep-backend/pkg/config"
	"github.com/tbraams/barkeep-backend/pkg/db"
	"github.com/tbraams/barkeep-backend/pkg/db/dbtest"
	"github.com/tbraams/barkeep-backend/pkg/db/models"
	"github.com/tbraams/barkeep-backend/pkg/enums"
	"github.com/tbraams/barkeep-backend/pkg/money"
)

var testLedgerConfig = config.LedgerConfig{Currency: "EUR", Precision: 2, DefaultPageSize: 25}

type testEnv struct {
	conn     *gorm.DB
	ledger   Service
	users    *users.Repository
	products products.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.NewWithConn(conn)
	userRepo := users.NewRepository(conn)
	productRepo := products.NewRepository(conn)
	containerRepo := containers.NewRepository(conn)
	posRepo := pointsofsale.NewRepository(conn)

	productSvc, err := products.NewService(productRepo, client, userRepo)
	if err != nil {
		t.Fatalf("build product service: %v", err)
	}
	svc, err := NewService(
		NewRepository(conn), client, userRepo,
		posRepo, containerRepo, productRepo,
		testLedgerConfig, nil, nil,
	)
	if err != nil {
		t.Fatalf("build ledger service: %v", err)
	}
	return &testEnv{conn: conn, ledger: svc, users: userRepo, products: productSvc}
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

func productDraft(priceMinor int64) products.DraftInput {
	return products.DraftInput{
		Name:     "Grolsch",
		Category: "beer",
		Price:    money.MustNew(priceMinor, "EUR", 2),
	}
}

func productCreate(ownerID uuid.UUID, priceMinor int64) products.CreateInput {
	return products.CreateInput{OwnerID: ownerID, Draft: productDraft(priceMinor)}
}

// sellableSetup is a fully approved product/container/point-of-sale chain
// ready for purchases.
type sellableSetup struct {
	seller    *models.User
	product   *products.ProductDTO
	container *containers.ContainerDTO
	pos       *pointsofsale.PointOfSaleDTO
}

func (e *testEnv) mustCreateSellablePOS(t *testing.T, priceMinor int64) *sellableSetup {
	t.Helper()
	ctx := context.Background()
	client := db.NewWithConn(e.conn)
	userRepo := users.NewRepository(e.conn)
	productRepo := products.NewRepository(e.conn)
	containerRepo := containers.NewRepository(e.conn)

	containerSvc, err := containers.NewService(containerRepo, client, userRepo, productRepo)
	if err != nil {
		t.Fatalf("build container service: %v", err)
	}
	posSvc, err := pointsofsale.NewService(pointsofsale.NewRepository(e.conn), client, userRepo, containerRepo)
	if err != nil {
		t.Fatalf("build point of sale service: %v", err)
	}

	seller := e.mustCreateUser(t, "Seller")

	product, err := e.products.Create(ctx, products.CreateInput{
		OwnerID: seller.ID,
		Draft: products.DraftInput{
			Name:     "Grolsch",
			Category: "beer",
			Price:    money.MustNew(priceMinor, "EUR", 2),
		},
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	container, err := containerSvc.Create(ctx, containers.CreateInput{
		OwnerID: seller.ID,
		Draft:   containers.DraftInput{Name: "Shelf", ProductIDs: []uuid.UUID{product.ID}},
	})
	if err != nil {
		t.Fatalf("create container: %v", err)
	}
	container, err = containerSvc.Approve(ctx, container.ID)
	if err != nil {
		t.Fatalf("approve container: %v", err)
	}

	pos, err := posSvc.Create(ctx, pointsofsale.CreateInput{
		OwnerID: seller.ID,
		Draft: pointsofsale.DraftInput{
			Name:         "Bar",
			ContainerIDs: []uuid.UUID{container.ID},
		},
	})
	if err != nil {
		t.Fatalf("create point of sale: %v", err)
	}
	pos, err = posSvc.Approve(ctx, pos.ID)
	if err != nil {
		t.Fatalf("approve point of sale: %v", err)
	}

	return &sellableSetup{seller: seller, product: product, container: container, pos: pos}
}
