package containers

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbraams/barkeep-backend/internal/products"
	"github.com/tbraams/barkeep-backend/internal/users"
	"github.com/tbraams/barkeep-backend/pkg/db"
	"github.com/tbraams/barkeep-backend/pkg/db/dbtest"
	"github.com/tbraams/barkeep-backend/pkg/db/models"
	"github.com/tbraams/barkeep-backend/pkg/enums"
	pkgerrors "github.com/tbraams/barkeep-backend/pkg/errors"
	"github.com/tbraams/barkeep-backend/pkg/money"
)

type testEnv struct {
	conn       *gorm.DB
	containers Service
	products   products.Service
	owner      *models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.NewWithConn(conn)
	userRepo := users.NewRepository(conn)
	productRepo := products.NewRepository(conn)

	productSvc, err := products.NewService(productRepo, client, userRepo)
	if err != nil {
		t.Fatalf("build product service: %v", err)
	}
	containerSvc, err := NewService(NewRepository(conn), client, userRepo, productRepo)
	if err != nil {
		t.Fatalf("build container service: %v", err)
	}

	owner := &models.User{
		ID:        uuid.New(),
		FirstName: "Container",
		LastName:  "Tester",
		Email:     fmt.Sprintf("bk_test_%s@example.com", uuid.NewString()),
		Type:      enums.UserTypeMember,
		IsActive:  true,
	}
	if err := conn.Create(owner).Error; err != nil {
		t.Fatalf("create owner: %v", err)
	}
	return &testEnv{conn: conn, containers: containerSvc, products: productSvc, owner: owner}
}

func (e *testEnv) mustCreateProduct(t *testing.T, name string, amount int64) *products.ProductDTO {
	t.Helper()
	dto, err := e.products.Create(context.Background(), products.CreateInput{
		OwnerID: e.owner.ID,
		Draft: products.DraftInput{
			Name:     name,
			Category: "beer",
			Price:    money.MustNew(amount, "EUR", 2),
		},
	})
	if err != nil {
		t.Fatalf("create product %s: %v", name, err)
	}
	return dto
}

func pinFor(t *testing.T, dto *ContainerDTO, productID uuid.UUID) int {
	t.Helper()
	for _, ref := range dto.Products {
		if ref.ProductID == productID {
			if ref.Revision == nil {
				t.Fatalf("product %s pinned without a revision", productID)
			}
			return *ref.Revision
		}
	}
	t.Fatalf("product %s not pinned in container", productID)
	return 0
}

func TestContainerApproveCascadesProductDrafts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	approvedProduct := env.mustCreateProduct(t, "Grolsch", 120)
	if _, err := env.products.Approve(ctx, approvedProduct.ID); err != nil {
		t.Fatalf("approve product: %v", err)
	}
	draftOnly := env.mustCreateProduct(t, "Chips", 90)

	created, err := env.containers.Create(ctx, CreateInput{
		OwnerID: env.owner.ID,
		Draft: DraftInput{
			Name:       "Bar shelf",
			ProductIDs: []uuid.UUID{approvedProduct.ID, draftOnly.ID},
		},
	})
	if err != nil {
		t.Fatalf("create container: %v", err)
	}

	approved, err := env.containers.Approve(ctx, created.ID)
	if err != nil {
		t.Fatalf("approve container: %v", err)
	}
	if approved.Revision == nil || *approved.Revision != 1 {
		t.Fatalf("expected container revision 1, got %+v", approved.Revision)
	}
	if got := pinFor(t, approved, approvedProduct.ID); got != 1 {
		t.Fatalf("expected pin at product revision 1, got %d", got)
	}
	if got := pinFor(t, approved, draftOnly.ID); got != 1 {
		t.Fatalf("expected cascaded draft to pin at revision 1, got %d", got)
	}

	// The cascade consumed the nested product draft.
	if _, err := env.products.Get(ctx, draftOnly.ID, products.ViewDraft); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected product draft to be consumed, got %v", err)
	}
	nested, err := env.products.Get(ctx, draftOnly.ID, products.ViewCurrent)
	if err != nil {
		t.Fatalf("get cascaded product: %v", err)
	}
	if nested.Revision == nil || *nested.Revision != 1 {
		t.Fatalf("expected cascaded product at revision 1, got %+v", nested.Revision)
	}
}

func TestContainerApproveRejectsUnresolvableProduct(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	// A product whose only draft was discarded has no resolvable revision.
	orphan := env.mustCreateProduct(t, "Orphan", 100)
	if err := env.products.DiscardDraft(ctx, orphan.ID); err != nil {
		t.Fatalf("discard product draft: %v", err)
	}

	created, err := env.containers.Create(ctx, CreateInput{
		OwnerID: env.owner.ID,
		Draft:   DraftInput{Name: "Broken shelf", ProductIDs: []uuid.UUID{orphan.ID}},
	})
	if err != nil {
		t.Fatalf("create container: %v", err)
	}

	if _, err := env.containers.Approve(ctx, created.ID); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	// The failed approval rolled back: no revision, draft still pending.
	if _, err := env.containers.Get(ctx, created.ID, ViewCurrent); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected no approved revision after rollback, got %v", err)
	}
	if _, err := env.containers.Get(ctx, created.ID, ViewDraft); err != nil {
		t.Fatalf("expected draft to survive rollback, got %v", err)
	}
}

func TestContainerPinsDoNotMove(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	product := env.mustCreateProduct(t, "Cola", 100)
	created, err := env.containers.Create(ctx, CreateInput{
		OwnerID: env.owner.ID,
		Draft:   DraftInput{Name: "Fridge", ProductIDs: []uuid.UUID{product.ID}},
	})
	if err != nil {
		t.Fatalf("create container: %v", err)
	}
	if _, err := env.containers.Approve(ctx, created.ID); err != nil {
		t.Fatalf("approve container: %v", err)
	}

	// Re-revise the product after the container pinned it.
	if _, err := env.products.SaveDraft(ctx, product.ID, products.DraftInput{
		Name: "Cola", Category: "soda", Price: money.MustNew(150, "EUR", 2),
	}); err != nil {
		t.Fatalf("save product draft: %v", err)
	}
	if _, err := env.products.Approve(ctx, product.ID); err != nil {
		t.Fatalf("approve product: %v", err)
	}

	pinned, err := env.containers.GetRevision(ctx, created.ID, 1)
	if err != nil {
		t.Fatalf("get container revision: %v", err)
	}
	if got := pinFor(t, pinned, product.ID); got != 1 {
		t.Fatalf("expected pin to stay at revision 1, got %d", got)
	}
}

func TestContainerDraftValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	t.Run("unknownProduct", func(t *testing.T) {
		_, err := env.containers.Create(ctx, CreateInput{
			OwnerID: env.owner.ID,
			Draft:   DraftInput{Name: "Shelf", ProductIDs: []uuid.UUID{uuid.New()}},
		})
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("duplicateProduct", func(t *testing.T) {
		product := env.mustCreateProduct(t, "Dup", 80)
		_, err := env.containers.Create(ctx, CreateInput{
			OwnerID: env.owner.ID,
			Draft:   DraftInput{Name: "Shelf", ProductIDs: []uuid.UUID{product.ID, product.ID}},
		})
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("missingName", func(t *testing.T) {
		_, err := env.containers.Create(ctx, CreateInput{OwnerID: env.owner.ID, Draft: DraftInput{}})
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}
