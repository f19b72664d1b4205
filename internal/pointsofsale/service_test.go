package pointsofsale

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbraams/barkeep-backend/internal/containers"
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
	pos        Service
	containers containers.Service
	products   products.Service
	owner      *models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.NewWithConn(conn)
	userRepo := users.NewRepository(conn)
	productRepo := products.NewRepository(conn)
	containerRepo := containers.NewRepository(conn)

	productSvc, err := products.NewService(productRepo, client, userRepo)
	if err != nil {
		t.Fatalf("build product service: %v", err)
	}
	containerSvc, err := containers.NewService(containerRepo, client, userRepo, productRepo)
	if err != nil {
		t.Fatalf("build container service: %v", err)
	}
	posSvc, err := NewService(NewRepository(conn), client, userRepo, containerRepo)
	if err != nil {
		t.Fatalf("build point of sale service: %v", err)
	}

	owner := &models.User{
		ID:        uuid.New(),
		FirstName: "POS",
		LastName:  "Tester",
		Email:     fmt.Sprintf("bk_test_%s@example.com", uuid.NewString()),
		Type:      enums.UserTypeMember,
		IsActive:  true,
	}
	if err := conn.Create(owner).Error; err != nil {
		t.Fatalf("create owner: %v", err)
	}
	return &testEnv{conn: conn, pos: posSvc, containers: containerSvc, products: productSvc, owner: owner}
}

// mustCreateContainer creates a container with one approved product and,
// when approve is set, approves the container too.
func (e *testEnv) mustCreateContainer(t *testing.T, name string, approve bool) *containers.ContainerDTO {
	t.Helper()
	ctx := context.Background()

	product, err := e.products.Create(ctx, products.CreateInput{
		OwnerID: e.owner.ID,
		Draft: products.DraftInput{
			Name:     name + " product",
			Category: "beer",
			Price:    money.MustNew(120, "EUR", 2),
		},
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	created, err := e.containers.Create(ctx, containers.CreateInput{
		OwnerID: e.owner.ID,
		Draft:   containers.DraftInput{Name: name, ProductIDs: []uuid.UUID{product.ID}},
	})
	if err != nil {
		t.Fatalf("create container: %v", err)
	}
	if !approve {
		return created
	}
	approved, err := e.containers.Approve(ctx, created.ID)
	if err != nil {
		t.Fatalf("approve container: %v", err)
	}
	return approved
}

func TestPointOfSaleApprovePinsCurrentContainerRevisions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	container := env.mustCreateContainer(t, "Shelf", true)

	created, err := env.pos.Create(ctx, CreateInput{
		OwnerID: env.owner.ID,
		Draft: DraftInput{
			Name:         "Borrel bar",
			ContainerIDs: []uuid.UUID{container.ID},
		},
	})
	if err != nil {
		t.Fatalf("create point of sale: %v", err)
	}

	approved, err := env.pos.Approve(ctx, created.ID)
	if err != nil {
		t.Fatalf("approve point of sale: %v", err)
	}
	if approved.Revision == nil || *approved.Revision != 1 {
		t.Fatalf("expected revision 1, got %+v", approved.Revision)
	}
	if len(approved.Containers) != 1 {
		t.Fatalf("expected one pinned container, got %d", len(approved.Containers))
	}
	if pin := approved.Containers[0]; pin.Revision == nil || *pin.Revision != 1 {
		t.Fatalf("expected container pinned at revision 1, got %+v", pin.Revision)
	}

	// Re-revising the container later never moves the pin.
	if _, err := env.containers.SaveDraft(ctx, container.ID, containers.DraftInput{Name: "Shelf v2"}); err != nil {
		t.Fatalf("save container draft: %v", err)
	}
	if _, err := env.containers.Approve(ctx, container.ID); err != nil {
		t.Fatalf("re-approve container: %v", err)
	}
	pinned, err := env.pos.GetRevision(ctx, created.ID, 1)
	if err != nil {
		t.Fatalf("get point of sale revision: %v", err)
	}
	if pin := pinned.Containers[0]; *pin.Revision != 1 {
		t.Fatalf("expected pin to stay at revision 1, got %d", *pin.Revision)
	}
}

func TestPointOfSaleApproveNeverCascades(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	// The container only has a pending draft, never an approved revision.
	draftOnly := env.mustCreateContainer(t, "Unapproved shelf", false)

	created, err := env.pos.Create(ctx, CreateInput{
		OwnerID: env.owner.ID,
		Draft:   DraftInput{Name: "Bar", ContainerIDs: []uuid.UUID{draftOnly.ID}},
	})
	if err != nil {
		t.Fatalf("create point of sale: %v", err)
	}

	if _, err := env.pos.Approve(ctx, created.ID); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	// No cascade happened: the container draft is still pending.
	if _, err := env.containers.Get(ctx, draftOnly.ID, containers.ViewDraft); err != nil {
		t.Fatalf("expected container draft to survive, got %v", err)
	}
	if _, err := env.pos.Get(ctx, created.ID, ViewCurrent); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected no approved revision after rollback, got %v", err)
	}
}

func TestPointOfSaleRevisionNumbering(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	container := env.mustCreateContainer(t, "Shelf", true)
	created, err := env.pos.Create(ctx, CreateInput{
		OwnerID: env.owner.ID,
		Draft:   DraftInput{Name: "Bar", ContainerIDs: []uuid.UUID{container.ID}},
	})
	if err != nil {
		t.Fatalf("create point of sale: %v", err)
	}

	for want := 1; want <= 3; want++ {
		if want > 1 {
			if _, err := env.pos.SaveDraft(ctx, created.ID, DraftInput{
				Name:         fmt.Sprintf("Bar v%d", want),
				ContainerIDs: []uuid.UUID{container.ID},
			}); err != nil {
				t.Fatalf("save draft %d: %v", want, err)
			}
		}
		approved, err := env.pos.Approve(ctx, created.ID)
		if err != nil {
			t.Fatalf("approve %d: %v", want, err)
		}
		if *approved.Revision != want {
			t.Fatalf("expected revision %d, got %d", want, *approved.Revision)
		}
	}

	// Revisions 1..3 are all readable.
	for rev := 1; rev <= 3; rev++ {
		if _, err := env.pos.GetRevision(ctx, created.ID, rev); err != nil {
			t.Fatalf("get revision %d: %v", rev, err)
		}
	}
}
