package products

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbraams/barkeep-backend/pkg/db/models"
	"github.com/tbraams/barkeep-backend/pkg/enums"
	"github.com/tbraams/barkeep-backend/pkg/money"
)

func mustCreateTestUser(t *testing.T, tx *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{
		ID:        uuid.New(),
		FirstName: "Repo",
		LastName:  "Tester",
		Email:     fmt.Sprintf("bk_test_%s@example.com", uuid.NewString()),
		Type:      enums.UserTypeMember,
		IsActive:  true,
	}
	if err := tx.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func testPrice(t *testing.T, amount int64) money.Money {
	t.Helper()
	price, err := money.New(amount, "EUR", 2)
	if err != nil {
		t.Fatalf("build price: %v", err)
	}
	return price
}
