// Package dbtest boots throwaway in-memory sqlite databases for repository
// and service tests.
package dbtest

import (
	"fmt"
	"io"
	"log"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tbraams/barkeep-backend/pkg/db/models"
)

// Open returns a fresh in-memory database with the full schema migrated.
// Each call gets its own database; the connection is closed with the test.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gormLogger := gormlogger.New(
		log.New(io.Discard, "", log.LstdFlags),
		gormlogger.Config{LogLevel: gormlogger.Silent},
	)

	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormLogger,
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	if err := conn.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.ProductUpdate{},
		&models.ProductRevision{},
		&models.Container{},
		&models.ContainerUpdate{},
		&models.ContainerUpdateProduct{},
		&models.ContainerRevision{},
		&models.ContainerRevisionProduct{},
		&models.PointOfSale{},
		&models.PointOfSaleUpdate{},
		&models.PointOfSaleUpdateContainer{},
		&models.PointOfSaleRevision{},
		&models.PointOfSaleRevisionContainer{},
		&models.FineHandoutEvent{},
		&models.UserFineGroup{},
		&models.PayoutRequest{},
		&models.Deposit{},
		&models.Invoice{},
		&models.Transfer{},
		&models.Fine{},
		&models.Transaction{},
		&models.SubTransaction{},
		&models.SubTransactionRow{},
	); err != nil {
		t.Fatalf("failed to migrate test schema: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, err := conn.DB()
		if err == nil {
			sqlDB.Close()
		}
	})
	return conn
}
