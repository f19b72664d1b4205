package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbraams/barkeep-backend/pkg/db/models"
	pkgerrors "github.com/tbraams/barkeep-backend/pkg/errors"
	"github.com/tbraams/barkeep-backend/pkg/pagination"
)

// Balance aggregation. A balance is never stored; it is the sum of all
// transfers into the account, minus all transfers out, plus sales revenue,
// minus purchases. Transactions and transfers are separate inputs.
const (
	transferInQuery = `
SELECT COALESCE(SUM(amount_amount), 0) AS total
FROM transfers
WHERE to_id = ? AND created_at <= ?
`
	transferOutQuery = `
SELECT COALESCE(SUM(amount_amount), 0) AS total
FROM transfers
WHERE from_id = ? AND created_at <= ?
`
	purchaseQuery = `
SELECT COALESCE(SUM(r.quantity * r.unit_price_amount), 0) AS total
FROM sub_transaction_rows r
JOIN sub_transactions s ON s.id = r.sub_transaction_id
JOIN transactions t ON t.id = s.transaction_id
WHERE t.from_id = ? AND t.created_at <= ?
`
	salesQuery = `
SELECT COALESCE(SUM(r.quantity * r.unit_price_amount), 0) AS total
FROM sub_transaction_rows r
JOIN sub_transactions s ON s.id = r.sub_transaction_id
JOIN transactions t ON t.id = s.transaction_id
WHERE s.to_id = ? AND t.created_at <= ?
`
)

// transactionSummaryQuery lists purchase events with their derived totals.
const transactionSummaryQuery = `
SELECT t.id,
       t.from_id,
       t.created_by_id,
       t.point_of_sale_id,
       t.point_of_sale_revision,
       t.created_at,
       COALESCE(SUM(r.quantity * r.unit_price_amount), 0) AS total
FROM transactions t
LEFT JOIN sub_transactions s ON s.transaction_id = t.id
LEFT JOIN sub_transaction_rows r ON r.sub_transaction_id = s.id
`

// TransactionSummary is the typed projection scanned from
// transactionSummaryQuery.
type TransactionSummary struct {
	ID                  uuid.UUID  `gorm:"column:id"`
	FromID              uuid.UUID  `gorm:"column:from_id"`
	CreatedByID         *uuid.UUID `gorm:"column:created_by_id"`
	PointOfSaleID       uuid.UUID  `gorm:"column:point_of_sale_id"`
	PointOfSaleRevision int        `gorm:"column:point_of_sale_revision"`
	CreatedAt           time.Time  `gorm:"column:created_at"`
	Total               int64      `gorm:"column:total"`
}

// TransferFilter narrows transfer listings to one account in either role.
type TransferFilter struct {
	AccountID *uuid.UUID
	Params    pagination.Params
}

// TransactionFilter narrows transaction listings to one payer.
type TransactionFilter struct {
	FromID *uuid.UUID
	Params pagination.Params
}

// Repository provides persistence for the append-only ledger.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// CreateTransfer appends one immutable transfer row.
func (r *Repository) CreateTransfer(ctx context.Context, transfer *models.Transfer) error {
	return r.db.WithContext(ctx).Create(transfer).Error
}

// FindTransferByID loads one transfer.
func (r *Repository) FindTransferByID(ctx context.Context, id uuid.UUID) (*models.Transfer, error) {
	var transfer models.Transfer
	if err := r.db.WithContext(ctx).First(&transfer, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transfer not found")
		}
		return nil, err
	}
	return &transfer, nil
}

// DeleteTransfer removes a transfer row. Only fine administration may undo
// ledger entries; everything else treats transfers as append-only.
func (r *Repository) DeleteTransfer(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Transfer{}).Error
}

// ListTransfers returns a page of transfers plus the total count, newest
// first.
func (r *Repository) ListTransfers(ctx context.Context, filter TransferFilter) ([]models.Transfer, int64, error) {
	params := filter.Params.Normalize()

	base := r.db.WithContext(ctx).Model(&models.Transfer{})
	if filter.AccountID != nil {
		base = base.Where("from_id = ? OR to_id = ?", *filter.AccountID, *filter.AccountID)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var found []models.Transfer
	if err := base.
		Order("created_at DESC").
		Limit(params.Take).
		Offset(params.Skip).
		Find(&found).Error; err != nil {
		return nil, 0, err
	}
	return found, total, nil
}

// CreateTransaction appends one immutable purchase event with all of its
// sub-transactions and rows.
func (r *Repository) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	tx := r.db.WithContext(ctx)

	subs := txn.SubTransactions
	txn.SubTransactions = nil
	if err := tx.Create(txn).Error; err != nil {
		return err
	}
	txn.SubTransactions = subs

	for i := range subs {
		subs[i].TransactionID = txn.ID
		rows := subs[i].Rows
		subs[i].Rows = nil
		if err := tx.Create(&subs[i]).Error; err != nil {
			return err
		}
		subs[i].Rows = rows
		for j := range rows {
			rows[j].SubTransactionID = subs[i].ID
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// FindTransactionByID loads one transaction with its full row tree.
func (r *Repository) FindTransactionByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).
		Preload("SubTransactions.Rows").
		First(&txn, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, err
	}
	return &txn, nil
}

// ListTransactions returns a page of transaction summaries plus the total
// count, newest first.
func (r *Repository) ListTransactions(ctx context.Context, filter TransactionFilter) ([]TransactionSummary, int64, error) {
	params := filter.Params.Normalize()

	countQ := r.db.WithContext(ctx).Model(&models.Transaction{})
	query := transactionSummaryQuery
	args := []any{}
	if filter.FromID != nil {
		countQ = countQ.Where("from_id = ?", *filter.FromID)
		query += " WHERE t.from_id = ?"
		args = append(args, *filter.FromID)
	}

	var total int64
	if err := countQ.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query += `
GROUP BY t.id, t.from_id, t.created_by_id, t.point_of_sale_id, t.point_of_sale_revision, t.created_at
ORDER BY t.created_at DESC
LIMIT ? OFFSET ?`
	args = append(args, params.Take, params.Skip)

	var rows []TransactionSummary
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Balance replays the ledger for one account up to asOf and returns the
// resulting amount in minor units.
func (r *Repository) Balance(ctx context.Context, accountID uuid.UUID, asOf time.Time) (int64, error) {
	var in, out, purchases, sales int64
	queries := []struct {
		sql  string
		dest *int64
	}{
		{transferInQuery, &in},
		{transferOutQuery, &out},
		{purchaseQuery, &purchases},
		{salesQuery, &sales},
	}
	for _, q := range queries {
		if err := r.db.WithContext(ctx).Raw(q.sql, accountID, asOf).Scan(q.dest).Error; err != nil {
			return 0, err
		}
	}
	return in - out + sales - purchases, nil
}
