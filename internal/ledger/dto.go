package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/tbraams/barkeep-backend/pkg/db/models"
	"github.com/tbraams/barkeep-backend/pkg/money"
	"github.com/tbraams/barkeep-backend/pkg/pagination"
)

// Reason names why a transfer exists. Plain balance moves carry no reason.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonDeposit     Reason = "deposit"
	ReasonInvoice     Reason = "invoice"
	ReasonPayout      Reason = "payout"
	ReasonFine        Reason = "fine"
	ReasonWaivedFines Reason = "waived_fines"
)

// TransferDTO is the read model for one ledger transfer.
type TransferDTO struct {
	ID          uuid.UUID   `json:"id"`
	FromID      *uuid.UUID  `json:"fromId,omitempty"`
	ToID        *uuid.UUID  `json:"toId,omitempty"`
	Amount      money.Money `json:"amount"`
	Description string      `json:"description,omitempty"`
	Reason      Reason      `json:"reason,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// TransferListResult bundles a transfer page with pagination info.
type TransferListResult struct {
	Transfers []TransferDTO   `json:"transfers"`
	Page      pagination.Page `json:"page"`
}

// RowDTO is one purchased line item at its pinned product revision.
type RowDTO struct {
	ProductID       uuid.UUID   `json:"productId"`
	ProductRevision int         `json:"productRevision"`
	Quantity        int         `json:"quantity"`
	UnitPrice       money.Money `json:"unitPrice"`
	Total           money.Money `json:"total"`
}

// SubTransactionDTO groups the rows bought from one pinned container.
type SubTransactionDTO struct {
	ID                uuid.UUID   `json:"id"`
	ToID              uuid.UUID   `json:"toId"`
	ContainerID       uuid.UUID   `json:"containerId"`
	ContainerRevision int         `json:"containerRevision"`
	Rows              []RowDTO    `json:"rows"`
	Total             money.Money `json:"total"`
}

// TransactionDTO is the read model for one purchase event.
type TransactionDTO struct {
	ID                  uuid.UUID           `json:"id"`
	FromID              uuid.UUID           `json:"fromId"`
	CreatedByID         *uuid.UUID          `json:"createdById,omitempty"`
	PointOfSaleID       uuid.UUID           `json:"pointOfSaleId"`
	PointOfSaleRevision int                 `json:"pointOfSaleRevision"`
	SubTransactions     []SubTransactionDTO `json:"subTransactions"`
	Total               money.Money         `json:"total"`
	CreatedAt           time.Time           `json:"createdAt"`
}

// TransactionSummaryDTO is the listing shape: totals without the row tree.
type TransactionSummaryDTO struct {
	ID                  uuid.UUID   `json:"id"`
	FromID              uuid.UUID   `json:"fromId"`
	CreatedByID         *uuid.UUID  `json:"createdById,omitempty"`
	PointOfSaleID       uuid.UUID   `json:"pointOfSaleId"`
	PointOfSaleRevision int         `json:"pointOfSaleRevision"`
	Total               money.Money `json:"total"`
	CreatedAt           time.Time   `json:"createdAt"`
}

// TransactionListResult bundles a transaction page with pagination info.
type TransactionListResult struct {
	Transactions []TransactionSummaryDTO `json:"transactions"`
	Page         pagination.Page         `json:"page"`
}

// BalanceDTO is the derived balance of one account at a point in time.
type BalanceDTO struct {
	AccountID uuid.UUID   `json:"accountId"`
	Balance   money.Money `json:"balance"`
	AsOf      time.Time   `json:"asOf"`
}

func reasonOf(t *models.Transfer) Reason {
	switch {
	case t.DepositID != nil:
		return ReasonDeposit
	case t.InvoiceID != nil:
		return ReasonInvoice
	case t.PayoutRequestID != nil:
		return ReasonPayout
	case t.FineID != nil:
		return ReasonFine
	case t.WaivedFineGroupID != nil:
		return ReasonWaivedFines
	default:
		return ReasonNone
	}
}

func transferDTO(t *models.Transfer) TransferDTO {
	return TransferDTO{
		ID:          t.ID,
		FromID:      t.FromID,
		ToID:        t.ToID,
		Amount:      t.Amount,
		Description: t.Description,
		Reason:      reasonOf(t),
		CreatedAt:   t.CreatedAt,
	}
}

func transactionDTO(txn *models.Transaction, currency string, precision int) *TransactionDTO {
	dto := &TransactionDTO{
		ID:                  txn.ID,
		FromID:              txn.FromID,
		CreatedByID:         txn.CreatedByID,
		PointOfSaleID:       txn.PointOfSaleID,
		PointOfSaleRevision: txn.PointOfSaleRevision,
		CreatedAt:           txn.CreatedAt,
		Total:               money.Money{Currency: currency, Precision: precision},
	}
	for _, sub := range txn.SubTransactions {
		subDTO := SubTransactionDTO{
			ID:                sub.ID,
			ToID:              sub.ToID,
			ContainerID:       sub.ContainerID,
			ContainerRevision: sub.ContainerRevision,
			Total:             money.Money{Currency: currency, Precision: precision},
		}
		for _, row := range sub.Rows {
			rowTotal := row.UnitPrice.MulQty(row.Quantity)
			subDTO.Rows = append(subDTO.Rows, RowDTO{
				ProductID:       row.ProductID,
				ProductRevision: row.ProductRevision,
				Quantity:        row.Quantity,
				UnitPrice:       row.UnitPrice,
				Total:           rowTotal,
			})
			subDTO.Total.Amount += rowTotal.Amount
		}
		dto.Total.Amount += subDTO.Total.Amount
		dto.SubTransactions = append(dto.SubTransactions, subDTO)
	}
	return dto
}
