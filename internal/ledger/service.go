package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbraams/barkeep-backend/pkg/config"
	"github.com/tbraams/barkeep-backend/pkg/db"
	"github.com/tbraams/barkeep-backend/pkg/db/models"
	pkgerrors "github.com/tbraams/barkeep-backend/pkg/errors"
	"github.com/tbraams/barkeep-backend/pkg/logger"
	"github.com/tbraams/barkeep-backend/pkg/metrics"
	"github.com/tbraams/barkeep-backend/pkg/money"
	"github.com/tbraams/barkeep-backend/pkg/pagination"
)

// Service exposes the append-only ledger: transfers, purchase transactions,
// and derived balances.
type Service interface {
	CreateTransfer(ctx context.Context, input CreateTransferInput) (*TransferDTO, error)
	GetTransfer(ctx context.Context, id uuid.UUID) (*TransferDTO, error)
	ListTransfers(ctx context.Context, input ListTransfersInput) (*TransferListResult, error)

	RecordTransaction(ctx context.Context, input RecordTransactionInput) (*TransactionDTO, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*TransactionDTO, error)
	ListTransactions(ctx context.Context, input ListTransactionsInput) (*TransactionListResult, error)

	GetBalance(ctx context.Context, accountID uuid.UUID, asOf *time.Time) (*BalanceDTO, error)
	SettleFinesIfRecovered(ctx context.Context, userID uuid.UUID) error
}

// CreateTransferInput holds the validated payload for one transfer. At most
// one reason link may be set; internal flows (deposits, invoices, payouts,
// fines) set theirs, manual treasurer transfers set none.
type CreateTransferInput struct {
	FromID      *uuid.UUID
	ToID        *uuid.UUID
	Amount      money.Money
	Description string

	PayoutRequestID   *uuid.UUID
	DepositID         *uuid.UUID
	InvoiceID         *uuid.UUID
	FineID            *uuid.UUID
	WaivedFineGroupID *uuid.UUID
}

// ListTransfersInput narrows a transfer listing.
type ListTransfersInput struct {
	AccountID *uuid.UUID
	Params    pagination.Params
}

// ListTransactionsInput narrows a transaction listing.
type ListTransactionsInput struct {
	FromID *uuid.UUID
	Params pagination.Params
}

// RowInput is one requested line item.
type RowInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// SubTransactionInput is one container's worth of requested rows.
type SubTransactionInput struct {
	ContainerID uuid.UUID
	Rows        []RowInput
}

// RecordTransactionInput holds the payload for one purchase event. A nil
// PointOfSaleRevision means "the current revision".
type RecordTransactionInput struct {
	FromID              uuid.UUID
	CreatedByID         *uuid.UUID
	PointOfSaleID       uuid.UUID
	PointOfSaleRevision *int
	SubTransactions     []SubTransactionInput
}

type userDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindManyByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
	SetCurrentFineGroup(ctx context.Context, userID uuid.UUID, groupID *uuid.UUID) error
}

type posReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.PointOfSale, error)
	FindRevision(ctx context.Context, id uuid.UUID, revision int) (*models.PointOfSaleRevision, error)
}

type containerReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Container, error)
	FindRevision(ctx context.Context, id uuid.UUID, revision int) (*models.ContainerRevision, error)
}

type productReader interface {
	FindRevisions(ctx context.Context, keys []models.ProductRevision) ([]models.ProductRevision, error)
}

type service struct {
	repo          *Repository
	dbClient      *db.Client
	users         userDirectory
	posRepo       posReader
	containerRepo containerReader
	productRepo   productReader
	ledgerCfg     config.LedgerConfig
	metrics       *metrics.LedgerMetrics
	logg          *logger.Logger
}

// NewService constructs a ledger service instance.
func NewService(
	repo *Repository,
	dbClient *db.Client,
	users userDirectory,
	posRepo posReader,
	containerRepo containerReader,
	productRepo productReader,
	ledgerCfg config.LedgerConfig,
	ledgerMetrics *metrics.LedgerMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if users == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if posRepo == nil {
		return nil, fmt.Errorf("point of sale repository required")
	}
	if containerRepo == nil {
		return nil, fmt.Errorf("container repository required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{
		repo:          repo,
		dbClient:      dbClient,
		users:         users,
		posRepo:       posRepo,
		containerRepo: containerRepo,
		productRepo:   productRepo,
		ledgerCfg:     ledgerCfg,
		metrics:       ledgerMetrics,
		logg:          logg,
	}, nil
}

// CreateTransfer validates and appends one transfer, then resolves the
// destination's outstanding fines when the new balance is non-negative.
func (s *service) CreateTransfer(ctx context.Context, input CreateTransferInput) (*TransferDTO, error) {
	transfer, err := buildTransfer(input, s.ledgerCfg)
	if err != nil {
		return nil, err
	}
	if err := s.ensureEndpointsExist(ctx, transfer); err != nil {
		return nil, err
	}
	if err := s.repo.CreateTransfer(ctx, transfer); err != nil {
		return nil, err
	}
	s.metrics.IncTransfer(string(reasonOf(transfer)))

	// Fine resolution is an explicit follow-up step, not a trigger: the
	// transfer stands on its own even if this part fails.
	if transfer.ToID != nil {
		if err := s.SettleFinesIfRecovered(ctx, *transfer.ToID); err != nil && s.logg != nil {
			s.logg.Error(s.logg.WithField(ctx, "userId", transfer.ToID.String()), "resolving fines after transfer", err)
		}
	}

	dto := transferDTO(transfer)
	return &dto, nil
}

// GetTransfer loads one transfer.
func (s *service) GetTransfer(ctx context.Context, id uuid.UUID) (*TransferDTO, error) {
	transfer, err := s.repo.FindTransferByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := transferDTO(transfer)
	return &dto, nil
}

// ListTransfers returns a page of transfers.
func (s *service) ListTransfers(ctx context.Context, input ListTransfersInput) (*TransferListResult, error) {
	found, total, err := s.repo.ListTransfers(ctx, TransferFilter{
		AccountID: input.AccountID,
		Params:    input.Params,
	})
	if err != nil {
		return nil, err
	}
	dtos := make([]TransferDTO, 0, len(found))
	for i := range found {
		dtos = append(dtos, transferDTO(&found[i]))
	}
	return &TransferListResult{
		Transfers: dtos,
		Page:      pagination.NewPage(input.Params, total),
	}, nil
}

// RecordTransaction validates a purchase against the pinned point-of-sale
// snapshot, prices every row from its pinned product revision, and appends
// the event atomically.
func (s *service) RecordTransaction(ctx context.Context, input RecordTransactionInput) (*TransactionDTO, error) {
	txn, err := s.resolveTransaction(ctx, input)
	if err != nil {
		return nil, err
	}

	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).CreateTransaction(ctx, txn)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncTransaction()

	return transactionDTO(txn, s.ledgerCfg.Currency, s.ledgerCfg.Precision), nil
}

// GetTransaction loads one transaction with its full row tree.
func (s *service) GetTransaction(ctx context.Context, id uuid.UUID) (*TransactionDTO, error) {
	txn, err := s.repo.FindTransactionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return transactionDTO(txn, s.ledgerCfg.Currency, s.ledgerCfg.Precision), nil
}

// ListTransactions returns a page of transaction summaries.
func (s *service) ListTransactions(ctx context.Context, input ListTransactionsInput) (*TransactionListResult, error) {
	rows, total, err := s.repo.ListTransactions(ctx, TransactionFilter{
		FromID: input.FromID,
		Params: input.Params,
	})
	if err != nil {
		return nil, err
	}
	dtos := make([]TransactionSummaryDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, TransactionSummaryDTO{
			ID:                  row.ID,
			FromID:              row.FromID,
			CreatedByID:         row.CreatedByID,
			PointOfSaleID:       row.PointOfSaleID,
			PointOfSaleRevision: row.PointOfSaleRevision,
			Total: money.Money{
				Amount:    row.Total,
				Currency:  s.ledgerCfg.Currency,
				Precision: s.ledgerCfg.Precision,
			},
			CreatedAt: row.CreatedAt,
		})
	}
	return &TransactionListResult{
		Transactions: dtos,
		Page:         pagination.NewPage(input.Params, total),
	}, nil
}

// GetBalance replays the ledger for one account. A nil asOf means now.
func (s *service) GetBalance(ctx context.Context, accountID uuid.UUID, asOf *time.Time) (*BalanceDTO, error) {
	if _, err := s.users.FindByID(ctx, accountID); err != nil {
		return nil, err
	}
	at := time.Now()
	if asOf != nil {
		at = *asOf
	}
	amount, err := s.repo.Balance(ctx, accountID, at)
	if err != nil {
		return nil, err
	}
	return &BalanceDTO{
		AccountID: accountID,
		Balance: money.Money{
			Amount:    amount,
			Currency:  s.ledgerCfg.Currency,
			Precision: s.ledgerCfg.Precision,
		},
		AsOf: at,
	}, nil
}

// SettleFinesIfRecovered clears the user's active fine-group marker once
// their balance is back to non-negative. The fines and their transfers stay
// on the ledger; only the "currently fined" marker goes away.
func (s *service) SettleFinesIfRecovered(ctx context.Context, userID uuid.UUID) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.CurrentFineGroupID == nil {
		return nil
	}
	balance, err := s.repo.Balance(ctx, userID, time.Now())
	if err != nil {
		return err
	}
	if balance < 0 {
		return nil
	}
	if err := s.users.SetCurrentFineGroup(ctx, userID, nil); err != nil {
		return err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "userId", userID.String()), "fine group resolved after balance recovery")
	}
	return nil
}

func (s *service) ensureEndpointsExist(ctx context.Context, transfer *models.Transfer) error {
	var ids []uuid.UUID
	if transfer.FromID != nil {
		ids = append(ids, *transfer.FromID)
	}
	if transfer.ToID != nil && (transfer.FromID == nil || *transfer.ToID != *transfer.FromID) {
		ids = append(ids, *transfer.ToID)
	}
	found, err := s.users.FindManyByIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(found) != len(ids) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "transfer endpoint account not found")
	}
	return nil
}

func (s *service) resolveTransaction(ctx context.Context, input RecordTransactionInput) (*models.Transaction, error) {
	if len(input.SubTransactions) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction needs at least one sub-transaction")
	}
	payer, err := s.users.FindByID(ctx, input.FromID)
	if err != nil {
		return nil, err
	}
	if !payer.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payer account is inactive")
	}

	pos, err := s.posRepo.FindByID(ctx, input.PointOfSaleID)
	if err != nil {
		return nil, err
	}
	posRevision := 0
	switch {
	case input.PointOfSaleRevision != nil:
		posRevision = *input.PointOfSaleRevision
	case pos.CurrentRevision != nil:
		posRevision = *pos.CurrentRevision
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "point of sale has no approved revision")
	}
	posRev, err := s.posRepo.FindRevision(ctx, pos.ID, posRevision)
	if err != nil {
		return nil, err
	}

	pinnedContainers := make(map[uuid.UUID]int, len(posRev.Containers))
	for _, pin := range posRev.Containers {
		pinnedContainers[pin.ContainerID] = pin.ContainerRevision
	}

	txn := &models.Transaction{
		FromID:              payer.ID,
		CreatedByID:         input.CreatedByID,
		PointOfSaleID:       pos.ID,
		PointOfSaleRevision: posRevision,
	}

	for _, subInput := range input.SubTransactions {
		if len(subInput.Rows) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "sub-transaction needs at least one row")
		}
		containerRevision, ok := pinnedContainers[subInput.ContainerID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidReference, "container is not part of the point of sale revision").
				WithDetails(map[string]any{"containerId": subInput.ContainerID})
		}
		container, err := s.containerRepo.FindByID(ctx, subInput.ContainerID)
		if err != nil {
			return nil, err
		}
		containerRev, err := s.containerRepo.FindRevision(ctx, subInput.ContainerID, containerRevision)
		if err != nil {
			return nil, err
		}
		pinnedProducts := make(map[uuid.UUID]int, len(containerRev.Products))
		for _, pin := range containerRev.Products {
			pinnedProducts[pin.ProductID] = pin.ProductRevision
		}

		sub := models.SubTransaction{
			ToID:              container.OwnerID,
			ContainerID:       container.ID,
			ContainerRevision: containerRevision,
		}

		var keys []models.ProductRevision
		for _, row := range subInput.Rows {
			if row.Quantity <= 0 {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "row quantity must be positive").
					WithDetails(map[string]any{"productId": row.ProductID})
			}
			productRevision, ok := pinnedProducts[row.ProductID]
			if !ok {
				return nil, pkgerrors.New(pkgerrors.CodeInvalidReference, "product is not part of the container revision").
					WithDetails(map[string]any{
						"containerId": subInput.ContainerID,
						"productId":   row.ProductID,
					})
			}
			keys = append(keys, models.ProductRevision{ProductID: row.ProductID, Revision: productRevision})
		}

		priced, err := s.productRepo.FindRevisions(ctx, keys)
		if err != nil {
			return nil, err
		}
		prices := make(map[uuid.UUID]money.Money, len(priced))
		for _, rev := range priced {
			prices[rev.ProductID] = rev.Price
		}

		for _, row := range subInput.Rows {
			price, ok := prices[row.ProductID]
			if !ok {
				return nil, pkgerrors.New(pkgerrors.CodeInvalidReference, "pinned product revision not found").
					WithDetails(map[string]any{"productId": row.ProductID})
			}
			sub.Rows = append(sub.Rows, models.SubTransactionRow{
				ProductID:       row.ProductID,
				ProductRevision: pinnedProducts[row.ProductID],
				Quantity:        row.Quantity,
				UnitPrice:       price,
			})
		}
		txn.SubTransactions = append(txn.SubTransactions, sub)
	}
	return txn, nil
}

// buildTransfer validates a transfer input against the ledger's invariants
// and returns the row to insert.
func buildTransfer(input CreateTransferInput, cfg config.LedgerConfig) (*models.Transfer, error) {
	if input.FromID == nil && input.ToID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer needs at least one endpoint account")
	}
	if input.Amount.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer amount must be positive")
	}
	if input.Amount.Currency != cfg.Currency || input.Amount.Precision != cfg.Precision {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf(
			"transfer amount must be in %s with precision %d", cfg.Currency, cfg.Precision,
		))
	}

	transfer := &models.Transfer{
		FromID:            input.FromID,
		ToID:              input.ToID,
		Amount:            input.Amount,
		Description:       input.Description,
		PayoutRequestID:   input.PayoutRequestID,
		DepositID:         input.DepositID,
		InvoiceID:         input.InvoiceID,
		FineID:            input.FineID,
		WaivedFineGroupID: input.WaivedFineGroupID,
	}
	if transfer.ReasonCount() > 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer can carry at most one reason link")
	}
	return transfer, nil
}

// CreateTransferTx validates and appends a transfer inside an existing
// transaction. Deposits, invoices, payouts, and fines use this to keep their
// state change and the resulting ledger entry atomic.
func CreateTransferTx(ctx context.Context, tx *gorm.DB, cfg config.LedgerConfig, input CreateTransferInput) (*models.Transfer, error) {
	transfer, err := buildTransfer(input, cfg)
	if err != nil {
		return nil, err
	}
	if err := NewRepository(tx).CreateTransfer(ctx, transfer); err != nil {
		return nil, err
	}
	return transfer, nil
}
