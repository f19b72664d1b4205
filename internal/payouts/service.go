package payouts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbraams/barkeep-backend/internal/ledger"
	"github.com/tbraams/barkeep-backend/pkg/config"
	"github.com/tbraams/barkeep-backend/pkg/db"
	"github.com/tbraams/barkeep-backend/pkg/db/models"
	"github.com/tbraams/barkeep-backend/pkg/enums"
	pkgerrors "github.com/tbraams/barkeep-backend/pkg/errors"
	"github.com/tbraams/barkeep-backend/pkg/logger"
	"github.com/tbraams/barkeep-backend/pkg/money"
	"github.com/tbraams/barkeep-backend/pkg/pagination"
)

// Service exposes payout requests: converting internal balance back into a
// bank transfer. Money only leaves the ledger once an admin approves.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*PayoutDTO, error)
	Approve(ctx context.Context, id, approvedBy uuid.UUID) (*PayoutDTO, error)
	Deny(ctx context.Context, id, deniedBy uuid.UUID) (*PayoutDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*PayoutDTO, error)
	List(ctx context.Context, userID *uuid.UUID, params pagination.Params) (*PayoutListResult, error)
}

// CreateInput holds the payload to request a payout.
type CreateInput struct {
	RequestedByID uuid.UUID
	Amount        money.Money
	BankAccount   string
}

// PayoutDTO is the read model for one payout request.
type PayoutDTO struct {
	ID            uuid.UUID         `json:"id"`
	RequestedByID uuid.UUID         `json:"requestedById"`
	ApprovedByID  *uuid.UUID        `json:"approvedById,omitempty"`
	Amount        money.Money       `json:"amount"`
	BankAccount   string            `json:"bankAccount"`
	State         enums.PayoutState `json:"state"`
	TransferID    *uuid.UUID        `json:"transferId,omitempty"`
}

// PayoutListResult bundles a payout page with pagination info.
type PayoutListResult struct {
	Payouts []PayoutDTO     `json:"payouts"`
	Page    pagination.Page `json:"page"`
}

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type balanceReader interface {
	Balance(ctx context.Context, accountID uuid.UUID, asOf time.Time) (int64, error)
}

type service struct {
	repo      *Repository
	dbClient  *db.Client
	users     userLoader
	balances  balanceReader
	ledgerCfg config.LedgerConfig
	logg      *logger.Logger
}

// NewService constructs a payout service instance.
func NewService(repo *Repository, dbClient *db.Client, users userLoader, balances balanceReader, ledgerCfg config.LedgerConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payout repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if users == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if balances == nil {
		return nil, fmt.Errorf("balance reader required")
	}
	return &service{
		repo:      repo,
		dbClient:  dbClient,
		users:     users,
		balances:  balances,
		ledgerCfg: ledgerCfg,
		logg:      logg,
	}, nil
}

// Create registers a payout request. The requester must be able to cover the
// amount at the moment of the request; approval checks again before paying.
func (s *service) Create(ctx context.Context, input CreateInput) (*PayoutDTO, error) {
	if input.BankAccount == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bank account is required")
	}
	if input.Amount.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout amount must be positive")
	}
	if input.Amount.Currency != s.ledgerCfg.Currency || input.Amount.Precision != s.ledgerCfg.Precision {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf(
			"payout amount must be in %s with precision %d", s.ledgerCfg.Currency, s.ledgerCfg.Precision,
		))
	}
	user, err := s.users.FindByID(ctx, input.RequestedByID)
	if err != nil {
		return nil, err
	}

	balance, err := s.balances.Balance(ctx, user.ID, time.Now())
	if err != nil {
		return nil, err
	}
	if balance < input.Amount.Amount {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout amount exceeds current balance")
	}

	payout := &models.PayoutRequest{
		RequestedByID: user.ID,
		Amount:        input.Amount,
		BankAccount:   input.BankAccount,
		State:         enums.PayoutStateRequested,
	}
	if err := s.repo.Create(ctx, payout); err != nil {
		return nil, err
	}
	return dto(payout), nil
}

// Approve debits the requested amount and records who approved, in one
// atomic step. The balance is re-checked because it may have dropped since
// the request was made.
func (s *service) Approve(ctx context.Context, id, approvedBy uuid.UUID) (*PayoutDTO, error) {
	payout, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payout.State != enums.PayoutStateRequested {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payout request already decided")
	}

	balance, err := s.balances.Balance(ctx, payout.RequestedByID, time.Now())
	if err != nil {
		return nil, err
	}
	if balance < payout.Amount.Amount {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout amount exceeds current balance")
	}

	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Decide(ctx, payout.ID, enums.PayoutStateApproved, approvedBy); err != nil {
			return err
		}
		transfer, err := ledger.CreateTransferTx(ctx, tx, s.ledgerCfg, ledger.CreateTransferInput{
			FromID:          &payout.RequestedByID,
			Amount:          payout.Amount,
			Description:     "payout to " + payout.BankAccount,
			PayoutRequestID: &payout.ID,
		})
		if err != nil {
			return err
		}
		return repo.SetTransfer(ctx, payout.ID, transfer.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, payout.ID)
}

// Deny rejects a pending payout request without touching the ledger.
func (s *service) Deny(ctx context.Context, id, deniedBy uuid.UUID) (*PayoutDTO, error) {
	payout, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payout.State != enums.PayoutStateRequested {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payout request already decided")
	}
	if err := s.repo.Decide(ctx, payout.ID, enums.PayoutStateDenied, deniedBy); err != nil {
		return nil, err
	}
	return s.Get(ctx, payout.ID)
}

// Get loads one payout request.
func (s *service) Get(ctx context.Context, id uuid.UUID) (*PayoutDTO, error) {
	payout, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto(payout), nil
}

// List returns a page of payout requests.
func (s *service) List(ctx context.Context, userID *uuid.UUID, params pagination.Params) (*PayoutListResult, error) {
	found, total, err := s.repo.List(ctx, userID, params)
	if err != nil {
		return nil, err
	}
	dtos := make([]PayoutDTO, 0, len(found))
	for i := range found {
		dtos = append(dtos, *dto(&found[i]))
	}
	return &PayoutListResult{
		Payouts: dtos,
		Page:    pagination.NewPage(params, total),
	}, nil
}

func dto(payout *models.PayoutRequest) *PayoutDTO {
	return &PayoutDTO{
		ID:            payout.ID,
		RequestedByID: payout.RequestedByID,
		ApprovedByID:  payout.ApprovedByID,
		Amount:        payout.Amount,
		BankAccount:   payout.BankAccount,
		State:         payout.State,
		TransferID:    payout.TransferID,
	}
}
