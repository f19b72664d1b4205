package deposits

import (
	"context"
	"fmt"

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

// Service exposes external top-ups. A deposit only touches the ledger when
// the payment provider reports it completed; the credit and the state change
// commit together.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*DepositDTO, error)
	AdvanceState(ctx context.Context, id uuid.UUID, next enums.DepositState) (*DepositDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*DepositDTO, error)
	List(ctx context.Context, userID *uuid.UUID, params pagination.Params) (*DepositListResult, error)
}

// CreateInput holds the payload to register a deposit.
type CreateInput struct {
	ToID   uuid.UUID
	Amount money.Money
}

// DepositDTO is the read model for one deposit.
type DepositDTO struct {
	ID         uuid.UUID          `json:"id"`
	ToID       uuid.UUID          `json:"toId"`
	Amount     money.Money        `json:"amount"`
	State      enums.DepositState `json:"state"`
	TransferID *uuid.UUID         `json:"transferId,omitempty"`
}

// DepositListResult bundles a deposit page with pagination info.
type DepositListResult struct {
	Deposits []DepositDTO    `json:"deposits"`
	Page     pagination.Page `json:"page"`
}

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type fineResolver interface {
	SettleFinesIfRecovered(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repo      *Repository
	dbClient  *db.Client
	users     userLoader
	ledgerSvc fineResolver
	ledgerCfg config.LedgerConfig
	logg      *logger.Logger
}

// NewService constructs a deposit service instance.
func NewService(repo *Repository, dbClient *db.Client, users userLoader, ledgerSvc fineResolver, ledgerCfg config.LedgerConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("deposit repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if users == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &service{
		repo:      repo,
		dbClient:  dbClient,
		users:     users,
		ledgerSvc: ledgerSvc,
		ledgerCfg: ledgerCfg,
		logg:      logg,
	}, nil
}

// Create registers a deposit in the created state. No money moves yet.
func (s *service) Create(ctx context.Context, input CreateInput) (*DepositDTO, error) {
	if input.Amount.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deposit amount must be positive")
	}
	if input.Amount.Currency != s.ledgerCfg.Currency || input.Amount.Precision != s.ledgerCfg.Precision {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf(
			"deposit amount must be in %s with precision %d", s.ledgerCfg.Currency, s.ledgerCfg.Precision,
		))
	}
	user, err := s.users.FindByID(ctx, input.ToID)
	if err != nil {
		return nil, err
	}

	deposit := &models.Deposit{
		ToID:   user.ID,
		Amount: input.Amount,
		State:  enums.DepositStateCreated,
	}
	if err := s.repo.Create(ctx, deposit); err != nil {
		return nil, err
	}
	return dto(deposit), nil
}

// AdvanceState moves the deposit along its provider lifecycle. Completion
// credits the account atomically with the state change, then resolves any
// outstanding fines.
func (s *service) AdvanceState(ctx context.Context, id uuid.UUID, next enums.DepositState) (*DepositDTO, error) {
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown deposit state")
	}
	deposit, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !deposit.State.CanTransitionTo(next) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf(
			"deposit cannot move from %s to %s", deposit.State, next,
		))
	}

	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateState(ctx, deposit.ID, deposit.State, next); err != nil {
			return err
		}
		if next != enums.DepositStateCompleted {
			return nil
		}
		transfer, err := ledger.CreateTransferTx(ctx, tx, s.ledgerCfg, ledger.CreateTransferInput{
			ToID:        &deposit.ToID,
			Amount:      deposit.Amount,
			Description: "deposit",
			DepositID:   &deposit.ID,
		})
		if err != nil {
			return err
		}
		return repo.SetTransfer(ctx, deposit.ID, transfer.ID)
	})
	if err != nil {
		return nil, err
	}

	if next == enums.DepositStateCompleted {
		if err := s.ledgerSvc.SettleFinesIfRecovered(ctx, deposit.ToID); err != nil && s.logg != nil {
			s.logg.Error(s.logg.WithField(ctx, "userId", deposit.ToID.String()), "resolving fines after deposit", err)
		}
	}
	return s.Get(ctx, deposit.ID)
}

// Get loads one deposit.
func (s *service) Get(ctx context.Context, id uuid.UUID) (*DepositDTO, error) {
	deposit, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto(deposit), nil
}

// List returns a page of deposits.
func (s *service) List(ctx context.Context, userID *uuid.UUID, params pagination.Params) (*DepositListResult, error) {
	found, total, err := s.repo.List(ctx, userID, params)
	if err != nil {
		return nil, err
	}
	dtos := make([]DepositDTO, 0, len(found))
	for i := range found {
		dtos = append(dtos, *dto(&found[i]))
	}
	return &DepositListResult{
		Deposits: dtos,
		Page:     pagination.NewPage(params, total),
	}, nil
}

func dto(deposit *models.Deposit) *DepositDTO {
	return &DepositDTO{
		ID:         deposit.ID,
		ToID:       deposit.ToID,
		Amount:     deposit.Amount,
		State:      deposit.State,
		TransferID: deposit.TransferID,
	}
}
