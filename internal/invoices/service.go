package invoices

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

// Service exposes invoices: out-of-band settlement of a user's outstanding
// purchases. Creating an invoice credits the invoiced amount immediately;
// deleting it before payment debits the credit back.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*InvoiceDTO, error)
	AdvanceState(ctx context.Context, id uuid.UUID, next enums.InvoiceState) (*InvoiceDTO, error)
	Delete(ctx context.Context, id uuid.UUID) (*InvoiceDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*InvoiceDTO, error)
	List(ctx context.Context, userID *uuid.UUID, params pagination.Params) (*InvoiceListResult, error)
}

// CreateInput holds the payload to issue an invoice.
type CreateInput struct {
	ToID        uuid.UUID
	Reference   string
	Description string
	Amount      money.Money
}

// InvoiceDTO is the read model for one invoice.
type InvoiceDTO struct {
	ID          uuid.UUID          `json:"id"`
	ToID        uuid.UUID          `json:"toId"`
	Reference   string             `json:"reference"`
	Description string             `json:"description,omitempty"`
	Amount      money.Money        `json:"amount"`
	State       enums.InvoiceState `json:"state"`
	TransferID  *uuid.UUID         `json:"transferId,omitempty"`
}

// InvoiceListResult bundles an invoice page with pagination info.
type InvoiceListResult struct {
	Invoices []InvoiceDTO    `json:"invoices"`
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

// NewService constructs an invoice service instance.
func NewService(repo *Repository, dbClient *db.Client, users userLoader, ledgerSvc fineResolver, ledgerCfg config.LedgerConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("invoice repository required")
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

// Create issues the invoice and credits the invoiced amount in one atomic
// step, then resolves any outstanding fines.
func (s *service) Create(ctx context.Context, input CreateInput) (*InvoiceDTO, error) {
	if input.Reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}
	if input.Amount.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice amount must be positive")
	}
	if input.Amount.Currency != s.ledgerCfg.Currency || input.Amount.Precision != s.ledgerCfg.Precision {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf(
			"invoice amount must be in %s with precision %d", s.ledgerCfg.Currency, s.ledgerCfg.Precision,
		))
	}
	user, err := s.users.FindByID(ctx, input.ToID)
	if err != nil {
		return nil, err
	}

	invoice := &models.Invoice{
		ToID:        user.ID,
		Reference:   input.Reference,
		Description: input.Description,
		Amount:      input.Amount,
		State:       enums.InvoiceStateCreated,
	}
	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, invoice); err != nil {
			return err
		}
		transfer, err := ledger.CreateTransferTx(ctx, tx, s.ledgerCfg, ledger.CreateTransferInput{
			ToID:        &invoice.ToID,
			Amount:      invoice.Amount,
			Description: "invoice " + invoice.Reference,
			InvoiceID:   &invoice.ID,
		})
		if err != nil {
			return err
		}
		return repo.SetTransfer(ctx, invoice.ID, transfer.ID)
	})
	if err != nil {
		return nil, err
	}

	if err := s.ledgerSvc.SettleFinesIfRecovered(ctx, invoice.ToID); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithField(ctx, "userId", invoice.ToID.String()), "resolving fines after invoice", err)
	}
	return s.Get(ctx, invoice.ID)
}

// AdvanceState moves the invoice along its billing lifecycle without
// touching the ledger. Deletion has its own entry point because it does.
func (s *service) AdvanceState(ctx context.Context, id uuid.UUID, next enums.InvoiceState) (*InvoiceDTO, error) {
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown invoice state")
	}
	if next == enums.InvoiceStateDeleted {
		return s.Delete(ctx, id)
	}
	invoice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !invoice.State.CanTransitionTo(next) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf(
			"invoice cannot move from %s to %s", invoice.State, next,
		))
	}
	if err := s.repo.UpdateState(ctx, invoice.ID, invoice.State, next); err != nil {
		return nil, err
	}
	return s.Get(ctx, invoice.ID)
}

// Delete cancels an unpaid invoice and debits the earlier credit back in one
// atomic step.
func (s *service) Delete(ctx context.Context, id uuid.UUID) (*InvoiceDTO, error) {
	invoice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !invoice.State.CanTransitionTo(enums.InvoiceStateDeleted) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf(
			"invoice in state %s cannot be deleted", invoice.State,
		))
	}

	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateState(ctx, invoice.ID, invoice.State, enums.InvoiceStateDeleted); err != nil {
			return err
		}
		_, err := ledger.CreateTransferTx(ctx, tx, s.ledgerCfg, ledger.CreateTransferInput{
			FromID:      &invoice.ToID,
			Amount:      invoice.Amount,
			Description: "invoice " + invoice.Reference + " deleted",
			InvoiceID:   &invoice.ID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, invoice.ID)
}

// Get loads one invoice.
func (s *service) Get(ctx context.Context, id uuid.UUID) (*InvoiceDTO, error) {
	invoice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto(invoice), nil
}

// List returns a page of invoices.
func (s *service) List(ctx context.Context, userID *uuid.UUID, params pagination.Params) (*InvoiceListResult, error) {
	found, total, err := s.repo.List(ctx, userID, params)
	if err != nil {
		return nil, err
	}
	dtos := make([]InvoiceDTO, 0, len(found))
	for i := range found {
		dtos = append(dtos, *dto(&found[i]))
	}
	return &InvoiceListResult{
		Invoices: dtos,
		Page:     pagination.NewPage(params, total),
	}, nil
}

func dto(invoice *models.Invoice) *InvoiceDTO {
	return &InvoiceDTO{
		ID:          invoice.ID,
		ToID:        invoice.ToID,
		Reference:   invoice.Reference,
		Description: invoice.Description,
		Amount:      invoice.Amount,
		State:       invoice.State,
		TransferID:  invoice.TransferID,
	}
}
