package fines

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbraams/barkeep-backend/internal/ledger"
	"github.com/tbraams/barkeep-backend/internal/notifier"
	"github.com/tbraams/barkeep-backend/internal/users"
	"github.com/tbraams/barkeep-backend/pkg/config"
	"github.com/tbraams/barkeep-backend/pkg/db"
	"github.com/tbraams/barkeep-backend/pkg/db/models"
	"github.com/tbraams/barkeep-backend/pkg/enums"
	pkgerrors "github.com/tbraams/barkeep-backend/pkg/errors"
	"github.com/tbraams/barkeep-backend/pkg/logger"
	"github.com/tbraams/barkeep-backend/pkg/metrics"
	"github.com/tbraams/barkeep-backend/pkg/money"
)

// Fine banding in minor units: accounts at or below the debtor threshold
// are fined one step amount per full step of debt, capped.
const (
	debtorThreshold = -500
	fineStep        = 500
	finePerStep     = 100
	fineCap         = 500
)

// UserFineReport is the would-be fine for one debtor.
type UserFineReport struct {
	UserID  uuid.UUID   `json:"userId"`
	Balance money.Money `json:"balance"`
	Fine    money.Money `json:"fine"`
}

// HandOutInput selects who gets fined and against which reference date. An
// empty UserIDs means all active accounts; a nil ReferenceDate falls back to
// the previous handout's reference date, or now for the first handout ever.
type HandOutInput struct {
	UserIDs       []uuid.UUID
	ReferenceDate *time.Time
}

// HandoutResult reports one completed fine batch.
type HandoutResult struct {
	EventID       *uuid.UUID       `json:"eventId,omitempty"`
	ReferenceDate time.Time        `json:"referenceDate"`
	Fines         []UserFineReport `json:"fines"`
}

// Service exposes the fine engine.
type Service interface {
	CalculateFinesOnDate(ctx context.Context, userIDs []uuid.UUID, referenceDate time.Time) ([]UserFineReport, error)
	HandOutFines(ctx context.Context, input HandOutInput) (*HandoutResult, error)
	WaiveFines(ctx context.Context, userID uuid.UUID) error
	DeleteFine(ctx context.Context, fineID uuid.UUID) error
	SendFineWarnings(ctx context.Context, userIDs []uuid.UUID, referenceDate time.Time) (int, error)
}

type balanceReader interface {
	Balance(ctx context.Context, accountID uuid.UUID, asOf time.Time) (int64, error)
}

type service struct {
	repo      *Repository
	dbClient  *db.Client
	users     *users.Repository
	balances  balanceReader
	notify    notifier.Notifier
	ledgerCfg config.LedgerConfig
	metrics   *metrics.LedgerMetrics
	logg      *logger.Logger
}

// NewService constructs a fine engine instance.
func NewService(
	repo *Repository,
	dbClient *db.Client,
	userRepo *users.Repository,
	balances balanceReader,
	notify notifier.Notifier,
	ledgerCfg config.LedgerConfig,
	ledgerMetrics *metrics.LedgerMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("fine repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if userRepo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if balances == nil {
		return nil, fmt.Errorf("balance reader required")
	}
	if notify == nil {
		return nil, fmt.Errorf("notifier required")
	}
	return &service{
		repo:      repo,
		dbClient:  dbClient,
		users:     userRepo,
		balances:  balances,
		notify:    notify,
		ledgerCfg: ledgerCfg,
		metrics:   ledgerMetrics,
		logg:      logg,
	}, nil
}

// calculateFine maps a debtor balance in minor units to the fine amount in
// minor units. Accounts at or above the threshold pay nothing.
func calculateFine(balance int64) int64 {
	if balance > debtorThreshold {
		return 0
	}
	fine := (-balance / fineStep) * finePerStep
	if fine > fineCap {
		fine = fineCap
	}
	return fine
}

// CalculateFinesOnDate reports who would be fined and for how much. A user
// is eligible only when their balance was at or below the debtor threshold
// on the reference date AND still is now; a debtor who has since recovered
// is skipped.
func (s *service) CalculateFinesOnDate(ctx context.Context, userIDs []uuid.UUID, referenceDate time.Time) ([]UserFineReport, error) {
	ids, err := s.resolveCandidates(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var reports []UserFineReport
	for _, id := range ids {
		atRef, err := s.balances.Balance(ctx, id, referenceDate)
		if err != nil {
			return nil, err
		}
		if atRef > debtorThreshold {
			continue
		}
		current, err := s.balances.Balance(ctx, id, now)
		if err != nil {
			return nil, err
		}
		if current > debtorThreshold {
			continue
		}
		// atRef is at or below the threshold here, so the fine is non-zero.
		reports = append(reports, UserFineReport{
			UserID:  id,
			Balance: s.moneyOf(atRef),
			Fine:    s.moneyOf(calculateFine(atRef)),
		})
	}
	return reports, nil
}

// HandOutFines fines every eligible debtor in one atomic batch: the handout
// event, each fine, and each fine's debiting transfer commit together or not
// at all. Notifications go out only after the commit.
func (s *service) HandOutFines(ctx context.Context, input HandOutInput) (*HandoutResult, error) {
	referenceDate, err := s.resolveReferenceDate(ctx, input.ReferenceDate)
	if err != nil {
		return nil, err
	}
	reports, err := s.CalculateFinesOnDate(ctx, input.UserIDs, referenceDate)
	if err != nil {
		return nil, err
	}

	result := &HandoutResult{ReferenceDate: referenceDate, Fines: reports}
	if len(reports) == 0 {
		return result, nil
	}

	event := &models.FineHandoutEvent{ReferenceDate: referenceDate}
	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		txUsers := s.users.WithTx(tx)

		if err := repo.CreateHandoutEvent(ctx, event); err != nil {
			return err
		}

		for _, report := range reports {
			user, err := txUsers.FindByID(ctx, report.UserID)
			if err != nil {
				return err
			}

			var groupID uuid.UUID
			if user.CurrentFineGroupID != nil {
				groupID = *user.CurrentFineGroupID
			} else {
				group := &models.UserFineGroup{UserID: user.ID}
				if err := repo.CreateGroup(ctx, group); err != nil {
					return err
				}
				if err := txUsers.SetCurrentFineGroup(ctx, user.ID, &group.ID); err != nil {
					return err
				}
				groupID = group.ID
			}

			previous, err := repo.LatestFineInGroup(ctx, groupID)
			if err != nil {
				return err
			}
			var previousID *uuid.UUID
			if previous != nil {
				previousID = &previous.ID
			}

			// The fine ID is minted up front so the transfer can carry its
			// reason link without mutating either row afterwards.
			fineID := uuid.New()
			transfer, err := ledger.CreateTransferTx(ctx, tx, s.ledgerCfg, ledger.CreateTransferInput{
				FromID:      &user.ID,
				Amount:      report.Fine,
				Description: "fine for standing debt",
				FineID:      &fineID,
			})
			if err != nil {
				return err
			}
			if err := repo.CreateFine(ctx, &models.Fine{
				ID:              fineID,
				HandoutEventID:  event.ID,
				UserFineGroupID: groupID,
				TransferID:      transfer.ID,
				Amount:          report.Fine,
				PreviousFineID:  previousID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.EventID = &event.ID
	s.metrics.IncFineOp("handout")

	s.notifyFined(ctx, reports)
	return result, nil
}

// WaiveFines forgives the user's active fine group: one crediting transfer
// for the group's total, the group marked waived, and the active marker
// cleared. A user without an active group is a no-op.
func (s *service) WaiveFines(ctx context.Context, userID uuid.UUID) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.CurrentFineGroupID == nil {
		return nil
	}
	group, err := s.repo.FindGroupByID(ctx, *user.CurrentFineGroupID)
	if err != nil {
		return err
	}

	var total int64
	for _, fine := range group.Fines {
		total += fine.Amount.Amount
	}

	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if total > 0 {
			transfer, err := ledger.CreateTransferTx(ctx, tx, s.ledgerCfg, ledger.CreateTransferInput{
				ToID:              &user.ID,
				Amount:            s.moneyOf(total),
				Description:       "waived fines",
				WaivedFineGroupID: &group.ID,
			})
			if err != nil {
				return err
			}
			if err := repo.SetGroupWaivedTransfer(ctx, group.ID, transfer.ID); err != nil {
				return err
			}
		}
		return s.users.WithTx(tx).SetCurrentFineGroup(ctx, user.ID, nil)
	})
	if err != nil {
		return err
	}
	s.metrics.IncFineOp("waive")
	return nil
}

// DeleteFine undoes one handed-out fine: the fine row and its debiting
// transfer disappear, the previous-fine chain is repaired, and an emptied
// group is dropped.
func (s *service) DeleteFine(ctx context.Context, fineID uuid.UUID) error {
	fine, err := s.repo.FindFineByID(ctx, fineID)
	if err != nil {
		return err
	}
	group, err := s.repo.FindGroupByID(ctx, fine.UserFineGroupID)
	if err != nil {
		return err
	}
	if group.WaivedTransferID != nil {
		return pkgerrors.New(pkgerrors.CodeConflict, "cannot delete a fine from a waived group")
	}

	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.DeleteFine(ctx, fine); err != nil {
			return err
		}
		if err := repo.DeleteTransfer(ctx, fine.TransferID); err != nil {
			return err
		}
		remaining, err := repo.CountFinesInGroup(ctx, group.ID)
		if err != nil {
			return err
		}
		if remaining > 0 {
			return nil
		}
		if err := s.users.WithTx(tx).SetCurrentFineGroup(ctx, group.UserID, nil); err != nil {
			return err
		}
		return repo.DeleteGroup(ctx, group.ID)
	})
	if err != nil {
		return err
	}
	s.metrics.IncFineOp("delete")
	return nil
}

// SendFineWarnings notifies every would-be debtor without writing anything
// to the ledger. It returns how many warnings went out.
func (s *service) SendFineWarnings(ctx context.Context, userIDs []uuid.UUID, referenceDate time.Time) (int, error) {
	reports, err := s.CalculateFinesOnDate(ctx, userIDs, referenceDate)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, report := range reports {
		user, err := s.users.FindByID(ctx, report.UserID)
		if err != nil {
			return sent, err
		}
		warning := notifier.FineWarning{
			UserID:  user.ID,
			Email:   user.Email,
			Fine:    report.Fine,
			Balance: report.Balance,
		}
		if err := s.notify.SendFineWarning(ctx, warning); err != nil {
			if s.logg != nil {
				s.logg.Error(s.logg.WithField(ctx, "userId", user.ID.String()), "sending fine warning", err)
			}
			continue
		}
		sent++
	}
	s.metrics.IncFineOp("warn")
	return sent, nil
}

func (s *service) resolveCandidates(ctx context.Context, userIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(userIDs) == 0 {
		return s.users.ListActiveIDsByType(ctx,
			enums.UserTypeMember.String(),
			enums.UserTypeOrgan.String(),
		)
	}
	found, err := s.users.FindManyByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	if len(found) != len(userIDs) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unknown user in fine selection")
	}
	ids := make([]uuid.UUID, 0, len(found))
	for _, user := range found {
		if user.IsActive {
			ids = append(ids, user.ID)
		}
	}
	return ids, nil
}

// resolveReferenceDate defaults to the previous handout's reference date so
// consecutive batches fine the same standing debt window.
func (s *service) resolveReferenceDate(ctx context.Context, explicit *time.Time) (time.Time, error) {
	if explicit != nil {
		return *explicit, nil
	}
	latest, err := s.repo.LatestHandoutEvent(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if latest != nil {
		return latest.ReferenceDate, nil
	}
	return time.Now(), nil
}

// notifyFined composes each notice from the committed state: the accumulated
// total of the user's active fine group and a fresh balance replay, not the
// single fine and pre-debit balance of this batch.
func (s *service) notifyFined(ctx context.Context, reports []UserFineReport) {
	now := time.Now()
	for _, report := range reports {
		user, err := s.users.FindByID(ctx, report.UserID)
		if err != nil {
			if s.logg != nil {
				s.logg.Error(ctx, "loading user for fine notice", err)
			}
			continue
		}

		outstanding := report.Fine.Amount
		if user.CurrentFineGroupID != nil {
			group, err := s.repo.FindGroupByID(ctx, *user.CurrentFineGroupID)
			if err != nil {
				if s.logg != nil {
					s.logg.Error(s.logg.WithField(ctx, "userId", user.ID.String()), "loading fine group for notice", err)
				}
				continue
			}
			outstanding = 0
			for _, fine := range group.Fines {
				outstanding += fine.Amount.Amount
			}
		}
		balance, err := s.balances.Balance(ctx, user.ID, now)
		if err != nil {
			if s.logg != nil {
				s.logg.Error(s.logg.WithField(ctx, "userId", user.ID.String()), "reading balance for fine notice", err)
			}
			continue
		}

		notice := notifier.FineNotice{
			UserID:      user.ID,
			Email:       user.Email,
			Outstanding: s.moneyOf(outstanding),
			Balance:     s.moneyOf(balance),
		}
		if err := s.notify.SendFineNotice(ctx, notice); err != nil && s.logg != nil {
			s.logg.Error(s.logg.WithField(ctx, "userId", user.ID.String()), "sending fine notice", err)
		}
	}
}

func (s *service) moneyOf(amount int64) money.Money {
	return money.Money{
		Amount:    amount,
		Currency:  s.ledgerCfg.Currency,
		Precision: s.ledgerCfg.Precision,
	}
}
