// Package notifier delivers out-of-band messages to users. Delivery is
// best-effort and always happens after the triggering database work has
// committed; a failed notification never rolls back ledger state.
package notifier

import (
	"context"

	"github.com/google/uuid"

	"github.com/tbraams/barkeep-backend/pkg/config"
	"github.com/tbraams/barkeep-backend/pkg/logger"
	"github.com/tbraams/barkeep-backend/pkg/money"
)

// FineNotice informs a user that a fine was handed out to them. Outstanding
// is the accumulated total of the user's active fine group, Balance the
// balance after the fine debit.
type FineNotice struct {
	UserID      uuid.UUID
	Email       string
	Outstanding money.Money
	Balance     money.Money
}

// FineWarning informs a user that they are about to be fined unless their
// balance recovers.
type FineWarning struct {
	UserID  uuid.UUID
	Email   string
	Fine    money.Money
	Balance money.Money
}

// Notifier is the delivery surface the fine engine talks to.
type Notifier interface {
	SendFineNotice(ctx context.Context, notice FineNotice) error
	SendFineWarning(ctx context.Context, warning FineWarning) error
}

// LogNotifier writes notifications to the structured log. It stands in for a
// real mail transport in dev and test environments.
type LogNotifier struct {
	logg *logger.Logger
	from string
}

// NewLogNotifier builds the log-backed notifier.
func NewLogNotifier(logg *logger.Logger, cfg config.MailConfig) *LogNotifier {
	return &LogNotifier{logg: logg, from: cfg.FromAddress}
}

func (n *LogNotifier) SendFineNotice(ctx context.Context, notice FineNotice) error {
	if n.logg == nil {
		return nil
	}
	ctx = n.logg.WithFields(ctx, map[string]any{
		"from":        n.from,
		"to":          notice.Email,
		"userId":      notice.UserID.String(),
		"outstanding": notice.Outstanding.String(),
		"balance":     notice.Balance.String(),
	})
	n.logg.Info(ctx, "fine notice")
	return nil
}

func (n *LogNotifier) SendFineWarning(ctx context.Context, warning FineWarning) error {
	if n.logg == nil {
		return nil
	}
	ctx = n.logg.WithFields(ctx, map[string]any{
		"from":    n.from,
		"to":      warning.Email,
		"userId":  warning.UserID.String(),
		"fine":    warning.Fine.String(),
		"balance": warning.Balance.String(),
	})
	n.logg.Info(ctx, "fine warning")
	return nil
}
