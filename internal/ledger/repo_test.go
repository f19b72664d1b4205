package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tbraams/barkeep-backend/pkg/db/models"
	pkgerrors "github.com/tbraams/barkeep-backend/pkg/errors"
	"github.com/tbraams/barkeep-backend/pkg/money"
	"github.com/tbraams/barkeep-backend/pkg/pagination"
)

func TestTransferImmutability(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	repo := NewRepository(env.conn)
	payee := env.mustCreateUser(t, "Payee")

	transfer := &models.Transfer{
		ToID:   &payee.ID,
		Amount: money.MustNew(500, "EUR", 2),
	}
	require.NoError(t, repo.CreateTransfer(ctx, transfer))

	err := env.conn.Model(transfer).Update("description", "rewritten").Error
	require.Error(t, err)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeImmutable))
}

func TestListTransfersFiltersByAccount(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	repo := NewRepository(env.conn)
	alice := env.mustCreateUser(t, "Alice")
	bob := env.mustCreateUser(t, "Bob")

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.CreateTransfer(ctx, &models.Transfer{
			ToID:   &alice.ID,
			Amount: money.MustNew(100, "EUR", 2),
		}))
	}
	require.NoError(t, repo.CreateTransfer(ctx, &models.Transfer{
		FromID: &alice.ID,
		ToID:   &bob.ID,
		Amount: money.MustNew(50, "EUR", 2),
	}))

	found, total, err := repo.ListTransfers(ctx, TransferFilter{
		AccountID: &alice.ID,
		Params:    pagination.Params{Take: 10},
	})
	require.NoError(t, err)
	require.EqualValues(t, 4, total)
	require.Len(t, found, 4)

	found, total, err = repo.ListTransfers(ctx, TransferFilter{
		AccountID: &bob.ID,
		Params:    pagination.Params{Take: 10},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, found, 1)
}

func TestBalanceReplaysBothLedgerInputs(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	repo := NewRepository(env.conn)
	setup := env.mustCreateSellablePOS(t, 150)
	payer := env.mustCreateUser(t, "Payer")

	require.NoError(t, repo.CreateTransfer(ctx, &models.Transfer{
		ToID:   &payer.ID,
		Amount: money.MustNew(1000, "EUR", 2),
	}))

	_, err := env.ledger.RecordTransaction(ctx, RecordTransactionInput{
		FromID:        payer.ID,
		PointOfSaleID: setup.pos.ID,
		SubTransactions: []SubTransactionInput{{
			ContainerID: setup.container.ID,
			Rows:        []RowInput{{ProductID: setup.product.ID, Quantity: 2}},
		}},
	})
	require.NoError(t, err)

	balance, err := repo.Balance(ctx, payer.ID, time.Now())
	require.NoError(t, err)
	require.EqualValues(t, 700, balance)

	sellerBalance, err := repo.Balance(ctx, setup.seller.ID, time.Now())
	require.NoError(t, err)
	require.EqualValues(t, 300, sellerBalance)

	// An account with no ledger entries replays to zero.
	idle := env.mustCreateUser(t, "Idle")
	idleBalance, err := repo.Balance(ctx, idle.ID, time.Now())
	require.NoError(t, err)
	require.Zero(t, idleBalance)
}
