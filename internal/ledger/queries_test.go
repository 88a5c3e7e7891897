package ledger_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castlebank/ledger-core/internal/domain"
	"github.com/castlebank/ledger-core/internal/ledger"
	"github.com/castlebank/ledger-core/internal/repository/memory"
)

func newTestQueries(t *testing.T) (*ledger.Engine, *ledger.Queries) {
	t.Helper()
	accounts := memory.NewAccountStore()
	log := memory.NewTransactionLog()
	return ledger.NewEngine(accounts, log, 0), ledger.NewQueries(accounts, log)
}

func TestQueries_GetAccount(t *testing.T) {
	e, q := newTestQueries(t)
	ctx := context.Background()
	a := mustCreate(t, e, "alice", 42)

	got, err := q.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, int64(42), got.Balance)

	_, err = q.GetAccount(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQueries_ListAccounts(t *testing.T) {
	e, q := newTestQueries(t)
	ctx := context.Background()

	first := mustCreate(t, e, "alice", 0)
	second := mustCreate(t, e, "bob", 0)

	accounts, err := q.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, first.ID, accounts[0].ID)
	assert.Equal(t, second.ID, accounts[1].ID)
}

func TestQueries_GetTransaction(t *testing.T) {
	e, q := newTestQueries(t)
	ctx := context.Background()
	a := mustCreate(t, e, "alice", 0)

	_, tx, err := e.Deposit(ctx, ledger.DepositRequest{AccountID: a.ID, Amount: 5})
	require.NoError(t, err)

	got, err := q.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, got.ID)

	_, err = q.GetTransaction(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQueries_ListTransactions(t *testing.T) {
	e, q := newTestQueries(t)
	ctx := context.Background()
	a := mustCreate(t, e, "alice", 0)
	b := mustCreate(t, e, "bob", 0)

	_, _, err := e.Deposit(ctx, ledger.DepositRequest{AccountID: a.ID, Amount: 100})
	require.NoError(t, err)
	_, _, _, err = e.Transfer(ctx, ledger.TransferRequest{SourceID: a.ID, DestinationID: b.ID, Amount: 60})
	require.NoError(t, err)
	_, _, err = e.Withdraw(ctx, ledger.WithdrawRequest{AccountID: a.ID, Amount: 10})
	require.NoError(t, err)

	history, err := q.ListTransactions(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, domain.TransactionKindDeposit, history[0].Kind)
	assert.Equal(t, domain.TransactionKindTransfer, history[1].Kind)
	assert.Equal(t, domain.TransactionKindWithdrawal, history[2].Kind)

	// The transfer shows up on both sides; the deposit and withdrawal only
	// on A's history.
	bHistory, err := q.ListTransactions(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, bHistory, 1)
	assert.Equal(t, domain.TransactionKindTransfer, bHistory[0].Kind)
}

func TestQueries_ListTransactions_UnknownAccount(t *testing.T) {
	_, q := newTestQueries(t)

	_, err := q.ListTransactions(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
