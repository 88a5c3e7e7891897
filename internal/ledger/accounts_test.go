package ledger_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castlebank/ledger-core/internal/domain"
	"github.com/castlebank/ledger-core/internal/ledger"
)

func TestCreateAccount(t *testing.T) {
	e, _, _ := newTestEngine(t)

	a, err := e.CreateAccount(context.Background(), "alice", 500)
	require.NoError(t, err)
	assert.Equal(t, "alice", a.Owner)
	assert.Equal(t, int64(500), a.Balance)
	assert.Equal(t, domain.AccountStatusActive, a.Status)
	assert.Equal(t, int64(1), a.Version)
}

func TestCreateAccount_NegativeInitialBalance(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, err := e.CreateAccount(context.Background(), "alice", -1)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestCloseAccount(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	a := mustCreate(t, e, "alice", 0)

	closed, err := e.CloseAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusClosed, closed.Status)
	assert.Equal(t, a.Version+1, closed.Version)
}

func TestCloseAccount_NonZeroBalance(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	a := mustCreate(t, e, "alice", 10)

	_, err := e.CloseAccount(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrNonZeroBalance)
}

func TestCloseAccount_AlreadyClosed(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	a := mustCreate(t, e, "alice", 0)

	_, err := e.CloseAccount(ctx, a.ID)
	require.NoError(t, err)

	_, err = e.CloseAccount(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrAccountClosed)
}

func TestCloseAccount_NotFound(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, err := e.CloseAccount(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCloseAccount_ReopensNothing(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	a := mustCreate(t, e, "alice", 0)

	_, err := e.CloseAccount(ctx, a.ID)
	require.NoError(t, err)

	// Every mutation against a closed account is rejected.
	_, _, err = e.Withdraw(ctx, ledger.WithdrawRequest{AccountID: a.ID, Amount: 1})
	assert.ErrorIs(t, err, domain.ErrAccountClosed)
}
