package memory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castlebank/ledger-core/internal/domain"
	"github.com/castlebank/ledger-core/internal/repository/memory"
)

func TestAccountStore_CompareAndUpdate(t *testing.T) {
	s := memory.NewAccountStore()
	ctx := context.Background()

	a, err := s.Create(ctx, "alice", 100)
	require.NoError(t, err)

	updated, err := s.CompareAndUpdate(ctx, a.ID, a.Version, 150, a.Status)
	require.NoError(t, err)
	assert.Equal(t, int64(150), updated.Balance)
	assert.Equal(t, a.Version+1, updated.Version)

	// The stale version loses.
	_, err = s.CompareAndUpdate(ctx, a.ID, a.Version, 999, a.Status)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	_, err = s.CompareAndUpdate(ctx, uuid.New(), 1, 0, domain.AccountStatusActive)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// Racing writers against the same version: exactly one compare-and-update
// per version may win.
func TestAccountStore_CompareAndUpdateRace(t *testing.T) {
	s := memory.NewAccountStore()
	ctx := context.Background()

	a, err := s.Create(ctx, "alice", 0)
	require.NoError(t, err)

	const n = 16
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func(balance int64) {
			defer wg.Done()
			_, err := s.CompareAndUpdate(ctx, a.ID, a.Version, balance, a.Status)
			results <- err
		}(int64(i))
	}
	wg.Wait()
	close(results)

	var wins int
	for err := range results {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, domain.ErrVersionConflict)
		}
	}
	assert.Equal(t, 1, wins)
}

func TestAccountStore_GetReturnsCopy(t *testing.T) {
	s := memory.NewAccountStore()
	ctx := context.Background()

	a, err := s.Create(ctx, "alice", 10)
	require.NoError(t, err)

	got, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	got.Balance = 99999

	again, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), again.Balance, "mutating a returned account must not leak into the store")
}

func TestTransactionLog_AppendIdempotency(t *testing.T) {
	l := memory.NewTransactionLog()
	ctx := context.Background()

	accountID := uuid.New()
	key := "dep-2024-0001"
	draft := domain.TransactionDraft{
		Kind:                 domain.TransactionKindDeposit,
		DestinationAccountID: &accountID,
		Amount:               50,
		IdempotencyKey:       &key,
	}

	first, err := l.Append(ctx, draft)
	require.NoError(t, err)
	second, err := l.Append(ctx, draft)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same key resolves to the same record")

	history, err := l.ListByAccount(ctx, accountID)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	// No key: every append is a fresh record.
	draft.IdempotencyKey = nil
	third, err := l.Append(ctx, draft)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestTransactionLog_ListByAccountOrdering(t *testing.T) {
	l := memory.NewTransactionLog()
	ctx := context.Background()

	a := uuid.New()
	b := uuid.New()

	_, err := l.Append(ctx, domain.TransactionDraft{
		Kind: domain.TransactionKindDeposit, DestinationAccountID: &a, Amount: 1,
	})
	require.NoError(t, err)
	_, err = l.Append(ctx, domain.TransactionDraft{
		Kind: domain.TransactionKindTransfer, SourceAccountID: &a, DestinationAccountID: &b, Amount: 2,
	})
	require.NoError(t, err)
	_, err = l.Append(ctx, domain.TransactionDraft{
		Kind: domain.TransactionKindWithdrawal, SourceAccountID: &b, Amount: 3,
	})
	require.NoError(t, err)

	history, err := l.ListByAccount(ctx, a)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.TransactionKindDeposit, history[0].Kind)
	assert.Equal(t, domain.TransactionKindTransfer, history[1].Kind)
	assert.Less(t, history[0].Seq, history[1].Seq)

	history, err = l.ListByAccount(ctx, b)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.TransactionKindTransfer, history[0].Kind)
	assert.Equal(t, domain.TransactionKindWithdrawal, history[1].Kind)
}

func TestTransactionLog_MarkReversed(t *testing.T) {
	l := memory.NewTransactionLog()
	ctx := context.Background()

	accountID := uuid.New()
	tx, err := l.Append(ctx, domain.TransactionDraft{
		Kind: domain.TransactionKindDeposit, DestinationAccountID: &accountID, Amount: 5,
	})
	require.NoError(t, err)

	reversed, err := l.MarkReversed(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusReversed, reversed.Status)

	_, err = l.MarkReversed(ctx, tx.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyReversed)

	_, err = l.MarkReversed(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
