package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/castlebank/ledger-core/internal/domain"
)

// Queries is the read side of the ledger. It observes the same consistency
// view as the engine because balance updates commit before their transaction
// records are appended: a listed record's effect is always visible in the
// account balance.
type Queries struct {
	accounts AccountStore
	log      TransactionLog
}

func NewQueries(accounts AccountStore, log TransactionLog) *Queries {
	return &Queries{accounts: accounts, log: log}
}

func (q *Queries) GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	a, err := q.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	return a, nil
}

func (q *Queries) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	accounts, err := q.accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: %w", err)
	}
	return accounts, nil
}

func (q *Queries) GetTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	t, err := q.log.Get(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	return t, nil
}

// ListTransactions returns the account's full history, ordered by creation
// time with insertion order breaking ties.
func (q *Queries) ListTransactions(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	if _, err := q.accounts.Get(ctx, accountID); err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	transactions, err := q.log.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	return transactions, nil
}
