package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/castlebank/ledger-core/internal/domain"
	"github.com/castlebank/ledger-core/internal/logging"
)

func (e *Engine) CreateAccount(ctx context.Context, owner string, initialBalance int64) (*domain.Account, error) {
	if initialBalance < 0 {
		return nil, fmt.Errorf("CreateAccount: %w", domain.ErrInvalidAmount)
	}

	account, err := e.accounts.Create(ctx, owner, initialBalance)
	if err != nil {
		return nil, fmt.Errorf("CreateAccount: %w", err)
	}

	logging.FromContext(ctx).Info("account created",
		"account_id", account.ID,
		"owner", owner,
		"initial_balance", initialBalance,
	)
	return account, nil
}

// CloseAccount transitions an account to closed. Accounts are never deleted
// while transactions reference them; closing is the terminal lifecycle step
// and requires a zero balance.
func (e *Engine) CloseAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	var closed *domain.Account
	err := e.retryOnConflict(ctx, func() error {
		a, err := e.accounts.Get(ctx, accountID)
		if err != nil {
			return err
		}
		if a.IsClosed() {
			return domain.ErrAccountClosed
		}
		if a.Balance != 0 {
			return domain.ErrNonZeroBalance
		}
		closed, err = e.accounts.CompareAndUpdate(ctx, accountID, a.Version, 0, domain.AccountStatusClosed)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("CloseAccount: %w", err)
	}

	logging.FromContext(ctx).Info("account closed", "account_id", accountID)
	return closed, nil
}
