// Package ledger implements the ledger core: the deposit, withdraw, transfer
// and reversal operations over an injected account store and transaction log.
// The engine is stateless between calls and safe for concurrent use; the only
// serialization point is the store's compare-and-update version check.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/castlebank/ledger-core/internal/domain"
	"github.com/castlebank/ledger-core/internal/logging"
)

const defaultMaxRetries = 8

type AccountStore interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	Create(ctx context.Context, owner string, initialBalance int64) (*domain.Account, error)
	List(ctx context.Context) ([]domain.Account, error)
	CompareAndUpdate(ctx context.Context, id uuid.UUID, expectedVersion int64, newBalance int64, newStatus domain.AccountStatus) (*domain.Account, error)
}

type TransactionLog interface {
	Append(ctx context.Context, draft domain.TransactionDraft) (*domain.Transaction, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error)
	MarkReversed(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
}

type Engine struct {
	accounts   AccountStore
	log        TransactionLog
	maxRetries uint64
}

func NewEngine(accounts AccountStore, log TransactionLog, maxRetries uint64) *Engine {
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	return &Engine{accounts: accounts, log: log, maxRetries: maxRetries}
}

type DepositRequest struct {
	AccountID      uuid.UUID
	Amount         int64
	IdempotencyKey *string
}

type WithdrawRequest struct {
	AccountID      uuid.UUID
	Amount         int64
	IdempotencyKey *string
}

type TransferRequest struct {
	SourceID       uuid.UUID
	DestinationID  uuid.UUID
	Amount         int64
	IdempotencyKey *string
}

func (e *Engine) Deposit(ctx context.Context, req DepositRequest) (*domain.Account, *domain.Transaction, error) {
	if req.Amount <= 0 {
		return nil, nil, fmt.Errorf("Deposit: %w", domain.ErrInvalidAmount)
	}

	account, err := e.applyDelta(ctx, req.AccountID, req.Amount, true)
	if err != nil {
		return nil, nil, fmt.Errorf("Deposit: %w", err)
	}

	tx, err := e.log.Append(ctx, domain.TransactionDraft{
		Kind:                 domain.TransactionKindDeposit,
		DestinationAccountID: &req.AccountID,
		Amount:               req.Amount,
		IdempotencyKey:       req.IdempotencyKey,
	})
	if err != nil {
		e.undoLegs(ctx, []leg{{req.AccountID, req.Amount}})
		return nil, nil, fmt.Errorf("Deposit: append: %w", err)
	}

	logging.FromContext(ctx).Info("deposit completed",
		"transaction_id", tx.ID,
		"account_id", req.AccountID,
		"amount", req.Amount,
		"balance", account.Balance,
	)
	return account, tx, nil
}

func (e *Engine) Withdraw(ctx context.Context, req WithdrawRequest) (*domain.Account, *domain.Transaction, error) {
	if req.Amount <= 0 {
		return nil, nil, fmt.Errorf("Withdraw: %w", domain.ErrInvalidAmount)
	}

	account, err := e.applyDelta(ctx, req.AccountID, -req.Amount, true)
	if err != nil {
		return nil, nil, fmt.Errorf("Withdraw: %w", err)
	}

	tx, err := e.log.Append(ctx, domain.TransactionDraft{
		Kind:            domain.TransactionKindWithdrawal,
		SourceAccountID: &req.AccountID,
		Amount:          req.Amount,
		IdempotencyKey:  req.IdempotencyKey,
	})
	if err != nil {
		e.undoLegs(ctx, []leg{{req.AccountID, -req.Amount}})
		return nil, nil, fmt.Errorf("Withdraw: append: %w", err)
	}

	logging.FromContext(ctx).Info("withdrawal completed",
		"transaction_id", tx.ID,
		"account_id", req.AccountID,
		"amount", req.Amount,
		"balance", account.Balance,
	)
	return account, tx, nil
}

// Transfer moves funds between two accounts as a saga: debit the source
// first, then credit the destination. The debit-first order keeps any
// mid-flight window conservative: an external reader can observe missing
// funds, never duplicated ones. If the credit leg fails after the debit
// committed, the debit is compensated before the error is returned.
func (e *Engine) Transfer(ctx context.Context, req TransferRequest) (*domain.Account, *domain.Account, *domain.Transaction, error) {
	if req.Amount <= 0 {
		return nil, nil, nil, fmt.Errorf("Transfer: %w", domain.ErrInvalidAmount)
	}
	if req.SourceID == req.DestinationID {
		return nil, nil, nil, fmt.Errorf("Transfer: %w", domain.ErrSameAccount)
	}

	// Check the destination up front so the source is never debited for a
	// transfer that cannot possibly complete.
	dest, err := e.accounts.Get(ctx, req.DestinationID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("Transfer: destination: %w", err)
	}
	if dest.IsClosed() {
		return nil, nil, nil, fmt.Errorf("Transfer: destination: %w", domain.ErrAccountClosed)
	}

	source, err := e.applyDelta(ctx, req.SourceID, -req.Amount, true)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("Transfer: debit: %w", err)
	}

	dest, err = e.applyDelta(ctx, req.DestinationID, req.Amount, true)
	if err != nil {
		e.undoLegs(ctx, []leg{{req.SourceID, -req.Amount}})
		return nil, nil, nil, fmt.Errorf("Transfer: credit: %w", err)
	}

	tx, err := e.log.Append(ctx, domain.TransactionDraft{
		Kind:                 domain.TransactionKindTransfer,
		SourceAccountID:      &req.SourceID,
		DestinationAccountID: &req.DestinationID,
		Amount:               req.Amount,
		IdempotencyKey:       req.IdempotencyKey,
	})
	if err != nil {
		e.undoLegs(ctx, []leg{{req.SourceID, -req.Amount}, {req.DestinationID, req.Amount}})
		return nil, nil, nil, fmt.Errorf("Transfer: append: %w", err)
	}

	logging.FromContext(ctx).Info("transfer completed",
		"transaction_id", tx.ID,
		"source_account", req.SourceID,
		"destination_account", req.DestinationID,
		"amount", req.Amount,
	)
	return source, dest, tx, nil
}

// ReverseTransaction applies the inverse balance effect of a completed
// transaction and flips its status to reversed. Reversal ignores account
// status, since a closed account can still give back funds it owes, but a
// reversal that would drive any balance negative fails with
// ErrInsufficientFunds and leaves everything unchanged.
func (e *Engine) ReverseTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	tx, err := e.log.Get(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("ReverseTransaction: %w", err)
	}
	if tx.IsReversed() {
		return nil, fmt.Errorf("ReverseTransaction: %w", domain.ErrAlreadyReversed)
	}

	var legs []leg
	switch tx.Kind {
	case domain.TransactionKindDeposit:
		legs = []leg{{*tx.DestinationAccountID, -tx.Amount}}
	case domain.TransactionKindWithdrawal:
		legs = []leg{{*tx.SourceAccountID, tx.Amount}}
	case domain.TransactionKindTransfer:
		// Reverse transfer: debit the destination first, mirroring the
		// conservative ordering of the forward saga.
		legs = []leg{
			{*tx.DestinationAccountID, -tx.Amount},
			{*tx.SourceAccountID, tx.Amount},
		}
	}

	if err := e.applyLegs(ctx, legs); err != nil {
		return nil, fmt.Errorf("ReverseTransaction: %w", err)
	}

	reversed, err := e.log.MarkReversed(ctx, transactionID)
	if err != nil {
		// Lost a race to a concurrent reversal, or the record vanished:
		// give the balance effects back.
		e.undoLegs(ctx, legs)
		return nil, fmt.Errorf("ReverseTransaction: mark: %w", err)
	}

	logging.FromContext(ctx).Info("transaction reversed",
		"transaction_id", transactionID,
		"kind", tx.Kind,
		"amount", tx.Amount,
	)
	return reversed, nil
}

// leg is one signed balance effect of a multi-account operation.
type leg struct {
	accountID uuid.UUID
	delta     int64
}

// applyLegs applies balance effects in order. If a later leg fails, the
// already-applied prefix is compensated in reverse order before the error is
// returned, so the whole set is all-or-nothing as far as any external reader
// can tell once the call returns.
func (e *Engine) applyLegs(ctx context.Context, legs []leg) error {
	for i, l := range legs {
		if _, err := e.applyDelta(ctx, l.accountID, l.delta, false); err != nil {
			e.undoLegs(ctx, legs[:i])
			return err
		}
	}
	return nil
}

// undoLegs compensates committed legs in reverse order. Compensation ignores
// account status and keeps going past individual failures: giving money back
// must not be blocked by a state change that happened mid-saga, and a
// compensation failure is loud in the log rather than silently dropped.
func (e *Engine) undoLegs(ctx context.Context, legs []leg) {
	for i := len(legs) - 1; i >= 0; i-- {
		l := legs[i]
		if _, err := e.applyDelta(ctx, l.accountID, -l.delta, false); err != nil {
			logging.FromContext(ctx).Error("saga compensation failed",
				"account_id", l.accountID,
				"delta", -l.delta,
				"error", err,
			)
		}
	}
}

// applyDelta runs one read-validate-compare-and-update cycle for a single
// account, retrying from a fresh read on version conflicts. Sufficiency is
// always checked against the same snapshot whose version the update asserts,
// so it can never pass against stale data.
func (e *Engine) applyDelta(ctx context.Context, id uuid.UUID, delta int64, enforceActive bool) (*domain.Account, error) {
	var updated *domain.Account
	err := e.retryOnConflict(ctx, func() error {
		a, err := e.accounts.Get(ctx, id)
		if err != nil {
			return err
		}
		if enforceActive && a.IsClosed() {
			return domain.ErrAccountClosed
		}
		newBalance := a.Balance + delta
		if newBalance < 0 {
			return domain.ErrInsufficientFunds
		}
		updated, err = e.accounts.CompareAndUpdate(ctx, id, a.Version, newBalance, a.Status)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// retryOnConflict drives op through a capped exponential backoff. Version
// conflicts are the only retryable failure; everything else aborts the loop
// immediately. An exhausted budget surfaces as ErrContention so callers never
// see the internal conflict error.
func (e *Engine) retryOnConflict(ctx context.Context, op func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(newConflictBackOff(), e.maxRetries), ctx)

	err := backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrVersionConflict) {
			return err
		}
		return backoff.Permanent(err)
	}, policy)

	if errors.Is(err, domain.ErrVersionConflict) {
		return fmt.Errorf("%v: %w", err, domain.ErrContention)
	}
	return err
}

func newConflictBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Millisecond
	b.MaxInterval = 50 * time.Millisecond
	b.MaxElapsedTime = 0
	return b
}
