// Package memory holds mutex-guarded in-process implementations of the
// account store and transaction log contracts. They back the unit tests and
// the dev profile of ledgerd; the Postgres implementations in the parent
// package are the durable versions of the same contracts.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/castlebank/ledger-core/internal/domain"
)

type AccountStore struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*domain.Account
	order    []uuid.UUID
}

func NewAccountStore() *AccountStore {
	return &AccountStore{accounts: make(map[uuid.UUID]*domain.Account)}
}

func (s *AccountStore) Get(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *AccountStore) Create(ctx context.Context, owner string, initialBalance int64) (*domain.Account, error) {
	now := time.Now().UTC()
	a := &domain.Account{
		ID:        uuid.New(),
		Owner:     owner,
		Balance:   initialBalance,
		Status:    domain.AccountStatusActive,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
	s.order = append(s.order, a.ID)
	cp := *a
	return &cp, nil
}

func (s *AccountStore) List(ctx context.Context) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	accounts := make([]domain.Account, 0, len(s.order))
	for _, id := range s.order {
		accounts = append(accounts, *s.accounts[id])
	}
	return accounts, nil
}

// CompareAndUpdate verifies the version and applies the update under one
// critical section, so concurrent callers racing on the same account observe
// exactly one winner per version.
func (s *AccountStore) CompareAndUpdate(ctx context.Context, id uuid.UUID, expectedVersion int64, newBalance int64, newStatus domain.AccountStatus) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if a.Version != expectedVersion {
		return nil, domain.ErrVersionConflict
	}

	a.Balance = newBalance
	a.Status = newStatus
	a.Version++
	a.UpdatedAt = time.Now().UTC()
	cp := *a
	return &cp, nil
}

type TransactionLog struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*domain.Transaction
	byKey   map[string]*domain.Transaction
	ordered []*domain.Transaction
	seq     int64
	lastAt  time.Time
}

func NewTransactionLog() *TransactionLog {
	return &TransactionLog{
		byID:  make(map[uuid.UUID]*domain.Transaction),
		byKey: make(map[string]*domain.Transaction),
	}
}

func (l *TransactionLog) Append(ctx context.Context, draft domain.TransactionDraft) (*domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if draft.IdempotencyKey != nil {
		if existing, ok := l.byKey[*draft.IdempotencyKey]; ok {
			cp := *existing
			return &cp, nil
		}
	}

	// Clamp so CreatedAt never runs backwards within the log even if the
	// wall clock does.
	now := time.Now().UTC()
	if now.Before(l.lastAt) {
		now = l.lastAt
	}
	l.lastAt = now
	l.seq++

	t := &domain.Transaction{
		ID:                   uuid.New(),
		Kind:                 draft.Kind,
		SourceAccountID:      draft.SourceAccountID,
		DestinationAccountID: draft.DestinationAccountID,
		Amount:               draft.Amount,
		Status:               domain.TransactionStatusCompleted,
		Seq:                  l.seq,
		IdempotencyKey:       draft.IdempotencyKey,
		CreatedAt:            now,
	}
	l.byID[t.ID] = t
	if t.IdempotencyKey != nil {
		l.byKey[*t.IdempotencyKey] = t
	}
	l.ordered = append(l.ordered, t)

	cp := *t
	return &cp, nil
}

func (l *TransactionLog) Get(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (l *TransactionLog) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var transactions []domain.Transaction
	for _, t := range l.ordered {
		if t.Touches(accountID) {
			transactions = append(transactions, *t)
		}
	}
	sort.SliceStable(transactions, func(i, j int) bool {
		if !transactions[i].CreatedAt.Equal(transactions[j].CreatedAt) {
			return transactions[i].CreatedAt.Before(transactions[j].CreatedAt)
		}
		return transactions[i].Seq < transactions[j].Seq
	})
	return transactions, nil
}

func (l *TransactionLog) MarkReversed(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if t.Status == domain.TransactionStatusReversed {
		return nil, domain.ErrAlreadyReversed
	}
	t.Status = domain.TransactionStatusReversed
	cp := *t
	return &cp, nil
}
