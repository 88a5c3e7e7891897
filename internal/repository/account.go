package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/castlebank/ledger-core/internal/domain"
)

const accountColumns = `id, owner, balance, status, version, created_at, updated_at`

// AccountRepository is the Postgres-backed account store. The single
// concurrency primitive it offers is CompareAndUpdate; balances are never
// written through any other path.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("Get: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("Get: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) Create(ctx context.Context, owner string, initialBalance int64) (*domain.Account, error) {
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
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, owner, balance, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.Owner, a.Balance, a.Status, a.Version, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) List(ctx context.Context) ([]domain.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("List: scan: %w", err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: rows: %w", err)
	}
	return accounts, nil
}

// CompareAndUpdate applies the new balance and status only if the stored
// version still equals expectedVersion, incrementing the version in the same
// statement. A zero-row update is disambiguated into ErrNotFound or
// ErrVersionConflict with a follow-up existence probe.
func (r *AccountRepository) CompareAndUpdate(ctx context.Context, id uuid.UUID, expectedVersion int64, newBalance int64, newStatus domain.AccountStatus) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE accounts
		SET balance = $1, status = $2, version = version + 1, updated_at = $3
		WHERE id = $4 AND version = $5
		RETURNING `+accountColumns,
		newBalance, newStatus, time.Now().UTC(), id, expectedVersion,
	)
	a, err := scanAccount(row)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("CompareAndUpdate: %w", err)
	}

	var exists bool
	probeErr := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id,
	).Scan(&exists)
	if probeErr != nil {
		return nil, fmt.Errorf("CompareAndUpdate: probe: %w", probeErr)
	}
	if !exists {
		return nil, fmt.Errorf("CompareAndUpdate: %w", domain.ErrNotFound)
	}
	return nil, fmt.Errorf("CompareAndUpdate: %w", domain.ErrVersionConflict)
}

func scanAccount(s scanner) (*domain.Account, error) {
	var a domain.Account
	err := s.Scan(
		&a.ID, &a.Owner, &a.Balance, &a.Status, &a.Version,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
