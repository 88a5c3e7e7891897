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

const transactionColumns = `id, kind, source_account_id, destination_account_id,
	amount, status, seq, idempotency_key, created_at`

// TransactionRepository is the Postgres-backed transaction log. Records are
// append-mostly: the only in-place change ever made is the completed to
// reversed status flip.
type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Append(ctx context.Context, draft domain.TransactionDraft) (*domain.Transaction, error) {
	t := &domain.Transaction{
		ID:                   uuid.New(),
		Kind:                 draft.Kind,
		SourceAccountID:      draft.SourceAccountID,
		DestinationAccountID: draft.DestinationAccountID,
		Amount:               draft.Amount,
		Status:               domain.TransactionStatusCompleted,
		IdempotencyKey:       draft.IdempotencyKey,
		CreatedAt:            time.Now().UTC(),
	}

	row := r.db.QueryRowContext(ctx,
		`INSERT INTO transactions (
			id, kind, source_account_id, destination_account_id,
			amount, status, idempotency_key, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING seq`,
		t.ID, t.Kind, t.SourceAccountID, t.DestinationAccountID,
		t.Amount, t.Status, t.IdempotencyKey, t.CreatedAt,
	)
	err := row.Scan(&t.Seq)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("Append: %w", err)
	}

	// Conflict on the idempotency key: the record already exists.
	if draft.IdempotencyKey == nil {
		return nil, fmt.Errorf("Append: insert returned no row")
	}
	existing, err := r.getByIdempotencyKey(ctx, *draft.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("Append: %w", err)
	}
	return existing, nil
}

func (r *TransactionRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("Get: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("Get: %w", err)
	}
	return t, nil
}

func (r *TransactionRepository) getByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE idempotency_key = $1`, key,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("getByIdempotencyKey: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getByIdempotencyKey: %w", err)
	}
	return t, nil
}

func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE source_account_id = $1 OR destination_account_id = $1
		ORDER BY created_at, seq`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByAccount: %w", err)
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByAccount: scan: %w", err)
		}
		transactions = append(transactions, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByAccount: rows: %w", err)
	}
	return transactions, nil
}

func (r *TransactionRepository) MarkReversed(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE transactions SET status = $1
		WHERE id = $2 AND status = $3
		RETURNING `+transactionColumns,
		domain.TransactionStatusReversed, id, domain.TransactionStatusCompleted,
	)
	t, err := scanTransaction(row)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("MarkReversed: %w", err)
	}

	var exists bool
	probeErr := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM transactions WHERE id = $1)`, id,
	).Scan(&exists)
	if probeErr != nil {
		return nil, fmt.Errorf("MarkReversed: probe: %w", probeErr)
	}
	if !exists {
		return nil, fmt.Errorf("MarkReversed: %w", domain.ErrNotFound)
	}
	return nil, fmt.Errorf("MarkReversed: %w", domain.ErrAlreadyReversed)
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var t domain.Transaction
	err := s.Scan(
		&t.ID, &t.Kind, &t.SourceAccountID, &t.DestinationAccountID,
		&t.Amount, &t.Status, &t.Seq, &t.IdempotencyKey, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
