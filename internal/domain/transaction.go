package domain

import (
	"time"

	"github.com/google/uuid"
)

type TransactionKind string

const (
	TransactionKindDeposit    TransactionKind = "deposit"
	TransactionKindWithdrawal TransactionKind = "withdrawal"
	TransactionKindTransfer   TransactionKind = "transfer"
)

type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusReversed  TransactionStatus = "reversed"
)

// Transaction is a single funds-movement record. Deposits carry only a
// destination account, withdrawals only a source, transfers both. A
// transfer is one record, never two single-leg records.
//
// Seq is assigned by the log at append time and breaks CreatedAt ties so
// that per-account history order is total.
type Transaction struct {
	ID                   uuid.UUID
	Kind                 TransactionKind
	SourceAccountID      *uuid.UUID
	DestinationAccountID *uuid.UUID
	Amount               int64
	Status               TransactionStatus
	Seq                  int64
	IdempotencyKey       *string
	CreatedAt            time.Time
}

// TransactionDraft is the engine's input to the log. The log assigns ID,
// Seq, CreatedAt and the completed status; a draft carrying an idempotency
// key that the log has already seen resolves to the existing record.
type TransactionDraft struct {
	Kind                 TransactionKind
	SourceAccountID      *uuid.UUID
	DestinationAccountID *uuid.UUID
	Amount               int64
	IdempotencyKey       *string
}

func (t *Transaction) IsReversed() bool {
	return t.Status == TransactionStatusReversed
}

// Touches reports whether the transaction references the given account on
// either leg.
func (t *Transaction) Touches(accountID uuid.UUID) bool {
	if t.SourceAccountID != nil && *t.SourceAccountID == accountID {
		return true
	}
	return t.DestinationAccountID != nil && *t.DestinationAccountID == accountID
}
