package domain

import (
	"time"

	"github.com/google/uuid"
)

type AccountStatus string

const (
	AccountStatusActive AccountStatus = "active"
	AccountStatusClosed AccountStatus = "closed"
)

// Account balances are held in minor currency units. Version is the
// optimistic-concurrency token: every successful mutation increments it,
// and conditional updates assert the version they read.
type Account struct {
	ID        uuid.UUID
	Owner     string
	Balance   int64
	Status    AccountStatus
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a *Account) IsClosed() bool {
	return a.Status == AccountStatusClosed
}
