package repository

import "context"

// Repos bundles repositories bound to the same connection or transaction.
type Repos struct {
	Users       UserRepository
	Sessions    SessionRepository
	Households  HouseholdRepository
	Invitations InvitationRepository
	Lists       ListRepository
	Items       ItemRepository
	Expenses    ExpenseRepository
	Incomes     IncomeRepository
	PushTokens  PushTokenRepository
}

// Transactor runs multi-step writes atomically.
type Transactor interface {
	// InTx calls fn with repositories bound to one transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(r Repos) error) error
}

// Store hands out pool-bound repositories and runs transactions.
type Store interface {
	Transactor
	// Repos returns repositories outside any transaction.
	Repos() Repos
}
