package contract

import "context"

// Store persists contracts.
//
// Contracts are written once by Save; afterwards only the delivery fields
// (statuses, attempt count, last error) change, through UpdateSync.
//
// IMPLEMENTATIONS:
//   - store/sqlite: production
//   - contract/store: in-memory, for tests and local development
type Store interface {
	// Save inserts a new contract. The ID must be unique.
	Save(ctx context.Context, c *Contract) error

	// Get returns the contract or ErrNotFound.
	Get(ctx context.Context, id string) (*Contract, error)

	// List returns all contracts, newest first.
	List(ctx context.Context) ([]Contract, error)

	// ListPendingSync returns contracts with an undelivered channel and fewer
	// than maxAttempts delivery attempts, oldest first.
	ListPendingSync(ctx context.Context, maxAttempts int) ([]Contract, error)

	// UpdateSync records the outcome of a delivery round.
	UpdateSync(ctx context.Context, id string, update SyncUpdate) error
}

// SyncUpdate is the result of one delivery round for a contract.
type SyncUpdate struct {
	EmailStatus   SyncStatus
	CRMStatus     SyncStatus
	SyncAttempts  int
	LastSyncError string
}
