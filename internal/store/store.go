// Package store defines the persistence contract shared by the local and
// remote stores. Both variants expose the same collection CRUD so callers
// above the reconciliation layer never need to know which one is active.
package store

import (
	"context"
	"errors"

	"github.com/dvloznov/spendlens/internal/domain"
)

// ErrNotFound is returned (wrapped) when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrExists is returned (wrapped) when inserting a record whose key is
// already taken.
var ErrExists = errors.New("already exists")

// Store is the persistence contract. Implementations are safe for
// concurrent use.
type Store interface {
	// ListTransactions returns every transaction ordered by date, then
	// creation time.
	ListTransactions(ctx context.Context) ([]domain.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	InsertTransactions(ctx context.Context, txns []domain.Transaction) error
	UpdateTransaction(ctx context.Context, txn domain.Transaction) error
	// DeleteTransactions removes the given ids and returns the removed
	// records so the caller can record an invertible history entry.
	// Unknown ids are skipped.
	DeleteTransactions(ctx context.Context, ids []string) ([]domain.Transaction, error)

	ListCategories(ctx context.Context) ([]domain.Category, error)
	InsertCategory(ctx context.Context, c domain.Category) error
	// RenameCategory updates the category and every referencing transaction
	// and vendor mapping as a single logical operation.
	RenameCategory(ctx context.Context, oldName, newName string) error
	// DeleteCategory removes the category, reassigns its transactions to
	// Unassigned and drops vendor mappings that pointed at it.
	DeleteCategory(ctx context.Context, name string) error

	ListAccountTypes(ctx context.Context) ([]domain.AccountType, error)
	InsertAccountType(ctx context.Context, at domain.AccountType) error

	VendorMap(ctx context.Context) (domain.VendorMap, error)
	PutVendor(ctx context.Context, key, category string) error

	// Clear wipes every collection. Used to empty the local store once its
	// contents have been merged into the remote one.
	Clear(ctx context.Context) error
}
