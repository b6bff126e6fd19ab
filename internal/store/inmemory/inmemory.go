// Package inmemory is the local store variant: everything lives in process
// memory and is lost on restart. It backs unauthenticated sessions and
// tests.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/spendlens/internal/domain"
	"github.com/dvloznov/spendlens/internal/store"
)

// Store holds all collections behind one mutex. Reads return copies so
// callers can never mutate shared state.
type Store struct {
	mu           sync.RWMutex
	txns         map[string]domain.Transaction
	categories   []domain.Category
	accountTypes []domain.AccountType
	vendors      domain.VendorMap
}

func NewStore() *Store {
	return &Store{
		txns:    make(map[string]domain.Transaction),
		vendors: domain.VendorMap{},
	}
}

func (s *Store) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Transaction, 0, len(s.txns))
	for _, t := range s.txns {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date.Before(out[j].Date)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.txns[id]
	if !ok {
		return nil, fmt.Errorf("GetTransaction: transaction %s: %w", id, store.ErrNotFound)
	}
	c := t.Clone()
	return &c, nil
}

func (s *Store) InsertTransactions(ctx context.Context, txns []domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range txns {
		if txns[i].ID == "" {
			return fmt.Errorf("InsertTransactions: transaction without id")
		}
		s.txns[txns[i].ID] = txns[i].Clone()
	}
	return nil
}

func (s *Store) UpdateTransaction(ctx context.Context, txn domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.txns[txn.ID]; !ok {
		return fmt.Errorf("UpdateTransaction: transaction %s: %w", txn.ID, store.ErrNotFound)
	}
	s.txns[txn.ID] = txn.Clone()
	return nil
}

func (s *Store) DeleteTransactions(ctx context.Context, ids []string) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []domain.Transaction
	for _, id := range ids {
		t, ok := s.txns[id]
		if !ok {
			continue
		}
		removed = append(removed, t.Clone())
		delete(s.txns, id)
	}
	return removed, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Category, len(s.categories))
	copy(out, s.categories)
	return out, nil
}

func (s *Store) InsertCategory(ctx context.Context, c domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.categories {
		if s.categories[i].Name == c.Name {
			return fmt.Errorf("InsertCategory: category %q: %w", c.Name, store.ErrExists)
		}
	}
	s.categories = append(s.categories, c)
	return nil
}

func (s *Store) RenameCategory(ctx context.Context, oldName, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.categories {
		if s.categories[i].Name == newName {
			return fmt.Errorf("RenameCategory: category %q: %w", newName, store.ErrExists)
		}
		if s.categories[i].Name == oldName {
			idx = i
		}
	}
	if idx < 0 {
		return fmt.Errorf("RenameCategory: category %q: %w", oldName, store.ErrNotFound)
	}

	s.categories[idx].Name = newName
	for id, t := range s.txns {
		if t.Category == oldName {
			t.Category = newName
			s.txns[id] = t
		}
	}
	for key, cat := range s.vendors {
		if cat == oldName {
			s.vendors[key] = newName
		}
	}
	return nil
}

func (s *Store) DeleteCategory(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.categories {
		if s.categories[i].Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("DeleteCategory: category %q: %w", name, store.ErrNotFound)
	}
	s.categories = append(s.categories[:idx], s.categories[idx+1:]...)

	for id, t := range s.txns {
		if t.Category == name {
			t.Category = domain.CategoryUnassigned
			if !t.CostTypeOverridden {
				t.CostType = nil
			}
			s.txns[id] = t
		}
	}
	for key, cat := range s.vendors {
		if cat == name {
			delete(s.vendors, key)
		}
	}
	return nil
}

func (s *Store) ListAccountTypes(ctx context.Context) ([]domain.AccountType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AccountType, len(s.accountTypes))
	copy(out, s.accountTypes)
	return out, nil
}

func (s *Store) InsertAccountType(ctx context.Context, at domain.AccountType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if at.ID == "" {
		return fmt.Errorf("InsertAccountType: account type without id")
	}
	for i := range s.accountTypes {
		if s.accountTypes[i].ID == at.ID {
			return fmt.Errorf("InsertAccountType: account type %s: %w", at.ID, store.ErrExists)
		}
		if s.accountTypes[i].Name == at.Name && s.accountTypes[i].Flag == at.Flag {
			return fmt.Errorf("InsertAccountType: account type %s/%s: %w", at.Name, at.Flag, store.ErrExists)
		}
	}
	s.accountTypes = append(s.accountTypes, at)
	return nil
}

func (s *Store) VendorMap(ctx context.Context) (domain.VendorMap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.vendors.Clone(), nil
}

func (s *Store) PutVendor(ctx context.Context, key, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.vendors.Put(key, category)
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.txns = make(map[string]domain.Transaction)
	s.categories = nil
	s.accountTypes = nil
	s.vendors = domain.VendorMap{}
	return nil
}

var _ store.Store = (*Store)(nil)
