// Package service is the composition root for the engine: it owns the
// active store, the undo history and the reconciliation write gate, and
// exposes the mutating commands the API and CLI call. Core algorithms
// (similarity, dedupe, recurring, categorize, reconcile) stay pure; this
// layer feeds them explicit inputs and persists their outputs.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dvloznov/spendlens/internal/categorize"
	"github.com/dvloznov/spendlens/internal/dedupe"
	"github.com/dvloznov/spendlens/internal/domain"
	"github.com/dvloznov/spendlens/internal/history"
	"github.com/dvloznov/spendlens/internal/recurring"
	"github.com/dvloznov/spendlens/internal/reconcile"
	"github.com/dvloznov/spendlens/internal/store"
)

// ErrReconciling is returned by every mutating command while a merge is in
// flight. Reconciliation must complete (or cleanly fail) before writes
// against the dataset resume.
var ErrReconciling = errors.New("reconciliation in progress")

// AddResult reports what an ingestion batch did.
type AddResult struct {
	Added      []domain.Transaction `json:"added"`
	Duplicates []dedupe.Group       `json:"duplicates"`
}

// CategorizeResult reports what an auto-categorization pass did.
type CategorizeResult struct {
	Results        []categorize.Result `json:"results"`
	Assigned       int                 `json:"assigned"`
	LearnedVendors int                 `json:"learned_vendors"`
}

// Service serializes all engine commands behind one mutex.
type Service struct {
	mu          sync.Mutex
	active      store.Store
	local       store.Store
	pipeline    *categorize.Pipeline
	history     *history.Manager
	log         zerolog.Logger
	reconciling bool
}

// New builds a service over the local store. The remote store is attached
// later via Login.
func New(local store.Store, pipeline *categorize.Pipeline, log zerolog.Logger) *Service {
	return &Service{
		active:   local,
		local:    local,
		pipeline: pipeline,
		history:  history.NewManager(),
		log:      log,
	}
}

// guardWrite acquires the lock and rejects the command if a reconciliation
// is in flight. The caller must unlock.
func (s *Service) guardWrite() error {
	s.mu.Lock()
	if s.reconciling {
		s.mu.Unlock()
		return ErrReconciling
	}
	return nil
}

// Transactions lists the active store's transactions.
func (s *Service) Transactions(ctx context.Context) ([]domain.Transaction, error) {
	s.mu.Lock()
	st := s.active
	s.mu.Unlock()
	return st.ListTransactions(ctx)
}

// Categories lists the active store's categories.
func (s *Service) Categories(ctx context.Context) ([]domain.Category, error) {
	s.mu.Lock()
	st := s.active
	s.mu.Unlock()
	return st.ListCategories(ctx)
}

// AccountTypes lists the active store's account types.
func (s *Service) AccountTypes(ctx context.Context) ([]domain.AccountType, error) {
	s.mu.Lock()
	st := s.active
	s.mu.Unlock()
	return st.ListAccountTypes(ctx)
}

// Vendors returns the active store's vendor mappings.
func (s *Service) Vendors(ctx context.Context) (domain.VendorMap, error) {
	s.mu.Lock()
	st := s.active
	s.mu.Unlock()
	return st.VendorMap(ctx)
}

// AddTransactions runs the pre-insert duplicate check and persists only the
// candidates that do not duplicate an existing or newly accepted
// transaction. Duplicates are reported, not inserted.
func (s *Service) AddTransactions(ctx context.Context, txns []domain.Transaction) (*AddResult, error) {
	if err := s.guardWrite(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	existing, err := s.active.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("AddTransactions: list existing: %w", err)
	}

	result := &AddResult{}
	pool := existing
	for i := range txns {
		if dup, original := firstDuplicate(&txns[i], pool); dup {
			result.Duplicates = append(result.Duplicates, dedupe.Group{
				Original:   original,
				Duplicates: []domain.Transaction{txns[i]},
				Reason:     dedupe.Reason(&original, &txns[i]),
			})
			continue
		}
		result.Added = append(result.Added, txns[i])
		pool = append(pool, txns[i])
	}

	if len(result.Added) > 0 {
		if err := s.active.InsertTransactions(ctx, result.Added); err != nil {
			return nil, fmt.Errorf("AddTransactions: insert: %w", err)
		}
	}
	s.log.Info().
		Int("added", len(result.Added)).
		Int("duplicates", len(result.Duplicates)).
		Msg("Transactions ingested")
	return result, nil
}

func firstDuplicate(t *domain.Transaction, pool []domain.Transaction) (bool, domain.Transaction) {
	for i := range pool {
		if dedupe.IsDuplicate(&pool[i], t) {
			return true, pool[i]
		}
	}
	return false, domain.Transaction{}
}

// Duplicates groups the active store's transactions into duplicate sets for
// review.
func (s *Service) Duplicates(ctx context.Context) ([]dedupe.Group, error) {
	txns, err := s.Transactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("Duplicates: %w", err)
	}
	return dedupe.FindDuplicates(txns), nil
}

// Recurring detects recurring payment patterns over the active store.
func (s *Service) Recurring(ctx context.Context) ([]recurring.Pattern, error) {
	txns, err := s.Transactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("Recurring: %w", err)
	}
	return recurring.FindRecurring(txns), nil
}

// AutoCategorize runs the staged pipeline over every unassigned transaction,
// persists the assignments and any implicitly learned vendor mappings, and
// records one history entry covering the transactions that changed. A
// classifier failure is returned after the stage-1/2 assignments are
// persisted; it does not roll them back.
func (s *Service) AutoCategorize(ctx context.Context) (*CategorizeResult, error) {
	if err := s.guardWrite(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	all, err := s.active.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("AutoCategorize: list transactions: %w", err)
	}
	var pending []domain.Transaction
	for i := range all {
		if all[i].Category == domain.CategoryUnassigned {
			pending = append(pending, all[i])
		}
	}
	if len(pending) == 0 {
		return &CategorizeResult{}, nil
	}

	vendors, err := s.active.VendorMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("AutoCategorize: load vendors: %w", err)
	}
	categories, err := s.active.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("AutoCategorize: list categories: %w", err)
	}

	results, learned, classifyErr := s.pipeline.Categorize(ctx, pending, vendors, categories)

	var changed []domain.Transaction
	var updated []domain.Transaction
	for i := range pending {
		if results[i].Source == categorize.SourceNone || results[i].Category == pending[i].Category {
			continue
		}
		changed = append(changed, pending[i])
		next := pending[i].Clone()
		next.Category = results[i].Category
		applyCostType(&next, categories)
		updated = append(updated, next)
	}

	if len(changed) > 0 {
		s.history.Record(history.NewCategorizeEntry(changed))
		for i := range updated {
			if err := s.active.UpdateTransaction(ctx, updated[i]); err != nil {
				return nil, fmt.Errorf("AutoCategorize: update %s: %w", updated[i].ID, err)
			}
		}
	}
	for key, category := range learned {
		if err := s.active.PutVendor(ctx, key, category); err != nil {
			return nil, fmt.Errorf("AutoCategorize: persist vendor %q: %w", key, err)
		}
	}

	result := &CategorizeResult{
		Results:        results,
		Assigned:       len(updated),
		LearnedVendors: len(learned),
	}
	if classifyErr != nil {
		return result, fmt.Errorf("AutoCategorize: %w", classifyErr)
	}
	s.log.Info().
		Int("assigned", result.Assigned).
		Int("learned_vendors", result.LearnedVendors).
		Msg("Auto-categorization complete")
	return result, nil
}

// CategorizeTransactions assigns a category to the given transactions and
// records one invertible history entry for the batch.
func (s *Service) CategorizeTransactions(ctx context.Context, ids []string, category string) error {
	if err := s.guardWrite(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	categories, err := s.active.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("CategorizeTransactions: list categories: %w", err)
	}
	if category != domain.CategoryUnassigned && !categoryExists(categories, category) {
		return fmt.Errorf("CategorizeTransactions: unknown category %q", category)
	}

	var before []domain.Transaction
	var after []domain.Transaction
	for _, id := range ids {
		txn, err := s.active.GetTransaction(ctx, id)
		if err != nil {
			return fmt.Errorf("CategorizeTransactions: %w", err)
		}
		before = append(before, *txn)
		next := txn.Clone()
		next.Category = category
		applyCostType(&next, categories)
		after = append(after, next)
	}

	s.history.Record(history.NewCategorizeEntry(before))
	for i := range after {
		if err := s.active.UpdateTransaction(ctx, after[i]); err != nil {
			return fmt.Errorf("CategorizeTransactions: update %s: %w", after[i].ID, err)
		}
	}
	return nil
}

// UpdateTransaction applies a partial edit and records an entry restoring
// only the fields the edit changed. Setting CostType (or clearing it) marks
// an explicit user override.
func (s *Service) UpdateTransaction(ctx context.Context, id string, patch history.TransactionPatch) (*domain.Transaction, error) {
	if err := s.guardWrite(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if patch.IsZero() {
		return s.active.GetTransaction(ctx, id)
	}

	before, err := s.active.GetTransaction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("UpdateTransaction: %w", err)
	}

	entry := history.NewUpdateEntry(before, patch)
	next := before.Clone()
	patch.Apply(&next)
	if patch.CostType != nil || patch.ClearCostType {
		next.CostTypeOverridden = true
	} else if patch.Category != nil {
		categories, err := s.active.ListCategories(ctx)
		if err != nil {
			return nil, fmt.Errorf("UpdateTransaction: list categories: %w", err)
		}
		applyCostType(&next, categories)
	}

	if err := s.active.UpdateTransaction(ctx, next); err != nil {
		return nil, fmt.Errorf("UpdateTransaction: %w", err)
	}
	s.history.Record(entry)
	return &next, nil
}

// DeleteTransactions removes the given transactions and records an entry
// that re-inserts the exact removed records.
func (s *Service) DeleteTransactions(ctx context.Context, ids []string) (int, error) {
	if err := s.guardWrite(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	removed, err := s.active.DeleteTransactions(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("DeleteTransactions: %w", err)
	}
	if len(removed) > 0 {
		s.history.Record(history.NewDeleteEntry(removed))
	}
	return len(removed), nil
}

// Undo pops the most recent history entry and applies its inverse against
// the active store. An empty history is a reported no-op, not an error.
func (s *Service) Undo(ctx context.Context) (bool, error) {
	if err := s.guardWrite(); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	return s.history.Undo(ctx, s.active)
}

// HistoryLen reports how many mutations can currently be undone.
func (s *Service) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Len()
}

// AddCategory inserts a category into the active store.
func (s *Service) AddCategory(ctx context.Context, c domain.Category) error {
	if err := s.guardWrite(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.active.InsertCategory(ctx, c)
}

// RenameCategory renames a category and every reference to it.
func (s *Service) RenameCategory(ctx context.Context, oldName, newName string) error {
	if err := s.guardWrite(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.active.RenameCategory(ctx, oldName, newName)
}

// DeleteCategory removes a category; its transactions move to Unassigned.
func (s *Service) DeleteCategory(ctx context.Context, name string) error {
	if err := s.guardWrite(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.active.DeleteCategory(ctx, name)
}

// AddAccountType inserts an account type into the active store.
func (s *Service) AddAccountType(ctx context.Context, at domain.AccountType) error {
	if err := s.guardWrite(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.active.InsertAccountType(ctx, at)
}

// PutVendor stores an explicit vendor mapping.
func (s *Service) PutVendor(ctx context.Context, key, category string) error {
	if err := s.guardWrite(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.active.PutVendor(ctx, key, category)
}

// Login merges the local dataset into the remote store and switches the
// active store to it. While the merge is in flight every mutating command
// fails with ErrReconciling. On failure the local store is untouched and
// stays active so the merge can be retried.
func (s *Service) Login(ctx context.Context, remote store.Store) (*reconcile.Summary, error) {
	s.mu.Lock()
	if s.reconciling {
		s.mu.Unlock()
		return nil, ErrReconciling
	}
	s.reconciling = true
	s.mu.Unlock()

	summary, err := reconcile.New(s.local, remote, s.log).Run(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconciling = false
	if err != nil {
		return summary, fmt.Errorf("Login: %w", err)
	}

	s.active = remote
	// History entries reference pre-merge ids that no longer exist.
	s.history = history.NewManager()
	s.log.Info().Msg("Switched to remote store")
	return summary, nil
}

// Logout switches back to the (now empty) local store.
func (s *Service) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = s.local
	s.history = history.NewManager()
}

// applyCostType derives the transaction's cost type from its category's
// default. Explicit user overrides are never replaced.
func applyCostType(t *domain.Transaction, categories []domain.Category) {
	if t.CostTypeOverridden {
		return
	}
	t.CostType = nil
	for i := range categories {
		if categories[i].Name == t.Category && categories[i].CostType != nil {
			ct := *categories[i].CostType
			t.CostType = &ct
			return
		}
	}
}

func categoryExists(categories []domain.Category, name string) bool {
	for i := range categories {
		if categories[i].Name == name {
			return true
		}
	}
	return false
}
