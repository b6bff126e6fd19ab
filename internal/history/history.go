// Package history keeps a bounded record of mutating operations so the most
// recent ones can be undone. The history is a FIFO of at most MaxEntries
// invertible entries; undo pops the newest entry and applies its inverse.
// There is no redo: a popped entry is consumed.
package history

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/spendlens/internal/domain"
)

// MaxEntries bounds the history depth. The oldest entry is silently evicted
// when a new one is recorded at capacity.
const MaxEntries = 5

// Kind tags the mutation an entry inverts.
type Kind string

const (
	KindDelete     Kind = "DELETE"
	KindCategorize Kind = "CATEGORIZE"
	KindUpdate     Kind = "UPDATE"
)

// Store is the slice of the persistence layer an inverse needs to apply
// itself. The active transaction store satisfies it.
type Store interface {
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	InsertTransactions(ctx context.Context, txns []domain.Transaction) error
	UpdateTransaction(ctx context.Context, txn domain.Transaction) error
}

// Entry is one recorded mutation. Each entry carries exactly the prior-state
// payload needed to invert the action it records.
type Entry interface {
	Kind() Kind
	Time() time.Time
	revert(ctx context.Context, s Store) error
}

// Manager owns the bounded entry list. It is not safe for concurrent use;
// the caller serializes mutations.
type Manager struct {
	entries []Entry
}

func NewManager() *Manager {
	return &Manager{}
}

// Record pushes an entry to the front and truncates to MaxEntries.
func (m *Manager) Record(e Entry) {
	if e == nil {
		return
	}
	m.entries = append([]Entry{e}, m.entries...)
	if len(m.entries) > MaxEntries {
		m.entries = m.entries[:MaxEntries]
	}
}

// Len reports how many entries can currently be undone.
func (m *Manager) Len() int {
	return len(m.entries)
}

// Undo pops the newest entry and applies its inverse against the store.
// An empty history is a no-op, reported as (false, nil). The entry is
// consumed before its inverse runs, so a failed revert is not retried.
func (m *Manager) Undo(ctx context.Context, s Store) (bool, error) {
	if len(m.entries) == 0 {
		return false, nil
	}
	e := m.entries[0]
	m.entries = m.entries[1:]
	if err := e.revert(ctx, s); err != nil {
		return true, fmt.Errorf("Undo: revert %s entry: %w", e.Kind(), err)
	}
	return true, nil
}

// DeleteEntry records removed transactions. Its inverse re-inserts the exact
// removed records, ids included.
type DeleteEntry struct {
	Removed []domain.Transaction
	At      time.Time
}

// NewDeleteEntry snapshots the transactions being removed.
func NewDeleteEntry(removed []domain.Transaction) *DeleteEntry {
	cloned := make([]domain.Transaction, 0, len(removed))
	for i := range removed {
		cloned = append(cloned, removed[i].Clone())
	}
	return &DeleteEntry{Removed: cloned, At: time.Now().UTC()}
}

func (e *DeleteEntry) Kind() Kind      { return KindDelete }
func (e *DeleteEntry) Time() time.Time { return e.At }

func (e *DeleteEntry) revert(ctx context.Context, s Store) error {
	if len(e.Removed) == 0 {
		return nil
	}
	if err := s.InsertTransactions(ctx, e.Removed); err != nil {
		return fmt.Errorf("reinsert %d transactions: %w", len(e.Removed), err)
	}
	return nil
}

// Assignment is one transaction's category state before a bulk categorize.
// A bulk categorize can touch transactions that held different categories,
// so the prior pair is captured per transaction.
type Assignment struct {
	TransactionID string
	Category      string
	CostType      *domain.CostType
	Overridden    bool
}

// CategorizeEntry records the prior assignments of every transaction a
// categorize touched.
type CategorizeEntry struct {
	Prior []Assignment
	At    time.Time
}

// NewCategorizeEntry captures assignments from the transactions' current
// state; call it before applying the new categories.
func NewCategorizeEntry(txns []domain.Transaction) *CategorizeEntry {
	prior := make([]Assignment, 0, len(txns))
	for i := range txns {
		a := Assignment{
			TransactionID: txns[i].ID,
			Category:      txns[i].Category,
			Overridden:    txns[i].CostTypeOverridden,
		}
		if txns[i].CostType != nil {
			ct := *txns[i].CostType
			a.CostType = &ct
		}
		prior = append(prior, a)
	}
	return &CategorizeEntry{Prior: prior, At: time.Now().UTC()}
}

func (e *CategorizeEntry) Kind() Kind      { return KindCategorize }
func (e *CategorizeEntry) Time() time.Time { return e.At }

func (e *CategorizeEntry) revert(ctx context.Context, s Store) error {
	for _, a := range e.Prior {
		txn, err := s.GetTransaction(ctx, a.TransactionID)
		if err != nil {
			return fmt.Errorf("load transaction %s: %w", a.TransactionID, err)
		}
		txn.Category = a.Category
		txn.CostType = nil
		if a.CostType != nil {
			ct := *a.CostType
			txn.CostType = &ct
		}
		txn.CostTypeOverridden = a.Overridden
		if err := s.UpdateTransaction(ctx, *txn); err != nil {
			return fmt.Errorf("restore transaction %s: %w", a.TransactionID, err)
		}
	}
	return nil
}

// TransactionPatch carries only the fields an edit changed. Nil fields are
// untouched. ClearCostType distinguishes "set CostType to nil" from "leave
// CostType alone".
type TransactionPatch struct {
	Date          *civil.Date
	Description   *string
	Amount        *decimal.Decimal
	Category      *string
	CostType      *domain.CostType
	ClearCostType bool
	AccountTypeID *string
	Bank          *string
}

// IsZero reports whether the patch changes nothing.
func (p TransactionPatch) IsZero() bool {
	return p.Date == nil && p.Description == nil && p.Amount == nil &&
		p.Category == nil && p.CostType == nil && !p.ClearCostType &&
		p.AccountTypeID == nil && p.Bank == nil
}

// Apply writes the patch's fields onto the transaction. Date changes go
// through SetDate so Month stays derived.
func (p TransactionPatch) Apply(t *domain.Transaction) {
	if p.Date != nil {
		t.SetDate(*p.Date)
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.ClearCostType {
		t.CostType = nil
	} else if p.CostType != nil {
		ct := *p.CostType
		t.CostType = &ct
	}
	if p.AccountTypeID != nil {
		t.AccountTypeID = *p.AccountTypeID
	}
	if p.Bank != nil {
		t.Bank = *p.Bank
	}
}

// UpdateEntry records a single-transaction edit. Its inverse restores only
// the fields the edit changed, not a full-record snapshot.
type UpdateEntry struct {
	TransactionID string
	Prior         TransactionPatch
	At            time.Time
}

// NewUpdateEntry builds the inverse patch for an edit: for every field the
// forward patch changes, Prior captures the value the transaction held
// before the edit.
func NewUpdateEntry(before *domain.Transaction, change TransactionPatch) *UpdateEntry {
	prior := TransactionPatch{}
	if change.Date != nil {
		d := before.Date
		prior.Date = &d
	}
	if change.Description != nil {
		v := before.Description
		prior.Description = &v
	}
	if change.Amount != nil {
		v := before.Amount
		prior.Amount = &v
	}
	if change.Category != nil {
		v := before.Category
		prior.Category = &v
	}
	if change.CostType != nil || change.ClearCostType {
		if before.CostType != nil {
			ct := *before.CostType
			prior.CostType = &ct
		} else {
			prior.ClearCostType = true
		}
	}
	if change.AccountTypeID != nil {
		v := before.AccountTypeID
		prior.AccountTypeID = &v
	}
	if change.Bank != nil {
		v := before.Bank
		prior.Bank = &v
	}
	return &UpdateEntry{TransactionID: before.ID, Prior: prior, At: time.Now().UTC()}
}

func (e *UpdateEntry) Kind() Kind      { return KindUpdate }
func (e *UpdateEntry) Time() time.Time { return e.At }

func (e *UpdateEntry) revert(ctx context.Context, s Store) error {
	txn, err := s.GetTransaction(ctx, e.TransactionID)
	if err != nil {
		return fmt.Errorf("load transaction %s: %w", e.TransactionID, err)
	}
	e.Prior.Apply(txn)
	if err := s.UpdateTransaction(ctx, *txn); err != nil {
		return fmt.Errorf("restore transaction %s: %w", e.TransactionID, err)
	}
	return nil
}
