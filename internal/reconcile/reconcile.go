// Package reconcile merges the local-only dataset into the remote store on
// the transition from unauthenticated to authenticated. It is the only
// component that reads both stores at once. The merge is conservative:
// keeping both copies of an ambiguous transaction is preferred over silently
// dropping one.
package reconcile

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/spendlens/internal/domain"
	"github.com/dvloznov/spendlens/internal/store"
)

// amountTolerance matches the strict duplicate criterion: amounts within
// one cent merge.
var amountTolerance = decimal.New(1, -2)

// Summary counts what one run inserted remotely.
type Summary struct {
	CategoriesInserted   int `json:"categories_inserted"`
	AccountTypesInserted int `json:"account_types_inserted"`
	VendorsInserted      int `json:"vendors_inserted"`
	TransactionsInserted int `json:"transactions_inserted"`
	TransactionsSkipped  int `json:"transactions_skipped"`
	LocalCleared         bool `json:"local_cleared"`
}

// Reconciler merges local into remote.
type Reconciler struct {
	local  store.Store
	remote store.Store
	log    zerolog.Logger
}

func New(local, remote store.Store, log zerolog.Logger) *Reconciler {
	return &Reconciler{local: local, remote: remote, log: log}
}

// Run executes the merge in dependency order: categories, account types,
// vendor mappings, transactions, then clears the local store. Any failure
// before the clear leaves the local store intact so the merge can be retried
// from an unambiguous starting state. Running it again over its own output
// inserts nothing.
func (r *Reconciler) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{}

	if err := r.mergeCategories(ctx, summary); err != nil {
		return summary, fmt.Errorf("Run: categories: %w", err)
	}
	idMap, err := r.mergeAccountTypes(ctx, summary)
	if err != nil {
		return summary, fmt.Errorf("Run: account types: %w", err)
	}
	if err := r.mergeVendors(ctx, summary); err != nil {
		return summary, fmt.Errorf("Run: vendors: %w", err)
	}
	if err := r.mergeTransactions(ctx, idMap, summary); err != nil {
		return summary, fmt.Errorf("Run: transactions: %w", err)
	}

	if err := r.local.Clear(ctx); err != nil {
		return summary, fmt.Errorf("Run: clear local store: %w", err)
	}
	summary.LocalCleared = true

	r.log.Info().
		Int("categories", summary.CategoriesInserted).
		Int("account_types", summary.AccountTypesInserted).
		Int("vendors", summary.VendorsInserted).
		Int("transactions", summary.TransactionsInserted).
		Int("skipped", summary.TransactionsSkipped).
		Msg("Reconciliation complete")
	return summary, nil
}

// mergeCategories inserts local category names absent remotely. Remote is
// authoritative for names present on both sides.
func (r *Reconciler) mergeCategories(ctx context.Context, summary *Summary) error {
	local, err := r.local.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("list local: %w", err)
	}
	remote, err := r.remote.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("list remote: %w", err)
	}

	existing := make(map[string]bool, len(remote))
	for _, c := range remote {
		existing[c.Name] = true
	}
	for _, c := range local {
		if existing[c.Name] {
			continue
		}
		if err := r.remote.InsertCategory(ctx, c); err != nil {
			return fmt.Errorf("insert %q: %w", c.Name, err)
		}
		summary.CategoriesInserted++
	}
	return nil
}

// mergeAccountTypes inserts local account types whose (name, flag) pair is
// absent remotely, each under a freshly generated id: local ids are never
// trusted to be globally unique once merged with a multi-device remote
// store. The returned map rewrites every local id, whether it matched an
// existing remote account type or a fresh one.
func (r *Reconciler) mergeAccountTypes(ctx context.Context, summary *Summary) (map[string]string, error) {
	local, err := r.local.ListAccountTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list local: %w", err)
	}
	remote, err := r.remote.ListAccountTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list remote: %w", err)
	}

	byKey := make(map[string]string, len(remote))
	for _, at := range remote {
		byKey[at.Key()] = at.ID
	}

	idMap := make(map[string]string, len(local))
	for _, at := range local {
		if remoteID, ok := byKey[at.Key()]; ok {
			idMap[at.ID] = remoteID
			continue
		}
		fresh := domain.AccountType{ID: uuid.NewString(), Name: at.Name, Flag: at.Flag}
		if err := r.remote.InsertAccountType(ctx, fresh); err != nil {
			return nil, fmt.Errorf("insert %q: %w", at.Key(), err)
		}
		byKey[fresh.Key()] = fresh.ID
		idMap[at.ID] = fresh.ID
		summary.AccountTypesInserted++
	}
	return idMap, nil
}

// mergeVendors inserts local vendor mappings whose key is absent remotely.
func (r *Reconciler) mergeVendors(ctx context.Context, summary *Summary) error {
	local, err := r.local.VendorMap(ctx)
	if err != nil {
		return fmt.Errorf("list local: %w", err)
	}
	remote, err := r.remote.VendorMap(ctx)
	if err != nil {
		return fmt.Errorf("list remote: %w", err)
	}

	for key, category := range local {
		if _, ok := remote[key]; ok {
			continue
		}
		if err := r.remote.PutVendor(ctx, key, category); err != nil {
			return fmt.Errorf("put %q: %w", key, err)
		}
		summary.VendorsInserted++
	}
	return nil
}

// mergeTransactions inserts local transactions with no remote duplicate,
// under fresh ids and with account type references rewritten through idMap.
// All inserts go out as one batch so the step is all-or-nothing.
func (r *Reconciler) mergeTransactions(ctx context.Context, idMap map[string]string, summary *Summary) error {
	local, err := r.local.ListTransactions(ctx)
	if err != nil {
		return fmt.Errorf("list local: %w", err)
	}
	if len(local) == 0 {
		return nil
	}
	remote, err := r.remote.ListTransactions(ctx)
	if err != nil {
		return fmt.Errorf("list remote: %w", err)
	}

	index := newFingerprintIndex(remote)

	var inserts []domain.Transaction
	for i := range local {
		if index.hasDuplicate(&local[i]) {
			summary.TransactionsSkipped++
			continue
		}
		merged := local[i].Clone()
		merged.ID = uuid.NewString()
		if merged.AccountTypeID != "" {
			// A stale local account type id must never reach the remote
			// store.
			merged.AccountTypeID = idMap[merged.AccountTypeID]
		}
		inserts = append(inserts, merged)
	}

	if len(inserts) > 0 {
		if err := r.remote.InsertTransactions(ctx, inserts); err != nil {
			return fmt.Errorf("insert %d transactions: %w", len(inserts), err)
		}
	}
	summary.TransactionsInserted = len(inserts)
	return nil
}

// fingerprintIndex answers duplicate-for-merge lookups: exact date, exact
// description or original description, amount within one cent. This is
// deliberately narrower than the fuzzy duplicate detector.
type fingerprintIndex struct {
	byKey map[string][]decimal.Decimal
}

func newFingerprintIndex(txns []domain.Transaction) *fingerprintIndex {
	idx := &fingerprintIndex{byKey: make(map[string][]decimal.Decimal)}
	for i := range txns {
		for _, desc := range descriptionsOf(&txns[i]) {
			key := fingerprintKey(txns[i].Date, desc)
			idx.byKey[key] = append(idx.byKey[key], txns[i].Amount)
		}
	}
	return idx
}

func (idx *fingerprintIndex) hasDuplicate(t *domain.Transaction) bool {
	for _, desc := range descriptionsOf(t) {
		for _, amount := range idx.byKey[fingerprintKey(t.Date, desc)] {
			if t.Amount.Sub(amount).Abs().Cmp(amountTolerance) <= 0 {
				return true
			}
		}
	}
	return false
}

func descriptionsOf(t *domain.Transaction) []string {
	if t.OriginalDescription == "" || t.OriginalDescription == t.Description {
		return []string{t.Description}
	}
	return []string{t.Description, t.OriginalDescription}
}

func fingerprintKey(date civil.Date, desc string) string {
	return date.String() + "\x00" + desc
}
