package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/spendlens/internal/categorize"
	"github.com/dvloznov/spendlens/internal/domain"
	"github.com/dvloznov/spendlens/internal/history"
	"github.com/dvloznov/spendlens/internal/store/inmemory"
)

type mockClassifier struct {
	ClassifyFunc func(ctx context.Context, items []categorize.Item, categories []domain.Category) ([]categorize.Decision, error)
}

func (m *mockClassifier) Classify(ctx context.Context, items []categorize.Item, categories []domain.Category) ([]categorize.Decision, error) {
	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, items, categories)
	}
	return nil, nil
}

func newService(classifier categorize.Classifier) (*Service, *inmemory.Store) {
	local := inmemory.NewStore()
	pipeline := categorize.NewPipeline(classifier, zerolog.Nop())
	return New(local, pipeline, zerolog.Nop()), local
}

func tx(t *testing.T, day int, desc string, amount float64) domain.Transaction {
	t.Helper()
	txn, err := domain.NewTransaction(civil.Date{Year: 2024, Month: time.November, Day: day}, desc, decimal.NewFromFloat(amount))
	if err != nil {
		t.Fatalf("NewTransaction(%q): %v", desc, err)
	}
	return *txn
}

func TestAddTransactionsSkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	svc, local := newService(nil)

	existing := tx(t, 1, "COFFEE SHOP #123", -4.50)
	if err := local.InsertTransactions(ctx, []domain.Transaction{existing}); err != nil {
		t.Fatal(err)
	}

	res, err := svc.AddTransactions(ctx, []domain.Transaction{
		tx(t, 2, "Coffee Shop", -4.50), // duplicate of existing
		tx(t, 2, "NETFLIX", -14.99),
		tx(t, 2, "NETFLIX", -14.99), // duplicate within the batch
	})
	if err != nil {
		t.Fatalf("AddTransactions: %v", err)
	}

	if len(res.Added) != 1 || res.Added[0].Description != "NETFLIX" {
		t.Errorf("Added = %v, want just NETFLIX", res.Added)
	}
	if len(res.Duplicates) != 2 {
		t.Errorf("Duplicates = %d groups, want 2", len(res.Duplicates))
	}
	for _, g := range res.Duplicates {
		if g.Reason == "" {
			t.Error("duplicate group without a reason")
		}
	}

	all, _ := local.ListTransactions(ctx)
	if len(all) != 2 {
		t.Errorf("store holds %d transactions, want 2", len(all))
	}
}

func TestAutoCategorizePersistsAndRecordsHistory(t *testing.T) {
	ctx := context.Background()
	fixed := domain.CostTypeFixed
	classifier := &mockClassifier{
		ClassifyFunc: func(ctx context.Context, items []categorize.Item, categories []domain.Category) ([]categorize.Decision, error) {
			var out []categorize.Decision
			for _, it := range items {
				out = append(out, categorize.Decision{
					CorrelationID: it.CorrelationID,
					Category:      "Subscriptions",
					Confidence:    0.93,
				})
			}
			return out, nil
		},
	}
	svc, local := newService(classifier)

	if err := local.InsertCategory(ctx, domain.Category{Name: "Subscriptions", CostType: &fixed}); err != nil {
		t.Fatal(err)
	}
	txn := tx(t, 1, "SPOTIFY PREMIUM", -9.99)
	if err := local.InsertTransactions(ctx, []domain.Transaction{txn}); err != nil {
		t.Fatal(err)
	}

	res, err := svc.AutoCategorize(ctx)
	if err != nil {
		t.Fatalf("AutoCategorize: %v", err)
	}
	if res.Assigned != 1 || res.LearnedVendors != 1 {
		t.Errorf("assigned/learned = %d/%d, want 1/1", res.Assigned, res.LearnedVendors)
	}

	got, _ := local.GetTransaction(ctx, txn.ID)
	if got.Category != "Subscriptions" {
		t.Errorf("Category = %q, want Subscriptions", got.Category)
	}
	if got.CostType == nil || *got.CostType != domain.CostTypeFixed {
		t.Error("cost type not derived from category default")
	}
	vendors, _ := local.VendorMap(ctx)
	if len(vendors) != 1 {
		t.Errorf("learned vendor not persisted: %v", vendors)
	}

	// Undo restores the prior assignment.
	if applied, err := svc.Undo(ctx); err != nil || !applied {
		t.Fatalf("Undo = (%v, %v)", applied, err)
	}
	got, _ = local.GetTransaction(ctx, txn.ID)
	if got.Category != domain.CategoryUnassigned {
		t.Errorf("Category after undo = %q, want Unassigned", got.Category)
	}
}

func TestAutoCategorizeSurfacesClassifierError(t *testing.T) {
	ctx := context.Background()
	classifier := &mockClassifier{
		ClassifyFunc: func(ctx context.Context, items []categorize.Item, categories []domain.Category) ([]categorize.Decision, error) {
			return nil, errors.New("rate limited")
		},
	}
	svc, local := newService(classifier)
	if err := local.InsertTransactions(ctx, []domain.Transaction{tx(t, 1, "MYSTERY SHOP", -5.00)}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.AutoCategorize(ctx); err == nil {
		t.Fatal("classifier failure not surfaced")
	}
	all, _ := local.ListTransactions(ctx)
	if all[0].Category != domain.CategoryUnassigned {
		t.Errorf("Category = %q, want Unassigned after failure", all[0].Category)
	}
}

func TestUpdateTransactionOverridesCostType(t *testing.T) {
	ctx := context.Background()
	svc, local := newService(nil)

	txn := tx(t, 1, "GYM", -30.00)
	if err := local.InsertTransactions(ctx, []domain.Transaction{txn}); err != nil {
		t.Fatal(err)
	}

	variable := domain.CostTypeVariable
	updated, err := svc.UpdateTransaction(ctx, txn.ID, history.TransactionPatch{CostType: &variable})
	if err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	if !updated.CostTypeOverridden {
		t.Error("explicit cost type edit not marked as override")
	}

	// A later category change must not clobber the override.
	if err := local.InsertCategory(ctx, domain.Category{Name: "Health"}); err != nil {
		t.Fatal(err)
	}
	cat := "Health"
	updated, err = svc.UpdateTransaction(ctx, txn.ID, history.TransactionPatch{Category: &cat})
	if err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	if updated.CostType == nil || *updated.CostType != domain.CostTypeVariable {
		t.Error("override replaced by category-derived cost type")
	}
}

func TestDeleteThenUndoRestores(t *testing.T) {
	ctx := context.Background()
	svc, local := newService(nil)

	txn := tx(t, 1, "NETFLIX", -14.99)
	if err := local.InsertTransactions(ctx, []domain.Transaction{txn}); err != nil {
		t.Fatal(err)
	}

	n, err := svc.DeleteTransactions(ctx, []string{txn.ID})
	if err != nil || n != 1 {
		t.Fatalf("DeleteTransactions = (%d, %v)", n, err)
	}
	if applied, err := svc.Undo(ctx); err != nil || !applied {
		t.Fatalf("Undo = (%v, %v)", applied, err)
	}
	if _, err := local.GetTransaction(ctx, txn.ID); err != nil {
		t.Errorf("transaction not restored: %v", err)
	}
	// History was consumed; a second undo is a no-op.
	if applied, _ := svc.Undo(ctx); applied {
		t.Error("second Undo applied something")
	}
}

func TestLoginSwitchesToRemote(t *testing.T) {
	ctx := context.Background()
	svc, local := newService(nil)
	remote := inmemory.NewStore()

	txn := tx(t, 1, "NETFLIX", -14.99)
	if err := local.InsertTransactions(ctx, []domain.Transaction{txn}); err != nil {
		t.Fatal(err)
	}

	summary, err := svc.Login(ctx, remote)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if summary.TransactionsInserted != 1 || !summary.LocalCleared {
		t.Errorf("summary = %+v", summary)
	}

	// Reads now come from the remote store.
	txns, err := svc.Transactions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(txns) != 1 {
		t.Fatalf("active store has %d transactions, want 1", len(txns))
	}
	if txns[0].ID == txn.ID {
		t.Error("merged transaction kept its local id")
	}

	// Writes land remotely.
	if _, err := svc.AddTransactions(ctx, []domain.Transaction{tx(t, 5, "GROCERY MART", -40.00)}); err != nil {
		t.Fatal(err)
	}
	remoteTxns, _ := remote.ListTransactions(ctx)
	if len(remoteTxns) != 2 {
		t.Errorf("remote holds %d transactions, want 2", len(remoteTxns))
	}
}

// slowStore blocks ListCategories until released so a reconciliation can be
// held in flight.
type slowStore struct {
	*inmemory.Store
	release chan struct{}
	once    sync.Once
	entered chan struct{}
}

func (s *slowStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return s.Store.ListCategories(ctx)
}

func TestWritesRejectedDuringReconciliation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(nil)
	remote := &slowStore{
		Store:   inmemory.NewStore(),
		release: make(chan struct{}),
		entered: make(chan struct{}),
	}

	done := make(chan error, 1)
	go func() {
		_, err := svc.Login(ctx, remote)
		done <- err
	}()

	<-remote.entered
	if _, err := svc.AddTransactions(ctx, []domain.Transaction{tx(t, 1, "NETFLIX", -14.99)}); !errors.Is(err, ErrReconciling) {
		t.Errorf("AddTransactions during merge = %v, want ErrReconciling", err)
	}
	if _, err := svc.Undo(ctx); !errors.Is(err, ErrReconciling) {
		t.Errorf("Undo during merge = %v, want ErrReconciling", err)
	}

	close(remote.release)
	if err := <-done; err != nil {
		t.Fatalf("Login: %v", err)
	}

	// Writes resume once the merge resolves.
	if _, err := svc.AddTransactions(ctx, []domain.Transaction{tx(t, 1, "NETFLIX", -14.99)}); err != nil {
		t.Errorf("AddTransactions after merge: %v", err)
	}
}

func TestLoginFailureKeepsLocalActive(t *testing.T) {
	ctx := context.Background()
	svc, local := newService(nil)

	txn := tx(t, 1, "NETFLIX", -14.99)
	if err := local.InsertTransactions(ctx, []domain.Transaction{txn}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Login(ctx, &failingRemote{inmemory.NewStore()}); err == nil {
		t.Fatal("expected reconciliation failure")
	}

	// Local store untouched and still active.
	txns, _ := svc.Transactions(ctx)
	if len(txns) != 1 || txns[0].ID != txn.ID {
		t.Errorf("local state disturbed by failed login: %v", txns)
	}
}

type failingRemote struct {
	*inmemory.Store
}

func (f *failingRemote) InsertTransactions(ctx context.Context, txns []domain.Transaction) error {
	return errors.New("remote unavailable")
}
