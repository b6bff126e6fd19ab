package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/spendlens/internal/domain"
	"github.com/dvloznov/spendlens/internal/store"
)

func tx(t *testing.T, day int, desc string, amount float64) domain.Transaction {
	t.Helper()
	txn, err := domain.NewTransaction(civil.Date{Year: 2024, Month: time.November, Day: day}, desc, decimal.NewFromFloat(amount))
	if err != nil {
		t.Fatalf("NewTransaction(%q): %v", desc, err)
	}
	return *txn
}

func TestTransactionRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	a := tx(t, 3, "NETFLIX", -14.99)
	b := tx(t, 1, "SALARY", 2500.00)
	if err := s.InsertTransactions(ctx, []domain.Transaction{a, b}); err != nil {
		t.Fatalf("InsertTransactions: %v", err)
	}

	list, err := s.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d transactions, want 2", len(list))
	}
	if list[0].ID != b.ID {
		t.Errorf("list not ordered by date: first is %q", list[0].Description)
	}

	got, err := s.GetTransaction(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	// Mutating the returned copy must not leak into the store.
	got.Description = "changed"
	again, _ := s.GetTransaction(ctx, a.ID)
	if again.Description != "NETFLIX" {
		t.Error("GetTransaction returned shared state")
	}

	if _, err := s.GetTransaction(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetTransaction(missing) = %v, want ErrNotFound", err)
	}
}

func TestDeleteTransactionsReturnsRemoved(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	a := tx(t, 3, "NETFLIX", -14.99)
	if err := s.InsertTransactions(ctx, []domain.Transaction{a}); err != nil {
		t.Fatalf("InsertTransactions: %v", err)
	}

	removed, err := s.DeleteTransactions(ctx, []string{a.ID, "unknown"})
	if err != nil {
		t.Fatalf("DeleteTransactions: %v", err)
	}
	if len(removed) != 1 || removed[0].ID != a.ID {
		t.Fatalf("removed = %v, want exactly the known id", removed)
	}
	if _, err := s.GetTransaction(ctx, a.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("transaction still present after delete: %v", err)
	}
}

func TestRenameCategoryCascades(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	if err := s.InsertCategory(ctx, domain.Category{Name: "Eating Out"}); err != nil {
		t.Fatalf("InsertCategory: %v", err)
	}
	a := tx(t, 3, "COFFEE SHOP", -4.50)
	a.Category = "Eating Out"
	if err := s.InsertTransactions(ctx, []domain.Transaction{a}); err != nil {
		t.Fatalf("InsertTransactions: %v", err)
	}
	if err := s.PutVendor(ctx, "COFFEE SHOP", "Eating Out"); err != nil {
		t.Fatalf("PutVendor: %v", err)
	}

	if err := s.RenameCategory(ctx, "Eating Out", "Dining"); err != nil {
		t.Fatalf("RenameCategory: %v", err)
	}

	got, _ := s.GetTransaction(ctx, a.ID)
	if got.Category != "Dining" {
		t.Errorf("transaction category = %q, want Dining", got.Category)
	}
	vendors, _ := s.VendorMap(ctx)
	if vendors["COFFEE SHOP"] != "Dining" {
		t.Errorf("vendor mapping = %q, want Dining", vendors["COFFEE SHOP"])
	}
	cats, _ := s.ListCategories(ctx)
	if len(cats) != 1 || cats[0].Name != "Dining" {
		t.Errorf("categories = %v, want just Dining", cats)
	}

	if err := s.RenameCategory(ctx, "missing", "x"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("RenameCategory(missing) = %v, want ErrNotFound", err)
	}
}

func TestDeleteCategoryReassignsToUnassigned(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	fixed := domain.CostTypeFixed
	if err := s.InsertCategory(ctx, domain.Category{Name: "Subscriptions", CostType: &fixed}); err != nil {
		t.Fatalf("InsertCategory: %v", err)
	}
	a := tx(t, 3, "NETFLIX", -14.99)
	a.Category = "Subscriptions"
	a.CostType = &fixed
	if err := s.InsertTransactions(ctx, []domain.Transaction{a}); err != nil {
		t.Fatalf("InsertTransactions: %v", err)
	}
	if err := s.PutVendor(ctx, "NETFLIX", "Subscriptions"); err != nil {
		t.Fatalf("PutVendor: %v", err)
	}

	if err := s.DeleteCategory(ctx, "Subscriptions"); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}

	got, _ := s.GetTransaction(ctx, a.ID)
	if got.Category != domain.CategoryUnassigned {
		t.Errorf("category = %q, want Unassigned", got.Category)
	}
	if got.CostType != nil {
		t.Errorf("derived cost type survived the category: %v", *got.CostType)
	}
	vendors, _ := s.VendorMap(ctx)
	if len(vendors) != 0 {
		t.Errorf("vendor mappings survived the category: %v", vendors)
	}
}

func TestInsertCategoryDuplicate(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	if err := s.InsertCategory(ctx, domain.Category{Name: "Groceries"}); err != nil {
		t.Fatalf("InsertCategory: %v", err)
	}
	if err := s.InsertCategory(ctx, domain.Category{Name: "Groceries"}); !errors.Is(err, store.ErrExists) {
		t.Errorf("duplicate insert = %v, want ErrExists", err)
	}
}

func TestInsertAccountTypeRejectsDuplicatePair(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	if err := s.InsertAccountType(ctx, domain.AccountType{ID: "a1", Name: "Everyday", Flag: domain.AccountChecking}); err != nil {
		t.Fatalf("InsertAccountType: %v", err)
	}

	// Same name and flag under a fresh id is still the same account type.
	err := s.InsertAccountType(ctx, domain.AccountType{ID: "a2", Name: "Everyday", Flag: domain.AccountChecking})
	if !errors.Is(err, store.ErrExists) {
		t.Fatalf("InsertAccountType duplicate pair: err = %v, want ErrExists", err)
	}

	// Same name under a different flag is a distinct account type.
	if err := s.InsertAccountType(ctx, domain.AccountType{ID: "a3", Name: "Everyday", Flag: domain.AccountSavings}); err != nil {
		t.Fatalf("InsertAccountType different flag: %v", err)
	}

	accts, _ := s.ListAccountTypes(ctx)
	if len(accts) != 2 {
		t.Errorf("ListAccountTypes returned %d account types, want 2", len(accts))
	}
}

func TestClearWipesEverything(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	if err := s.InsertTransactions(ctx, []domain.Transaction{tx(t, 3, "NETFLIX", -14.99)}); err != nil {
		t.Fatalf("InsertTransactions: %v", err)
	}
	if err := s.InsertCategory(ctx, domain.Category{Name: "Groceries"}); err != nil {
		t.Fatalf("InsertCategory: %v", err)
	}
	if err := s.InsertAccountType(ctx, domain.AccountType{ID: "a1", Name: "Everyday", Flag: domain.AccountChecking}); err != nil {
		t.Fatalf("InsertAccountType: %v", err)
	}
	if err := s.PutVendor(ctx, "NETFLIX", "Groceries"); err != nil {
		t.Fatalf("PutVendor: %v", err)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	txns, _ := s.ListTransactions(ctx)
	cats, _ := s.ListCategories(ctx)
	accts, _ := s.ListAccountTypes(ctx)
	vendors, _ := s.VendorMap(ctx)
	if len(txns)+len(cats)+len(accts)+len(vendors) != 0 {
		t.Errorf("store not empty after Clear: %d/%d/%d/%d", len(txns), len(cats), len(accts), len(vendors))
	}
}
