package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/spendlens/internal/domain"
	"github.com/dvloznov/spendlens/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "spendlens.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustTxn(t *testing.T, desc string, amount string) domain.Transaction {
	t.Helper()
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		t.Fatalf("NewFromString: %v", err)
	}
	txn, err := domain.NewTransaction(civil.Date{Year: 2024, Month: 6, Day: 15}, desc, amt)
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	return *txn
}

func TestTransactionRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	txn := mustTxn(t, "GROCERY MART #42", "-54.10")
	ct := domain.CostTypeVariable
	txn.CostType = &ct
	txn.Bank = "TD Bank"

	if err := s.InsertTransactions(ctx, []domain.Transaction{txn}); err != nil {
		t.Fatalf("InsertTransactions: %v", err)
	}

	got, err := s.GetTransaction(ctx, txn.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if got.Description != txn.Description {
		t.Errorf("Description = %q, want %q", got.Description, txn.Description)
	}
	if !got.Amount.Equal(txn.Amount) {
		t.Errorf("Amount = %s, want %s", got.Amount, txn.Amount)
	}
	if got.CostType == nil || *got.CostType != domain.CostTypeVariable {
		t.Errorf("CostType = %v, want Variable", got.CostType)
	}
	if got.Month != "2024-06" {
		t.Errorf("Month = %q, want 2024-06", got.Month)
	}
	if !got.Date.IsValid() || got.Date != txn.Date {
		t.Errorf("Date = %v, want %v", got.Date, txn.Date)
	}
}

func TestGetTransactionNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetTransaction(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateTransaction(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	txn := mustTxn(t, "SPOTIFY", "-9.99")
	if err := s.InsertTransactions(ctx, []domain.Transaction{txn}); err != nil {
		t.Fatalf("InsertTransactions: %v", err)
	}

	txn.Category = "Subscriptions"
	txn.CostTypeOverridden = true
	if err := s.UpdateTransaction(ctx, txn); err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}

	got, err := s.GetTransaction(ctx, txn.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if got.Category != "Subscriptions" || !got.CostTypeOverridden {
		t.Errorf("got %+v, want Subscriptions with override", got)
	}

	unknown := mustTxn(t, "GHOST", "-1.00")
	if err := s.UpdateTransaction(ctx, unknown); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("update unknown: err = %v, want ErrNotFound", err)
	}
}

func TestDeleteTransactionsSkipsUnknown(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := mustTxn(t, "CAFE", "-4.50")
	b := mustTxn(t, "BOOKS", "-20.00")
	if err := s.InsertTransactions(ctx, []domain.Transaction{a, b}); err != nil {
		t.Fatalf("InsertTransactions: %v", err)
	}

	removed, err := s.DeleteTransactions(ctx, []string{a.ID, "missing"})
	if err != nil {
		t.Fatalf("DeleteTransactions: %v", err)
	}
	if len(removed) != 1 || removed[0].ID != a.ID {
		t.Fatalf("removed = %v, want only %s", removed, a.ID)
	}

	left, err := s.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(left) != 1 || left[0].ID != b.ID {
		t.Errorf("left = %v, want only %s", left, b.ID)
	}
}

func TestCategoryCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ct := domain.CostTypeFixed
	if err := s.InsertCategory(ctx, domain.Category{Name: "Rent", CostType: &ct}); err != nil {
		t.Fatalf("InsertCategory: %v", err)
	}
	if err := s.InsertCategory(ctx, domain.Category{Name: "Rent"}); !errors.Is(err, store.ErrExists) {
		t.Fatalf("duplicate insert: err = %v, want ErrExists", err)
	}

	txn := mustTxn(t, "LANDLORD", "-1200.00")
	txn.Category = "Rent"
	txn.CostType = &ct
	if err := s.InsertTransactions(ctx, []domain.Transaction{txn}); err != nil {
		t.Fatalf("InsertTransactions: %v", err)
	}
	if err := s.PutVendor(ctx, "LANDLORD", "Rent"); err != nil {
		t.Fatalf("PutVendor: %v", err)
	}

	// Rename follows through to transactions and vendors.
	if err := s.RenameCategory(ctx, "Rent", "Housing"); err != nil {
		t.Fatalf("RenameCategory: %v", err)
	}
	got, err := s.GetTransaction(ctx, txn.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if got.Category != "Housing" {
		t.Errorf("Category = %q, want Housing", got.Category)
	}
	vendors, err := s.VendorMap(ctx)
	if err != nil {
		t.Fatalf("VendorMap: %v", err)
	}
	if vendors["LANDLORD"] != "Housing" {
		t.Errorf("vendor category = %q, want Housing", vendors["LANDLORD"])
	}

	// Delete reassigns to Unassigned, clears the derived cost type and drops
	// the vendor mappings.
	if err := s.DeleteCategory(ctx, "Housing"); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	got, err = s.GetTransaction(ctx, txn.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if got.Category != domain.CategoryUnassigned {
		t.Errorf("Category = %q, want %q", got.Category, domain.CategoryUnassigned)
	}
	if got.CostType != nil {
		t.Errorf("CostType = %v, want nil after delete", got.CostType)
	}
	vendors, err = s.VendorMap(ctx)
	if err != nil {
		t.Fatalf("VendorMap: %v", err)
	}
	if len(vendors) != 0 {
		t.Errorf("vendors = %v, want empty", vendors)
	}
}

func TestPutVendorUpserts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.PutVendor(ctx, "SPOTIFY", "Music"); err != nil {
		t.Fatalf("PutVendor: %v", err)
	}
	if err := s.PutVendor(ctx, "SPOTIFY", "Subscriptions"); err != nil {
		t.Fatalf("PutVendor upsert: %v", err)
	}

	vendors, err := s.VendorMap(ctx)
	if err != nil {
		t.Fatalf("VendorMap: %v", err)
	}
	if vendors["SPOTIFY"] != "Subscriptions" {
		t.Errorf("SPOTIFY = %q, want Subscriptions", vendors["SPOTIFY"])
	}
}

func TestInsertAccountTypeRejectsDuplicatePair(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.InsertAccountType(ctx, domain.AccountType{ID: "at-1", Name: "Everyday", Flag: domain.AccountChecking}); err != nil {
		t.Fatalf("InsertAccountType: %v", err)
	}

	// Same name and flag under a fresh id is still the same account type.
	err := s.InsertAccountType(ctx, domain.AccountType{ID: "at-2", Name: "Everyday", Flag: domain.AccountChecking})
	if !errors.Is(err, store.ErrExists) {
		t.Fatalf("InsertAccountType duplicate pair: err = %v, want ErrExists", err)
	}

	// Same name under a different flag is a distinct account type.
	if err := s.InsertAccountType(ctx, domain.AccountType{ID: "at-3", Name: "Everyday", Flag: domain.AccountSavings}); err != nil {
		t.Fatalf("InsertAccountType different flag: %v", err)
	}

	accounts, _ := s.ListAccountTypes(ctx)
	if len(accounts) != 2 {
		t.Errorf("ListAccountTypes returned %d account types, want 2", len(accounts))
	}
}

func TestClearWipesEverything(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.InsertTransactions(ctx, []domain.Transaction{mustTxn(t, "CAFE", "-3.00")}); err != nil {
		t.Fatalf("InsertTransactions: %v", err)
	}
	if err := s.InsertCategory(ctx, domain.Category{Name: "Dining"}); err != nil {
		t.Fatalf("InsertCategory: %v", err)
	}
	if err := s.InsertAccountType(ctx, domain.AccountType{ID: "at-1", Name: "Everyday", Flag: domain.AccountChecking}); err != nil {
		t.Fatalf("InsertAccountType: %v", err)
	}
	if err := s.PutVendor(ctx, "CAFE", "Dining"); err != nil {
		t.Fatalf("PutVendor: %v", err)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	txns, _ := s.ListTransactions(ctx)
	cats, _ := s.ListCategories(ctx)
	accounts, _ := s.ListAccountTypes(ctx)
	vendors, _ := s.VendorMap(ctx)
	if len(txns)+len(cats)+len(accounts)+len(vendors) != 0 {
		t.Errorf("Clear left data behind: %d txns, %d categories, %d accounts, %d vendors",
			len(txns), len(cats), len(accounts), len(vendors))
	}
}
