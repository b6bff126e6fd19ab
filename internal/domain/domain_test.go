package domain

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

func TestNewTransaction(t *testing.T) {
	date := civil.Date{Year: 2024, Month: 11, Day: 1}

	tests := []struct {
		name        string
		date        civil.Date
		description string
		amount      decimal.Decimal
		wantErr     bool
	}{
		{
			name:        "valid expense",
			date:        date,
			description: "COFFEE SHOP #123",
			amount:      decimal.NewFromFloat(-4.50),
			wantErr:     false,
		},
		{
			name:        "zero amount rejected",
			date:        date,
			description: "FEE REVERSAL",
			amount:      decimal.Zero,
			wantErr:     true,
		},
		{
			name:        "blank description rejected",
			date:        date,
			description: "   ",
			amount:      decimal.NewFromFloat(10),
			wantErr:     true,
		},
		{
			name:        "invalid date rejected",
			date:        civil.Date{},
			description: "PAYROLL",
			amount:      decimal.NewFromFloat(10),
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := NewTransaction(tt.date, tt.description, tt.amount)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewTransaction() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if tx.ID == "" {
				t.Error("expected generated ID")
			}
			if tx.Category != CategoryUnassigned {
				t.Errorf("Category = %q, want %q", tx.Category, CategoryUnassigned)
			}
			if tx.Month != "2024-11" {
				t.Errorf("Month = %q, want 2024-11", tx.Month)
			}
			if tx.OriginalDescription != tx.Description {
				t.Errorf("OriginalDescription = %q, want %q", tx.OriginalDescription, tx.Description)
			}
		})
	}
}

func TestSetDateDerivesMonth(t *testing.T) {
	tx, err := NewTransaction(civil.Date{Year: 2024, Month: 1, Day: 31}, "RENT", decimal.NewFromInt(-1200))
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}

	tx.SetDate(civil.Date{Year: 2025, Month: 2, Day: 1})
	if tx.Month != "2025-02" {
		t.Errorf("Month = %q, want 2025-02", tx.Month)
	}
}

func TestCategoryIsIncome(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"Salary Income", true},
		{"Other Income", true},
		{"income", true},
		{"Groceries", false},
		{"Incoming Wire", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Category{Name: tt.name}.IsIncome()
			if got != tt.want {
				t.Errorf("IsIncome(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestAccountTypeKey(t *testing.T) {
	a := AccountType{Name: "Everyday", Flag: AccountChecking}
	b := AccountType{Name: "Everyday", Flag: AccountSavings}
	if a.Key() == b.Key() {
		t.Error("same name with different flags must have distinct keys")
	}
}

func TestVendorMapPut(t *testing.T) {
	m := VendorMap{}
	m.Put("  netflix ", "Subscriptions")
	if got := m["NETFLIX"]; got != "Subscriptions" {
		t.Errorf("m[NETFLIX] = %q, want Subscriptions", got)
	}

	m.Put("", "Groceries")
	if len(m) != 1 {
		t.Errorf("blank vendor key should be ignored, map has %d entries", len(m))
	}
}
