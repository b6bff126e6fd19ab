package domain

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CategoryUnassigned is the category given to transactions that have not
// been classified yet, or whose classification was rejected.
const CategoryUnassigned = "Unassigned"

// CostType classifies a transaction as a fixed or variable cost for
// budgeting views. It is inherited from the category's default unless the
// user overrides it on the transaction.
type CostType string

const (
	CostTypeFixed    CostType = "Fixed"
	CostTypeVariable CostType = "Variable"
)

// Transaction is one normalized ledger entry. Negative amounts are
// withdrawals/expenses, positive amounts are deposits/income.
type Transaction struct {
	ID          string          `json:"id"`
	Date        civil.Date      `json:"date"`
	Description string          `json:"description"`
	// OriginalDescription is the description exactly as extracted from the
	// statement; it never changes after construction.
	OriginalDescription string          `json:"original_description"`
	Amount              decimal.Decimal `json:"amount"`
	Category            string          `json:"category"`
	CostType            *CostType       `json:"cost_type,omitempty"`
	// CostTypeOverridden marks an explicit user override; category-derived
	// cost types must not replace it.
	CostTypeOverridden bool      `json:"cost_type_overridden,omitempty"`
	AccountTypeID      string    `json:"account_type_id,omitempty"`
	Bank               string    `json:"bank,omitempty"`
	Month              string    `json:"month"`
	CreatedAt          time.Time `json:"created_at"`
}

// NewTransaction builds a transaction and enforces the construction
// invariants: non-blank description, valid date, non-zero amount. Month is
// derived from the date and ID is a fresh UUID.
func NewTransaction(date civil.Date, description string, amount decimal.Decimal) (*Transaction, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("NewTransaction: description is required")
	}
	if !date.IsValid() {
		return nil, fmt.Errorf("NewTransaction: invalid date %v", date)
	}
	if amount.IsZero() {
		return nil, fmt.Errorf("NewTransaction: amount must be non-zero")
	}

	return &Transaction{
		ID:                  uuid.NewString(),
		Date:                date,
		Description:         description,
		OriginalDescription: description,
		Amount:              amount,
		Category:            CategoryUnassigned,
		Month:               MonthOf(date),
		CreatedAt:           time.Now().UTC(),
	}, nil
}

// MonthOf derives the YYYY-MM month key from a calendar date.
func MonthOf(d civil.Date) string {
	return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
}

// SetDate changes the transaction date and re-derives Month, which is never
// mutated independently.
func (t *Transaction) SetDate(d civil.Date) {
	t.Date = d
	t.Month = MonthOf(d)
}

// IsExpense reports whether the transaction is a withdrawal.
func (t *Transaction) IsExpense() bool {
	return t.Amount.IsNegative()
}

// Clone returns a copy of the transaction.
func (t *Transaction) Clone() Transaction {
	c := *t
	if t.CostType != nil {
		ct := *t.CostType
		c.CostType = &ct
	}
	return c
}
