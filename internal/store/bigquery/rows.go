package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/spendlens/internal/domain"
)

// amountPrecision is the decimal precision used when converting NUMERIC
// values back to decimals. Statement amounts never carry more than four
// fractional digits.
const amountPrecision = 4

type transactionRow struct {
	TransactionID       string              `bigquery:"transaction_id"` // REQUIRED
	UserID              string              `bigquery:"user_id"`        // REQUIRED
	TransactionDate     civil.Date          `bigquery:"transaction_date"`
	Description         string              `bigquery:"description"`
	OriginalDescription string              `bigquery:"original_description"`
	Amount              *big.Rat            `bigquery:"amount"` // NUMERIC
	Category            string              `bigquery:"category"`
	CostType            bigquery.NullString `bigquery:"cost_type"` // NULLABLE
	CostTypeOverridden  bool                `bigquery:"cost_type_overridden"`
	AccountTypeID       bigquery.NullString `bigquery:"account_type_id"` // NULLABLE
	Bank                bigquery.NullString `bigquery:"bank"`            // NULLABLE
	Month               string              `bigquery:"month"`
	CreatedTS           time.Time           `bigquery:"created_ts"`
}

type categoryRow struct {
	UserID   string              `bigquery:"user_id"`
	Name     string              `bigquery:"name"`
	CostType bigquery.NullString `bigquery:"cost_type"` // NULLABLE
}

type accountTypeRow struct {
	UserID        string `bigquery:"user_id"`
	AccountTypeID string `bigquery:"account_type_id"`
	Name          string `bigquery:"name"`
	TypeFlag      string `bigquery:"type_flag"`
}

type vendorRow struct {
	UserID   string `bigquery:"user_id"`
	Vendor   string `bigquery:"vendor"`
	Category string `bigquery:"category"`
}

func toTransactionRow(t *domain.Transaction, userID string) *transactionRow {
	r := &transactionRow{
		TransactionID:       t.ID,
		UserID:              userID,
		TransactionDate:     t.Date,
		Description:         t.Description,
		OriginalDescription: t.OriginalDescription,
		Amount:              t.Amount.Rat(),
		Category:            t.Category,
		CostTypeOverridden:  t.CostTypeOverridden,
		Month:               t.Month,
		CreatedTS:           t.CreatedAt,
	}
	if t.CostType != nil {
		r.CostType = bigquery.NullString{StringVal: string(*t.CostType), Valid: true}
	}
	if t.AccountTypeID != "" {
		r.AccountTypeID = bigquery.NullString{StringVal: t.AccountTypeID, Valid: true}
	}
	if t.Bank != "" {
		r.Bank = bigquery.NullString{StringVal: t.Bank, Valid: true}
	}
	return r
}

func (r *transactionRow) toDomain() domain.Transaction {
	t := domain.Transaction{
		ID:                  r.TransactionID,
		Date:                r.TransactionDate,
		Description:         r.Description,
		OriginalDescription: r.OriginalDescription,
		Category:            r.Category,
		CostTypeOverridden:  r.CostTypeOverridden,
		Month:               r.Month,
		CreatedAt:           r.CreatedTS,
	}
	if r.Amount != nil {
		t.Amount = decimal.NewFromBigRat(r.Amount, amountPrecision)
	}
	if r.CostType.Valid {
		ct := domain.CostType(r.CostType.StringVal)
		t.CostType = &ct
	}
	if r.AccountTypeID.Valid {
		t.AccountTypeID = r.AccountTypeID.StringVal
	}
	if r.Bank.Valid {
		t.Bank = r.Bank.StringVal
	}
	return t
}
