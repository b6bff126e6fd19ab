package extract

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/spendlens/internal/domain"
)

// Transactions converts a statement's candidates into domain transactions.
// Malformed candidates (blank description, unparseable date, zero amount)
// are dropped silently: bad rows are expected output of table extraction,
// not an error condition. The service already signs amounts, so the
// isIncome hint is only used to repair a positive expense.
func Transactions(stmt *Statement, log zerolog.Logger) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(stmt.Transactions))
	dropped := 0
	for _, c := range stmt.Transactions {
		date, err := civil.ParseDate(c.Date)
		if err != nil {
			dropped++
			continue
		}
		amount := decimal.NewFromFloat(c.Amount)
		if !c.IsIncome && amount.IsPositive() {
			amount = amount.Neg()
		}
		txn, err := domain.NewTransaction(date, c.Description, amount)
		if err != nil {
			dropped++
			continue
		}
		txn.Bank = stmt.BankName
		out = append(out, *txn)
	}
	if dropped > 0 {
		log.Debug().Int("dropped", dropped).Int("kept", len(out)).Msg("Dropped malformed candidates")
	}
	return out
}
