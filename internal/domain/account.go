package domain

import "fmt"

// AccountFlag is the kind of account an AccountType describes.
type AccountFlag string

const (
	AccountChecking AccountFlag = "Checking"
	AccountSavings  AccountFlag = "Savings"
	AccountCredit   AccountFlag = "Credit"
	AccountLoan     AccountFlag = "Loan"
)

// AccountType labels a group of transactions with the account they came
// from. Uniqueness is on the (Name, Flag) pair, not Name alone: two banks
// may both have a "Everyday" account with different flags.
type AccountType struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Flag AccountFlag `json:"type_flag"`
}

// Key returns the uniqueness key of the account type.
func (a AccountType) Key() string {
	return fmt.Sprintf("%s|%s", a.Name, a.Flag)
}

// ValidAccountFlag reports whether s is one of the fixed account flags.
func ValidAccountFlag(s string) bool {
	switch AccountFlag(s) {
	case AccountChecking, AccountSavings, AccountCredit, AccountLoan:
		return true
	}
	return false
}
