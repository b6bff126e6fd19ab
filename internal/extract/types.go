package extract

// Candidate is one raw transaction as returned by the extraction service.
// Fields arrive untrusted: any of them may be blank, zero or malformed.
type Candidate struct {
	Date        string  `json:"date"` // YYYY-MM-DD
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	IsIncome    bool    `json:"isIncome"`
}

// ParsingRules describes how the service extracted the tables.
type ParsingRules struct {
	Method      string `json:"method"`
	TablesFound int    `json:"tablesFound"`
}

// Statement is the extraction service's response for one document.
type Statement struct {
	BankName       string       `json:"bankName"`
	StatementMonth string       `json:"statementMonth"` // YYYY-MM
	Transactions   []Candidate  `json:"transactions"`
	ParsingRules   ParsingRules `json:"parsingRules"`
}

// apiError is the service's error envelope.
type apiError struct {
	Error string `json:"error"`
}
