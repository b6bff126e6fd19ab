package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseDocument(t *testing.T) {
	var gotPath, gotFilename string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotFilename = header.Filename

		json.NewEncoder(w).Encode(Statement{
			BankName:       "TD Bank",
			StatementMonth: "2024-11",
			Transactions: []Candidate{
				{Date: "2024-11-05", Description: "CORNER STORE", Amount: -8.50},
			},
			ParsingRules: ParsingRules{Method: "camelot", TablesFound: 2},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zerolog.Nop())
	stmt, err := c.ParseDocument(context.Background(), "/tmp/statement.pdf", []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}

	if gotPath != "/api/parse-pdf" {
		t.Errorf("posted to %q, want /api/parse-pdf", gotPath)
	}
	if gotFilename != "statement.pdf" {
		t.Errorf("uploaded filename = %q, want statement.pdf", gotFilename)
	}
	if stmt.BankName != "TD Bank" || stmt.StatementMonth != "2024-11" {
		t.Errorf("statement metadata = %q/%q", stmt.BankName, stmt.StatementMonth)
	}
	if len(stmt.Transactions) != 1 || stmt.ParsingRules.TablesFound != 2 {
		t.Errorf("statement body parsed badly: %+v", stmt)
	}
}

func TestParseDocumentServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(apiError{Error: "No tables found in PDF"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zerolog.Nop())
	_, err := c.ParseDocument(context.Background(), "bad.pdf", []byte("%PDF-1.4"))
	if err == nil {
		t.Fatal("expected service error")
	}
}

func TestTransactionsDropsMalformedCandidates(t *testing.T) {
	stmt := &Statement{
		BankName: "TD Bank",
		Transactions: []Candidate{
			{Date: "2024-11-05", Description: "CORNER STORE", Amount: -8.50},
			{Date: "2024-11-06", Description: "PAYCHECK", Amount: 2500.00, IsIncome: true},
			{Date: "not-a-date", Description: "BROKEN ROW", Amount: -1.00},
			{Date: "2024-11-07", Description: "", Amount: -1.00},
			{Date: "2024-11-08", Description: "ZERO", Amount: 0},
			// Positive amount without the income hint: sign gets repaired.
			{Date: "2024-11-09", Description: "ATM WITHDRAWAL", Amount: 60.00},
		},
	}

	txns := Transactions(stmt, zerolog.Nop())
	if len(txns) != 3 {
		t.Fatalf("got %d transactions, want 3", len(txns))
	}
	for _, txn := range txns {
		if txn.Bank != "TD Bank" {
			t.Errorf("Bank = %q, want TD Bank", txn.Bank)
		}
		if txn.Month == "" {
			t.Error("Month not derived")
		}
	}
	if !txns[2].Amount.IsNegative() {
		t.Errorf("expense sign not repaired: %s", txns[2].Amount)
	}
	if !txns[1].Amount.IsPositive() {
		t.Errorf("income flipped: %s", txns[1].Amount)
	}
}
