// Package sqlite is the durable local store variant: a single-file SQLite
// database so unauthenticated sessions survive restarts. It implements the
// same contract as the in-memory and remote stores.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/shopspring/decimal"

	"github.com/dvloznov/spendlens/internal/domain"
	"github.com/dvloznov/spendlens/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id                   TEXT PRIMARY KEY,
	date                 TEXT NOT NULL,
	description          TEXT NOT NULL,
	original_description TEXT NOT NULL,
	amount               TEXT NOT NULL,
	category             TEXT NOT NULL,
	cost_type            TEXT,
	cost_type_overridden INTEGER NOT NULL DEFAULT 0,
	account_type_id      TEXT NOT NULL DEFAULT '',
	bank                 TEXT NOT NULL DEFAULT '',
	month                TEXT NOT NULL,
	created_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS categories (
	name      TEXT PRIMARY KEY,
	cost_type TEXT
);

CREATE TABLE IF NOT EXISTS account_types (
	id        TEXT PRIMARY KEY,
	name      TEXT NOT NULL,
	type_flag TEXT NOT NULL,
	UNIQUE (name, type_flag)
);

CREATE TABLE IF NOT EXISTS vendors (
	vendor   TEXT PRIMARY KEY,
	category TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_month    ON transactions(month);
CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions(category);
`

const dateFormat = "2006-01-02"

// Store is a SQLite-backed store.Store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path, enables WAL mode
// and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("Open: create database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("Open: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// transaction runs fn inside a database transaction, rolling back when fn
// fails.
func (s *Store) transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const txnColumns = `id, date, description, original_description, amount, category,
	cost_type, cost_type_overridden, account_type_id, bank, month, created_at`

func scanTransaction(row interface{ Scan(...any) error }) (*domain.Transaction, error) {
	var (
		t          domain.Transaction
		date       string
		amount     string
		costType   sql.NullString
		overridden int
		createdAt  string
	)
	err := row.Scan(&t.ID, &date, &t.Description, &t.OriginalDescription, &amount,
		&t.Category, &costType, &overridden, &t.AccountTypeID, &t.Bank, &t.Month, &createdAt)
	if err != nil {
		return nil, err
	}

	d, err := civil.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", date, err)
	}
	t.Date = d
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if costType.Valid {
		ct := domain.CostType(costType.String)
		t.CostType = &ct
	}
	t.CostTypeOverridden = overridden != 0
	if t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	return &t, nil
}

func txnArgs(t *domain.Transaction) []any {
	var costType sql.NullString
	if t.CostType != nil {
		costType = sql.NullString{String: string(*t.CostType), Valid: true}
	}
	overridden := 0
	if t.CostTypeOverridden {
		overridden = 1
	}
	return []any{
		t.ID, t.Date.String(), t.Description, t.OriginalDescription,
		t.Amount.String(), t.Category, costType, overridden,
		t.AccountTypeID, t.Bank, t.Month, t.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (s *Store) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+txnColumns+` FROM transactions ORDER BY date, created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: scan: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListTransactions: rows: %w", err)
	}
	return out, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+txnColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("GetTransaction: transaction %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	return t, nil
}

func (s *Store) InsertTransactions(ctx context.Context, txns []domain.Transaction) error {
	if len(txns) == 0 {
		return nil
	}
	err := s.transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO transactions (`+txnColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()

		for i := range txns {
			if _, err := stmt.ExecContext(ctx, txnArgs(&txns[i])...); err != nil {
				return fmt.Errorf("insert %s: %w", txns[i].ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("InsertTransactions: %w", err)
	}
	return nil
}

func (s *Store) UpdateTransaction(ctx context.Context, txn domain.Transaction) error {
	args := txnArgs(&txn)
	// Shift id to the WHERE position.
	args = append(args[1:], txn.ID)
	res, err := s.db.ExecContext(ctx, `UPDATE transactions SET
		date = ?, description = ?, original_description = ?, amount = ?, category = ?,
		cost_type = ?, cost_type_overridden = ?, account_type_id = ?, bank = ?,
		month = ?, created_at = ?
		WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("UpdateTransaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateTransaction: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("UpdateTransaction: transaction %s: %w", txn.ID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteTransactions(ctx context.Context, ids []string) ([]domain.Transaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var removed []domain.Transaction
	err := s.transaction(ctx, func(tx *sql.Tx) error {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
		args := make([]any, len(ids))
		for i, id := range ids {
			args[i] = id
		}

		rows, err := tx.QueryContext(ctx, `SELECT `+txnColumns+` FROM transactions WHERE id IN (`+placeholders+`)`, args...)
		if err != nil {
			return fmt.Errorf("select: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			t, err := scanTransaction(rows)
			if err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			removed = append(removed, *t)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id IN (`+placeholders+`)`, args...); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("DeleteTransactions: %w", err)
	}
	return removed, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, cost_type FROM categories ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("ListCategories: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		var (
			c        domain.Category
			costType sql.NullString
		)
		if err := rows.Scan(&c.Name, &costType); err != nil {
			return nil, fmt.Errorf("ListCategories: scan: %w", err)
		}
		if costType.Valid {
			ct := domain.CostType(costType.String)
			c.CostType = &ct
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListCategories: rows: %w", err)
	}
	return out, nil
}

func (s *Store) InsertCategory(ctx context.Context, c domain.Category) error {
	var costType sql.NullString
	if c.CostType != nil {
		costType = sql.NullString{String: string(*c.CostType), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO categories (name, cost_type) VALUES (?, ?)`, c.Name, costType)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("InsertCategory: category %q: %w", c.Name, store.ErrExists)
		}
		return fmt.Errorf("InsertCategory: %w", err)
	}
	return nil
}

func (s *Store) RenameCategory(ctx context.Context, oldName, newName string) error {
	err := s.transaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE categories SET name = ? WHERE name = ?`, newName, oldName)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				return fmt.Errorf("category %q: %w", newName, store.ErrExists)
			}
			return fmt.Errorf("update category: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("category %q: %w", oldName, store.ErrNotFound)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE transactions SET category = ? WHERE category = ?`, newName, oldName); err != nil {
			return fmt.Errorf("update transactions: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE vendors SET category = ? WHERE category = ?`, newName, oldName); err != nil {
			return fmt.Errorf("update vendors: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("RenameCategory: %w", err)
	}
	return nil
}

func (s *Store) DeleteCategory(ctx context.Context, name string) error {
	err := s.transaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE name = ?`, name)
		if err != nil {
			return fmt.Errorf("delete category: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("category %q: %w", name, store.ErrNotFound)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE transactions
			SET category = ?, cost_type = CASE WHEN cost_type_overridden = 0 THEN NULL ELSE cost_type END
			WHERE category = ?`, domain.CategoryUnassigned, name); err != nil {
			return fmt.Errorf("reassign transactions: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM vendors WHERE category = ?`, name); err != nil {
			return fmt.Errorf("drop vendors: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("DeleteCategory: %w", err)
	}
	return nil
}

func (s *Store) ListAccountTypes(ctx context.Context) ([]domain.AccountType, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, type_flag FROM account_types ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("ListAccountTypes: query: %w", err)
	}
	defer rows.Close()

	var out []domain.AccountType
	for rows.Next() {
		var at domain.AccountType
		if err := rows.Scan(&at.ID, &at.Name, &at.Flag); err != nil {
			return nil, fmt.Errorf("ListAccountTypes: scan: %w", err)
		}
		out = append(out, at)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListAccountTypes: rows: %w", err)
	}
	return out, nil
}

func (s *Store) InsertAccountType(ctx context.Context, at domain.AccountType) error {
	if at.ID == "" {
		return fmt.Errorf("InsertAccountType: account type without id")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO account_types (id, name, type_flag) VALUES (?, ?, ?)`,
		at.ID, at.Name, string(at.Flag))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("InsertAccountType: account type %s: %w", at.ID, store.ErrExists)
		}
		return fmt.Errorf("InsertAccountType: %w", err)
	}
	return nil
}

func (s *Store) VendorMap(ctx context.Context) (domain.VendorMap, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT vendor, category FROM vendors`)
	if err != nil {
		return nil, fmt.Errorf("VendorMap: query: %w", err)
	}
	defer rows.Close()

	out := domain.VendorMap{}
	for rows.Next() {
		var vendor, category string
		if err := rows.Scan(&vendor, &category); err != nil {
			return nil, fmt.Errorf("VendorMap: scan: %w", err)
		}
		out[vendor] = category
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("VendorMap: rows: %w", err)
	}
	return out, nil
}

func (s *Store) PutVendor(ctx context.Context, key, category string) error {
	key = domain.NormalizeVendorKey(key)
	if key == "" || category == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO vendors (vendor, category) VALUES (?, ?)
		ON CONFLICT(vendor) DO UPDATE SET category = excluded.category`, key, category)
	if err != nil {
		return fmt.Errorf("PutVendor: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	err := s.transaction(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"transactions", "categories", "account_types", "vendors"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("Clear: %w", err)
	}
	return nil
}

var _ store.Store = (*Store)(nil)
