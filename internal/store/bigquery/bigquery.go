// Package bigquery is the remote store variant, backed by a BigQuery
// dataset shared across devices. Every row carries a user_id and every
// statement filters on it; the caller guarantees the id belongs to the
// authenticated user.
package bigquery

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/spendlens/internal/domain"
	"github.com/dvloznov/spendlens/internal/store"
)

const (
	transactionsTable = "transactions"
	categoriesTable   = "categories"
	accountTypesTable = "account_types"
	vendorsTable      = "vendors"
)

// Store is a BigQuery-backed store.Store scoped to one user.
type Store struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	userID    string
}

// NewStore wraps an existing client. The client's lifecycle belongs to the
// caller.
func NewStore(client *bigquery.Client, projectID, datasetID, userID string) (*Store, error) {
	if userID == "" {
		return nil, errors.New("NewStore: user id is required")
	}
	return &Store{client: client, projectID: projectID, datasetID: datasetID, userID: userID}, nil
}

func (s *Store) table(name string) string {
	return "`" + s.projectID + "." + s.datasetID + "." + name + "`"
}

// runDML executes a DML statement and waits for the job to finish.
func (s *Store) runDML(ctx context.Context, query string, params []bigquery.QueryParameter) error {
	q := s.client.Query(query)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("run query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

func userParam(userID string) bigquery.QueryParameter {
	return bigquery.QueryParameter{Name: "user_id", Value: userID}
}

func (s *Store) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	q := s.client.Query(`
		SELECT
		  transaction_id, user_id, transaction_date, description,
		  original_description, amount, category, cost_type,
		  cost_type_overridden, account_type_id, bank, month, created_ts
		FROM ` + s.table(transactionsTable) + `
		WHERE user_id = @user_id
		ORDER BY transaction_date, created_ts
	`)
	q.Parameters = []bigquery.QueryParameter{userParam(s.userID)}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: query read: %w", err)
	}

	var out []domain.Transaction
	for {
		var r transactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: iter next: %w", err)
		}
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	q := s.client.Query(`
		SELECT
		  transaction_id, user_id, transaction_date, description,
		  original_description, amount, category, cost_type,
		  cost_type_overridden, account_type_id, bank, month, created_ts
		FROM ` + s.table(transactionsTable) + `
		WHERE user_id = @user_id AND transaction_id = @transaction_id
	`)
	q.Parameters = []bigquery.QueryParameter{
		userParam(s.userID),
		{Name: "transaction_id", Value: id},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: query read: %w", err)
	}

	var r transactionRow
	if err := it.Next(&r); err == iterator.Done {
		return nil, fmt.Errorf("GetTransaction: transaction %s: %w", id, store.ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("GetTransaction: iter next: %w", err)
	}
	t := r.toDomain()
	return &t, nil
}

func (s *Store) InsertTransactions(ctx context.Context, txns []domain.Transaction) error {
	if len(txns) == 0 {
		return nil
	}
	rows := make([]*transactionRow, 0, len(txns))
	for i := range txns {
		rows = append(rows, toTransactionRow(&txns[i], s.userID))
	}

	table := s.client.DatasetInProject(s.projectID, s.datasetID).Table(transactionsTable)
	if err := table.Inserter().Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertTransactions: inserting rows: %w", err)
	}
	return nil
}

func (s *Store) UpdateTransaction(ctx context.Context, txn domain.Transaction) error {
	r := toTransactionRow(&txn, s.userID)
	err := s.runDML(ctx, `
		UPDATE `+s.table(transactionsTable)+`
		SET transaction_date = @transaction_date,
		    description = @description,
		    amount = @amount,
		    category = @category,
		    cost_type = @cost_type,
		    cost_type_overridden = @cost_type_overridden,
		    account_type_id = @account_type_id,
		    bank = @bank,
		    month = @month
		WHERE user_id = @user_id AND transaction_id = @transaction_id
	`, []bigquery.QueryParameter{
		userParam(s.userID),
		{Name: "transaction_id", Value: txn.ID},
		{Name: "transaction_date", Value: txn.Date},
		{Name: "description", Value: r.Description},
		{Name: "amount", Value: r.Amount},
		{Name: "category", Value: r.Category},
		{Name: "cost_type", Value: r.CostType},
		{Name: "cost_type_overridden", Value: r.CostTypeOverridden},
		{Name: "account_type_id", Value: r.AccountTypeID},
		{Name: "bank", Value: r.Bank},
		{Name: "month", Value: r.Month},
	})
	if err != nil {
		return fmt.Errorf("UpdateTransaction: %w", err)
	}
	return nil
}

func (s *Store) DeleteTransactions(ctx context.Context, ids []string) ([]domain.Transaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	// Read the records first so the caller gets exactly what was removed.
	q := s.client.Query(`
		SELECT
		  transaction_id, user_id, transaction_date, description,
		  original_description, amount, category, cost_type,
		  cost_type_overridden, account_type_id, bank, month, created_ts
		FROM ` + s.table(transactionsTable) + `
		WHERE user_id = @user_id AND transaction_id IN UNNEST(@ids)
	`)
	q.Parameters = []bigquery.QueryParameter{
		userParam(s.userID),
		{Name: "ids", Value: ids},
	}
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("DeleteTransactions: query read: %w", err)
	}
	var removed []domain.Transaction
	for {
		var r transactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("DeleteTransactions: iter next: %w", err)
		}
		removed = append(removed, r.toDomain())
	}

	err = s.runDML(ctx, `
		DELETE FROM `+s.table(transactionsTable)+`
		WHERE user_id = @user_id AND transaction_id IN UNNEST(@ids)
	`, []bigquery.QueryParameter{
		userParam(s.userID),
		{Name: "ids", Value: ids},
	})
	if err != nil {
		return nil, fmt.Errorf("DeleteTransactions: %w", err)
	}
	return removed, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	q := s.client.Query(`
		SELECT user_id, name, cost_type
		FROM ` + s.table(categoriesTable) + `
		WHERE user_id = @user_id
		ORDER BY name
	`)
	q.Parameters = []bigquery.QueryParameter{userParam(s.userID)}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListCategories: query read: %w", err)
	}

	var out []domain.Category
	for {
		var r categoryRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListCategories: iter next: %w", err)
		}
		c := domain.Category{Name: r.Name}
		if r.CostType.Valid {
			ct := domain.CostType(r.CostType.StringVal)
			c.CostType = &ct
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) InsertCategory(ctx context.Context, c domain.Category) error {
	r := &categoryRow{UserID: s.userID, Name: c.Name}
	if c.CostType != nil {
		r.CostType = bigquery.NullString{StringVal: string(*c.CostType), Valid: true}
	}
	table := s.client.DatasetInProject(s.projectID, s.datasetID).Table(categoriesTable)
	if err := table.Inserter().Put(ctx, []*categoryRow{r}); err != nil {
		return fmt.Errorf("InsertCategory: inserting row: %w", err)
	}
	return nil
}

func (s *Store) RenameCategory(ctx context.Context, oldName, newName string) error {
	// Single multi-statement script so the category row, its transactions
	// and its vendor mappings move together.
	err := s.runDML(ctx, `
		BEGIN TRANSACTION;
		UPDATE `+s.table(categoriesTable)+`
		  SET name = @new_name
		  WHERE user_id = @user_id AND name = @old_name;
		UPDATE `+s.table(transactionsTable)+`
		  SET category = @new_name
		  WHERE user_id = @user_id AND category = @old_name;
		UPDATE `+s.table(vendorsTable)+`
		  SET category = @new_name
		  WHERE user_id = @user_id AND category = @old_name;
		COMMIT TRANSACTION;
	`, []bigquery.QueryParameter{
		userParam(s.userID),
		{Name: "old_name", Value: oldName},
		{Name: "new_name", Value: newName},
	})
	if err != nil {
		return fmt.Errorf("RenameCategory: %w", err)
	}
	return nil
}

func (s *Store) DeleteCategory(ctx context.Context, name string) error {
	err := s.runDML(ctx, `
		BEGIN TRANSACTION;
		DELETE FROM `+s.table(categoriesTable)+`
		  WHERE user_id = @user_id AND name = @name;
		UPDATE `+s.table(transactionsTable)+`
		  SET category = @unassigned,
		      cost_type = IF(cost_type_overridden, cost_type, NULL)
		  WHERE user_id = @user_id AND category = @name;
		DELETE FROM `+s.table(vendorsTable)+`
		  WHERE user_id = @user_id AND category = @name;
		COMMIT TRANSACTION;
	`, []bigquery.QueryParameter{
		userParam(s.userID),
		{Name: "name", Value: name},
		{Name: "unassigned", Value: domain.CategoryUnassigned},
	})
	if err != nil {
		return fmt.Errorf("DeleteCategory: %w", err)
	}
	return nil
}

func (s *Store) ListAccountTypes(ctx context.Context) ([]domain.AccountType, error) {
	q := s.client.Query(`
		SELECT user_id, account_type_id, name, type_flag
		FROM ` + s.table(accountTypesTable) + `
		WHERE user_id = @user_id
		ORDER BY name, type_flag
	`)
	q.Parameters = []bigquery.QueryParameter{userParam(s.userID)}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListAccountTypes: query read: %w", err)
	}

	var out []domain.AccountType
	for {
		var r accountTypeRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListAccountTypes: iter next: %w", err)
		}
		out = append(out, domain.AccountType{
			ID:   r.AccountTypeID,
			Name: r.Name,
			Flag: domain.AccountFlag(r.TypeFlag),
		})
	}
	return out, nil
}

func (s *Store) InsertAccountType(ctx context.Context, at domain.AccountType) error {
	if at.ID == "" {
		return fmt.Errorf("InsertAccountType: account type without id")
	}

	// Streaming inserts enforce no uniqueness, so check the id and the
	// (name, type_flag) pair up front.
	q := s.client.Query(`
		SELECT COUNT(*) AS n
		FROM ` + s.table(accountTypesTable) + `
		WHERE user_id = @user_id
		  AND (account_type_id = @account_type_id OR (name = @name AND type_flag = @type_flag))
	`)
	q.Parameters = []bigquery.QueryParameter{
		userParam(s.userID),
		{Name: "account_type_id", Value: at.ID},
		{Name: "name", Value: at.Name},
		{Name: "type_flag", Value: string(at.Flag)},
	}
	it, err := q.Read(ctx)
	if err != nil {
		return fmt.Errorf("InsertAccountType: existence query: %w", err)
	}
	var row struct {
		N int64 `bigquery:"n"`
	}
	if err := it.Next(&row); err != nil && err != iterator.Done {
		return fmt.Errorf("InsertAccountType: existence read: %w", err)
	}
	if row.N > 0 {
		return fmt.Errorf("InsertAccountType: account type %s/%s: %w", at.Name, at.Flag, store.ErrExists)
	}

	r := &accountTypeRow{
		UserID:        s.userID,
		AccountTypeID: at.ID,
		Name:          at.Name,
		TypeFlag:      string(at.Flag),
	}
	table := s.client.DatasetInProject(s.projectID, s.datasetID).Table(accountTypesTable)
	if err := table.Inserter().Put(ctx, []*accountTypeRow{r}); err != nil {
		return fmt.Errorf("InsertAccountType: inserting row: %w", err)
	}
	return nil
}

func (s *Store) VendorMap(ctx context.Context) (domain.VendorMap, error) {
	q := s.client.Query(`
		SELECT user_id, vendor, category
		FROM ` + s.table(vendorsTable) + `
		WHERE user_id = @user_id
	`)
	q.Parameters = []bigquery.QueryParameter{userParam(s.userID)}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("VendorMap: query read: %w", err)
	}

	out := domain.VendorMap{}
	for {
		var r vendorRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("VendorMap: iter next: %w", err)
		}
		out[r.Vendor] = r.Category
	}
	return out, nil
}

func (s *Store) PutVendor(ctx context.Context, key, category string) error {
	key = domain.NormalizeVendorKey(key)
	if key == "" || category == "" {
		return nil
	}
	err := s.runDML(ctx, `
		MERGE `+s.table(vendorsTable)+` v
		USING (SELECT @user_id AS user_id, @vendor AS vendor, @category AS category) n
		ON v.user_id = n.user_id AND v.vendor = n.vendor
		WHEN MATCHED THEN UPDATE SET category = n.category
		WHEN NOT MATCHED THEN INSERT (user_id, vendor, category) VALUES (n.user_id, n.vendor, n.category)
	`, []bigquery.QueryParameter{
		userParam(s.userID),
		{Name: "vendor", Value: key},
		{Name: "category", Value: category},
	})
	if err != nil {
		return fmt.Errorf("PutVendor: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	for _, table := range []string{transactionsTable, categoriesTable, accountTypesTable, vendorsTable} {
		err := s.runDML(ctx, `
			DELETE FROM `+s.table(table)+`
			WHERE user_id = @user_id
		`, []bigquery.QueryParameter{userParam(s.userID)})
		if err != nil {
			return fmt.Errorf("Clear: %s: %w", table, err)
		}
	}
	return nil
}

var _ store.Store = (*Store)(nil)
