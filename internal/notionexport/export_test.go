package notionexport

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/jomei/notionapi"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/spendlens/internal/domain"
)

type mockNotion struct {
	pages   []notionapi.Page
	created []notionapi.Properties
	deleted []string
	updated []string

	createErr error
}

func (m *mockNotion) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.created = append(m.created, properties)
	return &notionapi.Page{ID: notionapi.ObjectID("new-page")}, nil
}

func (m *mockNotion) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	m.updated = append(m.updated, pageID)
	return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
}

func (m *mockNotion) QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return &notionapi.DatabaseQueryResponse{Results: m.pages, HasMore: false}, nil
}

func (m *mockNotion) DeletePage(ctx context.Context, pageID string) error {
	m.deleted = append(m.deleted, pageID)
	return nil
}

type fakeSource struct {
	txns       []domain.Transaction
	categories []domain.Category
}

func (f *fakeSource) Transactions(ctx context.Context) ([]domain.Transaction, error) {
	return f.txns, nil
}

func (f *fakeSource) Categories(ctx context.Context) ([]domain.Category, error) {
	return f.categories, nil
}

func txnPage(pageID, txID string) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(pageID),
		Properties: notionapi.Properties{
			"Transaction ID": &notionapi.RichTextProperty{
				RichText: []notionapi.RichText{{PlainText: txID}},
			},
		},
	}
}

func categoryPage(pageID, name string) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(pageID),
		Properties: notionapi.Properties{
			"Category": &notionapi.TitleProperty{
				Title: []notionapi.RichText{{PlainText: name}},
			},
		},
	}
}

func mustTxn(t *testing.T, desc string, amount int64) domain.Transaction {
	t.Helper()
	txn, err := domain.NewTransaction(civil.Date{Year: 2024, Month: 5, Day: 10}, desc, decimal.NewFromInt(amount))
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	return *txn
}

func TestExportTransactionsCreatesDeletesSkips(t *testing.T) {
	ctx := context.Background()

	kept := mustTxn(t, "SPOTIFY", -10)
	fresh := mustTxn(t, "GROCERY MART", -42)
	src := &fakeSource{txns: []domain.Transaction{kept, fresh}}

	notion := &mockNotion{pages: []notionapi.Page{
		txnPage("page-kept", kept.ID),
		txnPage("page-stale", "gone-id"),
	}}

	result, err := ExportTransactions(ctx, src, notion, "db", nil, false, zerolog.Nop())
	if err != nil {
		t.Fatalf("ExportTransactions: %v", err)
	}

	if result.Created != 1 || result.Deleted != 1 || result.Skipped != 1 {
		t.Errorf("Result = %+v, want created 1 deleted 1 skipped 1", result)
	}
	if len(notion.deleted) != 1 || notion.deleted[0] != "page-stale" {
		t.Errorf("deleted = %v, want [page-stale]", notion.deleted)
	}
	if len(notion.created) != 1 {
		t.Fatalf("created %d pages, want 1", len(notion.created))
	}
}

func TestExportTransactionsDryRunTouchesNothing(t *testing.T) {
	ctx := context.Background()

	src := &fakeSource{txns: []domain.Transaction{mustTxn(t, "CAFE", -5)}}
	notion := &mockNotion{pages: []notionapi.Page{txnPage("page-stale", "gone-id")}}

	result, err := ExportTransactions(ctx, src, notion, "db", nil, true, zerolog.Nop())
	if err != nil {
		t.Fatalf("ExportTransactions: %v", err)
	}

	if result.Created != 1 || result.Deleted != 1 {
		t.Errorf("Result = %+v, want created 1 deleted 1", result)
	}
	if len(notion.created) != 0 || len(notion.deleted) != 0 {
		t.Errorf("dry run created %d deleted %d, want 0 and 0", len(notion.created), len(notion.deleted))
	}
}

func TestExportTransactionsCategoryRelation(t *testing.T) {
	ctx := context.Background()

	txn := mustTxn(t, "SPOTIFY", -10)
	txn.Category = "Subscriptions"
	src := &fakeSource{txns: []domain.Transaction{txn}}
	notion := &mockNotion{}

	pageIDs := map[string]string{"Subscriptions": "cat-page-1"}
	if _, err := ExportTransactions(ctx, src, notion, "db", pageIDs, false, zerolog.Nop()); err != nil {
		t.Fatalf("ExportTransactions: %v", err)
	}

	props := notion.created[0]
	rel, ok := props["Category"].(notionapi.RelationProperty)
	if !ok {
		t.Fatalf("Category property = %T, want RelationProperty", props["Category"])
	}
	if len(rel.Relation) != 1 || rel.Relation[0].ID != "cat-page-1" {
		t.Errorf("Relation = %+v, want cat-page-1", rel.Relation)
	}
}

func TestExportTransactionsCreateErrorContinues(t *testing.T) {
	ctx := context.Background()

	src := &fakeSource{txns: []domain.Transaction{mustTxn(t, "CAFE", -5)}}
	notion := &mockNotion{createErr: errors.New("rate limited")}

	result, err := ExportTransactions(ctx, src, notion, "db", nil, false, zerolog.Nop())
	if err != nil {
		t.Fatalf("ExportTransactions: %v", err)
	}
	if result.Created != 0 {
		t.Errorf("Created = %d, want 0", result.Created)
	}
}

func TestExportCategoriesReturnsPageIDs(t *testing.T) {
	ctx := context.Background()

	ct := domain.CostTypeVariable
	src := &fakeSource{categories: []domain.Category{
		{Name: "Groceries", CostType: &ct},
		{Name: "Salary Income"},
	}}
	notion := &mockNotion{pages: []notionapi.Page{
		categoryPage("cat-groceries", "Groceries"),
		categoryPage("cat-stale", "Old Category"),
	}}

	pageIDs, result, err := ExportCategories(ctx, src, notion, "db", false, zerolog.Nop())
	if err != nil {
		t.Fatalf("ExportCategories: %v", err)
	}

	if result.Created != 1 || result.Deleted != 1 || result.Skipped != 1 {
		t.Errorf("Result = %+v, want created 1 deleted 1 skipped 1", result)
	}
	if pageIDs["Groceries"] != "cat-groceries" {
		t.Errorf("Groceries page = %q, want cat-groceries", pageIDs["Groceries"])
	}
	if pageIDs["Salary Income"] != "new-page" {
		t.Errorf("Salary Income page = %q, want new-page", pageIDs["Salary Income"])
	}

	// Income flag follows the name suffix.
	props := notion.created[0]
	checkbox, ok := props["Is Income"].(notionapi.CheckboxProperty)
	if !ok {
		t.Fatalf("Is Income property = %T, want CheckboxProperty", props["Is Income"])
	}
	if !checkbox.Checkbox {
		t.Error("Is Income = false, want true")
	}
}
