package notionexport

import (
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/spendlens/internal/domain"
)

// TransactionToNotionProperties converts a transaction to Notion properties.
// Maps fields onto the Transactions database schema: Description, Date,
// Amount, Category (relation when a page mapping exists, select otherwise),
// Cost Type, Bank, Month, Transaction ID.
func TransactionToNotionProperties(tx *domain.Transaction, categoryPageIDs map[string]string) notionapi.Properties {
	props := notionapi.Properties{
		"Description": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: tx.Description,
					},
				},
			},
		},
		"Date": notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: func() *notionapi.Date {
					d := notionapi.Date(time.Date(
						tx.Date.Year,
						tx.Date.Month,
						tx.Date.Day,
						0, 0, 0, 0, time.UTC,
					))
					return &d
				}(),
			},
		},
		"Amount": notionapi.NumberProperty{
			Number: tx.Amount.InexactFloat64(),
		},
		"Month": notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: tx.Month,
			},
		},
		"Transaction ID": notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: tx.ID,
					},
				},
			},
		},
	}

	// Category - relation when the category page is known, plain select
	// otherwise so the value is never silently dropped.
	if pageID, ok := categoryPageIDs[tx.Category]; ok {
		props["Category"] = notionapi.RelationProperty{
			Relation: []notionapi.Relation{
				{ID: notionapi.PageID(pageID)},
			},
		}
	} else if tx.Category != "" {
		props["Category"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: tx.Category,
			},
		}
	}

	// Cost Type
	if tx.CostType != nil {
		props["Cost Type"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: string(*tx.CostType),
			},
		}
	}

	// Bank
	if tx.Bank != "" {
		props["Bank"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: tx.Bank,
			},
		}
	}

	// Original Description, only when an edit diverged from the import
	if tx.OriginalDescription != "" && tx.OriginalDescription != tx.Description {
		props["Original Description"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: tx.OriginalDescription,
					},
				},
			},
		}
	}

	return props
}

// CategoryToNotionProperties converts a category to Notion properties.
// Maps fields onto the Categories database schema: Category (title),
// Cost Type, Is Income.
func CategoryToNotionProperties(cat *domain.Category) notionapi.Properties {
	props := notionapi.Properties{
		"Category": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: cat.Name,
					},
				},
			},
		},
		"Is Income": notionapi.CheckboxProperty{
			Checkbox: cat.IsIncome(),
		},
	}

	if cat.CostType != nil {
		props["Cost Type"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: string(*cat.CostType),
			},
		}
	}

	return props
}

// extractTransactionID extracts the transaction ID from a Notion page's properties.
// Returns empty string if not found.
func extractTransactionID(page notionapi.Page) string {
	if prop, ok := page.Properties["Transaction ID"]; ok {
		if richText, ok := prop.(*notionapi.RichTextProperty); ok {
			if len(richText.RichText) > 0 {
				return richText.RichText[0].PlainText
			}
		}
	}
	return ""
}

// extractCategoryName extracts the category name from a Notion page's title.
// Returns empty string if not found.
func extractCategoryName(page notionapi.Page) string {
	if prop, ok := page.Properties["Category"]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			if len(title.Title) > 0 {
				return title.Title[0].PlainText
			}
		}
	}
	return ""
}
