package categorize

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/spendlens/internal/domain"
)

// Item is one transaction sent across the asynchronous classifier boundary.
// CorrelationID is assigned by the caller and echoed back in the matching
// Decision; it is never the transaction's persistence id.
type Item struct {
	CorrelationID string          `json:"correlationId"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	Date          civil.Date      `json:"date"`
}

// Decision is the classifier's verdict for one item.
type Decision struct {
	CorrelationID string  `json:"correlationId"`
	Category      string  `json:"category"`
	Confidence    float64 `json:"confidence"`
	Reasoning     string  `json:"reasoning,omitempty"`
}

// Classifier is the external categorization collaborator. Implementations
// must tolerate an empty batch as a no-op and must not retry internally:
// failure semantics belong to the pipeline.
type Classifier interface {
	Classify(ctx context.Context, items []Item, categories []domain.Category) ([]Decision, error)
}
