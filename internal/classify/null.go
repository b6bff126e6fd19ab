package classify

import (
	"context"

	"github.com/dvloznov/spendlens/internal/categorize"
	"github.com/dvloznov/spendlens/internal/domain"
)

// Null is the classifier used when no AI backend is configured. It answers
// nothing, so transactions it is asked about stay unassigned.
type Null struct{}

func (Null) Classify(ctx context.Context, items []categorize.Item, categories []domain.Category) ([]categorize.Decision, error) {
	return nil, nil
}

var _ categorize.Classifier = Null{}
