package classify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/dvloznov/spendlens/internal/categorize"
	"github.com/dvloznov/spendlens/internal/domain"
)

// DefaultGeminiModel is the Gemini model used when none is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini classifies transactions with the Gemini API. Credentials come from
// the environment (GOOGLE_API_KEY or application default credentials).
type Gemini struct {
	model string
	log   zerolog.Logger
}

func NewGemini(model string, log zerolog.Logger) *Gemini {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{model: model, log: log}
}

// Classify implements categorize.Classifier. Zero items is a no-op.
func (g *Gemini) Classify(ctx context.Context, items []categorize.Item, categories []domain.Category) ([]categorize.Decision, error) {
	if len(items) == 0 {
		return nil, nil
	}

	prompt, err := buildPrompt(items, categories)
	if err != nil {
		return nil, fmt.Errorf("Classify: %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("Classify: create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("Classify: generate content: %w", err)
	}

	decisions, err := parseDecisions(resp.Text())
	if err != nil {
		return nil, fmt.Errorf("Classify: %w", err)
	}
	g.log.Debug().
		Str("model", g.model).
		Int("items", len(items)).
		Int("decisions", len(decisions)).
		Msg("Gemini classification complete")
	return decisions, nil
}

var _ categorize.Classifier = (*Gemini)(nil)
