package classify

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"github.com/dvloznov/spendlens/internal/categorize"
	"github.com/dvloznov/spendlens/internal/domain"
)

// DefaultClaudeModel is the Claude model used when none is configured.
const DefaultClaudeModel = "claude-sonnet-4-5-20250929"

// maxClaudeTokens bounds the response; ~150 tokens per decision keeps a
// 50-item batch comfortably inside it.
const maxClaudeTokens = 8192

// Claude classifies transactions with the Anthropic API.
type Claude struct {
	client anthropic.Client
	model  string
	log    zerolog.Logger
}

func NewClaude(apiKey, model string, log zerolog.Logger) *Claude {
	if model == "" {
		model = DefaultClaudeModel
	}
	return &Claude{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		log:    log,
	}
}

// Classify implements categorize.Classifier. Zero items is a no-op.
func (c *Claude) Classify(ctx context.Context, items []categorize.Item, categories []domain.Category) ([]categorize.Decision, error) {
	if len(items) == 0 {
		return nil, nil
	}

	prompt, err := buildPrompt(items, categories)
	if err != nil {
		return nil, fmt.Errorf("Classify: %w", err)
	}

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxClaudeTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("Classify: claude API call: %w", err)
	}
	if len(message.Content) == 0 {
		return nil, fmt.Errorf("Classify: empty response from claude API")
	}

	var responseText string
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText += block.Text
		}
	}

	decisions, err := parseDecisions(responseText)
	if err != nil {
		return nil, fmt.Errorf("Classify: %w", err)
	}
	c.log.Debug().
		Str("model", c.model).
		Int("items", len(items)).
		Int("decisions", len(decisions)).
		Msg("Claude classification complete")
	return decisions, nil
}

var _ categorize.Classifier = (*Claude)(nil)
