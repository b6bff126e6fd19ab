// Package classify implements the external classifier boundary: it prompts
// a model with the unresolved transactions and parses its strict-JSON
// decisions. Two backends are provided, Gemini and Claude; both satisfy
// categorize.Classifier.
package classify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/spendlens/internal/categorize"
	"github.com/dvloznov/spendlens/internal/domain"
)

// buildPrompt renders the classification request. The model must answer
// with a strict JSON array of decisions; each input item carries a
// correlation id the model echoes back.
func buildPrompt(items []categorize.Item, categories []domain.Category) (string, error) {
	itemsJSON, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("buildPrompt: marshal items: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are a personal-finance categorization assistant.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Assign each transaction below to exactly one of the allowed categories.\n")
	b.WriteString("- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n")
	b.WriteString("- Output a JSON array of objects.\n\n")
	b.WriteString("Each object must have these fields:\n")
	b.WriteString("- \"correlationId\": string, copied verbatim from the input item\n")
	b.WriteString("- \"category\": string, one of the allowed categories\n")
	b.WriteString("- \"confidence\": number between 0 and 1\n")
	b.WriteString("- \"reasoning\": short string explaining the choice\n\n")
	b.WriteString("Allowed categories:\n")
	for _, c := range categories {
		b.WriteString("- ")
		b.WriteString(c.Name)
		b.WriteString("\n")
	}
	b.WriteString("\nTransactions (negative amount = expense, positive = income):\n")
	b.Write(itemsJSON)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- Skip a transaction entirely rather than guess wildly; omitted ids are treated as unclassified.\n")
	b.WriteString("- Return ONLY valid raw JSON.\n")
	b.WriteString("- Do NOT wrap the response in code fences.\n")
	b.WriteString("- Do NOT use ```json or any Markdown.\n")
	b.WriteString("- Output must begin with \"[\" and end with \"]\".\n")
	return b.String(), nil
}

// cleanModelJSON strips Markdown fences and surrounding junk the model may
// emit despite instructions, keeping only the outermost JSON array.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}

// parseDecisions parses the model's response into decisions.
func parseDecisions(raw string) ([]categorize.Decision, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("parseDecisions: empty response from model")
	}
	clean := cleanModelJSON(raw)

	var decisions []categorize.Decision
	if err := json.Unmarshal([]byte(clean), &decisions); err != nil {
		return nil, fmt.Errorf("parseDecisions: unmarshal JSON: %w\nraw response: %s", err, raw)
	}
	return decisions, nil
}
