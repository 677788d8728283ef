// Package suggest asks Gemini for category suggestions on transactions the
// rule-based classifier could not place. Suggestions are advisory: they are
// surfaced in the review queue and never written to a transaction without the
// user confirming.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/dvloznov/pennyledger/internal/domain"
)

const defaultModel = "gemini-2.0-flash"

// Suggestion is the model's pick for one transaction.
type Suggestion struct {
	TransactionID string `json:"transaction_id"`
	CategoryName  string `json:"category"`
	DisplayName   string `json:"merchant"`
}

// Suggester holds a GenAI client and the model to query.
type Suggester struct {
	client *genai.Client
	model  string
}

func New(ctx context.Context, model string) (*Suggester, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("New: create genai client: %w", err)
	}
	if model == "" {
		model = defaultModel
	}
	return &Suggester{client: client, model: model}, nil
}

// SuggestCategories asks the model to place each transaction into one of the
// given categories. Transactions the model cannot place are omitted from the
// result.
func (s *Suggester) SuggestCategories(ctx context.Context, txs []domain.Transaction, categories []domain.Category) ([]Suggestion, error) {
	if len(txs) == 0 {
		return nil, nil
	}

	prompt := buildPrompt(txs, categories)
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("SuggestCategories: generate content: %w", err)
	}
	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("SuggestCategories: empty response from model")
	}

	var suggestions []Suggestion
	if err := json.Unmarshal([]byte(cleanModelJSON(rawText)), &suggestions); err != nil {
		return nil, fmt.Errorf("SuggestCategories: unmarshal JSON: %w\nraw response: %s", err, rawText)
	}

	// Drop anything naming a category we did not offer.
	valid := make(map[string]bool, len(categories))
	for _, c := range categories {
		valid[c.Name] = true
	}
	out := suggestions[:0]
	for _, sg := range suggestions {
		if sg.TransactionID != "" && valid[sg.CategoryName] {
			out = append(out, sg)
		}
	}
	return out, nil
}

func buildPrompt(txs []domain.Transaction, categories []domain.Category) string {
	var b strings.Builder
	b.WriteString("You are a personal-finance transaction classifier.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- For each transaction below, pick the single best category from the allowed list.\n")
	b.WriteString("- Also suggest a clean human-readable merchant name.\n")
	b.WriteString("- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n")
	b.WriteString("- Output a JSON array of objects with fields \"transaction_id\", \"category\", \"merchant\".\n")
	b.WriteString("- Skip a transaction entirely if no category fits.\n\n")

	b.WriteString("Allowed categories:\n")
	for _, c := range categories {
		fmt.Fprintf(&b, "- %s\n", c.Name)
	}

	b.WriteString("\nTransactions:\n")
	for _, tx := range txs {
		fmt.Fprintf(&b, "- id=%s date=%s amount=%.2f description=%q", tx.ID, tx.Date, tx.Amount, tx.Description)
		if tx.ExtendedDetails != "" {
			fmt.Fprintf(&b, " details=%q", tx.ExtendedDetails)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nReturn ONLY valid raw JSON.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Output must begin with \"[\" and end with \"]\".\n")
	return b.String()
}

// cleanModelJSON strips Markdown fences and surrounding junk when the model
// ignores the raw-JSON instruction.
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
