// README: Gemini-backed category suggestion for free-text service descriptions.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// KnownCategories is the closed set the classifier may answer with.
var KnownCategories = []string{
	"Eletricista",
	"Encanador",
	"Pintor",
	"Pedreiro",
	"Diarista",
	"Jardineiro",
	"Montador de Móveis",
	"Técnico de Informática",
	"Chaveiro",
	"Outros",
}

type Classifier struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewClassifier initializes a Gemini client tuned for short structured
// answers. Gemini 2.0 Flash keeps latency and cost low.
func NewClassifier(ctx context.Context, apiKey string) (*Classifier, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	model := client.GenerativeModel("gemini-2.0-flash")
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0.1)
	return &Classifier{client: client, model: model}, nil
}

func (c *Classifier) Close() {
	c.client.Close()
}

type categoryAnswer struct {
	Category string `json:"category"`
}

// SuggestCategory maps a free-text service description onto one of the
// known categories. Unrecognizable descriptions come back as "Outros".
func (c *Classifier) SuggestCategory(ctx context.Context, description string) (string, error) {
	prompt := fmt.Sprintf(
		`Você classifica pedidos de serviço residencial no Brasil.
Dada a descrição abaixo, responda com JSON {"category": "..."} usando
exatamente uma destas categorias: %s.

Descrição: %s`,
		strings.Join(KnownCategories, ", "), description)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response candidates from gemini")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		}
	}

	var answer categoryAnswer
	raw := cleanJSONString(text.String())
	if err := json.Unmarshal([]byte(raw), &answer); err != nil {
		return "", fmt.Errorf("parse gemini response: %w (raw: %s)", err, raw)
	}
	for _, known := range KnownCategories {
		if strings.EqualFold(answer.Category, known) {
			return known, nil
		}
	}
	return "Outros", nil
}

// cleanJSONString removes markdown code fences if present.
func cleanJSONString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}
