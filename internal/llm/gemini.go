package llm

import (
	"context"
	"fmt"
	"os"
	"time"

	"google.golang.org/genai"
	"k8s.io/klog"

	"github.com/bcaldwell/expenseops/internal/config"
)

const requestTimeout = 60 * time.Second

// GeminiAdapter sends one batched categorization prompt to the Gemini API.
// The API key comes from the secrets file when set, otherwise from the
// configured environment variable at call time. Any transport or parse
// failure degrades to zero suggestions.
type GeminiAdapter struct {
	model     string
	apiKeyEnv string
	apiKey    string
}

func NewGeminiAdapter(model, apiKeyEnv, apiKey string) *GeminiAdapter {
	return &GeminiAdapter{model: model, apiKeyEnv: apiKeyEnv, apiKey: apiKey}
}

func (a *GeminiAdapter) Enabled() bool { return true }

func (a *GeminiAdapter) CategorizeBatch(ctx context.Context, txns []TransactionInfo, categories []config.Category) ([]Suggestion, error) {
	if len(txns) == 0 {
		return nil, nil
	}

	apiKey := a.apiKey
	if apiKey == "" {
		apiKey = os.Getenv(a.apiKeyEnv)
	}
	if apiKey == "" {
		klog.Warningf("LLM API key not found in secrets or environment variable %q", a.apiKeyEnv)
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: buildPrompt(txns, categories)}},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, a.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		klog.Warningf("LLM response contained no text content")
		return nil, nil
	}

	return parseResponse(text), nil
}
