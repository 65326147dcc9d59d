// Package llm defines the categorization adapter boundary: a single batched
// call that returns best-effort category suggestions and must degrade to an
// empty result on any failure instead of propagating errors.
package llm

import (
	"context"

	"github.com/bcaldwell/expenseops/internal/config"
)

// TransactionInfo is the adapter-facing view of an uncategorized
// transaction.
type TransactionInfo struct {
	Merchant    string
	Description string
	Amount      string
	Date        string
}

// Suggestion is one category assignment returned by the LLM, keyed by
// merchant.
type Suggestion struct {
	Merchant    string `json:"merchant"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
}

// Adapter is the tier-2 categorization boundary. Implementations return
// whatever suggestions they could produce; a nil or short slice is normal.
type Adapter interface {
	// CategorizeBatch sends one batch of transactions plus the taxonomy and
	// returns suggestions keyed by merchant. Implementations should return
	// an empty slice rather than an error for degraded conditions they can
	// absorb (missing key, unparseable response).
	CategorizeBatch(ctx context.Context, txns []TransactionInfo, categories []config.Category) ([]Suggestion, error)
	// Enabled reports whether this adapter performs real categorization.
	// The Null adapter returns false so callers can short-circuit tier 2.
	Enabled() bool
}

// New picks the adapter for the configured provider. Unknown providers get
// the Null adapter; categorization must never abort over LLM wiring.
func New(cfg *config.LLMConfig, secrets *config.LLMSecrets) Adapter {
	switch cfg.Provider {
	case "gemini":
		return NewGeminiAdapter(cfg.Model, cfg.APIKeyEnv, secrets.APIKey)
	default:
		return NullAdapter{}
	}
}

// NullAdapter is the explicit no-LLM implementation.
type NullAdapter struct{}

func (NullAdapter) CategorizeBatch(context.Context, []TransactionInfo, []config.Category) ([]Suggestion, error) {
	return nil, nil
}

func (NullAdapter) Enabled() bool { return false }
