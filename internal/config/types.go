package config

// Config is the top-level application configuration loaded from config.yml.
type Config struct {
	OutputDir          string    `json:"outputDir"`
	EnrichmentCacheDir string    `json:"enrichmentCacheDir"`
	TransferKeywords   []string  `json:"transferKeywords"`
	TransferDateWindow int       `json:"transferDateWindow"`
	ExcludePatterns    []string  `json:"excludePatterns"`
	LLM                LLMConfig `json:"llm"`
	Accounts           []Account `json:"accounts"`
}

type LLMConfig struct {
	// "gemini" or "none".
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	APIKeyEnv string `json:"apiKeyEnv"`
}

// Account defines how to locate and parse CSV files for one bank account.
type Account struct {
	Name        string `json:"name"`
	Institution string `json:"institution"`
	Parser      string `json:"parser"`
	// "credit_card" or "checking".
	AccountType string `json:"accountType"`
	InputDir    string `json:"inputDir"`
}

// Category is one entry of the taxonomy loaded from categories.yml, in file
// order.
type Category struct {
	Name          string   `json:"name"`
	Subcategories []string `json:"subcategories"`
}

type Secrets struct {
	LLM LLMSecrets `json:"llm"`
}

type LLMSecrets struct {
	APIKey string `json:"apiKey" env:"EXPENSEOPS_LLM_API_KEY"`
}
