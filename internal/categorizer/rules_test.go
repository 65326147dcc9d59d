package categorizer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcaldwell/expenseops/internal/config"
)

func TestMatchLongestWins(t *testing.T) {
	rules := []Rule{
		{Pattern: "TARGET", Category: "Shopping", Source: SourceUser},
		{Pattern: "TARGET 00022186", Category: "Kids", Subcategory: "Supplies", Source: SourceUser},
	}

	rule := Match("TARGET 00022186", rules)
	require.NotNil(t, rule)
	assert.Equal(t, "Kids", rule.Category)
	assert.Equal(t, "Supplies", rule.Subcategory)
}

func TestMatchTieBreakByListOrder(t *testing.T) {
	// Same pattern length; LoadRules orders user rules first, so the user
	// rule must win.
	rules := []Rule{
		{Pattern: "NETFLIX", Category: "Entertainment", Source: SourceUser},
		{Pattern: "NETFLIX", Category: "Shopping", Source: SourceLearned},
	}

	rule := Match("NETFLIX.COM", rules)
	require.NotNil(t, rule)
	assert.Equal(t, SourceUser, rule.Source)
	assert.Equal(t, "Entertainment", rule.Category)
}

func TestMatchCaseInsensitive(t *testing.T) {
	rules := []Rule{{Pattern: "starbucks", Category: "Dining", Source: SourceUser}}

	assert.NotNil(t, Match("STARBUCKS #1234", rules))
	assert.Nil(t, Match("DUNKIN", rules))
}

func TestMatchWithDescriptionPrefersSpecific(t *testing.T) {
	rules := []Rule{
		// Generic retailer rule, no subcategory.
		{Pattern: "AMAZON", Category: "Shopping", Source: SourceUser},
		{Pattern: "Diapers", Category: "Kids", Subcategory: "Supplies", Source: SourceUser},
	}

	rule := MatchWithDescription("AMAZON", "Diapers Size 4 (qty 2)", rules)
	require.NotNil(t, rule)
	assert.Equal(t, "Kids", rule.Category)

	// Without a useful description the generic match stands.
	rule = MatchWithDescription("AMAZON", "Mktp US*1A2B3C", rules)
	require.NotNil(t, rule)
	assert.Equal(t, "Shopping", rule.Category)
}

func TestMatchWithDescriptionFallback(t *testing.T) {
	rules := []Rule{
		{Pattern: "Kindle", Category: "Entertainment", Subcategory: "Books", Source: SourceUser},
	}

	rule := MatchWithDescription("UNKNOWN MERCHANT", "Kindle Paperwhite", rules)
	require.NotNil(t, rule)
	assert.Equal(t, "Entertainment", rule.Category)
}

func TestValidateRules(t *testing.T) {
	categories := []config.Category{
		{Name: "Shopping", Subcategories: []string{"Clothing"}},
	}
	rules := []Rule{
		{Pattern: "A", Category: "Shopping", Subcategory: "Clothing"},
		{Pattern: "B", Category: "Shopping", Subcategory: "Gadgets"},
		{Pattern: "C", Category: "Casino"},
	}

	violations := ValidateRules(rules, categories)
	require.Len(t, violations, 2)
	assert.Contains(t, violations[0], `unknown subcategory "Gadgets"`)
	assert.Contains(t, violations[1], `unknown category "Casino"`)
}

const rulesFixture = `# My rules.
user_rules:
  "NETFLIX": "Entertainment:Streaming:recurring"
  "TARGET": "Shopping"

learned_rules:
  "STARBUCKS #1234": "Dining:Coffee"
`

func TestLoadRulesOrderAndParsing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.yml"), []byte(rulesFixture), 0o644))

	rules, err := LoadRules(dir)
	require.NoError(t, err)
	require.Len(t, rules, 3)

	assert.Equal(t, Rule{Pattern: "NETFLIX", Category: "Entertainment", Subcategory: "Streaming", Source: SourceUser, Recurring: true}, rules[0])
	assert.Equal(t, Rule{Pattern: "TARGET", Category: "Shopping", Source: SourceUser}, rules[1])
	assert.Equal(t, Rule{Pattern: "STARBUCKS #1234", Category: "Dining", Subcategory: "Coffee", Source: SourceLearned}, rules[2])
}

func TestSaveLearnedRulesPreservesUserSection(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.yml"), []byte(rulesFixture), 0o644))

	rules, err := LoadRules(dir)
	require.NoError(t, err)

	rules = append(rules, Rule{Pattern: "SPOTIFY", Category: "Entertainment", Subcategory: "Streaming", Source: SourceLearned, Recurring: true})
	require.NoError(t, SaveLearnedRules(dir, rules))

	raw, err := os.ReadFile(filepath.Join(dir, "rules.yml"))
	require.NoError(t, err)
	text := string(raw)

	// Everything above learned_rules survives byte-for-byte.
	marker := strings.Index(rulesFixture, "learned_rules:")
	assert.Equal(t, rulesFixture[:marker], text[:marker])
	assert.Contains(t, text, `"SPOTIFY": "Entertainment:Streaming:recurring"`)

	reloaded, err := LoadRules(dir)
	require.NoError(t, err)
	require.Len(t, reloaded, 4)
	assert.Equal(t, "SPOTIFY", reloaded[3].Pattern)
	assert.True(t, reloaded[3].Recurring)
}
