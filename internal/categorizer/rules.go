// Package categorizer implements merchant-rule matching, the two-tier
// categorization pass (rules, then an optional LLM batch), and the learn
// workflow that turns hand-corrections into learned rules.
package categorizer

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	yamlv2 "gopkg.in/yaml.v2"

	"github.com/bcaldwell/expenseops/internal/config"
)

const (
	SourceUser    = "user"
	SourceLearned = "learned"
)

// Rule maps a merchant substring pattern to a category. User rules are
// hand-authored and never machine-written; learned rules are fully owned by
// the learn workflow.
type Rule struct {
	Pattern     string
	Category    string
	Subcategory string
	Source      string
	Recurring   bool
}

// Match finds the best rule for a merchant: case-insensitive substring
// containment, longest pattern wins, ties broken by list order. Rules must
// be ordered user-first (as LoadRules produces), so equal-length ties favor
// user rules. Returns nil when nothing matches.
func Match(merchant string, rules []Rule) *Rule {
	merchantUpper := strings.ToUpper(merchant)

	var best *Rule
	for i := range rules {
		rule := &rules[i]
		if !strings.Contains(merchantUpper, strings.ToUpper(rule.Pattern)) {
			continue
		}
		if best == nil || len(rule.Pattern) > len(best.Pattern) {
			best = rule
		}
	}

	return best
}

// isGeneric reports whether a rule assigns a catch-all category with no
// subcategory. Multi-product retailers (Amazon, Target) end up with generic
// merchant rules; product-specific description rules can often do better.
func isGeneric(rule *Rule) bool {
	return strings.TrimSpace(rule.Subcategory) == ""
}

// MatchWithDescription matches the merchant first, then consults the
// description in two cases: when the merchant match is generic (a
// non-generic description match wins), and when the merchant does not match
// at all (the description is the fallback).
func MatchWithDescription(merchant, description string, rules []Rule) *Rule {
	best := Match(merchant, rules)

	if best != nil && isGeneric(best) && description != "" {
		if descMatch := Match(description, rules); descMatch != nil && !isGeneric(descMatch) {
			return descMatch
		}
	}

	if best != nil {
		return best
	}

	if description != "" {
		return Match(description, rules)
	}
	return nil
}

// ValidateRules checks every rule's category and subcategory against the
// taxonomy and returns one reason string per violation. Violating rules are
// reported, never silently coerced.
func ValidateRules(rules []Rule, categories []config.Category) []string {
	subsByName := make(map[string]map[string]bool, len(categories))
	for _, cat := range categories {
		subs := make(map[string]bool, len(cat.Subcategories))
		for _, s := range cat.Subcategories {
			subs[s] = true
		}
		subsByName[cat.Name] = subs
	}

	var violations []string
	for _, rule := range rules {
		subs, ok := subsByName[rule.Category]
		if !ok {
			violations = append(violations,
				fmt.Sprintf("rule %q: unknown category %q", rule.Pattern, rule.Category))
			continue
		}
		if rule.Subcategory != "" && !subs[rule.Subcategory] {
			violations = append(violations,
				fmt.Sprintf("rule %q: unknown subcategory %q for category %q",
					rule.Pattern, rule.Subcategory, rule.Category))
		}
	}

	return violations
}

// LoadRules reads rules.yml from root and returns user rules first, then
// learned rules, each group in file order.
func LoadRules(root string) ([]Rule, error) {
	raw, err := os.ReadFile(filepath.Join(root, "rules.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}

	// yaml.v2 MapSlice keeps the file's key order, which defines rule
	// priority within each section.
	var doc struct {
		UserRules    yamlv2.MapSlice `yaml:"user_rules"`
		LearnedRules yamlv2.MapSlice `yaml:"learned_rules"`
	}
	if err := yamlv2.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}

	var rules []Rule
	for _, item := range doc.UserRules {
		rule, err := ruleFromEntry(item, SourceUser)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	for _, item := range doc.LearnedRules {
		rule, err := ruleFromEntry(item, SourceLearned)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, nil
}

func ruleFromEntry(item yamlv2.MapItem, source string) (Rule, error) {
	pattern, ok := item.Key.(string)
	if !ok {
		return Rule{}, fmt.Errorf("invalid rule pattern %v", item.Key)
	}
	value, ok := item.Value.(string)
	if !ok {
		return Rule{}, fmt.Errorf("invalid rule value for pattern %q", pattern)
	}

	rule := Rule{Pattern: pattern, Source: source}
	rule.Category, rule.Subcategory, rule.Recurring = parseCategoryValue(value)
	return rule, nil
}

// parseCategoryValue parses "Category", "Category:Subcategory", or
// "Category:Subcategory:recurring".
func parseCategoryValue(value string) (string, string, bool) {
	recurring := false
	if strings.HasSuffix(value, ":recurring") {
		recurring = true
		value = strings.TrimSuffix(value, ":recurring")
	}

	if idx := strings.Index(value, ":"); idx >= 0 {
		return strings.TrimSpace(value[:idx]), strings.TrimSpace(value[idx+1:]), recurring
	}
	return strings.TrimSpace(value), "", recurring
}

func formatCategoryValue(rule Rule) string {
	value := rule.Category
	if rule.Subcategory != "" {
		value += ":" + rule.Subcategory
	}
	if rule.Recurring {
		value += ":recurring"
	}
	return value
}

// SaveLearnedRules rewrites the learned_rules section of rules.yml with the
// learned rules in the given list. Everything above the section, including
// the entire user_rules section, is preserved byte-for-byte.
func SaveLearnedRules(root string, rules []Rule) error {
	rulesPath := filepath.Join(root, "rules.yml")
	original, err := os.ReadFile(rulesPath)
	if err != nil {
		return fmt.Errorf("failed to read rules: %w", err)
	}

	const marker = "learned_rules:"
	text := string(original)
	var prefix string
	if idx := strings.Index(text, marker); idx >= 0 {
		prefix = text[:idx]
	} else {
		prefix = strings.TrimRight(text, "\n") + "\n\n"
	}

	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString("learned_rules:\n")
	b.WriteString("  # System-managed rules from the learn command. Do not hand-edit.\n")
	b.WriteString("  # Same format as user_rules.\n")
	for _, rule := range rules {
		if rule.Source != SourceLearned {
			continue
		}
		b.WriteString(fmt.Sprintf("  %s: %s\n",
			strconv.Quote(rule.Pattern), strconv.Quote(formatCategoryValue(rule))))
	}

	if err := os.WriteFile(rulesPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write rules: %w", err)
	}
	return nil
}
