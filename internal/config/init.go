package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const defaultConfigYML = `# expenseops configuration

outputDir: output
enrichmentCacheDir: enrichment-cache

# Merchant/description keywords that indicate an internal transfer
# (e.g. credit card autopay), matched case-insensitively.
transferKeywords: ["PAYMENT", "AUTOPAY", "ONLINE PAYMENT", "PAYOFF"]
transferDateWindow: 5

# Transactions whose merchant contains any of these substrings are dropped
# before processing (salary, internal moves, ...).
excludePatterns: []

llm:
  provider: gemini        # "gemini" or "none"
  model: gemini-2.0-flash
  apiKeyEnv: GEMINI_API_KEY

accounts:
  - name: Chase Credit Card
    institution: chase
    parser: chase
    accountType: credit_card
    inputDir: input/chase
  - name: Capital One Credit Card
    institution: capital_one
    parser: capital_one
    accountType: credit_card
    inputDir: input/capital-one
  - name: Elevations Credit Union
    institution: elevations
    parser: elevations
    accountType: checking
    inputDir: input/elevations
`

const defaultCategoriesYML = `# Category taxonomy: the valid categories and subcategories.

categories:
  - name: Housing
    subcategories: [Mortgage]
  - name: Utilities
    subcategories: [Electric/Water/Internet, Natural Gas, Mobile Phone, Television]
  - name: Food & Dining
    subcategories: [Groceries, Restaurant, Fast Food, Coffee, Alcohol, Delivery]
  - name: Transportation
    subcategories: [Gas/Fuel, Parking/Tolls, Public Transit, Rideshare, Service & Maintenance, Registration/DMV]
  - name: Kids
    subcategories: [Clothing, Supplies, Activities, Toys, School, Preschool, Camps]
  - name: Health & Fitness
    subcategories: [Gym/Classes, Skiing, Biking, Hockey, Race/Event Fees, Equipment & Maintenance]
  - name: Healthcare
    subcategories: [Doctor, Dental, Vision, Pharmacy, Therapy]
  - name: Entertainment
    subcategories: [Tickets/Events, Games, Movies, Subscriptions]
  - name: Shopping
    subcategories: [Clothing, Electronics, Home Goods, Books, Jewelry]
  - name: Home & Garden
    subcategories: [Maintenance & Repairs, Furniture & Decor, Appliances, Garden & Lawn, Tools & Hardware, Home Services]
  - name: Personal Care
    subcategories: [Haircut/Barber, Beauty/Spa, Cosmetics]
  - name: Pets
    subcategories: [Food, Vet, Daycare/Boarding, Grooming, Supplies]
  - name: Gifts & Charity
    subcategories: [Gifts, Donations]
  - name: Travel
    subcategories: [Flight, Hotel/Lodging, Rental Car/Transport, Vacation/Activities, Baggage/Fees]
  - name: Education
    subcategories: [Tuition, Books & Supplies, Courses/Training]
  - name: Insurance
    subcategories: []
  - name: Business
    subcategories: []
  - name: Miscellaneous
    subcategories: []
`

const defaultRulesYML = `# Merchant-to-category mapping rules.
# User rules always take precedence over learned rules.
# Matching: case-insensitive substring, longest match wins.

user_rules:
  # Manually authored rules. The system never modifies this section.
  # Format: pattern: "Category" or pattern: "Category:Subcategory"
  # Append ":recurring" to flag matches as recurring.
  #
  # Examples:
  # "KING SOOPERS": "Food & Dining:Groceries"
  # "CHIPOTLE": "Food & Dining:Fast Food"

learned_rules:
  # System-managed rules from the learn command. Do not hand-edit.
  # Same format as user_rules.
`

var initDirs = []string{
	"input/chase",
	"input/capital-one",
	"input/elevations",
	"input/amazon-orders",
	"input/target-orders",
	"output",
	"enrichment-cache",
}

// Initialize creates the standard project directory structure and default
// config files under dir. Existing files are never overwritten.
func Initialize(dir string) error {
	for _, d := range initDirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", d, err)
		}
	}

	files := map[string]string{
		"config.yml":     defaultConfigYML,
		"categories.yml": defaultCategoriesYML,
		"rules.yml":      defaultRulesYML,
	}

	for name, content := range files {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	return nil
}
