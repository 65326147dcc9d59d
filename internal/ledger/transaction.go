package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const Uncategorized = "Uncategorized"

// Transaction is one financial event flowing through the pipeline. Parsers
// fill in the base fields; later stages set category, transfer, recurring,
// and split information.
type Transaction struct {
	ID          string
	Date        time.Time
	Merchant    string
	Description string
	// Negative means expense, positive means refund or credit.
	Amount      decimal.Decimal
	Institution string
	Account     string
	Category    string
	Subcategory string
	IsTransfer  bool
	IsReturn    bool
	IsRecurring bool
	// Parent transaction ID when this is a split line item.
	SplitFrom string
	// Retailer tag set by enrichment or source tagging, e.g. "Amazon".
	Source string
	// Provenance only, excluded from export.
	SourceFile string
}

// GenerateID derives the deterministic 12-char transaction ID from the
// uniqueness components. Two identical rows in the same file are
// distinguished only by their ordinal, so reprocessing an unchanged file
// yields identical IDs.
func GenerateID(institution string, date time.Time, merchant string, amount decimal.Decimal, rowOrdinal int) string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%d",
		institution,
		date.Format("2006-01-02"),
		strings.ToUpper(strings.TrimSpace(merchant)),
		amount.String(),
		rowOrdinal,
	)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:12]
}

// StageResult is what every pipeline stage returns: the surviving
// transactions plus whatever the stage could not process.
type StageResult struct {
	Transactions []*Transaction
	Warnings     []string
	Errors       []string
}

// PipelineResult is the terminal output of one run.
type PipelineResult struct {
	Transactions []*Transaction
	Warnings     []string
	Errors       []string
}

// MonthRange returns the first and last day of a "YYYY-MM" month.
func MonthRange(month string) (time.Time, time.Time, error) {
	first, err := time.Parse("2006-01", month)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month %q: %w", month, err)
	}

	last := first.AddDate(0, 1, -1)

	return first, last, nil
}
