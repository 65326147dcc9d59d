package parsers

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bcaldwell/expenseops/internal/ledger"
)

// Capital One credit card CSV format:
//
//	Transaction Date, Posted Date, Card No., Description, Category, Debit, Credit
//
// Exactly one of Debit or Credit is populated per row. Debit amounts are
// charges and become negative; Credit amounts are payments/refunds and
// become positive.

var capitalOneSpec = fileSpec{
	columns: []string{"Transaction Date", "Posted Date", "Card No.", "Description", "Debit", "Credit"},
	extract: func(row map[string]string) (rowFields, string) {
		date, reason := parseRowDate(row, "transaction date", "2006-01-02")
		if reason != "" {
			return rowFields{}, reason
		}

		debit := row["debit"]
		credit := row["credit"]
		if debit == "" && credit == "" {
			return rowFields{}, "no debit or credit amount"
		}

		var amount decimal.Decimal
		var err error
		if debit != "" {
			amount, err = decimal.NewFromString(debit)
			amount = amount.Neg()
		} else {
			amount, err = decimal.NewFromString(credit)
		}
		if err != nil {
			raw := debit
			if raw == "" {
				raw = credit
			}
			return rowFields{}, fmt.Sprintf("invalid amount: %q", raw)
		}

		description := row["description"]
		if description == "" {
			return rowFields{}, "missing description"
		}

		return rowFields{date: date, amount: amount, description: description}, ""
	},
}

func parseCapitalOne(path, institution, account string) ledger.StageResult {
	return parseFile(path, institution, account, capitalOneSpec)
}
