package parsers

import "github.com/bcaldwell/expenseops/internal/ledger"

// Chase credit card CSV format:
//
//	Transaction Date, Post Date, Description, Category, Type, Amount, Memo
//
// Amount is a single signed column: negative for charges, positive for
// refunds and credits. Transaction Date (not Post Date) is the date used.

var chaseSpec = fileSpec{
	columns: []string{"Transaction Date", "Post Date", "Description", "Category", "Type", "Amount"},
	extract: func(row map[string]string) (rowFields, string) {
		date, reason := parseRowDate(row, "transaction date", "01/02/2006")
		if reason != "" {
			return rowFields{}, reason
		}

		amount, reason := parseSignedAmount(row, "amount")
		if reason != "" {
			return rowFields{}, reason
		}

		description := row["description"]
		if description == "" {
			return rowFields{}, "missing description"
		}

		return rowFields{date: date, amount: amount, description: description}, ""
	},
}

func parseChase(path, institution, account string) ledger.StageResult {
	return parseFile(path, institution, account, chaseSpec)
}
