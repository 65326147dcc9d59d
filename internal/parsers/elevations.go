package parsers

import "github.com/bcaldwell/expenseops/internal/ledger"

// Elevations Credit Union checking CSV format:
//
//	Date, Description, Amount, Balance
//
// Amount is a single signed column: negative for withdrawals and payments,
// positive for deposits. The running Balance column is ignored.

var elevationsSpec = fileSpec{
	columns: []string{"Date", "Description", "Amount", "Balance"},
	extract: func(row map[string]string) (rowFields, string) {
		date, reason := parseRowDate(row, "date", "01/02/2006")
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

func parseElevations(path, institution, account string) ledger.StageResult {
	return parseFile(path, institution, account, elevationsSpec)
}
