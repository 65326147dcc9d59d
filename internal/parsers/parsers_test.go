package parsers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestGetUnknownParser(t *testing.T) {
	_, err := Get("wells_fargo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capital_one")
	assert.Contains(t, err.Error(), "chase")
	assert.Contains(t, err.Error(), "elevations")
}

func TestParseChase(t *testing.T) {
	path := writeCSV(t, "chase.csv", strings.Join([]string{
		"Transaction Date,Post Date,Description,Category,Type,Amount,Memo",
		"01/15/2026,01/16/2026,STARBUCKS #1234,Food & Drink,Sale,-8.45,",
		"01/20/2026,01/21/2026,AMAZON RETURN,Shopping,Return,23.99,",
	}, "\n"))

	result := parseChase(path, "chase", "Chase Freedom")
	require.Empty(t, result.Errors)
	require.Empty(t, result.Warnings)
	require.Len(t, result.Transactions, 2)

	txn := result.Transactions[0]
	assert.Equal(t, "STARBUCKS #1234", txn.Merchant)
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), txn.Date)
	assert.True(t, txn.Amount.Equal(decimal.NewFromFloat(-8.45)))
	assert.Equal(t, "chase", txn.Institution)
	assert.Equal(t, "Chase Freedom", txn.Account)
	assert.False(t, txn.IsReturn)

	assert.True(t, result.Transactions[1].IsReturn)
}

func TestParseCapitalOneDebitCredit(t *testing.T) {
	path := writeCSV(t, "capitalone.csv", strings.Join([]string{
		"Transaction Date,Posted Date,Card No.,Description,Category,Debit,Credit",
		"2026-01-10,2026-01-11,1234,GROCERY STORE,Merchandise,54.20,",
		"2026-01-12,2026-01-13,1234,REFUND,Merchandise,,12.00",
		"2026-01-14,2026-01-15,1234,GHOST ROW,Merchandise,,",
	}, "\n"))

	result := parseCapitalOne(path, "capital_one", "Quicksilver")
	require.Empty(t, result.Errors)
	require.Len(t, result.Transactions, 2)

	assert.True(t, result.Transactions[0].Amount.Equal(decimal.NewFromFloat(-54.20)))
	assert.True(t, result.Transactions[1].Amount.Equal(decimal.NewFromFloat(12.00)))

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "no debit or credit amount")
}

func TestParseMissingColumns(t *testing.T) {
	path := writeCSV(t, "bad.csv", "Date,Payee,Total\n01/15/2026,STORE,-5.00\n")

	result := parseChase(path, "chase", "Chase Freedom")
	assert.Empty(t, result.Transactions)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "missing expected columns")
}

func TestMalformedRowThreshold(t *testing.T) {
	// 100 rows with 10 malformed is exactly 10%: kept.
	result := parseChase(chaseFixture(t, 100, 10), "chase", "Chase Freedom")
	assert.Empty(t, result.Errors)
	assert.Len(t, result.Transactions, 90)
	assert.Len(t, result.Warnings, 10)

	// 11 malformed crosses the threshold: whole file rejected.
	result = parseChase(chaseFixture(t, 100, 11), "chase", "Chase Freedom")
	assert.Empty(t, result.Transactions)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "too many malformed rows (11/100)")
}

func chaseFixture(t *testing.T, total, malformed int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("Transaction Date,Post Date,Description,Category,Type,Amount,Memo\n")
	for i := 0; i < total; i++ {
		if i < malformed {
			b.WriteString("01/15/2026,01/16/2026,BAD ROW,Food,Sale,not-a-number,\n")
		} else {
			fmt.Fprintf(&b, "01/15/2026,01/16/2026,MERCHANT %d,Food,Sale,-1.00,\n", i)
		}
	}
	return writeCSV(t, "threshold.csv", b.String())
}
