// Package parsers converts raw bank CSV exports into normalized ledger
// transactions. One parser exists per institution "shape"; all of them share
// the same row loop, header validation, and malformed-row accounting.
package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bcaldwell/expenseops/internal/ledger"
)

// Func parses one CSV file for an account and reports everything it could
// and could not process. File-level failures produce a single error and no
// transactions; row-level failures produce warnings.
type Func func(path, institution, account string) ledger.StageResult

var registry = map[string]Func{
	"chase":       parseChase,
	"capital_one": parseCapitalOne,
	"elevations":  parseElevations,
}

// Get looks up a parser by the name used in account config.
func Get(name string) (Func, error) {
	fn, ok := registry[name]
	if !ok {
		names := make([]string, 0, len(registry))
		for n := range registry {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown parser %q (available: %s)", name, strings.Join(names, ", "))
	}
	return fn, nil
}

// rowFields is the per-row extraction result handed back by each
// institution-specific extractor.
type rowFields struct {
	date        time.Time
	amount      decimal.Decimal
	description string
}

type fileSpec struct {
	// Columns that must be present in the header row.
	columns []string
	// extract pulls date/amount/description out of one row, returning a
	// short reason when the row is malformed.
	extract func(row map[string]string) (rowFields, string)
}

// generateHeaderMap maps lowercased header names to column indexes.
func generateHeaderMap(record []string) map[string]int {
	m := make(map[string]int)
	for i, r := range record {
		m[strings.ToLower(strings.TrimSpace(r))] = i
	}
	return m
}

func parseFile(path, institution, account string, spec fileSpec) ledger.StageResult {
	result := ledger.StageResult{}

	f, err := os.Open(path)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
		return result
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: empty file or no header row", path))
		return result
	} else if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: failed to read header: %v", path, err))
		return result
	}

	headerMap := generateHeaderMap(header)

	var missing []string
	for _, col := range spec.columns {
		if _, ok := headerMap[strings.ToLower(col)]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		result.Errors = append(result.Errors,
			fmt.Sprintf("%s: missing expected columns: %s", path, strings.Join(missing, ", ")))
		return result
	}

	totalRows := 0
	malformed := 0
	var transactions []*ledger.Transaction

	for ordinal := 0; ; ordinal++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			totalRows++
			malformed++
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s: skipped malformed row %d (%v)", path, ordinal, err))
			continue
		}
		totalRows++

		row := make(map[string]string, len(headerMap))
		for name, idx := range headerMap {
			if idx < len(record) {
				row[name] = strings.TrimSpace(record[idx])
			}
		}

		fields, reason := spec.extract(row)
		if reason != "" {
			malformed++
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s: skipped malformed row %d (%s)", path, ordinal, reason))
			continue
		}

		txn := &ledger.Transaction{
			ID:          ledger.GenerateID(institution, fields.date, fields.description, fields.amount, ordinal),
			Date:        fields.date,
			Merchant:    fields.description,
			Description: fields.description,
			Amount:      fields.amount,
			Institution: institution,
			Account:     account,
			Category:    ledger.Uncategorized,
			IsReturn:    fields.amount.IsPositive(),
			SourceFile:  path,
		}
		transactions = append(transactions, txn)
	}

	// More than 10% malformed means the file format has probably drifted;
	// discard everything rather than trust the survivors.
	if totalRows > 0 && malformed*10 > totalRows {
		result.Errors = append(result.Errors,
			fmt.Sprintf("%s: too many malformed rows (%d/%d), skipping entire file", path, malformed, totalRows))
		return result
	}

	result.Transactions = transactions
	return result
}

func parseSignedAmount(row map[string]string, column string) (decimal.Decimal, string) {
	raw := row[column]
	if raw == "" {
		return decimal.Decimal{}, "missing amount"
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Sprintf("invalid amount: %q", raw)
	}
	return amount, ""
}

func parseRowDate(row map[string]string, column, layout string) (time.Time, string) {
	raw := row[column]
	if raw == "" {
		return time.Time{}, "missing date"
	}
	d, err := time.Parse(layout, raw)
	if err != nil {
		return time.Time{}, fmt.Sprintf("invalid date: %q", raw)
	}
	return d, ""
}
