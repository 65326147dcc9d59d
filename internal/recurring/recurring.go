// Package recurring detects recurring merchants from historical export
// files. A merchant is recurring when it appears in at least three distinct
// months with a stable charge amount.
package recurring

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"k8s.io/klog"
)

// Merchants must appear in at least this many distinct months.
const minMonths = 3

// Every monthly mean must sit within this fraction of the median monthly
// mean. 20% absorbs small price changes without flagging one-off purchases
// from the same store.
var stabilityBand = decimal.NewFromFloat(0.20)

type observation struct {
	month  string
	amount decimal.Decimal
}

// Detect scans every export CSV under outputDir and returns the set of
// recurring merchant names, keyed by uppercased merchant. Unreadable or
// malformed files are skipped with a log line; the detector works with
// whatever history exists.
func Detect(outputDir string) (map[string]bool, error) {
	entries, err := os.ReadDir(outputDir)
	if os.IsNotExist(err) {
		return map[string]bool{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	byMerchant := map[string][]observation{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		path := filepath.Join(outputDir, entry.Name())
		if err := collectObservations(path, byMerchant); err != nil {
			klog.Warningf("Skipping %s for recurring detection: %v", path, err)
		}
	}

	recurring := map[string]bool{}
	for merchant, obs := range byMerchant {
		if isRecurring(obs) {
			recurring[merchant] = true
		}
	}
	return recurring, nil
}

func collectObservations(path string, byMerchant map[string][]observation) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	cols := map[string]int{}
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"merchant", "date", "amount"} {
		if _, ok := cols[required]; !ok {
			return fmt.Errorf("missing column %q", required)
		}
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return fmt.Errorf("failed to read row: %w", err)
		}
		if len(record) <= cols["merchant"] || len(record) <= cols["date"] || len(record) <= cols["amount"] {
			continue
		}

		merchant := strings.ToUpper(strings.TrimSpace(record[cols["merchant"]]))
		date := record[cols["date"]]
		if merchant == "" || len(date) < 7 {
			continue
		}
		amount, err := decimal.NewFromString(record[cols["amount"]])
		if err != nil {
			continue
		}

		byMerchant[merchant] = append(byMerchant[merchant], observation{
			month:  date[:7],
			amount: amount.Abs(),
		})
	}

	return nil
}

// isRecurring checks the month-count and amount-stability conditions: at
// least minMonths distinct months, and every per-month mean within
// stabilityBand of the median of the per-month means.
func isRecurring(obs []observation) bool {
	totals := map[string]decimal.Decimal{}
	counts := map[string]int{}
	for _, o := range obs {
		totals[o.month] = totals[o.month].Add(o.amount)
		counts[o.month]++
	}
	if len(totals) < minMonths {
		return false
	}

	means := make([]decimal.Decimal, 0, len(totals))
	for month, total := range totals {
		means = append(means, total.Div(decimal.NewFromInt(int64(counts[month]))))
	}
	sort.Slice(means, func(i, j int) bool { return means[i].LessThan(means[j]) })

	var median decimal.Decimal
	n := len(means)
	if n%2 == 1 {
		median = means[n/2]
	} else {
		median = means[n/2-1].Add(means[n/2]).Div(decimal.NewFromInt(2))
	}
	if median.IsZero() {
		return false
	}

	band := median.Mul(stabilityBand)
	for _, mean := range means {
		if mean.Sub(median).Abs().GreaterThan(band) {
			return false
		}
	}
	return true
}
