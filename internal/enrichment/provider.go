package enrichment

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bcaldwell/expenseops/internal/ledger"
)

// Result summarizes one enrichment run.
type Result struct {
	OrdersFound       int
	OrdersMatched     int
	OrdersUnmatched   int
	CacheFilesWritten int
	UnmatchedDetails  []string
	Warnings          []string
	Errors            []string
}

// Provider matches one retailer's scraped orders to bank transactions and
// writes cache artifacts for the pipeline to consume.
type Provider interface {
	Name() string
	Enrich(ctx context.Context, month, root, cacheDir string, txns []TxnRef) (Result, error)
}

// OrderSource supplies scraped orders for a month. The concrete source
// reads order-export JSON from disk; the scraping itself happens elsewhere
// and may involve interactive authentication, so callers bound Fetch with a
// generous context timeout.
type OrderSource interface {
	Fetch(ctx context.Context, month string) ([]Order, error)
}

// Registry resolves enrichment providers by name. It is constructed once at
// startup and passed to whatever needs provider lookup.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry returns a registry with the built-in providers registered.
func NewRegistry(root string) *Registry {
	r := &Registry{providers: map[string]Provider{}}
	r.Register(NewAmazonProvider(newFileOrderSource(filepath.Join(root, "input", "amazon-orders"))))
	r.Register(NewTargetProvider(newFileOrderSource(filepath.Join(root, "input", "target-orders"))))
	return r
}

func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		names := make([]string, 0, len(r.providers))
		for n := range r.providers {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown enrichment provider %q (available: %s)", name, strings.Join(names, ", "))
	}
	return p, nil
}

// fileOrderSource reads order-export JSON files from a directory. Each file
// holds {"orders": [...]} with dates as "YYYY-MM-DD" strings.
type fileOrderSource struct {
	dir string
}

func newFileOrderSource(dir string) *fileOrderSource {
	return &fileOrderSource{dir: dir}
}

type orderFile struct {
	Orders []rawOrder `json:"orders"`
}

type rawOrder struct {
	ID              string          `json:"order_id"`
	Date            string          `json:"order_date"`
	Total           decimal.Decimal `json:"order_total"`
	Items           []LineItem      `json:"items"`
	PaymentMethod   string          `json:"payment_method"`
	FulfillmentType string          `json:"fulfillment_type"`
	AccountLabel    string          `json:"account_label"`
}

func (s *fileOrderSource) Fetch(ctx context.Context, month string) ([]Order, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("order export directory %s does not exist", s.dir)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read order export directory: %w", err)
	}

	first, last, err := ledger.MonthRange(month)
	if err != nil {
		return nil, err
	}

	var orders []Order
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}

		var file orderFile
		if err := json.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("invalid order export %s: %w", entry.Name(), err)
		}

		for _, ro := range file.Orders {
			date, err := time.Parse("2006-01-02", ro.Date)
			if err != nil {
				return nil, fmt.Errorf("invalid order date %q in %s: %w", ro.Date, entry.Name(), err)
			}
			if date.Before(first) || date.After(last) {
				continue
			}
			orders = append(orders, Order{
				ID:              ro.ID,
				Date:            date,
				Total:           ro.Total,
				Items:           ro.Items,
				PaymentMethod:   ro.PaymentMethod,
				FulfillmentType: ro.FulfillmentType,
				AccountLabel:    ro.AccountLabel,
			})
		}
	}

	sort.Slice(orders, func(i, j int) bool { return orders[i].Date.Before(orders[j].Date) })
	return orders, nil
}

// LoadMonthTransactions reads the month's export CSV into TxnRefs for
// matching. Enrichment providers run out-of-band after a pipeline run, so
// the export file is the transaction source of record.
func LoadMonthTransactions(outputDir, month string) ([]TxnRef, error) {
	path := filepath.Join(outputDir, month+".csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s (run the pipeline for %s first): %w", path, month, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols := map[string]int{}
	for i, name := range header {
		cols[name] = i
	}
	for _, required := range []string{"transaction_id", "date", "amount", "merchant"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", path, required)
		}
	}

	var txns []TxnRef
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}

		date, err := time.Parse("2006-01-02", record[cols["date"]])
		if err != nil {
			continue
		}
		amount, err := decimal.NewFromString(record[cols["amount"]])
		if err != nil {
			continue
		}

		txns = append(txns, TxnRef{
			TransactionID: record[cols["transaction_id"]],
			Date:          date,
			Amount:        amount,
			Merchant:      record[cols["merchant"]],
		})
	}

	return txns, nil
}
