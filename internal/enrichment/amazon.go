package enrichment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"k8s.io/klog"
)

const (
	// Days between an Amazon order date and a bank transaction date for
	// the pair to be considered.
	amazonDateWindow = 3
	// Long product names are truncated for readability in the output CSV.
	amazonMaxNameLen = 80
)

// Order totals and transaction amounts must agree within a cent (handles
// tax rounding).
var amazonTolerance = decimal.NewFromFloat(0.01)

// Ceiling on order fetching, which may sit behind interactive
// authentication.
const fetchTimeout = 5 * time.Minute

// AmazonProvider matches Amazon orders to bank transactions under strict
// mutual uniqueness: ambiguous pairings on either side are logged and left
// unmatched rather than guessed.
type AmazonProvider struct {
	source OrderSource
}

func NewAmazonProvider(source OrderSource) *AmazonProvider {
	return &AmazonProvider{source: source}
}

func (p *AmazonProvider) Name() string { return "amazon" }

func (p *AmazonProvider) Enrich(ctx context.Context, month, root, cacheDir string, txns []TxnRef) (Result, error) {
	result := Result{}

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	orders, err := p.source.Fetch(fetchCtx, month)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("amazon: failed to fetch orders: %v", err))
		return result, nil
	}
	result.OrdersFound = len(orders)

	// Only match against transactions that look like Amazon charges.
	candidates := filterAmazonTxns(txns)

	matches := MatchStrict(orders, candidates, amazonDateWindow, amazonTolerance)

	matchedOrders := map[string]bool{}
	for _, match := range matches {
		matchedOrders[match.Order.ID] = true
		data := amazonCacheData(match.Order, match.Txn.TransactionID)
		if _, err := WriteCache(cacheDir, data); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("amazon: %v", err))
			continue
		}
		result.CacheFilesWritten++
		result.OrdersMatched++
	}

	for _, order := range orders {
		if matchedOrders[order.ID] {
			continue
		}
		result.OrdersUnmatched++
		result.UnmatchedDetails = append(result.UnmatchedDetails,
			fmt.Sprintf("order %s ($%s on %s, %d items)",
				order.ID, order.Total, order.Date.Format("2006-01-02"), len(order.Items)))
	}

	klog.Infof("Amazon enrichment for %s: %d orders, %d matched, %d unmatched",
		month, result.OrdersFound, result.OrdersMatched, result.OrdersUnmatched)

	return result, nil
}

func filterAmazonTxns(txns []TxnRef) []TxnRef {
	var out []TxnRef
	for _, txn := range txns {
		m := strings.ToUpper(txn.Merchant)
		if strings.Contains(m, "AMAZON") || strings.Contains(m, "AMZN") || strings.Contains(m, "AMZ") {
			out = append(out, txn)
		}
	}
	return out
}

// amazonCacheData converts a matched order into the cache artifact. Each
// line item gets an expense-sign amount; when the item totals disagree with
// the order total (tax, fees), one explicit adjustment line makes the items
// sum to the order total.
func amazonCacheData(order Order, transactionID string) CacheData {
	items := make([]CacheItem, 0, len(order.Items)+1)

	for _, li := range order.Items {
		qty := li.Quantity
		if qty == 0 {
			qty = 1
		}
		itemTotal := li.Price.Mul(decimal.NewFromInt(int64(qty)))

		displayName := li.Name
		if runes := []rune(displayName); len(runes) > amazonMaxNameLen {
			displayName = string(runes[:amazonMaxNameLen])
		}

		items = append(items, CacheItem{
			Name:        li.Name,
			Price:       li.Price.String(),
			Quantity:    qty,
			Merchant:    "AMAZON - " + displayName,
			Description: li.Name,
			Amount:      itemTotal.Neg().String(),
		})
	}

	if remainder := order.Total.Sub(order.ItemsTotal()); !remainder.IsZero() {
		items = append(items, CacheItem{
			Merchant:    "Amazon - Tax/Adjustments",
			Description: "Sales tax and adjustments",
			Amount:      remainder.Neg().String(),
		})
	}

	return CacheData{
		TransactionID: transactionID,
		Source:        "amazon",
		OrderID:       order.ID,
		Items:         items,
	}
}
