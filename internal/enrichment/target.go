package enrichment

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"k8s.io/klog"
)

// Days between a Target order date and a bank transaction date for the
// pair to be considered.
const targetDateWindow = 3

var (
	// RedCard purchases post at 95% of the order total.
	targetRedCardFactor = decimal.NewFromFloat(0.95)
	// Tolerance after the discount adjustment.
	targetTolerance = decimal.NewFromFloat(0.02)
)

// TargetProvider matches Target orders to bank transactions greedily:
// orders in ascending date order, nearest-date viable transaction first,
// accepting amounts that equal either the raw order total or the
// RedCard-discounted total. Orders paid entirely by gift card are excluded
// up front since they never hit a bank statement.
type TargetProvider struct {
	source OrderSource
}

func NewTargetProvider(source OrderSource) *TargetProvider {
	return &TargetProvider{source: source}
}

func (p *TargetProvider) Name() string { return "target" }

func (p *TargetProvider) Enrich(ctx context.Context, month, root, cacheDir string, txns []TxnRef) (Result, error) {
	result := Result{}

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	orders, err := p.source.Fetch(fetchCtx, month)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("target: failed to fetch orders: %v", err))
		return result, nil
	}
	result.OrdersFound = len(orders)

	candidates := filterTargetTxns(txns)

	matches := MatchGreedy(orders, candidates, targetDateWindow, targetTolerance, targetRedCardFactor)

	matchedOrders := map[string]bool{}
	for _, match := range matches {
		matchedOrders[match.Order.ID] = true
		data := targetCacheData(match.Order, match.Txn.TransactionID)
		if _, err := WriteCache(cacheDir, data); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("target: %v", err))
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
		detail := fmt.Sprintf("order %s ($%s on %s, %d items)",
			order.ID, order.Total, order.Date.Format("2006-01-02"), len(order.Items))
		if order.PaidByGiftCard() {
			detail += " [gift card, not matchable]"
		}
		result.UnmatchedDetails = append(result.UnmatchedDetails, detail)
	}

	klog.Infof("Target enrichment for %s: %d orders, %d matched, %d unmatched",
		month, result.OrdersFound, result.OrdersMatched, result.OrdersUnmatched)

	return result, nil
}

func filterTargetTxns(txns []TxnRef) []TxnRef {
	var out []TxnRef
	for _, txn := range txns {
		if strings.Contains(strings.ToUpper(txn.Merchant), "TARGET") {
			out = append(out, txn)
		}
	}
	return out
}

// targetCacheData converts a matched order into the cache artifact, with an
// adjustment line for the tax/fee/discount remainder so items always sum to
// the order total.
func targetCacheData(order Order, transactionID string) CacheData {
	items := make([]CacheItem, 0, len(order.Items)+1)

	for _, li := range order.Items {
		qty := li.Quantity
		if qty == 0 {
			qty = 1
		}
		itemTotal := li.Price.Mul(decimal.NewFromInt(int64(qty)))

		description := li.Name
		if qty > 1 {
			description = fmt.Sprintf("%s (qty %d)", li.Name, qty)
		}

		items = append(items, CacheItem{
			Name:        li.Name,
			Price:       li.Price.String(),
			Quantity:    qty,
			Merchant:    "Target - " + li.Name,
			Description: description,
			Amount:      itemTotal.Neg().String(),
		})
	}

	if remainder := order.Total.Sub(order.ItemsTotal()); !remainder.IsZero() {
		items = append(items, CacheItem{
			Merchant:    "Target - Tax/Adjustments",
			Description: "Sales tax and adjustments",
			Amount:      remainder.Neg().String(),
		})
	}

	return CacheData{
		TransactionID: transactionID,
		Source:        "target",
		OrderID:       order.ID,
		Items:         items,
	}
}
