// Package enrichment matches externally-scraped retailer orders to bank
// transactions and writes the per-transaction cache artifacts the pipeline's
// enrich stage consumes. Matching is deliberately conservative: an order
// left unmatched is always preferred over a wrong split, which would corrupt
// category totals silently.
package enrichment

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is one named, priced, quantified item within an order.
type LineItem struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// Order is an externally-observed purchase scraped from a retailer's order
// history. It exists only for the duration of one enrichment run; its only
// durable trace is the cache artifact a successful match produces.
type Order struct {
	ID    string          `json:"order_id"`
	Date  time.Time       `json:"order_date"`
	Total decimal.Decimal `json:"order_total"`
	Items []LineItem      `json:"items"`
	// "redcard", "debit", "credit", "gift_card", ...
	PaymentMethod string `json:"payment_method"`
	// "shipped", "pickup", "delivery"
	FulfillmentType string `json:"fulfillment_type"`
	AccountLabel    string `json:"account_label"`
}

// PaidByGiftCard reports whether the order was paid (even partially) with a
// gift card, in which case it cannot appear on a bank statement.
func (o Order) PaidByGiftCard() bool {
	return strings.Contains(strings.ToLower(o.PaymentMethod), "gift")
}

// ItemsTotal sums price*quantity over the order's line items.
func (o Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		qty := item.Quantity
		if qty == 0 {
			qty = 1
		}
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(qty))))
	}
	return total
}

// TxnRef is the provider-facing view of a bank transaction: just enough to
// match against and to key the cache artifact. Amounts are negative for
// expenses, as on the statement.
type TxnRef struct {
	TransactionID string
	Date          time.Time
	Amount        decimal.Decimal
	Merchant      string
}
