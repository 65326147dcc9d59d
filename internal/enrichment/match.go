package enrichment

import (
	"sort"

	"github.com/shopspring/decimal"
	"k8s.io/klog"
)

// MatchPair is one accepted (order, transaction) pairing.
type MatchPair struct {
	Order Order
	Txn   TxnRef
}

func daysBetween(orderDate, txnDate int64) int64 {
	d := orderDate - txnDate
	if d < 0 {
		d = -d
	}
	return d
}

func dateWithinWindow(order Order, txn TxnRef, window int) (int, bool) {
	diff := int(daysBetween(order.Date.Unix()/86400, txn.Date.Unix()/86400))
	return diff, diff <= window
}

// MatchStrict pairs orders to transactions under mutual-uniqueness: a pair
// is accepted only when the transaction is the single viable candidate for
// the order AND the order is the single viable candidate for the
// transaction. Ambiguity on either side leaves everything involved
// unmatched; no secondary tie-break is attempted.
func MatchStrict(orders []Order, txns []TxnRef, window int, tolerance decimal.Decimal) []MatchPair {
	orderCandidates := map[string][]TxnRef{}
	txnCandidates := map[string][]Order{}

	for _, order := range orders {
		orderCandidates[order.ID] = nil
		for _, txn := range txns {
			if _, ok := dateWithinWindow(order, txn, window); !ok {
				continue
			}
			if order.Total.Sub(txn.Amount.Abs()).Abs().GreaterThan(tolerance) {
				continue
			}
			orderCandidates[order.ID] = append(orderCandidates[order.ID], txn)
			txnCandidates[txn.TransactionID] = append(txnCandidates[txn.TransactionID], order)
		}
	}

	var matches []MatchPair
	matchedTxns := map[string]bool{}
	matchedOrders := map[string]bool{}

	for _, order := range orders {
		if matchedOrders[order.ID] {
			continue
		}

		var available []TxnRef
		for _, txn := range orderCandidates[order.ID] {
			if !matchedTxns[txn.TransactionID] {
				available = append(available, txn)
			}
		}
		if len(available) != 1 {
			if len(available) > 1 {
				klog.Warningf("Ambiguous match for order %s ($%s on %s): %d candidate transactions",
					order.ID, order.Total, order.Date.Format("2006-01-02"), len(available))
			}
			continue
		}
		txn := available[0]

		var reverse []Order
		for _, o := range txnCandidates[txn.TransactionID] {
			if !matchedOrders[o.ID] {
				reverse = append(reverse, o)
			}
		}
		if len(reverse) != 1 {
			if len(reverse) > 1 {
				klog.Warningf("Ambiguous match for transaction %s ($%s on %s): %d candidate orders",
					txn.TransactionID, txn.Amount, txn.Date.Format("2006-01-02"), len(reverse))
			}
			continue
		}

		matches = append(matches, MatchPair{Order: order, Txn: txn})
		matchedTxns[txn.TransactionID] = true
		matchedOrders[order.ID] = true
	}

	return matches
}

// MatchGreedy pairs orders to transactions nearest-date-first under a
// single discount hypothesis: a transaction is viable when its amount
// equals the negated order total, or the negated total scaled by
// discountFactor, within tolerance. Orders are processed in ascending date
// order; each transaction is consumed at most once. Orders paid entirely
// through a gift card are excluded up front.
func MatchGreedy(orders []Order, txns []TxnRef, window int, tolerance, discountFactor decimal.Decimal) []MatchPair {
	if len(orders) == 0 || len(txns) == 0 {
		return nil
	}

	sorted := make([]Order, 0, len(orders))
	for _, o := range orders {
		if o.PaidByGiftCard() {
			continue
		}
		sorted = append(sorted, o)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	matchedTxns := map[string]bool{}
	var matches []MatchPair

	for _, order := range sorted {
		totalNeg := order.Total.Neg()
		discountedNeg := order.Total.Mul(discountFactor).Round(2).Neg()

		var best *TxnRef
		bestDiff := window + 1

		for i := range txns {
			txn := txns[i]
			if matchedTxns[txn.TransactionID] {
				continue
			}

			diff, ok := dateWithinWindow(order, txn, window)
			if !ok {
				continue
			}

			amountMatches := txn.Amount.Sub(totalNeg).Abs().LessThanOrEqual(tolerance) ||
				txn.Amount.Sub(discountedNeg).Abs().LessThanOrEqual(tolerance)
			if amountMatches && diff < bestDiff {
				best = &txns[i]
				bestDiff = diff
			}
		}

		if best != nil {
			matchedTxns[best.TransactionID] = true
			matches = append(matches, MatchPair{Order: order, Txn: *best})
		}
	}

	return matches
}
