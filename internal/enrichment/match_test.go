package enrichment

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC)
}

func order(id string, date time.Time, total float64) Order {
	return Order{ID: id, Date: date, Total: decimal.NewFromFloat(total)}
}

func txn(id string, date time.Time, amount float64) TxnRef {
	return TxnRef{TransactionID: id, Date: date, Amount: decimal.NewFromFloat(amount)}
}

var centTolerance = decimal.NewFromFloat(0.01)

func TestMatchStrictUniquePair(t *testing.T) {
	orders := []Order{order("o1", day(10), 54.20)}
	txns := []TxnRef{
		txn("t1", day(11), -54.20),
		txn("t2", day(11), -99.99),
	}

	matches := MatchStrict(orders, txns, 3, centTolerance)
	require.Len(t, matches, 1)
	assert.Equal(t, "o1", matches[0].Order.ID)
	assert.Equal(t, "t1", matches[0].Txn.TransactionID)
}

func TestMatchStrictAmbiguityLeavesBothUnmatched(t *testing.T) {
	// Two same-amount transactions both within the window for one order:
	// neither may be guessed, even though one is closer in date.
	orders := []Order{order("o1", day(10), 54.20)}
	txns := []TxnRef{
		txn("t1", day(10), -54.20),
		txn("t2", day(12), -54.20),
	}

	assert.Empty(t, MatchStrict(orders, txns, 3, centTolerance))

	// Mirror case: two same-total orders competing for one transaction.
	orders = []Order{order("o1", day(10), 54.20), order("o2", day(11), 54.20)}
	txns = []TxnRef{txn("t1", day(10), -54.20)}

	assert.Empty(t, MatchStrict(orders, txns, 3, centTolerance))
}

func TestMatchStrictWindowAndTolerance(t *testing.T) {
	orders := []Order{order("o1", day(10), 54.20)}

	// Outside the date window.
	assert.Empty(t, MatchStrict(orders, []TxnRef{txn("t1", day(14), -54.20)}, 3, centTolerance))
	// Outside the amount tolerance.
	assert.Empty(t, MatchStrict(orders, []TxnRef{txn("t1", day(11), -54.25)}, 3, centTolerance))
	// A cent off is within tolerance.
	assert.Len(t, MatchStrict(orders, []TxnRef{txn("t1", day(11), -54.21)}, 3, centTolerance), 1)
}

func TestMatchGreedyNearestDateWins(t *testing.T) {
	orders := []Order{order("o1", day(10), 30.00)}
	txns := []TxnRef{
		txn("far", day(13), -30.00),
		txn("near", day(11), -30.00),
	}

	matches := MatchGreedy(orders, txns, 3, decimal.NewFromFloat(0.02), decimal.NewFromFloat(0.95))
	require.Len(t, matches, 1)
	assert.Equal(t, "near", matches[0].Txn.TransactionID)
}

func TestMatchGreedyDiscountedTotal(t *testing.T) {
	// 100.00 order charged at the 5%-off loyalty price of 95.00.
	orders := []Order{order("o1", day(10), 100.00)}
	txns := []TxnRef{txn("t1", day(10), -95.00)}

	matches := MatchGreedy(orders, txns, 3, decimal.NewFromFloat(0.02), decimal.NewFromFloat(0.95))
	require.Len(t, matches, 1)
}

func TestMatchGreedyExcludesGiftCardOrders(t *testing.T) {
	o := order("o1", day(10), 30.00)
	o.PaymentMethod = "Gift Card"
	txns := []TxnRef{txn("t1", day(10), -30.00)}

	assert.Empty(t, MatchGreedy([]Order{o}, txns, 3, decimal.NewFromFloat(0.02), decimal.NewFromFloat(0.95)))
}

func TestMatchGreedyConsumesTransactionsOnce(t *testing.T) {
	orders := []Order{
		order("o2", day(12), 30.00),
		order("o1", day(10), 30.00),
	}
	txns := []TxnRef{txn("t1", day(10), -30.00)}

	matches := MatchGreedy(orders, txns, 3, decimal.NewFromFloat(0.02), decimal.NewFromFloat(0.95))
	require.Len(t, matches, 1)
	// Orders are processed in ascending date order, so o1 gets the single
	// transaction.
	assert.Equal(t, "o1", matches[0].Order.ID)
}
