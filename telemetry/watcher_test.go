package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingNotifier struct {
	balances []float64
}

func (n *countingNotifier) NotifyLowBalance(balance float64) {
	n.balances = append(n.balances, balance)
}

func balanceUpdate(b float64) Update { return Update{Balance: &b} }

func TestLowBalanceRisingEdge(t *testing.T) {
	// arrange
	n := &countingNotifier{}
	w := NewLowBalanceWatcher(15, n)

	// act
	for _, b := range []float64{20, 10, 5, 12, 8} {
		w.Observe(balanceUpdate(b))
	}

	// assert
	assert.Equal(t, []float64{10, 8}, n.balances)
	assert.True(t, w.Low())
}

func TestLowBalanceNoRefireWhileFalling(t *testing.T) {
	n := &countingNotifier{}
	w := NewLowBalanceWatcher(15, n)

	for _, b := range []float64{20, 10, 9, 9, 3, 0} {
		w.Observe(balanceUpdate(b))
	}

	assert.Equal(t, []float64{10}, n.balances)
}

func TestLowBalanceAnyRiseRearms(t *testing.T) {
	// a rise below the threshold counts as a top-up, however small
	n := &countingNotifier{}
	w := NewLowBalanceWatcher(15, n)

	for _, b := range []float64{10, 9.9, 10.0, 9.9} {
		w.Observe(balanceUpdate(b))
	}

	assert.Equal(t, []float64{10, 9.9}, n.balances)
}

func TestLowBalanceFirstValueBelow(t *testing.T) {
	n := &countingNotifier{}
	w := NewLowBalanceWatcher(15, n)

	w.Observe(balanceUpdate(4))

	assert.Equal(t, []float64{4}, n.balances)
}

func TestLowBalanceRearms(t *testing.T) {
	n := &countingNotifier{}
	w := NewLowBalanceWatcher(15, n)

	for _, b := range []float64{20, 10, 5, 15, 8, 30} {
		w.Observe(balanceUpdate(b))
	}

	assert.Equal(t, []float64{10, 8}, n.balances)
	assert.False(t, w.Low())
}

func TestLowBalanceIgnoresUpdatesWithoutBalance(t *testing.T) {
	n := &countingNotifier{}
	w := NewLowBalanceWatcher(15, n)

	w.Observe(balanceUpdate(10))
	w.Observe(Update{})
	w.Observe(balanceUpdate(9))

	assert.Len(t, n.balances, 1)
}

func TestLowBalanceViaPoller(t *testing.T) {
	n := &countingNotifier{}
	_, h := fixture(t, NewLowBalanceWatcher(15, n))

	for _, b := range []string{"20", "10", "5", "12", "8"} {
		h.Apply(record("", b, ""))
	}

	assert.Equal(t, []float64{10, 8}, n.balances)
}
