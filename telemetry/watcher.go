package telemetry

import (
	"sync"

	"github.com/dratasich/thingspeak-go-dashboard/metrics"
	"github.com/rs/zerolog/log"
)

const DefaultLowBalance = 15.0

type Notifier interface {
	NotifyLowBalance(balance float64)
}

// LogNotifier reports low balance as a warning
type LogNotifier struct{}

func (LogNotifier) NotifyLowBalance(balance float64) {
	log.Warn().Msgf("Remaining balance low: %.1f%%", balance)
}

// LowBalanceWatcher notifies when the balance drops below the threshold.
// It does not notify again while the balance keeps falling; it re-arms when
// the balance is back at or above the threshold, or when it rises (top-up)
// while still below it.
type LowBalanceWatcher struct {
	threshold float64
	notifier  Notifier

	mu      sync.Mutex
	armed   bool
	low     bool
	last    float64
	hasLast bool
}

func NewLowBalanceWatcher(threshold float64, notifier Notifier) *LowBalanceWatcher {
	if threshold <= 0 {
		threshold = DefaultLowBalance
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &LowBalanceWatcher{threshold: threshold, notifier: notifier, armed: true}
}

func (w *LowBalanceWatcher) Observe(u Update) {
	if u.Balance == nil {
		return
	}
	balance := *u.Balance

	w.mu.Lock()
	fire := false
	switch {
	case balance >= w.threshold:
		w.armed = true
	case w.hasLast && balance > w.last:
		w.armed = true
	case w.armed:
		fire = true
		w.armed = false
	}
	w.low = balance < w.threshold
	w.last, w.hasLast = balance, true
	w.mu.Unlock()

	if fire {
		metrics.LowBalanceAlerts.Inc()
		w.notifier.NotifyLowBalance(balance)
	}
}

// Low reports whether the last published balance was below the threshold
func (w *LowBalanceWatcher) Low() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.low
}
