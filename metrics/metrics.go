// Package metrics holds the Prometheus collectors of the dashboard.
//
// Collectors are package level and registered on a caller supplied registry.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	Polls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thingspeak_polls_total",
			Help: "Telemetry fetches by result (ok, error)",
		},
		[]string{"result"},
	)

	Samples = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thingspeak_samples_total",
			Help: "Usage samples by outcome (accepted, rejected)",
		},
		[]string{"outcome"},
	)

	WriteAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thingspeak_write_attempts_total",
			Help: "Device field write attempts by field and result (ok, error)",
		},
		[]string{"field", "result"},
	)

	RemainingBalance = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "thingspeak_remaining_balance_percent",
			Help: "Last published remaining balance, clamped to 0-100",
		},
	)

	BatteryTemperature = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "thingspeak_battery_temperature",
			Help: "Last published battery temperature",
		},
	)

	LowBalanceAlerts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "thingspeak_low_balance_alerts_total",
			Help: "Times the balance dropped below the alert threshold",
		},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		Polls,
		Samples,
		WriteAttempts,
		RemainingBalance,
		BatteryTemperature,
		LowBalanceAlerts,
	)
}
