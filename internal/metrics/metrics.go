// Package metrics implements the gateway's Prometheus counters/gauges,
// adapted from the teacher's internal/metrics namespaced counter-vec
// style onto the Sensor Table and Sensor Task's instrumentation points.
// There is no HTTP API in scope for this gateway (spec.md §1's CLI/API
// Non-goal), so the teacher's chi-middleware instrumentation is dropped —
// Registry exposes the collectors directly for an embedding process to
// expose however it likes (e.g. a bare promhttp.Handler mounted by
// cmd/gateway, if operators want one).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ble_gateway"

// Table-facing gauges/counters, implementing sensortable.Metrics.
var (
	tableOccupancy = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "table_occupancy",
		Help:      "Current number of in-use Sensor Table entries.",
	})

	greenlistOccupancy = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "greenlist_occupancy",
		Help:      "Current number of greenlisted Sensor Table entries.",
	})

	advertisementsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "advertisements_total",
		Help:      "Total BLE advertisements processed by the Sensor Table.",
	})

	shadowPublishesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "shadow_publishes_total",
		Help:      "Total shadow-publish messages emitted by the Sensor Table.",
	})

	droppedAdvertisementsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dropped_advertisements_total",
		Help:      "Total advertisements dropped by the Sensor Table (table full).",
	})
)

// Sensor-Task-facing gauge/counter, implementing sensortask.Metrics.
var (
	adsOutstanding = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ads_outstanding",
		Help:      "Advertisements admitted onto the Sensor Task queue but not yet processed.",
	})

	adsDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ads_dropped_total",
		Help:      "Total advertisements refused by backpressure before reaching the queue.",
	})
)

// Connection-facing counters, for the MQTT Facade and BLE central.
var (
	MQTTConnectFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mqtt_connect_failures_total",
		Help:      "Total failed MQTT connect attempt sequences.",
	})

	BLEConnectAttemptsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ble_connect_attempts_total",
		Help:      "Total BLE central connect attempts.",
	})
)

func init() {
	prometheus.MustRegister(
		tableOccupancy,
		greenlistOccupancy,
		advertisementsTotal,
		shadowPublishesTotal,
		droppedAdvertisementsTotal,
		adsOutstanding,
		adsDroppedTotal,
		MQTTConnectFailuresTotal,
		BLEConnectAttemptsTotal,
	)
}

// Registry adapts the package-level collectors to sensortable.Metrics and
// sensortask.Metrics; both interfaces are satisfied by the same value
// since their method sets don't overlap.
type Registry struct{}

// NewRegistry returns a Registry wired to the package's Prometheus
// collectors.
func NewRegistry() Registry {
	return Registry{}
}

func (Registry) SetTableOccupancy(n int)     { tableOccupancy.Set(float64(n)) }
func (Registry) SetGreenlistOccupancy(n int) { greenlistOccupancy.Set(float64(n)) }
func (Registry) IncAdvertisements()          { advertisementsTotal.Inc() }
func (Registry) IncShadowPublishes()         { shadowPublishesTotal.Inc() }
func (Registry) IncDroppedAdvertisements()   { droppedAdvertisementsTotal.Inc() }

func (Registry) IncAdvertisementsDropped() { adsDroppedTotal.Inc() }
func (Registry) SetAdsOutstanding(n int)   { adsOutstanding.Set(float64(n)) }
