package serial

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serial_commands",
			Name:      "events_total",
			Help:      "Events emitted by the line receiver.",
		},
		[]string{"device", "kind"},
	)
	bytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serial_commands",
			Name:      "bytes_total",
			Help:      "Bytes read from the serial device.",
		},
		[]string{"device"},
	)
	timeoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serial_commands",
			Name:      "timeouts_total",
			Help:      "Partial lines dropped after the inter-byte timeout.",
		},
		[]string{"device"},
	)
)

// RegisterMetrics registers the port collectors with the default Prometheus registry.
// It is safe to call more than once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(eventsTotal, bytesTotal, timeoutsTotal)
	})
}

func recordEvent(device string, kind EventKind) {
	eventsTotal.WithLabelValues(device, kind.String()).Inc()
}

func recordBytes(device string, n int) {
	if n > 0 {
		bytesTotal.WithLabelValues(device).Add(float64(n))
	}
}

func recordTimeout(device string) {
	timeoutsTotal.WithLabelValues(device).Inc()
}
