package serial

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterMetricsIsIdempotent(t *testing.T) {
	require.NotPanics(t, func() {
		RegisterMetrics()
		RegisterMetrics()
	})
}

func TestRecorders(t *testing.T) {
	const device = "/dev/test-recorders"
	commands := counterDelta(eventsTotal.WithLabelValues(device, "command"))
	overflows := counterDelta(eventsTotal.WithLabelValues(device, "overflow"))
	readBytes := counterDelta(bytesTotal.WithLabelValues(device))
	timeouts := counterDelta(timeoutsTotal.WithLabelValues(device))

	recordEvent(device, EventCommand)
	recordEvent(device, EventCommand)
	recordEvent(device, EventOverflow)
	recordBytes(device, 0)
	recordBytes(device, 17)
	recordTimeout(device)

	require.Equal(t, 2.0, commands())
	require.Equal(t, 1.0, overflows())
	require.Equal(t, 17.0, readBytes())
	require.Equal(t, 1.0, timeouts())
}
