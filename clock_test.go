package serial

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMonotonicClock(t *testing.T) {
	c := NewMonotonicClock()
	a := c.Now()
	time.Sleep(5 * time.Millisecond)
	b := c.Now()

	require.GreaterOrEqual(t, a, time.Duration(0))
	require.GreaterOrEqual(t, b-a, 5*time.Millisecond)
}
