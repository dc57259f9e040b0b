package mqttfacade

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatchdog_firesOnceAfterTimeout(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }
	fired := 0
	w := NewWatchdog(10*time.Second, func(reason string) { fired++ }, clock)

	now = now.Add(5 * time.Second)
	w.Check()
	require.Equal(t, 0, fired, "not yet timed out")

	now = now.Add(6 * time.Second)
	w.Check()
	require.Equal(t, 1, fired, "timeout elapsed, fires once")

	now = now.Add(time.Second)
	w.Check()
	require.Equal(t, 1, fired, "does not refire until RecordSuccess re-arms it")

	w.RecordSuccess()
	now = now.Add(11 * time.Second)
	w.Check()
	require.Equal(t, 2, fired, "re-armed watchdog fires again after a fresh timeout")
}

func TestWatchdog_disabledWhenZero(t *testing.T) {
	now := time.Unix(0, 0)
	fired := 0
	w := NewWatchdog(0, func(reason string) { fired++ }, func() time.Time { return now })
	now = now.Add(time.Hour)
	w.Check()
	require.Equal(t, 0, fired)
}
