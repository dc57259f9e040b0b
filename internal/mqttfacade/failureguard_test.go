package mqttfacade

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFailureGuard_firesAtThreshold(t *testing.T) {
	fired := 0
	g := NewFailureGuard(3, func(reason string) { fired++ })

	g.RecordFailure()
	g.RecordFailure()
	require.Equal(t, 0, fired)
	require.Equal(t, 2, g.Count())

	g.RecordFailure()
	require.Equal(t, 1, fired)

	g.RecordSuccess()
	require.Equal(t, 0, g.Count())
}

func TestFailureGuard_disableResetVetoes(t *testing.T) {
	fired := 0
	g := NewFailureGuard(1, func(reason string) { fired++ })
	g.DisableReset = func() bool { return true }

	g.RecordFailure()
	require.Equal(t, 0, fired, "disable-reset predicate should veto the escalation")
}
