package attrstore

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestStore_stringRoundTrip(t *testing.T) {
	s := openTestStore(t)
	require.Equal(t, "default", s.GetString("missing", "default"))

	require.NoError(t, s.SetString("client_id", "gw-0123"))
	require.Equal(t, "gw-0123", s.GetString("client_id", ""))
}

func TestStore_durationRoundTrip(t *testing.T) {
	s := openTestStore(t)
	require.Equal(t, 2*time.Second, s.GetDuration("join_delay", 2*time.Second))

	require.NoError(t, s.SetDuration("join_delay", 45*time.Second))
	require.Equal(t, 45*time.Second, s.GetDuration("join_delay", 0))
}

func TestStore_durationFallsBackOnBadValue(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SetString("join_delay", "not-a-duration"))
	require.Equal(t, 3*time.Second, s.GetDuration("join_delay", 3*time.Second))
}

func TestStore_uintAndBoolRoundTrip(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SetUint("port", 8883))
	require.Equal(t, uint64(8883), s.GetUint("port", 0))

	require.NoError(t, s.SetBool("commissioned", true))
	require.True(t, s.GetBool("commissioned", false))
}
