package sensortask

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/snarg/ble-sensor-gateway/internal/bus"
	"github.com/snarg/ble-sensor-gateway/internal/sensortable"
	"github.com/snarg/ble-sensor-gateway/internal/shadow"
)

type fakeLink struct {
	mtu       int
	written   [][]byte
	notify    func([]byte)
	discErr   error
	pairErr   error
	connErr   error
	autoReply []byte
}

func (l *fakeLink) MTU() int { return l.mtu }

func (l *fakeLink) DiscoverVSP(ctx context.Context, onNotify func([]byte)) error {
	if l.discErr != nil {
		return l.discErr
	}
	l.notify = onNotify
	return nil
}

func (l *fakeLink) AwaitPairing(ctx context.Context) error { return l.pairErr }

func (l *fakeLink) Write(ctx context.Context, chunk []byte) error {
	l.written = append(l.written, append([]byte(nil), chunk...))
	if l.autoReply != nil && l.notify != nil {
		for _, b := range l.autoReply {
			l.notify([]byte{b})
		}
	}
	return nil
}

func (l *fakeLink) Disconnect() error { return nil }

type fakeCentral struct {
	link        *fakeLink
	connErr     error
	connectedTo sensortable.Address
	stopped     int
	started     int
}

func (c *fakeCentral) StopScan() error  { c.stopped++; return nil }
func (c *fakeCentral) StartScan() error { c.started++; return nil }
func (c *fakeCentral) Connect(ctx context.Context, addr sensortable.Address, coded bool) (Link, error) {
	c.connectedTo = addr
	if c.connErr != nil {
		return nil, c.connErr
	}
	return c.link, nil
}

func testTask(t *testing.T, central Central, tbl *sensortable.Table) *Task {
	t.Helper()
	q := bus.NewQueue("test", 8, zerolog.Nop())
	return New(Config{Central: central, Table: tbl, Queue: q}, zerolog.Nop())
}

func newTestTable(t *testing.T) *sensortable.Table {
	t.Helper()
	return sensortable.NewTable(sensortable.Config{
		TableSize:     4,
		GreenlistSize: 4,
		LogCapacity:   4,
		GatewayID:     "gw1",
		TopicPrefix:   "prefix",
	}, zerolog.Nop())
}

func TestTask_Connect_successAcksConfig(t *testing.T) {
	tbl := newTestTable(t)
	addr := sensortable.Address{1, 2, 3, 4, 5, 6}
	link := &fakeLink{mtu: 185, autoReply: []byte(`{"ok":1}`)}
	central := &fakeCentral{link: link}
	task := testTask(t, central, tbl)

	req := &sensortable.ConnectRequest{TableIndex: 0, Addr: addr, AddrString: addr.String(), Cmd: `{"activeMode":1}`}
	task.connect(context.Background(), req)

	require.Equal(t, StateIdle, task.State())
	require.Equal(t, 1, central.stopped)
	require.Equal(t, 1, central.started)
	require.NotEmpty(t, link.written)
}

func TestTask_Connect_resetSendsReboot(t *testing.T) {
	tbl := newTestTable(t)
	addr := sensortable.Address{1}
	link := &fakeLink{mtu: 185, autoReply: []byte(`{"ok":1}`)}
	central := &fakeCentral{link: link}
	task := testTask(t, central, tbl)

	req := &sensortable.ConnectRequest{TableIndex: 0, Addr: addr, AddrString: addr.String(), Cmd: `{"sensorName":"a"}`, ResetRequest: true}
	task.connect(context.Background(), req)

	require.GreaterOrEqual(t, len(link.written), 2, "write of the command plus the reboot command")
	require.Contains(t, string(link.written[len(link.written)-1]), "reboot")
}

func TestTask_Connect_failureRetries(t *testing.T) {
	tbl := newTestTable(t)
	addr := sensortable.Address{1}
	central := &fakeCentral{connErr: context.DeadlineExceeded}
	task := testTask(t, central, tbl)

	req := &sensortable.ConnectRequest{TableIndex: 0, Addr: addr, AddrString: addr.String(), Cmd: "{}"}
	task.connect(context.Background(), req)

	require.Equal(t, StateIdle, task.State())
}

func TestBracketMatcher_stringAwareMatching(t *testing.T) {
	m := newBracketMatcher(256)
	input := `{"cmd":"set","data":"a{b}c"}`
	var got []byte
	var ok bool
	for i := 0; i < len(input); i++ {
		got, ok = m.feed(input[i])
	}
	require.True(t, ok)
	require.Equal(t, input, string(got))
}

func TestBracketMatcher_ignoresPrefixNoise(t *testing.T) {
	m := newBracketMatcher(256)
	for _, b := range []byte("junk") {
		_, ok := m.feed(b)
		require.False(t, ok)
	}
	var got []byte
	var ok bool
	for _, b := range []byte(`{"a":1}`) {
		got, ok = m.feed(b)
	}
	require.True(t, ok)
	require.Equal(t, `{"a":1}`, string(got))
}

func TestBackpressure_dropsAboveHalfCapacity(t *testing.T) {
	bp := newBackpressure(4, zerolog.Nop(), nil)
	require.True(t, bp.admit())
	require.True(t, bp.admit())
	require.False(t, bp.admit(), "third admit exceeds half of depth 4")
}

func TestAdvertisementMsg_dispatchesConnectRequest(t *testing.T) {
	tbl := newTestTable(t)
	addr := sensortable.Address{9, 9, 9, 9, 9, 9}
	link := &fakeLink{mtu: 185, autoReply: []byte(`{"ok":1}`)}
	central := &fakeCentral{link: link}
	task := testTask(t, central, tbl)

	eventAd := func(id byte) []byte {
		buf := make([]byte, sensortable.EventAdLength)
		buf[0], buf[1] = 0x77, 0x00
		buf[2], buf[3] = 0x01, 0x00
		copy(buf[8:14], addr[:])
		buf[14] = uint8(shadow.RecordTemperature)
		buf[15] = id
		return append([]byte{byte(len(buf) + 1), 0xff}, buf...)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// First sighting allocates the entry; no command pending yet.
	task.handleAdvertisement(ctx, &bus.AdvertisementMsg{Addr: addr, RSSI: -40, Raw: eventAd(1)})
	require.Equal(t, 0, central.stopped, "no pending command on first sighting")

	res := tbl.AddConfigRequest(addr.String(), `{"activeMode":1}`, 1, false, false)
	require.Equal(t, sensortable.DispatchDoNotFree, res)

	// A fresh event id re-triggers maybeDispatchPendingCmd, which now finds
	// the queued command and hands back a ConnectRequest.
	task.handleAdvertisement(ctx, &bus.AdvertisementMsg{Addr: addr, RSSI: -40, Raw: eventAd(2)})
	require.Equal(t, addr, central.connectedTo)
	require.Equal(t, 1, central.stopped)
}
