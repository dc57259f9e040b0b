package sensortable

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/snarg/ble-sensor-gateway/internal/shadow"
)

func testTable(t *testing.T, size, greenlistSize int) (*Table, *[]struct {
	Topic   string
	Payload []byte
}) {
	t.Helper()
	published := &[]struct {
		Topic   string
		Payload []byte
	}{}
	tbl := NewTable(Config{
		TableSize:     size,
		GreenlistSize: greenlistSize,
		LogCapacity:   4,
		GatewayID:     "gw1",
		TopicPrefix:   "prefix",
		Publish: func(topic string, payload []byte) {
			*published = append(*published, struct {
				Topic   string
				Payload []byte
			}{topic, payload})
		},
		Now: func() time.Time { return time.Unix(1000, 0) },
	}, zerolog.Nop())
	return tbl, published
}

func eventAdMSD(t *testing.T, addr Address, id uint16, recordType uint8, data uint16) []byte {
	t.Helper()
	buf := make([]byte, EventAdLength)
	buf[0], buf[1] = 0x77, 0x00
	buf[2], buf[3] = 0x01, 0x00
	copy(buf[8:14], addr[:])
	buf[14] = recordType
	buf[15] = byte(id)
	buf[16] = byte(id >> 8)
	buf[21] = byte(data)
	buf[22] = byte(data >> 8)
	return buf
}

func rawReport(msd []byte, name string) []byte {
	var raw []byte
	raw = append(raw, byte(len(msd)+1), 0xff)
	raw = append(raw, msd...)
	if name != "" {
		raw = append(raw, byte(len(name)+1), 0x09)
		raw = append(raw, []byte(name)...)
	}
	return raw
}

func TestTable_Advertisement_newEventPublishesOnce(t *testing.T) {
	tbl, published := testTable(t, 10, 5)
	addr := Address{1, 2, 3, 4, 5, 6}
	raw := rawReport(eventAdMSD(t, addr, 1, uint8(shadow.RecordTemperature), 2500), "")

	res, cr := tbl.Advertisement(addr, -40, 0, raw)
	require.Equal(t, DispatchOK, res)
	require.Nil(t, cr)
	require.Len(t, *published, 1, "one shadow publish for the first sighting")

	res, cr = tbl.Advertisement(addr, -40, 0, raw)
	require.Equal(t, DispatchOK, res)
	require.Nil(t, cr)
	require.Len(t, *published, 1, "identical ad.id must not re-publish")
}

func TestTable_Advertisement_newIDPublishesAgain(t *testing.T) {
	tbl, published := testTable(t, 10, 5)
	addr := Address{1, 2, 3, 4, 5, 6}
	tbl.Advertisement(addr, -40, 0, rawReport(eventAdMSD(t, addr, 1, uint8(shadow.RecordTemperature), 2500), ""))
	tbl.Advertisement(addr, -40, 0, rawReport(eventAdMSD(t, addr, 2, uint8(shadow.RecordTemperature), 2600), ""))
	require.Len(t, *published, 2)
}

func TestTable_Advertisement_neverExceedsTableSize(t *testing.T) {
	tbl, _ := testTable(t, 2, 2)
	for i := 0; i < 5; i++ {
		addr := Address{byte(i), 0, 0, 0, 0, 0}
		tbl.Advertisement(addr, -40, 0, rawReport(eventAdMSD(t, addr, 1, uint8(shadow.RecordTemperature), 0), ""))
	}
	require.LessOrEqual(t, tbl.InUseCount(), 2)
}

func TestTable_TTLTick_evictsNonGreenlistedOnly(t *testing.T) {
	tbl, _ := testTable(t, 10, 5)
	addrA := Address{1}
	addrB := Address{2}
	tbl.Advertisement(addrA, -40, 0, rawReport(eventAdMSD(t, addrA, 1, uint8(shadow.RecordTemperature), 0), ""))
	tbl.Advertisement(addrB, -40, 0, rawReport(eventAdMSD(t, addrB, 1, uint8(shadow.RecordTemperature), 0), ""))

	idxB := tbl.findByAddrString(addrB.String())
	tbl.entries[idxB].Greenlisted = true

	evicted := tbl.TTLTick(DefaultTTLSeconds * time.Second)
	require.Equal(t, 1, evicted)
	require.Equal(t, -1, tbl.find(addrA))
	require.NotEqual(t, -1, tbl.find(addrB), "greenlisted entry must survive TTL expiry")
}

func TestTable_ParseAddress_roundTrips(t *testing.T) {
	addr := Address{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}
	parsed, err := ParseAddress(addr.String())
	require.NoError(t, err)
	require.Equal(t, addr, parsed)
}

func TestTable_AddConfigRequest_notFound(t *testing.T) {
	tbl, _ := testTable(t, 10, 5)
	require.Equal(t, DispatchError, tbl.AddConfigRequest("000000000000", "{}", 1, false, false))
}

func TestTable_AddConfigRequest_lowBatteryDropsNonDump(t *testing.T) {
	tbl, _ := testTable(t, 10, 5)
	addr := Address{1}
	tbl.Advertisement(addr, -40, 0, rawReport(eventAdMSD(t, addr, 1, uint8(shadow.RecordTemperature), 0), ""))
	idx := tbl.find(addr)
	tbl.entries[idx].Ad.Flags = 1 << 7 // low battery bit

	res := tbl.AddConfigRequest(addr.String(), `{"activeMode":1}`, 1, false, false)
	require.Equal(t, DispatchOK, res)
	require.Nil(t, tbl.entries[idx].PendingCmd)
}

func TestTable_AddConfigRequest_queuesWhenBusy(t *testing.T) {
	tbl, _ := testTable(t, 10, 5)
	addr := Address{1}
	tbl.Advertisement(addr, -40, 0, rawReport(eventAdMSD(t, addr, 1, uint8(shadow.RecordTemperature), 0), ""))
	idx := tbl.find(addr)

	res := tbl.AddConfigRequest(addr.String(), `{"activeMode":1}`, 1, false, false)
	require.Equal(t, DispatchDoNotFree, res)
	require.NotNil(t, tbl.entries[idx].PendingCmd)

	res = tbl.AddConfigRequest(addr.String(), `{"activeMode":2}`, 2, false, false)
	require.Equal(t, DispatchDoNotFree, res)
	require.NotNil(t, tbl.entries[idx].QueuedCmd)
	require.Equal(t, uint32(2), tbl.entries[idx].QueuedCmd.ConfigVersion)
}

func TestTable_AckConfigRequest_promotesQueued(t *testing.T) {
	tbl, _ := testTable(t, 10, 5)
	addr := Address{1}
	tbl.Advertisement(addr, -40, 0, rawReport(eventAdMSD(t, addr, 1, uint8(shadow.RecordTemperature), 0), ""))
	idx := tbl.find(addr)

	tbl.AddConfigRequest(addr.String(), `{"activeMode":1}`, 1, false, false)
	tbl.AddConfigRequest(addr.String(), `{"activeMode":2}`, 2, false, false)

	tbl.AckConfigRequest(idx)
	require.NotNil(t, tbl.entries[idx].PendingCmd)
	require.Equal(t, uint32(2), tbl.entries[idx].PendingCmd.ConfigVersion)
	require.Nil(t, tbl.entries[idx].QueuedCmd)
}

func TestTable_AckConfigRequest_synthesizesDumpOnFirstSet(t *testing.T) {
	tbl, _ := testTable(t, 10, 5)
	addr := Address{1}
	tbl.Advertisement(addr, -40, 0, rawReport(eventAdMSD(t, addr, 1, uint8(shadow.RecordTemperature), 0), ""))
	idx := tbl.find(addr)

	tbl.AddConfigRequest(addr.String(), `{"activeMode":1}`, 1, false, false)
	tbl.AckConfigRequest(idx)

	require.NotNil(t, tbl.entries[idx].PendingCmd)
	require.True(t, tbl.entries[idx].PendingCmd.DumpRequest)
	require.False(t, tbl.entries[idx].FirstDumpComplete)
}

func TestTable_ApplyGreenlist_neverExceedsGreenlistSize(t *testing.T) {
	tbl, _ := testTable(t, 10, 2)
	entries := []shadow.GreenlistEntry{
		{Addr: "aaaaaaaaaaaa", Greenlisted: true},
		{Addr: "bbbbbbbbbbbb", Greenlisted: true},
		{Addr: "cccccccccccc", Greenlisted: true},
	}
	tbl.ApplyGreenlist(entries)
	require.LessOrEqual(t, tbl.GreenlistCount(), 2)
}

func TestTable_Decommission_clearsCloudState(t *testing.T) {
	tbl, _ := testTable(t, 10, 5)
	addr := Address{1}
	tbl.Advertisement(addr, -40, 0, rawReport(eventAdMSD(t, addr, 1, uint8(shadow.RecordTemperature), 0), ""))
	idx := tbl.find(addr)
	tbl.entries[idx].Greenlisted = true
	tbl.greenlistUsed = 1

	tbl.Decommission()
	require.False(t, tbl.entries[idx].Greenlisted)
	require.Equal(t, 0, tbl.GreenlistCount())
	require.True(t, tbl.gatewayDirty)
}
