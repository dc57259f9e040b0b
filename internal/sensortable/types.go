// Package sensortable implements the Sensor Table: the bounded in-memory
// registry of discovered BLE sensors, their advertisement/response state,
// greenlist membership, event log, and outbound shadow generation. It is
// the Go counterpart of the firmware's sensor_table.c, grounded on the
// teacher's ingest/identity.go style for the entry bookkeeping and on
// internal/ringlog + internal/shadow for per-entry history and JSON
// encoding.
package sensortable

import (
	"fmt"

	"github.com/snarg/ble-sensor-gateway/internal/ringlog"
)

// Address is a 6-byte BLE device address, on-air byte order.
type Address [6]byte

// String renders the address as 12 lowercase hex characters, reversed
// relative to on-air order — exactly SensorAddrToString's format.
func (a Address) String() string {
	return fmt.Sprintf("%02x%02x%02x%02x%02x%02x", a[5], a[4], a[3], a[2], a[1], a[0])
}

// ParseAddress parses a 12-hex-character address string back into on-air
// byte order, the inverse of String. Used to reconstruct a bt_addr_t when
// the cloud greenlists an address the table hasn't seen an advertisement
// from yet.
func ParseAddress(s string) (Address, error) {
	var a Address
	if len(s) != 12 {
		return a, fmt.Errorf("sensortable: address %q: want 12 hex characters", s)
	}
	var reversed [6]byte
	if _, err := fmt.Sscanf(s, "%02x%02x%02x%02x%02x%02x",
		&reversed[0], &reversed[1], &reversed[2], &reversed[3], &reversed[4], &reversed[5]); err != nil {
		return a, fmt.Errorf("sensortable: address %q: %w", s, err)
	}
	for i := range a {
		a[i] = reversed[5-i]
	}
	return a, nil
}

// AdPayload is the last-seen event advertisement, per spec.md §3/§6.
type AdPayload struct {
	NetworkID  uint16
	Flags      uint16
	Addr       Address
	RecordType uint8
	ID         uint16
	Epoch      uint32
	Data       uint16
	ResetCount uint8
}

// RspPayload is the last-seen scan response, per spec.md §3/§6. Hardware
// version is unpacked from its 5:3 bitfield into Major/Minor at parse time.
type RspPayload struct {
	ProductID     uint16
	FWMajor       uint8
	FWMinor       uint8
	FWPatch       uint8
	FWType        uint8
	ConfigVersion uint8
	BLMajor       uint8
	BLMinor       uint8
	BLPatch       uint8
	HWMajor       uint8
	HWMinor       uint8
}

// Command is a decoded, outbound JSON-RPC request bound for a sensor's VSP
// service: a cloud-originated "set", a periodic query/dump, or "reboot".
type Command struct {
	Cmd             string
	ConfigVersion   uint32
	DumpRequest     bool
	ResetRequest    bool
	SetEpochRequest bool
	Attempts        int
}

// Entry is one row of the Sensor Table — the Go counterpart of
// SensorEntry_t.
type Entry struct {
	InUse      bool
	Addr       Address
	AddrString string
	Name       string

	ValidAd     bool
	ValidRsp    bool
	UpdatedName bool
	UpdatedRsp  bool

	Ad  AdPayload
	Rsp RspPayload

	RSSI           int8
	LastRecordType uint8
	RxEpoch        uint32
	AdCount        uint32
	LastFlags      uint16
	TTLSeconds     uint32

	Greenlisted            bool
	Subscribed             bool
	GetAcceptedSubscribed  bool
	ShadowInitReceived     bool
	SubscriptionDispatchAt int64 // unix millis

	PendingCmd        *Command
	QueuedCmd         *Command
	ConfigBusy        bool
	ConfigBusyVersion uint32
	FirstDumpComplete bool
	ConfigDispatchAt  int64 // unix millis, read by the Sensor Task to pace retries

	Log *ringlog.Log
}

// clear resets an entry to its zero state, freeing its log — the Go
// counterpart of ClearEntry/FreeEntryBuffers (no manual buffer pool
// release is needed; the garbage collector reclaims it).
func (e *Entry) clear(logCapacity int) {
	*e = Entry{Log: ringlog.New(logCapacity)}
}
