// Package sensortask implements the Sensor Task (C5): a single-threaded
// state machine serving one BLE connection at a time, driving the paired
// VSP exchange that delivers a sensor table's queued commands and ingests
// scan callbacks for the sensor table. Grounded on the teacher's worker-loop
// style (a bus.Queue drained by one goroutine) and on tinygo.org/x/bluetooth's
// connect/discover/notify API as shown by the BLE scanner examples in the
// retrieved pack.
package sensortask

import (
	"context"
	"time"

	"github.com/snarg/ble-sensor-gateway/internal/sensortable"
)

// State is a Sensor Task connection-attempt state, per spec.md §4.5's table.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateExchangingMtu
	StateDiscovering
	StateAwaitingPair
	StateWriting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateExchangingMtu:
		return "exchanging_mtu"
	case StateDiscovering:
		return "discovering"
	case StateAwaitingPair:
		return "awaiting_pair"
	case StateWriting:
		return "writing"
	default:
		return "unknown"
	}
}

// Timeouts per spec.md §4.5.
const (
	ConnectionCreateTimeout = 7 * time.Second // BT_CREATE_CONN_TIMEOUT + 2s margin
	EncryptionTimeout       = 3 * time.Second
	ResetDelay              = 1500 * time.Millisecond
	ResetAckToDumpDelay     = 10 * time.Second
	mtuHeaderOverhead       = 3 // ATT write-request opcode + handle
	responseBufferSize      = 2048
)

// Link is an open, discovered, subscribed connection to a sensor's VSP
// service. Concrete implementations live in internal/blecentral.
type Link interface {
	// MTU returns the negotiated attribute MTU in bytes.
	MTU() int
	// DiscoverVSP locates the VSP RX/TX characteristics and their CCCD and
	// subscribes for notifications, invoking onNotify for each inbound
	// notification payload.
	DiscoverVSP(ctx context.Context, onNotify func(data []byte)) error
	// AwaitPairing blocks until the security manager reports the link
	// paired (or ctx expires).
	AwaitPairing(ctx context.Context) error
	// Write sends chunk to the VSP RX characteristic without waiting for a
	// response, matching the firmware's flow-controlled chunked write.
	Write(ctx context.Context, chunk []byte) error
	// Disconnect tears down the link. Idempotent.
	Disconnect() error
}

// Central is the BLE adapter abstraction the Sensor Task drives. A
// concrete adapter lives in internal/blecentral; tests use a fake.
type Central interface {
	// StopScan halts advertisement scanning so a connection attempt isn't
	// starved of radio time, per spec.md §4.5's Idle→Connecting action.
	StopScan() error
	// StartScan resumes advertisement scanning, called once a connection
	// attempt concludes (success or failure).
	StartScan() error
	// Connect creates a connection to addr, using coded-PHY creation
	// parameters when coded is true, and blocks until connected or ctx
	// expires.
	Connect(ctx context.Context, addr sensortable.Address, coded bool) (Link, error)
}

// Metrics receives Sensor Task activity counters. Nil-safe.
type Metrics interface {
	IncAdvertisementsDropped()
	SetAdsOutstanding(n int)
}
