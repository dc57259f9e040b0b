package sensortable

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/ble-sensor-gateway/internal/bus"
	"github.com/snarg/ble-sensor-gateway/internal/shadow"
)

// Default sizing, grounded on spec.md §3 invariants (TABLE_SIZE,
// GREENLIST_SIZE < TABLE_SIZE) and §4.4's "≈4KB + N*26 bytes" shadow buffer
// sizing note.
const (
	DefaultTableSize     = 100
	DefaultGreenlistSize = 50
	DefaultLogCapacity   = 25
	shadowBaseSize       = 4096
	shadowPerLogEntry    = 26
)

// Metrics receives table occupancy and activity counters. A nil Metrics is
// safe to use; every call site nil-checks before calling through it.
type Metrics interface {
	SetTableOccupancy(n int)
	SetGreenlistOccupancy(n int)
	IncAdvertisements()
	IncShadowPublishes()
	IncDroppedAdvertisements()
}

// Publisher hands a fully-built shadow document to the MQTT Facade for a
// topic. The Sensor Table never talks to the facade directly — this is the
// same point-to-point handoff spec.md §5 describes, just expressed as a
// function value instead of a bus.Queue so table tests don't need a running
// facade.
type Publisher func(topic string, payload []byte)

// Table is the bounded registry of discovered sensors (C4). It is owned and
// mutated exclusively by the goroutine that also drives the Sensor Task
// (C5) state machine — spec.md §5's "Sensor Table: mutated only by the
// Sensor Task thread" — so, unlike the teacher's IdentityResolver, it
// carries no internal mutex; cross-goroutine access happens only via
// internal/bus messages that this goroutine drains itself.
type Table struct {
	entries       []Entry
	greenlistSize int
	greenlistUsed int
	logCapacity   int

	gatewayID   string
	topicPrefix string

	log        zerolog.Logger
	publish    Publisher
	metrics    Metrics
	now        func() time.Time
	defaultCmd Command

	gatewayDirty       bool
	shadowInitInFlight string // addr string of the entry with a get() in flight, "" if none
	shadowInitGetSent  bool   // whether the "get" publish for shadowInitInFlight already went out
}

// Config bundles Table construction parameters.
type Config struct {
	TableSize     int
	GreenlistSize int
	LogCapacity   int
	GatewayID     string
	TopicPrefix   string
	Publish       Publisher
	Metrics       Metrics
	Now           func() time.Time // injectable for tests; defaults to time.Now
}

// NewTable allocates a table per cfg, applying defaults for zero fields.
func NewTable(cfg Config, log zerolog.Logger) *Table {
	if cfg.TableSize <= 0 {
		cfg.TableSize = DefaultTableSize
	}
	if cfg.GreenlistSize <= 0 {
		cfg.GreenlistSize = DefaultGreenlistSize
	}
	if cfg.LogCapacity <= 0 {
		cfg.LogCapacity = DefaultLogCapacity
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	t := &Table{
		greenlistSize: cfg.GreenlistSize,
		logCapacity:   cfg.LogCapacity,
		gatewayID:     cfg.GatewayID,
		topicPrefix:   cfg.TopicPrefix,
		log:           log.With().Str("component", "sensortable").Logger(),
		publish:       cfg.Publish,
		metrics:       cfg.Metrics,
		now:           cfg.Now,
	}
	t.entries = make([]Entry, cfg.TableSize)
	t.Initialize()
	return t
}

// Initialize clears all entries and sets the default periodic query
// command — the Go counterpart of SensorTable_Initialize.
func (t *Table) Initialize() {
	for i := range t.entries {
		t.entries[i].clear(t.logCapacity)
	}
	t.greenlistUsed = 0
	t.gatewayDirty = false
	t.shadowInitInFlight = ""
	t.shadowInitGetSent = false
	t.defaultCmd = Command{Cmd: shadow.DumpCommand, DumpRequest: true}
}

// MatchSensorFormat reports whether msd (a manufacturer-specific-data block,
// header included) matches any of the three known sensor formats.
func (t *Table) MatchSensorFormat(msd []byte) bool {
	return IsEventAd(msd) || IsScanResponse(msd) || IsCodedAd(msd)
}

func (t *Table) nowEpoch() uint32 {
	return uint32(t.now().Unix())
}

// find returns the index of the entry for addr, or -1 if not present.
func (t *Table) find(addr Address) int {
	for i := range t.entries {
		if t.entries[i].InUse && t.entries[i].Addr == addr {
			return i
		}
	}
	return -1
}

func (t *Table) findByAddrString(addrString string) int {
	for i := range t.entries {
		if t.entries[i].InUse && t.entries[i].AddrString == addrString {
			return i
		}
	}
	return -1
}

// allocate returns the index of the first free slot and marks it in use, or
// -1 if the table is full.
func (t *Table) allocate(addr Address) int {
	for i := range t.entries {
		if !t.entries[i].InUse {
			t.entries[i].clear(t.logCapacity)
			t.entries[i].InUse = true
			t.entries[i].Addr = addr
			t.entries[i].AddrString = addr.String()
			t.entries[i].TTLSeconds = 0
			t.reportOccupancy()
			return i
		}
	}
	return -1
}

// findOrAllocate locates addr's entry, allocating a new one if absent and
// room exists.
func (t *Table) findOrAllocate(addr Address) int {
	if i := t.find(addr); i >= 0 {
		return i
	}
	return t.allocate(addr)
}

func (t *Table) free(i int) {
	t.entries[i].clear(t.logCapacity)
	t.reportOccupancy()
}

func (t *Table) reportOccupancy() {
	if t.metrics == nil {
		return
	}
	n := 0
	for i := range t.entries {
		if t.entries[i].InUse {
			n++
		}
	}
	t.metrics.SetTableOccupancy(n)
	t.metrics.SetGreenlistOccupancy(t.greenlistUsed)
}

// InUseCount reports the number of occupied entries.
func (t *Table) InUseCount() int {
	n := 0
	for i := range t.entries {
		if t.entries[i].InUse {
			n++
		}
	}
	return n
}

// GreenlistCount reports the number of greenlisted entries.
func (t *Table) GreenlistCount() int {
	return t.greenlistUsed
}

func (t *Table) topic(addrString, suffix string) string {
	return fmt.Sprintf("%s/%s/%s", t.topicPrefix, addrString, suffix)
}

func (t *Table) gatewayTopic(suffix string) string {
	return fmt.Sprintf("%s/deviceId-%s/%s", t.topicPrefix, t.gatewayID, suffix)
}

// RequestGatewayShadowRegeneration marks the gateway collection shadow dirty
// so the next tick republishes it — used by the Gateway FSM's decommission
// branch per SPEC_FULL.md §5.1.
func (t *Table) RequestGatewayShadowRegeneration() {
	t.gatewayDirty = true
}

// MarkGatewayShadowDirty is an alias kept for callers using the original
// source's naming.
func (t *Table) MarkGatewayShadowDirty() {
	t.gatewayDirty = true
}

// PublishGatewayShadowIfDirty emits the gateway collection shadow if it was
// marked dirty since the last call, and clears the flag.
func (t *Table) PublishGatewayShadowIfDirty(ackDesired bool) {
	if !t.gatewayDirty {
		return
	}
	t.gatewayDirty = false
	t.publishGatewayShadow(ackDesired)
}

// DispatchResult re-exports bus.DispatchResult so callers of this package
// don't need to import internal/bus just to check a table operation's
// outcome.
type DispatchResult = bus.DispatchResult

const (
	DispatchOK        = bus.DispatchOK
	DispatchError     = bus.DispatchError
	DispatchDoNotFree = bus.DispatchDoNotFree
)
