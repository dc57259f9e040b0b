package blecentral

import (
	"github.com/rs/zerolog"
	"tinygo.org/x/bluetooth"

	"github.com/snarg/ble-sensor-gateway/internal/bus"
)

// admitter is the subset of sensortask.Task this package drives directly
// from the BLE RX thread — kept narrow so blecentral need not import the
// whole sensortask.Task surface.
type admitter interface {
	Admit() bool
}

// ScanRouter reconstructs a raw advertisement report from a tinygo scan
// result and posts it onto the Sensor Task's queue, subject to the
// backpressure policy in spec.md §4.5. It is the BLE RX thread's only
// touch point with the rest of the system — it never reaches into the
// Sensor Table directly.
type ScanRouter struct {
	task  admitter
	queue *bus.Queue
	log   zerolog.Logger
}

// NewScanRouter constructs a router posting admitted advertisements onto
// queue.
func NewScanRouter(task admitter, queue *bus.Queue, log zerolog.Logger) *ScanRouter {
	return &ScanRouter{task: task, queue: queue, log: log.With().Str("component", "blecentral").Logger()}
}

// Start registers this router as the active one for Adapter.StartScan's
// callback and begins scanning. Only one router may be active on a given
// Adapter at a time, matching the single-scan-session nature of the BLE
// stack.
func (r *ScanRouter) Start(a *Adapter) error {
	currentRouter = r
	return a.StartScan()
}

func (r *ScanRouter) handle(result bluetooth.ScanResult) {
	raw := rebuildAdStructures(result)
	if raw == nil {
		return
	}
	if !r.task.Admit() {
		return
	}

	var addr [6]byte
	mac := result.Address.MACAddress.MAC
	copy(addr[:], mac.Bytes())

	r.queue.Push(&bus.AdvertisementMsg{
		Header:  bus.Header{Code: bus.CodeAdvertisement, RxID: bus.ThreadSensorTask, TxID: bus.ThreadUnspecified},
		Addr:    addr,
		RSSI:    result.RSSI,
		PDUType: uint8(result.AdvertisementPayload.Type()),
		Raw:     raw,
	})
}

// rebuildAdStructures re-serializes the scan result's manufacturer-data
// element(s) into length-prefixed AD structures, the form
// sensortable.ExtractAdStructures expects — tinygo's ScanResult exposes
// manufacturer data pre-parsed (company ID split out), so the original
// wire framing has to be rebuilt rather than read verbatim.
func rebuildAdStructures(result bluetooth.ScanResult) []byte {
	mds := result.ManufacturerData()
	if len(mds) == 0 {
		return nil
	}
	var out []byte
	for _, md := range mds {
		length := 1 + 2 + len(md.Data)
		out = append(out, byte(length), 0xff, byte(md.CompanyID), byte(md.CompanyID>>8))
		out = append(out, md.Data...)
	}
	return out
}
