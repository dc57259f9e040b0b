package sensortable

import (
	"github.com/snarg/ble-sensor-gateway/internal/shadow"
)

// DefaultTTLSeconds is the countdown a newly-discovered, non-greenlisted
// entry is given before TTL eviction. It is a fixed value; the attribute
// store does not override it.
const DefaultTTLSeconds = 1800

// ConnectRequest is handed back to the Sensor Task when a table entry has a
// command ready to dispatch over BLE and no connection attempt is already
// in flight for it.
type ConnectRequest struct {
	TableIndex    int
	Addr          Address
	AddrString    string
	Name          string
	Cmd           string
	ConfigVersion uint32
	Attempts        int
	Coded           bool
	DumpRequest     bool
	ResetRequest    bool
	SetEpochRequest bool
}

// Advertisement is the sole ingress for scan data (C4's advertisement()).
// raw is the full AD-structure payload for one scan event; pduType is the
// BLE advertising PDU type reported by the stack (carried through for
// logging/coded-PHY bookkeeping — the MSD header is what actually
// determines format). Returns the dispatch outcome and, when the entry has
// a command ready to send, a ConnectRequest for the Sensor Task to act on.
func (t *Table) Advertisement(addr Address, rssi int8, pduType uint8, raw []byte) (DispatchResult, *ConnectRequest) {
	msd, name := ExtractAdStructures(raw)
	if msd == nil || !t.MatchSensorFormat(msd) {
		return DispatchError, nil
	}
	if t.metrics != nil {
		t.metrics.IncAdvertisements()
	}

	var idx int
	var coded bool
	switch {
	case IsScanResponse(msd):
		idx = t.handleScanResponse(addr, rssi, name, parseRspPayload(msd))
	case IsEventAd(msd):
		idx = t.handleEventAd(addr, rssi, parseEventPayload(msd))
	case IsCodedAd(msd):
		coded = true
		ad, rsp := parseCodedPayload(msd)
		t.handleScanResponse(addr, rssi, name, rsp)
		idx = t.handleEventAd(addr, rssi, ad)
	}

	if idx < 0 {
		if t.metrics != nil {
			t.metrics.IncDroppedAdvertisements()
		}
		return DispatchError, nil
	}

	return t.maybeDispatchPendingCmd(idx, coded)
}

func (t *Table) handleScanResponse(addr Address, rssi int8, name string, rsp RspPayload) int {
	idx := t.findOrAllocate(addr)
	if idx < 0 {
		return -1
	}
	e := &t.entries[idx]
	if name != "" && e.Name != name {
		e.Name = name
		e.UpdatedName = true
	}
	if e.ValidRsp && e.Rsp != rsp {
		e.UpdatedRsp = true
	}
	e.Rsp = rsp
	e.ValidRsp = true
	e.RSSI = rssi
	if e.TTLSeconds == 0 {
		e.TTLSeconds = DefaultTTLSeconds
	}
	return idx
}

// handleEventAd is the event handler: refreshes TTL for greenlisted entries,
// then — for genuinely new events only — updates the stored payload and
// triggers a shadow publish.
func (t *Table) handleEventAd(addr Address, rssi int8, ad AdPayload) int {
	idx := t.findOrAllocate(addr)
	if idx < 0 {
		return -1
	}
	e := &t.entries[idx]
	e.RSSI = rssi
	if e.TTLSeconds == 0 {
		e.TTLSeconds = DefaultTTLSeconds
	}
	if e.Greenlisted {
		e.TTLSeconds = DefaultTTLSeconds
	}

	isNew := !e.ValidAd || ad.ID != e.Ad.ID
	if !isNew {
		return idx
	}

	e.ValidAd = true
	e.LastRecordType = e.Ad.RecordType
	e.Ad = ad
	e.AdCount++
	e.RxEpoch = t.nowEpoch()
	e.Log.Add(eventFromAd(ad))

	if shadow.RecordType(ad.RecordType) == shadow.RecordReset && shadow.ResetReason(ad.Data).IsFactoryReset() {
		t.free(idx)
		return -1
	}

	t.publishEntryShadow(idx)
	t.gatewayDirty = true
	return idx
}

// maybeDispatchPendingCmd converts a waiting pending_cmd into a
// ConnectRequest, per spec.md §4.4 step 5.
func (t *Table) maybeDispatchPendingCmd(idx int, coded bool) (DispatchResult, *ConnectRequest) {
	e := &t.entries[idx]
	if e.PendingCmd == nil || e.ConfigBusy {
		return DispatchOK, nil
	}
	e.ConfigBusy = true
	e.ConfigBusyVersion = e.PendingCmd.ConfigVersion
	return DispatchOK, &ConnectRequest{
		TableIndex:    idx,
		Addr:          e.Addr,
		AddrString:    e.AddrString,
		Name:          e.Name,
		Cmd:           e.PendingCmd.Cmd,
		ConfigVersion: e.PendingCmd.ConfigVersion,
		Attempts:      e.PendingCmd.Attempts,
		Coded:           coded,
		DumpRequest:     e.PendingCmd.DumpRequest,
		ResetRequest:    e.PendingCmd.ResetRequest,
		SetEpochRequest: e.PendingCmd.SetEpochRequest,
	}
}
