package sensortable

import (
	"time"

	"github.com/snarg/ble-sensor-gateway/internal/bus"
	"github.com/snarg/ble-sensor-gateway/internal/ringlog"
	"github.com/snarg/ble-sensor-gateway/internal/shadow"
)

// SubscriptionDelay is how long the table waits after a greenlist change
// before issuing the corresponding subscribe/unsubscribe request, giving
// the cloud's retained shadow time to settle before the sensor starts
// streaming deltas.
const SubscriptionDelay = 2 * time.Second

// TTLTick advances every entry's TTL countdown by elapsed and evicts
// non-greenlisted entries whose TTL has reached zero. Returns the number of
// entries evicted.
func (t *Table) TTLTick(elapsed time.Duration) int {
	deltaSeconds := uint32(elapsed / time.Second)
	if deltaSeconds == 0 {
		return 0
	}
	evicted := 0
	for i := range t.entries {
		e := &t.entries[i]
		if !e.InUse {
			continue
		}
		if e.TTLSeconds > deltaSeconds {
			e.TTLSeconds -= deltaSeconds
		} else {
			e.TTLSeconds = 0
		}
		if e.TTLSeconds == 0 && !e.Greenlisted {
			t.free(i)
			evicted++
		}
	}
	return evicted
}

// ApplyGreenlist reconciles the table's greenlist membership against
// entries, per the cloud's desired sensor list (parsed by
// shadow.Parser.ParseGateway). Unknown addresses that are greenlisted but
// have never been seen on air are allocated a placeholder entry so a
// subscription can be scheduled the moment an advertisement arrives.
func (t *Table) ApplyGreenlist(entries []shadow.GreenlistEntry) {
	wanted := make(map[string]bool, len(entries))
	for _, ge := range entries {
		wanted[ge.Addr] = ge.Greenlisted
	}

	for i := range t.entries {
		e := &t.entries[i]
		if !e.InUse {
			continue
		}
		desired, ok := wanted[e.AddrString]
		if !ok {
			desired = false
		}
		if desired != e.Greenlisted {
			e.Greenlisted = desired
			if desired {
				t.greenlistUsed++
			} else {
				t.greenlistUsed--
			}
			e.SubscriptionDispatchAt = t.now().Add(SubscriptionDelay).UnixMilli()
		}
	}

	for addr, greenlisted := range wanted {
		if !greenlisted || t.findByAddrString(addr) >= 0 {
			continue
		}
		if t.greenlistUsed >= t.greenlistSize {
			t.log.Warn().Str("addr", addr).Msg("greenlist full, dropping unseen sensor")
			continue
		}
		a, err := ParseAddress(addr)
		if err != nil {
			t.log.Warn().Err(err).Str("addr", addr).Msg("invalid greenlist address")
			continue
		}
		idx := t.allocate(a)
		if idx < 0 {
			t.log.Warn().Str("addr", addr).Msg("table full, dropping unseen greenlisted sensor")
			continue
		}
		t.entries[idx].Greenlisted = true
		t.entries[idx].SubscriptionDispatchAt = t.now().Add(SubscriptionDelay).UnixMilli()
		t.greenlistUsed++
	}

	t.gatewayDirty = true
	t.reportOccupancy()
}

// SubscriptionTick returns subscribe/unsubscribe requests for every entry
// whose greenlist state disagrees with its subscription state and whose
// dispatch delay has elapsed, per spec.md §4.4's subscription handler. It
// optimistically marks the entry subscribed/unsubscribed pending ack.
func (t *Table) SubscriptionTick(now time.Time) []*bus.SubscribeMsg {
	var out []*bus.SubscribeMsg
	nowMs := now.UnixMilli()
	for i := range t.entries {
		e := &t.entries[i]
		if !e.InUse || !e.ValidAd || !e.ValidRsp {
			continue
		}
		if e.Greenlisted == e.Subscribed {
			continue
		}
		if nowMs < e.SubscriptionDispatchAt {
			continue
		}
		out = append(out, &bus.SubscribeMsg{
			Header:     bus.Header{Code: bus.CodeSubscribe, TxID: bus.ThreadCloud, RxID: bus.ThreadCloud},
			TableIndex: i,
			Topic:      t.topic(e.AddrString, "update/delta"),
			Subscribe:  e.Greenlisted,
		})
		e.Subscribed = e.Greenlisted
	}
	return out
}

// ShadowInitTick drives the shadow-init handshake for one candidate entry
// at a time (the "only one publish in flight" memory-pressure rule from
// spec.md §4.4): first it subscribes the entry to its get/accepted topic,
// then — once that ack lands — it publishes an empty "get" that causes the
// broker to reply with the sensor's retained event log.
func (t *Table) ShadowInitTick() (*bus.SubscribeMsg, *bus.PublishMsg) {
	idx := -1
	if t.shadowInitInFlight != "" {
		idx = t.findByAddrString(t.shadowInitInFlight)
		if idx < 0 {
			// The in-flight entry was evicted mid-handshake; free the slot.
			t.shadowInitInFlight = ""
		}
	}
	if idx < 0 {
		for i := range t.entries {
			e := &t.entries[i]
			if e.InUse && e.Subscribed && !e.ShadowInitReceived {
				idx = i
				t.shadowInitInFlight = e.AddrString
				t.shadowInitGetSent = false
				break
			}
		}
	}
	if idx < 0 {
		return nil, nil
	}

	e := &t.entries[idx]
	if !e.GetAcceptedSubscribed {
		e.GetAcceptedSubscribed = true
		return &bus.SubscribeMsg{
			Header:     bus.Header{Code: bus.CodeSubscribe, TxID: bus.ThreadCloud, RxID: bus.ThreadCloud},
			TableIndex: idx,
			Topic:      t.topic(e.AddrString, "get/accepted"),
			Subscribe:  true,
		}, nil
	}
	if t.shadowInitGetSent {
		return nil, nil
	}
	t.shadowInitGetSent = true
	return nil, &bus.PublishMsg{
		Header: bus.Header{Code: bus.CodeGatewayOut, TxID: bus.ThreadCloud, RxID: bus.ThreadCloud},
		Topic:  t.topic(e.AddrString, "get"),
	}
}

// ShadowInitReceived records a get/accepted event log reply for addrString,
// repopulating its ring log and clearing the in-flight marker so
// ShadowInitTick can move on to the next candidate.
func (t *Table) ShadowInitReceived(addrString string, events []shadow.EventLogEntry) {
	if t.shadowInitInFlight == addrString {
		t.shadowInitInFlight = ""
		t.shadowInitGetSent = false
	}
	idx := t.findByAddrString(addrString)
	if idx < 0 {
		return
	}
	e := &t.entries[idx]
	e.ShadowInitReceived = true
	e.Log = ringlog.New(t.logCapacity)
	for _, ev := range events {
		e.Log.Add(ringlog.Event{RecordType: ev.RecordType, Epoch: ev.Epoch, Data: ev.Data})
	}
}

// QueryTick assigns the next periodic query to any greenlisted,
// fully-discovered entry with no command already in flight — the Go
// counterpart of SensorTable_ConfigRequestHandler. A sensor still at its
// out-of-box configVersion 0 gets the config-version-1 set command (with
// setEpoch to follow on ack) to match the IG60's first-contact behavior;
// otherwise, until its first dump completes, it gets the default periodic
// query (normally a dump request).
func (t *Table) QueryTick() {
	for i := range t.entries {
		e := &t.entries[i]
		if !e.InUse || !e.Greenlisted || !e.ValidAd || !e.ValidRsp {
			continue
		}
		if e.PendingCmd != nil || e.ConfigBusy {
			continue
		}
		if e.Rsp.ConfigVersion == 0 {
			cmd := Command{
				Cmd:             shadow.OutOfBoxConfigCommand,
				ConfigVersion:   1,
				SetEpochRequest: true,
			}
			e.PendingCmd = &cmd
			continue
		}
		if e.FirstDumpComplete {
			continue
		}
		cmd := t.defaultCmd
		e.PendingCmd = &cmd
	}
}

// Decommission clears the greenlist and shadow-init state of every entry
// and marks the gateway shadow dirty so it republishes the sensor list with
// every entry un-greenlisted (entries stay in the table), per spec.md §4.7's decommission branch and SPEC_FULL.md §5.1's
// "RequestGatewayShadowRegeneration" note.
func (t *Table) Decommission() {
	for i := range t.entries {
		e := &t.entries[i]
		if !e.InUse {
			continue
		}
		e.Greenlisted = false
		e.Subscribed = false
		e.GetAcceptedSubscribed = false
		e.ShadowInitReceived = false
		e.PendingCmd = nil
		e.QueuedCmd = nil
		e.ConfigBusy = false
	}
	t.greenlistUsed = 0
	t.shadowInitInFlight = ""
	t.shadowInitGetSent = false
	t.RequestGatewayShadowRegeneration()
	t.reportOccupancy()
}
