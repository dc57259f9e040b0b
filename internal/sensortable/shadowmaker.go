package sensortable

import (
	"github.com/snarg/ble-sensor-gateway/internal/shadow"
)

// publishEntryShadow builds and publishes the per-sensor shadow update for
// entries[idx], per spec.md §4.4's "Shadow maker".
func (t *Table) publishEntryShadow(idx int) {
	e := &t.entries[idx]

	size := shadowBaseSize + e.Log.Size()*shadowPerLogEntry
	b := shadow.NewBuilder(size)
	b.Start()
	b.StartGroup("state")
	b.StartGroup("reported")

	b.AddString("bluetoothAddress", e.AddrString)
	b.AddInt("rssi", int64(e.RSSI))
	b.AddUint("networkId", uint64(e.Ad.NetworkID))
	b.AddHex16("flags", e.Ad.Flags)
	b.AddUint("resetCount", uint64(e.Ad.ResetCount))

	rt := shadow.RecordType(e.Ad.RecordType)

	if rt.IsTemperature() {
		b.AddInt("tempCc", int64(int16(e.Ad.Data)))
	}

	switch rt {
	case shadow.RecordBatteryGood, shadow.RecordBatteryBad:
		b.AddUint("battery", uint64(e.Ad.Data))
	case shadow.RecordReset:
		b.AddString("resetReason", shadow.ResetReason(e.Ad.Data).String())
	}

	if name, ok := rt.Ig60GeneratedName(); ok {
		b.AddBool(name, true)
	}

	flags := Flags(e.Ad.Flags)
	if e.Ad.Flags != e.LastFlags {
		b.AddBool("rtcSet", flags.TimeSet())
		b.AddBool("activeMode", flags.ActiveMode())
		b.AddBool("anyAlarm", flags.AnyAlarm())
		b.AddBool("lowBatteryAlarm", flags.LowBattery())
		b.AddUint("highTemperatureAlarm", uint64(flags.HighTemperatureAlarm()))
		b.AddUint("lowTemperatureAlarm", uint64(flags.LowTemperatureAlarm()))
		b.AddBool("deltaTemperatureAlarm", flags.DeltaTemperatureAlarm())
		b.AddBool("rateOfChangeTemperatureAlarm", flags.RateOfChangeTemperatureAlarm())
		b.AddBool("movementAlarm", flags.MovementAlarm())
		b.AddBool("magnetState", flags.MagnetState())
		e.LastFlags = e.Ad.Flags
	}

	if e.UpdatedRsp {
		b.AddUint("productId", uint64(e.Rsp.ProductID))
		b.AddVersion("firmwareVersion", e.Rsp.FWMajor, e.Rsp.FWMinor, e.Rsp.FWPatch)
		b.AddVersion("bootloaderVersion", e.Rsp.BLMajor, e.Rsp.BLMinor, e.Rsp.BLPatch)
		b.AddHex8("configVersion", e.Rsp.ConfigVersion)
		b.AddVersion("hardwareVersion", e.Rsp.HWMajor, e.Rsp.HWMinor, 0)
		e.UpdatedRsp = false
	}
	if e.UpdatedName {
		b.AddString("sensorName", e.Name)
		e.UpdatedName = false
	}

	e.Log.GenerateJSON(b)

	b.AddString("gatewayId", t.gatewayID)
	b.AddUint("eventLogSize", uint64(e.Log.Size()))

	b.EndGroup() // reported
	b.EndGroup() // state
	b.Finalize()

	if t.metrics != nil {
		t.metrics.IncShadowPublishes()
	}
	if t.publish != nil {
		t.publish(t.topic(e.AddrString, "update"), b.Bytes())
	}
}

// PublishDumpResponse publishes a sensor's dump-command ACK verbatim as its
// shadow's reported state, per sensor_table.c's
// SensorTable_CreateShadowFromDumpResponse: desired is cleared because the
// cloud already has the full picture, and the raw response string (the
// cloud side ignores its jsonrpc/id/status envelope fields) becomes
// reported as-is.
func (t *Table) PublishDumpResponse(addrString string, response []byte) {
	size := shadowBaseSize + len(response)
	b := shadow.NewBuilder(size)
	b.Start()
	b.StartGroup("state")
	b.AddNull("desired")
	b.AddString("reported", string(response))
	b.EndGroup()
	b.Finalize()

	if t.metrics != nil {
		t.metrics.IncShadowPublishes()
	}
	if t.publish != nil {
		t.publish(t.topic(addrString, "update"), b.Bytes())
	}
}

// publishGatewayShadow emits the full state.reported.bt510.sensors array —
// one triple per in-use entry — per spec.md §4.4's "Gateway shadow maker".
// When ackDesired is true (a greenlist update triggered this build),
// state.desired is set to null to acknowledge the cloud's delta.
func (t *Table) publishGatewayShadow(ackDesired bool) {
	size := shadowBaseSize + len(t.entries)*48
	b := shadow.NewBuilder(size)
	b.Start()
	b.StartGroup("state")
	if ackDesired {
		b.AddNull("desired")
	}
	b.StartGroup("reported")
	b.StartGroup("bt510")
	b.StartArray("sensors")
	for i := range t.entries {
		if !t.entries[i].InUse {
			continue
		}
		e := &t.entries[i]
		b.AddSensorTableEntry(e.AddrString, e.RxEpoch, e.Greenlisted)
	}
	b.EndArray()
	b.EndGroup() // bt510
	b.EndGroup() // reported
	b.EndGroup() // state
	b.Finalize()

	if t.publish != nil {
		t.publish(t.gatewayTopic("update"), b.Bytes())
	}
}
