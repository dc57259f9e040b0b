package shadow

import "testing"

func TestParser_FindType_nextParentDisambiguates(t *testing.T) {
	// In a full shadow "eventLog" also appears under metadata timestamps
	// (which Reset strips); this document holds only the reported array.
	// NextParent descent through state->reported must land on that array.
	doc := `{"state":{"reported":{"eventLog":[["01",100,"0050"]]}}}`

	p := NewParser(64)
	p.Reset(doc)

	p.FindType("state", Object, NextParent)
	p.FindType("reported", Object, NextParent)
	idx := p.FindType("eventLog", Array, NextParent)
	if idx <= 0 {
		t.Fatalf("FindType(eventLog) = %d, want > 0", idx)
	}
	if p.Size(idx) != 1 {
		t.Errorf("Size(eventLog) = %d, want 1", p.Size(idx))
	}
}

func TestParser_FindType_any(t *testing.T) {
	doc := `{"a":{"b":1},"configVersion":7}`
	p := NewParser(64)
	p.Reset(doc)

	idx := p.FindType("configVersion", Primitive, Any)
	if idx <= 0 {
		t.Fatalf("FindType(configVersion) = %d, want > 0", idx)
	}
	if got := p.ConvertUint(idx); got != 7 {
		t.Errorf("ConvertUint = %d, want 7", got)
	}
}

func TestParser_Reset_stripsMetadata(t *testing.T) {
	doc := `{"state":{"reported":{"x":1}},"metadata":{"state":{"reported":{"x":{"timestamp":1}}}}}`
	p := NewParser(128)
	p.Reset(doc)

	if idx := p.FindType("timestamp", Primitive, Any); idx > 0 {
		t.Errorf("found timestamp in stripped metadata subtree at %d", idx)
	}
	if idx := p.FindType("x", Primitive, Any); idx <= 0 {
		t.Errorf("expected to still find top-level x after metadata strip")
	}
}

func TestParser_ConvertHex(t *testing.T) {
	doc := `{"v":"1a2b"}`
	p := NewParser(16)
	p.Reset(doc)
	idx := p.FindType("v", String, Any)
	if got, want := p.ConvertHex(idx), uint32(0x1a2b); got != want {
		t.Errorf("ConvertHex = %#x, want %#x", got, want)
	}
}

func TestParseGateway(t *testing.T) {
	doc := `{"state":{"reported":{"bt510":{"sensors":[["aabbccddeeff",123,true],["112233445566",0,false]]}}}}`
	p := NewParser(128)

	entries := p.ParseGateway(doc, false, 10)
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Addr != "aabbccddeeff" || !entries[0].Greenlisted {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if entries[1].Addr != "112233445566" || entries[1].Greenlisted {
		t.Errorf("entries[1] = %+v", entries[1])
	}
}

func TestParseGateway_noSensorsArray(t *testing.T) {
	doc := `{"state":{"reported":{"bt510":{}}}}`
	p := NewParser(64)
	if entries := p.ParseGateway(doc, false, 10); entries != nil {
		t.Errorf("entries = %v, want nil", entries)
	}
}

func TestParseGateway_getAcceptedAddsReportedHop(t *testing.T) {
	doc := `{"state":{"bt510":{"sensors":[["aabbccddeeff",1,true]]}}}`
	p := NewParser(64)
	entries := p.ParseGateway(doc, true, 10)
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
}

func TestParseGateway_respectsMaxEntries(t *testing.T) {
	doc := `{"state":{"bt510":{"sensors":[["a",1,true],["b",2,true],["c",3,true]]}}}`
	p := NewParser(64)
	entries := p.ParseGateway(doc, true, 2)
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
}

func TestParseDelta(t *testing.T) {
	doc := `{"state":{"activeMode":1,"sensorName":"foo"},"configVersion":42}`
	p := NewParser(64)

	cmd, version, ok := p.ParseDelta(doc)
	if !ok {
		t.Fatal("ParseDelta ok = false")
	}
	if version != 42 {
		t.Errorf("version = %d, want 42", version)
	}
	want := `{"jsonrpc":"2.0","id":0,"method":"set","params":{"activeMode":1,"sensorName":"foo"}}`
	if cmd != want {
		t.Errorf("cmd = %q, want %q", cmd, want)
	}
}

func TestParseDelta_missingFields(t *testing.T) {
	p := NewParser(32)
	if _, _, ok := p.ParseDelta(`{"foo":1}`); ok {
		t.Error("expected ok = false with no state/configVersion")
	}
}

func TestParseEventLog(t *testing.T) {
	doc := `{"state":{"reported":{"eventLog":[["01",100,"00aa"],["11",200,"00bb"]]}}}`
	p := NewParser(64)

	entries := p.ParseEventLog(doc, 0)
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].RecordType != 0x01 || entries[0].Epoch != 100 || entries[0].Data != 0xaa {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if entries[1].RecordType != 0x11 || entries[1].Epoch != 200 || entries[1].Data != 0xbb {
		t.Errorf("entries[1] = %+v", entries[1])
	}
}

func TestParseEventLog_missing(t *testing.T) {
	p := NewParser(32)
	if entries := p.ParseEventLog(`{"state":{"reported":{}}}`, 0); entries != nil {
		t.Errorf("entries = %v, want nil", entries)
	}
}

func TestParseFota(t *testing.T) {
	doc := `{"state":{"app":{"desired":"2.1.0","filename":"app.bin","switchover":10,"start":1,"errorCount":0}}}`
	p := NewParser(64)

	u := p.ParseFota(doc, "app", false)
	if !u.HasDesiredVersion || u.DesiredVersion != "2.1.0" {
		t.Errorf("DesiredVersion = %+v", u)
	}
	if !u.HasDesiredFilename || u.DesiredFilename != "app.bin" {
		t.Errorf("DesiredFilename = %+v", u)
	}
	if !u.HasSwitchover || u.Switchover != 10 {
		t.Errorf("Switchover = %+v", u)
	}
	if !u.HasStart || u.Start != 1 {
		t.Errorf("Start = %+v", u)
	}
	if !u.HasErrorCount || u.ErrorCount != 0 {
		t.Errorf("ErrorCount = %+v", u)
	}
}

func TestParseFotaHost(t *testing.T) {
	doc := `{"state":{"fwBridge":"fota.example.com"}}`
	p := NewParser(32)
	host, ok := p.ParseFotaHost(doc, false)
	if !ok || host != "fota.example.com" {
		t.Errorf("host = %q, ok = %v", host, ok)
	}
}

func TestParseFotaBlockSize(t *testing.T) {
	doc := `{"state":{"blockSize":512}}`
	p := NewParser(32)
	size, ok := p.ParseFotaBlockSize(doc, false)
	if !ok || size != 512 {
		t.Errorf("size = %d, ok = %v", size, ok)
	}
}
