package ringlog

import (
	"encoding/json"
	"testing"

	"github.com/snarg/ble-sensor-gateway/internal/shadow"
)

func generate(t *testing.T, l *Log) map[string][][3]json.RawMessage {
	t.Helper()
	b := shadow.NewBuilder(1024)
	b.Start()
	l.GenerateJSON(b)
	b.Finalize()

	var decoded map[string][][3]json.RawMessage
	if err := json.Unmarshal(b.Bytes(), &decoded); err != nil {
		t.Fatalf("unmarshal %s: %v", b.Bytes(), err)
	}
	return decoded
}

func epochOf(t *testing.T, tuple [3]json.RawMessage) int {
	t.Helper()
	var epoch int
	if err := json.Unmarshal(tuple[1], &epoch); err != nil {
		t.Fatalf("epoch: %v", err)
	}
	return epoch
}

func TestLog_addAndWrap(t *testing.T) {
	t.Run("emits_at_most_capacity_items", func(t *testing.T) {
		l := New(4)
		for i := 0; i < 4; i++ {
			l.Add(Event{Epoch: uint32(i), RecordType: 1})
		}
		if l.Free() != 0 {
			t.Errorf("Free() = %d, want 0", l.Free())
		}

		entries := generate(t, l)["eventLog"]
		if len(entries) != 4 {
			t.Fatalf("entries = %d, want 4", len(entries))
		}
	})

	t.Run("after_capacity_plus_k_adds_oldest_k_through_2k_minus_1_survive", func(t *testing.T) {
		const capacity = 5
		const k = 3
		l := New(capacity)
		for i := 0; i < capacity+k; i++ {
			l.Add(Event{Epoch: uint32(i), RecordType: 1})
		}

		entries := generate(t, l)["eventLog"]
		if len(entries) != capacity {
			t.Fatalf("entries = %d, want %d", len(entries), capacity)
		}
		for i, tuple := range entries {
			want := k + i
			if got := epochOf(t, tuple); got != want {
				t.Errorf("entry[%d].epoch = %d, want %d", i, got, want)
			}
		}
	})

	t.Run("empty_log_emits_nothing", func(t *testing.T) {
		l := New(3)
		b := shadow.NewBuilder(512)
		b.Start()
		l.GenerateJSON(b)
		if s := string(b.Bytes()); s != "{" {
			t.Errorf("Bytes() = %q, want {", s)
		}
	})
}

func TestLog_freeAndSize(t *testing.T) {
	l := New(4)
	if l.Size() != 4 {
		t.Errorf("Size() = %d, want 4", l.Size())
	}
	if l.Free() != 4 {
		t.Errorf("Free() = %d, want 4", l.Free())
	}
	l.Add(Event{Epoch: 1})
	if l.Free() != 3 {
		t.Errorf("Free() = %d, want 3", l.Free())
	}
}
