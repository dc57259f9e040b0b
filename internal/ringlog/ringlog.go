// Package ringlog implements a fixed-capacity circular event history owned
// by a single sensor table entry. It is the Go counterpart of the firmware's
// sensor_log.c: a wraparound buffer of LogEvent structures with lazy,
// oldest-first JSON emission.
package ringlog

import "github.com/snarg/ble-sensor-gateway/internal/shadow"

// Event is one recorded sensor event. IDLsb disambiguates the source event
// for tests; it is never emitted to the shadow.
type Event struct {
	Epoch      uint32
	Data       uint16
	RecordType uint8
	IDLsb      uint8
}

// Log is a fixed-size ring buffer of Event, append-only with wraparound.
type Log struct {
	data       []Event
	writeIndex int
	wrapped    bool
}

// New allocates a ring log with the given capacity. Capacity must be > 0.
func New(capacity int) *Log {
	return &Log{data: make([]Event, capacity)}
}

// Size returns the ring's capacity.
func (l *Log) Size() int {
	return len(l.data)
}

// Free returns the number of unused slots (0 once the ring has wrapped).
func (l *Log) Free() int {
	if l.wrapped {
		return 0
	}
	return len(l.data) - l.writeIndex
}

// Add writes e at the current write index and advances it, modulo size.
func (l *Log) Add(e Event) {
	l.data[l.writeIndex] = e
	if l.writeIndex == len(l.data)-1 {
		l.wrapped = true
	}
	l.writeIndex = (l.writeIndex + 1) % len(l.data)
}

// entries returns the number of valid entries currently stored.
func (l *Log) entries() int {
	if l.wrapped {
		return len(l.data)
	}
	return l.writeIndex
}

// GenerateJSON emits the ring as a JSON array named "eventLog", oldest first.
// It writes nothing if the log is empty.
func (l *Log) GenerateJSON(b *shadow.Builder) {
	count := l.entries()
	if count == 0 {
		return
	}

	b.StartArray("eventLog")
	readIndex := 0
	if l.wrapped {
		readIndex = l.writeIndex
	}
	for i := 0; i < count; i++ {
		b.AddEventLogEntry(l.data[readIndex].RecordType, l.data[readIndex].Epoch, l.data[readIndex].Data)
		readIndex = (readIndex + 1) % len(l.data)
	}
	b.EndArray()
}
