// Package shadow implements the bidirectional JSON mapping between device
// shadow documents and in-memory sensor state. Builder is the write side: a
// streaming JSON writer over a preallocated byte buffer, grounded on the
// firmware's shadow_builder.c. Parser is the read side (parser.go).
package shadow

import (
	"fmt"
	"strconv"
)

// Builder writes JSON incrementally into a fixed-size buffer. It never
// writes past size-1 bytes, leaving room for a trailing NUL the way the
// firmware's JsonMsg_t does; in Go that's just "never grow past cap".
// Every element is followed by a trailing comma; Finalize/EndGroup/EndArray
// overwrite that last comma with the appropriate closing character.
type Builder struct {
	buf   []byte
	limit int
}

// NewBuilder allocates a builder with the given maximum output size. Writes
// beyond that size are silently dropped rather than growing the buffer,
// mirroring JsonAppendString's "stop within 2 bytes of size" discipline —
// callers size buffers generously up front (as the firmware's call sites
// do) and truncation is a backstop, not a normal code path.
func NewBuilder(size int) *Builder {
	return &Builder{buf: make([]byte, 0, size), limit: size}
}

// Start clears the buffer and opens the outer object.
func (b *Builder) Start() {
	b.buf = b.buf[:0]
	b.write('{')
}

// Finalize asserts the last byte is ',' and replaces it with the closing '}'.
// It panics if the buffer doesn't end in a comma — a caller-side bug,
// exactly as the firmware's ShadowBuilder_Finalize asserts.
func (b *Builder) Finalize() {
	b.closeWith('}')
}

// EndGroup closes a nested object opened with StartGroup.
func (b *Builder) EndGroup() {
	b.closeWith('}')
}

// EndArray closes an array opened with StartArray.
func (b *Builder) EndArray() {
	b.closeWith(']')
}

func (b *Builder) closeWith(c byte) {
	if len(b.buf) == 0 || b.buf[len(b.buf)-1] != ',' {
		panic("shadow: builder container closed without a preceding element")
	}
	b.buf[len(b.buf)-1] = c
	b.write(',')
}

// Bytes returns the built buffer. Valid only after Finalize/EndGroup/EndArray
// has closed every opened container; the final comma left by the last close
// call is trimmed.
func (b *Builder) Bytes() []byte {
	if n := len(b.buf); n > 0 && b.buf[n-1] == ',' {
		return b.buf[:n-1]
	}
	return b.buf
}

// write appends bytes, truncating at the buffer's limit rather than growing
// past it. One byte of headroom is always kept so a later Finalize/EndGroup/
// EndArray can overwrite the trailing comma with a closing character.
func (b *Builder) write(s ...byte) {
	b.appendBounded(s)
}

func (b *Builder) writeString(s string) {
	b.appendBounded([]byte(s))
}

func (b *Builder) appendBounded(p []byte) {
	room := b.limit - 1 - len(b.buf)
	if room <= 0 {
		return
	}
	if room < len(p) {
		p = p[:room]
	}
	b.buf = append(b.buf, p...)
}

func (b *Builder) key(k string) {
	b.write('"')
	b.writeString(k)
	b.write('"', ':')
}

// StartGroup opens a nested object under key.
func (b *Builder) StartGroup(key string) {
	b.key(key)
	b.write('{')
}

// StartArray opens an array under key.
func (b *Builder) StartArray(key string) {
	b.key(key)
	b.write('[')
}

// AddUint adds "key":value for an unsigned integer.
func (b *Builder) AddUint(key string, v uint64) {
	b.key(key)
	b.writeString(strconv.FormatUint(v, 10))
	b.write(',')
}

// AddInt adds "key":value for a signed integer; sign then magnitude, exactly
// as ShadowBuilder_AddSigned32 formats it.
func (b *Builder) AddInt(key string, v int64) {
	b.key(key)
	b.writeString(strconv.FormatInt(v, 10))
	b.write(',')
}

// AddBool adds "key":true or "key":false.
func (b *Builder) AddBool(key string, v bool) {
	b.key(key)
	if v {
		b.writeString("true")
	} else {
		b.writeString("false")
	}
	b.write(',')
}

// AddNull adds "key":null.
func (b *Builder) AddNull(key string) {
	b.key(key)
	b.writeString("null")
	b.write(',')
}

// AddString adds "key":"escaped value".
func (b *Builder) AddString(key, value string) {
	b.key(key)
	b.write('"')
	b.writeEscaped(value)
	b.write('"', ',')
}

// AddRaw adds "key":value, where value is a verbatim JSON fragment (no
// escaping) — for keys and nested JSON written by a caller that already
// knows the payload is valid JSON.
func (b *Builder) AddRaw(key, rawJSON string) {
	b.key(key)
	b.writeString(rawJSON)
	b.write(',')
}

// AddVersion adds "key":"major.minor.patch".
func (b *Builder) AddVersion(key string, major, minor, patch uint8) {
	b.key(key)
	b.write('"')
	b.writeString(fmt.Sprintf("%d.%d.%d", major, minor, patch))
	b.write('"', ',')
}

// AddHex8 adds "key":"xx" (2 lowercase hex digits).
func (b *Builder) AddHex8(key string, v uint8) {
	b.AddString(key, fmt.Sprintf("%02x", v))
}

// AddHex16 adds "key":"xxxx" (4 lowercase hex digits).
func (b *Builder) AddHex16(key string, v uint16) {
	b.AddString(key, fmt.Sprintf("%04x", v))
}

// AddSensorTableEntry adds ["addr",epoch,true/false], to a currently open
// array — the gateway shadow's per-sensor triple.
func (b *Builder) AddSensorTableEntry(addr string, epoch uint32, greenlisted bool) {
	b.write('[', '"')
	b.writeString(addr)
	b.write('"', ',')
	b.writeString(strconv.FormatUint(uint64(epoch), 10))
	b.write(',')
	if greenlisted {
		b.writeString("true")
	} else {
		b.writeString("false")
	}
	b.write(']', ',')
}

// AddEventLogEntry adds a 3-element ring log tuple:
// ["<hex8 recordType>", <decimal epoch>, "<hex16 data>"],
func (b *Builder) AddEventLogEntry(recordType uint8, epoch uint32, data uint16) {
	b.write('[', '"')
	b.writeString(fmt.Sprintf("%02x", recordType))
	b.write('"', ',')
	b.writeString(strconv.FormatUint(uint64(epoch), 10))
	b.write(',', '"')
	b.writeString(fmt.Sprintf("%04x", data))
	b.write('"', ']', ',')
}

// writeEscaped appends s to the buffer, escaping the characters JSON
// requires inside a string: " \ and the control codes \b \f \n \r \t.
func (b *Builder) writeEscaped(s string) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			b.write('\\', '"')
		case '\\':
			b.write('\\', '\\')
		case '\b':
			b.write('\\', 'b')
		case '\f':
			b.write('\\', 'f')
		case '\n':
			b.write('\\', 'n')
		case '\r':
			b.write('\\', 'r')
		case '\t':
			b.write('\\', 't')
		default:
			b.write(c)
		}
	}
}
