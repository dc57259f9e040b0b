package shadow

// EventLogEntry is one reconstructed ring-log entry, as emitted and parsed
// back from a sensor's `get/accepted` shadow document.
type EventLogEntry struct {
	RecordType uint8
	Epoch      uint32
	Data       uint16
}

const eventLogEntryChildren = 3

// ParseEventLog descends `state → reported → eventLog` in a sensor's
// `get/accepted` shadow document and reconstructs up to maxEntries ring-log
// entries, oldest-first as stored in the document. Used on reconnect, after
// a gateway reset, to restore the in-memory ring log from the cloud's copy
// of last-known state. A missing array yields a nil slice, not an error —
// the sensor may simply never have published one yet.
func (p *Parser) ParseEventLog(doc string, maxEntries int) []EventLogEntry {
	p.Reset(doc)

	p.FindType("state", Object, NextParent)
	p.FindType("reported", Object, NextParent)
	arrayIdx := p.FindType("eventLog", Array, NextParent)
	if arrayIdx <= 0 {
		return nil
	}

	limit := maxEntries
	if limit <= 0 {
		limit = p.Size(arrayIdx)
	} else if expected := p.Size(arrayIdx); expected < limit {
		limit = expected
	}

	var out []EventLogEntry
	i := arrayIdx + 1
	for i+eventLogEntryChildren < p.TokensFound() && len(out) < limit {
		if !p.isTriple(i, Array, String, Primitive, String) {
			break
		}
		out = append(out, EventLogEntry{
			RecordType: uint8(p.ConvertHex(i + 1)),
			Epoch:      p.ConvertUint(i + 2),
			Data:       uint16(p.ConvertHex(i + 3)),
		})
		i += eventLogEntryChildren + 1
	}
	return out
}
