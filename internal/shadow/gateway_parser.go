package shadow

// GreenlistEntry is one element of the desired sensors array in the
// gateway's own shadow: `["addrString", epoch, greenlisted]`. The epoch
// isn't consumed by anything downstream; it's carried for symmetry with the
// wire format.
type GreenlistEntry struct {
	Addr        string
	Epoch       uint32
	Greenlisted bool
}

const greenlistEntryChildren = 3

// ParseGateway descends `state → [reported →] bt510 → sensors` in doc (an
// update/accepted or get/accepted gateway shadow document) and returns the
// anonymous `[addr,epoch,greenlist]` triples found there. getAccepted must
// be true when doc came from a `get/accepted` topic, adding the extra
// "reported" hop the update/accepted document already has at top level.
// maxEntries bounds how many triples are extracted (mirrors
// CONFIG_SENSOR_TABLE_SIZE capping the firmware's parse loop); a malformed
// or empty array produces a nil slice, not an error, matching the
// firmware's "a missing sensors array is fine" policy.
func (p *Parser) ParseGateway(doc string, getAccepted bool, maxEntries int) []GreenlistEntry {
	p.Reset(doc)

	p.FindType("state", Object, NextParent)
	if getAccepted {
		p.FindType("reported", Object, NextParent)
	}
	p.FindType("bt510", Object, NextParent)
	arrayIdx := p.FindType("sensors", Array, NextParent)
	if arrayIdx <= 0 {
		return nil
	}

	expected := p.Size(arrayIdx)
	limit := expected
	if maxEntries > 0 && maxEntries < limit {
		limit = maxEntries
	}

	var out []GreenlistEntry
	i := arrayIdx + 1
	for i+greenlistEntryChildren < p.TokensFound() && len(out) < limit {
		if !p.isTriple(i, Array, String, Primitive, Primitive) {
			break
		}
		addr := p.String(i + 1)
		epoch := p.ConvertUint(i + 2)
		greenlisted := len(p.String(i+3)) > 0 && p.String(i+3)[0] == 't'
		out = append(out, GreenlistEntry{Addr: addr, Epoch: epoch, Greenlisted: greenlisted})
		i += greenlistEntryChildren + 1
	}
	return out
}

// isTriple checks that tokens i..i+3 are a 3-element array whose contained
// elements match the given leaf types, exactly the shape-validation the
// firmware's parse loops perform before trusting the indices.
func (p *Parser) isTriple(i int, container, first, second, third TokenType) bool {
	return p.Type(i) == container && p.Size(i) == greenlistEntryChildren &&
		p.Type(i+1) == first && p.Size(i+1) == 0 &&
		p.Type(i+2) == second && p.Size(i+2) == 0 &&
		p.Type(i+3) == third && p.Size(i+3) == 0
}
