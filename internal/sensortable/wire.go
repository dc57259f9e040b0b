package sensortable

import "encoding/binary"

// Manufacturer-specific-data header identifiers (little-endian on air),
// grounded on spec.md's external-interfaces table.
const (
	eventCompanyID  uint16 = 0x0077
	eventProtocolID uint16 = 0x0001
	rspCompanyID    uint16 = 0x00e4
	rspProtocolID   uint16 = 0x0003
	codedCompanyID  uint16 = 0x0077
	codedProtocolID uint16 = 0x0002

	// Declared manufacturer-specific-data block lengths for each format.
	EventAdLength = 0x1b
	ScanRspLength = 0x10
	CodedAdLength = 0x26

	msdHeaderLength = 4
)

// matchHeader reports whether buf starts with the 4-byte
// {company_lo,company_hi,protocol_lo,protocol_hi} prefix for company/protocol.
func matchHeader(buf []byte, company, protocol uint16) bool {
	if len(buf) < msdHeaderLength {
		return false
	}
	return binary.LittleEndian.Uint16(buf[0:2]) == company &&
		binary.LittleEndian.Uint16(buf[2:4]) == protocol
}

// IsEventAd reports whether buf is a 1M-PHY event advertisement block.
func IsEventAd(buf []byte) bool {
	return len(buf) == EventAdLength && matchHeader(buf, eventCompanyID, eventProtocolID)
}

// IsScanResponse reports whether buf is a 1M-PHY scan response block.
func IsScanResponse(buf []byte) bool {
	return len(buf) == ScanRspLength && matchHeader(buf, rspCompanyID, rspProtocolID)
}

// IsCodedAd reports whether buf is a Coded-PHY combined event+response block.
func IsCodedAd(buf []byte) bool {
	return len(buf) == CodedAdLength && matchHeader(buf, codedCompanyID, codedProtocolID)
}

// cursor is a tiny sequential little-endian byte reader used to decode the
// packed wire structs without depending on an exact, padding-accurate
// struct size — only the fields actually consumed need to fit in buf.
type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) u8() uint8 {
	if c.pos >= len(c.buf) {
		return 0
	}
	v := c.buf[c.pos]
	c.pos++
	return v
}

func (c *cursor) u16() uint16 {
	if c.pos+2 > len(c.buf) {
		c.pos = len(c.buf)
		return 0
	}
	v := binary.LittleEndian.Uint16(c.buf[c.pos : c.pos+2])
	c.pos += 2
	return v
}

func (c *cursor) u32() uint32 {
	if c.pos+4 > len(c.buf) {
		c.pos = len(c.buf)
		return 0
	}
	v := binary.LittleEndian.Uint32(c.buf[c.pos : c.pos+4])
	c.pos += 4
	return v
}

func (c *cursor) addr() Address {
	var a Address
	for i := range a {
		a[i] = c.u8()
	}
	return a
}

// parseEventPayload decodes the event-advertisement body, skipping the
// shared 4-byte company/protocol header already validated by the caller.
func parseEventPayload(buf []byte) AdPayload {
	c := &cursor{buf: buf, pos: msdHeaderLength}
	var ad AdPayload
	ad.NetworkID = c.u16()
	ad.Flags = c.u16()
	ad.Addr = c.addr()
	ad.RecordType = c.u8()
	ad.ID = c.u16()
	ad.Epoch = c.u32()
	ad.Data = c.u16()
	_ = c.u16() // reserved
	ad.ResetCount = c.u8()
	return ad
}

// parseRspPayload decodes the scan-response body, skipping the shared
// 4-byte header.
func parseRspPayload(buf []byte) RspPayload {
	c := &cursor{buf: buf, pos: msdHeaderLength}
	var rsp RspPayload
	rsp.ProductID = c.u16()
	rsp.FWMajor = c.u8()
	rsp.FWMinor = c.u8()
	rsp.FWPatch = c.u8()
	rsp.FWType = c.u8()
	rsp.ConfigVersion = c.u8()
	rsp.BLMajor = c.u8()
	rsp.BLMinor = c.u8()
	rsp.BLPatch = c.u8()
	hw := c.u8()
	rsp.HWMajor = hw >> 3
	rsp.HWMinor = hw & 0x7
	return rsp
}

// Standard Bluetooth Core Spec AD type identifiers used when walking a raw
// advertisement report to find the blocks the Sensor Table cares about.
const (
	adTypeShortenedLocalName uint8 = 0x08
	adTypeCompleteLocalName  uint8 = 0x09
	adTypeManufacturerData   uint8 = 0xff
)

// ExtractAdStructures walks a raw advertisement report's length-prefixed AD
// structures and returns the manufacturer-specific-data block (if any) and
// the advertised local name (preferring the complete name over the
// shortened one). Malformed trailing structures are ignored rather than
// erroring, matching a scanner's tolerance of partial/corrupt reports.
func ExtractAdStructures(raw []byte) (msd []byte, name string) {
	i := 0
	for i < len(raw) {
		length := int(raw[i])
		if length == 0 || i+1+length > len(raw) {
			break
		}
		adType := raw[i+1]
		data := raw[i+2 : i+1+length]
		switch adType {
		case adTypeManufacturerData:
			msd = data
		case adTypeCompleteLocalName:
			name = string(data)
		case adTypeShortenedLocalName:
			if name == "" {
				name = string(data)
			}
		}
		i += 1 + length
	}
	return msd, name
}

// parseCodedPayload decodes the Coded-PHY combined block as a concatenated
// event body followed by a response body, both sharing the one leading
// header this function skips past once.
func parseCodedPayload(buf []byte) (AdPayload, RspPayload) {
	c := &cursor{buf: buf, pos: msdHeaderLength}
	var ad AdPayload
	ad.NetworkID = c.u16()
	ad.Flags = c.u16()
	ad.Addr = c.addr()
	ad.RecordType = c.u8()
	ad.ID = c.u16()
	ad.Epoch = c.u32()
	ad.Data = c.u16()
	_ = c.u16() // reserved
	ad.ResetCount = c.u8()

	var rsp RspPayload
	rsp.ProductID = c.u16()
	rsp.FWMajor = c.u8()
	rsp.FWMinor = c.u8()
	rsp.FWPatch = c.u8()
	rsp.FWType = c.u8()
	rsp.ConfigVersion = c.u8()
	rsp.BLMajor = c.u8()
	rsp.BLMinor = c.u8()
	rsp.BLPatch = c.u8()
	hw := c.u8()
	rsp.HWMajor = hw >> 3
	rsp.HWMinor = hw & 0x7

	return ad, rsp
}
