package sensortable

// Flags decodes the BT510 event advertisement's 16-bit flags bitfield, per
// spec.md §4.4's mask/bit table, confirmed against bt510_flags.h.
type Flags uint16

func (f Flags) field(mask uint16, bit uint) uint16 {
	return (uint16(f) >> bit) & mask
}

func (f Flags) TimeSet() bool                      { return f.field(0x1, 0) != 0 }
func (f Flags) ActiveMode() bool                   { return f.field(0x1, 1) != 0 }
func (f Flags) AnyAlarm() bool                     { return f.field(0x1, 2) != 0 }
func (f Flags) LowBattery() bool                   { return f.field(0x1, 7) != 0 }
func (f Flags) HighTemperatureAlarm() uint16       { return f.field(0x3, 8) }
func (f Flags) LowTemperatureAlarm() uint16        { return f.field(0x3, 10) }
func (f Flags) DeltaTemperatureAlarm() bool        { return f.field(0x1, 12) != 0 }
func (f Flags) RateOfChangeTemperatureAlarm() bool { return f.field(0x1, 13) != 0 }
func (f Flags) MovementAlarm() bool                { return f.field(0x1, 14) != 0 }
func (f Flags) MagnetState() bool                  { return f.field(0x1, 15) != 0 }
