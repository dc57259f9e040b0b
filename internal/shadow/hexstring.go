package shadow

import "fmt"

// RecordType enumerates the sensor event types carried in an advertisement
// payload's record_type byte, grounded on sensor_event.h.
type RecordType uint8

const (
	RecordReserved                  RecordType = 0
	RecordTemperature               RecordType = 1
	RecordMagnet                    RecordType = 2
	RecordMovement                  RecordType = 3
	RecordAlarmHighTemp1            RecordType = 4
	RecordAlarmHighTemp2            RecordType = 5
	RecordAlarmHighTempClear        RecordType = 6
	RecordAlarmLowTemp1             RecordType = 7
	RecordAlarmLowTemp2             RecordType = 8
	RecordAlarmLowTempClear         RecordType = 9
	RecordAlarmDeltaTemp            RecordType = 10
	RecordAlarmTemperatureRateOfChg RecordType = 11
	RecordBatteryGood               RecordType = 12
	RecordAdvertiseOnButton         RecordType = 13
	RecordImpact                    RecordType = 15
	RecordBatteryBad                RecordType = 16
	RecordReset                     RecordType = 17
)

// IsTemperature reports whether rt carries a signed hundredths-of-degree
// temperature reading in its data word.
func (rt RecordType) IsTemperature() bool {
	switch rt {
	case RecordTemperature, RecordAlarmHighTemp1, RecordAlarmHighTemp2,
		RecordAlarmHighTempClear, RecordAlarmLowTemp1, RecordAlarmLowTemp2,
		RecordAlarmLowTempClear, RecordAlarmDeltaTemp, RecordAlarmTemperatureRateOfChg:
		return true
	default:
		return false
	}
}

// Ig60GeneratedName returns the fixed "IG60-generated" shadow key a record
// type is additionally mirrored under, and whether one exists. These
// duplicate fields exist so that terminal alarms survive a ring-log
// wraparound.
func (rt RecordType) Ig60GeneratedName() (string, bool) {
	switch rt {
	case RecordBatteryGood:
		return "batteryGood", true
	case RecordBatteryBad:
		return "batteryBad", true
	case RecordAlarmHighTemp1:
		return "alarmHighTemp1", true
	case RecordAlarmHighTemp2:
		return "alarmHighTemp2", true
	case RecordAlarmHighTempClear:
		return "alarmHighTempClear", true
	case RecordAlarmLowTemp1:
		return "alarmLowTemp1", true
	case RecordAlarmLowTemp2:
		return "alarmLowTemp2", true
	case RecordAlarmLowTempClear:
		return "alarmLowTempClear", true
	case RecordAlarmDeltaTemp:
		return "alarmDeltaTemp", true
	case RecordAdvertiseOnButton:
		return "advertiseOnButton", true
	default:
		return "", false
	}
}

// ResetReason enumerates the nRF52 reset-reason bits a BT510 reports in its
// data word on a SENSOR_EVENT_RESET event.
type ResetReason uint32

const (
	ResetReasonPOR         ResetReason = 0
	ResetReasonPin         ResetReason = 1 << 0
	ResetReasonSoftware    ResetReason = 1 << 2
	ResetReasonLockup      ResetReason = 1 << 3
	ResetReasonOffMode     ResetReason = 1 << 16
	ResetReasonWatchdog    ResetReason = 1 << 1
	ResetReasonBrownout    ResetReason = 1 << 17
	ResetReasonFactoryMask ResetReason = 1 << 20
)

// String returns the reset reason's shadow-string name. Multiple bits can
// be set simultaneously on real hardware; the first recognized bit, in
// priority order, names the reason.
func (r ResetReason) String() string {
	switch {
	case r&ResetReasonFactoryMask != 0:
		return "FACTORY_RESET"
	case r&ResetReasonBrownout != 0:
		return "HW_BROWNOUT"
	case r&ResetReasonLockup != 0:
		return "LOCKUP"
	case r&ResetReasonWatchdog != 0:
		return "WATCHDOG"
	case r&ResetReasonOffMode != 0:
		return "OFF_MODE"
	case r&ResetReasonSoftware != 0:
		return "SW"
	case r&ResetReasonPin != 0:
		return "PIN"
	default:
		return "POR"
	}
}

// IsFactoryReset reports whether r indicates a factory-reset event, the
// sensor table's third eviction trigger alongside TTL expiry and
// decommission.
func (r ResetReason) IsFactoryReset() bool {
	return r&ResetReasonFactoryMask != 0
}

// Hex8 formats v as 2 lowercase hex digits, the "to_string.c"-equivalent
// helper used for hex-encoded shadow fields.
func Hex8(v uint8) string {
	return fmt.Sprintf("%02x", v)
}

// Hex16 formats v as 4 lowercase hex digits.
func Hex16(v uint16) string {
	return fmt.Sprintf("%04x", v)
}

// Hex32 formats v as 8 lowercase hex digits.
func Hex32(v uint32) string {
	return fmt.Sprintf("%08x", v)
}
