package shadow

import (
	"fmt"
	"strings"
)

// setCommandPrefix/setCommandSuffix wrap a shadow delta's "state" object
// into a JSON-RPC "set" request the sensor understands, exactly as the
// firmware's SENSOR_CMD_SET_PREFIX/SENSOR_CMD_SUFFIX constants do.
const (
	setCommandPrefix = `{"jsonrpc":"2.0","id":0,"method":"set","params":`
	setCommandSuffix = `}`
)

// DumpCommand and RebootCommand are the two other fixed JSON-RPC requests
// the sensor table sends a sensor outside of a cloud-originated delta.
const (
	DumpCommand   = `{"jsonrpc":"2.0","method":"dump","id":1}`
	RebootCommand = `{"jsonrpc": "2.0","method":"reboot","id":2}`
)

// OutOfBoxConfigCommand is the configVersion-1 "set" request the gateway
// sends a sensor the first time it is seen with configVersion==0, matching
// the IG60's out-of-box configuration so every gateway gives a sensor the
// same first-contact experience.
const OutOfBoxConfigCommand = `{"jsonrpc":"2.0","method":"set","id":5,"params":{"activeMode":1,"scale":2,"odr":5,"activationThreshold":8,"temperatureSenseInterval":120,"batterySenseInterval":3600,"configVersion":1}}`

// SetEpochCommand formats the setEpoch JSON-RPC request sent right after an
// out-of-box config command is acked, so the sensor's RTC matches the
// gateway's clock from the start.
func SetEpochCommand(epoch uint32) string {
	return fmt.Sprintf(`{"jsonrpc": "2.0", "method": "setEpoch", "params": [%d], "id": 6}`, epoch)
}

// AcceptedResultMarker is the substring a sensor's ACK response contains on
// success. The Sensor Task does not check for it: it treats any
// bracket-matched response as the ACK.
const AcceptedResultMarker = `"result":"ok"`

// ParseDelta extracts the new configVersion and the verbatim "state" object
// from a sensor's `/update/delta` document and wraps it as a JSON-RPC set
// command. It reports ok=false if either "state" or "configVersion" is
// missing, in which case the delta is ignored (nothing to queue).
func (p *Parser) ParseDelta(doc string) (cmd string, configVersion uint32, ok bool) {
	p.Reset(doc)

	stateIdx := p.FindType("state", Object, Any)
	versionIdx := p.FindType("configVersion", Primitive, Any)
	if stateIdx <= 0 || versionIdx <= 0 {
		return "", 0, false
	}

	var b strings.Builder
	b.Grow(len(setCommandPrefix) + p.StrLen(stateIdx) + len(setCommandSuffix))
	b.WriteString(setCommandPrefix)
	b.WriteString(p.String(stateIdx))
	b.WriteString(setCommandSuffix)

	return b.String(), p.ConvertUint(versionIdx), true
}
