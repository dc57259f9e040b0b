package blecentral

import (
	"fmt"

	"github.com/google/uuid"
	"tinygo.org/x/bluetooth"
)

// vspBaseFormat is the VSP service's 128-bit UUID base from spec.md §6,
// with the low 16 bits of the first group (after the fixed 0x569a) left as
// a format verb for the service-specific ID (0x2000 TX, 0x2001 RX).
const vspBaseFormat = "569a%04x-b87f-490c-92cb-11ba5ea5167c"

// VSP TX (notify, sensor->gateway) and RX (write, gateway->sensor)
// service-specific IDs, per spec.md §6.
const (
	vspTXID uint16 = 0x2000
	vspRXID uint16 = 0x2001
)

// vspUUID builds the 128-bit characteristic UUID for the given
// service-specific ID, via google/uuid for parsing/formatting and
// tinygo/bluetooth's own UUID type for use against the GATT API.
func vspUUID(serviceSpecificID uint16) bluetooth.UUID {
	g := uuid.MustParse(fmt.Sprintf(vspBaseFormat, serviceSpecificID))
	return bluetooth.NewUUID(g)
}

func vspTXUUID() bluetooth.UUID { return vspUUID(vspTXID) }
func vspRXUUID() bluetooth.UUID { return vspUUID(vspRXID) }
