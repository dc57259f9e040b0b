package sensortable

import "github.com/snarg/ble-sensor-gateway/internal/ringlog"

// eventFromAd converts an advertisement payload into the ring log's event
// record. IDLsb carries the low byte of the advertisement's monotonic event
// id — it never appears in the emitted shadow, only in tests that need to
// tell which source event produced a given log row.
func eventFromAd(ad AdPayload) ringlog.Event {
	return ringlog.Event{
		Epoch:      ad.Epoch,
		Data:       ad.Data,
		RecordType: ad.RecordType,
		IDLsb:      uint8(ad.ID),
	}
}
