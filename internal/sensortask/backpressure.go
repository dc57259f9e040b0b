package sensortask

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

// backpressure tracks advertisement messages in flight on the Sensor
// Task's queue, per spec.md §4.5's backpressure paragraph: scan callbacks
// run on the BLE RX thread and must decide, without blocking, whether to
// enqueue or drop.
type backpressure struct {
	depth       int32
	outstanding int32
	dropped     int32
	log         zerolog.Logger
	metrics     Metrics
}

func newBackpressure(queueDepth int, log zerolog.Logger, metrics Metrics) *backpressure {
	return &backpressure{depth: int32(queueDepth), log: log, metrics: metrics}
}

// admit reports whether a new advertisement may be enqueued. It increments
// ads_outstanding on success, or ads_dropped on refusal.
func (b *backpressure) admit() bool {
	if atomic.LoadInt32(&b.outstanding) >= b.depth/2 {
		atomic.AddInt32(&b.dropped, 1)
		if b.metrics != nil {
			b.metrics.IncAdvertisementsDropped()
		}
		return false
	}
	n := atomic.AddInt32(&b.outstanding, 1)
	if b.metrics != nil {
		b.metrics.SetAdsOutstanding(int(n))
	}
	return true
}

// release marks one outstanding advertisement as fully processed. When the
// outstanding count returns to zero, any accumulated drop count is logged
// and cleared, per spec.md's "log once per burst" drop policy.
func (b *backpressure) release() {
	n := atomic.AddInt32(&b.outstanding, -1)
	if b.metrics != nil {
		b.metrics.SetAdsOutstanding(int(n))
	}
	if n != 0 {
		return
	}
	dropped := atomic.SwapInt32(&b.dropped, 0)
	if dropped == 0 {
		return
	}
	b.log.Warn().Int32("dropped", dropped).Msg("advertisements dropped under backpressure")
}
