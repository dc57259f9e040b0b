package mqttfacade

import "time"

// Keepalive implements spec.md §4.9's keepalive delayed-work-item: Due
// reports whether the keepalive window has expired (time to run
// mqtt_live()); TimeLeft mirrors mqtt_keepalive_time_left() for
// rescheduling the delayed work.
type Keepalive struct {
	Window time.Duration
	Now    func() time.Time

	last time.Time
}

// NewKeepalive constructs a Keepalive window-tracker, touched at now().
func NewKeepalive(window time.Duration, now func() time.Time) *Keepalive {
	if now == nil {
		now = time.Now
	}
	return &Keepalive{Window: window, Now: now, last: now()}
}

// Touch records that the keepalive ran (or that other traffic reset the
// window), matching paho's own internal keepalive but exposed so the
// facade's background loop can log/metric against it.
func (k *Keepalive) Touch() {
	k.last = k.Now()
}

// Due reports whether the keepalive window has elapsed.
func (k *Keepalive) Due() bool {
	return k.Now().Sub(k.last) >= k.Window
}

// TimeLeft reports how long until the keepalive window next elapses,
// clamped to zero.
func (k *Keepalive) TimeLeft() time.Duration {
	left := k.Window - k.Now().Sub(k.last)
	if left < 0 {
		return 0
	}
	return left
}
