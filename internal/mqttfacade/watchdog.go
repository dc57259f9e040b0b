package mqttfacade

import "time"

// Watchdog implements spec.md §4.9's publish_watchdog: if no publish
// succeeds for Timeout, ResetFunc fires once per outage. Timeout <= 0
// disables the watchdog entirely.
type Watchdog struct {
	Timeout   time.Duration
	ResetFunc func(reason string)
	Now       func() time.Time

	lastSuccess time.Time
	fired       bool
}

// NewWatchdog constructs a Watchdog. now defaults to time.Now if nil.
func NewWatchdog(timeout time.Duration, resetFunc func(reason string), now func() time.Time) *Watchdog {
	if now == nil {
		now = time.Now
	}
	return &Watchdog{Timeout: timeout, ResetFunc: resetFunc, Now: now, lastSuccess: now()}
}

// RecordSuccess marks a publish as having completed (PUBACK received),
// re-arming the watchdog.
func (w *Watchdog) RecordSuccess() {
	w.lastSuccess = w.Now()
	w.fired = false
}

// Check should be run periodically (e.g. alongside Keepalive); it fires
// ResetFunc at most once per outage once Timeout has elapsed since the
// last successful publish.
func (w *Watchdog) Check() {
	if w.Timeout <= 0 || w.fired {
		return
	}
	if w.Now().Sub(w.lastSuccess) >= w.Timeout {
		w.fired = true
		if w.ResetFunc != nil {
			w.ResetFunc("publish watchdog expired")
		}
	}
}
