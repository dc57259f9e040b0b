package mqttfacade

// FailureGuard tracks consecutive connection failures and escalates to a
// reset once Threshold is reached, per spec.md §4.9's "tracks consecutive
// connection failures; after a configurable threshold, triggers an
// assert-style reset". DisableReset, if set, lets the application veto the
// reset (spec.md §7's fatal-error opt-out).
type FailureGuard struct {
	Threshold    int
	ResetFunc    func(reason string)
	DisableReset func() bool

	count int
}

// NewFailureGuard constructs a guard that escalates after threshold
// consecutive failures.
func NewFailureGuard(threshold int, resetFunc func(reason string)) *FailureGuard {
	return &FailureGuard{Threshold: threshold, ResetFunc: resetFunc}
}

// RecordFailure increments the consecutive-failure count, firing ResetFunc
// once Threshold is reached (unless DisableReset says not to).
func (g *FailureGuard) RecordFailure() {
	g.count++
	if g.Threshold <= 0 || g.count < g.Threshold {
		return
	}
	if g.DisableReset != nil && g.DisableReset() {
		return
	}
	if g.ResetFunc != nil {
		g.ResetFunc("consecutive mqtt connect failures exceeded threshold")
	}
}

// RecordSuccess clears the consecutive-failure count.
func (g *FailureGuard) RecordSuccess() {
	g.count = 0
}

// Count reports the current consecutive-failure count.
func (g *FailureGuard) Count() int {
	return g.count
}
