package gatewayfsm

import (
	"time"

	"github.com/rs/zerolog"
)

// Config bundles FSM construction parameters.
type Config struct {
	Modem      Modem
	Network    Network
	Resolver   Resolver
	Cloud      CloudConnector
	Certs      CertLoader
	Table      TableResetter
	Attrs      AttributeStore
	ServerHost string
	Now        func() time.Time
}

// CloudDisablePredicate reports whether the FSM should refuse (or tear
// down) a cloud connection right now — spec.md §4.7's "cloud_disable"
// registration hook, expressed as a slice of closures instead of a linked
// list.
type CloudDisablePredicate func() bool

// FSM is the Gateway FSM (C7), ticked once per second by its owning
// goroutine.
type FSM struct {
	cfg   Config
	log   zerolog.Logger
	now   func() time.Time
	state State

	serverResolved bool
	dnsAttempts    int
	nextActionAt   time.Time
	disablePreds   []CloudDisablePredicate
	decommissioned bool
}

// New constructs an FSM in StatePowerUp.
func New(cfg Config, log zerolog.Logger) *FSM {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &FSM{
		cfg:   cfg,
		log:   log.With().Str("component", "gatewayfsm").Logger(),
		now:   cfg.Now,
		state: StatePowerUp,
	}
}

// State reports the FSM's current node.
func (f *FSM) State() State { return f.state }

// RegisterCloudDisable adds a predicate consulted on every tick while
// connected or connecting; if any returns true, the FSM disconnects.
func (f *FSM) RegisterCloudDisable(p CloudDisablePredicate) {
	f.disablePreds = append(f.disablePreds, p)
}

// RequestDecommission latches a decommission request, processed on the
// FSM's next tick per spec.md §4.7's Decommission branch.
func (f *FSM) RequestDecommission() {
	f.decommissioned = true
}

func (f *FSM) cloudDisabled() bool {
	for _, p := range f.disablePreds {
		if p() {
			return true
		}
	}
	return false
}

func (f *FSM) delay(key string, def time.Duration) time.Duration {
	if f.cfg.Attrs == nil {
		return def
	}
	return f.cfg.Attrs.GetDuration(key, def)
}

// Tick advances the FSM by one step, per spec.md §4.7's once-per-second
// scheduling. It is safe to call from a single dedicated goroutine only —
// the FSM carries no internal synchronization, matching the Sensor Table's
// single-owner design.
func (f *FSM) Tick() {
	if f.decommissioned && (f.state == StateCloudConnected || f.state == StateCloudConnecting || f.state == StateWaitBeforeCloudConnect) {
		f.log.Info().Msg("decommission requested, disconnecting cloud")
		f.state = StateCloudRequestDisconnect
	}

	switch f.state {
	case StatePowerUp:
		f.state = StateModemInit

	case StateModemInit:
		if err := f.cfg.Modem.Init(); err != nil {
			f.log.Error().Err(err).Msg("modem init failed")
			f.scheduleRetry(f.delay("modem_error_delay", 10*time.Second))
			return
		}
		f.state = StateNetworkInit

	case StateNetworkInit:
		if err := f.cfg.Network.Init(); err != nil {
			f.log.Error().Err(err).Msg("network init failed")
			f.scheduleRetry(f.delay("network_error_delay", 10*time.Second))
			f.state = StateModemInit
			return
		}
		f.state = StateWaitNetwork

	case StateWaitNetwork:
		if f.cfg.Network.Connected() {
			f.state = StateNetworkConnected
		}

	case StateNetworkConnected:
		f.state = StateWaitCommission

	case StateWaitCommission:
		if f.waitElapsed() {
			f.state = StateResolveServer
		}

	case StateResolveServer:
		f.tickResolveServer()

	case StateWaitBeforeCloudConnect:
		if f.waitElapsed() {
			f.state = StateCloudConnecting
		}

	case StateCloudConnecting:
		if f.cloudDisabled() {
			f.state = StateCloudRequestDisconnect
			return
		}
		if err := f.cfg.Cloud.Connect(); err != nil {
			f.log.Warn().Err(err).Msg("cloud connect failed")
			f.scheduleWaitBeforeCloudConnect()
			return
		}
		f.state = StateCloudConnected

	case StateCloudConnected:
		if f.cloudDisabled() || !f.cfg.Network.Connected() {
			f.state = StateCloudRequestDisconnect
		}

	case StateCloudRequestDisconnect:
		if err := f.cfg.Cloud.Disconnect(); err != nil {
			f.log.Warn().Err(err).Msg("cloud disconnect request failed")
		}
		f.state = StateCloudWaitDisconnect

	case StateCloudWaitDisconnect:
		if !f.cfg.Cloud.Connected() {
			f.state = StateCloudDisconnected
		}

	case StateCloudDisconnected:
		if f.decommissioned {
			f.state = StateDecommission
			return
		}
		f.state = StateWaitNetwork

	case StateDecommission:
		f.runDecommission()
		f.state = StateWaitNetwork
	}
}

func (f *FSM) scheduleRetry(d time.Duration) {
	f.nextActionAt = f.now().Add(d)
}

func (f *FSM) scheduleWaitBeforeCloudConnect() {
	f.nextActionAt = f.now().Add(f.delay("reconnect_delay", 5*time.Second))
	f.state = StateWaitBeforeCloudConnect
}

func (f *FSM) waitElapsed() bool {
	if f.nextActionAt.IsZero() {
		f.nextActionAt = f.now().Add(f.delay("join_delay", 2*time.Second))
		return false
	}
	if f.now().Before(f.nextActionAt) {
		return false
	}
	f.nextActionAt = time.Time{}
	return true
}

// tickResolveServer implements the DNS retry policy: up to DNSRetryLimit
// attempts at DNSRetryInterval apart, falling back to ModemInit on
// persistent failure.
func (f *FSM) tickResolveServer() {
	if f.serverResolved {
		f.scheduleWaitBeforeCloudConnect()
		return
	}
	if !f.nextActionAt.IsZero() && f.now().Before(f.nextActionAt) {
		return
	}
	if err := f.cfg.Resolver.Resolve(f.cfg.ServerHost); err != nil {
		f.dnsAttempts++
		f.log.Warn().Err(err).Int("attempt", f.dnsAttempts).Msg("server resolution failed")
		if f.dnsAttempts >= DNSRetryLimit {
			f.log.Error().Msg("server resolution exhausted retries, reinitializing modem")
			f.dnsAttempts = 0
			f.nextActionAt = time.Time{}
			f.state = StateModemInit
			return
		}
		f.nextActionAt = f.now().Add(DNSRetryInterval)
		return
	}
	f.serverResolved = true
	f.dnsAttempts = 0
	f.scheduleWaitBeforeCloudConnect()
}

// runDecommission implements spec.md §4.7's Decommission branch: unload
// certs, clear the resolved-server flag, and request a gateway shadow
// regeneration so the next cloud connection starts from a clean slate.
func (f *FSM) runDecommission() {
	if f.cfg.Certs != nil {
		if err := f.cfg.Certs.Unload(); err != nil {
			f.log.Warn().Err(err).Msg("cert unload during decommission failed")
		}
	}
	if f.cfg.Table != nil {
		f.cfg.Table.Decommission()
		f.cfg.Table.RequestGatewayShadowRegeneration()
	}
	f.serverResolved = false
	f.decommissioned = false
}
