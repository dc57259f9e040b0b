// Package mqttfacade implements the MQTT Facade (C9): connect/publish/
// subscribe wrapper, keepalive, and publish watchdog, adapted from the
// teacher's internal/mqttclient connect/reconnect handling onto
// paho.mqtt.golang, the teacher's direct dependency for MQTT transport.
package mqttfacade

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/snarg/ble-sensor-gateway/internal/bus"
)

// ConnectTries and ConnectRetryInterval implement spec.md §4.9's "runs up
// to CONNECT_TRIES loop with ~500 ms inter-attempt sleep".
const (
	ConnectTries         = 5
	ConnectRetryInterval = 500 * time.Millisecond
	publishQoS           = byte(1)
)

// InboundHandler receives a payload delivered on a subscribed topic; the
// Shadow Parser (C3) and its callers decide what to do with it.
type InboundHandler func(topic string, payload []byte)

// Options configures a Facade.
type Options struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	TLSConfig *tls.Config // nil for a plaintext broker (local testing)

	PublishWatchdog  time.Duration // 0 disables, per spec.md §4.9
	KeepaliveWindow  time.Duration
	FailureThreshold int // consecutive connect failures before reset
	DisableReset     func() bool
	ResetFunc        func(reason string)

	Log zerolog.Logger
	Now func() time.Time
}

// Facade owns the paho client and its lifecycle bookkeeping. It satisfies
// gatewayfsm.CloudConnector (Connect/Disconnect/Connected) and exposes
// Publish with the exact signature of sensortable.Publisher.
type Facade struct {
	opts Options
	log  zerolog.Logger
	now  func() time.Time

	conn    mqtt.Client
	handler InboundHandler

	watchdog *Watchdog
	keepAlv  *Keepalive
	failures *FailureGuard

	subscribed map[string]bool
}

// NewFacade constructs a Facade from opts.
func NewFacade(opts Options) *Facade {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	f := &Facade{
		opts:       opts,
		log:        opts.Log.With().Str("component", "mqttfacade").Logger(),
		now:        opts.Now,
		subscribed: make(map[string]bool),
	}
	f.watchdog = NewWatchdog(opts.PublishWatchdog, opts.ResetFunc, opts.Now)
	f.keepAlv = NewKeepalive(opts.KeepaliveWindow, opts.Now)
	f.failures = NewFailureGuard(opts.FailureThreshold, opts.ResetFunc)
	f.failures.DisableReset = opts.DisableReset
	return f
}

// SetMessageHandler registers the callback invoked for every inbound
// message on a subscribed topic.
func (f *Facade) SetMessageHandler(h InboundHandler) {
	f.handler = h
}

// Connect implements spec.md §4.9's connect: resolves the broker, opens
// TLS with registered credentials, and retries up to ConnectTries times
// with ConnectRetryInterval between attempts. Each exhausted attempt
// sequence counts against the FailureGuard; the caller (typically the
// Gateway FSM) decides the overall outer retry cadence.
func (f *Facade) Connect() error {
	clientOpts := mqtt.NewClientOptions().
		AddBroker(f.opts.BrokerURL).
		SetClientID(f.opts.ClientID).
		SetAutoReconnect(false). // the Gateway FSM owns reconnect scheduling
		SetOrderMatters(false).
		SetConnectionLostHandler(f.onConnectionLost).
		SetDefaultPublishHandler(f.onMessage)

	if f.opts.TLSConfig != nil {
		clientOpts.SetTLSConfig(f.opts.TLSConfig)
	}
	if f.opts.Username != "" {
		clientOpts.SetUsername(f.opts.Username)
	}
	if f.opts.Password != "" {
		clientOpts.SetPassword(f.opts.Password)
	}

	conn := mqtt.NewClient(clientOpts)

	var lastErr error
	for attempt := 1; attempt <= ConnectTries; attempt++ {
		token := conn.Connect()
		token.Wait()
		if err := token.Error(); err == nil {
			f.conn = conn
			f.failures.RecordSuccess()
			f.log.Info().Str("broker", f.opts.BrokerURL).Msg("mqtt connected")
			return nil
		}
		lastErr = token.Error()
		f.log.Warn().Err(lastErr).Int("attempt", attempt).Msg("mqtt connect attempt failed")
		time.Sleep(ConnectRetryInterval)
	}
	f.failures.RecordFailure()
	return fmt.Errorf("mqttfacade: connect failed after %d attempts: %w", ConnectTries, lastErr)
}

// Disconnect tears down the connection, per spec.md §4.9's "on disconnect,
// all pending nodes are invoked with a NOT_CONNECTED status" — paho's own
// tokens already resolve with an error in this case, so there is no
// separate pending-node table to walk here.
func (f *Facade) Disconnect() error {
	if f.conn != nil && f.conn.IsConnected() {
		f.conn.Disconnect(250)
	}
	for topic := range f.subscribed {
		delete(f.subscribed, topic)
	}
	return nil
}

// Connected reports whether the underlying paho client believes it holds
// a live connection.
func (f *Facade) Connected() bool {
	return f.conn != nil && f.conn.IsConnected()
}

// Publish sends payload to topic at QoS1, matching sensortable.Publisher's
// signature exactly so a Facade can be handed directly to
// sensortable.Config.Publish. Errors are logged, not returned, since
// Publisher has no error channel — the publish watchdog is how persistent
// failure surfaces.
func (f *Facade) Publish(topic string, payload []byte) {
	if f.conn == nil || !f.conn.IsConnected() {
		f.log.Warn().Str("topic", topic).Msg("publish dropped, not connected")
		return
	}
	token := f.conn.Publish(topic, publishQoS, false, payload)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			f.log.Warn().Err(err).Str("topic", topic).Msg("publish failed")
			return
		}
		f.watchdog.RecordSuccess()
	}()
}

// Subscribe toggles subscription for one topic, per a bus.SubscribeMsg.
// Success is recorded back into msg.Success for the caller to route onward
// (e.g. back onto the Sensor Task's queue as an ack).
func (f *Facade) Subscribe(msg *bus.SubscribeMsg) {
	if f.conn == nil || !f.conn.IsConnected() {
		msg.Success = false
		return
	}
	if !msg.Subscribe {
		token := f.conn.Unsubscribe(msg.Topic)
		token.Wait()
		msg.Success = token.Error() == nil
		if msg.Success {
			delete(f.subscribed, msg.Topic)
		}
		return
	}
	token := f.conn.Subscribe(msg.Topic, publishQoS, nil)
	token.Wait()
	msg.Success = token.Error() == nil
	if msg.Success {
		f.subscribed[msg.Topic] = true
	} else {
		f.log.Warn().Err(token.Error()).Str("topic", msg.Topic).Msg("subscribe failed")
	}
}

// RunBackground runs the keepalive/watchdog poll loop until ctx is
// cancelled, implementing spec.md §4.9's "delayed work item" pair as a
// single ticking goroutine rather than two separately rescheduled timers —
// idiomatic Go has no delayed-work-queue primitive to mirror directly.
func (f *Facade) RunBackground(ctx context.Context) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.watchdog.Check()
			if f.keepAlv.Due() {
				f.keepAlv.Touch()
			}
		}
	}
}

func (f *Facade) onConnectionLost(_ mqtt.Client, err error) {
	f.log.Warn().Err(err).Msg("mqtt connection lost")
}

func (f *Facade) onMessage(_ mqtt.Client, msg mqtt.Message) {
	if f.handler != nil {
		f.handler(msg.Topic(), msg.Payload())
		return
	}
	f.log.Debug().Str("topic", msg.Topic()).Int("payload_size", len(msg.Payload())).Msg("mqtt message received, no handler registered")
}
