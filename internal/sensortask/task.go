package sensortask

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/ble-sensor-gateway/internal/bus"
	"github.com/snarg/ble-sensor-gateway/internal/sensortable"
	"github.com/snarg/ble-sensor-gateway/internal/shadow"
)

// Config bundles Task construction parameters.
type Config struct {
	Central Central
	Table   *sensortable.Table
	Queue   *bus.Queue
	Metrics Metrics
	Now     func() time.Time // injectable for tests; defaults to time.Now
}

// Task drives the Sensor Task state machine: it owns the Sensor Table
// (per the concurrency model's single-ownership rule) and the one BLE
// connection attempt in flight at a time.
type Task struct {
	central Central
	table   *sensortable.Table
	queue   *bus.Queue
	metrics Metrics
	log     zerolog.Logger
	now     func() time.Time

	bp    *backpressure
	state State
}

// New constructs a Task. cfg.Table must be non-nil; it becomes owned by
// the goroutine that calls Run.
func New(cfg Config, log zerolog.Logger) *Task {
	l := log.With().Str("component", "sensortask").Logger()
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Task{
		central: cfg.Central,
		table:   cfg.Table,
		queue:   cfg.Queue,
		metrics: cfg.Metrics,
		log:     l,
		now:     now,
		bp:      newBackpressure(bus.DefaultQueueDepth, l, cfg.Metrics),
		state:   StateIdle,
	}
}

// State reports the task's current connection-attempt state.
func (t *Task) State() State { return t.state }

// Admit reports whether a scan callback for addr may be enqueued onto the
// task's bus.Queue, applying the backpressure policy. Called from the BLE
// RX thread (the concrete adapter in internal/blecentral), never from Run.
func (t *Task) Admit() bool { return t.bp.admit() }

// Run drains the task's queue until ctx is cancelled, processing exactly
// one message — and, when that message yields a connection attempt,
// exactly one BLE connection — at a time.
func (t *Task) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-t.queue.C():
			t.dispatch(ctx, msg)
		}
	}
}

func (t *Task) dispatch(ctx context.Context, msg bus.Message) {
	switch m := msg.(type) {
	case *bus.AdvertisementMsg:
		t.handleAdvertisement(ctx, m)
	case *bus.ConnectRequestMsg:
		t.handleConnectRequest(ctx, m)
	default:
		t.log.Warn().Str("code", msg.Head().Code.String()).Msg("sensortask: unexpected message")
	}
}

func (t *Task) handleAdvertisement(ctx context.Context, m *bus.AdvertisementMsg) {
	defer t.bp.release()

	result, cr := t.table.Advertisement(m.Addr, m.RSSI, m.PDUType, m.Raw)
	if result != sensortable.DispatchOK || cr == nil {
		return
	}
	t.connect(ctx, cr)
}

func (t *Task) handleConnectRequest(ctx context.Context, m *bus.ConnectRequestMsg) {
	t.connect(ctx, &sensortable.ConnectRequest{
		TableIndex: m.TableIndex,
		Addr:       m.Addr,
		Name:       m.Name,
		Cmd:        m.Cmd,
		Attempts:   m.Attempts,
		Coded:      m.UseCodedPhy,
	})
}

// connect runs one full connection attempt to completion, per spec.md
// §4.5's state table. It always returns with the task back in StateIdle
// and scanning resumed.
func (t *Task) connect(ctx context.Context, req *sensortable.ConnectRequest) {
	log := t.log.With().Str("addr", req.AddrString).Str("cmd", req.Cmd).Logger()

	if err := t.central.StopScan(); err != nil {
		log.Warn().Err(err).Msg("stop scan failed")
	}
	defer func() {
		t.state = StateIdle
		if err := t.central.StartScan(); err != nil {
			log.Warn().Err(err).Msg("resume scan failed")
		}
	}()

	t.state = StateConnecting
	connectCtx, cancel := context.WithTimeout(ctx, ConnectionCreateTimeout)
	link, err := t.central.Connect(connectCtx, req.Addr, req.Coded)
	cancel()
	if err != nil {
		log.Warn().Err(err).Msg("connect failed")
		t.table.RetryConfigRequest(req.TableIndex)
		return
	}
	defer link.Disconnect()

	t.state = StateExchangingMtu
	mtu := link.MTU()

	t.state = StateDiscovering
	respCh := make(chan []byte, 1)
	framer := newBracketMatcher(responseBufferSize)
	discCtx, cancel := context.WithTimeout(ctx, EncryptionTimeout)
	err = link.DiscoverVSP(discCtx, func(data []byte) {
		for _, b := range data {
			if obj, ok := framer.feed(b); ok {
				select {
				case respCh <- obj:
				default:
				}
			}
		}
	})
	cancel()
	if err != nil {
		log.Warn().Err(err).Msg("VSP discovery failed")
		t.table.RetryConfigRequest(req.TableIndex)
		return
	}

	t.state = StateAwaitingPair
	pairCtx, cancel := context.WithTimeout(ctx, EncryptionTimeout)
	err = link.AwaitPairing(pairCtx)
	cancel()
	if err != nil {
		log.Warn().Err(err).Msg("pairing failed")
		t.table.RetryConfigRequest(req.TableIndex)
		return
	}

	t.state = StateWriting
	if err := writeChunks(ctx, link, []byte(req.Cmd), mtu-mtuHeaderOverhead); err != nil {
		log.Warn().Err(err).Msg("write failed")
		t.table.RetryConfigRequest(req.TableIndex)
		return
	}

	select {
	case resp := <-respCh:
		t.handleResponse(ctx, log, link, req, resp)
	case <-ctx.Done():
	case <-time.After(EncryptionTimeout + ResetAckToDumpDelay):
		log.Warn().Msg("no response before timeout")
		t.table.RetryConfigRequest(req.TableIndex)
	}
}

// handleResponse interprets the sensor's ACK per spec.md §4.5's Writing row:
// if setEpoch is pending, send the setEpoch command; else if reset is
// pending, arm the reset-delay timer and send the reboot command once the
// sensor has had time to apply the set; else if this was a dump, publish the
// response as the sensor's shadow before disconnecting; otherwise this is
// "Part 1 complete" and the connection simply tears down, letting
// AckConfigRequest's first-dump synthesis drive the follow-up dump.
func (t *Task) handleResponse(ctx context.Context, log zerolog.Logger, link Link, req *sensortable.ConnectRequest, resp []byte) {
	if req.DumpRequest {
		t.table.PublishDumpResponse(req.AddrString, resp)
	}
	t.table.AckConfigRequest(req.TableIndex)

	switch {
	case req.SetEpochRequest:
		epoch := uint32(t.now().Unix())
		if err := link.Write(ctx, []byte(shadow.SetEpochCommand(epoch))); err != nil {
			log.Warn().Err(err).Msg("setEpoch write failed")
		}
	case req.ResetRequest:
		select {
		case <-time.After(ResetDelay):
		case <-ctx.Done():
			return
		}
		if err := link.Write(ctx, []byte(shadow.RebootCommand)); err != nil {
			log.Warn().Err(err).Msg("reboot write failed")
		}
	}
}

// writeChunks splits payload into mtu-sized (or smaller) writes, matching
// the firmware's MTU-chunked flow-controlled write.
func writeChunks(ctx context.Context, link Link, payload []byte, chunkSize int) error {
	if chunkSize <= 0 {
		return errors.New("sensortask: non-positive chunk size")
	}
	for len(payload) > 0 {
		n := chunkSize
		if n > len(payload) {
			n = len(payload)
		}
		if err := link.Write(ctx, payload[:n]); err != nil {
			return err
		}
		payload = payload[n:]
	}
	return nil
}
