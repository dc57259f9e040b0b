// Package bus implements the typed in-process message passing between the
// gateway's long-lived threads: Sensor Task, Gateway FSM ("Cloud/Control
// Task"), and the MQTT Facade's RX path. It is the Go counterpart of the
// firmware's FrameworkMsg/BufferPool combination, grounded on the teacher's
// internal/ingest event distribution style (bounded channel, drop/warn on
// backpressure) generalized from pub-sub broadcast to point-to-point typed
// delivery.
package bus

import (
	"github.com/rs/zerolog"
)

// Code identifies a message's purpose; the "msgCode" field of the
// firmware's FrameworkMsg_t header.
type Code int

const (
	CodeConnectRequest Code = iota
	CodeConfigRequest
	CodeGreenlistRequest
	CodeSubscribe
	CodeSubscribeAck
	CodeSensorPublish
	CodeGatewayOut
	CodeShadowInit
	CodeAwsGetAcceptedReceived
	CodeCloudConnected
	CodeCloudDisconnected
	CodeCloudDisconnectRequest
	CodeAdvertisement
)

func (c Code) String() string {
	switch c {
	case CodeConnectRequest:
		return "connect_request"
	case CodeConfigRequest:
		return "config_request"
	case CodeGreenlistRequest:
		return "greenlist_request"
	case CodeSubscribe:
		return "subscribe"
	case CodeSubscribeAck:
		return "subscribe_ack"
	case CodeSensorPublish:
		return "sensor_publish"
	case CodeGatewayOut:
		return "gateway_out"
	case CodeShadowInit:
		return "shadow_init"
	case CodeAwsGetAcceptedReceived:
		return "aws_get_accepted_received"
	case CodeCloudConnected:
		return "cloud_connected"
	case CodeCloudDisconnected:
		return "cloud_disconnected"
	case CodeCloudDisconnectRequest:
		return "cloud_disconnect_request"
	case CodeAdvertisement:
		return "advertisement"
	default:
		return "unknown"
	}
}

// ThreadID identifies a message's source or destination thread.
type ThreadID int

const (
	ThreadSensorTask ThreadID = iota
	ThreadCloud
	ThreadUnspecified
)

// Header is the small fixed header every message carries, exactly
// `{code, rx_id, tx_id}` from spec.
type Header struct {
	Code Code
	RxID ThreadID
	TxID ThreadID
}

// Message is anything routed through the bus; Head returns its header so
// the bus/queue machinery never needs to know concrete payload types.
type Message interface {
	Head() Header
}

// DispatchResult is the outcome of handing a message to a receiver,
// mirroring the firmware's DispatchResult_t.
type DispatchResult int

const (
	// DispatchOK: the message was fully handled; the bus may recycle/drop
	// the payload.
	DispatchOK DispatchResult = iota
	// DispatchError: handling failed; logged by the caller, payload
	// released same as OK.
	DispatchError
	// DispatchDoNotFree: the receiver has taken ownership of the message
	// (e.g. parking it as a table entry's pending/queued command) — the
	// bus must not recycle it.
	DispatchDoNotFree
)

func (d DispatchResult) String() string {
	switch d {
	case DispatchOK:
		return "ok"
	case DispatchError:
		return "error"
	case DispatchDoNotFree:
		return "do_not_free"
	default:
		return "unknown"
	}
}

// DefaultQueueDepth is the bounded channel capacity used when a Queue isn't
// given an explicit one — the firmware's QUEUE_DEPTH default of 32.
const DefaultQueueDepth = 32

// Queue is a single receiver's bounded inbox. Push is non-blocking: a full
// queue drops the message (the caller decides whether that's fatal) and a
// queue at or above half capacity logs a warning, exactly as the firmware's
// "50% utilization" policy does.
type Queue struct {
	ch     chan Message
	depth  int
	log    zerolog.Logger
	name   string
}

// NewQueue allocates a queue with the given depth (DefaultQueueDepth if <= 0)
// and a logger tagged with name for warning/drop messages.
func NewQueue(name string, depth int, log zerolog.Logger) *Queue {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	return &Queue{
		ch:    make(chan Message, depth),
		depth: depth,
		log:   log.With().Str("component", "bus").Str("queue", name).Logger(),
		name:  name,
	}
}

// Push enqueues msg, returning false if the queue was full (message
// dropped). Logs a warning once utilization reaches 50%.
func (q *Queue) Push(msg Message) bool {
	select {
	case q.ch <- msg:
		if len(q.ch)*2 >= q.depth {
			q.log.Warn().
				Int("depth", len(q.ch)).
				Int("capacity", q.depth).
				Str("code", msg.Head().Code.String()).
				Msg("queue utilization above 50%")
		}
		return true
	default:
		q.log.Warn().
			Str("code", msg.Head().Code.String()).
			Msg("queue full, dropping message")
		return false
	}
}

// C returns the receive side of the queue's channel, for use in a select
// loop by the owning thread.
func (q *Queue) C() <-chan Message {
	return q.ch
}

// Len reports the number of messages currently queued.
func (q *Queue) Len() int {
	return len(q.ch)
}
