package bus

import "github.com/snarg/ble-sensor-gateway/internal/shadow"

// AdvertisementMsg carries one raw scan callback from the BLE RX thread to
// the Sensor Task's queue, per spec.md §4.5's backpressure paragraph.
type AdvertisementMsg struct {
	Header  Header
	Addr    [6]byte
	RSSI    int8
	PDUType uint8
	Raw     []byte
}

func (m *AdvertisementMsg) Head() Header { return m.Header }

// ConnectRequestMsg asks the Sensor Task to open a BLE connection to a
// sensor and deliver a queued config command over its VSP service.
type ConnectRequestMsg struct {
	Header       Header
	TableIndex   int
	Addr         [6]byte
	Name         string
	Cmd          string
	Attempts     int
	UseCodedPhy  bool
}

func (m *ConnectRequestMsg) Head() Header { return m.Header }

// ConfigRequestMsg carries a decoded cloud delta (or a retry/dump) destined
// for the Sensor Table's config-request ingress.
type ConfigRequestMsg struct {
	Header        Header
	AddrString    string
	TableIndex    int
	Cmd           string
	ConfigVersion uint32
	DumpRequest   bool
	ResetRequest  bool
	Attempts      int
}

func (m *ConfigRequestMsg) Head() Header { return m.Header }

// GreenlistRequestMsg carries the cloud's desired greenlist, parsed from
// the gateway shadow's `sensors` array.
type GreenlistRequestMsg struct {
	Header  Header
	Sensors []shadow.GreenlistEntry
}

func (m *GreenlistRequestMsg) Head() Header { return m.Header }

// SubscribeMsg asks the MQTT Facade to subscribe or unsubscribe a sensor's
// delta (or get/accepted) topic.
type SubscribeMsg struct {
	Header     Header
	TableIndex int
	Topic      string
	Subscribe  bool
	Success    bool // set by the facade on ack, then routed back
}

func (m *SubscribeMsg) Head() Header { return m.Header }

// PublishMsg is an outbound MQTT publish: a fully-built shadow document (or
// gateway shadow, or `get` trigger) bound for Topic.
type PublishMsg struct {
	Header  Header
	Topic   string
	Payload []byte
}

func (m *PublishMsg) Head() Header { return m.Header }

// ShadowInitMsg carries a sensor's reconstructed event log, parsed from its
// `get/accepted` shadow document on reconnect.
type ShadowInitMsg struct {
	Header     Header
	AddrString string
	Events     []shadow.EventLogEntry
}

func (m *ShadowInitMsg) Head() Header { return m.Header }

// CloudLifecycleMsg carries a cloud-connected/disconnected notification
// from the Gateway FSM to the Sensor Task and Facade.
type CloudLifecycleMsg struct {
	Header  Header
	Code    Code
}

func (m *CloudLifecycleMsg) Head() Header { return m.Header }
