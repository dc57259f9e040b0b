// Command gateway runs the Sensor Aggregation Core: BLE scanning, the
// Sensor Task's opportunistic connections, the Sensor Table, and the
// Gateway FSM's cloud lifecycle, wired to a real MQTT broker and BLE
// adapter. See SPEC_FULL.md for the full component breakdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/snarg/ble-sensor-gateway/internal/attrstore"
	"github.com/snarg/ble-sensor-gateway/internal/blecentral"
	"github.com/snarg/ble-sensor-gateway/internal/bus"
	"github.com/snarg/ble-sensor-gateway/internal/certs"
	"github.com/snarg/ble-sensor-gateway/internal/config"
	"github.com/snarg/ble-sensor-gateway/internal/gatewayfsm"
	"github.com/snarg/ble-sensor-gateway/internal/metrics"
	"github.com/snarg/ble-sensor-gateway/internal/mqttfacade"
	"github.com/snarg/ble-sensor-gateway/internal/sensortable"
	"github.com/snarg/ble-sensor-gateway/internal/sensortask"
	"github.com/snarg/ble-sensor-gateway/internal/shadow"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	var overrides config.Overrides
	var showVersion bool
	flag.StringVar(&overrides.EnvFile, "env-file", "", "Path to .env file (default: .env)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	flag.StringVar(&overrides.MQTTEndpoint, "mqtt-endpoint", "", "MQTT broker endpoint (overrides MQTT_ENDPOINT)")
	flag.StringVar(&overrides.TopicPrefix, "topic-prefix", "", "Per-sensor topic prefix (overrides TOPIC_PREFIX)")
	flag.StringVar(&overrides.GatewayID, "gateway-id", "", "Gateway id, 12 hex characters (overrides GATEWAY_ID)")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("%s (commit=%s, built=%s)\n", version, commit, buildTime)
		os.Exit(0)
	}

	startTime := time.Now()

	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Str("gateway_id", cfg.GatewayID).Msg("ble-sensor-gateway starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	attrs, err := attrstore.Open(cfg.AttrStoreDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open attribute store")
	}
	defer attrs.Close()
	seedAttrs(attrs, cfg)

	reg := metrics.NewRegistry()

	certLoader := certs.NewLoader(cfg.GatewayID, log)
	if err := certLoader.Load(attrs); err != nil {
		log.Warn().Err(err).Msg("certificate load failed, continuing without TLS client identity")
	}

	resetFunc := func(reason string) {
		log.Fatal().Str("reason", reason).Msg("fatal condition, resetting")
	}

	facade := mqttfacade.NewFacade(mqttfacade.Options{
		BrokerURL:        cfg.MQTTEndpoint,
		ClientID:         cfg.MQTTClientID,
		Username:         cfg.MQTTUsername,
		Password:         cfg.MQTTPassword,
		TLSConfig:        certLoader.TLSConfig(),
		PublishWatchdog:  cfg.PublishWatchdog,
		KeepaliveWindow:  cfg.KeepaliveWindow,
		FailureThreshold: cfg.FailureThreshold,
		ResetFunc:        resetFunc,
		Log:              log,
	})

	table := sensortable.NewTable(sensortable.Config{
		GatewayID:   cfg.GatewayID,
		TopicPrefix: cfg.TopicPrefix,
		Publish:     facade.Publish,
		Metrics:     reg,
	}, log)

	adapter, err := blecentral.New(log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize BLE adapter")
	}

	queue := bus.NewQueue("sensortask", cfg.SensorQueueDepth, log)
	task := sensortask.New(sensortask.Config{
		Central: adapter,
		Table:   table,
		Queue:   queue,
		Metrics: reg,
	}, log)

	router := blecentral.NewScanRouter(task, queue, log)

	dispatcher := newInboundDispatcher(cfg.TopicPrefix, cfg.GatewayID, table, log)
	facade.SetMessageHandler(dispatcher.handle)

	fsm := gatewayfsm.New(gatewayfsm.Config{
		Modem:      noopModem{},
		Network:    alwaysUpNetwork{},
		Resolver:   dnsResolver{},
		Cloud:      facade,
		Certs:      certLoader,
		Table:      table,
		Attrs:      attrs,
		ServerHost: cfg.MQTTEndpoint,
	}, log)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return task.Run(gctx)
	})

	g.Go(func() error {
		facade.RunBackground(gctx)
		return nil
	})

	g.Go(func() error {
		if err := router.Start(adapter); err != nil {
			return fmt.Errorf("scan start: %w", err)
		}
		<-gctx.Done()
		return adapter.StopScan()
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				fsm.Tick()
			}
		}
	})

	log.Info().Dur("startup", time.Since(startTime)).Msg("ble-sensor-gateway ready")

	if err := g.Wait(); err != nil && gctx.Err() == nil {
		log.Error().Err(err).Msg("gateway exited with error")
	}
	log.Info().Msg("ble-sensor-gateway stopped")
}

// seedAttrs writes the config-sourced values the attribute store is the
// canonical home for (per spec.md §6) on first run, without overwriting
// anything an operator has already set via the store directly.
func seedAttrs(attrs *attrstore.Store, cfg *config.Config) {
	if attrs.GetString(certs.AttrRootCA, "") == "" && cfg.RootCAPath != "" {
		_ = attrs.SetString(certs.AttrRootCA, cfg.RootCAPath)
	}
	if attrs.GetString(certs.AttrClientCert, "") == "" && cfg.ClientCertPath != "" {
		_ = attrs.SetString(certs.AttrClientCert, cfg.ClientCertPath)
	}
	if attrs.GetString(certs.AttrClientKey, "") == "" && cfg.ClientKeyPath != "" {
		_ = attrs.SetString(certs.AttrClientKey, cfg.ClientKeyPath)
	}
}

// inboundDispatcher routes one incoming MQTT message to the Sensor Table
// method matching its topic, using the Shadow Parser to pull the fields
// each document kind needs out of the retained-shadow JSON. The Sensor
// Table is single-owner (spec.md §5), so the dispatcher must only ever be
// invoked from the same goroutine that ticks the table — SetMessageHandler
// is wired before facade.Connect so paho's own callback goroutine is the
// sole caller, consistent with the teacher's single-writer MQTT handling.
type inboundDispatcher struct {
	prefix    string
	gatewayID string
	table     *sensortable.Table
	parser    *shadow.Parser
	log       zerolog.Logger
}

func newInboundDispatcher(prefix, gatewayID string, table *sensortable.Table, log zerolog.Logger) *inboundDispatcher {
	return &inboundDispatcher{
		prefix:    prefix,
		gatewayID: gatewayID,
		table:     table,
		parser:    shadow.NewParser(shadow.DefaultMaxTokens),
		log:       log.With().Str("component", "inbound").Logger(),
	}
}

func (d *inboundDispatcher) handle(topic string, payload []byte) {
	addrString, suffix, ok := splitTopic(d.prefix, topic)
	if !ok {
		d.log.Warn().Str("topic", topic).Msg("unrecognized topic prefix")
		return
	}
	doc := string(payload)

	gatewayTag := "deviceId-" + d.gatewayID
	if addrString == gatewayTag {
		d.handleGateway(suffix, doc)
		return
	}
	d.handleSensor(addrString, suffix, doc)
}

func (d *inboundDispatcher) handleGateway(suffix, doc string) {
	switch suffix {
	case mqttfacade.TopicUpdate, mqttfacade.TopicGetAccepted:
		entries := d.parser.ParseGateway(doc, suffix == mqttfacade.TopicGetAccepted, sensortable.DefaultTableSize)
		d.table.ApplyGreenlist(entries)
	default:
		d.log.Debug().Str("suffix", suffix).Msg("ignoring gateway shadow message")
	}
}

func (d *inboundDispatcher) handleSensor(addrString, suffix, doc string) {
	switch suffix {
	case mqttfacade.TopicUpdateDelta:
		cmd, version, ok := d.parser.ParseDelta(doc)
		if !ok {
			d.log.Warn().Str("addr", addrString).Msg("delta missing state/configVersion")
			return
		}
		d.table.AddConfigRequest(addrString, cmd, version, false, false)
	case mqttfacade.TopicGetAccepted:
		events := d.parser.ParseEventLog(doc, sensortable.DefaultLogCapacity)
		d.table.ShadowInitReceived(addrString, events)
	default:
		d.log.Debug().Str("addr", addrString).Str("suffix", suffix).Msg("ignoring sensor shadow message")
	}
}

// splitTopic reconstructs the <id>/<suffix> pair sensortable.Table's own
// topic/gatewayTopic helpers build, for a topic rooted at prefix.
func splitTopic(prefix, topic string) (id, suffix string, ok bool) {
	root := prefix + "/"
	if !strings.HasPrefix(topic, root) {
		return "", "", false
	}
	rest := topic[len(root):]
	i := strings.IndexByte(rest, '/')
	if i < 0 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}

// noopModem, alwaysUpNetwork, and dnsResolver are the default
// collaborators for gatewayfsm.FSM when the host has no cellular modem —
// the common case for a Wi-Fi/Ethernet-attached gateway. Deployments with
// an actual modem driver supply their own Modem/Network implementations.
type noopModem struct{}

func (noopModem) Init() error { return nil }

type alwaysUpNetwork struct{}

func (alwaysUpNetwork) Init() error     { return nil }
func (alwaysUpNetwork) Connected() bool { return true }

type dnsResolver struct{}

func (dnsResolver) Resolve(host string) error {
	_, err := net.LookupHost(host)
	return err
}
