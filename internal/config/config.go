// Package config loads the gateway's startup configuration, adapted from
// the teacher's caarlos0/env + joho/godotenv struct-tag pattern onto
// spec.md §6's configuration attributes. Attributes that can change at
// runtime (join delays, commissioned flag, credential file names) live in
// internal/attrstore instead — this package covers only what must be known
// before the attribute store itself can be opened.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the gateway's process-level configuration, sourced from
// environment variables (see spec.md §6 for the attribute names this
// mirrors).
type Config struct {
	AttrStoreDir string `env:"ATTR_STORE_DIR" envDefault:"./attrs"`

	MQTTEndpoint string `env:"MQTT_ENDPOINT,required"`
	MQTTPort     int    `env:"MQTT_PORT" envDefault:"8883"`
	MQTTClientID string `env:"MQTT_CLIENT_ID"`
	MQTTUsername string `env:"MQTT_USERNAME"`
	MQTTPassword string `env:"MQTT_PASSWORD"`
	TopicPrefix  string `env:"TOPIC_PREFIX" envDefault:"bt510"`

	RootCAPath     string `env:"ROOT_CA_PATH"`
	ClientCertPath string `env:"CLIENT_CERT_PATH"`
	ClientKeyPath  string `env:"CLIENT_KEY_PATH"`
	PeerVerify     bool   `env:"PEER_VERIFY" envDefault:"true"`

	GatewayID          string `env:"GATEWAY_ID"`
	GatewayIDGenerated bool   // true when auto-generated (not from env)
	BluetoothAddress   string `env:"BLUETOOTH_ADDRESS"`
	GatewayName        string `env:"GATEWAY_NAME" envDefault:"ble-sensor-gateway"`

	JoinDelay    time.Duration `env:"JOIN_DELAY" envDefault:"0s"`
	JoinMin      time.Duration `env:"JOIN_MIN" envDefault:"1s"`
	JoinMax      time.Duration `env:"JOIN_MAX" envDefault:"30s"`
	JoinInterval time.Duration `env:"JOIN_INTERVAL" envDefault:"1s"`

	PublishWatchdog  time.Duration `env:"PUBLISH_WATCHDOG" envDefault:"0s"`
	KeepaliveWindow  time.Duration `env:"KEEPALIVE_WINDOW" envDefault:"30s"`
	FailureThreshold int           `env:"FAILURE_THRESHOLD" envDefault:"10"`

	SensorQueueDepth int `env:"SENSOR_QUEUE_DEPTH" envDefault:"32"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Validate checks the invariants Load's defaults and env parsing cannot
// express via struct tags alone.
func (c *Config) Validate() error {
	if c.MQTTEndpoint == "" {
		return fmt.Errorf("MQTT_ENDPOINT must be set")
	}
	if c.JoinMin > c.JoinMax {
		return fmt.Errorf("JOIN_MIN (%s) must not exceed JOIN_MAX (%s)", c.JoinMin, c.JoinMax)
	}
	return nil
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile      string
	LogLevel     string
	MQTTEndpoint string
	TopicPrefix  string
	GatewayID    string
}

// Load reads configuration from a .env file, environment variables, and
// CLI overrides. Priority: CLI flags > environment variables > .env file >
// struct defaults, exactly as the teacher's internal/config does it.
func Load(overrides Overrides) (*Config, error) {
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.MQTTEndpoint != "" {
		cfg.MQTTEndpoint = overrides.MQTTEndpoint
	}
	if overrides.TopicPrefix != "" {
		cfg.TopicPrefix = overrides.TopicPrefix
	}
	if overrides.GatewayID != "" {
		cfg.GatewayID = overrides.GatewayID
	}

	if cfg.GatewayID == "" {
		id, err := randomGatewayID()
		if err != nil {
			return nil, fmt.Errorf("config: generate gateway id: %w", err)
		}
		cfg.GatewayID = id
		cfg.GatewayIDGenerated = true
	}
	if cfg.MQTTClientID == "" {
		cfg.MQTTClientID = "gw-" + cfg.GatewayID
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// randomGatewayID generates a 12-hex-character id, matching spec.md §6's
// `gateway_id` (12-hex) format when none is configured.
func randomGatewayID() (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
