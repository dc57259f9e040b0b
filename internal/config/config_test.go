package config

import (
	"os"
	"testing"
)

func TestLoad(t *testing.T) {
	cleanup := setEnvs(t, map[string]string{
		"MQTT_ENDPOINT": "mqtts://broker.example.com",
	})
	defer cleanup()

	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.MQTTPort != 8883 {
			t.Errorf("MQTTPort = %d, want 8883", cfg.MQTTPort)
		}
		if cfg.TopicPrefix != "bt510" {
			t.Errorf("TopicPrefix = %q, want bt510", cfg.TopicPrefix)
		}
		if cfg.LogLevel != "info" {
			t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
		}
		if !cfg.PeerVerify {
			t.Error("PeerVerify = false, want true")
		}
		if cfg.GatewayID == "" || len(cfg.GatewayID) != 12 {
			t.Errorf("GatewayID = %q, want a generated 12-hex id", cfg.GatewayID)
		}
		if !cfg.GatewayIDGenerated {
			t.Error("GatewayIDGenerated = false, want true when GATEWAY_ID unset")
		}
		if cfg.MQTTClientID != "gw-"+cfg.GatewayID {
			t.Errorf("MQTTClientID = %q, want derived from GatewayID", cfg.MQTTClientID)
		}
	})

	t.Run("cli_overrides_take_priority", func(t *testing.T) {
		cfg, err := Load(Overrides{
			EnvFile:      "nonexistent.env",
			MQTTEndpoint: "mqtts://override.example.com",
			TopicPrefix:  "custom",
			GatewayID:    "aabbccddeeff",
		})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.MQTTEndpoint != "mqtts://override.example.com" {
			t.Errorf("MQTTEndpoint = %q, want override", cfg.MQTTEndpoint)
		}
		if cfg.TopicPrefix != "custom" {
			t.Errorf("TopicPrefix = %q, want custom", cfg.TopicPrefix)
		}
		if cfg.GatewayID != "aabbccddeeff" {
			t.Errorf("GatewayID = %q, want aabbccddeeff", cfg.GatewayID)
		}
		if cfg.GatewayIDGenerated {
			t.Error("GatewayIDGenerated = true, want false when overridden")
		}
	})

	t.Run("env_vars_read", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.MQTTEndpoint != "mqtts://broker.example.com" {
			t.Errorf("MQTTEndpoint = %q, want env value", cfg.MQTTEndpoint)
		}
	})
}

func TestLoadMissingRequired(t *testing.T) {
	cleanup := setEnvs(t, map[string]string{"MQTT_ENDPOINT": ""})
	defer cleanup()
	os.Unsetenv("MQTT_ENDPOINT")

	_, err := Load(Overrides{EnvFile: "nonexistent.env"})
	if err == nil {
		t.Error("expected error when MQTT_ENDPOINT is missing")
	}
}

func TestLoadJoinMinExceedsJoinMax(t *testing.T) {
	cleanup := setEnvs(t, map[string]string{
		"MQTT_ENDPOINT": "mqtts://broker.example.com",
		"JOIN_MIN":      "1m",
		"JOIN_MAX":      "30s",
	})
	defer cleanup()

	_, err := Load(Overrides{EnvFile: "nonexistent.env"})
	if err == nil {
		t.Error("expected error when JOIN_MIN exceeds JOIN_MAX")
	}
}

// setEnvs sets environment variables and returns a cleanup function.
func setEnvs(t *testing.T, envs map[string]string) func() {
	t.Helper()
	originals := make(map[string]string)
	unset := make([]string, 0)

	for k, v := range envs {
		if orig, ok := os.LookupEnv(k); ok {
			originals[k] = orig
		} else {
			unset = append(unset, k)
		}
		os.Setenv(k, v)
	}

	return func() {
		for k, v := range originals {
			os.Setenv(k, v)
		}
		for _, k := range unset {
			os.Unsetenv(k)
		}
	}
}
