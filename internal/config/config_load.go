package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			DefaultID:      "default",
			TimeoutSeconds: 120,
		},
		Gateway: GatewayConfig{
			MaxMessageChars: 32000,
			RateLimitRPM:    20,
		},
		Sessions: SessionsConfig{
			Storage: "~/.napclaw/sessions.db",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error — defaults plus env apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	envStr("NAPCLAW_AGENT_ENDPOINT", &c.Agent.Endpoint)
	envStr("NAPCLAW_AGENT_API_KEY", &c.Agent.APIKey)
	envStr("NAPCLAW_QQ_HTTP_URL", &c.Channels.QQ.HTTPURL)
	envStr("NAPCLAW_QQ_WS_URL", &c.Channels.QQ.WSURL)
	envInt("NAPCLAW_GATEWAY_RATE_LIMIT_RPM", &c.Gateway.RateLimitRPM)
	envStr("NAPCLAW_OTLP_ENDPOINT", &c.Telemetry.Endpoint)
}

// OverrideAccessToken returns the process-wide QQ token override, if set.
// It outranks every configured token source for every account — an operator
// escape hatch, never persisted.
func OverrideAccessToken() string {
	return os.Getenv("NAPCLAW_QQ_ACCESS_TOKEN")
}
