package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FlexibleStringSlice accepts both ["str"] and [123] in JSON.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Config is the root configuration for the napclaw gateway.
type Config struct {
	Agent     AgentConfig     `json:"agent"`
	Channels  ChannelsConfig  `json:"channels"`
	Gateway   GatewayConfig   `json:"gateway"`
	Sessions  SessionsConfig  `json:"sessions"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
	Bindings  []AgentBinding  `json:"bindings,omitempty"`
}

// AgentConfig points at the external chat-agent backend that generates replies.
type AgentConfig struct {
	Endpoint       string `json:"endpoint"`                  // agent backend URL (e.g. "http://localhost:18790/v1/respond")
	APIKey         string `json:"-"`                         // from env NAPCLAW_AGENT_API_KEY only
	DefaultID      string `json:"default_id,omitempty"`      // default agent id (default "default")
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"` // per-run timeout (default 120)
}

// GatewayConfig holds gateway-level knobs.
type GatewayConfig struct {
	MaxMessageChars int `json:"max_message_chars,omitempty"` // inbound content cap (default 32000)
	RateLimitRPM    int `json:"rate_limit_rpm,omitempty"`    // outbound sends per chat per minute (default 20)
}

// SessionsConfig controls session key scoping and the activity store.
type SessionsConfig struct {
	Scope   string `json:"scope,omitempty"`    // "per-sender" (default) or "global"
	DmScope string `json:"dm_scope,omitempty"` // "per-channel-peer" (default), "per-peer", "main"
	MainKey string `json:"main_key,omitempty"` // shared key name for dm_scope="main"
	Storage string `json:"storage,omitempty"`  // sqlite path (default ~/.napclaw/sessions.db)
}

// TelemetryConfig configures OpenTelemetry export for dispatch traces.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`      // enable OTLP export (default false)
	Endpoint    string            `json:"endpoint,omitempty"`     // OTLP endpoint (e.g. "localhost:4317")
	Protocol    string            `json:"protocol,omitempty"`     // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty"`     // plaintext transport (local dev)
	ServiceName string            `json:"service_name,omitempty"` // default "napclaw-gateway"
	Headers     map[string]string `json:"headers,omitempty"`      // extra headers (auth tokens for cloud backends)
}

// AgentBinding maps a channel/account/peer pattern to a specific agent.
type AgentBinding struct {
	AgentID string       `json:"agentId"`
	Match   BindingMatch `json:"match"`
}

// BindingMatch specifies what messages this binding applies to.
type BindingMatch struct {
	Channel   string       `json:"channel"`             // "qq"
	AccountID string       `json:"accountId,omitempty"` // bot account ID
	Peer      *BindingPeer `json:"peer,omitempty"`      // specific DM/group
}

// BindingPeer specifies a specific chat target.
// Kind is "direct" or "group". Note that "direct" covers one-on-one chats,
// which some OneBot tooling labels "dm" or "private" instead.
type BindingPeer struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// NormalizeAgentID lowercases and trims an agent id, defaulting to "default".
func NormalizeAgentID(id string) string {
	id = strings.TrimSpace(strings.ToLower(id))
	if id == "" {
		return "default"
	}
	return id
}

// ResolveDefaultAgentID returns the configured default agent id.
func (c *Config) ResolveDefaultAgentID() string {
	return NormalizeAgentID(c.Agent.DefaultID)
}

// ResolveAgentRoute determines which agent should handle a message, most
// specific binding first: peer match, then account match, then channel match.
// Falls back to the default agent id.
func (c *Config) ResolveAgentRoute(channel, accountID, chatID, peerKind string) string {
	var accountMatch, channelMatch string
	for _, binding := range c.Bindings {
		match := binding.Match
		if match.Channel != channel {
			continue
		}

		// Peer-level match (most specific)
		if match.Peer != nil {
			if match.Peer.Kind == peerKind && match.Peer.ID == chatID {
				return NormalizeAgentID(binding.AgentID)
			}
			continue // has peer constraint but doesn't match — skip
		}

		if match.AccountID != "" {
			if match.AccountID == accountID && accountMatch == "" {
				accountMatch = NormalizeAgentID(binding.AgentID)
			}
			continue
		}

		// Channel-level match (least specific, no peer/account constraint)
		if channelMatch == "" {
			channelMatch = NormalizeAgentID(binding.AgentID)
		}
	}

	if accountMatch != "" {
		return accountMatch
	}
	if channelMatch != "" {
		return channelMatch
	}
	return c.ResolveDefaultAgentID()
}

// BoundAccountIDs returns account ids referenced by bindings for a channel.
func (c *Config) BoundAccountIDs(channel string) []string {
	var ids []string
	seen := map[string]bool{}
	for _, binding := range c.Bindings {
		if binding.Match.Channel != channel || binding.Match.AccountID == "" {
			continue
		}
		if !seen[binding.Match.AccountID] {
			seen[binding.Match.AccountID] = true
			ids = append(ids, binding.Match.AccountID)
		}
	}
	return ids
}

// ExpandHome expands a leading "~" to the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
