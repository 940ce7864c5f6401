package config

// ChannelsConfig contains per-channel configuration.
type ChannelsConfig struct {
	QQ QQConfig `json:"qq"`
}

// DefaultQQAccountID is the reserved id for the unnamed account slot.
const DefaultQQAccountID = "default"

// QQConfig configures the QQ channel (OneBot 11 via a NapCat bridge).
// Top-level fields are the base account; entries under Accounts override them
// per bot identity.
type QQConfig struct {
	Enabled     *bool               `json:"enabled,omitempty"`
	HTTPURL     string              `json:"http_url,omitempty"`     // bridge HTTP API (default http://localhost:3000)
	WSURL       string              `json:"ws_url,omitempty"`       // bridge WebSocket event stream
	AccessToken string              `json:"access_token,omitempty"` // inline token (lowest-priority source)
	TokenFile   string              `json:"token_file,omitempty"`   // file containing the token
	AllowFrom   FlexibleStringSlice `json:"allow_from"`
	DMPolicy    string              `json:"dm_policy,omitempty"`    // "open" (default), "allowlist", "disabled"
	GroupPolicy string              `json:"group_policy,omitempty"` // "open" (default), "allowlist", "disabled"

	ReconnectIntervalMs int    `json:"reconnect_interval_ms,omitempty"` // monitor reconnect delay (default 5000)
	ReplyToMode         string `json:"reply_to_mode,omitempty"`         // "off" (default), "first", "all"
	TextChunkLimit      int    `json:"text_chunk_limit,omitempty"`      // outbound chunk size (default 4000)

	Accounts map[string]QQAccountConfig `json:"accounts,omitempty"`
}

// IsEnabled reports whether the channel is enabled at the base level.
// An omitted flag counts as enabled.
func (c QQConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// QQAccountConfig overrides base QQConfig fields for one bot identity.
// Pointer fields distinguish "unset" (inherit base) from explicit values.
type QQAccountConfig struct {
	Enabled     *bool               `json:"enabled,omitempty"`
	HTTPURL     string              `json:"http_url,omitempty"`
	WSURL       string              `json:"ws_url,omitempty"`
	AccessToken string              `json:"access_token,omitempty"`
	TokenFile   string              `json:"token_file,omitempty"`
	AllowFrom   FlexibleStringSlice `json:"allow_from,omitempty"`
	DMPolicy    string              `json:"dm_policy,omitempty"`
	GroupPolicy string              `json:"group_policy,omitempty"`

	ReconnectIntervalMs int    `json:"reconnect_interval_ms,omitempty"`
	ReplyToMode         string `json:"reply_to_mode,omitempty"`
	TextChunkLimit      int    `json:"text_chunk_limit,omitempty"`
}
