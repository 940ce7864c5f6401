// Package qq connects the gateway to QQ via a NapCat bridge speaking
// OneBot 11. It owns account resolution, inbound routing context, and
// outbound delivery; the wire protocol itself lives in the onebot subpackage.
package qq

import (
	"os"
	"sort"
	"strings"
	"time"

	"github.com/nextlevelbuilder/napclaw/internal/channels/qq/onebot"
	"github.com/nextlevelbuilder/napclaw/internal/config"
)

// TokenSource records where a resolved access token came from.
// Diagnostics only — behavior never branches on it besides the
// "looks unconfigured" heuristic below.
type TokenSource string

const (
	TokenSourceEnv    TokenSource = "env"
	TokenSourceFile   TokenSource = "file"
	TokenSourceConfig TokenSource = "config"
	TokenSourceNone   TokenSource = "none"
)

// DefaultHTTPURL is the bridge HTTP endpoint used when none is configured.
// It is a sentinel: an account with this URL and no token is treated as
// never configured.
const DefaultHTTPURL = "http://localhost:3000"

// Account is one fully resolved bot identity.
// Immutable after resolution; re-resolve on config change.
type Account struct {
	ID          string
	Enabled     bool
	HTTPURL     string
	WSURL       string
	AccessToken string
	TokenSource TokenSource

	AllowFrom   []string
	DMPolicy    string
	GroupPolicy string

	ReconnectInterval time.Duration
	ReplyToMode       string
	TextChunkLimit    int
}

// Configured reports whether the account was ever actually set up.
// An account with no token from any source and the default HTTP URL is
// indistinguishable from "never configured".
func (a Account) Configured() bool {
	return a.TokenSource != TokenSourceNone || a.HTTPURL != DefaultHTTPURL
}

// Usable reports whether the account can be started.
func (a Account) Usable() bool {
	return a.Enabled && a.WSURL != ""
}

const (
	defaultReconnectMs    = 5000
	defaultTextChunkLimit = 4000
)

// ResolveAccount produces a fully resolved Account for accountID.
// Per-account fields override the base QQ config; the base provides defaults.
// Never errors: absent configuration resolves to a disabled/unusable account —
// callers must check Enabled and the URLs before acting.
//
// When accountID is empty the primary ("default") slot is resolved; if that
// looks unconfigured, the bindings-referenced default account is tried and
// preferred when it has a token. Multi-account setups often configure
// everything under a named account and leave the bare default slot empty.
func ResolveAccount(cfg *config.Config, accountID string) Account {
	if accountID != "" {
		return resolveOne(cfg, accountID)
	}

	primary := resolveOne(cfg, config.DefaultQQAccountID)
	if primary.Configured() {
		return primary
	}

	fallbackID := defaultAccountID(cfg)
	if fallbackID == config.DefaultQQAccountID {
		return primary
	}
	fallback := resolveOne(cfg, fallbackID)
	if fallback.TokenSource != TokenSourceNone {
		return fallback
	}
	return primary
}

func resolveOne(cfg *config.Config, accountID string) Account {
	base := cfg.Channels.QQ
	override, hasOverride := base.Accounts[accountID]

	acct := Account{
		ID:                accountID,
		HTTPURL:           base.HTTPURL,
		WSURL:             base.WSURL,
		AllowFrom:         base.AllowFrom,
		DMPolicy:          base.DMPolicy,
		GroupPolicy:       base.GroupPolicy,
		ReplyToMode:       base.ReplyToMode,
		TextChunkLimit:    base.TextChunkLimit,
		ReconnectInterval: time.Duration(base.ReconnectIntervalMs) * time.Millisecond,
	}

	accountEnabled := true
	if hasOverride {
		if override.HTTPURL != "" {
			acct.HTTPURL = override.HTTPURL
		}
		if override.WSURL != "" {
			acct.WSURL = override.WSURL
		}
		if len(override.AllowFrom) > 0 {
			acct.AllowFrom = override.AllowFrom
		}
		if override.DMPolicy != "" {
			acct.DMPolicy = override.DMPolicy
		}
		if override.GroupPolicy != "" {
			acct.GroupPolicy = override.GroupPolicy
		}
		if override.ReplyToMode != "" {
			acct.ReplyToMode = override.ReplyToMode
		}
		if override.TextChunkLimit > 0 {
			acct.TextChunkLimit = override.TextChunkLimit
		}
		if override.ReconnectIntervalMs > 0 {
			acct.ReconnectInterval = time.Duration(override.ReconnectIntervalMs) * time.Millisecond
		}
		if override.Enabled != nil {
			accountEnabled = *override.Enabled
		}
	}

	// Enabled = base AND account; both default true at their own level.
	acct.Enabled = base.IsEnabled() && accountEnabled

	if acct.HTTPURL == "" {
		acct.HTTPURL = DefaultHTTPURL
	}
	if acct.ReconnectInterval <= 0 {
		acct.ReconnectInterval = defaultReconnectMs * time.Millisecond
	}
	if acct.TextChunkLimit <= 0 {
		acct.TextChunkLimit = defaultTextChunkLimit
	}

	acct.AccessToken, acct.TokenSource = resolveToken(base, override, hasOverride)
	return acct
}

// tokenResolver yields a token or declines. Evaluated in fixed priority order
// so the precedence contract is testable on its own.
type tokenResolver struct {
	source  TokenSource
	resolve func() string
}

// resolveToken applies token precedence: process-wide env override, then a
// configured token file, then the inline config value.
func resolveToken(base config.QQConfig, override config.QQAccountConfig, hasOverride bool) (string, TokenSource) {
	tokenFile := base.TokenFile
	inline := base.AccessToken
	if hasOverride {
		if override.TokenFile != "" {
			tokenFile = override.TokenFile
		}
		if override.AccessToken != "" {
			inline = override.AccessToken
		}
	}

	resolvers := []tokenResolver{
		{TokenSourceEnv, config.OverrideAccessToken},
		{TokenSourceFile, func() string { return readTokenFile(tokenFile) }},
		{TokenSourceConfig, func() string { return inline }},
	}
	for _, r := range resolvers {
		if token := r.resolve(); token != "" {
			return token, r.source
		}
	}
	return "", TokenSourceNone
}

// readTokenFile reads a token from disk. Read failures are swallowed —
// the resolver falls through to the next source.
func readTokenFile(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(config.ExpandHome(path))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// defaultAccountID returns the account id to use when none was requested:
// the first bindings-referenced account, else the reserved default id.
func defaultAccountID(cfg *config.Config) string {
	if ids := cfg.BoundAccountIDs(ChannelName); len(ids) > 0 {
		return ids[0]
	}
	return config.DefaultQQAccountID
}

// ListAccountIDs returns all known account ids: the union of explicitly
// configured accounts and accounts referenced by agent bindings. Never empty —
// falls back to the singleton default id.
func ListAccountIDs(cfg *config.Config) []string {
	seen := map[string]bool{}
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	for id := range cfg.Channels.QQ.Accounts {
		add(id)
	}
	for _, id := range cfg.BoundAccountIDs(ChannelName) {
		add(id)
	}

	if len(ids) == 0 {
		return []string{config.DefaultQQAccountID}
	}
	sort.Strings(ids)
	return ids
}

// NewProbeClient builds an onebot client for a resolved account.
func NewProbeClient(acct Account) *onebot.Client {
	return onebot.NewClient(acct.HTTPURL, acct.AccessToken)
}
