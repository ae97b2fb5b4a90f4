package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
)

// DM and group policy values accepted by the adapter.
const (
	PolicyOpen      = "open"
	PolicyPairing   = "pairing"
	PolicyAllowlist = "allowlist"
	PolicyDisabled  = "disabled"
)

type Config struct {
	OneBot   OneBotConfig   `json:"onebot"`
	Gateway  GatewayConfig  `json:"gateway"`
	Session  SessionConfig  `json:"session"`
	Logging  LoggingConfig  `json:"logging"`
	Sentinel SentinelConfig `json:"sentinel"`
	mu       sync.RWMutex
}

type OneBotConfig struct {
	Enabled     bool   `json:"enabled" env:"ONEBRIDGE_ONEBOT_ENABLED"`
	Endpoint    string `json:"endpoint" env:"ONEBRIDGE_ONEBOT_ENDPOINT"`
	AccessToken string `json:"access_token" env:"ONEBRIDGE_ONEBOT_ACCESS_TOKEN"`

	// Transport selects how inbound events arrive: "webhook" (HTTP push from
	// the gateway, the default) or "ws" (forward WebSocket to WSUrl).
	Transport   string `json:"transport" env:"ONEBRIDGE_ONEBOT_TRANSPORT"`
	WSUrl       string `json:"ws_url" env:"ONEBRIDGE_ONEBOT_WS_URL"`
	WebhookPath string `json:"webhook_path" env:"ONEBRIDGE_ONEBOT_WEBHOOK_PATH"`

	// SelfID may be left zero; the adapter learns it from the first webhook
	// event or from get_login_info and caches it.
	SelfID int64 `json:"self_id" env:"ONEBRIDGE_ONEBOT_SELF_ID"`

	DM          DMConfig               `json:"dm"`
	GroupPolicy string                 `json:"group_policy" env:"ONEBRIDGE_ONEBOT_GROUP_POLICY"`
	Groups      map[string]GroupConfig `json:"groups"`
}

type DMConfig struct {
	Policy    string   `json:"policy" env:"ONEBRIDGE_ONEBOT_DM_POLICY"`
	AllowFrom []string `json:"allow_from" env:"ONEBRIDGE_ONEBOT_DM_ALLOW_FROM"`
}

// GroupConfig is a per-group override. The zero value means "inherit the
// defaults": enabled, mention required. Keyed by group id, with "*" as the
// wildcard fallback entry.
type GroupConfig struct {
	Enabled        *bool       `json:"enabled,omitempty"`
	RequireMention *bool       `json:"require_mention,omitempty"`
	AllowFrom      []string    `json:"allow_from,omitempty"`
	Tools          *ToolPolicy `json:"tools,omitempty"`
}

type ToolPolicy struct {
	Allow    []string            `json:"allow,omitempty"`
	Deny     []string            `json:"deny,omitempty"`
	BySender map[string]ToolRule `json:"by_sender,omitempty"`
}

type ToolRule struct {
	Allow []string `json:"allow,omitempty"`
	Deny  []string `json:"deny,omitempty"`
}

type GatewayConfig struct {
	Host string `json:"host" env:"ONEBRIDGE_GATEWAY_HOST"`
	Port int    `json:"port" env:"ONEBRIDGE_GATEWAY_PORT"`
}

type SessionConfig struct {
	Dir string `json:"dir" env:"ONEBRIDGE_SESSION_DIR"`
}

type LoggingConfig struct {
	Enabled       bool   `json:"enabled" env:"ONEBRIDGE_LOGGING_ENABLED"`
	Dir           string `json:"dir" env:"ONEBRIDGE_LOGGING_DIR"`
	Filename      string `json:"filename" env:"ONEBRIDGE_LOGGING_FILENAME"`
	MaxSizeMB     int    `json:"max_size_mb" env:"ONEBRIDGE_LOGGING_MAX_SIZE_MB"`
	RetentionDays int    `json:"retention_days" env:"ONEBRIDGE_LOGGING_RETENTION_DAYS"`
}

type SentinelConfig struct {
	Enabled     bool `json:"enabled" env:"ONEBRIDGE_SENTINEL_ENABLED"`
	IntervalSec int  `json:"interval_sec" env:"ONEBRIDGE_SENTINEL_INTERVAL_SEC"`
	AutoHeal    bool `json:"auto_heal" env:"ONEBRIDGE_SENTINEL_AUTO_HEAL"`
}

var (
	isDebug bool
	muDebug sync.RWMutex
)

func SetDebugMode(debug bool) {
	muDebug.Lock()
	defer muDebug.Unlock()
	isDebug = debug
}

func IsDebugMode() bool {
	muDebug.RLock()
	defer muDebug.RUnlock()
	return isDebug
}

func GetConfigDir() string {
	if IsDebugMode() {
		return ".onebridge"
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".onebridge")
}

func DefaultConfig() *Config {
	configDir := GetConfigDir()
	return &Config{
		OneBot: OneBotConfig{
			Enabled:     false,
			Endpoint:    "http://127.0.0.1:3000",
			Transport:   "webhook",
			WebhookPath: "/onebot",
			DM: DMConfig{
				Policy:    PolicyOpen,
				AllowFrom: []string{},
			},
			GroupPolicy: PolicyOpen,
			Groups:      map[string]GroupConfig{},
		},
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 18920,
		},
		Session: SessionConfig{
			Dir: filepath.Join(configDir, "sessions"),
		},
		Logging: LoggingConfig{
			Enabled:       true,
			Dir:           filepath.Join(configDir, "logs"),
			Filename:      "onebridge.log",
			MaxSizeMB:     20,
			RetentionDays: 3,
		},
		Sentinel: SentinelConfig{
			Enabled:     true,
			IntervalSec: 60,
			AutoHeal:    true,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := unmarshalConfigStrict(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func unmarshalConfigStrict(data []byte, cfg *Config) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); err != io.EOF {
		if err == nil {
			return fmt.Errorf("invalid config: trailing JSON content")
		}
		return err
	}
	return nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SetSelfID caches the identifier learned from the first inbound webhook;
// the only in-place mutation the config sees after load.
func (c *Config) SetSelfID(id int64) {
	c.mu.Lock()
	if c.OneBot.SelfID == 0 && id > 0 {
		c.OneBot.SelfID = id
	}
	c.mu.Unlock()
}

func (c *Config) GetSelfID() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.OneBot.SelfID
}

// EffectiveGroup resolves the per-group override for a group id, falling
// back to the "*" wildcard entry.
func (c *Config) EffectiveGroup(groupID string) (GroupConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if g, ok := c.OneBot.Groups[groupID]; ok {
		return g, true
	}
	if g, ok := c.OneBot.Groups["*"]; ok {
		return g, true
	}
	return GroupConfig{}, false
}

// DMAllowed reports whether a direct message from the sender passes the DM
// policy. Pairing handshakes themselves are the embedding host's concern;
// here "pairing" admits only already-listed senders, like "open" with a
// required allow-list.
func (c *Config) DMAllowed(senderID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch c.OneBot.DM.Policy {
	case PolicyDisabled:
		return false
	case PolicyPairing:
		return containsString(c.OneBot.DM.AllowFrom, senderID)
	default:
		if len(c.OneBot.DM.AllowFrom) == 0 {
			return true
		}
		return containsString(c.OneBot.DM.AllowFrom, senderID)
	}
}

// ResolveToolPolicy merges a group's global tool rules with the per-sender
// override, per-sender entries taking precedence.
func (c *Config) ResolveToolPolicy(groupID, senderID string) ToolRule {
	g, ok := c.EffectiveGroup(groupID)
	if !ok || g.Tools == nil {
		return ToolRule{}
	}
	rule := ToolRule{Allow: g.Tools.Allow, Deny: g.Tools.Deny}
	if s, ok := g.Tools.BySender[senderID]; ok {
		if len(s.Allow) > 0 {
			rule.Allow = s.Allow
		}
		if len(s.Deny) > 0 {
			rule.Deny = s.Deny
		}
	}
	return rule
}

func (c *Config) LogFilePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	filename := c.Logging.Filename
	if filename == "" {
		filename = "onebridge.log"
	}
	return filepath.Join(expandHome(c.Logging.Dir), filename)
}

func (c *Config) SessionDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Session.Dir)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
