package config

import (
	"os"
	"path/filepath"
	"testing"
)

func boolPtr(b bool) *bool { return &b }

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.OneBot.Enabled {
		t.Error("onebot should be disabled by default")
	}
	if cfg.OneBot.Transport != "webhook" {
		t.Errorf("default transport = %q, want webhook", cfg.OneBot.Transport)
	}
	if cfg.OneBot.WebhookPath != "/onebot" {
		t.Errorf("default webhook path = %q, want /onebot", cfg.OneBot.WebhookPath)
	}
	if cfg.OneBot.DM.Policy != PolicyOpen {
		t.Errorf("default dm policy = %q, want open", cfg.OneBot.DM.Policy)
	}
	if errs := Validate(cfg); len(errs) != 0 {
		t.Errorf("default config should validate cleanly, got %v", errs)
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Gateway.Port != 18920 {
		t.Errorf("port = %d, want default 18920", cfg.Gateway.Port)
	}
}

func TestLoadConfigRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"onebot":{"enabled":true,"bogus":1}}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadConfigRejectsTrailingContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"onebot":{"enabled":true}} {"again":true}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for trailing JSON content")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ONEBRIDGE_ONEBOT_ENDPOINT", "http://10.0.0.5:3001")
	t.Setenv("ONEBRIDGE_GATEWAY_PORT", "9000")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.OneBot.Endpoint != "http://10.0.0.5:3001" {
		t.Errorf("endpoint = %q", cfg.OneBot.Endpoint)
	}
	if cfg.Gateway.Port != 9000 {
		t.Errorf("port = %d", cfg.Gateway.Port)
	}
}

func TestSaveAndReloadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := DefaultConfig()
	cfg.OneBot.Enabled = true
	cfg.OneBot.Endpoint = "http://127.0.0.1:3000"
	cfg.OneBot.Groups = map[string]GroupConfig{
		"12345": {RequireMention: boolPtr(false)},
	}
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	g, ok := got.EffectiveGroup("12345")
	if !ok {
		t.Fatal("group 12345 missing after reload")
	}
	if g.RequireMention == nil || *g.RequireMention {
		t.Error("require_mention override lost in round trip")
	}
}

func TestEffectiveGroupWildcard(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.OneBot.Groups = map[string]GroupConfig{
		"*":   {Enabled: boolPtr(true)},
		"777": {Enabled: boolPtr(false)},
	}

	if g, ok := cfg.EffectiveGroup("777"); !ok || g.Enabled == nil || *g.Enabled {
		t.Error("exact entry should win over wildcard")
	}
	if g, ok := cfg.EffectiveGroup("888"); !ok || g.Enabled == nil || !*g.Enabled {
		t.Error("unknown group should fall back to wildcard")
	}
	cfg.OneBot.Groups = map[string]GroupConfig{"777": {}}
	if _, ok := cfg.EffectiveGroup("888"); ok {
		t.Error("no wildcard means no match for unknown group")
	}
}

func TestDMAllowed(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if !cfg.DMAllowed("111") {
		t.Error("open policy with empty allow list should admit everyone")
	}

	cfg.OneBot.DM.AllowFrom = []string{"222"}
	if cfg.DMAllowed("111") {
		t.Error("open policy with allow list should reject unlisted sender")
	}
	if !cfg.DMAllowed("222") {
		t.Error("listed sender should be admitted")
	}

	cfg.OneBot.DM.Policy = PolicyDisabled
	if cfg.DMAllowed("222") {
		t.Error("disabled policy should reject everyone")
	}

	cfg.OneBot.DM.Policy = PolicyPairing
	cfg.OneBot.DM.AllowFrom = nil
	if cfg.DMAllowed("222") {
		t.Error("pairing policy with no paired senders should reject")
	}
}

func TestResolveToolPolicy(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.OneBot.Groups = map[string]GroupConfig{
		"42": {
			Tools: &ToolPolicy{
				Allow: []string{"search"},
				Deny:  []string{"shell"},
				BySender: map[string]ToolRule{
					"999": {Deny: []string{"search", "shell"}},
				},
			},
		},
	}

	rule := cfg.ResolveToolPolicy("42", "111")
	if len(rule.Allow) != 1 || rule.Allow[0] != "search" {
		t.Errorf("group-level allow = %v", rule.Allow)
	}

	rule = cfg.ResolveToolPolicy("42", "999")
	if len(rule.Deny) != 2 {
		t.Errorf("per-sender deny should override, got %v", rule.Deny)
	}
	if len(rule.Allow) != 1 {
		t.Errorf("per-sender rule without allow keeps group allow, got %v", rule.Allow)
	}

	if rule := cfg.ResolveToolPolicy("nope", "111"); len(rule.Allow)+len(rule.Deny) != 0 {
		t.Errorf("unknown group should yield empty rule, got %+v", rule)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.OneBot.Enabled = true
	cfg.OneBot.Endpoint = "not a url"
	cfg.OneBot.Transport = "carrier-pigeon"
	cfg.OneBot.DM.Policy = "maybe"
	cfg.Gateway.Port = 0

	errs := Validate(cfg)
	if len(errs) != 4 {
		t.Fatalf("expected 4 validation errors, got %d: %v", len(errs), errs)
	}
}

func TestValidateWSTransportNeedsURL(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.OneBot.Enabled = true
	cfg.OneBot.Transport = "ws"

	errs := Validate(cfg)
	if len(errs) != 1 {
		t.Fatalf("expected 1 validation error, got %v", errs)
	}
	cfg.OneBot.WSUrl = "ws://127.0.0.1:3001"
	if errs := Validate(cfg); len(errs) != 0 {
		t.Errorf("expected clean validation, got %v", errs)
	}
}
