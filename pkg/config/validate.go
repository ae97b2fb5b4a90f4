package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate reports configuration problems without aborting on the first
// one, so the sentinel can surface all of them together.
func Validate(cfg *Config) []error {
	var errs []error

	if cfg.OneBot.Enabled {
		if cfg.OneBot.Endpoint == "" {
			errs = append(errs, fmt.Errorf("onebot: endpoint is required"))
		} else if u, err := url.Parse(cfg.OneBot.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("onebot: endpoint is not a valid URL: %s", cfg.OneBot.Endpoint))
		}

		switch cfg.OneBot.Transport {
		case "", "webhook":
			if cfg.OneBot.WebhookPath != "" && !strings.HasPrefix(cfg.OneBot.WebhookPath, "/") {
				errs = append(errs, fmt.Errorf("onebot: webhook_path must start with /"))
			}
		case "ws":
			if cfg.OneBot.WSUrl == "" {
				errs = append(errs, fmt.Errorf("onebot: ws_url is required for ws transport"))
			}
		default:
			errs = append(errs, fmt.Errorf("onebot: unknown transport %q", cfg.OneBot.Transport))
		}
	}

	switch cfg.OneBot.DM.Policy {
	case "", PolicyOpen, PolicyPairing, PolicyDisabled:
	default:
		errs = append(errs, fmt.Errorf("onebot: unknown dm policy %q", cfg.OneBot.DM.Policy))
	}

	switch cfg.OneBot.GroupPolicy {
	case "", PolicyOpen, PolicyAllowlist, PolicyDisabled:
	default:
		errs = append(errs, fmt.Errorf("onebot: unknown group policy %q", cfg.OneBot.GroupPolicy))
	}

	if cfg.Gateway.Port <= 0 || cfg.Gateway.Port > 65535 {
		errs = append(errs, fmt.Errorf("gateway: port out of range: %d", cfg.Gateway.Port))
	}

	return errs
}
