package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"onebridge/pkg/config"
)

func configCmd() {
	sub := ""
	if len(os.Args) > 2 {
		sub = os.Args[2]
	}

	switch sub {
	case "init":
		configInit()
	case "show":
		configShow()
	case "path":
		fmt.Println(configPath())
	default:
		fmt.Println("Usage: onebridge config [init|show|path]")
		os.Exit(1)
	}
}

func configInit() {
	path := configPath()
	if _, err := os.Stat(path); err == nil && !hasFlag("--force") {
		fmt.Printf("Config already exists at %s (use --force to overwrite)\n", path)
		os.Exit(1)
	}
	if err := config.SaveConfig(path, config.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote default config to %s\n", path)
}

func configShow() {
	cfg := loadConfigOrExit()
	if cfg.OneBot.AccessToken != "" {
		cfg.OneBot.AccessToken = maskToken(cfg.OneBot.AccessToken)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render config: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

func maskToken(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return token[:2] + strings.Repeat("*", len(token)-4) + token[len(token)-2:]
}
