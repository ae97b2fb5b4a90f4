package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"onebridge/pkg/config"
)

// detectConfigPathFromArgs honors --config <path> and --config=<path>
// before any command runs.
func detectConfigPathFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "--config" && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	return ""
}

func configPath() string {
	if globalConfigPathOverride != "" {
		return globalConfigPathOverride
	}
	return filepath.Join(config.GetConfigDir(), "config.json")
}

func loadConfigOrExit() *config.Config {
	cfg, err := config.LoadConfig(configPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config %s: %v\n", configPath(), err)
		os.Exit(1)
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "Config error: %v\n", e)
		}
		os.Exit(1)
	}
	return cfg
}

func hasFlag(name string) bool {
	for _, arg := range os.Args {
		if arg == name {
			return true
		}
	}
	return false
}
