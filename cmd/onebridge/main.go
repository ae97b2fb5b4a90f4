package main

import (
	"fmt"
	"os"

	"onebridge/pkg/config"
	"onebridge/pkg/logger"
)

const version = "0.1.0"

var globalConfigPathOverride string

func main() {
	globalConfigPathOverride = detectConfigPathFromArgs(os.Args)

	for _, arg := range os.Args {
		if arg == "--debug" || arg == "-d" {
			config.SetDebugMode(true)
			logger.SetLevel(logger.DEBUG)
			break
		}
	}

	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "gateway":
		gatewayCmd()
	case "status":
		statusCmd()
	case "config":
		configCmd()
	case "version", "--version", "-v":
		fmt.Printf("onebridge v%s\n", version)
	case "help", "--help", "-h":
		printHelp()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Print(`onebridge - OneBot v11 webhook adapter

Usage:
  onebridge gateway              Run the webhook gateway
  onebridge status               Show gateway and channel health
  onebridge config init          Write a default config file
  onebridge config show          Print the effective config
  onebridge config path          Print the config file path
  onebridge version              Print the version

Flags:
  --config <path>   Use an alternate config file
  --debug, -d       Verbose logging, config dir in ./.onebridge
`)
}
