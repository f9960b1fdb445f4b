package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/tabctl/tabctl/internal/cli"
	"github.com/tabctl/tabctl/internal/config"
)

const quickStart = `tabctl - drive a DevTools-protocol browser from the command line

Quick start:
  tabctl connect                        Find the browser and remember it
  tabctl targets                        List open tabs
  tabctl nav https://example.com        Navigate and wait for the load
  tabctl snapshot                       Accessibility tree with stable refs
  tabctl console                        Console output, including backlog

For help:
  tabctl --help                         All commands and flags
`

func main() {
	// Show quick start if no args provided
	if len(os.Args) == 1 {
		fmt.Print(quickStart)
		return
	}

	// Load configuration from files/environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		cfg = config.Default()
	}

	var c cli.CLI

	// Apply config defaults before parsing; CLI flags override them.
	vars := kong.Vars{
		"config_format":     cfg.Format,
		"config_host":       cfg.Defaults.Host,
		"config_port":       fmt.Sprintf("%d", cfg.Defaults.Port),
		"config_node_limit": fmt.Sprintf("%d", cfg.Defaults.NodeLimit),
	}

	ctx := kong.Parse(&c,
		kong.Name("tabctl"),
		kong.Description("tabctl: drive a DevTools-protocol browser from short-lived CLI invocations"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		vars,
	)

	globals := cli.NewGlobalsWithConfig(&c, cfg)
	err = ctx.Run(globals)
	if err != nil {
		os.Exit(1)
	}
}
