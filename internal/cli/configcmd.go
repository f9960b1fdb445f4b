package cli

import (
	"fmt"

	"github.com/tabctl/tabctl/internal/config"
)

// ConfigCmd groups configuration inspection.
type ConfigCmd struct {
	Show ConfigShowCmd `cmd:"" help:"Show the effective configuration"`
	Path ConfigPathCmd `cmd:"" help:"Show which config file is in use"`
}

// ConfigShowCmd prints the effective configuration.
type ConfigShowCmd struct{}

func (c *ConfigShowCmd) Run(globals *Globals) error {
	cfg := globals.Config

	if globals.NDJSON() {
		return globals.Emitter().WriteRecord("config", map[string]any{
			"format":   cfg.Format,
			"verbose":  cfg.Verbose,
			"quiet":    cfg.Quiet,
			"defaults": cfg.Defaults,
		})
	}

	fmt.Fprintln(globals.Stdout, "Current Configuration:")
	fmt.Fprintf(globals.Stdout, "  format: %s\n", cfg.Format)
	fmt.Fprintf(globals.Stdout, "  verbose: %v\n", cfg.Verbose)
	fmt.Fprintln(globals.Stdout, "Defaults:")
	fmt.Fprintf(globals.Stdout, "  host: %s\n", cfg.Defaults.Host)
	fmt.Fprintf(globals.Stdout, "  port: %d\n", cfg.Defaults.Port)
	fmt.Fprintf(globals.Stdout, "  timeout: %s\n", cfg.Defaults.Timeout)
	fmt.Fprintf(globals.Stdout, "  nav_timeout: %s\n", cfg.Defaults.NavTimeout)
	fmt.Fprintf(globals.Stdout, "  idle_interval: %s\n", cfg.Defaults.IdleInterval)
	fmt.Fprintf(globals.Stdout, "  drain_ceiling: %s\n", cfg.Defaults.DrainCeiling)
	fmt.Fprintf(globals.Stdout, "  node_limit: %d\n", cfg.Defaults.NodeLimit)
	return nil
}

// ConfigPathCmd prints the loaded config file path, if any.
type ConfigPathCmd struct{}

func (c *ConfigPathCmd) Run(globals *Globals) error {
	path := config.ConfigFile()

	if globals.NDJSON() {
		return globals.Emitter().WriteRecord("config_path", map[string]any{"path": path})
	}
	if path == "" {
		fmt.Fprintln(globals.Stdout, "No configuration file found (using defaults)")
		return nil
	}
	fmt.Fprintf(globals.Stdout, "Config file: %s\n", path)
	return nil
}
