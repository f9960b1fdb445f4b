package cli

import (
	"io"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/mattn/go-isatty"

	"github.com/tabctl/tabctl/internal/config"
	"github.com/tabctl/tabctl/internal/output"
)

// Globals carries the resolved global flags plus the process-wide
// collaborators every command needs.
type Globals struct {
	Format   string
	Quiet    bool
	Verbose  bool
	Endpoint string
	Host     string
	Port     int

	Stdout io.Writer
	Stderr io.Writer
	Config *config.Config
	Clock  clock.Clock

	// StateDir overrides the default ~/.tabctl location, mostly for tests.
	StateDir string

	logger *agentLogger
}

// NewGlobalsWithConfig builds Globals from parsed flags with config
// fallbacks.
func NewGlobalsWithConfig(c *CLI, cfg *config.Config) *Globals {
	g := &Globals{
		Format:   c.Format,
		Quiet:    c.Quiet,
		Verbose:  c.Verbose,
		Endpoint: c.Endpoint,
		Host:     c.Host,
		Port:     c.Port,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Config:   cfg,
		Clock:    clock.New(),
		StateDir: os.Getenv("TABCTL_STATE_DIR"),
	}
	g.logger = newAgentLogger(g)
	return g
}

// Debug logs through the verbose-gated logger.
func (g *Globals) Debug(format string, args ...interface{}) {
	g.logger.Debug(format, args...)
}

// NDJSON reports whether output should be machine-readable. "auto" picks
// text only when stdout is a terminal.
func (g *Globals) NDJSON() bool {
	switch g.Format {
	case "ndjson":
		return true
	case "text":
		return false
	}
	if f, ok := g.Stdout.(*os.File); ok {
		return !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
	}
	return true
}

// Emitter returns the NDJSON writer for stdout.
func (g *Globals) Emitter() *output.NDJSONWriter {
	return output.NewNDJSONWriter(g.Stdout)
}

func (g *Globals) duration(s string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return fallback
}

// CommandTimeout bounds a single protocol round trip.
func (g *Globals) CommandTimeout() time.Duration {
	return g.duration(g.Config.Defaults.Timeout, 10*time.Second)
}

// NavTimeout bounds a navigation wait.
func (g *Globals) NavTimeout() time.Duration {
	return g.duration(g.Config.Defaults.NavTimeout, 30*time.Second)
}

// ProbeTimeout bounds one liveness probe in the resolution chain.
func (g *Globals) ProbeTimeout() time.Duration {
	return g.duration(g.Config.Defaults.ProbeTimeout, 2*time.Second)
}

// IdleInterval is the quiet period that ends an idle drain.
func (g *Globals) IdleInterval() time.Duration {
	return g.duration(g.Config.Defaults.IdleInterval, 500*time.Millisecond)
}

// DrainCeiling is the absolute cap on any drain.
func (g *Globals) DrainCeiling() time.Duration {
	return g.duration(g.Config.Defaults.DrainCeiling, 10*time.Second)
}

// ActivateInterval spaces the verify-after-write checks.
func (g *Globals) ActivateInterval() time.Duration {
	return g.duration(g.Config.Defaults.ActivateInterval, 200*time.Millisecond)
}
