package browser

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/tabctl/tabctl/internal/state"
)

// NoBrowserError means every step of the resolution chain came up empty.
type NoBrowserError struct {
	Tried []string
}

func (e *NoBrowserError) Error() string {
	return fmt.Sprintf("no debuggable browser found (tried %v); start one with remote debugging and run `tabctl connect`", e.Tried)
}

// UnreachableError means an explicitly requested endpoint failed its
// liveness probe.
type UnreachableError struct {
	Where string
	Cause error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("browser at %s is not reachable: %v", e.Where, e.Cause)
}

func (e *UnreachableError) Unwrap() error { return e.Cause }

// TargetNotFoundError names the selector that matched nothing.
type TargetNotFoundError struct {
	Selector string
}

func (e *TargetNotFoundError) Error() string {
	if e.Selector == "" {
		return "no page target open; run `tabctl targets` to list what the browser has"
	}
	return fmt.Sprintf("target %q not found; run `tabctl targets` to list what the browser has", e.Selector)
}

// Endpoint is a resolved, connectable browser.
type Endpoint struct {
	WSURL   string
	Host    string
	Port    int
	Browser string
}

// ResolveOptions feed the connection resolution chain.
type ResolveOptions struct {
	// WSEndpoint is an explicit ws:// URL, used without verification.
	WSEndpoint string
	// Port is an explicit debugging port; non-default values are verified
	// live and fail loudly rather than falling through.
	Port int
	Host string
	// Persisted is the connection record a previous invocation left
	// behind, if any. A stale record falls through to auto-discovery.
	Persisted *state.Connection
	// ProbeTimeout bounds each liveness probe.
	ProbeTimeout time.Duration
}

// Resolve walks the priority chain: explicit endpoint, explicit port,
// persisted record, conventional default port. Liveness means a
// well-formed /json/version reply, not a bare TCP accept; a random service
// squatting on 9222 is rejected here.
func Resolve(ctx context.Context, opts ResolveOptions) (*Endpoint, error) {
	host := opts.Host
	if host == "" {
		host = "127.0.0.1"
	}

	if opts.WSEndpoint != "" {
		return &Endpoint{WSURL: opts.WSEndpoint, Host: host, Port: opts.Port}, nil
	}

	if opts.Port != 0 && opts.Port != DefaultPort {
		info, err := Version(ctx, host, opts.Port, opts.ProbeTimeout)
		if err != nil {
			return nil, &UnreachableError{Where: fmt.Sprintf("%s:%d", host, opts.Port), Cause: err}
		}
		return endpointFrom(host, opts.Port, info), nil
	}

	var tried []string
	if p := opts.Persisted; p != nil && p.Port != 0 {
		pHost := p.Host
		if pHost == "" {
			pHost = host
		}
		info, err := Version(ctx, pHost, p.Port, opts.ProbeTimeout)
		if err == nil {
			return endpointFrom(pHost, p.Port, info), nil
		}
		// Stale record; keep walking the chain.
		tried = append(tried, fmt.Sprintf("%s:%d (persisted)", pHost, p.Port))
	}

	info, err := Version(ctx, host, DefaultPort, opts.ProbeTimeout)
	if err == nil {
		return endpointFrom(host, DefaultPort, info), nil
	}
	tried = append(tried, fmt.Sprintf("%s:%d", host, DefaultPort))

	return nil, &NoBrowserError{Tried: tried}
}

func endpointFrom(host string, port int, info *VersionInfo) *Endpoint {
	return &Endpoint{
		WSURL:   info.WebSocketDebuggerURL,
		Host:    host,
		Port:    port,
		Browser: info.Browser,
	}
}

// ResolveTarget picks one target: exact id, then numeric position in the
// enumerated list, then the persisted last-active id, then the first page.
// The discovery endpoint's ordering says nothing about which tab is
// active, which is why lastActive outranks position.
func ResolveTarget(targets []Target, selector, lastActive string) (*Target, error) {
	if selector != "" {
		for i := range targets {
			if targets[i].ID == selector {
				return &targets[i], nil
			}
		}
		if idx, err := strconv.Atoi(selector); err == nil {
			if idx >= 0 && idx < len(targets) {
				return &targets[idx], nil
			}
		}
		return nil, &TargetNotFoundError{Selector: selector}
	}

	if lastActive != "" {
		for i := range targets {
			if targets[i].ID == lastActive {
				return &targets[i], nil
			}
		}
	}

	pages := lo.Filter(targets, func(t Target, _ int) bool { return t.Type == "page" })
	if len(pages) > 0 {
		return &pages[0], nil
	}
	return nil, &TargetNotFoundError{}
}
